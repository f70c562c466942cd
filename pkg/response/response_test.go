package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/edu-crm-api/internal/models"
	appErrors "github.com/noah-isme/edu-crm-api/pkg/errors"
)

func newContext() (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	return c, w
}

func TestJSONWithPagination(t *testing.T) {
	c, w := newContext()

	SetMeta(c, "filtered_count", 25)
	JSON(c, http.StatusOK, []string{"a"}, models.NewPagination(2, 10, 25))

	var env struct {
		Data       []string               `json:"data"`
		Pagination models.Pagination      `json:"pagination"`
		Meta       map[string]interface{} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.Equal(t, 3, env.Pagination.TotalPages)
	assert.Equal(t, float64(25), env.Meta["filtered_count"])
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
}

func TestErrorMapsStatus(t *testing.T) {
	c, w := newContext()

	Error(c, appErrors.Clone(appErrors.ErrValidation, "Name is required"))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Name is required")
	assert.Empty(t, c.Errors)
}

func TestErrorRecordsInternalCause(t *testing.T) {
	c, w := newContext()

	Error(c, errors.New("db down"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Len(t, c.Errors, 1)
}

func TestAttachment(t *testing.T) {
	c, w := newContext()

	Attachment(c, "leads.csv", "text/csv", []byte("a,b\n"))

	assert.Equal(t, "attachment; filename=leads.csv", w.Header().Get("Content-Disposition"))
	assert.Equal(t, "a,b\n", w.Body.String())
}

func TestJSONReportsProcessingTime(t *testing.T) {
	c, w := newContext()
	Begin(c)
	SetMeta(c, "cache_hit", false)

	JSON(c, http.StatusOK, "ok", nil)

	var env Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.Contains(t, env.Meta, "processing_time_ms")
	assert.Equal(t, false, env.Meta["cache_hit"])
}

func TestJSONWithoutMetaOmitsBlock(t *testing.T) {
	c, w := newContext()

	JSON(c, http.StatusOK, "ok", nil)

	assert.NotContains(t, w.Body.String(), `"meta"`)
}

func TestAttachmentQuotesAwkwardNames(t *testing.T) {
	c, w := newContext()

	Attachment(c, "Leads 2024.xlsx", "application/octet-stream", nil)

	assert.Equal(t, `attachment; filename="Leads 2024.xlsx"`, w.Header().Get("Content-Disposition"))
}
