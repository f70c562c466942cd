package handler

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/edu-crm-api/internal/models"
	appErrors "github.com/noah-isme/edu-crm-api/pkg/errors"
)

type fakeBulkSrv struct {
	entity string
	req    models.BulkRequest
	err    error
}

func (f *fakeBulkSrv) Apply(_ context.Context, entity string, req models.BulkRequest, _ models.Actor) (*models.BulkResult, error) {
	f.entity, f.req = entity, req
	if f.err != nil {
		return nil, f.err
	}
	return &models.BulkResult{Action: req.Action, Requested: len(req.IDs), Succeeded: len(req.IDs)}, nil
}

type fakeImportSrv struct {
	entity   string
	filename string
	content  string
	dryRun   bool
}

func (f *fakeImportSrv) Import(_ context.Context, entity, filename string, r io.Reader, dryRun bool, _ models.Actor) (*models.ImportResult, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	f.entity, f.filename, f.content, f.dryRun = entity, filename, string(body), dryRun
	return &models.ImportResult{Total: 1, Created: 1, DryRun: dryRun}, nil
}

func TestBulkHandlerPassesEntity(t *testing.T) {
	bulk := &fakeBulkSrv{}
	handler := NewOperationsHandler(bulk, nil)
	c, rec := newTestContext(http.MethodPost, "/leads/bulk", `{"action":"status","ids":["1","2"],"status":"Contacted"}`)

	handler.Bulk(models.EntityLeads)(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.EntityLeads, bulk.entity)
	assert.Equal(t, []string{"1", "2"}, bulk.req.IDs)
	assert.Equal(t, float64(2), decodeEnvelope(t, rec).Data["succeeded"])
}

func TestBulkHandlerSurfacesValidation(t *testing.T) {
	bulk := &fakeBulkSrv{err: appErrors.Clone(appErrors.ErrValidation, "invalid bulk payload")}
	c, rec := newTestContext(http.MethodPost, "/leads/bulk", `{"action":"archive"}`)

	NewOperationsHandler(bulk, nil).Bulk(models.EntityLeads)(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func multipartRequest(t *testing.T, target, field, filename, content string, fields map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	if field != "" {
		part, err := writer.CreateFormFile(field, filename)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	req := httptest.NewRequest(http.MethodPost, target, &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func TestImportHandlerReadsMultipart(t *testing.T) {
	imports := &fakeImportSrv{}
	c, rec := newTestContext(http.MethodPost, "/", "")
	c.Request = multipartRequest(t, "/students/import", "file", "students.csv", "Name,Email\nAda,ada@x.com\n", map[string]string{"dry_run": "true"})

	NewOperationsHandler(nil, imports).Import(models.EntityStudents)(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.EntityStudents, imports.entity)
	assert.Equal(t, "students.csv", imports.filename)
	assert.Contains(t, imports.content, "ada@x.com")
	assert.True(t, imports.dryRun)
	assert.Equal(t, true, decodeEnvelope(t, rec).Data["dry_run"])
}

func TestImportHandlerRequiresFile(t *testing.T) {
	imports := &fakeImportSrv{}
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = multipartRequest(t, "/leads/import", "", "", "", map[string]string{"dry_run": "false"})

	NewOperationsHandler(nil, imports).Import(models.EntityLeads)(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, imports.entity)
}
