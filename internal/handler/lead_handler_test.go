package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/edu-crm-api/internal/middleware"
	"github.com/noah-isme/edu-crm-api/internal/models"
	appErrors "github.com/noah-isme/edu-crm-api/pkg/errors"
)

type fakeLeadSrv struct {
	filter   models.ListFilter
	request  models.LeadRequest
	actor    models.Actor
	populate bool
	deleted  string
	err      error
}

func (f *fakeLeadSrv) List(_ context.Context, filter models.ListFilter) ([]models.Lead, *models.Pagination, error) {
	f.filter = filter
	return []models.Lead{{ID: "l1", Name: "Ada"}}, models.NewPagination(filter.Page, filter.PageSize, 1), f.err
}

func (f *fakeLeadSrv) Get(_ context.Context, id string, populate bool) (*models.Lead, error) {
	f.populate = populate
	if f.err != nil {
		return nil, f.err
	}
	return &models.Lead{ID: id, Name: "Ada"}, nil
}

func (f *fakeLeadSrv) Create(_ context.Context, req models.LeadRequest, actor models.Actor) (*models.Lead, error) {
	f.request, f.actor = req, actor
	if f.err != nil {
		return nil, f.err
	}
	return &models.Lead{ID: "l1", Name: req.Name, Status: req.Status}, nil
}

func (f *fakeLeadSrv) Update(_ context.Context, id string, req models.LeadRequest, actor models.Actor) (*models.Lead, error) {
	f.request, f.actor = req, actor
	return &models.Lead{ID: id, Name: req.Name}, f.err
}

func (f *fakeLeadSrv) Delete(_ context.Context, id string, actor models.Actor) error {
	f.deleted, f.actor = id, actor
	return f.err
}

func newTestContext(method, target, body string) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		c.Request.Header.Set("Content-Type", "application/json")
	}
	return c, rec
}

func asUser(c *gin.Context, id string, role models.UserRole) {
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: id, Role: role})
}

type responseEnvelope struct {
	Data       map[string]interface{} `json:"data"`
	Error      map[string]interface{} `json:"error"`
	Pagination map[string]interface{} `json:"pagination"`
	Meta       map[string]interface{} `json:"meta"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) responseEnvelope {
	t.Helper()
	var env responseEnvelope
	decodeInto(t, rec.Body.Bytes(), &env)
	return env
}

func decodeInto(t *testing.T, body []byte, dest interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(body, dest))
}

func TestLeadHandlerCreateAcceptsDataWrapper(t *testing.T) {
	svc := &fakeLeadSrv{}
	handler := NewLeadHandler(svc)
	c, rec := newTestContext(http.MethodPost, "/leads", `{"data":{"Name":"Ada","Status":"Contacted"}}`)
	asUser(c, "u1", models.RoleCounsellor)

	handler.Create(c)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "Ada", svc.request.Name)
	assert.Equal(t, "u1", svc.actor.UserID)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, "Contacted", env.Data["Status"])
}

func TestLeadHandlerCreateAcceptsBareBody(t *testing.T) {
	svc := &fakeLeadSrv{}
	c, rec := newTestContext(http.MethodPost, "/leads", `{"Name":"Grace"}`)

	NewLeadHandler(svc).Create(c)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "Grace", svc.request.Name)
}

func TestLeadHandlerCreateRejectsMalformedJSON(t *testing.T) {
	svc := &fakeLeadSrv{}
	c, rec := newTestContext(http.MethodPost, "/leads", `{"Name":`)

	NewLeadHandler(svc).Create(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, svc.request.Name)
}

func TestLeadHandlerListReadsStrapiQuery(t *testing.T) {
	svc := &fakeLeadSrv{}
	c, rec := newTestContext(http.MethodGet,
		"/leads?search=+ada+&status=all&country=Kenya&pagination%5Bpage%5D=2&pagination%5BpageSize%5D=50&sort=Name&order=desc&from=2024-01-01", "")

	NewLeadHandler(svc).List(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ada", svc.filter.Search)
	assert.Empty(t, svc.filter.Status)
	assert.Equal(t, "Kenya", svc.filter.Country)
	assert.Equal(t, 2, svc.filter.Page)
	assert.Equal(t, 50, svc.filter.PageSize)
	assert.Equal(t, "Name", svc.filter.SortBy)
	assert.Equal(t, "desc", svc.filter.SortOrder)
	require.NotNil(t, svc.filter.From)
	assert.Equal(t, 2024, svc.filter.From.Year())
	assert.Nil(t, svc.filter.To)

	env := decodeEnvelope(t, rec)
	assert.Equal(t, float64(2), env.Pagination["page"])
}

func TestLeadHandlerListDayRangeCoversWholeDay(t *testing.T) {
	svc := &fakeLeadSrv{}
	c, rec := newTestContext(http.MethodGet, "/leads?from=2024-01-31&to=2024-01-31", "")

	NewLeadHandler(svc).List(c)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, svc.filter.From)
	require.NotNil(t, svc.filter.To)
	assert.Equal(t, time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC), *svc.filter.From)
	assert.Equal(t, time.Date(2024, 1, 31, 23, 59, 59, 999999999, time.UTC), *svc.filter.To)
}

func TestLeadHandlerListRejectsBadDate(t *testing.T) {
	svc := &fakeLeadSrv{}
	c, rec := newTestContext(http.MethodGet, "/leads?to=someday", "")

	NewLeadHandler(svc).List(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLeadHandlerGetPopulate(t *testing.T) {
	svc := &fakeLeadSrv{}
	c, rec := newTestContext(http.MethodGet, "/leads/l9?populate=*", "")
	c.Params = gin.Params{{Key: "id", Value: "l9"}}

	NewLeadHandler(svc).Get(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, svc.populate)
	assert.Equal(t, "l9", decodeEnvelope(t, rec).Data["id"])
}

func TestLeadHandlerGetNotFound(t *testing.T) {
	svc := &fakeLeadSrv{err: appErrors.Clone(appErrors.ErrNotFound, "lead not found")}
	c, rec := newTestContext(http.MethodGet, "/leads/missing", "")
	c.Params = gin.Params{{Key: "id", Value: "missing"}}

	NewLeadHandler(svc).Get(c)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", decodeEnvelope(t, rec).Error["code"])
}

func TestLeadHandlerDelete(t *testing.T) {
	svc := &fakeLeadSrv{}
	c, rec := newTestContext(http.MethodDelete, "/leads/l3", "")
	c.Params = gin.Params{{Key: "id", Value: "l3"}}
	asUser(c, "admin-1", models.RoleAdmin)

	NewLeadHandler(svc).Delete(c)

	assert.Equal(t, http.StatusNoContent, c.Writer.Status())
	assert.Empty(t, rec.Body.String())
	assert.Equal(t, "l3", svc.deleted)
	assert.Equal(t, models.RoleAdmin, svc.actor.Role)
}
