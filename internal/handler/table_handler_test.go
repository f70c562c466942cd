package handler

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/edu-crm-api/internal/models"
	"github.com/noah-isme/edu-crm-api/internal/service"
)

type recentLeads []models.Lead

func (r recentLeads) ListRecent(context.Context, int) ([]models.Lead, error) {
	return r, nil
}

func leadTable() *TableHandler {
	day := func(d int) *time.Time {
		t := time.Date(2024, 3, d, 0, 0, 0, 0, time.UTC)
		return &t
	}
	source := recentLeads{
		{ID: "1", Name: "John Smith", Status: "New Lead", Country: "Kenya", EnquiryDate: day(1)},
		{ID: "2", Name: "Jane", Status: "Contacted", Country: "Nepal", EnquiryDate: day(5)},
		{ID: "3", Name: "ann", Status: "Contacted", Country: "Kenya", EnquiryDate: day(9)},
	}
	tbl := service.NewTableService[models.Lead](models.EntityLeads, source, service.LeadTableSchema, nil, service.TableConfig{}, nil)
	exporter := service.NewExportService(tbl, "Leads", service.LeadExportColumns, nil, nil)
	return NewTableHandler(map[string]EntityTable{models.EntityLeads: BindTable(tbl, exporter)})
}

func TestTableViewFiltersSortsAndSelects(t *testing.T) {
	c, rec := newTestContext(http.MethodGet,
		"/leads/table?status=Contacted&sort=Name&dir=asc&page_size=1&selected=2,9&toggle_id=3", "")

	leadTable().View(models.EntityLeads)(c)

	require.Equal(t, http.StatusOK, rec.Code)
	var env struct {
		Data       []models.Lead          `json:"data"`
		Pagination models.Pagination      `json:"pagination"`
		Meta       map[string]interface{} `json:"meta"`
	}
	decodeInto(t, rec.Body.Bytes(), &env)

	require.Len(t, env.Data, 1)
	assert.Equal(t, "3", env.Data[0].ID)
	assert.Equal(t, 2, env.Pagination.TotalPages)
	assert.Equal(t, float64(2), env.Meta["filtered_count"])
	assert.ElementsMatch(t, []interface{}{"2", "3"}, env.Meta["selection"])
	assert.Equal(t, true, env.Meta["all_selected"])
	assert.Equal(t, map[string]interface{}{"key": "Name", "dir": "asc"}, env.Meta["sort"])
}

func TestTableViewToggleSortFlipsDirection(t *testing.T) {
	c, rec := newTestContext(http.MethodGet, "/leads/table?sort=Name&dir=asc&toggle=Name", "")

	leadTable().View(models.EntityLeads)(c)

	require.Equal(t, http.StatusOK, rec.Code)
	var env struct {
		Data []models.Lead `json:"data"`
	}
	decodeInto(t, rec.Body.Bytes(), &env)
	require.Len(t, env.Data, 3)
	assert.Equal(t, "1", env.Data[0].ID)
	assert.Equal(t, "3", env.Data[2].ID)
}

func TestTableViewUnknownEntity(t *testing.T) {
	c, rec := newTestContext(http.MethodGet, "/courses/table", "")

	leadTable().View("courses")(c)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTableExportCSVIgnoresPagination(t *testing.T) {
	c, rec := newTestContext(http.MethodGet, "/leads/export?format=csv&country=Kenya&page_size=1", "")

	leadTable().Export(models.EntityLeads)(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment; filename=leads_")
	body := rec.Body.String()
	assert.Contains(t, body, "John Smith")
	assert.Contains(t, body, "ann")
	assert.NotContains(t, body, "Jane")
}

func TestTableExportRejectsUnknownFormat(t *testing.T) {
	c, rec := newTestContext(http.MethodGet, "/leads/export?format=docx", "")

	leadTable().Export(models.EntityLeads)(c)

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestTableExportWithoutExporter(t *testing.T) {
	handler := NewTableHandler(map[string]EntityTable{
		models.EntityLeads: BindTable(service.NewTableService[models.Lead](models.EntityLeads, recentLeads{}, service.LeadTableSchema, nil, service.TableConfig{}, nil), nil),
	})
	c, rec := newTestContext(http.MethodGet, "/leads/export?format=csv", "")

	handler.Export(models.EntityLeads)(c)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "export is not available"))
}

func TestTableViewDayRangeKeepsLaterSameDay(t *testing.T) {
	morning := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)
	late := time.Date(2024, 3, 5, 23, 30, 0, 0, time.UTC)
	next := time.Date(2024, 3, 6, 0, 0, 0, 0, time.UTC)
	source := recentLeads{
		{ID: "1", Name: "Ann", EnquiryDate: &morning},
		{ID: "2", Name: "Bea", EnquiryDate: &late},
		{ID: "3", Name: "Cal", EnquiryDate: &next},
	}
	tbl := service.NewTableService[models.Lead](models.EntityLeads, source, service.LeadTableSchema, nil, service.TableConfig{}, nil)
	handler := NewTableHandler(map[string]EntityTable{models.EntityLeads: BindTable(tbl, nil)})
	c, rec := newTestContext(http.MethodGet, "/leads/table?from=2024-03-05&to=2024-03-05", "")

	handler.View(models.EntityLeads)(c)

	require.Equal(t, http.StatusOK, rec.Code)
	var env struct {
		Data []models.Lead `json:"data"`
	}
	decodeInto(t, rec.Body.Bytes(), &env)
	ids := make([]string, 0, len(env.Data))
	for _, lead := range env.Data {
		ids = append(ids, lead.ID)
	}
	assert.ElementsMatch(t, []string{"1", "2"}, ids)
}

func TestTableViewRejectsMalformedToggleAll(t *testing.T) {
	c, rec := newTestContext(http.MethodGet, "/leads/table?toggle_all=yes", "")

	leadTable().View(models.EntityLeads)(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "toggle_all must be true or false", decodeEnvelope(t, rec).Error["message"])
}
