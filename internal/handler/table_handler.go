package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/edu-crm-api/internal/models"
	"github.com/noah-isme/edu-crm-api/internal/service"
	appErrors "github.com/noah-isme/edu-crm-api/pkg/errors"
	"github.com/noah-isme/edu-crm-api/pkg/response"
	"github.com/noah-isme/edu-crm-api/pkg/table"
)

// EntityTable is a typed table erased for the shared table routes.
type EntityTable interface {
	View(ctx context.Context, q service.TableQuery) (interface{}, *models.Pagination, service.TableMeta, error)
	Export(ctx context.Context, format string, q service.TableQuery) (*service.ExportFile, error)
}

type typedTable[R table.Record] struct {
	table    *service.TableService[R]
	exporter *service.ExportService[R]
}

// BindTable adapts a table service and its exporter. exporter may be nil.
func BindTable[R table.Record](tbl *service.TableService[R], exporter *service.ExportService[R]) EntityTable {
	return typedTable[R]{table: tbl, exporter: exporter}
}

func (t typedTable[R]) View(ctx context.Context, q service.TableQuery) (interface{}, *models.Pagination, service.TableMeta, error) {
	view, err := t.table.View(ctx, q)
	if err != nil {
		return nil, nil, service.TableMeta{}, err
	}
	items, pagination, meta := service.TableResponse(view)
	return items, pagination, meta, nil
}

func (t typedTable[R]) Export(ctx context.Context, format string, q service.TableQuery) (*service.ExportFile, error) {
	if t.exporter == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "export is not available for "+t.table.Entity())
	}
	return t.exporter.Export(ctx, format, q)
}

// TableHandler serves the searchable, sortable and selectable entity tables.
type TableHandler struct {
	tables map[string]EntityTable
}

// NewTableHandler constructs TableHandler keyed by entity name.
func NewTableHandler(tables map[string]EntityTable) *TableHandler {
	return &TableHandler{tables: tables}
}

func (h *TableHandler) lookup(c *gin.Context, entity string) (EntityTable, bool) {
	tbl, ok := h.tables[entity]
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("no table for %s", entity)))
		return nil, false
	}
	return tbl, true
}

// View godoc
// @Summary Table view
// @Description Filters, sorts and pages the most recent records. The selection round-trips through selected, toggle_id and toggle_all.
// @Tags Tables
// @Produce json
// @Param entity path string true "leads, students, agencies or users"
// @Param search query string false "Free text"
// @Param status query string false "Status, or all"
// @Param country query string false "Country, or all"
// @Param from query string false "Date from"
// @Param to query string false "Date to"
// @Param sort query string false "Sort key"
// @Param dir query string false "asc or desc"
// @Param toggle query string false "Column to toggle the sort on"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Param selected query string false "Comma separated selected ids"
// @Param toggle_id query string false "Id to flip in the selection"
// @Param toggle_all query bool false "Flip the selection of the visible page"
// @Success 200 {object} response.Envelope
// @Router /{entity}/table [get]
func (h *TableHandler) View(entity string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tbl, ok := h.lookup(c, entity)
		if !ok {
			return
		}
		q, err := tableQuery(c)
		if err != nil {
			response.Error(c, err)
			return
		}
		items, pagination, meta, err := tbl.View(c.Request.Context(), q)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.SetMeta(c, "filtered_count", meta.FilteredCount)
		response.SetMeta(c, "selection", meta.Selection)
		response.SetMeta(c, "all_selected", meta.AllSelected)
		response.SetMeta(c, "sort", meta.Sort)
		response.JSON(c, http.StatusOK, items, pagination)
	}
}

// Export godoc
// @Summary Export table
// @Description Renders every row matching the table filters, ignoring pagination.
// @Tags Tables
// @Produce octet-stream
// @Param entity path string true "leads, students, agencies or users"
// @Param format query string true "csv, xlsx or pdf"
// @Success 200 {file} binary
// @Failure 415 {object} response.Envelope
// @Router /{entity}/export [get]
func (h *TableHandler) Export(entity string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tbl, ok := h.lookup(c, entity)
		if !ok {
			return
		}
		q, err := tableQuery(c)
		if err != nil {
			response.Error(c, err)
			return
		}
		file, err := tbl.Export(c.Request.Context(), c.DefaultQuery("format", "csv"), q)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.Attachment(c, file.Filename, file.ContentType, file.Body)
	}
}
