package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/edu-crm-api/internal/models"
	"github.com/noah-isme/edu-crm-api/pkg/table"
)

// Table schemas per entity. Keys are the record Field names.
var (
	LeadTableSchema = table.Schema{
		SearchFields:  []string{"Name", "Email", "Phone", "Course", "Source"},
		StatusField:   "Status",
		CategoryField: "Country",
		DateField:     "EnquiryDate",
		SortFields:    []string{"Name", "Email", "Phone", "Status", "Country", "Source", "Course", "EnquiryDate", "createdAt", "updatedAt"},
	}
	StudentTableSchema = table.Schema{
		SearchFields:  []string{"Name", "Email", "Phone", "Course", "PassportNumber"},
		StatusField:   "Status",
		CategoryField: "Country",
		DateField:     "createdAt",
		SortFields:    []string{"Name", "Email", "Status", "Country", "Course", "Intake", "DateOfBirth", "createdAt", "updatedAt"},
	}
	AgencyTableSchema = table.Schema{
		SearchFields:  []string{"Name", "ContactPerson", "Email", "Phone"},
		StatusField:   "Status",
		CategoryField: "Country",
		DateField:     "createdAt",
		SortFields:    []string{"Name", "ContactPerson", "Email", "Country", "Status", "CommissionRate", "createdAt", "updatedAt"},
	}
	UserTableSchema = table.Schema{
		SearchFields: []string{"FullName", "Email"},
		StatusField:  "Role",
		DateField:    "createdAt",
		SortFields:   []string{"FullName", "Email", "Role", "Active", "LastLogin", "createdAt"},
	}
)

type recentLister[R table.Record] interface {
	ListRecent(ctx context.Context, limit int) ([]R, error)
}

// TableConfig tunes how much data a table view loads.
type TableConfig struct {
	FetchLimit int
	PageSize   int
	CacheTTL   time.Duration
}

// TableQuery is the committed state sent by the dashboard table.
type TableQuery struct {
	Criteria table.Criteria
	Sort     table.SortSpec
	// ToggleSort flips the sort against Sort when set.
	ToggleSort string
	Page       int
	PageSize   int
	Selected   []string
	// ToggleID flips one id in the selection.
	ToggleID string
	// ToggleAll flips the selection of the visible page.
	ToggleAll bool
}

// TableService derives search, filter, sort, page and selection state for one entity table.
type TableService[R table.Record] struct {
	entity string
	source recentLister[R]
	schema table.Schema
	cache  cacheStore
	cfg    TableConfig
	logger *zap.Logger
}

// NewTableService constructs a table service. cache may be nil.
func NewTableService[R table.Record](entity string, source recentLister[R], schema table.Schema, cache cacheStore, cfg TableConfig, logger *zap.Logger) *TableService[R] {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.FetchLimit <= 0 {
		cfg.FetchLimit = maxListPageSize
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = table.DefaultPageSize
	}
	return &TableService[R]{entity: entity, source: source, schema: schema, cache: cache, cfg: cfg, logger: logger}
}

// Entity returns the resource name the table serves.
func (s *TableService[R]) Entity() string {
	return s.entity
}

// Records returns the unfiltered record list the table works on.
func (s *TableService[R]) Records(ctx context.Context) ([]R, error) {
	records, err := loadCached(ctx, s.cache, TableCacheKey(s.entity), s.cfg.CacheTTL, func(ctx context.Context) ([]R, error) {
		return s.source.ListRecent(ctx, s.cfg.FetchLimit)
	})
	if err != nil {
		return nil, internal(err, "failed to load "+s.entity)
	}
	return records, nil
}

// View derives one table page.
func (s *TableService[R]) View(ctx context.Context, q TableQuery) (*table.View[R], error) {
	records, err := s.Records(ctx)
	if err != nil {
		return nil, err
	}

	sort := q.Sort
	if q.ToggleSort != "" {
		sort = sort.Toggle(q.ToggleSort)
	}
	pageSize := q.PageSize
	if pageSize <= 0 {
		pageSize = s.cfg.PageSize
	}
	if pageSize > maxListPageSize {
		pageSize = maxListPageSize
	}
	selected := table.NewSelection(q.Selected...)
	if q.ToggleID != "" {
		selected = selected.Toggle(q.ToggleID)
	}

	view := table.Derive(records, s.schema, table.State{
		Criteria: q.Criteria,
		Sort:     sort,
		Page:     q.Page,
		PageSize: pageSize,
		Selected: selected,
	})
	if q.ToggleAll {
		visible := table.IDs(view.Items)
		view.Selection = view.Selection.ToggleAll(visible)
		view.AllSelected = view.Selection.AllSelected(visible)
	}
	return &view, nil
}

// Rows returns every filtered and sorted record, ignoring pagination.
func (s *TableService[R]) Rows(ctx context.Context, q TableQuery) ([]R, error) {
	records, err := s.Records(ctx)
	if err != nil {
		return nil, err
	}
	sort := q.Sort
	if q.ToggleSort != "" {
		sort = sort.Toggle(q.ToggleSort)
	}
	if !s.schema.Sortable(sort.Key) {
		sort = table.SortSpec{}
	}
	return table.ApplySort(table.ApplyFilters(records, s.schema, q.Criteria), sort), nil
}

// IDs lists every record id currently in the table.
func (s *TableService[R]) IDs(ctx context.Context) ([]string, error) {
	records, err := s.Records(ctx)
	if err != nil {
		return nil, err
	}
	return table.IDs(records), nil
}

// TableMeta is the non-item part of a table response.
type TableMeta struct {
	FilteredCount int            `json:"filtered_count"`
	Selection     []string       `json:"selection"`
	AllSelected   bool           `json:"all_selected"`
	Sort          table.SortSpec `json:"sort"`
}

// TableResponse splits a view into envelope parts.
func TableResponse[R table.Record](view *table.View[R]) ([]R, *models.Pagination, TableMeta) {
	pagination := &models.Pagination{
		Page:       view.Page,
		PageSize:   view.PageSize,
		TotalCount: view.FilteredCount,
		TotalPages: view.TotalPages,
	}
	return view.Items, pagination, TableMeta{
		FilteredCount: view.FilteredCount,
		Selection:     view.Selection.IDs(),
		AllSelected:   view.AllSelected,
		Sort:          view.Sort,
	}
}
