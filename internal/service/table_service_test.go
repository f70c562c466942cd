package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/edu-crm-api/internal/models"
	appErrors "github.com/noah-isme/edu-crm-api/pkg/errors"
	"github.com/noah-isme/edu-crm-api/pkg/table"
)

type stubRecentLeads struct {
	leads []models.Lead
	calls int
	limit int
	err   error
}

func (s *stubRecentLeads) ListRecent(ctx context.Context, limit int) ([]models.Lead, error) {
	s.calls++
	s.limit = limit
	if s.err != nil {
		return nil, s.err
	}
	return s.leads, nil
}

type memoryCache struct {
	entries map[string][]byte
	ttls    map[string]time.Duration
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (m *memoryCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	raw, ok := m.entries[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dest)
}

func (m *memoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.entries[key] = raw
	m.ttls[key] = ttl
	return nil
}

func sampleLeads() []models.Lead {
	day := func(d int) *time.Time {
		t := time.Date(2024, 3, d, 0, 0, 0, 0, time.UTC)
		return &t
	}
	return []models.Lead{
		{ID: "1", Name: "John Smith", Email: "john@x.com", Status: "New Lead", Country: "Kenya", EnquiryDate: day(1)},
		{ID: "2", Name: "Jane", Email: "jane@y.com", Status: "Contacted", Country: "Nepal", EnquiryDate: day(5)},
		{ID: "3", Name: "ann", Email: "ann@z.com", Status: "Contacted", Country: "Kenya", EnquiryDate: day(9)},
		{ID: "4", Name: "Bob", Status: "Lost ", Country: "India"},
	}
}

func newLeadTable(src *stubRecentLeads, cache cacheStore) *TableService[models.Lead] {
	return NewTableService[models.Lead](models.EntityLeads, src, LeadTableSchema, cache, TableConfig{FetchLimit: 500, PageSize: 2, CacheTTL: time.Minute}, zap.NewNop())
}

func TestTableServiceViewFiltersAndPaginates(t *testing.T) {
	src := &stubRecentLeads{leads: sampleLeads()}
	svc := newLeadTable(src, nil)

	view, err := svc.View(context.Background(), TableQuery{Criteria: table.Criteria{Status: "Contacted"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"2", "3"}, table.IDs(view.Items))
	assert.Equal(t, 2, view.FilteredCount)
	assert.Equal(t, 4, view.TotalCount)
	assert.Equal(t, 1, view.TotalPages)
	assert.Equal(t, 500, src.limit)
}

func TestTableServiceSearchMatchesEmail(t *testing.T) {
	svc := newLeadTable(&stubRecentLeads{leads: sampleLeads()}, nil)

	view, err := svc.View(context.Background(), TableQuery{Criteria: table.Criteria{Search: "john"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, table.IDs(view.Items))
}

func TestTableServiceToggleSortAndClampPage(t *testing.T) {
	svc := newLeadTable(&stubRecentLeads{leads: sampleLeads()}, nil)

	view, err := svc.View(context.Background(), TableQuery{
		Sort:       table.SortSpec{Key: "Name", Dir: table.Asc},
		ToggleSort: "Name",
		Page:       9,
	})
	require.NoError(t, err)
	assert.Equal(t, table.SortSpec{Key: "Name", Dir: table.Desc}, view.Sort)
	assert.Equal(t, 2, view.Page)
	assert.NotEmpty(t, view.Items)
}

func TestTableServiceSelectionPrunedAndToggled(t *testing.T) {
	svc := newLeadTable(&stubRecentLeads{leads: sampleLeads()}, nil)

	view, err := svc.View(context.Background(), TableQuery{Selected: []string{"1", "ghost"}, ToggleID: "2"})
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, view.Selection.IDs())
	assert.True(t, view.AllSelected)

	view, err = svc.View(context.Background(), TableQuery{Selected: []string{"1", "2"}, ToggleAll: true})
	require.NoError(t, err)
	assert.Empty(t, view.Selection.IDs())
	assert.False(t, view.AllSelected)
}

func TestTableServiceRowsIgnoresPagination(t *testing.T) {
	svc := newLeadTable(&stubRecentLeads{leads: sampleLeads()}, nil)

	rows, err := svc.Rows(context.Background(), TableQuery{Criteria: table.Criteria{Category: "Kenya"}, Sort: table.SortSpec{Key: "EnquiryDate", Dir: table.Desc}, PageSize: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"3", "1"}, table.IDs(rows))
}

func TestTableServiceUsesCache(t *testing.T) {
	src := &stubRecentLeads{leads: sampleLeads()}
	cache := newMemoryCache()
	svc := newLeadTable(src, cache)

	_, err := svc.View(context.Background(), TableQuery{})
	require.NoError(t, err)
	_, err = svc.View(context.Background(), TableQuery{})
	require.NoError(t, err)

	assert.Equal(t, 1, src.calls)
	assert.Contains(t, cache.entries, TableCacheKey(models.EntityLeads))
	assert.Equal(t, time.Minute, cache.ttls[TableCacheKey(models.EntityLeads)])
}

func TestTableServiceSourceError(t *testing.T) {
	svc := newLeadTable(&stubRecentLeads{err: errors.New("db down")}, nil)

	_, err := svc.View(context.Background(), TableQuery{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInternal.Code, appErrors.FromError(err).Code)
}

func TestTableResponse(t *testing.T) {
	svc := newLeadTable(&stubRecentLeads{leads: sampleLeads()}, nil)
	view, err := svc.View(context.Background(), TableQuery{Selected: []string{"4"}})
	require.NoError(t, err)

	items, pagination, meta := TableResponse(view)
	assert.Len(t, items, 2)
	assert.Equal(t, 4, pagination.TotalCount)
	assert.Equal(t, 2, pagination.TotalPages)
	assert.Equal(t, []string{"4"}, meta.Selection)
	assert.False(t, meta.AllSelected)
}
