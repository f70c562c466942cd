package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/edu-crm-api/internal/models"
	appErrors "github.com/noah-isme/edu-crm-api/pkg/errors"
	"github.com/noah-isme/edu-crm-api/pkg/spreadsheet"
)

type mockLeadRepo struct {
	leads   map[string]models.Lead
	created int
}

func newMockLeadRepo(leads ...models.Lead) *mockLeadRepo {
	m := &mockLeadRepo{leads: map[string]models.Lead{}}
	for _, l := range leads {
		m.leads[l.ID] = l
	}
	return m
}

func (m *mockLeadRepo) List(_ context.Context, _ models.ListFilter) ([]models.Lead, int, error) {
	out := make([]models.Lead, 0, len(m.leads))
	for _, l := range m.leads {
		out = append(out, l)
	}
	return out, len(out), nil
}

func (m *mockLeadRepo) ListRecent(ctx context.Context, limit int) ([]models.Lead, error) {
	out, _, err := m.List(ctx, models.ListFilter{})
	return out, err
}

func (m *mockLeadRepo) FindByID(_ context.Context, id string) (*models.Lead, error) {
	l, ok := m.leads[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &l, nil
}

func (m *mockLeadRepo) Create(_ context.Context, lead *models.Lead) error {
	m.created++
	lead.ID = fmt.Sprintf("lead-%d", m.created)
	m.leads[lead.ID] = *lead
	return nil
}

func (m *mockLeadRepo) Update(_ context.Context, lead *models.Lead) error {
	if _, ok := m.leads[lead.ID]; !ok {
		return sql.ErrNoRows
	}
	m.leads[lead.ID] = *lead
	return nil
}

func (m *mockLeadRepo) UpdateStatus(_ context.Context, id, status string) error {
	l, ok := m.leads[id]
	if !ok {
		return sql.ErrNoRows
	}
	l.Status = status
	m.leads[id] = l
	return nil
}

func (m *mockLeadRepo) Delete(_ context.Context, id string) error {
	if _, ok := m.leads[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.leads, id)
	return nil
}

type userLookup map[string]models.User

func (u userLookup) FindByID(_ context.Context, id string) (*models.User, error) {
	user, ok := u[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &user, nil
}

func newTestLeadService(repo *mockLeadRepo, audit *recordingAudit, cache *recordingInvalidator) *LeadService {
	return NewLeadService(LeadServiceParams{
		Repo:     repo,
		Agencies: agencyLookup{"ag-1": {ID: "ag-1", Name: "Global Ed"}},
		Users:    userLookup{"u-1": {ID: "u-1", Email: "c@example.com", FullName: "Cara", Role: models.RoleCounsellor}},
		Audit:    audit,
		Cache:    cache,
	})
}

func TestLeadServiceCreateDefaultsStatus(t *testing.T) {
	repo := newMockLeadRepo()
	audit := &recordingAudit{}
	cache := &recordingInvalidator{}
	svc := newTestLeadService(repo, audit, cache)

	lead, err := svc.Create(context.Background(), models.LeadRequest{Name: " Ravi ", Email: "RAVI@example.com"}, models.Actor{UserID: "u-1"})
	require.NoError(t, err)

	assert.Equal(t, "Ravi", lead.Name)
	assert.Equal(t, "ravi@example.com", lead.Email)
	assert.Equal(t, models.LeadStatusNew, lead.Status)
	require.Len(t, audit.logs, 1)
	assert.Equal(t, []string{TableCacheKey(models.EntityLeads) + "*", dashboardCacheKey + "*"}, cache.patterns)
}

func TestLeadServiceCreateValidation(t *testing.T) {
	svc := newTestLeadService(newMockLeadRepo(), nil, nil)

	_, err := svc.Create(context.Background(), models.LeadRequest{Name: "", Email: "bad"}, models.Actor{})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Contains(t, appErr.Message, "Name is required")

	_, err = svc.Create(context.Background(), models.LeadRequest{Name: "A", Status: "Cold"}, models.Actor{})
	require.Error(t, err)

	ghost := "u-404"
	_, err = svc.Create(context.Background(), models.LeadRequest{Name: "A", AssignedTo: &ghost}, models.Actor{})
	require.Error(t, err)
	assert.Contains(t, appErrors.FromError(err).Message, "AssignedTo")
}

func TestLeadServiceGetPopulate(t *testing.T) {
	agency, assignee := "ag-1", "u-1"
	repo := newMockLeadRepo(models.Lead{ID: "l-1", Name: "Ravi", AgencyID: &agency, AssignedTo: &assignee})
	svc := newTestLeadService(repo, nil, nil)

	lead, err := svc.Get(context.Background(), "l-1", true)
	require.NoError(t, err)
	require.NotNil(t, lead.Agency)
	require.NotNil(t, lead.Assignee)
	assert.Equal(t, "Cara", lead.Assignee.FullName)

	bare, err := svc.Get(context.Background(), "l-1", false)
	require.NoError(t, err)
	assert.Nil(t, bare.Agency)
}

func TestLeadServiceUpdateAndDelete(t *testing.T) {
	repo := newMockLeadRepo(models.Lead{ID: "l-1", Name: "Ravi", Status: models.LeadStatusNew})
	audit := &recordingAudit{}
	svc := newTestLeadService(repo, audit, nil)

	updated, err := svc.Update(context.Background(), "l-1", models.LeadRequest{Name: "Ravi K", Status: models.LeadStatusQualified}, models.Actor{})
	require.NoError(t, err)
	assert.Equal(t, models.LeadStatusQualified, updated.Status)

	require.NoError(t, svc.Delete(context.Background(), "l-1", models.Actor{}))
	_, err = svc.Get(context.Background(), "l-1", false)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
	assert.Len(t, audit.logs, 2)
}

func TestLeadServiceImportRow(t *testing.T) {
	repo := newMockLeadRepo()
	svc := newTestLeadService(repo, nil, nil)
	sheet := &spreadsheet.Sheet{
		Headers: []string{"Name", "Status", "Enquiry"},
		Rows: [][]string{
			{"Ana", "converted", "45292"},
			{"Bo", "frozen", ""},
			{"", "", ""},
		},
	}
	rows := sheet.BindRows(map[string]int{"Name": 0, "Status": 1, "EnquiryDate": 2})

	require.NoError(t, svc.ImportRow(context.Background(), rows[0], false))
	require.Len(t, repo.leads, 1)
	lead := repo.leads["lead-1"]
	assert.Equal(t, models.LeadStatusConverted, lead.Status)
	require.NotNil(t, lead.EnquiryDate)
	assert.Equal(t, 2024, lead.EnquiryDate.Year())

	assert.Error(t, svc.ImportRow(context.Background(), rows[1], false))
	assert.Error(t, svc.ImportRow(context.Background(), rows[2], false))
}

func TestLeadServiceBulkHooks(t *testing.T) {
	repo := newMockLeadRepo(models.Lead{ID: "l-1", Status: models.LeadStatusNew})
	svc := newTestLeadService(repo, nil, nil)

	require.NoError(t, svc.BulkSetStatus(context.Background(), "l-1", models.LeadStatusLost))
	assert.Equal(t, models.LeadStatusLost, repo.leads["l-1"].Status)

	err := svc.BulkDelete(context.Background(), "missing")
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

type mockAgencyRepo struct {
	agencies map[string]models.Agency
}

func (m *mockAgencyRepo) List(_ context.Context, _ models.ListFilter) ([]models.Agency, int, error) {
	out := make([]models.Agency, 0, len(m.agencies))
	for _, a := range m.agencies {
		out = append(out, a)
	}
	return out, len(out), nil
}

func (m *mockAgencyRepo) ListRecent(ctx context.Context, _ int) ([]models.Agency, error) {
	out, _, err := m.List(ctx, models.ListFilter{})
	return out, err
}

func (m *mockAgencyRepo) FindByID(_ context.Context, id string) (*models.Agency, error) {
	a, ok := m.agencies[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &a, nil
}

func (m *mockAgencyRepo) Create(_ context.Context, agency *models.Agency) error {
	agency.ID = fmt.Sprintf("ag-%d", len(m.agencies)+1)
	m.agencies[agency.ID] = *agency
	return nil
}

func (m *mockAgencyRepo) Update(_ context.Context, agency *models.Agency) error {
	m.agencies[agency.ID] = *agency
	return nil
}

func (m *mockAgencyRepo) UpdateStatus(_ context.Context, id, status string) error {
	a := m.agencies[id]
	a.Status = status
	m.agencies[id] = a
	return nil
}

func (m *mockAgencyRepo) Delete(_ context.Context, id string) error {
	if _, ok := m.agencies[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.agencies, id)
	return nil
}

func TestAgencyServiceDeleteInvalidatesDependents(t *testing.T) {
	repo := &mockAgencyRepo{agencies: map[string]models.Agency{"ag-1": {ID: "ag-1", Name: "Global Ed"}}}
	cache := &recordingInvalidator{}
	svc := NewAgencyService(repo, nil, cache, nil, nil)

	require.NoError(t, svc.Delete(context.Background(), "ag-1", models.Actor{}))
	assert.Contains(t, cache.patterns, TableCacheKey(models.EntityAgencies)+"*")
	assert.Contains(t, cache.patterns, TableCacheKey(models.EntityLeads)+"*")
	assert.Contains(t, cache.patterns, TableCacheKey(models.EntityStudents)+"*")
}

func TestAgencyServiceCommissionBounds(t *testing.T) {
	repo := &mockAgencyRepo{agencies: map[string]models.Agency{}}
	svc := NewAgencyService(repo, nil, nil, nil, nil)

	rate := 120.0
	_, err := svc.Create(context.Background(), models.AgencyRequest{Name: "Too Greedy", CommissionRate: &rate}, models.Actor{})
	require.Error(t, err)

	rate = 12.5
	agency, err := svc.Create(context.Background(), models.AgencyRequest{Name: "Fair", CommissionRate: &rate}, models.Actor{})
	require.NoError(t, err)
	assert.Equal(t, models.AgencyStatusActive, agency.Status)
}

func TestAgencyServiceImportRowRejectsBadRate(t *testing.T) {
	svc := NewAgencyService(&mockAgencyRepo{agencies: map[string]models.Agency{}}, nil, nil, nil, nil)
	sheet := &spreadsheet.Sheet{Headers: []string{"Agency", "Commission"}, Rows: [][]string{{"Acme", "ten"}}}
	rows := sheet.BindRows(map[string]int{"Name": 0, "CommissionRate": 1})

	err := svc.ImportRow(context.Background(), rows[0], false)
	require.Error(t, err)
	assert.Contains(t, appErrors.FromError(err).Message, "CommissionRate")
}
