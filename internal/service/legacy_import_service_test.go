package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/edu-crm-api/internal/models"
	"github.com/noah-isme/edu-crm-api/pkg/contentapi"
	appErrors "github.com/noah-isme/edu-crm-api/pkg/errors"
)

type fakeLegacySource struct {
	collections map[string][]contentapi.Record
	limits      map[string]int
	err         error
}

func (f *fakeLegacySource) FetchAll(_ context.Context, collection string, limit int) ([]contentapi.Record, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.limits == nil {
		f.limits = map[string]int{}
	}
	f.limits[collection] = limit
	return f.collections[collection], nil
}

type capturingCreators struct {
	agencies []models.AgencyRequest
	leads    []models.LeadRequest
	students []models.StudentRequest
}

func (c *capturingCreators) agencyCreator() agencyCreatorFunc {
	return func(_ context.Context, req models.AgencyRequest, _ models.Actor) (*models.Agency, error) {
		if req.Name == "" {
			return nil, appErrors.Validation("Name is required")
		}
		c.agencies = append(c.agencies, req)
		return &models.Agency{ID: "new-" + req.Name}, nil
	}
}

type agencyCreatorFunc func(context.Context, models.AgencyRequest, models.Actor) (*models.Agency, error)

func (f agencyCreatorFunc) Create(ctx context.Context, req models.AgencyRequest, actor models.Actor) (*models.Agency, error) {
	return f(ctx, req, actor)
}

type leadCreatorFunc func(context.Context, models.LeadRequest, models.Actor) (*models.Lead, error)

func (f leadCreatorFunc) Create(ctx context.Context, req models.LeadRequest, actor models.Actor) (*models.Lead, error) {
	return f(ctx, req, actor)
}

type studentCreatorFunc func(context.Context, models.StudentRequest, models.Actor) (*models.Student, error)

func (f studentCreatorFunc) Create(ctx context.Context, req models.StudentRequest, actor models.Actor) (*models.Student, error) {
	return f(ctx, req, actor)
}

func TestLegacyImportRemapsAgencies(t *testing.T) {
	source := &fakeLegacySource{collections: map[string][]contentapi.Record{
		models.EntityAgencies: {
			{ID: "7", Attributes: map[string]interface{}{"Name": "Global Ed", "Status": "active"}},
			{ID: "8", Attributes: map[string]interface{}{"Country": "Nepal"}},
		},
		models.EntityLeads: {
			{ID: "1", Attributes: map[string]interface{}{
				"Name":        "Ana",
				"Status":      "contacted",
				"EnquiryDate": "2024-02-01",
				"Agency":      map[string]interface{}{"data": map[string]interface{}{"id": "7"}},
			}},
		},
		models.EntityStudents: {
			{ID: "3", Attributes: map[string]interface{}{"name": "Bo", "Status": "unknown", "agency": "99"}},
		},
	}}
	creators := &capturingCreators{}
	leads := leadCreatorFunc(func(_ context.Context, req models.LeadRequest, _ models.Actor) (*models.Lead, error) {
		creators.leads = append(creators.leads, req)
		return &models.Lead{ID: "l1"}, nil
	})
	students := studentCreatorFunc(func(_ context.Context, req models.StudentRequest, _ models.Actor) (*models.Student, error) {
		creators.students = append(creators.students, req)
		return &models.Student{ID: "s1"}, nil
	})

	svc := NewLegacyImportService(source, creators.agencyCreator(), leads, students, 0, nil)
	tallies, err := svc.Run(context.Background(), models.Actor{UserID: "admin"})
	require.NoError(t, err)

	require.Len(t, tallies, 3)
	assert.Equal(t, models.EntityAgencies, tallies[0].Entity)
	assert.Equal(t, 2, tallies[0].Fetched)
	assert.Equal(t, 1, tallies[0].Created)
	assert.Equal(t, 1, tallies[0].Failed)
	require.Len(t, tallies[0].Errors, 1)
	assert.Equal(t, "8", tallies[0].Errors[0].ID)
	assert.Equal(t, 2, tallies[0].Errors[0].Row)

	assert.Equal(t, models.AgencyStatusActive, creators.agencies[0].Status)

	require.Len(t, creators.leads, 1)
	require.NotNil(t, creators.leads[0].AgencyID)
	assert.Equal(t, "new-Global Ed", *creators.leads[0].AgencyID)
	assert.Equal(t, models.LeadStatusContacted, creators.leads[0].Status)
	require.NotNil(t, creators.leads[0].EnquiryDate)
	assert.Equal(t, 2024, creators.leads[0].EnquiryDate.Year())

	require.Len(t, creators.students, 1)
	assert.Equal(t, "Bo", creators.students[0].Name)
	assert.Nil(t, creators.students[0].AgencyID)
	assert.Empty(t, creators.students[0].Status)

	assert.Equal(t, LegacyFetchLimit, source.limits[models.EntityLeads])
}

func TestLegacyImportFetchFailureAborts(t *testing.T) {
	source := &fakeLegacySource{err: contentapi.ErrUnauthorized}
	creators := &capturingCreators{}

	svc := NewLegacyImportService(source, creators.agencyCreator(), nil, nil, 10, nil)
	_, err := svc.Run(context.Background(), models.Actor{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, contentapi.ErrUnauthorized))
}
