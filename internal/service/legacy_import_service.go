package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/edu-crm-api/internal/models"
	"github.com/noah-isme/edu-crm-api/pkg/contentapi"
	appErrors "github.com/noah-isme/edu-crm-api/pkg/errors"
)

// LegacyFetchLimit caps how many records are pulled per collection.
const LegacyFetchLimit = 1000

type legacyFetcher interface {
	FetchAll(ctx context.Context, collection string, limit int) ([]contentapi.Record, error)
}

type agencyCreator interface {
	Create(ctx context.Context, req models.AgencyRequest, actor models.Actor) (*models.Agency, error)
}

type leadCreator interface {
	Create(ctx context.Context, req models.LeadRequest, actor models.Actor) (*models.Lead, error)
}

type studentCreator interface {
	Create(ctx context.Context, req models.StudentRequest, actor models.Actor) (*models.Student, error)
}

// LegacyTally counts the outcome of one migrated collection.
type LegacyTally struct {
	Entity  string            `json:"entity"`
	Fetched int               `json:"fetched"`
	Created int               `json:"created"`
	Failed  int               `json:"failed"`
	Errors  []models.RowError `json:"errors"`
}

// LegacyImportService copies agencies, leads and students from the old content API.
type LegacyImportService struct {
	source   legacyFetcher
	agencies agencyCreator
	leads    leadCreator
	students studentCreator
	limit    int
	logger   *zap.Logger
}

// NewLegacyImportService constructs a LegacyImportService. A non-positive limit uses LegacyFetchLimit.
func NewLegacyImportService(source legacyFetcher, agencies agencyCreator, leads leadCreator, students studentCreator, limit int, logger *zap.Logger) *LegacyImportService {
	if limit <= 0 {
		limit = LegacyFetchLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LegacyImportService{source: source, agencies: agencies, leads: leads, students: students, limit: limit, logger: logger}
}

// Run migrates agencies first so lead and student relations can be remapped to the new ids.
// A fetch failure aborts the run; a record that fails validation is tallied and skipped.
func (s *LegacyImportService) Run(ctx context.Context, actor models.Actor) ([]LegacyTally, error) {
	agencyIDs := make(map[string]string)
	tallies := make([]LegacyTally, 0, 3)

	agencies, err := s.migrate(ctx, models.EntityAgencies, func(rec contentapi.Record) error {
		created, err := s.agencies.Create(ctx, legacyAgency(rec), actor)
		if err != nil {
			return err
		}
		agencyIDs[rec.ID] = created.ID
		return nil
	})
	if err != nil {
		return nil, err
	}
	tallies = append(tallies, agencies)

	leads, err := s.migrate(ctx, models.EntityLeads, func(rec contentapi.Record) error {
		_, err := s.leads.Create(ctx, legacyLead(rec, agencyIDs), actor)
		return err
	})
	if err != nil {
		return nil, err
	}
	tallies = append(tallies, leads)

	students, err := s.migrate(ctx, models.EntityStudents, func(rec contentapi.Record) error {
		_, err := s.students.Create(ctx, legacyStudent(rec, agencyIDs), actor)
		return err
	})
	if err != nil {
		return nil, err
	}
	tallies = append(tallies, students)
	return tallies, nil
}

func (s *LegacyImportService) migrate(ctx context.Context, collection string, create func(contentapi.Record) error) (LegacyTally, error) {
	tally := LegacyTally{Entity: collection, Errors: []models.RowError{}}
	records, err := s.source.FetchAll(ctx, collection, s.limit)
	if err != nil {
		return tally, fmt.Errorf("fetch %s: %w", collection, err)
	}
	tally.Fetched = len(records)

	for i, rec := range records {
		if err := ctx.Err(); err != nil {
			return tally, err
		}
		if err := create(rec); err != nil {
			tally.Failed++
			tally.Errors = append(tally.Errors, models.RowError{Row: i + 1, ID: rec.ID, Message: appErrors.FromError(err).Message})
			continue
		}
		tally.Created++
	}
	s.logger.Info("legacy collection migrated",
		zap.String("collection", collection),
		zap.Int("fetched", tally.Fetched),
		zap.Int("created", tally.Created),
		zap.Int("failed", tally.Failed),
	)
	return tally, nil
}

// legacyText returns the first non-empty attribute among keys.
func legacyText(rec contentapi.Record, keys ...string) string {
	for _, key := range keys {
		if v := rec.String(key); v != "" {
			return v
		}
	}
	return ""
}

func legacyAgencyRef(rec contentapi.Record, agencyIDs map[string]string) *string {
	for _, key := range []string{"Agency", "agency"} {
		for _, legacyID := range rec.Relation(key) {
			if id, ok := agencyIDs[legacyID]; ok {
				return &id
			}
		}
	}
	return nil
}

func legacyStatus(allowed []string, raw string) string {
	if status, ok := models.CanonicalStatus(allowed, raw); ok {
		return status
	}
	return ""
}

func legacyAgency(rec contentapi.Record) models.AgencyRequest {
	req := models.AgencyRequest{
		Name:          legacyText(rec, "Name", "name", "AgencyName"),
		ContactPerson: legacyText(rec, "ContactPerson", "contactPerson"),
		Email:         legacyText(rec, "Email", "email"),
		Phone:         legacyText(rec, "Phone", "phone"),
		Country:       legacyText(rec, "Country", "country"),
		Status:        legacyStatus(models.AgencyStatuses, legacyText(rec, "Status", "status")),
	}
	req.CommissionRate = rec.Float("CommissionRate")
	if req.CommissionRate == nil {
		req.CommissionRate = rec.Float("commissionRate")
	}
	return req
}

func legacyLead(rec contentapi.Record, agencyIDs map[string]string) models.LeadRequest {
	req := models.LeadRequest{
		Name:     legacyText(rec, "Name", "name", "FullName"),
		Email:    legacyText(rec, "Email", "email"),
		Phone:    legacyText(rec, "Phone", "phone"),
		Status:   legacyStatus(models.LeadStatuses, legacyText(rec, "Status", "status")),
		Country:  legacyText(rec, "Country", "country"),
		Source:   legacyText(rec, "Source", "source"),
		Course:   legacyText(rec, "Course", "course"),
		Notes:    legacyText(rec, "Notes", "notes"),
		AgencyID: legacyAgencyRef(rec, agencyIDs),
	}
	req.EnquiryDate = rec.Time("EnquiryDate")
	if req.EnquiryDate == nil {
		req.EnquiryDate = rec.Time("createdAt")
	}
	return req
}

func legacyStudent(rec contentapi.Record, agencyIDs map[string]string) models.StudentRequest {
	req := models.StudentRequest{
		Name:           legacyText(rec, "Name", "name", "FullName"),
		Email:          legacyText(rec, "Email", "email"),
		Phone:          legacyText(rec, "Phone", "phone"),
		Status:         legacyStatus(models.StudentStatuses, legacyText(rec, "Status", "status")),
		Country:        legacyText(rec, "Country", "country"),
		Course:         legacyText(rec, "Course", "course"),
		Intake:         legacyText(rec, "Intake", "intake"),
		PassportNumber: legacyText(rec, "PassportNumber", "passportNumber"),
		AgencyID:       legacyAgencyRef(rec, agencyIDs),
	}
	req.DateOfBirth = rec.Time("DateOfBirth")
	return req
}
