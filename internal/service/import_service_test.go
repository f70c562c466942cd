package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/edu-crm-api/internal/models"
	appErrors "github.com/noah-isme/edu-crm-api/pkg/errors"
	"github.com/noah-isme/edu-crm-api/pkg/spreadsheet"
)

type recordingImporter struct {
	names  []string
	emails []string
	dryRun bool
}

func (r *recordingImporter) ImportRow(ctx context.Context, row spreadsheet.Row, dryRun bool) error {
	r.dryRun = dryRun
	if row.Get("Name") == "" {
		return appErrors.Validation("Name is required")
	}
	r.names = append(r.names, row.Get("Name"))
	r.emails = append(r.emails, row.Get("Email"))
	return nil
}

type importMetricsStub struct {
	created, failed, skipped int
}

func (i *importMetricsStub) RecordImport(entity string, created, failed, skipped int) {
	i.created += created
	i.failed += failed
	i.skipped += skipped
}

func newTestImport(importer rowImporter, cache *recordingInvalidator, audit *recordingAudit, metrics *importMetricsStub) *ImportService {
	return NewImportService(map[string]ImportEntity{
		models.EntityLeads: {Mapping: LeadImportMapping, Importer: importer, Required: []string{"Name"}},
	}, ImportConfig{MaxRows: 3}, audit, cache, metrics, zap.NewNop())
}

func TestLeadImportMappingHeaders(t *testing.T) {
	cases := map[string]string{
		"E-mail":           "Email",
		"Mobile":           "Phone",
		"Mobile Number":    "Phone",
		"Telephone":        "Phone",
		"Full Name":        "Name",
		"Lead Source":      "Source",
		"Lead Status":      "Status",
		"Enquiry Date":     "EnquiryDate",
		"Course Interest":  "Course",
		"Country of Birth": "Country",
		"Remarks":          "Notes",
		"Favourite colour": "",
	}
	for header, want := range cases {
		assert.Equal(t, want, LeadImportMapping.Field(header), header)
	}
}

func TestStudentAndAgencyImportMappingHeaders(t *testing.T) {
	assert.Equal(t, "DateOfBirth", StudentImportMapping.Field("Date of Birth"))
	assert.Equal(t, "PassportNumber", StudentImportMapping.Field("Passport No."))
	assert.Equal(t, "Name", StudentImportMapping.Field("Student Name"))
	assert.Equal(t, "Email", StudentImportMapping.Field("Student E-mail"))
	assert.Equal(t, "ContactPerson", AgencyImportMapping.Field("Contact Person"))
	assert.Equal(t, "CommissionRate", AgencyImportMapping.Field("Commission (%)"))
	assert.Equal(t, "Name", AgencyImportMapping.Field("Agency Name"))
	assert.Equal(t, "CommissionRate", AgencyImportMapping.Field("Rate"))
	assert.Equal(t, "Name", AgencyImportMapping.Field("Corporate Name"))
}

func TestLeadImportMappingSkipsOtherPartyNames(t *testing.T) {
	cols, unmapped := LeadImportMapping.Columns([]string{"Agency Name", "Counsellor Name", "Full Name", "Email"})

	assert.Equal(t, map[string]int{"Name": 2, "Email": 3}, cols)
	assert.Equal(t, []string{"Agency Name", "Counsellor Name"}, unmapped)

	cols, _ = StudentImportMapping.Columns([]string{"Name of Agent", "Student Name"})
	assert.Equal(t, map[string]int{"Name": 1}, cols)
}

func TestImportCreatesValidRowsAndReportsFailures(t *testing.T) {
	importer := &recordingImporter{}
	cache := &recordingInvalidator{}
	audit := &recordingAudit{}
	metrics := &importMetricsStub{}
	svc := newTestImport(importer, cache, audit, metrics)

	csv := "Full Name,E-mail,Mobile,Shoe Size\nAnn,ann@x.com,123,7\n,,,\n,bob@x.com,555,9\n"
	res, err := svc.Import(context.Background(), models.EntityLeads, "leads.csv", strings.NewReader(csv), false, models.Actor{UserID: "admin"})
	require.NoError(t, err)

	assert.Equal(t, 2, res.Total)
	assert.Equal(t, 1, res.Created)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, []string{"Shoe Size"}, res.Unmapped)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, 4, res.Errors[0].Row)
	assert.Equal(t, []string{"ann@x.com"}, importer.emails)
	assert.Contains(t, cache.patterns, "table:leads*")
	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionImport, audit.logs[0].Action)
	assert.Equal(t, 1, metrics.created)
}

func TestImportDryRunTouchesNothing(t *testing.T) {
	importer := &recordingImporter{}
	cache := &recordingInvalidator{}
	audit := &recordingAudit{}
	svc := newTestImport(importer, cache, audit, nil)

	res, err := svc.Import(context.Background(), models.EntityLeads, "leads.tsv", strings.NewReader("Name\tEmail\nAnn\tann@x.com\n"), true, models.Actor{})
	require.NoError(t, err)
	assert.True(t, res.DryRun)
	assert.Equal(t, 1, res.Created)
	assert.True(t, importer.dryRun)
	assert.Empty(t, cache.patterns)
	assert.Empty(t, audit.logs)
}

func TestImportRejectsLegacyXLS(t *testing.T) {
	svc := newTestImport(&recordingImporter{}, nil, nil, nil)

	_, err := svc.Import(context.Background(), models.EntityLeads, "leads.xls", strings.NewReader("x"), false, models.Actor{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestImportRejectsUnknownExtension(t *testing.T) {
	svc := newTestImport(&recordingImporter{}, nil, nil, nil)

	_, err := svc.Import(context.Background(), models.EntityLeads, "leads.json", strings.NewReader("{}"), false, models.Actor{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnsupportedFormat.Code, appErrors.FromError(err).Code)
}

func TestImportRequiresNameColumn(t *testing.T) {
	svc := newTestImport(&recordingImporter{}, nil, nil, nil)

	_, err := svc.Import(context.Background(), models.EntityLeads, "leads.csv", strings.NewReader("Email\nann@x.com\n"), false, models.Actor{})
	require.Error(t, err)
	assert.Contains(t, appErrors.FromError(err).Message, "Name")
}

func TestImportRowLimit(t *testing.T) {
	svc := newTestImport(&recordingImporter{}, nil, nil, nil)

	_, err := svc.Import(context.Background(), models.EntityLeads, "leads.csv", strings.NewReader("Name\na\nb\nc\nd\n"), false, models.Actor{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPayloadTooLarge.Code, appErrors.FromError(err).Code)
}

func TestImportUnknownEntity(t *testing.T) {
	svc := newTestImport(&recordingImporter{}, nil, nil, nil)

	_, err := svc.Import(context.Background(), models.EntityUsers, "users.csv", strings.NewReader("Name\n"), false, models.Actor{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
