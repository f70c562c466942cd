package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/edu-crm-api/internal/models"
	appErrors "github.com/noah-isme/edu-crm-api/pkg/errors"
	"github.com/noah-isme/edu-crm-api/pkg/spreadsheet"
)

// Header mappings. Order matters: the first rule whose needle appears in the
// normalized header wins, so specific fields come before Name. The unnamed rule
// keeps columns about another party, such as "Agency Name", off the person's name.
var (
	LeadImportMapping = spreadsheet.Mapping{
		{Field: "Email", Contains: []string{"email", "mail"}},
		{Field: "Phone", Contains: []string{"phone", "mobile", "tel", "whatsapp", "contactno", "cell"}},
		{Field: "EnquiryDate", Contains: []string{"enquiry", "inquiry", "date", "created"}},
		{Field: "Status", Contains: []string{"status", "stage"}},
		{Field: "Country", Contains: []string{"country", "nationality", "nation"}},
		{Field: "Source", Contains: []string{"source", "channel", "referral"}},
		{Field: "Course", Contains: []string{"course", "program"}},
		{Field: "Notes", Contains: []string{"note", "comment", "remark"}},
		{Contains: otherParty},
		{Field: "Name", Contains: []string{"name", "student", "lead", "client"}, Exact: []string{"fullname", "leadname", "studentname", "clientname"}},
	}
	StudentImportMapping = spreadsheet.Mapping{
		{Field: "Email", Contains: []string{"email", "mail"}},
		{Field: "Phone", Contains: []string{"phone", "mobile", "tel", "whatsapp", "contactno", "cell"}},
		{Field: "DateOfBirth", Contains: []string{"birth", "dob"}},
		{Field: "PassportNumber", Contains: []string{"passport"}},
		{Field: "Status", Contains: []string{"status", "stage"}},
		{Field: "Country", Contains: []string{"country", "nationality", "nation"}},
		{Field: "Intake", Contains: []string{"intake", "semester", "session"}},
		{Field: "Course", Contains: []string{"course", "program"}},
		{Contains: otherParty},
		{Field: "Name", Contains: []string{"name", "student"}, Exact: []string{"fullname", "studentname"}},
	}
	AgencyImportMapping = spreadsheet.Mapping{
		{Field: "Email", Contains: []string{"email", "mail"}},
		{Field: "Phone", Contains: []string{"phone", "mobile", "tel", "whatsapp", "contactno", "cell"}},
		{Field: "ContactPerson", Contains: []string{"contactperson", "contactname", "person", "representative"}},
		{Field: "CommissionRate", Contains: []string{"commission"}, Exact: []string{"rate"}},
		{Field: "Status", Contains: []string{"status"}},
		{Field: "Country", Contains: []string{"country", "region"}},
		{Field: "Name", Contains: []string{"name", "agency", "company", "partner"}, Exact: []string{"agencyname", "companyname"}},
	}

	otherParty = []string{"agency", "agent", "counsellor", "counselor", "assigned", "owner", "partner"}
)

type rowImporter interface {
	ImportRow(ctx context.Context, row spreadsheet.Row, dryRun bool) error
}

type importMetrics interface {
	RecordImport(entity string, created, failed, skipped int)
}

// ImportEntity registers one entity for spreadsheet import. Required fields must map to a column.
type ImportEntity struct {
	Mapping  spreadsheet.Mapping
	Importer rowImporter
	Required []string
}

// ImportConfig limits import size.
type ImportConfig struct {
	MaxRows int
}

// ImportService maps spreadsheet uploads onto entity creates.
type ImportService struct {
	entities map[string]ImportEntity
	cfg      ImportConfig
	audit    auditRecorder
	cache    cacheInvalidator
	metrics  importMetrics
	logger   *zap.Logger
}

// NewImportService constructs an ImportService.
func NewImportService(entities map[string]ImportEntity, cfg ImportConfig, audit auditRecorder, cache cacheInvalidator, metrics importMetrics, logger *zap.Logger) *ImportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ImportService{entities: entities, cfg: cfg, audit: audit, cache: cache, metrics: metrics, logger: logger}
}

// Import reads the file and creates one record per valid row. A failing row is
// reported and skipped; rows already created stay created.
func (s *ImportService) Import(ctx context.Context, entity, filename string, r io.Reader, dryRun bool, actor models.Actor) (*models.ImportResult, error) {
	target, ok := s.entities[entity]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("import is not available for %s", entity))
	}

	sheet, err := spreadsheet.Read(filename, r, s.cfg.MaxRows)
	if err != nil {
		return nil, sheetError(filename, err)
	}

	cols, unmapped := target.Mapping.Columns(sheet.Headers)
	var missing []string
	for _, field := range target.Required {
		if _, ok := cols[field]; !ok {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return nil, appErrors.Validation(fmt.Sprintf("no column maps to %s", strings.Join(missing, ", ")))
	}

	result := &models.ImportResult{Errors: []models.RowError{}, Unmapped: unmapped, DryRun: dryRun}
	for _, row := range sheet.BindRows(cols) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if row.Blank() {
			result.Skipped++
			continue
		}
		result.Total++
		if err := target.Importer.ImportRow(ctx, row, dryRun); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, models.RowError{Row: row.Number, Message: appErrors.FromError(err).Message})
			continue
		}
		result.Created++
	}

	s.logger.Info("import finished",
		zap.String("entity", entity),
		zap.String("file", filename),
		zap.Bool("dry_run", dryRun),
		zap.Int("created", result.Created),
		zap.Int("failed", result.Failed),
		zap.Int("skipped", result.Skipped),
	)
	if dryRun {
		return result, nil
	}
	if s.metrics != nil {
		s.metrics.RecordImport(entity, result.Created, result.Failed, result.Skipped)
	}
	if result.Created > 0 {
		invalidateEntity(ctx, s.cache, s.logger, entity)
	}
	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionImport, entity, "", nil, map[string]interface{}{
		"file":    filepath.Base(filename),
		"total":   result.Total,
		"created": result.Created,
		"failed":  result.Failed,
	})
	return result, nil
}

func sheetError(filename string, err error) error {
	switch {
	case errors.Is(err, spreadsheet.ErrUnsupportedFormat):
		if strings.EqualFold(filepath.Ext(filename), ".xls") {
			return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "legacy .xls files are not supported, save the sheet as .xlsx or .csv")
		}
		return appErrors.Wrap(err, appErrors.ErrUnsupportedFormat.Code, appErrors.ErrUnsupportedFormat.Status, "file must be .csv, .tsv or .xlsx")
	case errors.Is(err, spreadsheet.ErrEmpty):
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "file has no header row")
	case errors.Is(err, spreadsheet.ErrTooManyRows):
		return appErrors.Wrap(err, appErrors.ErrPayloadTooLarge.Code, appErrors.ErrPayloadTooLarge.Status, err.Error())
	default:
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "file could not be parsed")
	}
}
