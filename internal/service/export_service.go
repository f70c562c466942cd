package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/edu-crm-api/internal/models"
	appErrors "github.com/noah-isme/edu-crm-api/pkg/errors"
	"github.com/noah-isme/edu-crm-api/pkg/export"
	"github.com/noah-isme/edu-crm-api/pkg/table"
)

// ExportColumn renders one column of an export.
type ExportColumn[R any] struct {
	Header string
	Value  func(R) string
}

// ExportFile is a rendered download.
type ExportFile struct {
	Filename    string
	ContentType string
	Body        []byte
	Rows        int
}

type exportMetrics interface {
	RecordExport(entity, format string)
}

// ExportService renders the filtered and sorted rows of a table.
type ExportService[R table.Record] struct {
	table   *TableService[R]
	title   string
	columns []ExportColumn[R]
	metrics exportMetrics
	logger  *zap.Logger
	now     func() time.Time
}

// NewExportService constructs an ExportService over a table.
func NewExportService[R table.Record](tbl *TableService[R], title string, columns []ExportColumn[R], metrics exportMetrics, logger *zap.Logger) *ExportService[R] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService[R]{table: tbl, title: title, columns: columns, metrics: metrics, logger: logger, now: time.Now}
}

// Export renders every matching row, not just the current page.
func (s *ExportService[R]) Export(ctx context.Context, rawFormat string, q TableQuery) (*ExportFile, error) {
	format, err := export.ParseFormat(rawFormat)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnsupportedFormat.Code, appErrors.ErrUnsupportedFormat.Status, "format must be csv, xlsx or pdf")
	}

	rows, err := s.table.Rows(ctx, q)
	if err != nil {
		return nil, err
	}

	data := s.dataset(rows)
	body, err := export.RendererFor(format).Render(data)
	if err != nil {
		s.logger.Error("export render failed", zap.String("entity", s.table.Entity()), zap.String("format", string(format)), zap.Error(err))
		return nil, internal(err, "failed to render export")
	}
	if s.metrics != nil {
		s.metrics.RecordExport(s.table.Entity(), string(format))
	}

	return &ExportFile{
		Filename:    s.filename(format),
		ContentType: format.ContentType(),
		Body:        body,
		Rows:        len(rows),
	}, nil
}

func (s *ExportService[R]) dataset(rows []R) export.Dataset {
	headers := make([]string, len(s.columns))
	for i, col := range s.columns {
		headers[i] = col.Header
	}
	data := export.Dataset{Title: s.title, Headers: headers, Rows: make([]map[string]string, 0, len(rows))}
	for _, r := range rows {
		out := make(map[string]string, len(s.columns))
		for _, col := range s.columns {
			out[col.Header] = col.Value(r)
		}
		data.Rows = append(data.Rows, out)
	}
	return data
}

func (s *ExportService[R]) filename(format export.Format) string {
	stamp := s.now().UTC().Format("20060102_150405")
	return fmt.Sprintf("%s_%s.%s", sanitizeFilename(s.table.Entity()), stamp, format)
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "export"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}

func formatDay(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02")
}

func formatFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

// Export column sets per entity.
var (
	LeadExportColumns = []ExportColumn[models.Lead]{
		{Header: "Name", Value: func(l models.Lead) string { return l.Name }},
		{Header: "Email", Value: func(l models.Lead) string { return l.Email }},
		{Header: "Phone", Value: func(l models.Lead) string { return l.Phone }},
		{Header: "Status", Value: func(l models.Lead) string { return l.Status }},
		{Header: "Country", Value: func(l models.Lead) string { return l.Country }},
		{Header: "Source", Value: func(l models.Lead) string { return l.Source }},
		{Header: "Course", Value: func(l models.Lead) string { return l.Course }},
		{Header: "Enquiry Date", Value: func(l models.Lead) string { return formatDay(l.EnquiryDate) }},
	}
	StudentExportColumns = []ExportColumn[models.Student]{
		{Header: "Name", Value: func(s models.Student) string { return s.Name }},
		{Header: "Email", Value: func(s models.Student) string { return s.Email }},
		{Header: "Phone", Value: func(s models.Student) string { return s.Phone }},
		{Header: "Status", Value: func(s models.Student) string { return s.Status }},
		{Header: "Country", Value: func(s models.Student) string { return s.Country }},
		{Header: "Course", Value: func(s models.Student) string { return s.Course }},
		{Header: "Intake", Value: func(s models.Student) string { return s.Intake }},
		{Header: "Date of Birth", Value: func(s models.Student) string { return formatDay(s.DateOfBirth) }},
	}
	AgencyExportColumns = []ExportColumn[models.Agency]{
		{Header: "Name", Value: func(a models.Agency) string { return a.Name }},
		{Header: "Contact Person", Value: func(a models.Agency) string { return a.ContactPerson }},
		{Header: "Email", Value: func(a models.Agency) string { return a.Email }},
		{Header: "Phone", Value: func(a models.Agency) string { return a.Phone }},
		{Header: "Country", Value: func(a models.Agency) string { return a.Country }},
		{Header: "Status", Value: func(a models.Agency) string { return a.Status }},
		{Header: "Commission Rate", Value: func(a models.Agency) string { return formatFloat(a.CommissionRate) }},
	}
	UserExportColumns = []ExportColumn[models.User]{
		{Header: "Full Name", Value: func(u models.User) string { return u.FullName }},
		{Header: "Email", Value: func(u models.User) string { return u.Email }},
		{Header: "Role", Value: func(u models.User) string { return string(u.Role) }},
		{Header: "Active", Value: func(u models.User) string { return strconv.FormatBool(u.Active) }},
		{Header: "Last Login", Value: func(u models.User) string { return formatDay(u.LastLogin) }},
	}
)
