package service

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/edu-crm-api/internal/models"
	appErrors "github.com/noah-isme/edu-crm-api/pkg/errors"
)

type dashboardRepository interface {
	Totals(ctx context.Context, summary *models.DashboardSummary) error
	LeadsByStatus(ctx context.Context) ([]models.CountBucket, error)
	LeadsByCountry(ctx context.Context, limit int) ([]models.CountBucket, error)
	StudentsByStatus(ctx context.Context) ([]models.CountBucket, error)
	LeadsByMonth(ctx context.Context, since time.Time) ([]models.CountBucket, error)
	TimesheetHours(ctx context.Context, since time.Time) ([]models.HoursBucket, error)
}

// DashboardServiceConfig tunes dashboard behaviour.
type DashboardServiceConfig struct {
	CacheTTL     time.Duration
	TopCountries int
	// Months of lead history shown in the trend chart.
	TrendMonths int
	// Days of logged hours summed per user.
	HoursWindowDays int
}

// DashboardService composes chart data for the CRM home page.
type DashboardService struct {
	repo   dashboardRepository
	cache  cacheStore
	logger *zap.Logger
	now    func() time.Time
	cfg    DashboardServiceConfig
}

// NewDashboardService constructs a DashboardService with sane defaults.
func NewDashboardService(repo dashboardRepository, cache cacheStore, cfg DashboardServiceConfig, logger *zap.Logger) *DashboardService {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if cfg.TopCountries <= 0 {
		cfg.TopCountries = 10
	}
	if cfg.TrendMonths <= 0 {
		cfg.TrendMonths = 12
	}
	if cfg.HoursWindowDays <= 0 {
		cfg.HoursWindowDays = 30
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{repo: repo, cache: cache, logger: logger, now: time.Now, cfg: cfg}
}

// Summary returns the dashboard payload and whether it came from cache.
func (s *DashboardService) Summary(ctx context.Context) (*models.DashboardSummary, bool, error) {
	if s.cache != nil {
		var cached models.DashboardSummary
		if hit, err := s.cache.Get(ctx, dashboardCacheKey, &cached); err == nil && hit {
			return &cached, true, nil
		}
	}

	summary, err := s.compose(ctx)
	if err != nil {
		return nil, false, err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, dashboardCacheKey, summary, s.cfg.CacheTTL); err != nil {
			s.logger.Warn("failed to cache dashboard summary", zap.Error(err))
		}
	}
	return summary, false, nil
}

func (s *DashboardService) compose(ctx context.Context) (*models.DashboardSummary, error) {
	now := s.now().UTC()
	summary := &models.DashboardSummary{}
	if err := s.repo.Totals(ctx, summary); err != nil {
		return nil, dashboardFailed(err)
	}

	var err error
	if summary.LeadsByStatus, err = s.repo.LeadsByStatus(ctx); err != nil {
		return nil, dashboardFailed(err)
	}
	if summary.LeadsByCountry, err = s.repo.LeadsByCountry(ctx, s.cfg.TopCountries); err != nil {
		return nil, dashboardFailed(err)
	}
	if summary.StudentsByStatus, err = s.repo.StudentsByStatus(ctx); err != nil {
		return nil, dashboardFailed(err)
	}
	since := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -(s.cfg.TrendMonths - 1), 0)
	if summary.LeadsByMonth, err = s.repo.LeadsByMonth(ctx, since); err != nil {
		return nil, dashboardFailed(err)
	}
	if summary.TimesheetHours, err = s.repo.TimesheetHours(ctx, now.AddDate(0, 0, -s.cfg.HoursWindowDays)); err != nil {
		return nil, dashboardFailed(err)
	}

	summary.LeadsByMonth = fillMonths(summary.LeadsByMonth, since, s.cfg.TrendMonths)
	summary.ConversionRate = conversionRate(summary.LeadsByStatus, summary.TotalLeads)
	return summary, nil
}

func dashboardFailed(err error) error {
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build dashboard")
}

// conversionRate is the converted share of all leads as a percentage with one decimal.
func conversionRate(byStatus []models.CountBucket, total int) float64 {
	if total <= 0 {
		return 0
	}
	converted := 0
	for _, b := range byStatus {
		if b.Label == models.LeadStatusConverted {
			converted += b.Count
		}
	}
	return math.Round(float64(converted)/float64(total)*1000) / 10
}

// fillMonths returns one bucket per month from since, zero-filling gaps.
func fillMonths(buckets []models.CountBucket, since time.Time, months int) []models.CountBucket {
	counts := make(map[string]int, len(buckets))
	for _, b := range buckets {
		counts[b.Label] += b.Count
	}
	out := make([]models.CountBucket, 0, months)
	for i := 0; i < months; i++ {
		label := since.AddDate(0, i, 0).Format("2006-01")
		out = append(out, models.CountBucket{Label: label, Count: counts[label]})
	}
	return out
}
