package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/edu-crm-api/internal/models"
)

type fakeDashboardSrv struct {
	summary *models.DashboardSummary
	hit     bool
	err     error
}

func (f *fakeDashboardSrv) Summary(context.Context) (*models.DashboardSummary, bool, error) {
	return f.summary, f.hit, f.err
}

func TestDashboardHandlerSummary(t *testing.T) {
	handler := NewDashboardHandler(&fakeDashboardSrv{
		summary: &models.DashboardSummary{TotalLeads: 12, ConversionRate: 25},
		hit:     true,
	})
	c, rec := newTestContext(http.MethodGet, "/dashboard", "")

	handler.Summary(c)

	require.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, true, env.Meta["cache_hit"])
	assert.Contains(t, env.Meta, "processing_time_ms")
	assert.Equal(t, float64(12), env.Data["total_leads"])
}

func TestDashboardHandlerFailure(t *testing.T) {
	handler := NewDashboardHandler(&fakeDashboardSrv{err: errors.New("db down")})
	c, rec := newTestContext(http.MethodGet, "/dashboard", "")

	handler.Summary(c)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestDashboardHandlerWithoutService(t *testing.T) {
	c, rec := newTestContext(http.MethodGet, "/dashboard", "")

	NewDashboardHandler(nil).Summary(c)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
