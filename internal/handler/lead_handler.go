package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/edu-crm-api/internal/models"
	"github.com/noah-isme/edu-crm-api/pkg/response"
)

type leadService interface {
	List(ctx context.Context, filter models.ListFilter) ([]models.Lead, *models.Pagination, error)
	Get(ctx context.Context, id string, populate bool) (*models.Lead, error)
	Create(ctx context.Context, req models.LeadRequest, actor models.Actor) (*models.Lead, error)
	Update(ctx context.Context, id string, req models.LeadRequest, actor models.Actor) (*models.Lead, error)
	Delete(ctx context.Context, id string, actor models.Actor) error
}

// LeadHandler exposes lead endpoints.
type LeadHandler struct {
	leads leadService
}

// NewLeadHandler constructs LeadHandler.
func NewLeadHandler(leads leadService) *LeadHandler {
	return &LeadHandler{leads: leads}
}

// List godoc
// @Summary List leads
// @Tags Leads
// @Produce json
// @Param search query string false "Search name, email, phone, course or source"
// @Param status query string false "Lead status"
// @Param country query string false "Country"
// @Param agency_id query string false "Agency"
// @Param from query string false "Enquiry date from (YYYY-MM-DD)"
// @Param to query string false "Enquiry date to (YYYY-MM-DD)"
// @Param pagination[page] query int false "Page"
// @Param pagination[pageSize] query int false "Page size (max 1000)"
// @Param sort query string false "Sort field"
// @Param order query string false "asc or desc"
// @Success 200 {object} response.Envelope
// @Router /leads [get]
func (h *LeadHandler) List(c *gin.Context) {
	filter, err := listFilter(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	leads, pagination, err := h.leads.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, leads, pagination)
}

// Get godoc
// @Summary Get lead
// @Tags Leads
// @Produce json
// @Param id path string true "Lead ID"
// @Param populate query string false "Use * to expand agency and assignee"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /leads/{id} [get]
func (h *LeadHandler) Get(c *gin.Context) {
	lead, err := h.leads.Get(c.Request.Context(), c.Param("id"), populate(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, lead, nil)
}

// Create godoc
// @Summary Create lead
// @Tags Leads
// @Accept json
// @Produce json
// @Param payload body models.LeadRequest true "Lead payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /leads [post]
func (h *LeadHandler) Create(c *gin.Context) {
	var req models.LeadRequest
	if !bindJSON(c, &req, "lead") {
		return
	}
	lead, err := h.leads.Create(c.Request.Context(), req, actor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, lead)
}

// Update godoc
// @Summary Update lead
// @Tags Leads
// @Accept json
// @Produce json
// @Param id path string true "Lead ID"
// @Param payload body models.LeadRequest true "Lead payload"
// @Success 200 {object} response.Envelope
// @Router /leads/{id} [put]
func (h *LeadHandler) Update(c *gin.Context) {
	var req models.LeadRequest
	if !bindJSON(c, &req, "lead") {
		return
	}
	lead, err := h.leads.Update(c.Request.Context(), c.Param("id"), req, actor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, lead, nil)
}

// Delete godoc
// @Summary Delete lead
// @Tags Leads
// @Param id path string true "Lead ID"
// @Success 204
// @Router /leads/{id} [delete]
func (h *LeadHandler) Delete(c *gin.Context) {
	if err := h.leads.Delete(c.Request.Context(), c.Param("id"), actor(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
