package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/edu-crm-api/internal/models"
	"github.com/noah-isme/edu-crm-api/pkg/response"
)

type agencyService interface {
	List(ctx context.Context, filter models.ListFilter) ([]models.Agency, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.Agency, error)
	Create(ctx context.Context, req models.AgencyRequest, actor models.Actor) (*models.Agency, error)
	Update(ctx context.Context, id string, req models.AgencyRequest, actor models.Actor) (*models.Agency, error)
	Delete(ctx context.Context, id string, actor models.Actor) error
}

// AgencyHandler exposes partner agency endpoints.
type AgencyHandler struct {
	agencies agencyService
}

// NewAgencyHandler constructs AgencyHandler.
func NewAgencyHandler(agencies agencyService) *AgencyHandler {
	return &AgencyHandler{agencies: agencies}
}

// List godoc
// @Summary List agencies
// @Tags Agencies
// @Produce json
// @Param search query string false "Search"
// @Param status query string false "Active or Inactive"
// @Param country query string false "Country"
// @Param pagination[page] query int false "Page"
// @Param pagination[pageSize] query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /agencies [get]
func (h *AgencyHandler) List(c *gin.Context) {
	filter, err := listFilter(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	agencies, pagination, err := h.agencies.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, agencies, pagination)
}

// Get godoc
// @Summary Get agency
// @Tags Agencies
// @Produce json
// @Param id path string true "Agency ID"
// @Success 200 {object} response.Envelope
// @Router /agencies/{id} [get]
func (h *AgencyHandler) Get(c *gin.Context) {
	agency, err := h.agencies.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, agency, nil)
}

// Create godoc
// @Summary Create agency
// @Tags Agencies
// @Accept json
// @Produce json
// @Param payload body models.AgencyRequest true "Agency payload"
// @Success 201 {object} response.Envelope
// @Router /agencies [post]
func (h *AgencyHandler) Create(c *gin.Context) {
	var req models.AgencyRequest
	if !bindJSON(c, &req, "agency") {
		return
	}
	agency, err := h.agencies.Create(c.Request.Context(), req, actor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, agency)
}

// Update godoc
// @Summary Update agency
// @Tags Agencies
// @Accept json
// @Produce json
// @Param id path string true "Agency ID"
// @Param payload body models.AgencyRequest true "Agency payload"
// @Success 200 {object} response.Envelope
// @Router /agencies/{id} [put]
func (h *AgencyHandler) Update(c *gin.Context) {
	var req models.AgencyRequest
	if !bindJSON(c, &req, "agency") {
		return
	}
	agency, err := h.agencies.Update(c.Request.Context(), c.Param("id"), req, actor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, agency, nil)
}

// Delete godoc
// @Summary Delete agency
// @Description Linked leads and students keep their records but lose the agency.
// @Tags Agencies
// @Param id path string true "Agency ID"
// @Success 204
// @Router /agencies/{id} [delete]
func (h *AgencyHandler) Delete(c *gin.Context) {
	if err := h.agencies.Delete(c.Request.Context(), c.Param("id"), actor(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
