package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/edu-crm-api/internal/models"
	"github.com/noah-isme/edu-crm-api/pkg/response"
)

type timesheetService interface {
	List(ctx context.Context, filter models.ListFilter, actor models.Actor) ([]models.Timesheet, *models.Pagination, error)
	Get(ctx context.Context, id string, actor models.Actor) (*models.Timesheet, error)
	Create(ctx context.Context, req models.TimesheetRequest, actor models.Actor) (*models.Timesheet, error)
	Update(ctx context.Context, id string, req models.TimesheetRequest, actor models.Actor) (*models.Timesheet, error)
	Delete(ctx context.Context, id string, actor models.Actor) error
}

// TimesheetHandler exposes logged hours. Scoping to the caller happens in the service.
type TimesheetHandler struct {
	timesheets timesheetService
}

// NewTimesheetHandler constructs TimesheetHandler.
func NewTimesheetHandler(timesheets timesheetService) *TimesheetHandler {
	return &TimesheetHandler{timesheets: timesheets}
}

// List godoc
// @Summary List timesheet entries
// @Tags Timesheets
// @Produce json
// @Param user_id query string false "Owner (managers only)"
// @Param from query string false "From date"
// @Param to query string false "To date"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /timesheets [get]
func (h *TimesheetHandler) List(c *gin.Context) {
	filter, err := listFilter(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	entries, pagination, err := h.timesheets.List(c.Request.Context(), filter, actor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, pagination)
}

// Get godoc
// @Summary Get timesheet entry
// @Tags Timesheets
// @Produce json
// @Param id path string true "Entry ID"
// @Success 200 {object} response.Envelope
// @Router /timesheets/{id} [get]
func (h *TimesheetHandler) Get(c *gin.Context) {
	entry, err := h.timesheets.Get(c.Request.Context(), c.Param("id"), actor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entry, nil)
}

// Create godoc
// @Summary Log hours
// @Tags Timesheets
// @Accept json
// @Produce json
// @Param payload body models.TimesheetRequest true "Timesheet payload"
// @Success 201 {object} response.Envelope
// @Router /timesheets [post]
func (h *TimesheetHandler) Create(c *gin.Context) {
	var req models.TimesheetRequest
	if !bindJSON(c, &req, "timesheet") {
		return
	}
	entry, err := h.timesheets.Create(c.Request.Context(), req, actor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, entry)
}

// Update godoc
// @Summary Update timesheet entry
// @Tags Timesheets
// @Accept json
// @Produce json
// @Param id path string true "Entry ID"
// @Param payload body models.TimesheetRequest true "Timesheet payload"
// @Success 200 {object} response.Envelope
// @Router /timesheets/{id} [put]
func (h *TimesheetHandler) Update(c *gin.Context) {
	var req models.TimesheetRequest
	if !bindJSON(c, &req, "timesheet") {
		return
	}
	entry, err := h.timesheets.Update(c.Request.Context(), c.Param("id"), req, actor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entry, nil)
}

// Delete godoc
// @Summary Delete timesheet entry
// @Tags Timesheets
// @Param id path string true "Entry ID"
// @Success 204
// @Router /timesheets/{id} [delete]
func (h *TimesheetHandler) Delete(c *gin.Context) {
	if err := h.timesheets.Delete(c.Request.Context(), c.Param("id"), actor(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
