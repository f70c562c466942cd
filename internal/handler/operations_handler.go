package handler

import (
	"context"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/edu-crm-api/internal/models"
	appErrors "github.com/noah-isme/edu-crm-api/pkg/errors"
	"github.com/noah-isme/edu-crm-api/pkg/response"
)

type bulkService interface {
	Apply(ctx context.Context, entity string, req models.BulkRequest, actor models.Actor) (*models.BulkResult, error)
}

type importService interface {
	Import(ctx context.Context, entity, filename string, r io.Reader, dryRun bool, actor models.Actor) (*models.ImportResult, error)
}

// OperationsHandler runs bulk actions and spreadsheet imports over an entity.
type OperationsHandler struct {
	bulk    bulkService
	imports importService
}

// NewOperationsHandler constructs OperationsHandler.
func NewOperationsHandler(bulk bulkService, imports importService) *OperationsHandler {
	return &OperationsHandler{bulk: bulk, imports: imports}
}

// Bulk godoc
// @Summary Bulk action on selected records
// @Description Ids no longer present are pruned. Each id succeeds or fails on its own.
// @Tags Operations
// @Accept json
// @Produce json
// @Param entity path string true "leads, students or agencies"
// @Param payload body models.BulkRequest true "Bulk payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /{entity}/bulk [post]
func (h *OperationsHandler) Bulk(entity string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.BulkRequest
		if !bindJSON(c, &req, "bulk") {
			return
		}
		result, err := h.bulk.Apply(c.Request.Context(), entity, req, actor(c))
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, http.StatusOK, result, nil)
	}
}

// Import godoc
// @Summary Import spreadsheet
// @Description Maps csv or xlsx columns onto fields and creates one record per valid row.
// @Tags Operations
// @Accept multipart/form-data
// @Produce json
// @Param entity path string true "leads, students or agencies"
// @Param file formData file true "csv or xlsx file"
// @Param dry_run formData bool false "Validate without saving"
// @Success 200 {object} response.Envelope
// @Failure 415 {object} response.Envelope
// @Router /{entity}/import [post]
func (h *OperationsHandler) Import(entity string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header, err := c.FormFile("file")
		if err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "file is required"))
			return
		}
		dryRun, _ := strconv.ParseBool(c.DefaultPostForm("dry_run", c.DefaultQuery("dry_run", "false")))

		file, err := header.Open()
		if err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "failed to read file"))
			return
		}
		defer file.Close()

		result, err := h.imports.Import(c.Request.Context(), entity, header.Filename, file, dryRun, actor(c))
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, http.StatusOK, result, nil)
	}
}
