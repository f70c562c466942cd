package handler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/edu-crm-api/internal/models"
	appErrors "github.com/noah-isme/edu-crm-api/pkg/errors"
	"github.com/noah-isme/edu-crm-api/pkg/response"
)

type uploadService interface {
	Save(ctx context.Context, name string, r io.Reader, actor models.Actor) (*models.UploadedFile, error)
	Open(ctx context.Context, token string) (*models.UploadedFile, *os.File, error)
	Delete(ctx context.Context, id string, actor models.Actor) error
}

// UploadHandler accepts document uploads and serves them through signed links.
type UploadHandler struct {
	service uploadService
}

// NewUploadHandler constructs UploadHandler.
func NewUploadHandler(service uploadService) *UploadHandler {
	return &UploadHandler{service: service}
}

// Upload godoc
// @Summary Upload files
// @Description Stores one or more files. The response carries signed download links.
// @Tags Upload
// @Accept multipart/form-data
// @Produce json
// @Param files formData file true "Files"
// @Success 201 {object} response.Envelope
// @Failure 413 {object} response.Envelope
// @Failure 415 {object} response.Envelope
// @Router /upload [post]
func (h *UploadHandler) Upload(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "multipart form is required"))
		return
	}
	headers := form.File["files"]
	if len(headers) == 0 {
		headers = form.File["file"]
	}
	if len(headers) == 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "files is required"))
		return
	}

	who := actor(c)
	saved := make([]models.UploadedFile, 0, len(headers))
	for _, header := range headers {
		f, err := header.Open()
		if err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "failed to read "+header.Filename))
			return
		}
		file, err := h.service.Save(c.Request.Context(), header.Filename, f, who)
		f.Close() //nolint:errcheck
		if err != nil {
			response.Error(c, err)
			return
		}
		saved = append(saved, *file)
	}
	response.Created(c, saved)
}

// Download godoc
// @Summary Download an uploaded file
// @Tags Upload
// @Produce octet-stream
// @Param token path string true "Signed token"
// @Success 200 {file} binary
// @Failure 403 {object} response.Envelope
// @Router /upload/files/{token} [get]
func (h *UploadHandler) Download(c *gin.Context) {
	token := strings.TrimSpace(c.Param("token"))
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	file, handle, err := h.service.Open(c.Request.Context(), token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer handle.Close() //nolint:errcheck
	c.Header("Content-Disposition", fmt.Sprintf("inline; filename=%q", file.Name))
	c.Header("Cache-Control", "private, max-age=300")
	c.DataFromReader(http.StatusOK, file.Size, file.Mime, handle, nil)
}

// Delete godoc
// @Summary Delete an uploaded file
// @Tags Upload
// @Param id path string true "File ID"
// @Success 204
// @Router /upload/{id} [delete]
func (h *UploadHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id"), actor(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
