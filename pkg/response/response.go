package response

import (
	"mime"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/edu-crm-api/internal/models"
	appErrors "github.com/noah-isme/edu-crm-api/pkg/errors"
)

const (
	metaKey  = "response.meta"
	startKey = "response.start"
)

// Envelope is the body of every JSON response.
type Envelope struct {
	Data       interface{}            `json:"data,omitempty"`
	Error      *appErrors.Error       `json:"error,omitempty"`
	Pagination *models.Pagination     `json:"pagination,omitempty"`
	Meta       map[string]interface{} `json:"meta,omitempty"`
}

// Begin starts the clock reported as meta.processing_time_ms.
func Begin(c *gin.Context) {
	c.Set(startKey, time.Now())
}

// SetMeta adds one entry to the meta block of the response about to be written.
func SetMeta(c *gin.Context, key string, value interface{}) {
	meta := metaOf(c)
	if meta == nil {
		meta = map[string]interface{}{}
		c.Set(metaKey, meta)
	}
	meta[key] = value
}

func JSON(c *gin.Context, status int, data interface{}, pagination *models.Pagination) {
	if start := c.GetTime(startKey); !start.IsZero() {
		if _, set := metaOf(c)["processing_time_ms"]; !set {
			SetMeta(c, "processing_time_ms", time.Since(start).Milliseconds())
		}
	}
	write(c, status, Envelope{Data: data, Pagination: pagination, Meta: metaOf(c)})
}

func Created(c *gin.Context, data interface{}) {
	JSON(c, http.StatusCreated, data, nil)
}

// Error writes err as an envelope. Server-side failures are also attached to
// the gin context so the request logger records the cause.
func Error(c *gin.Context, err error) {
	appErr := appErrors.FromError(err)
	if appErr.Status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	write(c, appErr.Status, Envelope{Error: appErr})
}

func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// Attachment sends body as a file download named filename.
func Attachment(c *gin.Context, filename, contentType string, body []byte) {
	c.Header("Cache-Control", "no-store")
	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	c.Data(http.StatusOK, contentType, body)
}

func metaOf(c *gin.Context) map[string]interface{} {
	meta, _ := c.Get(metaKey)
	m, _ := meta.(map[string]interface{})
	return m
}

func write(c *gin.Context, status int, env Envelope) {
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
	c.JSON(status, env)
}
