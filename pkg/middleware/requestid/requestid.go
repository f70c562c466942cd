// Package requestid tags every request with an id that is echoed back to the
// client and attached to log lines.
package requestid

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// HeaderKey carries the id in both directions.
const HeaderKey = "X-Request-ID"

const ginKey = "request_id"

// Middleware reuses a well-formed incoming id or mints a UUID.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderKey)
		if !acceptable(id) {
			id = uuid.NewString()
		}
		c.Set(ginKey, id)
		c.Header(HeaderKey, id)
		c.Next()
	}
}

func Value(c *gin.Context) string {
	return c.GetString(ginKey)
}

// acceptable admits short ids of visible ASCII so client input cannot break
// log lines or headers.
func acceptable(id string) bool {
	if id == "" || len(id) > 128 {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] <= ' ' || id[i] > '~' {
			return false
		}
	}
	return true
}
