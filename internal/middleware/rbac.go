package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/edu-crm-api/internal/models"
	appErrors "github.com/noah-isme/edu-crm-api/pkg/errors"
	"github.com/noah-isme/edu-crm-api/pkg/response"
)

// RBAC enforces role-based access control for routes. "SELF" lets a user
// reach routes whose :id is their own.
func RBAC(allowed ...string) gin.HandlerFunc {
	allowSelf := false
	allowedRoles := make(map[models.UserRole]struct{}, len(allowed))
	for _, a := range allowed {
		if a == "SELF" {
			allowSelf = true
			continue
		}
		allowedRoles[models.UserRole(a)] = struct{}{}
	}

	return func(c *gin.Context) {
		claims, ok := Claims(c)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		if _, ok := allowedRoles[claims.Role]; ok {
			c.Next()
			return
		}
		if allowSelf {
			if targetID := c.Param("id"); targetID != "" && targetID == claims.UserID {
				c.Next()
				return
			}
		}

		response.Error(c, appErrors.ErrForbidden)
		c.Abort()
	}
}

// RequireRoles is a helper that accepts a list of roles.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make([]string, len(roles))
	for i, r := range roles {
		allowed[i] = string(r)
	}
	return RBAC(allowed...)
}

// RequireCapability admits callers whose role grants every named capability.
func RequireCapability(required ...models.Capability) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := Claims(c)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		granted := models.CapabilitiesFor(claims.Role)
		for _, name := range required {
			if !granted.Has(name) {
				response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "missing permission "+string(name)))
				c.Abort()
				return
			}
		}
		c.Next()
	}
}

// EntityCapability maps a table entity to the capability guarding it.
func EntityCapability(entity string) (models.Capability, bool) {
	switch entity {
	case models.EntityLeads:
		return models.CanAccessLeads, true
	case models.EntityStudents:
		return models.CanAccessStudents, true
	case models.EntityAgencies:
		return models.CanAccessAgencies, true
	case models.EntityUsers:
		return models.CanAccessUsers, true
	case models.EntityTimesheets:
		return models.CanAccessTimesheets, true
	}
	return "", false
}
