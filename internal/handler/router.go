package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/edu-crm-api/internal/middleware"
	"github.com/noah-isme/edu-crm-api/internal/models"
)

type crudHandler interface {
	List(c *gin.Context)
	Get(c *gin.Context)
	Create(c *gin.Context)
	Update(c *gin.Context)
	Delete(c *gin.Context)
}

// Handlers groups the handlers mounted by Register. Nil entries are skipped.
type Handlers struct {
	Auth       *AuthHandler
	Leads      *LeadHandler
	Students   *StudentHandler
	Agencies   *AgencyHandler
	Users      *UserHandler
	Timesheets *TimesheetHandler
	Tables     *TableHandler
	Operations *OperationsHandler
	Uploads    *UploadHandler
	Dashboard  *DashboardHandler
	System     *SystemHandler
}

// RouterConfig carries the cross-cutting dependencies of the API routes.
type RouterConfig struct {
	Prefix string
	Tokens middleware.TokenValidator
	Audit  middleware.AuditWriter
	Logger *zap.Logger
}

// Register mounts every API route on r.
func Register(r gin.IRouter, h Handlers, cfg RouterConfig) {
	if cfg.Prefix == "" {
		cfg.Prefix = "/api/v1"
	}
	if h.System != nil {
		r.GET("/health", h.System.Health)
		r.GET("/metrics", h.System.Prometheus)
	}

	api := r.Group(cfg.Prefix)
	api.Use(middleware.ResponseMeta())
	requireAuth := middleware.JWT(cfg.Tokens)

	if h.Auth != nil {
		auth := api.Group("/auth")
		auth.POST("/login", h.Auth.Login)
		auth.POST("/refresh", h.Auth.Refresh)
		auth.POST("/forgot-password", h.Auth.ForgotPassword)
		auth.POST("/reset-password", h.Auth.ResetPassword)
		auth.POST("/logout", requireAuth, h.Auth.Logout)
		auth.POST("/change-password", requireAuth, h.Auth.ChangePassword)
		auth.GET("/me", requireAuth, h.Auth.Me)
		auth.GET("/permissions", requireAuth, h.Auth.Permissions)
	}

	if h.Uploads != nil {
		// The signed token is the credential for downloads.
		api.GET("/upload/files/:token", h.Uploads.Download)
	}

	secured := api.Group("", requireAuth)
	if h.Dashboard != nil {
		secured.GET("/dashboard", h.Dashboard.Summary)
	}
	if h.Uploads != nil {
		secured.POST("/upload", h.Uploads.Upload)
		secured.DELETE("/upload/:id", h.Uploads.Delete)
	}

	type entityRoutes struct {
		name       string
		crud       crudHandler
		table      bool
		operations bool
	}
	var entities []entityRoutes
	add := func(name string, crud crudHandler, present, table, operations bool) {
		if !present {
			crud = nil
		}
		entities = append(entities, entityRoutes{name, crud, table, operations})
	}
	add(models.EntityLeads, h.Leads, h.Leads != nil, true, true)
	add(models.EntityStudents, h.Students, h.Students != nil, true, true)
	add(models.EntityAgencies, h.Agencies, h.Agencies != nil, true, true)
	add(models.EntityUsers, h.Users, h.Users != nil, true, false)
	add(models.EntityTimesheets, h.Timesheets, h.Timesheets != nil, false, false)

	for _, entity := range entities {
		capability, _ := middleware.EntityCapability(entity.name)
		group := secured.Group("/"+entity.name, middleware.RequireCapability(capability))

		if entity.table && h.Tables != nil {
			group.GET("/table", h.Tables.View(entity.name))
			group.GET("/export",
				middleware.RequireCapability(models.CanExport),
				middleware.Audit(cfg.Audit, cfg.Logger, models.AuditActionExport, entity.name),
				h.Tables.Export(entity.name))
		}
		if entity.operations && h.Operations != nil {
			group.POST("/bulk", middleware.RequireCapability(models.CanBulkEdit), h.Operations.Bulk(entity.name))
			group.POST("/import", middleware.RequireCapability(models.CanImport), h.Operations.Import(entity.name))
		}
		if entity.crud != nil {
			group.GET("", entity.crud.List)
			group.POST("", entity.crud.Create)
			group.GET("/:id", entity.crud.Get)
			group.PUT("/:id", entity.crud.Update)
			group.DELETE("/:id", entity.crud.Delete)
		}
	}
}
