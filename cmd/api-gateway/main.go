package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/edu-crm-api/api/swagger"
	"github.com/noah-isme/edu-crm-api/internal/handler"
	"github.com/noah-isme/edu-crm-api/internal/middleware"
	"github.com/noah-isme/edu-crm-api/internal/models"
	"github.com/noah-isme/edu-crm-api/internal/repository"
	"github.com/noah-isme/edu-crm-api/internal/service"
	"github.com/noah-isme/edu-crm-api/pkg/cache"
	"github.com/noah-isme/edu-crm-api/pkg/config"
	"github.com/noah-isme/edu-crm-api/pkg/database"
	"github.com/noah-isme/edu-crm-api/pkg/jobs"
	"github.com/noah-isme/edu-crm-api/pkg/logger"
	"github.com/noah-isme/edu-crm-api/pkg/mailer"
	corsmiddleware "github.com/noah-isme/edu-crm-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/edu-crm-api/pkg/middleware/requestid"
	"github.com/noah-isme/edu-crm-api/pkg/storage"
)

// @title Edu CRM API
// @version 1.0.0
// @description Leads, students, partner agencies, staff and timesheets for an education consultancy.
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck
	if err := database.EnsureSchema(ctx, db); err != nil {
		logr.Fatal("failed to prepare schema", zap.Error(err))
	}

	metrics := service.NewMetricsService()

	probes := map[string]handler.Probe{"database": db.PingContext}
	var cacheRepo service.CacheRepository
	if cfg.Cache.Enabled {
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, cache disabled", zap.Error(err))
		} else {
			defer client.Close() //nolint:errcheck
			cacheRepo = repository.NewCacheRepository(client, "educrm")
			probes["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
		}
	}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Table.CacheTTL, logr)

	userRepo := repository.NewUserRepository(db)
	leadRepo := repository.NewLeadRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	agencyRepo := repository.NewAgencyRepository(db)
	timesheetRepo := repository.NewTimesheetRepository(db)
	uploadRepo := repository.NewUploadRepository(db)
	dashboardRepo := repository.NewDashboardRepository(db)

	var provider mailer.Provider = mailer.NewLogProvider(logr)
	if cfg.Mail.ResendAPIKey != "" {
		provider = mailer.NewResendProvider(cfg.Mail.ResendAPIKey)
	}
	mailSvc := service.NewMailService(mailer.New(provider, cfg.Mail.From), metrics, logr)
	mailQueue := jobs.NewQueue("mail", mailSvc.HandleJob, jobs.QueueConfig{
		Workers:    cfg.Mail.Workers,
		MaxRetries: cfg.Mail.Retries,
		RetryDelay: 2 * time.Second,
		Logger:     logr,
		OnGiveUp:   mailSvc.GiveUp,
	})
	mailSvc.SetQueue(mailQueue)
	metrics.WatchQueue("mail", mailQueue.Pending)
	mailQueue.Start(ctx)
	defer mailQueue.Stop()

	blobs, err := storage.NewLocalStorage(cfg.Uploads.StorageDir)
	if err != nil {
		logr.Fatal("failed to prepare upload storage", zap.Error(err))
	}
	uploadSvc := service.NewUploadService(service.UploadServiceParams{
		Repo:    uploadRepo,
		Store:   blobs,
		Signer:  storage.NewSignedURLSigner(cfg.Uploads.SignedURLSecret, cfg.Uploads.SignedURLTTL),
		Audit:   userRepo,
		Metrics: metrics,
		Config: service.UploadConfig{
			MaxFileSize:    cfg.Uploads.MaxFileSizeBytes,
			AllowedMIMEs:   cfg.Uploads.AllowedMIMEs,
			DownloadPrefix: cfg.APIPrefix + "/upload/files",
		},
		Logger: logr,
	})

	validate := models.NewValidator()
	authSvc := service.NewAuthService(userRepo, mailSvc, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		ResetTokenExpiry:   cfg.JWT.ResetExpiration,
		ResetURL:           cfg.AppBaseURL + "/reset-password",
		Issuer:             "edu-crm-api",
	})
	userSvc := service.NewUserService(userRepo, cacheSvc, validate, logr)
	agencySvc := service.NewAgencyService(agencyRepo, userRepo, cacheSvc, validate, logr)
	leadSvc := service.NewLeadService(service.LeadServiceParams{
		Repo:      leadRepo,
		Agencies:  agencyRepo,
		Users:     userRepo,
		Audit:     userRepo,
		Cache:     cacheSvc,
		Validator: validate,
		Logger:    logr,
	})
	studentSvc := service.NewStudentService(service.StudentServiceParams{
		Repo:      studentRepo,
		Agencies:  agencyRepo,
		Files:     uploadRepo,
		Signer:    uploadSvc,
		Audit:     userRepo,
		Cache:     cacheSvc,
		Validator: validate,
		Logger:    logr,
	})
	timesheetSvc := service.NewTimesheetService(timesheetRepo, userRepo, userRepo, cacheSvc, validate, logr)
	dashboardSvc := service.NewDashboardService(dashboardRepo, cacheSvc, service.DashboardServiceConfig{CacheTTL: cfg.Dashboard.CacheTTL}, logr)

	tableCfg := service.TableConfig{FetchLimit: cfg.Table.FetchLimit, PageSize: cfg.Table.PageSize, CacheTTL: cfg.Table.CacheTTL}
	leadTable := service.NewTableService[models.Lead](models.EntityLeads, leadSvc, service.LeadTableSchema, cacheSvc, tableCfg, logr)
	studentTable := service.NewTableService[models.Student](models.EntityStudents, studentSvc, service.StudentTableSchema, cacheSvc, tableCfg, logr)
	agencyTable := service.NewTableService[models.Agency](models.EntityAgencies, agencySvc, service.AgencyTableSchema, cacheSvc, tableCfg, logr)
	userTable := service.NewTableService[models.User](models.EntityUsers, userSvc, service.UserTableSchema, cacheSvc, tableCfg, logr)

	bulkSvc := service.NewBulkService(map[string]service.BulkEntity{
		models.EntityLeads:    {Target: leadSvc, Current: leadTable, Statuses: models.LeadStatuses},
		models.EntityStudents: {Target: studentSvc, Current: studentTable, Statuses: models.StudentStatuses},
		models.EntityAgencies: {Target: agencySvc, Current: agencyTable, Statuses: models.AgencyStatuses},
	}, userRepo, cacheSvc, metrics, validate, logr)
	importSvc := service.NewImportService(map[string]service.ImportEntity{
		models.EntityLeads:    {Mapping: service.LeadImportMapping, Importer: leadSvc, Required: []string{"Name"}},
		models.EntityStudents: {Mapping: service.StudentImportMapping, Importer: studentSvc, Required: []string{"Name"}},
		models.EntityAgencies: {Mapping: service.AgencyImportMapping, Importer: agencySvc, Required: []string{"Name"}},
	}, service.ImportConfig{MaxRows: cfg.Import.MaxRows}, userRepo, cacheSvc, metrics, logr)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))
	r.MaxMultipartMemory = 32 << 20

	handler.Register(r, handler.Handlers{
		Auth:       handler.NewAuthHandler(authSvc),
		Leads:      handler.NewLeadHandler(leadSvc),
		Students:   handler.NewStudentHandler(studentSvc),
		Agencies:   handler.NewAgencyHandler(agencySvc),
		Users:      handler.NewUserHandler(userSvc),
		Timesheets: handler.NewTimesheetHandler(timesheetSvc),
		Tables: handler.NewTableHandler(map[string]handler.EntityTable{
			models.EntityLeads:    handler.BindTable(leadTable, service.NewExportService(leadTable, "Leads", service.LeadExportColumns, metrics, logr)),
			models.EntityStudents: handler.BindTable(studentTable, service.NewExportService(studentTable, "Students", service.StudentExportColumns, metrics, logr)),
			models.EntityAgencies: handler.BindTable(agencyTable, service.NewExportService(agencyTable, "Agencies", service.AgencyExportColumns, metrics, logr)),
			models.EntityUsers:    handler.BindTable(userTable, service.NewExportService(userTable, "Users", service.UserExportColumns, metrics, logr)),
		}),
		Operations: handler.NewOperationsHandler(bulkSvc, importSvc),
		Uploads:    handler.NewUploadHandler(uploadSvc),
		Dashboard:  handler.NewDashboardHandler(dashboardSvc),
		System:     handler.NewSystemHandler(metrics.Handler(), probes),
	}, handler.RouterConfig{
		Prefix: cfg.APIPrefix,
		Tokens: authSvc,
		Audit:  userRepo,
		Logger: logr,
	})

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "mail_provider", provider.Name())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}
