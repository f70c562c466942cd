package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/noah-isme/edu-crm-api/internal/models"
	"github.com/noah-isme/edu-crm-api/internal/repository"
	"github.com/noah-isme/edu-crm-api/internal/service"
	"github.com/noah-isme/edu-crm-api/pkg/config"
	"github.com/noah-isme/edu-crm-api/pkg/contentapi"
	"github.com/noah-isme/edu-crm-api/pkg/database"
	"github.com/noah-isme/edu-crm-api/pkg/logger"
)

// legacy-import copies agencies, leads and students from the old content API
// into the CRM database. Run it once against an empty schema.
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

	if cfg.Legacy.BaseURL == "" {
		logr.Fatal("LEGACY_API_URL is required")
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

	userRepo := repository.NewUserRepository(db)
	agencyRepo := repository.NewAgencyRepository(db)
	uploadRepo := repository.NewUploadRepository(db)
	validate := models.NewValidator()

	// The cache is not involved; the API rebuilds its views on the next read.
	agencies := service.NewAgencyService(agencyRepo, userRepo, nil, validate, logr)
	leads := service.NewLeadService(service.LeadServiceParams{
		Repo:      repository.NewLeadRepository(db),
		Agencies:  agencyRepo,
		Users:     userRepo,
		Audit:     userRepo,
		Validator: validate,
		Logger:    logr,
	})
	students := service.NewStudentService(service.StudentServiceParams{
		Repo:      repository.NewStudentRepository(db),
		Agencies:  agencyRepo,
		Files:     uploadRepo,
		Audit:     userRepo,
		Validator: validate,
		Logger:    logr,
	})

	source := contentapi.New(cfg.Legacy.BaseURL, cfg.Legacy.Token, cfg.Legacy.Timeout, logr)
	migration := service.NewLegacyImportService(source, agencies, leads, students, service.LegacyFetchLimit, logr)

	actor := models.Actor{Role: models.RoleSuperAdmin, UserAgent: "legacy-import"}
	tallies, err := migration.Run(ctx, actor)
	for _, tally := range tallies {
		logr.Info("legacy import finished entity",
			zap.String("entity", tally.Entity),
			zap.Int("fetched", tally.Fetched),
			zap.Int("created", tally.Created),
			zap.Int("failed", tally.Failed),
		)
		for _, rowErr := range tally.Errors {
			logr.Warn("legacy record skipped",
				zap.String("entity", tally.Entity),
				zap.Int("row", rowErr.Row),
				zap.String("legacy_id", rowErr.ID),
				zap.String("reason", rowErr.Message),
			)
		}
	}
	if err != nil {
		logr.Fatal("legacy import aborted", zap.Error(err))
	}
}
