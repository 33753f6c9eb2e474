package app

import (
	"context"
	"fmt"

	temporalsdkclient "go.temporal.io/sdk/client"
	"gorm.io/gorm"

	"github.com/yungbote/assessgen-backend/internal/db"
	"github.com/yungbote/assessgen-backend/internal/http"
	httpH "github.com/yungbote/assessgen-backend/internal/http/handlers"
	"github.com/yungbote/assessgen-backend/internal/types"
)

type Handlers struct {
	Health     *httpH.HealthHandler
	Extract    *httpH.ExtractHandler
	Assessment *httpH.AssessmentHandler
	Storage    *httpH.StorageHandler
	Job        *httpH.JobHandler
}

func (a *App) wireHandlers(gdb *gorm.DB, services Services) Handlers {
	log := a.Log
	log.Info("Wiring handlers...")

	checks := map[string]httpH.Pinger{
		"db": httpH.PingFunc(func(ctx context.Context) error {
			sqlDB, err := gdb.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		}),
	}
	if a.Clients.Redis != nil {
		checks["redis"] = a.Clients.Redis
	}
	if a.Temporal != nil {
		tc := a.Temporal
		checks["temporal"] = httpH.PingFunc(func(ctx context.Context) error {
			_, err := tc.CheckHealth(ctx, &temporalsdkclient.CheckHealthRequest{})
			return err
		})
	}

	h := Handlers{
		Health:     httpH.NewHealthHandler(checks),
		Extract:    httpH.NewExtractHandler(log, a.Orchestrator, a.Cfg.ExtractLimits()),
		Assessment: httpH.NewAssessmentHandler(log, services.Assessment, a.Cfg.GenerateLimits()),
	}
	if services.Store != nil {
		h.Storage = httpH.NewStorageHandler(log, services.Store, a.Cfg.GenerateLimits())
	}
	if services.Jobs != nil {
		h.Job = httpH.NewJobHandler(log, services.Jobs)
	}
	return h
}

func (a *App) wireRouter(handlers Handlers) *http.Server {
	return http.NewServer(http.RouterConfig{
		Log:               a.Log,
		Metrics:           a.Metrics,
		ServiceName:       a.Cfg.ServiceName,
		CORSOrigins:       a.Cfg.CORSOrigins,
		HealthHandler:     handlers.Health,
		ExtractHandler:    handlers.Extract,
		AssessmentHandler: handlers.Assessment,
		StorageHandler:    handlers.Storage,
		JobHandler:        handlers.Job,
	})
}

// RunServer opens the database, wires the HTTP surface and serves until ctx
// is done.
func (a *App) RunServer(ctx context.Context) error {
	gdb, err := db.Open(a.Log, a.Cfg.DB)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close(gdb)
	if err := db.AutoMigrate(a.Log, gdb, &types.Assessment{}); err != nil {
		return fmt.Errorf("automigrate: %w", err)
	}

	services, err := a.wireServices(ctx, wireRepos(gdb, a.Log))
	if err != nil {
		return err
	}
	defer services.Close()

	if a.Cfg.SweepEnabled {
		go a.sweeper().Run(ctx)
	}
	return a.wireRouter(a.wireHandlers(gdb, services)).Run(ctx, a.Cfg.HTTPAddr)
}
