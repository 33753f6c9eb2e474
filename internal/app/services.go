package app

import (
	"context"
	"fmt"

	"github.com/yungbote/assessgen-backend/internal/assessment"
	"github.com/yungbote/assessgen-backend/internal/platform/objectstore"
	"github.com/yungbote/assessgen-backend/internal/temporalx/extractjob"
)

type Services struct {
	Assessment *assessment.Service
	// Jobs is nil when Temporal is not configured.
	Jobs *extractjob.Service
	// Store is nil when object storage credentials are missing.
	Store objectstore.Store

	closeGenerator func()
}

func (a *App) wireServices(ctx context.Context, reposet Repos) (Services, error) {
	log := a.Log
	log.Info("Wiring services...")

	var store objectstore.Store
	if s, err := objectstore.New(ctx, log, a.Cfg.Storage); err != nil {
		log.Warn("object storage disabled", "provider", a.Cfg.Storage.Provider, "error", err)
	} else {
		store = s
	}

	gen, closeGen, err := wireGenerator(ctx, log, a.Cfg)
	if err != nil {
		return Services{}, err
	}

	svc, err := assessment.NewService(log, a.Orchestrator, gen, reposet.Assessment, store, a.Metrics)
	if err != nil {
		closeGen()
		return Services{}, fmt.Errorf("init assessment service: %w", err)
	}

	var jobs *extractjob.Service
	if a.Temporal != nil {
		jobs, err = extractjob.NewService(log, a.Temporal, a.Cfg.Temporal.TaskQueue)
		if err != nil {
			closeGen()
			return Services{}, fmt.Errorf("init extraction jobs: %w", err)
		}
	}

	return Services{Assessment: svc, Jobs: jobs, Store: store, closeGenerator: closeGen}, nil
}

func (s Services) Close() {
	if s.closeGenerator != nil {
		s.closeGenerator()
	}
}
