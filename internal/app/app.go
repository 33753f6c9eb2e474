package app

import (
	"context"
	"fmt"
	"time"

	temporalsdkclient "go.temporal.io/sdk/client"

	"github.com/yungbote/assessgen-backend/internal/extraction"
	"github.com/yungbote/assessgen-backend/internal/extraction/orchestrator"
	"github.com/yungbote/assessgen-backend/internal/observability"
	"github.com/yungbote/assessgen-backend/internal/platform/localmedia"
	"github.com/yungbote/assessgen-backend/internal/platform/logger"
	"github.com/yungbote/assessgen-backend/internal/temporalx"
	"github.com/yungbote/assessgen-backend/internal/temporalx/temporalworker"
)

// App owns the extraction pipeline and the clients behind it. The HTTP
// server, the Temporal worker and the CLI all run on top of one App.
type App struct {
	Log          *logger.Logger
	Cfg          Config
	Metrics      *observability.Metrics
	Clients      *Clients
	Orchestrator *orchestrator.Orchestrator
	Temporal     temporalsdkclient.Client

	shutdownOtel func(context.Context) error
}

func New(ctx context.Context) (*App, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return NewWithConfig(ctx, log, cfg)
}

func NewWithConfig(ctx context.Context, log *logger.Logger, cfg Config) (*App, error) {
	if cfg.Otel.ServiceName == "" {
		cfg.Otel.ServiceName = cfg.ServiceName
	}
	metrics := observability.NewMetrics()
	shutdown := observability.InitOTel(ctx, log, cfg.Otel)

	clients, err := wireClients(ctx, log, cfg, metrics)
	if err != nil {
		log.Sync()
		return nil, err
	}

	orch, err := orchestrator.New(log, cfg.Orchestrator, clients.Providers)
	if err != nil {
		clients.Close()
		log.Sync()
		return nil, err
	}

	tc, err := temporalx.NewClient(ctx, log, cfg.Temporal)
	if err != nil {
		clients.Close()
		log.Sync()
		return nil, fmt.Errorf("init temporal: %w", err)
	}

	return &App{
		Log:          log,
		Cfg:          cfg,
		Metrics:      metrics,
		Clients:      clients,
		Orchestrator: orch,
		Temporal:     tc,
		shutdownOtel: shutdown,
	}, nil
}

// Extract runs one extraction outside of any server.
func (a *App) Extract(ctx context.Context, d extraction.InputDescriptor, opts extraction.Options) (*extraction.Result, error) {
	return a.Orchestrator.Extract(ctx, d, opts)
}

// RunWorker polls the extraction task queue until ctx is done.
func (a *App) RunWorker(ctx context.Context) error {
	runner, err := temporalworker.NewRunner(a.Log, a.Temporal, a.Cfg.Temporal, a.Orchestrator)
	if err != nil {
		return err
	}
	if err := runner.Start(ctx); err != nil {
		return err
	}
	if a.Cfg.SweepEnabled {
		go a.sweeper().Run(ctx)
	}
	<-ctx.Done()
	a.Log.Info("Temporal worker stopping")
	return nil
}

// Sweep removes stale artifacts from the work root once.
func (a *App) Sweep(ctx context.Context) (localmedia.SweepReport, error) {
	rep, err := a.sweeper().SweepOnce(ctx)
	if err == nil {
		a.Metrics.AddSweptBytes(rep.BytesFreed)
	}
	return rep, err
}

func (a *App) sweeper() *localmedia.Sweeper {
	cfg := localmedia.SweepConfigFromEnv(a.Cfg.Orchestrator.WorkRoot)
	cfg.MinAge = sweepMinAge(cfg.MinAge, a.Cfg.ExtractTimeout)
	return localmedia.NewSweeper(a.Log, cfg).
		OnReport(func(rep localmedia.SweepReport) {
			a.Metrics.AddSweptBytes(rep.BytesFreed)
		})
}

// sweepMinAge keeps quota eviction away from artifacts whose extraction could
// still be within its deadline.
func sweepMinAge(configured, extractTimeout time.Duration) time.Duration {
	longest := extraction.DefaultMediaTimeout
	if extractTimeout > longest {
		longest = extractTimeout
	}
	if floor := longest + time.Minute; configured < floor {
		return floor
	}
	return configured
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.Temporal != nil {
		a.Temporal.Close()
	}
	a.Clients.Close()
	if a.shutdownOtel != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = a.shutdownOtel(ctx)
		cancel()
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
