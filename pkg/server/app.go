package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	drepo "MatchPulse/internal/domain/repository"
	"MatchPulse/internal/handler/api"
	"MatchPulse/internal/usecase"
	"MatchPulse/internal/ws"
	pkgch "MatchPulse/pkg/clickhouse"
	"MatchPulse/pkg/config"
	xhttp "MatchPulse/pkg/http"
	applogger "MatchPulse/pkg/logger"
	"MatchPulse/pkg/scheduler"
)

// App encapsulates the pipeline lifecycle: the hub, the two cycle loops
// and the HTTP surface.
type App struct {
	cfg        *config.Config
	logger     *applogger.Logger
	collector  *usecase.TickCollector
	aggregator *usecase.FrameAggregator
	hub        *ws.Hub
	sched      *scheduler.Scheduler
	chClient   *pkgch.Client
	publisher  drepo.Publisher
	httpServer *xhttp.Server
	handlers   []xhttp.Handler
	exporter   interface{ Close() error } // optional
}

// New creates the App.
func New(
	cfg *config.Config,
	logger *applogger.Logger,
	collector *usecase.TickCollector,
	aggregator *usecase.FrameAggregator,
	hub *ws.Hub,
	sched *scheduler.Scheduler,
	chClient *pkgch.Client,
	publisher drepo.Publisher,
	streamHandler *api.StreamHandler,
	framesHandler *api.FramesHandler,
) *App {
	return &App{
		cfg:        cfg,
		logger:     logger,
		collector:  collector,
		aggregator: aggregator,
		hub:        hub,
		sched:      sched,
		chClient:   chClient,
		publisher:  publisher,
		handlers:   []xhttp.Handler{streamHandler, framesHandler},
	}
}

// SetExporter attaches the optional archival exporter for lifecycle
// management.
func (a *App) SetExporter(e interface{ Close() error }) { a.exporter = e }

// Run starts everything and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := a.hub.Start(ctx); err != nil {
		return err
	}

	// The two cycle loops run independently on their own cadences.
	go a.sched.Run(ctx, "collector", a.cfg.Collector.Interval, a.collector.RunCycle)
	go a.sched.Run(ctx, "aggregator", a.cfg.Aggregator.Interval, a.aggregator.RunCycle)

	a.httpServer = xhttp.NewServer(a.handlers,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithLogger(a.logger),
	)
	if err := a.httpServer.Start(); err != nil {
		return err
	}

	a.logger.Info("matchpulse started",
		applogger.Duration("collector_interval_ms", a.cfg.Collector.Interval),
		applogger.Duration("aggregator_interval_ms", a.cfg.Aggregator.Interval),
		applogger.Int("collector_concurrency", a.cfg.Collector.Concurrency),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.logger.Info("shutdown signal received")
	cancel()
	return a.shutdown()
}

// shutdown stops all services, best effort, hub first so clients get close
// frames before the bus goes away.
func (a *App) shutdown() error {
	a.hub.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if a.httpServer != nil {
		if err := a.httpServer.Stop(shutdownCtx); err != nil {
			a.logger.Error("http shutdown error", applogger.Error(err))
		}
	}

	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.logger.Warn("publisher close error", applogger.Error(err))
		}
	}
	if a.exporter != nil {
		if err := a.exporter.Close(); err != nil {
			a.logger.Warn("exporter close error", applogger.Error(err))
		}
	}
	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.logger.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	a.logger.Info("shutdown complete")
	return nil
}
