package daemon

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/tutu-network/vitals/internal/api"
	"github.com/tutu-network/vitals/internal/app/responder"
	"github.com/tutu-network/vitals/internal/domain"
	"github.com/tutu-network/vitals/internal/health"
	"github.com/tutu-network/vitals/internal/infra/detector"
	"github.com/tutu-network/vitals/internal/infra/healing"
	"github.com/tutu-network/vitals/internal/infra/learning"
	"github.com/tutu-network/vitals/internal/infra/memstore"
	"github.com/tutu-network/vitals/internal/infra/metrics"
	"github.com/tutu-network/vitals/internal/infra/pattern"
	"github.com/tutu-network/vitals/internal/infra/platform"
	"github.com/tutu-network/vitals/internal/infra/predict"
	"github.com/tutu-network/vitals/internal/infra/rootcause"
	"github.com/tutu-network/vitals/internal/infra/scheduler"
	"github.com/tutu-network/vitals/internal/infra/selfheal"
	"github.com/tutu-network/vitals/internal/infra/sqlite"
	"github.com/tutu-network/vitals/internal/infra/strategy"
	"github.com/tutu-network/vitals/internal/logging"
)

// Daemon is the core Vitals runtime. It wires together all services.
type Daemon struct {
	Config    Config
	Log       *zap.Logger
	Store     domain.MemoryStore
	Platform  *platform.Client // nil in host-only mode
	Index     *selfheal.Index
	Executor  *healing.Executor
	Monitor   *health.Monitor
	Responder *responder.Responder
	Server    *api.Server

	background []func(ctx context.Context)
	closers    []func() error
	cancel     context.CancelFunc
	closeOnce  sync.Once
}

// New creates and initializes a Daemon from the on-disk configuration.
func New() (*Daemon, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	return NewWithConfig(cfg)
}

// NewWithConfig creates a Daemon with the given configuration.
func NewWithConfig(cfg Config) (*Daemon, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	log, err := logging.New(logging.Config{
		Level:      cfg.Logging.Level,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxFiles,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
		Console:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("init logging: %w", err)
	}

	d := &Daemon{Config: cfg, Log: log}
	if err := d.openStore(); err != nil {
		d.Close()
		return nil, err
	}
	if err := d.wire(); err != nil {
		d.Close()
		return nil, err
	}
	return d, nil
}

// openStore opens the configured memory store backend.
func (d *Daemon) openStore() error {
	cfg := d.Config.Store
	switch cfg.Backend {
	case StoreSQLite:
		db, err := sqlite.Open(cfg.Dir)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		d.Store = db
		d.closers = append(d.closers, db.Close)
		interval := parseDuration(cfg.PurgeInterval, time.Hour)
		d.background = append(d.background, func(ctx context.Context) {
			db.RunPurger(ctx, interval, d.Log.Named("sqlite"))
		})

	case StoreRedis:
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		rdb, err := memstore.NewRedis(ctx, memstore.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		d.Store = rdb
		d.closers = append(d.closers, rdb.Close)

	case StoreBadger:
		bdb, err := memstore.OpenBadger(memstore.BadgerConfig{
			Dir:        cfg.BadgerDir,
			GCInterval: parseDuration(cfg.GCInterval, 10*time.Minute),
		}, d.Log)
		if err != nil {
			return fmt.Errorf("open badger: %w", err)
		}
		d.Store = bdb
		d.closers = append(d.closers, bdb.Close)
		d.background = append(d.background, bdb.RunGC)

	case StoreMemory:
		mem := memstore.NewMemory()
		d.Store = mem
		d.closers = append(d.closers, mem.Close)
	}
	d.Log.Info("memory store ready", zap.String("backend", cfg.Backend))
	return nil
}

// wire builds the pipeline, the responder and the API server.
func (d *Daemon) wire() error {
	cfg := d.Config
	d.Index = selfheal.NewIndex(selfheal.DefaultConfig())

	var (
		rc       domain.RecordClient
		source   detector.SignalSource    = platform.NoSignals{}
		evidence rootcause.EvidenceSource = platform.NoSignals{}
		runner   domain.RemediationRunner = platform.DryRunner{Log: d.Log}
	)
	if cfg.Platform.BaseURL != "" {
		ccfg := platform.DefaultClientConfig()
		ccfg.BaseURL = cfg.Platform.BaseURL
		ccfg.Username = cfg.Platform.Username
		ccfg.Password = cfg.Platform.Password
		ccfg.Timeout = parseDuration(cfg.Platform.Timeout, ccfg.Timeout)
		if cfg.Platform.RateLimit != 0 {
			ccfg.RateLimit = cfg.Platform.RateLimit
		}
		if cfg.Platform.Burst > 0 {
			ccfg.Burst = cfg.Platform.Burst
		}
		client, err := platform.NewClient(ccfg, d.Log)
		if err != nil {
			return fmt.Errorf("platform client: %w", err)
		}
		d.Platform = client
		rc = client
	} else {
		d.Log.Warn("no platform configured; monitoring this host only")
	}

	collector := platform.NewCollector(rc, platform.HostProbe{}, d.Index, platform.DefaultCollectorConfig(), d.Log)
	if rc != nil {
		signals := platform.NewSignals(rc, collector, platform.DefaultSignalsConfig())
		source, evidence = signals, signals
		if !cfg.Platform.DryRun {
			runner = platform.NewRunner(rc, platform.DefaultTables(), d.Log)
		}
	}

	registry := strategy.NewRegistry()
	d.Executor = healing.New(healing.DefaultConfig(), registry, collector, runner, d.Index, d.Log)

	opts := d.schedulerOptions()
	monCfg := health.DefaultMonitorConfig()
	monCfg.Interval = opts.MonitorInterval
	d.Monitor = health.NewMonitor(monCfg, collector, d.Index, d.Log)
	d.Monitor.OnCheck(observeCheck)

	d.Responder = responder.New(responder.Config{
		SystemName: cfg.Node.SystemName,
		Scheduler:  opts,
	}, responder.Deps{
		Detector:   detector.New(detector.DefaultConfig(), source, d.Log),
		Analyzer:   rootcause.New(rootcause.DefaultConfig(), evidence, d.Index, d.Log),
		Recognizer: pattern.New(pattern.DefaultConfig(), d.Index),
		Predictor:  predict.New(predict.DefaultConfig()),
		Strategies: registry,
		Executor:   d.Executor,
		Collector:  collector,
		Index:      d.Index,
		Monitor:    d.Monitor,
		Store:      learning.New(d.Store, d.Log),
	}, d.Log)

	d.Server = api.NewServer(d.Responder, d.Log)
	d.Server.SetCheckDefaults(responder.HealthCheckRequest{
		Scope:      domain.ScopeFull,
		AutoHeal:   cfg.Engine.AutoHeal,
		Predictive: cfg.Engine.Predictive,
		Learning:   cfg.Engine.Learning,
	})
	if cfg.Telemetry.Prometheus {
		d.Server.EnableMetrics()
	}
	return nil
}

func (d *Daemon) schedulerOptions() scheduler.Options {
	s := d.Config.Scheduler
	def := scheduler.DefaultOptions()
	opts := scheduler.Options{
		CheckInterval:    parseDuration(s.CheckInterval, def.CheckInterval),
		MonitorInterval:  parseDuration(s.MonitorInterval, def.MonitorInterval),
		RetryInterval:    parseDuration(s.RetryInterval, def.RetryInterval),
		GracePeriod:      parseDuration(s.GracePeriod, def.GracePeriod),
		HealingThreshold: s.HealingThreshold,
		MaxRetries:       s.MaxRetries,
		Preventive:       s.Preventive,
	}
	if opts.HealingThreshold <= 0 {
		opts.HealingThreshold = def.HealingThreshold
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = def.MaxRetries
	}
	return opts
}

// AutonomousOptions returns the configured autonomous healing options.
func (d *Daemon) AutonomousOptions() responder.AutonomousOptions {
	o := d.schedulerOptions()
	return responder.AutonomousOptions{
		CheckInterval:    o.CheckInterval,
		HealingThreshold: o.HealingThreshold,
		MaxRetries:       o.MaxRetries,
		Preventive:       o.Preventive,
	}
}

func observeCheck(s health.Status) {
	result := "healthy"
	switch {
	case s.Error != "":
		result = "error"
	case !s.Healthy:
		result = "degraded"
	}
	metrics.MonitorChecks.WithLabelValues(result).Inc()
}

// Start launches background maintenance (store purge / GC) and, when
// configured, autonomous healing.
func (d *Daemon) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	for _, run := range d.background {
		go run(ctx)
	}
	if d.Config.Scheduler.Autostart {
		if err := d.Responder.StartAutonomousHealing(ctx, d.AutonomousOptions()); err != nil {
			return err
		}
	}
	return nil
}

// Serve starts the HTTP server and blocks until shutdown.
func (d *Daemon) Serve(ctx context.Context) error {
	if err := d.Start(ctx); err != nil {
		return err
	}

	addr := fmt.Sprintf("%s:%d", d.Config.API.Host, d.Config.API.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      d.Server.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // Long for full assessments
		IdleTimeout:  2 * time.Minute,
	}

	// Graceful shutdown on signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	done := make(chan struct{})
	go func() {
		defer close(done)
		select {
		case <-sigCh:
		case <-ctx.Done():
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		d.Log.Info("shutting down")
		_ = httpServer.Shutdown(shutdownCtx)
		d.Close()
	}()

	d.Log.Info("vitals serving",
		zap.String("addr", "http://"+addr),
		zap.String("system", d.Config.Node.SystemName),
		zap.Bool("platform", d.Platform != nil),
		zap.Bool("metrics", d.Config.Telemetry.Prometheus),
	)

	if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		d.Close()
		return err
	}
	<-done
	return nil
}

// Close shuts down all daemon resources. Safe to call more than once.
func (d *Daemon) Close() {
	d.closeOnce.Do(d.close)
}

func (d *Daemon) close() {
	if d.Responder != nil && d.Responder.Scheduler().Running() {
		_ = d.Responder.StopAutonomousHealing()
	}
	if d.cancel != nil {
		d.cancel()
	}
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			d.Log.Warn("close failed", zap.Error(err))
		}
	}
	d.closers = nil
	_ = d.Log.Sync()
}
