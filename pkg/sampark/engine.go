package sampark

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"runtime"
	"time"

	"github.com/harunnryd/sampark/pkg/audiocache"
	"github.com/harunnryd/sampark/pkg/calllog"
	"github.com/harunnryd/sampark/pkg/campaign"
	"github.com/harunnryd/sampark/pkg/dialog"
	"github.com/harunnryd/sampark/pkg/dispatch"
	"github.com/harunnryd/sampark/pkg/logging"
	"github.com/harunnryd/sampark/pkg/metrics"
	"github.com/harunnryd/sampark/pkg/redact"
	"github.com/harunnryd/sampark/pkg/resilience"
	"github.com/harunnryd/sampark/pkg/runner"
	"github.com/harunnryd/sampark/pkg/server"
	"github.com/harunnryd/sampark/pkg/session"
	"github.com/harunnryd/sampark/pkg/sheets"
	"github.com/harunnryd/sampark/pkg/storage/postgres"
	"github.com/harunnryd/sampark/pkg/transports"
)

type EngineOptions struct {
	Config    Config
	Providers *ProviderRegistry
	// Logger overrides the logger built from log_level and log_format.
	Logger *slog.Logger
}

// Engine owns every long-lived component of the call service.
type Engine struct {
	cfg       Config
	logger    *slog.Logger
	machine   *dialog.Machine
	sessions  *session.MemoryStore
	resolver  *audiocache.Resolver
	tracker   sheets.Tracker
	store     *postgres.Store
	events    *calllog.Recorder
	server    *server.Server
	http      *http.Server
	runner    *runner.LifecycleRunner
	ctx       context.Context
	cancel    context.CancelFunc
}

func NewEngine(ctx context.Context, opts EngineOptions) (*Engine, error) {
	cfg := opts.Config
	logger := opts.Logger
	if logger == nil {
		logger = logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
		slog.SetDefault(logger)
	}
	redact.SetEnabled(cfg.Privacy.RedactPII)

	providers := opts.Providers
	if providers == nil {
		providers = NewProviderRegistry()
		RegisterDefaults(providers)
	}

	logger.Info("sampark_init",
		"environment", cfg.Environment,
		"transport", cfg.Transports.Provider,
		"tts_provider", cfg.Vendors.TTS.Provider,
		"planner_provider", cfg.Vendors.Planner.Provider,
		"sheets_provider", cfg.Sheets.Provider,
		"database", cfg.Database.URL != "",
	)

	m := metrics.New(cfg.Metrics.Namespace)
	telephony, err := providers.BuildTelephony(ctx, cfg, logging.NewComponentLogger(logger, "telephony"))
	if err != nil {
		return nil, err
	}
	speech, err := providers.BuildTTS(ctx, cfg)
	if err != nil {
		return nil, err
	}
	planner, err := providers.BuildPlanner(ctx, cfg, logging.NewComponentLogger(logger, "planner"))
	if err != nil {
		return nil, err
	}
	tracker, err := providers.BuildTracker(ctx, cfg)
	if err != nil {
		return nil, err
	}

	machine, err := buildMachine(cfg)
	if err != nil {
		return nil, err
	}

	timeout := cfg.CollaboratorTimeout()
	retry := resilience.NewRetryPolicy(cfg.Collaborators.Retries, millis(cfg.Collaborators.RetryBackoffMS, 0))
	retry.Retryable = func(err error) bool { return !resilience.IsRateLimit(err) }
	breaker := resilience.NewCircuitBreaker(cfg.Collaborators.BreakerThreshold, millis(cfg.Collaborators.BreakerCooldownMS, 30*time.Second))

	audioStore := audiocache.NewFileStore(cfg.Audio.Dir, telephony.BaseURL, speech.Voice.Extension())
	resolver := audiocache.NewResolver(audiocache.Config{
		Store:       audioStore,
		Synthesizer: speech.Synthesizer,
		Voice:       speech.Voice,
		Timeout:     timeout,
		Retry:       retry,
		Breaker:     breaker,
		Metrics:     m,
		Logger:      logging.NewComponentLogger(logger, "audio"),
	})

	var (
		store     *postgres.Store
		campaigns campaign.Repository = campaign.NewMemoryRepository()
		calls     calllog.CallStore
		events    *calllog.Recorder
	)
	if cfg.Database.URL != "" {
		store, err = postgres.Open(ctx, cfg.Database.URL, cfg.Database.Migrate, logging.NewComponentLogger(logger, "postgres"))
		if err != nil {
			return nil, fmt.Errorf("database: %w", err)
		}
		campaigns = store.Campaigns()
		calls = store.Calls()
		events = calllog.NewRecorder(calls, cfg.Collaborators.EventBuffer, timeout, m, logging.NewComponentLogger(logger, "events"))
	}

	logs := calllog.New(calllog.Config{
		Tracker: tracker,
		Calls:   calls,
		Timeout: timeout,
		Metrics: m,
		Logger:  logging.NewComponentLogger(logger, "calllog"),
	})
	sessions := session.NewMemoryStore()
	pending := session.NewPending(0)
	placer := dispatch.NewCallPlacer(dispatch.CallPlacerOptions{
		Dialer:   telephony.Dialer,
		Sessions: sessions,
		Pending:  pending,
		Calls:    logs,
		Timeout:  cfg.PlaceTimeout(),
		Metrics:  m,
		Logger:   logging.NewComponentLogger(logger, "placer"),
	})
	dispatcher := dispatch.New(placer, tracker, dispatch.Options{
		Interval:    cfg.DispatchInterval(),
		Concurrency: cfg.Dispatch.Concurrency,
		Timeout:     timeout,
		Metrics:     m,
		Logger:      logging.NewComponentLogger(logger, "dispatch"),
	})

	var ping func(context.Context) error
	if store != nil {
		ping = store.Ping
	}
	engineCtx, cancel := context.WithCancel(context.Background())
	srv := server.New(server.Config{
		Machine:       machine,
		Sessions:      sessions,
		Pending:       pending,
		Resolver:      resolver,
		Placer:        placer,
		Dispatcher:    dispatcher,
		Campaigns:     campaigns,
		Planner:       planner,
		Loader:        campaign.NewLoader(timeout),
		CallLog:       logs,
		Events:        events,
		Markup:        telephony.Markup,
		ParseWebhook:  telephony.ParseWebhook,
		VerifyWebhook: telephony.Verify,
		Gather: transports.Gather{
			Language:      cfg.Gather.Language,
			TimeoutS:      cfg.Gather.TimeoutS,
			SpeechTimeout: cfg.Gather.SpeechTimeout,
			ActionURL:     telephony.ListenURL,
			PartialURL:    telephony.PartialURL,
		},
		Audio:       audioStore.Handler(),
		Ping:        ping,
		Metrics:     m,
		Logger:      logging.NewComponentLogger(logger, "server"),
		BaseContext: engineCtx,
	})

	e := &Engine{
		cfg:       cfg,
		logger:    logger,
		machine:   machine,
		sessions:  sessions,
		resolver:  resolver,
		tracker:   tracker,
		store:     store,
		events:    events,
		server:    srv,
		http: &http.Server{
			Addr:              cfg.Server.Addr,
			Handler:           srv.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
			BaseContext:       func(net.Listener) context.Context { return engineCtx },
		},
		ctx:    engineCtx,
		cancel: cancel,
	}
	e.runner = runner.NewLifecycleRunner(runner.DrainerFunc(e.drain), runner.Hooks{
		OnStart: e.start,
		OnStop: func() {
			logger.Info("shutdown", "goroutines", runtime.NumGoroutine(), "active_sessions", sessions.Len())
		},
	}, cfg.DrainTimeout())
	return e, nil
}

func buildMachine(cfg Config) (*dialog.Machine, error) {
	policy, err := dialog.ParseUnclearPolicy(cfg.Dialog.UnclearPolicy)
	if err != nil {
		return nil, fmt.Errorf("dialog.unclear_policy: %w", err)
	}
	return dialog.NewMachine(dialog.MachineConfig{
		Normalizer: dialog.NewNormalizer(dialog.NormalizerConfig{Vocabulary: cfg.Dialog.Vocabulary}),
		Classifier: dialog.NewKeywordClassifier(dialog.KeywordConfig{
			BusyPhrases:    cfg.Dialog.BusyPhrases,
			PendingPhrases: cfg.Dialog.PendingPhrases,
			DonePhrases:    cfg.Dialog.DonePhrases,
		}),
		RetryPrompts:    cfg.Dialog.RetryPrompts,
		UnclearPolicy:   policy,
		MinUtteranceLen: cfg.Dialog.MinUtteranceLen,
	}), nil
}

// Preload renders every default prompt so the first calls never wait on
// synthesis. Failures are logged and served lazily later.
func (e *Engine) Preload(ctx context.Context) error {
	prompts := audiocache.DefaultUtterances(e.machine.DefaultScript(), e.cfg.Dialog.RetryPrompts)
	started := time.Now()
	err := e.resolver.Preload(ctx, dialog.DefaultNamespace, prompts)
	if err != nil {
		e.logger.Warn("audio_preload_incomplete", "prompts", len(prompts), "error", err)
		return err
	}
	e.logger.Info("audio_preload_done", "prompts", len(prompts), "duration_ms", time.Since(started).Milliseconds())
	return nil
}

func (e *Engine) start(ctx context.Context) error {
	if e.cfg.Audio.Preload {
		_ = e.Preload(ctx)
	}
	ln, err := net.Listen("tcp", e.cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", e.cfg.Server.Addr, err)
	}
	go func() {
		if err := e.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			e.logger.Error("http_server_failed", "error", err)
			e.cancel()
		}
	}()
	e.logger.Info("engine_ready", "addr", ln.Addr().String(), "message", "Sampark Ready")
	return nil
}

// drain stops accepting requests, lets running batches and finalizations
// finish, then releases the database.
func (e *Engine) drain(ctx context.Context) error {
	var errs []error
	if err := e.http.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	if err := e.server.Drain(ctx); err != nil {
		errs = append(errs, fmt.Errorf("drain: %w", err))
	}
	e.cancel()
	if e.store != nil {
		e.store.Close()
	}
	return errors.Join(errs...)
}

// Run serves until ctx is done or the HTTP server fails, then drains.
func (e *Engine) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	release := context.AfterFunc(e.ctx, cancel)
	defer release()
	return e.runner.Run(runCtx)
}

func (e *Engine) Stop() error {
	return e.runner.Stop()
}

func (e *Engine) Handler() http.Handler { return e.http.Handler }

func (e *Engine) Tracker() sheets.Tracker { return e.tracker }
