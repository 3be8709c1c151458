package server

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/harunnryd/sampark/pkg/audiocache"
	"github.com/harunnryd/sampark/pkg/calllog"
	"github.com/harunnryd/sampark/pkg/campaign"
	"github.com/harunnryd/sampark/pkg/dialog"
	"github.com/harunnryd/sampark/pkg/dispatch"
	"github.com/harunnryd/sampark/pkg/metrics"
	"github.com/harunnryd/sampark/pkg/session"
	"github.com/harunnryd/sampark/pkg/transports"
)

// ServiceName is reported by the health endpoint.
const ServiceName = "sampark"

// maxCommitAttempts bounds optimistic retries when a turn races another
// webhook for the same call.
const maxCommitAttempts = 3

type Config struct {
	Machine    *dialog.Machine
	Sessions   session.Store
	Pending    *session.Pending
	Resolver   *audiocache.Resolver
	Placer     dispatch.Placer
	Dispatcher *dispatch.Dispatcher
	Campaigns  campaign.Repository
	Planner    campaign.Planner
	Loader     *campaign.Loader
	CallLog    *calllog.Logger
	// Events is optional; nil disables per-turn event rows.
	Events *calllog.Recorder

	Markup       transports.Markup
	ParseWebhook func(r *http.Request) (transports.Webhook, error)
	// VerifyWebhook wraps telephony routes, e.g. with signature validation.
	VerifyWebhook func(http.Handler) http.Handler
	Gather        transports.Gather

	Audio http.Handler
	// Ping is optional; it reports whether the database is reachable.
	Ping    func(context.Context) error
	Metrics *metrics.Metrics
	Logger  *slog.Logger
	Now     func() time.Time
	// BaseContext outlives requests; bulk batches and finalization run under it.
	BaseContext context.Context
}

// Server serves the call API and the telephony webhooks.
type Server struct {
	machine    *dialog.Machine
	sessions   session.Store
	pending    *session.Pending
	resolver   *audiocache.Resolver
	placer     dispatch.Placer
	dispatcher *dispatch.Dispatcher
	campaigns  campaign.Repository
	planner    campaign.Planner
	loader     *campaign.Loader
	calllog    *calllog.Logger
	events     *calllog.Recorder

	markup  transports.Markup
	parse   func(r *http.Request) (transports.Webhook, error)
	verify  func(http.Handler) http.Handler
	gather  transports.Gather
	audio   http.Handler
	ping    func(context.Context) error
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time
	baseCtx context.Context

	background sync.WaitGroup
}

func New(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.BaseContext == nil {
		cfg.BaseContext = context.Background()
	}
	if cfg.Pending == nil {
		cfg.Pending = session.NewPending(0)
	}
	if cfg.VerifyWebhook == nil {
		cfg.VerifyWebhook = func(h http.Handler) http.Handler { return h }
	}
	if cfg.Loader == nil {
		cfg.Loader = campaign.NewLoader(0)
	}
	return &Server{
		machine:    cfg.Machine,
		sessions:   cfg.Sessions,
		pending:    cfg.Pending,
		resolver:   cfg.Resolver,
		placer:     cfg.Placer,
		dispatcher: cfg.Dispatcher,
		campaigns:  cfg.Campaigns,
		planner:    cfg.Planner,
		loader:     cfg.Loader,
		calllog:    cfg.CallLog,
		events:     cfg.Events,
		markup:     cfg.Markup,
		parse:      cfg.ParseWebhook,
		verify:     cfg.VerifyWebhook,
		gather:     cfg.Gather,
		audio:      cfg.Audio,
		ping:       cfg.Ping,
		metrics:    cfg.Metrics,
		logger:     cfg.Logger,
		now:        cfg.Now,
		baseCtx:    cfg.BaseContext,
	}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("POST /call", s.api(s.handleCall))
	mux.Handle("POST /bulk-call", s.api(s.handleBulkCall))
	mux.Handle("GET /health", s.api(s.handleHealth))
	mux.Handle("GET /internal/campaign/{id}", s.api(s.handleGetCampaign))
	mux.Handle("POST /internal/campaign/preview", s.api(s.handlePreview))
	mux.Handle("POST /internal/campaign/from-source", s.api(s.handleFromSource))

	mux.Handle("POST /answer", s.telephony("answer", s.handleAnswer))
	mux.Handle("POST /listen", s.telephony("listen", s.handleListen))
	mux.Handle("POST /partial", s.telephony("partial", s.handlePartial))
	mux.Handle("POST /call-status", s.telephony("call_status", s.handleCallStatus))

	if s.audio != nil {
		mux.Handle("GET /audio/", s.audio)
	}
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}
	return mux
}

// api wraps a JSON route with panic recovery.
func (s *Server) api(h http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("api_panic", "path", r.URL.Path, "panic", rec)
				writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal", Message: "Internal server error"})
			}
		}()
		h(w, r)
	})
}

// telephony wraps a webhook with verification and a recovery that always
// answers with hang-up markup.
func (s *Server) telephony(hook string, h http.HandlerFunc) http.Handler {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("webhook_panic", "hook", hook, "path", r.URL.Path, "panic", rec)
				s.metrics.WebhookError(hook)
				s.writeMarkup(w, s.markup.Hangup(nil))
			}
		}()
		h(w, r)
	})
	return s.verify(inner)
}

// Drain waits for background batches, pending finalizations, campaign
// preloads and the event recorder to finish.
func (s *Server) Drain(ctx context.Context) error {
	if s.dispatcher != nil {
		if err := s.dispatcher.Wait(ctx); err != nil {
			return err
		}
	}
	done := make(chan struct{})
	go func() {
		s.background.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return s.events.Close(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status, code := "ok", http.StatusOK
	if s.ping != nil {
		if err := s.ping(r.Context()); err != nil {
			s.logger.Warn("health_database_unreachable", "error", err)
			status, code = "degraded", http.StatusServiceUnavailable
		}
	}
	writeJSON(w, code, map[string]any{
		"status":         status,
		"service":        ServiceName,
		"time":           s.now().UTC().Format(time.RFC3339),
		"activeSessions": s.sessions.Len(),
	})
}
