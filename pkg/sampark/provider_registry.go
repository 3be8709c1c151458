package sampark

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/harunnryd/sampark/pkg/adapters/tts"
	"github.com/harunnryd/sampark/pkg/campaign"
	"github.com/harunnryd/sampark/pkg/sheets"
	"github.com/harunnryd/sampark/pkg/transports"
)

// Telephony bundles what the webhook server needs from a voice provider.
type Telephony struct {
	Dialer       transports.Dialer
	Markup       transports.Markup
	ParseWebhook func(r *http.Request) (transports.Webhook, error)
	// Verify wraps telephony routes; nil leaves them unauthenticated.
	Verify     func(http.Handler) http.Handler
	BaseURL    string
	ListenURL  string
	PartialURL string
}

// Speech is a synthesizer together with the voice it renders prompts in.
type Speech struct {
	Synthesizer tts.Synthesizer
	Voice       tts.Voice
}

type TelephonyFactory func(ctx context.Context, cfg Config, logger *slog.Logger) (Telephony, error)
type TTSFactory func(ctx context.Context, cfg Config) (Speech, error)
type PlannerFactory func(ctx context.Context, cfg Config, logger *slog.Logger) (campaign.Planner, error)
type TrackerFactory func(ctx context.Context, cfg Config) (sheets.Tracker, error)

type ProviderRegistry struct {
	telephony map[string]TelephonyFactory
	tts       map[string]TTSFactory
	planner   map[string]PlannerFactory
	tracker   map[string]TrackerFactory
}

func NewProviderRegistry() *ProviderRegistry {
	return &ProviderRegistry{
		telephony: make(map[string]TelephonyFactory),
		tts:       make(map[string]TTSFactory),
		planner:   make(map[string]PlannerFactory),
		tracker:   make(map[string]TrackerFactory),
	}
}

func providerKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func (r *ProviderRegistry) RegisterTelephony(name string, factory TelephonyFactory) {
	r.telephony[providerKey(name)] = factory
}

func (r *ProviderRegistry) RegisterTTS(name string, factory TTSFactory) {
	r.tts[providerKey(name)] = factory
}

func (r *ProviderRegistry) RegisterPlanner(name string, factory PlannerFactory) {
	r.planner[providerKey(name)] = factory
}

func (r *ProviderRegistry) RegisterTracker(name string, factory TrackerFactory) {
	r.tracker[providerKey(name)] = factory
}

func (r *ProviderRegistry) BuildTelephony(ctx context.Context, cfg Config, logger *slog.Logger) (Telephony, error) {
	fn := r.telephony[providerKey(cfg.Transports.Provider)]
	if fn == nil {
		return Telephony{}, fmt.Errorf("transport provider not registered: %s", cfg.Transports.Provider)
	}
	return fn(ctx, cfg, logger)
}

func (r *ProviderRegistry) BuildTTS(ctx context.Context, cfg Config) (Speech, error) {
	fn := r.tts[providerKey(cfg.Vendors.TTS.Provider)]
	if fn == nil {
		return Speech{}, fmt.Errorf("tts provider not registered: %s", cfg.Vendors.TTS.Provider)
	}
	return fn(ctx, cfg)
}

func (r *ProviderRegistry) BuildPlanner(ctx context.Context, cfg Config, logger *slog.Logger) (campaign.Planner, error) {
	fn := r.planner[providerKey(cfg.Vendors.Planner.Provider)]
	if fn == nil {
		return nil, fmt.Errorf("planner provider not registered: %s", cfg.Vendors.Planner.Provider)
	}
	return fn(ctx, cfg, logger)
}

func (r *ProviderRegistry) BuildTracker(ctx context.Context, cfg Config) (sheets.Tracker, error) {
	fn := r.tracker[providerKey(cfg.Sheets.Provider)]
	if fn == nil {
		return nil, fmt.Errorf("sheets provider not registered: %s", cfg.Sheets.Provider)
	}
	return fn(ctx, cfg)
}
