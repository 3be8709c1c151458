package sampark

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/harunnryd/sampark/pkg/adapters/tts"
	"github.com/harunnryd/sampark/pkg/campaign"
	"github.com/harunnryd/sampark/pkg/configutil"
	"github.com/harunnryd/sampark/pkg/errorsx"
	"github.com/harunnryd/sampark/pkg/providers/googletts"
	"github.com/harunnryd/sampark/pkg/providers/mock"
	"github.com/harunnryd/sampark/pkg/resilience"
	"github.com/harunnryd/sampark/pkg/sheets"
	mocktransport "github.com/harunnryd/sampark/pkg/transports/mock"
	twiliotransport "github.com/harunnryd/sampark/pkg/transports/twilio"
)

type googleTTSSettings struct {
	CredentialsFile string  `mapstructure:"credentials_file"`
	LanguageCode    string  `mapstructure:"language_code"`
	VoiceName       string  `mapstructure:"voice_name"`
	Encoding        string  `mapstructure:"encoding"`
	SpeakingRate    float64 `mapstructure:"speaking_rate"`
}

type mockTTSSettings struct {
	Payload string `mapstructure:"payload"`
	Fail    *bool  `mapstructure:"fail"`
}

type genAISettings struct {
	APIKey      string  `mapstructure:"api_key"`
	Model       string  `mapstructure:"model"`
	Temperature float32 `mapstructure:"temperature"`
	Fallback    *bool   `mapstructure:"fallback"`
}

var twilioSchema = configutil.Schema{
	Required: []string{"account_sid", "auth_token", "from_number"},
	Optional: []string{"public_url", "server_addr", "answer_path", "listen_path", "partial_path", "status_path", "ring_timeout_s", "validate_signature"},
}

// RegisterDefaults installs the built-in providers: twilio and mock telephony,
// google and mock speech, rule and genai planners, google and memory sheets.
func RegisterDefaults(reg *ProviderRegistry) {
	reg.RegisterTelephony("twilio", func(ctx context.Context, cfg Config, logger *slog.Logger) (Telephony, error) {
		var settings twiliotransport.Config
		if err := configutil.LoadSettings("transports.settings", cfg.Transports.Settings, twilioSchema, &settings); err != nil {
			return Telephony{}, err
		}
		settings.PublicURL = configutil.StringValue(settings.PublicURL, cfg.Server.PublicURL)
		settings.ServerAddr = configutil.StringValue(settings.ServerAddr, cfg.Server.Addr)
		dialer := twiliotransport.NewDialer(settings)
		tc := dialer.Config()
		return Telephony{
			Dialer:       dialer,
			Markup:       twiliotransport.Markup{},
			ParseWebhook: twiliotransport.ParseWebhook,
			Verify:       twiliotransport.NewValidator(tc, logger).Middleware,
			BaseURL:      tc.BaseURL(),
			ListenURL:    tc.ListenURL(),
			PartialURL:   tc.PartialURL(),
		}, nil
	})

	// The mock dialer never calls back; webhooks are driven by hand or by
	// scripts/make_call against the same Twilio-shaped routes.
	reg.RegisterTelephony("mock", func(ctx context.Context, cfg Config, logger *slog.Logger) (Telephony, error) {
		tc := twiliotransport.Config{PublicURL: cfg.Server.PublicURL, ServerAddr: cfg.Server.Addr}
		return Telephony{
			Dialer:       mocktransport.New(),
			Markup:       twiliotransport.Markup{},
			ParseWebhook: twiliotransport.ParseWebhook,
			BaseURL:      tc.BaseURL(),
			ListenURL:    tc.ListenURL(),
			PartialURL:   tc.PartialURL(),
		}, nil
	})

	reg.RegisterTTS("google", func(ctx context.Context, cfg Config) (Speech, error) {
		var settings googleTTSSettings
		if err := configutil.LoadSettings("vendors.tts.settings", cfg.Vendors.TTS.Settings, configutil.Schema{
			Optional: []string{"credentials_file", "language_code", "voice_name", "encoding", "speaking_rate"},
		}, &settings); err != nil {
			return Speech{}, err
		}
		if settings.SpeakingRate < 0 || settings.SpeakingRate > 4 {
			return Speech{}, errorsx.Errorf(errorsx.ReasonValidation, "vendors.tts.settings.speaking_rate must be between 0 and 4, got %v", settings.SpeakingRate)
		}
		client, err := googletts.New(ctx, googletts.Config{
			CredentialsFile: settings.CredentialsFile,
			SpeakingRate:    settings.SpeakingRate,
		})
		if err != nil {
			return Speech{}, fmt.Errorf("google tts: %w", err)
		}
		return Speech{Synthesizer: client, Voice: voiceFrom(settings)}, nil
	})

	reg.RegisterTTS("mock", func(ctx context.Context, cfg Config) (Speech, error) {
		var settings mockTTSSettings
		if err := configutil.LoadSettings("vendors.tts.settings", cfg.Vendors.TTS.Settings, configutil.Schema{
			Optional: []string{"payload", "fail"},
		}, &settings); err != nil {
			return Speech{}, err
		}
		return Speech{
			Synthesizer: mock.NewTTS(mock.TTSConfig{
				Payload: settings.Payload,
				Fail:    configutil.BoolValue(settings.Fail, false),
			}),
			Voice: tts.DefaultVoice,
		}, nil
	})

	reg.RegisterPlanner("rule", func(ctx context.Context, cfg Config, logger *slog.Logger) (campaign.Planner, error) {
		return campaign.NewRulePlanner(), nil
	})

	reg.RegisterPlanner("genai", func(ctx context.Context, cfg Config, logger *slog.Logger) (campaign.Planner, error) {
		var settings genAISettings
		if err := configutil.LoadSettings("vendors.planner.settings", cfg.Vendors.Planner.Settings, configutil.Schema{
			Required: []string{"api_key"},
			Optional: []string{"model", "temperature", "fallback"},
		}, &settings); err != nil {
			return nil, err
		}
		var fallback campaign.Planner
		if configutil.BoolValue(settings.Fallback, true) {
			fallback = campaign.NewRulePlanner()
		}
		planner, err := campaign.NewGenAIPlanner(ctx, campaign.GenAIConfig{
			APIKey:      settings.APIKey,
			Model:       settings.Model,
			Temperature: settings.Temperature,
			Fallback:    fallback,
			Logger:      logger,
		})
		if err != nil {
			return nil, fmt.Errorf("genai planner: %w", err)
		}
		return planner, nil
	})

	reg.RegisterTracker("google", func(ctx context.Context, cfg Config) (sheets.Tracker, error) {
		var settings sheets.GoogleConfig
		if err := configutil.LoadSettings("sheets.settings", cfg.Sheets.Settings, configutil.Schema{
			Required: []string{"spreadsheet_id"},
			Optional: []string{"credentials_file", "bulk_sheet", "log_sheet"},
		}, &settings); err != nil {
			return nil, err
		}
		retry := resilience.NewRetryPolicy(cfg.Collaborators.Retries, millis(cfg.Collaborators.RetryBackoffMS, 0))
		tracker, err := sheets.NewGoogleTracker(ctx, settings, retry)
		if err != nil {
			return nil, err
		}
		return tracker, nil
	})

	reg.RegisterTracker("memory", func(ctx context.Context, cfg Config) (sheets.Tracker, error) {
		return sheets.NewMemoryTracker(), nil
	})
}

func voiceFrom(s googleTTSSettings) tts.Voice {
	v := tts.DefaultVoice
	v.LanguageCode = configutil.StringValue(s.LanguageCode, v.LanguageCode)
	v.Name = configutil.StringValue(s.VoiceName, v.Name)
	v.Encoding = configutil.StringValue(s.Encoding, v.Encoding)
	return v
}
