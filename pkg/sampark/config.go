package sampark

import (
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/harunnryd/sampark/pkg/dialog"
	"github.com/spf13/viper"
)

type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Audio         AudioConfig         `mapstructure:"audio"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Dispatch      DispatchConfig      `mapstructure:"dispatch"`
	Collaborators CollaboratorsConfig `mapstructure:"collaborators"`
	Dialog        DialogConfig        `mapstructure:"dialog"`
	Gather        GatherConfig        `mapstructure:"gather"`
	Transports    TransportsConfig    `mapstructure:"transports"`
	Vendors       VendorsConfig       `mapstructure:"vendors"`
	Sheets        VendorConfig        `mapstructure:"sheets"`
	Metrics       MetricsConfig       `mapstructure:"metrics"`
	Privacy       PrivacyConfig       `mapstructure:"privacy"`
	Environment   string              `mapstructure:"environment"`
	LogLevel      string              `mapstructure:"log_level"`
	LogFormat     string              `mapstructure:"log_format"`
}

type VendorConfig struct {
	Provider string         `mapstructure:"provider"`
	Settings map[string]any `mapstructure:"settings"`
}

type VendorsConfig struct {
	TTS     VendorConfig `mapstructure:"tts"`
	Planner VendorConfig `mapstructure:"planner"`
}

type TransportsConfig struct {
	Provider string         `mapstructure:"provider"`
	Settings map[string]any `mapstructure:"settings"`
}

type ServerConfig struct {
	Addr           string `mapstructure:"addr"`
	PublicURL      string `mapstructure:"public_url"`
	DrainTimeoutMS int    `mapstructure:"drain_timeout_ms"`
}

type AudioConfig struct {
	Dir     string `mapstructure:"dir"`
	Preload bool   `mapstructure:"preload"`
}

type DatabaseConfig struct {
	URL     string `mapstructure:"url"`
	Migrate bool   `mapstructure:"migrate"`
}

type DispatchConfig struct {
	IntervalMS     int `mapstructure:"interval_ms"`
	Concurrency    int `mapstructure:"concurrency"`
	PlaceTimeoutMS int `mapstructure:"place_timeout_ms"`
}

type CollaboratorsConfig struct {
	TimeoutMS         int `mapstructure:"timeout_ms"`
	Retries           int `mapstructure:"retries"`
	RetryBackoffMS    int `mapstructure:"retry_backoff_ms"`
	BreakerThreshold  int `mapstructure:"breaker_threshold"`
	BreakerCooldownMS int `mapstructure:"breaker_cooldown_ms"`
	EventBuffer       int `mapstructure:"event_buffer"`
}

type DialogConfig struct {
	UnclearPolicy   string            `mapstructure:"unclear_policy"`
	RetryPrompts    []string          `mapstructure:"retry_prompts"`
	MinUtteranceLen int               `mapstructure:"min_utterance_len"`
	Vocabulary      map[string]string `mapstructure:"vocabulary"`
	BusyPhrases     []string          `mapstructure:"busy_phrases"`
	PendingPhrases  []string          `mapstructure:"pending_phrases"`
	DonePhrases     []string          `mapstructure:"done_phrases"`
}

type GatherConfig struct {
	Language      string `mapstructure:"language"`
	TimeoutS      int    `mapstructure:"timeout_s"`
	SpeechTimeout string `mapstructure:"speech_timeout"`
}

type MetricsConfig struct {
	Namespace string `mapstructure:"namespace"`
}

type PrivacyConfig struct {
	RedactPII bool `mapstructure:"redact_pii"`
}

// LoadConfig reads a YAML file, applies defaults and expands ${ENV} references.
// An empty path loads defaults and SAMPARK_* environment overrides only.
func LoadConfig(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("sampark")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if strings.TrimSpace(path) != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal: %w", err)
	}

	expandEnvStrings(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.public_url", "")
	v.SetDefault("server.drain_timeout_ms", 10000)
	v.SetDefault("audio.dir", "audio")
	v.SetDefault("audio.preload", true)
	v.SetDefault("database.url", "")
	v.SetDefault("database.migrate", true)
	v.SetDefault("dispatch.interval_ms", 1500)
	v.SetDefault("dispatch.concurrency", 0)
	v.SetDefault("dispatch.place_timeout_ms", 10000)
	v.SetDefault("collaborators.timeout_ms", 8000)
	v.SetDefault("collaborators.retries", 1)
	v.SetDefault("collaborators.retry_backoff_ms", 200)
	v.SetDefault("collaborators.breaker_threshold", 5)
	v.SetDefault("collaborators.breaker_cooldown_ms", 30000)
	v.SetDefault("collaborators.event_buffer", 1024)
	v.SetDefault("dialog.unclear_policy", "ladder")
	v.SetDefault("dialog.min_utterance_len", dialog.DefaultMinUtteranceLen)
	v.SetDefault("gather.language", "gu-IN")
	v.SetDefault("gather.timeout_s", 15)
	v.SetDefault("gather.speech_timeout", "auto")
	v.SetDefault("transports.provider", "mock")
	v.SetDefault("vendors.tts.provider", "mock")
	v.SetDefault("vendors.planner.provider", "rule")
	v.SetDefault("sheets.provider", "memory")
	v.SetDefault("metrics.namespace", "sampark")
	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
	v.SetDefault("privacy.redact_pii", true)
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Transports.Provider) == "" {
		return fmt.Errorf("transports.provider is required")
	}
	if strings.TrimSpace(c.Vendors.TTS.Provider) == "" {
		return fmt.Errorf("vendors.tts.provider is required")
	}
	if strings.TrimSpace(c.Vendors.Planner.Provider) == "" {
		return fmt.Errorf("vendors.planner.provider is required")
	}
	if strings.TrimSpace(c.Sheets.Provider) == "" {
		return fmt.Errorf("sheets.provider is required")
	}
	if strings.EqualFold(strings.TrimSpace(c.Transports.Provider), "twilio") && strings.TrimSpace(c.Server.PublicURL) == "" {
		return fmt.Errorf("server.public_url is required for the twilio transport")
	}
	if _, err := dialog.ParseUnclearPolicy(c.Dialog.UnclearPolicy); err != nil {
		return fmt.Errorf("dialog.unclear_policy: %w", err)
	}
	if c.Dispatch.IntervalMS < 0 {
		return fmt.Errorf("dispatch.interval_ms must be >= 0, got %d", c.Dispatch.IntervalMS)
	}
	if c.Dispatch.Concurrency < 0 {
		return fmt.Errorf("dispatch.concurrency must be >= 0, got %d", c.Dispatch.Concurrency)
	}
	if c.Gather.TimeoutS <= 0 {
		return fmt.Errorf("gather.timeout_s must be > 0, got %d", c.Gather.TimeoutS)
	}
	return nil
}

func (c Config) CollaboratorTimeout() time.Duration {
	return millis(c.Collaborators.TimeoutMS, 8*time.Second)
}

func (c Config) DispatchInterval() time.Duration {
	if c.Dispatch.IntervalMS <= 0 {
		return 0
	}
	return time.Duration(c.Dispatch.IntervalMS) * time.Millisecond
}

func (c Config) PlaceTimeout() time.Duration {
	return millis(c.Dispatch.PlaceTimeoutMS, 10*time.Second)
}

func (c Config) DrainTimeout() time.Duration {
	return millis(c.Server.DrainTimeoutMS, 10*time.Second)
}

func millis(ms int, fallback time.Duration) time.Duration {
	if ms <= 0 {
		return fallback
	}
	return time.Duration(ms) * time.Millisecond
}

func expandEnvStrings(cfg *Config) {
	expandValue(reflect.ValueOf(cfg))
	cfg.Vendors.TTS.Settings = expandSettings(cfg.Vendors.TTS.Settings)
	cfg.Vendors.Planner.Settings = expandSettings(cfg.Vendors.Planner.Settings)
	cfg.Sheets.Settings = expandSettings(cfg.Sheets.Settings)
	cfg.Transports.Settings = expandSettings(cfg.Transports.Settings)
}

func expandSettings(settings map[string]any) map[string]any {
	if settings == nil {
		return nil
	}
	for k, v := range settings {
		settings[k] = expandAny(v)
	}
	return settings
}

func expandAny(v any) any {
	switch val := v.(type) {
	case string:
		return os.ExpandEnv(val)
	case []any:
		for i := range val {
			val[i] = expandAny(val[i])
		}
		return val
	case map[string]any:
		for k, v := range val {
			val[k] = expandAny(v)
		}
		return val
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, v := range val {
			ks, ok := k.(string)
			if !ok {
				continue
			}
			out[ks] = expandAny(v)
		}
		return out
	default:
		return v
	}
}

func expandValue(v reflect.Value) {
	if !v.IsValid() {
		return
	}
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return
		}
		expandValue(v.Elem())
		return
	}
	switch v.Kind() {
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			expandValue(v.Field(i))
		}
	case reflect.String:
		if v.CanSet() {
			v.SetString(os.ExpandEnv(v.String()))
		}
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			expandValue(v.Index(i))
		}
	case reflect.Map:
		if v.Type().Key().Kind() == reflect.String && v.Type().Elem().Kind() == reflect.String {
			for _, key := range v.MapKeys() {
				val := v.MapIndex(key)
				expanded := os.ExpandEnv(val.String())
				v.SetMapIndex(key, reflect.ValueOf(expanded))
			}
		}
	}
}
