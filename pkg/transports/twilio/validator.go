package twilio

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/harunnryd/sampark/pkg/errorsx"
	twilioclient "github.com/twilio/twilio-go/client"
)

// Validator checks X-Twilio-Signature on incoming webhooks.
type Validator struct {
	cfg       Config
	validator twilioclient.RequestValidator
	logger    *slog.Logger
}

func NewValidator(cfg Config, logger *slog.Logger) *Validator {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{
		cfg:       cfg,
		validator: twilioclient.NewRequestValidator(cfg.AuthToken),
		logger:    logger,
	}
}

// Middleware rejects unsigned requests with 403. It is a passthrough when
// validation is disabled or no auth token is configured.
func (v *Validator) Middleware(next http.Handler) http.Handler {
	if v == nil || !v.cfg.ValidateSignature || v.cfg.AuthToken == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !v.Valid(r) {
			v.logger.Warn("twilio_invalid_signature",
				"path", r.URL.Path,
				"reason_code", string(errorsx.ReasonTransportInvalidSignature),
			)
			w.WriteHeader(http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (v *Validator) Valid(r *http.Request) bool {
	signature := r.Header.Get("X-Twilio-Signature")
	if signature == "" {
		return false
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return false
	}
	_ = r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(body))

	target := v.requestURL(r)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/x-www-form-urlencoded") {
		values, err := url.ParseQuery(string(body))
		if err != nil {
			return false
		}
		params := make(map[string]string, len(values))
		for k := range values {
			params[k] = values.Get(k)
		}
		return v.validator.Validate(target, params, signature)
	}
	return v.validator.ValidateBody(target, body, signature)
}

func (v *Validator) requestURL(r *http.Request) string {
	if v.cfg.PublicURL != "" {
		return v.cfg.BaseURL() + r.URL.RequestURI()
	}
	scheme := r.URL.Scheme
	if scheme == "" {
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		} else {
			scheme = "https"
		}
	}
	host := r.Host
	if host == "" {
		host = strings.TrimPrefix(v.cfg.ServerAddr, ":")
	}
	return scheme + "://" + host + r.URL.RequestURI()
}
