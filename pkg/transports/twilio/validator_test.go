package twilio

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"testing"
)

func sign(token, target string, form url.Values) string {
	keys := make([]string, 0, len(form))
	for k := range form {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	payload := target
	for _, k := range keys {
		payload += k + form.Get(k)
	}
	mac := hmac.New(sha1.New, []byte(token))
	mac.Write([]byte(payload))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestValidatorMiddleware(t *testing.T) {
	cfg := Config{AuthToken: "secret", PublicURL: "https://calls.example.com", ValidateSignature: true}
	v := NewValidator(cfg, nil)
	handler := v.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		if r.FormValue("CallSid") != "CA1" {
			t.Errorf("body must survive validation")
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	form := url.Values{"CallSid": {"CA1"}, "SpeechResult": {"ha"}}

	unsigned := formRequest("/listen", form)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, unsigned)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for unsigned request, got %d", rec.Code)
	}

	signed := formRequest("/listen", form)
	signed.Header.Set("X-Twilio-Signature", sign("secret", "https://calls.example.com/listen", form))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, signed)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected signed request to pass, got %d", rec.Code)
	}
}

func TestValidatorDisabledPassesThrough(t *testing.T) {
	v := NewValidator(Config{AuthToken: "secret"}, nil)
	called := false
	handler := v.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))
	handler.ServeHTTP(httptest.NewRecorder(), formRequest("/listen", url.Values{}))
	if !called {
		t.Fatalf("expected passthrough")
	}
}
