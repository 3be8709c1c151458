package twilio

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/harunnryd/sampark/pkg/errorsx"
	"github.com/harunnryd/sampark/pkg/transports"
)

// ParseWebhook reads the form fields Twilio posts to voice webhooks.
func ParseWebhook(r *http.Request) (transports.Webhook, error) {
	if err := r.ParseForm(); err != nil {
		return transports.Webhook{}, errorsx.Wrap(err, errorsx.ReasonValidation)
	}
	hook := transports.Webhook{
		CallSID:       strings.TrimSpace(r.FormValue("CallSid")),
		Ref:           strings.TrimSpace(r.URL.Query().Get("ref")),
		From:          r.FormValue("From"),
		To:            r.FormValue("To"),
		Speech:        r.FormValue("SpeechResult"),
		PartialSpeech: r.FormValue("UnstableSpeechResult"),
		CallStatus:    r.FormValue("CallStatus"),
	}
	if hook.PartialSpeech == "" {
		hook.PartialSpeech = r.FormValue("StableSpeechResult")
	}
	if v := r.FormValue("Confidence"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			hook.Confidence = f
		}
	}
	if v := r.FormValue("CallDuration"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			hook.Duration = n
		}
	}
	if hook.CallSID == "" {
		return hook, errorsx.Validation("CallSid is required")
	}
	return hook, nil
}
