package transports

import (
	"context"
	"strings"
)

// CallRequest describes one outbound placement.
type CallRequest struct {
	To   string
	From string
	// Ref correlates answer and status webhooks with the placement before the
	// provider call id is known.
	Ref string
}

// Dialer places outbound calls through a telephony provider.
type Dialer interface {
	Name() string
	PlaceCall(ctx context.Context, req CallRequest) (callSID string, err error)
}

// Gather configures speech collection after the prompts play.
type Gather struct {
	Language      string
	TimeoutS      int
	SpeechTimeout string
	ActionURL     string
	PartialURL    string
}

// Markup renders call-control documents returned from telephony webhooks.
type Markup interface {
	ContentType() string
	// Gather plays the prompts in order and then listens for speech.
	Gather(audioURLs []string, g Gather) string
	// Hangup plays the prompts and ends the call.
	Hangup(audioURLs []string) string
}

// Webhook is the provider-neutral view of a call-control callback.
type Webhook struct {
	CallSID       string
	Ref           string
	From          string
	To            string
	Speech        string
	PartialSpeech string
	Confidence    float64
	CallStatus    string
	Duration      int
}

// Call end reasons reported by NormalizeCallEndReason.
const (
	EndCompleted = "completed"
	EndBusy      = "busy"
	EndNoAnswer  = "no_answer"
	EndFailed    = "failed"
	EndUnknown   = "unknown"
)

// NormalizeCallEndReason maps provider call statuses onto end reasons.
// Statuses of calls still in flight return "".
func NormalizeCallEndReason(raw string) string {
	r := strings.ToLower(strings.TrimSpace(raw))
	if r == "" {
		return ""
	}
	switch r {
	case "queued", "initiated", "ringing", "in-progress", "inprogress", "answered":
		return ""
	case "completed", "call_ended", "call-ended", "completed_by_user", "hangup":
		return EndCompleted
	case "busy":
		return EndBusy
	case "no_answer", "noanswer", "no-answer":
		return EndNoAnswer
	case "failed", "error", "canceled", "cancelled", "transport_closed":
		return EndFailed
	default:
		return EndUnknown
	}
}

// Connected reports whether the end reason belongs to a call that was answered.
func Connected(reason string) bool {
	return reason == EndCompleted || reason == EndUnknown
}
