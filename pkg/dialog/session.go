package dialog

import (
	"strings"
	"time"
)

// Result labels for sessions that did not end on a confirmed terminal state.
const (
	ResultAbandoned = "abandoned"
)

// Session is the live conversational record of one call. A Session value is a
// snapshot: handlers copy it out of the store, mutate the copy and commit it back.
type Session struct {
	CallSID    string
	Phone      string
	BatchID    string
	CampaignID string
	Namespace  string
	// Override is the campaign script for this call. It is read-only and may be
	// shared between snapshots.
	Override Script

	State      State
	PendingEnd State
	HasPending bool

	UnclearCount int
	Confidence   int

	AgentTexts []string
	UserTexts  []string
	Transcript []string

	StartedAt     time.Time
	EndedAt       time.Time
	LastPartialAt time.Time

	Logged       bool
	Result       string
	CallbackTime string

	// Version is bumped by the store on every committed turn.
	Version uint64
}

// Seed carries the identity of a call before the provider has issued its id.
type Seed struct {
	Phone      string
	BatchID    string
	CampaignID string
	Namespace  string
	Override   Script
}

// NewSession creates a session at the initial state.
func NewSession(callSID string, seed Seed, now time.Time) Session {
	ns := strings.TrimSpace(seed.Namespace)
	if ns == "" {
		ns = DefaultNamespace
	}
	return Session{
		CallSID:    callSID,
		Phone:      seed.Phone,
		BatchID:    seed.BatchID,
		CampaignID: seed.CampaignID,
		Namespace:  ns,
		Override:   seed.Override,
		State:      InitialState,
		StartedAt:  now,
	}
}

// Clone returns a deep copy of the mutable parts of s.
func (s Session) Clone() Session {
	out := s
	out.AgentTexts = append([]string(nil), s.AgentTexts...)
	out.UserTexts = append([]string(nil), s.UserTexts...)
	out.Transcript = append([]string(nil), s.Transcript...)
	return out
}

// Duration is the elapsed call time, zero until the session has ended.
func (s Session) Duration() time.Duration {
	if s.StartedAt.IsZero() || s.EndedAt.IsZero() {
		return 0
	}
	return s.EndedAt.Sub(s.StartedAt)
}

func (s *Session) recordAgent(text string) {
	if text == "" {
		return
	}
	s.AgentTexts = append(s.AgentTexts, text)
	s.Transcript = append(s.Transcript, "AI: "+text)
}

func (s *Session) recordUser(text string) {
	if text == "" {
		return
	}
	s.Transcript = append(s.Transcript, "User: "+text)
	if n := len(s.UserTexts); n > 0 && s.UserTexts[n-1] == text {
		return
	}
	s.UserTexts = append(s.UserTexts, text)
}
