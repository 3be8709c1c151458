package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/harunnryd/sampark/pkg/calllog"
	"github.com/harunnryd/sampark/pkg/dialog"
	"github.com/harunnryd/sampark/pkg/errorsx"
	"github.com/harunnryd/sampark/pkg/logging"
	"github.com/harunnryd/sampark/pkg/redact"
	"github.com/harunnryd/sampark/pkg/session"
	"github.com/harunnryd/sampark/pkg/transports"
)

func (s *Server) hangup(w http.ResponseWriter) {
	s.writeMarkup(w, s.markup.Hangup(nil))
}

func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	hook, err := s.parse(r)
	if err != nil {
		s.logger.Warn("answer_invalid", "error", err)
		s.metrics.WebhookError("answer")
		s.hangup(w)
		return
	}
	logger := logging.CallLogger(s.logger, hook.CallSID)

	sess, ok := s.sessions.Get(hook.CallSID)
	if ok {
		s.pending.Drop(hook.Ref)
	} else {
		seed, expected := s.pending.Take(hook.Ref)
		if !expected {
			logger.Warn("answer_unknown_session")
			s.hangup(w)
			return
		}
		if seed.Phone == "" {
			seed.Phone = hook.To
		}
		if s.sessions.Insert(dialog.NewSession(hook.CallSID, seed, s.now())) {
			logger.Info("session_created_on_answer", "phone", redact.Phone(seed.Phone))
			s.metrics.SetSessions(s.sessions.Len())
		}
		if sess, ok = s.sessions.Get(hook.CallSID); !ok {
			s.hangup(w)
			return
		}
	}

	var greeting dialog.Utterance
	for attempt := 0; attempt < maxCommitAttempts; attempt++ {
		greeted := len(sess.AgentTexts) > 0
		var next dialog.Session
		next, greeting = s.machine.Open(sess)
		if greeted {
			break
		}
		if _, err = s.sessions.Commit(next); err == nil {
			s.record(sess.CallSID, calllog.RoleAgent, greeting.Text, dialog.StateIntro)
			break
		}
		if !errors.Is(err, session.ErrStale) {
			logger.Warn("answer_commit_failed", "error", err)
			s.hangup(w)
			return
		}
		if sess, ok = s.sessions.Get(hook.CallSID); !ok {
			s.hangup(w)
			return
		}
	}

	asset, err := s.resolver.ResolveUtterance(r.Context(), sess.Namespace, greeting)
	if err != nil {
		logger.Error("answer_audio_failed", "slot", greeting.Slot, "error", err)
		s.metrics.WebhookError("answer")
		s.hangup(w)
		return
	}
	logger.Info("call_answered", "namespace", sess.Namespace)
	s.writeMarkup(w, s.markup.Gather([]string{asset.URL}, s.gather))
}

func (s *Server) handlePartial(w http.ResponseWriter, r *http.Request) {
	hook, err := s.parse(r)
	if err != nil {
		w.WriteHeader(http.StatusOK)
		return
	}
	if strings.TrimSpace(hook.PartialSpeech) != "" {
		s.sessions.Touch(hook.CallSID, s.now())
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleListen(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	hook, err := s.parse(r)
	if err != nil {
		s.logger.Warn("listen_invalid", "error", err)
		s.metrics.WebhookError("listen")
		s.hangup(w)
		return
	}
	logger := logging.CallLogger(s.logger, hook.CallSID).With("turn_id", uuid.NewString())

	out, final, err := s.turn(hook)
	switch {
	case errors.Is(err, session.ErrNotFound):
		logger.Warn("listen_unknown_session")
		s.hangup(w)
		return
	case err != nil:
		logger.Error("listen_turn_failed", "error", err)
		s.metrics.WebhookError("listen")
		s.hangup(w)
		return
	}

	s.metrics.Turn(out.From.String(), out.Committed.String(), string(out.Branch), time.Since(started).Seconds())
	if out.Rejected {
		s.metrics.Rejected(out.From.String(), out.Proposed.String())
		logger.Warn("listen_transition_rejected", "from", out.From.String(), "proposed", out.Proposed.String())
	}
	if out.Branch != dialog.BranchUnclear && out.Normalized != "" {
		s.record(hook.CallSID, calllog.RoleUser, out.Normalized, out.From)
	}
	logger.Info("listen_turn_committed",
		"from", out.From.String(),
		"to", out.Session.State.String(),
		"branch", string(out.Branch),
		"directive", out.Directive.String(),
		"unclear", out.Session.UnclearCount,
		"text", redact.Text(out.Normalized),
	)

	if out.Directive == dialog.DirectiveHangup {
		if final != nil {
			s.finalize(*final)
		}
		s.hangup(w)
		return
	}

	urls := make([]string, 0, len(out.Prompts))
	for _, u := range out.Prompts {
		s.record(hook.CallSID, calllog.RoleAgent, u.Text, out.Session.State)
		asset, err := s.resolver.ResolveUtterance(r.Context(), out.Session.Namespace, u)
		if err != nil {
			// The call ends here; call-status finalizes the session.
			logger.Error("listen_audio_failed", "slot", u.Slot, "error", err)
			s.metrics.WebhookError("listen")
			s.writeMarkup(w, s.markup.Hangup(urls))
			return
		}
		urls = append(urls, asset.URL)
	}
	s.writeMarkup(w, s.markup.Gather(urls, s.gather))
}

// turn runs one dialog turn against the stored snapshot and commits it,
// retrying when a concurrent webhook committed first. A hang-up turn removes
// the session; final is set only for the caller that removed it.
func (s *Server) turn(hook transports.Webhook) (dialog.Outcome, *dialog.Session, error) {
	for attempt := 0; attempt < maxCommitAttempts; attempt++ {
		snap, ok := s.sessions.Get(hook.CallSID)
		if !ok {
			return dialog.Outcome{}, nil, session.ErrNotFound
		}
		out := s.machine.Turn(snap, hook.Speech)
		if out.Directive == dialog.DirectiveHangup {
			next := out.Session
			done, removed, err := s.sessions.Finalize(hook.CallSID, &next)
			if errors.Is(err, session.ErrStale) {
				continue
			}
			if err != nil {
				return out, nil, err
			}
			if !removed {
				return out, nil, nil
			}
			return out, &done, nil
		}
		committed, err := s.sessions.Commit(out.Session)
		if errors.Is(err, session.ErrStale) {
			continue
		}
		if err != nil {
			return out, nil, err
		}
		out.Session = committed
		return out, nil, nil
	}
	return dialog.Outcome{}, nil, errorsx.New(errorsx.ReasonSessionConflict, "turn lost the commit race")
}

func (s *Server) handleCallStatus(w http.ResponseWriter, r *http.Request) {
	hook, err := s.parse(r)
	if err != nil {
		s.metrics.WebhookError("call_status")
		w.WriteHeader(http.StatusOK)
		return
	}
	reason := transports.NormalizeCallEndReason(hook.CallStatus)
	if reason == "" {
		w.WriteHeader(http.StatusOK)
		return
	}
	s.pending.Drop(hook.Ref)
	logger := logging.CallLogger(s.logger, hook.CallSID)

	label := dialog.ResultAbandoned
	if !transports.Connected(reason) {
		label = reason
	}
	for attempt := 0; attempt < maxCommitAttempts; attempt++ {
		snap, ok := s.sessions.Get(hook.CallSID)
		if !ok {
			break
		}
		final := dialog.Abandon(snap, label, s.now())
		done, removed, err := s.sessions.Finalize(hook.CallSID, &final)
		if errors.Is(err, session.ErrStale) {
			continue
		}
		if err != nil || !removed {
			break
		}
		logger.Info("call_status_finalized", "status", hook.CallStatus, "reason", reason, "result", done.Result)
		s.finalize(done)
		break
	}
	w.WriteHeader(http.StatusOK)
}

// finalize writes the call log in the background; the webhook response does
// not wait for the external sinks.
func (s *Server) finalize(sess dialog.Session) {
	s.metrics.SetSessions(s.sessions.Len())
	s.background.Add(1)
	go func() {
		defer s.background.Done()
		ctx := context.WithoutCancel(s.baseCtx)
		if err := s.calllog.Finalize(ctx, sess); err != nil {
			s.logger.Warn("finalize_sinks_failed", slog.String("call_sid", sess.CallSID), slog.Any("error", err))
		}
	}()
}

func (s *Server) record(callSID, role, message string, st dialog.State) {
	if s.events == nil || message == "" {
		return
	}
	s.events.Record(calllog.Event{CallSID: callSID, Role: role, Message: message, State: st.String(), At: s.now()})
}
