package dialog

import (
	"testing"
	"time"
)

func newTestMachine(policy UnclearPolicy, retry []string) *Machine {
	fixed := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)
	return NewMachine(MachineConfig{
		UnclearPolicy: policy,
		RetryPrompts:  retry,
		Now:           func() time.Time { return fixed },
	})
}

func sessionAt(st State) Session {
	s := NewSession("CA1", Seed{Phone: "+911234567890"}, time.Date(2026, 1, 2, 9, 59, 0, 0, time.UTC))
	s.State = st
	return s
}

func TestTurnIntroMovesToTaskCheck(t *testing.T) {
	m := newTestMachine(UnclearLadder, nil)
	out := m.Turn(sessionAt(StateIntro), "હા બોલો")
	if out.Session.State != StateTaskCheck {
		t.Fatalf("expected TASK_CHECK, got %s", out.Session.State)
	}
	if out.Directive != DirectiveGather {
		t.Fatalf("expected gather, got %s", out.Directive)
	}
	if len(out.Session.UserTexts) != 1 || out.Session.UserTexts[0] != "હા બોલો" {
		t.Fatalf("expected user text recorded, got %v", out.Session.UserTexts)
	}
	if len(out.Prompts) != 1 || out.Prompts[0].Slot != "TASK_CHECK" {
		t.Fatalf("unexpected prompts %+v", out.Prompts)
	}
}

func TestTurnBusyAtIntroAsksForCallbackTime(t *testing.T) {
	m := newTestMachine(UnclearLadder, nil)
	s := sessionAt(StateIntro)
	s.UnclearCount = 2
	out := m.Turn(s, "I am busy, call me later")
	if out.Branch != BranchBusy {
		t.Fatalf("expected busy branch, got %s", out.Branch)
	}
	if out.Session.State != StateCallbackTime {
		t.Fatalf("expected CALLBACK_TIME, got %s", out.Session.State)
	}
	if out.Session.UnclearCount != 0 {
		t.Fatalf("expected unclear counter reset, got %d", out.Session.UnclearCount)
	}

	out = m.Turn(out.Session, "સાંજે પાંચ વાગ્યે")
	if out.Session.State != StateCallbackConfirm {
		t.Fatalf("expected CALLBACK_CONFIRM, got %s", out.Session.State)
	}
	if out.Session.CallbackTime != "સાંજે પાંચ વાગ્યે" {
		t.Fatalf("expected callback captured verbatim, got %q", out.Session.CallbackTime)
	}
}

func TestTurnUnclearLadderFromTaskCheck(t *testing.T) {
	m := newTestMachine(UnclearLadder, nil)
	s := sessionAt(StateTaskCheck)
	want := []State{StateRetryTaskCheck, StateConfirmTask}
	for i, st := range want {
		out := m.Turn(s, "uh")
		if out.Branch != BranchUnclear {
			t.Fatalf("attempt %d: expected unclear branch, got %s", i+1, out.Branch)
		}
		if out.Session.State != st {
			t.Fatalf("attempt %d: expected %s, got %s", i+1, st, out.Session.State)
		}
		if out.Session.UnclearCount != i+1 {
			t.Fatalf("attempt %d: expected counter %d, got %d", i+1, i+1, out.Session.UnclearCount)
		}
		s = out.Session
	}
	out := m.Turn(s, "")
	if out.Committed != StateEscalate {
		t.Fatalf("expected ESCALATE on third attempt, got %s", out.Committed)
	}
	if out.Session.UnclearCount != 3 {
		t.Fatalf("expected counter 3, got %d", out.Session.UnclearCount)
	}
	if out.Session.State != StateConfirmEnd || out.Session.PendingEnd != StateEscalate {
		t.Fatalf("expected ESCALATE parked behind CONFIRM_END, got %s/%s", out.Session.State, out.Session.PendingEnd)
	}
	if len(out.Session.UserTexts) != 0 {
		t.Fatalf("inaudible input must not be recorded as a user turn")
	}
}

func TestTurnRetryPromptLadder(t *testing.T) {
	m := newTestMachine(UnclearLadder, []string{"ફરીથી કહેશો?", "થોડું મોટેથી બોલશો?"})
	out := m.Turn(sessionAt(StateTaskCheck), "")
	if out.Prompts[0].Text != "ફરીથી કહેશો?" || out.Prompts[0].Slot != "RETRY_TASK_CHECK-retry-1" {
		t.Fatalf("unexpected first retry prompt %+v", out.Prompts[0])
	}
	out = m.Turn(out.Session, "")
	if out.Prompts[0].Text != "થોડું મોટેથી બોલશો?" || out.Prompts[0].Slot != "CONFIRM_TASK-retry-2" {
		t.Fatalf("unexpected second retry prompt %+v", out.Prompts[0])
	}
}

func TestTurnClassifiesTaskStatus(t *testing.T) {
	m := newTestMachine(UnclearLadder, nil)
	out := m.Turn(sessionAt(StateTaskCheck), "હજુ બાકી છે")
	if out.Session.State != StateTaskPending {
		t.Fatalf("expected TASK_PENDING, got %s", out.Session.State)
	}
	if out.Session.Confidence != ConfidenceMatch {
		t.Fatalf("expected confidence %d, got %d", ConfidenceMatch, out.Session.Confidence)
	}
	out = m.Turn(out.Session, "ઓપરેટર પાસે ફોર્મ અટક્યું છે")
	if out.Committed != StateProblemRecorded || out.Session.State != StateConfirmEnd {
		t.Fatalf("expected PROBLEM_RECORDED behind CONFIRM_END, got %s/%s", out.Committed, out.Session.State)
	}
}

func TestTurnUnclearPolicies(t *testing.T) {
	ladder := newTestMachine(UnclearLadder, nil).Turn(sessionAt(StateTaskCheck), "કંઈક બીજું")
	if ladder.Session.State != StateRetryTaskCheck || ladder.Session.UnclearCount != 1 {
		t.Fatalf("ladder policy: expected RETRY_TASK_CHECK/1, got %s/%d", ladder.Session.State, ladder.Session.UnclearCount)
	}
	esc := newTestMachine(UnclearEscalate, nil).Turn(sessionAt(StateTaskCheck), "કંઈક બીજું")
	if esc.Committed != StateEscalate {
		t.Fatalf("escalate policy: expected ESCALATE, got %s", esc.Committed)
	}
}

func TestTurnRejectedEdgeForcesEscalate(t *testing.T) {
	m := NewMachine(MachineConfig{Guard: NewGuard([]Edge{{StateTaskCheck, StateTaskPending}})})
	out := m.Turn(sessionAt(StateTaskCheck), "થઈ ગયું")
	if !out.Rejected {
		t.Fatalf("expected TASK_CHECK->TASK_DONE to be rejected")
	}
	if out.Proposed != StateTaskDone || out.Committed != StateEscalate {
		t.Fatalf("expected proposed TASK_DONE committed ESCALATE, got %s/%s", out.Proposed, out.Committed)
	}
}

func TestTerminalRoutesThroughConfirmEnd(t *testing.T) {
	m := newTestMachine(UnclearLadder, nil)
	out := m.Turn(sessionAt(StateTaskCheck), "કામ થઈ ગયું")
	if out.Directive != DirectiveConfirmEnd {
		t.Fatalf("terminal state must not hang up on the same turn, got %s", out.Directive)
	}
	if out.Session.State != StateConfirmEnd || !out.Session.HasPending || out.Session.PendingEnd != StateTaskDone {
		t.Fatalf("expected TASK_DONE parked, got %+v", out.Session)
	}
	if len(out.Prompts) != 2 || out.Prompts[0].Slot != "TASK_DONE" || out.Prompts[1].Slot != "CONFIRM_END" {
		t.Fatalf("unexpected prompts %+v", out.Prompts)
	}
	if out.Session.Result != "" || !out.Session.EndedAt.IsZero() {
		t.Fatalf("session must not be finished yet")
	}

	final := m.Turn(out.Session, "")
	if final.Directive != DirectiveHangup {
		t.Fatalf("expected hangup after confirmation, got %s", final.Directive)
	}
	if final.Session.Result != "TASK_DONE" {
		t.Fatalf("expected result TASK_DONE, got %q", final.Session.Result)
	}
	if final.Session.EndedAt.IsZero() {
		t.Fatalf("expected end time set")
	}
}

func TestScriptOverrideTakesPrecedencePerState(t *testing.T) {
	m := newTestMachine(UnclearLadder, nil)
	s := sessionAt(StateIntro)
	s.Override = Script{StateTaskCheck: {Text: "શું તમને માહિતી સમજાઈ ગઈ?"}}
	out := m.Turn(s, "હા બોલો")
	if out.Prompts[0].Text != "શું તમને માહિતી સમજાઈ ગઈ?" {
		t.Fatalf("expected override prompt, got %q", out.Prompts[0].Text)
	}
	if !out.Prompts[0].Override {
		t.Fatalf("override prompt must be flagged")
	}
	out = m.Turn(out.Session, "થઈ ગયું")
	if out.Prompts[0].Text != DefaultScript()[StateTaskDone].Text {
		t.Fatalf("expected default prompt for state without override, got %q", out.Prompts[0].Text)
	}
	if out.Prompts[0].Override {
		t.Fatalf("default prompt must not be flagged as override")
	}
}

func TestStateAlwaysDeclared(t *testing.T) {
	m := newTestMachine(UnclearLadder, nil)
	inputs := []string{"", "busy later", "હા", "થઈ ગયું", "બાકી", "x", "not now busy", "ok", "હજુ બાકી છે થઈ ગયું"}
	for _, start := range States() {
		s := sessionAt(start)
		for i := 0; i < 6; i++ {
			out := m.Turn(s, inputs[(int(start)+i)%len(inputs)])
			if !out.Session.State.Valid() {
				t.Fatalf("state escaped declared set: %d", out.Session.State)
			}
			if out.Directive == DirectiveHangup {
				break
			}
			s = out.Session
		}
	}
}

func TestAbandonKeepsParkedTerminal(t *testing.T) {
	now := time.Now()
	s := sessionAt(StateConfirmEnd)
	s.PendingEnd = StateProblemRecorded
	s.HasPending = true
	if got := Abandon(s, "", now).Result; got != "PROBLEM_RECORDED" {
		t.Fatalf("expected parked result, got %q", got)
	}
	if got := Abandon(sessionAt(StateTaskCheck), "", now).Result; got != ResultAbandoned {
		t.Fatalf("expected abandoned, got %q", got)
	}
	if got := Abandon(sessionAt(StateIntro), "no_answer", now).Result; got != "no_answer" {
		t.Fatalf("expected no_answer, got %q", got)
	}
}
