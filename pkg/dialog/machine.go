package dialog

import (
	"fmt"
	"time"
	"unicode/utf8"
)

// UnclearPolicy decides where an UNCLEAR task-status classification goes.
type UnclearPolicy int

const (
	// UnclearLadder routes UNCLEAR through the same retry ladder as inaudible input.
	UnclearLadder UnclearPolicy = iota
	// UnclearEscalate routes UNCLEAR straight to ESCALATE.
	UnclearEscalate
)

// ParseUnclearPolicy accepts "ladder" (default) or "escalate".
func ParseUnclearPolicy(v string) (UnclearPolicy, error) {
	switch v {
	case "", "ladder":
		return UnclearLadder, nil
	case "escalate":
		return UnclearEscalate, nil
	default:
		return UnclearLadder, fmt.Errorf("unknown unclear policy %q", v)
	}
}

// Directive tells the telephony layer what to do after a turn.
type Directive int

const (
	// DirectiveGather plays the prompts and listens for more speech.
	DirectiveGather Directive = iota
	// DirectiveConfirmEnd plays the terminal and confirmation prompts and listens once more.
	DirectiveConfirmEnd
	// DirectiveHangup ends the call; the session must be finalized.
	DirectiveHangup
)

func (d Directive) String() string {
	switch d {
	case DirectiveGather:
		return "gather"
	case DirectiveConfirmEnd:
		return "confirm_end"
	case DirectiveHangup:
		return "hangup"
	default:
		return "unknown"
	}
}

// Branch records which rule of the turn algorithm fired.
type Branch string

const (
	BranchBusy     Branch = "busy"
	BranchUnclear  Branch = "unclear"
	BranchNormal   Branch = "normal"
	BranchFinalize Branch = "finalize"
)

// DefaultMinUtteranceLen is the shortest normalized utterance treated as speech.
const DefaultMinUtteranceLen = 3

// Utterance is one prompt the agent speaks. Slot identifies its cached audio
// within the session's namespace.
type Utterance struct {
	Slot string
	Text string
	// Override is set when the text comes from the campaign tier. Other
	// utterances are cached in the default namespace.
	Override bool
}

// Outcome is the result of a single turn.
type Outcome struct {
	Session    Session
	Normalized string
	Branch     Branch
	From       State
	Proposed   State
	// Committed is the state after guard validation, before a terminal state
	// is parked behind CONFIRM_END.
	Committed      State
	Rejected       bool
	Classification *Classification
	Prompts        []Utterance
	Directive      Directive
}

type MachineConfig struct {
	Normalizer      *Normalizer
	Classifier      Classifier
	Guard           *Guard
	DefaultScript   Script
	RetryPrompts    []string
	UnclearPolicy   UnclearPolicy
	MinUtteranceLen int
	Now             func() time.Time
}

// Machine is the per-turn dialog controller. It holds no per-call state and
// performs no I/O; every method maps a session snapshot to a new one.
type Machine struct {
	norm   *Normalizer
	cls    Classifier
	guard  *Guard
	script Script
	retry  []string
	policy UnclearPolicy
	minLen int
	now    func() time.Time
}

func NewMachine(cfg MachineConfig) *Machine {
	if cfg.Normalizer == nil {
		cfg.Normalizer = NewNormalizer(NormalizerConfig{})
	}
	if cfg.Classifier == nil {
		cfg.Classifier = NewKeywordClassifier(KeywordConfig{})
	}
	if cfg.Guard == nil {
		cfg.Guard = NewGuard(nil)
	}
	if cfg.DefaultScript == nil {
		cfg.DefaultScript = DefaultScript()
	}
	if cfg.MinUtteranceLen <= 0 {
		cfg.MinUtteranceLen = DefaultMinUtteranceLen
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Machine{
		norm:   cfg.Normalizer,
		cls:    cfg.Classifier,
		guard:  cfg.Guard,
		script: cfg.DefaultScript,
		retry:  cfg.RetryPrompts,
		policy: cfg.UnclearPolicy,
		minLen: cfg.MinUtteranceLen,
		now:    cfg.Now,
	}
}

// DefaultScript returns the fallback tier used for every call.
func (m *Machine) DefaultScript() Script { return m.script }

// Scripts returns the two-tier lookup for a session.
func (m *Machine) Scripts(s Session) Scripts {
	return Scripts{Override: s.Override, Default: m.script, RetryPrompts: m.retry}
}

// Open records the greeting for a freshly answered call and returns it.
// Calling Open again on a session that already greeted only returns the prompt.
func (m *Machine) Open(s Session) (Session, Utterance) {
	s = s.Clone()
	u := m.Scripts(s).Utterance(StateIntro)
	if len(s.AgentTexts) == 0 {
		s.recordAgent(u.Text)
	}
	return s, u
}

// Turn consumes one raw transcript and returns the next session snapshot.
func (m *Machine) Turn(in Session, transcript string) Outcome {
	s := in.Clone()
	text := m.norm.Normalize(transcript)
	out := Outcome{Normalized: text, From: s.State}

	if s.State == StateConfirmEnd || s.State.Terminal() {
		return m.finish(s, text, out)
	}

	var next State
	attempt := 0
	switch {
	case s.State == StateIntro && m.cls.ClassifyBusy(text):
		out.Branch = BranchBusy
		s.recordUser(text)
		s.UnclearCount = 0
		next = StateCallbackTime
	case utf8.RuneCountInString(text) < m.minLen:
		out.Branch = BranchUnclear
		s.UnclearCount++
		attempt = s.UnclearCount
		next = LadderState(attempt)
	default:
		out.Branch = BranchNormal
		s.recordUser(text)
		switch s.State {
		case StateIntro:
			s.UnclearCount = 0
			next = StateTaskCheck
		case StateCallbackTime:
			s.UnclearCount = 0
			s.CallbackTime = text
			next = StateCallbackConfirm
		case StateTaskPending:
			s.UnclearCount = 0
			next = StateProblemRecorded
		default:
			c := m.cls.ClassifyTaskStatus(text)
			out.Classification = &c
			s.Confidence = c.Confidence
			switch c.Status {
			case TaskDone:
				s.UnclearCount = 0
				next = StateTaskDone
			case TaskPending:
				s.UnclearCount = 0
				next = StateTaskPending
			default:
				if m.policy == UnclearEscalate {
					next = StateEscalate
				} else {
					s.UnclearCount++
					attempt = s.UnclearCount
					next = LadderState(attempt)
				}
			}
		}
	}

	out.Proposed = next
	committed, ok := m.guard.Resolve(s.State, next)
	out.Rejected = !ok
	out.Committed = committed
	s.State = committed

	scripts := m.Scripts(s)
	prompt := m.promptFor(scripts, committed, attempt, ok)
	if committed.Terminal() {
		s.PendingEnd = committed
		s.HasPending = true
		s.State = StateConfirmEnd
		out.Prompts = []Utterance{prompt, scripts.Utterance(StateConfirmEnd)}
		out.Directive = DirectiveConfirmEnd
	} else {
		out.Prompts = []Utterance{prompt}
		out.Directive = DirectiveGather
	}
	for _, p := range out.Prompts {
		s.recordAgent(p.Text)
	}
	out.Session = s
	return out
}

func (m *Machine) promptFor(scripts Scripts, st State, attempt int, legal bool) Utterance {
	if attempt > 0 && legal && !st.Terminal() {
		if text, ok := scripts.RetryPrompt(attempt); ok {
			return Utterance{Slot: RetrySlot(st, attempt), Text: text}
		}
	}
	return scripts.Utterance(st)
}

// finish handles the turn after CONFIRM_END: the call ends on the parked state.
func (m *Machine) finish(s Session, text string, out Outcome) Outcome {
	out.Branch = BranchFinalize
	if utf8.RuneCountInString(text) >= m.minLen {
		s.recordUser(text)
	}
	end := s.State
	if s.HasPending {
		end = s.PendingEnd
	} else if !end.Terminal() {
		end = StateEscalate
	}
	out.Proposed = end
	out.Committed = end
	s.Result = end.String()
	s.EndedAt = m.now()
	out.Directive = DirectiveHangup
	out.Session = s
	return out
}

// Abandon closes a session whose call ended without a confirmed terminal turn.
// A parked terminal state wins over reason.
func Abandon(s Session, reason string, now time.Time) Session {
	s = s.Clone()
	switch {
	case s.HasPending:
		s.Result = s.PendingEnd.String()
	case s.Result == "":
		if reason == "" {
			reason = ResultAbandoned
		}
		s.Result = reason
	}
	if s.EndedAt.IsZero() {
		s.EndedAt = now
	}
	return s
}

// LadderState maps the n-th consecutive unclear attempt to its state.
func LadderState(attempt int) State {
	switch {
	case attempt <= 1:
		return StateRetryTaskCheck
	case attempt == 2:
		return StateConfirmTask
	default:
		return StateEscalate
	}
}

// RetrySlot names the cached audio of the ladder prompt for attempt.
func RetrySlot(st State, attempt int) string {
	return fmt.Sprintf("%s-retry-%d", st, attempt)
}
