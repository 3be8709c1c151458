package dialog

import "strings"

// TaskStatus is the outcome of task-status classification.
type TaskStatus int

const (
	TaskUnclear TaskStatus = iota
	TaskDone
	TaskPending
)

func (s TaskStatus) String() string {
	switch s {
	case TaskDone:
		return "DONE"
	case TaskPending:
		return "PENDING"
	default:
		return "UNCLEAR"
	}
}

// Heuristic confidence scores. They are fixed scores, not probabilities.
const (
	ConfidenceMatch    = 90
	ConfidenceConflict = 40
	ConfidenceNoMatch  = 30
)

// BusyThreshold is the number of distinct busy phrases required to treat an
// utterance as a deferral.
const BusyThreshold = 2

// Classification pairs a task status with its heuristic confidence.
type Classification struct {
	Status     TaskStatus
	Confidence int
}

// Classifier detects caller intent in a normalized utterance.
type Classifier interface {
	ClassifyBusy(text string) bool
	ClassifyTaskStatus(text string) Classification
}

var (
	DefaultBusyPhrases = []string{
		"સમય",
		"નથી",
		"પછી",
		"બાદમાં",
		"હવે નહીં",
		"હવે નથી",
		"પછી વાત",
		"later",
		"busy",
		"not now",
	}
	DefaultPendingPhrases = []string{"નથી", "બાકી", "હજુ", "પૂર્ણ નથી", "ચાલુ છે", "pending"}
	DefaultDonePhrases    = []string{"પૂર્ણ થયું", "થઈ ગયું", "થયું છે", "મળી ગયું", "done"}
)

type KeywordConfig struct {
	BusyPhrases    []string
	PendingPhrases []string
	DonePhrases    []string
}

// KeywordClassifier scores substring matches against fixed phrase sets.
type KeywordClassifier struct {
	busy    []string
	pending []string
	done    []string
}

func NewKeywordClassifier(cfg KeywordConfig) *KeywordClassifier {
	if len(cfg.BusyPhrases) == 0 {
		cfg.BusyPhrases = DefaultBusyPhrases
	}
	if len(cfg.PendingPhrases) == 0 {
		cfg.PendingPhrases = DefaultPendingPhrases
	}
	if len(cfg.DonePhrases) == 0 {
		cfg.DonePhrases = DefaultDonePhrases
	}
	return &KeywordClassifier{
		busy:    dedupe(cfg.BusyPhrases),
		pending: dedupe(cfg.PendingPhrases),
		done:    dedupe(cfg.DonePhrases),
	}
}

// ClassifyBusy reports whether at least two distinct busy phrases occur in text.
func (k *KeywordClassifier) ClassifyBusy(text string) bool {
	if text == "" {
		return false
	}
	score := 0
	for _, p := range k.busy {
		if strings.Contains(text, p) {
			score++
		}
	}
	return score >= BusyThreshold
}

// ClassifyTaskStatus checks text against the pending and done phrase sets.
func (k *KeywordClassifier) ClassifyTaskStatus(text string) Classification {
	p := containsAny(text, k.pending)
	d := containsAny(text, k.done)
	switch {
	case d && !p:
		return Classification{Status: TaskDone, Confidence: ConfidenceMatch}
	case p && !d:
		return Classification{Status: TaskPending, Confidence: ConfidenceMatch}
	case p && d:
		return Classification{Status: TaskUnclear, Confidence: ConfidenceConflict}
	default:
		return Classification{Status: TaskUnclear, Confidence: ConfidenceNoMatch}
	}
}

func containsAny(text string, phrases []string) bool {
	if text == "" {
		return false
	}
	for _, p := range phrases {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

var _ Classifier = (*KeywordClassifier)(nil)
