package dialog

import (
	"regexp"
	"sort"
	"strings"
)

// DefaultVocabulary maps English terms that callers mix into Gujarati speech
// onto their canonical Gujarati equivalents.
var DefaultVocabulary = map[string]string{
	"aadhar":     "આધાર",
	"aadhaar":    "આધાર",
	"card":       "કાર્ડ",
	"data":       "ડેટા",
	"entry":      "એન્ટ્રી",
	"update":     "સુધારો",
	"correction": "સુધારો",
	"name":       "નામ",
	"address":    "સરનામું",
	"mobile":     "મોબાઇલ",
	"number":     "નંબર",
	"change":     "ફેરફાર",
}

// DefaultFillers are interjections dropped from every utterance.
var DefaultFillers = []string{"umm", "uh", "hmm", "ok", "okay"}

type NormalizerConfig struct {
	Vocabulary map[string]string
	Fillers    []string
}

type replacement struct {
	re *regexp.Regexp
	to string
}

// Normalizer cleans a raw speech transcript before classification.
// It is safe for concurrent use.
type Normalizer struct {
	replacements []replacement
	fillers      *regexp.Regexp
	spaces       *regexp.Regexp
}

func NewNormalizer(cfg NormalizerConfig) *Normalizer {
	if cfg.Vocabulary == nil {
		cfg.Vocabulary = DefaultVocabulary
	}
	if cfg.Fillers == nil {
		cfg.Fillers = DefaultFillers
	}
	keys := make([]string, 0, len(cfg.Vocabulary))
	for k := range cfg.Vocabulary {
		if strings.TrimSpace(k) != "" {
			keys = append(keys, k)
		}
	}
	// Longest first so multi-word terms win over their parts.
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	n := &Normalizer{spaces: regexp.MustCompile(`\s+`)}
	for _, k := range keys {
		n.replacements = append(n.replacements, replacement{
			re: regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(strings.ToLower(k)) + `\b`),
			to: cfg.Vocabulary[k],
		})
	}
	if len(cfg.Fillers) > 0 {
		quoted := make([]string, 0, len(cfg.Fillers))
		for _, f := range cfg.Fillers {
			quoted = append(quoted, regexp.QuoteMeta(strings.ToLower(f)))
		}
		n.fillers = regexp.MustCompile(`(?i)\b(` + strings.Join(quoted, "|") + `)\b`)
	}
	return n
}

// Normalize lower-cases text, substitutes mixed vocabulary, strips fillers and
// trims whitespace. It never fails; empty input yields "".
func (n *Normalizer) Normalize(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	out := strings.ToLower(text)
	for _, r := range n.replacements {
		out = r.re.ReplaceAllLiteralString(out, r.to)
	}
	if n.fillers != nil {
		out = n.fillers.ReplaceAllString(out, "")
	}
	out = n.spaces.ReplaceAllString(out, " ")
	return strings.TrimSpace(out)
}
