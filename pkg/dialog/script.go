package dialog

import "strings"

// DefaultNamespace keys the built-in script's cached audio. Every call without
// a campaign override shares it.
const DefaultNamespace = "default"

// Prompt is the spoken text for one state.
type Prompt struct {
	Text     string `json:"text"`
	Terminal bool   `json:"end"`
}

// Script maps states to prompts.
type Script map[State]Prompt

// Scripts is the two-tier lookup consulted on every turn: a campaign override
// first, then the default, independently per state.
type Scripts struct {
	Override Script
	Default  Script
	// RetryPrompts are progressively worded prompts for the unclear ladder,
	// indexed by attempt (1-based). Empty means "use the state's prompt".
	RetryPrompts []string
}

// Lookup returns the prompt for s. The bool is false when neither tier has it.
func (sc Scripts) Lookup(s State) (Prompt, bool) {
	if sc.Overridden(s) {
		return sc.Override[s], true
	}
	if p, ok := sc.Default[s]; ok {
		return p, true
	}
	return Prompt{}, false
}

// Overridden reports whether the campaign tier supplies the prompt for s.
func (sc Scripts) Overridden(s State) bool {
	p, ok := sc.Override[s]
	return ok && strings.TrimSpace(p.Text) != ""
}

// Utterance resolves the prompt for s into a speakable utterance.
func (sc Scripts) Utterance(s State) Utterance {
	p, _ := sc.Lookup(s)
	return Utterance{Slot: s.String(), Text: p.Text, Override: sc.Overridden(s)}
}

// RetryPrompt returns the ladder prompt for attempt, if one is configured.
// Attempts past the end of the ladder reuse its last entry.
func (sc Scripts) RetryPrompt(attempt int) (string, bool) {
	if len(sc.RetryPrompts) == 0 || attempt < 1 {
		return "", false
	}
	idx := attempt - 1
	if idx >= len(sc.RetryPrompts) {
		idx = len(sc.RetryPrompts) - 1
	}
	text := strings.TrimSpace(sc.RetryPrompts[idx])
	return text, text != ""
}

// ScriptFromMap builds a Script from state-name keys, ignoring unknown names.
func ScriptFromMap(in map[string]Prompt) Script {
	out := make(Script, len(in))
	for k, v := range in {
		st, ok := ParseState(k)
		if !ok {
			continue
		}
		out[st] = v
	}
	return out
}

// DefaultScript is the built-in Gujarati task-status script.
func DefaultScript() Script {
	return Script{
		StateIntro: {
			Text: "નમસ્તે, હું સેવા કેન્દ્રમાંથી બોલું છું. તમારી અરજી વિશે બે મિનિટ વાત કરી શકીએ?",
		},
		StateTaskCheck: {
			Text: "તમારું સુધારાનું કામ પૂર્ણ થયું છે કે હજુ બાકી છે?",
		},
		StateRetryTaskCheck: {
			Text: "માફ કરશો, મને બરાબર સંભળાયું નહીં. શું તમારું કામ પૂર્ણ થયું છે?",
		},
		StateConfirmTask: {
			Text: "કૃપા કરીને ફક્ત એટલું કહો, કામ થઈ ગયું છે કે બાકી છે?",
		},
		StateTaskDone: {
			Text:     "ખૂબ સરસ. તમારો સમય આપવા બદલ આભાર.",
			Terminal: true,
		},
		StateTaskPending: {
			Text: "સમજાયું. કામ બાકી રહેવાનું કારણ ટૂંકમાં જણાવશો?",
		},
		StateProblemRecorded: {
			Text:     "તમારી સમસ્યા નોંધી લીધી છે. અમારી ટીમ જલ્દી સંપર્ક કરશે. આભાર.",
			Terminal: true,
		},
		StateCallbackTime: {
			Text: "કોઈ વાંધો નહીં. તમને ફરી ક્યારે ફોન કરીએ તો અનુકૂળ રહેશે?",
		},
		StateCallbackConfirm: {
			Text: "બરાબર, અમે એ સમયે ફરી ફોન કરીશું. તે પહેલાં કહો, શું તમારું કામ પૂર્ણ થયું છે?",
		},
		StateEscalate: {
			Text:     "તમારી વાત અમારા અધિકારી સુધી પહોંચાડીશું. તેઓ તમારો સંપર્ક કરશે. આભાર.",
			Terminal: true,
		},
		StateConfirmEnd: {
			Text: "બીજું કંઈ કહેવું હોય તો હમણાં કહો, નહીંતર અમે કોલ પૂર્ણ કરીએ છીએ.",
		},
	}
}
