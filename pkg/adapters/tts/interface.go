package tts

import "context"

// Voice selects the language, voice and encoding of synthesized audio.
type Voice struct {
	LanguageCode string
	Name         string
	// Encoding is the container of the returned bytes, e.g. "mp3".
	Encoding string
}

// DefaultVoice is the Gujarati voice used for every prompt.
var DefaultVoice = Voice{
	LanguageCode: "gu-IN",
	Name:         "gu-IN-Standard-A",
	Encoding:     "mp3",
}

// Extension returns the file extension for the voice encoding.
func (v Voice) Extension() string {
	switch v.Encoding {
	case "", "mp3":
		return ".mp3"
	case "wav", "linear16":
		return ".wav"
	case "ogg", "ogg_opus":
		return ".ogg"
	default:
		return "." + v.Encoding
	}
}

// Synthesizer defines the contract for any TTS vendor implementation.
type Synthesizer interface {
	// Name returns adapter name for logging/metrics.
	Name() string
	// Synthesize renders text into encoded audio bytes.
	Synthesize(ctx context.Context, text string, voice Voice) ([]byte, error)
}
