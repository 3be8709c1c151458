package mock

import (
	"context"
	"errors"
	"sync"

	"github.com/harunnryd/sampark/pkg/adapters/tts"
)

type TTSConfig struct {
	// Payload prefixes every rendered clip. Defaults to "mock-audio:".
	Payload string
	// Fail makes every call return an error.
	Fail bool
}

// Synthesizer returns deterministic bytes and counts calls.
type Synthesizer struct {
	cfg   TTSConfig
	mu    sync.Mutex
	calls int
	texts []string
	err   error
}

func NewTTS(cfg TTSConfig) *Synthesizer {
	if cfg.Payload == "" {
		cfg.Payload = "mock-audio:"
	}
	return &Synthesizer{cfg: cfg}
}

func (s *Synthesizer) Name() string { return "mock_tts" }

// SetError makes subsequent calls fail with err. Nil restores success.
func (s *Synthesizer) SetError(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

func (s *Synthesizer) Synthesize(ctx context.Context, text string, voice tts.Voice) ([]byte, error) {
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.texts = append(s.texts, text)
	if s.err != nil {
		return nil, s.err
	}
	if s.cfg.Fail {
		return nil, errors.New("mock tts failure")
	}
	return []byte(s.cfg.Payload + voice.Name + ":" + text), nil
}

// Calls returns how many synthesis requests were made.
func (s *Synthesizer) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// Texts returns the texts requested so far in order.
func (s *Synthesizer) Texts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.texts))
	copy(out, s.texts)
	return out
}
