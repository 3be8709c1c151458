package audiocache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/harunnryd/sampark/pkg/adapters/tts"
	"github.com/harunnryd/sampark/pkg/dialog"
	"github.com/harunnryd/sampark/pkg/errorsx"
	"github.com/harunnryd/sampark/pkg/metrics"
	"github.com/harunnryd/sampark/pkg/resilience"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Asset is a stored prompt clip.
type Asset struct {
	Namespace string
	Slot      string
	URL       string
	// Synthesized is true when this call rendered the clip.
	Synthesized bool
}

type Config struct {
	Store       Store
	Synthesizer tts.Synthesizer
	Voice       tts.Voice
	Timeout     time.Duration
	Retry       resilience.RetryPolicy
	Breaker     *resilience.CircuitBreaker
	Metrics     *metrics.Metrics
	Logger      *slog.Logger
	// PreloadConcurrency bounds parallel synthesis during Preload.
	PreloadConcurrency int
}

// Resolver maps (namespace, slot) to an asset, synthesizing on the first miss
// only. Concurrent misses for the same key share one synthesis.
type Resolver struct {
	store   Store
	synth   tts.Synthesizer
	voice   tts.Voice
	timeout time.Duration
	retry   resilience.RetryPolicy
	breaker *resilience.CircuitBreaker
	metrics *metrics.Metrics
	logger  *slog.Logger
	preload int
	group   singleflight.Group
}

func NewResolver(cfg Config) *Resolver {
	if cfg.Voice.LanguageCode == "" {
		cfg.Voice = tts.DefaultVoice
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 8 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.PreloadConcurrency <= 0 {
		cfg.PreloadConcurrency = 4
	}
	return &Resolver{
		store:   cfg.Store,
		synth:   cfg.Synthesizer,
		voice:   cfg.Voice,
		timeout: cfg.Timeout,
		retry:   cfg.Retry,
		breaker: cfg.Breaker,
		metrics: cfg.Metrics,
		logger:  cfg.Logger,
		preload: cfg.PreloadConcurrency,
	}
}

// Cached returns the stored asset without synthesizing.
func (r *Resolver) Cached(namespace, slot string) (Asset, bool) {
	if !r.store.Exists(namespace, slot) {
		return Asset{}, false
	}
	return Asset{Namespace: namespace, Slot: slot, URL: r.store.URL(namespace, slot)}, true
}

// Resolve returns the asset for (namespace, slot), rendering text when absent.
func (r *Resolver) Resolve(ctx context.Context, namespace, slot, text string) (Asset, error) {
	if a, ok := r.Cached(namespace, slot); ok {
		r.metrics.CacheHit()
		return a, nil
	}
	if r.synth == nil {
		return Asset{}, errorsx.New(errorsx.ReasonTTSSynthesize, "no synthesizer configured")
	}
	key := namespace + "/" + slot
	v, err, _ := r.group.Do(key, func() (any, error) {
		if a, ok := r.Cached(namespace, slot); ok {
			return a, nil
		}
		// Shared by every waiter, so one caller's cancellation must not fail the rest.
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
		defer cancel()
		audio, err := r.synthesize(sctx, text)
		if err != nil {
			return nil, err
		}
		if err := r.store.Write(namespace, slot, audio); err != nil {
			return nil, errorsx.Wrap(fmt.Errorf("store asset %s: %w", key, err), errorsx.ReasonTTSSynthesize)
		}
		r.logger.Info("audio_synthesized", "namespace", namespace, "slot", slot, "bytes", len(audio))
		return Asset{Namespace: namespace, Slot: slot, URL: r.store.URL(namespace, slot), Synthesized: true}, nil
	})
	if err != nil {
		return Asset{}, err
	}
	return v.(Asset), nil
}

func (r *Resolver) synthesize(ctx context.Context, text string) ([]byte, error) {
	if !r.breaker.Allow() {
		r.metrics.Synthesis("circuit_open")
		return nil, errorsx.Wrap(resilience.ErrCircuitOpen, errorsx.ReasonTTSCircuitOpen)
	}
	var audio []byte
	err := r.retry.Do(ctx, func(ctx context.Context) error {
		var err error
		audio, err = r.synth.Synthesize(ctx, text, r.voice)
		if err == nil && len(audio) == 0 {
			err = errors.New("empty audio")
		}
		return err
	})
	if err != nil {
		r.breaker.OnError(err)
		r.metrics.Synthesis("error")
		return nil, errorsx.Wrap(err, errorsx.ReasonTTSSynthesize)
	}
	r.breaker.OnSuccess()
	r.metrics.Synthesis("ok")
	return audio, nil
}

// NamespaceFor picks the cache namespace of an utterance spoken in a session
// with the given namespace. Only campaign-tier prompts use the session's own.
func NamespaceFor(sessionNamespace string, u dialog.Utterance) string {
	if u.Override && sessionNamespace != "" {
		return sessionNamespace
	}
	return dialog.DefaultNamespace
}

// ResolveUtterance resolves u and falls back to the default namespace's
// stored clip for the same slot when synthesis fails.
func (r *Resolver) ResolveUtterance(ctx context.Context, sessionNamespace string, u dialog.Utterance) (Asset, error) {
	ns := NamespaceFor(sessionNamespace, u)
	a, err := r.Resolve(ctx, ns, u.Slot, u.Text)
	if err == nil {
		return a, nil
	}
	if ns != dialog.DefaultNamespace {
		if fb, ok := r.Cached(dialog.DefaultNamespace, u.Slot); ok {
			r.logger.Warn("audio_fallback_default", "namespace", ns, "slot", u.Slot, "error", err)
			return fb, nil
		}
	}
	return Asset{}, err
}

// Preload renders every utterance into namespace. Failures are collected and
// do not stop the remaining utterances.
func (r *Resolver) Preload(ctx context.Context, namespace string, prompts []dialog.Utterance) error {
	var (
		mu   sync.Mutex
		errs []error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.preload)
	for _, u := range prompts {
		g.Go(func() error {
			if _, err := r.Resolve(gctx, namespace, u.Slot, u.Text); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s/%s: %w", namespace, u.Slot, err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

// DefaultUtterances lists every prompt of the built-in tier, including the
// ladder retry prompts, as they are keyed in the default namespace.
func DefaultUtterances(script dialog.Script, retryPrompts []string) []dialog.Utterance {
	scripts := dialog.Scripts{Default: script, RetryPrompts: retryPrompts}
	out := make([]dialog.Utterance, 0, len(script)+2)
	for _, st := range dialog.States() {
		u := scripts.Utterance(st)
		if u.Text == "" {
			continue
		}
		out = append(out, u)
	}
	for attempt := 1; ; attempt++ {
		st := dialog.LadderState(attempt)
		if st.Terminal() {
			break
		}
		if text, ok := scripts.RetryPrompt(attempt); ok {
			out = append(out, dialog.Utterance{Slot: dialog.RetrySlot(st, attempt), Text: text})
		}
	}
	return out
}

// OverrideUtterances lists the campaign-tier prompts of a script.
func OverrideUtterances(override dialog.Script) []dialog.Utterance {
	scripts := dialog.Scripts{Override: override}
	var out []dialog.Utterance
	for _, st := range dialog.States() {
		if !scripts.Overridden(st) {
			continue
		}
		out = append(out, scripts.Utterance(st))
	}
	return out
}
