// Package synth serialises access to a text-to-speech engine and classifies
// its failures.
package synth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/koko/internal/engine"
)

var (
	// ErrEngineUnavailable means the engine could not be initialised at
	// startup, for example because model files are missing.
	ErrEngineUnavailable = errors.New("speech engine unavailable")

	// ErrSynthesisFailure means the engine failed while synthesising.
	ErrSynthesisFailure = errors.New("speech synthesis failed")
)

// Gateway is the single path to the engine. Calls are serialised because the
// engine is not assumed to be safe for concurrent use.
type Gateway struct {
	mu     sync.Mutex
	engine engine.Engine
	info   engine.Info

	// reason is fixed at construction.
	reason error
}

// New wraps eng. A non-nil initErr, or a nil engine, marks the gateway
// unavailable; every Synthesize call then fails with ErrEngineUnavailable.
func New(eng engine.Engine, initErr error) *Gateway {
	if eng == nil && initErr == nil {
		initErr = errors.New("no engine configured")
	}
	if initErr != nil {
		log.Warn("speech engine unavailable, generation disabled", "err", initErr)
	}
	g := &Gateway{engine: eng, reason: initErr}
	if eng != nil {
		g.info = eng.Info()
	}
	return g
}

// Open creates and validates the configured engine. Failures do not prevent
// the gateway from being built; they make it unavailable.
func Open(cfg engine.Config) *Gateway {
	eng, err := engine.New(cfg)
	if err == nil {
		err = eng.Validate()
	}
	return New(eng, err)
}

// Available reports whether the engine initialised.
func (g *Gateway) Available() bool {
	return g.reason == nil
}

// Err returns why the engine is unavailable, wrapped in ErrEngineUnavailable,
// or nil when it is available.
func (g *Gateway) Err() error {
	if g.reason == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrEngineUnavailable, g.reason)
}

// Info describes the wrapped engine.
func (g *Gateway) Info() engine.Info {
	return g.info
}

// Synthesize produces audio for text. It never retries.
func (g *Gateway) Synthesize(ctx context.Context, text, voice string, speed float64) (engine.Audio, error) {
	if err := g.Err(); err != nil {
		return engine.Audio{}, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.engine == nil {
		return engine.Audio{}, fmt.Errorf("%w: engine closed", ErrEngineUnavailable)
	}

	start := time.Now()
	audio, err := g.engine.Synthesize(ctx, text, voice, speed)
	if err != nil {
		log.Error("synthesis failed", "voice", voice, "err", err)
		return engine.Audio{}, fmt.Errorf("%w: %w", ErrSynthesisFailure, err)
	}
	if audio.Empty() {
		return engine.Audio{}, fmt.Errorf("%w: engine returned no audio", ErrSynthesisFailure)
	}
	if audio.Channels <= 0 {
		audio.Channels = 1
	}

	log.Debug("synthesized", "voice", voice, "speed", speed,
		"duration", audio.Duration(), "elapsed", time.Since(start))
	return audio, nil
}

// Close releases the engine.
func (g *Gateway) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.engine == nil {
		return nil
	}
	err := g.engine.Close()
	g.engine = nil
	return err
}
