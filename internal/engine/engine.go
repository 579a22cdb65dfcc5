// Package engine adapts Kokoro text-to-speech backends to a single
// synthesis interface.
package engine

import (
	"context"
	"fmt"
	"time"
)

// Engine names accepted by New.
const (
	NameKokoro = "kokoro"
	NameRemote = "remote"
	NameMock   = "mock"
)

// KokoroSampleRate is the native output rate of the Kokoro v1.0 model.
const KokoroSampleRate = 24000

// Engine turns text into audio samples.
type Engine interface {
	// Synthesize speaks text with the given voice at speed (1.0 is normal).
	Synthesize(ctx context.Context, text, voice string, speed float64) (Audio, error)

	// Info describes the engine.
	Info() Info

	// Validate checks that the engine can run: binaries, model files or
	// service reachability.
	Validate() error

	// Close releases resources held by the engine.
	Close() error
}

// Audio is interleaved float samples in [-1, 1].
type Audio struct {
	Samples    []float32
	SampleRate int
	Channels   int
}

// Frames returns the number of sample frames.
func (a Audio) Frames() int {
	if a.Channels <= 0 {
		return 0
	}
	return len(a.Samples) / a.Channels
}

// Duration returns the playing time of the audio.
func (a Audio) Duration() time.Duration {
	if a.SampleRate <= 0 {
		return 0
	}
	return time.Duration(a.Frames()) * time.Second / time.Duration(a.SampleRate)
}

// Empty reports whether the audio holds no frames.
func (a Audio) Empty() bool {
	return a.Frames() == 0
}

// Info describes an engine.
type Info struct {
	Name       string
	SampleRate int
	Channels   int
	Online     bool
}

// Config selects and configures an engine.
type Config struct {
	Name   string
	Kokoro KokoroConfig
	Remote RemoteConfig
	Mock   MockConfig
}

// New creates the engine named in cfg. It does not validate it.
func New(cfg Config) (Engine, error) {
	switch cfg.Name {
	case NameKokoro, "":
		return NewKokoro(cfg.Kokoro), nil
	case NameRemote:
		r, err := NewRemote(cfg.Remote)
		if err != nil {
			return nil, err
		}
		return r, nil
	case NameMock:
		return NewMock(cfg.Mock), nil
	default:
		return nil, fmt.Errorf("unknown engine %q (want %s, %s or %s)", cfg.Name, NameKokoro, NameRemote, NameMock)
	}
}
