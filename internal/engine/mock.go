package engine

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"
)

// MockConfig configures the mock engine.
type MockConfig struct {
	// SampleRate of the generated tone; defaults to KokoroSampleRate.
	SampleRate int

	// Frequency of the tone in Hz; defaults to 440.
	Frequency float64

	// Delay is added to every synthesis.
	Delay time.Duration

	// MaxDuration caps the tone length; defaults to 30s.
	MaxDuration time.Duration
}

// Mock produces a sine tone whose length follows the text length and speed,
// roughly matching real narration time.
type Mock struct {
	cfg MockConfig

	mu   sync.Mutex
	err  error
	gate chan struct{}

	calls atomic.Int64
}

// NewMock creates a mock engine.
func NewMock(cfg MockConfig) *Mock {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = KokoroSampleRate
	}
	if cfg.Frequency <= 0 {
		cfg.Frequency = 440
	}
	if cfg.MaxDuration <= 0 {
		cfg.MaxDuration = 30 * time.Second
	}
	return &Mock{cfg: cfg}
}

// Synthesize generates the tone.
func (m *Mock) Synthesize(ctx context.Context, text, voice string, speed float64) (Audio, error) {
	m.calls.Add(1)

	m.mu.Lock()
	err, gate := m.err, m.gate
	m.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return Audio{}, ctx.Err()
		}
	}
	if m.cfg.Delay > 0 {
		select {
		case <-time.After(m.cfg.Delay):
		case <-ctx.Done():
			return Audio{}, ctx.Err()
		}
	}
	if err != nil {
		return Audio{}, err
	}
	if text == "" {
		return Audio{}, errors.New("text cannot be empty")
	}
	if speed <= 0 {
		speed = 1
	}

	// 1200 characters per minute at speed 1.0, at least 100ms.
	seconds := float64(utf8.RuneCountInString(text)) / 20 / speed
	d := time.Duration(seconds * float64(time.Second))
	if d < 100*time.Millisecond {
		d = 100 * time.Millisecond
	}
	if d > m.cfg.MaxDuration {
		d = m.cfg.MaxDuration
	}

	n := int(d.Seconds() * float64(m.cfg.SampleRate))
	samples := make([]float32, n)
	step := 2 * math.Pi * m.cfg.Frequency / float64(m.cfg.SampleRate)
	for i := range samples {
		samples[i] = float32(0.3 * math.Sin(step*float64(i)))
	}

	return Audio{Samples: samples, SampleRate: m.cfg.SampleRate, Channels: 1}, nil
}

// Info returns engine capabilities.
func (m *Mock) Info() Info {
	return Info{Name: NameMock, SampleRate: m.cfg.SampleRate, Channels: 1}
}

// Validate always succeeds.
func (m *Mock) Validate() error {
	return nil
}

// Close is a no-op.
func (m *Mock) Close() error {
	return nil
}

// Calls returns how many times Synthesize was invoked.
func (m *Mock) Calls() int {
	return int(m.calls.Load())
}

// FailWith makes subsequent syntheses return err. A nil err clears it.
func (m *Mock) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Hold makes subsequent syntheses block until the returned release func is
// called.
func (m *Mock) Hold() (release func()) {
	gate := make(chan struct{})
	m.mu.Lock()
	m.gate = gate
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			if m.gate == gate {
				m.gate = nil
			}
			m.mu.Unlock()
			close(gate)
		})
	}
}

var _ Engine = (*Mock)(nil)
