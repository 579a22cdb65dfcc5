package audio

import (
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgnsrekt/koko/internal/artifact"
	"github.com/dgnsrekt/koko/internal/playback"
)

// MockPlayer simulates playback without producing sound. A loaded file
// "plays" for its real duration scaled by the delay factor.
type MockPlayer struct {
	mu sync.Mutex

	loaded    string
	duration  time.Duration
	playing   bool
	startTime time.Time
	finished  bool

	// Test configuration
	delayFactor float64
	loadErr     error
	playErr     error
	callbacks   MockCallbacks

	// Metrics for testing
	loadCount atomic.Int64
	playCount atomic.Int64
	stopCount atomic.Int64
}

// MockCallbacks provides hooks for testing.
type MockCallbacks struct {
	OnLoad func(path string)
	OnPlay func(path string)
	OnStop func()
}

// MockPlayerMetrics contains playback metrics for testing.
type MockPlayerMetrics struct {
	LoadCount int64
	PlayCount int64
	StopCount int64
}

// NewMockPlayer creates a mock player with optional callbacks.
func NewMockPlayer(callbacks MockCallbacks) *MockPlayer {
	return &MockPlayer{delayFactor: 1.0, callbacks: callbacks}
}

// Load reads the WAV header of path to learn how long playback lasts.
func (mp *MockPlayer) Load(path string) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	mp.loadCount.Add(1)
	if mp.loadErr != nil {
		return mp.loadErr
	}
	if _, err := os.Stat(path); err != nil {
		return err
	}
	a, err := artifact.Inspect(path)
	if err != nil {
		return err
	}

	mp.loaded = path
	mp.duration = a.Duration
	mp.playing = false
	if mp.callbacks.OnLoad != nil {
		mp.callbacks.OnLoad(path)
	}
	return nil
}

// Play starts the simulated playback.
func (mp *MockPlayer) Play() error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if mp.playErr != nil {
		return mp.playErr
	}
	if mp.loaded == "" {
		return errors.New("nothing loaded")
	}

	mp.playing = true
	mp.finished = false
	mp.startTime = time.Now()
	mp.playCount.Add(1)
	if mp.callbacks.OnPlay != nil {
		mp.callbacks.OnPlay(mp.loaded)
	}
	return nil
}

// Stop halts the simulated playback.
func (mp *MockPlayer) Stop() error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	mp.playing = false
	mp.stopCount.Add(1)
	if mp.callbacks.OnStop != nil {
		mp.callbacks.OnStop()
	}
	return nil
}

// IsBusy reports true until the scaled duration has elapsed, Finish is
// called or playback is stopped.
func (mp *MockPlayer) IsBusy() bool {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if !mp.playing {
		return false
	}
	if mp.finished {
		mp.playing = false
		return false
	}
	if mp.delayFactor > 0 {
		length := time.Duration(float64(mp.duration) * mp.delayFactor)
		if time.Since(mp.startTime) >= length {
			mp.playing = false
			return false
		}
	}
	return true
}

// Test helper methods

// Finish ends the current playback as if the audio ran out.
func (mp *MockPlayer) Finish() {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	mp.finished = true
}

// SetDelayFactor scales simulated playback time. 1.0 is real time, 0.5 is
// twice as fast; 0 never finishes on its own.
func (mp *MockPlayer) SetDelayFactor(factor float64) {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	mp.delayFactor = factor
}

// FailLoad makes Load return err. A nil err clears it.
func (mp *MockPlayer) FailLoad(err error) {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	mp.loadErr = err
}

// FailPlay makes Play return err. A nil err clears it.
func (mp *MockPlayer) FailPlay(err error) {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	mp.playErr = err
}

// Loaded returns the path of the loaded file.
func (mp *MockPlayer) Loaded() string {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	return mp.loaded
}

// GetMetrics returns playback metrics for testing.
func (mp *MockPlayer) GetMetrics() MockPlayerMetrics {
	return MockPlayerMetrics{
		LoadCount: mp.loadCount.Load(),
		PlayCount: mp.playCount.Load(),
		StopCount: mp.stopCount.Load(),
	}
}

var _ playback.Device = (*MockPlayer)(nil)
