package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/koko/internal/playback"
	"github.com/dgnsrekt/koko/internal/wav"
	"github.com/ebitengine/oto/v3"
)

// DefaultSampleRate matches Kokoro's output so most files play without
// resampling.
const DefaultSampleRate = 24000

// oto allows a single context per process; every Player shares it.
var (
	contextOnce sync.Once
	sharedCtx   *oto.Context
	sharedRate  int
	contextErr  error
)

func otoContext(sampleRate int, buffer time.Duration) (*oto.Context, int, error) {
	contextOnce.Do(func() {
		op := &oto.NewContextOptions{
			SampleRate:   sampleRate,
			ChannelCount: 1,
			Format:       oto.FormatSignedInt16LE,
			BufferSize:   buffer,
		}
		ctx, ready, err := oto.NewContext(op)
		if err != nil {
			contextErr = fmt.Errorf("failed to create oto context: %w", err)
			return
		}
		<-ready
		sharedCtx, sharedRate = ctx, sampleRate
		log.Debug("audio context ready", "sample_rate", sampleRate)
	})
	return sharedCtx, sharedRate, contextErr
}

// PlayerConfig contains configuration for the audio player.
type PlayerConfig struct {
	SampleRate int           // output rate; files at other rates are resampled
	Volume     float64       // 0.0 to 1.0
	BufferSize time.Duration // device buffer, 0 for the driver default
}

// DefaultPlayerConfig returns the default player configuration.
func DefaultPlayerConfig() PlayerConfig {
	return PlayerConfig{
		SampleRate: DefaultSampleRate,
		Volume:     1.0,
	}
}

// Player plays WAV files through the system audio device using oto. It
// implements playback.Device.
type Player struct {
	cfg PlayerConfig

	mu     sync.Mutex
	player *oto.Player

	// pcm must stay referenced while the oto player reads from it.
	pcm      []byte
	duration time.Duration
	loaded   string
}

// NewPlayer creates a player. The audio device is opened on first Play.
func NewPlayer(cfg PlayerConfig) (*Player, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = DefaultSampleRate
	}
	return &Player{cfg: cfg}, nil
}

func validateConfig(cfg PlayerConfig) error {
	if cfg.SampleRate != 0 && (cfg.SampleRate < 8000 || cfg.SampleRate > 192000) {
		return fmt.Errorf("sample rate must be between 8000 and 192000 Hz, got %d", cfg.SampleRate)
	}
	if cfg.Volume < 0 || cfg.Volume > 1 {
		return fmt.Errorf("volume must be between 0.0 and 1.0, got %f", cfg.Volume)
	}
	if cfg.BufferSize < 0 {
		return errors.New("buffer size must not be negative")
	}
	return nil
}

// Load decodes the WAV at path into the device format: mono 16-bit PCM at
// the output rate.
func (p *Player) Load(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	samples, h, err := wav.Decode(f)
	if err != nil {
		return err
	}
	if len(samples) == 0 {
		return errors.New("audio data is empty")
	}

	rate := p.outputRate()
	mono := downmix(samples, h.Channels)
	mono = resample(mono, h.SampleRate, rate)

	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopLocked()
	p.pcm = toPCM16(mono)
	p.duration = time.Duration(len(mono)) * time.Second / time.Duration(rate)
	p.loaded = path
	return nil
}

// Play starts playing the loaded file from the beginning.
func (p *Player) Play() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.pcm) == 0 {
		return errors.New("nothing loaded")
	}

	ctx, _, err := otoContext(p.cfg.SampleRate, p.cfg.BufferSize)
	if err != nil {
		return err
	}

	p.stopLocked()
	player := ctx.NewPlayer(bytes.NewReader(p.pcm))
	player.SetVolume(p.cfg.Volume)
	player.Play()
	p.player = player

	log.Debug("oto playback started", "file", p.loaded, "duration", p.duration)
	return nil
}

// Stop halts playback and releases the oto player.
func (p *Player) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopLocked()
}

func (p *Player) stopLocked() error {
	if p.player == nil {
		return nil
	}
	p.player.Pause()
	err := p.player.Close()
	p.player = nil
	return err
}

// IsBusy reports whether the device is still playing.
func (p *Player) IsBusy() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.player != nil && p.player.IsPlaying()
}

// Close stops playback and drops the loaded audio.
func (p *Player) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	err := p.stopLocked()
	p.pcm = nil
	return err
}

func (p *Player) outputRate() int {
	if sharedCtx != nil {
		return sharedRate
	}
	return p.cfg.SampleRate
}

// downmix averages interleaved channels into mono.
func downmix(samples []float32, channels int) []float32 {
	if channels <= 1 {
		return samples
	}
	out := make([]float32, len(samples)/channels)
	for i := range out {
		var sum float32
		for c := 0; c < channels; c++ {
			sum += samples[i*channels+c]
		}
		out[i] = sum / float32(channels)
	}
	return out
}

// resample converts mono samples between rates by linear interpolation.
func resample(samples []float32, from, to int) []float32 {
	if from == to || from <= 0 || to <= 0 || len(samples) == 0 {
		return samples
	}
	n := int(int64(len(samples)) * int64(to) / int64(from))
	if n == 0 {
		return nil
	}
	out := make([]float32, n)
	ratio := float64(from) / float64(to)
	last := len(samples) - 1
	for i := range out {
		pos := float64(i) * ratio
		j := int(pos)
		if j >= last {
			out[i] = samples[last]
			continue
		}
		frac := float32(pos - float64(j))
		out[i] = samples[j]*(1-frac) + samples[j+1]*frac
	}
	return out
}

func toPCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(s*32767)))
	}
	return out
}

var _ playback.Device = (*Player)(nil)
