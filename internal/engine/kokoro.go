package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/koko/internal/wav"
)

// Default locations of the Kokoro model files and command-line program.
const (
	DefaultKokoroBinary = "kokoro-tts"
	DefaultModelPath    = "models/kokoro-v1.0.onnx"
	DefaultVoicesPath   = "models/voices-v1.0.bin"
)

// Download locations printed by the doctor command.
const (
	ModelURL  = "https://github.com/nazdridoy/kokoro-tts/releases/download/v1.0.0/kokoro-v1.0.onnx"
	VoicesURL = "https://github.com/nazdridoy/kokoro-tts/releases/download/v1.0.0/voices-v1.0.bin"
)

// KokoroConfig configures the kokoro-tts subprocess engine.
type KokoroConfig struct {
	// Binary is the kokoro-tts executable name or path.
	Binary string

	// ModelPath is the ONNX model file.
	ModelPath string

	// VoicesPath is the voice embeddings file.
	VoicesPath string

	// TempDir holds intermediate WAV files; defaults to the system temp dir.
	TempDir string
}

// Kokoro runs the kokoro-tts command-line program. Each synthesis starts a
// fresh process with the text already loaded on stdin.
type Kokoro struct {
	binary     string
	modelPath  string
	voicesPath string
	tempDir    string
}

// NewKokoro creates a kokoro-tts engine, filling in defaults.
func NewKokoro(cfg KokoroConfig) *Kokoro {
	if cfg.Binary == "" {
		cfg.Binary = DefaultKokoroBinary
	}
	if cfg.ModelPath == "" {
		cfg.ModelPath = DefaultModelPath
	}
	if cfg.VoicesPath == "" {
		cfg.VoicesPath = DefaultVoicesPath
	}
	if cfg.TempDir == "" {
		cfg.TempDir = os.TempDir()
	}
	return &Kokoro{
		binary:     cfg.Binary,
		modelPath:  cfg.ModelPath,
		voicesPath: cfg.VoicesPath,
		tempDir:    cfg.TempDir,
	}
}

// Synthesize runs kokoro-tts and decodes the WAV it writes.
func (k *Kokoro) Synthesize(ctx context.Context, text, voice string, speed float64) (Audio, error) {
	if strings.TrimSpace(text) == "" {
		return Audio{}, errors.New("text cannot be empty")
	}

	out, err := os.CreateTemp(k.tempDir, "koko-*.wav")
	if err != nil {
		return Audio{}, fmt.Errorf("create temp output: %w", err)
	}
	outPath := out.Name()
	_ = out.Close()
	defer os.Remove(outPath)

	args := []string{
		"-", outPath,
		"--voice", voice,
		"--speed", strconv.FormatFloat(speed, 'f', 2, 64),
		"--model", k.modelPath,
		"--voices", k.voicesPath,
		"--format", "wav",
	}
	if lang := languageCode(voice); lang != "" {
		args = append(args, "--lang", lang)
	}

	cmd := exec.CommandContext(ctx, k.binary, args...)

	// Pre-load stdin so the process never waits on us.
	cmd.Stdin = strings.NewReader(text)

	var stderr bytes.Buffer
	cmd.Stdout = &stderr
	cmd.Stderr = &stderr

	log.Debug("running kokoro-tts", "voice", voice, "speed", speed, "chars", len(text))
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return Audio{}, fmt.Errorf("kokoro-tts interrupted: %w", ctx.Err())
		}
		return Audio{}, fmt.Errorf("kokoro-tts failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	f, err := os.Open(outPath)
	if err != nil {
		return Audio{}, fmt.Errorf("open kokoro-tts output: %w", err)
	}
	defer f.Close()

	samples, h, err := wav.Decode(f)
	if err != nil {
		return Audio{}, fmt.Errorf("decode kokoro-tts output: %w", err)
	}
	if len(samples) == 0 {
		return Audio{}, fmt.Errorf("kokoro-tts produced no audio: %s", strings.TrimSpace(stderr.String()))
	}

	return Audio{
		Samples:    samples,
		SampleRate: h.SampleRate,
		Channels:   h.Channels,
	}, nil
}

// Info returns engine capabilities.
func (k *Kokoro) Info() Info {
	return Info{
		Name:       NameKokoro,
		SampleRate: KokoroSampleRate,
		Channels:   1,
	}
}

// Validate checks the binary and both model files.
func (k *Kokoro) Validate() error {
	if _, err := exec.LookPath(k.binary); err != nil {
		return fmt.Errorf("%s not found: %w", k.binary, err)
	}
	for _, p := range []string{k.modelPath, k.voicesPath} {
		info, err := os.Stat(p)
		if err != nil {
			return fmt.Errorf("model file %s: %w", filepath.Base(p), err)
		}
		if info.IsDir() || info.Size() == 0 {
			return fmt.Errorf("model file %s is not a usable file", p)
		}
	}
	return nil
}

// Close is a no-op; nothing outlives a synthesis.
func (k *Kokoro) Close() error {
	return nil
}

// Files returns the model and voices paths the engine expects.
func (k *Kokoro) Files() (model, voices string) {
	return k.modelPath, k.voicesPath
}

// languageCode maps the first letter of a Kokoro voice id to the language
// kokoro-tts should phonemise with.
func languageCode(voice string) string {
	if voice == "" {
		return ""
	}
	switch voice[0] {
	case 'a':
		return "en-us"
	case 'b':
		return "en-gb"
	case 'f':
		return "fr-fr"
	case 'i':
		return "it"
	case 'j':
		return "ja"
	case 'z':
		return "cmn"
	default:
		return ""
	}
}

var _ Engine = (*Kokoro)(nil)
