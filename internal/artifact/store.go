// Package artifact names, writes and inspects the WAV files koko produces,
// and caches per-voice preview clips.
package artifact

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/koko/internal/engine"
	"github.com/dgnsrekt/koko/internal/wav"
)

// Directory names under the output root.
const (
	GenerationDirName = "audio_output"
	PreviewDirName    = "voice_previews"
)

const (
	generationPrefix = "speech_"
	previewPrefix    = "preview_"
	extension        = ".wav"
	timestampLayout  = "20060102-150405.000000"
)

// ErrWriteFailure wraps any I/O error while persisting or exporting audio.
var ErrWriteFailure = errors.New("failed to write audio")

// Artifact is a persisted audio file.
type Artifact struct {
	Path       string
	SampleRate int
	Channels   int
	Duration   time.Duration
	Size       int64
}

// Name returns the file name of the artifact.
func (a Artifact) Name() string {
	return filepath.Base(a.Path)
}

// Store owns the generation and preview directories.
type Store struct {
	generationDir string
	previewDir    string
	now           func() time.Time

	mu  sync.Mutex
	seq uint64
}

// NewStore creates a store rooted at outputDir. Directories are created on
// first use.
func NewStore(outputDir string) *Store {
	return &Store{
		generationDir: filepath.Join(outputDir, GenerationDirName),
		previewDir:    filepath.Join(outputDir, PreviewDirName),
		now:           time.Now,
	}
}

// GenerationDir returns the directory full generations are written to.
func (s *Store) GenerationDir() string { return s.generationDir }

// PreviewDir returns the directory preview clips are written to.
func (s *Store) PreviewDir() string { return s.previewDir }

// NextGenerationPath returns a fresh path for a full generation. Paths are
// unique within the process even for calls in the same microsecond, and a
// path already present on disk is never returned.
func (s *Store) NextGenerationPath() (string, error) {
	if err := os.MkdirAll(s.generationDir, 0o755); err != nil {
		return "", fmt.Errorf("%w: %w", ErrWriteFailure, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for {
		s.seq++
		name := fmt.Sprintf("%s%s_%04d%s", generationPrefix, s.now().Format(timestampLayout), s.seq, extension)
		path := filepath.Join(s.generationDir, name)
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			return path, nil
		}
	}
}

// PreviewPath returns the stable preview clip path for a voice.
func (s *Store) PreviewPath(voice string) (string, error) {
	if voice == "" || strings.ContainsAny(voice, `/\`) || strings.Contains(voice, "..") {
		return "", fmt.Errorf("invalid voice id %q", voice)
	}
	if err := os.MkdirAll(s.previewDir, 0o755); err != nil {
		return "", fmt.Errorf("%w: %w", ErrWriteFailure, err)
	}
	return filepath.Join(s.previewDir, previewPrefix+voice+extension), nil
}

// VoiceFromPreviewPath returns the voice id encoded in a preview file name.
func VoiceFromPreviewPath(path string) (string, bool) {
	name := filepath.Base(path)
	if !strings.HasPrefix(name, previewPrefix) || !strings.HasSuffix(name, extension) {
		return "", false
	}
	voice := strings.TrimSuffix(strings.TrimPrefix(name, previewPrefix), extension)
	return voice, voice != ""
}

// Save writes audio to path as a 16-bit PCM WAV through a temp file and
// rename, so readers never see a partial file.
func (s *Store) Save(path string, audio engine.Audio) (Artifact, error) {
	channels := audio.Channels
	if channels <= 0 {
		channels = 1
	}

	var buf bytes.Buffer
	if err := wav.Encode(&buf, audio.Samples, audio.SampleRate, channels); err != nil {
		return Artifact{}, fmt.Errorf("%w: %w", ErrWriteFailure, err)
	}
	if err := writeFile(path, buf.Bytes()); err != nil {
		return Artifact{}, fmt.Errorf("%w: %w", ErrWriteFailure, err)
	}

	a := Artifact{
		Path:       path,
		SampleRate: audio.SampleRate,
		Channels:   channels,
		Duration:   audio.Duration(),
		Size:       int64(buf.Len()),
	}
	log.Debug("saved artifact", "path", path, "duration", a.Duration, "size", a.Size)
	return a, nil
}

// Inspect reads the WAV header at path. It fails for missing, empty or
// unplayable files.
func Inspect(path string) (Artifact, error) {
	f, err := os.Open(path)
	if err != nil {
		return Artifact{}, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return Artifact{}, err
	}
	if info.IsDir() {
		return Artifact{}, fmt.Errorf("%s is a directory", path)
	}

	h, err := wav.ReadHeader(f)
	if err != nil {
		return Artifact{}, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	if h.Frames() == 0 {
		return Artifact{}, fmt.Errorf("%s: no audio frames", filepath.Base(path))
	}

	return Artifact{
		Path:       path,
		SampleRate: h.SampleRate,
		Channels:   h.Channels,
		Duration:   h.Duration(),
		Size:       info.Size(),
	}, nil
}

// writeFile writes to a temp file next to path, then renames it into place.
func writeFile(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tempPath := tmp.Name()

	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		os.Remove(tempPath)
		return err
	}
	_, err = tmp.Write(data)
	closeErr := tmp.Close()

	if err != nil {
		os.Remove(tempPath)
		return err
	}
	if closeErr != nil {
		os.Remove(tempPath)
		return closeErr
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return err
	}
	return nil
}
