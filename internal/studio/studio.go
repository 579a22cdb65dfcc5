// Package studio composes the engine gateway, artifact store, job runner
// and playback controller into the generate/preview/play workflow. A Studio
// belongs to one interactive loop and is not safe for concurrent use; only
// the jobs it submits run elsewhere.
package studio

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/koko/internal/artifact"
	"github.com/dgnsrekt/koko/internal/job"
	"github.com/dgnsrekt/koko/internal/playback"
	"github.com/dgnsrekt/koko/internal/stats"
	"github.com/dgnsrekt/koko/internal/synth"
	"github.com/dgnsrekt/koko/internal/voices"
	"github.com/dustin/go-humanize"
)

// Speed bounds accepted by Generate. Previews always use PreviewSpeed.
const (
	MinSpeed     = 0.5
	MaxSpeed     = 2.0
	DefaultSpeed = 1.0
	PreviewSpeed = 1.0
)

var (
	// ErrEmptyText is returned when there is nothing to speak.
	ErrEmptyText = errors.New("no text to speak")

	// ErrUnknownVoice is returned for a voice id missing from the catalog.
	ErrUnknownVoice = errors.New("unknown voice")

	// ErrInvalidSpeed is returned for a speed outside [MinSpeed, MaxSpeed].
	ErrInvalidSpeed = errors.New("speed out of range")

	// ErrNothingToExport is returned by Export before any generation succeeded.
	ErrNothingToExport = errors.New("nothing generated yet")
)

// Config holds what a Studio is built from.
type Config struct {
	Catalog   *voices.Catalog
	Gateway   *synth.Gateway
	Store     *artifact.Store
	Device    playback.Device
	Estimator stats.Estimator
}

// Studio is the workflow state of one session.
type Studio struct {
	catalog   *voices.Catalog
	gateway   *synth.Gateway
	store     *artifact.Store
	previews  *artifact.PreviewCache
	runner    *job.Runner
	player    *playback.Controller
	estimator stats.Estimator

	current    artifact.Artifact
	hasCurrent bool
}

// New builds a Studio. The gateway may be unavailable; generation is then
// refused while everything else keeps working.
func New(cfg Config) *Studio {
	est := cfg.Estimator
	if est.CharsPerMinute <= 0 {
		est = stats.Default()
	}
	return &Studio{
		catalog:   cfg.Catalog,
		gateway:   cfg.Gateway,
		store:     cfg.Store,
		previews:  artifact.NewPreviewCache(cfg.Store),
		runner:    job.NewRunner(),
		player:    playback.NewController(cfg.Device),
		estimator: est,
	}
}

// Catalog returns the voice catalog.
func (s *Studio) Catalog() *voices.Catalog { return s.catalog }

// Store returns the artifact store.
func (s *Studio) Store() *artifact.Store { return s.store }

// Runner exposes the job runner so the loop can wait on result channels.
func (s *Studio) Runner() *job.Runner { return s.runner }

// Player exposes the playback controller.
func (s *Studio) Player() *playback.Controller { return s.player }

// Available reports whether the engine can synthesise.
func (s *Studio) Available() bool { return s.gateway.Available() }

// EngineErr explains why the engine is unavailable.
func (s *Studio) EngineErr() error { return s.gateway.Err() }

// Validate checks a generation request without submitting it.
func (s *Studio) Validate(req job.Request) error {
	if strings.TrimSpace(req.Text) == "" {
		return ErrEmptyText
	}
	if _, ok := s.catalog.Voice(req.Voice); !ok {
		return fmt.Errorf("%w: %q", ErrUnknownVoice, req.Voice)
	}
	if req.Speed < MinSpeed || req.Speed > MaxSpeed {
		return fmt.Errorf("%w: %.2f not in [%.1f, %.1f]", ErrInvalidSpeed, req.Speed, MinSpeed, MaxSpeed)
	}
	return nil
}

// CanGenerate reports whether Generate would start a job.
func (s *Studio) CanGenerate() bool {
	return s.gateway.Available() && !s.runner.Running(job.Generation)
}

// CanPreview reports whether Preview would be accepted.
func (s *Studio) CanPreview() bool {
	return !s.runner.Running(job.Preview)
}

// Generate submits a full generation. The returned sequence number matches
// the Result that will arrive on the generation channel.
func (s *Studio) Generate(req job.Request) (uint64, error) {
	req.Text = strings.TrimSpace(req.Text)
	if err := s.Validate(req); err != nil {
		return 0, err
	}
	if err := s.gateway.Err(); err != nil {
		return 0, err
	}

	gw, store := s.gateway, s.store
	seq, err := s.runner.Submit(job.Generation, req, func(ctx context.Context) (artifact.Artifact, error) {
		audio, err := gw.Synthesize(ctx, req.Text, req.Voice, req.Speed)
		if err != nil {
			return artifact.Artifact{}, err
		}
		path, err := store.NextGenerationPath()
		if err != nil {
			return artifact.Artifact{}, err
		}
		return store.Save(path, audio)
	})
	if err != nil {
		return 0, err
	}
	log.Info("generating", "voice", req.Voice, "speed", req.Speed, "chars", len([]rune(req.Text)))
	return seq, nil
}

// PreviewOutcome says how a preview request was served.
type PreviewOutcome struct {
	// Cached is true when an existing clip was played without a job.
	Cached bool

	// Artifact is the cached clip, set when Cached.
	Artifact artifact.Artifact

	// Seq identifies the submitted job when not Cached.
	Seq uint64
}

// Preview auditions voice. A cached clip is played at once, stopping any
// current playback; otherwise a preview job is submitted and the clip plays
// when Apply receives it.
func (s *Studio) Preview(voice string) (PreviewOutcome, error) {
	if _, ok := s.catalog.Voice(voice); !ok {
		return PreviewOutcome{}, fmt.Errorf("%w: %q", ErrUnknownVoice, voice)
	}

	if a, ok := s.previews.Lookup(voice); ok {
		log.Debug("preview cache hit", "voice", voice, "path", a.Path)
		if err := s.audition(a); err != nil {
			return PreviewOutcome{Cached: true, Artifact: a}, err
		}
		return PreviewOutcome{Cached: true, Artifact: a}, nil
	}

	if err := s.gateway.Err(); err != nil {
		return PreviewOutcome{}, err
	}

	req := job.Request{Text: s.catalog.Sample(voice), Voice: voice, Speed: PreviewSpeed}
	gw, store := s.gateway, s.store
	seq, err := s.runner.Submit(job.Preview, req, func(ctx context.Context) (artifact.Artifact, error) {
		audio, err := gw.Synthesize(ctx, req.Text, req.Voice, req.Speed)
		if err != nil {
			return artifact.Artifact{}, err
		}
		path, err := store.PreviewPath(req.Voice)
		if err != nil {
			return artifact.Artifact{}, err
		}
		return store.Save(path, audio)
	})
	if err != nil {
		return PreviewOutcome{}, err
	}
	return PreviewOutcome{Seq: seq}, nil
}

func (s *Studio) audition(a artifact.Artifact) error {
	if s.player.State() == playback.Playing {
		if err := s.player.Stop(); err != nil {
			log.Warn("stopping playback for preview", "err", err)
		}
	}
	return s.player.Play(a)
}

// Apply hands a received job result to the studio. Stale results yield an
// event with Stale set and change nothing.
func (s *Studio) Apply(res job.Result) Event {
	ev := Event{
		Class:    res.Class,
		Request:  res.Request,
		Artifact: res.Artifact,
		Elapsed:  res.Elapsed,
		Err:      res.Err,
	}
	if !s.runner.Complete(res) {
		ev.Stale = true
		return ev
	}

	switch res.Class {
	case job.Generation:
		if res.OK() {
			s.current = res.Artifact
			s.hasCurrent = true
			log.Info("generation finished", "path", res.Artifact.Path, "elapsed", res.Elapsed)
		} else {
			log.Error("generation failed", "err", res.Err)
		}

	case job.Preview:
		if res.OK() {
			s.previews.Put(res.Request.Voice, res.Artifact)
			if s.player.State() == playback.Stopped {
				ev.PlayErr = s.player.Play(res.Artifact)
				ev.Played = ev.PlayErr == nil
			}
		} else {
			log.Error("preview failed", "voice", res.Request.Voice, "err", res.Err)
		}
	}
	return ev
}

// Drain applies every result that has already arrived, without blocking.
func (s *Studio) Drain() []Event {
	var events []Event
	for _, c := range []job.Class{job.Generation, job.Preview} {
		if res, ok := s.runner.Poll(c); ok {
			events = append(events, s.Apply(res))
		}
	}
	return events
}

// Await polls until the running job of class finishes and returns its
// event. Results of other classes that arrive meanwhile are applied too.
func (s *Studio) Await(ctx context.Context, class job.Class, interval time.Duration) (Event, error) {
	if !s.runner.Running(class) {
		return Event{}, fmt.Errorf("no %s job running", class)
	}
	if interval <= 0 {
		interval = playback.DefaultPollInterval
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		for _, ev := range s.Drain() {
			if ev.Class == class && !ev.Stale {
				return ev, nil
			}
		}
		select {
		case <-ctx.Done():
			return Event{}, ctx.Err()
		case <-t.C:
		}
	}
}

// Current returns the most recent successful generation.
func (s *Studio) Current() (artifact.Artifact, bool) {
	return s.current, s.hasCurrent
}

// CanPlay reports whether Play would start the current artifact.
func (s *Studio) CanPlay() bool {
	return s.hasCurrent && s.player.CanPlay(s.current)
}

// CanStop reports whether Stop would be accepted.
func (s *Studio) CanStop() bool {
	return s.player.CanStop()
}

// Play plays the current artifact.
func (s *Studio) Play() error {
	if !s.hasCurrent {
		return playback.ErrNoArtifact
	}
	return s.player.Play(s.current)
}

// Stop halts whatever is playing.
func (s *Studio) Stop() error {
	return s.player.Stop()
}

// Tick polls the device for natural completion of playback session.
func (s *Studio) Tick(session uint64) bool {
	return s.player.TickSession(session)
}

// Export copies the current artifact to dest. An empty dest is a cancelled
// export and does nothing.
func (s *Studio) Export(dest string) error {
	if dest == "" {
		return nil
	}
	if !s.hasCurrent {
		return ErrNothingToExport
	}
	if err := artifact.Export(s.current.Path, dest); err != nil {
		return err
	}
	log.Info("exported", "from", s.current.Path, "to", dest, "size", humanize.Bytes(uint64(s.current.Size)))
	return nil
}

// SuggestFilename proposes an export name for the current request.
func (s *Studio) SuggestFilename(text, voice string) string {
	short := voice
	if v, ok := s.catalog.Voice(voice); ok {
		short = v.ShortName()
	}
	return artifact.SuggestFilename(text, short, time.Now())
}

// Stats estimates narration and generation time for text at speed.
func (s *Studio) Stats(text string, speed float64) stats.Snapshot {
	return s.estimator.Estimate(text, speed)
}

// InvalidatePreview forgets the cached clip of voice, for example after
// its file was removed.
func (s *Studio) InvalidatePreview(voice string) {
	s.previews.Invalidate(voice)
}

// Close stops playback and releases the engine. Running jobs are not
// waited for.
func (s *Studio) Close() error {
	if s.player.State() == playback.Playing {
		_ = s.player.Stop()
	}
	return s.gateway.Close()
}
