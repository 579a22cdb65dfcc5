package studio

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dgnsrekt/koko/internal/artifact"
	"github.com/dgnsrekt/koko/internal/audio"
	"github.com/dgnsrekt/koko/internal/engine"
	"github.com/dgnsrekt/koko/internal/job"
	"github.com/dgnsrekt/koko/internal/playback"
	"github.com/dgnsrekt/koko/internal/stats"
	"github.com/dgnsrekt/koko/internal/synth"
	"github.com/dgnsrekt/koko/internal/voices"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	studio *Studio
	engine *engine.Mock
	device *audio.MockPlayer
	dir    string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	catalog, err := voices.Default()
	require.NoError(t, err)

	mock := engine.NewMock(engine.MockConfig{MaxDuration: 200 * time.Millisecond})
	dev := audio.NewMockPlayer(audio.MockCallbacks{})
	dev.SetDelayFactor(0)
	dir := t.TempDir()

	s := New(Config{
		Catalog: catalog,
		Gateway: synth.New(mock, nil),
		Store:   artifact.NewStore(dir),
		Device:  dev,
	})
	t.Cleanup(func() { _ = s.Close() })
	return fixture{studio: s, engine: mock, device: dev, dir: dir}
}

func await(t *testing.T, s *Studio, class job.Class) Event {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ev, err := s.Await(ctx, class, 5*time.Millisecond)
	require.NoError(t, err)
	return ev
}

func request(text string) job.Request {
	return job.Request{Text: text, Voice: "af_heart", Speed: 1.0}
}

func TestGenerate(t *testing.T) {
	f := newFixture(t)
	s := f.studio

	_, ok := s.Current()
	assert.False(t, ok)
	assert.True(t, s.CanGenerate())

	seq, err := s.Generate(request("  Hello world  "))
	require.NoError(t, err)
	assert.False(t, s.CanGenerate(), "generate is disabled while generating")

	ev := await(t, s, job.Generation)
	assert.True(t, ev.OK())
	assert.Equal(t, "Hello world", ev.Request.Text)
	assert.Equal(t, engine.KokoroSampleRate, ev.Artifact.SampleRate)
	assert.Equal(t, filepath.Join(f.dir, artifact.GenerationDirName), filepath.Dir(ev.Artifact.Path))
	assert.Contains(t, ev.String(), "Generated speech_")

	last, _ := s.Runner().Last(job.Generation)
	assert.Equal(t, seq, last.Seq)

	current, ok := s.Current()
	require.True(t, ok)
	assert.Equal(t, ev.Artifact, current)
	assert.FileExists(t, current.Path)
	assert.True(t, s.CanGenerate())
	assert.True(t, s.CanPlay())
	assert.Equal(t, 1, f.engine.Calls())
}

func TestGenerateValidation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		req  job.Request
		want error
	}{
		{"empty", job.Request{Text: " \n\t", Voice: "af_heart", Speed: 1}, ErrEmptyText},
		{"unknown voice", job.Request{Text: "hi", Voice: "xx_nobody", Speed: 1}, ErrUnknownVoice},
		{"too slow", job.Request{Text: "hi", Voice: "af_heart", Speed: 0.4}, ErrInvalidSpeed},
		{"too fast", job.Request{Text: "hi", Voice: "af_heart", Speed: 2.1}, ErrInvalidSpeed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.studio.Generate(tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.Equal(t, job.Idle, f.studio.Runner().State(job.Generation))
	assert.Zero(t, f.engine.Calls())

	assert.NoError(t, f.studio.Validate(job.Request{Text: "hi", Voice: "bm_george", Speed: MinSpeed}))
	assert.NoError(t, f.studio.Validate(job.Request{Text: "hi", Voice: "bm_george", Speed: MaxSpeed}))
}

func TestGenerateWhileUnavailable(t *testing.T) {
	catalog, err := voices.Default()
	require.NoError(t, err)
	s := New(Config{
		Catalog: catalog,
		Gateway: synth.New(nil, errors.New("model file missing")),
		Store:   artifact.NewStore(t.TempDir()),
		Device:  audio.NewMockPlayer(audio.MockCallbacks{}),
	})

	assert.False(t, s.Available())
	assert.False(t, s.CanGenerate())

	_, err = s.Generate(request("Hello"))
	assert.ErrorIs(t, err, synth.ErrEngineUnavailable)
	assert.ErrorContains(t, err, "model file missing")

	_, err = s.Preview("af_heart")
	assert.ErrorIs(t, err, synth.ErrEngineUnavailable)
	assert.False(t, s.Runner().Busy())
}

func TestGenerateAlreadyRunning(t *testing.T) {
	f := newFixture(t)
	release := f.engine.Hold()

	_, err := f.studio.Generate(request("first"))
	require.NoError(t, err)

	_, err = f.studio.Generate(request("second"))
	assert.ErrorIs(t, err, job.ErrAlreadyRunning)

	release()
	ev := await(t, f.studio, job.Generation)
	assert.Equal(t, "first", ev.Request.Text)
	assert.Equal(t, 1, f.engine.Calls())
}

func TestRapidGenerationsGetDistinctFiles(t *testing.T) {
	f := newFixture(t)

	var paths []string
	for _, text := range []string{"one", "two", "three"} {
		_, err := f.studio.Generate(request(text))
		require.NoError(t, err)
		ev := await(t, f.studio, job.Generation)
		require.True(t, ev.OK())
		paths = append(paths, ev.Artifact.Path)
	}

	assert.Len(t, paths, 3)
	seen := map[string]bool{}
	for _, p := range paths {
		assert.False(t, seen[p], "duplicate path %s", p)
		seen[p] = true
		assert.FileExists(t, p, "earlier artifacts are never overwritten or removed")
	}
}

func TestFailedGenerationKeepsPreviousArtifact(t *testing.T) {
	f := newFixture(t)

	_, err := f.studio.Generate(request("good"))
	require.NoError(t, err)
	first := await(t, f.studio, job.Generation)
	require.True(t, first.OK())

	f.engine.FailWith(errors.New("onnx exploded"))
	_, err = f.studio.Generate(request("bad"))
	require.NoError(t, err)
	ev := await(t, f.studio, job.Generation)

	assert.False(t, ev.OK())
	assert.ErrorIs(t, ev.Err, synth.ErrSynthesisFailure)
	assert.Contains(t, ev.String(), "onnx exploded")
	assert.Equal(t, job.Failed, f.studio.Runner().State(job.Generation))

	current, ok := f.studio.Current()
	require.True(t, ok)
	assert.Equal(t, first.Artifact, current)

	// Failed behaves as idle: the next request is accepted.
	f.engine.FailWith(nil)
	_, err = f.studio.Generate(request("again"))
	assert.NoError(t, err)
	await(t, f.studio, job.Generation)
}

func TestPreviewIsCachedPerVoice(t *testing.T) {
	f := newFixture(t)
	s := f.studio

	out, err := s.Preview("af_heart")
	require.NoError(t, err)
	assert.False(t, out.Cached)

	ev := await(t, s, job.Preview)
	require.True(t, ev.OK())
	assert.True(t, ev.Played, "a fresh preview plays when it arrives")
	assert.Equal(t, "preview_af_heart.wav", ev.Artifact.Name())
	assert.Equal(t, PreviewSpeed, ev.Request.Speed)
	assert.Equal(t, s.Catalog().Sample("af_heart"), ev.Request.Text)
	assert.Equal(t, ev.Artifact.Path, f.device.Loaded())

	f.device.Finish()
	require.True(t, s.Tick(s.Player().Session()))

	out, err = s.Preview("af_heart")
	require.NoError(t, err)
	assert.True(t, out.Cached)
	assert.Equal(t, ev.Artifact.Path, out.Artifact.Path)
	assert.Equal(t, 1, f.engine.Calls(), "a cached preview is not synthesised again")
	assert.Equal(t, playback.Playing, s.Player().State())
	assert.False(t, s.Runner().Running(job.Preview))

	_, ok := s.Current()
	assert.False(t, ok, "previews never become the current artifact")
}

func TestPreviewRegeneratesMissingClip(t *testing.T) {
	f := newFixture(t)
	s := f.studio

	_, err := s.Preview("bf_emma")
	require.NoError(t, err)
	ev := await(t, s, job.Preview)
	require.True(t, ev.OK())
	f.device.Finish()
	s.Tick(s.Player().Session())

	require.NoError(t, os.Remove(ev.Artifact.Path))

	out, err := s.Preview("bf_emma")
	require.NoError(t, err)
	assert.False(t, out.Cached)
	await(t, s, job.Preview)
	assert.Equal(t, 2, f.engine.Calls())
	assert.FileExists(t, ev.Artifact.Path)
}

func TestPreviewAdoptsClipFromEarlierSession(t *testing.T) {
	f := newFixture(t)
	store := f.studio.Store()

	path, err := store.PreviewPath("am_adam")
	require.NoError(t, err)
	_, err = store.Save(path, engine.Audio{Samples: make([]float32, 2400), SampleRate: 24000, Channels: 1})
	require.NoError(t, err)

	out, err := f.studio.Preview("am_adam")
	require.NoError(t, err)
	assert.True(t, out.Cached)
	assert.Zero(t, f.engine.Calls())
}

func TestInvalidatePreview(t *testing.T) {
	f := newFixture(t)
	s := f.studio

	_, err := s.Preview("af_sky")
	require.NoError(t, err)
	await(t, s, job.Preview)

	s.InvalidatePreview("af_sky")

	// The clip on disk is still valid and is adopted again.
	out, err := s.Preview("af_sky")
	require.NoError(t, err)
	assert.True(t, out.Cached)
	assert.Equal(t, 1, f.engine.Calls())
}

func TestCachedPreviewInterruptsPlayback(t *testing.T) {
	f := newFixture(t)
	s := f.studio

	_, err := s.Preview("af_bella")
	require.NoError(t, err)
	preview := await(t, s, job.Preview)
	f.device.Finish()
	s.Tick(s.Player().Session())

	_, err = s.Generate(request("narration"))
	require.NoError(t, err)
	await(t, s, job.Generation)
	require.NoError(t, s.Play())

	out, err := s.Preview("af_bella")
	require.NoError(t, err)
	assert.True(t, out.Cached)
	assert.Equal(t, preview.Artifact.Path, f.device.Loaded())
	assert.Equal(t, int64(1), f.device.GetMetrics().StopCount)
}

func TestPreviewAndGenerationRunTogether(t *testing.T) {
	f := newFixture(t)
	s := f.studio
	release := f.engine.Hold()

	_, err := s.Generate(request("long text"))
	require.NoError(t, err)
	_, err = s.Preview("am_echo")
	require.NoError(t, err, "the preview class has its own guard")
	assert.False(t, s.CanPreview())

	release()
	gen := await(t, s, job.Generation)
	assert.True(t, gen.OK())
	if s.Runner().Running(job.Preview) {
		prev := await(t, s, job.Preview)
		assert.True(t, prev.OK())
	}
	assert.False(t, s.Runner().Busy())
}

func TestPlayStopAndCompletion(t *testing.T) {
	f := newFixture(t)
	s := f.studio

	assert.False(t, s.CanPlay())
	assert.ErrorIs(t, s.Play(), playback.ErrNoArtifact)
	assert.ErrorIs(t, s.Stop(), playback.ErrNotPlaying)

	_, err := s.Generate(request("Hello"))
	require.NoError(t, err)
	await(t, s, job.Generation)

	require.NoError(t, s.Play())
	assert.False(t, s.CanPlay())
	assert.True(t, s.CanStop())
	assert.ErrorIs(t, s.Play(), playback.ErrAlreadyPlaying)

	session := s.Player().Session()
	assert.False(t, s.Tick(session))
	require.NoError(t, s.Stop())
	assert.False(t, s.Tick(session), "ticks from a stopped session are ignored")

	require.NoError(t, s.Play())
	f.device.Finish()
	assert.True(t, s.Tick(s.Player().Session()))
	assert.True(t, s.CanPlay())
	assert.False(t, s.CanStop())
}

func TestExport(t *testing.T) {
	f := newFixture(t)
	s := f.studio
	dest := filepath.Join(t.TempDir(), "saved", "hello.wav")

	assert.NoError(t, s.Export(""), "a cancelled export is a no-op")
	assert.ErrorIs(t, s.Export(dest), ErrNothingToExport)

	_, err := s.Generate(request("Hello"))
	require.NoError(t, err)
	ev := await(t, s, job.Generation)

	require.NoError(t, s.Export(dest))
	want, err := os.ReadFile(ev.Artifact.Path)
	require.NoError(t, err)
	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(want, got))
}

func TestSuggestFilename(t *testing.T) {
	f := newFixture(t)
	name := f.studio.SuggestFilename("Hello, world!", "af_heart")
	assert.Regexp(t, `^Hello_world_Heart_\d{8}_\d{6}\.wav$`, name)

	name = f.studio.SuggestFilename("", "unknown")
	assert.Regexp(t, `^speech_unknown_\d{8}_\d{6}\.wav$`, name)
}

func TestStats(t *testing.T) {
	f := newFixture(t)
	snap := f.studio.Stats("Hello world", 1.0)
	assert.Equal(t, 11, snap.Characters)
	assert.InDelta(t, 0.55, snap.NarrationSeconds, 1e-9)

	custom := New(Config{
		Catalog:   f.studio.Catalog(),
		Gateway:   synth.New(f.engine, nil),
		Store:     f.studio.Store(),
		Device:    f.device,
		Estimator: stats.New(600, 0.5),
	})
	snap = custom.Stats("Hello world", 1.0)
	assert.InDelta(t, 1.1, snap.NarrationSeconds, 1e-9)
	assert.InDelta(t, 0.55, snap.GenerationSeconds, 1e-9)
}

func TestAwaitWithoutJob(t *testing.T) {
	f := newFixture(t)
	_, err := f.studio.Await(context.Background(), job.Generation, 0)
	assert.Error(t, err)
}

func TestEventString(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name string
		ev   Event
		want string
	}{
		{"stale", Event{Stale: true}, ""},
		{"generation failed", Event{Class: job.Generation, Err: boom}, "Generation failed: boom"},
		{"preview failed", Event{Class: job.Preview, Request: job.Request{Voice: "af_sky"}, Err: boom}, "Preview of af_sky failed: boom"},
		{"preview ready", Event{Class: job.Preview, Request: job.Request{Voice: "af_sky"}, Elapsed: 1520 * time.Millisecond}, "Preview of af_sky ready in 1.5s"},
		{
			"generated",
			Event{
				Class:    job.Generation,
				Artifact: artifact.Artifact{Path: "/o/speech_x.wav", Duration: 2 * time.Second, Size: 96044},
				Elapsed:  300 * time.Millisecond,
			},
			"Generated speech_x.wav (2s, 96 kB) in 300ms",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.ev.String())
		})
	}
}
