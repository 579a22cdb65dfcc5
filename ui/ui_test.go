package ui

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dgnsrekt/koko/internal/artifact"
	"github.com/dgnsrekt/koko/internal/audio"
	"github.com/dgnsrekt/koko/internal/engine"
	"github.com/dgnsrekt/koko/internal/job"
	"github.com/dgnsrekt/koko/internal/playback"
	"github.com/dgnsrekt/koko/internal/studio"
	"github.com/dgnsrekt/koko/internal/synth"
	"github.com/dgnsrekt/koko/internal/voices"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	m      model
	studio *studio.Studio
	engine *engine.Mock
	device *audio.MockPlayer
}

func newHarness(t *testing.T, gw func(*engine.Mock) *synth.Gateway) *harness {
	t.Helper()
	catalog, err := voices.Default()
	require.NoError(t, err)

	mock := engine.NewMock(engine.MockConfig{MaxDuration: 200 * time.Millisecond})
	dev := audio.NewMockPlayer(audio.MockCallbacks{})
	dev.SetDelayFactor(0)

	st := studio.New(studio.Config{
		Catalog: catalog,
		Gateway: gw(mock),
		Store:   artifact.NewStore(t.TempDir()),
		Device:  dev,
	})
	t.Cleanup(func() { _ = st.Close() })

	h := &harness{
		m:      newModel(Config{GlamourEnabled: false, PollInterval: time.Millisecond}, st, nil),
		studio: st,
		engine: mock,
		device: dev,
	}
	h.send(tea.WindowSizeMsg{Width: 100, Height: 30})
	return h
}

func available(m *engine.Mock) *synth.Gateway { return synth.New(m, nil) }

func (h *harness) send(msg tea.Msg) tea.Cmd {
	next, cmd := h.m.Update(msg)
	h.m = next.(model)
	return cmd
}

func (h *harness) key(k tea.KeyType) tea.Cmd {
	return h.send(tea.KeyMsg{Type: k})
}

func (h *harness) typeText(s string) {
	h.send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
}

func (h *harness) result(t *testing.T, c job.Class) {
	t.Helper()
	select {
	case res := <-h.studio.Runner().Results(c):
		h.send(resultMsg{res})
	case <-time.After(5 * time.Second):
		t.Fatalf("no %s result", c)
	}
}

func TestNewModelDefaults(t *testing.T) {
	h := newHarness(t, available)

	assert.Equal(t, "af_alloy", h.m.voice, "first voice of the catalog")
	assert.Equal(t, studio.DefaultSpeed, h.m.speed)
	assert.Zero(t, h.m.stats.Characters)
	assert.Equal(t, "Ready", h.m.status)
	assert.False(t, h.m.statusErr)
	assert.Equal(t, focusEditor, h.m.focus)
	assert.Equal(t, modeNormal, h.m.mode)
}

func TestConfiguredVoiceAndSpeed(t *testing.T) {
	catalog, err := voices.Default()
	require.NoError(t, err)
	st := studio.New(studio.Config{
		Catalog: catalog,
		Gateway: synth.New(engine.NewMock(engine.MockConfig{}), nil),
		Store:   artifact.NewStore(t.TempDir()),
		Device:  audio.NewMockPlayer(audio.MockCallbacks{}),
	})

	m := newModel(Config{Voice: "bm_george", Speed: 5, Text: "Hello world"}, st, nil)
	assert.Equal(t, "bm_george", m.voice)
	assert.Equal(t, studio.MaxSpeed, m.speed)
	assert.Equal(t, 11, m.stats.Characters)

	assert.Equal(t, "Ready", m.status)

	m = newModel(Config{Voice: "nobody"}, st, nil)
	assert.Equal(t, catalog.First().ID, m.voice)
	assert.True(t, m.statusErr, "an unknown voice is reported")
	assert.Contains(t, m.status, `unknown voice "nobody"`)
	assert.Contains(t, m.status, catalog.First().ID)
}

func TestTypingUpdatesStats(t *testing.T) {
	h := newHarness(t, available)
	h.typeText("Hello world")

	assert.Equal(t, "Hello world", h.m.editor.Value())
	assert.Equal(t, 11, h.m.stats.Characters)
	assert.InDelta(t, 0.55, h.m.stats.NarrationSeconds, 1e-9)
	assert.Contains(t, h.m.View(), "Characters")
}

func TestSpeedSteps(t *testing.T) {
	h := newHarness(t, available)
	h.typeText("Hello world")

	h.key(tea.KeyCtrlUp)
	assert.Equal(t, 1.1, h.m.speed)
	assert.InDelta(t, 0.5, h.m.stats.NarrationSeconds, 1e-9)

	for i := 0; i < 20; i++ {
		h.key(tea.KeyCtrlUp)
	}
	assert.Equal(t, studio.MaxSpeed, h.m.speed)

	for i := 0; i < 30; i++ {
		h.key(tea.KeyCtrlDown)
	}
	assert.Equal(t, studio.MinSpeed, h.m.speed)
}

func TestClampSpeed(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{0, 1.0},
		{0.3, 0.5},
		{1.04, 1.0},
		{1.06, 1.1},
		{9, 2.0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, clampSpeed(tt.in), "clampSpeed(%v)", tt.in)
	}
}

func TestGeneratePlayStop(t *testing.T) {
	h := newHarness(t, available)
	h.typeText("Hello world")

	cmd := h.key(tea.KeyCtrlG)
	require.NotNil(t, cmd)
	assert.True(t, h.studio.Runner().Running(job.Generation))
	assert.Contains(t, h.m.status, "Generating 11 characters")
	assert.Contains(t, h.m.View(), "generating")

	assert.Nil(t, h.key(tea.KeyCtrlG), "generate is disabled while generating")
	assert.Nil(t, h.key(tea.KeyCtrlP), "nothing to play yet")

	h.result(t, job.Generation)
	assert.False(t, h.m.statusErr)
	assert.Contains(t, h.m.status, "Generated speech_")
	_, ok := h.studio.Current()
	require.True(t, ok)

	require.NotNil(t, h.key(tea.KeyCtrlP))
	assert.Equal(t, playback.Playing, h.studio.Player().State())
	assert.Contains(t, h.m.status, "Playing speech_")
	assert.Contains(t, h.m.View(), "▶")

	h.key(tea.KeyCtrlX)
	assert.Equal(t, playback.Stopped, h.studio.Player().State())
	assert.Equal(t, "Stopped", h.m.status)
}

func TestPlaybackTicksDetectCompletion(t *testing.T) {
	h := newHarness(t, available)
	h.typeText("Hello")
	h.key(tea.KeyCtrlG)
	h.result(t, job.Generation)
	h.key(tea.KeyCtrlP)

	session := h.studio.Player().Session()
	assert.NotNil(t, h.send(playbackTickMsg{session: session}), "keeps polling while playing")

	h.device.Finish()
	assert.Nil(t, h.send(playbackTickMsg{session: session}))
	assert.Equal(t, playback.Stopped, h.studio.Player().State())
	assert.Contains(t, h.m.status, "Finished playing")

	assert.Nil(t, h.send(playbackTickMsg{session: session}), "stale ticks are dropped")
}

func TestGenerateErrors(t *testing.T) {
	h := newHarness(t, available)

	h.key(tea.KeyCtrlG)
	assert.True(t, h.m.statusErr)
	assert.Equal(t, studio.ErrEmptyText.Error(), h.m.status)

	h.engine.FailWith(errors.New("model crashed"))
	h.typeText("Hello")
	h.key(tea.KeyCtrlG)
	h.result(t, job.Generation)
	assert.True(t, h.m.statusErr)
	assert.Contains(t, h.m.status, "model crashed")
}

func TestEngineUnavailable(t *testing.T) {
	h := newHarness(t, func(*engine.Mock) *synth.Gateway {
		return synth.New(nil, errors.New("models/kokoro-v1.0.onnx not found"))
	})

	assert.True(t, h.m.statusErr)
	assert.Contains(t, h.m.status, "generation disabled")
	assert.Contains(t, h.m.View(), "ENGINE OFFLINE")

	h.typeText("Hello")
	assert.Nil(t, h.key(tea.KeyCtrlG))
	assert.False(t, h.studio.Runner().Busy())
	assert.Contains(t, h.m.status, "kokoro-v1.0.onnx not found")
}

func TestPickerSelectsVoice(t *testing.T) {
	h := newHarness(t, available)

	h.key(tea.KeyTab)
	assert.Equal(t, focusPicker, h.m.focus)
	h.typeText("george")
	sel, ok := h.m.picker.selected()
	require.True(t, ok)
	assert.Equal(t, "bm_george", sel.Voice.ID)
	assert.Contains(t, h.m.View(), "George")

	h.key(tea.KeyEnter)
	assert.Equal(t, "bm_george", h.m.voice)
	assert.Equal(t, focusEditor, h.m.focus)
	assert.Contains(t, h.m.status, "George")

	// Typing goes to the editor again.
	h.typeText("Hi")
	assert.Equal(t, "Hi", h.m.editor.Value())
}

func TestPickerEscKeepsVoice(t *testing.T) {
	h := newHarness(t, available)
	voice := h.m.voice

	h.key(tea.KeyTab)
	h.typeText("emma")
	h.key(tea.KeyEsc)
	assert.Equal(t, voice, h.m.voice)
	assert.Equal(t, focusEditor, h.m.focus)
}

func TestPreviewFromPicker(t *testing.T) {
	h := newHarness(t, available)

	h.key(tea.KeyTab)
	h.typeText("emma")
	require.NotNil(t, h.key(tea.KeyCtrlO))
	assert.True(t, h.studio.Runner().Running(job.Preview))
	assert.Contains(t, h.m.status, "bf_emma")

	h.result(t, job.Preview)
	assert.False(t, h.m.statusErr)
	assert.Contains(t, h.m.status, "Preview of bf_emma ready")
	assert.Equal(t, "preview_bf_emma.wav", filepath.Base(h.device.Loaded()))
	assert.Equal(t, playback.Playing, h.studio.Player().State())

	// The second audition is served from the cache.
	require.NotNil(t, h.key(tea.KeyCtrlO))
	assert.False(t, h.studio.Runner().Running(job.Preview))
	assert.Equal(t, 1, h.engine.Calls())
	assert.Equal(t, "Previewing bf_emma", h.m.status)
}

func TestPreviewRemovedInvalidatesCache(t *testing.T) {
	h := newHarness(t, available)

	h.key(tea.KeyCtrlO)
	h.result(t, job.Preview)
	path := h.device.Loaded()
	h.device.Finish()
	h.send(playbackTickMsg{session: h.studio.Player().Session()})

	require.NoError(t, os.Remove(path))
	h.send(previewRemovedMsg{voice: h.m.voice})

	require.NotNil(t, h.key(tea.KeyCtrlO))
	assert.True(t, h.studio.Runner().Running(job.Preview), "a removed clip is generated again")
	h.result(t, job.Preview)
	assert.Equal(t, 2, h.engine.Calls())
}

func TestExportPrompt(t *testing.T) {
	h := newHarness(t, available)

	h.key(tea.KeyCtrlS)
	assert.Equal(t, modeNormal, h.m.mode)
	assert.True(t, h.m.statusErr, "nothing to save yet")

	h.typeText("Hello world")
	h.key(tea.KeyCtrlG)
	h.result(t, job.Generation)

	h.key(tea.KeyCtrlS)
	require.Equal(t, modeExport, h.m.mode)
	assert.True(t, strings.HasPrefix(h.m.export.Value(), "Hello_world_Alloy_"), h.m.export.Value())
	assert.Contains(t, h.m.View(), "Save as:")

	h.key(tea.KeyEsc)
	assert.Equal(t, modeNormal, h.m.mode)
	assert.Equal(t, "Save cancelled", h.m.status)

	dest := filepath.Join(t.TempDir(), "out", "hello.wav")
	h.key(tea.KeyCtrlS)
	h.m.export.SetValue(dest)
	h.key(tea.KeyEnter)
	assert.Equal(t, modeNormal, h.m.mode)
	assert.False(t, h.m.statusErr, h.m.status)
	assert.Equal(t, "Saved to "+dest, h.m.status)
	assert.FileExists(t, dest)

	h.key(tea.KeyCtrlS)
	h.m.export.SetValue("   ")
	h.key(tea.KeyEnter)
	assert.Equal(t, "Save cancelled", h.m.status)
}

func TestHelpOverlay(t *testing.T) {
	h := newHarness(t, available)

	cmd := h.key(tea.KeyF1)
	require.NotNil(t, cmd)
	assert.Equal(t, modeHelp, h.m.mode)

	h.send(cmd())
	assert.Contains(t, h.m.View(), "Preview the selected voice")

	// Keys do not leak into the editor while help is open.
	h.typeText("x")
	assert.Empty(t, h.m.editor.Value())

	h.key(tea.KeyEsc)
	assert.Equal(t, modeNormal, h.m.mode)
}

func TestQuit(t *testing.T) {
	h := newHarness(t, available)
	cmd := h.key(tea.KeyCtrlQ)
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestShortHelpMarksDisabledActions(t *testing.T) {
	h := newHarness(t, available)
	enabled := h.m.enabledActions()
	assert.True(t, enabled["generate"])
	assert.False(t, enabled["play"])
	assert.False(t, enabled["stop"])
	assert.False(t, enabled["save as"])
}
