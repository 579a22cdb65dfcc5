// Package ui provides the terminal studio for koko.
package ui

import (
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/koko/internal/artifact"
	"github.com/dgnsrekt/koko/internal/job"
	"github.com/dgnsrekt/koko/internal/playback"
	"github.com/dgnsrekt/koko/internal/stats"
	"github.com/dgnsrekt/koko/internal/studio"
	"github.com/dgnsrekt/koko/utils"
	"github.com/muesli/termenv"
)

const (
	ellipsis   = "…"
	speedStep  = 0.1
	pickerRows = 8
)

// NewProgram returns a new Tea program driving st. The watcher is optional;
// when set, preview clips deleted on disk are dropped from the cache.
func NewProgram(cfg Config, st *studio.Studio, watcher *artifact.Watcher) *tea.Program {
	log.Debug(
		"Starting koko",
		"glamour", cfg.GlamourEnabled,
		"engine_available", st.Available(),
		"poll_interval", cfg.PollInterval,
	)

	var opts []tea.ProgramOption
	if cfg.AltScreen {
		opts = append(opts, tea.WithAltScreen())
	}
	if cfg.EnableMouse {
		opts = append(opts, tea.WithMouseCellMotion())
	}
	return tea.NewProgram(newModel(cfg, st, watcher), opts...)
}

type focusArea int

const (
	focusEditor focusArea = iota
	focusPicker
)

// mode is what the screen is showing on top of the form.
type mode int

const (
	modeNormal mode = iota
	modeExport
	modeHelp
)

func (m mode) String() string {
	return map[mode]string{
		modeNormal: "editing",
		modeExport: "saving",
		modeHelp:   "showing help",
	}[m]
}

type (
	resultMsg         struct{ job.Result }
	playbackTickMsg   struct{ session uint64 }
	previewRemovedMsg struct{ voice string }
)

type model struct {
	cfg     Config
	studio  *studio.Studio
	watcher *artifact.Watcher

	width  int
	height int
	focus  focusArea
	mode   mode

	editor  textarea.Model
	picker  pickerModel
	export  textinput.Model
	help    viewport.Model
	spinner spinner.Model

	voice string
	speed float64
	stats stats.Snapshot

	status    string
	statusErr bool
}

func newModel(cfg Config, st *studio.Studio, watcher *artifact.Watcher) model {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = playback.DefaultPollInterval
	}

	ta := textarea.New()
	ta.Placeholder = "Type or paste the text to speak…"
	ta.ShowLineNumbers = false
	ta.CharLimit = 0
	ta.MaxHeight = 0
	ta.SetValue(cfg.Text)
	ta.Focus()

	ti := textinput.New()
	ti.Prompt = "Save as: "

	sp := spinner.New(
		spinner.WithSpinner(spinner.Dot),
		spinner.WithStyle(spinnerStyle),
	)

	m := model{
		cfg:     cfg,
		studio:  st,
		watcher: watcher,
		editor:  ta,
		picker:  newPickerModel(st.Catalog()),
		export:  ti,
		help:    viewport.New(0, 0),
		spinner: sp,
		voice:   st.Catalog().First().ID,
		speed:   clampSpeed(cfg.Speed),
	}
	var voiceErr error
	if _, ok := st.Catalog().Voice(cfg.Voice); ok {
		m.voice = cfg.Voice
	} else if cfg.Voice != "" {
		voiceErr = fmt.Errorf("%w %q, using %s", studio.ErrUnknownVoice, cfg.Voice, m.voice)
		log.Warn("configured voice not in catalog", "voice", cfg.Voice, "fallback", m.voice)
	}
	m.picker.height = pickerRows
	m.refreshStats()

	switch {
	case !st.Available():
		m.setError(fmt.Errorf("generation disabled: %w", st.EngineErr()))
	case voiceErr != nil:
		m.setError(voiceErr)
	default:
		m.setStatus("Ready")
	}
	return m
}

func (m model) Init() tea.Cmd {
	cmds := []tea.Cmd{textarea.Blink}
	if m.watcher != nil {
		cmds = append(cmds, watchPreviews(m.watcher))
	}
	return tea.Batch(cmds...)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	// Window size is received when starting up and on every resize
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		if m.mode == modeHelp {
			cmds = append(cmds, renderHelp(m.cfg, m.width))
		}

	case resultMsg:
		ev := m.studio.Apply(msg.Result)
		if ev.Stale {
			return m, nil
		}
		if ev.OK() {
			m.setStatus(ev.String())
		} else {
			m.setError(errors.New(ev.String()))
		}
		if ev.Played {
			cmds = append(cmds, m.tickPlayback())
		}

	case playbackTickMsg:
		if msg.session != m.studio.Player().Session() {
			return m, nil
		}
		playing, _ := m.studio.Player().Artifact()
		if m.studio.Tick(msg.session) {
			m.setStatus("Finished playing " + playing.Name())
			return m, nil
		}
		return m, m.tickPlayback()

	case previewRemovedMsg:
		log.Debug("preview removed on disk", "voice", msg.voice)
		m.studio.InvalidatePreview(msg.voice)
		return m, watchPreviews(m.watcher)

	case helpRenderedMsg:
		m.help.SetContent(string(msg))

	case spinner.TickMsg:
		if !m.studio.Runner().Busy() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	// Cursor blinks and the like go to whatever has focus.
	var cmd tea.Cmd
	switch {
	case m.mode == modeExport:
		m.export, cmd = m.export.Update(msg)
	case m.mode == modeHelp:
		m.help, cmd = m.help.Update(msg)
	case m.focus == focusPicker:
		m.picker, cmd = m.picker.update(msg)
	default:
		m.editor, cmd = m.editor.Update(msg)
	}
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Quitting always works, even mid-prompt.
	if key.Matches(msg, keys.Quit) {
		return m, tea.Quit
	}

	switch m.mode {
	case modeHelp:
		switch msg.String() {
		case "esc", "q", "f1":
			m.mode = modeNormal
			return m, nil
		}
		var cmd tea.Cmd
		m.help, cmd = m.help.Update(msg)
		return m, cmd

	case modeExport:
		switch msg.String() {
		case "enter":
			m.finishExport(m.export.Value())
			return m, nil
		case "esc":
			m.finishExport("")
			return m, nil
		}
		var cmd tea.Cmd
		m.export, cmd = m.export.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, keys.Generate):
		return m, m.generate()
	case key.Matches(msg, keys.Preview):
		return m, m.preview()
	case key.Matches(msg, keys.Play):
		return m, m.play()
	case key.Matches(msg, keys.Stop):
		m.stop()
		return m, nil
	case key.Matches(msg, keys.Save):
		return m, m.startExport()
	case key.Matches(msg, keys.Copy):
		m.copyPath()
		return m, nil
	case key.Matches(msg, keys.SpeedUp):
		m.setSpeed(m.speed + speedStep)
		return m, nil
	case key.Matches(msg, keys.SpeedDown):
		m.setSpeed(m.speed - speedStep)
		return m, nil
	case key.Matches(msg, keys.Focus):
		return m, m.toggleFocus()
	case key.Matches(msg, keys.Help):
		m.mode = modeHelp
		m.help.GotoTop()
		return m, renderHelp(m.cfg, m.width)
	case msg.String() == "ctrl+z":
		return m, tea.Suspend
	}

	if m.focus == focusPicker {
		switch msg.String() {
		case "enter":
			if sel, ok := m.picker.selected(); ok {
				m.voice = sel.Voice.ID
				m.setStatus(fmt.Sprintf("Voice set to %s (%s)", sel.Voice.Name, sel.Voice.ID))
			}
			return m, m.toggleFocus()
		case "esc":
			return m, m.toggleFocus()
		}
		var cmd tea.Cmd
		m.picker, cmd = m.picker.update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	before := m.editor.Value()
	m.editor, cmd = m.editor.Update(msg)
	if m.editor.Value() != before {
		m.refreshStats()
	}
	return m, cmd
}

func (m model) View() string {
	if m.width == 0 {
		return ""
	}

	var b strings.Builder
	if m.mode == modeHelp {
		fmt.Fprintln(&b, m.help.View())
		m.statusBarView(&b)
		return b.String()
	}

	fmt.Fprintln(&b, m.headerView())

	box := editorBorder
	if m.focus == focusEditor {
		box = editorBorderFocused
	}
	fmt.Fprintln(&b, box.Render(m.editor.View()))
	fmt.Fprintln(&b, m.statsView())

	switch {
	case m.mode == modeExport:
		fmt.Fprintln(&b, m.export.View())
	case m.focus == focusPicker:
		fmt.Fprintln(&b, m.picker.view(m.width, m.voice))
	default:
		fmt.Fprintln(&b, shortHelpView(keys.short(), m.enabledActions(), m.width))
	}

	m.statusBarView(&b)
	return b.String()
}

// ACTIONS

func (m *model) generate() tea.Cmd {
	if !m.studio.Available() {
		m.setError(fmt.Errorf("generation disabled: %w", m.studio.EngineErr()))
		return nil
	}
	if !m.studio.CanGenerate() {
		return nil
	}

	req := job.Request{Text: m.editor.Value(), Voice: m.voice, Speed: m.speed}
	if _, err := m.studio.Generate(req); err != nil {
		m.setError(err)
		return nil
	}
	m.setStatus(fmt.Sprintf("Generating %d characters with %s…", m.stats.Characters, m.voice))
	return tea.Batch(waitForResult(m.studio.Runner(), job.Generation), m.spinner.Tick)
}

func (m *model) preview() tea.Cmd {
	if !m.studio.CanPreview() {
		return nil
	}
	voice := m.voice
	if m.focus == focusPicker {
		if sel, ok := m.picker.selected(); ok {
			voice = sel.Voice.ID
		}
	}

	out, err := m.studio.Preview(voice)
	if err != nil {
		m.setError(err)
		return nil
	}
	if out.Cached {
		m.setStatus("Previewing " + voice)
		return m.tickPlayback()
	}
	m.setStatus(fmt.Sprintf("Generating preview of %s…", voice))
	return tea.Batch(waitForResult(m.studio.Runner(), job.Preview), m.spinner.Tick)
}

func (m *model) play() tea.Cmd {
	if !m.studio.CanPlay() {
		return nil
	}
	if err := m.studio.Play(); err != nil {
		m.setError(err)
		return nil
	}
	current, _ := m.studio.Current()
	m.setStatus("Playing " + current.Name())
	return m.tickPlayback()
}

func (m *model) stop() {
	if !m.studio.CanStop() {
		return
	}
	if err := m.studio.Stop(); err != nil {
		m.setError(err)
		return
	}
	m.setStatus("Stopped")
}

func (m *model) startExport() tea.Cmd {
	if _, ok := m.studio.Current(); !ok {
		m.setError(studio.ErrNothingToExport)
		return nil
	}
	text, voice := m.editor.Value(), m.voice
	if last, ok := m.studio.Runner().Last(job.Generation); ok && last.OK() {
		text, voice = last.Request.Text, last.Request.Voice
	}

	m.mode = modeExport
	m.export.SetValue(m.studio.SuggestFilename(text, voice))
	m.export.CursorEnd()
	return m.export.Focus()
}

func (m *model) finishExport(value string) {
	m.mode = modeNormal
	m.export.Blur()

	dest := strings.TrimSpace(value)
	if dest == "" {
		m.setStatus("Save cancelled")
		return
	}
	dest = utils.ExpandPath(dest)
	if err := m.studio.Export(dest); err != nil {
		m.setError(err)
		return
	}
	if abs, err := filepath.Abs(dest); err == nil {
		dest = abs
	}
	m.setStatus("Saved to " + dest)
}

func (m *model) copyPath() {
	current, ok := m.studio.Current()
	if !ok {
		m.setError(studio.ErrNothingToExport)
		return
	}
	// Copy using OSC 52
	termenv.Copy(current.Path)
	// Copy using native system clipboard
	if err := clipboard.WriteAll(current.Path); err != nil {
		log.Debug("system clipboard unavailable", "error", err)
	}
	m.setStatus("Copied " + current.Path)
}

func (m *model) setSpeed(speed float64) {
	m.speed = clampSpeed(speed)
	m.refreshStats()
}

func (m *model) toggleFocus() tea.Cmd {
	if m.focus == focusEditor {
		m.focus = focusPicker
		m.editor.Blur()
		m.layout()
		return m.picker.focus(m.voice)
	}
	m.focus = focusEditor
	m.picker.blur()
	m.layout()
	return m.editor.Focus()
}

// HELPERS

func (m *model) setStatus(s string) {
	m.status = s
	m.statusErr = false
}

func (m *model) setError(err error) {
	log.Debug("status error", "error", err)
	m.status = err.Error()
	m.statusErr = true
}

func (m *model) refreshStats() {
	m.stats = m.studio.Stats(m.editor.Value(), m.speed)
}

func (m *model) layout() {
	m.editor.SetWidth(max(10, m.width-2))

	below := 1 // short help
	if m.focus == focusPicker {
		below = pickerRows + 2
	}
	// header, border, stats line, status bar
	m.editor.SetHeight(max(3, m.height-1-2-1-below-1))

	m.help.Width = m.width
	m.help.Height = max(1, m.height-1)
	m.export.Width = max(10, m.width-len(m.export.Prompt)-1)
}

func (m model) enabledActions() map[string]bool {
	return map[string]bool{
		keys.Generate.Help().Desc: m.studio.CanGenerate(),
		keys.Play.Help().Desc:     m.studio.CanPlay(),
		keys.Stop.Help().Desc:     m.studio.CanStop(),
		keys.Preview.Help().Desc:  m.studio.CanPreview(),
		keys.Save.Help().Desc:     m.hasCurrent(),
	}
}

func (m model) hasCurrent() bool {
	_, ok := m.studio.Current()
	return ok
}

func clampSpeed(speed float64) float64 {
	if speed == 0 {
		return studio.DefaultSpeed
	}
	speed = math.Round(speed*10) / 10
	return math.Max(studio.MinSpeed, math.Min(studio.MaxSpeed, speed))
}

// COMMANDS

func waitForResult(r *job.Runner, c job.Class) tea.Cmd {
	ch := r.Results(c)
	return func() tea.Msg {
		return resultMsg{<-ch}
	}
}

func watchPreviews(w *artifact.Watcher) tea.Cmd {
	if w == nil {
		return nil
	}
	return func() tea.Msg {
		voice, ok := w.Next()
		if !ok {
			return nil
		}
		return previewRemovedMsg{voice: voice}
	}
}

func (m model) tickPlayback() tea.Cmd {
	session := m.studio.Player().Session()
	return tea.Tick(m.cfg.PollInterval, func(time.Time) tea.Msg {
		return playbackTickMsg{session: session}
	})
}
