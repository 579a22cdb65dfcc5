package ui

import (
	"fmt"
	"strings"

	"github.com/dgnsrekt/koko/internal/job"
	"github.com/dgnsrekt/koko/internal/playback"
	"github.com/dgnsrekt/koko/internal/stats"
	"github.com/muesli/reflow/ansi"
	"github.com/muesli/reflow/truncate"
)

func (m model) headerView() string {
	logo := logoStyle(" koko ")

	voice := m.voice
	lang := ""
	if v, ok := m.studio.Catalog().Voice(m.voice); ok {
		voice = v.Name
	}
	if l, ok := m.studio.Catalog().LanguageOf(m.voice); ok {
		lang = " " + subtleStyle(l.Label)
	}

	s := fmt.Sprintf("%s  %s %s%s  %s %s",
		logo,
		labelStyle("Voice"), valueStyle(voice), lang,
		labelStyle("Speed"), valueStyle(fmt.Sprintf("%.1fx", m.speed)),
	)
	if !m.studio.Available() {
		s += "  " + errorTitleStyle("ENGINE OFFLINE")
	}
	return truncate.StringWithTail(s, uint(max(0, m.width)), ellipsis) //nolint:gosec
}

func (m model) statsView() string {
	if m.stats.Characters == 0 {
		return subtleStyle(" No text yet")
	}
	return " " + statsLine(m.stats)
}

func statsLine(s stats.Snapshot) string {
	return fmt.Sprintf("%s %s  %s %s  %s %s",
		labelStyle("Characters"), valueStyle(fmt.Sprint(s.Characters)),
		labelStyle("Narration"), valueStyle("~"+s.Narration()),
		labelStyle("Generation"), valueStyle("~"+s.Generation()),
	)
}

// activity describes what is happening right now, for the left edge of the
// status bar.
func (m model) activity() string {
	runner := m.studio.Runner()
	var parts []string
	if runner.Running(job.Generation) {
		parts = append(parts, "generating")
	}
	if runner.Running(job.Preview) {
		parts = append(parts, "previewing")
	}
	if len(parts) > 0 {
		return m.spinner.View() + " " + strings.Join(parts, ", ")
	}

	player := m.studio.Player()
	if player.State() == playback.Playing {
		a, _ := player.Artifact()
		return fmt.Sprintf("▶ %s / %s",
			stats.FormatDuration(player.Elapsed().Seconds()),
			stats.FormatDuration(a.Duration.Seconds()))
	}
	return "■"
}

func (m model) statusBarView(b *strings.Builder) {
	activity := " " + m.activity() + " "
	helpNote := statusBarHelpStyle(" F1 Help ")

	style := statusBarMessageStyle
	if m.statusErr {
		style = statusBarErrorStyle
	}
	activity = statusBarNoteStyle(activity)

	note := truncate.StringWithTail(" "+m.status+" ", uint(max(0, //nolint:gosec
		m.width-
			ansi.PrintableRuneWidth(activity)-
			ansi.PrintableRuneWidth(helpNote),
	)), ellipsis)
	note = style(note)

	// Empty space
	padding := max(0,
		m.width-
			ansi.PrintableRuneWidth(activity)-
			ansi.PrintableRuneWidth(note)-
			ansi.PrintableRuneWidth(helpNote),
	)
	emptySpace := style(strings.Repeat(" ", padding))

	fmt.Fprintf(b, "%s%s%s%s",
		activity,
		note,
		emptySpace,
		helpNote,
	)
}
