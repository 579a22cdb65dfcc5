package ui

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/koko/utils"
	"github.com/muesli/reflow/ansi"
)

//go:embed help.md
var helpMarkdown string

type helpRenderedMsg string

func renderHelp(cfg Config, width int) tea.Cmd {
	return func() tea.Msg {
		s, err := glamourRender(cfg, helpMarkdown, width)
		if err != nil {
			log.Error("error rendering help with Glamour", "error", err)
			return helpRenderedMsg(helpMarkdown)
		}
		return helpRenderedMsg(s)
	}
}

func glamourRender(cfg Config, markdown string, width int) (string, error) {
	if !cfg.GlamourEnabled {
		return markdown, nil
	}

	r, err := glamour.NewTermRenderer(
		utils.GlamourStyle(cfg.GlamourStyle),
		glamour.WithWordWrap(max(0, min(width, 100))),
	)
	if err != nil {
		return "", fmt.Errorf("error creating glamour renderer: %w", err)
	}
	out, err := r.Render(markdown)
	if err != nil {
		return "", fmt.Errorf("error rendering markdown: %w", err)
	}
	return out, nil
}

// shortHelpView renders the key hints shown under the editor. Actions that
// are currently unavailable are struck through.
func shortHelpView(bindings []key.Binding, enabled map[string]bool, width int) string {
	parts := make([]string, 0, len(bindings))
	for _, b := range bindings {
		h := b.Help()
		item := keyStyle(h.Key) + " " + h.Desc
		if on, ok := enabled[h.Desc]; ok && !on {
			item = disabledStyle(h.Key + " " + h.Desc)
		}
		parts = append(parts, item)
	}

	s := strings.Join(parts, subtleStyle(" • "))
	if width > 0 && ansi.PrintableRuneWidth(s) > width {
		// Fall back to keys only on narrow terminals.
		keysOnly := make([]string, 0, len(bindings))
		for _, b := range bindings {
			keysOnly = append(keysOnly, keyStyle(b.Help().Key))
		}
		s = strings.Join(keysOnly, " ")
	}
	return s
}
