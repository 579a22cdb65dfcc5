package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/dgnsrekt/koko/internal/voices"
	runewidth "github.com/mattn/go-runewidth"
	"github.com/muesli/reflow/truncate"
)

// pickerModel lists the catalog's voices and narrows them with a fuzzy
// filter typed by the user.
type pickerModel struct {
	catalog *voices.Catalog
	filter  textinput.Model
	matches []voices.Match
	cursor  int
	height  int
}

func newPickerModel(catalog *voices.Catalog) pickerModel {
	ti := textinput.New()
	ti.Prompt = "Find: "
	ti.Placeholder = "voice, name or language"
	ti.CharLimit = 40

	p := pickerModel{
		catalog: catalog,
		filter:  ti,
		height:  8,
	}
	p.refresh()
	return p
}

func (p *pickerModel) refresh() {
	p.matches = p.catalog.Filter(p.filter.Value())
	if p.cursor >= len(p.matches) {
		p.cursor = max(0, len(p.matches)-1)
	}
}

// focus moves the cursor onto id and starts accepting filter input.
func (p *pickerModel) focus(id string) tea.Cmd {
	for i, m := range p.matches {
		if m.Voice.ID == id {
			p.cursor = i
			break
		}
	}
	return p.filter.Focus()
}

func (p *pickerModel) blur() {
	p.filter.Blur()
}

func (p pickerModel) selected() (voices.Match, bool) {
	if len(p.matches) == 0 {
		return voices.Match{}, false
	}
	return p.matches[p.cursor], true
}

func (p pickerModel) update(msg tea.Msg) (pickerModel, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "up", "ctrl+k":
			if p.cursor > 0 {
				p.cursor--
			}
			return p, nil
		case "down", "ctrl+j":
			if p.cursor < len(p.matches)-1 {
				p.cursor++
			}
			return p, nil
		case "pgup":
			p.cursor = max(0, p.cursor-p.height)
			return p, nil
		case "pgdown":
			p.cursor = max(0, min(len(p.matches)-1, p.cursor+p.height))
			return p, nil
		}
	}

	before := p.filter.Value()
	var cmd tea.Cmd
	p.filter, cmd = p.filter.Update(msg)
	if p.filter.Value() != before {
		p.cursor = 0
		p.refresh()
	}
	return p, cmd
}

func (p pickerModel) view(width int, current string) string {
	var b strings.Builder
	b.WriteString(p.filter.View())
	b.WriteString("\n")

	if len(p.matches) == 0 {
		b.WriteString(subtleStyle("  No voices match."))
		return b.String()
	}

	// Keep the cursor inside a window of p.height rows.
	start := 0
	if p.cursor >= p.height {
		start = p.cursor - p.height + 1
	}
	end := min(len(p.matches), start+p.height)

	for i := start; i < end; i++ {
		m := p.matches[i]
		row := runewidth.FillRight(m.Voice.Name, 24) + " " + runewidth.FillRight(m.Voice.ID, 12) + " " + m.Language
		row = truncate.StringWithTail(row, uint(max(0, width-4)), ellipsis) //nolint:gosec

		switch {
		case i == p.cursor:
			b.WriteString(pickerCursorStyle("> " + row))
		case m.Voice.ID == current:
			b.WriteString(pickerSelectedStyle("• " + row))
		default:
			b.WriteString("  " + row)
		}
		if i+1 < end {
			b.WriteString("\n")
		}
	}

	if n := len(p.matches); n > p.height {
		fmt.Fprintf(&b, "\n%s", subtleStyle(fmt.Sprintf("  %d/%d", p.cursor+1, n)))
	}
	return b.String()
}
