package ui

import "github.com/charmbracelet/lipgloss"

var (
	mintGreen = lipgloss.AdaptiveColor{Light: "#89F0CB", Dark: "#89F0CB"}
	darkGreen = lipgloss.AdaptiveColor{Light: "#1C8760", Dark: "#1C8760"}
	fuchsia   = lipgloss.Color("#EE6FF8")
	red       = lipgloss.AdaptiveColor{Light: "#FF4672", Dark: "#ED567A"}
	gray      = lipgloss.AdaptiveColor{Light: "#909090", Dark: "#626262"}
	dimGray   = lipgloss.AdaptiveColor{Light: "#B2B2B2", Dark: "#4A4A4A"}

	statusBarNoteFg = lipgloss.AdaptiveColor{Light: "#656565", Dark: "#7D7D7D"}
	statusBarBg     = lipgloss.AdaptiveColor{Light: "#E6E6E6", Dark: "#242424"}

	logoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#ECFD65")).
			Background(fuchsia).
			Bold(true).
			Render

	labelStyle = lipgloss.NewStyle().
			Foreground(gray).
			Render

	valueStyle = lipgloss.NewStyle().
			Foreground(mintGreen).
			Bold(true).
			Render

	subtleStyle = lipgloss.NewStyle().
			Foreground(dimGray).
			Render

	errorTitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F1F1F1")).
			Background(red).
			Padding(0, 1).
			Render

	statusBarNoteStyle = lipgloss.NewStyle().
				Foreground(statusBarNoteFg).
				Background(statusBarBg).
				Render

	statusBarHelpStyle = lipgloss.NewStyle().
				Foreground(statusBarNoteFg).
				Background(lipgloss.AdaptiveColor{Light: "#DCDCDC", Dark: "#323232"}).
				Render

	statusBarMessageStyle = lipgloss.NewStyle().
				Foreground(mintGreen).
				Background(darkGreen).
				Render

	statusBarErrorStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#F1F1F1")).
				Background(red).
				Render

	editorBorder = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(dimGray)

	editorBorderFocused = editorBorder.
				BorderForeground(fuchsia)

	pickerCursorStyle = lipgloss.NewStyle().
				Foreground(fuchsia).
				Bold(true).
				Render

	pickerSelectedStyle = lipgloss.NewStyle().
				Foreground(mintGreen).
				Render

	disabledStyle = lipgloss.NewStyle().
			Foreground(dimGray).
			Strikethrough(true).
			Render

	spinnerStyle = lipgloss.NewStyle().
			Foreground(fuchsia)

	keyStyle = lipgloss.NewStyle().
			Foreground(gray).
			Bold(true).
			Render
)
