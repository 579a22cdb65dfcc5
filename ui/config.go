package ui

import "time"

// Config contains TUI-specific configuration.
type Config struct {
	GlamourStyle string `env:"GLAMOUR_STYLE"`
	EnableMouse  bool

	// Initial form values
	Text  string
	Voice string
	Speed float64

	// PollInterval is how often playback completion is checked.
	PollInterval time.Duration

	// For debugging the UI
	GlamourEnabled bool `env:"KOKO_ENABLE_GLAMOUR" envDefault:"true"`
	AltScreen      bool `env:"KOKO_ALT_SCREEN"     envDefault:"true"`
}
