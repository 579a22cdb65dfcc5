package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/charmbracelet/x/editor"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const defaultConfig = `# speech engine: kokoro, remote or mock
engine: "kokoro"
# log debug messages to the koko log file
debug: false
# glamour style for the help screen: name or JSON path (default "auto")
style: "auto"
# mouse support (TUI-mode only)
mouse: false
# starting speed (0.5 to 2.0)
speed: 1.0

output:
  # generations go to <dir>/audio_output, voice previews to <dir>/voice_previews
  dir: "output"

# kokoro-tts command line engine
kokoro:
  binary: "kokoro-tts"
  model: "models/kokoro-v1.0.onnx"
  voices: "models/voices-v1.0.bin"

# Kokoro-FastAPI compatible server
remote:
  url: "http://localhost:8880"
  timeout: "60s"
  requests_per_minute: 60

voices:
  # voice selected at startup
  default: "af_heart"
  # YAML catalog replacing the built-in voice list
  # catalog: "~/.config/koko/voices.yml"

playback:
  # how often playback completion is checked
  poll_interval: "100ms"
  volume: 1.0
  sample_rate: 24000

# narration and generation time estimates
stats:
  chars_per_minute: 1200
  generation_factor: 0.2
`

var configCmd = &cobra.Command{
	Use:     "config",
	Hidden:  false,
	Short:   "Edit the koko config file",
	Long:    paragraph(fmt.Sprintf("\n%s the koko config file. We’ll use EDITOR to determine which editor to use. If the config file doesn't exist, it will be created.", keyword("Edit"))),
	Example: paragraph("koko config\nkoko config --config path/to/koko.yml"),
	Args:    cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		if err := ensureConfigFile(); err != nil {
			return err
		}

		c, err := editor.Cmd("Koko", configFile)
		if err != nil {
			return fmt.Errorf("unable to set config file: %w", err)
		}
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
		if err := c.Run(); err != nil {
			return fmt.Errorf("unable to run command: %w", err)
		}

		fmt.Println("Wrote config file to:", configFile)
		return nil
	},
}

func ensureConfigFile() error {
	if configFile == "" {
		configFile = viper.GetViper().ConfigFileUsed()
		if err := os.MkdirAll(filepath.Dir(configFile), 0o755); err != nil { //nolint:gosec
			return fmt.Errorf("could not write configuration file: %w", err)
		}
	}

	if ext := path.Ext(configFile); ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("'%s' is not a supported configuration type: use '%s' or '%s'", ext, ".yaml", ".yml")
	}

	if _, err := os.Stat(configFile); errors.Is(err, fs.ErrNotExist) {
		// File doesn't exist yet, create all necessary directories and
		// write the default config file
		if err := os.MkdirAll(filepath.Dir(configFile), 0o700); err != nil {
			return fmt.Errorf("unable create directory: %w", err)
		}

		f, err := os.Create(configFile)
		if err != nil {
			return fmt.Errorf("unable to create config file: %w", err)
		}
		defer func() { _ = f.Close() }()

		if _, err := f.WriteString(defaultConfig); err != nil {
			return fmt.Errorf("unable to write config file: %w", err)
		}
	} else if err != nil { // some other error occurred
		return fmt.Errorf("unable to stat config file: %w", err)
	}
	return nil
}
