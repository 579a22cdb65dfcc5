// Package main provides the entry point for the koko CLI application.
package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/koko/internal/artifact"
	"github.com/dgnsrekt/koko/ui"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"
)

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	configFile string
	mouse      bool

	rootCmd = &cobra.Command{
		Use:   "koko [TEXT]",
		Short: "A terminal studio for Kokoro text-to-speech",
		Long: paragraph(
			fmt.Sprintf("\nType text, pick one of Kokoro's voices and %s, right in the terminal.", keyword("listen to it")),
		),
		SilenceErrors:    false,
		SilenceUsage:     true,
		TraverseChildren: true,
		Args:             cobra.ArbitraryArgs,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return validateOptions(cmd)
		},
		RunE: execute,
	}
)

func validateOptions(cmd *cobra.Command) error {
	if cmd.Flags().Changed("config") {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("unable to read config file %s: %w", configFile, err)
		}
	}

	setLogLevel(viper.GetBool("debug"), cmd.HasParent(), cmd.ErrOrStderr())
	mouse = viper.GetBool("mouse")

	speed := viper.GetFloat64("speed")
	if speed < minSpeed || speed > maxSpeed {
		return fmt.Errorf("speed must be between %.1f and %.1f, got %.2f", minSpeed, maxSpeed, speed)
	}
	if v := viper.GetFloat64("playback.volume"); v < 0 || v > 1 {
		return fmt.Errorf("playback volume must be between 0.0 and 1.0, got %.2f", v)
	}
	if viper.GetDuration("playback.poll_interval") <= 0 {
		return errors.New("playback poll_interval must be positive")
	}
	if viper.GetFloat64("stats.chars_per_minute") <= 0 {
		return errors.New("stats chars_per_minute must be positive")
	}
	return nil
}

func execute(_ *cobra.Command, args []string) error {
	if !term.IsTerminal(int(os.Stdout.Fd())) || !term.IsTerminal(int(os.Stdin.Fd())) {
		return errors.New("koko needs a terminal; use `koko generate` for scripts")
	}

	text := ""
	if len(args) > 0 {
		text = joinArgs(args)
	}
	return runTUI(text)
}

func runTUI(text string) error {
	// Read environment to get debugging stuff
	cfg, err := env.ParseAs[ui.Config]()
	if err != nil {
		return fmt.Errorf("error parsing config: %v", err)
	}
	if cfg.GlamourStyle == "" {
		cfg.GlamourStyle = viper.GetString("style")
	}

	cfg.EnableMouse = mouse
	cfg.Text = text
	cfg.Voice = viper.GetString("voices.default")
	cfg.Speed = viper.GetFloat64("speed")
	cfg.PollInterval = viper.GetDuration("playback.poll_interval")

	st, err := newStudio()
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.Warn("closing engine", "error", err)
		}
	}()

	watcher, err := artifact.Watch(st.Store().PreviewDir())
	if err != nil {
		log.Warn("preview watcher disabled", "error", err)
		watcher = nil
	} else {
		defer watcher.Close() //nolint:errcheck
	}

	// Run Bubble Tea program
	if _, err := ui.NewProgram(cfg, st, watcher).Run(); err != nil {
		return fmt.Errorf("unable to run tui program: %w", err)
	}
	return nil
}

func main() {
	closer, err := setupLog()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	if err := rootCmd.Execute(); err != nil {
		_ = closer()
		os.Exit(1)
	}
	_ = closer()
}

func init() {
	tryLoadConfigFromDefaultPlaces()
	if len(CommitSHA) >= 7 {
		vt := rootCmd.VersionTemplate()
		rootCmd.SetVersionTemplate(vt[:len(vt)-1] + " (" + CommitSHA[0:7] + ")\n")
	}
	if Version == "" {
		Version = "unknown (built from source)"
	}
	rootCmd.Version = Version
	rootCmd.InitDefaultCompletionCmd()

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", configFile, "config file")
	flags.String("engine", "kokoro", "speech engine: kokoro, remote or mock")
	flags.StringP("output", "o", "output", "directory generated audio is written to")
	flags.Float64P("speed", "s", 1.0, "speaking speed (0.5 to 2.0)")
	flags.String("voice", "af_heart", "voice id, see `koko voices`")
	flags.Bool("debug", false, "log debug messages")
	rootCmd.Flags().BoolVarP(&mouse, "mouse", "m", false, "enable mouse support")
	_ = rootCmd.Flags().MarkHidden("mouse")

	// Config bindings
	_ = viper.BindPFlag("engine", flags.Lookup("engine"))
	_ = viper.BindPFlag("output.dir", flags.Lookup("output"))
	_ = viper.BindPFlag("speed", flags.Lookup("speed"))
	_ = viper.BindPFlag("voices.default", flags.Lookup("voice"))
	_ = viper.BindPFlag("debug", flags.Lookup("debug"))
	_ = viper.BindPFlag("mouse", rootCmd.Flags().Lookup("mouse"))

	setDefaults()

	rootCmd.AddCommand(configCmd, manCmd, generateCmd, voicesCmd, estimateCmd, doctorCmd)
}

func tryLoadConfigFromDefaultPlaces() {
	scope := gap.NewScope(gap.User, "koko")
	dirs, err := scope.ConfigDirs()
	if err != nil {
		fmt.Println("Could not load find configuration directory.")
		os.Exit(1)
	}

	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append([]string{filepath.Join(c, "koko")}, dirs...)
	}

	if c := os.Getenv("KOKO_CONFIG_HOME"); c != "" {
		dirs = append([]string{c}, dirs...)
	}

	for _, v := range dirs {
		viper.AddConfigPath(v)
	}

	viper.SetConfigName("koko")
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix("koko")
	viper.SetEnvKeyReplacer(envKeyReplacer)
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Warn("Could not parse configuration file", "err", err)
		}
	}

	if used := viper.ConfigFileUsed(); used != "" {
		log.Debug("Using configuration file", "path", used)
		configFile = used
		return
	}

	configFile = filepath.Join(dirs[0], "koko.yml")
	if err := ensureConfigFile(); err != nil {
		log.Error("Could not create default configuration", "error", err)
	}
}
