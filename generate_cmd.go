package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/koko/internal/job"
	"github.com/dgnsrekt/koko/internal/playback"
	"github.com/dgnsrekt/koko/internal/studio"
	"github.com/dgnsrekt/koko/internal/textinput"
	"github.com/dgnsrekt/koko/utils"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type generateOptions struct {
	file     string
	out      string
	play     bool
	markdown bool
}

var genOpts generateOptions

var generateCmd = &cobra.Command{
	Use:     "generate [TEXT|-]",
	Aliases: []string{"gen", "say"},
	Short:   "Generate speech without the TUI",
	Long: paragraph(fmt.Sprintf("\n%s text to a WAV file in the output directory. "+
		"Text comes from the arguments, from a file with --file, or from stdin when the only argument is -.",
		keyword("Speak"))),
	Example: paragraph("koko generate \"Hello there\"\n" +
		"koko generate --voice bm_george --speed 1.2 --out hello.wav \"Hello there\"\n" +
		"cat notes.md | koko generate --markdown --play -"),
	Args: cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := textinput.Read(textinput.Source{
			Args:     args,
			File:     utils.ExpandPath(genOpts.file),
			Stdin:    cmd.InOrStdin(),
			Markdown: genOpts.markdown,
		})
		if err != nil {
			return err
		}

		st, err := newStudio()
		if err != nil {
			return err
		}
		defer func() {
			if err := st.Close(); err != nil {
				log.Warn("closing engine", "error", err)
			}
		}()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		req := job.Request{
			Text:  text,
			Voice: viper.GetString("voices.default"),
			Speed: viper.GetFloat64("speed"),
		}
		return runGenerate(ctx, st, req, genOpts, viper.GetDuration("playback.poll_interval"),
			cmd.OutOrStdout(), cmd.ErrOrStderr())
	},
}

// runGenerate drives one generation through st, polling for its result the
// same way the TUI does. The artifact path is written to stdout; progress
// goes to stderr.
func runGenerate(ctx context.Context, st *studio.Studio, req job.Request, opts generateOptions, poll time.Duration, stdout, stderr io.Writer) error {
	if err := st.EngineErr(); err != nil {
		return err
	}

	snap := st.Stats(req.Text, req.Speed)
	fmt.Fprintf(stderr, "Generating %d characters with %s at %.1fx (~%s of speech)…\n",
		snap.Characters, req.Voice, req.Speed, snap.Narration())

	if _, err := st.Generate(req); err != nil {
		return err
	}
	ev, err := st.Await(ctx, job.Generation, poll)
	if err != nil {
		return fmt.Errorf("waiting for generation: %w", err)
	}
	if ev.Err != nil {
		return ev.Err
	}
	fmt.Fprintln(stderr, ev.String())
	fmt.Fprintln(stdout, ev.Artifact.Path)

	if opts.out != "" {
		dest, err := filepath.Abs(utils.ExpandPath(opts.out))
		if err != nil {
			return err //nolint:wrapcheck
		}
		if err := st.Export(dest); err != nil {
			return err
		}
		fmt.Fprintf(stderr, "Saved to %s (%s)\n", dest, humanize.Bytes(uint64(ev.Artifact.Size))) //nolint:gosec
	}

	if opts.play {
		return playToEnd(ctx, st, poll, stderr)
	}
	return nil
}

// playToEnd plays the current artifact and blocks until it finishes or ctx
// is cancelled.
func playToEnd(ctx context.Context, st *studio.Studio, poll time.Duration, stderr io.Writer) error {
	if poll <= 0 {
		poll = playback.DefaultPollInterval
	}
	if err := st.Play(); err != nil {
		return err
	}
	session := st.Player().Session()
	a, _ := st.Player().Artifact()
	fmt.Fprintf(stderr, "Playing %s…\n", a.Name())

	t := time.NewTicker(poll)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			_ = st.Stop()
			fmt.Fprintln(stderr, "Stopped")
			return nil
		case <-t.C:
			if st.Tick(session) {
				return nil
			}
		}
	}
}

func init() {
	generateCmd.Flags().StringVarP(&genOpts.file, "file", "f", "", "read text from a text or Markdown file")
	generateCmd.Flags().StringVar(&genOpts.out, "out", "", "also save the audio to this path")
	generateCmd.Flags().BoolVarP(&genOpts.play, "play", "p", false, "play the audio when it is ready")
	generateCmd.Flags().BoolVar(&genOpts.markdown, "markdown", false, "strip Markdown from the text")
}
