package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/dgnsrekt/koko/internal/engine"
	"github.com/dgnsrekt/koko/internal/voices"
	"github.com/dgnsrekt/koko/utils"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var errDoctor = errors.New("some checks failed")

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check that koko can generate speech",
	Long: paragraph(fmt.Sprintf("\n%s the configured engine, its model files and the voice catalog. "+
		"Nothing is downloaded; missing files are listed with where to get them.", keyword("Check"))),
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		catalog, err := loadCatalog()
		if err != nil {
			return err
		}
		d := doctor{
			w:          cmd.OutOrStdout(),
			engine:     engineConfig(),
			catalog:    catalog,
			outputDir:  utils.ExpandPath(viper.GetString("output.dir")),
			voice:      viper.GetString("voices.default"),
			configFile: viper.ConfigFileUsed(),
		}
		if n := d.run(cmd.Context()); n > 0 {
			return fmt.Errorf("%w (%d)", errDoctor, n)
		}
		return nil
	},
}

type doctor struct {
	w          io.Writer
	engine     engine.Config
	catalog    *voices.Catalog
	outputDir  string
	voice      string
	configFile string

	problems int
}

func (d *doctor) ok(format string, a ...any) {
	fmt.Fprintf(d.w, "%s %s\n", keyword("✓"), fmt.Sprintf(format, a...))
}

func (d *doctor) fail(format string, a ...any) {
	d.problems++
	fmt.Fprintf(d.w, "%s %s\n", errorStyle("✗"), fmt.Sprintf(format, a...))
}

func (d *doctor) note(format string, a ...any) {
	fmt.Fprintf(d.w, "  %s\n", subtle(fmt.Sprintf(format, a...)))
}

// run prints one line per check and returns the number of failures.
func (d *doctor) run(ctx context.Context) int {
	if d.configFile != "" {
		d.ok("config file %s", d.configFile)
	} else {
		d.note("no config file, using defaults")
	}

	switch d.engine.Name {
	case engine.NameKokoro, "":
		d.checkKokoro()
	case engine.NameRemote:
		d.checkRemote(ctx)
	case engine.NameMock:
		d.ok("mock engine (test tone, no model needed)")
	default:
		_, err := engine.New(d.engine)
		d.fail("%v", err)
	}

	d.checkCatalog()
	d.checkOutput()
	return d.problems
}

func (d *doctor) checkKokoro() {
	k := engine.NewKokoro(d.engine.Kokoro)
	binary := d.engine.Kokoro.Binary
	if binary == "" {
		binary = engine.DefaultKokoroBinary
	}
	if path, err := exec.LookPath(binary); err != nil {
		d.fail("%s not found in PATH", binary)
		d.note("install it with: pip install kokoro-tts")
	} else {
		d.ok("engine binary %s", path)
	}

	model, voicesFile := k.Files()
	d.checkFile("model", model, engine.ModelURL)
	d.checkFile("voices", voicesFile, engine.VoicesURL)
}

func (d *doctor) checkFile(label, path, url string) {
	info, err := os.Stat(path)
	switch {
	case err != nil:
		d.fail("%s file missing: %s", label, path)
		d.note("download from %s", url)
	case info.IsDir() || info.Size() == 0:
		d.fail("%s file %s is not usable", label, path)
		d.note("download from %s", url)
	default:
		d.ok("%s file %s (%s)", label, path, humanize.Bytes(uint64(info.Size()))) //nolint:gosec
	}
}

func (d *doctor) checkRemote(ctx context.Context) {
	r, err := engine.NewRemote(d.engine.Remote)
	if err != nil {
		d.fail("remote engine: %v", err)
		return
	}
	defer r.Close() //nolint:errcheck

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	ids, err := r.Voices(ctx)
	if err != nil {
		d.fail("%v", err)
		return
	}
	d.ok("kokoro service offers %d voices", len(ids))

	var missing int
	offered := make(map[string]bool, len(ids))
	for _, id := range ids {
		offered[id] = true
	}
	for _, m := range d.catalog.Filter("") {
		if !offered[m.Voice.ID] {
			missing++
		}
	}
	if missing > 0 {
		d.note("%d catalog voices are not offered by the service", missing)
	}
}

func (d *doctor) checkCatalog() {
	d.ok("%d voices in %d languages", d.catalog.Len(), len(d.catalog.Languages()))
	if _, ok := d.catalog.Voice(d.voice); !ok {
		d.fail("default voice %q is not in the catalog", d.voice)
	}
}

func (d *doctor) checkOutput() {
	if err := os.MkdirAll(d.outputDir, 0o755); err != nil { //nolint:gosec
		d.fail("output directory %s: %v", d.outputDir, err)
		return
	}
	d.ok("output directory %s", d.outputDir)
}
