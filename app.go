package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/koko/internal/artifact"
	"github.com/dgnsrekt/koko/internal/audio"
	"github.com/dgnsrekt/koko/internal/engine"
	"github.com/dgnsrekt/koko/internal/playback"
	"github.com/dgnsrekt/koko/internal/stats"
	"github.com/dgnsrekt/koko/internal/studio"
	"github.com/dgnsrekt/koko/internal/synth"
	"github.com/dgnsrekt/koko/internal/voices"
	"github.com/dgnsrekt/koko/utils"
	"github.com/spf13/viper"
)

const (
	minSpeed = studio.MinSpeed
	maxSpeed = studio.MaxSpeed
)

// envKeyReplacer maps nested keys like remote.url to KOKO_REMOTE_URL.
var envKeyReplacer = strings.NewReplacer(".", "_")

func setDefaults() {
	viper.SetDefault("style", "auto")
	viper.SetDefault("engine", engine.NameKokoro)
	viper.SetDefault("output.dir", "output")
	viper.SetDefault("kokoro.binary", engine.DefaultKokoroBinary)
	viper.SetDefault("kokoro.model", engine.DefaultModelPath)
	viper.SetDefault("kokoro.voices", engine.DefaultVoicesPath)
	viper.SetDefault("remote.url", engine.DefaultRemoteURL)
	viper.SetDefault("remote.timeout", engine.DefaultRemoteTimeout)
	viper.SetDefault("remote.requests_per_minute", engine.DefaultRequestsPerMinute)
	viper.SetDefault("voices.default", "af_heart")
	viper.SetDefault("speed", studio.DefaultSpeed)
	viper.SetDefault("playback.poll_interval", playback.DefaultPollInterval)
	viper.SetDefault("playback.volume", 1.0)
	viper.SetDefault("playback.sample_rate", audio.DefaultSampleRate)
	viper.SetDefault("stats.chars_per_minute", stats.BaseCharsPerMinute)
	viper.SetDefault("stats.generation_factor", stats.GenerationRateFactor)
}

func engineConfig() engine.Config {
	return engine.Config{
		Name: viper.GetString("engine"),
		Kokoro: engine.KokoroConfig{
			Binary:     utils.ExpandPath(viper.GetString("kokoro.binary")),
			ModelPath:  utils.ExpandPath(viper.GetString("kokoro.model")),
			VoicesPath: utils.ExpandPath(viper.GetString("kokoro.voices")),
		},
		Remote: engine.RemoteConfig{
			URL:               viper.GetString("remote.url"),
			Timeout:           viper.GetDuration("remote.timeout"),
			RequestsPerMinute: viper.GetInt("remote.requests_per_minute"),
		},
	}
}

func loadCatalog() (*voices.Catalog, error) {
	path := viper.GetString("voices.catalog")
	if path == "" {
		return voices.Default()
	}
	c, err := voices.Load(utils.ExpandPath(path))
	if err != nil {
		return nil, fmt.Errorf("unable to load voice catalog: %w", err)
	}
	return c, nil
}

func estimator() stats.Estimator {
	return stats.New(
		viper.GetFloat64("stats.chars_per_minute"),
		viper.GetFloat64("stats.generation_factor"),
	)
}

// newStudio wires a Studio from the current configuration. An engine that
// fails to start is not an error here; the studio reports it as unavailable.
func newStudio() (*studio.Studio, error) {
	catalog, err := loadCatalog()
	if err != nil {
		return nil, err
	}

	player, err := audio.NewPlayer(audio.PlayerConfig{
		SampleRate: viper.GetInt("playback.sample_rate"),
		Volume:     viper.GetFloat64("playback.volume"),
	})
	if err != nil {
		return nil, fmt.Errorf("unable to set up audio: %w", err)
	}

	gw := synth.Open(engineConfig())
	if err := gw.Err(); err != nil {
		log.Warn("speech engine unavailable", "engine", viper.GetString("engine"), "error", err)
	} else {
		log.Debug("speech engine ready", "engine", gw.Info().Name)
	}

	store := artifact.NewStore(utils.ExpandPath(viper.GetString("output.dir")))
	log.Debug("artifact store", "generations", store.GenerationDir(), "previews", store.PreviewDir())

	return studio.New(studio.Config{
		Catalog:   catalog,
		Gateway:   gw,
		Store:     store,
		Device:    player,
		Estimator: estimator(),
	}), nil
}

func joinArgs(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}
