package engine

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/dgnsrekt/koko/internal/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeKokoro writes a shell script standing in for kokoro-tts. It records its
// stdin and arguments and copies a prepared WAV to the requested output path.
func fakeKokoro(t *testing.T, exitCode int) (binary, stdinFile, argsFile string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script engine stand-in requires a POSIX shell")
	}

	dir := t.TempDir()
	fixture := filepath.Join(dir, "fixture.wav")
	f, err := os.Create(fixture)
	require.NoError(t, err)
	require.NoError(t, wav.Encode(f, []float32{0.1, 0.2, 0.3, 0.4}, KokoroSampleRate, 1))
	require.NoError(t, f.Close())

	stdinFile = filepath.Join(dir, "stdin.txt")
	argsFile = filepath.Join(dir, "args.txt")
	binary = filepath.Join(dir, "kokoro-tts")

	script := "#!/bin/sh\n" +
		"cat > '" + stdinFile + "'\n" +
		"echo \"$@\" > '" + argsFile + "'\n"
	if exitCode != 0 {
		script += "echo 'model exploded' >&2\nexit 3\n"
	} else {
		script += "cp '" + fixture + "' \"$2\"\n"
	}
	require.NoError(t, os.WriteFile(binary, []byte(script), 0o755))
	return binary, stdinFile, argsFile
}

func modelFiles(t *testing.T) (model, voices string) {
	t.Helper()
	dir := t.TempDir()
	model = filepath.Join(dir, "kokoro-v1.0.onnx")
	voices = filepath.Join(dir, "voices-v1.0.bin")
	require.NoError(t, os.WriteFile(model, []byte("onnx"), 0o644))
	require.NoError(t, os.WriteFile(voices, []byte("bin"), 0o644))
	return model, voices
}

func TestKokoroSynthesize(t *testing.T) {
	binary, stdinFile, argsFile := fakeKokoro(t, 0)
	model, voices := modelFiles(t)

	k := NewKokoro(KokoroConfig{Binary: binary, ModelPath: model, VoicesPath: voices, TempDir: t.TempDir()})
	require.NoError(t, k.Validate())

	audio, err := k.Synthesize(context.Background(), "Hello world", "bf_emma", 1.25)
	require.NoError(t, err)
	assert.Equal(t, KokoroSampleRate, audio.SampleRate)
	assert.Equal(t, 1, audio.Channels)
	assert.Len(t, audio.Samples, 4)

	stdin, err := os.ReadFile(stdinFile)
	require.NoError(t, err)
	assert.Equal(t, "Hello world", string(stdin))

	args, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	assert.Contains(t, string(args), "--voice bf_emma")
	assert.Contains(t, string(args), "--speed 1.25")
	assert.Contains(t, string(args), "--lang en-gb")
	assert.Contains(t, string(args), "--model "+model)
}

func TestKokoroSynthesizeFailure(t *testing.T) {
	binary, _, _ := fakeKokoro(t, 3)
	model, voices := modelFiles(t)

	k := NewKokoro(KokoroConfig{Binary: binary, ModelPath: model, VoicesPath: voices})
	_, err := k.Synthesize(context.Background(), "Hello", "af_heart", 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model exploded")
}

func TestKokoroSynthesizeEmptyText(t *testing.T) {
	k := NewKokoro(KokoroConfig{})
	_, err := k.Synthesize(context.Background(), "  ", "af_heart", 1)
	assert.Error(t, err)
}

func TestKokoroValidate(t *testing.T) {
	binary, _, _ := fakeKokoro(t, 0)
	model, voices := modelFiles(t)

	tests := []struct {
		name    string
		cfg     KokoroConfig
		wantErr string
	}{
		{"ok", KokoroConfig{Binary: binary, ModelPath: model, VoicesPath: voices}, ""},
		{"missing binary", KokoroConfig{Binary: "/no/such/kokoro-tts", ModelPath: model, VoicesPath: voices}, "not found"},
		{"missing model", KokoroConfig{Binary: binary, ModelPath: "/no/model.onnx", VoicesPath: voices}, "model.onnx"},
		{"missing voices", KokoroConfig{Binary: binary, ModelPath: model, VoicesPath: "/no/voices.bin"}, "voices.bin"},
		{"directory as model", KokoroConfig{Binary: binary, ModelPath: t.TempDir(), VoicesPath: voices}, "not a usable file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewKokoro(tt.cfg).Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestKokoroDefaults(t *testing.T) {
	k := NewKokoro(KokoroConfig{})
	model, voices := k.Files()
	assert.Equal(t, DefaultModelPath, model)
	assert.Equal(t, DefaultVoicesPath, voices)
	assert.Equal(t, NameKokoro, k.Info().Name)
	assert.Equal(t, KokoroSampleRate, k.Info().SampleRate)
}

func TestLanguageCode(t *testing.T) {
	tests := map[string]string{
		"af_heart":   "en-us",
		"am_adam":    "en-us",
		"bf_emma":    "en-gb",
		"ff_siwis":   "fr-fr",
		"im_nicola":  "it",
		"jf_alpha":   "ja",
		"zm_yunyang": "cmn",
		"xx_unknown": "",
		"":           "",
	}
	for voice, want := range tests {
		assert.Equal(t, want, languageCode(voice), voice)
	}
}
