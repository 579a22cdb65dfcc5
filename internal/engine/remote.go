package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/koko/internal/wav"
	"golang.org/x/time/rate"
)

// Remote defaults.
const (
	DefaultRemoteURL         = "http://localhost:8880"
	DefaultRemoteTimeout     = 60 * time.Second
	DefaultRequestsPerMinute = 60
)

// RemoteConfig configures the Kokoro-FastAPI HTTP engine.
type RemoteConfig struct {
	// URL is the service base URL, without the /v1 suffix.
	URL string

	// Timeout bounds each HTTP request.
	Timeout time.Duration

	// RequestsPerMinute limits the request rate.
	RequestsPerMinute int

	// Client overrides the HTTP client, mainly for tests.
	Client *http.Client
}

// Remote talks to a Kokoro-FastAPI compatible server.
type Remote struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
}

type speechRequest struct {
	Model  string  `json:"model"`
	Input  string  `json:"input"`
	Voice  string  `json:"voice"`
	Format string  `json:"response_format"`
	Speed  float64 `json:"speed,omitempty"`
	Stream bool    `json:"stream"`
}

type voicesResponse struct {
	Voices []string `json:"voices"`
}

// NewRemote creates a remote engine, filling in defaults.
func NewRemote(cfg RemoteConfig) (*Remote, error) {
	if cfg.URL == "" {
		cfg.URL = DefaultRemoteURL
	}
	if !strings.HasPrefix(cfg.URL, "http://") && !strings.HasPrefix(cfg.URL, "https://") {
		return nil, fmt.Errorf("remote URL must be http or https, got %q", cfg.URL)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultRemoteTimeout
	}
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = DefaultRequestsPerMinute
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}

	return &Remote{
		baseURL: strings.TrimSuffix(strings.TrimSuffix(cfg.URL, "/"), "/v1"),
		client:  client,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1),
	}, nil
}

// Synthesize posts text to /v1/audio/speech and decodes the WAV response.
func (r *Remote) Synthesize(ctx context.Context, text, voice string, speed float64) (Audio, error) {
	if strings.TrimSpace(text) == "" {
		return Audio{}, errors.New("text cannot be empty")
	}

	if err := r.limiter.Wait(ctx); err != nil {
		return Audio{}, fmt.Errorf("rate limit wait cancelled: %w", err)
	}

	body, err := json.Marshal(speechRequest{
		Model:  "kokoro",
		Input:  text,
		Voice:  voice,
		Format: "wav",
		Speed:  speed,
	})
	if err != nil {
		return Audio{}, fmt.Errorf("marshal speech request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/v1/audio/speech", bytes.NewReader(body))
	if err != nil {
		return Audio{}, fmt.Errorf("create speech request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/wav")

	start := time.Now()
	resp, err := r.client.Do(req)
	if err != nil {
		return Audio{}, fmt.Errorf("speech request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return Audio{}, fmt.Errorf("speech request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	samples, h, err := wav.Decode(resp.Body)
	if err != nil {
		return Audio{}, fmt.Errorf("decode speech response: %w", err)
	}
	log.Debug("remote synthesis done", "voice", voice, "chars", len(text), "elapsed", time.Since(start))

	return Audio{
		Samples:    samples,
		SampleRate: h.SampleRate,
		Channels:   h.Channels,
	}, nil
}

// Info returns engine capabilities.
func (r *Remote) Info() Info {
	return Info{
		Name:       NameRemote,
		SampleRate: KokoroSampleRate,
		Channels:   1,
		Online:     true,
	}
}

// Validate checks that the service answers the voices endpoint.
func (r *Remote) Validate() error {
	_, err := r.Voices(context.Background())
	return err
}

// Voices lists the voice ids the service offers.
func (r *Remote) Voices(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/v1/audio/voices", nil)
	if err != nil {
		return nil, fmt.Errorf("create voices request: %w", err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("kokoro service unreachable at %s: %w", r.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("kokoro service returned status %d", resp.StatusCode)
	}

	var v voicesResponse
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		return nil, fmt.Errorf("decode voices response: %w", err)
	}
	return v.Voices, nil
}

// Close releases idle connections.
func (r *Remote) Close() error {
	r.client.CloseIdleConnections()
	return nil
}

var _ Engine = (*Remote)(nil)
