// Package stats estimates how long a text takes to narrate and to generate.
package stats

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"
)

const (
	// BaseCharsPerMinute is the calibrated narration rate at speed 1.0.
	BaseCharsPerMinute = 1200.0

	// GenerationRateFactor is the ratio of synthesis time to narration time.
	GenerationRateFactor = 0.2
)

// Snapshot is a single estimate for a text at a given speed.
type Snapshot struct {
	Characters        int
	NarrationSeconds  float64
	GenerationSeconds float64
}

// Estimator computes snapshots from calibration constants.
type Estimator struct {
	CharsPerMinute   float64
	GenerationFactor float64
}

// New returns an estimator with the default calibration. Non-positive values
// fall back to the defaults.
func New(charsPerMinute, generationFactor float64) Estimator {
	if charsPerMinute <= 0 {
		charsPerMinute = BaseCharsPerMinute
	}
	if generationFactor <= 0 {
		generationFactor = GenerationRateFactor
	}
	return Estimator{
		CharsPerMinute:   charsPerMinute,
		GenerationFactor: generationFactor,
	}
}

// Default returns an estimator using BaseCharsPerMinute and GenerationRateFactor.
func Default() Estimator {
	return New(BaseCharsPerMinute, GenerationRateFactor)
}

// Estimate returns the snapshot for text read at speed. Characters are counted
// as code points of the trimmed text; a non-positive speed counts as 1.
func (e Estimator) Estimate(text string, speed float64) Snapshot {
	chars := utf8.RuneCountInString(strings.TrimSpace(text))
	if chars == 0 {
		return Snapshot{}
	}
	if speed <= 0 {
		speed = 1
	}
	cpm := e.CharsPerMinute
	if cpm <= 0 {
		cpm = BaseCharsPerMinute
	}

	narration := float64(chars) / cpm / speed * 60
	return Snapshot{
		Characters:        chars,
		NarrationSeconds:  narration,
		GenerationSeconds: narration * e.GenerationFactor,
	}
}

// Narration formats the narration estimate.
func (s Snapshot) Narration() string {
	return FormatDuration(s.NarrationSeconds)
}

// Generation formats the generation estimate.
func (s Snapshot) Generation() string {
	return FormatDuration(s.GenerationSeconds)
}

// FormatDuration renders seconds as "Ns" under a minute, "M:SS" under an
// hour and "H:MM:SS" otherwise, rounding to the nearest second.
func FormatDuration(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	total := int(math.Round(seconds))
	switch {
	case total < 60:
		return fmt.Sprintf("%ds", total)
	case total < 3600:
		return fmt.Sprintf("%d:%02d", total/60, total%60)
	default:
		return fmt.Sprintf("%d:%02d:%02d", total/3600, (total%3600)/60, total%60)
	}
}
