package artifact

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/charmbracelet/log"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MaxPrefixRunes bounds the text-derived part of a suggested file name.
const MaxPrefixRunes = 30

// Export copies src to dest byte for byte. An empty dest means the user
// cancelled and nothing happens.
func Export(src, dest string) error {
	if dest == "" {
		return nil
	}
	if src == "" {
		return fmt.Errorf("%w: no source file", ErrWriteFailure)
	}

	absSrc, _ := filepath.Abs(src)
	absDest, _ := filepath.Abs(dest)
	if absSrc == absDest {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailure, err)
	}
	defer in.Close()

	if dir := filepath.Dir(dest); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("%w: %w", ErrWriteFailure, err)
		}
	}

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailure, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dest)
		return fmt.Errorf("%w: %w", ErrWriteFailure, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(dest)
		return fmt.Errorf("%w: %w", ErrWriteFailure, err)
	}

	// Keep the modification time like a "save as" copy would.
	if info, err := in.Stat(); err == nil {
		_ = os.Chtimes(dest, info.ModTime(), info.ModTime())
	}

	log.Info("exported audio", "src", src, "dest", dest)
	return nil
}

// SuggestFilename builds a default export name from the start of the text,
// the voice's short name and a timestamp, e.g.
// "Hello_world_Heart_20250101_120000.wav".
func SuggestFilename(text, shortName string, now time.Time) string {
	parts := make([]string, 0, 3)
	if prefix := sanitize(text, MaxPrefixRunes); prefix != "" {
		parts = append(parts, prefix)
	} else {
		parts = append(parts, "speech")
	}
	if voice := sanitize(shortName, MaxPrefixRunes); voice != "" {
		parts = append(parts, voice)
	}
	parts = append(parts, now.Format("20060102_150405"))
	return strings.Join(parts, "_") + extension
}

var foldDiacritics = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// sanitize folds diacritics, keeps letters, digits, spaces, hyphens and
// underscores, truncates to max runes and turns spaces into underscores.
func sanitize(s string, max int) string {
	folded, _, err := transform.String(foldDiacritics, s)
	if err != nil {
		folded = s
	}

	var b strings.Builder
	n := 0
	lastSpace := false
	for _, r := range folded {
		if n >= max {
			break
		}
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_':
			b.WriteRune(r)
			lastSpace = false
		case unicode.IsSpace(r):
			if lastSpace || b.Len() == 0 {
				continue
			}
			b.WriteRune('_')
			lastSpace = true
		default:
			continue
		}
		n++
	}
	return strings.Trim(b.String(), "_")
}
