package studio

import (
	"fmt"
	"time"

	"github.com/dgnsrekt/koko/internal/artifact"
	"github.com/dgnsrekt/koko/internal/job"
	"github.com/dustin/go-humanize"
)

// Event describes an applied job result for the status line.
type Event struct {
	Class    job.Class
	Request  job.Request
	Artifact artifact.Artifact
	Elapsed  time.Duration
	Err      error

	// Stale marks a result that no longer matched the running job.
	Stale bool

	// Played is set when a finished preview started playing.
	Played bool

	// PlayErr is why a finished preview could not be played.
	PlayErr error
}

// OK reports whether the job succeeded.
func (e Event) OK() bool {
	return e.Err == nil && !e.Stale
}

// String renders the event as a one-line status message.
func (e Event) String() string {
	elapsed := e.Elapsed.Round(100 * time.Millisecond)
	switch {
	case e.Stale:
		return ""
	case e.Err != nil && e.Class == job.Preview:
		return fmt.Sprintf("Preview of %s failed: %v", e.Request.Voice, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("Generation failed: %v", e.Err)
	case e.Class == job.Preview && e.PlayErr != nil:
		return fmt.Sprintf("Preview of %s ready, but could not play: %v", e.Request.Voice, e.PlayErr)
	case e.Class == job.Preview:
		return fmt.Sprintf("Preview of %s ready in %s", e.Request.Voice, elapsed)
	default:
		return fmt.Sprintf("Generated %s (%s, %s) in %s",
			e.Artifact.Name(),
			e.Artifact.Duration.Round(100*time.Millisecond),
			humanize.Bytes(uint64(e.Artifact.Size)),
			elapsed)
	}
}
