// Package playback governs play and stop of audio artifacts and detects
// natural completion by polling the device.
package playback

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/koko/internal/artifact"
)

// DefaultPollInterval is how often the interactive loop checks whether the
// device finished playing.
const DefaultPollInterval = 100 * time.Millisecond

var (
	// ErrNoArtifact is returned when there is nothing playable to play.
	ErrNoArtifact = errors.New("no audio to play")

	// ErrAlreadyPlaying is returned by Play while a session is active.
	ErrAlreadyPlaying = errors.New("already playing")

	// ErrNotPlaying is returned by Stop while nothing plays.
	ErrNotPlaying = errors.New("not playing")
)

// Device is an audio output that plays one file at a time.
type Device interface {
	// Load prepares the file at path for playback.
	Load(path string) error

	// Play starts playing the loaded file.
	Play() error

	// Stop halts playback.
	Stop() error

	// IsBusy reports whether audio is still coming out.
	IsBusy() bool
}

// State is the playback state.
type State int

const (
	Stopped State = iota
	Playing
)

func (s State) String() string {
	if s == Playing {
		return "playing"
	}
	return "stopped"
}

// Controller is the single playback session of the process. It is driven
// from the interactive loop and is not safe for concurrent use.
type Controller struct {
	device   Device
	state    State
	artifact artifact.Artifact
	session  uint64
	started  time.Time
}

// NewController wraps device.
func NewController(device Device) *Controller {
	return &Controller{device: device}
}

// State returns the current state.
func (c *Controller) State() State {
	return c.state
}

// Session identifies the current playback session. It changes on every
// Play and Stop so ticks scheduled for an earlier session can be discarded.
func (c *Controller) Session() uint64 {
	return c.session
}

// Artifact returns what is playing, if anything.
func (c *Controller) Artifact() (artifact.Artifact, bool) {
	return c.artifact, c.state == Playing
}

// Elapsed returns how long the current session has been playing.
func (c *Controller) Elapsed() time.Duration {
	if c.state != Playing {
		return 0
	}
	return time.Since(c.started)
}

// CanPlay reports whether Play would be accepted for a.
func (c *Controller) CanPlay(a artifact.Artifact) bool {
	if c.state != Stopped || a.Path == "" {
		return false
	}
	_, err := os.Stat(a.Path)
	return err == nil
}

// CanStop reports whether Stop would be accepted.
func (c *Controller) CanStop() bool {
	return c.state == Playing
}

// Play starts playing a. It is a no-op returning ErrAlreadyPlaying while a
// session is active.
func (c *Controller) Play(a artifact.Artifact) error {
	if c.state == Playing {
		return ErrAlreadyPlaying
	}
	if a.Path == "" {
		return ErrNoArtifact
	}
	if _, err := os.Stat(a.Path); err != nil {
		return fmt.Errorf("%w: %w", ErrNoArtifact, err)
	}

	if err := c.device.Load(a.Path); err != nil {
		return fmt.Errorf("load %s: %w", a.Name(), err)
	}
	if err := c.device.Play(); err != nil {
		return fmt.Errorf("play %s: %w", a.Name(), err)
	}

	c.session++
	c.state = Playing
	c.artifact = a
	c.started = time.Now()
	log.Debug("playback started", "path", a.Path, "session", c.session)
	return nil
}

// Stop halts playback. It is a no-op returning ErrNotPlaying while stopped.
func (c *Controller) Stop() error {
	if c.state != Playing {
		return ErrNotPlaying
	}
	err := c.device.Stop()
	c.finish()
	log.Debug("playback stopped", "session", c.session)
	if err != nil {
		return fmt.Errorf("stop playback: %w", err)
	}
	return nil
}

// Tick checks the device and reports whether playback just finished on its
// own. Ticks while stopped are ignored.
func (c *Controller) Tick() bool {
	if c.state != Playing {
		return false
	}
	if c.device.IsBusy() {
		return false
	}
	log.Debug("playback finished", "path", c.artifact.Path, "elapsed", time.Since(c.started))
	c.finish()
	return true
}

// TickSession is Tick for a tick scheduled during session. Ticks from an
// earlier session are ignored.
func (c *Controller) TickSession(session uint64) bool {
	if session != c.session {
		return false
	}
	return c.Tick()
}

func (c *Controller) finish() {
	c.state = Stopped
	c.artifact = artifact.Artifact{}
	c.session++
}
