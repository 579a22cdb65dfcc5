// Package job runs synthesis work off the interactive loop, one job per class
// at a time, and hands results back over a channel per class.
package job

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/koko/internal/artifact"
)

var (
	// ErrAlreadyRunning is returned by Submit while a job of the same class runs.
	ErrAlreadyRunning = errors.New("a job of this kind is already running")

	// ErrTaskPanicked is the result error of a task that panicked.
	ErrTaskPanicked = errors.New("job crashed")
)

// Class separates independent kinds of work. Each class has its own
// one-at-a-time guard and result channel.
type Class int

const (
	Generation Class = iota
	Preview

	numClasses
)

func (c Class) String() string {
	switch c {
	case Generation:
		return "generation"
	case Preview:
		return "preview"
	default:
		return fmt.Sprintf("class(%d)", int(c))
	}
}

// State is the lifecycle of a class.
type State int

const (
	Idle State = iota
	Running
	Complete
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Complete:
		return "complete"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Request is what a job was asked to do.
type Request struct {
	Text  string
	Voice string
	Speed float64
}

// Task does the work of a job. It runs on its own goroutine and must not
// touch interface state.
type Task func(ctx context.Context) (artifact.Artifact, error)

// Result is the immutable outcome of one job.
type Result struct {
	Class    Class
	Seq      uint64
	Request  Request
	Artifact artifact.Artifact
	Elapsed  time.Duration
	Err      error
}

// OK reports whether the job succeeded.
func (r Result) OK() bool {
	return r.Err == nil
}

type lane struct {
	state   State
	seq     uint64
	started time.Time
	results chan Result
	last    *Result
}

// Runner tracks each class's state. All methods except the workers it spawns
// run on the interactive loop, so Runner holds no locks.
type Runner struct {
	lanes [numClasses]*lane
}

// NewRunner returns a runner with every class Idle.
func NewRunner() *Runner {
	r := &Runner{}
	for i := range r.lanes {
		// One slot is enough: a class never has more than one job in flight.
		r.lanes[i] = &lane{results: make(chan Result, 1)}
	}
	return r
}

func (r *Runner) lane(c Class) *lane {
	if c < 0 || c >= numClasses {
		panic(fmt.Sprintf("job: unknown class %d", int(c)))
	}
	return r.lanes[c]
}

// Submit starts task for class unless a job of that class is running, in
// which case it returns ErrAlreadyRunning and starts nothing. The task's
// context is never cancelled.
func (r *Runner) Submit(c Class, req Request, task Task) (uint64, error) {
	l := r.lane(c)
	if l.state == Running {
		return 0, fmt.Errorf("%s: %w", c, ErrAlreadyRunning)
	}

	l.seq++
	l.state = Running
	l.started = time.Now()
	seq, started, results := l.seq, l.started, l.results

	log.Debug("job submitted", "class", c, "seq", seq, "voice", req.Voice)

	go func() {
		a, err := run(task)
		results <- Result{
			Class:    c,
			Seq:      seq,
			Request:  req,
			Artifact: a,
			Elapsed:  time.Since(started),
			Err:      err,
		}
	}()

	return seq, nil
}

// run calls task, turning a panic into an error so the result is still
// delivered and the class returns to idle.
func run(task Task) (a artifact.Artifact, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("job panicked", "panic", r)
			a, err = artifact.Artifact{}, fmt.Errorf("%w: %v", ErrTaskPanicked, r)
		}
	}()
	return task(context.Background())
}

// Results returns the channel a class's results are delivered on. The
// interactive loop passes each received result to Complete.
func (r *Runner) Results(c Class) <-chan Result {
	return r.lane(c).results
}

// Poll returns a finished result for class without blocking.
func (r *Runner) Poll(c Class) (Result, bool) {
	select {
	case res := <-r.lane(c).results:
		return res, true
	default:
		return Result{}, false
	}
}

// Complete applies a received result: the class moves to Complete or Failed
// and the result is remembered. Stale results are ignored and reported as
// not applied.
func (r *Runner) Complete(res Result) bool {
	l := r.lane(res.Class)
	if l.state != Running || res.Seq != l.seq {
		log.Warn("ignoring stale job result", "class", res.Class, "seq", res.Seq, "current", l.seq)
		return false
	}

	if res.Err != nil {
		l.state = Failed
		log.Debug("job failed", "class", res.Class, "seq", res.Seq, "elapsed", res.Elapsed, "err", res.Err)
	} else {
		l.state = Complete
		log.Debug("job finished", "class", res.Class, "seq", res.Seq, "elapsed", res.Elapsed)
	}
	last := res
	l.last = &last
	return true
}

// State returns the current state of class.
func (r *Runner) State(c Class) State {
	return r.lane(c).state
}

// Running reports whether a job of class is in flight.
func (r *Runner) Running(c Class) bool {
	return r.State(c) == Running
}

// Busy reports whether any class is running.
func (r *Runner) Busy() bool {
	for c := Class(0); c < numClasses; c++ {
		if r.Running(c) {
			return true
		}
	}
	return false
}

// Started returns when the running job of class began.
func (r *Runner) Started(c Class) time.Time {
	return r.lane(c).started
}

// Last returns the most recently completed result of class.
func (r *Runner) Last(c Class) (Result, bool) {
	l := r.lane(c)
	if l.last == nil {
		return Result{}, false
	}
	return *l.last, true
}
