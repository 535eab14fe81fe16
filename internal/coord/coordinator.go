package coord

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// State is the lifecycle position of a Coordinator.
type State int

const (
	Idle State = iota
	Building
	Succeeded
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Building:
		return "building"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// BuildFunc performs a build on the main participant.
type BuildFunc func(ctx context.Context, buildID string) error

// FreshFunc reports whether a build can be skipped. It is only called on
// the main participant.
type FreshFunc func(ctx context.Context) bool

// Coordinator runs one guarded build. A Coordinator is single use: it
// moves from Idle to Building to Succeeded or Failed.
type Coordinator struct {
	comm   Comm
	ids    IDGenerator
	logger *slog.Logger

	mu    sync.Mutex
	state State
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger. The default discards.
func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) {
		c.logger = l
	}
}

// WithIDGenerator sets the build id source.
func WithIDGenerator(g IDGenerator) Option {
	return func(c *Coordinator) {
		c.ids = g
	}
}

// New creates a coordinator over comm. A nil comm means Solo.
func New(comm Comm, opts ...Option) *Coordinator {
	if comm == nil {
		comm = Solo{}
	}
	c := &Coordinator{
		comm:   comm,
		ids:    UUIDv7Generator{},
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Comm returns the communicator.
func (c *Coordinator) Comm() Comm { return c.comm }

// IsMain reports whether this participant performs builds.
func (c *Coordinator) IsMain() bool { return IsMain(c.comm) }

// State returns the current state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Coordinator) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// Run performs fn on the main participant and shares its outcome.
//
// Every participant of the job must call Run. The main participant runs
// fn and broadcasts the outcome; the others block until it arrives or
// ctx is done. All participants return nil when fn succeeded and a
// *BuildError when it failed. A job of one calls fn directly.
func (c *Coordinator) Run(ctx context.Context, fn BuildFunc) error {
	_, err := c.RunUnlessFresh(ctx, nil, fn)
	return err
}

// RunUnlessFresh is Run guarded by fresh. The main participant evaluates
// fresh and broadcasts the answer before building, so every participant
// either skips the build or takes part in it. It reports whether fn ran.
// A nil fresh always builds.
func (c *Coordinator) RunUnlessFresh(ctx context.Context, fresh FreshFunc, fn BuildFunc) (bool, error) {
	c.mu.Lock()
	if c.state != Idle {
		c.mu.Unlock()
		return false, ErrNotIdle
	}
	c.state = Building
	c.mu.Unlock()

	skip, err := c.decide(ctx, fresh)
	if err != nil {
		c.setState(Failed)
		return false, err
	}
	if skip {
		c.setState(Succeeded)
		return false, nil
	}

	if err := c.run(ctx, fn); err != nil {
		c.setState(Failed)
		return true, err
	}
	c.setState(Succeeded)
	return true, nil
}

func (c *Coordinator) decide(ctx context.Context, fresh FreshFunc) (bool, error) {
	if fresh == nil {
		return false, nil
	}
	if c.comm.Size() <= 1 {
		return fresh(ctx), nil
	}

	var msg Outcome
	if c.IsMain() {
		msg = Outcome{OK: true, Fresh: fresh(ctx)}
	}
	out, err := c.comm.Broadcast(ctx, msg)
	if err != nil {
		return false, fmt.Errorf("coord: share freshness: %w", err)
	}
	return out.Fresh, nil
}

func (c *Coordinator) run(ctx context.Context, fn BuildFunc) error {
	if c.comm.Size() <= 1 {
		id := c.ids.Generate()
		if err := call(ctx, fn, id); err != nil {
			return &BuildError{BuildID: id, Message: err.Error(), Err: err}
		}
		return nil
	}

	if !c.IsMain() {
		c.logger.Debug("waiting for main participant build",
			"rank", c.comm.Rank(),
			"size", c.comm.Size())
		out, err := c.comm.Broadcast(ctx, Outcome{})
		if err != nil {
			return fmt.Errorf("coord: wait for build outcome: %w", err)
		}
		if !out.OK {
			return &BuildError{BuildID: out.BuildID, Message: out.Message}
		}
		return nil
	}

	id := c.ids.Generate()
	c.logger.Info("build started", "build_id", id, "size", c.comm.Size())

	buildErr := call(ctx, fn, id)
	out := Outcome{OK: buildErr == nil, BuildID: id}
	if buildErr != nil {
		out.Message = buildErr.Error()
		c.logger.Error("build failed", "build_id", id, "error", buildErr)
	}

	if _, err := c.comm.Broadcast(ctx, out); err != nil {
		return fmt.Errorf("coord: broadcast build outcome: %w", err)
	}
	if buildErr != nil {
		return &BuildError{BuildID: id, Message: out.Message, Err: buildErr}
	}
	c.logger.Info("build finished", "build_id", id)
	return nil
}

// call runs fn, turning a panic into an error so followers are never
// left waiting for an outcome.
func call(ctx context.Context, fn BuildFunc, id string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("build panicked: %v", r)
		}
	}()
	return fn(ctx, id)
}
