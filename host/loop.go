package host

import (
	"context"
	"log/slog"
	"time"
)

const (
	// DefaultFrameInterval approximates a 60Hz display.
	DefaultFrameInterval = 16 * time.Millisecond

	// DefaultMaxFrames bounds RunUntilIdle.
	DefaultMaxFrames = 1000

	postBuffer = 256
)

// Loop is a single-goroutine scheduler with a task queue and a frame queue.
// Only Post may be called from other goroutines.
type Loop struct {
	tasks  []func()
	frames []func()
	posted chan func()

	interval  time.Duration
	maxFrames int
	frame     uint64
	logger    *slog.Logger
}

// LoopOption configures a Loop.
type LoopOption func(*Loop)

// WithFrameInterval sets the period between frames in Run.
func WithFrameInterval(d time.Duration) LoopOption {
	return func(l *Loop) {
		if d > 0 {
			l.interval = d
		}
	}
}

// WithMaxFrames bounds the number of frames a single RunUntilIdle may run.
func WithMaxFrames(n int) LoopOption {
	return func(l *Loop) {
		if n > 0 {
			l.maxFrames = n
		}
	}
}

// WithLoopLogger sets the loop logger.
func WithLoopLogger(logger *slog.Logger) LoopOption {
	return func(l *Loop) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// NewLoop creates an idle loop.
func NewLoop(opts ...LoopOption) *Loop {
	l := &Loop{
		posted:    make(chan func(), postBuffer),
		interval:  DefaultFrameInterval,
		maxFrames: DefaultMaxFrames,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// SetTimeout queues fn to run as a task after the ones already queued.
func (l *Loop) SetTimeout(fn func()) {
	l.tasks = append(l.tasks, fn)
}

// RequestFrame queues fn for the next frame.
func (l *Loop) RequestFrame(fn func()) {
	l.frames = append(l.frames, fn)
}

// Post hands fn to the loop goroutine. It is the only method safe to call
// from other goroutines.
func (l *Loop) Post(fn func()) {
	l.posted <- fn
}

// Frame returns the number of frames run so far.
func (l *Loop) Frame() uint64 {
	return l.frame
}

// Idle reports whether no task or frame callback is queued.
func (l *Loop) Idle() bool {
	return len(l.tasks) == 0 && len(l.frames) == 0 && len(l.posted) == 0
}

// RunTasks runs queued tasks, including tasks they queue, until none remain.
func (l *Loop) RunTasks() int {
	n := 0
	for len(l.tasks) > 0 {
		fn := l.tasks[0]
		l.tasks[0] = nil
		l.tasks = l.tasks[1:]
		fn()
		n++
	}
	return n
}

// RunFrame runs the callbacks queued for this frame. Callbacks requested
// while it runs are left for the next frame.
func (l *Loop) RunFrame() int {
	fns := l.frames
	l.frames = nil
	l.frame++
	for _, fn := range fns {
		fn()
	}
	return len(fns)
}

// RunUntilIdle alternates tasks and frames until both queues are empty.
func (l *Loop) RunUntilIdle() error {
	frames := 0
	for {
		l.drainPosted()
		if len(l.tasks) > 0 {
			l.RunTasks()
			continue
		}
		if len(l.frames) == 0 {
			return nil
		}
		if frames >= l.maxFrames {
			return ErrFrameLimit
		}
		l.RunFrame()
		frames++
	}
}

// Run drives the loop until ctx is done: posted work and tasks run as they
// arrive, frames run on every tick of the frame interval.
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	l.logger.Debug("Event loop started", "frame_interval", l.interval)
	for {
		select {
		case <-ctx.Done():
			l.logger.Debug("Event loop stopped", "frames", l.frame)
			return ctx.Err()
		case fn := <-l.posted:
			fn()
			l.RunTasks()
		case <-ticker.C:
			l.RunTasks()
			if len(l.frames) > 0 {
				l.RunFrame()
			}
		}
	}
}

func (l *Loop) drainPosted() {
	for {
		select {
		case fn := <-l.posted:
			fn()
		default:
			return
		}
	}
}
