package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"rtsp-overlay/internal/platform/metrics"
)

// SegmentClock reports when the transcoder last produced a segment.
type SegmentClock interface {
	LastSegmentAt() (time.Time, bool)
}

// ControllerOption customizes a Controller.
type ControllerOption func(*Controller)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) ControllerOption {
	return func(c *Controller) { c.now = now }
}

// WithSegmentClock surfaces segment activity in Status.
func WithSegmentClock(sc SegmentClock) ControllerOption {
	return func(c *Controller) { c.segments = sc }
}

// Controller is the session state machine. It is the only owner of the
// session record; Start, Stop, Status and the liveness check all run inside
// the same critical section, including the calls into the Supervisor.
type Controller struct {
	sup          Supervisor
	playlistPath string
	log          *slog.Logger
	metrics      *metrics.Metrics
	now          func() time.Time
	segments     SegmentClock

	mu    sync.Mutex
	state sessionState
}

// NewController returns an idle Controller. playlistPath is the file that gets
// the one-time normalization pass after a successful start. m may be nil.
func NewController(sup Supervisor, playlistPath string, log *slog.Logger, m *metrics.Metrics, opts ...ControllerOption) *Controller {
	c := &Controller{
		sup:          sup,
		playlistPath: playlistPath,
		log:          log,
		metrics:      m,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start moves Idle -> Running for sourceURI. It fails with ErrInvalidSource
// for an empty URI, ErrAlreadyRunning while a session is active, and
// ErrStreamStartFailed (wrapping ErrSpawnFailed) when the transcoder does not
// come up; in every failure case the state is unchanged.
func (c *Controller) Start(ctx context.Context, sourceURI string) (StartResult, error) {
	sourceURI = strings.TrimSpace(sourceURI)
	if sourceURI == "" {
		return StartResult{}, ErrInvalidSource
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.reapLocked()
	if c.state.running {
		return StartResult{}, ErrAlreadyRunning
	}

	h, err := c.sup.Spawn(ctx, sourceURI)
	if err != nil {
		c.metrics.SessionStartFailed()
		c.log.Error("stream start failed",
			slog.String("source", sourceURI),
			slog.String("error", err.Error()))
		return StartResult{}, &Error{Kind: ErrStreamStartFailed, Err: err}
	}

	c.state = sessionState{
		running:   true,
		sourceURI: sourceURI,
		startedAt: c.now(),
		handle:    h,
	}

	if rewritten, err := NormalizeFile(c.playlistPath); err != nil {
		c.log.Warn("playlist normalization failed", slog.String("error", err.Error()))
	} else if rewritten {
		c.log.Info("removed end-of-stream tag from live playlist")
	}

	c.metrics.SessionStarted()
	c.log.Info("stream started", slog.String("source", sourceURI))
	return StartResult{StreamURL: StreamURL, SourceURI: sourceURI}, nil
}

// Stop moves Running -> Idle. It fails with ErrNotRunning, without touching
// the Supervisor, when idle. When termination fails the state is still forced
// to Idle and ErrStreamStopFailed is returned: the transcoder may be orphaned,
// but the controller never stays wedged on a session it cannot stop.
// Stop is bounded by the supervisor's stop timeout rather than a context.
func (c *Controller) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.reapLocked()
	if !c.state.running {
		return ErrNotRunning
	}

	prev := c.state
	err := c.sup.Terminate(prev.handle)
	c.state = sessionState{}

	if err != nil {
		c.metrics.SessionStopped(true)
		c.log.Error("stream stop failed; session forced idle, transcoder may be orphaned",
			slog.String("source", prev.sourceURI),
			slog.String("error", err.Error()))
		return &Error{Kind: ErrStreamStopFailed, Err: err}
	}

	c.metrics.SessionStopped(false)
	c.log.Info("stream stopped",
		slog.String("source", prev.sourceURI),
		slog.String("uptime", FormatUptime(c.now().Sub(prev.startedAt))))
	return nil
}

// Status returns the current session view. It first reaps a transcoder that
// died on its own, so a stale Running is never reported.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.reapLocked()
	return c.statusLocked()
}

// Running reports whether a session is active.
func (c *Controller) Running() bool {
	return c.Status().Running
}

// Watch runs the liveness check every interval until ctx is done. A
// non-positive interval disables the loop; on-read checks still apply.
func (c *Controller) Watch(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			c.mu.Lock()
			c.reapLocked()
			c.mu.Unlock()
		}
	}
}

// Shutdown stops an active session. Being idle is not an error.
func (c *Controller) Shutdown() error {
	err := c.Stop()
	if errors.Is(err, ErrNotRunning) {
		return nil
	}
	return err
}

func (c *Controller) statusLocked() Status {
	st := Status{StreamURL: StreamURL}
	if !c.state.running {
		return st
	}

	source := c.state.sourceURI
	started := c.state.startedAt
	uptime := FormatUptime(c.now().Sub(started))
	st.Running = true
	st.SourceURI = &source
	st.StartedAt = &started
	st.Uptime = &uptime

	if c.segments != nil {
		if last, ok := c.segments.LastSegmentAt(); ok && !last.Before(started) {
			st.LastSegmentAt = &last
		}
	}
	return st
}

// reapLocked clears a Running state whose transcoder has exited without a
// stop request. Caller must hold c.mu.
func (c *Controller) reapLocked() {
	if !c.state.running || c.sup.IsAlive(c.state.handle) {
		return
	}

	prev := c.state
	// The process is gone; Terminate only releases the handle.
	if err := c.sup.Terminate(prev.handle); err != nil {
		c.log.Debug("release of exited transcoder", slog.String("error", err.Error()))
	}
	c.state = sessionState{}

	c.metrics.SessionExitedUnexpectedly()
	c.log.Warn("transcoder exited without a stop request; session is idle",
		slog.String("source", prev.sourceURI),
		slog.String("uptime", FormatUptime(c.now().Sub(prev.startedAt))))
}

// FormatUptime renders d as HH:MM:SS. Hours are zero-padded to two digits
// and keep growing past 24; negative durations render as 00:00:00.
func FormatUptime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	hours := total / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60
	return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
}
