package stream

import (
	"context"
	"errors"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"rtsp-overlay/internal/platform/metrics"
)

// Probe timing bounds.
const (
	DefaultProbeTimeout         = 15 * time.Second
	DefaultProbeInternalTimeout = 10 * time.Second
	MaxProbeTimeout             = 60 * time.Second
)

// Prober checks whether a source is reachable by running a short-lived
// ffprobe. It never touches the session state and may run concurrently with
// anything else.
type Prober struct {
	binary          string
	internalTimeout time.Duration
	defaultTimeout  time.Duration
	log             *slog.Logger
	metrics         *metrics.Metrics
}

// NewProber returns a Prober. internalTimeout is handed to ffprobe itself;
// defaultTimeout is the outer bound applied when Test gets zero. m may be nil.
func NewProber(binary string, internalTimeout, defaultTimeout time.Duration, log *slog.Logger, m *metrics.Metrics) *Prober {
	if binary == "" {
		binary = "ffprobe"
	}
	if internalTimeout <= 0 {
		internalTimeout = DefaultProbeInternalTimeout
	}
	if defaultTimeout <= 0 {
		defaultTimeout = DefaultProbeTimeout
	}
	return &Prober{
		binary:          binary,
		internalTimeout: internalTimeout,
		defaultTimeout:  defaultTimeout,
		log:             log,
		metrics:         m,
	}
}

// Test probes sourceURI within timeout (zero means the default, values
// above MaxProbeTimeout are capped). It returns nil if the source answered,
// ErrProbeTimeout if the outer bound expired, and ErrProbeFailed carrying
// ffprobe's stderr otherwise.
func (p *Prober) Test(ctx context.Context, sourceURI string, timeout time.Duration) error {
	sourceURI = strings.TrimSpace(sourceURI)
	if sourceURI == "" {
		return ErrInvalidSource
	}
	if timeout <= 0 {
		timeout = p.defaultTimeout
	}
	timeout = min(timeout, MaxProbeTimeout)

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, p.binary, probeArgs(sourceURI, p.internalTimeout.Microseconds())...)
	setProcessGroup(cmd)
	cmd.Cancel = func() error { return killProcessGroup(cmd.Process.Pid) }
	cmd.WaitDelay = time.Second
	stderr := newTailBuffer(maxDiagnosticBytes)
	cmd.Stderr = stderr

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	switch {
	case err == nil:
		p.metrics.IncProbe(metrics.ProbeOK)
		p.log.Info("source probe succeeded",
			slog.String("source", sourceURI),
			slog.Duration("elapsed", elapsed))
		return nil
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		p.metrics.IncProbe(metrics.ProbeTimeout)
		p.log.Warn("source probe timed out",
			slog.String("source", sourceURI),
			slog.Duration("timeout", timeout))
		return &Error{Kind: ErrProbeTimeout, Err: ctx.Err()}
	default:
		detail := stderr.String()
		if detail == "" {
			detail = err.Error()
		}
		p.metrics.IncProbe(metrics.ProbeFailed)
		p.log.Warn("source probe failed",
			slog.String("source", sourceURI),
			slog.String("stderr", detail))
		return &Error{Kind: ErrProbeFailed, Detail: detail, Err: err}
	}
}
