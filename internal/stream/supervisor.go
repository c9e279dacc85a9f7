package stream

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Default supervisor timings.
const (
	DefaultWarmupDelay = 4 * time.Second
	DefaultStopTimeout = 10 * time.Second

	// cancelReapTimeout bounds the wait after a warm-up is abandoned.
	cancelReapTimeout = 2 * time.Second
)

// Supervisor owns the lifecycle of transcoder processes. Callers hold only
// the Handle it returns and hand it back for every other operation.
type Supervisor interface {
	// Spawn launches a transcoder for sourceURI, waits out the warm-up delay
	// and returns a handle if the process is still alive.
	Spawn(ctx context.Context, sourceURI string) (Handle, error)

	// Terminate kills the process group behind h and waits a bounded time
	// for it to exit. The handle is released either way.
	Terminate(h Handle) error

	// IsAlive reports, without blocking, whether the process behind h is running.
	IsAlive(h Handle) bool
}

// SupervisorConfig configures an FFmpegSupervisor.
type SupervisorConfig struct {
	// BinaryPath is the ffmpeg executable ("ffmpeg" resolves via $PATH).
	BinaryPath string

	// OutputDir receives the playlist and segments.
	OutputDir string

	// WarmupDelay is how long Spawn waits before its health probe. It must
	// be long enough for the encoder to publish its first segment.
	WarmupDelay time.Duration

	// StopTimeout bounds how long Terminate waits for the process to exit.
	StopTimeout time.Duration
}

// process is one supervised transcoder. waitErr is written before exited is
// closed and must only be read after receiving from exited.
type process struct {
	cmd     *exec.Cmd
	pid     int
	source  string
	stderr  *tailBuffer
	exited  chan struct{}
	waitErr error
}

func (p *process) alive() bool {
	select {
	case <-p.exited:
		return false
	default:
		return true
	}
}

// FFmpegSupervisor runs ffmpeg with the fixed live HLS profile.
type FFmpegSupervisor struct {
	cfg SupervisorConfig
	log *slog.Logger

	mu    sync.Mutex
	next  Handle
	procs map[Handle]*process
}

// NewFFmpegSupervisor returns a supervisor for cfg. Zero timings fall back
// to DefaultWarmupDelay and DefaultStopTimeout.
func NewFFmpegSupervisor(cfg SupervisorConfig, log *slog.Logger) *FFmpegSupervisor {
	if cfg.BinaryPath == "" {
		cfg.BinaryPath = "ffmpeg"
	}
	if cfg.WarmupDelay <= 0 {
		cfg.WarmupDelay = DefaultWarmupDelay
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = DefaultStopTimeout
	}
	return &FFmpegSupervisor{
		cfg:   cfg,
		log:   log,
		procs: make(map[Handle]*process),
	}
}

// PlaylistPath returns the path of the playlist the transcoder writes.
func (s *FFmpegSupervisor) PlaylistPath() string {
	return filepath.Join(s.cfg.OutputDir, PlaylistName)
}

// Spawn implements Supervisor.Spawn.
func (s *FFmpegSupervisor) Spawn(ctx context.Context, sourceURI string) (Handle, error) {
	if err := prepareOutputDir(s.cfg.OutputDir); err != nil {
		return 0, &Error{Kind: ErrSpawnFailed, Err: err}
	}

	args := transcodeArgs(s.cfg.OutputDir, sourceURI)
	s.log.Debug("starting transcoder",
		slog.String("binary", s.cfg.BinaryPath),
		slog.String("args", strings.Join(args, " ")))

	// Not CommandContext: the transcoder outlives the request that started it.
	cmd := exec.Command(s.cfg.BinaryPath, args...)
	setProcessGroup(cmd)
	stderr := newTailBuffer(maxDiagnosticBytes)
	cmd.Stderr = stderr
	// Helpers that inherit stderr must not keep Wait blocked after the leader exits.
	cmd.WaitDelay = time.Second

	if err := cmd.Start(); err != nil {
		return 0, &Error{Kind: ErrSpawnFailed, Err: err}
	}

	p := &process{
		cmd:    cmd,
		pid:    cmd.Process.Pid,
		source: sourceURI,
		stderr: stderr,
		exited: make(chan struct{}),
	}
	go func() {
		p.waitErr = cmd.Wait()
		close(p.exited)
	}()

	timer := time.NewTimer(s.cfg.WarmupDelay)
	defer timer.Stop()

	select {
	case <-p.exited:
		return 0, s.exitedEarly(p)
	case <-ctx.Done():
		_ = killProcessGroup(p.pid)
		select {
		case <-p.exited:
		case <-time.After(cancelReapTimeout):
		}
		return 0, &Error{Kind: ErrSpawnFailed, Detail: "start abandoned during warm-up", Err: ctx.Err()}
	case <-timer.C:
	}

	if !p.alive() {
		return 0, s.exitedEarly(p)
	}

	s.mu.Lock()
	s.next++
	h := s.next
	s.procs[h] = p
	s.mu.Unlock()

	s.log.Info("transcoder running",
		slog.Uint64("handle", uint64(h)),
		slog.Int("pid", p.pid),
		slog.String("source", sourceURI))
	return h, nil
}

func (s *FFmpegSupervisor) exitedEarly(p *process) error {
	detail := p.stderr.String()
	if detail == "" {
		detail = "unknown error"
	}
	s.log.Error("transcoder exited during warm-up",
		slog.Int("pid", p.pid),
		slog.String("source", p.source),
		slog.String("stderr", detail))
	return &Error{Kind: ErrSpawnFailed, Detail: detail, Err: p.waitErr}
}

// Terminate implements Supervisor.Terminate.
func (s *FFmpegSupervisor) Terminate(h Handle) error {
	s.mu.Lock()
	p, ok := s.procs[h]
	delete(s.procs, h)
	s.mu.Unlock()

	if !ok {
		return &Error{Kind: ErrTerminateFailed, Detail: fmt.Sprintf("unknown handle %d", h)}
	}
	if !p.alive() {
		return nil
	}

	if err := killProcessGroup(p.pid); err != nil {
		if !p.alive() {
			return nil
		}
		return &Error{Kind: ErrTerminateFailed, Err: err}
	}

	timer := time.NewTimer(s.cfg.StopTimeout)
	defer timer.Stop()

	select {
	case <-p.exited:
		s.log.Info("transcoder stopped", slog.Uint64("handle", uint64(h)), slog.Int("pid", p.pid))
		return nil
	case <-timer.C:
		return &Error{
			Kind:   ErrTerminateFailed,
			Detail: fmt.Sprintf("pid %d did not exit within %s", p.pid, s.cfg.StopTimeout),
		}
	}
}

// IsAlive implements Supervisor.IsAlive.
func (s *FFmpegSupervisor) IsAlive(h Handle) bool {
	s.mu.Lock()
	p, ok := s.procs[h]
	s.mu.Unlock()
	return ok && p.alive()
}

// Diagnostics returns the retained stderr tail of the process behind h.
func (s *FFmpegSupervisor) Diagnostics(h Handle) string {
	s.mu.Lock()
	p, ok := s.procs[h]
	s.mu.Unlock()
	if !ok {
		return ""
	}
	return p.stderr.String()
}

// prepareOutputDir creates dir and removes the playlist and segments left by
// a previous session, which append_list would otherwise extend.
func prepareOutputDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create stream dir: %w", err)
	}
	stale, err := filepath.Glob(filepath.Join(dir, "segment_*.ts"))
	if err != nil {
		return err
	}
	stale = append(stale, filepath.Join(dir, PlaylistName))
	for _, path := range stale {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove stale %s: %w", filepath.Base(path), err)
		}
	}
	return nil
}
