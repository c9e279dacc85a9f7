package stream

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"rtsp-overlay/internal/platform/metrics"
)

// SegmentWatcher follows the stream directory and records when the
// transcoder publishes a new segment. It only observes; it never changes the
// session state.
type SegmentWatcher struct {
	dir     string
	log     *slog.Logger
	metrics *metrics.Metrics

	last atomic.Int64 // unix nanoseconds, zero until the first segment
}

// NewSegmentWatcher returns a watcher for dir. m may be nil.
func NewSegmentWatcher(dir string, log *slog.Logger, m *metrics.Metrics) *SegmentWatcher {
	return &SegmentWatcher{dir: dir, log: log, metrics: m}
}

// LastSegmentAt returns when the most recent segment appeared.
func (w *SegmentWatcher) LastSegmentAt() (time.Time, bool) {
	ns := w.last.Load()
	if ns == 0 {
		return time.Time{}, false
	}
	return time.Unix(0, ns), true
}

// Run watches the directory until ctx is done. The directory is created if
// it does not exist yet.
func (w *SegmentWatcher) Run(ctx context.Context) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("create stream dir: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("fsnotify.NewWatcher: %w", err)
	}
	defer func() {
		_ = watcher.Close()
	}()

	if err := watcher.Add(w.dir); err != nil {
		return fmt.Errorf("watch directory %s: %w", w.dir, err)
	}
	w.log.Debug("segment watcher started", slog.String("dir", w.dir))

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return fmt.Errorf("watcher channel closed")
			}
			if event.Has(fsnotify.Create) && isSegment(event.Name) {
				w.last.Store(time.Now().UnixNano())
				w.metrics.IncSegmentsWritten()
				w.log.Debug("segment written", slog.String("name", filepath.Base(event.Name)))
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher error channel closed")
			}
			w.log.Warn("fsnotify watcher error", slog.String("error", err.Error()))
		}
	}
}

func isSegment(name string) bool {
	return strings.HasSuffix(filepath.Base(name), ".ts")
}
