//go:build unix

package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
)

func fakeProbe(t *testing.T, name string) string {
	t.Helper()
	path, err := filepath.Abs(filepath.Join("..", "..", "internal", "stream", "testdata", name))
	if err != nil {
		t.Fatal(err)
	}
	return path
}

func runRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestProbeCommand_reachable(t *testing.T) {
	t.Setenv("FFPROBE_PATH", fakeProbe(t, "fake_ffprobe_ok.sh"))
	t.Setenv("LOG_LEVEL", "error")

	out, err := runRoot(t, "probe", "rtsp://cam/1")
	if err != nil {
		t.Fatalf("probe failed: %v", err)
	}
	if !strings.Contains(out, "rtsp://cam/1 is reachable") {
		t.Errorf("unexpected output: %q", out)
	}
}

func TestProbeCommand_unreachable(t *testing.T) {
	t.Setenv("FFPROBE_PATH", fakeProbe(t, "fake_ffprobe_fail.sh"))
	t.Setenv("LOG_LEVEL", "error")

	_, err := runRoot(t, "probe", "rtsp://cam/missing")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "404 Not Found") {
		t.Errorf("error lacks probe diagnostics: %v", err)
	}
}

func TestProbeCommand_requires_uri(t *testing.T) {
	if _, err := runRoot(t, "probe"); err == nil {
		t.Fatal("expected argument error")
	}
}

func TestRootCommand_rejects_bad_config(t *testing.T) {
	t.Setenv("OVERLAY_STORE", "postgres")

	_, err := runRoot(t, "serve")
	if err == nil || !strings.Contains(err.Error(), "OVERLAY_STORE") {
		t.Fatalf("expected config error, got %v", err)
	}
}
