package stream

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/grafov/m3u8"
)

const livePlaylist = "#EXTM3U\n" +
	"#EXT-X-VERSION:3\n" +
	"#EXT-X-TARGETDURATION:3\n" +
	"#EXT-X-MEDIA-SEQUENCE:4\n" +
	"#EXTINF:3.000000,\n" +
	"segment_004.ts\n" +
	"#EXTINF:3.000000,\n" +
	"segment_005.ts\n"

// decodeMedia parses out as a media playlist and fails the test otherwise.
func decodeMedia(t *testing.T, out string) *m3u8.MediaPlaylist {
	t.Helper()
	p, listType, err := m3u8.DecodeFrom(strings.NewReader(out), true)
	if err != nil {
		t.Fatalf("decode playlist: %v\n%s", err, out)
	}
	if listType != m3u8.MEDIA {
		t.Fatalf("expected media playlist, got %v", listType)
	}
	return p.(*m3u8.MediaPlaylist)
}

func TestEmptyLivePlaylist(t *testing.T) {
	out := EmptyLivePlaylist()
	want := "#EXTM3U\n#EXT-X-VERSION:3\n#EXT-X-TARGETDURATION:10\n"
	if out != want {
		t.Errorf("got %q, want %q", out, want)
	}
	if mp := decodeMedia(t, out); mp.Closed {
		t.Error("empty playlist must be live")
	}
}

func TestNormalize_absent_file_is_header_only(t *testing.T) {
	out := Normalize(filepath.Join(t.TempDir(), PlaylistName))
	if out != EmptyLivePlaylist() {
		t.Errorf("expected header-only playlist, got %q", out)
	}
	if SegmentCount(out) != 0 {
		t.Error("header-only playlist must list no segments")
	}
}

func TestNormalizeText_strips_endlist(t *testing.T) {
	out := NormalizeText(livePlaylist + "#EXT-X-ENDLIST\n")
	if strings.Contains(out, "#EXT-X-ENDLIST") {
		t.Errorf("end tag survived: %q", out)
	}
	if out != livePlaylist {
		t.Errorf("segments changed:\n%s", out)
	}
	mp := decodeMedia(t, out)
	if mp.Closed {
		t.Error("normalized playlist decoded as closed")
	}
	if mp.Count() != 2 {
		t.Errorf("expected 2 segments, got %d", mp.Count())
	}
}

func TestNormalizeText_adds_missing_header(t *testing.T) {
	in := "#EXTM3U\n#EXT-X-TARGETDURATION:3\n#EXTINF:3.0,\nsegment_000.ts\n"
	out := NormalizeText(in)

	if !strings.HasPrefix(out, "#EXTM3U\n#EXT-X-VERSION:3\n") {
		t.Errorf("expected header on top, got %q", out)
	}
	if strings.Count(out, "#EXTM3U") != 1 {
		t.Errorf("duplicate #EXTM3U: %q", out)
	}
	if strings.Count(out, "#EXT-X-TARGETDURATION") != 1 {
		t.Errorf("target duration must not be duplicated: %q", out)
	}
	decodeMedia(t, out)
}

func TestNormalizeText_bare_segments(t *testing.T) {
	out := NormalizeText("#EXTINF:3.0,\nsegment_000.ts\n")
	if !strings.HasPrefix(out, EmptyLivePlaylist()) {
		t.Errorf("expected synthesized header, got %q", out)
	}
	if SegmentCount(out) != 1 {
		t.Errorf("expected 1 segment, got %d", SegmentCount(out))
	}
}

func TestNormalizeText_drops_torn_line(t *testing.T) {
	out := NormalizeText(livePlaylist + "#EXTINF:3.000000,\nsegm")
	if strings.Contains(out, "segm\n") || strings.HasSuffix(out, "segm") {
		t.Errorf("torn line survived: %q", out)
	}
	if out != livePlaylist {
		t.Errorf("complete segments must be kept as is: %q", out)
	}
}

func TestNormalizeText_drops_segment_without_uri(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"torn uri", livePlaylist + "#EXTINF:3.000000,\nsegment_0"},
		{"uri not written", livePlaylist + "#EXTINF:3.000000,\n"},
		{"ended", livePlaylist + "#EXTINF:3.000000,\n#EXT-X-ENDLIST\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := NormalizeText(tt.in)
			if out != livePlaylist {
				t.Errorf("got %q, want %q", out, livePlaylist)
			}
			if SegmentCount(out) != 2 {
				t.Errorf("expected 2 segments, got %d", SegmentCount(out))
			}
			if mp := decodeMedia(t, out); mp.Count() != 2 {
				t.Errorf("decoded %d segments, want 2", mp.Count())
			}
		})
	}

	if out := NormalizeText("#EXTINF:3.0,\n"); out != EmptyLivePlaylist() {
		t.Errorf("lone segment tag: got %q", out)
	}
}

func TestNormalizeText_idempotent(t *testing.T) {
	inputs := []string{
		"",
		livePlaylist,
		livePlaylist + "#EXT-X-ENDLIST\n",
		"#EXTM3U\n#EXTINF:3.0,\nsegment_000.ts\n#EXT-X-ENDLIST\n",
		"#EXTINF:3.0,\nsegment_000.ts\n",
		livePlaylist + "#EXTI",
		livePlaylist + "#EXTINF:3.000000,\nsegment_0",
	}
	for _, in := range inputs {
		once := NormalizeText(in)
		twice := NormalizeText(once)
		if once != twice {
			t.Errorf("not idempotent for %q:\nonce:  %q\ntwice: %q", in, once, twice)
		}
		if strings.Contains(once, "#EXT-X-ENDLIST") {
			t.Errorf("end tag in output for %q", in)
		}
		if !strings.HasPrefix(once, "#EXTM3U\n") {
			t.Errorf("missing #EXTM3U first line for %q: %q", in, once)
		}
	}
}

func TestNormalizeFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, PlaylistName)

	rewritten, err := NormalizeFile(path)
	if err != nil || rewritten {
		t.Fatalf("absent file: rewritten=%v err=%v", rewritten, err)
	}

	if err := os.WriteFile(path, []byte(livePlaylist), 0o644); err != nil {
		t.Fatal(err)
	}
	rewritten, err = NormalizeFile(path)
	if err != nil || rewritten {
		t.Fatalf("live file: rewritten=%v err=%v", rewritten, err)
	}

	if err := os.WriteFile(path, []byte(livePlaylist+"#EXT-X-ENDLIST\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	rewritten, err = NormalizeFile(path)
	if err != nil || !rewritten {
		t.Fatalf("ended file: rewritten=%v err=%v", rewritten, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != livePlaylist {
		t.Errorf("unexpected rewrite: %q", data)
	}
}
