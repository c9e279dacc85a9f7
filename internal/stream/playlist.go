package stream

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/google/renameio/v2"
)

const (
	tagHeader         = "#EXTM3U"
	tagVersion        = "#EXT-X-VERSION"
	tagTargetDuration = "#EXT-X-TARGETDURATION"
	tagEndList        = "#EXT-X-ENDLIST"

	playlistVersion = 3

	// fallbackTargetDuration is advertised whenever the header has to be
	// synthesized. It must not be lower than any real segment duration.
	fallbackTargetDuration = 10
)

// EmptyLivePlaylist returns a header-only live playlist with no segments.
// Players keep polling it until the transcoder publishes the first segment.
func EmptyLivePlaylist() string {
	var b strings.Builder
	b.WriteString(tagHeader + "\n")
	b.WriteString(fmt.Sprintf("%s:%d\n", tagVersion, playlistVersion))
	b.WriteString(fmt.Sprintf("%s:%d\n", tagTargetDuration, fallbackTargetDuration))
	return b.String()
}

// Normalize reads the playlist at path and returns it in servable live form.
// A missing or unreadable file yields EmptyLivePlaylist. The file is re-read
// on every call because the transcoder keeps rewriting it.
func Normalize(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return EmptyLivePlaylist()
	}
	return NormalizeText(string(data))
}

// NormalizeText rewrites playlist text so it always reads as an open live
// playlist:
//   - a trailing line without a newline is treated as a torn write and dropped,
//   - a final #EXTINF whose URI line is not written yet is dropped,
//   - every #EXT-X-ENDLIST line is removed,
//   - when #EXT-X-VERSION is missing, the minimal header is placed on top.
//
// Segment entries pass through verbatim. NormalizeText is idempotent.
func NormalizeText(content string) string {
	content = dropDanglingSegment(dropTornLine(content))

	lines := strings.Split(content, "\n")
	out := make([]string, 0, len(lines)+3)
	hasVersion, hasTarget := false, false

	for _, line := range lines {
		tag := strings.TrimSpace(line)
		switch {
		case tag == tagEndList:
			continue
		case strings.HasPrefix(tag, tagVersion):
			hasVersion = true
		case strings.HasPrefix(tag, tagTargetDuration):
			hasTarget = true
		}
		out = append(out, line)
	}

	if hasVersion {
		return strings.Join(out, "\n")
	}

	// #EXTM3U must stay the first line, so drop it and rebuild the header.
	if len(out) > 0 && strings.TrimSpace(out[0]) == tagHeader {
		out = out[1:]
	}
	header := []string{
		tagHeader,
		fmt.Sprintf("%s:%d", tagVersion, playlistVersion),
	}
	if !hasTarget {
		header = append(header, fmt.Sprintf("%s:%d", tagTargetDuration, fallbackTargetDuration))
	}
	return strings.Join(append(header, out...), "\n")
}

// NormalizeFile rewrites the playlist on disk when it carries an end-of-stream
// tag. The replacement is atomic so concurrent readers see either version.
// It reports whether the file was rewritten; a missing file is not an error.
func NormalizeFile(path string) (bool, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read playlist: %w", err)
	}
	if !hasEndList(string(data)) {
		return false, nil
	}

	if err := renameio.WriteFile(path, []byte(NormalizeText(string(data))), 0o644); err != nil {
		return false, fmt.Errorf("rewrite playlist: %w", err)
	}
	return true, nil
}

// SegmentCount returns the number of media segment entries in playlist text.
func SegmentCount(content string) int {
	n := 0
	for _, line := range strings.Split(content, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "#EXTINF:") {
			n++
		}
	}
	return n
}

func hasEndList(content string) bool {
	for _, line := range strings.Split(content, "\n") {
		if strings.TrimSpace(line) == tagEndList {
			return true
		}
	}
	return false
}

// dropTornLine cuts content back to its last newline. Content with no newline
// at all is a partial first line and becomes empty.
func dropTornLine(content string) string {
	if content == "" || strings.HasSuffix(content, "\n") {
		return content
	}
	i := strings.LastIndexByte(content, '\n')
	return content[:i+1]
}

// dropDanglingSegment removes a trailing #EXTINF that has no URI line after
// it, together with anything that follows it.
func dropDanglingSegment(content string) string {
	lines := strings.Split(content, "\n")
	lastURI, lastInf := -1, -1
	for i, line := range lines {
		l := strings.TrimSpace(line)
		switch {
		case l == "":
		case strings.HasPrefix(l, "#EXTINF:"):
			lastInf = i
		case !strings.HasPrefix(l, "#"):
			lastURI = i
		}
	}
	if lastInf <= lastURI {
		return content
	}
	if lastInf == 0 {
		return ""
	}
	return strings.Join(lines[:lastInf], "\n") + "\n"
}
