package stream

import (
	"path/filepath"
	"strconv"
)

// transcodeArgs builds the fixed ffmpeg argument profile: RTSP over TCP,
// H.264/AAC re-encode tuned for low latency, and a rolling live HLS window of
// WindowSegments segments of SegmentSeconds each. The playlist never gets an
// end tag and old segments are deleted by ffmpeg itself.
func transcodeArgs(outputDir, sourceURI string) []string {
	return []string{
		"-rtsp_transport", "tcp",
		"-rtsp_flags", "prefer_tcp",
		"-timeout", "5000000",
		"-i", sourceURI,
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-tune", "zerolatency",
		"-g", "50",
		"-sc_threshold", "0",
		"-b:v", "1000k",
		"-maxrate", "1200k",
		"-bufsize", "2000k",
		"-r", "25",
		"-c:a", "aac",
		"-b:a", "96k",
		"-ar", "44100",
		"-ac", "2",
		"-shortest",
		"-f", "hls",
		"-hls_time", strconv.Itoa(SegmentSeconds),
		"-hls_list_size", strconv.Itoa(WindowSegments),
		"-hls_flags", "delete_segments+append_list+omit_endlist",
		"-hls_segment_type", "mpegts",
		"-hls_segment_filename", filepath.Join(outputDir, SegmentPattern),
		"-start_number", "0",
		"-loglevel", "warning",
		"-y",
		filepath.Join(outputDir, PlaylistName),
	}
}

// probeArgs builds the read-only ffprobe invocation. internalTimeout is passed
// to ffprobe's own socket timeout in microseconds.
func probeArgs(sourceURI string, internalTimeoutMicros int64) []string {
	return []string{
		"-rtsp_transport", "tcp",
		"-timeout", strconv.FormatInt(internalTimeoutMicros, 10),
		"-i", sourceURI,
		"-show_entries", "format=duration",
		"-v", "error",
		"-of", "csv=p=0",
	}
}
