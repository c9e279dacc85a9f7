package stream

import "time"

const (
	// PlaylistName is the playlist file ffmpeg writes into the stream directory.
	PlaylistName = "out.m3u8"

	// SegmentPattern is the ffmpeg segment filename template.
	SegmentPattern = "segment_%03d.ts"

	// MediaPrefix is the HTTP path under which playlist and segments are served.
	MediaPrefix = "/media"

	// StreamURL is the fixed public path clients use to fetch the playlist.
	StreamURL = MediaPrefix + "/" + PlaylistName

	// SegmentSeconds is the target duration handed to the HLS muxer.
	SegmentSeconds = 3

	// WindowSegments is the number of segments kept in the rolling playlist.
	WindowSegments = 6
)

// Handle identifies a transcoder process owned by a Supervisor. It is opaque
// to everything except the Supervisor that issued it; zero is never issued.
type Handle uint64

// StartResult is returned by a successful Start.
type StartResult struct {
	StreamURL string `json:"streamUrl"`
	SourceURI string `json:"sourceUri"`
}

// Status is a point-in-time view of the session. Optional fields are nil
// while idle.
type Status struct {
	Running       bool       `json:"running"`
	SourceURI     *string    `json:"sourceUri"`
	StreamURL     string     `json:"streamUrl"`
	StartedAt     *time.Time `json:"startedAt"`
	Uptime        *string    `json:"uptime"`
	LastSegmentAt *time.Time `json:"lastSegmentAt,omitempty"`
}

// sessionState is the singleton session record. running is true iff
// sourceURI, startedAt and handle are all set; the fields change together.
type sessionState struct {
	running   bool
	sourceURI string
	startedAt time.Time
	handle    Handle
}
