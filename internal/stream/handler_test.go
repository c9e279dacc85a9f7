package stream

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"rtsp-overlay/internal/platform/httpx"
	"rtsp-overlay/internal/platform/logger"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHandler(t *testing.T, sup Supervisor) (*Handler, string) {
	t.Helper()
	dir := t.TempDir()
	log := logger.Discard()
	ctrl := NewController(sup, filepath.Join(dir, PlaylistName), log, nil)
	prober := NewProber("ffprobe", 0, 0, log, nil)
	return NewHandler(ctrl, prober, dir, log, nil), dir
}

func newTestRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()
	r.Route("/session", func(r chi.Router) {
		r.Post("/", h.StartSession)
		r.Delete("/", h.StopSession)
		r.Get("/status", h.SessionStatus)
		r.Post("/test", h.TestSource)
	})
	r.Get("/media/{name}", h.ServeMedia)
	return r
}

func do(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) httpx.ErrorBody {
	t.Helper()
	var body httpx.ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHandler_session_scenario(t *testing.T) {
	sup := newFakeSupervisor()
	h, _ := newTestHandler(t, sup)
	r := newTestRouter(h)

	rec := do(t, r, http.MethodPost, "/session", map[string]string{"sourceUri": "rtsp://cam/1"})
	require.Equal(t, http.StatusOK, rec.Code)
	var started StartResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &started))
	assert.Equal(t, "/media/out.m3u8", started.StreamURL)
	assert.Equal(t, "rtsp://cam/1", started.SourceURI)

	rec = do(t, r, http.MethodPost, "/session", map[string]string{"sourceUri": "rtsp://cam/1"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, "ConflictError", body.Error)
	assert.Equal(t, "AlreadyRunning", body.Code)

	rec = do(t, r, http.MethodDelete, "/session", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{}`, rec.Body.String())

	rec = do(t, r, http.MethodDelete, "/session", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body = decodeError(t, rec)
	assert.Equal(t, "ConflictError", body.Error)
	assert.Equal(t, "NotRunning", body.Code)

	spawns, terminates := sup.counts()
	assert.Equal(t, 1, spawns)
	assert.Equal(t, 1, terminates)
}

func TestHandler_StartSession_validation(t *testing.T) {
	h, _ := newTestHandler(t, newFakeSupervisor())
	r := newTestRouter(h)

	tests := []struct {
		name string
		body string
	}{
		{"missing field", `{}`},
		{"blank source", `{"sourceUri": "   "}`},
		{"not json", `rtsp://cam/1`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/session", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "ValidationError", decodeError(t, rec).Error)
		})
	}
}

func TestHandler_StartSession_legacy_field(t *testing.T) {
	h, _ := newTestHandler(t, newFakeSupervisor())
	r := newTestRouter(h)

	rec := do(t, r, http.MethodPost, "/session", map[string]string{"rtsp_url": "rtsp://cam/legacy"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "rtsp://cam/legacy")
}

func TestHandler_StartSession_spawn_failure(t *testing.T) {
	sup := newFakeSupervisor()
	sup.spawnErr = &Error{Kind: ErrSpawnFailed, Detail: "Connection refused"}
	h, _ := newTestHandler(t, sup)
	r := newTestRouter(h)

	rec := do(t, r, http.MethodPost, "/session", map[string]string{"sourceUri": "rtsp://cam/1"})
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, "StreamStartFailed", body.Error)
	assert.Contains(t, body.Message, "Connection refused")
}

func TestHandler_SessionStatus(t *testing.T) {
	h, _ := newTestHandler(t, newFakeSupervisor())
	r := newTestRouter(h)

	rec := do(t, r, http.MethodGet, "/session/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"running":false,"sourceUri":null,"streamUrl":"/media/out.m3u8","startedAt":null,"uptime":null}`, rec.Body.String())

	do(t, r, http.MethodPost, "/session", map[string]string{"sourceUri": "rtsp://cam/1"})
	rec = do(t, r, http.MethodGet, "/session/status", nil)
	var st struct {
		Running   bool   `json:"running"`
		SourceURI string `json:"sourceUri"`
		Uptime    string `json:"uptime"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.True(t, st.Running)
	assert.Equal(t, "rtsp://cam/1", st.SourceURI)
	assert.Regexp(t, `^\d{2,}:\d{2}:\d{2}$`, st.Uptime)
}

func TestHandler_ServeMedia_playlist(t *testing.T) {
	h, dir := newTestHandler(t, newFakeSupervisor())
	r := newTestRouter(h)

	rec := do(t, r, http.MethodGet, "/media/out.m3u8", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, EmptyLivePlaylist(), rec.Body.String())
	assert.Equal(t, playlistContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Cache-Control"), "no-store")

	require.NoError(t, os.WriteFile(filepath.Join(dir, PlaylistName), []byte(livePlaylist+"#EXT-X-ENDLIST\n"), 0o644))
	rec = do(t, r, http.MethodGet, "/media/out.m3u8", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, livePlaylist, rec.Body.String())
}

func TestHandler_ServeMedia_segment(t *testing.T) {
	h, dir := newTestHandler(t, newFakeSupervisor())
	r := newTestRouter(h)

	payload := []byte{0x47, 0x40, 0x00, 0x10}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "segment_000.ts"), payload, 0o644))

	rec := do(t, r, http.MethodGet, "/media/segment_000.ts", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, payload, rec.Body.Bytes())
	assert.Equal(t, segmentContentType, rec.Header().Get("Content-Type"))
	assert.Equal(t, segmentCacheControl, rec.Header().Get("Cache-Control"))
}

func TestHandler_ServeMedia_not_found(t *testing.T) {
	h, dir := newTestHandler(t, newFakeSupervisor())
	r := newTestRouter(h)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	for _, path := range []string{
		"/media/segment_999.ts",
		"/media/notes.txt",
		"/media/.hidden.ts",
		"/media/..%2Fsecret.ts",
	} {
		rec := do(t, r, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
	}
}

func TestValidMediaName(t *testing.T) {
	assert.True(t, validMediaName("out.m3u8"))
	assert.True(t, validMediaName("segment_001.ts"))
	assert.False(t, validMediaName(""))
	assert.False(t, validMediaName(".."))
	assert.False(t, validMediaName("../out.m3u8"))
	assert.False(t, validMediaName(`a\b.ts`))
}
