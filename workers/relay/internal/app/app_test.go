package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"mediarelay/shared/config"
	"mediarelay/shared/observability"
	"mediarelay/workers/relay/internal/domain"
	"mediarelay/workers/relay/internal/process"
	"mediarelay/workers/relay/internal/stubbin"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const infoFixture = `{
  "title": "Stub Clip",
  "thumbnail": "https://i.video.example/abc.jpg",
  "duration": 42,
  "formats": [
    {"format_id": "22", "ext": "mp4", "resolution": "1280x720", "vcodec": "avc1.64001F", "acodec": "mp4a.40.2", "filesize": 1048576, "format_note": "720p"},
    {"format_id": "137", "ext": "mp4", "resolution": "1920x1080", "vcodec": "avc1.640028", "acodec": "none"},
    {"format_id": "140", "ext": "m4a", "resolution": "audio only", "vcodec": "none", "acodec": "mp4a.40.2"}
  ]
}`

const cookieJar = "# Netscape HTTP Cookie File\n.youtube.com\tTRUE\t/\tTRUE\t0\tSID\tabc\n"

// fixture is one test's stub yt-dlp plus the files it reads and writes.
type fixture struct {
	dir       string
	cookieDir string
	binary    string
	payload   []byte
}

// newFixture writes a stub that answers probes from infoFixture and streams
// payload for downloads. URLs containing "signin" fail with a sign-in error;
// URLs containing "endless" stream forever after writing their PID.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	stubbin.RequirePOSIX(t)

	dir := t.TempDir()
	f := &fixture{
		dir:       dir,
		cookieDir: filepath.Join(dir, "cookies"),
		payload:   bytes.Repeat([]byte("ABCDE"), 1000),
	}
	require.NoError(t, os.Mkdir(f.cookieDir, 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "info.json"), []byte(infoFixture), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "payload"), f.payload, 0o600))

	f.binary = stubbin.Write(t, stubbin.RecordArgs(filepath.Join(dir, "args"))+"\n"+
		stubbin.CopyCookies(filepath.Join(dir, "cookies.seen"))+`
for a in "$@"; do url="$a"; done
case "$url" in
  *signin*)
    echo "ERROR: [youtube] abc: Sign in to confirm you're not a bot. Use --cookies-from-browser" >&2
    exit 1 ;;
esac
case " $* " in
  *" --dump-single-json "*) exec cat '`+filepath.Join(dir, "info.json")+`' ;;
esac
case "$url" in
  *endless*)
    echo $$ > '`+filepath.Join(dir, "pid")+`'
    exec yes ABCDE ;;
esac
exec cat '`+filepath.Join(dir, "payload")+`'`)
	return f
}

func (f *fixture) args(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(f.dir, "args"))
	require.NoError(t, err)
	return string(data)
}

func (f *fixture) cookieFiles(t *testing.T) int {
	t.Helper()
	entries, err := os.ReadDir(f.cookieDir)
	require.NoError(t, err)
	return len(entries)
}

func (f *fixture) config() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Extractor.Binary = f.binary
	cfg.Extractor.Timeout = 10 * time.Second
	cfg.Relay.Binary = f.binary
	cfg.Relay.WaitDelay = time.Second
	cfg.Credentials.Dir = f.cookieDir
	return cfg
}

func newServer(t *testing.T, cfg *config.Config) (*httptest.Server, *App) {
	t.Helper()
	provider := observability.NewProvider(&observability.Config{
		ServiceName: cfg.ServiceName,
		Environment: "test",
		LogLevel:    "error",
		LogOutput:   io.Discard,
		Registry:    prometheus.NewRegistry(),
	})
	a := New(cfg, provider)
	srv := httptest.NewServer(a.Adapter)
	t.Cleanup(srv.Close)
	return srv, a
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func detail(t *testing.T, resp *http.Response) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body["detail"]
}

func TestRoot(t *testing.T) {
	f := newFixture(t)
	srv, _ := newServer(t, f.config())

	resp, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, map[string]string{"status": "ok", "service": "YouTube Downloader Backend"}, body)
}

func TestInfo_OnlyCombinedFormats(t *testing.T) {
	f := newFixture(t)
	srv, _ := newServer(t, f.config())

	resp := postJSON(t, srv.URL+"/info", `{"url":"https://video.example/abc","cookies":null}`)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body struct {
		Title    string  `json:"title"`
		Duration float64 `json:"duration"`
		Formats  []struct {
			FormatID string `json:"format_id"`
			Note     string `json:"note"`
		} `json:"formats"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))

	assert.Equal(t, "Stub Clip", body.Title)
	assert.Equal(t, 42.0, body.Duration)
	require.Len(t, body.Formats, 1)
	assert.Equal(t, "22", body.Formats[0].FormatID)
	assert.Equal(t, "720p", body.Formats[0].Note)

	assert.NotContains(t, f.args(t), "--cookies")
	assert.Zero(t, f.cookieFiles(t))
}

func TestInfo_AuthRequired(t *testing.T) {
	f := newFixture(t)
	srv, _ := newServer(t, f.config())

	resp := postJSON(t, srv.URL+"/info", `{"url":"https://video.example/signin"}`)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	msg := detail(t, resp)
	assert.Equal(t, domain.AuthRequiredMessage, msg)
	assert.NotContains(t, msg, "not a bot")
}

func TestInfo_CookiesAreMaterializedAndRemoved(t *testing.T) {
	f := newFixture(t)
	srv, _ := newServer(t, f.config())

	body, err := json.Marshal(map[string]string{"url": "https://video.example/abc", "cookies": cookieJar})
	require.NoError(t, err)
	resp := postJSON(t, srv.URL+"/info", string(body))

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, f.args(t), "--cookies\n"+f.cookieDir)

	seen, err := os.ReadFile(filepath.Join(f.dir, "cookies.seen"))
	require.NoError(t, err)
	assert.Equal(t, cookieJar, string(seen))
	assert.Zero(t, f.cookieFiles(t))
}

func TestInfo_BadRequests(t *testing.T) {
	f := newFixture(t)
	srv, _ := newServer(t, f.config())

	t.Run("missing url", func(t *testing.T) {
		resp := postJSON(t, srv.URL+"/info", `{"url":""}`)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("malformed body", func(t *testing.T) {
		resp := postJSON(t, srv.URL+"/info", `{"url":`)

		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	})
}

func TestDownload_StreamsDefaultSelector(t *testing.T) {
	f := newFixture(t)
	srv, _ := newServer(t, f.config())

	resp := postJSON(t, srv.URL+"/download", `{"url":"https://video.example/abc","cookies":null}`)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "video/mp4", resp.Header.Get("Content-Type"))
	assert.Equal(t, `attachment; filename="video.mp4"`, resp.Header.Get("Content-Disposition"))

	got, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, f.payload, got)

	args := f.args(t)
	assert.Contains(t, args, "-f\nbest\n")
	assert.NotContains(t, args, "--cookies")
	assert.True(t, strings.HasSuffix(args, "--\nhttps://video.example/abc\n"))
}

func TestDownload_FormatFromQuery(t *testing.T) {
	f := newFixture(t)
	srv, _ := newServer(t, f.config())

	resp := postJSON(t, srv.URL+"/download?format_id=22", `{"url":"https://video.example/abc"}`)
	_, _ = io.Copy(io.Discard, resp.Body)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, f.args(t), "-f\n22\n")
}

func TestDownload_QueryOnlyGET(t *testing.T) {
	f := newFixture(t)
	srv, _ := newServer(t, f.config())

	resp, err := http.Get(srv.URL + "/download?url=https://video.example/abc&format_id=18")
	require.NoError(t, err)
	defer resp.Body.Close()
	got, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, f.payload, got)
	assert.Contains(t, f.args(t), "-f\n18\n")
}

func TestDownload_CookiesRemovedAfterStream(t *testing.T) {
	f := newFixture(t)
	srv, _ := newServer(t, f.config())

	body, err := json.Marshal(map[string]string{"url": "https://video.example/abc", "cookies": cookieJar})
	require.NoError(t, err)
	resp := postJSON(t, srv.URL+"/download", string(body))
	_, err = io.Copy(io.Discard, resp.Body)
	require.NoError(t, err)

	seen, err := os.ReadFile(filepath.Join(f.dir, "cookies.seen"))
	require.NoError(t, err)
	assert.Equal(t, cookieJar, string(seen))
	assert.Eventually(t, func() bool { return f.cookieFiles(t) == 0 }, 5*time.Second, 20*time.Millisecond)
}

func TestDownload_SpawnFailure(t *testing.T) {
	f := newFixture(t)
	cfg := f.config()
	cfg.Relay.Binary = filepath.Join(f.dir, "missing-yt-dlp")
	srv, _ := newServer(t, cfg)

	body, err := json.Marshal(map[string]string{"url": "https://video.example/abc", "cookies": cookieJar})
	require.NoError(t, err)
	resp := postJSON(t, srv.URL+"/download", string(body))

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "Download failed", detail(t, resp))
	assert.Zero(t, f.cookieFiles(t))
}

func TestDownload_ClientDisconnectKillsChild(t *testing.T) {
	f := newFixture(t)
	srv, _ := newServer(t, f.config())

	body, err := json.Marshal(map[string]string{"url": "https://video.example/endless", "cookies": cookieJar})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, srv.URL+"/download", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	buf := make([]byte, 4096)
	_, err = io.ReadFull(resp.Body, buf)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(buf, []byte("ABCDE\n")))

	pidData, err := os.ReadFile(filepath.Join(f.dir, "pid"))
	require.NoError(t, err)
	pid, err := strconv.Atoi(strings.TrimSpace(string(pidData)))
	require.NoError(t, err)
	require.True(t, process.Alive(pid))

	cancel()
	resp.Body.Close()

	assert.Eventually(t, func() bool { return !process.Alive(pid) }, 5*time.Second, 20*time.Millisecond,
		"downloader still running after client disconnect")
	assert.Eventually(t, func() bool { return f.cookieFiles(t) == 0 }, 5*time.Second, 20*time.Millisecond,
		"cookie file left behind after client disconnect")
}

func TestDownload_ConcurrencyCap(t *testing.T) {
	f := newFixture(t)
	cfg := f.config()
	cfg.Relay.MaxConcurrent = 1
	srv, a := newServer(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, srv.URL+"/download",
		strings.NewReader(`{"url":"https://video.example/endless"}`))
	require.NoError(t, err)
	first, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, first.StatusCode)

	second := postJSON(t, srv.URL+"/download", `{"url":"https://video.example/abc"}`)
	assert.Equal(t, http.StatusServiceUnavailable, second.StatusCode)

	cancel()
	first.Body.Close()
	assert.Eventually(t, func() bool { return a.Relay.InFlight() == 0 }, 5*time.Second, 20*time.Millisecond)
}

func TestHealthAndMetrics(t *testing.T) {
	f := newFixture(t)
	srv, _ := newServer(t, f.config())

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	probe := postJSON(t, srv.URL+"/info", `{"url":"https://video.example/abc"}`)
	require.Equal(t, http.StatusOK, probe.StatusCode)

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	text, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(text), "youtube_downloader_backend_extractor_processed_total")
}

func TestHealth_MissingBinary(t *testing.T) {
	f := newFixture(t)
	cfg := f.config()
	cfg.Extractor.Binary = filepath.Join(f.dir, "nope")
	srv, _ := newServer(t, cfg)

	resp, err := http.Get(srv.URL + "/readyz")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestCORSPreflight(t *testing.T) {
	f := newFixture(t)
	srv, _ := newServer(t, f.config())

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/download", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "chrome-extension://abcdef")
	req.Header.Set("Access-Control-Request-Method", "POST")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "chrome-extension://abcdef", resp.Header.Get("Access-Control-Allow-Origin"))
	_, err = os.Stat(filepath.Join(f.dir, "args"))
	assert.True(t, os.IsNotExist(err), "preflight must not reach yt-dlp")
}
