package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/colinkho/media-sub001/configure"
	"github.com/colinkho/media-sub001/format"
	"github.com/colinkho/media-sub001/internal/fixture"
	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type response struct {
	Status int             `json:"status"`
	Data   json.RawMessage `json:"data"`
}

func newServer(t *testing.T, maxFileSize int64) (*Server, *httptest.Server, string) {
	registry, err := format.NewDefault(format.MP4)
	require.NoError(t, err)
	root := t.TempDir()
	s := NewServer(registry, NewReportCache(time.Minute), maxFileSize, root)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts, root
}

func writeFile(t *testing.T, dir, name string, data []byte) string {
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

func get(t *testing.T, target string, header http.Header) (int, response) {
	req, err := http.NewRequest(http.MethodGet, target, nil)
	require.NoError(t, err)
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var res response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	return resp.StatusCode, res
}

func probeURL(ts *httptest.Server, path string) string {
	return ts.URL + "/probe?path=" + url.QueryEscape(path)
}

func motionPhoto() []byte {
	video := fixture.MP4(fixture.MP4Options{
		VideoSamples: fixture.NewVideoSamples(4, 2, 16),
		KeyInterval:  2,
	})
	return fixture.MotionPhoto(video, 100000)
}

func TestProbe(t *testing.T) {
	at := assert.New(t)
	s, ts, root := newServer(t, 0)
	path := writeFile(t, root, "PXL.MP.jpg", motionPhoto())

	code, res := get(t, probeURL(ts, path), nil)
	require.Equal(t, http.StatusOK, code)
	at.Equal(200, res.Status)

	var report format.Report
	require.NoError(t, json.Unmarshal(res.Data, &report))
	at.Equal(format.JPEG, report.Format)
	require.NotNil(t, report.MotionPhoto)
	at.EqualValues(100000, report.MotionPhoto.PhotoPresentationTimestampUs)
	at.Len(report.Tracks, 2)
	at.Equal(1, s.cache.Len())

	// same file again is served from cache
	code, res = get(t, probeURL(ts, path), nil)
	at.Equal(http.StatusOK, code)
	var cached format.Report
	require.NoError(t, json.Unmarshal(res.Data, &cached))
	at.Equal(report.Elapsed, cached.Elapsed)
	at.Equal(1, s.cache.Len())
}

func TestProbeErrors(t *testing.T) {
	_, ts, root := newServer(t, 1024)
	dir := filepath.Join(root, "album")
	large := writeFile(t, dir, "large.jpg", make([]byte, 2048))
	unknown := writeFile(t, dir, "notes.txt", []byte("plain text"))
	broken := writeFile(t, dir, "broken.mp4", append(fixture.Ftyp("isom"), 0x00, 0x00, 0x00, 0x04, 'f', 'r', 'e', 'e'))
	outside := writeFile(t, t.TempDir(), "secret.jpg", motionPhoto())

	tests := []struct {
		name   string
		target string
		want   int
	}{
		{"no path", ts.URL + "/probe", http.StatusBadRequest},
		{"missing", probeURL(ts, filepath.Join(dir, "missing.jpg")), http.StatusNotFound},
		{"directory", probeURL(ts, dir), http.StatusNotFound},
		{"too large", probeURL(ts, large), http.StatusRequestEntityTooLarge},
		{"unknown format", probeURL(ts, unknown), http.StatusUnsupportedMediaType},
		{"broken", probeURL(ts, broken), http.StatusInternalServerError},
		{"outside root", probeURL(ts, outside), http.StatusForbidden},
		{"escaping root", probeURL(ts, "album/../../secret.jpg"), http.StatusForbidden},
		{"missing outside root", probeURL(ts, "/etc/no-such-file"), http.StatusForbidden},
	}
	for _, tt := range tests {
		code, res := get(t, tt.target, nil)
		assert.Equal(t, tt.want, code, tt.name)
		assert.Equal(t, tt.want, res.Status, tt.name)
	}
}

func TestFormats(t *testing.T) {
	_, ts, _ := newServer(t, 0)
	code, res := get(t, ts.URL+"/formats", nil)
	require.Equal(t, http.StatusOK, code)
	var names []string
	require.NoError(t, json.Unmarshal(res.Data, &names))
	assert.Equal(t, []string{format.JPEG, format.MP4}, names)
}

func TestMetrics(t *testing.T) {
	_, ts, root := newServer(t, 0)
	path := writeFile(t, root, "PXL.MP.jpg", motionPhoto())
	get(t, probeURL(ts, path), nil)

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `livephoto_api_probes_total{format="jpeg",result="ok"}`)
	assert.Contains(t, string(body), "livephoto_api_request_duration_seconds")
}

func TestJWT(t *testing.T) {
	configure.Config.Set("jwt.secret", "testing")
	t.Cleanup(func() { configure.Config.Set("jwt.secret", "") })
	_, ts, _ := newServer(t, 0)

	code, res := get(t, ts.URL+"/formats", nil)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, 403, res.Status)

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "client"}).SignedString([]byte("testing"))
	require.NoError(t, err)
	code, _ = get(t, ts.URL+"/formats", http.Header{"Authorization": {"Bearer " + token}})
	assert.Equal(t, http.StatusOK, code)

	code, _ = get(t, ts.URL+"/formats?jwt="+token, nil)
	assert.Equal(t, http.StatusOK, code)

	// metrics stay reachable
	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestProbeRelativePath(t *testing.T) {
	_, ts, root := newServer(t, 0)
	writeFile(t, filepath.Join(root, "2024"), "PXL.MP.jpg", motionPhoto())
	code, res := get(t, probeURL(ts, "2024/PXL.MP.jpg"), nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, 200, res.Status)
}

func TestProbeSymlinkOutsideRoot(t *testing.T) {
	_, ts, root := newServer(t, 0)
	target := writeFile(t, t.TempDir(), "secret.jpg", motionPhoto())
	link := filepath.Join(root, "link.jpg")
	if err := os.Symlink(target, link); err != nil {
		t.Skip("symlinks unsupported: ", err)
	}
	code, _ := get(t, probeURL(ts, link), nil)
	assert.Equal(t, http.StatusForbidden, code)
}
