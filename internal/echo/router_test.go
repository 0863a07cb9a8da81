package echo

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	router := NewRouter(Options{Logger: zaptest.NewLogger(t)})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, body []byte) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, sonic.Unmarshal(body, &out))
	return out
}

func TestGetEchoesHeadersAndArgs(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/get?a=1", nil)
	req.Header.Set("User-Agent", "X")

	w := serve(t, req)
	require.Equal(t, http.StatusOK, w.Code)

	out := decode(t, w.Body.Bytes())
	assert.Equal(t, "X", out["headers"].(map[string]interface{})["User-Agent"])
	assert.Equal(t, "1", out["args"].(map[string]interface{})["a"])
	assert.Equal(t, http.MethodGet, out["method"])
}

func TestPostJSONBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/post", strings.NewReader(`{"a":1}`))
	req.Header.Set("Content-Type", "application/json")

	out := decode(t, serve(t, req).Body.Bytes())
	assert.Equal(t, `{"a":1}`, out["data"])
	assert.Equal(t, map[string]interface{}{"a": float64(1)}, out["json"])
}

func TestPostMultipart(t *testing.T) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("name", "value"))
	fw, err := mw.CreateFormFile("upload", "a.txt")
	require.NoError(t, err)
	_, err = fw.Write([]byte("file contents"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/post", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	out := decode(t, serve(t, req).Body.Bytes())
	assert.Equal(t, "value", out["form"].(map[string]interface{})["name"])
	assert.Equal(t, "file contents", out["files"].(map[string]interface{})["upload"])
}

func TestPostURLEncoded(t *testing.T) {
	req := httptest.NewRequest(http.MethodPut, "/put", strings.NewReader("a=1&b=2"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	out := decode(t, serve(t, req).Body.Bytes())
	assert.Equal(t, map[string]interface{}{"a": "1", "b": "2"}, out["form"])
}

func TestStatus(t *testing.T) {
	w := serve(t, httptest.NewRequest(http.MethodGet, "/status/418", nil))
	assert.Equal(t, http.StatusTeapot, w.Code)

	w = serve(t, httptest.NewRequest(http.MethodGet, "/status/abc", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRedirectChain(t *testing.T) {
	w := serve(t, httptest.NewRequest(http.MethodGet, "/redirect/3", nil))
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/redirect/2", w.Header().Get("Location"))

	w = serve(t, httptest.NewRequest(http.MethodGet, "/redirect/1", nil))
	assert.Equal(t, "/get", w.Header().Get("Location"))
}

func TestRedirectTo(t *testing.T) {
	w := serve(t, httptest.NewRequest(http.MethodGet, "/redirect-to?url=/headers&status_code=301", nil))
	assert.Equal(t, http.StatusMovedPermanently, w.Code)
	assert.Equal(t, "/headers", w.Header().Get("Location"))
}

func TestResponseHeaders(t *testing.T) {
	w := serve(t, httptest.NewRequest(http.MethodGet, "/response-headers?X-Custom=yes", nil))
	assert.Equal(t, "yes", w.Header().Get("X-Custom"))
}

func TestBytes(t *testing.T) {
	w := serve(t, httptest.NewRequest(http.MethodGet, "/bytes/16", nil))
	assert.Equal(t, 16, w.Body.Len())
}

func TestCookies(t *testing.T) {
	w := serve(t, httptest.NewRequest(http.MethodGet, "/cookies/set?k=v", nil))
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Contains(t, w.Header().Get("Set-Cookie"), "k=v")

	req := httptest.NewRequest(http.MethodGet, "/cookies", nil)
	req.AddCookie(&http.Cookie{Name: "k", Value: "v"})
	out := decode(t, serve(t, req).Body.Bytes())
	assert.Equal(t, map[string]interface{}{"k": "v"}, out["cookies"])
}

func TestEncodedResponses(t *testing.T) {
	w := serve(t, httptest.NewRequest(http.MethodGet, "/gzip", nil))
	require.Equal(t, "gzip", w.Header().Get("Content-Encoding"))
	zr, err := gzip.NewReader(w.Body)
	require.NoError(t, err)
	raw, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Equal(t, true, decode(t, raw)["gzipped"])

	w = serve(t, httptest.NewRequest(http.MethodGet, "/zstd", nil))
	require.Equal(t, "zstd", w.Header().Get("Content-Encoding"))
	dec, err := zstd.NewReader(w.Body)
	require.NoError(t, err)
	defer dec.Close()
	raw, err = io.ReadAll(dec)
	require.NoError(t, err)
	assert.Equal(t, true, decode(t, raw)["zstd"])
}

func TestMetricsRoute(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "echo_test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Inc()

	router := NewRouter(Options{Gatherer: reg})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "echo_test_total 1")

	w = serve(t, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServeShutsDownOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Serve(ctx, ln, NewRouter(Options{}), zaptest.NewLogger(t))
	}()

	resp, err := http.Get("http://" + ln.Addr().String() + "/get")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
