package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"iter"
	"mime"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/fooocanvas/internal/fooocus"
	"github.com/example/fooocanvas/internal/resolution"
)

type fakeGenerator struct {
	got     fooocus.Request
	updates []fooocus.Update
	err     error
}

func (f *fakeGenerator) Generate(_ context.Context, req fooocus.Request) iter.Seq2[fooocus.Update, error] {
	f.got = req
	return func(yield func(fooocus.Update, error) bool) {
		for _, u := range f.updates {
			if !yield(u, nil) {
				return
			}
		}
		if f.err != nil {
			yield(fooocus.Update{}, f.err)
		}
	}
}

func setupTestRouter(t *testing.T, gen Generator, upstream string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	s, err := New(Options{Generator: gen, Upstream: upstream})
	require.NoError(t, err)
	return s.Router()
}

func TestNewValidates(t *testing.T) {
	_, err := New(Options{Upstream: "http://x"})
	assert.Error(t, err)
	_, err = New(Options{Generator: &fakeGenerator{}, Upstream: "localhost:7865"})
	assert.Error(t, err)
}

func TestResolutionEndpoints(t *testing.T) {
	router := setupTestRouter(t, &fakeGenerator{}, "http://127.0.0.1:7865")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/resolution?w=1920&h=1080", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var res resolution.Resolution
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, 1344, res.W)
	assert.Equal(t, 768, res.H)

	for _, q := range []string{"w=0&h=10", "w=abc&h=1", "h=5"} {
		w = httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/resolution?"+q, nil))
		assert.Equal(t, http.StatusBadRequest, w.Code, q)
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/resolutions", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var all []resolution.Resolution
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &all))
	assert.Equal(t, resolution.Catalog(), all)
}

func postGenerate(t *testing.T, router *gin.Engine, body any) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/generate", bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestGenerateStreamsEvents(t *testing.T) {
	gen := &fakeGenerator{updates: []fooocus.Update{
		{Status: "Loading models"},
		{Image: "data:image/png;base64,AAAA"},
	}}
	router := setupTestRouter(t, gen, "http://127.0.0.1:7865")

	w := postGenerate(t, router, gin.H{
		"prompt": "a red fox", "width": 300, "height": 300,
		"inpaint": gin.H{"image": "data:image/png;base64,I", "mask": "data:image/png;base64,M"},
	})
	require.Equal(t, http.StatusOK, w.Code)
	mediaType, _, err := mime.ParseMediaType(w.Header().Get("Content-Type"))
	require.NoError(t, err)
	assert.Equal(t, "text/event-stream", mediaType)

	body := w.Body.String()
	status := strings.Index(body, "event:status")
	image := strings.Index(body, "event:image")
	require.GreaterOrEqual(t, status, 0, body)
	require.Greater(t, image, status, body)
	assert.Contains(t, body, "Loading models")
	assert.Contains(t, body, "data:image/png;base64,AAAA")

	assert.Equal(t, "a red fox", gen.got.Prompt)
	assert.Equal(t, 1024, gen.got.Resolution.W)
	require.NotNil(t, gen.got.Inpaint)
	assert.Equal(t, "data:image/png;base64,M", gen.got.Inpaint.Mask)
}

func TestGenerateErrorEvent(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("queue full")}
	router := setupTestRouter(t, gen, "http://127.0.0.1:7865")

	w := postGenerate(t, router, gin.H{"prompt": "x", "width": 10, "height": 20})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "event:error")
	assert.Contains(t, w.Body.String(), "queue full")
	assert.Nil(t, gen.got.Inpaint)
}

func TestGenerateReportsToSentry(t *testing.T) {
	var (
		mu     sync.Mutex
		events []*sentry.Event
	)
	client, err := sentry.NewClient(sentry.ClientOptions{
		BeforeSend: func(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
			mu.Lock()
			events = append(events, event)
			mu.Unlock()
			return nil
		},
	})
	require.NoError(t, err)
	hub := sentry.CurrentHub()
	previous := hub.Client()
	hub.BindClient(client)
	t.Cleanup(func() { hub.BindClient(previous) })

	gin.SetMode(gin.TestMode)
	s, err := New(Options{
		Generator:    &fakeGenerator{err: errors.New("CUDA out of memory")},
		Upstream:     "http://127.0.0.1:7865",
		ReportErrors: true,
	})
	require.NoError(t, err)

	w := postGenerate(t, s.Router(), gin.H{"prompt": "x", "width": 1024, "height": 1024})
	require.Equal(t, http.StatusOK, w.Code)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, events, 1)
	assert.Equal(t, "1024x1024 (1:1)", events[0].Tags["resolution"])
	assert.Equal(t, "false", events[0].Tags["inpaint"])
	require.NotEmpty(t, events[0].Exception)
	assert.Equal(t, "CUDA out of memory", events[0].Exception[0].Value)
}

func TestGenerateRejectsBadBody(t *testing.T) {
	router := setupTestRouter(t, &fakeGenerator{}, "http://127.0.0.1:7865")
	for _, body := range []gin.H{
		{"width": 10, "height": 10},
		{"prompt": "x", "width": 0, "height": 10},
		{"prompt": "x", "width": 10, "height": -1},
	} {
		w := postGenerate(t, router, body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
	}
}

func TestProxyStripsPrefix(t *testing.T) {
	var gotPath, gotQuery string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		_, _ = io.WriteString(w, "upstream says hi")
	}))
	defer upstream.Close()

	srv := httptest.NewServer(setupTestRouter(t, &fakeGenerator{}, upstream.URL))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/fooocus/file=/tmp/out.png?x=1")
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "upstream says hi", string(b))
	assert.Equal(t, "/file=/tmp/out.png", gotPath)
	assert.Equal(t, "x=1", gotQuery)
}

func TestProxyUpstreamDown(t *testing.T) {
	upstream := httptest.NewServer(http.NotFoundHandler())
	addr := upstream.URL
	upstream.Close()

	srv := httptest.NewServer(setupTestRouter(t, &fakeGenerator{}, addr))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/fooocus/config")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}
