package publisher

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChuLiYu/murdock-reporter/internal/config"
	"github.com/ChuLiYu/murdock-reporter/pkg/types"
)

type captured struct {
	method string
	path   string
	auth   string
	body   map[string]json.RawMessage
}

func newSink(t *testing.T, code int) (*httptest.Server, func() []captured) {
	t.Helper()
	var (
		mu   sync.Mutex
		reqs []captured
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		var body map[string]json.RawMessage
		_ = json.Unmarshal(data, &body)
		mu.Lock()
		reqs = append(reqs, captured{method: r.Method, path: r.URL.Path, auth: r.Header.Get("Authorization"), body: body})
		mu.Unlock()
		w.WriteHeader(code)
	}))
	t.Cleanup(srv.Close)
	return srv, func() []captured {
		mu.Lock()
		defer mu.Unlock()
		return append([]captured(nil), reqs...)
	}
}

func sampleStatus() types.StatusUpdate {
	return types.StatusUpdate{
		Status:     types.StatusText("setting up build"),
		FailedJobs: []types.FailedJob{{Name: "static_tests", Href: "/output/static_tests.txt"}},
	}
}

func TestPublishPut(t *testing.T) {
	srv, requests := newSink(t, http.StatusOK)
	dump := filepath.Join(t.TempDir(), "prstatus.json")

	p, err := New(Options{
		Mode:     config.ModePut,
		URL:      srv.URL + "/jobs/running/{uid}/status",
		UID:      "abc123",
		Token:    "s3cret",
		DumpFile: dump,
		Logger:   zerolog.Nop(),
	})
	require.NoError(t, err)
	require.NoError(t, p.Publish(context.Background(), sampleStatus()))

	reqs := requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, http.MethodPut, reqs[0].method)
	assert.Equal(t, "/jobs/running/abc123/status", reqs[0].path)
	assert.Equal(t, "s3cret", reqs[0].auth)
	assert.JSONEq(t, `"abc123"`, string(reqs[0].body["uid"]))
	assert.JSONEq(t, `{"status":"setting up build","failed_jobs":[{"name":"static_tests","href":"/output/static_tests.txt"}]}`,
		string(reqs[0].body["status"]))

	data, err := os.ReadFile(dump)
	require.NoError(t, err)
	assert.JSONEq(t, string(reqs[0].body["status"]), string(data))
}

func TestPublishControl(t *testing.T) {
	srv, requests := newSink(t, http.StatusAccepted)

	p, err := New(Options{
		Mode:       config.ModeControl,
		ControlURL: srv.URL + "/control",
		UID:        "1234",
		Logger:     zerolog.Nop(),
	})
	require.NoError(t, err)
	require.NoError(t, p.Publish(context.Background(), sampleStatus()))

	reqs := requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, http.MethodPost, reqs[0].method)
	assert.Equal(t, "/control", reqs[0].path)
	assert.Empty(t, reqs[0].auth)
	assert.JSONEq(t, `"prstatus"`, string(reqs[0].body["cmd"]))
	assert.JSONEq(t, `"1234"`, string(reqs[0].body["prnum"]))
}

func TestPublishUnexpectedStatus(t *testing.T) {
	srv, _ := newSink(t, http.StatusForbidden)
	p, err := New(Options{URL: srv.URL + "/{uid}", UID: "x", Logger: zerolog.Nop()})
	require.NoError(t, err)

	err = p.Publish(context.Background(), sampleStatus())
	assert.ErrorIs(t, err, ErrUnexpectedStatus)
}

func TestPublishUnreachable(t *testing.T) {
	srv, _ := newSink(t, http.StatusOK)
	url := srv.URL
	srv.Close()

	p, err := New(Options{URL: url + "/{uid}", UID: "x", Timeout: time.Second, Logger: zerolog.Nop()})
	require.NoError(t, err)
	assert.Error(t, p.Publish(context.Background(), sampleStatus()))
}

func TestNewValidation(t *testing.T) {
	_, err := New(Options{Mode: "carrier-pigeon", URL: "http://x"})
	assert.ErrorIs(t, err, ErrUnknownMode)

	_, err = New(Options{Mode: config.ModePut})
	assert.Error(t, err)

	_, err = New(Options{Mode: config.ModeControl})
	assert.Error(t, err)
}

func TestEndpointEscapesUID(t *testing.T) {
	p, err := New(Options{URL: "http://ci/jobs/running/{uid}/status", UID: "a b"})
	require.NoError(t, err)
	assert.Equal(t, "http://ci/jobs/running/a%20b/status", p.Endpoint())
}

func TestFromConfig(t *testing.T) {
	cfg := config.Default().Status
	p, err := FromConfig(cfg, "42", "tok", zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8000/jobs/running/42/status", p.Endpoint())
}

// ============================================================================
// RateLimiter
// ============================================================================

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func TestRateLimiter(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	rl := NewRateLimiter(500 * time.Millisecond)
	rl.Now = clock.Now

	assert.True(t, rl.Allow(), "first publish is always admitted")
	assert.False(t, rl.Allow())

	clock.Advance(499 * time.Millisecond)
	assert.False(t, rl.Allow())

	clock.Advance(time.Millisecond)
	assert.True(t, rl.Allow())

	clock.Advance(100 * time.Millisecond)
	assert.False(t, rl.Allow())

	rl.Reset()
	assert.True(t, rl.Allow())
}

func TestRateLimiterDefaultInterval(t *testing.T) {
	rl := NewRateLimiter(0)
	assert.Equal(t, DefaultInterval, rl.Interval)
}

func TestFunc(t *testing.T) {
	var got types.StatusUpdate
	var p Publisher = Func(func(_ context.Context, s types.StatusUpdate) error {
		got = s
		return nil
	})
	require.NoError(t, p.Publish(context.Background(), sampleStatus()))
	assert.Equal(t, sampleStatus().FailedJobs, got.FailedJobs)
}
