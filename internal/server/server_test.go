package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/texbuilder/internal/batch"
	"git.home.luguber.info/inful/texbuilder/internal/compile"
	"git.home.luguber.info/inful/texbuilder/internal/metrics"
)

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealth(t *testing.T) {
	s := New("127.0.0.1:0", NewStatus(), nil, nil)

	rec := get(t, s.Handler(), "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body.Status)
	assert.GreaterOrEqual(t, body.Uptime, 0.0)
}

func TestHealth_RejectsPost(t *testing.T) {
	s := New("127.0.0.1:0", NewStatus(), nil, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/healthz", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "GET, HEAD", rec.Header().Get("Allow"))
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "validation", body.Category)
}

func TestStatus_TracksRuns(t *testing.T) {
	status := NewStatus()
	s := New("127.0.0.1:0", status, nil, nil)
	ctx := context.Background()
	run := batch.Run{ID: "run-1", Started: time.Now(), Variants: []compile.Variant{compile.Student}, Mode: compile.Deep}

	status.EntryDone(ctx, run, batch.Entry{Path: "a.tex"})
	status.EntryDone(ctx, run, batch.Entry{Path: "b.tex", Err: errors.New("unreadable")})

	var body StatusResponse
	require.NoError(t, json.Unmarshal(get(t, s.Handler(), "/status").Body.Bytes(), &body))
	assert.Equal(t, 0, body.Runs)
	require.NotNil(t, body.Current)
	assert.Equal(t, "run-1", body.Current.ID)
	assert.Equal(t, "deep", body.Current.Mode)
	assert.Equal(t, []string{"student"}, body.Current.Variants)
	assert.Equal(t, 2, body.Current.Done)
	assert.Equal(t, 1, body.Current.Failed)
	assert.Nil(t, body.Last)

	status.RunDone(ctx, run, []batch.Entry{{Path: "a.tex"}, {Path: "b.tex", Err: errors.New("unreadable")}})

	body = StatusResponse{}
	require.NoError(t, json.Unmarshal(get(t, s.Handler(), "/status").Body.Bytes(), &body))
	assert.Equal(t, 1, body.Runs)
	assert.Nil(t, body.Current)
	require.NotNil(t, body.Last)
	assert.Equal(t, 2, body.Last.Done)
	assert.Equal(t, 1, body.Last.Failed)
	assert.NotNil(t, body.Last.Finished)
}

func TestMetrics(t *testing.T) {
	recorder := metrics.NewPrometheusRecorder(prom.NewRegistry())
	recorder.IncBatchOutcome("success")
	s := New("127.0.0.1:0", NewStatus(), recorder.Registry(), nil)

	rec := get(t, s.Handler(), "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "texbuilder_")

	withoutRegistry := New("127.0.0.1:0", NewStatus(), nil, nil)
	assert.Equal(t, http.StatusNotFound, get(t, withoutRegistry.Handler(), "/metrics").Code)
}

func TestRecoversFromPanics(t *testing.T) {
	h := chain(slog.New(slog.DiscardHandler), http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := get(t, h, "/anything")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "internal server error")
}

func TestStartAndShutdown(t *testing.T) {
	s := New("127.0.0.1:0", NewStatus(), nil, nil)
	require.NoError(t, s.Start(context.Background()))

	resp, err := http.Get("http://" + s.Addr() + "/healthz")
	require.NoError(t, err)
	_, _ = io.Copy(io.Discard, resp.Body)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))
}

func TestStart_AddressInUse(t *testing.T) {
	first := New("127.0.0.1:0", NewStatus(), nil, nil)
	require.NoError(t, first.Start(context.Background()))
	defer func() { _ = first.Shutdown(context.Background()) }()

	second := New(first.Addr(), NewStatus(), nil, nil)
	err := second.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot listen")
}
