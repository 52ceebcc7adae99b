package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hashicorp-forge/sheetwatch/pkg/watcher"
)

type staticStatus watcher.Status

func (s staticStatus) Status() watcher.Status { return watcher.Status(s) }

func TestRootHandler(t *testing.T) {
	mux := NewMux(Server{})

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "sheetwatch is running", rr.Body.String())
	assert.Contains(t, rr.Header().Get("Content-Type"), "text/plain")

	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestHealthHandler(t *testing.T) {
	rr := httptest.NewRecorder()
	NewMux(Server{}).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"health":"ok"}`, rr.Body.String())
}

func TestHealthHandler_IgnoresSyncFailures(t *testing.T) {
	srv := Server{Status: staticStatus{ConsecutiveFailures: 5, LastErrorKind: watcher.KindAuth}}

	rr := httptest.NewRecorder()
	NewMux(srv).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestStatusHandler(t *testing.T) {
	srv := Server{Status: staticStatus{
		Running:             true,
		Store:               "file:/tmp/book.xlsx",
		Cycles:              3,
		ConsecutiveFailures: 1,
		LastErrorKind:       watcher.KindTransient,
		LastMaxID:           12,
	}}

	rr := httptest.NewRecorder()
	NewMux(srv).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/status", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var got watcher.Status
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.True(t, got.Running)
	assert.Equal(t, "file:/tmp/book.xlsx", got.Store)
	assert.Equal(t, uint64(3), got.Cycles)
	assert.Equal(t, watcher.KindTransient, got.LastErrorKind)
	assert.Equal(t, 12, got.LastMaxID)
}

func TestStatusHandler_NotConfigured(t *testing.T) {
	rr := httptest.NewRecorder()
	NewMux(Server{}).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/status", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestListenAndServe_ShutsDownOnCancel(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- ListenAndServe(ctx, addr, NewMux(Server{}), time.Second, nil)
	}()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
