package alert

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewNtfyNotifier_RequiresTopic(t *testing.T) {
	_, err := NewNtfyNotifier(NtfyConfig{})
	assert.Error(t, err)
}

func TestNtfyNotifier_Notify(t *testing.T) {
	var (
		gotPath, gotTitle, gotPriority, gotTags, gotBody string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotTitle = r.Header.Get("Title")
		gotPriority = r.Header.Get("Priority")
		gotTags = r.Header.Get("Tags")
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n, err := NewNtfyNotifier(NtfyConfig{ServerURL: srv.URL + "/", Topic: "sheets"})
	require.NoError(t, err)

	err = n.Notify(context.Background(), &Message{
		Title:    "credentials rejected",
		Body:     "graph:drive/item",
		Priority: PriorityHigh,
		Tags:     []string{"warning", "auth"},
	})
	require.NoError(t, err)

	assert.Equal(t, "/sheets", gotPath)
	assert.Equal(t, "credentials rejected", gotTitle)
	assert.Equal(t, "5", gotPriority)
	assert.Equal(t, "warning,auth", gotTags)
	assert.Equal(t, "graph:drive/item", gotBody)
}

func TestNtfyNotifier_RetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n, err := NewNtfyNotifier(NtfyConfig{ServerURL: srv.URL, Topic: "sheets"})
	require.NoError(t, err)

	require.NoError(t, n.Notify(context.Background(), &Message{Title: "t"}))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestNtfyNotifier_PermanentFailure(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	n, err := NewNtfyNotifier(NtfyConfig{ServerURL: srv.URL, Topic: "sheets"})
	require.NoError(t, err)

	err = n.Notify(context.Background(), &Message{Title: "t"})
	require.Error(t, err)

	var notifierErr *NotifierError
	require.True(t, errors.As(err, &notifierErr))
	assert.False(t, notifierErr.Retryable)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestLogNotifier(t *testing.T) {
	n := NewLogNotifier(nil)
	assert.Equal(t, "log", n.Name())
	assert.NoError(t, n.Notify(context.Background(), &Message{Title: "t"}))
}
