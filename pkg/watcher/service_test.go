package watcher

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hashicorp-forge/sheetwatch/pkg/alert"
	"github.com/hashicorp-forge/sheetwatch/pkg/sheetid"
	"github.com/hashicorp-forge/sheetwatch/pkg/store"
)

type recordingNotifier struct {
	mu       sync.Mutex
	messages []*alert.Message
}

func (n *recordingNotifier) Name() string { return "recording" }

func (n *recordingNotifier) Notify(_ context.Context, msg *alert.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, msg)
	return nil
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.messages)
}

func newTestService(t *testing.T, fs *fakeStore, cfg ServiceConfig) *Service {
	t.Helper()
	cfg.Watcher = newTestWatcher(t, fs)
	s, err := NewService(cfg)
	require.NoError(t, err)
	return s
}

func TestNewService_Validation(t *testing.T) {
	_, err := NewService(ServiceConfig{})
	assert.Error(t, err)

	fs := newFakeStore(t, sheetid.NewMemoryDocument(""))
	_, err = NewService(ServiceConfig{Watcher: newTestWatcher(t, fs), Interval: -time.Second})
	assert.Error(t, err)
}

func TestService_RunAndStop(t *testing.T) {
	fs := newFakeStore(t, sheetid.NewMemoryDocument("",
		sheetid.TextSection("Projects", "Acme"),
	))
	s := newTestService(t, fs, ServiceConfig{Interval: time.Hour})

	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(context.Background()) }()

	require.Eventually(t, func() bool {
		return s.Status().Cycles == 1
	}, 5*time.Second, 10*time.Millisecond)

	st := s.Status()
	assert.True(t, st.Running)
	assert.Equal(t, "fake", st.Store)
	assert.Equal(t, string(sheetid.PolicyMonotonicAppend), st.Policy)
	assert.Equal(t, 1, st.LastMaxID)
	assert.False(t, st.LastChange.IsZero())
	assert.True(t, st.Healthy())

	s.Stop()
	s.Stop()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after Stop")
	}
	assert.False(t, s.Status().Running)
}

func TestService_RunContextCanceled(t *testing.T) {
	fs := newFakeStore(t, sheetid.NewMemoryDocument(""))
	s := newTestService(t, fs, ServiceConfig{Interval: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(ctx) }()

	require.Eventually(t, func() bool {
		return s.Status().Cycles == 1
	}, 5*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestService_WakeRunsCycleEarly(t *testing.T) {
	fs := newFakeStore(t, sheetid.NewMemoryDocument("",
		sheetid.TextSection("Projects", "Acme"),
	))
	wake := make(chan struct{}, 1)
	s := newTestService(t, fs, ServiceConfig{Interval: time.Hour, Wake: wake})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = s.Run(ctx) }()

	require.Eventually(t, func() bool {
		return s.Status().Cycles == 1
	}, 5*time.Second, 10*time.Millisecond)

	// Someone adds a row.
	doc := fs.document(t)
	doc.SectionList[0].Rows = append(doc.SectionList[0].Rows, &sheetid.Row{Ref: "B3", Name: "Globex", Text: true})
	data, err := json.Marshal(doc)
	require.NoError(t, err)
	fs.mu.Lock()
	fs.content = data
	fs.version++
	fs.mu.Unlock()

	wake <- struct{}{}

	require.Eventually(t, func() bool {
		return s.Status().Cycles == 2
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"Acme_0001", "Globex_0002"}, fs.document(t).Names("Projects"))
}

func TestService_AuthFailureAlertsOncePerStreak(t *testing.T) {
	fs := newFakeStore(t, sheetid.NewMemoryDocument(""))
	fs.metaErr = &store.AuthenticationError{Op: "get item", Err: errors.New("invalid_client")}
	notifier := &recordingNotifier{}
	s := newTestService(t, fs, ServiceConfig{
		Interval:       time.Second,
		MaxAuthBackoff: 4 * time.Second,
		Notifier:       notifier,
	})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		wait := s.runCycle(ctx)
		assert.Greater(t, wait, time.Second)
		// Randomized backoff never exceeds 1.5x the cap.
		assert.LessOrEqual(t, wait, 7*time.Second)
	}
	assert.Equal(t, 1, notifier.count())

	st := s.Status()
	assert.Equal(t, 3, st.ConsecutiveFailures)
	assert.Equal(t, KindAuth, st.LastErrorKind)
	assert.False(t, st.Healthy())

	// Recovery ends the streak.
	fs.mu.Lock()
	fs.metaErr = nil
	fs.mu.Unlock()
	assert.Equal(t, time.Second, s.runCycle(ctx))
	assert.Equal(t, 0, s.Status().ConsecutiveFailures)

	fs.mu.Lock()
	fs.metaErr = &store.AuthenticationError{Op: "get item", Err: errors.New("invalid_client")}
	fs.mu.Unlock()
	s.runCycle(ctx)
	assert.Equal(t, 2, notifier.count())
}

func TestService_TransientFailureKeepsCadence(t *testing.T) {
	fs := newFakeStore(t, sheetid.NewMemoryDocument(""))
	fs.metaErr = &store.TransientError{Op: "get item", StatusCode: 503, Err: errors.New("unavailable")}
	notifier := &recordingNotifier{}
	s := newTestService(t, fs, ServiceConfig{Interval: time.Second, Notifier: notifier})

	assert.Equal(t, time.Second, s.runCycle(context.Background()))
	assert.Equal(t, 0, notifier.count())
	assert.Equal(t, KindTransient, s.Status().LastErrorKind)
}

func TestService_RecoversFromPanic(t *testing.T) {
	fs := newFakeStore(t, sheetid.NewMemoryDocument(""))
	fs.panicOnMeta = true
	s := newTestService(t, fs, ServiceConfig{Interval: time.Second})

	assert.NotPanics(t, func() {
		assert.Equal(t, time.Second, s.runCycle(context.Background()))
	})

	st := s.Status()
	assert.Equal(t, KindUnknown, st.LastErrorKind)
	assert.Contains(t, st.LastError, "metadata exploded")
	assert.Equal(t, StateIdle.String(), st.State)
}
