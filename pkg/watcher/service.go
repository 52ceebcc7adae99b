package watcher

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"github.com/hashicorp-forge/sheetwatch/pkg/alert"
)

// ServiceConfig holds configuration for the sync service.
type ServiceConfig struct {
	Watcher *Watcher

	// Interval is the wait between cycles (default: 60s).
	Interval time.Duration

	// Wake ends a wait early, for example on a local file change.
	Wake <-chan struct{}

	// Notifier receives an alert once per authentication failure streak.
	Notifier alert.Notifier

	// MaxAuthBackoff caps the extra wait added after repeated
	// authentication failures (default: 15m).
	MaxAuthBackoff time.Duration

	Logger hclog.Logger
}

// Service polls a Watcher until stopped.
type Service struct {
	watcher     *Watcher
	interval    time.Duration
	wake        <-chan struct{}
	notifier    alert.Notifier
	authBackoff *backoff.ExponentialBackOff
	logger      hclog.Logger

	stopCh   chan struct{}
	stopOnce sync.Once

	mu      sync.RWMutex
	status  Status
	alerted bool
}

// NewService creates a sync service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Watcher == nil {
		return nil, fmt.Errorf("watcher is required")
	}
	if cfg.Interval == 0 {
		cfg.Interval = 60 * time.Second
	}
	if cfg.Interval < 0 {
		return nil, fmt.Errorf("interval must be positive, got %s", cfg.Interval)
	}
	if cfg.MaxAuthBackoff == 0 {
		cfg.MaxAuthBackoff = 15 * time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = hclog.NewNullLogger()
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = cfg.Interval
	bo.MaxInterval = cfg.MaxAuthBackoff
	bo.MaxElapsedTime = 0
	bo.Reset()

	return &Service{
		watcher:     cfg.Watcher,
		interval:    cfg.Interval,
		wake:        cfg.Wake,
		notifier:    cfg.Notifier,
		authBackoff: bo,
		logger:      cfg.Logger.Named("sync-service"),
		stopCh:      make(chan struct{}),
		status: Status{
			Store:  cfg.Watcher.Describe(),
			Policy: string(cfg.Watcher.Policy()),
		},
	}, nil
}

// Run checks the document immediately and then once per interval.
// Blocks until Stop() is called or ctx is cancelled. Cycle failures never end
// the loop.
func (s *Service) Run(ctx context.Context) error {
	s.logger.Info("watching document for changes",
		"store", s.status.Store,
		"interval", s.interval,
		"policy", s.status.Policy,
	)
	s.setRunning(true)
	defer s.setRunning(false)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sync service stopped by context")
			return ctx.Err()
		case <-s.stopCh:
			s.logger.Info("sync service stopped")
			return nil
		default:
		}

		wait := s.runCycle(ctx)
		if done, err := s.sleep(ctx, wait); done {
			return err
		}
	}
}

// sleep waits for d, a wake notification, Stop or cancellation. It reports
// whether Run should return, and with which error.
func (s *Service) sleep(ctx context.Context, d time.Duration) (bool, error) {
	timer := time.NewTimer(d)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sync service stopped by context")
			return true, ctx.Err()

		case <-s.stopCh:
			s.logger.Info("sync service stopped")
			return true, nil

		case _, ok := <-s.wake:
			if !ok {
				// Notifications ended; keep polling.
				s.wake = nil
				continue
			}
			s.logger.Debug("woken by change notification")
			return false, nil

		case <-timer.C:
			return false, nil
		}
	}
}

// Stop ends Run. It is safe to call more than once.
func (s *Service) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
}

// Status returns a snapshot of the sync status.
func (s *Service) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := s.status
	st.State = s.watcher.State().String()
	return st
}

// runCycle runs one check and returns how long to wait before the next one.
func (s *Service) runCycle(ctx context.Context) (wait time.Duration) {
	logger := s.logger.With("cycle_id", uuid.NewString())

	defer func() {
		if r := recover(); r != nil {
			logger.Error("recovered from panic in sync cycle", "panic", r, "stack", string(debug.Stack()))
			wait = s.recordFailure(ctx, logger, fmt.Errorf("panic in sync cycle: %v", r))
		}
	}()

	result, err := s.watcher.check(ctx, logger)
	if err != nil {
		return s.recordFailure(ctx, logger, err)
	}

	s.recordSuccess(result)
	return s.interval
}

func (s *Service) recordSuccess(result *CycleResult) {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.authBackoff.Reset()
	s.alerted = false

	s.status.Cycles++
	s.status.LastCheck = now
	s.status.LastSuccess = now
	s.status.LastError = ""
	s.status.LastErrorKind = KindNone
	s.status.ConsecutiveFailures = 0
	s.status.LastToken = string(result.Token)
	if result.Outcome != OutcomeUnchanged {
		s.status.LastMaxID = result.MaxID
		s.status.LastCounter = result.Counter
	}
	if result.Outcome == OutcomeUpdated {
		s.status.LastChange = now
	}
}

func (s *Service) recordFailure(ctx context.Context, logger hclog.Logger, err error) time.Duration {
	kind := Classify(err)
	if kind == KindCanceled {
		logger.Debug("sync cycle canceled")
		return s.interval
	}

	s.mu.Lock()
	s.status.Cycles++
	s.status.LastCheck = time.Now()
	s.status.LastError = err.Error()
	s.status.LastErrorKind = kind
	s.status.ConsecutiveFailures++
	failures := s.status.ConsecutiveFailures

	wait := s.interval
	sendAlert := false
	if kind == KindAuth {
		wait += s.authBackoff.NextBackOff()
		sendAlert = !s.alerted
		s.alerted = true
	}
	s.mu.Unlock()

	switch kind {
	case KindAuth:
		logger.Error("authentication failed, check credentials",
			"error", err,
			"consecutive_failures", failures,
			"next_check", wait,
		)
		if sendAlert {
			s.sendAlert(ctx, logger, err)
		}
	case KindTransient:
		logger.Warn("transient failure, retrying on next cycle", "error", err, "consecutive_failures", failures)
	case KindConflict:
		logger.Warn("document changed while assigning identifiers, retrying on next cycle", "error", err)
	case KindFormat:
		logger.Error("document could not be processed", "error", err, "consecutive_failures", failures)
	default:
		logger.Error("sync cycle failed", "error", err, "consecutive_failures", failures)
	}

	return wait
}

func (s *Service) sendAlert(ctx context.Context, logger hclog.Logger, err error) {
	if s.notifier == nil {
		return
	}

	alertCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	msg := &alert.Message{
		Title:    "sheetwatch: authentication failed",
		Body:     fmt.Sprintf("%s: %v", s.watcher.Describe(), err),
		Priority: alert.PriorityHigh,
		Tags:     []string{"warning", string(KindAuth)},
	}
	if nerr := s.notifier.Notify(alertCtx, msg); nerr != nil {
		logger.Error("failed to send alert", "notifier", s.notifier.Name(), "error", nerr)
		return
	}
	logger.Info("alert sent", "notifier", s.notifier.Name())
}

func (s *Service) setRunning(running bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.Running = running
}
