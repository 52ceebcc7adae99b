// Package watcher detects changes to a remote workbook and assigns
// identifiers to new rows.
//
// A Watcher runs one check cycle at a time:
//
//	Idle -> Checking -> Unchanged
//	                 -> Fetching -> Transforming -> NoOp
//	                                             -> Persisting
//
// and returns to Idle. A Service drives a Watcher on an interval, classifies
// failures and exposes the sync status.
package watcher

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/hashicorp/go-hclog"

	"github.com/hashicorp-forge/sheetwatch/pkg/sheetid"
	"github.com/hashicorp-forge/sheetwatch/pkg/store"
)

// State is the phase of the check cycle in progress.
type State int32

const (
	StateIdle State = iota
	StateChecking
	StateFetching
	StateTransforming
	StatePersisting
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateChecking:
		return "checking"
	case StateFetching:
		return "fetching"
	case StateTransforming:
		return "transforming"
	case StatePersisting:
		return "persisting"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Outcome is how a successful cycle ended.
type Outcome string

const (
	// OutcomeUnchanged means the version token matched the last one seen.
	OutcomeUnchanged Outcome = "unchanged"

	// OutcomeNoOp means the document changed but every row already had an
	// identifier.
	OutcomeNoOp Outcome = "no-op"

	// OutcomeUpdated means identifiers were assigned and the document was
	// written back.
	OutcomeUpdated Outcome = "updated"
)

// CycleResult describes one successful check.
type CycleResult struct {
	Outcome  Outcome
	Token    store.VersionToken
	Assigned []sheetid.Assignment
	MaxID    int
	Counter  int
}

// Config contains configuration for a Watcher.
type Config struct {
	Store       store.DocumentStore
	Codec       sheetid.DocumentCodec
	Transformer *sheetid.Transformer

	// DisableVerify skips re-reading the version token before a write.
	DisableVerify bool

	Logger hclog.Logger
}

// Watcher holds the last-seen version token of one document.
type Watcher struct {
	store       store.DocumentStore
	codec       sheetid.DocumentCodec
	transformer *sheetid.Transformer
	verify      bool
	logger      hclog.Logger

	// mu serializes cycles so a document is never transformed concurrently.
	mu       sync.Mutex
	lastSeen store.VersionToken
	state    atomic.Int32
}

// New creates a Watcher.
func New(cfg Config) (*Watcher, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if cfg.Codec == nil {
		return nil, fmt.Errorf("codec is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = hclog.NewNullLogger()
	}
	if cfg.Transformer == nil {
		cfg.Transformer = sheetid.NewTransformer(sheetid.TransformerConfig{Logger: cfg.Logger})
	}

	return &Watcher{
		store:       cfg.Store,
		codec:       cfg.Codec,
		transformer: cfg.Transformer,
		verify:      !cfg.DisableVerify,
		logger:      cfg.Logger.Named("watcher"),
	}, nil
}

// State returns the phase of the cycle in progress.
func (w *Watcher) State() State {
	return State(w.state.Load())
}

// LastSeen returns the version token of the last processed revision.
func (w *Watcher) LastSeen() store.VersionToken {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastSeen
}

// Describe returns the watched document's locator.
func (w *Watcher) Describe() string {
	return store.Describe(w.store)
}

// Policy returns the allocation policy used for new identifiers.
func (w *Watcher) Policy() sheetid.PolicyName {
	return w.transformer.Policy().Name()
}

// Check runs one cycle.
func (w *Watcher) Check(ctx context.Context) (*CycleResult, error) {
	return w.check(ctx, w.logger)
}

func (w *Watcher) check(ctx context.Context, logger hclog.Logger) (*CycleResult, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	defer w.setState(StateIdle)

	w.setState(StateChecking)
	token, err := w.store.FetchMetadata(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch metadata: %w", err)
	}
	if w.lastSeen != "" && token == w.lastSeen {
		logger.Trace("no change detected", "token", token)
		return &CycleResult{Outcome: OutcomeUnchanged, Token: token}, nil
	}
	logger.Debug("change detected", "previous", w.lastSeen, "token", token)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	w.setState(StateFetching)
	data, err := w.store.FetchContent(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch content: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	w.setState(StateTransforming)
	doc, err := w.codec.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}
	if c, ok := doc.(io.Closer); ok {
		defer c.Close()
	}

	result, err := w.transformer.Apply(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to assign identifiers: %w", err)
	}

	cycle := &CycleResult{
		Token:    token,
		Assigned: result.Assignments,
		MaxID:    result.MaxID,
		Counter:  result.Counter,
	}

	if !result.Changed {
		logger.Info("no new rows", "max_id", result.MaxID)
		w.lastSeen = token
		cycle.Outcome = OutcomeNoOp
		return cycle, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	w.setState(StatePersisting)
	if w.verify {
		current, err := w.store.FetchMetadata(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to verify version before write: %w", err)
		}
		if current != token {
			return nil, &store.ConflictError{Expected: token, Actual: current}
		}
	}

	out, err := w.codec.Encode(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	written, err := w.store.StoreContent(ctx, out)
	if err != nil {
		return nil, fmt.Errorf("failed to store content: %w", err)
	}
	if written == "" {
		written = token
	}

	w.lastSeen = written
	cycle.Outcome = OutcomeUpdated
	cycle.Token = written

	last := result.Assignments[len(result.Assignments)-1]
	logger.Info("IDs assigned",
		"count", len(result.Assignments),
		"last_id", last.NewName,
		"counter", result.Counter,
	)
	for _, a := range result.Assignments {
		logger.Debug("assigned identifier", "section", a.Section, "cell", a.Ref, "old", a.OldName, "new", a.NewName)
	}

	return cycle, nil
}

func (w *Watcher) setState(s State) {
	w.state.Store(int32(s))
}
