package sheetid

import (
	"fmt"

	"github.com/hashicorp/go-hclog"
)

// Assignment records one identifier written during a pass.
type Assignment struct {
	Section string
	Ref     string
	OldName string
	NewName string
	ID      int
}

// Result summarizes one Apply pass.
type Result struct {
	// Changed is true when at least one row was renamed.
	Changed bool

	// MaxID is the largest identifier in use after the pass.
	MaxID int

	// Counter is the counter value after the pass. It is only written back
	// to the document when Changed is true.
	Counter int

	// Assignments lists every rename in encounter order.
	Assignments []Assignment
}

// TransformerConfig configures a Transformer.
type TransformerConfig struct {
	Codec  *IdentifierCodec
	Policy AllocationPolicy
	Logger hclog.Logger
}

// Transformer runs one full identifier pass over a document.
type Transformer struct {
	codec  *IdentifierCodec
	policy AllocationPolicy
	logger hclog.Logger
}

// NewTransformer creates a Transformer. A nil codec uses DefaultDigitWidth and
// a nil policy uses MonotonicAppend.
func NewTransformer(cfg TransformerConfig) *Transformer {
	if cfg.Codec == nil {
		cfg.Codec = MustIdentifierCodec(DefaultDigitWidth)
	}
	if cfg.Policy == nil {
		cfg.Policy = MonotonicAppend{}
	}
	if cfg.Logger == nil {
		cfg.Logger = hclog.NewNullLogger()
	}

	return &Transformer{
		codec:  cfg.Codec,
		policy: cfg.Policy,
		logger: cfg.Logger.Named("transform"),
	}
}

// Policy returns the configured allocation policy.
func (t *Transformer) Policy() AllocationPolicy {
	return t.policy
}

// Apply assigns identifiers to every unidentified row of doc. It is
// idempotent: applying it to its own output returns Changed == false and
// leaves the document untouched.
func (t *Transformer) Apply(doc Document) (*Result, error) {
	sections, err := doc.Sections()
	if err != nil {
		return nil, fmt.Errorf("failed to list sections: %w", err)
	}

	// Scan the entire document first so that allocation never hands out an
	// identifier held by a row in a section not yet visited.
	inUse := make(IDSet)
	for _, s := range sections {
		for _, row := range s.Rows {
			if !row.Text {
				continue
			}
			if id, ok := t.codec.Extract(row.Name); ok {
				inUse.Add(id)
			}
		}
	}

	persisted, err := ReadCounter(doc)
	if err != nil {
		return nil, err
	}
	counter := Reconcile(persisted, inUse.Max())

	t.logger.Debug("scanned document",
		"sections", len(sections),
		"identifiers", len(inUse),
		"persisted_counter", persisted,
		"counter", counter,
	)

	alloc := t.policy.NewAllocator(inUse, counter)
	seen := make(IDSet, len(inUse))
	maxID := inUse.Max()
	result := &Result{}

	for _, s := range sections {
		for _, row := range s.Rows {
			if !Assignable(row) {
				continue
			}

			if id, ok := t.codec.Extract(row.Name); ok {
				if !seen.Has(id) {
					seen.Add(id)
					continue
				}
				// A copied row carries an identifier already claimed
				// earlier in the scan; it gets a fresh one.
				t.logger.Debug("duplicate identifier", "section", s.Name, "ref", row.Ref, "id", id)
			}

			id := alloc.Next()
			oldName := row.Name
			newName, err := t.codec.Format(t.codec.Strip(oldName), id)
			if err != nil {
				// Only a wider digit width gets past this.
				return nil, &FormatError{Op: "assign identifier to " + s.Name + "!" + row.Ref, Err: err}
			}
			if err := doc.SetName(s.Name, row, newName); err != nil {
				return nil, fmt.Errorf("failed to rename %s!%s: %w", s.Name, row.Ref, err)
			}

			seen.Add(id)
			if id > maxID {
				maxID = id
			}
			result.Assignments = append(result.Assignments, Assignment{
				Section: s.Name,
				Ref:     row.Ref,
				OldName: oldName,
				NewName: newName,
				ID:      id,
			})
		}
	}

	result.Changed = len(result.Assignments) > 0
	result.MaxID = maxID
	result.Counter = counter

	if result.Changed {
		result.Counter = Reconcile(counter, maxID)
		if err := WriteCounter(doc, result.Counter); err != nil {
			return nil, err
		}
	}

	return result, nil
}
