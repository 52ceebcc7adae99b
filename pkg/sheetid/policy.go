package sheetid

import (
	"fmt"
	"strings"

	"github.com/iancoleman/strcase"
)

// PolicyName identifies an allocation strategy in configuration.
type PolicyName string

const (
	PolicyMonotonicAppend PolicyName = "monotonic-append"
	PolicyLowestGapFill   PolicyName = "lowest-gap-fill"
)

// IDSet is a set of identifiers currently present in a document.
type IDSet map[int]struct{}

// Add inserts id into the set.
func (s IDSet) Add(id int) {
	s[id] = struct{}{}
}

// Has reports whether id is in the set.
func (s IDSet) Has(id int) bool {
	_, ok := s[id]
	return ok
}

// Max returns the largest identifier in the set, or 0 when it is empty.
func (s IDSet) Max() int {
	max := 0
	for id := range s {
		if id > max {
			max = id
		}
	}
	return max
}

// Clone returns a copy of the set.
func (s IDSet) Clone() IDSet {
	out := make(IDSet, len(s))
	for id := range s {
		out[id] = struct{}{}
	}
	return out
}

// Allocator hands out identifiers for one transform pass.
type Allocator interface {
	Next() int
}

// AllocationPolicy decides which integer an unidentified row receives.
// Implementations must never yield an identifier contained in inUse.
type AllocationPolicy interface {
	Name() PolicyName
	NewAllocator(inUse IDSet, counter int) Allocator
}

// MonotonicAppend assigns counter+1, counter+2, ... where counter is the
// larger of the persisted counter and the largest identifier in use.
// Identifiers freed by deleted rows are never reused.
type MonotonicAppend struct{}

func (MonotonicAppend) Name() PolicyName { return PolicyMonotonicAppend }

func (MonotonicAppend) NewAllocator(inUse IDSet, counter int) Allocator {
	base := counter
	if m := inUse.Max(); m > base {
		base = m
	}
	return &monotonicAllocator{last: base}
}

type monotonicAllocator struct {
	last int
}

func (a *monotonicAllocator) Next() int {
	a.last++
	return a.last
}

// LowestGapFill assigns the smallest identifier, starting at 1, that is not
// in use anywhere in the document.
type LowestGapFill struct{}

func (LowestGapFill) Name() PolicyName { return PolicyLowestGapFill }

func (LowestGapFill) NewAllocator(inUse IDSet, _ int) Allocator {
	return &gapFillAllocator{inUse: inUse.Clone(), cursor: 1}
}

type gapFillAllocator struct {
	inUse  IDSet
	cursor int
}

func (a *gapFillAllocator) Next() int {
	// Everything below cursor is already taken.
	for a.inUse.Has(a.cursor) {
		a.cursor++
	}
	id := a.cursor
	a.inUse.Add(id)
	a.cursor++
	return id
}

// ParsePolicy resolves a configured policy name. Case style is ignored, so
// "MonotonicAppend", "monotonic_append" and "monotonic-append" are equal.
func ParsePolicy(name string) (AllocationPolicy, error) {
	normalized := strcase.ToKebab(strings.TrimSpace(name))
	switch PolicyName(normalized) {
	case "", PolicyMonotonicAppend, "monotonic":
		return MonotonicAppend{}, nil
	case PolicyLowestGapFill, "gap-fill":
		return LowestGapFill{}, nil
	default:
		return nil, fmt.Errorf("unsupported allocation policy: %s (supported: %s, %s)",
			name, PolicyMonotonicAppend, PolicyLowestGapFill)
	}
}
