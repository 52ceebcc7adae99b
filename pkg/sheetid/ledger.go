package sheetid

import (
	"fmt"
	"strconv"
	"strings"
)

// ReadCounter returns the persisted counter. Missing, blank, negative and
// non-numeric values read as 0.
func ReadCounter(doc Document) (int, error) {
	raw, err := doc.CounterValue()
	if err != nil {
		return 0, fmt.Errorf("failed to read counter: %w", err)
	}
	return parseCounter(raw), nil
}

func parseCounter(raw string) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	if v, err := strconv.Atoi(raw); err == nil {
		if v < 0 {
			return 0
		}
		return v
	}
	// Spreadsheet numbers often round-trip as "12.0".
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f < 0 || f > float64(int(^uint(0)>>1)) {
		return 0
	}
	return int(f)
}

// Reconcile returns the larger of the persisted counter and the largest
// identifier observed in the document. A counter cell that was lowered by
// hand is recovered by the scan.
func Reconcile(persisted, maxObserved int) int {
	if maxObserved > persisted {
		return maxObserved
	}
	return persisted
}

// WriteCounter persists v in the document's reserved section.
func WriteCounter(doc Document, v int) error {
	if err := doc.SetCounterValue(v); err != nil {
		return fmt.Errorf("failed to write counter: %w", err)
	}
	return nil
}
