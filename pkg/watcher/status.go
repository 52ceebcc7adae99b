package watcher

import (
	"time"
)

// Status is a snapshot of the sync service, served on /status.
type Status struct {
	Running bool   `json:"running"`
	Store   string `json:"store"`
	Policy  string `json:"policy"`
	State   string `json:"state"`

	Cycles      uint64    `json:"cycles"`
	LastCheck   time.Time `json:"last_check"`
	LastSuccess time.Time `json:"last_success"`
	LastChange  time.Time `json:"last_change"`

	LastError           string    `json:"last_error,omitempty"`
	LastErrorKind       ErrorKind `json:"last_error_kind,omitempty"`
	ConsecutiveFailures int       `json:"consecutive_failures"`

	LastToken   string `json:"last_token,omitempty"`
	LastMaxID   int    `json:"last_max_id"`
	LastCounter int    `json:"last_counter"`
}

// Healthy reports whether the last cycle succeeded.
func (s Status) Healthy() bool {
	return s.ConsecutiveFailures == 0
}
