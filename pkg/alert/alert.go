// Package alert delivers operator alerts raised by the sync service, such as
// a workbook that can no longer be read because credentials were rejected.
package alert

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-hclog"
)

// Priority orders alerts by urgency.
type Priority int

const (
	PriorityLow     Priority = -1
	PriorityDefault Priority = 0
	PriorityHigh    Priority = 1
)

// Message is a single alert.
type Message struct {
	Title    string
	Body     string
	Priority Priority
	Tags     []string
}

// Notifier sends alerts to an operator.
type Notifier interface {
	// Name returns the notifier identifier.
	Name() string

	// Notify delivers a message.
	Notify(ctx context.Context, msg *Message) error
}

// NotifierError is an error from a specific notifier.
type NotifierError struct {
	Notifier  string
	Operation string
	Retryable bool
	Err       error
}

func (e *NotifierError) Error() string {
	retryability := "permanent"
	if e.Retryable {
		retryability = "retryable"
	}
	return fmt.Sprintf("%s notifier error (%s, %s): %v", e.Notifier, e.Operation, retryability, e.Err)
}

func (e *NotifierError) Unwrap() error {
	return e.Err
}

// LogNotifier writes alerts to a logger. It is used when no push service is
// configured so alerts are still visible in the service log.
type LogNotifier struct {
	logger hclog.Logger
}

// NewLogNotifier creates a notifier that logs at warn level.
func NewLogNotifier(logger hclog.Logger) *LogNotifier {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &LogNotifier{logger: logger.Named("alert")}
}

func (n *LogNotifier) Name() string {
	return "log"
}

func (n *LogNotifier) Notify(_ context.Context, msg *Message) error {
	n.logger.Warn(msg.Title, "body", msg.Body, "tags", msg.Tags)
	return nil
}
