package watcher

import (
	"context"
	"errors"

	"github.com/hashicorp-forge/sheetwatch/pkg/sheetid"
	"github.com/hashicorp-forge/sheetwatch/pkg/store"
)

// ErrorKind is the failure class of a cycle.
type ErrorKind string

const (
	KindNone      ErrorKind = ""
	KindAuth      ErrorKind = "auth"
	KindTransient ErrorKind = "transient"
	KindFormat    ErrorKind = "format"
	KindConflict  ErrorKind = "conflict"
	KindCanceled  ErrorKind = "canceled"
	KindUnknown   ErrorKind = "unknown"
)

// Classify maps an error returned by a cycle to its failure class.
func Classify(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, context.Canceled):
		return KindCanceled
	case errors.Is(err, store.ErrAuthentication):
		return KindAuth
	case errors.Is(err, store.ErrConflict):
		return KindConflict
	case errors.Is(err, sheetid.ErrFormat):
		return KindFormat
	case errors.Is(err, store.ErrTransient), errors.Is(err, context.DeadlineExceeded):
		return KindTransient
	default:
		return KindUnknown
	}
}
