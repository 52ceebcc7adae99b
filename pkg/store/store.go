// Package store defines the remote document capability watched by sheetwatch
// and the error taxonomy its implementations report.
//
// Implementations live in sub-packages:
//   - graph:  Microsoft Graph drive items (SharePoint, OneDrive)
//   - gdrive: Google Drive files
//   - s3:     S3-compatible object storage
//   - local:  a file on a local or in-memory filesystem
package store

import (
	"context"
)

// VersionToken is an opaque change indicator supplied by a store, such as a
// last-modified timestamp or an ETag. It is only ever compared for equality.
type VersionToken string

// DocumentStore is the remote copy of one watched document.
type DocumentStore interface {
	// FetchMetadata returns the document's current version token.
	FetchMetadata(ctx context.Context) (VersionToken, error)

	// FetchContent downloads the full document.
	FetchContent(ctx context.Context) ([]byte, error)

	// StoreContent uploads the full document and returns the version token
	// of the write, or "" when the store cannot report one.
	StoreContent(ctx context.Context, data []byte) (VersionToken, error)
}

// Describer is implemented by stores that can describe the document they
// watch, for log lines.
type Describer interface {
	Describe() string
}

// Describe returns a human readable locator for s.
func Describe(s DocumentStore) string {
	if d, ok := s.(Describer); ok {
		return d.Describe()
	}
	return "document"
}
