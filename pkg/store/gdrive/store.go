// Package gdrive provides a DocumentStore for an .xlsx workbook kept as a
// binary file in Google Drive. Native Google Sheets are not supported: they
// have no .xlsx content to round-trip.
package gdrive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/hashicorp/go-hclog"
	"golang.org/x/oauth2"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/hashicorp-forge/sheetwatch/pkg/sheetid"
	"github.com/hashicorp-forge/sheetwatch/pkg/store"
)

const googleSheetMimeType = "application/vnd.google-apps.spreadsheet"

// Config contains configuration for the Google Drive store.
type Config struct {
	// FileID is the Drive file ID of the workbook.
	FileID string

	// CredentialsFile is a service account key file. When empty, Application
	// Default Credentials are used.
	CredentialsFile string

	Logger hclog.Logger
}

// Store reads and writes one Drive file.
type Store struct {
	service *drive.Service
	fileID  string
	logger  hclog.Logger
}

var _ store.DocumentStore = (*Store)(nil)

// New creates a Drive store. Extra client options are appended after the
// credentials, which lets tests point the client at a fake endpoint.
func New(ctx context.Context, cfg Config, opts ...option.ClientOption) (*Store, error) {
	if cfg.FileID == "" {
		return nil, fmt.Errorf("file_id is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = hclog.NewNullLogger()
	}

	clientOpts := []option.ClientOption{option.WithScopes(drive.DriveScope)}
	if cfg.CredentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	clientOpts = append(clientOpts, opts...)

	srv, err := drive.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Drive service: %w", err)
	}

	return &Store{
		service: srv,
		fileID:  cfg.FileID,
		logger:  cfg.Logger.Named("gdrive-store"),
	}, nil
}

// Describe implements store.Describer.
func (s *Store) Describe() string {
	return "gdrive:" + s.fileID
}

// FetchMetadata returns the file's modifiedTime.
func (s *Store) FetchMetadata(ctx context.Context) (store.VersionToken, error) {
	f, err := s.service.Files.Get(s.fileID).
		Fields("id,mimeType,modifiedTime").
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return "", classify("get file", err)
	}
	if f.MimeType == googleSheetMimeType {
		return "", &sheetid.FormatError{
			Op:  "get file",
			Err: fmt.Errorf("file %s is a native Google Sheet, not an .xlsx workbook", s.fileID),
		}
	}
	return store.VersionToken(f.ModifiedTime), nil
}

// FetchContent downloads the file.
func (s *Store) FetchContent(ctx context.Context) ([]byte, error) {
	resp, err := s.service.Files.Get(s.fileID).
		SupportsAllDrives(true).
		Context(ctx).
		Download()
	if err != nil {
		return nil, classify("download file", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &store.TransientError{Op: "download file", Err: err}
	}
	return data, nil
}

// StoreContent uploads new content and returns the new modifiedTime.
func (s *Store) StoreContent(ctx context.Context, data []byte) (store.VersionToken, error) {
	f, err := s.service.Files.Update(s.fileID, &drive.File{}).
		Media(bytes.NewReader(data)).
		Fields("id,modifiedTime").
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return "", classify("update file", err)
	}
	return store.VersionToken(f.ModifiedTime), nil
}

// classify maps Drive API errors onto the store taxonomy.
func classify(op string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		// Drive reports rate limiting as 403 with a rateLimitExceeded reason.
		if apiErr.Code == http.StatusForbidden {
			for _, item := range apiErr.Errors {
				if item.Reason == "rateLimitExceeded" || item.Reason == "userRateLimitExceeded" {
					return &store.TransientError{Op: op, StatusCode: apiErr.Code, Err: err}
				}
			}
		}
		classified := store.ErrorForStatus(op, apiErr.Code, apiErr.Message)
		if errors.Is(classified, store.ErrAuthentication) ||
			errors.Is(classified, store.ErrTransient) ||
			errors.Is(classified, store.ErrConflict) {
			return classified
		}
		return fmt.Errorf("failed to %s: %w", op, err)
	}

	// Service account keys are exchanged for tokens inside the transport.
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		return &store.AuthenticationError{Op: op, Err: err}
	}

	return &store.TransientError{Op: op, Err: err}
}
