// Package local provides a DocumentStore backed by a single file on an afero
// filesystem.
package local

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/hashicorp/go-hclog"
	"github.com/spf13/afero"

	"github.com/hashicorp-forge/sheetwatch/pkg/store"
)

// Config contains configuration for the local store.
type Config struct {
	// Path is the watched workbook.
	Path string

	// Fs defaults to the OS filesystem.
	Fs afero.Fs

	Logger hclog.Logger
}

// Store reads and writes one file.
type Store struct {
	fs     afero.Fs
	path   string
	logger hclog.Logger
}

var _ store.DocumentStore = (*Store)(nil)

// New creates a local store.
func New(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("path is required")
	}
	if cfg.Fs == nil {
		cfg.Fs = afero.NewOsFs()
	}
	if cfg.Logger == nil {
		cfg.Logger = hclog.NewNullLogger()
	}

	return &Store{
		fs:     cfg.Fs,
		path:   filepath.Clean(cfg.Path),
		logger: cfg.Logger.Named("local-store"),
	}, nil
}

// Describe implements store.Describer.
func (s *Store) Describe() string {
	return "file:" + s.path
}

// FetchMetadata returns a token built from the file's modification time and
// size.
func (s *Store) FetchMetadata(ctx context.Context) (store.VersionToken, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	info, err := s.fs.Stat(s.path)
	if err != nil {
		return "", s.wrap("stat", err)
	}
	return tokenFor(info), nil
}

// FetchContent reads the whole file.
func (s *Store) FetchContent(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := afero.ReadFile(s.fs, s.path)
	if err != nil {
		return nil, s.wrap("read", err)
	}
	return data, nil
}

// StoreContent writes data to a temporary sibling and renames it over the
// file, so readers never see a partial workbook.
func (s *Store) StoreContent(ctx context.Context, data []byte) (store.VersionToken, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	mode := os.FileMode(0o644)
	if info, err := s.fs.Stat(s.path); err == nil {
		mode = info.Mode().Perm()
	}

	tmp := s.path + ".sheetwatch.tmp"
	if err := afero.WriteFile(s.fs, tmp, data, mode); err != nil {
		return "", s.wrap("write", err)
	}
	if err := s.fs.Rename(tmp, s.path); err != nil {
		_ = s.fs.Remove(tmp)
		return "", s.wrap("rename", err)
	}

	info, err := s.fs.Stat(s.path)
	if err != nil {
		// The write landed; the next check will pick up the new token.
		s.logger.Warn("failed to stat file after write", "path", s.path, "error", err)
		return "", nil
	}
	return tokenFor(info), nil
}

// Notify watches the file's directory and sends on the returned channel
// whenever the file is written, created or renamed. It only works on the OS
// filesystem. The channel is closed when ctx is done.
func (s *Store) Notify(ctx context.Context) (<-chan struct{}, error) {
	if _, ok := s.fs.(*afero.OsFs); !ok {
		return nil, fmt.Errorf("change notifications require the OS filesystem")
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(s.path)); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(s.path), err)
	}

	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		defer w.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != s.path {
					continue
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
					continue
				}
				// Coalesce bursts; the watcher only needs to know something moved.
				select {
				case out <- struct{}{}:
				default:
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				s.logger.Warn("file watcher error", "error", err)
			}
		}
	}()

	return out, nil
}

func tokenFor(info os.FileInfo) store.VersionToken {
	return store.VersionToken(fmt.Sprintf("%s/%d", info.ModTime().UTC().Format(time.RFC3339Nano), info.Size()))
}

func (s *Store) wrap(op string, err error) error {
	if os.IsPermission(err) {
		return &store.AuthenticationError{Op: op, Err: err}
	}
	return fmt.Errorf("failed to %s %s: %w", op, s.path, err)
}
