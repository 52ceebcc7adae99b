package watch

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/afero"

	"github.com/hashicorp-forge/sheetwatch/internal/config"
	"github.com/hashicorp-forge/sheetwatch/pkg/alert"
	"github.com/hashicorp-forge/sheetwatch/pkg/sheetid"
	"github.com/hashicorp-forge/sheetwatch/pkg/store"
	"github.com/hashicorp-forge/sheetwatch/pkg/store/gdrive"
	"github.com/hashicorp-forge/sheetwatch/pkg/store/graph"
	"github.com/hashicorp-forge/sheetwatch/pkg/store/local"
	"github.com/hashicorp-forge/sheetwatch/pkg/store/s3"
	"github.com/hashicorp-forge/sheetwatch/pkg/tabular/xlsx"
	"github.com/hashicorp-forge/sheetwatch/pkg/watcher"
)

// newStore creates the configured document store. The returned channel is
// non-nil only for a local store with file notifications enabled.
func newStore(ctx context.Context, cfg *config.Config, logger hclog.Logger) (store.DocumentStore, <-chan struct{}, error) {
	switch cfg.Store {
	case config.StoreGraph:
		st, err := graph.New(graph.Config{
			TenantID:     cfg.Graph.TenantID,
			ClientID:     cfg.Graph.ClientID,
			ClientSecret: cfg.Graph.ClientSecret,
			DriveID:      cfg.Graph.DriveID,
			ItemID:       cfg.Graph.ItemID,
			BaseURL:      cfg.Graph.BaseURL,
			Logger:       logger,
		})
		return st, nil, err

	case config.StoreGDrive:
		st, err := gdrive.New(ctx, gdrive.Config{
			FileID:          cfg.GoogleDrive.FileID,
			CredentialsFile: cfg.GoogleDrive.CredentialsFile,
			Logger:          logger,
		})
		return st, nil, err

	case config.StoreS3:
		st, err := s3.New(ctx, s3.Config{
			Endpoint:  cfg.S3.Endpoint,
			Region:    cfg.S3.Region,
			Bucket:    cfg.S3.Bucket,
			Key:       cfg.S3.Key,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			Logger:    logger,
		})
		return st, nil, err

	case config.StoreLocal:
		st, err := local.New(local.Config{
			Path:   cfg.Local.Path,
			Fs:     afero.NewOsFs(),
			Logger: logger,
		})
		if err != nil {
			return nil, nil, err
		}
		if !cfg.WatchLocal() {
			return st, nil, nil
		}
		wake, err := st.Notify(ctx)
		if err != nil {
			// Polling still works without notifications.
			logger.Warn("file change notifications unavailable", "error", err)
			return st, nil, nil
		}
		return st, wake, nil

	default:
		return nil, nil, fmt.Errorf("unsupported store: %s", cfg.Store)
	}
}

// newTransformer creates the identifier transformer for cfg.
func newTransformer(cfg *config.Config, logger hclog.Logger) (*sheetid.Transformer, error) {
	idCodec, err := sheetid.NewIdentifierCodec(cfg.Identifiers.DigitWidth)
	if err != nil {
		return nil, err
	}
	policy, err := sheetid.ParsePolicy(cfg.Identifiers.Policy)
	if err != nil {
		return nil, err
	}

	return sheetid.NewTransformer(sheetid.TransformerConfig{
		Codec:  idCodec,
		Policy: policy,
		Logger: logger,
	}), nil
}

func newWatcher(cfg *config.Config, st store.DocumentStore, logger hclog.Logger) (*watcher.Watcher, error) {
	codec, err := xlsx.NewCodec(xlsx.Config{
		NameColumn:      cfg.Workbook.NameColumn,
		HeaderRows:      *cfg.Workbook.HeaderRows,
		ReservedSection: cfg.Workbook.ReservedSheet,
		CounterCell:     cfg.Workbook.CounterCell,
	})
	if err != nil {
		return nil, fmt.Errorf("error creating workbook codec: %w", err)
	}

	transformer, err := newTransformer(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("error creating transformer: %w", err)
	}

	return watcher.New(watcher.Config{
		Store:         st,
		Codec:         codec,
		Transformer:   transformer,
		DisableVerify: !cfg.Verify(),
		Logger:        logger,
	})
}

// newNotifier returns an ntfy notifier when a topic is configured and a log
// notifier otherwise.
func newNotifier(cfg *config.Config, logger hclog.Logger) alert.Notifier {
	if cfg.Ntfy != nil && cfg.Ntfy.Topic != "" {
		n, err := alert.NewNtfyNotifier(alert.NtfyConfig{
			ServerURL: cfg.Ntfy.Server,
			Topic:     cfg.Ntfy.Topic,
			Logger:    logger,
		})
		if err == nil {
			return n
		}
		logger.Warn("ntfy alerts disabled", "error", err)
	}
	return alert.NewLogNotifier(logger)
}
