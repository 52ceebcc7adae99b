package alert

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hashicorp/go-hclog"

	"github.com/hashicorp-forge/sheetwatch/pkg/store"
)

// NtfyNotifier sends push notifications via ntfy.sh or a self-hosted ntfy
// server.
type NtfyNotifier struct {
	serverURL  string
	topic      string
	client     *http.Client
	maxRetries uint64
	logger     hclog.Logger
}

// NtfyConfig holds configuration for the ntfy notifier.
type NtfyConfig struct {
	// ServerURL is the ntfy server URL (e.g., "https://ntfy.sh").
	ServerURL string

	// Topic is the ntfy topic to send notifications to.
	Topic string

	// Timeout for HTTP requests (optional, defaults to 10s).
	Timeout time.Duration

	// MaxRetries bounds redelivery of retryable failures (default: 2).
	MaxRetries int

	Logger hclog.Logger
}

// NewNtfyNotifier creates a new ntfy notifier.
func NewNtfyNotifier(cfg NtfyConfig) (*NtfyNotifier, error) {
	if cfg.Topic == "" {
		return nil, fmt.Errorf("ntfy topic is required")
	}
	if cfg.ServerURL == "" {
		cfg.ServerURL = "https://ntfy.sh"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 2
	}
	if cfg.Logger == nil {
		cfg.Logger = hclog.NewNullLogger()
	}

	return &NtfyNotifier{
		serverURL:  strings.TrimRight(cfg.ServerURL, "/"),
		topic:      cfg.Topic,
		client:     &http.Client{Timeout: cfg.Timeout},
		maxRetries: uint64(cfg.MaxRetries),
		logger:     cfg.Logger.Named("ntfy"),
	}, nil
}

func (n *NtfyNotifier) Name() string {
	return "ntfy"
}

// Notify posts the message, retrying network failures and retryable statuses.
func (n *NtfyNotifier) Notify(ctx context.Context, msg *Message) error {
	bo := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), n.maxRetries),
		ctx,
	)

	return backoff.RetryNotify(func() error {
		err := n.send(ctx, msg)
		if err == nil {
			return nil
		}
		if ne, ok := err.(*NotifierError); ok && !ne.Retryable {
			return backoff.Permanent(err)
		}
		return err
	}, bo, func(err error, wait time.Duration) {
		n.logger.Debug("retrying ntfy notification", "error", err, "wait", wait)
	})
}

func (n *NtfyNotifier) send(ctx context.Context, msg *Message) error {
	body := msg.Body
	if body == "" {
		body = msg.Title
	}

	url := fmt.Sprintf("%s/%s", n.serverURL, n.topic)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBufferString(body))
	if err != nil {
		return &NotifierError{Notifier: "ntfy", Operation: "send", Err: err}
	}

	if msg.Title != "" {
		req.Header.Set("Title", msg.Title)
	}

	// ntfy priorities run from 1 (min) through 3 (default) to 5 (max).
	ntfyPriority := "3"
	if msg.Priority > 0 {
		ntfyPriority = "5"
	} else if msg.Priority < 0 {
		ntfyPriority = "1"
	}
	req.Header.Set("Priority", ntfyPriority)

	if len(msg.Tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.Tags, ","))
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return &NotifierError{Notifier: "ntfy", Operation: "send", Retryable: ctx.Err() == nil, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &NotifierError{
			Notifier:  "ntfy",
			Operation: "send",
			Retryable: store.IsRetryableStatus(resp.StatusCode),
			Err:       fmt.Errorf("ntfy request failed with status %d", resp.StatusCode),
		}
	}

	return nil
}
