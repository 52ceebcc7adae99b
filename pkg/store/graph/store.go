// Package graph provides a DocumentStore for a Microsoft Graph drive item,
// which covers workbooks kept in SharePoint document libraries and OneDrive.
package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hashicorp/go-hclog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/hashicorp-forge/sheetwatch/pkg/store"
)

const (
	defaultBaseURL   = "https://graph.microsoft.com/v1.0"
	defaultTokenURL  = "https://login.microsoftonline.com/%s/oauth2/v2.0/token"
	defaultScope     = "https://graph.microsoft.com/.default"
	defaultTimeout   = 30 * time.Second
	defaultRetries   = 3
	maxErrorBodySize = 4 << 10
	maxRedirects     = 10
)

// Config contains configuration for the Graph store.
type Config struct {
	TenantID     string
	ClientID     string
	ClientSecret string

	// DriveID and ItemID locate the watched workbook.
	DriveID string
	ItemID  string

	// BaseURL and TokenURL override the public Graph endpoints.
	BaseURL  string
	TokenURL string

	// HTTPClient is used for both token and API requests.
	HTTPClient *http.Client

	// MaxRetries bounds per-request retries of transient failures.
	MaxRetries int

	// InitialBackoff is the first retry delay (default: 500ms).
	InitialBackoff time.Duration

	Logger hclog.Logger
}

// Validate validates the Graph configuration.
func (c *Config) Validate() error {
	var missing []string
	if c.TenantID == "" && c.TokenURL == "" {
		missing = append(missing, "tenant_id")
	}
	if c.ClientID == "" {
		missing = append(missing, "client_id")
	}
	if c.ClientSecret == "" {
		missing = append(missing, "client_secret")
	}
	if c.DriveID == "" {
		missing = append(missing, "drive_id")
	}
	if c.ItemID == "" {
		missing = append(missing, "item_id")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required graph settings: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Store talks to one drive item.
type Store struct {
	cfg     Config
	client  *http.Client
	tokens  oauth2.TokenSource
	itemURL string
	logger  hclog.Logger
}

var _ store.DocumentStore = (*Store)(nil)

// driveItem is the subset of the Graph driveItem resource the store reads.
type driveItem struct {
	ID                   string `json:"id"`
	Name                 string `json:"name"`
	ETag                 string `json:"eTag"`
	LastModifiedDateTime string `json:"lastModifiedDateTime"`
}

// New creates a Graph store. No request is made until the first fetch.
func New(cfg Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = fmt.Sprintf(defaultTokenURL, url.PathEscape(cfg.TenantID))
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: defaultTimeout}
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = defaultRetries
	}
	if cfg.InitialBackoff == 0 {
		cfg.InitialBackoff = 500 * time.Millisecond
	}
	if cfg.Logger == nil {
		cfg.Logger = hclog.NewNullLogger()
	}

	cc := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
		Scopes:       []string{defaultScope},
	}

	// The token source caches the access token with its expiry and refreshes
	// it on demand; nothing outside the store ever sees it.
	tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, cfg.HTTPClient)

	// Content downloads redirect to a pre-authenticated URL on another host,
	// which must not receive the Graph token.
	client := *cfg.HTTPClient
	client.CheckRedirect = stripAuthOnHostChange

	return &Store{
		cfg:    cfg,
		client: &client,
		tokens: oauth2.ReuseTokenSource(nil, cc.TokenSource(tokenCtx)),
		itemURL: fmt.Sprintf("%s/drives/%s/items/%s",
			strings.TrimRight(cfg.BaseURL, "/"), url.PathEscape(cfg.DriveID), url.PathEscape(cfg.ItemID)),
		logger: cfg.Logger.Named("graph-store"),
	}, nil
}

// Describe implements store.Describer.
func (s *Store) Describe() string {
	return fmt.Sprintf("graph:drives/%s/items/%s", s.cfg.DriveID, s.cfg.ItemID)
}

// FetchMetadata returns the item's lastModifiedDateTime.
func (s *Store) FetchMetadata(ctx context.Context) (store.VersionToken, error) {
	var item driveItem
	if err := s.do(ctx, "fetch metadata", http.MethodGet, s.itemURL, nil, &item, nil); err != nil {
		return "", err
	}
	if item.LastModifiedDateTime == "" {
		return "", fmt.Errorf("drive item %s has no lastModifiedDateTime", s.cfg.ItemID)
	}
	return store.VersionToken(item.LastModifiedDateTime), nil
}

// FetchContent downloads the item content.
func (s *Store) FetchContent(ctx context.Context) ([]byte, error) {
	var buf bytes.Buffer
	if err := s.do(ctx, "fetch content", http.MethodGet, s.itemURL+"/content", nil, nil, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// StoreContent replaces the item content and returns the new
// lastModifiedDateTime.
func (s *Store) StoreContent(ctx context.Context, data []byte) (store.VersionToken, error) {
	var item driveItem
	if err := s.do(ctx, "store content", http.MethodPut, s.itemURL+"/content", data, &item, nil); err != nil {
		return "", err
	}
	return store.VersionToken(item.LastModifiedDateTime), nil
}

// do runs one request, retrying transient failures with exponential backoff.
// A JSON response is decoded into out; raw bodies are copied into raw.
func (s *Store) do(ctx context.Context, op, method, target string, body []byte, out any, raw *bytes.Buffer) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.cfg.InitialBackoff
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(s.cfg.MaxRetries)), ctx)

	attempt := 0
	operation := func() error {
		attempt++
		err := s.once(ctx, op, method, target, body, out, raw)
		if err == nil {
			return nil
		}
		if errors.Is(err, store.ErrTransient) {
			s.logger.Debug("retrying transient failure", "op", op, "attempt", attempt, "error", err)
			return err
		}
		return backoff.Permanent(err)
	}

	return backoff.Retry(operation, policy)
}

func (s *Store) once(ctx context.Context, op, method, target string, body []byte, out any, raw *bytes.Buffer) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", op, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/octet-stream")
	}

	tok, err := s.tokens.Token()
	if err != nil {
		return classifyTransportError(op, err)
	}
	tok.SetAuthHeader(req)

	resp, err := s.client.Do(req)
	if err != nil {
		return classifyTransportError(op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		return store.ErrorForStatus(op, resp.StatusCode, graphErrorMessage(msg))
	}

	if raw != nil {
		raw.Reset()
		if _, err := io.Copy(raw, resp.Body); err != nil {
			return &store.TransientError{Op: op, Err: err}
		}
		return nil
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode %s response: %w", op, err)
		}
	}
	return nil
}

func stripAuthOnHostChange(req *http.Request, via []*http.Request) error {
	if len(via) >= maxRedirects {
		return fmt.Errorf("stopped after %d redirects", maxRedirects)
	}
	if req.URL.Host != via[0].URL.Host {
		req.Header.Del("Authorization")
	}
	return nil
}

// classifyTransportError separates rejected credentials, which surface from
// the token endpoint, from network failures and timeouts.
func classifyTransportError(op string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}

	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		status := 0
		if retrieveErr.Response != nil {
			status = retrieveErr.Response.StatusCode
		}
		if status == 0 || status == http.StatusBadRequest || status == http.StatusUnauthorized || status == http.StatusForbidden {
			return &store.AuthenticationError{Op: op, Err: err}
		}
		return &store.TransientError{Op: op + " (token)", StatusCode: status, Err: err}
	}

	return &store.TransientError{Op: op, Err: err}
}

func graphErrorMessage(body []byte) string {
	var payload struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error.Code != "" {
		return payload.Error.Code + ": " + payload.Error.Message
	}
	return strings.TrimSpace(string(body))
}
