// Package config loads sheetwatch configuration from an optional HCL file and
// the process environment. Environment variables take precedence over the
// file, and defaults fill anything left unset.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"
	"github.com/hashicorp/hcl/v2/hclsimple"

	"github.com/hashicorp-forge/sheetwatch/pkg/sheetid"
)

// Store kinds.
const (
	StoreGraph  = "graph"
	StoreGDrive = "gdrive"
	StoreS3     = "s3"
	StoreLocal  = "local"
)

const (
	DefaultStore        = StoreGraph
	DefaultPollInterval = 60
	DefaultPort         = 8000
	DefaultLogLevel     = "info"
	DefaultNameColumn   = "B"
	DefaultHeaderRows   = 1
	DefaultCounterCell  = "B1"
)

// Config is the root sheetwatch configuration.
type Config struct {
	// Store selects the document store: graph, gdrive, s3 or local.
	Store string `hcl:"store,optional" json:"store"`

	// PollInterval is the number of seconds between checks.
	PollInterval int `hcl:"poll_interval,optional" json:"poll_interval"`

	// Port is the liveness server port.
	Port int `hcl:"port,optional" json:"port"`

	LogLevel string `hcl:"log_level,optional" json:"log_level"`

	// VerifyBeforeWrite re-reads the version token before uploading.
	VerifyBeforeWrite *bool `hcl:"verify_before_write,optional" json:"verify_before_write"`

	Identifiers *IdentifiersConfig `hcl:"identifiers,block" json:"identifiers"`
	Workbook    *WorkbookConfig    `hcl:"workbook,block" json:"workbook"`

	Graph       *GraphConfig       `hcl:"graph,block" json:"graph"`
	GoogleDrive *GoogleDriveConfig `hcl:"google_drive,block" json:"google_drive"`
	S3          *S3Config          `hcl:"s3,block" json:"s3"`
	Local       *LocalConfig       `hcl:"local,block" json:"local"`

	Ntfy *NtfyConfig `hcl:"ntfy,block" json:"ntfy"`
}

// IdentifiersConfig configures identifier allocation.
type IdentifiersConfig struct {
	Policy     string `hcl:"policy,optional" json:"policy"`
	DigitWidth int    `hcl:"digit_width,optional" json:"digit_width"`
}

// WorkbookConfig describes the workbook layout.
type WorkbookConfig struct {
	NameColumn    string `hcl:"name_column,optional" json:"name_column"`
	HeaderRows    *int   `hcl:"header_rows,optional" json:"header_rows"`
	ReservedSheet string `hcl:"reserved_sheet,optional" json:"reserved_sheet"`
	CounterCell   string `hcl:"counter_cell,optional" json:"counter_cell"`
}

// GraphConfig configures the Microsoft Graph store.
type GraphConfig struct {
	TenantID     string `hcl:"tenant_id,optional" json:"tenant_id"`
	ClientID     string `hcl:"client_id,optional" json:"client_id"`
	ClientSecret string `hcl:"client_secret,optional" json:"client_secret"`
	DriveID      string `hcl:"drive_id,optional" json:"drive_id"`
	ItemID       string `hcl:"item_id,optional" json:"item_id"`
	BaseURL      string `hcl:"base_url,optional" json:"base_url"`
}

func (c GraphConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.TenantID, validation.Required),
		validation.Field(&c.ClientID, validation.Required),
		validation.Field(&c.ClientSecret, validation.Required),
		validation.Field(&c.DriveID, validation.Required),
		validation.Field(&c.ItemID, validation.Required),
	)
}

// GoogleDriveConfig configures the Google Drive store.
type GoogleDriveConfig struct {
	FileID          string `hcl:"file_id,optional" json:"file_id"`
	CredentialsFile string `hcl:"credentials_file,optional" json:"credentials_file"`
}

func (c GoogleDriveConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.FileID, validation.Required),
	)
}

// S3Config configures the S3 store.
type S3Config struct {
	Endpoint  string `hcl:"endpoint,optional" json:"endpoint"`
	Region    string `hcl:"region,optional" json:"region"`
	Bucket    string `hcl:"bucket,optional" json:"bucket"`
	Key       string `hcl:"key,optional" json:"key"`
	AccessKey string `hcl:"access_key,optional" json:"access_key"`
	SecretKey string `hcl:"secret_key,optional" json:"secret_key"`
}

func (c S3Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Region, validation.Required),
		validation.Field(&c.Bucket, validation.Required),
		validation.Field(&c.Key, validation.Required),
	)
}

// LocalConfig configures the local file store.
type LocalConfig struct {
	Path string `hcl:"path,optional" json:"path"`

	// Watch wakes the service on file system events in addition to polling.
	Watch *bool `hcl:"watch,optional" json:"watch"`
}

func (c LocalConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Path, validation.Required),
	)
}

// NtfyConfig configures push alerts.
type NtfyConfig struct {
	Server string `hcl:"server,optional" json:"server"`
	Topic  string `hcl:"topic,optional" json:"topic"`
}

// Load reads the HCL file at path, when path is not empty, then applies the
// process environment and defaults and validates the result.
func Load(path string) (*Config, error) {
	return LoadWithEnv(path, os.LookupEnv)
}

// LookupFunc returns the value of an environment variable.
type LookupFunc func(key string) (string, bool)

// LoadWithEnv is Load with a custom environment.
func LoadWithEnv(path string, lookup LookupFunc) (*Config, error) {
	var (
		cfg    Config
		result *multierror.Error
	)

	if path != "" {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return nil, fmt.Errorf("configuration file not found: %s", path)
		}
		if err := hclsimple.DecodeFile(path, nil, &cfg); err != nil {
			result = multierror.Append(result, fmt.Errorf("failed to parse configuration file: %w", err))
		}
	}

	if err := applyEnv(&cfg, lookup); err != nil {
		result = multierror.Append(result, err)
	}

	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		result = multierror.Append(result, err)
	}

	if err := result.ErrorOrNil(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetDefaults fills unset values.
func (c *Config) SetDefaults() {
	if c.Store == "" {
		c.Store = DefaultStore
	}
	c.Store = strings.ToLower(c.Store)
	if c.PollInterval == 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.VerifyBeforeWrite == nil {
		verify := true
		c.VerifyBeforeWrite = &verify
	}

	if c.Identifiers == nil {
		c.Identifiers = &IdentifiersConfig{}
	}
	if c.Identifiers.Policy == "" {
		c.Identifiers.Policy = string(sheetid.PolicyMonotonicAppend)
	}
	if c.Identifiers.DigitWidth == 0 {
		c.Identifiers.DigitWidth = sheetid.DefaultDigitWidth
	}

	if c.Workbook == nil {
		c.Workbook = &WorkbookConfig{}
	}
	if c.Workbook.NameColumn == "" {
		c.Workbook.NameColumn = DefaultNameColumn
	}
	if c.Workbook.HeaderRows == nil {
		rows := DefaultHeaderRows
		c.Workbook.HeaderRows = &rows
	}
	if c.Workbook.ReservedSheet == "" {
		c.Workbook.ReservedSheet = sheetid.DefaultReservedSection
	}
	if c.Workbook.CounterCell == "" {
		c.Workbook.CounterCell = DefaultCounterCell
	}

	if c.Ntfy != nil && c.Ntfy.Server == "" {
		c.Ntfy.Server = "https://ntfy.sh"
	}
}

// Validate checks a configuration with defaults applied.
func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Store, validation.Required,
			validation.In(StoreGraph, StoreGDrive, StoreS3, StoreLocal)),
		validation.Field(&c.PollInterval, validation.Min(1)),
		validation.Field(&c.Port, validation.Min(1), validation.Max(65535)),
		validation.Field(&c.LogLevel, validation.By(validLogLevel)),
		validation.Field(&c.Identifiers, validation.Required),
		validation.Field(&c.Workbook, validation.Required),
		validation.Field(&c.Graph, validation.When(c.Store == StoreGraph, validation.Required)),
		validation.Field(&c.GoogleDrive, validation.When(c.Store == StoreGDrive, validation.Required)),
		validation.Field(&c.S3, validation.When(c.Store == StoreS3, validation.Required)),
		validation.Field(&c.Local, validation.When(c.Store == StoreLocal, validation.Required)),
	)
}

func (c IdentifiersConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Policy, validation.By(validPolicy)),
		validation.Field(&c.DigitWidth, validation.Min(1), validation.Max(9)),
	)
}

func (c WorkbookConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.NameColumn, validation.Required),
		validation.Field(&c.HeaderRows, validation.Min(0)),
		validation.Field(&c.CounterCell, validation.Required),
	)
}

func validLogLevel(value interface{}) error {
	s, _ := value.(string)
	if hclog.LevelFromString(s) == hclog.NoLevel {
		return fmt.Errorf("unknown log level %q", s)
	}
	return nil
}

func validPolicy(value interface{}) error {
	s, _ := value.(string)
	_, err := sheetid.ParsePolicy(s)
	return err
}

// Interval returns the poll interval as a duration.
func (c *Config) Interval() time.Duration {
	return time.Duration(c.PollInterval) * time.Second
}

// Level returns the configured log level.
func (c *Config) Level() hclog.Level {
	return hclog.LevelFromString(c.LogLevel)
}

// Verify reports whether writes re-check the version token first.
func (c *Config) Verify() bool {
	return c.VerifyBeforeWrite == nil || *c.VerifyBeforeWrite
}

// WatchLocal reports whether the local store should wake the service on
// file system events.
func (c *Config) WatchLocal() bool {
	return c.Local != nil && (c.Local.Watch == nil || *c.Local.Watch)
}
