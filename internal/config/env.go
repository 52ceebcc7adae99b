package config

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// envOverrides holds every supported environment variable. Pointer fields
// distinguish "unset" from a zero value.
type envOverrides struct {
	Store             string `mapstructure:"SHEETWATCH_STORE"`
	PollInterval      *int   `mapstructure:"POLL_INTERVAL"`
	Port              *int   `mapstructure:"PORT"`
	LogLevel          string `mapstructure:"LOG_LEVEL"`
	VerifyBeforeWrite *bool  `mapstructure:"VERIFY_BEFORE_WRITE"`

	AllocationPolicy string `mapstructure:"ALLOCATION_POLICY"`
	IDDigitWidth     *int   `mapstructure:"ID_DIGIT_WIDTH"`

	TenantID     string `mapstructure:"TENANT_ID"`
	ClientID     string `mapstructure:"CLIENT_ID"`
	ClientSecret string `mapstructure:"CLIENT_SECRET"`
	DriveID      string `mapstructure:"DRIVE_ID"`
	ItemID       string `mapstructure:"ITEM_ID"`

	GDriveFileID      string `mapstructure:"GDRIVE_FILE_ID"`
	GoogleCredentials string `mapstructure:"GOOGLE_APPLICATION_CREDENTIALS"`

	S3Bucket   string `mapstructure:"S3_BUCKET"`
	S3Key      string `mapstructure:"S3_KEY"`
	S3Region   string `mapstructure:"S3_REGION"`
	S3Endpoint string `mapstructure:"S3_ENDPOINT"`

	LocalPath string `mapstructure:"LOCAL_PATH"`

	NtfyTopic  string `mapstructure:"NTFY_TOPIC"`
	NtfyServer string `mapstructure:"NTFY_SERVER"`
}

var envKeys = []string{
	"SHEETWATCH_STORE", "POLL_INTERVAL", "PORT", "LOG_LEVEL", "VERIFY_BEFORE_WRITE",
	"ALLOCATION_POLICY", "ID_DIGIT_WIDTH",
	"TENANT_ID", "CLIENT_ID", "CLIENT_SECRET", "DRIVE_ID", "ITEM_ID",
	"GDRIVE_FILE_ID", "GOOGLE_APPLICATION_CREDENTIALS",
	"S3_BUCKET", "S3_KEY", "S3_REGION", "S3_ENDPOINT",
	"LOCAL_PATH",
	"NTFY_TOPIC", "NTFY_SERVER",
}

// applyEnv overlays environment variables on cfg.
func applyEnv(cfg *Config, lookup LookupFunc) error {
	raw := make(map[string]interface{})
	for _, key := range envKeys {
		if v, ok := lookup(key); ok && v != "" {
			raw[key] = v
		}
	}
	if len(raw) == 0 {
		return nil
	}

	var env envOverrides
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &env,
	})
	if err != nil {
		return err
	}
	if err := decoder.Decode(raw); err != nil {
		return fmt.Errorf("invalid environment: %w", err)
	}

	setString(&cfg.Store, env.Store)
	setString(&cfg.LogLevel, env.LogLevel)
	if env.PollInterval != nil {
		cfg.PollInterval = *env.PollInterval
	}
	if env.Port != nil {
		cfg.Port = *env.Port
	}
	if env.VerifyBeforeWrite != nil {
		cfg.VerifyBeforeWrite = env.VerifyBeforeWrite
	}

	if env.AllocationPolicy != "" || env.IDDigitWidth != nil {
		if cfg.Identifiers == nil {
			cfg.Identifiers = &IdentifiersConfig{}
		}
		setString(&cfg.Identifiers.Policy, env.AllocationPolicy)
		if env.IDDigitWidth != nil {
			cfg.Identifiers.DigitWidth = *env.IDDigitWidth
		}
	}

	if anySet(env.TenantID, env.ClientID, env.ClientSecret, env.DriveID, env.ItemID) {
		if cfg.Graph == nil {
			cfg.Graph = &GraphConfig{}
		}
		setString(&cfg.Graph.TenantID, env.TenantID)
		setString(&cfg.Graph.ClientID, env.ClientID)
		setString(&cfg.Graph.ClientSecret, env.ClientSecret)
		setString(&cfg.Graph.DriveID, env.DriveID)
		setString(&cfg.Graph.ItemID, env.ItemID)
	}

	if anySet(env.GDriveFileID, env.GoogleCredentials) {
		if cfg.GoogleDrive == nil {
			cfg.GoogleDrive = &GoogleDriveConfig{}
		}
		setString(&cfg.GoogleDrive.FileID, env.GDriveFileID)
		setString(&cfg.GoogleDrive.CredentialsFile, env.GoogleCredentials)
	}

	if anySet(env.S3Bucket, env.S3Key, env.S3Region, env.S3Endpoint) {
		if cfg.S3 == nil {
			cfg.S3 = &S3Config{}
		}
		setString(&cfg.S3.Bucket, env.S3Bucket)
		setString(&cfg.S3.Key, env.S3Key)
		setString(&cfg.S3.Region, env.S3Region)
		setString(&cfg.S3.Endpoint, env.S3Endpoint)
	}

	if env.LocalPath != "" {
		if cfg.Local == nil {
			cfg.Local = &LocalConfig{}
		}
		cfg.Local.Path = env.LocalPath
	}

	if anySet(env.NtfyTopic, env.NtfyServer) {
		if cfg.Ntfy == nil {
			cfg.Ntfy = &NtfyConfig{}
		}
		setString(&cfg.Ntfy.Topic, env.NtfyTopic)
		setString(&cfg.Ntfy.Server, env.NtfyServer)
	}

	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func anySet(values ...string) bool {
	for _, v := range values {
		if v != "" {
			return true
		}
	}
	return false
}
