// Package config loads the ferry.yaml configuration file.
//
// All values are optional and act as defaults for the upload command.
// Positional arguments and flags always override config values.
package config

import (
	"errors"
	"fmt"
	"time"
)

// Built-in defaults used when neither flags, positionals nor the config
// file provide a value.
const (
	DefaultServer      = "localhost"
	DefaultFile        = "foobar.mp4"
	DefaultUsername    = "foo"
	DefaultPassword    = "bar"
	DefaultFolderID    = "0xDEADBEEF"
	DefaultSessionName = "foobar"
	DefaultPartSize    = 1048576
)

// Config represents a ferry.yaml configuration file.
type Config struct {
	Server      string            `yaml:"server"`
	Credentials CredentialsConfig `yaml:"credentials"`
	Upload      UploadConfig      `yaml:"upload"`
	Transport   TransportConfig   `yaml:"transport"`
	Store       StoreConfig       `yaml:"store"`
	Adapter     AdapterConfig     `yaml:"adapter"`
}

// CredentialsConfig holds the account used to authenticate.
type CredentialsConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	// PasswordSecret is an "env:NAME" or Secrets Manager reference.
	// When set it takes precedence over Password.
	PasswordSecret string `yaml:"password_secret"`
	// SecretRegion is the region of the Secrets Manager secret.
	SecretRegion string `yaml:"secret_region"`
}

// UploadConfig holds the delivery defaults.
type UploadConfig struct {
	File        string `yaml:"file"`
	FolderID    string `yaml:"folder_id"`
	SessionName string `yaml:"session_name"`
	PartSize    int64  `yaml:"part_size"`
}

// TransportConfig holds REST transport settings.
type TransportConfig struct {
	APIPath            string   `yaml:"api_path"`
	Timeout            Duration `yaml:"timeout"`
	InsecureSkipVerify bool     `yaml:"insecure_skip_verify"`
	Retries            *int     `yaml:"retries,omitempty"`
	RetryInterval      Duration `yaml:"retry_interval"`
	AuthCookie         string   `yaml:"auth_cookie"`
}

// StoreConfig holds object store settings.
type StoreConfig struct {
	Backend   string `yaml:"backend"`
	Region    string `yaml:"region"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
}

// AdapterConfig holds notification adapter settings.
type AdapterConfig struct {
	Type      string            `yaml:"type"`
	URL       string            `yaml:"url"`
	Channel   string            `yaml:"channel,omitempty"`
	KeyPrefix string            `yaml:"key_prefix,omitempty"`
	TTL       Duration          `yaml:"ttl,omitempty"`
	Secret    string            `yaml:"secret,omitempty"`
	Headers   map[string]string `yaml:"headers,omitempty"`
	Timeout   Duration          `yaml:"timeout,omitempty"`
	Retries   *int              `yaml:"retries,omitempty"`
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	if parsed < 0 {
		return fmt.Errorf("invalid duration %q: must not be negative", s)
	}
	d.Duration = parsed
	return nil
}

// MarshalYAML writes the duration back as a string.
func (d Duration) MarshalYAML() (any, error) {
	if d.Duration == 0 {
		return "", nil
	}
	return d.String(), nil
}

// Validate checks values that cannot be caught while decoding.
func (c *Config) Validate() error {
	var errs []error
	if c.Upload.PartSize < 0 {
		errs = append(errs, fmt.Errorf("upload.part_size must be positive, got %d", c.Upload.PartSize))
	}
	if c.Transport.Retries != nil && *c.Transport.Retries < 0 {
		errs = append(errs, fmt.Errorf("transport.retries must be >= 0, got %d", *c.Transport.Retries))
	}
	switch c.Store.Backend {
	case "", "s3", "minio":
	default:
		errs = append(errs, fmt.Errorf("store.backend must be s3 or minio, got %q", c.Store.Backend))
	}
	switch c.Adapter.Type {
	case "":
	case "webhook", "redis":
		if c.Adapter.URL == "" {
			errs = append(errs, fmt.Errorf("adapter.url is required for %s adapter", c.Adapter.Type))
		}
	default:
		errs = append(errs, fmt.Errorf("adapter.type must be webhook or redis, got %q", c.Adapter.Type))
	}
	if c.Adapter.Retries != nil && *c.Adapter.Retries < 0 {
		errs = append(errs, fmt.Errorf("adapter.retries must be >= 0, got %d", *c.Adapter.Retries))
	}
	return errors.Join(errs...)
}
