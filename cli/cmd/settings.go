package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/ferry/cli/config"
	"github.com/pithecene-io/ferry/rest"
)

const defaultTimeout = rest.DefaultTimeout

// positionalCount is the only non-zero positional argument count accepted.
const positionalCount = 6

const usageLine = "usage: ferry [flags] [server file username password folder-id session-name]"

// connection holds everything needed to reach the server.
type connection struct {
	Server         string
	Username       string
	Password       string
	PasswordSecret string
	SecretRegion   string

	APIPath       string
	Timeout       time.Duration
	Insecure      bool
	Retries       int
	RetryInterval time.Duration
	AuthCookie    string
}

// uploadSettings is the fully resolved input of one delivery.
type uploadSettings struct {
	connection

	File        string
	FolderID    string
	SessionName string
	PartSize    int64

	StoreBackend string
	StoreRegion  string
	AccessKey    string
	SecretKey    string

	Adapter config.AdapterConfig
}

// exeDir returns the directory of the running executable, or "".
var exeDir = func() string {
	exe, err := os.Executable()
	if err != nil {
		return ""
	}
	return filepath.Dir(exe)
}

// loadConfig loads --config, or a discovered ferry.yaml. A missing
// discovered file is not an error; a missing explicit file is.
func loadConfig(c *cli.Context) (*config.Config, error) {
	path := c.String("config")
	if path == "" {
		wd, _ := os.Getwd()
		path = config.Discover(wd, exeDir())
	}
	if path == "" {
		return &config.Config{}, nil
	}
	return config.Load(path)
}

func resolveConnection(c *cli.Context, cfg *config.Config) (connection, error) {
	conn := connection{
		Server:         orDefault(cfg.Server, config.DefaultServer),
		Username:       orDefault(cfg.Credentials.Username, config.DefaultUsername),
		Password:       orDefault(cfg.Credentials.Password, config.DefaultPassword),
		PasswordSecret: resolveString(c, "password-secret", cfg.Credentials.PasswordSecret),
		SecretRegion:   cfg.Credentials.SecretRegion,
		APIPath:        orDefault(cfg.Transport.APIPath, rest.DefaultAPIPath),
		Timeout:        resolveDuration(c, "timeout", cfg.Transport.Timeout),
		Insecure:       resolveBool(c, "insecure", cfg.Transport.InsecureSkipVerify),
		Retries:        resolveInt(c, "retries", cfg.Transport.Retries),
		RetryInterval:  cfg.Transport.RetryInterval.Duration,
		AuthCookie:     cfg.Transport.AuthCookie,
	}
	if conn.Retries < 0 {
		return connection{}, fmt.Errorf("--retries must be >= 0, got %d", conn.Retries)
	}
	if conn.Timeout <= 0 {
		return connection{}, fmt.Errorf("--timeout must be positive, got %v", conn.Timeout)
	}
	return conn, nil
}

// resolveUpload merges defaults, the config file, positionals and flags.
func resolveUpload(c *cli.Context, cfg *config.Config) (uploadSettings, error) {
	args := c.Args().Slice()
	if len(args) != 0 && len(args) != positionalCount {
		return uploadSettings{}, errUsage
	}

	conn, err := resolveConnection(c, cfg)
	if err != nil {
		return uploadSettings{}, err
	}
	s := uploadSettings{
		connection:   conn,
		File:         orDefault(cfg.Upload.File, config.DefaultFile),
		FolderID:     orDefault(cfg.Upload.FolderID, config.DefaultFolderID),
		SessionName:  orDefault(cfg.Upload.SessionName, config.DefaultSessionName),
		PartSize:     resolveInt64(c, "part-size", cfg.Upload.PartSize),
		StoreBackend: resolveString(c, "store-backend", cfg.Store.Backend),
		StoreRegion:  cfg.Store.Region,
		AccessKey:    cfg.Store.AccessKey,
		SecretKey:    cfg.Store.SecretKey,
		Adapter:      cfg.Adapter,
	}

	if len(args) == positionalCount {
		s.Server = args[0]
		s.File = args[1]
		s.Username = args[2]
		s.Password = args[3]
		s.FolderID = args[4]
		s.SessionName = args[5]
		// A literal password on the command line wins over a configured secret.
		if !c.IsSet("password-secret") {
			s.PasswordSecret = ""
		}
	}

	if u := c.String("webhook-url"); u != "" {
		s.Adapter = config.AdapterConfig{Type: "webhook", URL: u, Retries: s.Adapter.Retries, Timeout: s.Adapter.Timeout}
	}
	if u := c.String("redis-url"); u != "" {
		if c.String("webhook-url") != "" {
			return uploadSettings{}, errors.New("--webhook-url and --redis-url are mutually exclusive")
		}
		s.Adapter = config.AdapterConfig{Type: "redis", URL: u, Retries: s.Adapter.Retries, Timeout: s.Adapter.Timeout}
	}

	if s.PartSize <= 0 {
		return uploadSettings{}, fmt.Errorf("--part-size must be positive, got %d", s.PartSize)
	}
	switch s.StoreBackend {
	case "s3", "minio":
	default:
		return uploadSettings{}, fmt.Errorf("--store-backend must be s3 or minio, got %q", s.StoreBackend)
	}

	s.File = resolveFile(s.File)
	return s, nil
}

// resolveFile returns path unchanged when it exists or is absolute.
// Otherwise a file of that name next to the executable is preferred.
func resolveFile(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if _, err := os.Stat(path); err == nil {
		return path
	}
	dir := exeDir()
	if dir == "" {
		return path
	}
	candidate := filepath.Join(dir, path)
	if _, err := os.Stat(candidate); err == nil {
		return candidate
	}
	return path
}
