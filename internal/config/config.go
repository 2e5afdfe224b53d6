// Package config provides configuration loading and management for the sync client
// and the development server.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/studykit/colsync/internal/collection"
	"github.com/studykit/colsync/internal/sync"
	"github.com/studykit/colsync/internal/telemetry"
	"github.com/studykit/colsync/internal/transport"
)

const (
	// DefaultProfile names the keyring entry and status file when none is configured
	DefaultProfile = "default"

	// DefaultAutoSyncInterval is the minimum time between automatic syncs
	DefaultAutoSyncInterval = 10 * time.Minute

	// DefaultDevServerAddr is where the development server listens
	DefaultDevServerAddr = "127.0.0.1:27701"

	// EnvPrefix is the prefix of environment variables overriding flags
	EnvPrefix = "COLSYNC"

	// PasswordEnvVar supplies the login password when no password file is configured
	PasswordEnvVar = "COLSYNC_PASSWORD"
)

// Option defines the interface for configuration options
type Option func(*loaderConfig) error

// loaderConfig defines the configuration for loading a configuration
type loaderConfig struct {
	path    string
	dataDir string
}

// WithConfigPath loads configuration from a YAML file
func WithConfigPath(path string) Option {
	return func(cfg *loaderConfig) error {
		if path == "" {
			return fmt.Errorf("path is required")
		}

		// Resolve symlinks to prevent symlink attacks.
		// Note that this calls filepath.Clean internally.
		realPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			return fmt.Errorf("failed to evaluate symlinks: %w", err)
		}

		if !filepath.IsAbs(realPath) && !filepath.IsLocal(realPath) {
			return fmt.Errorf("path is not local or contains invalid traversal: %s", path)
		}

		cfg.path = realPath
		return nil
	}
}

// WithDataDir sets the data directory used when the file does not name one
func WithDataDir(dir string) Option {
	return func(cfg *loaderConfig) error {
		if dir == "" {
			return fmt.Errorf("data directory is required")
		}
		cfg.dataDir = dir
		return nil
	}
}

// Config represents the root configuration structure
type Config struct {
	// Profile separates accounts on one machine; it names the keyring entry and
	// the status file. Defaults to "default".
	Profile string `yaml:"profile,omitempty"`

	// DataDir holds collections and sync status. Defaults to the user data directory.
	DataDir string `yaml:"dataDir,omitempty"`

	Account    AccountConfig     `yaml:"account,omitempty"`
	Collection CollectionConfig  `yaml:"collection,omitempty"`
	Server     ServerConfig      `yaml:"server,omitempty"`
	Sync       SyncConfig        `yaml:"sync,omitempty"`
	WakeLock   WakeLockConfig    `yaml:"wakeLock,omitempty"`
	Logging    LoggingConfig     `yaml:"logging,omitempty"`
	Telemetry  *telemetry.Config `yaml:"telemetry,omitempty"`
	DevServer  DevServerConfig   `yaml:"devServer,omitempty"`
}

// AccountConfig holds the login identity
type AccountConfig struct {
	Username string `yaml:"username,omitempty"`

	// PasswordFile is the path to a file containing the password.
	// The file should contain only the password with optional trailing whitespace.
	PasswordFile string `yaml:"passwordFile,omitempty"`
}

// CollectionConfig locates the local collection
type CollectionConfig struct {
	// Path defaults to <dataDir>/<profile>/collection.db
	Path string `yaml:"path,omitempty"`

	// MediaDir defaults to the collection path with a .media extension
	MediaDir string `yaml:"mediaDir,omitempty"`

	// LockTimeout bounds how long a sync waits for the collection lock (e.g. "10s")
	LockTimeout string `yaml:"lockTimeout,omitempty"`
}

// ServerConfig selects the remote
type ServerConfig struct {
	// Endpoint is a custom sync server URL; empty selects the hosted service
	Endpoint string `yaml:"endpoint,omitempty"`

	// HostNum is the shard the account lives on
	HostNum int `yaml:"hostNum,omitempty"`

	// Timeout bounds a single request (e.g. "60s")
	Timeout string `yaml:"timeout,omitempty"`

	// MaxResponseSize bounds a single response in bytes
	MaxResponseSize int64 `yaml:"maxResponseSize,omitempty"`
}

// SyncConfig controls the sync pipeline
type SyncConfig struct {
	// Media also syncs the media directory
	Media bool `yaml:"media"`

	// OnConflict picks a full sync direction automatically: "upload", "download" or empty
	OnConflict string `yaml:"onConflict,omitempty"`

	// AllowOffline skips the connectivity pre-check
	AllowOffline bool `yaml:"allowOffline,omitempty"`

	// AutoInterval is the minimum time between automatic syncs (e.g. "10m")
	AutoInterval string `yaml:"autoInterval,omitempty"`

	// PredecessorTimeout bounds the wait for the previous job (e.g. "30s")
	PredecessorTimeout string `yaml:"predecessorTimeout,omitempty"`

	// PriorTaskTimeout bounds the wait for background tasks (e.g. "5s")
	PriorTaskTimeout string `yaml:"priorTaskTimeout,omitempty"`
}

// WakeLockConfig controls the sleep inhibitor held while a job runs
type WakeLockConfig struct {
	Enabled bool `yaml:"enabled"`

	// Command defaults to systemd-inhibit
	Command string   `yaml:"command,omitempty"`
	Args    []string `yaml:"args,omitempty"`
}

// LoggingConfig controls log output
type LoggingConfig struct {
	// Level is debug, info, warn or error
	Level string `yaml:"level,omitempty"`

	// Format is text or json
	Format string `yaml:"format,omitempty"`

	// File enables rotated file output
	File       string `yaml:"file,omitempty"`
	MaxSizeMB  int    `yaml:"maxSizeMB,omitempty"`
	MaxBackups int    `yaml:"maxBackups,omitempty"`
	MaxAgeDays int    `yaml:"maxAgeDays,omitempty"`
}

// DevServerConfig configures the development sync server
type DevServerConfig struct {
	Addr    string `yaml:"addr,omitempty"`
	DataDir string `yaml:"dataDir,omitempty"`

	// Users maps usernames to passwords
	Users map[string]string `yaml:"users,omitempty"`

	// MinClientVersion rejects older clients with an upgrade request
	MinClientVersion string `yaml:"minClientVersion,omitempty"`

	// Message is shown to clients on every sync
	Message string `yaml:"message,omitempty"`
}

// LoadConfig loads configuration from a YAML file when one is given, applies
// defaults and validates the result
func LoadConfig(opts ...Option) (*Config, error) {
	loaderCfg := &loaderConfig{}
	for _, opt := range opts {
		if err := opt(loaderCfg); err != nil {
			return nil, err
		}
	}

	var config Config
	if loaderCfg.path != "" {
		data, err := os.ReadFile(loaderCfg.path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	}

	if config.DataDir == "" {
		config.DataDir = loaderCfg.dataDir
	}
	if config.DataDir == "" {
		dir, err := defaultDataDir()
		if err != nil {
			return nil, err
		}
		config.DataDir = dir
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &config, nil
}

func defaultDataDir() (string, error) {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "colsync"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate data directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", "colsync"), nil
}

// GetProfile returns the profile, using "default" if not specified
func (c *Config) GetProfile() string {
	if c.Profile == "" {
		return DefaultProfile
	}
	return c.Profile
}

// CollectionPath returns the collection file location
func (c *Config) CollectionPath() string {
	if c.Collection.Path != "" {
		return c.Collection.Path
	}
	return filepath.Join(c.DataDir, c.GetProfile(), "collection.db")
}

// StatusDir returns where sync status files are kept
func (c *Config) StatusDir() string {
	return filepath.Join(c.DataDir, "status")
}

// CollectionOptions returns the options the collection is opened with
func (c *Config) CollectionOptions() []collection.Option {
	var opts []collection.Option
	if c.Collection.MediaDir != "" {
		opts = append(opts, collection.WithMediaDir(c.Collection.MediaDir))
	}
	if d := parseDuration(c.Collection.LockTimeout); d > 0 {
		opts = append(opts, collection.WithLockTimeout(d))
	}
	return opts
}

// RequestTimeout returns the per-request timeout, zero meaning the transport default
func (c *Config) RequestTimeout() time.Duration {
	return parseDuration(c.Server.Timeout)
}

// AutoSyncInterval returns the minimum time between automatic syncs
func (c *Config) AutoSyncInterval() time.Duration {
	if d := parseDuration(c.Sync.AutoInterval); d > 0 {
		return d
	}
	return DefaultAutoSyncInterval
}

// PredecessorTimeout returns the configured predecessor wait, zero meaning the default
func (c *Config) PredecessorTimeout() time.Duration {
	return parseDuration(c.Sync.PredecessorTimeout)
}

// PriorTaskTimeout returns the configured background task wait, zero meaning the default
func (c *Config) PriorTaskTimeout() time.Duration {
	return parseDuration(c.Sync.PriorTaskTimeout)
}

// FallbackResolution returns the configured automatic conflict direction
func (c *Config) FallbackResolution() sync.ConflictResolution {
	r, _ := sync.ParseResolution(c.Sync.OnConflict)
	return r
}

// DevServerAddr returns the development server listen address
func (c *Config) DevServerAddr() string {
	if c.DevServer.Addr == "" {
		return DefaultDevServerAddr
	}
	return c.DevServer.Addr
}

// DevServerDataDir returns where the development server keeps account data
func (c *Config) DevServerDataDir() string {
	if c.DevServer.DataDir != "" {
		return c.DevServer.DataDir
	}
	return filepath.Join(c.DataDir, "server")
}

// GetPassword returns the login password using the following priority:
// 1. Read from PasswordFile if specified
// 2. Read from the COLSYNC_PASSWORD environment variable
//
// The password from file will have leading/trailing whitespace trimmed.
func (a *AccountConfig) GetPassword() (string, error) {
	if a.PasswordFile != "" {
		cleanPath := filepath.Clean(a.PasswordFile)

		data, err := os.ReadFile(cleanPath)
		if err != nil {
			return "", fmt.Errorf("failed to read password from file %s: %w", a.PasswordFile, err)
		}
		return strings.TrimSpace(string(data)), nil
	}

	if envPassword := os.Getenv(PasswordEnvVar); envPassword != "" {
		return envPassword, nil
	}

	return "", fmt.Errorf("no password configured: set account.passwordFile or the %s environment variable", PasswordEnvVar)
}

// Validate performs validation on the configuration
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config cannot be nil")
	}

	var errs []error
	if c.Profile != "" && !collection.ValidMediaName(c.Profile) {
		errs = append(errs, fmt.Errorf("profile %q must be a plain name", c.Profile))
	}
	if c.Server.Endpoint != "" {
		if _, err := transport.NewRouter(c.Server.Endpoint).Base(0); err != nil {
			errs = append(errs, fmt.Errorf("server.endpoint: %w", err))
		}
	}
	if c.Server.HostNum < 0 {
		errs = append(errs, fmt.Errorf("server.hostNum must not be negative"))
	}
	if c.Server.MaxResponseSize < 0 {
		errs = append(errs, fmt.Errorf("server.maxResponseSize must not be negative"))
	}
	if _, err := sync.ParseResolution(c.Sync.OnConflict); err != nil {
		errs = append(errs, fmt.Errorf("sync.onConflict: %w", err))
	}

	for field, value := range map[string]string{
		"collection.lockTimeout":  c.Collection.LockTimeout,
		"server.timeout":          c.Server.Timeout,
		"sync.autoInterval":       c.Sync.AutoInterval,
		"sync.predecessorTimeout": c.Sync.PredecessorTimeout,
		"sync.priorTaskTimeout":   c.Sync.PriorTaskTimeout,
	} {
		if err := validateDuration(value); err != nil {
			errs = append(errs, fmt.Errorf("%s must be a valid positive duration (e.g., '30s', '10m'): %w", field, err))
		}
	}

	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level))
	}
	switch c.Logging.Format {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format %q is not one of text, json", c.Logging.Format))
	}

	for username := range c.DevServer.Users {
		if !collection.ValidMediaName(username) {
			errs = append(errs, fmt.Errorf("devServer.users: %q cannot be used as a username", username))
		}
	}

	if err := c.Telemetry.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("telemetry: %w", err))
	}

	return errors.Join(errs...)
}

func validateDuration(value string) error {
	if value == "" {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return err
	}
	if d <= 0 {
		return fmt.Errorf("got %s", value)
	}
	return nil
}

// parseDuration returns zero for empty or invalid values; Validate reports the latter
func parseDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}
