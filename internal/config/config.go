// Package config loads jobtracker settings from YAML files and JOBTRACKER_*
// environment variables, layered over built-in defaults.
package config

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"

	"github.com/eladdeutch/jobtracker/internal/errors"
)

const (
	// FileName is the config file looked up in the base and repo directories.
	FileName = "config.yaml"

	// EnvPrefix marks environment overrides, e.g. JOBTRACKER_MIN_CONFIDENCE.
	EnvPrefix = "JOBTRACKER_"

	// HomeEnv overrides the base directory, ~/.jobtracker by default.
	HomeEnv = "JOBTRACKER_HOME"

	maxConfigFileSize = 1 << 20
)

// DefaultBaseDir returns $JOBTRACKER_HOME, or ~/.jobtracker.
func DefaultBaseDir() (string, error) {
	if dir := strings.TrimSpace(os.Getenv(HomeEnv)); dir != "" {
		return filepath.Abs(dir)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "could not determine home directory")
	}
	return filepath.Join(home, ".jobtracker"), nil
}

// sections are the nested config blocks addressable from the environment.
// JOBTRACKER_GMAIL_CLIENT_ID maps to gmail.client_id; anything else keeps
// its underscores, so JOBTRACKER_MIN_CONFIDENCE maps to min_confidence.
var sections = map[string]bool{"gmail": true, "log": true, "http": true}

// Config holds application configuration.
type Config struct {
	// BaseDir is the directory the config was loaded from. It holds the
	// database and the default exports directory.
	BaseDir string `koanf:"-"`

	// Account scopes every record and the batch lock. Usually the mailbox address.
	Account string `koanf:"account"`

	// MinConfidence is the auto-process threshold in [0,1].
	MinConfidence float64 `koanf:"min_confidence"`

	// InactivityDays is how long an application may sit untouched before a
	// follow-up reminder is created.
	InactivityDays int `koanf:"inactivity_days"`

	// StaleDays is how long an application may sit untouched before
	// auto-reject-stale closes it.
	StaleDays int `koanf:"stale_days"`

	ScanDaysBack   int `koanf:"scan_days_back"`
	ScanMaxResults int `koanf:"scan_max_results"`

	// PositionSimilarity is the Jaro-Winkler cutoff for treating two titles
	// at the same company as one job.
	PositionSimilarity float64 `koanf:"position_similarity"`

	// LockTTLSeconds bounds how long a crashed batch run can hold the account lock.
	LockTTLSeconds int `koanf:"lock_ttl_seconds"`

	// FetchTimeoutSeconds bounds downloading a job posting page.
	FetchTimeoutSeconds int `koanf:"fetch_timeout_seconds"`

	// MailboxFile reads messages from a JSONL file instead of Gmail.
	MailboxFile string `koanf:"mailbox_file"`

	// AllowedPaths is an allowlist of directories for export files.
	// Paths outside ~/.jobtracker/exports require either being in this list or AllowUnsafePaths=true.
	AllowedPaths []string `koanf:"allowed_paths"`

	// AllowUnsafePaths disables directory restrictions for export.
	// Symlink and extension checks still apply.
	AllowUnsafePaths bool `koanf:"allow_unsafe_paths"`

	// DBMaxOpenConns limits the maximum number of open database connections.
	// If set to 1, all database access is serialized.
	// 0 means use sql.DB default (unlimited).
	DBMaxOpenConns int `koanf:"db_max_open_conns"`

	// DBMaxIdleConns limits the maximum number of idle database connections.
	DBMaxIdleConns int `koanf:"db_max_idle_conns"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	DisabledTools []string `koanf:"disabled_tools"`

	// DisabledTypes disables every tool of a type, e.g. "interview".
	DisabledTypes []string `koanf:"disabled_types"`

	Gmail GmailConfig `koanf:"gmail"`
	Log   LogConfig   `koanf:"log"`
	HTTP  HTTPConfig  `koanf:"http"`
}

// GmailConfig holds the Gmail API credentials. The refresh token is obtained
// out of band; jobtracker never runs the consent flow itself.
type GmailConfig struct {
	ClientID          string  `koanf:"client_id"`
	ClientSecret      string  `koanf:"client_secret"`
	RefreshToken      string  `koanf:"refresh_token"`
	User              string  `koanf:"user"`
	Query             string  `koanf:"query"`
	RequestsPerSecond float64 `koanf:"requests_per_second"`
	MaxRetries        int     `koanf:"max_retries"`
}

// Configured reports whether enough credentials are present to call the API.
func (g GmailConfig) Configured() bool {
	return g.ClientID != "" && g.ClientSecret != "" && g.RefreshToken != ""
}

// LogConfig selects the zap level and encoding.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// HTTPConfig is the listen address for the serve command.
type HTTPConfig struct {
	Bind string `koanf:"bind"`
	Port int    `koanf:"port"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Account:             "default",
		MinConfidence:       0.7,
		InactivityDays:      7,
		StaleDays:           30,
		ScanDaysBack:        30,
		ScanMaxResults:      100,
		PositionSimilarity:  0.88,
		LockTTLSeconds:      600,
		FetchTimeoutSeconds: 15,
		Gmail: GmailConfig{
			User:              "me",
			RequestsPerSecond: 5,
			MaxRetries:        3,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		HTTP: HTTPConfig{
			Bind: "127.0.0.1",
			Port: 8765,
		},
	}
}

// Load loads configuration from baseDir/config.yaml and the environment.
// Returns defaults if the file doesn't exist.
func Load(baseDir string) (*Config, error) {
	return LoadWithRepo(baseDir, "")
}

// LoadWithRepo layers defaults, baseDir/config.yaml, the nearest
// .jobtracker/config.yaml above startDir, and finally the environment.
// Later layers win for scalars; disabled_tools and disabled_types are unioned.
func LoadWithRepo(globalDir, startDir string) (*Config, error) {
	paths := []string{filepath.Join(globalDir, FileName)}
	if startDir != "" {
		if repo := FindRepoConfig(startDir); repo != "" {
			paths = append(paths, repo)
		}
	}

	k := koanf.New(".")
	var tools, types []string
	for _, path := range paths {
		data, err := readConfigFile(path)
		if err != nil {
			return nil, err
		}
		if data == nil {
			continue
		}
		if err := k.Load(rawbytes.Provider(data), yaml.Parser()); err != nil {
			return nil, errors.Wrapf(err, "parse %s", path)
		}
		tools = mergeStringSlice(tools, k.Strings("disabled_tools"))
		types = mergeStringSlice(types, k.Strings("disabled_types"))
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, errors.Wrap(err, "load environment")
	}

	cfg := DefaultConfig()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	cfg.DisabledTools = mergeStringSlice(tools, splitList(cfg.DisabledTools))
	cfg.DisabledTypes = mergeStringSlice(types, splitList(cfg.DisabledTypes))
	cfg.AllowedPaths = mergeStringSlice(nil, splitList(cfg.AllowedPaths))
	cfg.BaseDir = globalDir

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// envKey maps JOBTRACKER_GMAIL_CLIENT_ID to gmail.client_id.
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	if section, rest, ok := strings.Cut(key, "_"); ok && sections[section] {
		return section + "." + rest
	}
	return key
}

// FindRepoConfig walks upward from startDir to find the nearest .jobtracker/config.yaml.
// Returns the path if found, or empty string if not found.
func FindRepoConfig(startDir string) string {
	dir := startDir
	for {
		configPath := filepath.Join(dir, ".jobtracker", FileName)
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// readConfigFile returns nil, nil when path does not exist.
func readConfigFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, errors.Wrapf(err, "stat %s", path)
	}
	if info.Size() > maxConfigFileSize {
		return nil, errors.Newf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	return data, nil
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Account) == "":
		return errors.New("account must not be empty")
	case c.MinConfidence < 0 || c.MinConfidence > 1:
		return errors.Newf("min_confidence must be within [0,1], got %v", c.MinConfidence)
	case c.PositionSimilarity <= 0 || c.PositionSimilarity > 1:
		return errors.Newf("position_similarity must be within (0,1], got %v", c.PositionSimilarity)
	case c.InactivityDays < 0:
		return errors.Newf("inactivity_days must not be negative, got %d", c.InactivityDays)
	case c.StaleDays < 0:
		return errors.Newf("stale_days must not be negative, got %d", c.StaleDays)
	case c.ScanDaysBack < 0:
		return errors.Newf("scan_days_back must not be negative, got %d", c.ScanDaysBack)
	case c.ScanMaxResults < 0:
		return errors.Newf("scan_max_results must not be negative, got %d", c.ScanMaxResults)
	case c.FetchTimeoutSeconds < 0:
		return errors.Newf("fetch_timeout_seconds must not be negative, got %d", c.FetchTimeoutSeconds)
	case c.LockTTLSeconds <= 0:
		return errors.Newf("lock_ttl_seconds must be positive, got %d", c.LockTTLSeconds)
	case c.Gmail.MaxRetries < 0:
		return errors.Newf("gmail.max_retries must not be negative, got %d", c.Gmail.MaxRetries)
	case c.Gmail.RequestsPerSecond < 0:
		return errors.Newf("gmail.requests_per_second must not be negative, got %v", c.Gmail.RequestsPerSecond)
	case c.HTTP.Port < 0 || c.HTTP.Port > 65535:
		return errors.Newf("http.port out of range: %d", c.HTTP.Port)
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "json", "console":
	default:
		return errors.WithHint(
			errors.Newf("unknown log.format %q", c.Log.Format),
			"use json or console")
	}
	return nil
}

// splitList expands comma-separated entries, which is how lists arrive from the environment.
func splitList(in []string) []string {
	var out []string
	for _, s := range in {
		out = append(out, strings.Split(s, ",")...)
	}
	return out
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, list := range [][]string{a, b} {
		for _, s := range list {
			s = strings.TrimSpace(s)
			if s != "" && !seen[s] {
				seen[s] = true
				result = append(result, s)
			}
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}

// ExportsDir is where exports are written unless a path is given.
func (c *Config) ExportsDir() (string, error) {
	base := c.BaseDir
	if base == "" {
		var err error
		if base, err = DefaultBaseDir(); err != nil {
			return "", err
		}
	}
	return filepath.Join(base, "exports"), nil
}
