package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	DefaultAPIURL     = "http://127.0.0.1:7340"
	DefaultDBFileName = ".taskbridge.db"
	DefaultLogLevel   = "debug"

	DefaultProjectKey        = "SCRUM"
	DefaultIssueType         = "Task"
	DefaultSprintField       = "customfield_10020"
	DefaultJiraTimeout       = 30 * time.Second
	DefaultJiraMaxConcurrent = 16

	DefaultSessionTTL       = 24 * time.Hour
	DefaultLoginMaxFailures = 5

	configFileName           = ".taskbridge.toml"
	configDirEnvKey          = "TASKBRIDGE_CONFIG_DIR"
	trustProjectConfigEnvKey = "TASKBRIDGE_TRUST_PROJECT_CONFIG"
	apiURLEnvKey             = "TASKBRIDGE_API_URL"
	dbPathEnvKey             = "TASKBRIDGE_DB"
	projectKeyEnvKey         = "TASKBRIDGE_PROJECT_KEY"
)

// Duration wraps time.Duration so it can be written as "30s" in TOML.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := parseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// JiraConfig controls how requests are proxied to Jira.
type JiraConfig struct {
	ProjectKey    string   `toml:"project_key"`
	IssueType     string   `toml:"issue_type"`
	SprintField   string   `toml:"sprint_field"`
	Timeout       Duration `toml:"timeout"`
	MaxConcurrent int      `toml:"max_concurrent"`
	AllowInsecure bool     `toml:"allow_insecure"`
}

// AuthConfig controls local login sessions.
type AuthConfig struct {
	SessionTTL       Duration `toml:"session_ttl"`
	LoginMaxFailures int      `toml:"login_max_failures"`
}

// Config defines runtime configuration for taskbridge.
type Config struct {
	APIURL                   string     `toml:"api_url"`
	DBPath                   string     `toml:"db_path"`
	LogLevel                 string     `toml:"log_level"`
	SecretKeyFile            string     `toml:"secret_key_file"`
	Auth                     AuthConfig `toml:"auth"`
	Jira                     JiraConfig `toml:"jira"`
	TrustedProjectConfigPath string     `toml:"-"`
}

// Default returns default configuration values.
func Default() Config {
	return Config{
		APIURL:   DefaultAPIURL,
		DBPath:   "",
		LogLevel: DefaultLogLevel,
		Auth: AuthConfig{
			SessionTTL:       Duration{DefaultSessionTTL},
			LoginMaxFailures: DefaultLoginMaxFailures,
		},
		Jira: JiraConfig{
			ProjectKey:    DefaultProjectKey,
			IssueType:     DefaultIssueType,
			SprintField:   DefaultSprintField,
			Timeout:       Duration{DefaultJiraTimeout},
			MaxConcurrent: DefaultJiraMaxConcurrent,
		},
	}
}

func loadFile(path string, cfg *Config) error {
	_, err := loadFileIfExists(path, cfg)
	return err
}

func loadFileIfExists(path string, cfg *Config) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if info.IsDir() {
		return false, nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return false, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return true, nil
}

func overrideConfigPath() (string, bool) {
	dir := strings.TrimSpace(os.Getenv(configDirEnvKey))
	if dir == "" {
		return "", false
	}
	return filepath.Join(dir, configFileName), true
}

func trustProjectConfig() bool {
	raw := strings.TrimSpace(os.Getenv(trustProjectConfigEnvKey))
	if raw == "" {
		return false
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false
	}
	return value
}

var allowedKeys = []string{
	"api_url",
	"db_path",
	"log_level",
	"secret_key_file",
	"auth.session_ttl",
	"auth.login_max_failures",
	"jira.project_key",
	"jira.issue_type",
	"jira.sprint_field",
	"jira.timeout",
	"jira.max_concurrent",
	"jira.allow_insecure",
}

// AllowedKeys returns the set of valid config keys.
func AllowedKeys() []string {
	return allowedKeys
}

// IsAllowedKey checks if a key is a valid config key.
func IsAllowedKey(key string) bool {
	for _, k := range allowedKeys {
		if k == key {
			return true
		}
	}
	return false
}

// Get returns the value of a config key.
func (c *Config) Get(key string) (string, error) {
	switch key {
	case "api_url":
		return c.APIURL, nil
	case "db_path":
		return c.DBPath, nil
	case "log_level":
		return c.LogLevel, nil
	case "secret_key_file":
		return c.SecretKeyFile, nil
	case "auth.session_ttl":
		return c.Auth.SessionTTL.String(), nil
	case "auth.login_max_failures":
		return strconv.Itoa(c.Auth.LoginMaxFailures), nil
	case "jira.project_key":
		return c.Jira.ProjectKey, nil
	case "jira.issue_type":
		return c.Jira.IssueType, nil
	case "jira.sprint_field":
		return c.Jira.SprintField, nil
	case "jira.timeout":
		return c.Jira.Timeout.String(), nil
	case "jira.max_concurrent":
		return strconv.Itoa(c.Jira.MaxConcurrent), nil
	case "jira.allow_insecure":
		return strconv.FormatBool(c.Jira.AllowInsecure), nil
	default:
		return "", fmt.Errorf("unknown key: %s", key)
	}
}

// GlobalPath returns the path to the global config file.
func GlobalPath() (string, error) {
	if path, ok := overrideConfigPath(); ok {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, configFileName), nil
}

// ProjectPath returns the path to the project config file.
func ProjectPath() (string, error) {
	if path, ok := overrideConfigPath(); ok {
		return path, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(cwd, configFileName), nil
}

// SetKey reads the TOML file at path, sets key=value, and writes it back.
func SetKey(path, key, value string) error {
	if !IsAllowedKey(key) {
		return fmt.Errorf("unknown key: %s", key)
	}

	data := make(map[string]any)
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &data); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	}

	parsedValue, err := parseSetValue(key, value)
	if err != nil {
		return err
	}
	if err := setNestedKey(data, strings.Split(key, "."), parsedValue); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(data)
}

// Load reads config from trusted files and applies env overrides.
func Load() (*Config, error) {
	cfg := Default()

	if overridePath, ok := overrideConfigPath(); ok {
		if err := loadFile(overridePath, &cfg); err != nil {
			return nil, err
		}
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			if err := loadFile(filepath.Join(home, configFileName), &cfg); err != nil {
				return nil, err
			}
		}

		if trustProjectConfig() {
			if cwd, err := os.Getwd(); err == nil {
				projectPath := filepath.Join(cwd, configFileName)
				info, statErr := os.Stat(projectPath)
				switch {
				case statErr == nil && !info.IsDir():
					if err := loadFile(projectPath, &cfg); err != nil {
						return nil, err
					}
					cfg.TrustedProjectConfigPath = projectPath
				case statErr != nil && !os.IsNotExist(statErr):
					return nil, statErr
				}
			}
		}
	}

	if cfg.DBPath == "" {
		if cwd, err := os.Getwd(); err == nil {
			cfg.DBPath = filepath.Join(cwd, DefaultDBFileName)
		}
	}

	if apiURL := os.Getenv(apiURLEnvKey); apiURL != "" {
		cfg.APIURL = apiURL
	}
	if dbPath := os.Getenv(dbPathEnvKey); dbPath != "" {
		cfg.DBPath = dbPath
	}
	if projectKey := strings.TrimSpace(os.Getenv(projectKeyEnvKey)); projectKey != "" {
		cfg.Jira.ProjectKey = projectKey
	}

	cfg.normalize()

	return &cfg, nil
}

func parseSetValue(key, value string) (any, error) {
	value = strings.TrimSpace(value)
	switch key {
	case "auth.login_max_failures", "jira.max_concurrent":
		parsed, err := strconv.Atoi(value)
		if err != nil || parsed < 0 {
			return nil, fmt.Errorf("%s must be a non-negative integer", key)
		}
		return parsed, nil
	case "auth.session_ttl", "jira.timeout":
		parsed, err := parseDuration(value)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("%s must be a positive duration", key)
		}
		return parsed.String(), nil
	case "jira.allow_insecure":
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("%s must be true or false", key)
		}
		return parsed, nil
	case "jira.project_key":
		return strings.ToUpper(value), nil
	default:
		return value, nil
	}
}

func setNestedKey(data map[string]any, parts []string, value any) error {
	if len(parts) == 0 {
		return fmt.Errorf("invalid config key")
	}
	if len(parts) == 1 {
		data[parts[0]] = value
		return nil
	}
	childRaw, ok := data[parts[0]]
	if !ok {
		child := map[string]any{}
		data[parts[0]] = child
		return setNestedKey(child, parts[1:], value)
	}
	child, ok := childRaw.(map[string]any)
	if !ok {
		return fmt.Errorf("cannot set nested key %q", strings.Join(parts, "."))
	}
	return setNestedKey(child, parts[1:], value)
}

// parseDuration accepts Go duration strings and bare integers as seconds.
func parseDuration(value string) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, fmt.Errorf("duration is required")
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d, nil
	}
	seconds, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", value)
	}
	return time.Duration(seconds) * time.Second, nil
}

func (c *Config) normalize() {
	if strings.TrimSpace(c.LogLevel) == "" {
		c.LogLevel = DefaultLogLevel
	}
	c.Jira.ProjectKey = strings.ToUpper(strings.TrimSpace(c.Jira.ProjectKey))
	if c.Jira.ProjectKey == "" {
		c.Jira.ProjectKey = DefaultProjectKey
	}
	if strings.TrimSpace(c.Jira.IssueType) == "" {
		c.Jira.IssueType = DefaultIssueType
	}
	if strings.TrimSpace(c.Jira.SprintField) == "" {
		c.Jira.SprintField = DefaultSprintField
	}
	if c.Jira.Timeout.Duration <= 0 {
		c.Jira.Timeout = Duration{DefaultJiraTimeout}
	}
	if c.Jira.MaxConcurrent < 0 {
		c.Jira.MaxConcurrent = 0
	}
	if c.Auth.SessionTTL.Duration <= 0 {
		c.Auth.SessionTTL = Duration{DefaultSessionTTL}
	}
	if c.Auth.LoginMaxFailures < 0 {
		c.Auth.LoginMaxFailures = 0
	}
}
