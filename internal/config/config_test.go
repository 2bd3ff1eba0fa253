package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.APIURL != DefaultAPIURL {
		t.Fatalf("expected default API URL, got %q", cfg.APIURL)
	}
	if cfg.DBPath != "" {
		t.Fatalf("expected empty db path, got %q", cfg.DBPath)
	}
	if cfg.LogLevel != DefaultLogLevel {
		t.Fatalf("expected default log level %q, got %q", DefaultLogLevel, cfg.LogLevel)
	}
	if cfg.Jira.ProjectKey != "SCRUM" {
		t.Fatalf("expected project key SCRUM, got %q", cfg.Jira.ProjectKey)
	}
	if cfg.Jira.IssueType != "Task" {
		t.Fatalf("expected issue type Task, got %q", cfg.Jira.IssueType)
	}
	if cfg.Jira.SprintField != "customfield_10020" {
		t.Fatalf("expected sprint field customfield_10020, got %q", cfg.Jira.SprintField)
	}
	if cfg.Jira.Timeout.Duration != DefaultJiraTimeout {
		t.Fatalf("expected jira timeout %s, got %s", DefaultJiraTimeout, cfg.Jira.Timeout.Duration)
	}
	if cfg.Auth.SessionTTL.Duration != DefaultSessionTTL {
		t.Fatalf("expected session ttl %s, got %s", DefaultSessionTTL, cfg.Auth.SessionTTL.Duration)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, configFileName)
	if err := os.WriteFile(path, []byte(`api_url = "http://localhost:9999"
log_level = "warn"

[jira]
project_key = "OPS"
timeout = "5s"
max_concurrent = 2

[auth]
session_ttl = "2h"
`), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg := Default()
	if err := loadFile(path, &cfg); err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.APIURL != "http://localhost:9999" {
		t.Fatalf("expected api_url 'http://localhost:9999', got %q", cfg.APIURL)
	}
	if cfg.LogLevel != "warn" {
		t.Fatalf("expected log_level 'warn', got %q", cfg.LogLevel)
	}
	if cfg.Jira.ProjectKey != "OPS" {
		t.Fatalf("expected project key OPS, got %q", cfg.Jira.ProjectKey)
	}
	if cfg.Jira.Timeout.Duration != 5*time.Second {
		t.Fatalf("expected 5s timeout, got %s", cfg.Jira.Timeout.Duration)
	}
	if cfg.Jira.MaxConcurrent != 2 {
		t.Fatalf("expected max_concurrent 2, got %d", cfg.Jira.MaxConcurrent)
	}
	if cfg.Jira.IssueType != DefaultIssueType {
		t.Fatalf("unset keys should keep defaults, got issue type %q", cfg.Jira.IssueType)
	}
	if cfg.Auth.SessionTTL.Duration != 2*time.Hour {
		t.Fatalf("expected 2h session ttl, got %s", cfg.Auth.SessionTTL.Duration)
	}
}

func TestLoadFileMissing(t *testing.T) {
	cfg := Default()
	if err := loadFile("/nonexistent/path/.taskbridge.toml", &cfg); err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if cfg.Jira.ProjectKey != DefaultProjectKey {
		t.Fatalf("defaults should be preserved")
	}
}

func TestLoadFileInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), configFileName)
	if err := os.WriteFile(path, []byte("jira = ["), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg := Default()
	if err := loadFile(path, &cfg); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(configDirEnvKey, dir)
	t.Setenv(apiURLEnvKey, "http://127.0.0.1:9100")
	t.Setenv(dbPathEnvKey, filepath.Join(dir, "custom.db"))
	t.Setenv(projectKeyEnvKey, "web")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.APIURL != "http://127.0.0.1:9100" {
		t.Fatalf("expected env api url, got %q", cfg.APIURL)
	}
	if cfg.DBPath != filepath.Join(dir, "custom.db") {
		t.Fatalf("expected env db path, got %q", cfg.DBPath)
	}
	if cfg.Jira.ProjectKey != "WEB" {
		t.Fatalf("expected upper-cased project key WEB, got %q", cfg.Jira.ProjectKey)
	}
}

func TestLoadNormalizesInvalidValues(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(configDirEnvKey, dir)
	t.Setenv(projectKeyEnvKey, "")
	if err := os.WriteFile(filepath.Join(dir, configFileName), []byte(`
[jira]
project_key = ""
issue_type = " "
max_concurrent = -3
`), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Jira.ProjectKey != DefaultProjectKey {
		t.Fatalf("expected default project key, got %q", cfg.Jira.ProjectKey)
	}
	if cfg.Jira.IssueType != DefaultIssueType {
		t.Fatalf("expected default issue type, got %q", cfg.Jira.IssueType)
	}
	if cfg.Jira.MaxConcurrent != 0 {
		t.Fatalf("expected negative max_concurrent to clamp to 0, got %d", cfg.Jira.MaxConcurrent)
	}
}

func TestIsAllowedKey(t *testing.T) {
	for _, key := range []string{
		"api_url",
		"db_path",
		"log_level",
		"secret_key_file",
		"jira.project_key",
		"jira.timeout",
		"auth.session_ttl",
	} {
		if !IsAllowedKey(key) {
			t.Fatalf("expected %q to be allowed", key)
		}
	}
	if IsAllowedKey("jira.api_token") {
		t.Fatal("api tokens must not be config keys")
	}
}

func TestSetKeyRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", configFileName)

	if err := SetKey(path, "jira.project_key", "ops"); err != nil {
		t.Fatalf("set project key: %v", err)
	}
	if err := SetKey(path, "jira.timeout", "45"); err != nil {
		t.Fatalf("set timeout: %v", err)
	}
	if err := SetKey(path, "log_level", "info"); err != nil {
		t.Fatalf("set log level: %v", err)
	}

	cfg := Default()
	if err := loadFile(path, &cfg); err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Jira.ProjectKey != "OPS" {
		t.Fatalf("expected OPS, got %q", cfg.Jira.ProjectKey)
	}
	if cfg.Jira.Timeout.Duration != 45*time.Second {
		t.Fatalf("expected 45s, got %s", cfg.Jira.Timeout.Duration)
	}
	if cfg.LogLevel != "info" {
		t.Fatalf("expected info, got %q", cfg.LogLevel)
	}

	value, err := cfg.Get("jira.timeout")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if value != "45s" {
		t.Fatalf("expected 45s, got %q", value)
	}
}

func TestSetKeyRejectsInvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), configFileName)
	if err := SetKey(path, "jira.max_concurrent", "many"); err == nil {
		t.Fatal("expected integer validation error")
	}
	if err := SetKey(path, "jira.allow_insecure", "maybe"); err == nil {
		t.Fatal("expected bool validation error")
	}
	if err := SetKey(path, "unknown", "x"); err == nil {
		t.Fatal("expected unknown key error")
	}
}
