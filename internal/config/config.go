// Package config loads the relay settings file with environment-variable
// overrides, creating a template file on first run.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultFileName is the settings file looked up next to the executable.
const DefaultFileName = "settings.yaml"

// Provider names accepted in the provider setting.
const (
	ProviderGraph  = "graph"
	ProviderSES    = "ses"
	ProviderStdout = "stdout"
)

// Config holds the complete application configuration.
type Config struct {
	Provider         string        `yaml:"provider"`
	Graph            GraphConfig   `yaml:"graph"`
	SES              SESConfig     `yaml:"ses"`
	Content          ContentConfig `yaml:"content"`
	SaveEmailsToDisk bool          `yaml:"save_emails_to_disk"`
	Logging          LoggingConfig `yaml:"logging"`

	// Dir is the directory holding the settings file. Raw copies and the
	// daily error log are written there.
	Dir string `yaml:"-"`
}

// GraphConfig holds Microsoft Graph API credentials and the account mail
// is sent as.
type GraphConfig struct {
	TenantID     string `yaml:"tenant_id"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	SendingUser  string `yaml:"sending_user"`
}

// SESConfig holds AWS SES settings. The sending identity is graph.sending_user.
type SESConfig struct {
	Region          string `yaml:"region"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

// ContentConfig selects subject and body normalization.
type ContentConfig struct {
	HTMLDecode                bool `yaml:"html_decode"`
	RemoveDuplicateBlankLines bool `yaml:"remove_duplicate_blank_lines"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MissingError is returned by Load when the settings file did not exist and
// a template was written in its place.
type MissingError struct {
	Path string
}

func (e *MissingError) Error() string {
	return fmt.Sprintf("settings file %s not found, created new file with default settings", e.Path)
}

// DefaultPath returns settings.yaml in the executable's directory, or in
// the working directory if the executable cannot be located.
func DefaultPath() string {
	exe, err := os.Executable()
	if err != nil {
		return DefaultFileName
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Join(filepath.Dir(exe), DefaultFileName)
}

// Template returns the configuration written on first run.
func Template() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	cfg.Graph = GraphConfig{
		TenantID:     "Your TenantID",
		ClientID:     "App ClientID",
		ClientSecret: "App ClientSecret",
		SendingUser:  "sendingUser@yourcompany.com",
	}
	return cfg
}

// Load reads the YAML settings file at path as the base layer, then
// overrides with environment variables. If the file does not exist, a
// template is written to path and a *MissingError is returned.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		if err := WriteTemplate(path); err != nil {
			return nil, err
		}
		return nil, &MissingError{Path: path}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	cfg.applyDefaults()

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Environment variables always override YAML values
	cfg.applyEnvVars()
	cfg.Provider = strings.ToLower(strings.TrimSpace(cfg.Provider))
	cfg.Dir = filepath.Dir(path)

	return cfg, nil
}

// WriteTemplate creates path with the first-run template. It fails if the
// file already exists.
func WriteTemplate(path string) error {
	data, err := yaml.Marshal(Template())
	if err != nil {
		return fmt.Errorf("failed to encode settings template: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("failed to create settings file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("failed to write settings file: %w", err)
	}
	return f.Close()
}

// Validate checks that the settings required by the selected provider are set.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderGraph, "":
		if !c.GraphConfigured() {
			return errors.New("graph provider requires tenant_id, client_id, client_secret and sending_user")
		}
	case ProviderSES:
		if !c.SESConfigured() {
			return errors.New("ses provider requires ses.region and graph.sending_user")
		}
	case ProviderStdout:
		if c.Graph.SendingUser == "" {
			return errors.New("stdout provider requires graph.sending_user")
		}
	default:
		return fmt.Errorf("unknown provider %q", c.Provider)
	}
	return nil
}

// GraphConfigured returns true if all four Graph API settings are set.
func (c *Config) GraphConfigured() bool {
	return c.Graph.TenantID != "" &&
		c.Graph.ClientID != "" &&
		c.Graph.ClientSecret != "" &&
		c.Graph.SendingUser != ""
}

// SESConfigured returns true if the SES region and sending identity are set.
func (c *Config) SESConfigured() bool {
	return c.SES.Region != "" && c.Graph.SendingUser != ""
}

// applyDefaults sets default values for all configuration fields.
func (c *Config) applyDefaults() {
	c.Provider = ProviderGraph
	c.Content.HTMLDecode = true
	c.Content.RemoveDuplicateBlankLines = false
	c.SaveEmailsToDisk = false
	c.Logging.Level = "info"
	c.Logging.Format = "json"
}

// applyEnvVars overrides configuration with environment variable values.
// Only non-empty environment variables override existing values.
func (c *Config) applyEnvVars() {
	if v := os.Getenv("PROVIDER"); v != "" {
		c.Provider = v
	}

	if v := os.Getenv("GRAPH_TENANT_ID"); v != "" {
		c.Graph.TenantID = v
	}
	if v := os.Getenv("GRAPH_CLIENT_ID"); v != "" {
		c.Graph.ClientID = v
	}
	if v := os.Getenv("GRAPH_CLIENT_SECRET"); v != "" {
		c.Graph.ClientSecret = v
	}
	if v := os.Getenv("GRAPH_SENDING_USER"); v != "" {
		c.Graph.SendingUser = v
	}

	if v := os.Getenv("SES_REGION"); v != "" {
		c.SES.Region = v
	}
	if v := os.Getenv("SES_ACCESS_KEY_ID"); v != "" {
		c.SES.AccessKeyID = v
	}
	if v := os.Getenv("SES_SECRET_ACCESS_KEY"); v != "" {
		c.SES.SecretAccessKey = v
	}

	envBool("HTML_DECODE", &c.Content.HTMLDecode)
	envBool("REMOVE_DUPLICATE_BLANK_LINES", &c.Content.RemoveDuplicateBlankLines)
	envBool("SAVE_EMAILS_TO_DISK", &c.SaveEmailsToDisk)

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		c.Logging.Format = strings.ToLower(v)
	}
}

// envBool sets *dst from a boolean environment variable. Unparseable values
// are ignored.
func envBool(key string, dst *bool) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
