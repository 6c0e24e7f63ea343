package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"
	"gopkg.in/yaml.v3"
)

// Config represents the persisted application configuration.
type Config struct {
	DataDir          string `yaml:"data_dir"`
	BaseURL          string `yaml:"base_url"`
	HTTPTimeoutSec   int    `yaml:"http_timeout_seconds"`
	RetryCount       int    `yaml:"retry_count"`
	RetryBaseDelayMs int    `yaml:"retry_base_delay_ms"`
	UserAgent        string `yaml:"user_agent"`
	Proxy            string `yaml:"proxy,omitempty"`
	TLSVerify        bool   `yaml:"tls_verify"`
	ProbeDurations   bool   `yaml:"probe_durations"`
}

// Defaults returns the baseline configuration used on first run.
func Defaults() Config {
	home, _ := os.UserHomeDir()
	return Config{
		DataDir:          filepath.Join(home, "Talks"),
		BaseURL:          "https://www.freebuddhistaudio.com",
		HTTPTimeoutSec:   30,
		RetryCount:       3,
		RetryBaseDelayMs: 1000,
		UserAgent:        "fbaudio/dev",
		TLSVerify:        true,
		ProbeDurations:   true,
	}
}

// Ensure loads configuration from the provided path, prompting the user to
// create one if it does not yet exist.
func Ensure(path string) (Config, error) {
	cfg, err := Load(path)
	if err == nil {
		return cfg, nil
	}

	if !errors.Is(err, fs.ErrNotExist) {
		return Config{}, err
	}

	cfg = Defaults()
	if err := bootstrap(&cfg); err != nil {
		return Config{}, err
	}

	if err := Save(path, cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Load reads configuration from disk.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	defaults := Defaults()
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = defaults.BaseURL
	}
	if cfg.HTTPTimeoutSec <= 0 {
		cfg.HTTPTimeoutSec = defaults.HTTPTimeoutSec
	}
	if cfg.RetryCount <= 0 {
		cfg.RetryCount = defaults.RetryCount
	}
	if cfg.RetryBaseDelayMs <= 0 {
		cfg.RetryBaseDelayMs = defaults.RetryBaseDelayMs
	}
	return cfg, nil
}

// Save writes configuration back to disk, ensuring directory permissions are restrictive.
func Save(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	temp := path + ".tmp"
	if err := os.WriteFile(temp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(temp, path)
}

func bootstrap(cfg *Config) error {
	if fromEnv := strings.TrimSpace(os.Getenv("FBAUDIO_DATA_DIR")); fromEnv != "" {
		resolved, err := expandPath(fromEnv)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(resolved, 0o755); err != nil {
			return fmt.Errorf("create data directory: %w", err)
		}
		cfg.DataDir = resolved
		return nil
	}

	prompt := &survey.Input{
		Message: "Choose a data directory for downloaded talks",
		Default: cfg.DataDir,
	}

	var answer string
	if err := survey.AskOne(prompt, &answer, survey.WithValidator(survey.Required)); err != nil {
		if errors.Is(err, terminal.InterruptErr) {
			return fmt.Errorf("initialisation interrupted")
		}
		return err
	}

	answer = strings.TrimSpace(answer)
	if answer == "" {
		return fmt.Errorf("data directory cannot be empty")
	}

	resolved, err := expandPath(answer)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(resolved, 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	cfg.DataDir = resolved
	return nil
}

func expandPath(value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "~" || strings.HasPrefix(value, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		value = filepath.Join(home, strings.TrimPrefix(value, "~"))
	}
	abs, err := filepath.Abs(value)
	if err != nil {
		return "", err
	}
	return abs, nil
}
