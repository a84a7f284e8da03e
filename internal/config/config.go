package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains runtime directories used by the daemon.
type Paths struct {
	RuntimeDir string `toml:"runtime_dir"`
	LogDir     string `toml:"log_dir"`
}

// Server contains HTTP listener settings.
type Server struct {
	Host                 string `toml:"host"`
	Port                 int    `toml:"port"`
	ShutdownGraceSeconds int    `toml:"shutdown_grace_seconds"`
	APIToken             string `toml:"api_token"`
}

// Store selects the job store backend.
type Store struct {
	Driver string `toml:"driver"` // "memory" or "sqlite"
}

// Resolver contains settings for the external share-link resolver.
type Resolver struct {
	APIURL            string `toml:"api_url"`
	APIKey            string `toml:"api_key"`
	VideoURLFieldPath string `toml:"video_url_field_path"`
	TimeoutMS         int    `toml:"timeout_ms"`
}

// ASR contains speech recognition endpoint settings.
type ASR struct {
	APIURL         string `toml:"api_url"`
	APIKey         string `toml:"api_key"`
	AppKey         string `toml:"app_key"`
	AccessKey      string `toml:"access_key"`
	ResourceID     string `toml:"resource_id"`
	Model          string `toml:"model"`
	TextFieldPath  string `toml:"text_field_path"`
	TimeoutMS      int    `toml:"timeout_ms"`
	PollIntervalMS int    `toml:"poll_interval_ms"`
	MaxPolls       int    `toml:"max_polls"`
	AllowMock      bool   `toml:"allow_mock"`
}

// LLM contains the chat model connection used to draft copy.
type LLM struct {
	APIKey        string  `toml:"api_key"`
	BaseURL       string  `toml:"base_url"`
	Model         string  `toml:"model"`
	Temperature   float64 `toml:"temperature"`
	TimeoutMS     int     `toml:"timeout_ms"`
	RetryAttempts int     `toml:"retry_attempts"`
}

// Quality contains the copy quality gate thresholds.
type Quality struct {
	StyleSimilarityThreshold float64 `toml:"style_similarity_threshold"`
	LengthMinRatio           float64 `toml:"length_min_ratio"`
	LengthMaxRatio           float64 `toml:"length_max_ratio"`
	StructureMatchThreshold  float64 `toml:"structure_match_threshold"`
	MinSellingPointsPerDraft int     `toml:"min_selling_points_per_version"`
	MaxRegenerate            int     `toml:"max_regenerate"`
}

// Notifications contains operator alert settings.
type Notifications struct {
	NtfyTopic             string `toml:"ntfy_topic"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
	NotifySuccess         bool   `toml:"notify_success"`
}

// MediaProxy contains settings for the resolved-media relay.
type MediaProxy struct {
	PublicBaseURL string `toml:"public_base_url"`
	TTLSeconds    int    `toml:"ttl_seconds"`
	MaxRecords    int    `toml:"max_records"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format         string            `toml:"format"`
	Level          string            `toml:"level"`
	File           bool              `toml:"file"`
	StageOverrides map[string]string `toml:"stage_overrides"`
}

// Config encapsulates all configuration values for copyengine.
//
// Configuration sections by subsystem:
//   - Paths: runtime lock and log directories
//   - Server: HTTP listener
//   - Store: job store backend
//   - Resolver: external share-link resolver
//   - ASR: speech recognition endpoint
//   - LLM: chat model used for drafts
//   - Quality: quality gate thresholds and regeneration budget
//   - MediaProxy: relay for resolved media URLs
//   - Notifications: ntfy alerts for finished jobs
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Server        Server        `toml:"server"`
	Store         Store         `toml:"store"`
	Resolver      Resolver      `toml:"resolver"`
	ASR           ASR           `toml:"asr"`
	LLM           LLM           `toml:"llm"`
	Quality       Quality       `toml:"quality"`
	MediaProxy    MediaProxy    `toml:"media_proxy"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. Environment values are
// layered over the defaults before the file is decoded, so the file wins over the
// environment and the environment wins over the defaults.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()
	cfg.applyEnvironment()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs(projectConfigName)
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// LoadDotEnv loads .env.local and then .env.example from dir into the process
// environment. Variables that are already set are never overridden, so the
// first file wins over the second. Missing files are skipped.
func LoadDotEnv(dir string) ([]string, error) {
	var loaded []string
	for _, name := range dotEnvFiles {
		path := filepath.Join(dir, name)
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return loaded, fmt.Errorf("load %s: %w", name, err)
		}
		loaded = append(loaded, path)
	}
	return loaded, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.RuntimeDir}
	if c.Logging.File {
		dirs = append(dirs, c.Paths.LogDir)
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// ListenAddress returns the host:port the API server binds to.
func (c *Config) ListenAddress() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

// ClientBaseURL returns the URL local clients use to reach the API server.
// Wildcard listen hosts are dialed through loopback.
func (c *Config) ClientBaseURL() string {
	host := c.Server.Host
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, strconv.Itoa(c.Server.Port))
}

// LockPath returns the single-instance lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.RuntimeDir, "copyengined.lock")
}

// ShutdownGrace returns how long in-flight jobs may run after shutdown begins.
func (c *Config) ShutdownGrace() time.Duration {
	return time.Duration(c.Server.ShutdownGraceSeconds) * time.Second
}

// Millis converts a millisecond setting to a duration.
func Millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

func defaultRuntimeDir() string {
	if base, ok := os.LookupEnv("XDG_RUNTIME_DIR"); ok && strings.TrimSpace(base) != "" {
		return filepath.Join(base, "copyengine")
	}
	return filepath.Join(os.TempDir(), "copyengine")
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	sample := sampleConfig

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// LLMConfig contains the resolved chat model connection.
type LLMConfig struct {
	APIKey        string
	BaseURL       string
	Model         string
	Temperature   float64
	Timeout       time.Duration
	RetryAttempts int
}

// GetLLM returns the chat model connection settings.
func (c *Config) GetLLM() LLMConfig {
	return LLMConfig{
		APIKey:        strings.TrimSpace(c.LLM.APIKey),
		BaseURL:       strings.TrimSpace(c.LLM.BaseURL),
		Model:         strings.TrimSpace(c.LLM.Model),
		Temperature:   c.LLM.Temperature,
		Timeout:       Millis(c.LLM.TimeoutMS),
		RetryAttempts: c.LLM.RetryAttempts,
	}
}

// LLMConfigured reports whether both api key and model are present.
func (c *Config) LLMConfigured() bool {
	return strings.TrimSpace(c.LLM.APIKey) != "" && strings.TrimSpace(c.LLM.Model) != ""
}
