package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	ScriptsDir string `toml:"scripts_dir"`
	LogDir     string `toml:"log_dir"`
	StateDir   string `toml:"state_dir"`
}

// Tools names the interpreter, stage scripts, and media binaries.
type Tools struct {
	Interpreter     string `toml:"interpreter"`
	ExtractScript   string `toml:"extract_script"`
	TranslateScript string `toml:"translate_script"`
	SyncScript      string `toml:"sync_script"`
	FFmpegPath      string `toml:"ffmpeg_path"`
	FFprobePath     string `toml:"ffprobe_path"`
}

// Runner contains process supervision limits.
type Runner struct {
	GracePeriodSeconds int  `toml:"grace_period_seconds"`
	MaxLineBytes       int  `toml:"max_line_bytes"`
	StderrTailBytes    int  `toml:"stderr_tail_bytes"`
	StrictParsing      bool `toml:"strict_parsing"`
}

// Providers holds translation provider credentials and default models.
type Providers struct {
	OpenAIAPIKey    string `toml:"openai_api_key"`
	OpenAIModel     string `toml:"openai_model"`
	AnthropicAPIKey string `toml:"anthropic_api_key"`
	AnthropicModel  string `toml:"anthropic_model"`
	LMStudioBaseURL string `toml:"lm_studio_base_url"`
	LMStudioModel   string `toml:"lm_studio_model"`
}

// Extract configures subtitle extraction.
type Extract struct {
	Language  string `toml:"language"`
	OutputDir string `toml:"output_dir"`
	Overwrite bool   `toml:"overwrite"`
}

// Translate configures subtitle translation.
type Translate struct {
	Provider       string `toml:"provider"`
	Model          string `toml:"model"`
	SourceLanguage string `toml:"source_language"`
	TargetLanguage string `toml:"target_language"`
	OutputDir      string `toml:"output_dir"`
	MaxWorkers     int    `toml:"max_workers"`
	ChunkSize      int    `toml:"chunk_size"`
}

// Sync configures subtitle name synchronization.
type Sync struct {
	Provider            string  `toml:"provider"`
	Model               string  `toml:"model"`
	ConfidenceThreshold float64 `toml:"confidence_threshold"`
	LanguageFilter      string  `toml:"language_filter"`
	AutoBackupExisting  bool    `toml:"auto_backup_existing"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Notifications configures ntfy pushes when a pipeline finishes.
type Notifications struct {
	NtfyTopic             string `toml:"ntfy_topic"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
}

// Telemetry enables OpenTelemetry traces and metrics for pipeline runs.
type Telemetry struct {
	Enabled bool `toml:"enabled"`
	// Output is "stderr" or a file path that receives the exported JSON.
	Output string `toml:"output"`
}

// Config encapsulates all configuration values for subtoolkit.
//
// Configuration sections by subsystem:
//   - Paths: scripts, logs, and lock state
//   - Tools: interpreter, stage scripts, ffmpeg/ffprobe
//   - Runner: grace period and stream limits for stage processes
//   - Providers: translation provider keys and default models
//   - Extract, Translate, Sync: per-stage options
//   - Logging: log format, level, and retention
//   - Notifications: optional ntfy topic
//   - Telemetry: optional trace and metric export
type Config struct {
	Paths     Paths     `toml:"paths"`
	Tools     Tools     `toml:"tools"`
	Runner    Runner    `toml:"runner"`
	Providers Providers `toml:"providers"`
	Extract   Extract   `toml:"extract"`
	Translate Translate `toml:"translate"`
	Sync      Sync      `toml:"sync"`
	Logging   Logging   `toml:"logging"`

	Notifications Notifications `toml:"notifications"`
	Telemetry     Telemetry     `toml:"telemetry"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

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

// EnsureDirectories creates the log and state directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.LogDir, c.Paths.StateDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// ScriptPath returns the absolute path of a stage script.
func (c *Config) ScriptPath(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.Paths.ScriptsDir, name)
}

// GracePeriod returns how long a cancelled stage may take to exit.
func (c *Config) GracePeriod() time.Duration {
	return time.Duration(c.Runner.GracePeriodSeconds) * time.Second
}

// ProviderKey returns the API key configured for a translation provider.
// Providers that need no key return "".
func (c *Config) ProviderKey(provider string) string {
	switch canonicalProvider(provider) {
	case ProviderOpenAI:
		return c.Providers.OpenAIAPIKey
	case ProviderAnthropic:
		return c.Providers.AnthropicAPIKey
	default:
		return ""
	}
}

// ProviderModel returns the default model for a translation provider.
func (c *Config) ProviderModel(provider string) string {
	switch canonicalProvider(provider) {
	case ProviderOpenAI:
		return c.Providers.OpenAIModel
	case ProviderAnthropic:
		return c.Providers.AnthropicModel
	case ProviderLMStudio:
		return c.Providers.LMStudioModel
	default:
		return ""
	}
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

// defaultScriptsDir looks for a scripts directory next to the executable,
// then under the working directory.
func defaultScriptsDir() string {
	var candidates []string
	if exe, err := os.Executable(); err == nil {
		candidates = append(candidates, filepath.Join(filepath.Dir(exe), "scripts"))
	}
	if wd, err := os.Getwd(); err == nil {
		candidates = append(candidates, filepath.Join(wd, "scripts"))
	}
	for _, dir := range candidates {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return dir
		}
	}
	if len(candidates) > 0 {
		return candidates[len(candidates)-1]
	}
	return "scripts"
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o600); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
