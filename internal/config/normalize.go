package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeTools()
	c.normalizeRunner()
	c.normalizeProviders()
	c.normalizeStages()
	c.normalizeLogging()
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeoutSeconds <= 0 {
		c.Notifications.RequestTimeoutSeconds = defaultNotifyTimeout
	}
	return c.normalizeTelemetry()
}

func (c *Config) normalizeTelemetry() error {
	output := strings.TrimSpace(c.Telemetry.Output)
	if output == "" || strings.EqualFold(output, TelemetryStderr) {
		c.Telemetry.Output = TelemetryStderr
		return nil
	}
	expanded, err := expandPath(output)
	if err != nil {
		return fmt.Errorf("telemetry.output: %w", err)
	}
	c.Telemetry.Output = expanded
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.ScriptsDir) == "" {
		c.Paths.ScriptsDir = defaultScriptsDir()
	}
	if c.Paths.ScriptsDir, err = expandPath(c.Paths.ScriptsDir); err != nil {
		return fmt.Errorf("paths.scripts_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if c.Extract.OutputDir != "" {
		if c.Extract.OutputDir, err = expandPath(c.Extract.OutputDir); err != nil {
			return fmt.Errorf("extract.output_dir: %w", err)
		}
	}
	if c.Translate.OutputDir != "" {
		if c.Translate.OutputDir, err = expandPath(c.Translate.OutputDir); err != nil {
			return fmt.Errorf("translate.output_dir: %w", err)
		}
	}
	return nil
}

func (c *Config) normalizeTools() {
	c.Tools.Interpreter = defaultString(c.Tools.Interpreter, defaultInterpreter)
	c.Tools.ExtractScript = defaultString(c.Tools.ExtractScript, defaultExtractScript)
	c.Tools.TranslateScript = defaultString(c.Tools.TranslateScript, defaultTranslateScript)
	c.Tools.SyncScript = defaultString(c.Tools.SyncScript, defaultSyncScript)
	c.Tools.FFmpegPath = defaultString(c.Tools.FFmpegPath, defaultFFmpeg)
	c.Tools.FFprobePath = defaultString(c.Tools.FFprobePath, defaultFFprobe)
}

func (c *Config) normalizeRunner() {
	if c.Runner.GracePeriodSeconds < 0 {
		c.Runner.GracePeriodSeconds = defaultGracePeriod
	}
	if c.Runner.MaxLineBytes <= 0 {
		c.Runner.MaxLineBytes = defaultMaxLineBytes
	}
	if c.Runner.StderrTailBytes <= 0 {
		c.Runner.StderrTailBytes = defaultStderrTailBytes
	}
}

func (c *Config) normalizeProviders() {
	c.Providers.OpenAIAPIKey = strings.TrimSpace(c.Providers.OpenAIAPIKey)
	if c.Providers.OpenAIAPIKey == "" {
		if value, ok := os.LookupEnv("OPENAI_API_KEY"); ok {
			c.Providers.OpenAIAPIKey = strings.TrimSpace(value)
		}
	}
	c.Providers.AnthropicAPIKey = strings.TrimSpace(c.Providers.AnthropicAPIKey)
	if c.Providers.AnthropicAPIKey == "" {
		if value, ok := os.LookupEnv("ANTHROPIC_API_KEY"); ok {
			c.Providers.AnthropicAPIKey = strings.TrimSpace(value)
		}
	}
	c.Providers.OpenAIModel = defaultString(c.Providers.OpenAIModel, defaultOpenAIModel)
	c.Providers.AnthropicModel = defaultString(c.Providers.AnthropicModel, defaultAnthropicModel)
	c.Providers.LMStudioBaseURL = defaultString(c.Providers.LMStudioBaseURL, defaultLMStudioBaseURL)
	c.Providers.LMStudioModel = defaultString(c.Providers.LMStudioModel, defaultLMStudioModel)
}

func (c *Config) normalizeStages() {
	c.Extract.Language = strings.ToLower(defaultString(c.Extract.Language, defaultExtractLanguage))

	c.Translate.Provider = canonicalProvider(defaultString(c.Translate.Provider, ProviderOpenAI))
	c.Translate.Model = strings.TrimSpace(c.Translate.Model)
	if c.Translate.Model == "" {
		c.Translate.Model = c.ProviderModel(c.Translate.Provider)
	}
	c.Translate.SourceLanguage = strings.ToLower(defaultString(c.Translate.SourceLanguage, defaultSourceLanguage))
	c.Translate.TargetLanguage = strings.ToLower(defaultString(c.Translate.TargetLanguage, defaultTargetLanguage))
	if c.Translate.MaxWorkers == 0 {
		c.Translate.MaxWorkers = defaultMaxWorkers
	}
	if c.Translate.ChunkSize == 0 {
		c.Translate.ChunkSize = defaultChunkSize
	}

	c.Sync.Provider = canonicalProvider(defaultString(c.Sync.Provider, ProviderOpenAI))
	c.Sync.Model = strings.TrimSpace(c.Sync.Model)
	if c.Sync.Model == "" {
		c.Sync.Model = c.ProviderModel(c.Sync.Provider)
	}
	c.Sync.LanguageFilter = strings.ToLower(strings.TrimSpace(c.Sync.LanguageFilter))
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}

func canonicalProvider(provider string) string {
	switch p := strings.ToLower(strings.TrimSpace(provider)); p {
	case "claude":
		return ProviderAnthropic
	case "local", "lmstudio", "lm-studio":
		return ProviderLMStudio
	default:
		return p
	}
}

func defaultString(value, fallback string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return fallback
}
