package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

var (
	translateProviders = []string{ProviderOpenAI, ProviderAnthropic, ProviderLMStudio}
	syncProviders      = []string{ProviderOpenAI, ProviderAnthropic}
)

// Validate ensures the configuration is usable. Provider credentials are
// checked when a stage is planned, since a run may not need them.
func (c *Config) Validate() error {
	if err := c.validateTools(); err != nil {
		return err
	}
	if err := c.validateRunner(); err != nil {
		return err
	}
	if err := c.validateTranslate(); err != nil {
		return err
	}
	if err := c.validateSync(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateTools() error {
	if strings.TrimSpace(c.Tools.Interpreter) == "" {
		return errors.New("tools.interpreter must be set")
	}
	for key, value := range map[string]string{
		"tools.extract_script":   c.Tools.ExtractScript,
		"tools.translate_script": c.Tools.TranslateScript,
		"tools.sync_script":      c.Tools.SyncScript,
	} {
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("%s must be set", key)
		}
	}
	return nil
}

func (c *Config) validateRunner() error {
	if c.Runner.GracePeriodSeconds < 0 {
		return errors.New("runner.grace_period_seconds must be >= 0")
	}
	return ensurePositiveMap(map[string]int{
		"runner.max_line_bytes":    c.Runner.MaxLineBytes,
		"runner.stderr_tail_bytes": c.Runner.StderrTailBytes,
	})
}

func (c *Config) validateTranslate() error {
	if !slices.Contains(translateProviders, c.Translate.Provider) {
		return fmt.Errorf("translate.provider %q must be one of %s", c.Translate.Provider, strings.Join(translateProviders, ", "))
	}
	return ensurePositiveMap(map[string]int{
		"translate.max_workers": c.Translate.MaxWorkers,
		"translate.chunk_size":  c.Translate.ChunkSize,
	})
}

func (c *Config) validateSync() error {
	if !slices.Contains(syncProviders, c.Sync.Provider) {
		return fmt.Errorf("sync.provider %q must be one of %s", c.Sync.Provider, strings.Join(syncProviders, ", "))
	}
	if c.Sync.ConfidenceThreshold < 0 || c.Sync.ConfidenceThreshold > 1 {
		return errors.New("sync.confidence_threshold must be between 0 and 1")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level %q must be one of debug, info, warn, error", c.Logging.Level)
	}
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
