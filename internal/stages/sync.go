package stages

import (
	"slices"
	"strconv"
	"strings"

	"subtoolkit/internal/config"
)

var syncProviders = []string{config.ProviderOpenAI, config.ProviderAnthropic}

// SyncConfig describes one run of the SRT name synchronization script.
type SyncConfig struct {
	InputDir            string
	Provider            string
	Model               string
	APIKey              string
	ConfidenceThreshold float64
	LanguageFilter      string
	AutoBackupExisting  bool
	// DryRun reports planned renames without touching files.
	DryRun bool
}

// Validate checks the input directory, provider credentials, and threshold.
func (c SyncConfig) Validate() error {
	if c.InputDir == "" {
		return invalidf("sync needs an input directory")
	}
	if err := requireDir("sync", c.InputDir); err != nil {
		return err
	}
	if !slices.Contains(syncProviders, c.Provider) {
		return invalidf("sync provider %q must be one of %s", c.Provider, strings.Join(syncProviders, ", "))
	}
	if err := checkProviderKey("sync", c.Provider, c.APIKey); err != nil {
		return err
	}
	if strings.TrimSpace(c.Model) == "" {
		return invalidf("sync model must be set")
	}
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		return invalidf("sync confidence threshold must be between 0 and 1")
	}
	if c.LanguageFilter != "" {
		if err := ValidateLanguage(c.LanguageFilter); err != nil {
			return invalidf("sync language filter %v", err)
		}
	}
	return nil
}

// Args returns the script arguments. The script names the Anthropic
// provider "claude". Renames only happen when DryRun is false.
func (c SyncConfig) Args() []string {
	args := []string{
		c.InputDir,
		"--provider", scriptProvider(c.Provider),
		"--model", c.Model,
		"--min-confidence", strconv.FormatFloat(c.ConfidenceThreshold, 'f', -1, 64),
	}
	if c.LanguageFilter != "" {
		args = append(args, "--language-filter", c.LanguageFilter)
	}
	if c.AutoBackupExisting {
		args = append(args, "--auto-backup-existing")
	}
	if !c.DryRun {
		args = append(args, "--execute")
	}
	return args
}

// Env returns the provider credential variable.
func (c SyncConfig) Env() []string {
	return providerEnv(c.Provider, c.APIKey)
}
