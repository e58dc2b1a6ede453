package stages

import (
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"subtoolkit/internal/config"
)

// TranslateConfig describes one run of the SRT translation script.
type TranslateConfig struct {
	// InputFile selects single-file mode. Otherwise InputDir is translated.
	InputFile      string
	InputDir       string
	OutputDir      string
	SourceLanguage string
	TargetLanguage string
	Provider       string
	Model          string
	APIKey         string
	MaxWorkers     int
	ChunkSize      int
}

var translateProviders = []string{config.ProviderOpenAI, config.ProviderAnthropic, config.ProviderLMStudio}

// Validate checks inputs, provider credentials, and numeric limits.
func (c TranslateConfig) Validate() error {
	switch {
	case c.InputFile != "" && c.InputDir != "":
		return invalidf("translate takes a file or a directory, not both")
	case c.InputFile != "":
		info, err := os.Stat(c.InputFile)
		if err != nil {
			return invalidf("translate input %s: %v", c.InputFile, err)
		}
		if info.IsDir() || !strings.EqualFold(filepath.Ext(c.InputFile), ".srt") {
			return invalidf("translate input is not an .srt file: %s", c.InputFile)
		}
	case c.InputDir != "":
		if err := requireDir("translate", c.InputDir); err != nil {
			return err
		}
	default:
		return invalidf("translate needs an input file or directory")
	}
	if err := ensureOutputDir("translate", c.OutputDir); err != nil {
		return err
	}
	if !slices.Contains(translateProviders, c.Provider) {
		return invalidf("translate provider %q must be one of %s", c.Provider, strings.Join(translateProviders, ", "))
	}
	if err := checkProviderKey("translate", c.Provider, c.APIKey); err != nil {
		return err
	}
	if strings.TrimSpace(c.Model) == "" {
		return invalidf("translate model must be set for provider %s", c.Provider)
	}
	if c.MaxWorkers <= 0 {
		return invalidf("translate max workers must be positive")
	}
	if c.ChunkSize <= 0 {
		return invalidf("translate chunk size must be positive")
	}
	if c.SourceLanguage != "auto" {
		if err := ValidateLanguage(c.SourceLanguage); err != nil {
			return invalidf("translate source %v", err)
		}
	}
	if err := ValidateLanguage(c.TargetLanguage); err != nil {
		return invalidf("translate target %v", err)
	}
	return nil
}

// Args returns the script arguments. A single file uses -f, a directory -d.
// Provider names are translated to the script's claude and local names.
func (c TranslateConfig) Args() []string {
	var args []string
	if c.InputFile != "" {
		args = append(args, "-f", c.InputFile)
	} else {
		args = append(args, "-d", c.InputDir)
	}
	if c.OutputDir != "" {
		args = append(args, "-o", c.OutputDir)
	}
	return append(args,
		"--source-lang", c.SourceLanguage,
		"--target-lang", c.TargetLanguage,
		"-p", scriptProvider(c.Provider),
		"-m", c.Model,
		"-w", strconv.Itoa(c.MaxWorkers),
		"-s", strconv.Itoa(c.ChunkSize),
	)
}

// Env returns the provider credential variable, if any.
func (c TranslateConfig) Env() []string {
	return providerEnv(c.Provider, c.APIKey)
}

func requireDir(stage, dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return invalidf("%s input directory %s: %v", stage, dir, err)
	}
	if !info.IsDir() {
		return invalidf("%s input is not a directory: %s", stage, dir)
	}
	return nil
}

func checkProviderKey(stage, provider, key string) error {
	switch provider {
	case config.ProviderOpenAI:
		if key == "" {
			return invalidf("%s needs an OpenAI API key; set providers.openai_api_key or OPENAI_API_KEY", stage)
		}
		if !strings.HasPrefix(key, "sk-") {
			return invalidf("%s OpenAI API key should start with sk-", stage)
		}
	case config.ProviderAnthropic:
		if key == "" {
			return invalidf("%s needs an Anthropic API key; set providers.anthropic_api_key or ANTHROPIC_API_KEY", stage)
		}
		if !strings.HasPrefix(key, "sk-ant-") {
			return invalidf("%s Anthropic API key should start with sk-ant-", stage)
		}
	}
	return nil
}

func scriptProvider(provider string) string {
	switch provider {
	case config.ProviderAnthropic:
		return "claude"
	case config.ProviderLMStudio:
		return "local"
	default:
		return provider
	}
}

func providerEnv(provider, key string) []string {
	if key == "" {
		return nil
	}
	switch provider {
	case config.ProviderOpenAI:
		return []string{"OPENAI_API_KEY=" + key}
	case config.ProviderAnthropic:
		return []string{"ANTHROPIC_API_KEY=" + key}
	default:
		return nil
	}
}
