package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"subtoolkit/internal/config"
)

func clearProviderEnv(t *testing.T) {
	t.Helper()
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("ANTHROPIC_API_KEY", "")
	os.Unsetenv("OPENAI_API_KEY")
	os.Unsetenv("ANTHROPIC_API_KEY")
}

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	clearProviderEnv(t)
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved != filepath.Join(tempHome, ".config", "subtoolkit", "config.toml") {
		t.Fatalf("unexpected resolved path %q", resolved)
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantLogs := filepath.Join(tempHome, ".local", "share", "subtoolkit", "logs")
	if cfg.Paths.LogDir != wantLogs {
		t.Fatalf("unexpected log dir: got %q want %q", cfg.Paths.LogDir, wantLogs)
	}
	if !filepath.IsAbs(cfg.Paths.ScriptsDir) {
		t.Fatalf("expected absolute scripts dir, got %q", cfg.Paths.ScriptsDir)
	}
	if cfg.Tools.Interpreter != "python3" {
		t.Fatalf("unexpected interpreter %q", cfg.Tools.Interpreter)
	}
	if cfg.Translate.Model != "gpt-4o-mini" {
		t.Fatalf("expected translate model from provider default, got %q", cfg.Translate.Model)
	}
	if cfg.Sync.Model != "gpt-4o-mini" {
		t.Fatalf("expected sync model from provider default, got %q", cfg.Sync.Model)
	}
	if cfg.Providers.OpenAIAPIKey != "" {
		t.Fatalf("expected no OpenAI key, got %q", cfg.Providers.OpenAIAPIKey)
	}
	if got := cfg.GracePeriod().Seconds(); got != 5 {
		t.Fatalf("unexpected grace period %v", got)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.LogDir, cfg.Paths.StateDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadUsesEnvProviderKeys(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("OPENAI_API_KEY", " sk-openai-test ")
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-test")

	cfg, _, _, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.ProviderKey("openai") != "sk-openai-test" {
		t.Fatalf("expected trimmed OpenAI key from env, got %q", cfg.ProviderKey("openai"))
	}
	if cfg.ProviderKey("claude") != "sk-ant-test" {
		t.Fatalf("expected Anthropic key for claude alias, got %q", cfg.ProviderKey("claude"))
	}
	if cfg.ProviderKey("lm_studio") != "" {
		t.Fatal("expected no key for lm_studio")
	}
}

func TestLoadCustomPath(t *testing.T) {
	clearProviderEnv(t)
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	configPath := filepath.Join(t.TempDir(), "subtoolkit.toml")

	type payload struct {
		Paths struct {
			ScriptsDir string `toml:"scripts_dir"`
		} `toml:"paths"`
		Providers struct {
			AnthropicAPIKey string `toml:"anthropic_api_key"`
		} `toml:"providers"`
		Translate struct {
			Provider       string `toml:"provider"`
			TargetLanguage string `toml:"target_language"`
		} `toml:"translate"`
		Runner struct {
			GracePeriodSeconds int `toml:"grace_period_seconds"`
		} `toml:"runner"`
	}
	custom := payload{}
	custom.Paths.ScriptsDir = "~/tools/subtitles"
	custom.Providers.AnthropicAPIKey = "sk-ant-file"
	custom.Translate.Provider = "Claude"
	custom.Translate.TargetLanguage = "BG"
	custom.Runner.GracePeriodSeconds = 2

	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("expected custom config to be used, got %q exists=%v", resolved, exists)
	}
	if cfg.Paths.ScriptsDir != filepath.Join(tempHome, "tools", "subtitles") {
		t.Fatalf("unexpected scripts dir %q", cfg.Paths.ScriptsDir)
	}
	if cfg.Translate.Provider != config.ProviderAnthropic {
		t.Fatalf("expected claude alias to normalize to anthropic, got %q", cfg.Translate.Provider)
	}
	if cfg.Translate.Model != "claude-3-haiku-20240307" {
		t.Fatalf("expected anthropic default model, got %q", cfg.Translate.Model)
	}
	if cfg.Translate.TargetLanguage != "bg" {
		t.Fatalf("expected lower-cased target language, got %q", cfg.Translate.TargetLanguage)
	}
	if cfg.GracePeriod().Seconds() != 2 {
		t.Fatalf("unexpected grace period %v", cfg.GracePeriod())
	}
	if cfg.ProviderKey(cfg.Translate.Provider) != "sk-ant-file" {
		t.Fatalf("expected file key to win, got %q", cfg.ProviderKey(cfg.Translate.Provider))
	}
	if got := cfg.ScriptPath(cfg.Tools.TranslateScript); got != filepath.Join(cfg.Paths.ScriptsDir, "srtTranslateWhole.py") {
		t.Fatalf("unexpected script path %q", got)
	}
	if got := cfg.ScriptPath("/opt/extract.py"); got != "/opt/extract.py" {
		t.Fatalf("absolute script path should be kept, got %q", got)
	}
}

func TestLoadProjectConfig(t *testing.T) {
	clearProviderEnv(t)
	t.Setenv("HOME", t.TempDir())
	project := t.TempDir()
	t.Chdir(project)
	if err := os.WriteFile(filepath.Join(project, "subtoolkit.toml"), []byte("[extract]\nlanguage = \"BUL\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || filepath.Base(resolved) != "subtoolkit.toml" {
		t.Fatalf("expected project config, got %q exists=%v", resolved, exists)
	}
	if cfg.Extract.Language != "bul" {
		t.Fatalf("unexpected extract language %q", cfg.Extract.Language)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	clearProviderEnv(t)
	t.Setenv("HOME", t.TempDir())

	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"translate provider", "[translate]\nprovider = \"deepl\"\n", "translate.provider"},
		{"sync provider", "[sync]\nprovider = \"lm_studio\"\n", "sync.provider"},
		{"confidence", "[sync]\nconfidence_threshold = 1.5\n", "sync.confidence_threshold"},
		{"workers", "[translate]\nmax_workers = -1\n", "translate.max_workers"},
		{"log level", "[logging]\nlevel = \"verbose\"\n", "logging.level"},
		{"syntax", "[paths\n", "parse config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatalf("write config: %v", err)
			}
			_, _, _, err := config.Load(path)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error mentioning %q, got %v", tt.want, err)
			}
		})
	}
}

func TestNormalizeLoggingFallsBackToConsole(t *testing.T) {
	clearProviderEnv(t)
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[logging]\nformat = \"XML\"\nlevel = \" DEBUG \"\nretention_days = -3\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Logging.Format != "console" || cfg.Logging.Level != "debug" || cfg.Logging.RetentionDays != 0 {
		t.Fatalf("unexpected logging config %+v", cfg.Logging)
	}
}

func TestNormalizeTelemetryOutput(t *testing.T) {
	clearProviderEnv(t)
	home := t.TempDir()
	t.Setenv("HOME", home)

	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"default", "", config.TelemetryStderr},
		{"blank", "[telemetry]\noutput = \"  \"\n", config.TelemetryStderr},
		{"stderr any case", "[telemetry]\noutput = \"STDERR\"\n", config.TelemetryStderr},
		{"home path", "[telemetry]\nenabled = true\noutput = \"~/otel.json\"\n", filepath.Join(home, "otel.json")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatalf("write config: %v", err)
			}
			cfg, _, _, err := config.Load(path)
			if err != nil {
				t.Fatalf("Load returned error: %v", err)
			}
			if cfg.Telemetry.Output != tt.want {
				t.Fatalf("telemetry.output = %q, want %q", cfg.Telemetry.Output, tt.want)
			}
		})
	}
}

func TestCreateSampleIsLoadable(t *testing.T) {
	clearProviderEnv(t)
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat sample: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("expected private permissions, got %v", info.Mode().Perm())
	}

	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("sample config failed to load: %v", err)
	}
	if !exists {
		t.Fatal("expected sample to exist")
	}
	def := config.Default()
	if cfg.Tools.ExtractScript != def.Tools.ExtractScript || cfg.Sync.ConfidenceThreshold != def.Sync.ConfidenceThreshold {
		t.Fatalf("sample diverges from defaults: %+v", cfg.Tools)
	}
}

func TestExpandPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	got, err := config.ExpandPath("~/subs")
	if err != nil {
		t.Fatalf("ExpandPath: %v", err)
	}
	if got != filepath.Join(home, "subs") {
		t.Fatalf("unexpected expansion %q", got)
	}
	empty, err := config.ExpandPath("")
	if err != nil || empty != "" {
		t.Fatalf("expected empty path to stay empty, got %q %v", empty, err)
	}
}
