package config

const (
	defaultConfigPath      = "~/.config/subtoolkit/config.toml"
	projectConfigName      = "subtoolkit.toml"
	defaultLogDir          = "~/.local/share/subtoolkit/logs"
	defaultStateDir        = "~/.local/share/subtoolkit/state"
	defaultInterpreter     = "python3"
	defaultExtractScript   = "extract_mkv_subtitles.py"
	defaultTranslateScript = "srtTranslateWhole.py"
	defaultSyncScript      = "srt_names_sync.py"
	defaultFFmpeg          = "ffmpeg"
	defaultFFprobe         = "ffprobe"
	defaultGracePeriod     = 5
	defaultMaxLineBytes    = 256 * 1024
	defaultStderrTailBytes = 64 * 1024
	defaultOpenAIModel     = "gpt-4o-mini"
	defaultAnthropicModel  = "claude-3-haiku-20240307"
	defaultLMStudioBaseURL = "http://localhost:1234/v1"
	defaultLMStudioModel   = "local-model"
	defaultExtractLanguage = "eng"
	defaultSourceLanguage  = "auto"
	defaultTargetLanguage  = "en"
	defaultMaxWorkers      = 3
	defaultChunkSize       = 20
	defaultConfidence      = 0.8
	defaultLogFormat       = "console"
	defaultLogLevel        = "info"
	defaultLogRetention    = 30
	defaultNotifyTimeout   = 10
	// TelemetryStderr sends exported telemetry to standard error.
	TelemetryStderr = "stderr"
)

// Translation provider names. The scripts also accept "claude" for Anthropic.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderLMStudio  = "lm_studio"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			LogDir:   defaultLogDir,
			StateDir: defaultStateDir,
		},
		Tools: Tools{
			Interpreter:     defaultInterpreter,
			ExtractScript:   defaultExtractScript,
			TranslateScript: defaultTranslateScript,
			SyncScript:      defaultSyncScript,
			FFmpegPath:      defaultFFmpeg,
			FFprobePath:     defaultFFprobe,
		},
		Runner: Runner{
			GracePeriodSeconds: defaultGracePeriod,
			MaxLineBytes:       defaultMaxLineBytes,
			StderrTailBytes:    defaultStderrTailBytes,
		},
		Providers: Providers{
			OpenAIModel:     defaultOpenAIModel,
			AnthropicModel:  defaultAnthropicModel,
			LMStudioBaseURL: defaultLMStudioBaseURL,
			LMStudioModel:   defaultLMStudioModel,
		},
		Extract: Extract{
			Language: defaultExtractLanguage,
		},
		Translate: Translate{
			Provider:       ProviderOpenAI,
			SourceLanguage: defaultSourceLanguage,
			TargetLanguage: defaultTargetLanguage,
			MaxWorkers:     defaultMaxWorkers,
			ChunkSize:      defaultChunkSize,
		},
		Sync: Sync{
			Provider:            ProviderOpenAI,
			ConfidenceThreshold: defaultConfidence,
			AutoBackupExisting:  true,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetention,
		},
		Notifications: Notifications{
			RequestTimeoutSeconds: defaultNotifyTimeout,
		},
		Telemetry: Telemetry{
			Output: TelemetryStderr,
		},
	}
}
