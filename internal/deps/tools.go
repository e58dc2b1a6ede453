package deps

import (
	"context"

	"subtoolkit/internal/config"
)

// MinFFmpegVersion is the oldest FFmpeg release the extract script supports.
const MinFFmpegVersion = "4.0.0"

// Requirements lists the binaries the stage scripts execute.
func Requirements(cfg *config.Config) []Requirement {
	return []Requirement{
		{
			Name:        "Python",
			Command:     cfg.Tools.Interpreter,
			Description: "Runs the extract, translate, and sync scripts",
			VersionArgs: []string{"--version"},
			MinVersion:  "3.8.0",
		},
		{
			Name:        "FFmpeg",
			Command:     cfg.Tools.FFmpegPath,
			Description: "Extracts subtitle tracks from MKV files",
			VersionArgs: []string{"-version"},
			MinVersion:  MinFFmpegVersion,
		},
		{
			Name:        "FFprobe",
			Command:     cfg.Tools.FFprobePath,
			Description: "Lists subtitle tracks in MKV files",
			VersionArgs: []string{"-version"},
			MinVersion:  MinFFmpegVersion,
		},
		{
			Name:        "mkvextract",
			Command:     "mkvextract",
			Description: "Alternative MKV extractor",
			Optional:    true,
		},
	}
}

// Check reports every binary requirement followed by each stage script and,
// for local translation, the LM Studio server.
func Check(ctx context.Context, cfg *config.Config) []Status {
	results := CheckBinaries(ctx, Requirements(cfg))
	scripts := []struct{ name, file, desc string }{
		{"Extract script", cfg.Tools.ExtractScript, "Extracts MKV subtitles"},
		{"Translate script", cfg.Tools.TranslateScript, "Translates SRT files"},
		{"Sync script", cfg.Tools.SyncScript, "Renames SRT files to match videos"},
	}
	for _, s := range scripts {
		results = append(results, CheckFile(s.name, cfg.ScriptPath(s.file), s.desc))
	}
	if cfg.Translate.Provider == config.ProviderLMStudio {
		results = append(results, CheckEndpoint(ctx, "LM Studio", cfg.Providers.LMStudioBaseURL, "Serves the local translation model"))
	}
	return results
}

// AnyMissing reports whether a required dependency is unavailable.
func AnyMissing(statuses []Status) bool {
	for _, s := range statuses {
		if s.Missing() {
			return true
		}
	}
	return false
}
