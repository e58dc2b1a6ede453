package stages

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"subtoolkit/internal/config"
	"subtoolkit/internal/events"
	"subtoolkit/internal/pipeline"
	"subtoolkit/internal/runner"
)

// Selection chooses the stages to run.
type Selection struct {
	Extract   bool
	Translate bool
	Sync      bool
	// Execute lets sync rename files. Without it sync is a dry run.
	Execute bool
}

// Any reports whether at least one stage is selected.
func (s Selection) Any() bool { return s.Extract || s.Translate || s.Sync }

// Builder turns configuration into pipeline plans.
type Builder struct {
	cfg *config.Config
}

// NewBuilder returns a builder for cfg.
func NewBuilder(cfg *config.Config) *Builder {
	return &Builder{cfg: cfg}
}

// Build validates every selected stage against input and returns the plan.
//
// Each stage reads the previous stage's output directory. A single .srt
// input is translated with -f and never synced.
func (b *Builder) Build(input string, sel Selection) (pipeline.Plan, error) {
	if !sel.Any() {
		return pipeline.Plan{}, fmt.Errorf("%w: no stages selected", pipeline.ErrInvalidPlan)
	}
	abs, err := config.ExpandPath(input)
	if err != nil {
		return pipeline.Plan{}, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return pipeline.Plan{}, invalidf("input %s: %v", abs, err)
	}
	plan := pipeline.Plan{Input: abs, SingleFile: !info.IsDir()}

	next := abs
	if plan.SingleFile {
		next = filepath.Dir(abs)
	}

	if sel.Extract {
		ex := b.extractConfig(abs)
		if err := ex.Validate(); err != nil {
			return pipeline.Plan{}, err
		}
		plan.Stages = append(plan.Stages, b.stage(events.StageExtract, b.cfg.Tools.ExtractScript, ex.Args(), ex.Env()))
		next = ex.ResultDir()
	}

	if sel.Translate {
		tr := b.translateConfig()
		if plan.SingleFile && !sel.Extract {
			tr.InputFile = abs
		} else {
			tr.InputDir = next
		}
		if err := tr.Validate(); err != nil {
			return pipeline.Plan{}, err
		}
		plan.Stages = append(plan.Stages, b.stage(events.StageTranslate, b.cfg.Tools.TranslateScript, tr.Args(), tr.Env()))
		if tr.OutputDir != "" {
			next = tr.OutputDir
		}
	}

	if sel.Sync {
		sy := b.syncConfig(next, !sel.Execute)
		if !plan.SingleFile {
			if err := sy.Validate(); err != nil {
				return pipeline.Plan{}, err
			}
		}
		plan.Stages = append(plan.Stages, b.stage(events.StageSync, b.cfg.Tools.SyncScript, sy.Args(), sy.Env()))
	}

	if err := plan.Validate(); err != nil {
		return pipeline.Plan{}, err
	}
	return plan, nil
}

// RunnerOptions returns the supervisor options taken from the runner section.
func (b *Builder) RunnerOptions(logger *slog.Logger) []runner.Option {
	r := b.cfg.Runner
	return []runner.Option{
		runner.WithLogger(logger),
		runner.WithMaxLineBytes(r.MaxLineBytes),
		runner.WithStderrTailBytes(r.StderrTailBytes),
		runner.WithStrictParsing(r.StrictParsing),
		runner.WithGracePeriod(b.cfg.GracePeriod()),
	}
}

// CoordinatorOptions returns coordinator options for cfg, including the
// runner options.
func (b *Builder) CoordinatorOptions(logger *slog.Logger) []pipeline.Option {
	return []pipeline.Option{
		pipeline.WithLogger(logger),
		pipeline.WithGracePeriod(b.cfg.GracePeriod()),
		pipeline.WithRunnerOptions(b.RunnerOptions(logger)...),
	}
}

func (b *Builder) extractConfig(input string) ExtractConfig {
	return ExtractConfig{
		Input:     input,
		Language:  b.cfg.Extract.Language,
		OutputDir: b.cfg.Extract.OutputDir,
		Overwrite: b.cfg.Extract.Overwrite,
	}
}

func (b *Builder) translateConfig() TranslateConfig {
	t := b.cfg.Translate
	return TranslateConfig{
		OutputDir:      t.OutputDir,
		SourceLanguage: t.SourceLanguage,
		TargetLanguage: t.TargetLanguage,
		Provider:       t.Provider,
		Model:          t.Model,
		APIKey:         b.cfg.ProviderKey(t.Provider),
		MaxWorkers:     t.MaxWorkers,
		ChunkSize:      t.ChunkSize,
	}
}

func (b *Builder) syncConfig(dir string, dryRun bool) SyncConfig {
	s := b.cfg.Sync
	return SyncConfig{
		InputDir:            dir,
		Provider:            s.Provider,
		Model:               s.Model,
		APIKey:              b.cfg.ProviderKey(s.Provider),
		ConfidenceThreshold: s.ConfidenceThreshold,
		LanguageFilter:      s.LanguageFilter,
		AutoBackupExisting:  s.AutoBackupExisting,
		DryRun:              dryRun,
	}
}

func (b *Builder) stage(stage events.Stage, script string, args, env []string) pipeline.StageConfig {
	argv := append([]string{b.cfg.ScriptPath(script)}, args...)
	return pipeline.StageConfig{
		Stage:   stage,
		Enabled: true,
		Command: runner.Command{
			Stage: stage,
			Path:  b.cfg.Tools.Interpreter,
			Args:  argv,
			Env:   env,
			Dir:   b.cfg.Paths.ScriptsDir,
		},
	}
}
