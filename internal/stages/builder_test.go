package stages

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"subtoolkit/internal/config"
	"subtoolkit/internal/events"
	"subtoolkit/internal/pipeline"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Paths.ScriptsDir = filepath.Join(t.TempDir(), "scripts")
	cfg.Providers.OpenAIAPIKey = openAIKey
	cfg.Translate.Model = "gpt-4o-mini"
	cfg.Sync.Model = "gpt-4o-mini"
	return &cfg
}

func TestBuildDirectoryChainsOutputs(t *testing.T) {
	cfg := testConfig(t)
	root := t.TempDir()
	cfg.Extract.OutputDir = filepath.Join(root, "extracted")
	cfg.Translate.OutputDir = filepath.Join(root, "translated")
	input := filepath.Join(root, "season1")
	touch(t, filepath.Join(input, "e01.mkv"))

	plan, err := NewBuilder(cfg).Build(input, Selection{Extract: true, Translate: true, Sync: true})
	require.NoError(t, err)
	assert.Equal(t, input, plan.Input)
	assert.False(t, plan.SingleFile)
	require.Len(t, plan.Stages, 3)

	extract := plan.Stages[0]
	assert.Equal(t, events.StageExtract, extract.Stage)
	assert.Equal(t, "python3", extract.Command.Path)
	assert.Equal(t, filepath.Join(cfg.Paths.ScriptsDir, "extract_mkv_subtitles.py"), extract.Command.Args[0])
	assert.Equal(t, cfg.Paths.ScriptsDir, extract.Command.Dir)

	translate := plan.Stages[1].Command
	assert.Equal(t, []string{"-d", cfg.Extract.OutputDir}, translate.Args[1:3])
	assert.Equal(t, []string{"OPENAI_API_KEY=" + openAIKey}, translate.Env)

	sync := plan.Stages[2].Command
	assert.Equal(t, cfg.Translate.OutputDir, sync.Args[1])
	assert.NotContains(t, sync.Args, "--execute")
}

func TestBuildSingleSRT(t *testing.T) {
	cfg := testConfig(t)
	srt := touch(t, filepath.Join(t.TempDir(), "movie.en.srt"))

	plan, err := NewBuilder(cfg).Build(srt, Selection{Translate: true, Sync: true, Execute: true})
	require.NoError(t, err)
	assert.True(t, plan.SingleFile)
	require.Len(t, plan.Stages, 2)
	assert.Equal(t, []string{"-f", srt}, plan.Stages[0].Command.Args[1:3])
	assert.Equal(t, events.StageSync, plan.Stages[1].Stage)
}

func TestBuildRejectsExtractOnSRT(t *testing.T) {
	cfg := testConfig(t)
	srt := touch(t, filepath.Join(t.TempDir(), "movie.en.srt"))
	_, err := NewBuilder(cfg).Build(srt, Selection{Extract: true, Translate: true})
	assert.ErrorIs(t, err, ErrInvalidStageConfig)
}

func TestBuildErrors(t *testing.T) {
	cfg := testConfig(t)
	_, err := NewBuilder(cfg).Build(t.TempDir(), Selection{})
	assert.ErrorIs(t, err, pipeline.ErrInvalidPlan)

	_, err = NewBuilder(cfg).Build(filepath.Join(t.TempDir(), "missing"), Selection{Translate: true})
	assert.ErrorIs(t, err, ErrInvalidStageConfig)

	cfg.Providers.OpenAIAPIKey = ""
	_, err = NewBuilder(cfg).Build(t.TempDir(), Selection{Translate: true})
	assert.ErrorIs(t, err, ErrInvalidStageConfig)
}

func TestCoordinatorOptions(t *testing.T) {
	cfg := testConfig(t)
	b := NewBuilder(cfg)
	assert.Len(t, b.RunnerOptions(nil), 5)
	assert.Len(t, b.CoordinatorOptions(nil), 3)
}
