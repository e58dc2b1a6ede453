// Package stages turns configuration into the command lines of the extract,
// translate, and sync scripts and assembles them into a pipeline plan.
package stages

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrInvalidStageConfig marks a stage configuration that cannot be run.
var ErrInvalidStageConfig = errors.New("invalid stage configuration")

// DefaultExtractLanguage is the script's own default and is not passed.
const DefaultExtractLanguage = "eng"

// ExtractConfig describes one run of the MKV subtitle extraction script.
type ExtractConfig struct {
	// Input is a directory of MKV files or a single MKV file.
	Input     string
	Language  string
	OutputDir string
	Overwrite bool
}

// Validate checks the input path, output directory, and language.
func (c ExtractConfig) Validate() error {
	info, err := os.Stat(c.Input)
	if err != nil {
		return invalidf("extract input %s: %v", c.Input, err)
	}
	if !info.IsDir() && !strings.EqualFold(filepath.Ext(c.Input), ".mkv") {
		return invalidf("extract input must be a directory or an .mkv file: %s", c.Input)
	}
	if err := ensureOutputDir("extract", c.OutputDir); err != nil {
		return err
	}
	if err := ValidateLanguage(c.Language); err != nil {
		return invalidf("extract %v", err)
	}
	return nil
}

// Args returns the script arguments.
func (c ExtractConfig) Args() []string {
	args := []string{c.Input}
	if lang := strings.ToLower(strings.TrimSpace(c.Language)); lang != "" && lang != DefaultExtractLanguage {
		args = append(args, "-l", lang)
	}
	if c.OutputDir != "" {
		args = append(args, "-o", c.OutputDir)
	}
	if c.Overwrite {
		args = append(args, "--overwrite")
	}
	return args
}

// Env returns the extra environment. Extraction needs none.
func (c ExtractConfig) Env() []string { return nil }

// ResultDir is where extracted subtitles are written.
func (c ExtractConfig) ResultDir() string {
	if c.OutputDir != "" {
		return c.OutputDir
	}
	if info, err := os.Stat(c.Input); err == nil && !info.IsDir() {
		return filepath.Dir(c.Input)
	}
	return c.Input
}

func ensureOutputDir(stage, dir string) error {
	if dir == "" {
		return nil
	}
	info, err := os.Stat(dir)
	switch {
	case err == nil && !info.IsDir():
		return invalidf("%s output path is not a directory: %s", stage, dir)
	case err == nil:
		return nil
	case errors.Is(err, os.ErrNotExist):
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return invalidf("%s output directory: %v", stage, err)
		}
		return nil
	default:
		return invalidf("%s output directory: %v", stage, err)
	}
}

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidStageConfig, fmt.Sprintf(format, args...))
}
