package pipeline

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"subtoolkit/internal/events"
	"subtoolkit/internal/runner"
)

// JSONLFlag is appended to every stage invocation that lacks it.
const JSONLFlag = "--jsonl"

// ErrInvalidPlan marks a plan the coordinator refuses to run.
var ErrInvalidPlan = errors.New("invalid pipeline plan")

// StageConfig enables one stage and says how to invoke it.
type StageConfig struct {
	Stage   events.Stage
	Enabled bool
	Command runner.Command
}

// Plan is the input to a pipeline execution.
type Plan struct {
	Input string
	// SingleFile reports that Input names one file rather than a directory.
	// Sync is never run for single-file input.
	SingleFile bool
	Stages     []StageConfig
}

// Enabled returns the enabled stages in pipeline order.
func (p Plan) Enabled() []StageConfig {
	var out []StageConfig
	for _, stage := range events.Stages() {
		for _, sc := range p.Stages {
			if sc.Stage == stage && sc.Enabled {
				out = append(out, sc)
			}
		}
	}
	return out
}

// Validate reports structural problems with the plan.
func (p Plan) Validate() error {
	seen := map[events.Stage]bool{}
	enabled := 0
	for _, sc := range p.Stages {
		if !sc.Stage.Valid() {
			return fmt.Errorf("%w: unknown stage %q", ErrInvalidPlan, sc.Stage)
		}
		if seen[sc.Stage] {
			return fmt.Errorf("%w: stage %s listed twice", ErrInvalidPlan, sc.Stage)
		}
		seen[sc.Stage] = true
		if !sc.Enabled {
			continue
		}
		enabled++
		if strings.TrimSpace(sc.Command.Path) == "" {
			return fmt.Errorf("%w: stage %s has no command", ErrInvalidPlan, sc.Stage)
		}
		if sc.Command.Stage != "" && sc.Command.Stage != sc.Stage {
			return fmt.Errorf("%w: stage %s command is labelled %s", ErrInvalidPlan, sc.Stage, sc.Command.Stage)
		}
	}
	if enabled == 0 {
		return fmt.Errorf("%w: no stages enabled", ErrInvalidPlan)
	}
	return nil
}

// withJSONL returns cmd with the JSONL flag appended when missing.
func withJSONL(stage events.Stage, cmd runner.Command) runner.Command {
	cmd.Stage = stage
	if slices.Contains(cmd.Args, JSONLFlag) {
		return cmd
	}
	args := make([]string, 0, len(cmd.Args)+1)
	args = append(args, cmd.Args...)
	cmd.Args = append(args, JSONLFlag)
	return cmd
}
