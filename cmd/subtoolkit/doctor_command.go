package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"subtoolkit/internal/deps"
)

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check the interpreter, media tools, and stage scripts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			statuses := deps.Check(cmd.Context(), cfg)
			out := cmd.OutOrStdout()
			for _, line := range dependencyLines(statuses, paletteFor(out)) {
				fmt.Fprintln(out, line)
			}
			if deps.AnyMissing(statuses) {
				return &exitError{code: 1, err: errors.New("required dependencies are missing")}
			}
			return nil
		},
	}
}

func dependencyLines(statuses []deps.Status, colors palette) []string {
	missing := 0
	for _, s := range statuses {
		if s.Missing() {
			missing++
		}
	}
	lines := make([]string, 0, len(statuses)+1)
	if missing == 0 {
		lines = append(lines, colors.row("Summary", toneOK, "all required dependencies found"))
	} else {
		lines = append(lines, colors.row("Summary", toneError, fmt.Sprintf("%d required dependencies missing", missing)))
	}
	for _, s := range statuses {
		lines = append(lines, colors.row(s.Name, dependencyTone(s), dependencyMessage(s)))
	}
	return lines
}

func dependencyTone(s deps.Status) tone {
	switch {
	case s.Available:
		return toneOK
	case s.Optional:
		return toneWarn
	default:
		return toneError
	}
}

func dependencyMessage(s deps.Status) string {
	if !s.Available {
		if s.Detail != "" {
			return s.Detail
		}
		return "not available"
	}
	msg := "ready"
	if s.Version != "" {
		msg += " " + s.Version
	}
	if s.Command != "" {
		msg += fmt.Sprintf(" (%s)", s.Command)
	}
	return msg
}
