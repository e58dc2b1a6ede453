package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"subtoolkit/internal/jsonl"
)

// maxReportedProblems bounds the per-file problem list printed by validate.
const maxReportedProblems = 10

type lineProblem struct {
	Line   int
	Reason string
}

type fileReport struct {
	Path     string
	Stats    jsonl.Stats
	Problems []lineProblem
}

func newValidateCommand() *cobra.Command {
	var strict bool
	var jobs int

	cmd := &cobra.Command{
		Use:         "validate FILE...",
		Short:       "Check captured JSONL output against the event protocol",
		Args:        cobra.MinimumNArgs(1),
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			reports := make([]fileReport, len(args))
			g, gctx := errgroup.WithContext(cmd.Context())
			g.SetLimit(max(jobs, 1))
			for i, path := range args {
				g.Go(func() error {
					report, err := validateFile(gctx, path, strict)
					if err != nil {
						return err
					}
					reports[i] = report
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			colors := paletteFor(out)
			invalid := 0
			for _, r := range reports {
				writeFileReport(out, r, colors)
				if r.Stats.ParseErrors > 0 {
					invalid++
				}
			}
			if invalid > 0 {
				return &exitError{code: 1, err: fmt.Errorf("%d of %d files contain invalid lines", invalid, len(reports))}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "Reject unknown fields and require ts, progress, and data where the protocol expects them")
	cmd.Flags().IntVarP(&jobs, "jobs", "j", runtime.NumCPU(), "Files checked concurrently")
	return cmd
}

func validateFile(ctx context.Context, path string, strict bool) (fileReport, error) {
	report := fileReport{Path: path}
	file, err := os.Open(path)
	if err != nil {
		return report, fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	var opts []jsonl.Option
	if strict {
		opts = append(opts, jsonl.Strict())
	}
	parser := jsonl.NewParser(opts...)
	buffer := jsonl.NewBuffer(jsonl.DefaultMaxLineBytes)
	lineNo := 0
	check := func(line jsonl.Line) {
		lineNo++
		outcome, ok := parser.Parse(line)
		if ok && outcome.Failed() {
			report.Problems = append(report.Problems, lineProblem{Line: lineNo, Reason: outcome.ParseError.Reason})
		}
	}

	chunk := make([]byte, 32*1024)
	for {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		n, readErr := file.Read(chunk)
		for _, line := range buffer.Feed(chunk[:n]) {
			check(line)
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return report, fmt.Errorf("read %s: %w", path, readErr)
		}
	}
	if line, ok := buffer.Flush(); ok {
		check(line)
	}
	report.Stats = parser.Stats()
	return report, nil
}

func writeFileReport(w io.Writer, r fileReport, colors palette) {
	t := toneOK
	if r.Stats.ParseErrors > 0 {
		t = toneError
	}
	message := fmt.Sprintf("%d events, %d invalid of %d lines (%.1f%% valid)",
		r.Stats.EventsParsed, r.Stats.ParseErrors, r.Stats.LinesProcessed, r.Stats.SuccessRate())
	if r.Stats.LinesProcessed == 0 {
		t = toneWarn
		message = "no events"
	}
	fmt.Fprintln(w, colors.row(r.Path, t, message))
	for i, p := range r.Problems {
		if i == maxReportedProblems {
			fmt.Fprintf(w, "%s%s... %d more\n", indent, indent, len(r.Problems)-maxReportedProblems)
			break
		}
		fmt.Fprintf(w, "%s%sline %d: %s\n", indent, indent, p.Line, p.Reason)
	}
}
