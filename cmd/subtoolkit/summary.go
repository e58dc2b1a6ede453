package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"gopkg.in/yaml.v3"

	"subtoolkit/internal/events"
	"subtoolkit/internal/pipeline"
)

type outputFormat string

const (
	outputText outputFormat = "text"
	outputJSON outputFormat = "json"
	outputYAML outputFormat = "yaml"
)

func parseOutputFormat(value string) (outputFormat, error) {
	switch f := outputFormat(strings.ToLower(strings.TrimSpace(value))); f {
	case outputText, outputJSON, outputYAML:
		return f, nil
	case "":
		return outputText, nil
	default:
		return "", fmt.Errorf("unsupported output format %q (use text, json, or yaml)", value)
	}
}

type summaryDocument struct {
	RunID           string         `json:"run_id" yaml:"run_id"`
	Input           string         `json:"input" yaml:"input"`
	Phase           string         `json:"phase" yaml:"phase"`
	AbortReason     string         `json:"abort_reason,omitempty" yaml:"abort_reason,omitempty"`
	DurationSeconds float64        `json:"duration_seconds" yaml:"duration_seconds"`
	EventLog        string         `json:"event_log,omitempty" yaml:"event_log,omitempty"`
	Stages          []stageSummary `json:"stages" yaml:"stages"`
	Skipped         []skipSummary  `json:"skipped,omitempty" yaml:"skipped,omitempty"`
}

type stageSummary struct {
	Stage           string   `json:"stage" yaml:"stage"`
	Status          string   `json:"status" yaml:"status"`
	ExitCode        int      `json:"exit_code" yaml:"exit_code"`
	Signal          string   `json:"signal,omitempty" yaml:"signal,omitempty"`
	DurationSeconds float64  `json:"duration_seconds" yaml:"duration_seconds"`
	FilesProcessed  int      `json:"files_processed" yaml:"files_processed"`
	FilesSucceeded  int      `json:"files_successful" yaml:"files_successful"`
	FilesFailed     int      `json:"files_failed" yaml:"files_failed"`
	SuccessRate     float64  `json:"success_rate" yaml:"success_rate"`
	Outputs         []string `json:"outputs,omitempty" yaml:"outputs,omitempty"`
	Warnings        []string `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	Errors          []string `json:"errors,omitempty" yaml:"errors,omitempty"`
	ParseErrors     int      `json:"parse_errors" yaml:"parse_errors"`
	Error           string   `json:"error,omitempty" yaml:"error,omitempty"`
	Notes           []string `json:"notes,omitempty" yaml:"notes,omitempty"`
}

type skipSummary struct {
	Stage  string `json:"stage" yaml:"stage"`
	Reason string `json:"reason" yaml:"reason"`
}

func newSummaryDocument(plan pipeline.Plan, summary pipeline.Summary, eventLog string) summaryDocument {
	doc := summaryDocument{
		RunID:           summary.RunID,
		Input:           plan.Input,
		Phase:           string(summary.Phase),
		AbortReason:     string(summary.AbortReason),
		DurationSeconds: seconds(summary.Duration),
		EventLog:        eventLog,
		Stages:          make([]stageSummary, 0, len(summary.Results)),
	}
	for _, r := range summary.Results {
		doc.Stages = append(doc.Stages, stageSummary{
			Stage:           string(r.Stage),
			Status:          string(r.Status),
			ExitCode:        r.ExitCode,
			Signal:          r.Signal,
			DurationSeconds: seconds(r.Duration),
			FilesProcessed:  r.FilesProcessed,
			FilesSucceeded:  r.FilesSucceeded,
			FilesFailed:     r.FilesFailed,
			SuccessRate:     r.SuccessRate(),
			Outputs:         r.Outputs,
			Warnings:        r.Warnings,
			Errors:          r.Errors,
			ParseErrors:     r.ParseErrorCount,
			Error:           r.ErrorMessage,
			Notes:           r.Notes,
		})
	}
	for _, s := range summary.Skipped {
		doc.Skipped = append(doc.Skipped, skipSummary{Stage: string(s.Stage), Reason: string(s.Reason)})
	}
	return doc
}

func seconds(d time.Duration) float64 {
	return float64(d.Round(time.Millisecond)) / float64(time.Second)
}

func writeSummary(w io.Writer, format outputFormat, doc summaryDocument, colors palette) error {
	switch format {
	case outputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	case outputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return err
		}
		return enc.Close()
	default:
		_, err := io.WriteString(w, renderSummaryText(doc, colors))
		return err
	}
}

func renderSummaryText(doc summaryDocument, colors palette) string {
	var b strings.Builder
	b.WriteString("\n")
	if len(doc.Stages) > 0 {
		b.WriteString(renderStageTable(doc.Stages, colors))
		b.WriteString("\n")
	}
	for _, s := range doc.Skipped {
		fmt.Fprintf(&b, "%s skipped: %s\n", s.Stage, s.Reason)
	}
	duration := time.Duration(doc.DurationSeconds * float64(time.Second)).Round(time.Millisecond)
	if doc.AbortReason == "" {
		fmt.Fprintln(&b, colors.paint(toneOK, fmt.Sprintf("Pipeline %s in %s (run %s)", doc.Phase, duration, doc.RunID)))
	} else {
		fmt.Fprintln(&b, colors.paint(toneError, fmt.Sprintf("Pipeline %s: %s after %s (run %s)", doc.Phase, doc.AbortReason, duration, doc.RunID)))
	}
	if doc.EventLog != "" {
		fmt.Fprintf(&b, "Events recorded to %s\n", doc.EventLog)
	}
	return b.String()
}

func renderStageTable(stages []stageSummary, colors palette) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Stage", "Status", "Exit", "Duration", "Files", "Warnings", "Parse errors"})
	for _, s := range stages {
		status := s.Status
		if colors.enabled {
			status = statusColor(s.Status).Sprint(status)
		}
		exit := strconv.Itoa(s.ExitCode)
		if s.Signal != "" {
			exit = s.Signal
		}
		files := "-"
		if s.FilesProcessed > 0 {
			files = fmt.Sprintf("%d/%d", s.FilesSucceeded, s.FilesProcessed)
		}
		tw.AppendRow(table.Row{
			s.Stage,
			status,
			exit,
			fmt.Sprintf("%.1fs", s.DurationSeconds),
			files,
			len(s.Warnings),
			s.ParseErrors,
		})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
		{Number: 6, Align: text.AlignRight},
		{Number: 7, Align: text.AlignRight},
	})
	return tw.Render()
}

func statusColor(status string) text.Colors {
	switch events.Status(status) {
	case events.StatusSucceeded:
		return text.Colors{text.FgGreen}
	case events.StatusCancelled:
		return text.Colors{text.FgYellow}
	default:
		return text.Colors{text.FgRed}
	}
}
