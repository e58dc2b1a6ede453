package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"golang.org/x/text/cases"
	xlanguage "golang.org/x/text/language"
	"golang.org/x/time/rate"

	"subtoolkit/internal/aggregator"
	"subtoolkit/internal/events"
	"subtoolkit/internal/logging"
	"subtoolkit/internal/pipeline"
	"subtoolkit/internal/runner"
)

const (
	progressRedrawInterval = 100 * time.Millisecond
	progressLogBucket      = 10
)

// consoleObserver prints pipeline notifications for a person watching the
// run. On a terminal the progress line is redrawn in place; otherwise
// progress is printed once per bucket.
type consoleObserver struct {
	out     io.Writer
	colors  palette
	details map[events.Stage]string
	title   cases.Caser

	redraw     *rate.Limiter
	milestones *logging.Milestones
	// liveLine is set while an unterminated progress line is on screen.
	liveLine bool
}

var _ pipeline.Observer = (*consoleObserver)(nil)

func newConsoleObserver(out io.Writer, details map[events.Stage]string) *consoleObserver {
	return &consoleObserver{
		out:        out,
		colors:     paletteFor(out),
		details:    details,
		title:      cases.Title(xlanguage.English),
		redraw:     rate.NewLimiter(rate.Every(progressRedrawInterval), 1),
		milestones: logging.NewMilestones(progressLogBucket),
	}
}

func (c *consoleObserver) label(stage events.Stage) string {
	return c.title.String(string(stage))
}

func (c *consoleObserver) println(t tone, format string, args ...any) {
	if c.liveLine {
		fmt.Fprint(c.out, ansiClearLine)
		c.liveLine = false
	}
	line := fmt.Sprintf(format, args...)
	if t != toneInfo {
		line = c.colors.paint(t, line)
	}
	fmt.Fprintln(c.out, line)
}

func (c *consoleObserver) OnStageStarted(stage events.Stage, _ runner.Command) {
	c.milestones.Forget(string(stage))
	header := c.label(stage)
	if detail := c.details[stage]; detail != "" {
		header += ": " + detail
	}
	for _, line := range c.colors.heading(header) {
		c.println(toneInfo, "%s", line)
	}
}

func (c *consoleObserver) OnEvent(e events.Event) {
	switch e.Kind() {
	case events.KindProgress:
		return
	case events.KindWarning:
		c.println(toneWarn, "%s[WARN] %s", indent, e.Message())
	case events.KindError:
		c.println(toneError, "%s[ERROR] %s", indent, e.Message())
	case events.KindResult:
		c.println(toneOK, "%s[DONE] %s", indent, e.Message())
	default:
		c.println(toneInfo, "%s%s", indent, e.Message())
	}
}

func (c *consoleObserver) OnParseError(_ events.Stage, pe *events.ParseError) {
	c.println(toneWarn, "%s[WARN] %s", indent, pe.Error())
}

func (c *consoleObserver) OnStageProgress(snap aggregator.Snapshot) {
	message := strings.TrimSpace(snap.LastMessage)
	if c.colors.enabled {
		if snap.Progress < 100 && !c.redraw.Allow() {
			return
		}
		fmt.Fprintf(c.out, "%s%s%3d%% %s", ansiClearLine, indent, snap.Progress, message)
		c.liveLine = true
		return
	}
	if mark, ok := c.milestones.Next(string(snap.Stage), snap.Progress); ok {
		c.println(toneInfo, "%s%3d%% %s", indent, mark, message)
	}
}

func (c *consoleObserver) OnStageFinished(result events.ProcessResult) {
	label := c.label(result.Stage)
	switch {
	case result.Succeeded():
		c.println(toneOK, "%s %s in %s", label, result.Status, result.Duration.Round(time.Millisecond))
	case result.Status == events.StatusCancelled:
		c.println(toneWarn, "%s %s", label, result.Status)
	default:
		c.println(toneError, "%s %s: %s", label, result.Status, result.ErrorMessage)
	}
	for _, note := range result.Notes {
		c.println(toneWarn, "%snote: %s", indent, note)
	}
}

func (c *consoleObserver) OnStageSkipped(stage events.Stage, reason pipeline.SkipReason) {
	c.println(toneWarn, "%s skipped (%s)", c.label(stage), skipReasonText(reason))
}

func (c *consoleObserver) OnPipelineCompleted([]events.ProcessResult) {
	c.println(toneOK, "Pipeline completed")
}

func (c *consoleObserver) OnPipelineAborted(reason pipeline.AbortReason, _ []events.ProcessResult) {
	c.println(toneError, "Pipeline aborted (%s)", strings.ReplaceAll(string(reason), "_", " "))
}

func skipReasonText(reason pipeline.SkipReason) string {
	switch reason {
	case pipeline.SkipSingleFile:
		return "single file input"
	case pipeline.SkipPriorFailure:
		return "an earlier stage failed"
	case pipeline.SkipCancelled:
		return "cancelled"
	default:
		return string(reason)
	}
}
