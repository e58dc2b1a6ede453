package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"subtoolkit/internal/config"
	"subtoolkit/internal/events"
	"subtoolkit/internal/language"
	"subtoolkit/internal/logging"
	"subtoolkit/internal/notifications"
	"subtoolkit/internal/pipeline"
	"subtoolkit/internal/runlock"
	"subtoolkit/internal/stages"
	"subtoolkit/internal/telemetry"
)

// exitCancelled matches the shell convention for SIGINT.
const exitCancelled = 130

const telemetryFlushTimeout = 5 * time.Second

func newRunCommand(ctx *commandContext) *cobra.Command {
	var sel stages.Selection
	var output string
	var noEventLog bool

	cmd := &cobra.Command{
		Use:   "run INPUT",
		Short: "Run the selected stages on a directory or file",
		Long: "Run extract, translate, and sync in order on INPUT. With no stage flags all three\n" +
			"run. Sync only reports planned renames unless --execute is given.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := parseOutputFormat(output)
			if err != nil {
				return err
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			shutdownTelemetry, err := telemetry.Setup(cmd.Context(), cfg.Telemetry, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer func() {
				flushCtx, cancel := context.WithTimeout(context.Background(), telemetryFlushTimeout)
				defer cancel()
				if err := shutdownTelemetry(flushCtx); err != nil {
					logging.WarnWithContext(logger, "telemetry flush failed", "telemetry_flush_failed",
						logging.Error(err),
						logging.String(logging.FieldImpact, "spans or metrics from this run may be missing"),
					)
				}
			}()

			if !sel.Any() {
				sel.Extract, sel.Translate, sel.Sync = true, true, true
			}

			builder := stages.NewBuilder(cfg)
			plan, err := builder.Build(args[0], sel)
			if err != nil {
				return err
			}

			for _, sc := range plan.Enabled() {
				logger.Debug("stage planned",
					logging.String(logging.FieldStage, string(sc.Stage)),
					logging.String("command", sc.Command.String()),
					logging.String("env", strings.Join(stages.MaskEnv(sc.Command.Env), " ")),
				)
			}

			lock, err := runlock.Acquire(cfg.Paths.StateDir, plan.Input)
			if err != nil {
				return err
			}
			defer func() {
				if err := lock.Release(); err != nil {
					logging.WarnWithContext(logger, "run lock release failed", "runlock_release_failed",
						logging.Error(err),
						logging.String(logging.FieldImpact, "stale lock file remains until the process exits"),
					)
				}
			}()

			// Progress goes to stderr when stdout carries a document.
			consoleOut := cmd.OutOrStdout()
			if format != outputText {
				consoleOut = cmd.ErrOrStderr()
			}

			coordinator := pipeline.NewCoordinator(builder.CoordinatorOptions(logger)...)
			coordinator.Subscribe(newConsoleObserver(consoleOut, stageDetails(cfg, sel)))

			var eventLogPath string
			if !noEventLog {
				elog, err := openEventLog(cfg.Paths.LogDir, time.Now(), logger)
				if err != nil {
					logging.WarnWithContext(logger, "event log unavailable; continuing without it", "event_log_unavailable",
						logging.Error(err),
						logging.String(logging.FieldErrorHint, "check paths.log_dir permissions"),
					)
				} else {
					defer elog.Close()
					eventLogPath = elog.Path()
					coordinator.Subscribe(elog.observer())
				}
			}

			if notifier := notifications.NewService(cfg); notifications.Enabled(notifier) {
				coordinator.Subscribe(notifications.Observer(notifier, plan.Input, logger))
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			exec, err := coordinator.Start(runCtx, plan)
			if err != nil {
				return err
			}
			<-exec.Done()
			summary := exec.Summary()

			doc := newSummaryDocument(plan, summary, eventLogPath)
			if err := writeSummary(cmd.OutOrStdout(), format, doc, paletteFor(cmd.OutOrStdout())); err != nil {
				return err
			}
			return summaryError(summary)
		},
	}

	cmd.Flags().BoolVar(&sel.Extract, "extract", false, "Extract subtitles from MKV files")
	cmd.Flags().BoolVar(&sel.Translate, "translate", false, "Translate SRT files")
	cmd.Flags().BoolVar(&sel.Sync, "sync", false, "Rename SRT files to match their videos")
	cmd.Flags().BoolVar(&sel.Execute, "execute", false, "Let sync rename files instead of reporting a dry run")
	cmd.Flags().StringVarP(&output, "output", "o", "text", "Summary format: text, json, or yaml")
	cmd.Flags().BoolVar(&noEventLog, "no-event-log", false, "Do not record events under the log directory")
	return cmd
}

// summaryError maps an unfinished pipeline to a non-zero exit status.
func summaryError(summary pipeline.Summary) error {
	if summary.Completed() {
		return nil
	}
	err := fmt.Errorf("pipeline aborted: %s", summary.AbortReason)
	for _, r := range summary.Results {
		if !r.Succeeded() && r.ErrorMessage != "" {
			err = fmt.Errorf("pipeline aborted: %s %s: %s", r.Stage, r.Status, r.ErrorMessage)
			break
		}
	}
	if summary.AbortReason == pipeline.AbortCancelled {
		return &exitError{code: exitCancelled, err: errors.New("pipeline cancelled")}
	}
	return &exitError{code: 1, err: err}
}

// stageDetails describes the configured behaviour of each selected stage.
func stageDetails(cfg *config.Config, sel stages.Selection) map[events.Stage]string {
	details := map[events.Stage]string{}
	if sel.Extract {
		details[events.StageExtract] = fmt.Sprintf("%s tracks", language.DisplayName(cfg.Extract.Language))
	}
	if sel.Translate {
		source := "auto-detected language"
		if !strings.EqualFold(cfg.Translate.SourceLanguage, "auto") {
			source = language.DisplayName(cfg.Translate.SourceLanguage)
		}
		details[events.StageTranslate] = fmt.Sprintf("%s to %s with %s/%s",
			source, language.DisplayName(cfg.Translate.TargetLanguage), cfg.Translate.Provider, cfg.Translate.Model)
	}
	if sel.Sync {
		mode := "dry run"
		if sel.Execute {
			mode = "renaming files"
		}
		details[events.StageSync] = fmt.Sprintf("%s with %s/%s", mode, cfg.Sync.Provider, cfg.Sync.Model)
	}
	return details
}
