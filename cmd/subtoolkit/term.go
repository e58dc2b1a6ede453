package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

// tone selects the color and badge of a console line.
type tone int

const (
	toneInfo tone = iota
	toneOK
	toneWarn
	toneError
)

const (
	ansiReset     = "\x1b[0m"
	ansiClearLine = "\r\x1b[K"
	labelWidth    = 20
	indent        = "  "
)

var toneColors = map[tone]string{
	toneInfo:  "\x1b[34m",
	toneOK:    "\x1b[32m",
	toneWarn:  "\x1b[33m",
	toneError: "\x1b[31m",
}

var toneBadges = map[tone]string{
	toneInfo:  "INFO",
	toneOK:    "OK",
	toneWarn:  "WARN",
	toneError: "ERROR",
}

// palette applies ANSI colors only when writing to a terminal.
type palette struct {
	enabled bool
}

func paletteFor(w io.Writer) palette {
	file, ok := w.(*os.File)
	if !ok {
		return palette{}
	}
	fd := file.Fd()
	return palette{enabled: isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)}
}

func (p palette) paint(t tone, s string) string {
	if !p.enabled {
		return s
	}
	return toneColors[t] + s + ansiReset
}

// row renders "  label:    [BADGE] message" for status listings.
func (p palette) row(label string, t tone, message string) string {
	badge := "[" + toneBadges[t] + "]"
	if message != "" {
		badge += " " + message
	}
	return p.paint(t, fmt.Sprintf("%s%-*s %s", indent, labelWidth, label+":", badge))
}

func (p palette) heading(title string) []string {
	line := "== " + strings.TrimSpace(title) + " =="
	return []string{p.paint(toneInfo, line), p.paint(toneInfo, strings.Repeat("-", len(line)))}
}
