package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"versescope/internal/pipeline"
	"versescope/internal/services"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

const (
	statusLabelWidth = 12
	statusIndent     = "  "
)

func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	statusText := statusKindLabel(kind)
	if message != "" {
		statusText = fmt.Sprintf("[%s] %s", statusText, message)
	} else {
		statusText = fmt.Sprintf("[%s]", statusText)
	}
	base := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, label+":", statusText)
	if colorize {
		if color := statusKindColor(kind); color != "" {
			return color + base + ansiReset
		}
	}
	return base
}

// renderPhaseLine describes a pipeline transition for progress output.
func renderPhaseLine(snap pipeline.Snapshot, colorize bool) string {
	switch snap.Phase {
	case pipeline.PhaseLookingUp:
		return renderStatusLine("Lookup", statusInfo, snap.Query, colorize)
	case pipeline.PhaseAnalyzing:
		reference := snap.Query
		if snap.Verse != nil {
			reference = snap.Verse.Reference
		}
		return renderStatusLine("Analysis", statusInfo, fmt.Sprintf("%s (%s)", reference, snap.Detail), colorize)
	case pipeline.PhaseSuccess:
		return renderStatusLine("Done", statusOK, "", colorize)
	case pipeline.PhaseError:
		kind := statusError
		if snap.ErrorKind == services.KindTransient {
			kind = statusWarn
		}
		return renderStatusLine("Failed", kind, snap.Error, colorize)
	default:
		return ""
	}
}

func statusKindLabel(kind statusKind) string {
	switch kind {
	case statusOK:
		return "OK"
	case statusWarn:
		return "WARN"
	case statusError:
		return "ERROR"
	default:
		return "INFO"
	}
}

func statusKindColor(kind statusKind) string {
	switch kind {
	case statusOK:
		return ansiGreen
	case statusWarn:
		return ansiYellow
	case statusError:
		return ansiRed
	case statusInfo:
		return ansiBlue
	default:
		return ""
	}
}

func renderSectionHeader(title string, colorize bool) []string {
	line := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	rule := strings.Repeat("-", len(line))
	if colorize {
		line = ansiBlue + line + ansiReset
		rule = ansiBlue + rule + ansiReset
	}
	return []string{line, rule}
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
