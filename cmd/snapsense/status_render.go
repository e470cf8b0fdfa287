package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"snapsense/internal/config"
	"snapsense/internal/daemonctl"
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
	statusLabelWidth = 16
	statusIndent     = "  "
)

// statusLines renders the daemon state followed by the configuration snapshot.
func statusLines(status daemonctl.StatusResult, cfg *config.Config, configPath string, colorize bool) []string {
	lines := renderSectionHeader("SnapSense Status", colorize)
	if status.Running() {
		lines = append(lines, renderStatusLine("Daemon", statusOK, fmt.Sprintf("Running (pid %d)", status.PID), colorize))
	} else {
		lines = append(lines, renderStatusLine("Daemon", statusWarn, "Not running (run `snapsense start`)", colorize))
	}

	keyKind, keyDetail := statusOK, "Configured"
	if strings.TrimSpace(cfg.LLM.APIKey) == "" {
		keyKind, keyDetail = statusError, "Missing (set SNAPSENSE_API_KEY or llm.api_key)"
	}
	dirKind, dirDetail := statusOK, cfg.Watch.ScanDirectory
	if err := cfg.ValidateWatchDirectory(); err != nil {
		dirKind, dirDetail = statusError, cfg.Watch.ScanDirectory+" (not accessible)"
	}
	lines = append(lines,
		renderStatusLine("Directory", dirKind, dirDetail, colorize),
		renderStatusLine("API key", keyKind, keyDetail, colorize),
	)

	lines = append(lines, "")
	lines = append(lines, renderSectionHeader("Configuration", colorize)...)
	if strings.TrimSpace(configPath) != "" {
		lines = append(lines, renderStatusLine("Config file", statusInfo, configPath, colorize))
	}
	lines = append(lines,
		renderStatusLine("Prefix", statusInfo, cfg.Watch.ScreenshotPrefix, colorize),
		renderStatusLine("Scan interval", statusInfo, cfg.ScanInterval().String(), colorize),
		renderStatusLine("Max retries", statusInfo, fmt.Sprintf("%d", cfg.Watch.MaxRetries), colorize),
		renderStatusLine("Retry delay", statusInfo, fmt.Sprintf("%s (%s)", cfg.RetryDelay(), cfg.Watch.RetryBackoff), colorize),
		renderStatusLine("Model", statusInfo, cfg.LLM.Model, colorize),
		renderStatusLine("History", statusInfo, yesNo(cfg.History.Enabled), colorize),
		renderStatusLine("Daemon log", statusInfo, cfg.DaemonLogPath(), colorize),
	)
	return lines
}

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
