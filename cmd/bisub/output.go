package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

// renderTable draws rows under headers in a rounded box. Short rows are
// padded; aligns applies per column and defaults to left.
func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	if len(headers) == 0 {
		return ""
	}
	toRow := func(cells []string) table.Row {
		row := make(table.Row, len(headers))
		for i := range min(len(cells), len(row)) {
			row[i] = cells[i]
		}
		return row
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(toRow(headers))
	for _, cells := range rows {
		tw.AppendRow(toRow(cells))
	}
	columns := make([]table.ColumnConfig, len(headers))
	for i := range columns {
		columns[i] = table.ColumnConfig{Number: i + 1, Align: text.AlignLeft, AlignHeader: text.AlignLeft}
		if i < len(aligns) && aligns[i] == alignRight {
			columns[i].Align = text.AlignRight
		}
	}
	tw.SetColumnConfigs(columns)
	return tw.Render() + "\n"
}

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// statusKind grades one line of status output.
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

	statusLabelWidth = 20
)

var statusKinds = [...]struct {
	severity, label, color string
}{
	statusInfo:  {"info", "INFO", ansiBlue},
	statusOK:    {"ok", "OK", ansiGreen},
	statusWarn:  {"warn", "WARN", ansiYellow},
	statusError: {"error", "ERROR", ansiRed},
}

// statusKindFromSeverity maps a daemonctl severity string onto a kind.
// Unknown severities render as info.
func statusKindFromSeverity(severity string) statusKind {
	severity = strings.ToLower(strings.TrimSpace(severity))
	for kind, meta := range statusKinds {
		if meta.severity == severity {
			return statusKind(kind)
		}
	}
	return statusInfo
}

func (k statusKind) label() string { return statusKinds[k].label }

func (k statusKind) color() string { return statusKinds[k].color }

func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	status := "[" + kind.label() + "]"
	if message != "" {
		status += " " + message
	}
	line := fmt.Sprintf("  %-*s %s", statusLabelWidth, label+":", status)
	if colorize {
		return kind.color() + line + ansiReset
	}
	return line
}

func writeSection(w io.Writer, title string, colorize bool) {
	heading := "== " + strings.TrimSpace(title) + " =="
	lines := []string{heading, strings.Repeat("-", len(heading))}
	for _, line := range lines {
		if colorize {
			line = ansiBlue + line + ansiReset
		}
		fmt.Fprintln(w, line)
	}
}

// shouldColorize reports whether w is a terminal.
func shouldColorize(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}

func truncate(value string, width int) string {
	runes := []rune(value)
	if width <= 3 || len(runes) <= width {
		return value
	}
	return string(runes[:width-3]) + "..."
}

func formatPercent(fraction float64) string {
	return fmt.Sprintf("%.0f%%", fraction*100)
}
