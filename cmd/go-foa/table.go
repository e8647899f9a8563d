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

	"github.com/teslashibe/go-foa/internal/analysis"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := 0; i < columns; i++ {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			}
		}
		tw.AppendRow(r)
	}

	columnConfigs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		columnConfigs = append(columnConfigs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(columnConfigs)

	return tw.Render()
}

// renderReport formats a scene report as a spatial summary and a class table
func renderReport(title string, report *analysis.Report) string {
	var b strings.Builder

	fmt.Fprintln(&b, title)
	b.WriteString(renderTable(
		[]string{"Azimuth", "Elevation", "Delay (samples)", "Delay (s)"},
		[][]string{{
			fmt.Sprintf("%.1f°", report.Azimuth),
			fmt.Sprintf("%.1f°", report.Elevation),
			fmt.Sprintf("%d", report.DelaySamples),
			fmt.Sprintf("%.6f", report.DelaySeconds),
		}},
		[]columnAlignment{alignRight, alignRight, alignRight, alignRight},
	))
	b.WriteString("\n")

	if len(report.Classification) == 0 {
		b.WriteString("No sound classes detected\n")
	} else {
		rows := make([][]string, 0, len(report.Classification))
		for _, e := range report.Classification {
			rows = append(rows, []string{e.Label, fmt.Sprintf("%.3f", e.Score)})
		}
		b.WriteString(renderTable([]string{"Class", "Score"}, rows, []columnAlignment{alignLeft, alignRight}))
		b.WriteString("\n")
	}

	if report.HasTranscription() {
		fmt.Fprintf(&b, "Transcript: %q\n", report.TranscriptText())
	}

	return strings.TrimRight(b.String(), "\n")
}

// writeJSON encodes v as indented JSON to the command's stdout
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func isTerminal(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
