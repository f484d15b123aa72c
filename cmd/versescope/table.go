package main

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"versescope/internal/analysis"
)

const explanationWidth = 72

func renderTable(headers []string, rows [][]string, widths []int) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := range columns {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := range columns {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	columnConfigs := make([]table.ColumnConfig, 0, columns)
	for i := range columns {
		cfg := table.ColumnConfig{
			Number:      i + 1,
			Align:       text.AlignLeft,
			AlignHeader: text.AlignLeft,
		}
		if i < len(widths) && widths[i] > 0 {
			cfg.WidthMax = widths[i]
			cfg.WidthMaxEnforcer = text.WrapSoft
		}
		columnConfigs = append(columnConfigs, cfg)
	}
	tw.SetColumnConfigs(columnConfigs)

	return tw.Render()
}

func renderCrossReferences(refs []analysis.CrossReference) string {
	rows := make([][]string, 0, len(refs))
	for _, ref := range refs {
		rows = append(rows, []string{ref.Verse, ref.Explanation})
	}
	return renderTable([]string{"Verse", "Explanation"}, rows, []int{0, explanationWidth})
}
