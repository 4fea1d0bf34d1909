// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/muesli/termenv"
)

// tableStyles colors the list columns. The zero value renders plain
// text.
type tableStyles struct {
	enabled  lipgloss.Style
	disabled lipgloss.Style
	staged   lipgloss.Style
	local    lipgloss.Style
	server   lipgloss.Style
	readOnly lipgloss.Style
	colored  bool
}

// newTableStyles returns colored styles bound to w, or plain styles when
// color is off.
func newTableStyles(w io.Writer, color bool) tableStyles {
	if !color {
		return tableStyles{}
	}
	renderer := lipgloss.NewRenderer(w, termenv.WithProfile(termenv.ANSI256))
	renderer.SetColorProfile(termenv.ANSI256)
	return tableStyles{
		enabled:  renderer.NewStyle().Foreground(lipgloss.Color("2")),
		disabled: renderer.NewStyle().Foreground(lipgloss.Color("8")),
		staged:   renderer.NewStyle().Foreground(lipgloss.Color("3")),
		local:    renderer.NewStyle().Foreground(lipgloss.Color("5")),
		server:   renderer.NewStyle().Foreground(lipgloss.Color("4")),
		readOnly: renderer.NewStyle().Foreground(lipgloss.Color("8")),
		colored:  true,
	}
}

func (s tableStyles) render(style lipgloss.Style, text string) string {
	if !s.colored {
		return text
	}
	return style.Render(text)
}

func (s tableStyles) cells(row flagRow) []string {
	value := s.render(s.disabled, row.Value)
	if row.Value == valueEnabled {
		value = s.render(s.enabled, row.Value)
	}
	staged := row.displayStaged()
	if staged != "-" {
		staged = s.render(s.staged, staged)
	}
	provenance := row.Provenance
	switch provenance {
	case provenanceLocal:
		provenance = s.render(s.local, provenance)
	case provenanceServer:
		provenance = s.render(s.server, provenance)
	}
	permission := row.Permission
	if permission == permissionReadOnly {
		permission = s.render(s.readOnly, permission)
	}
	return []string{row.qualifiedName(), value, staged, provenance, permission, row.Container}
}

// formatTable lays rows out in columns, each padded to its widest
// visible cell plus one space. The last column is not padded.
func formatTable(rows []flagRow, styles tableStyles) string {
	if len(rows) == 0 {
		return ""
	}
	cells := make([][]string, len(rows))
	var widths []int
	for i, row := range rows {
		cells[i] = styles.cells(row)
		if widths == nil {
			widths = make([]int, len(cells[i]))
		}
		for column, cell := range cells[i] {
			widths[column] = max(widths[column], ansi.StringWidth(cell))
		}
	}

	var builder strings.Builder
	for _, row := range cells {
		last := len(row) - 1
		for column, cell := range row {
			builder.WriteString(cell)
			if column < last {
				builder.WriteString(strings.Repeat(" ", widths[column]+1-ansi.StringWidth(cell)))
			}
		}
		builder.WriteByte('\n')
	}
	return builder.String()
}
