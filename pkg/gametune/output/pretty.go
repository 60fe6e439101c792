package output

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/jamesainslie/gametune/pkg/gametune/types"
)

// PrettyFormatter formats output with colors and styling using lipgloss.
// It produces a visually appealing output suitable for terminal display.
type PrettyFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *PrettyFormatter) Format(w *bytes.Buffer, v *View) error {
	if v.Title != "" {
		w.WriteString(HeaderBox.Render(TitleStyle.Render(v.Title)))
		w.WriteString("\n")
	}

	if v.Report != nil {
		w.WriteString(f.formatReport(v.Report))
	}
	if len(v.Adapters) > 0 {
		w.WriteString(f.formatAdapters(v.Adapters))
	}
	if v.Memory != nil {
		w.WriteString(f.formatMemory(v))
	}
	if len(v.Records) > 0 {
		w.WriteString(f.formatRecords(v.Records))
	}
	if len(v.Bench) > 0 {
		w.WriteString(f.formatBench(v))
	}
	if len(v.History) > 0 {
		w.WriteString(f.formatHistory(v))
	}
	if v.Empty() {
		w.WriteString(MutedStyle.Render("  Nothing to show"))
		w.WriteString("\n")
	}

	if len(v.Warnings) > 0 {
		w.WriteString("\n")
		w.WriteString(f.formatWarnings(v.Warnings))
	}
	return nil
}

func (f *PrettyFormatter) formatReport(r *types.Report) string {
	if len(r.Steps) == 0 {
		return MutedStyle.Render("  No steps were run") + "\n"
	}

	rows := make([][]string, len(r.Steps))
	for i, s := range r.Steps {
		rows[i] = []string{s.Result.Status(), s.Operation, s.Result.Message}
	}

	var sb strings.Builder
	sb.WriteString(renderTable([]string{"STATUS", "OPERATION", "MESSAGE"}, rows, func(col int, row []string) lipgloss.Style {
		switch col {
		case 0:
			return statusStyle(row[0])
		case 1:
			return ValueStyle
		default:
			return MutedStyle
		}
	}))

	parts := []string{
		LabelStyle.Render("Steps:") + " " + ValueStyle.Render(strconv.Itoa(len(r.Steps))),
	}
	failed := strconv.Itoa(r.Failed())
	if r.Failed() > 0 {
		parts = append(parts, LabelStyle.Render("Failed:")+" "+ErrorStyle.Render(failed))
	} else {
		parts = append(parts, LabelStyle.Render("Failed:")+" "+SuccessStyle.Render(failed))
	}
	if n := r.Skipped(); n > 0 {
		parts = append(parts, LabelStyle.Render("Skipped:")+" "+WarningStyle.Render(strconv.Itoa(n)))
	}
	if r.Duration > 0 {
		parts = append(parts, LabelStyle.Render("Took:")+" "+ValueStyle.Render(formatDuration(r.Duration)))
	}
	if r.RestartRequired() {
		parts = append(parts, WarningStyle.Bold(true).Render("Restart required"))
	}
	sb.WriteString(FooterBox.Render(strings.Join(parts, "  ")))
	sb.WriteString("\n")
	return sb.String()
}

func (f *PrettyFormatter) formatAdapters(adapters []types.AdapterIdentity) string {
	rows := make([][]string, len(adapters))
	for i, a := range adapters {
		active := ""
		if a.IsActive {
			active = "active"
		}
		rows[i] = []string{strconv.Itoa(a.Index), a.Name, active}
	}
	return renderTable([]string{"INDEX", "NAME", ""}, rows, func(col int, _ []string) lipgloss.Style {
		switch col {
		case 0:
			return MutedStyle
		case 2:
			return SuccessStyle
		default:
			return ValueStyle
		}
	})
}

func (f *PrettyFormatter) formatMemory(v *View) string {
	m := v.Memory
	lines := []string{
		LabelStyle.Render("Total:") + "     " + ValueStyle.Render(types.FormatBytes(m.Total)),
		LabelStyle.Render("Available:") + " " + SuccessStyle.Render(types.FormatBytes(m.Available)),
		LabelStyle.Render("Used:") + "      " + ValueStyle.Render(fmt.Sprintf("%s (%.1f%%)", types.FormatBytes(m.Used), m.UsedPercent)),
	}
	return strings.Join(lines, "\n") + "\n"
}

func (f *PrettyFormatter) formatRecords(records []types.TweakRecord) string {
	rows := make([][]string, len(records))
	for i, r := range records {
		prior := r.Prior
		switch {
		case r.Absent:
			prior = "<absent>"
		case prior == "":
			prior = "<empty>"
		}
		rows[i] = []string{string(r.Category), r.Key, prior, humanize.Time(r.AppliedAt)}
	}
	return renderTable([]string{"CATEGORY", "KEY", "PRIOR", "APPLIED"}, rows, func(col int, _ []string) lipgloss.Style {
		switch col {
		case 0:
			return TitleStyle
		case 1:
			return ValueStyle
		default:
			return MutedStyle
		}
	})
}

func (f *PrettyFormatter) formatBench(v *View) string {
	rows := make([][]string, len(v.Bench))
	for i, r := range v.Bench {
		if !r.Reachable() {
			rows[i] = []string{r.Provider, r.Server, "unreachable", "", "", r.Err}
			continue
		}
		rows[i] = []string{
			r.Provider, r.Server,
			formatDuration(r.Median), formatDuration(r.Min), formatDuration(r.Max),
			fmt.Sprintf("%d/%d", r.OK, r.OK+r.Failed),
		}
	}
	return renderTable([]string{"PROVIDER", "SERVER", "MEDIAN", "MIN", "MAX", "OK"}, rows, func(col int, row []string) lipgloss.Style {
		switch {
		case row[2] == "unreachable" && col >= 2:
			return ErrorStyle
		case col == 0:
			return ValueStyle
		case col == 2:
			return TitleStyle
		default:
			return MutedStyle
		}
	})
}

func (f *PrettyFormatter) formatHistory(v *View) string {
	rows := make([][]string, len(v.History))
	for i, e := range v.History {
		status := "ok"
		switch {
		case e.Summary.Failed > 0:
			status = "failed"
		case e.Summary.RestartRequired:
			status = "restart"
		}
		rows[i] = []string{
			e.ID, string(e.Operation), humanize.Time(e.Timestamp),
			strconv.Itoa(e.Summary.Steps), status,
		}
	}
	return renderTable([]string{"ID", "OPERATION", "WHEN", "STEPS", "STATUS"}, rows, func(col int, row []string) lipgloss.Style {
		switch col {
		case 0:
			return ValueStyle
		case 4:
			return statusStyle(row[4])
		default:
			return MutedStyle
		}
	})
}

func (f *PrettyFormatter) formatWarnings(warnings []string) string {
	var sb strings.Builder
	sb.WriteString(WarningStyle.Bold(true).Render("Warnings:"))
	sb.WriteString("\n")
	for _, warning := range warnings {
		sb.WriteString(WarningStyle.Render("  " + warning))
		sb.WriteString("\n")
	}
	return sb.String()
}

// renderTable aligns rows on their raw widths before styling, since styled
// strings carry escape codes.
func renderTable(headers []string, rows [][]string, style func(col int, row []string) lipgloss.Style) string {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if w := lipgloss.Width(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}

	var sb strings.Builder
	sb.WriteString(" ")
	for i, h := range headers {
		sb.WriteString(" ")
		sb.WriteString(TableHeaderStyle.Render(padRight(h, widths[i])))
	}
	sb.WriteString("\n")

	for _, row := range rows {
		sb.WriteString(" ")
		for i, cell := range row {
			sb.WriteString(" ")
			if i == len(row)-1 {
				sb.WriteString(style(i, row).Render(cell))
				continue
			}
			sb.WriteString(style(i, row).Render(padRight(cell, widths[i])))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func padRight(s string, width int) string {
	if n := lipgloss.Width(s); n < width {
		return s + strings.Repeat(" ", width-n)
	}
	return s
}

// formatDuration formats a duration in a human-friendly way.
func formatDuration(d time.Duration) string {
	switch {
	case d <= 0:
		return "0ms"
	case d < time.Millisecond:
		return fmt.Sprintf("%dµs", d.Microseconds())
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	minutes := int(d.Minutes())
	seconds := int(d.Seconds()) % 60
	return fmt.Sprintf("%dm %ds", minutes, seconds)
}

func init() {
	Register("pretty", func() Formatter {
		return &PrettyFormatter{}
	})
}

// Ensure PrettyFormatter implements Formatter.
var _ Formatter = (*PrettyFormatter)(nil)
