package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/yourorg/liveview/internal/buffer"
	"github.com/yourorg/liveview/internal/render"
)

const (
	plotMarker     = "•"
	timeLabel      = "15:04:05.000"
	yLabelWidth    = 10
	minPlotWidth   = 8
	minPlotHeight  = 3
	plotBorderSize = 2
)

func formatTs(ts float64) string {
	sec := int64(ts)
	nsec := int64((ts - float64(sec)) * 1e9)
	return time.Unix(sec, nsec).Format(timeLabel)
}

func formatValue(v float64) string {
	return fmt.Sprintf("%*.*g", yLabelWidth-1, 6, v)
}

// renderChart draws the frame into a width x height box
func (m Model) renderChart(width, height int) string {
	plotWidth := max(width-yLabelWidth-plotBorderSize, minPlotWidth)
	// one line for the legend, one for the x labels
	plotHeight := max(height-plotBorderSize-2, minPlotHeight)

	plot := render.Rasterize(m.frame, m.axis, plotWidth, plotHeight)

	rows := make([]string, plotHeight)
	for r, cells := range plot.Cells {
		var sb strings.Builder
		for _, c := range cells {
			if c == render.Empty {
				sb.WriteByte(' ')
				continue
			}
			sb.WriteString(m.styles.seriesStyle(c).Render(plotMarker))
		}
		rows[r] = sb.String()
	}

	labels := make([]string, plotHeight)
	for i := range labels {
		labels[i] = strings.Repeat(" ", yLabelWidth)
	}
	if plot.Y.Valid {
		labels[0] = m.styles.faint.Render(formatValue(plot.Y.Max) + " ")
		labels[plotHeight-1] = m.styles.faint.Render(formatValue(plot.Y.Min) + " ")
	}

	body := lipgloss.JoinHorizontal(lipgloss.Top,
		strings.Join(labels, "\n"),
		m.styles.plot.Render(strings.Join(rows, "\n")),
	)

	xLabels := ""
	if plot.X.Valid {
		left, right := formatTs(plot.X.Min), formatTs(plot.X.Max)
		gap := max(plotWidth+plotBorderSize-len(left)-len(right), 1)
		xLabels = strings.Repeat(" ", yLabelWidth) +
			m.styles.faint.Render(left+strings.Repeat(" ", gap)+right)
	}

	return lipgloss.JoinVertical(lipgloss.Left, body, xLabels, m.renderLegend())
}

func (m Model) renderLegend() string {
	if len(m.frame.Series) == 0 {
		return m.styles.faint.Render("waiting for samples")
	}
	parts := make([]string, 0, len(m.frame.Series))
	for i, s := range m.frame.Series {
		parts = append(parts, m.styles.seriesStyle(i).Render(plotMarker+" ch"+s.Channel.String())+
			m.styles.faint.Render(fmt.Sprintf(" %d/%d", len(s.Samples), s.Stored)))
	}
	return strings.Join(parts, "  ")
}

// renderList shows the last N samples of every channel, oldest first
func (m Model) renderList(height int) string {
	channels := m.reader.Channels()
	if len(channels) == 0 {
		return m.styles.faint.Render("no channels yet")
	}

	var lines []string
	for _, ch := range channels {
		samples := m.reader.SnapshotRecent(ch, m.recent)
		lines = append(lines, m.styles.title.Render(fmt.Sprintf("channel %s, last %d", ch, len(samples))))
		for _, s := range samples {
			lines = append(lines, "  "+formatSample(s))
		}
		lines = append(lines, "")
	}
	return clip(lines, height)
}

// renderLatest shows the newest sample of every channel
func (m Model) renderLatest(height int) string {
	channels := m.reader.Channels()
	if len(channels) == 0 {
		return m.styles.faint.Render("no channels yet")
	}

	lines := []string{m.styles.title.Render("latest samples")}
	for _, ch := range channels {
		s, ok := m.reader.Latest(ch)
		if !ok {
			lines = append(lines, fmt.Sprintf("  ch%-4s  -", ch))
			continue
		}
		lines = append(lines, fmt.Sprintf("  ch%-4s  %s", ch, formatSample(s)))
	}
	return clip(lines, height)
}

func formatSample(s buffer.Sample) string {
	return fmt.Sprintf("%s  %12.4f", formatTs(s.Ts), s.Val)
}

// clip keeps the last height lines
func clip(lines []string, height int) string {
	if height > 0 && len(lines) > height {
		lines = lines[len(lines)-height:]
	}
	return strings.Join(lines, "\n")
}
