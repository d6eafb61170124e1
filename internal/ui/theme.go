package ui

import "github.com/charmbracelet/lipgloss"

// Theme defines the colors of the terminal viewer. All colors use ANSI
// 256-color codes.
type Theme struct {
	NormalText lipgloss.Color
	FaintText  lipgloss.Color

	HeaderForeground lipgloss.Color
	BorderColor      lipgloss.Color

	Running lipgloss.Color
	Stopped lipgloss.Color

	// SeriesColors are assigned to channels in frame order and reused
	// when there are more channels than colors.
	SeriesColors []lipgloss.Color
}

// DefaultTheme suits dark terminals
var DefaultTheme = Theme{
	NormalText:       lipgloss.Color("252"),
	FaintText:        lipgloss.Color("243"),
	HeaderForeground: lipgloss.Color("75"),
	BorderColor:      lipgloss.Color("240"),
	Running:          lipgloss.Color("78"),
	Stopped:          lipgloss.Color("203"),
	SeriesColors: []lipgloss.Color{
		lipgloss.Color("39"),
		lipgloss.Color("214"),
		lipgloss.Color("170"),
		lipgloss.Color("78"),
		lipgloss.Color("203"),
		lipgloss.Color("227"),
	},
}

// SeriesColor returns the color for the i-th series
func (theme Theme) SeriesColor(i int) lipgloss.Color {
	if len(theme.SeriesColors) == 0 {
		return theme.NormalText
	}
	return theme.SeriesColors[i%len(theme.SeriesColors)]
}

type styles struct {
	header      lipgloss.Style
	headerValue lipgloss.Style
	faint       lipgloss.Style
	running     lipgloss.Style
	stopped     lipgloss.Style
	title       lipgloss.Style
	plot        lipgloss.Style
	series      []lipgloss.Style
}

func newStyles(theme Theme) styles {
	s := styles{
		header:      lipgloss.NewStyle().Foreground(theme.HeaderForeground).Bold(true),
		headerValue: lipgloss.NewStyle().Foreground(theme.NormalText),
		faint:       lipgloss.NewStyle().Foreground(theme.FaintText),
		running:     lipgloss.NewStyle().Foreground(theme.Running).Bold(true),
		stopped:     lipgloss.NewStyle().Foreground(theme.Stopped).Bold(true),
		title:       lipgloss.NewStyle().Foreground(theme.HeaderForeground).Underline(true),
		plot: lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderForeground(theme.BorderColor),
	}
	for i := range theme.SeriesColors {
		s.series = append(s.series, lipgloss.NewStyle().Foreground(theme.SeriesColor(i)))
	}
	if len(s.series) == 0 {
		s.series = append(s.series, lipgloss.NewStyle().Foreground(theme.NormalText))
	}
	return s
}

func (s styles) seriesStyle(i int) lipgloss.Style {
	return s.series[i%len(s.series)]
}
