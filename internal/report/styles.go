package report

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/unbound-force/paramcheck/internal/taxonomy"
)

// Styles defines the visual theme for terminal report output.
// Lipgloss automatically degrades to no-color when output is not a TTY.
type Styles struct {
	// Header is used for per-file headers (e.g. "=== tests/test_app.py ===").
	Header lipgloss.Style

	// Position styles the "line:col" prefix of a diagnostic.
	Position lipgloss.Style

	// Error and Warning color-code severities.
	Error   lipgloss.Style
	Warning lipgloss.Style

	// Code styles the bracketed diagnostic code.
	Code lipgloss.Style

	// Test styles the qualified name of the test being analyzed.
	Test lipgloss.Style

	// Source styles quoted source lines; Caret the marker beneath them.
	Source lipgloss.Style
	Caret  lipgloss.Style

	// TableHeader styles the header row of tables.
	TableHeader lipgloss.Style

	// TableCell styles regular table cells.
	TableCell lipgloss.Style

	// Pass styles the clean-run line.
	Pass lipgloss.Style

	// Fail styles the summary line when errors were found.
	Fail lipgloss.Style

	// Border is used for table borders.
	Border lipgloss.Style

	// Muted is used for de-emphasized text.
	Muted lipgloss.Style
}

// DefaultStyles returns the default color scheme for terminal reports.
func DefaultStyles() Styles {
	return Styles{
		Header:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63")),
		Position: lipgloss.NewStyle().Foreground(lipgloss.Color("245")),

		Error:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
		Warning: lipgloss.NewStyle().Foreground(lipgloss.Color("220")).Bold(true),

		Code: lipgloss.NewStyle().Foreground(lipgloss.Color("75")),
		Test: lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Italic(true),

		Source: lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
		Caret:  lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),

		TableHeader: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63")),
		TableCell:   lipgloss.NewStyle().PaddingRight(1),

		Pass: lipgloss.NewStyle().Foreground(lipgloss.Color("40")).Bold(true),
		Fail: lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),

		Border: lipgloss.NewStyle().Foreground(lipgloss.Color("63")),

		Muted: lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
	}
}

// SeverityStyle returns the style for a severity.
func (s Styles) SeverityStyle(sev taxonomy.Severity) lipgloss.Style {
	switch sev {
	case taxonomy.SeverityError:
		return s.Error
	case taxonomy.SeverityWarning:
		return s.Warning
	default:
		return s.Muted
	}
}
