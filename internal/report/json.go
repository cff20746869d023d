// Package report provides output formatters for paramcheck results in
// JSON and human-readable text formats.
package report

import (
	"encoding/json"
	"io"

	"github.com/unbound-force/paramcheck/internal/taxonomy"
)

// FormatVersion is the version of the JSON report layout.
const FormatVersion = "1.0.0"

// JSONReport is the top-level JSON output structure.
type JSONReport struct {
	Version     string                `json:"version"`
	Diagnostics []taxonomy.Diagnostic `json:"diagnostics"`
	Summary     taxonomy.Summary      `json:"summary"`
	Metadata    taxonomy.Metadata     `json:"metadata"`
}

// WriteJSON writes an analysis result as formatted JSON to the writer.
func WriteJSON(w io.Writer, result *taxonomy.Result) error {
	report := JSONReport{
		Version:     FormatVersion,
		Diagnostics: []taxonomy.Diagnostic{},
		Summary:     taxonomy.Summary{ByCode: map[taxonomy.Code]int{}},
	}
	if result != nil {
		if result.Diagnostics != nil {
			report.Diagnostics = result.Diagnostics
		}
		if result.Summary.ByCode != nil {
			report.Summary = result.Summary
		}
		report.Metadata = result.Metadata
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

// WriteCodesJSON writes the code table as a JSON array.
func WriteCodesJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(taxonomy.Codes())
}
