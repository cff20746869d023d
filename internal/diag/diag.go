// Package diag collects diagnostics: a Sink interface, a per-callback
// Buffer that can be discarded on deferral, and the process-wide
// Collector that deduplicates and orders the final output.
package diag

import (
	"sort"
	"sync"

	"github.com/unbound-force/paramcheck/internal/pyast"
	"github.com/unbound-force/paramcheck/internal/taxonomy"
)

// Sink receives diagnostics.
type Sink interface {
	Report(d taxonomy.Diagnostic)
}

// New builds a diagnostic, filling category, severity and ID from the
// code table.
func New(code taxonomy.Code, message, file string, pos pyast.Pos, test string) taxonomy.Diagnostic {
	loc := taxonomy.Location{File: file, Line: pos.Line, Column: pos.Col}
	return taxonomy.Diagnostic{
		ID:       taxonomy.GenerateID(test, code, loc.String(), message),
		Code:     code,
		Category: taxonomy.CategoryOf(code),
		Severity: taxonomy.SeverityOf(code),
		Message:  message,
		Location: loc,
		Test:     test,
	}
}

// Reporter binds a sink to the file and test under analysis.
type Reporter struct {
	Sink Sink
	File string
	Test string
}

// Fail reports code at pos.
func (r Reporter) Fail(code taxonomy.Code, message string, pos pyast.Pos) {
	if r.Sink == nil {
		return
	}
	r.Sink.Report(New(code, message, r.File, pos, r.Test))
}

// WithFile returns a copy of r that attributes diagnostics to file.
func (r Reporter) WithFile(file string) Reporter {
	r.File = file
	return r
}

// Discard drops everything.
type Discard struct{}

// Report implements Sink.
func (Discard) Report(taxonomy.Diagnostic) {}

// Buffer holds diagnostics until the callback that produced them
// completes.
type Buffer struct {
	items []taxonomy.Diagnostic
}

// Report implements Sink.
func (b *Buffer) Report(d taxonomy.Diagnostic) {
	b.items = append(b.items, d)
}

// Items returns the buffered diagnostics in emission order.
func (b *Buffer) Items() []taxonomy.Diagnostic {
	return b.items
}

// Len returns the number of buffered diagnostics.
func (b *Buffer) Len() int {
	return len(b.items)
}

// FlushTo forwards every buffered diagnostic to s and empties the buffer.
func (b *Buffer) FlushTo(s Sink) {
	for _, d := range b.items {
		s.Report(d)
	}
	b.items = nil
}

// Reset empties the buffer.
func (b *Buffer) Reset() {
	b.items = nil
}

// Collector is the process-wide accumulator. It is safe for concurrent
// use.
type Collector struct {
	mu       sync.Mutex
	items    []taxonomy.Diagnostic
	seen     map[string]bool
	disabled map[taxonomy.Code]bool
}

// NewCollector creates a collector that drops the disabled codes.
func NewCollector(disabled ...taxonomy.Code) *Collector {
	c := &Collector{
		seen:     map[string]bool{},
		disabled: map[taxonomy.Code]bool{},
	}
	for _, code := range disabled {
		c.disabled[code] = true
	}
	return c
}

// Report implements Sink. Identical diagnostics are kept once.
func (c *Collector) Report(d taxonomy.Diagnostic) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disabled[d.Code] {
		return
	}
	key := string(d.Code) + "\x00" + d.Location.String() + "\x00" + d.Message
	if c.seen[key] {
		return
	}
	c.seen[key] = true
	c.items = append(c.items, d)
}

// Diagnostics returns the collected diagnostics ordered by file, line,
// column, then emission order.
func (c *Collector) Diagnostics() []taxonomy.Diagnostic {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]taxonomy.Diagnostic, len(c.items))
	copy(out, c.items)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].Location, out[j].Location
		if a.File != b.File {
			return a.File < b.File
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Column < b.Column
	})
	return out
}

// Len returns the number of collected diagnostics.
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}
