// Package taxonomy defines the diagnostic code system, core data
// structures, and stable ID generation for paramcheck results.
package taxonomy

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Code is a stable diagnostic code.
type Code string

// Argument-name codes.
const (
	InvalidArgname            Code = "invalid-argname"
	UnreadableArgname         Code = "unreadable-argname"
	UnreadableArgnames        Code = "unreadable-argnames"
	DuplicateArgname          Code = "duplicate-argname"
	RequestKeyword            Code = "request-keyword"
	UnknownArgname            Code = "unknown-argname"
	RepeatedArgname           Code = "repeated-argname"
	MissingArgname            Code = "missing-argname"
	RepeatedFixtureArgname    Code = "repeated-fixture-argname"
	VariadicArgnamesArgvalues Code = "variadic-argnames-argvals"
)

// Fixture codes.
const (
	FixtureArgType       Code = "fixture-arg-type"
	InvertedFixtureScope Code = "inverted-fixture-scope"
	InvalidFixtureScope  Code = "invalid-fixture-scope"
	DuplicateFixture     Code = "duplicate-fixture"

	// Fixture names read by usefixtures and by the name= alias.
	InvalidFixtureName    Code = "invalid-fixture-name"
	UnreadableFixtureName Code = "unreadable-fixture-name"
)

// Rejected test-parameter kinds.
const (
	PosOnlyArg    Code = "pos-only-arg"
	OptArg        Code = "opt-arg"
	VarPosArg     Code = "var-pos-arg"
	VarKeywordArg Code = "var-keyword-arg"
)

// Synthetic call-check codes.
const (
	ArgType Code = "arg-type"
	CallArg Code = "call-arg"
)

// Supplementary checks.
const (
	UnknownMark    Code = "unknown-mark"
	TestReturnType Code = "test-return-type"
	SyntaxError    Code = "syntax-error"
)

// Severity of a diagnostic.
type Severity string

// Severity constants.
const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Category groups related codes for reporting.
type Category string

// Category constants.
const (
	CategoryArgnames  Category = "argnames"
	CategoryValues    Category = "values"
	CategoryFixtures  Category = "fixtures"
	CategoryArguments Category = "arguments"
	CategoryLint      Category = "lint"
	CategorySource    Category = "source"
)

// Location is a source position.
type Location struct {
	// File is the path relative to the analyzed root.
	File string `json:"file"`

	// Line is 1-based.
	Line int `json:"line"`

	// Column is 1-based.
	Column int `json:"column"`
}

// String renders "file:line:col".
func (l Location) String() string {
	return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
}

// Diagnostic is a single reported problem.
type Diagnostic struct {
	// ID is a stable identifier for diffing across runs.
	// Generated from sha256(file+test+code+location+message).
	ID string `json:"id"`

	Code     Code     `json:"code"`
	Category Category `json:"category"`
	Severity Severity `json:"severity"`

	// Message is the human-readable explanation.
	Message string `json:"message"`

	Location Location `json:"location"`

	// Test is the qualified name of the test or fixture being analyzed
	// when the diagnostic was produced.
	Test string `json:"test,omitempty"`
}

// Summary aggregates diagnostic counts.
type Summary struct {
	Errors   int          `json:"errors"`
	Warnings int          `json:"warnings"`
	ByCode   map[Code]int `json:"by_code"`
}

// Metadata holds analysis run metadata.
type Metadata struct {
	RunID         string        `json:"run_id"`
	Version       string        `json:"paramcheck_version"`
	Root          string        `json:"root"`
	FilesAnalyzed int           `json:"files_analyzed"`
	TestsAnalyzed int           `json:"tests_analyzed"`
	Timestamp     time.Time     `json:"-"`
	Duration      time.Duration `json:"-"`
	Warnings      []string      `json:"warnings"`
}

// MarshalJSON customizes JSON encoding to use duration_ms and
// ISO 8601 timestamp.
func (m Metadata) MarshalJSON() ([]byte, error) {
	type Alias Metadata
	ts := ""
	if !m.Timestamp.IsZero() {
		ts = m.Timestamp.UTC().Format(time.RFC3339)
	}
	return json.Marshal(&struct {
		Alias
		DurationMS int64  `json:"duration_ms"`
		Timestamp  string `json:"timestamp,omitempty"`
	}{
		Alias:      Alias(m),
		DurationMS: m.Duration.Milliseconds(),
		Timestamp:  ts,
	})
}

// Result is the complete output of one analysis run.
type Result struct {
	Diagnostics []Diagnostic `json:"diagnostics"`
	Summary     Summary      `json:"summary"`
	Metadata    Metadata     `json:"metadata"`
}

// Summarize counts diagnostics by severity and code.
func Summarize(diags []Diagnostic) Summary {
	s := Summary{ByCode: map[Code]int{}}
	for _, d := range diags {
		switch d.Severity {
		case SeverityError:
			s.Errors++
		case SeverityWarning:
			s.Warnings++
		}
		s.ByCode[d.Code]++
	}
	return s
}

// GenerateID produces a stable, deterministic ID for a diagnostic
// based on its context. The ID is a sha256 hash truncated to 8 hex
// characters, prefixed with "pc-".
func GenerateID(test string, code Code, location, message string) string {
	input := fmt.Sprintf("%s:%s:%s:%s", test, code, location, message)
	hash := sha256.Sum256([]byte(input))
	return fmt.Sprintf("pc-%x", hash[:4])
}

// NewRunID returns a fresh identifier for one analysis run.
func NewRunID() string {
	return uuid.NewString()
}
