package report

// Schema is the JSON Schema (Draft 2020-12) for the paramcheck JSON
// output. It documents the structure returned by WriteJSON.
const Schema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://github.com/unbound-force/paramcheck/check-report.schema.json",
  "title": "paramcheck Report",
  "description": "Output schema for paramcheck check --format=json",
  "type": "object",
  "required": ["version", "diagnostics", "summary", "metadata"],
  "properties": {
    "version": {
      "type": "string",
      "description": "Report layout version (semver)"
    },
    "diagnostics": {
      "type": "array",
      "items": { "$ref": "#/$defs/Diagnostic" }
    },
    "summary": { "$ref": "#/$defs/Summary" },
    "metadata": { "$ref": "#/$defs/Metadata" }
  },
  "$defs": {
    "Diagnostic": {
      "type": "object",
      "required": ["id", "code", "category", "severity", "message", "location"],
      "properties": {
        "id": {
          "type": "string",
          "pattern": "^pc-[0-9a-f]{8}$",
          "description": "Stable identifier for diffing across runs"
        },
        "code": { "$ref": "#/$defs/Code" },
        "category": {
          "type": "string",
          "enum": ["argnames", "values", "fixtures", "arguments", "lint", "source"]
        },
        "severity": {
          "type": "string",
          "enum": ["error", "warning"]
        },
        "message": {
          "type": "string",
          "description": "Human-readable explanation"
        },
        "location": { "$ref": "#/$defs/Location" },
        "test": {
          "type": "string",
          "description": "Qualified name of the test or fixture being analyzed"
        }
      }
    },
    "Code": {
      "type": "string",
      "enum": [
        "invalid-argname", "unreadable-argname", "unreadable-argnames",
        "duplicate-argname", "request-keyword", "unknown-argname",
        "repeated-argname", "missing-argname", "repeated-fixture-argname",
        "variadic-argnames-argvals",
        "arg-type", "call-arg",
        "fixture-arg-type", "inverted-fixture-scope",
        "invalid-fixture-scope", "duplicate-fixture",
        "invalid-fixture-name", "unreadable-fixture-name",
        "pos-only-arg", "opt-arg", "var-pos-arg", "var-keyword-arg",
        "unknown-mark", "test-return-type", "syntax-error"
      ]
    },
    "Location": {
      "type": "object",
      "required": ["file", "line", "column"],
      "properties": {
        "file": {
          "type": "string",
          "description": "Path relative to the analyzed root"
        },
        "line": { "type": "integer", "minimum": 1 },
        "column": { "type": "integer", "minimum": 1 }
      }
    },
    "Summary": {
      "type": "object",
      "required": ["errors", "warnings", "by_code"],
      "properties": {
        "errors": { "type": "integer", "minimum": 0 },
        "warnings": { "type": "integer", "minimum": 0 },
        "by_code": {
          "type": "object",
          "additionalProperties": { "type": "integer", "minimum": 1 }
        }
      }
    },
    "Metadata": {
      "type": "object",
      "required": ["run_id", "paramcheck_version", "files_analyzed", "tests_analyzed", "duration_ms"],
      "properties": {
        "run_id": { "type": "string" },
        "paramcheck_version": { "type": "string" },
        "root": { "type": "string" },
        "files_analyzed": { "type": "integer", "minimum": 0 },
        "tests_analyzed": { "type": "integer", "minimum": 0 },
        "timestamp": {
          "type": "string",
          "description": "Start of the run (RFC 3339)"
        },
        "duration_ms": {
          "type": "integer",
          "description": "Analysis duration in milliseconds"
        },
        "warnings": {
          "oneOf": [
            { "type": "array", "items": { "type": "string" } },
            { "type": "null" }
          ],
          "description": "Analysis warnings, if any"
        }
      }
    }
  }
}`
