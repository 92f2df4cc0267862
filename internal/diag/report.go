package diag

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Position is the (uri, line, column, show-line) tuple GetPosition(ptr)
// returns for a parser/repository-sourced pointer. The core never
// parses source text itself; positions arrive opaque from the parser
// collaborator and are rendered here only for diagnostic display.
type Position struct {
	URI      string `json:"uri"`
	Line     int    `json:"line"`
	Column   int    `json:"column"`
	ShowLine string `json:"show_line,omitempty"`
}

// Report is the canonical structured diagnostic value. A pass that fails
// returns it as an ordinary Go error wrapped by Wrap, so AsReport recovers
// the structured value; it is never flattened into a bare error string.
type Report struct {
	Schema  string         `json:"schema"` // always "sigcore.diag/v1"
	Kind    Kind           `json:"kind"`
	Phase   string         `json:"phase"` // "specialize", "reactive", "lower", "codegen", "schedule"
	Message string         `json:"message"`
	Pos     *Position      `json:"pos,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
}

// ReportError wraps a Report as a Go error so it survives errors.As
// unwrapping through ordinary error-handling code.
type ReportError struct {
	Rep *Report
}

func (e *ReportError) Error() string {
	if e.Rep == nil {
		return "unknown diagnostic"
	}
	return string(e.Rep.Kind) + " [" + e.Rep.Phase + "]: " + e.Rep.Message
}

// AsReport extracts a Report from an error chain, if present.
func AsReport(err error) (*Report, bool) {
	var re *ReportError
	if errors.As(err, &re) {
		return re.Rep, true
	}
	return nil, false
}

// Wrap wraps r as an error, or returns nil if r is nil.
func Wrap(r *Report) error {
	if r == nil {
		return nil
	}
	return &ReportError{Rep: r}
}

// New builds a Report for the given kind/phase/message, ready to be
// threaded through Wrap.
func New(kind Kind, phase, message string) *Report {
	return &Report{Schema: "sigcore.diag/v1", Kind: kind, Phase: phase, Message: message}
}

// WithData attaches structured data (e.g. a MonitoredError's "key") and
// returns the same Report for chaining.
func (r *Report) WithData(key string, value any) *Report {
	if r.Data == nil {
		r.Data = make(map[string]any)
	}
	r.Data[key] = value
	return r
}

// WithPos attaches a source position.
func (r *Report) WithPos(p Position) *Report {
	r.Pos = &p
	return r
}

// ToJSON renders the report deterministically.
func (r *Report) ToJSON(compact bool) (string, error) {
	var data []byte
	var err error
	if compact {
		data, err = json.Marshal(r)
	} else {
		data, err = json.MarshalIndent(r, "", "  ")
	}
	if err != nil {
		return "", fmt.Errorf("diag: marshal report: %w", err)
	}
	return string(data), nil
}
