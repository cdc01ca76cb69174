package compile

import (
	"encoding/json"
	"time"
)

// Severity grades a diagnostic.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Diagnostic is one compiler or orchestration message. Line is 0 for
// document-level messages.
type Diagnostic struct {
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	Line     int      `json:"line,omitempty"`
}

// Result is the outcome of one (document, variant) compile attempt.
type Result struct {
	Variant     Variant
	Artifact    string
	Success     bool
	Diagnostics []Diagnostic
	Duration    time.Duration
}

// Errors returns the error diagnostics.
func (r Result) Errors() []Diagnostic {
	var out []Diagnostic
	for _, d := range r.Diagnostics {
		if d.Severity == SeverityError {
			out = append(out, d)
		}
	}
	return out
}

type resultJSON struct {
	Variant     Variant      `json:"variant"`
	Artifact    string       `json:"artifact,omitempty"`
	Success     bool         `json:"success"`
	Diagnostics []Diagnostic `json:"diagnostics"`
	DurationMS  int64        `json:"duration_ms"`
}

// MarshalJSON reports the duration in milliseconds.
func (r Result) MarshalJSON() ([]byte, error) {
	diags := r.Diagnostics
	if diags == nil {
		diags = []Diagnostic{}
	}
	return json.Marshal(resultJSON{
		Variant:     r.Variant,
		Artifact:    r.Artifact,
		Success:     r.Success,
		Diagnostics: diags,
		DurationMS:  r.Duration.Milliseconds(),
	})
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (r *Result) UnmarshalJSON(data []byte) error {
	var in resultJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*r = Result{
		Variant:     in.Variant,
		Artifact:    in.Artifact,
		Success:     in.Success,
		Diagnostics: in.Diagnostics,
		Duration:    time.Duration(in.DurationMS) * time.Millisecond,
	}
	return nil
}

func failed(v Variant, start time.Time, diags ...Diagnostic) Result {
	return Result{Variant: v, Diagnostics: diags, Duration: time.Since(start)}
}

func errorDiagnostic(msg string) Diagnostic {
	return Diagnostic{Severity: SeverityError, Message: msg}
}
