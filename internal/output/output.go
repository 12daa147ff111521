package output

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/mfittko/gitdrop/internal/remote"
	"github.com/mfittko/gitdrop/internal/validation"
)

// Format represents the output format
type Format string

const (
	// FormatText is the default human-readable text format
	FormatText Format = "text"
	// FormatJSON is machine-readable JSON format
	FormatJSON Format = "json"
)

// ParseFormat parses a format string and validates it
func ParseFormat(s string) (Format, error) {
	format := Format(s)
	switch format {
	case FormatText, FormatJSON:
		return format, nil
	default:
		return FormatText, fmt.Errorf("invalid output format: %q (must be 'text' or 'json')", s)
	}
}

// Formatter handles outputting data in different formats
type Formatter struct {
	format Format
	writer io.Writer
}

// New creates a new Formatter with the specified format
func New(format Format) *Formatter {
	return &Formatter{
		format: format,
		writer: os.Stdout,
	}
}

// SetWriter sets the output writer (useful for testing)
func (f *Formatter) SetWriter(w io.Writer) {
	f.writer = w
}

// CheckResult is one diagnostic line of a Result.
type CheckResult struct {
	Name    string `json:"name"`
	OK      bool   `json:"ok"`
	Summary string `json:"summary"`
}

// Result represents a command result that can be output in different formats
type Result struct {
	Success     bool              `json:"success"`
	Message     string            `json:"message,omitempty"`
	Error       string            `json:"error,omitempty"`
	Details     string            `json:"details,omitempty"`
	Destination string            `json:"destination,omitempty"`
	URL         string            `json:"url,omitempty"`
	Data        map[string]string `json:"data,omitempty"`
	Checks      []CheckResult     `json:"checks,omitempty"`
}

// FromChecks converts remote diagnostics. The result succeeds when every
// check passed.
func FromChecks(checks []remote.Check) *Result {
	out := &Result{Success: true}
	for _, c := range checks {
		out.Checks = append(out.Checks, CheckResult{Name: c.Name, OK: c.OK(), Summary: c.Summary()})
		if !c.OK() {
			out.Success = false
		}
	}
	if out.Success {
		out.Message = "All remote checks passed"
	} else {
		out.Error = "Some remote checks failed"
	}
	return out
}

// Print outputs a result in the configured format
func (f *Formatter) Print(result *Result) error {
	switch f.format {
	case FormatJSON:
		return f.printJSON(result)
	case FormatText:
		return f.printText(result)
	default:
		return fmt.Errorf("unsupported output format: %s", f.format)
	}
}

func (f *Formatter) printJSON(v any) error {
	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func (f *Formatter) printText(result *Result) error {
	var lines []string
	switch {
	case result.Success && result.Message != "":
		lines = append(lines, result.Message)
	case !result.Success && result.Error != "":
		lines = append(lines, "Error: "+result.Error)
	case !result.Success:
		lines = append(lines, "Command failed")
	}

	for _, c := range result.Checks {
		mark := "ok"
		if !c.OK {
			mark = "FAIL"
		}
		lines = append(lines, fmt.Sprintf("  [%s] %s", mark, c.Summary))
	}
	if result.Destination != "" {
		lines = append(lines, "Destination: "+result.Destination)
	}
	if result.URL != "" {
		lines = append(lines, "URL: "+result.URL)
	}
	if !result.Success && result.Details != "" {
		lines = append(lines, "Details: "+result.Details)
	}

	keys := make([]string, 0, len(result.Data))
	for k := range result.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		lines = append(lines, fmt.Sprintf("%s: %s", k, result.Data[k]))
	}

	for _, line := range lines {
		if _, err := fmt.Fprintln(f.writer, line); err != nil {
			return err
		}
	}
	return nil
}

// ValidationError represents a validation error in structured format
type ValidationError struct {
	Field       string `json:"field"`
	Value       string `json:"value,omitempty"`
	Message     string `json:"message"`
	Remediation string `json:"remediation,omitempty"`
	Example     string `json:"example,omitempty"`
}

// ValidationResult represents validation results
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

// FromValidation converts the error returned by config.Settings. A nil
// error is a passing result; errors that are not validation errors are
// reported under the field "config".
func FromValidation(err error) *ValidationResult {
	if err == nil {
		return &ValidationResult{Valid: true}
	}

	var errs validation.Errors
	if !errors.As(err, &errs) {
		errs = validation.Errors{err}
	}

	result := &ValidationResult{}
	for _, e := range errs {
		var valErr *validation.Error
		if errors.As(e, &valErr) {
			result.Errors = append(result.Errors, ValidationError{
				Field:       valErr.Field,
				Value:       valErr.Value,
				Message:     valErr.Message,
				Remediation: valErr.Remediation,
				Example:     valErr.Example,
			})
			continue
		}
		result.Errors = append(result.Errors, ValidationError{Field: "config", Message: e.Error()})
	}
	return result
}

// PrintValidation outputs validation results
func (f *Formatter) PrintValidation(result *ValidationResult) error {
	switch f.format {
	case FormatJSON:
		return f.printJSON(result)
	case FormatText:
		if result.Valid {
			_, err := fmt.Fprintln(f.writer, "Validation passed")
			return err
		}
		_, err := fmt.Fprintln(f.writer, "Validation failed:")
		if err != nil {
			return err
		}
		for _, e := range result.Errors {
			_, err = fmt.Fprintf(f.writer, "  - %s: %s\n", e.Field, e.Message)
			if err != nil {
				return err
			}
			if e.Remediation != "" {
				_, err = fmt.Fprintf(f.writer, "    Remediation: %s\n", e.Remediation)
				if err != nil {
					return err
				}
			}
			if e.Example != "" {
				_, err = fmt.Fprintf(f.writer, "    Example: %s\n", e.Example)
				if err != nil {
					return err
				}
			}
		}
		return nil
	default:
		return fmt.Errorf("unsupported output format: %s", f.format)
	}
}
