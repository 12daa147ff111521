package validation

import (
	"fmt"
	"path"
	"regexp"
	"strconv"
	"strings"
)

// hostnameRegex is a pre-compiled regex for RFC 1123 hostname validation
var hostnameRegex = regexp.MustCompile(`^([a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?\.)*[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?$`)

var projectNameRegex = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

var branchNameRegex = regexp.MustCompile(`^[A-Za-z0-9._/-]+$`)

// Error represents a validation error with an actionable remediation hint
// and, where one helps, an example of an accepted value.
type Error struct {
	Field       string
	Value       string
	Message     string
	Remediation string
	Example     string
}

func (e *Error) Error() string {
	if e.Remediation != "" {
		return fmt.Sprintf("%s: %s\nRemediation: %s", e.Field, e.Message, e.Remediation)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Port validates a port number (1-65535)
func Port(field, value string) error {
	if value == "" {
		return nil // Empty values are handled by Required()
	}

	port, err := strconv.Atoi(value)
	if err != nil || port < 1 || port > 65535 {
		return &Error{
			Field:       field,
			Value:       value,
			Message:     fmt.Sprintf("invalid port number: %q", value),
			Remediation: "Provide a valid port number between 1 and 65535",
			Example:     "22",
		}
	}
	return nil
}

// Hostname validates a hostname, domain name or IPv4 address
func Hostname(field, value string) error {
	if value == "" {
		return nil // Empty values are handled by Required()
	}

	if len(value) > 253 || !hostnameRegex.MatchString(value) {
		return &Error{
			Field:       field,
			Value:       value,
			Message:     fmt.Sprintf("invalid hostname: %q", value),
			Remediation: "Provide a valid hostname/domain or IP address",
			Example:     "deploy.example.com",
		}
	}
	return nil
}

// AbsolutePath validates that value is an absolute slash-separated path
func AbsolutePath(field, value string) error {
	if value == "" {
		return nil // Empty values are handled by Required()
	}

	if !path.IsAbs(value) {
		return &Error{
			Field:       field,
			Value:       value,
			Message:     fmt.Sprintf("path must be absolute: %q", value),
			Remediation: "Provide an absolute directory path",
			Example:     "/var/www/html",
		}
	}
	return nil
}

// ProjectName validates a directory name for a deployed project. It must be
// a single path element so it cannot leave the destination directory.
func ProjectName(field, value string) error {
	if value == "" {
		return nil // Empty values are handled by Required()
	}

	if value == "." || value == ".." || !projectNameRegex.MatchString(value) {
		return &Error{
			Field:       field,
			Value:       value,
			Message:     fmt.Sprintf("invalid project name: %q", value),
			Remediation: "Use letters, digits, dots, dashes and underscores only",
			Example:     "my-site",
		}
	}
	return nil
}

// BranchName validates a git branch name. Only a conservative subset of
// what git accepts is allowed, since the name ends up in shell commands
// and the workflow file.
func BranchName(field, value string) error {
	if value == "" {
		return nil // Empty values are handled by Required()
	}

	if !branchNameRegex.MatchString(value) ||
		strings.HasPrefix(value, "-") || strings.HasPrefix(value, "/") ||
		strings.HasSuffix(value, "/") || strings.HasSuffix(value, ".") || strings.HasSuffix(value, ".lock") ||
		strings.Contains(value, "..") || strings.Contains(value, "//") {
		return &Error{
			Field:       field,
			Value:       value,
			Message:     fmt.Sprintf("invalid branch name: %q", value),
			Remediation: "Use letters, digits, dots, dashes, underscores and slashes only",
			Example:     "main",
		}
	}
	return nil
}

// Required validates that a field is not empty
func Required(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return &Error{
			Field:       field,
			Value:       value,
			Message:     "field is required but not set",
			Remediation: fmt.Sprintf("Set %s", field),
		}
	}
	return nil
}

// RequiredWithExample is Required with an example of an accepted value.
func RequiredWithExample(field, value, example string) error {
	err := Required(field, value)
	if err != nil {
		err.(*Error).Example = example
	}
	return err
}

// OneOf validates that a value is one of the allowed values
func OneOf(field, value string, allowed []string) error {
	if value == "" {
		return nil // Empty values are handled by Required()
	}

	for _, a := range allowed {
		if value == a {
			return nil
		}
	}

	return &Error{
		Field:       field,
		Value:       value,
		Message:     fmt.Sprintf("invalid value: %q", value),
		Remediation: fmt.Sprintf("Must be one of: %s", strings.Join(allowed, ", ")),
		Example:     allowed[0],
	}
}

// Errors collects multiple validation errors
type Errors []error

func (e Errors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var messages []string
	for _, err := range e {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed:\n%s", strings.Join(messages, "\n"))
}

// HasErrors returns true if there are any errors
func (e Errors) HasErrors() bool {
	return len(e) > 0
}

// Unwrap exposes the collected errors to errors.Is and errors.As.
func (e Errors) Unwrap() []error {
	return e
}
