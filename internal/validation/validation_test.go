package validation

import (
	"errors"
	"strings"
	"testing"
)

type validator func(field, value string) error

func runTable(t *testing.T, name string, fn validator, field string, tests []struct {
	name    string
	value   string
	wantErr bool
}) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := fn(field, tt.value)
			if (err != nil) != tt.wantErr {
				t.Errorf("%s() error = %v, wantErr %v", name, err, tt.wantErr)
			}
			if err != nil {
				valErr, ok := err.(*Error)
				if !ok {
					t.Fatalf("%s() error is not *Error type", name)
				}
				if valErr.Field != field {
					t.Errorf("%s() error field = %v, want %v", name, valErr.Field, field)
				}
				if valErr.Value != tt.value {
					t.Errorf("%s() error value = %v, want %v", name, valErr.Value, tt.value)
				}
				if valErr.Remediation == "" {
					t.Errorf("%s() error missing remediation", name)
				}
			}
		})
	}
}

func TestPort(t *testing.T) {
	runTable(t, "Port", Port, "REMOTE_PORT", []struct {
		name    string
		value   string
		wantErr bool
	}{
		{name: "ssh port", value: "22"},
		{name: "minimum", value: "1"},
		{name: "maximum", value: "65535"},
		{name: "empty value", value: ""},
		{name: "zero", value: "0", wantErr: true},
		{name: "too large", value: "65536", wantErr: true},
		{name: "negative", value: "-1", wantErr: true},
		{name: "not a number", value: "ssh", wantErr: true},
	})
}

func TestHostname(t *testing.T) {
	runTable(t, "Hostname", Hostname, "REMOTE_HOST", []struct {
		name    string
		value   string
		wantErr bool
	}{
		{name: "simple", value: "localhost"},
		{name: "domain", value: "deploy.example.com"},
		{name: "ipv4", value: "203.0.113.10"},
		{name: "empty value", value: ""},
		{name: "leading hyphen", value: "-bad.example.com", wantErr: true},
		{name: "underscore", value: "bad_host", wantErr: true},
		{name: "with scheme", value: "ssh://host", wantErr: true},
		{name: "too long", value: strings.Repeat("a.", 127) + "com", wantErr: true},
	})
}

func TestAbsolutePath(t *testing.T) {
	runTable(t, "AbsolutePath", AbsolutePath, "LOCAL_DESTINATION", []struct {
		name    string
		value   string
		wantErr bool
	}{
		{name: "absolute", value: "/var/www/html"},
		{name: "root", value: "/"},
		{name: "empty value", value: ""},
		{name: "relative", value: "www", wantErr: true},
		{name: "dot relative", value: "./out", wantErr: true},
	})
}

func TestProjectName(t *testing.T) {
	runTable(t, "ProjectName", ProjectName, "project_name", []struct {
		name    string
		value   string
		wantErr bool
	}{
		{name: "simple", value: "site"},
		{name: "dashes dots underscores", value: "my_site-v1.2"},
		{name: "empty value", value: ""},
		{name: "current dir", value: ".", wantErr: true},
		{name: "parent dir", value: "..", wantErr: true},
		{name: "nested", value: "a/b", wantErr: true},
		{name: "traversal", value: "../etc", wantErr: true},
		{name: "space", value: "my site", wantErr: true},
		{name: "shell metacharacter", value: "site;rm", wantErr: true},
	})

	err := ProjectName("project_name", "..")
	var valErr *Error
	if !errors.As(err, &valErr) || valErr.Example == "" {
		t.Errorf("ProjectName() error should carry an example, got %v", err)
	}
}

func TestBranchName(t *testing.T) {
	runTable(t, "BranchName", BranchName, "branch", []struct {
		name    string
		value   string
		wantErr bool
	}{
		{name: "main", value: "main"},
		{name: "with slash", value: "feature/pages"},
		{name: "version", value: "release-1.2"},
		{name: "empty value", value: ""},
		{name: "double quote", value: `release"1`, wantErr: true},
		{name: "space", value: "my branch", wantErr: true},
		{name: "leading dash", value: "-f", wantErr: true},
		{name: "dot dot", value: "a..b", wantErr: true},
		{name: "lock suffix", value: "main.lock", wantErr: true},
		{name: "trailing slash", value: "feature/", wantErr: true},
		{name: "colon", value: "HEAD:main", wantErr: true},
	})
}

func TestRequired(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		wantErr bool
	}{
		{name: "set", value: "x"},
		{name: "empty", value: "", wantErr: true},
		{name: "whitespace only", value: "   ", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Required("REMOTE_HOST", tt.value)
			if (err != nil) != tt.wantErr {
				t.Errorf("Required() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRequiredWithExample(t *testing.T) {
	if err := RequiredWithExample("github_url", "https://github.com/a/b", "x"); err != nil {
		t.Errorf("RequiredWithExample() error = %v, want nil", err)
	}

	err := RequiredWithExample("github_url", "", "https://github.com/username/repo")
	var valErr *Error
	if !errors.As(err, &valErr) {
		t.Fatalf("RequiredWithExample() error = %v, want *Error", err)
	}
	if valErr.Example != "https://github.com/username/repo" {
		t.Errorf("Example = %q", valErr.Example)
	}
}

func TestOneOf(t *testing.T) {
	allowed := []string{"local", "remote"}
	tests := []struct {
		name    string
		value   string
		wantErr bool
	}{
		{name: "first", value: "local"},
		{name: "second", value: "remote"},
		{name: "empty value", value: ""},
		{name: "case sensitive", value: "Local", wantErr: true},
		{name: "unknown", value: "s3", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := OneOf("DELIVERY_TARGET", tt.value, allowed)
			if (err != nil) != tt.wantErr {
				t.Errorf("OneOf() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !strings.Contains(err.Error(), "local, remote") {
				t.Errorf("OneOf() error should list allowed values, got %q", err.Error())
			}
		})
	}
}

func TestErrors(t *testing.T) {
	t.Run("no errors", func(t *testing.T) {
		errs := Errors{}
		if errs.HasErrors() {
			t.Errorf("HasErrors() = true, want false")
		}
		if errs.Error() != "" {
			t.Errorf("Error() = %q, want empty string", errs.Error())
		}
	})

	t.Run("with errors", func(t *testing.T) {
		errs := Errors{
			&Error{Field: "FIELD1", Message: "error 1"},
			&Error{Field: "FIELD2", Message: "error 2"},
		}
		if !errs.HasErrors() {
			t.Errorf("HasErrors() = false, want true")
		}
		errStr := errs.Error()
		if !strings.Contains(errStr, "FIELD1") || !strings.Contains(errStr, "FIELD2") {
			t.Errorf("Error() = %q, should contain both field names", errStr)
		}

		var valErr *Error
		if !errors.As(error(errs), &valErr) || valErr.Field != "FIELD1" {
			t.Errorf("errors.As() should find the first *Error, got %v", valErr)
		}
	})
}

func TestError_Error(t *testing.T) {
	t.Run("with remediation", func(t *testing.T) {
		err := &Error{
			Field:       "REMOTE_HOST",
			Value:       "bad_host",
			Message:     "invalid hostname",
			Remediation: "Provide a valid hostname",
		}
		errStr := err.Error()
		if !strings.Contains(errStr, "REMOTE_HOST") {
			t.Errorf("Error() should contain field name")
		}
		if !strings.Contains(errStr, "Remediation") {
			t.Errorf("Error() should contain remediation")
		}
	})

	t.Run("without remediation", func(t *testing.T) {
		err := &Error{
			Field:   "REMOTE_HOST",
			Value:   "bad_host",
			Message: "invalid hostname",
		}
		if strings.Contains(err.Error(), "Remediation") {
			t.Errorf("Error() should not contain remediation when not set")
		}
	})
}
