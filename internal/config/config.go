package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"

	"github.com/mfittko/gitdrop/internal/validation"
)

// Recognized configuration keys.
const (
	KeyListenAddr        = "LISTEN_ADDR"
	KeyAllowedOrigins    = "ALLOWED_ORIGINS"
	KeyLocalDestination  = "LOCAL_DESTINATION"
	KeyDeliveryTarget    = "DELIVERY_TARGET"
	KeyRemoteHost        = "REMOTE_HOST"
	KeyRemotePort        = "REMOTE_PORT"
	KeyRemoteUser        = "REMOTE_USER"
	KeyRemoteKeyPath     = "REMOTE_KEY_PATH"
	KeyRemotePassword    = "REMOTE_PASSWORD"
	KeyRemoteDestination = "REMOTE_DESTINATION"
	KeyRemoteKnownHosts  = "REMOTE_KNOWN_HOSTS"
	KeyRemoteTimeout     = "REMOTE_TIMEOUT"
	KeyFetchTimeout      = "FETCH_TIMEOUT"
	KeyFetchMaxBytes     = "FETCH_MAX_BYTES"
	KeyDeployBranch      = "DEPLOY_BRANCH"
	KeyLogLevel          = "LOG_LEVEL"
	KeyLogFormat         = "LOG_FORMAT"
)

// Delivery targets.
const (
	TargetLocal  = "local"
	TargetRemote = "remote"
)

var defaults = map[string]string{
	KeyListenAddr:        ":5000",
	KeyAllowedOrigins:    "*",
	KeyLocalDestination:  "/var/www/html",
	KeyDeliveryTarget:    TargetLocal,
	KeyRemotePort:        "22",
	KeyRemoteUser:        "ubuntu",
	KeyRemoteDestination: "/var/www/html",
	KeyRemoteTimeout:     "10s",
	KeyFetchTimeout:      "30s",
	KeyFetchMaxBytes:     "100MB",
	KeyDeployBranch:      "main",
	KeyLogLevel:          "info",
	KeyLogFormat:         "text",
}

// Config collects raw configuration values from flags, the process
// environment and a settings file.
//
// Precedence: flags > env > file. A lower source never overwrites a key
// that is already set.
type Config struct {
	Env map[string]string
}

// New creates a new Config instance
func New() *Config {
	return &Config{
		Env: make(map[string]string),
	}
}

// LoadFile loads a settings file, choosing the format by extension.
// Returns nil if the file doesn't exist (not an error)
func (c *Config) LoadFile(path string) error {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return c.LoadTOMLFile(path)
	}
	return c.LoadEnvFile(path)
}

// LoadEnvFile loads KEY=value pairs from a dotenv file. ${VAR} references
// are expanded against earlier keys in the file and the process environment.
// Returns nil if the file doesn't exist (not an error)
func (c *Config) LoadEnvFile(path string) error {
	values, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read env file %s: %w", path, err)
	}

	for key, value := range values {
		c.setDefault(key, value)
	}
	return nil
}

// LoadTOMLFile loads settings from a TOML file. Nested tables are flattened
// with underscores, so [remote] host = "x" becomes REMOTE_HOST.
// Returns nil if the file doesn't exist (not an error)
func (c *Config) LoadTOMLFile(path string) error {
	var doc map[string]any
	if _, err := toml.DecodeFile(path, &doc); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read settings file %s: %w", path, err)
	}

	flatten("", doc, c.setDefault)
	return nil
}

func flatten(prefix string, doc map[string]any, set func(key, value string)) {
	for k, v := range doc {
		key := strings.ToUpper(k)
		if prefix != "" {
			key = prefix + "_" + key
		}
		switch val := v.(type) {
		case map[string]any:
			flatten(key, val, set)
		default:
			set(key, fmt.Sprint(val))
		}
	}
}

// LoadFromEnvironment loads environment variables from the current process
func (c *Config) LoadFromEnvironment() {
	for _, env := range os.Environ() {
		key, value, ok := strings.Cut(env, "=")
		if !ok {
			continue
		}
		c.setDefault(key, value)
	}
}

// SetFlag sets a configuration value from a flag (overrides anything else)
func (c *Config) SetFlag(key, value string) {
	if value != "" {
		c.Env[key] = value
	}
}

func (c *Config) setDefault(key, value string) {
	if _, exists := c.Env[key]; !exists {
		c.Env[key] = value
	}
}

// Get returns the value for key, falling back to the built-in default.
func (c *Config) Get(key string) string {
	if v, ok := c.Env[key]; ok && v != "" {
		return v
	}
	return defaults[key]
}

// Keys returns the recognized configuration keys in sorted order.
func Keys() []string {
	keys := []string{
		KeyListenAddr, KeyAllowedOrigins, KeyLocalDestination, KeyDeliveryTarget,
		KeyRemoteHost, KeyRemotePort, KeyRemoteUser, KeyRemoteKeyPath,
		KeyRemotePassword, KeyRemoteDestination, KeyRemoteKnownHosts,
		KeyRemoteTimeout, KeyFetchTimeout, KeyFetchMaxBytes,
		KeyDeployBranch, KeyLogLevel, KeyLogFormat,
	}
	sort.Strings(keys)
	return keys
}

// splitList splits a comma separated value, dropping empty items.
func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// Effective returns the value in effect for every recognized key, with
// defaults applied. The password is masked.
func (c *Config) Effective() map[string]string {
	out := make(map[string]string, len(defaults))
	for _, key := range Keys() {
		v := c.Get(key)
		if key == KeyRemotePassword && v != "" {
			v = "********"
		}
		out[key] = v
	}
	return out
}

// RemoteSettings configures the remote host.
type RemoteSettings struct {
	Host        string
	Port        int
	User        string
	KeyPath     string
	Password    string
	Destination string
	KnownHosts  string
	Timeout     time.Duration
}

// Enabled reports whether a remote host is configured.
func (r RemoteSettings) Enabled() bool { return r.Host != "" }

// Settings is the validated configuration used by every component.
type Settings struct {
	ListenAddr       string
	AllowedOrigins   []string
	LocalDestination string
	DeliveryTarget   string
	Remote           RemoteSettings
	FetchTimeout     time.Duration
	FetchMaxBytes    int64
	DeployBranch     string
	LogLevel         string
	LogFormat        string
}

// Settings validates the collected values and builds the Settings value.
// All problems are reported together.
func (c *Config) Settings() (Settings, error) {
	var errs validation.Errors
	check := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	s := Settings{
		ListenAddr:       c.Get(KeyListenAddr),
		AllowedOrigins:   splitList(c.Get(KeyAllowedOrigins)),
		LocalDestination: c.Get(KeyLocalDestination),
		DeliveryTarget:   c.Get(KeyDeliveryTarget),
		DeployBranch:     c.Get(KeyDeployBranch),
		LogLevel:         strings.ToLower(c.Get(KeyLogLevel)),
		LogFormat:        strings.ToLower(c.Get(KeyLogFormat)),
		Remote: RemoteSettings{
			Host:        c.Get(KeyRemoteHost),
			User:        c.Get(KeyRemoteUser),
			KeyPath:     c.Get(KeyRemoteKeyPath),
			Password:    c.Get(KeyRemotePassword),
			Destination: c.Get(KeyRemoteDestination),
			KnownHosts:  c.Get(KeyRemoteKnownHosts),
		},
	}

	check(validation.OneOf(KeyDeliveryTarget, s.DeliveryTarget, []string{TargetLocal, TargetRemote}))
	check(validation.OneOf(KeyLogLevel, s.LogLevel, []string{"debug", "info", "warn", "error"}))
	check(validation.OneOf(KeyLogFormat, s.LogFormat, []string{"text", "json"}))
	check(validation.Hostname(KeyRemoteHost, s.Remote.Host))
	check(validation.Port(KeyRemotePort, c.Get(KeyRemotePort)))
	check(validation.AbsolutePath(KeyLocalDestination, s.LocalDestination))
	check(validation.AbsolutePath(KeyRemoteDestination, s.Remote.Destination))
	check(validation.BranchName(KeyDeployBranch, s.DeployBranch))
	if s.DeliveryTarget == TargetRemote {
		check(validation.Required(KeyRemoteHost, s.Remote.Host))
	}

	s.Remote.Port, _ = strconv.Atoi(c.Get(KeyRemotePort))

	var err error
	if s.Remote.Timeout, err = parseDuration(KeyRemoteTimeout, c.Get(KeyRemoteTimeout)); err != nil {
		errs = append(errs, err)
	}
	if s.FetchTimeout, err = parseDuration(KeyFetchTimeout, c.Get(KeyFetchTimeout)); err != nil {
		errs = append(errs, err)
	}
	if s.FetchMaxBytes, err = parseSize(KeyFetchMaxBytes, c.Get(KeyFetchMaxBytes)); err != nil {
		errs = append(errs, err)
	}

	if errs.HasErrors() {
		return s, errs
	}
	return s, nil
}

func parseDuration(field, value string) (time.Duration, error) {
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return 0, &validation.Error{
			Field:       field,
			Value:       value,
			Message:     fmt.Sprintf("invalid duration: %q", value),
			Remediation: "Provide a positive Go duration",
			Example:     "30s",
		}
	}
	return d, nil
}

func parseSize(field, value string) (int64, error) {
	n, err := humanize.ParseBytes(value)
	if err != nil || n == 0 || n > 1<<62 {
		return 0, &validation.Error{
			Field:       field,
			Value:       value,
			Message:     fmt.Sprintf("invalid size: %q", value),
			Remediation: "Provide a positive byte size",
			Example:     "100MB",
		}
	}
	return int64(n), nil
}
