package remote

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_PasswordOnly(t *testing.T) {
	ts := startTestServer(t, "s3cret")
	dials := countDials(t)

	sess, err := Open(context.Background(), ts.config(t, Credentials{Password: "s3cret"}), nil)
	require.NoError(t, err)
	defer sess.Close()

	assert.Equal(t, MethodPassword, sess.Method())
	assert.EqualValues(t, 1, dials.Load(), "only the password method should be attempted")
}

func TestOpen_PasswordOnlyRejected(t *testing.T) {
	ts := startTestServer(t, "s3cret")
	dials := countDials(t)

	_, err := Open(context.Background(), ts.config(t, Credentials{Password: "wrong"}), nil)

	var authErr *AuthenticationError
	require.True(t, errors.As(err, &authErr), "want AuthenticationError, got %v", err)
	assert.Equal(t, AllAuthenticationMethodsExhausted, authErr.Kind)
	assert.Len(t, authErr.Attempts, 1)
	assert.EqualValues(t, 1, dials.Load())
}

func TestOpen_NoCredentials(t *testing.T) {
	ts := startTestServer(t, "s3cret")
	dials := countDials(t)

	_, err := Open(context.Background(), ts.config(t, Credentials{}), nil)

	assert.ErrorIs(t, err, &AuthenticationError{Kind: AllAuthenticationMethodsExhausted})
	assert.EqualValues(t, 0, dials.Load())
}

func TestOpen_KeyFileMissing(t *testing.T) {
	ts := startTestServer(t, "s3cret")
	dials := countDials(t)

	creds := Credentials{KeyPath: filepath.Join(t.TempDir(), "nope"), Password: "s3cret"}
	_, err := Open(context.Background(), ts.config(t, creds), nil)

	assert.ErrorIs(t, err, &AuthenticationError{Kind: KeyFileMissing})
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.EqualValues(t, 0, dials.Load())
}

func TestOpen_RSAKey(t *testing.T) {
	keyPath, pub := writeRSAKey(t, t.TempDir())
	ts := startTestServer(t, "", pub)
	dials := countDials(t)

	sess, err := Open(context.Background(), ts.config(t, Credentials{KeyPath: keyPath}), nil)
	require.NoError(t, err)
	defer sess.Close()

	assert.Equal(t, MethodKeyRSA, sess.Method())
	assert.EqualValues(t, 1, dials.Load())
}

func TestOpen_Ed25519KeyAfterRSAParseFails(t *testing.T) {
	keyPath, pub := writeEd25519Key(t, t.TempDir())
	ts := startTestServer(t, "", pub)
	dials := countDials(t)

	sess, err := Open(context.Background(), ts.config(t, Credentials{KeyPath: keyPath}), nil)
	require.NoError(t, err)
	defer sess.Close()

	assert.Equal(t, MethodKeyEd25519, sess.Method())
	assert.EqualValues(t, 1, dials.Load(), "the RSA strategy must not dial for an Ed25519 key")
}

func TestOpen_KeyRejectedFallsBackToPassword(t *testing.T) {
	keyPath, _ := writeRSAKey(t, t.TempDir())
	ts := startTestServer(t, "s3cret")
	dials := countDials(t)

	sess, err := Open(context.Background(), ts.config(t, Credentials{KeyPath: keyPath, Password: "s3cret"}), nil)
	require.NoError(t, err)
	defer sess.Close()

	assert.Equal(t, MethodPassword, sess.Method())
	assert.EqualValues(t, 2, dials.Load())
	assert.EqualValues(t, 1, ts.passwordAttempts.Load())
}

func TestOpen_UnreadableKeyFallsBackToPassword(t *testing.T) {
	ts := startTestServer(t, "s3cret")
	dials := countDials(t)

	old := readFile
	readFile = func(name string) ([]byte, error) {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrPermission}
	}
	t.Cleanup(func() { readFile = old })

	sess, err := Open(context.Background(), ts.config(t, Credentials{KeyPath: "/k", Password: "s3cret"}), nil)
	require.NoError(t, err)
	defer sess.Close()

	assert.Equal(t, MethodPassword, sess.Method())
	assert.EqualValues(t, 1, dials.Load(), "key strategies must not dial without key bytes")
}

func TestOpen_UnreadableKeyWithoutPassword(t *testing.T) {
	ts := startTestServer(t, "s3cret")

	old := readFile
	readFile = func(name string) ([]byte, error) {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrPermission}
	}
	t.Cleanup(func() { readFile = old })

	_, err := Open(context.Background(), ts.config(t, Credentials{KeyPath: "/k"}), nil)

	var authErr *AuthenticationError
	require.True(t, errors.As(err, &authErr), "want AuthenticationError, got %v", err)
	assert.Equal(t, AllAuthenticationMethodsExhausted, authErr.Kind)
	assert.Len(t, authErr.Attempts, 2)
	assert.ErrorIs(t, err, fs.ErrPermission)
}

func TestCredentials_Methods(t *testing.T) {
	assert.Empty(t, Credentials{}.Methods())
	assert.Equal(t, []Method{MethodPassword}, Credentials{Password: "x"}.Methods())
	assert.Equal(t, []Method{MethodKeyRSA, MethodKeyEd25519, MethodPassword},
		Credentials{KeyPath: "/k", Password: "x"}.Methods())
}

func TestSession_Run(t *testing.T) {
	ts := startTestServer(t, "s3cret")
	sess, err := Open(context.Background(), ts.config(t, Credentials{Password: "s3cret"}), nil)
	require.NoError(t, err)
	defer sess.Close()

	res, err := sess.Run(context.Background(), "echo out; echo err >&2; exit 3")
	require.NoError(t, err)
	assert.Equal(t, 3, res.ExitStatus)
	assert.Equal(t, "out\n", res.Stdout)
	assert.Equal(t, "err\n", res.Stderr)
	assert.False(t, res.Success())

	res, err = sess.Run(context.Background(), "true")
	require.NoError(t, err)
	assert.True(t, res.Success())
}

func TestSession_Put(t *testing.T) {
	ts := startTestServer(t, "s3cret")
	sess, err := Open(context.Background(), ts.config(t, Credentials{Password: "s3cret"}), nil)
	require.NoError(t, err)
	defer sess.Close()

	local := filepath.Join(t.TempDir(), "index.html")
	require.NoError(t, os.WriteFile(local, []byte("payload"), 0644))

	destDir := t.TempDir()
	remotePath := filepath.Join(destDir, "index.html")
	require.NoError(t, os.WriteFile(remotePath, []byte("old"), 0644))

	require.NoError(t, sess.Put(context.Background(), local, remotePath))

	got, err := os.ReadFile(remotePath)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(got))

	entries, err := os.ReadDir(destDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no partial files should remain")
}

func TestSession_PutMissingDirectory(t *testing.T) {
	ts := startTestServer(t, "s3cret")
	sess, err := Open(context.Background(), ts.config(t, Credentials{Password: "s3cret"}), nil)
	require.NoError(t, err)
	defer sess.Close()

	local := filepath.Join(t.TempDir(), "a.txt")
	require.NoError(t, os.WriteFile(local, []byte("a"), 0644))

	err = sess.Put(context.Background(), local, filepath.Join(t.TempDir(), "missing", "a.txt"))
	var terr *TransferError
	assert.True(t, errors.As(err, &terr), "want TransferError, got %v", err)
}

// memFS is a renamer over an in-memory file map without posix-rename
// support. failRename names a source the plain rename refuses to move.
type memFS struct {
	files      map[string]string
	failRename string
}

func (m *memFS) PosixRename(string, string) error {
	return errors.New("posix-rename@openssh.com not supported")
}

func (m *memFS) Rename(oldname, newname string) error {
	if oldname == m.failRename {
		return errors.New("permission denied")
	}
	if _, ok := m.files[newname]; ok {
		return errors.New("file exists")
	}
	v, ok := m.files[oldname]
	if !ok {
		return os.ErrNotExist
	}
	delete(m.files, oldname)
	m.files[newname] = v
	return nil
}

func (m *memFS) Remove(path string) error {
	delete(m.files, path)
	return nil
}

func TestReplaceFile_WithoutPosixRename(t *testing.T) {
	tests := []struct {
		name       string
		files      map[string]string
		failRename string
		wantErr    bool
		want       map[string]string
	}{
		{
			name:  "new file",
			files: map[string]string{"/d/.a.part": "new"},
			want:  map[string]string{"/d/a": "new"},
		},
		{
			name:  "overwrites existing file",
			files: map[string]string{"/d/.a.part": "new", "/d/a": "old"},
			want:  map[string]string{"/d/a": "new"},
		},
		{
			name:       "failed rename keeps existing file",
			files:      map[string]string{"/d/.a.part": "new", "/d/a": "old"},
			failRename: "/d/.a.part",
			wantErr:    true,
			want:       map[string]string{"/d/a": "old"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mem := &memFS{files: tt.files, failRename: tt.failRename}
			err := replaceFile(mem, "/d/.a.part", "/d/a")
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.want, mem.files)
		})
	}
}

func TestSession_CloseIdempotent(t *testing.T) {
	ts := startTestServer(t, "s3cret")
	sess, err := Open(context.Background(), ts.config(t, Credentials{Password: "s3cret"}), nil)
	require.NoError(t, err)

	local := filepath.Join(t.TempDir(), "a.txt")
	require.NoError(t, os.WriteFile(local, []byte("a"), 0644))
	require.NoError(t, sess.Put(context.Background(), local, filepath.Join(t.TempDir(), "a.txt")))

	first := sess.Close()
	second := sess.Close()
	assert.Equal(t, first, second)

	_, err = sess.Run(context.Background(), "true")
	assert.Error(t, err, "a closed session cannot run commands")
}

func TestDiagnose(t *testing.T) {
	ts := startTestServer(t, "s3cret")
	sess, err := Open(context.Background(), ts.config(t, Credentials{Password: "s3cret"}), nil)
	require.NoError(t, err)
	defer sess.Close()

	dir := t.TempDir()
	checks := Diagnose(context.Background(), sess, dir, discardLogger())
	require.Len(t, checks, 3)
	for _, c := range checks {
		assert.True(t, c.OK(), c.Summary())
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "write check marker must be removed")
}

func TestDiagnose_MissingDirectory(t *testing.T) {
	ts := startTestServer(t, "s3cret")
	sess, err := Open(context.Background(), ts.config(t, Credentials{Password: "s3cret"}), nil)
	require.NoError(t, err)
	defer sess.Close()

	dir := filepath.Join(t.TempDir(), "new", "dir")
	checks := Diagnose(context.Background(), sess, dir, discardLogger())

	assert.False(t, checks[0].OK(), "listing a missing dir fails")
	assert.False(t, checks[1].OK(), "probing a missing dir fails")
	assert.True(t, checks[2].OK(), checks[2].Summary())
	assert.True(t, strings.HasPrefix(checks[0].Summary(), "list: exit"))
	assert.DirExists(t, dir)
}

func TestShellEscape(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "simple string",
			input: "hello",
			want:  "'hello'",
		},
		{
			name:  "string with spaces",
			input: "hello world",
			want:  "'hello world'",
		},
		{
			name:  "string with single quote",
			input: "it's",
			want:  "'it'\\''s'",
		},
		{
			name:  "empty string",
			input: "",
			want:  "''",
		},
		{
			name:  "string with special chars",
			input: "test; rm -rf /",
			want:  "'test; rm -rf /'",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ShellEscape(tt.input)
			if got != tt.want {
				t.Errorf("ShellEscape(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestConfig_Address(t *testing.T) {
	cfg := NewConfig("example.com")
	if got := cfg.Address(); got != "example.com:22" {
		t.Errorf("Address() = %q", got)
	}
	if got := cfg.Target(); got != "ubuntu@example.com" {
		t.Errorf("Target() = %q", got)
	}
	cfg.Port = 2222
	cfg.User = "ops"
	if got := cfg.Address(); got != "example.com:2222" {
		t.Errorf("Address() = %q", got)
	}
	if got := cfg.Target(); got != "ops@example.com" {
		t.Errorf("Target() = %q", got)
	}
}
