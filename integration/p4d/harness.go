//go:build integration

package p4d

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

const (
	testUser       = "tester"
	testClient     = "tester-ws"
	defaultTimeout = 5 * time.Minute
)

// Harness runs the p4vhelper binary against a throwaway p4d. The server is
// spawned per connection through an rsh port, so no daemon has to be managed.
type Harness struct {
	t          *testing.T
	dir        string
	serverRoot string
	workspace  string
	binary     string
	p4         string
	port       string
	keepOnFail bool
}

// NewHarness creates a harness, skipping the test when p4 or p4d is missing.
func NewHarness(t *testing.T) *Harness {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("rsh ports are not supported on windows")
	}
	p4, err := exec.LookPath("p4")
	if err != nil {
		t.Skip("p4 not found on PATH")
	}
	if _, err := exec.LookPath("p4d"); err != nil {
		t.Skip("p4d not found on PATH")
	}

	dir, err := os.MkdirTemp("", "p4vhelper-integration-")
	if err != nil {
		t.Fatalf("create temp dir: %v", err)
	}

	h := &Harness{
		t:          t,
		dir:        dir,
		serverRoot: filepath.Join(dir, "server"),
		workspace:  filepath.Join(dir, "ws"),
		binary:     filepath.Join(dir, "p4vhelper"),
		p4:         p4,
		keepOnFail: os.Getenv("INTEGRATION_KEEP_SERVER") == "1",
	}
	h.port = fmt.Sprintf("rsh:p4d -r %s -L log -i -J off", h.serverRoot)
	return h
}

// BuildBinary compiles cmd/p4vhelper into the harness directory.
func (h *Harness) BuildBinary(ctx context.Context) error {
	h.t.Helper()

	projectRoot, err := findProjectRoot()
	if err != nil {
		return fmt.Errorf("get project root: %w", err)
	}

	cmd := exec.CommandContext(ctx, "go", "build", "-o", h.binary, "./cmd/p4vhelper")
	cmd.Dir = projectRoot
	cmd.Stdout = &testWriter{t: h.t, prefix: "[build] "}
	cmd.Stderr = &testWriter{t: h.t, prefix: "[build] "}

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("go build: %w", err)
	}
	return nil
}

// StartServer initialises the server root, the client workspace and the
// p4vhelper config file.
func (h *Harness) StartServer(ctx context.Context) error {
	h.t.Helper()

	for _, dir := range []string{h.serverRoot, h.workspace} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}

	spec := fmt.Sprintf("Client: %s\n\nOwner: %s\n\nRoot: %s\n\nView:\n\t//depot/... //%s/...\n",
		testClient, testUser, h.workspace, testClient)
	if _, stderr, code, err := h.P4(ctx, spec, "client", "-i"); err != nil || code != 0 {
		return fmt.Errorf("create client: exit %d: %s: %v", code, stderr, err)
	}

	config := fmt.Sprintf("p4:\n  binary: %q\n  port: %q\n  user: %q\n  client: %q\n",
		h.p4, h.port, testUser, testClient)
	if err := os.WriteFile(h.configPath(), []byte(config), 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func (h *Harness) configPath() string {
	return filepath.Join(h.dir, "config.yaml")
}

func (h *Harness) sessionPath() string {
	return filepath.Join(h.dir, "session.yaml")
}

// Cleanup removes the server and workspace
func (h *Harness) Cleanup() {
	h.t.Helper()
	if h.keepOnFail && h.t.Failed() {
		h.t.Logf("Test failed and INTEGRATION_KEEP_SERVER=1, keeping %s", h.dir)
		h.t.Logf("To inspect: P4PORT=%q P4USER=%s P4CLIENT=%s p4 changes", h.port, testUser, testClient)
		return
	}
	if err := os.RemoveAll(h.dir); err != nil {
		h.t.Logf("Warning: failed to remove %s: %v", h.dir, err)
	}
}

// P4 runs the p4 client directly against the test server
func (h *Harness) P4(ctx context.Context, stdin string, args ...string) (string, string, int, error) {
	h.t.Helper()
	cmd := exec.CommandContext(ctx, h.p4, args...)
	cmd.Env = append(os.Environ(), "P4PORT="+h.port, "P4USER="+testUser, "P4CLIENT="+testClient)
	cmd.Dir = h.workspace
	return h.exec(cmd, stdin)
}

// Run executes p4vhelper with the harness config and session
func (h *Harness) Run(ctx context.Context, stdin string, args ...string) (string, string, int, error) {
	h.t.Helper()
	full := append([]string{"--config", h.configPath(), "--session", h.sessionPath(), "--no-color"}, args...)
	cmd := exec.CommandContext(ctx, h.binary, full...)
	cmd.Env = append(os.Environ(), "HOME="+h.dir)
	return h.exec(cmd, stdin)
}

// MustRun executes p4vhelper and fails the test if it returns non-zero
func (h *Harness) MustRun(ctx context.Context, args ...string) string {
	h.t.Helper()
	stdout, stderr, exitCode, err := h.Run(ctx, "", args...)
	if err != nil {
		h.t.Fatalf("exec failed: %v", err)
	}
	if exitCode != 0 {
		h.t.Fatalf("command failed with exit code %d\nstdout: %s\nstderr: %s\nargs: %v",
			exitCode, stdout, stderr, args)
	}
	return stdout
}

func (h *Harness) exec(cmd *exec.Cmd, stdin string) (string, string, int, error) {
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if stdin != "" {
		cmd.Stdin = strings.NewReader(stdin)
	}

	err := cmd.Run()
	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return "", "", 0, fmt.Errorf("exec failed: %w", err)
		}
		exitCode = exitErr.ExitCode()
	}
	return stdout.String(), stderr.String(), exitCode, nil
}

// WriteFile writes a file below the workspace root
func (h *Harness) WriteFile(rel, content string) {
	h.t.Helper()
	path := filepath.Join(h.workspace, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		h.t.Fatalf("mkdir parent: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		h.t.Fatalf("write file: %v", err)
	}
}

// FileExists checks if a file exists below the workspace root
func (h *Harness) FileExists(rel string) bool {
	_, err := os.Stat(filepath.Join(h.workspace, filepath.FromSlash(rel)))
	return err == nil
}

// testWriter wraps test logging for command output
type testWriter struct {
	t      *testing.T
	prefix string
}

func (w *testWriter) Write(p []byte) (n int, err error) {
	for _, line := range strings.Split(string(p), "\n") {
		if line != "" {
			w.t.Log(w.prefix + line)
		}
	}
	return len(p), nil
}

var _ io.Writer = (*testWriter)(nil)

// findProjectRoot walks up from this source file to the directory holding go.mod
func findProjectRoot() (string, error) {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		return "", fmt.Errorf("failed to get caller information")
	}

	dir := filepath.Dir(filename)
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("go.mod not found in any parent directory")
		}
		dir = parent
	}
}
