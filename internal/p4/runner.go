// Package p4 runs the Perforce command-line client and exposes the
// subcommands the content workflows need.
package p4

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"
)

// Invocation describes one call of the p4 executable.
type Invocation struct {
	Args []string
	// Stdin is written to the process when non-empty.
	Stdin string
	// Env entries are appended to the current environment.
	Env []string
	// Timeout bounds the whole call when non-zero.
	Timeout time.Duration
}

// Result is the raw outcome of a launched process. A non-zero ExitCode is a
// normal result; callers decide what it means.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// OK reports whether the process exited with status 0.
func (r Result) OK() bool {
	return r.ExitCode == 0
}

// Message returns stderr, falling back to stdout when stderr is empty.
func (r Result) Message() string {
	if s := strings.TrimSpace(r.Stderr); s != "" {
		return s
	}
	return strings.TrimSpace(r.Stdout)
}

// Runner launches the p4 executable.
type Runner interface {
	// Run blocks until the process exits and returns its captured output.
	Run(ctx context.Context, inv Invocation) (Result, error)
	// Stream calls onLine for every non-empty stdout line as it arrives.
	// The returned Result has an empty Stdout.
	Stream(ctx context.Context, inv Invocation, onLine func(string)) (Result, error)
}

// waitDelay bounds how long output is drained after the process is killed.
const waitDelay = 2 * time.Second

// ErrTimeout is wrapped by ProcessError when an invocation's timeout elapses.
var ErrTimeout = errors.New("connection attempt timed out")

// VPNHint is shown next to connection and launch failures.
const VPNHint = "Check that your VPN is on"

// ProcessError reports that p4 could not be located, launched, or finished in time.
type ProcessError struct {
	Args []string
	Err  error
}

func (e *ProcessError) Error() string {
	return fmt.Sprintf("p4 %s: %v", strings.Join(e.Args, " "), e.Err)
}

func (e *ProcessError) Unwrap() error {
	return e.Err
}

// Hint returns the remediation shown to the user.
func (e *ProcessError) Hint() string {
	if errors.Is(e.Err, exec.ErrNotFound) {
		return "Install the Helix command-line client from " + DownloadURL
	}
	return VPNHint
}

// ShellRunner implements Runner with os/exec.
type ShellRunner struct {
	binary string
	logger *slog.Logger
}

// NewShellRunner creates a runner for the given executable path.
func NewShellRunner(binary string, logger *slog.Logger) *ShellRunner {
	return &ShellRunner{binary: binary, logger: logger}
}

// Run executes the invocation and waits for it to finish.
func (r *ShellRunner) Run(ctx context.Context, inv Invocation) (Result, error) {
	ctx, cancel := withTimeout(ctx, inv.Timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := r.command(ctx, inv)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}
	return r.finish(ctx, inv, res, err)
}

// Stream executes the invocation and reports stdout line by line.
func (r *ShellRunner) Stream(ctx context.Context, inv Invocation, onLine func(string)) (Result, error) {
	ctx, cancel := withTimeout(ctx, inv.Timeout)
	defer cancel()

	var stderr bytes.Buffer
	cmd := r.command(ctx, inv)
	cmd.Stderr = &stderr

	out, err := cmd.StdoutPipe()
	if err != nil {
		return Result{}, &ProcessError{Args: inv.Args, Err: err}
	}
	if err := cmd.Start(); err != nil {
		return Result{}, &ProcessError{Args: inv.Args, Err: err}
	}

	scanErr := scanLines(out, onLine)
	err = cmd.Wait()
	if err == nil && scanErr != nil {
		r.logger.Warn("reading p4 output failed", "args", inv.Args, "error", scanErr)
	}
	return r.finish(ctx, inv, Result{Stderr: stderr.String()}, err)
}

func (r *ShellRunner) command(ctx context.Context, inv Invocation) *exec.Cmd {
	r.logger.Debug("running p4", "binary", r.binary, "args", inv.Args)

	cmd := exec.CommandContext(ctx, r.binary, inv.Args...)
	if len(inv.Env) > 0 {
		cmd.Env = append(os.Environ(), inv.Env...)
	}
	if inv.Stdin != "" {
		cmd.Stdin = strings.NewReader(inv.Stdin)
	}
	cmd.WaitDelay = waitDelay
	hideWindow(cmd)
	return cmd
}

func (r *ShellRunner) finish(ctx context.Context, inv Invocation, res Result, err error) (Result, error) {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return res, &ProcessError{Args: inv.Args, Err: ErrTimeout}
	}
	if err == nil {
		return res, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() >= 0 {
		res.ExitCode = exitErr.ExitCode()
		r.logger.Debug("p4 exited with non-zero status", "args", inv.Args, "exit_code", res.ExitCode)
		return res, nil
	}
	return res, &ProcessError{Args: inv.Args, Err: err}
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func scanLines(r io.Reader, onLine func(string)) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		if onLine != nil {
			onLine(line)
		}
	}
	if err := sc.Err(); err != nil {
		// Keep draining so the child does not block on a full pipe.
		_, _ = io.Copy(io.Discard, r)
		return err
	}
	return nil
}
