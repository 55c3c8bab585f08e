// Package toolexec invokes the external astronomy tools the pipeline
// delegates its computation to. It owns nothing scientific: it builds
// argument vectors, runs subprocesses with context cancellation, captures
// enough stderr to make a failed stage diagnosable, and checks that the
// files a stage contract promises actually exist.
package toolexec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// stderrTailBytes bounds how much captured stderr is attached to an error.
const stderrTailBytes = 2048

// Invocation is one external tool call: the program, its arguments, and an
// optional working directory.
type Invocation struct {
	// Name is the short stage-facing tool name used in logs and errors,
	// e.g. "BANE" or "stilts".
	Name string
	// Path is the program to execute; bare names resolve through PATH.
	Path string
	// Args are the program arguments, already fully substituted.
	Args []string
	// Dir is the working directory; empty means inherit.
	Dir string
}

// String renders the invocation the way it would appear on a shell command
// line, for logging.
func (inv Invocation) String() string {
	return inv.Path + " " + strings.Join(inv.Args, " ")
}

// Runner executes external tool invocations. The two methods differ only in
// whether stdout is significant: Run discards it, Output returns it for
// tools that report results on stdout (the degrees-of-freedom estimator).
type Runner interface {
	Run(ctx context.Context, inv Invocation) error
	Output(ctx context.Context, inv Invocation) ([]byte, error)
}

// ExecRunner runs invocations as real subprocesses.
type ExecRunner struct{}

// NewExecRunner creates a subprocess-backed runner.
func NewExecRunner() *ExecRunner { return &ExecRunner{} }

// Run executes the invocation, discarding stdout. A non-zero exit status is
// returned as a *ToolError carrying the exit code and a stderr tail.
func (r *ExecRunner) Run(ctx context.Context, inv Invocation) error {
	cmd := exec.CommandContext(ctx, inv.Path, inv.Args...)
	cmd.Dir = inv.Dir

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return wrapExecError(inv, err, stderr.Bytes())
	}
	return nil
}

// Output executes the invocation and returns its stdout.
func (r *ExecRunner) Output(ctx context.Context, inv Invocation) ([]byte, error) {
	cmd := exec.CommandContext(ctx, inv.Path, inv.Args...)
	cmd.Dir = inv.Dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, wrapExecError(inv, err, stderr.Bytes())
	}
	return stdout.Bytes(), nil
}

// ToolError describes a failed external tool invocation.
type ToolError struct {
	Tool     string
	ExitCode int
	Stderr   string
	Err      error
}

// Error renders the tool name, exit status, and stderr tail.
func (e *ToolError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("%s exited with code %d: %v", e.Tool, e.ExitCode, e.Err)
	}
	return fmt.Sprintf("%s exited with code %d: %v: %s", e.Tool, e.ExitCode, e.Err, e.Stderr)
}

// Unwrap exposes the underlying exec error.
func (e *ToolError) Unwrap() error { return e.Err }

func wrapExecError(inv Invocation, err error, stderr []byte) error {
	code := -1
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code = exitErr.ExitCode()
	}
	if len(stderr) > stderrTailBytes {
		stderr = stderr[len(stderr)-stderrTailBytes:]
	}
	return &ToolError{
		Tool:     inv.Name,
		ExitCode: code,
		Stderr:   strings.TrimSpace(string(stderr)),
		Err:      err,
	}
}

// Exists reports whether path names an existing regular file.
func Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
