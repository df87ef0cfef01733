// Package runner executes interpreter subprocesses with a wall-clock
// timeout and bounded output capture.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"qwencli/internal/logging"
)

// ErrExecutionTimeout indicates the child exceeded its wall-clock limit
// and was killed.
var ErrExecutionTimeout = errors.New("execution timed out")

// Command describes one subprocess invocation.
type Command struct {
	Binary     string
	Args       []string
	WorkingDir string
	Env        []string
	Stdin      string

	// Timeout caps wall-clock runtime. Zero uses DefaultTimeout.
	Timeout time.Duration

	// MaxOutputBytes caps captured stdout and stderr, each. Zero uses
	// DefaultMaxOutput.
	MaxOutputBytes int64
}

// Result captures a finished (or killed) subprocess.
type Result struct {
	Stdout    string
	Stderr    string
	ExitCode  int
	Duration  time.Duration
	Truncated bool
}

// Combined returns stdout and stderr joined for display.
func (r *Result) Combined() string {
	if r.Stderr == "" {
		return r.Stdout
	}
	if r.Stdout == "" {
		return r.Stderr
	}
	return r.Stdout + "\n" + r.Stderr
}

// Defaults applied when a Command leaves limits unset.
const (
	DefaultTimeout   = 30 * time.Second
	DefaultMaxOutput = 50_000
)

// passthroughEnv lists host variables interpreters need to start.
var passthroughEnv = []string{"PATH", "HOME", "LANG", "TMPDIR", "PYTHONIOENCODING"}

// Run executes the command. A timeout kills the child and returns the
// partial result alongside ErrExecutionTimeout. A non-zero exit is not
// an error; callers read Result.ExitCode.
func (Runner) Run(ctx context.Context, cmd Command) (*Result, error) {
	if cmd.Binary == "" {
		return nil, fmt.Errorf("binary is required")
	}

	timeout := cmd.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	maxOutput := cmd.MaxOutputBytes
	if maxOutput <= 0 {
		maxOutput = DefaultMaxOutput
	}

	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	execCmd := exec.CommandContext(execCtx, cmd.Binary, cmd.Args...)
	execCmd.Dir = cmd.WorkingDir
	execCmd.Env = buildEnv(cmd.Env)
	if cmd.Stdin != "" {
		execCmd.Stdin = strings.NewReader(cmd.Stdin)
	}
	// Don't linger waiting for inherited pipes after a kill.
	execCmd.WaitDelay = time.Second

	var stdoutBuf, stderrBuf bytes.Buffer
	stdoutLimited := &limitedWriter{w: &stdoutBuf, max: maxOutput}
	stderrLimited := &limitedWriter{w: &stderrBuf, max: maxOutput}
	execCmd.Stdout = stdoutLimited
	execCmd.Stderr = stderrLimited

	logging.Runner("exec: %s %v (timeout=%s)", cmd.Binary, cmd.Args, timeout)
	start := time.Now()
	err := execCmd.Run()
	result := &Result{
		Stdout:    stdoutBuf.String(),
		Stderr:    stderrBuf.String(),
		Duration:  time.Since(start),
		Truncated: stdoutLimited.truncated || stderrLimited.truncated,
	}

	switch {
	case execCtx.Err() == context.DeadlineExceeded:
		logging.RunnerWarn("exec: %s killed after %s", cmd.Binary, timeout)
		result.ExitCode = -1
		return result, fmt.Errorf("%w after %s", ErrExecutionTimeout, timeout)
	case execCtx.Err() == context.Canceled:
		result.ExitCode = -1
		return result, context.Canceled
	case err == nil:
		result.ExitCode = 0
	default:
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			// Ran to completion with a non-zero status.
			result.ExitCode = exitErr.ExitCode()
		} else {
			logging.RunnerError("exec: %s failed to start: %v", cmd.Binary, err)
			return nil, fmt.Errorf("start %s: %w", cmd.Binary, err)
		}
	}

	logging.RunnerDebug("exec: %s exit=%d duration=%s stdout=%d bytes",
		cmd.Binary, result.ExitCode, result.Duration, len(result.Stdout))
	return result, nil
}

// Runner is the subprocess executor. Stateless; the zero value is ready
// to use.
type Runner struct{}

// LookPath reports whether the binary is resolvable on PATH.
func (Runner) LookPath(binary string) bool {
	_, err := exec.LookPath(binary)
	return err == nil
}

func buildEnv(extra []string) []string {
	env := make([]string, 0, len(passthroughEnv)+len(extra))
	for _, key := range passthroughEnv {
		if val := os.Getenv(key); val != "" {
			env = append(env, key+"="+val)
		}
	}
	return append(env, extra...)
}

// limitedWriter caps total bytes written, discarding the overflow while
// reporting full writes so the child never sees a pipe error.
type limitedWriter struct {
	w         io.Writer
	max       int64
	written   int64
	truncated bool
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)

	if lw.written >= lw.max {
		lw.truncated = true
		return n, nil
	}

	remaining := lw.max - lw.written
	if int64(n) > remaining {
		lw.truncated = true
		written, err := lw.w.Write(p[:remaining])
		lw.written += int64(written)
		return n, err
	}

	written, err := lw.w.Write(p)
	lw.written += int64(written)
	return written, err
}
