// Package execx provides subprocess execution for remedy.
// Verification commands and git subprocesses run through the CommandRunner
// interface so services can be tested without spawning processes.
package execx

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"syscall"
	"time"
)

// TimeoutExitCode is the sentinel return code recorded when a command exceeds
// its timeout. Matches the coreutils timeout(1) convention.
const TimeoutExitCode = 124

// BlockedExitCode is the sentinel return code recorded for commands refused
// by the destructive-pattern denylist. The command is never started.
const BlockedExitCode = 126

// Result holds the outcome of one subprocess execution.
type Result struct {
	// ExitCode is the process exit code. Sentinel values: 124 timeout,
	// 126 blocked, -1 start failure.
	ExitCode int

	// Stdout and Stderr are the full captured streams. Callers truncate.
	Stdout string
	Stderr string

	// TimedOut is true if the command was killed on timeout.
	TimedOut bool

	// Duration is the wall-clock execution time.
	Duration time.Duration
}

// CommandRunner executes commands. The production implementation shells out;
// tests substitute a stub.
type CommandRunner interface {
	// Shell runs a literal command line via "sh -c" in dir with the given
	// timeout (0 means no timeout). A non-zero exit is not an error: errors
	// are reserved for failures to start the process at all.
	Shell(ctx context.Context, dir, command string, timeout time.Duration) (Result, error)

	// Run executes an argv-style command (no shell interpretation) in dir.
	Run(ctx context.Context, dir string, name string, args ...string) (Result, error)
}

// RealRunner is the production CommandRunner.
type RealRunner struct{}

// NewRealRunner creates a RealRunner.
func NewRealRunner() RealRunner { return RealRunner{} }

// Shell implements CommandRunner.
func (RealRunner) Shell(ctx context.Context, dir, command string, timeout time.Duration) (Result, error) {
	runCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, "sh", "-c", command)
	cmd.Dir = dir
	// Own process group so a timeout kill takes children with it.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}

	return runAndCollect(runCtx, cmd)
}

// Run implements CommandRunner.
func (RealRunner) Run(ctx context.Context, dir string, name string, args ...string) (Result, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	return runAndCollect(ctx, cmd)
}

func runAndCollect(ctx context.Context, cmd *exec.Cmd) (Result, error) {
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	res := Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	if err == nil {
		res.ExitCode = 0
		return res, nil
	}

	if ctx.Err() == context.DeadlineExceeded {
		res.TimedOut = true
		res.ExitCode = TimeoutExitCode
		return res, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		return res, nil
	}

	// Process never started (missing interpreter, bad dir, ...).
	res.ExitCode = -1
	return res, err
}

// Truncate returns the last max characters of s, used to bound captured
// command output in persisted attempt records.
func Truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[len(s)-max:]
}
