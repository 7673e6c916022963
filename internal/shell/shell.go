// Package shell runs workspace commands in the sandbox directory through a
// real shell, tracking the working directory and session environment across
// invocations.
package shell

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/google/uuid"
)

// Logger is the subset of logging used by the runner.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(msg string, keysAndValues ...any) {}
func (nopLogger) Info(msg string, keysAndValues ...any)  {}
func (nopLogger) Warn(msg string, keysAndValues ...any)  {}
func (nopLogger) Error(msg string, keysAndValues ...any) {}

// pwdMarkerPrefix tags the shell's final working directory in stdout. A
// UUID suffix keeps command output from colliding with the marker.
const pwdMarkerPrefix = "WORKBOX_PWD_MARKER_"

// Result is the outcome of one command execution.
type Result struct {
	// Command is the original command string.
	Command string

	// Directory is the logical working directory the command ran in.
	Directory string

	// Stdout and Stderr hold the captured output, marker line removed.
	Stdout string
	Stderr string

	// ExitCode is the command's exit status. -1 for background launches.
	ExitCode int

	// PID is set for background launches.
	PID int

	// Background indicates the command was launched without waiting.
	Background bool

	// FinalPwd is the physical working directory the shell ended in,
	// empty when it could not be determined.
	FinalPwd string

	// Message is a human-readable status line.
	Message string
}

// Runner executes commands with a persistent session environment.
type Runner struct {
	shellPath    string
	logger       Logger
	workspaceEnv map[string]string
	sessionEnv   map[string]string
}

// NewRunner creates a runner. An empty shellPath defaults to /bin/bash.
func NewRunner(shellPath string, logger Logger) *Runner {
	if shellPath == "" {
		shellPath = "/bin/bash"
	}
	if logger == nil {
		logger = nopLogger{}
	}
	return &Runner{
		shellPath:    shellPath,
		logger:       logger,
		workspaceEnv: make(map[string]string),
		sessionEnv:   make(map[string]string),
	}
}

// Run executes a foreground command in physicalCwd. The shell wrapper
// captures the final working directory so `cd` survives into the next
// command, while the original exit code is preserved.
func (r *Runner) Run(ctx context.Context, command, physicalCwd, logicalCwd string) (*Result, error) {
	command = strings.TrimSpace(command)
	if command == "" {
		return nil, fmt.Errorf("command string is empty")
	}

	marker := pwdMarkerPrefix + uuid.NewString()
	wrapped := "set -e\n" +
		"main_exit_code=0\n" +
		command + " || main_exit_code=$?\n" +
		"set +e\n" +
		"echo \"" + marker + ":$(pwd)\"\n" +
		"exit $main_exit_code"

	wrapped = DetectAndFixTarCommand(wrapped, physicalCwd)

	cmd := exec.CommandContext(ctx, r.shellPath, "-c", wrapped)
	cmd.Dir = physicalCwd
	cmd.Env = envSlice(r.PrepareEnv(logicalCwd))

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	r.logger.Info("executing command", "command", command, "cwd", physicalCwd)

	runErr := cmd.Run()
	exitCode := 0
	if runErr != nil {
		exitErr, ok := runErr.(*exec.ExitError)
		if !ok {
			return nil, fmt.Errorf("launch failed: %w", runErr)
		}
		exitCode = exitErr.ExitCode()
	}

	cleanStdout, finalPwd := stripPwdMarker(stdout.String(), marker)

	return &Result{
		Command:   command,
		Directory: logicalCwd,
		Stdout:    cleanStdout,
		Stderr:    stderr.String(),
		ExitCode:  exitCode,
		FinalPwd:  finalPwd,
		Message:   fmt.Sprintf("Command completed with exit code %d.", exitCode),
	}, nil
}

// RunBackground launches a command without waiting for it. Output is
// discarded and the process is released.
func (r *Runner) RunBackground(command, physicalCwd, logicalCwd string) (*Result, error) {
	command = strings.TrimSpace(command)
	if command == "" {
		return nil, fmt.Errorf("command string is empty")
	}

	cmd := exec.Command(r.shellPath, "-c", command)
	cmd.Dir = physicalCwd
	cmd.Env = envSlice(r.PrepareEnv(logicalCwd))
	cmd.Stdout = nil
	cmd.Stderr = nil

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("background launch failed: %w", err)
	}
	pid := cmd.Process.Pid
	if err := cmd.Process.Release(); err != nil {
		r.logger.Warn("could not release background process", "pid", pid, "error", err)
	}

	r.logger.Info("command launched in background", "command", command, "pid", pid)
	return &Result{
		Command:    command,
		Directory:  logicalCwd,
		ExitCode:   -1,
		PID:        pid,
		Background: true,
		Message:    fmt.Sprintf("Command launched in background (PID: %d).", pid),
	}, nil
}

// stripPwdMarker removes the marker line from stdout and returns the
// remaining output plus the captured working directory.
func stripPwdMarker(stdout, marker string) (string, string) {
	lines := splitLines(stdout)
	if len(lines) == 0 {
		return stdout, ""
	}
	last := lines[len(lines)-1]
	if !strings.HasPrefix(last, marker+":") {
		return stdout, ""
	}
	finalPwd := strings.TrimPrefix(last, marker+":")
	lines = lines[:len(lines)-1]
	if len(lines) == 0 {
		return "", finalPwd
	}
	cleaned := strings.Join(lines, "\n")
	if strings.Count(stdout, "\n") > len(lines) {
		cleaned += "\n"
	}
	return cleaned, finalPwd
}

func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	s = strings.TrimSuffix(s, "\n")
	return strings.Split(s, "\n")
}

// EnsureRedirectionParent creates the parent directory of the command's
// last redirection target, mirroring what a real shell user would see when
// redirecting into an existing tree.
func EnsureRedirectionParent(command, physicalCwd string) error {
	target := ExtractLastRedirectionTarget(command)
	if target == "" {
		return nil
	}
	if !strings.HasPrefix(target, "/") {
		target = physicalCwd + "/" + target
	}
	parent := target[:strings.LastIndex(target, "/")]
	if parent == "" {
		return nil
	}
	if _, err := os.Stat(parent); err == nil {
		return nil
	}
	return os.MkdirAll(parent, 0o755)
}
