// Package workbox provides a simulated development workspace: an in-memory
// virtual file system edited through a context-anchored patch engine, backed
// by a transient on-disk sandbox when shell commands must actually run.
package workbox

import (
	"errors"
	"fmt"

	"github.com/happyhackingspace/workbox/pkg/metadata"
	"github.com/happyhackingspace/workbox/pkg/patch"
	"github.com/happyhackingspace/workbox/pkg/vfs"
)

// Sentinel errors for common conditions. Most are aliases of the sentinels
// the leaf packages return, so errors.Is works whichever layer produced them.
var (
	// ErrInvalidInput indicates a malformed or missing required argument.
	ErrInvalidInput = errors.New("invalid input")

	// ErrWorkspaceNotHydrated indicates no workspace root has been loaded.
	ErrWorkspaceNotHydrated = vfs.ErrNotHydrated

	// ErrPathOutsideWorkspace indicates a path resolves outside the root.
	ErrPathOutsideWorkspace = vfs.ErrOutsideRoot

	// ErrNotFound indicates the path does not exist.
	ErrNotFound = vfs.ErrNotFound

	// ErrParentNotFound indicates a new file's parent directory is missing.
	ErrParentNotFound = vfs.ErrParentNotFound

	// ErrIsADirectory indicates a file operation was aimed at a directory.
	ErrIsADirectory = vfs.ErrIsDirectory

	// ErrNotADirectory indicates a directory operation was aimed at a file.
	ErrNotADirectory = vfs.ErrNotDirectory

	// ErrDirectoryNotEmpty indicates a delete on a non-empty directory.
	ErrDirectoryNotEmpty = vfs.ErrDirectoryNotEmpty

	// ErrContextNotFound indicates the patch engine could not anchor an edit.
	ErrContextNotFound = patch.ErrContextNotFound

	// ErrAmbiguousContext indicates an edit's context matched more than once.
	ErrAmbiguousContext = patch.ErrAmbiguousContext

	// ErrNoPreviousEdit indicates a reapply with no recorded edit to retry.
	ErrNoPreviousEdit = errors.New("no previous edit recorded")

	// ErrWorkspaceClosed indicates the workspace has been torn down.
	ErrWorkspaceClosed = errors.New("workspace is closed")

	// ErrGenerationFailed indicates the LLM produced no usable content.
	ErrGenerationFailed = errors.New("text generation failed")
)

// MetadataError is a strict-mode metadata write failure. It aborts the
// enclosing command.
type MetadataError = metadata.Error

// WorkspaceError wraps errors with the operation and path involved.
type WorkspaceError struct {
	Op   string // Operation that failed
	Path string // Logical path involved, if known
	Err  error  // Underlying error
}

// Error implements the error interface.
func (e *WorkspaceError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *WorkspaceError) Unwrap() error {
	return e.Err
}

// Is supports errors.Is for comparison.
func (e *WorkspaceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewError creates a WorkspaceError.
func NewError(op, path string, err error) *WorkspaceError {
	return &WorkspaceError{Op: op, Path: path, Err: err}
}

// CommandError carries the full output of a failed command so diagnosis
// never requires re-running it. The workspace is rolled back to its
// pre-command state before this error is returned.
type CommandError struct {
	Command  string
	ExitCode int
	Stdout   string
	Stderr   string
	Err      error
}

// Error implements the error interface.
func (e *CommandError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("command failed (exit code %d): %v\nstderr: %s",
			e.ExitCode, e.Err, e.Stderr)
	}
	return fmt.Sprintf("command failed (exit code %d): %v", e.ExitCode, e.Err)
}

// Unwrap returns the underlying error.
func (e *CommandError) Unwrap() error {
	return e.Err
}

// NewCommandError creates a CommandError.
func NewCommandError(command string, exitCode int, stdout, stderr string, err error) *CommandError {
	return &CommandError{
		Command:  command,
		ExitCode: exitCode,
		Stdout:   stdout,
		Stderr:   stderr,
		Err:      err,
	}
}
