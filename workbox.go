package workbox

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/happyhackingspace/workbox/internal/sandbox"
	"github.com/happyhackingspace/workbox/internal/shell"
	"github.com/happyhackingspace/workbox/pkg/event"
	"github.com/happyhackingspace/workbox/pkg/llm"
	"github.com/happyhackingspace/workbox/pkg/patch"
	"github.com/happyhackingspace/workbox/pkg/vfs"
)

// Workspace is a simulated development workspace. All file state lives in an
// in-memory virtual file system; a physical sandbox directory is created
// lazily when the first shell command runs and is kept synchronized with the
// virtual state for the rest of the session.
//
// A Workspace serializes its operations internally; one session is logically
// single-threaded.
type Workspace struct {
	cfg     *Config
	fs      *vfs.FS
	engine  *patch.Engine
	sandbox *sandbox.Manager
	runner  *shell.Runner
	events  *event.Bus

	mu       sync.Mutex
	closed   bool
	lastEdit *lastEdit
}

// lastEdit records the most recent edit attempt for the reapply flow.
type lastEdit struct {
	targetFile   string
	editString   string
	instructions string
}

// New creates an empty workspace rooted at the given logical path.
func New(root string, opts ...Option) (*Workspace, error) {
	w, err := newWorkspace(opts)
	if err != nil {
		return nil, err
	}
	if err := w.fs.Init(root); err != nil {
		return nil, NewError("new", root, err)
	}
	return w, nil
}

// Open creates a workspace hydrated from a real directory. The directory's
// absolute path becomes the logical workspace root.
func Open(sourceDir string, opts ...Option) (*Workspace, error) {
	w, err := newWorkspace(opts)
	if err != nil {
		return nil, err
	}
	if err := w.sandbox.Hydrate(w.fs, sourceDir); err != nil {
		return nil, NewError("open", sourceDir, err)
	}
	w.events.Emit(event.NewEvent(event.EventWorkspaceHydrated, w.fs.Root(), nil))
	w.cfg.Logger.Info("workspace hydrated", "root", w.fs.Root(), "entries", w.fs.Len())
	return w, nil
}

func newWorkspace(opts []Option) (*Workspace, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.Logger == nil {
		cfg.Logger = NopLogger{}
	}

	w := &Workspace{
		cfg:    cfg,
		fs:     vfs.New(),
		engine: patch.New(cfg.ContextWindow),
		sandbox: sandbox.NewManager(sandbox.Options{
			Logger:         cfg.Logger,
			BaseDir:        cfg.SandboxBaseDir,
			MaxFileSize:    cfg.MaxFileSize,
			MaxArchiveSize: cfg.MaxArchiveSize,
			AccessTimeMode: cfg.AccessTimeMode,
			StrictMetadata: cfg.StrictMetadata,
		}),
		runner: shell.NewRunner(cfg.ShellPath, cfg.Logger),
		events: event.NewBus(),
	}
	if cfg.EventHandler != nil {
		w.events.SubscribeAll(cfg.EventHandler)
	}
	return w, nil
}

// Root returns the logical workspace root.
func (w *Workspace) Root() string { return w.fs.Root() }

// Cwd returns the current logical working directory.
func (w *Workspace) Cwd() string { return w.fs.Cwd() }

// FS exposes the underlying virtual file system.
func (w *Workspace) FS() *vfs.FS { return w.fs }

// SandboxDir returns the physical sandbox directory, empty until the first
// command runs.
func (w *Workspace) SandboxDir() string { return w.sandbox.Dir() }

// Subscribe registers an event callback.
func (w *Workspace) Subscribe(eventType event.EventType, handler event.EventHandler) (unsubscribe func()) {
	return w.events.Subscribe(eventType, handler)
}

// guard rejects operations on closed or un-hydrated workspaces.
func (w *Workspace) guard(op string) error {
	if w.closed {
		return NewError(op, "", ErrWorkspaceClosed)
	}
	if !w.fs.Hydrated() {
		return NewError(op, "", ErrWorkspaceNotHydrated)
	}
	return nil
}

// EditResult reports the outcome of an edit, creation, or reapply.
type EditResult struct {
	Success  bool
	Message  string
	FilePath string
}

// EditFile applies a structured edit to a file, creating it when absent.
// Edits with "... existing code ..." delimiter lines are anchored against
// the original content; edits without delimiters replace the file wholesale.
// Failed context matching keeps the attempt recorded for Reapply.
func (w *Workspace) EditFile(targetPath, editString, instructions string) (*EditResult, error) {
	const op = "edit_file"
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.guard(op); err != nil {
		return nil, err
	}
	if strings.TrimSpace(targetPath) == "" {
		return nil, NewError(op, "", fmt.Errorf("%w: target path is empty", ErrInvalidInput))
	}

	abs, err := w.fs.Resolve(targetPath)
	if err != nil {
		return nil, NewError(op, targetPath, err)
	}
	existing, exists := w.fs.Get(abs)
	if exists && existing.IsDirectory {
		return nil, NewError(op, abs, ErrIsADirectory)
	}

	attempt := &lastEdit{targetFile: abs, editString: editString, instructions: instructions}

	var original []string
	if exists {
		original = existing.ContentLines
	} else {
		parent := path.Dir(abs)
		if pe, ok := w.fs.Get(parent); !ok || !pe.IsDirectory {
			return nil, NewError(op, abs, fmt.Errorf("%w: %s", ErrParentNotFound, parent))
		}
		// A delimiter-led edit has no original content to anchor against.
		if first := firstContentLine(editString); first != "" && patch.IsDelimiterLine(first) {
			w.lastEdit = attempt
			return nil, NewError(op, abs,
				fmt.Errorf("%w: delimiter-based edit cannot create a new file; provide full content", ErrContextNotFound))
		}
	}

	newLines, err := w.engine.Apply(original, editString)
	if err != nil {
		w.lastEdit = attempt
		w.cfg.Logger.Warn("edit failed, recorded for reapply", "path", abs, "error", err)
		return nil, NewError(op, abs, err)
	}

	if err := w.putFileContent(abs, existing, newLines); err != nil {
		return nil, NewError(op, abs, err)
	}
	w.syncEditedFile(abs)
	w.lastEdit = attempt

	if exists {
		w.events.Emit(event.NewEvent(event.EventFileEdited, w.fs.Root(), &event.FileData{Path: abs, Size: vfs.SizeBytes(newLines)}))
		return &EditResult{Success: true, Message: fmt.Sprintf("File %s updated successfully.", abs), FilePath: abs}, nil
	}
	w.events.Emit(event.NewEvent(event.EventFileCreated, w.fs.Root(), &event.FileData{Path: abs, Size: vfs.SizeBytes(newLines)}))
	return &EditResult{Success: true, Message: fmt.Sprintf("File %s created successfully.", abs), FilePath: abs}, nil
}

// putFileContent stores new content for abs, preserving existing metadata.
func (w *Workspace) putFileContent(abs string, existing *vfs.Entry, lines []string) error {
	entry := &vfs.Entry{Path: abs}
	if existing != nil {
		entry = existing.Clone()
	}
	entry.IsDirectory = false
	entry.ContentLines = lines
	entry.SizeBytes = vfs.SizeBytes(lines)
	entry.LastModified = vfs.NowISO()
	return w.fs.Put(entry)
}

// syncEditedFile mirrors an edited file into the sandbox so the next command
// sees it. Best effort: the full dehydrate on sandbox creation covers misses.
func (w *Workspace) syncEditedFile(abs string) {
	if !w.sandbox.Active() {
		return
	}
	if err := w.sandbox.SyncFile(w.fs, abs); err != nil {
		w.cfg.Logger.Warn("could not sync edit to sandbox", "path", abs, "error", err)
	}
}

func firstContentLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if strings.TrimSpace(line) != "" {
			return line
		}
	}
	return ""
}

// Reapply retries the last recorded edit for a file by asking the LLM for
// the complete intended file content, replacing the current content.
func (w *Workspace) Reapply(ctx context.Context, targetPath string) (*EditResult, error) {
	const op = "reapply"
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.guard(op); err != nil {
		return nil, err
	}
	if strings.TrimSpace(targetPath) == "" {
		return nil, NewError(op, "", fmt.Errorf("%w: target path is empty", ErrInvalidInput))
	}
	if w.cfg.LLM == nil {
		return nil, NewError(op, targetPath, fmt.Errorf("%w: no LLM service configured", ErrGenerationFailed))
	}

	abs, err := w.fs.Resolve(targetPath)
	if err != nil {
		return nil, NewError(op, targetPath, err)
	}
	entry, ok := w.fs.Get(abs)
	if !ok {
		return nil, NewError(op, abs, ErrNotFound)
	}
	if entry.IsDirectory {
		return nil, NewError(op, abs, ErrIsADirectory)
	}
	if w.lastEdit == nil || w.lastEdit.targetFile != abs {
		return nil, NewError(op, abs, ErrNoPreviousEdit)
	}
	if w.lastEdit.instructions == "" {
		return nil, NewError(op, abs, fmt.Errorf("%w: last edit has no instructions", ErrInvalidInput))
	}

	prompt := fmt.Sprintf(`Review the following code edit task which needs re-application.

Original instructions:
%q

Previously proposed edit (which may have been flawed or misapplied):
%s

Current content of %s:
%s

Based on the original instructions and the current file content, generate the complete and final content the file should have after correctly applying the instructions. Do NOT use "... existing code ..." delimiters. Output ONLY the raw, complete file content, without markdown fences or any explanatory text.

Final file content:
`, w.lastEdit.instructions, w.lastEdit.editString, abs, strings.Join(entry.ContentLines, ""))

	generated, err := w.cfg.LLM.GenerateText(ctx, prompt,
		llm.WithTemperature(0.3), llm.WithTimeout(reapplyTimeout))
	if err != nil {
		return nil, NewError(op, abs, fmt.Errorf("%w: %v", ErrGenerationFailed, err))
	}

	trimmed := strings.TrimSpace(generated)
	var newLines []string
	if trimmed != "" {
		newLines = vfs.NormalizeLines(strings.Split(trimmed, "\n"), true)
		if len(newLines) == 0 {
			newLines = []string{"\n"}
		}
	}

	if err := w.putFileContent(abs, entry, newLines); err != nil {
		return nil, NewError(op, abs, err)
	}
	w.syncEditedFile(abs)
	w.lastEdit = &lastEdit{targetFile: abs, editString: generated, instructions: w.lastEdit.instructions}

	w.events.Emit(event.NewEvent(event.EventFileEdited, w.fs.Root(), &event.FileData{Path: abs, Size: vfs.SizeBytes(newLines)}))
	return &EditResult{Success: true, Message: fmt.Sprintf("Edit successfully reapplied to %s.", abs), FilePath: abs}, nil
}

// ReadResult is the outcome of a file read.
type ReadResult struct {
	Content           []string
	StartLine         int
	EndLine           int
	TotalLines        int
	Path              string
	TruncationSummary string
	Message           string
}

// ReadFile reads a line range from a file. Reads are capped at the
// configured chunk size; a start line past the end of the file clamps the
// read to the file's last chunk. Content outside the returned range is
// summarized by the LLM service when one is configured.
func (w *Workspace) ReadFile(ctx context.Context, targetPath string, startLine, endLine int, entireFile bool) (*ReadResult, error) {
	const op = "read_file"
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.guard(op); err != nil {
		return nil, err
	}
	if strings.TrimSpace(targetPath) == "" {
		return nil, NewError(op, "", fmt.Errorf("%w: target path is empty", ErrInvalidInput))
	}
	if startLine > endLine {
		return nil, NewError(op, targetPath,
			fmt.Errorf("%w: start line %d is greater than end line %d", ErrInvalidInput, startLine, endLine))
	}
	if startLine < 1 {
		return nil, NewError(op, targetPath,
			fmt.Errorf("%w: start line %d must be 1 or greater", ErrInvalidInput, startLine))
	}

	abs, err := w.fs.Resolve(targetPath)
	if err != nil {
		return nil, NewError(op, targetPath, err)
	}
	entry, ok := w.fs.Get(abs)
	if !ok {
		return nil, NewError(op, abs, ErrNotFound)
	}
	if entry.IsDirectory {
		return nil, NewError(op, abs, ErrIsADirectory)
	}

	w.events.Emit(event.NewEvent(event.EventFileRead, w.fs.Root(), &event.FileData{Path: abs, Size: entry.SizeBytes}))

	lines := entry.ContentLines
	total := len(lines)

	if total == 0 {
		return &ReadResult{
			StartLine: 1, EndLine: 1, TotalLines: 0, Path: abs,
			Message: fmt.Sprintf("File %s is empty. No content to read.", path.Base(abs)),
		}, nil
	}
	if entireFile {
		return &ReadResult{
			Content: lines, StartLine: 1, EndLine: total, TotalLines: total, Path: abs,
			Message: fmt.Sprintf("Successfully read all %d lines from %s.", total, path.Base(abs)),
		}, nil
	}

	chunk := w.cfg.ReadChunkLines
	reqStart, reqEnd := startLine, endLine

	outOfBounds := startLine > total
	if outOfBounds {
		startLine = total - chunk + 1
		if startLine < 1 {
			startLine = 1
		}
		endLine = total
	} else if endLine > total {
		endLine = total
	}

	subset := lines[startLine-1 : endLine]
	content := subset
	if len(content) > chunk {
		content = content[:chunk]
	}
	returnedEnd := startLine + len(content) - 1

	summary := w.summarizeTruncated(ctx, lines, startLine-1, endLine, len(subset)-len(content))

	var message string
	switch {
	case outOfBounds:
		message = fmt.Sprintf(
			"Requested to read lines %d-%d, but the file only has %d lines. The start line was out of bounds, so returning the last %d lines of the file: %d-%d.",
			reqStart, reqEnd, total, len(content), startLine, returnedEnd)
	case len(subset) > chunk:
		message = fmt.Sprintf(
			"Requested to read lines %d-%d, but the request exceeded the %d-line limit. Returning the first %d lines of the requested range: %d-%d.",
			reqStart, reqEnd, chunk, chunk, startLine, returnedEnd)
	case reqEnd > returnedEnd:
		message = fmt.Sprintf(
			"Requested to read lines %d-%d, but the file only has %d lines. Returning lines %d-%d.",
			reqStart, reqEnd, total, startLine, returnedEnd)
	default:
		message = fmt.Sprintf("Successfully read lines %d-%d from the file.", startLine, returnedEnd)
	}

	return &ReadResult{
		Content:           content,
		StartLine:         startLine,
		EndLine:           returnedEnd,
		TotalLines:        total,
		Path:              abs,
		TruncationSummary: summary,
		Message:           message,
	}, nil
}

// summarizeTruncated asks the LLM for a plain-English summary of the lines
// outside the returned range. Returns "" when nothing was truncated or no
// LLM is configured.
func (w *Workspace) summarizeTruncated(ctx context.Context, lines []string, startIdx, endIdx, overflow int) string {
	before := addLineNumbers(lines[:startIdx], 1)
	after := addLineNumbers(lines[endIdx-overflow:], endIdx-overflow+1)
	truncated := strings.Join(append(before, after...), "")
	if truncated == "" || w.cfg.LLM == nil {
		return ""
	}

	prompt := "I will provide you with a list of code lines, each with line numbers. " +
		"Please read the code and write a brief summary in plain English explaining what the code does, " +
		"highlighting any important details. Group your summary by logical blocks of code, such as functions, " +
		"and specify the line numbers for each block. Make your summary easy to understand for someone with " +
		"basic programming knowledge. Do not include the code itself in your response. " +
		"Here is the code below:\n" + truncated

	summary, err := w.cfg.LLM.GenerateText(ctx, prompt)
	if err != nil {
		w.cfg.Logger.Warn("truncation summary generation failed", "error", err)
		return ""
	}
	return summary
}

func addLineNumbers(lines []string, start int) []string {
	numbered := make([]string, len(lines))
	for i, line := range lines {
		numbered[i] = fmt.Sprintf("%d: %s", start+i, line)
	}
	return numbered
}

// DeleteFile removes a file from the workspace. The path is resolved against
// the workspace root, not the working directory; leading slashes are
// stripped. Directories are rejected.
func (w *Workspace) DeleteFile(targetPath string) error {
	const op = "delete_file"
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.guard(op); err != nil {
		return err
	}
	rel := strings.TrimLeft(strings.TrimSpace(targetPath), "/")
	if rel == "" {
		return NewError(op, targetPath, fmt.Errorf("%w: target path is empty", ErrInvalidInput))
	}

	abs, err := w.fs.Resolve(path.Join(w.fs.Root(), rel))
	if err != nil {
		return NewError(op, targetPath, err)
	}
	entry, ok := w.fs.Get(abs)
	if !ok {
		return NewError(op, abs, ErrNotFound)
	}
	if entry.IsDirectory {
		return NewError(op, abs, ErrIsADirectory)
	}
	if err := w.fs.Delete(abs); err != nil {
		return NewError(op, abs, err)
	}
	if w.lastEdit != nil && w.lastEdit.targetFile == abs {
		w.lastEdit = nil
	}
	if w.sandbox.Active() {
		if err := w.sandbox.RemovePath(w.fs, abs); err != nil {
			w.cfg.Logger.Warn("could not remove file from sandbox", "path", abs, "error", err)
		}
	}
	w.events.Emit(event.NewEvent(event.EventFileDeleted, w.fs.Root(), &event.FileData{Path: abs}))
	return nil
}

// DirEntry is one item in a directory listing.
type DirEntry struct {
	Path         string
	Name         string
	IsDirectory  bool
	SizeBytes    int
	LastModified string
}

// ListDirectory returns the direct children of a directory. An empty path,
// ".", or "/" lists the workspace root; leading slashes are treated as
// workspace-relative.
func (w *Workspace) ListDirectory(dirPath string) ([]DirEntry, error) {
	const op = "list_directory"
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.guard(op); err != nil {
		return nil, err
	}

	abs := w.fs.Root()
	rel := strings.TrimLeft(strings.TrimSpace(dirPath), "/")
	if rel != "" && rel != "." {
		var err error
		abs, err = w.fs.Resolve(path.Join(w.fs.Root(), rel))
		if err != nil {
			return nil, NewError(op, dirPath, err)
		}
	}

	children, err := w.fs.List(abs)
	if err != nil {
		return nil, NewError(op, abs, err)
	}
	out := make([]DirEntry, 0, len(children))
	for _, c := range children {
		out = append(out, DirEntry{
			Path:         c.Path,
			Name:         path.Base(c.Path),
			IsDirectory:  c.IsDirectory,
			SizeBytes:    c.SizeBytes,
			LastModified: c.LastModified,
		})
	}
	return out, nil
}

// ChangeDir changes the logical working directory.
func (w *Workspace) ChangeDir(dirPath string) error {
	const op = "change_dir"
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.guard(op); err != nil {
		return err
	}
	if err := w.fs.SetCwd(dirPath); err != nil {
		return NewError(op, dirPath, err)
	}
	return nil
}

// CommandResult is the outcome of a command execution.
type CommandResult struct {
	Success    bool
	Command    string
	Stdout     string
	Stderr     string
	ExitCode   int
	PID        int
	Background bool
	Message    string
}

// RunCommand executes a shell command against the sandbox. Environment
// commands (env, export, unset) are handled internally. A failing foreground
// command rolls the workspace back to its pre-command state and returns a
// CommandError carrying the full output; successful and background commands
// fold sandbox-side changes back into the virtual file system.
func (w *Workspace) RunCommand(ctx context.Context, command string, background bool) (*CommandResult, error) {
	const op = "run_command"
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.guard(op); err != nil {
		return nil, err
	}
	trimmed := strings.TrimSpace(command)
	if trimmed == "" {
		return nil, NewError(op, "", fmt.Errorf("%w: command string is empty", ErrInvalidInput))
	}

	if shell.IsEnvCommand(trimmed) {
		res, _ := w.runner.HandleEnvCommand(trimmed, w.fs.Cwd())
		return &CommandResult{
			Success:  res.ExitCode == 0,
			Command:  trimmed,
			Stdout:   res.Stdout,
			Stderr:   res.Stderr,
			ExitCode: res.ExitCode,
			Message:  res.Message,
		}, nil
	}

	if err := w.ensureSandbox(); err != nil {
		return nil, NewError(op, "", err)
	}
	w.syncMissingEntries()
	pre := w.sandbox.CollectTimestampState(w.fs)

	physCwd := w.physicalCwd()
	if err := shell.EnsureRedirectionParent(trimmed, physCwd); err != nil {
		w.cfg.Logger.Warn("could not pre-create redirection parent", "command", trimmed, "error", err)
	}

	snapshot := w.fs.Snapshot()
	savedCwd := w.fs.Cwd()

	w.events.Emit(event.NewEvent(event.EventCommandStarted, w.fs.Root(), &event.CommandData{Command: trimmed}))
	start := time.Now()

	if background {
		res, err := w.runner.RunBackground(trimmed, physCwd, w.fs.Cwd())
		if err != nil {
			w.rollback(snapshot, savedCwd)
			w.events.Emit(event.NewErrorEvent(event.EventCommandError, w.fs.Root(), err))
			return nil, NewError(op, "", NewCommandError(trimmed, -1, "", "", err))
		}
		if err := w.foldSandboxChanges(trimmed, snapshot, pre); err != nil {
			return nil, err
		}
		w.events.Emit(event.NewEvent(event.EventCommandComplete, w.fs.Root(), &event.CommandData{
			Command: trimmed, ExitCode: -1, Duration: time.Since(start),
		}))
		return &CommandResult{
			Success:    true,
			Command:    trimmed,
			ExitCode:   -1,
			PID:        res.PID,
			Background: true,
			Message:    res.Message,
		}, nil
	}

	res, err := w.runner.Run(ctx, trimmed, physCwd, w.fs.Cwd())
	if err != nil {
		w.rollback(snapshot, savedCwd)
		w.events.Emit(event.NewErrorEvent(event.EventCommandError, w.fs.Root(), err))
		return nil, NewError(op, "", NewCommandError(trimmed, -1, "", "", err))
	}

	allowed := res.ExitCode == 0 ||
		(w.cfg.ExitCodePolicy && shell.TreatAsSuccess(trimmed, res.ExitCode))
	if !allowed {
		// A command killed by context expiry may have partially mutated
		// the sandbox. The physical state stays authoritative; the next
		// command's reconcile folds it back in.
		if ctx.Err() != nil {
			cmdErr := NewCommandError(trimmed, res.ExitCode, res.Stdout, res.Stderr, ctx.Err())
			w.events.Emit(event.NewErrorEvent(event.EventCommandError, w.fs.Root(), cmdErr))
			return nil, cmdErr
		}
		w.rollback(snapshot, savedCwd)
		cmdErr := NewCommandError(trimmed, res.ExitCode, res.Stdout, res.Stderr,
			fmt.Errorf("exit code %d", res.ExitCode))
		w.events.Emit(event.NewErrorEvent(event.EventCommandError, w.fs.Root(), cmdErr))
		return nil, cmdErr
	}

	stdout := res.Stdout
	if trimmed == "pwd" {
		stdout = w.mapPwdOutput(stdout)
	}

	if err := w.foldSandboxChanges(trimmed, snapshot, pre); err != nil {
		return nil, err
	}

	if res.FinalPwd != "" {
		if logical, ok := w.sandbox.LogicalPath(w.fs, res.FinalPwd); ok && logical != w.fs.Cwd() {
			if err := w.fs.SetCwd(logical); err != nil {
				w.cfg.Logger.Warn("could not adopt new working directory", "dir", logical, "error", err)
			}
		}
	}

	w.events.Emit(event.NewEvent(event.EventCommandComplete, w.fs.Root(), &event.CommandData{
		Command: trimmed, ExitCode: res.ExitCode, Duration: time.Since(start),
	}))

	message := res.Message + " Workspace state updated."
	if res.ExitCode != 0 {
		message += fmt.Sprintf(" (Note: non-zero exit code %d treated as success.)", res.ExitCode)
	}
	return &CommandResult{
		Success:  true,
		Command:  trimmed,
		Stdout:   stdout,
		Stderr:   res.Stderr,
		ExitCode: res.ExitCode,
		Message:  message,
	}, nil
}

// ensureSandbox lazily creates the physical sandbox and writes the full
// virtual state into it.
func (w *Workspace) ensureSandbox() error {
	if w.sandbox.Active() {
		return nil
	}
	dir, err := w.sandbox.Create()
	if err != nil {
		return err
	}
	if err := w.sandbox.Dehydrate(w.fs); err != nil {
		_ = w.sandbox.Destroy()
		return err
	}
	w.events.Emit(event.NewEvent(event.EventSandboxCreated, w.fs.Root(), nil))
	w.cfg.Logger.Info("sandbox created", "dir", dir)
	return nil
}

// syncMissingEntries materializes any virtual entries the sandbox is missing.
func (w *Workspace) syncMissingEntries() {
	for _, logical := range w.fs.Paths() {
		physical, err := w.sandbox.PhysicalPath(w.fs, logical)
		if err != nil {
			continue
		}
		if _, err := os.Lstat(physical); err == nil {
			continue
		}
		if err := w.sandbox.SyncFile(w.fs, logical); err != nil {
			w.cfg.Logger.Warn("could not sync entry to sandbox", "path", logical, "error", err)
		}
	}
}

// physicalCwd maps the logical working directory into the sandbox, creating
// the directory if a command deleted it.
func (w *Workspace) physicalCwd() string {
	physical, err := w.sandbox.PhysicalPath(w.fs, w.fs.Cwd())
	if err != nil {
		return w.sandbox.Dir()
	}
	if _, statErr := os.Stat(physical); statErr != nil {
		if mkErr := os.MkdirAll(physical, 0o755); mkErr != nil {
			w.cfg.Logger.Warn("could not recreate working directory", "dir", physical, "error", mkErr)
			return w.sandbox.Dir()
		}
	}
	return physical
}

// rollback restores the pre-command virtual state and working directory.
func (w *Workspace) rollback(snapshot map[string]*vfs.Entry, cwd string) {
	w.fs.Restore(snapshot)
	if w.fs.Cwd() != cwd {
		if err := w.fs.SetCwd(cwd); err != nil {
			w.cfg.Logger.Warn("could not restore working directory", "dir", cwd, "error", err)
		}
	}
}

// foldSandboxChanges reconciles the sandbox into the virtual file system and
// rolls back change times for entries a command did not actually modify.
// Strict-mode metadata failures surface verbatim.
func (w *Workspace) foldSandboxChanges(command string, original map[string]*vfs.Entry, pre map[string]vfs.Timestamps) error {
	post := w.sandbox.CollectTimestampState(w.fs)
	stats, err := w.sandbox.Reconcile(w.fs, original, command)
	if err != nil {
		var me *MetadataError
		if errors.As(err, &me) {
			return me
		}
		return NewError("reconcile", "", err)
	}
	w.sandbox.PreserveUnchangedChangeTimes(w.fs, pre, post, original)
	w.events.Emit(event.NewEvent(event.EventSandboxReconciled, w.fs.Root(), &event.SyncData{
		Added: stats.Added, Updated: stats.Updated, Removed: stats.Removed,
	}))
	return nil
}

// mapPwdOutput rewrites a physical sandbox path in stdout back to its
// logical workspace path.
func (w *Workspace) mapPwdOutput(stdout string) string {
	physical := strings.TrimSpace(stdout)
	if physical == "" {
		return stdout
	}
	logical, ok := w.sandbox.LogicalPath(w.fs, physical)
	if !ok {
		return stdout
	}
	if strings.HasSuffix(stdout, "\n") {
		return logical + "\n"
	}
	return logical
}

// Close destroys the sandbox and marks the workspace unusable. Safe to call
// more than once.
func (w *Workspace) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true

	var err error
	if w.sandbox.Active() {
		err = w.sandbox.Destroy()
		w.events.EmitSync(event.NewEvent(event.EventSandboxDestroyed, w.fs.Root(), nil))
	}
	w.events.EmitSync(event.NewEvent(event.EventWorkspaceClosed, w.fs.Root(), nil))
	return err
}

// WithSandboxSync runs op between a full dehydrate and a reconcile, for
// callers that mutate the sandbox directory directly.
func WithSandboxSync[T any](w *Workspace, op func() (T, error)) (T, error) {
	var zero T
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.guard("with_sandbox_sync"); err != nil {
		return zero, err
	}
	if err := w.ensureSandbox(); err != nil {
		return zero, err
	}
	if err := w.sandbox.Dehydrate(w.fs); err != nil {
		return zero, err
	}
	out, err := op()
	if err != nil {
		return out, err
	}
	original := w.fs.Snapshot()
	if _, rerr := w.sandbox.Reconcile(w.fs, original, ""); rerr != nil {
		return out, rerr
	}
	return out, nil
}
