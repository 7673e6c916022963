// Package sandbox manages the transient on-disk directory that shell
// commands execute in, and keeps it synchronized with the virtual file
// system in both directions.
package sandbox

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/happyhackingspace/workbox/pkg/metadata"
	"github.com/happyhackingspace/workbox/pkg/vfs"
)

// Logger is the subset of logging used by the synchronizer.
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

// Options configures a Manager.
type Options struct {
	// Logger for sync diagnostics. Defaults to a no-op logger.
	Logger Logger

	// BaseDir is where sandbox directories are created. Defaults to the
	// system temp directory.
	BaseDir string

	// MaxFileSize is the largest file whose content is loaded into the
	// virtual file system.
	MaxFileSize int64

	// MaxArchiveSize is the largest archive whose exact bytes are kept.
	MaxArchiveSize int64

	// AccessTimeMode is the simulated mount option for access times.
	AccessTimeMode metadata.Mode

	// StrictMetadata makes metadata application failures fatal.
	StrictMetadata bool
}

// Manager owns one sandbox directory.
type Manager struct {
	opts Options
	dir  string
}

// NewManager creates a manager with defaults filled in.
func NewManager(opts Options) *Manager {
	if opts.Logger == nil {
		opts.Logger = nopLogger{}
	}
	if opts.BaseDir == "" {
		opts.BaseDir = os.TempDir()
	}
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = 50 * 1024 * 1024
	}
	if opts.MaxArchiveSize <= 0 {
		opts.MaxArchiveSize = 10 * 1024 * 1024
	}
	if opts.AccessTimeMode == "" {
		opts.AccessTimeMode = metadata.Relatime
	}
	return &Manager{opts: opts}
}

// Create makes a fresh sandbox directory and returns its path.
func (m *Manager) Create() (string, error) {
	dir := filepath.Join(m.opts.BaseDir, "workbox-"+uuid.NewString())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create sandbox dir: %w", err)
	}
	m.dir = dir
	m.opts.Logger.Debug("sandbox directory created", "dir", dir)
	return dir, nil
}

// Dir returns the sandbox directory, empty before Create.
func (m *Manager) Dir() string { return m.dir }

// Active reports whether a sandbox directory exists.
func (m *Manager) Active() bool { return m.dir != "" }

// Destroy removes the sandbox directory.
func (m *Manager) Destroy() error {
	if m.dir == "" {
		return nil
	}
	err := os.RemoveAll(m.dir)
	m.dir = ""
	return err
}

// Clean empties the sandbox directory while preserving any .git directory,
// so repository state survives the rewrite cycle.
func (m *Manager) Clean() error {
	if m.dir == "" {
		return nil
	}
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.Name() == ".git" {
			continue
		}
		if err := os.RemoveAll(filepath.Join(m.dir, e.Name())); err != nil {
			return err
		}
	}
	return nil
}

// PhysicalPath maps a logical workspace path onto the sandbox directory.
func (m *Manager) PhysicalPath(fs *vfs.FS, logical string) (string, error) {
	root := fs.Root()
	if logical == root {
		return m.dir, nil
	}
	if !strings.HasPrefix(logical, root+"/") {
		return "", fmt.Errorf("path %s not under workspace root %s", logical, root)
	}
	return filepath.Join(m.dir, strings.TrimPrefix(logical, root+"/")), nil
}

// LogicalPath maps a sandbox path back to its logical workspace path.
func (m *Manager) LogicalPath(fs *vfs.FS, physical string) (string, bool) {
	physical = filepath.ToSlash(filepath.Clean(physical))
	dir := filepath.ToSlash(filepath.Clean(m.dir))
	if physical == dir {
		return fs.Root(), true
	}
	if !strings.HasPrefix(physical, dir+"/") {
		return "", false
	}
	return path.Join(fs.Root(), strings.TrimPrefix(physical, dir+"/")), true
}
