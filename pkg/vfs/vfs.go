package vfs

import (
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
)

// Sentinel errors returned by FS operations.
var (
	// ErrNotHydrated indicates the file system has no workspace root yet.
	ErrNotHydrated = errors.New("workspace not hydrated")

	// ErrOutsideRoot indicates a path resolves outside the workspace root.
	ErrOutsideRoot = errors.New("path outside workspace root")

	// ErrNotFound indicates the path does not exist.
	ErrNotFound = errors.New("path not found")

	// ErrParentNotFound indicates the parent directory does not exist.
	ErrParentNotFound = errors.New("parent directory not found")

	// ErrIsDirectory indicates a file operation was attempted on a directory.
	ErrIsDirectory = errors.New("path is a directory")

	// ErrNotDirectory indicates a directory operation was attempted on a file.
	ErrNotDirectory = errors.New("path is not a directory")

	// ErrDirectoryNotEmpty indicates a delete on a non-empty directory.
	ErrDirectoryNotEmpty = errors.New("directory not empty")

	// ErrInvalidPath indicates an empty or malformed path.
	ErrInvalidPath = errors.New("invalid path")
)

// FS is the in-memory virtual file system. Entries are keyed by absolute
// logical path; every entry's ancestors up to the root must also exist.
// FS is not safe for concurrent use.
type FS struct {
	root    string
	cwd     string
	entries map[string]*Entry
}

// New creates an empty, un-hydrated file system.
func New() *FS {
	return &FS{entries: make(map[string]*Entry)}
}

// Init sets the workspace root and creates its directory entry. Any previous
// state is discarded.
func (f *FS) Init(root string) error {
	root = Normalize(root)
	if root == "" || !strings.HasPrefix(root, "/") {
		return fmt.Errorf("%w: root %q must be absolute", ErrInvalidPath, root)
	}
	f.root = root
	f.cwd = root
	f.entries = map[string]*Entry{
		root: {Path: root, IsDirectory: true, LastModified: NowISO()},
	}
	return nil
}

// Root returns the workspace root path, empty before Init.
func (f *FS) Root() string { return f.root }

// Cwd returns the current working directory.
func (f *FS) Cwd() string { return f.cwd }

// SetCwd changes the current working directory. The target must be an
// existing directory inside the workspace.
func (f *FS) SetCwd(dir string) error {
	abs, err := f.Resolve(dir)
	if err != nil {
		return err
	}
	entry, ok := f.entries[abs]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, abs)
	}
	if !entry.IsDirectory {
		return fmt.Errorf("%w: %s", ErrNotDirectory, abs)
	}
	f.cwd = abs
	return nil
}

// Hydrated reports whether the file system has a workspace root.
func (f *FS) Hydrated() bool { return f.root != "" }

// Len returns the number of entries, the root included.
func (f *FS) Len() int { return len(f.entries) }

// Normalize cleans a logical path: forward slashes, no trailing slash, no
// "." or ".." components.
func Normalize(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	p = path.Clean(p)
	if p == "." {
		return ""
	}
	return p
}

// Resolve turns a possibly relative path into an absolute normalized logical
// path and verifies it stays inside the workspace root.
func (f *FS) Resolve(p string) (string, error) {
	if f.root == "" {
		return "", ErrNotHydrated
	}
	if strings.TrimSpace(p) == "" {
		return "", fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	p = strings.ReplaceAll(p, "\\", "/")
	if !strings.HasPrefix(p, "/") {
		p = path.Join(f.cwd, p)
	}
	p = path.Clean(p)
	if p != f.root && !strings.HasPrefix(p, f.root+"/") {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, p)
	}
	return p, nil
}

// Get returns the entry at the given absolute path.
func (f *FS) Get(abs string) (*Entry, bool) {
	e, ok := f.entries[abs]
	return e, ok
}

// Put inserts or replaces an entry. The parent directory must already exist
// unless the entry is the root itself. File sizes are recomputed from content.
func (f *FS) Put(entry *Entry) error {
	if f.root == "" {
		return ErrNotHydrated
	}
	abs := Normalize(entry.Path)
	if abs != f.root && !strings.HasPrefix(abs, f.root+"/") {
		return fmt.Errorf("%w: %s", ErrOutsideRoot, abs)
	}
	if abs != f.root {
		parent := path.Dir(abs)
		pe, ok := f.entries[parent]
		if !ok {
			return fmt.Errorf("%w: %s", ErrParentNotFound, parent)
		}
		if !pe.IsDirectory {
			return fmt.Errorf("%w: %s", ErrNotDirectory, parent)
		}
	}
	entry.Path = abs
	if entry.IsDirectory {
		entry.ContentLines = nil
		entry.SizeBytes = 0
	} else if entry.SizeBytes == 0 {
		// Placeholder and symlink entries carry their on-disk size; only
		// fill in sizes the caller left unset.
		entry.SizeBytes = SizeBytes(entry.ContentLines)
	}
	if entry.LastModified == "" {
		entry.LastModified = NowISO()
	}
	f.entries[abs] = entry
	return nil
}

// MkdirAll creates the directory and any missing ancestors inside the root.
func (f *FS) MkdirAll(abs string) error {
	if f.root == "" {
		return ErrNotHydrated
	}
	abs = Normalize(abs)
	if abs != f.root && !strings.HasPrefix(abs, f.root+"/") {
		return fmt.Errorf("%w: %s", ErrOutsideRoot, abs)
	}
	var missing []string
	for p := abs; ; p = path.Dir(p) {
		if e, ok := f.entries[p]; ok {
			if !e.IsDirectory {
				return fmt.Errorf("%w: %s", ErrNotDirectory, p)
			}
			break
		}
		missing = append(missing, p)
		if p == f.root {
			break
		}
	}
	for i := len(missing) - 1; i >= 0; i-- {
		f.entries[missing[i]] = &Entry{
			Path:         missing[i],
			IsDirectory:  true,
			LastModified: NowISO(),
		}
	}
	return nil
}

// Delete removes the entry at abs. Directories must be empty.
func (f *FS) Delete(abs string) error {
	entry, ok := f.entries[abs]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, abs)
	}
	if entry.IsDirectory {
		for p := range f.entries {
			if strings.HasPrefix(p, abs+"/") {
				return fmt.Errorf("%w: %s", ErrDirectoryNotEmpty, abs)
			}
		}
	}
	delete(f.entries, abs)
	return nil
}

// Forget removes an entry without invariant checks. Used by the sandbox
// reconciler when a command deleted paths on disk.
func (f *FS) Forget(abs string) {
	delete(f.entries, abs)
}

// List returns the direct children of a directory, sorted by path.
func (f *FS) List(abs string) ([]*Entry, error) {
	dir, ok := f.entries[abs]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, abs)
	}
	if !dir.IsDirectory {
		return nil, fmt.Errorf("%w: %s", ErrNotDirectory, abs)
	}
	prefix := abs + "/"
	if abs == "/" {
		prefix = "/"
	}
	var children []*Entry
	for p, e := range f.entries {
		if !strings.HasPrefix(p, prefix) || p == abs {
			continue
		}
		if strings.Contains(p[len(prefix):], "/") {
			continue
		}
		children = append(children, e)
	}
	sort.Slice(children, func(i, j int) bool { return children[i].Path < children[j].Path })
	return children, nil
}

// Paths returns every entry path, sorted. Useful for deterministic walks.
func (f *FS) Paths() []string {
	paths := make([]string, 0, len(f.entries))
	for p := range f.entries {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Snapshot returns a deep copy of the current state for rollback.
func (f *FS) Snapshot() map[string]*Entry {
	snap := make(map[string]*Entry, len(f.entries))
	for p, e := range f.entries {
		snap[p] = e.Clone()
	}
	return snap
}

// Restore replaces the current state with a snapshot taken earlier.
func (f *FS) Restore(snapshot map[string]*Entry) {
	entries := make(map[string]*Entry, len(snapshot))
	for p, e := range snapshot {
		entries[p] = e.Clone()
	}
	f.entries = entries
	if _, ok := f.entries[f.cwd]; !ok {
		f.cwd = f.root
	}
}
