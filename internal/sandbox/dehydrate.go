package sandbox

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/happyhackingspace/workbox/pkg/metadata"
	"github.com/happyhackingspace/workbox/pkg/vfs"
)

// Dehydrate writes the whole virtual file system into the sandbox
// directory. The directory is emptied first, keeping any .git directory.
func (m *Manager) Dehydrate(vf *vfs.FS) error {
	if m.dir == "" {
		return fmt.Errorf("no sandbox directory")
	}
	if err := m.Clean(); err != nil {
		return fmt.Errorf("clean sandbox: %w", err)
	}

	m.opts.Logger.Info("writing workspace state to disk", "dir", m.dir)

	paths := vf.Paths()

	// Directories and files first, parents before children.
	var dirPaths []string
	for _, logical := range paths {
		entry, ok := vf.Get(logical)
		if !ok {
			continue
		}
		physical, err := m.PhysicalPath(vf, logical)
		if err != nil {
			m.opts.Logger.Error("unmappable path during dehydrate", "path", logical, "error", err)
			continue
		}
		if entry.IsDirectory {
			if err := os.MkdirAll(physical, 0o755); err != nil {
				return fmt.Errorf("create dir %s: %w", physical, err)
			}
			dirPaths = append(dirPaths, logical)
			continue
		}
		if err := m.writeEntry(entry, physical); err != nil {
			return err
		}
	}

	// Directory metadata last, deepest first, so file writes don't clobber
	// the timestamps being applied.
	sort.Slice(dirPaths, func(i, j int) bool {
		return strings.Count(dirPaths[i], "/") > strings.Count(dirPaths[j], "/")
	})
	for _, logical := range dirPaths {
		entry, _ := vf.Get(logical)
		if entry == nil || entry.Metadata == nil {
			continue
		}
		physical, err := m.PhysicalPath(vf, logical)
		if err != nil {
			continue
		}
		if err := metadata.Apply(physical, entry.Metadata, false); err != nil {
			m.opts.Logger.Warn("could not apply directory metadata", "path", physical, "error", err)
		}
	}

	m.opts.Logger.Info("workspace state written", "dir", m.dir)
	return nil
}

// SyncFile materializes a single virtual entry into the sandbox, creating
// parent directories as needed.
func (m *Manager) SyncFile(vf *vfs.FS, logical string) error {
	entry, ok := vf.Get(logical)
	if !ok {
		return fmt.Errorf("no entry for %s", logical)
	}
	physical, err := m.PhysicalPath(vf, logical)
	if err != nil {
		return err
	}
	if entry.IsDirectory {
		return os.MkdirAll(physical, 0o755)
	}
	if err := os.MkdirAll(filepath.Dir(physical), 0o755); err != nil {
		return err
	}
	return m.writeEntry(entry, physical)
}

// RemovePath deletes a path from the sandbox if it exists.
func (m *Manager) RemovePath(vf *vfs.FS, logical string) error {
	physical, err := m.PhysicalPath(vf, logical)
	if err != nil {
		return err
	}
	return os.RemoveAll(physical)
}

// writeEntry writes one file entry to its physical path, handling symlinks,
// base64 archives, and readonly overwrites.
func (m *Manager) writeEntry(entry *vfs.Entry, physical string) error {
	md := entry.Metadata

	if md != nil && md.Attributes.IsSymlink && md.Attributes.SymlinkTarget != "" {
		if _, err := os.Lstat(physical); err == nil {
			if err := os.Remove(physical); err != nil {
				return fmt.Errorf("replace symlink %s: %w", physical, err)
			}
		}
		if err := os.Symlink(md.Attributes.SymlinkTarget, physical); err != nil {
			return fmt.Errorf("create symlink %s: %w", physical, err)
		}
		return m.applyEntryMetadata(physical, md)
	}

	if data, ok := DecodeBinary(entry.ContentLines); ok {
		if err := os.WriteFile(physical, data, 0o644); err != nil {
			return fmt.Errorf("write binary %s: %w", physical, err)
		}
		return m.applyEntryMetadata(physical, md)
	}

	// A readonly file from an earlier write must be made writable before
	// being overwritten.
	if info, err := os.Stat(physical); err == nil {
		if err := os.Chmod(physical, info.Mode().Perm()|0o200); err != nil {
			return fmt.Errorf("unlock %s: %w", physical, err)
		}
	}
	content := strings.Join(entry.ContentLines, "")
	if err := os.WriteFile(physical, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write file %s: %w", physical, err)
	}
	return m.applyEntryMetadata(physical, md)
}

func (m *Manager) applyEntryMetadata(physical string, md *vfs.Metadata) error {
	if md == nil {
		return nil
	}
	if err := metadata.Apply(physical, md, m.opts.StrictMetadata); err != nil {
		if m.opts.StrictMetadata {
			return err
		}
		m.opts.Logger.Warn("could not apply metadata", "path", physical, "error", err)
	}
	return nil
}
