package sandbox

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/happyhackingspace/workbox/pkg/metadata"
	"github.com/happyhackingspace/workbox/pkg/vfs"
)

// Hydrate populates the virtual file system from a real directory tree. The
// directory's absolute path becomes the workspace root and initial cwd.
func (m *Manager) Hydrate(vf *vfs.FS, sourceDir string) error {
	info, err := os.Stat(sourceDir)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("hydration root %q is not a directory", sourceDir)
	}

	absRoot, err := filepath.Abs(sourceDir)
	if err != nil {
		return err
	}
	logicalRoot := filepath.ToSlash(absRoot)
	if err := vf.Init(logicalRoot); err != nil {
		return err
	}

	m.opts.Logger.Info("starting hydration", "root", logicalRoot)

	walkErr := filepath.WalkDir(absRoot, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			m.opts.Logger.Warn("skipping unreadable path during hydration", "path", p, "error", err)
			return nil
		}
		logical := filepath.ToSlash(p)

		if d.IsDir() {
			if logical == logicalRoot {
				// Root entry exists from Init; refresh its metadata.
				if root, ok := vf.Get(logicalRoot); ok {
					m.fillEntryFromDisk(root, p, true)
				}
				return nil
			}
			entry := &vfs.Entry{Path: logical, IsDirectory: true}
			m.fillEntryFromDisk(entry, p, true)
			return vf.Put(entry)
		}

		entry := &vfs.Entry{Path: logical}
		m.fillEntryFromDisk(entry, p, false)
		return vf.Put(entry)
	})
	if walkErr != nil {
		return walkErr
	}

	m.opts.Logger.Info("hydration complete", "entries", vf.Len())
	return nil
}

// fillEntryFromDisk loads timestamps, metadata, and content for one entry.
func (m *Manager) fillEntryFromDisk(entry *vfs.Entry, physicalPath string, isDir bool) {
	md, err := metadata.Collect(physicalPath)
	if err != nil {
		m.opts.Logger.Warn("could not collect metadata", "path", physicalPath, "error", err)
	} else {
		entry.Metadata = md
		entry.LastModified = md.Timestamps.ModifyTime
	}
	if entry.LastModified == "" {
		entry.LastModified = vfs.NowISO()
	}
	if isDir {
		return
	}

	if entry.Metadata != nil && entry.Metadata.Attributes.IsSymlink {
		// Symlinks carry no content; their size is the target length.
		entry.ContentLines = nil
		entry.SizeBytes = len(entry.Metadata.Attributes.SymlinkTarget)
		return
	}

	info, err := os.Stat(physicalPath)
	if err != nil {
		m.opts.Logger.Warn("could not stat file", "path", physicalPath, "error", err)
		entry.ContentLines = []string{"<Error Reading File Content>"}
		return
	}
	entry.SizeBytes = int(info.Size())
	entry.ContentLines = m.readContentLines(physicalPath, info.Size())
}
