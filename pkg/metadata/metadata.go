// Package metadata collects and applies POSIX file metadata for entries
// moving between the virtual file system and the on-disk sandbox.
package metadata

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"github.com/happyhackingspace/workbox/pkg/vfs"
)

// Error describes a metadata operation failure. In strict mode these abort
// the enclosing command.
type Error struct {
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("metadata %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Collect reads the metadata of a physical file without following symlinks.
func Collect(physicalPath string) (*vfs.Metadata, error) {
	var st unix.Stat_t
	if err := unix.Lstat(physicalPath, &st); err != nil {
		return nil, &Error{Op: "lstat", Path: physicalPath, Err: err}
	}

	mode := int(st.Mode & 0o777)
	md := &vfs.Metadata{
		Attributes: vfs.Attributes{
			IsHidden:   strings.HasPrefix(filepath.Base(physicalPath), "."),
			IsReadonly: mode&0o222 == 0,
		},
		Timestamps: vfs.Timestamps{
			AccessTime: vfs.FormatTime(time.Unix(st.Atim.Sec, st.Atim.Nsec)),
			ModifyTime: vfs.FormatTime(time.Unix(st.Mtim.Sec, st.Mtim.Nsec)),
			ChangeTime: vfs.FormatTime(time.Unix(st.Ctim.Sec, st.Ctim.Nsec)),
		},
		Permissions: vfs.Permissions{
			Mode: mode,
			UID:  int(st.Uid),
			GID:  int(st.Gid),
		},
	}

	if st.Mode&unix.S_IFMT == unix.S_IFLNK {
		md.Attributes.IsSymlink = true
		target, err := os.Readlink(physicalPath)
		if err != nil {
			return nil, &Error{Op: "readlink", Path: physicalPath, Err: err}
		}
		md.Attributes.SymlinkTarget = target
	}

	return md, nil
}

// Apply writes metadata back onto a physical file. Ownership changes are
// best-effort unless strict is set; permission and timestamp failures are
// always reported.
func Apply(physicalPath string, md *vfs.Metadata, strict bool) error {
	if md == nil {
		return nil
	}

	if !md.Attributes.IsSymlink {
		if err := os.Chmod(physicalPath, os.FileMode(md.Permissions.Mode)); err != nil {
			return &Error{Op: "chmod", Path: physicalPath, Err: err}
		}
	}

	if err := os.Lchown(physicalPath, md.Permissions.UID, md.Permissions.GID); err != nil {
		// Unprivileged processes cannot chown to arbitrary owners.
		if strict {
			return &Error{Op: "chown", Path: physicalPath, Err: err}
		}
	}

	atime, err := vfs.ParseTime(md.Timestamps.AccessTime)
	if err != nil {
		return &Error{Op: "parse atime", Path: physicalPath, Err: err}
	}
	mtime, err := vfs.ParseTime(md.Timestamps.ModifyTime)
	if err != nil {
		return &Error{Op: "parse mtime", Path: physicalPath, Err: err}
	}

	tv := []unix.Timeval{
		unix.NsecToTimeval(atime.UnixNano()),
		unix.NsecToTimeval(mtime.UnixNano()),
	}
	if err := unix.Lutimes(physicalPath, tv); err != nil {
		return &Error{Op: "utimes", Path: physicalPath, Err: err}
	}

	return nil
}
