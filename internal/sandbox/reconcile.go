package sandbox

import (
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/happyhackingspace/workbox/pkg/metadata"
	"github.com/happyhackingspace/workbox/pkg/vfs"
)

// Stats summarizes a reconcile pass.
type Stats struct {
	Added   int
	Updated int
	Removed int
}

// commands that read file content, which refresh access times under
// relatime.
var contentReadingCommands = map[string]bool{
	"cat": true, "less": true, "more": true, "head": true, "tail": true,
	"grep": true, "awk": true, "sed": true, "sort": true, "uniq": true,
	"wc": true, "diff": true, "cmp": true, "file": true, "strings": true,
	"hexdump": true, "od": true, "xxd": true, "vim": true, "nano": true,
	"emacs": true,
}

// commands that only inspect metadata or listings, which do not refresh
// access times under relatime.
var metadataOnlyCommands = map[string]bool{
	"ls": true, "stat": true, "find": true, "du": true, "df": true,
	"tree": true, "locate": true, "which": true, "whereis": true,
	"pwd": true, "dirname": true, "basename": true,
}

// commands whose file arguments count as accesses for atime purposes.
var fileReadingCommands = map[string]bool{
	"cat": true, "less": true, "more": true, "head": true, "tail": true,
	"grep": true, "awk": true, "sed": true, "sort": true, "uniq": true,
	"wc": true, "diff": true, "cmp": true, "file": true, "strings": true,
	"hexdump": true, "od": true, "xxd": true, "vim": true, "nano": true,
	"emacs": true, "cp": true, "mv": true,
}

// commandUpdatesAtime applies the mount-mode policy to a whole command.
func (m *Manager) commandUpdatesAtime(command string) bool {
	switch m.opts.AccessTimeMode {
	case metadata.Noatime:
		return false
	case metadata.Atime:
		return true
	}
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return false
	}
	switch {
	case contentReadingCommands[fields[0]]:
		return true
	case metadataOnlyCommands[fields[0]]:
		return false
	default:
		// Unknown commands may read anything; assume they do.
		return true
	}
}

// extractAccessedPaths guesses which workspace files a command read, from
// its arguments and redirections.
func (m *Manager) extractAccessedPaths(command, root, cwd string) map[string]bool {
	accessed := make(map[string]bool)
	if m.opts.AccessTimeMode == metadata.Noatime {
		return accessed
	}

	fields := strings.Fields(command)
	if len(fields) == 0 {
		return accessed
	}
	cmd, args := fields[0], fields[1:]

	process := fileReadingCommands[cmd]
	if m.opts.AccessTimeMode == metadata.Atime {
		process = process || metadataOnlyCommands[cmd]
	}

	hasRedirection := false
	for _, a := range args {
		if a == ">" || a == ">>" || a == "<" {
			hasRedirection = true
			break
		}
	}
	if !process && !hasRedirection {
		return accessed
	}

	resolve := func(arg string) string {
		var abs string
		if strings.HasPrefix(arg, "/") {
			abs = path.Clean(arg)
		} else {
			abs = path.Join(cwd, arg)
		}
		if abs == root || strings.HasPrefix(abs, root+"/") {
			return abs
		}
		return ""
	}

	for i := 0; i < len(args); i++ {
		arg := args[i]
		if strings.HasPrefix(arg, "-") {
			continue
		}
		if arg == ">" || arg == ">>" || arg == "<" {
			if i+1 < len(args) {
				if abs := resolve(args[i+1]); abs != "" {
					accessed[abs] = true
				}
				i++
			}
			continue
		}
		if arg == "|" || arg == "&&" || arg == "||" || arg == ";" {
			continue
		}
		if process {
			if abs := resolve(arg); abs != "" {
				accessed[abs] = true
			}
		}
	}
	return accessed
}

// Reconcile rebuilds the virtual file system from the sandbox directory
// after a command ran. original is the pre-command snapshot; command drives
// the timestamp policies.
func (m *Manager) Reconcile(vf *vfs.FS, original map[string]*vfs.Entry, command string) (Stats, error) {
	trimmed := strings.TrimSpace(command)
	isMetadataCommand := strings.HasPrefix(trimmed, "chmod") || strings.HasPrefix(trimmed, "chown")
	fields := strings.Fields(trimmed)
	isTouch := len(fields) > 0 && fields[0] == "touch"

	var accessed map[string]bool
	if m.commandUpdatesAtime(command) {
		accessed = m.extractAccessedPaths(command, vf.Root(), vf.Cwd())
	}

	newEntries := make(map[string]*vfs.Entry)
	var stats Stats

	walkErr := filepath.WalkDir(m.dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			m.opts.Logger.Warn("skipping unreadable path during reconcile", "path", p, "error", err)
			return nil
		}
		logical, ok := m.LogicalPath(vf, p)
		if !ok {
			m.opts.Logger.Warn("unmappable sandbox path", "path", p)
			return nil
		}

		if d.IsDir() {
			md, mdErr := metadata.Collect(p)
			entry := &vfs.Entry{Path: logical, IsDirectory: true, LastModified: vfs.NowISO()}
			if mdErr == nil {
				entry.Metadata = md
				entry.LastModified = md.Timestamps.ModifyTime
				if isMetadataCommand {
					if applyErr := metadata.Apply(p, md, true); applyErr != nil {
						return applyErr
					}
				}
			}
			newEntries[logical] = entry
			return nil
		}

		entry, entryErr := m.reconcileFile(p, logical, original, isTouch, isMetadataCommand, accessed[logical])
		if entryErr != nil {
			return entryErr
		}
		newEntries[logical] = entry
		if orig, existed := original[logical]; !existed {
			stats.Added++
		} else if entry.SizeBytes != orig.SizeBytes || entry.LastModified != orig.LastModified {
			stats.Updated++
		}
		return nil
	})
	if walkErr != nil {
		return stats, walkErr
	}

	for logical := range original {
		if _, ok := newEntries[logical]; !ok {
			stats.Removed++
		}
	}

	vf.Restore(newEntries)
	m.opts.Logger.Info("state reconciled from sandbox",
		"entries", len(newEntries), "added", stats.Added, "removed", stats.Removed)
	return stats, nil
}

// reconcileFile builds the post-command entry for one file.
func (m *Manager) reconcileFile(physical, logical string, original map[string]*vfs.Entry,
	isTouch, isMetadataCommand, wasAccessed bool) (*vfs.Entry, error) {

	entry := &vfs.Entry{Path: logical}
	orig := original[logical]

	md, mdErr := metadata.Collect(physical)
	if mdErr != nil {
		m.opts.Logger.Warn("could not collect metadata during reconcile", "path", physical, "error", mdErr)
		entry.ContentLines = []string{"<Error Reading File Content>"}
		entry.LastModified = vfs.NowISO()
		return entry, nil
	}

	if md.Attributes.IsSymlink {
		entry.SizeBytes = len(md.Attributes.SymlinkTarget)
		entry.LastModified = md.Timestamps.ModifyTime
		// A symlink that was not read keeps its pre-command access time.
		if !wasAccessed && orig != nil && orig.Metadata != nil {
			md.Timestamps.AccessTime = orig.Metadata.Timestamps.AccessTime
		}
		entry.Metadata = md
		return entry, nil
	}

	info, err := os.Stat(physical)
	if err != nil {
		m.opts.Logger.Warn("could not stat file during reconcile", "path", physical, "error", err)
		entry.ContentLines = []string{"<Error Reading File Content>"}
		entry.LastModified = vfs.NowISO()
		return entry, nil
	}
	size := info.Size()
	entry.SizeBytes = int(size)

	changed := orig == nil || size != int64(orig.SizeBytes) || isTouch
	if changed || orig.LastModified == "" {
		entry.LastModified = vfs.FormatTime(info.ModTime())
	} else {
		// Same size and not touched: keep the exact original timestamp.
		entry.LastModified = orig.LastModified
	}

	entry.ContentLines = m.readContentLines(physical, size)

	switch {
	case isMetadataCommand:
		if err := metadata.Apply(physical, md, true); err != nil {
			return nil, err
		}
		entry.Metadata = md
	case !changed && orig.Metadata != nil:
		kept := orig.Metadata.Clone()
		if wasAccessed && m.shouldRefreshAtime(kept.Timestamps) {
			kept.Timestamps.AccessTime = md.Timestamps.AccessTime
		}
		entry.Metadata = kept
	default:
		entry.Metadata = md
	}
	return entry, nil
}

// shouldRefreshAtime applies the mount's access-time policy to a file's
// stored timestamps. Unparseable timestamps default to refreshing.
func (m *Manager) shouldRefreshAtime(ts vfs.Timestamps) bool {
	atime, aerr := vfs.ParseTime(ts.AccessTime)
	mtime, merr := vfs.ParseTime(ts.ModifyTime)
	ctime, cerr := vfs.ParseTime(ts.ChangeTime)
	if aerr != nil || merr != nil || cerr != nil {
		return true
	}
	return metadata.ShouldUpdateAccessTime(m.opts.AccessTimeMode, atime, mtime, ctime)
}

// CollectTimestampState reads timestamps from the sandbox for every logical
// path currently in the virtual file system. Used around command execution
// to detect which files actually changed.
func (m *Manager) CollectTimestampState(vf *vfs.FS) map[string]vfs.Timestamps {
	state := make(map[string]vfs.Timestamps)
	for _, logical := range vf.Paths() {
		physical, err := m.PhysicalPath(vf, logical)
		if err != nil {
			continue
		}
		if _, lerr := os.Lstat(physical); lerr != nil {
			continue
		}
		md, cerr := metadata.Collect(physical)
		if cerr != nil {
			continue
		}
		state[logical] = md.Timestamps
	}
	return state
}

// PreserveUnchangedChangeTimes rolls back the change time (ctime) of every
// entry whose modification time did not move across the command, so
// unchanged files do not appear freshly changed.
func (m *Manager) PreserveUnchangedChangeTimes(vf *vfs.FS, pre, post map[string]vfs.Timestamps, original map[string]*vfs.Entry) {
	for _, logical := range vf.Paths() {
		entry, ok := vf.Get(logical)
		if !ok || entry.Metadata == nil {
			continue
		}
		if pre[logical].ModifyTime != post[logical].ModifyTime {
			continue
		}
		orig := original[logical]
		if orig == nil || orig.Metadata == nil {
			continue
		}
		if ct := orig.Metadata.Timestamps.ChangeTime; ct != "" {
			entry.Metadata.Timestamps.ChangeTime = ct
		}
	}
}
