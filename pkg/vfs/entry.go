// Package vfs implements the in-memory virtual file system that agent tools
// operate on. It is the single source of truth for file content and metadata
// between sandbox sessions.
package vfs

import (
	"strings"
	"time"
)

// Timestamps holds POSIX-like file times as ISO-8601 UTC strings.
type Timestamps struct {
	// AccessTime is the last access time (atime).
	AccessTime string

	// ModifyTime is the last content modification time (mtime).
	ModifyTime string

	// ChangeTime is the last status change time (ctime).
	// It only advances when content, size, or permissions change.
	ChangeTime string
}

// Attributes holds file attribute flags.
type Attributes struct {
	// IsSymlink indicates the entry is a symbolic link.
	IsSymlink bool

	// IsHidden indicates a dot-prefixed name.
	IsHidden bool

	// IsReadonly indicates the file has no write permission.
	IsReadonly bool

	// SymlinkTarget is the link target when IsSymlink is set.
	SymlinkTarget string
}

// Permissions holds ownership and mode bits.
type Permissions struct {
	// Mode is the permission bits (mode & 0777).
	Mode int

	// UID is the owning user id.
	UID int

	// GID is the owning group id.
	GID int
}

// Metadata mirrors real filesystem metadata for an entry. It is present once
// a command or an explicit metadata sync has touched the entry.
type Metadata struct {
	Attributes  Attributes
	Timestamps  Timestamps
	Permissions Permissions
}

// Clone returns a deep copy of the metadata.
func (m *Metadata) Clone() *Metadata {
	if m == nil {
		return nil
	}
	c := *m
	return &c
}

// Entry is one file or directory in the virtual file system.
type Entry struct {
	// Path is the absolute, normalized, forward-slash logical path.
	Path string

	// IsDirectory indicates a directory entry.
	IsDirectory bool

	// ContentLines holds file content, one element per line including its
	// trailing newline (except possibly the last). Empty for directories
	// and for empty files.
	ContentLines []string

	// SizeBytes is the content size. Always 0 for directories.
	SizeBytes int

	// LastModified is an ISO-8601 UTC timestamp.
	LastModified string

	// Metadata is optional POSIX-like metadata.
	Metadata *Metadata
}

// Clone returns a deep copy of the entry.
func (e *Entry) Clone() *Entry {
	if e == nil {
		return nil
	}
	c := *e
	if e.ContentLines != nil {
		c.ContentLines = make([]string, len(e.ContentLines))
		copy(c.ContentLines, e.ContentLines)
	}
	c.Metadata = e.Metadata.Clone()
	return &c
}

// SizeBytes computes the byte size of a set of content lines.
func SizeBytes(lines []string) int {
	total := 0
	for _, line := range lines {
		total += len(line)
	}
	return total
}

// SplitLines splits s into lines, each keeping its line ending. The result is
// empty for an empty string; a final line without a newline is kept as-is.
func SplitLines(s string) []string {
	if s == "" {
		return nil
	}
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			lines = append(lines, s[start:i+1])
			start = i + 1
		}
	}
	if start < len(s) {
		lines = append(lines, s[start:])
	}
	return lines
}

// NormalizeLines ensures every line ends with a newline. When
// ensureTrailingNewline is false the last line is left unterminated.
func NormalizeLines(lines []string, ensureTrailingNewline bool) []string {
	if len(lines) == 0 {
		return nil
	}
	normalized := make([]string, 0, len(lines))
	for i, line := range lines {
		last := i == len(lines)-1
		switch {
		case strings.HasSuffix(line, "\n"):
			normalized = append(normalized, line)
		case ensureTrailingNewline || !last:
			normalized = append(normalized, line+"\n")
		default:
			normalized = append(normalized, line)
		}
	}
	return normalized
}

// NowISO returns the current time in ISO-8601 UTC format with a Z suffix.
func NowISO() string {
	return FormatTime(time.Now())
}

// FormatTime formats t as ISO-8601 UTC with a Z suffix.
func FormatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.999999Z07:00")
}

// ParseTime parses an ISO-8601 timestamp produced by FormatTime.
func ParseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
