package sandbox

import (
	"encoding/base64"
	"io"
	"os"
	"strings"

	"github.com/go-enry/go-enry/v2"

	"github.com/happyhackingspace/workbox/pkg/vfs"
)

// BinaryMarker is the header line that flags base64-encoded binary content.
const BinaryMarker = "# BINARY_ARCHIVE_BASE64_ENCODED"

// Placeholder content for files whose bytes are not held in memory.
var (
	LargeFilePlaceholder = []string{"<File Exceeds 50MB - Content Not Loaded>"}
	BinaryPlaceholder    = []string{"<Binary File - Content Not Loaded>"}
)

// archiveExts are the extensions whose exact bytes must survive the
// round trip through the virtual file system.
var archiveExts = map[string]bool{
	".zip": true, ".tar": true, ".gz": true, ".bz2": true,
	".xz": true, ".7z": true, ".rar": true,
}

// IsArchivePath reports whether the path names an archive file, including
// compound forms like .tar.gz.
func IsArchivePath(p string) bool {
	lower := strings.ToLower(p)
	i := strings.LastIndex(lower, ".")
	if i < 0 {
		return false
	}
	ext := lower[i:]
	if (ext == ".gz" || ext == ".bz2" || ext == ".xz") && strings.HasSuffix(lower, ".tar"+ext) {
		return true
	}
	return archiveExts[ext]
}

// binarySampleSize is how many leading bytes are inspected for binary
// detection.
const binarySampleSize = 1024

// isBinaryFile samples the file's head and classifies it with enry.
func isBinaryFile(physicalPath string) bool {
	f, err := os.Open(physicalPath)
	if err != nil {
		return false
	}
	defer f.Close()

	sample := make([]byte, binarySampleSize)
	n, err := io.ReadFull(f, sample)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return false
	}
	if n == 0 {
		return false
	}
	return enry.IsBinary(sample[:n])
}

// EncodeBinary converts raw bytes into marker-prefixed base64 content lines,
// chunked at the standard 76-character width.
func EncodeBinary(data []byte) []string {
	encoded := base64.StdEncoding.EncodeToString(data)
	lines := []string{BinaryMarker + "\n"}
	for i := 0; i < len(encoded); i += 76 {
		end := i + 76
		if end > len(encoded) {
			end = len(encoded)
		}
		lines = append(lines, encoded[i:end]+"\n")
	}
	return lines
}

// HasBinaryMarker reports whether content lines carry base64 binary content.
func HasBinaryMarker(lines []string) bool {
	return len(lines) > 0 && strings.TrimSpace(lines[0]) == BinaryMarker
}

// DecodeBinary reverses EncodeBinary. The bool result is false when the
// lines are not marker-prefixed or fail to decode.
func DecodeBinary(lines []string) ([]byte, bool) {
	if !HasBinaryMarker(lines) {
		return nil, false
	}
	var b strings.Builder
	for _, line := range lines[1:] {
		b.WriteString(strings.TrimRight(line, "\n"))
	}
	data, err := base64.StdEncoding.DecodeString(b.String())
	if err != nil {
		return nil, false
	}
	return data, true
}

// readContentLines loads a file's content according to the size, archive,
// and binary rules.
func (m *Manager) readContentLines(physicalPath string, size int64) []string {
	switch {
	case size == 0:
		return nil
	case size > m.opts.MaxFileSize:
		m.opts.Logger.Info("file exceeds max size, content not loaded",
			"path", physicalPath, "size", size)
		return LargeFilePlaceholder
	case IsArchivePath(physicalPath) && size <= m.opts.MaxArchiveSize:
		data, err := os.ReadFile(physicalPath)
		if err != nil {
			m.opts.Logger.Warn("error reading archive file", "path", physicalPath, "error", err)
			return BinaryPlaceholder
		}
		return EncodeBinary(data)
	case isBinaryFile(physicalPath):
		data, err := os.ReadFile(physicalPath)
		if err != nil {
			m.opts.Logger.Warn("error reading binary file", "path", physicalPath, "error", err)
			return BinaryPlaceholder
		}
		return EncodeBinary(data)
	default:
		data, err := os.ReadFile(physicalPath)
		if err != nil {
			m.opts.Logger.Warn("error reading file", "path", physicalPath, "error", err)
			return []string{"<Error Reading File Content>"}
		}
		return vfs.SplitLines(string(data))
	}
}
