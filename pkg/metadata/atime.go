package metadata

import "time"

// Mode is the simulated access-time mount option.
type Mode string

const (
	// Atime updates access times on every read.
	Atime Mode = "atime"

	// Noatime never updates access times.
	Noatime Mode = "noatime"

	// Relatime updates the access time only when it is older than the
	// modification or change time.
	Relatime Mode = "relatime"
)

// ShouldUpdateAccessTime reports whether a read should refresh the stored
// access time under the given mount mode. Relatime mirrors the kernel mount
// option: refresh only when the access time is strictly older than the
// modification time or the change time.
func ShouldUpdateAccessTime(mode Mode, atime, mtime, ctime time.Time) bool {
	switch mode {
	case Noatime:
		return false
	case Atime:
		return true
	default:
		// relatime, also the fallback for unknown modes
		return atime.Before(mtime) || atime.Before(ctime)
	}
}
