package preflight

import "syscall"

// minFreeBytes is the free space floor for the disk check (100MB).
const minFreeBytes = 100 * 1024 * 1024

// diskSpaceAvailable reports whether the volume holding path has room
// for the index artifacts.
func diskSpaceAvailable(path string) bool {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return false
	}
	return stat.Bavail*uint64(stat.Bsize) >= minFreeBytes
}
