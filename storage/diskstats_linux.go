//go:build linux

package storage

import "syscall"

// diskStats reports the available and total bytes of the filesystem holding
// path. Bavail is used instead of Bfree so the root-reserved blocks an
// unprivileged process cannot touch are not counted as available.
func diskStats(path string) (avail, total uint64) {
	var st syscall.Statfs_t
	if err := syscall.Statfs(path, &st); err != nil {
		return 0, 0
	}
	bsize := uint64(st.Bsize)
	return st.Bavail * bsize, st.Blocks * bsize
}
