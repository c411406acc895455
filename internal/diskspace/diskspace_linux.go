//go:build linux

package diskspace

import "golang.org/x/sys/unix"

// FreeBytes returns free bytes available to unprivileged users on the
// filesystem containing path.
func FreeBytes(path string) (uint64, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return 0, err
	}
	return st.Bavail * uint64(st.Bsize), nil
}

// UsedAndFreeGB returns (used_gb, free_gb) for the filesystem containing
// path.
func UsedAndFreeGB(path string) (usedGB, freeGB float64, err error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return 0, 0, err
	}
	blockSize := uint64(st.Bsize)
	total := st.Blocks * blockSize
	free := st.Bavail * blockSize
	used := total - free
	const gib = 1024 * 1024 * 1024
	return float64(used) / gib, float64(free) / gib, nil
}
