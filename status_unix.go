//go:build linux || darwin

package frame

import "golang.org/x/sys/unix"

// diskSpace returns the total and available bytes of the file system
// holding dir.
func diskSpace(dir string) (total, free uint64, err error) {
	var st unix.Statfs_t
	if err := unix.Statfs(dir, &st); err != nil {
		return 0, 0, err
	}
	bsize := uint64(st.Bsize)
	return st.Blocks * bsize, st.Bavail * bsize, nil
}
