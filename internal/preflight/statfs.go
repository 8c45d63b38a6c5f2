package preflight

import "golang.org/x/sys/unix"

// statfsFreeBytes reports free disk space at path using the OS statfs call
// via x/sys/unix, which already ships in the pack as a docker-client
// transitive dependency — promoted here to a direct import rather than
// hand-rolling the syscall per-platform.
func statfsFreeBytes(path string) (int64, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return 0, err
	}
	return int64(st.Bavail) * int64(st.Bsize), nil
}
