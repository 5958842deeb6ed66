//go:build linux

package logcache

import "golang.org/x/sys/unix"

func totalMemory() (uint64, bool) {
	var info unix.Sysinfo_t
	if err := unix.Sysinfo(&info); err != nil {
		return 0, false
	}
	total := uint64(info.Totalram) * uint64(info.Unit)
	return total, total > 0
}
