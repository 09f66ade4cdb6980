//go:build unix

package fsprobe

import (
	"golang.org/x/sys/unix"
)

// LinkStat implements Probe with lstat(2).
func (OS) LinkStat(path string) (Info, error) {
	var st unix.Stat_t
	if err := unix.Lstat(path, &st); err != nil {
		return Info{}, pathError("lstat", path, err)
	}
	mode := uint32(st.Mode) & unix.S_IFMT
	return Info{
		Dev:       uint64(st.Dev),
		Ino:       uint64(st.Ino),
		IsDir:     mode == unix.S_IFDIR,
		IsSymlink: mode == unix.S_IFLNK,
	}, nil
}
