//go:build !unix

package fsprobe

import (
	"os"
)

// LinkStat implements Probe without device or inode numbers. Every directory
// reports the zero identity, and fingerprints compare resolved paths instead.
func (OS) LinkStat(path string) (Info, error) {
	fi, err := os.Lstat(path)
	if err != nil {
		return Info{}, err
	}
	return Info{
		IsDir:     fi.IsDir(),
		IsSymlink: fi.Mode()&os.ModeSymlink != 0,
	}, nil
}
