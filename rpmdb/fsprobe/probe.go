// Package fsprobe answers the two filesystem questions fingerprinting needs:
// what does a path look like without following a final symlink, and where
// does a path lead once its symlinks are followed inside a root.
package fsprobe

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"

	securejoin "github.com/cyphar/filepath-securejoin"
)

// Info is the identity of one filesystem object.
type Info struct {
	Dev       uint64
	Ino       uint64
	IsDir     bool
	IsSymlink bool
}

// Probe inspects the filesystem.
type Probe interface {
	// LinkStat describes path without following a final symlink.
	LinkStat(path string) (Info, error)
	// Resolve maps the absolute path into root and evaluates every symlink
	// along it as if root were "/". Absolute link targets land back under
	// root. Components that do not exist are kept as written.
	Resolve(root, path string) (string, error)
}

// OS probes the real filesystem.
type OS struct{}

// NewOS returns the real-filesystem probe.
func NewOS() OS { return OS{} }

// Resolve implements Probe.
func (OS) Resolve(root, path string) (string, error) {
	return securejoin.SecureJoin(cleanRoot(root), path)
}

// IsNotFound reports whether err means the object does not exist (yet).
func IsNotFound(err error) bool {
	return errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ENOTDIR)
}

// Stat resolves path inside root and describes what it leads to. It also
// returns the resolved host path.
func Stat(p Probe, root, path string) (Info, string, error) {
	resolved, err := p.Resolve(root, path)
	if err != nil {
		return Info{}, "", err
	}
	info, err := p.LinkStat(resolved)
	if err != nil {
		return Info{}, resolved, err
	}
	return info, resolved, nil
}

func cleanRoot(root string) string {
	if root == "" {
		return string(filepath.Separator)
	}
	return filepath.Clean(root)
}

func pathError(op, path string, err error) error {
	return &os.PathError{Op: op, Path: path, Err: err}
}
