// Package header holds the installed package metadata the database indexes.
//
// Only the fields identity resolution reads are modeled. File lists are kept
// in the compressed form package databases use: every file is a base name
// plus an index into a table of directory names that end in '/'.
package header

import (
	"fmt"
	"strconv"
	"strings"
)

// Tag identifies a header field. The values follow the classic tag numbers so
// index names stay recognizable in stores and logs.
type Tag uint32

const (
	TagName        Tag = 1000
	TagVersion     Tag = 1001
	TagRelease     Tag = 1002
	TagEpoch       Tag = 1003
	TagArch        Tag = 1022
	TagProvideName Tag = 1047
	TagRequireName Tag = 1049
	TagDirIndexes  Tag = 1116
	TagBaseNames   Tag = 1117
	TagDirNames    Tag = 1118
)

var tagNames = map[Tag]string{
	TagName:        "Name",
	TagVersion:     "Version",
	TagRelease:     "Release",
	TagEpoch:       "Epoch",
	TagArch:        "Arch",
	TagProvideName: "Providename",
	TagRequireName: "Requirename",
	TagDirIndexes:  "Dirindexes",
	TagBaseNames:   "Basenames",
	TagDirNames:    "Dirnames",
}

func (t Tag) String() string {
	if n, ok := tagNames[t]; ok {
		return n
	}
	return "Tag(" + strconv.FormatUint(uint64(t), 10) + ")"
}

// Accessor reads single string values out of a header.
type Accessor interface {
	GetString(tag Tag) (string, bool)
}

// Header is one installed package instance.
type Header struct {
	Name     string
	Epoch    uint32
	HasEpoch bool
	Version  string
	Release  string
	Arch     string

	BaseNames  []string
	DirNames   []string
	DirIndexes []uint32

	Provides []string
	Requires []string
}

// GetString implements Accessor for the scalar string tags.
func (h *Header) GetString(tag Tag) (string, bool) {
	switch tag {
	case TagName:
		return h.Name, true
	case TagVersion:
		return h.Version, true
	case TagRelease:
		return h.Release, true
	case TagArch:
		return h.Arch, h.Arch != ""
	case TagEpoch:
		if !h.HasEpoch {
			return "", false
		}
		return strconv.FormatUint(uint64(h.Epoch), 10), true
	}
	return "", false
}

// Strings returns the values of an array tag, nil for anything else.
func (h *Header) Strings(tag Tag) []string {
	switch tag {
	case TagName:
		return []string{h.Name}
	case TagBaseNames:
		return h.BaseNames
	case TagDirNames:
		return h.DirNames
	case TagProvideName:
		return h.Provides
	case TagRequireName:
		return h.Requires
	}
	return nil
}

// FileCount returns the number of files the package owns.
func (h *Header) FileCount() int { return len(h.BaseNames) }

// DirName returns the directory of file i, with its trailing slash.
func (h *Header) DirName(i int) string {
	if i < 0 || i >= len(h.DirIndexes) {
		return ""
	}
	d := h.DirIndexes[i]
	if int(d) >= len(h.DirNames) {
		return ""
	}
	return h.DirNames[d]
}

// BaseName returns the base name of file i.
func (h *Header) BaseName(i int) string {
	if i < 0 || i >= len(h.BaseNames) {
		return ""
	}
	return h.BaseNames[i]
}

// FilePath returns the full path of file i.
func (h *Header) FilePath(i int) string {
	return h.DirName(i) + h.BaseName(i)
}

// SetFiles replaces the file list with paths, compressing them into shared
// directory names in order of first appearance.
func (h *Header) SetFiles(paths ...string) {
	h.BaseNames = make([]string, 0, len(paths))
	h.DirIndexes = make([]uint32, 0, len(paths))
	h.DirNames = h.DirNames[:0]

	seen := make(map[string]uint32)
	for _, p := range paths {
		cut := strings.LastIndexByte(p, '/') + 1
		dir, base := p[:cut], p[cut:]
		idx, ok := seen[dir]
		if !ok {
			idx = uint32(len(h.DirNames))
			seen[dir] = idx
			h.DirNames = append(h.DirNames, dir)
		}
		h.DirIndexes = append(h.DirIndexes, idx)
		h.BaseNames = append(h.BaseNames, base)
	}
}

// EVR formats [epoch:]version-release.
func (h *Header) EVR() string {
	if h.HasEpoch {
		return fmt.Sprintf("%d:%s-%s", h.Epoch, h.Version, h.Release)
	}
	return h.Version + "-" + h.Release
}

// NEVR formats name-[epoch:]version-release.
func (h *Header) NEVR() string {
	return h.Name + "-" + h.EVR()
}

// NEVRA is NEVR with the architecture appended when known.
func (h *Header) NEVRA() string {
	if h.Arch == "" {
		return h.NEVR()
	}
	return h.NEVR() + "." + h.Arch
}

func (h *Header) String() string { return h.NEVRA() }
