package fprint

import (
	"path/filepath"
	"strings"
)

// canonicalize cleans a directory name into the slash-separated absolute form
// the cache keys and walks on.
func canonicalize(dir, cwd string) string {
	p := strings.ReplaceAll(dir, "\\", "/")
	if p == "" {
		p = "."
	}
	if !strings.HasPrefix(p, "/") {
		p = cwd + "/" + p
	}
	// filepath.Clean preserves platform separators; convert after cleaning.
	p = filepath.ToSlash(filepath.Clean(p))
	// Drop trailing slash except for root
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimSuffix(p, "/")
	}
	return p
}

// parent returns the directory above p, or "" when p is the root.
func parent(p string) string {
	if p == "/" || p == "" {
		return ""
	}
	i := strings.LastIndexByte(p, '/')
	if i <= 0 {
		return "/"
	}
	return p[:i]
}

// remainder returns what is left of full below prefix, without a leading
// slash.
func remainder(full, prefix string) string {
	rest := strings.TrimPrefix(full, prefix)
	return strings.TrimPrefix(rest, "/")
}

// splitPath splits a file path into its directory and base name.
func splitPath(path string) (dir, base string) {
	i := strings.LastIndexByte(path, '/')
	if i < 0 {
		return ".", path
	}
	if i == 0 {
		return "/", path[1:]
	}
	return path[:i], path[i+1:]
}
