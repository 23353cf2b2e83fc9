// Package dirstate implements the on-disk dirstate format: a flat,
// NUL-delimited record file describing every path in a working tree and
// its state in each parent tree.
//
// The package is split in four parts: the dirblock ordering functions
// (pathcmp.go), the bisection primitives built on them (bisect.go), the
// row-region tokenizer (reader.go), and the file-level loader that owns
// the header and checksum (dirstate.go).
package dirstate

import "strings"

// CompareByDirs compares two paths directory by directory.
//
// This is equivalent to splitting both paths on '/' and comparing the
// resulting component lists: each component is compared separately
// instead of treating the path as one flat string. The difference shows
// on paths like "a-b" and "a/b": plain byte comparison puts "a-b" first
// ('-' < '/'), but in dirblock order "a/b" comes first because its first
// component "a" ends at the separator and a shorter component always
// precedes a longer one continuing past it.
//
// Returns a negative number if path1 sorts first, 0 if both paths are
// equal, and a positive number if path2 sorts first.
func CompareByDirs(path1, path2 string) int {
	if path1 == path2 {
		return 0
	}

	n := len(path1)
	if len(path2) < n {
		n = len(path2)
	}
	for i := 0; i < n; i++ {
		c1 := path1[i]
		c2 := path2[i]
		if c1 == c2 {
			continue
		}
		// A mismatch on a separator means one side's component ends
		// right where the other side's keeps going. The shorter
		// component sorts first.
		if c1 == '/' {
			return -1
		}
		if c2 == '/' {
			return 1
		}
		if c1 < c2 {
			return -1
		}
		return 1
	}
	// One path is a prefix of the other. The prefix sorts first, which
	// also covers the empty string sorting before everything.
	if len(path1) < len(path2) {
		return -1
	}
	return 1
}

// ComparePathByDirblock compares two full paths the way dirblock rows are
// sorted: first by the dirname in dirblock order, then by the basename as
// plain bytes. Rows inside one block belong to the same directory, so the
// basename comparison never needs to be component aware.
//
// Returns a negative number if path1 sorts first, 0 if both paths are
// equal, and a positive number if path2 sorts first.
func ComparePathByDirblock(path1, path2 string) int {
	if path1 == path2 {
		return 0
	}
	if path1 == "" {
		return -1
	}
	if path2 == "" {
		return 1
	}

	dirname1, basename1 := SplitBasename(path1)
	dirname2, basename2 := SplitBasename(path2)
	if c := CompareByDirs(dirname1, dirname2); c != 0 {
		return c
	}
	return strings.Compare(basename1, basename2)
}

// SplitBasename splits a path at its last separator. A path without a
// separator has an empty dirname.
func SplitBasename(path string) (dirname, basename string) {
	i := strings.LastIndexByte(path, '/')
	if i < 0 {
		return "", path
	}
	return path[:i], path[i+1:]
}
