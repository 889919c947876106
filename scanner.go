package main

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

// ScanError records a path the directory walk could not read. The walk
// continues past it.
type ScanError struct {
	Path string
	Err  error
}

// scanMarkdown walks root recursively and returns every *.md file below
// it in lexicographic full-path order, so batch runs are reproducible.
// Symbolic links are not followed (a linked directory could cycle back
// into the tree). Unreadable subdirectories are recorded per path and do
// not abort the remaining scan.
func scanMarkdown(root string) ([]string, []ScanError) {
	var paths []string
	var scanErrs []ScanError

	filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			scanErrs = append(scanErrs, ScanError{Path: path, Err: err})
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if strings.EqualFold(filepath.Ext(path), ".md") {
			paths = append(paths, path)
		}
		return nil
	})

	sort.Strings(paths)
	return paths, scanErrs
}
