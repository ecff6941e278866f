package scanner

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"imagematch/logging"
)

// ErrNotDirectory is returned when the scan root is not a directory.
var ErrNotDirectory = errors.New("not a directory")

// ScanOptions defines the options for scanning
type ScanOptions struct {
	// Extensions is the accepted extension set, lowercase with a leading dot.
	// Empty means config.DefaultExtensions.
	Extensions []string

	// ExcludedDirs are skipped together with everything below them. Relative
	// entries are resolved against the scan root. Matching is on whole path
	// components, not a string prefix: "node_modules" skips node_modules/
	// but not node_modules_old/. List each sibling to skip it too.
	ExcludedDirs []string
}

// Scan walks root recursively and returns the absolute paths of all image
// files, one per (directory, basename without extension) pair, sorted
// lexicographically. When several files share a basename the first one in
// walk order is kept. Unreadable subdirectories are logged and skipped.
func Scan(root string, options ScanOptions) ([]string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("error resolving %s: %w", root, err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("error accessing %s: %w", absRoot, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s: %w", absRoot, ErrNotDirectory)
	}

	exts := newExtensionSet(options.Extensions)
	excluded := resolveExcluded(absRoot, options.ExcludedDirs)

	seen := make(map[string]struct{})
	var files []string

	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == absRoot {
				return err
			}
			logging.LogWarning("Skipping %s: %v", path, err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			if isExcluded(path, excluded) {
				logging.DebugLog("Excluded directory: %s", path)
				return filepath.SkipDir
			}
			return nil
		}

		if !exts.matches(path) || !isFile(path, d) {
			return nil
		}

		key := dedupKey(path)
		if _, dup := seen[key]; dup {
			logging.DebugLog("Skipping sibling duplicate: %s", path)
			return nil
		}
		seen[key] = struct{}{}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error walking %s: %w", absRoot, err)
	}

	sort.Strings(files)
	if files == nil {
		files = []string{}
	}
	logging.DebugLog("Found %d image files under %s", len(files), absRoot)
	return files, nil
}

// isFile accepts regular files and symlinks that resolve to one.
func isFile(path string, d fs.DirEntry) bool {
	if d.Type().IsRegular() {
		return true
	}
	if d.Type()&fs.ModeSymlink == 0 {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
