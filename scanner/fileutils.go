package scanner

import (
	"path/filepath"
	"strings"

	"imagematch/config"
)

type extensionSet map[string]struct{}

func newExtensionSet(exts []string) extensionSet {
	if len(exts) == 0 {
		exts = config.DefaultExtensions
	}
	set := make(extensionSet, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		set[e] = struct{}{}
	}
	return set
}

func (s extensionSet) matches(path string) bool {
	_, ok := s[strings.ToLower(filepath.Ext(path))]
	return ok
}

// dedupKey identifies siblings that differ only in extension.
func dedupKey(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path))
}

// resolveExcluded turns configured exclusions into clean absolute paths.
func resolveExcluded(root string, dirs []string) []string {
	out := make([]string, 0, len(dirs))
	for _, d := range dirs {
		if d == "" {
			continue
		}
		if !filepath.IsAbs(d) {
			d = filepath.Join(root, d)
		}
		out = append(out, filepath.Clean(d))
	}
	return out
}

// isExcluded matches whole path components: /a/node_modules excludes
// /a/node_modules/x but not /a/node_modules2.
func isExcluded(path string, excluded []string) bool {
	for _, ex := range excluded {
		if path == ex || strings.HasPrefix(path, ex+string(filepath.Separator)) {
			return true
		}
	}
	return false
}
