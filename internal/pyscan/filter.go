package pyscan

import (
	"path/filepath"
	"strings"

	"github.com/unbound-force/paramcheck/internal/config"
)

// Filter returns true if the given relative path should be analyzed,
// based on the include/exclude patterns in cfg.
//
// Logic:
//  1. If include patterns are set, the file must match at least one.
//  2. If the file matches any exclude pattern, it is excluded.
//  3. Otherwise, the file is included.
func Filter(rel string, cfg *config.Config) bool {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	// Normalize separators to forward slash for matching consistency.
	rel = filepath.ToSlash(rel)

	if len(cfg.Include) > 0 {
		matched := false
		for _, pattern := range cfg.Include {
			if matchGlob(pattern, rel) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	for _, pattern := range cfg.Exclude {
		if matchGlob(pattern, rel) {
			return false
		}
	}

	return true
}

// matchGlob matches a path against a glob pattern. It supports
// filepath.Match syntax and "dir/**" patterns, which match anything
// under dir at any depth.
func matchGlob(pattern, rel string) bool {
	if strings.HasSuffix(pattern, "/**") {
		prefix := strings.TrimSuffix(pattern, "/**")
		if rel == prefix || strings.HasPrefix(rel, prefix+"/") {
			return true
		}
		// "build/**" also covers a nested "pkg/build/".
		if !strings.Contains(prefix, "/") {
			return strings.Contains("/"+rel, "/"+prefix+"/")
		}
		return false
	}

	matched, err := filepath.Match(pattern, rel)
	if err != nil {
		return false
	}
	if matched {
		return true
	}

	// Patterns without a separator also match the base name.
	if !strings.Contains(pattern, "/") {
		matched, err = filepath.Match(pattern, filepath.Base(rel))
		if err != nil {
			return false
		}
		return matched
	}

	return false
}
