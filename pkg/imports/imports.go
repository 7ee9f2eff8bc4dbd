// Package imports statically collects the module names imported by a
// package's JavaScript/TypeScript sources.
//
// The result feeds the phantom-dependency report: modules imported by
// source code but never declared in the manifest. Scanning is best
// effort and never fails; unparseable files simply contribute nothing.
package imports

import (
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// sourceExtensions are the file types scanned for import statements.
var sourceExtensions = map[string]bool{
	".js":  true,
	".mjs": true,
	".cjs": true,
	".ts":  true,
	".mts": true,
	".cts": true,
	".gjs": true,
	".gts": true,
}

// skipDirs are directory names never descended into.
var skipDirs = map[string]bool{
	"node_modules": true,
	".git":         true,
	"dist":         true,
	"tmp":          true,
	"declarations": true,
	".embroider":   true,
}

// importPatterns match the module specifier of static imports,
// re-exports, dynamic imports, and CommonJS requires.
var importPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?m)^\s*import\s+[^'"]*from\s+['"]([^'"]+)['"]`),
	regexp.MustCompile(`(?m)^\s*import\s+['"]([^'"]+)['"]`),
	regexp.MustCompile(`(?m)^\s*export\s+[^'"]*from\s+['"]([^'"]+)['"]`),
	regexp.MustCompile(`\bimport\s*\(\s*['"]([^'"]+)['"]\s*\)`),
	regexp.MustCompile(`\brequire\s*\(\s*['"]([^'"]+)['"]\s*\)`),
}

// Scan walks dir and returns the sorted set of distinct top-level module
// names referenced by import statements. Relative and absolute specifiers
// are ignored. Scan never fails: unreadable trees yield an empty result.
func Scan(dir string) []string {
	seen := make(map[string]bool)

	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable entry, move on
		}
		if d.IsDir() {
			if skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if !sourceExtensions[filepath.Ext(path)] {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		for _, name := range extract(string(data)) {
			seen[name] = true
		}
		return nil
	})

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// extract returns the top-level module names referenced in src.
func extract(src string) []string {
	var names []string
	for _, re := range importPatterns {
		for _, match := range re.FindAllStringSubmatch(src, -1) {
			if name, ok := moduleName(match[1]); ok {
				names = append(names, name)
			}
		}
	}
	return names
}

// moduleName reduces an import specifier to its package name:
// "lodash/merge" becomes "lodash"; scoped specifiers keep scope plus
// name, so "@ember/object/computed" becomes "@ember/object".
// Relative and absolute specifiers are rejected.
func moduleName(spec string) (string, bool) {
	if spec == "" || strings.HasPrefix(spec, ".") || strings.HasPrefix(spec, "/") {
		return "", false
	}

	parts := strings.Split(spec, "/")
	if strings.HasPrefix(spec, "@") {
		if len(parts) < 2 {
			return "", false
		}
		return parts[0] + "/" + parts[1], true
	}
	return parts[0], true
}
