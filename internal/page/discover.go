package page

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/bmatcuk/doublestar/v4"
)

// Discover returns the files under root matched by any include glob and not
// rejected by excluded, sorted and joined onto root. Globs and the paths
// passed to excluded are slash-separated and relative to root.
func Discover(root string, include []string, excluded func(rel string) bool) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("pages root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("pages root %s is not a directory", root)
	}

	fsys := os.DirFS(root)
	seen := make(map[string]bool)
	var rels []string
	for _, pattern := range include {
		matches, err := doublestar.Glob(fsys, pattern, doublestar.WithFilesOnly(), doublestar.WithFailOnIOErrors())
		if err != nil {
			return nil, fmt.Errorf("glob %q: %w", pattern, err)
		}
		for _, rel := range matches {
			if seen[rel] || (excluded != nil && excluded(rel)) {
				continue
			}
			seen[rel] = true
			rels = append(rels, rel)
		}
	}
	slices.Sort(rels)

	out := make([]string, len(rels))
	for i, rel := range rels {
		out[i] = filepath.Join(root, filepath.FromSlash(rel))
	}
	return out, nil
}
