// ABOUTME: Helpers for materializing directory trees on a billy filesystem.
// ABOUTME: Used by tests and the fake agent to build synthetic trees.

package lister

import (
	"fmt"
	"path"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
)

// Build creates each of paths on fs. Paths ending in "/" become
// directories, anything else becomes an empty file; parents are created as
// needed.
func Build(fs billy.Filesystem, paths ...string) error {
	for _, p := range paths {
		if strings.HasSuffix(p, "/") {
			if err := fs.MkdirAll(p, 0o755); err != nil {
				return fmt.Errorf("mkdir %q: %w", p, err)
			}
			continue
		}
		if err := fs.MkdirAll(path.Dir(p), 0o755); err != nil {
			return fmt.Errorf("mkdir %q: %w", path.Dir(p), err)
		}
		if err := util.WriteFile(fs, p, nil, 0o644); err != nil {
			return fmt.Errorf("write %q: %w", p, err)
		}
	}
	return nil
}

// Synthesize builds a balanced tree under root with the given depth. Each
// directory holds fanout subdirectories and files regular files. It returns
// the number of directories created, root included.
func Synthesize(fs billy.Filesystem, root string, depth, fanout, files int) (int, error) {
	if err := fs.MkdirAll(root, 0o755); err != nil {
		return 0, fmt.Errorf("mkdir %q: %w", root, err)
	}
	count := 1

	for i := 0; i < files; i++ {
		name := path.Join(root, fmt.Sprintf("file-%03d.dat", i))
		if err := util.WriteFile(fs, name, nil, 0o644); err != nil {
			return count, fmt.Errorf("write %q: %w", name, err)
		}
	}
	if depth == 0 {
		return count, nil
	}

	for i := 0; i < fanout; i++ {
		n, err := Synthesize(fs, path.Join(root, fmt.Sprintf("dir-%03d", i)), depth-1, fanout, files)
		count += n
		if err != nil {
			return count, err
		}
	}
	return count, nil
}
