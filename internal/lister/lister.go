// ABOUTME: Local directory lister that classifies entries as dir, file, or skip.
// ABOUTME: Backed by a go-billy filesystem (osfs on agents, memfs in tests).

package lister

import (
	"fmt"
	"os"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/osfs"
)

// Kind classifies a directory entry.
type Kind int

const (
	// KindFile is a regular file.
	KindFile Kind = iota
	// KindDir is a directory.
	KindDir
	// KindSkip is anything else: symlinks, devices, sockets, pipes.
	KindSkip
)

// String returns a short name for the kind.
func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindDir:
		return "dir"
	default:
		return "skip"
	}
}

// Entry is a single immediate child of a listed directory.
type Entry struct {
	Name string
	Kind Kind
}

// Lister lists the immediate entries of a directory.
type Lister interface {
	List(path string) ([]Entry, error)
}

// FS lists directories on a go-billy filesystem.
type FS struct {
	fs billy.Filesystem
}

// New returns an FS backed by the given filesystem.
func New(fs billy.Filesystem) *FS {
	return &FS{fs: fs}
}

// NewOS returns an FS over the host filesystem. Paths are absolute.
func NewOS() *FS {
	return New(osfs.New("/", osfs.WithBoundOS()))
}

// NewMemory returns an FS over an empty in-memory filesystem.
func NewMemory() *FS {
	return New(memfs.New())
}

// Filesystem exposes the underlying filesystem, mostly for populating memfs trees.
func (l *FS) Filesystem() billy.Filesystem {
	return l.fs
}

// List returns the entries of path in filesystem enumeration order.
func (l *FS) List(path string) ([]Entry, error) {
	infos, err := l.fs.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("readdir %q: %w", path, err)
	}

	entries := make([]Entry, 0, len(infos))
	for _, info := range infos {
		entries = append(entries, Entry{
			Name: info.Name(),
			Kind: classify(info.Mode()),
		})
	}
	return entries, nil
}

func classify(mode os.FileMode) Kind {
	switch {
	case mode&os.ModeSymlink != 0:
		return KindSkip
	case mode.IsDir():
		return KindDir
	case mode.IsRegular():
		return KindFile
	default:
		return KindSkip
	}
}
