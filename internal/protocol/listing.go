// ABOUTME: Encoding and decoding of directory listing bodies.
// ABOUTME: Directories carry a trailing "/", skip-marked entries a trailing "*".

package protocol

import (
	"fmt"
	"strings"
)

const (
	// DirSuffix marks a directory entry.
	DirSuffix = "/"
	// SkipMarker marks an entry that is neither file nor directory.
	SkipMarker = "*"
)

// Body accumulates listing lines in the order they are added. The zero
// value is an empty body.
type Body struct {
	b strings.Builder
}

// Dir adds a directory line.
func (b *Body) Dir(name string) {
	b.line(name, DirSuffix)
}

// File adds a file line.
func (b *Body) File(name string) {
	b.line(name, "")
}

// Skip adds a skip-marked line.
func (b *Body) Skip(name string) {
	b.line(name, SkipMarker)
}

func (b *Body) line(name, suffix string) {
	b.b.WriteString(name)
	b.b.WriteString(suffix)
	b.b.WriteByte('\n')
}

// String returns the encoded body.
func (b *Body) String() string {
	return b.b.String()
}

// EncodeBody renders a listing body from grouped names: directories, then
// files, then skip-marked entries.
func EncodeBody(dirs, files, skipped []string) string {
	var b Body
	for _, d := range dirs {
		b.Dir(d)
	}
	for _, f := range files {
		b.File(f)
	}
	for _, s := range skipped {
		b.Skip(s)
	}
	return b.String()
}

// DecodeBody splits a listing body into directory and file names.
func DecodeBody(body string) (dirs, files []string) {
	for _, item := range strings.Split(body, "\n") {
		item = strings.TrimSuffix(item, "\r")
		switch {
		case item == "", item == "./", item == "../":
			continue
		case strings.HasSuffix(item, DirSuffix):
			dirs = append(dirs, strings.TrimRight(item, DirSuffix))
		case strings.HasSuffix(item, SkipMarker):
			continue
		default:
			files = append(files, item)
		}
	}
	return dirs, files
}

// NotFoundBody is the diagnostic body sent with a 404.
func NotFoundBody(path string, err error) string {
	return fmt.Sprintf("listdir exception: %s (%v)\n", path, err)
}
