// Package assets resolves packaged resources, such as the model file, to
// filesystem paths.
package assets

import (
	"os"
	"path/filepath"
)

// Bundle resolves a logical resource name and extension to a path.
type Bundle interface {
	Path(name, ext string) (string, bool)
}

// DirBundle looks resources up as <Root>/<name>.<ext>.
type DirBundle struct {
	Root string
}

func NewDirBundle(root string) *DirBundle {
	return &DirBundle{Root: root}
}

func (b *DirBundle) Path(name, ext string) (string, bool) {
	file := name
	if ext != "" {
		file = name + "." + ext
	}
	path := filepath.Join(b.Root, file)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return "", false
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return path, true
}
