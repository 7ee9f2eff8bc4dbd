// Package scratch provisions uniquely-named temporary working
// directories for migration staging.
package scratch

import (
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Dir is a scratch directory. The creating caller owns its lifecycle
// and must call Remove on both success and failure paths.
type Dir struct {
	Path string
}

// New creates a fresh, uniquely-named scratch directory under the
// system temp dir. The uuid suffix guarantees two concurrent runs
// never share a staging area.
func New(prefix string) (*Dir, error) {
	path := filepath.Join(os.TempDir(), prefix+"-"+uuid.NewString())
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, err
	}
	return &Dir{Path: path}, nil
}

// Remove deletes the scratch directory and everything in it.
func (d *Dir) Remove() error {
	return os.RemoveAll(d.Path)
}
