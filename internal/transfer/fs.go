package transfer

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// FSRemote copies artifacts into a local directory. Used by the -inmem local
// mode and by tests.
type FSRemote struct {
	dir string
}

func NewFSRemote(dir string) (*FSRemote, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure remote dir: %w", err)
	}
	return &FSRemote{dir: dir}, nil
}

func (r *FSRemote) Upload(_ context.Context, localPath, remoteName string) error {
	src, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open artifact: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(filepath.Join(r.dir, remoteName))
	if err != nil {
		return fmt.Errorf("create remote copy: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return fmt.Errorf("copy artifact: %w", err)
	}
	return dst.Close()
}
