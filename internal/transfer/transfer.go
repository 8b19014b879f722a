package transfer

import (
	"context"
)

// Remote transfers one local artifact to the remote file endpoint.
type Remote interface {
	Upload(ctx context.Context, localPath, remoteName string) error
}
