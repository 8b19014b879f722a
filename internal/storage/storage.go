package storage

import (
	"context"
	"io"
)

// ObjectStore writes one blob per exported artifact.
type ObjectStore interface {
	Put(ctx context.Context, key string, body io.Reader) error
}
