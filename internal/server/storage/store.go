package storage

import (
	"context"
	"io"
)

// Store is the object storage backend holding file bytes. Metadata
// lives in Postgres; only content goes here, keyed by object name.
type Store interface {
	Save(ctx context.Context, objectName string, data io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, objectName string) error
	Ping(ctx context.Context) error
}
