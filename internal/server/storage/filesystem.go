package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// FileSystemStore keeps file bytes on the local filesystem. Meant for
// development; production deployments use MinioStore.
type FileSystemStore struct {
	basePath string
}

// NewFileSystemStore creates a filesystem backend rooted at basePath,
// creating the directory if it does not exist.
func NewFileSystemStore(basePath string) (*FileSystemStore, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory %s: %w", basePath, err)
	}
	return &FileSystemStore{basePath: basePath}, nil
}

// Save writes an object to disk. The content type is ignored; the
// filesystem backend keys purely by object name.
func (fs *FileSystemStore) Save(ctx context.Context, objectName string, data io.Reader, size int64, contentType string) error {
	path := fs.objectPath(objectName)

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file %s: %w", path, err)
	}
	defer file.Close()

	if _, err := io.Copy(file, data); err != nil {
		os.Remove(path) // drop the partial write
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

// Delete removes a stored object. Deleting a missing object is not an error.
func (fs *FileSystemStore) Delete(ctx context.Context, objectName string) error {
	path := fs.objectPath(objectName)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file %s: %w", path, err)
	}
	return nil
}

// Ping verifies the storage directory is still accessible.
func (fs *FileSystemStore) Ping(ctx context.Context) error {
	if _, err := os.Stat(fs.basePath); err != nil {
		return fmt.Errorf("storage directory inaccessible: %w", err)
	}
	return nil
}

func (fs *FileSystemStore) objectPath(objectName string) string {
	// Object names are service-generated (uuid + extension); Base guards
	// against anything path-like slipping through.
	return filepath.Join(fs.basePath, filepath.Base(objectName))
}
