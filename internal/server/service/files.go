package service

import (
	"context"
	"errors"
	"log/slog"

	"secureshare/internal/server/database"
	"secureshare/internal/server/storage"
)

type fileStore interface {
	GetFileByID(ctx context.Context, id string) (*database.File, error)
	TransitionFileStatus(ctx context.Context, id string, to database.FileStatus) error
	BumpProfile(ctx context.Context, userID string, d database.ProfileDelta) error
}

// FileService serves metadata reads and deletion for stored files.
type FileService struct {
	repo  fileStore
	store storage.Store
}

// NewFileService creates a file service.
func NewFileService(repo fileStore, store storage.Store) *FileService {
	return &FileService{repo: repo, store: store}
}

// GetFile returns the public metadata of one of the actor's files.
func (s *FileService) GetFile(ctx context.Context, actorID, fileID string) (*FileInfo, error) {
	file, err := s.lookup(ctx, actorID, fileID)
	if err != nil {
		return nil, err
	}
	return publicFileInfo(file), nil
}

// DeleteFile soft-deletes a file: the row transitions to DELETED and
// the stored bytes are removed best-effort. Quarantined files may be
// deleted; deleted files stay deleted.
func (s *FileService) DeleteFile(ctx context.Context, actorID, fileID string) error {
	file, err := s.lookup(ctx, actorID, fileID)
	if err != nil {
		return err
	}

	if err := s.repo.TransitionFileStatus(ctx, file.ID, database.FileDeleted); err != nil {
		if errors.Is(err, database.ErrInvalidTransition) || errors.Is(err, database.ErrFileNotFound) {
			return ErrFileNotFound
		}
		return err
	}

	if err := s.repo.BumpProfile(ctx, actorID, database.ProfileDelta{
		Files:   -1,
		Storage: -file.Size,
	}); err != nil {
		slog.Error("failed to update profile counters", "user_id", actorID, "error", err)
	}

	// The row is the source of truth; orphaned objects are harmless
	// and can be swept out of band.
	if err := s.store.Delete(ctx, file.ObjectName); err != nil {
		slog.Warn("failed to delete stored object", "file_id", file.ID, "object", file.ObjectName, "error", err)
	}

	slog.Info("file deleted", "file_id", file.ID, "owner_id", actorID)
	return nil
}

func (s *FileService) lookup(ctx context.Context, actorID, fileID string) (*database.File, error) {
	file, err := s.repo.GetFileByID(ctx, fileID)
	if err != nil {
		if errors.Is(err, database.ErrFileNotFound) {
			return nil, ErrFileNotFound
		}
		return nil, err
	}
	if file.OwnerID != actorID || file.Status == database.FileDeleted {
		return nil, ErrFileNotFound
	}
	return file, nil
}
