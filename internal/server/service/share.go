package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"secureshare/internal/server/database"
	"secureshare/internal/server/notify"
)

// shareStore is the slice of the repository the share flows need.
type shareStore interface {
	GetFileByID(ctx context.Context, id string) (*database.File, error)
	CreateShare(ctx context.Context, s *database.Share) error
	GetShareByToken(ctx context.Context, token string) (*database.Share, error)
	IncrementDownloadCount(ctx context.Context, shareID string) error
	CreateDownload(ctx context.Context, d *database.Download) error
}

// sharePasswordCost is the bcrypt cost for share passwords.
const sharePasswordCost = 10

// CreateShareRequest describes a new share for an owned file.
type CreateShareRequest struct {
	FileID       string
	Password     string // empty means no password gate
	ExpiresAt    *time.Time
	MaxDownloads *int
}

// ShareInfo is the public view of a share returned to its creator.
type ShareInfo struct {
	ID           string     `json:"id"`
	LinkToken    string     `json:"link_token"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	MaxDownloads *int       `json:"max_downloads,omitempty"`
}

// SharePublic is what a share link visitor may see about the share.
type SharePublic struct {
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	MaxDownloads  *int       `json:"max_downloads,omitempty"`
	DownloadCount int        `json:"download_count"`
	Permissions   []string   `json:"permissions"`
}

// ResolvedShare is the successful outcome of share resolution: public
// share fields plus public file metadata, never internals.
type ResolvedShare struct {
	Share SharePublic `json:"share"`
	File  FileInfo    `json:"file"`
}

// ShareService creates and resolves share links and records downloads.
type ShareService struct {
	repo     shareStore
	notifier Notifier
}

// NewShareService creates a share service.
func NewShareService(repo shareStore, notifier Notifier) *ShareService {
	return &ShareService{repo: repo, notifier: notifier}
}

// CreateShare mints a share link for a file the actor owns. Only READY
// files are shareable: quarantined files are isolated and deleted files
// are gone.
func (s *ShareService) CreateShare(ctx context.Context, actorID string, req CreateShareRequest) (*ShareInfo, error) {
	file, err := s.repo.GetFileByID(ctx, req.FileID)
	if err != nil {
		return nil, err
	}
	if file.OwnerID != actorID || file.Status == database.FileDeleted {
		return nil, ErrFileNotFound
	}
	if file.Status == database.FileQuarantined {
		return nil, ErrFileQuarantined
	}
	if file.Status != database.FileReady {
		return nil, ErrFileNotFound
	}

	token, err := generateToken(shareTokenLength)
	if err != nil {
		return nil, err
	}

	var passwordHash *string
	if req.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), sharePasswordCost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash share password: %w", err)
		}
		h := string(hash)
		passwordHash = &h
	}

	share := &database.Share{
		ID:           uuid.New().String(),
		FileID:       file.ID,
		CreatedBy:    actorID,
		LinkToken:    token,
		PasswordHash: passwordHash,
		ExpiresAt:    req.ExpiresAt,
		MaxDownloads: req.MaxDownloads,
		Permissions:  []string{"VIEW", "DOWNLOAD"},
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.repo.CreateShare(ctx, share); err != nil {
		return nil, err
	}

	if err := s.notifier.Notify(ctx, actorID, notify.TypeFileShared, "File shared",
		fmt.Sprintf("A share link was created for %s", file.OriginalName),
		map[string]any{"share_id": share.ID, "file_id": file.ID}); err != nil {
		slog.Error("failed to create share notification", "share_id", share.ID, "error", err)
	}

	slog.Info("share created",
		"share_id", share.ID,
		"file_id", file.ID,
		"has_password", passwordHash != nil,
		"max_downloads", req.MaxDownloads,
	)

	return &ShareInfo{
		ID:           share.ID,
		LinkToken:    share.LinkToken,
		ExpiresAt:    share.ExpiresAt,
		MaxDownloads: share.MaxDownloads,
	}, nil
}

// Resolve validates a share token and optional candidate password and
// returns the share's public view. Checks run in a fixed order: token,
// expiry, download limit, then password, so an expired or exhausted
// link never reveals whether a candidate password would have matched.
func (s *ShareService) Resolve(ctx context.Context, token, password string) (*ResolvedShare, error) {
	share, err := s.repo.GetShareByToken(ctx, token)
	if err != nil {
		return nil, mapShareErr(err)
	}

	if share.ExpiresAt != nil && share.ExpiresAt.Before(time.Now()) {
		return nil, ErrShareExpired
	}

	if share.MaxDownloads != nil && share.DownloadCount >= *share.MaxDownloads {
		return nil, ErrDownloadLimitReached
	}

	if share.PasswordHash != nil {
		if password == "" {
			return nil, ErrPasswordRequired
		}
		if err := bcrypt.CompareHashAndPassword([]byte(*share.PasswordHash), []byte(password)); err != nil {
			return nil, ErrPasswordIncorrect
		}
	}

	file, err := s.repo.GetFileByID(ctx, share.FileID)
	if err != nil {
		return nil, mapShareErr(err)
	}
	// A quarantined or deleted target makes the link dead, same as an
	// unknown token.
	if file.Status != database.FileReady {
		return nil, ErrShareNotFound
	}

	return &ResolvedShare{
		Share: SharePublic{
			ExpiresAt:     share.ExpiresAt,
			MaxDownloads:  share.MaxDownloads,
			DownloadCount: share.DownloadCount,
			Permissions:   share.Permissions,
		},
		File: *publicFileInfo(file),
	}, nil
}

// RecordDownload bumps the share's download counter and appends one
// audit row. The increment is a storage-level compare-and-set, so
// concurrent recorders cannot push the counter past the limit.
func (s *ShareService) RecordDownload(ctx context.Context, token, ip, userAgent string) error {
	share, err := s.repo.GetShareByToken(ctx, token)
	if err != nil {
		return mapShareErr(err)
	}

	if share.ExpiresAt != nil && share.ExpiresAt.Before(time.Now()) {
		return ErrShareExpired
	}

	// Same liveness rule as Resolve: a quarantined or deleted target
	// makes the link dead.
	file, err := s.repo.GetFileByID(ctx, share.FileID)
	if err != nil {
		return mapShareErr(err)
	}
	if file.Status != database.FileReady {
		return ErrShareNotFound
	}

	if err := s.repo.IncrementDownloadCount(ctx, share.ID); err != nil {
		return mapShareErr(err)
	}

	if err := s.repo.CreateDownload(ctx, &database.Download{
		ID:           uuid.New().String(),
		ShareID:      share.ID,
		FileID:       share.FileID,
		IPAddress:    ip,
		UserAgent:    userAgent,
		DownloadedAt: time.Now().UTC(),
	}); err != nil {
		return err
	}

	slog.Info("download recorded", "share_id", share.ID, "file_id", share.FileID)
	return nil
}

// mapShareErr translates repository sentinels into service sentinels.
func mapShareErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, database.ErrShareNotFound):
		return ErrShareNotFound
	case errors.Is(err, database.ErrFileNotFound):
		return ErrShareNotFound
	case errors.Is(err, database.ErrLimitExhausted):
		return ErrDownloadLimitReached
	default:
		return err
	}
}
