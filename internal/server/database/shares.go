package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

const shareColumns = `id, file_id, created_by, link_token, password_hash,
	expires_at, max_downloads, download_count, permissions, created_at`

func scanShareRow(row pgx.Row) (*Share, error) {
	s := &Share{}
	err := row.Scan(
		&s.ID,
		&s.FileID,
		&s.CreatedBy,
		&s.LinkToken,
		&s.PasswordHash,
		&s.ExpiresAt,
		&s.MaxDownloads,
		&s.DownloadCount,
		&s.Permissions,
		&s.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// CreateShare inserts a new share record.
func (r *Repository) CreateShare(ctx context.Context, s *Share) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO shares (
			id, file_id, created_by, link_token, password_hash,
			expires_at, max_downloads, download_count, permissions, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		s.ID,
		s.FileID,
		s.CreatedBy,
		s.LinkToken,
		s.PasswordHash,
		s.ExpiresAt,
		s.MaxDownloads,
		s.DownloadCount,
		s.Permissions,
		s.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create share: %w", err)
	}
	return nil
}

// GetShareByToken retrieves a share by its link token.
func (r *Repository) GetShareByToken(ctx context.Context, token string) (*Share, error) {
	s, err := scanShareRow(r.db.Pool.QueryRow(ctx,
		"SELECT "+shareColumns+" FROM shares WHERE link_token = $1", token))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrShareNotFound
		}
		return nil, fmt.Errorf("failed to get share: %w", err)
	}
	return s, nil
}

// IncrementDownloadCount atomically bumps a share's download counter,
// refusing to push it past max_downloads when a limit is set. The
// compare-and-set lives in the WHERE clause so concurrent recorders
// cannot race past the limit.
func (r *Repository) IncrementDownloadCount(ctx context.Context, shareID string) error {
	tag, err := r.db.Pool.Exec(ctx, `
		UPDATE shares SET download_count = download_count + 1
		WHERE id = $1 AND (max_downloads IS NULL OR download_count < max_downloads)
	`, shareID)
	if err != nil {
		return fmt.Errorf("failed to increment download count: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := r.db.Pool.QueryRow(ctx,
			"SELECT EXISTS(SELECT 1 FROM shares WHERE id = $1)", shareID,
		).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check share existence: %w", err)
		}
		if !exists {
			return ErrShareNotFound
		}
		return ErrLimitExhausted
	}
	return nil
}

// CreateDownload appends a download audit row.
func (r *Repository) CreateDownload(ctx context.Context, d *Download) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO downloads (id, share_id, file_id, ip_address, user_agent, downloaded_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, d.ID, d.ShareID, d.FileID, d.IPAddress, d.UserAgent, d.DownloadedAt)
	if err != nil {
		return fmt.Errorf("failed to create download record: %w", err)
	}
	return nil
}
