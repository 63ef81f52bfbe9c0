package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const fileColumns = `id, owner_id, team_id, name, original_name, size,
	mime_type, extension, hash, object_name, status, created_at, updated_at`

func scanFileRow(row pgx.Row) (*File, error) {
	f := &File{}
	err := row.Scan(
		&f.ID,
		&f.OwnerID,
		&f.TeamID,
		&f.Name,
		&f.OriginalName,
		&f.Size,
		&f.MimeType,
		&f.Extension,
		&f.Hash,
		&f.ObjectName,
		&f.Status,
		&f.CreatedAt,
		&f.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// CreateFile inserts a new file record.
func (r *Repository) CreateFile(ctx context.Context, f *File) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO files (
			id, owner_id, team_id, name, original_name, size,
			mime_type, extension, hash, object_name, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`,
		f.ID,
		f.OwnerID,
		f.TeamID,
		f.Name,
		f.OriginalName,
		f.Size,
		f.MimeType,
		f.Extension,
		f.Hash,
		f.ObjectName,
		f.Status,
		f.CreatedAt,
		f.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateHash
		}
		return fmt.Errorf("failed to create file: %w", err)
	}
	return nil
}

// GetFileByID retrieves a file by its ID.
func (r *Repository) GetFileByID(ctx context.Context, id string) (*File, error) {
	f, err := scanFileRow(r.db.Pool.QueryRow(ctx,
		"SELECT "+fileColumns+" FROM files WHERE id = $1", id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrFileNotFound
		}
		return nil, fmt.Errorf("failed to get file: %w", err)
	}
	return f, nil
}

// FindFileByHash looks for a non-deleted file with the given content
// hash inside one ownership scope: the team when teamID is set,
// otherwise the user's personal library. Returns nil when no duplicate
// exists.
func (r *Repository) FindFileByHash(ctx context.Context, hash, ownerID string, teamID *string) (*File, error) {
	var row pgx.Row
	if teamID != nil {
		row = r.db.Pool.QueryRow(ctx,
			"SELECT "+fileColumns+` FROM files
			 WHERE hash = $1 AND team_id = $2 AND status <> $3 LIMIT 1`,
			hash, *teamID, FileDeleted)
	} else {
		row = r.db.Pool.QueryRow(ctx,
			"SELECT "+fileColumns+` FROM files
			 WHERE hash = $1 AND owner_id = $2 AND team_id IS NULL AND status <> $3 LIMIT 1`,
			hash, ownerID, FileDeleted)
	}

	f, err := scanFileRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // no duplicate, not an error
		}
		return nil, fmt.Errorf("failed to query file by hash: %w", err)
	}
	return f, nil
}

// TransitionFileStatus moves a file to a new lifecycle status. The
// update is guarded by the set of legal source states, so an illegal
// transition never reaches the row: the UPDATE matches nothing and
// ErrInvalidTransition is returned instead.
func (r *Repository) TransitionFileStatus(ctx context.Context, id string, to FileStatus) error {
	sources := transitionSources(to)
	if len(sources) == 0 {
		return ErrInvalidTransition
	}

	tag, err := r.db.Pool.Exec(ctx, `
		UPDATE files SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = ANY($3)
	`, id, to, sources)
	if err != nil {
		return fmt.Errorf("failed to transition file status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Distinguish a missing row from an illegal transition.
		var exists bool
		if err := r.db.Pool.QueryRow(ctx,
			"SELECT EXISTS(SELECT 1 FROM files WHERE id = $1)", id,
		).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check file existence: %w", err)
		}
		if !exists {
			return ErrFileNotFound
		}
		return ErrInvalidTransition
	}
	return nil
}

// CreateQuarantine inserts a quarantine record for a blocked file.
func (r *Repository) CreateQuarantine(ctx context.Context, q *Quarantine) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO quarantines (id, file_id, scan_result_id, reason, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, q.ID, q.FileID, q.ScanResultID, q.Reason, q.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create quarantine: %w", err)
	}
	return nil
}

// RecordMalwareAttempt appends an audit row for a rejected malicious upload.
func (r *Repository) RecordMalwareAttempt(ctx context.Context, a *MalwareAttempt) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO malware_attempts (
			id, user_id, file_name, file_size, file_hash, mime_type,
			confidence, threat_level, action_taken, ip_address, user_agent, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`,
		a.ID,
		a.UserID,
		a.FileName,
		a.FileSize,
		a.FileHash,
		a.MimeType,
		a.Confidence,
		a.ThreatLevel,
		a.ActionTaken,
		a.IPAddress,
		a.UserAgent,
		a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record malware attempt: %w", err)
	}
	return nil
}
