package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// GetUserByID retrieves a user account by its external identity.
func (r *Repository) GetUserByID(ctx context.Context, id string) (*User, error) {
	u := &User{}
	err := r.db.Pool.QueryRow(ctx, `
		SELECT id, email, name, account_status, banned_reason, banned_at, created_at
		FROM users WHERE id = $1
	`, id).Scan(
		&u.ID,
		&u.Email,
		&u.Name,
		&u.AccountStatus,
		&u.BannedReason,
		&u.BannedAt,
		&u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

// EnsureUser creates a user row for an externally-issued identity if
// one does not exist yet. Sessions come from the auth provider, so the
// first authenticated request a user makes may precede any local row.
func (r *Repository) EnsureUser(ctx context.Context, id, email, name string) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO users (id, email, name, account_status, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (id) DO NOTHING
	`, id, email, name, AccountActive)
	if err != nil {
		return fmt.Errorf("failed to ensure user: %w", err)
	}
	return nil
}

// BanUser flips the account to BANNED and appends the ban event in one
// transaction. The status update is guarded so a second ban attempt
// leaves the original reason and timestamp untouched.
func (r *Repository) BanUser(ctx context.Context, userID, reason, source string) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin ban transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		UPDATE users SET account_status = $2, banned_reason = $3, banned_at = NOW()
		WHERE id = $1 AND account_status = $4
	`, userID, AccountBanned, reason, AccountActive)
	if err != nil {
		return fmt.Errorf("failed to update account status: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO ban_events (id, user_id, reason, source, created_at)
		VALUES ($1, $2, $3, $4, NOW())
	`, uuid.New().String(), userID, reason, source)
	if err != nil {
		return fmt.Errorf("failed to append ban event: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit ban: %w", err)
	}
	return nil
}

// ProfileDelta is a set of increments applied to a user's aggregate
// counters. Negative values decrement.
type ProfileDelta struct {
	Files           int64
	Storage         int64
	ScansPerformed  int64
	ThreatsDetected int64
}

// BumpProfile applies counter deltas to a user profile, creating the
// row on first use.
func (r *Repository) BumpProfile(ctx context.Context, userID string, d ProfileDelta) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO user_profiles (user_id, total_files, total_storage, scans_performed, threats_detected)
		VALUES ($1, GREATEST($2, 0), GREATEST($3, 0), GREATEST($4, 0), GREATEST($5, 0))
		ON CONFLICT (user_id) DO UPDATE SET
			total_files      = user_profiles.total_files + $2,
			total_storage    = user_profiles.total_storage + $3,
			scans_performed  = user_profiles.scans_performed + $4,
			threats_detected = user_profiles.threats_detected + $5
	`, userID, d.Files, d.Storage, d.ScansPerformed, d.ThreatsDetected)
	if err != nil {
		return fmt.Errorf("failed to bump profile counters: %w", err)
	}
	return nil
}

// GetProfile returns a user's aggregate counters; zero counters when
// the profile row does not exist yet.
func (r *Repository) GetProfile(ctx context.Context, userID string) (*UserProfile, error) {
	p := &UserProfile{UserID: userID}
	err := r.db.Pool.QueryRow(ctx, `
		SELECT total_files, total_storage, scans_performed, threats_detected
		FROM user_profiles WHERE user_id = $1
	`, userID).Scan(
		&p.TotalFiles,
		&p.TotalStorage,
		&p.ScansPerformed,
		&p.ThreatsDetected,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return p, nil
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return p, nil
}

// IsTeamMember reports whether a user belongs to a team.
func (r *Repository) IsTeamMember(ctx context.Context, teamID, userID string) (bool, error) {
	var member bool
	err := r.db.Pool.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM team_members WHERE team_id = $1 AND user_id = $2)
	`, teamID, userID).Scan(&member)
	if err != nil {
		return false, fmt.Errorf("failed to check team membership: %w", err)
	}
	return member, nil
}

// CreateTeam inserts a team and enrolls the owner as its first member.
func (r *Repository) CreateTeam(ctx context.Context, t *Team) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin team transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO teams (id, name, owner_id, created_at)
		VALUES ($1, $2, $3, $4)
	`, t.ID, t.Name, t.OwnerID, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create team: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO team_members (team_id, user_id, role, created_at)
		VALUES ($1, $2, 'OWNER', $3)
	`, t.ID, t.OwnerID, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to enroll team owner: %w", err)
	}

	return tx.Commit(ctx)
}
