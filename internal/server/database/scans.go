package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// CreateScanResult inserts a scan in SCANNING state, immediately before
// the classifier call.
func (r *Repository) CreateScanResult(ctx context.Context, s *ScanResult) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO scan_results (id, file_id, status, threat_level, scan_date)
		VALUES ($1, $2, $3, $4, $5)
	`, s.ID, s.FileID, s.Status, ThreatSafe, s.ScanDate)
	if err != nil {
		return fmt.Errorf("failed to create scan result: %w", err)
	}
	return nil
}

// CompleteScanResult finalizes a scan with the classifier verdict and
// the triage outcome. COMPLETED is terminal, so only an in-flight
// SCANNING row can be completed.
func (r *Repository) CompleteScanResult(ctx context.Context, s *ScanResult) error {
	now := time.Now().UTC()
	tag, err := r.db.Pool.Exec(ctx, `
		UPDATE scan_results SET
			status = $2, is_malware = $3, confidence = $4, risk_score = $5,
			threat_level = $6, threat_type = $7, threat_family = $8, completed_at = $9
		WHERE id = $1 AND status = $10
	`,
		s.ID,
		ScanCompleted,
		s.IsMalware,
		s.Confidence,
		s.RiskScore,
		s.ThreatLevel,
		s.ThreatType,
		s.ThreatFamily,
		now,
		ScanScanning,
	)
	if err != nil {
		return fmt.Errorf("failed to complete scan result: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrScanNotFound
	}
	return nil
}

// FailScanResult marks an in-flight scan as FAILED, terminal.
func (r *Repository) FailScanResult(ctx context.Context, scanID string) error {
	tag, err := r.db.Pool.Exec(ctx, `
		UPDATE scan_results SET status = $2, completed_at = NOW()
		WHERE id = $1 AND status = $3
	`, scanID, ScanFailed, ScanScanning)
	if err != nil {
		return fmt.Errorf("failed to mark scan failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrScanNotFound
	}
	return nil
}

// LatestScanForFile returns the most recent scan for a file, or nil
// when the file was never scanned.
func (r *Repository) LatestScanForFile(ctx context.Context, fileID string) (*ScanResult, error) {
	s := &ScanResult{}
	err := r.db.Pool.QueryRow(ctx, `
		SELECT id, file_id, status, is_malware, confidence, risk_score,
		       threat_level, threat_type, threat_family, scan_date, completed_at
		FROM scan_results WHERE file_id = $1
		ORDER BY scan_date DESC LIMIT 1
	`, fileID).Scan(
		&s.ID,
		&s.FileID,
		&s.Status,
		&s.IsMalware,
		&s.Confidence,
		&s.RiskScore,
		&s.ThreatLevel,
		&s.ThreatType,
		&s.ThreatFamily,
		&s.ScanDate,
		&s.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get latest scan: %w", err)
	}
	return s, nil
}

// SecurityStatsForUser aggregates a user's scan history since the given
// time; a zero time means all history.
func (r *Repository) SecurityStatsForUser(ctx context.Context, userID string, since time.Time) (*SecurityStats, error) {
	stats := &SecurityStats{ThreatsByLevel: make(map[ThreatLevel]int64)}

	err := r.db.Pool.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE s.is_malware),
			MAX(s.scan_date)
		FROM scan_results s
		JOIN files f ON f.id = s.file_id
		WHERE f.owner_id = $1 AND s.status = $2 AND ($3::timestamptz IS NULL OR s.scan_date >= $3)
	`, userID, ScanCompleted, nullableTime(since)).Scan(
		&stats.TotalScans,
		&stats.ThreatsDetected,
		&stats.LastScanAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate scan stats: %w", err)
	}
	stats.CleanFiles = stats.TotalScans - stats.ThreatsDetected

	err = r.db.Pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM quarantines q
		JOIN files f ON f.id = q.file_id
		WHERE f.owner_id = $1 AND ($2::timestamptz IS NULL OR q.created_at >= $2)
	`, userID, nullableTime(since)).Scan(&stats.QuarantinedFiles)
	if err != nil {
		return nil, fmt.Errorf("failed to count quarantines: %w", err)
	}

	rows, err := r.db.Pool.Query(ctx, `
		SELECT s.threat_level, COUNT(*)
		FROM scan_results s
		JOIN files f ON f.id = s.file_id
		WHERE f.owner_id = $1 AND s.is_malware AND s.status = $2
		      AND ($3::timestamptz IS NULL OR s.scan_date >= $3)
		GROUP BY s.threat_level
	`, userID, ScanCompleted, nullableTime(since))
	if err != nil {
		return nil, fmt.Errorf("failed to group threats by level: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var level ThreatLevel
		var count int64
		if err := rows.Scan(&level, &count); err != nil {
			return nil, fmt.Errorf("failed to scan threat level row: %w", err)
		}
		stats.ThreatsByLevel[level] = count
	}
	return stats, rows.Err()
}

// ThreatsForUser lists a user's malware scans newest first, with
// quarantine status, for the security threat feed.
func (r *Repository) ThreatsForUser(ctx context.Context, userID string, limit, offset int) ([]*ThreatRecord, int64, error) {
	var total int64
	err := r.db.Pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM scan_results s
		JOIN files f ON f.id = s.file_id
		WHERE f.owner_id = $1 AND s.is_malware AND s.status = $2
	`, userID, ScanCompleted).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count threats: %w", err)
	}

	rows, err := r.db.Pool.Query(ctx, `
		SELECT s.id, f.id, f.original_name, f.size, f.mime_type,
		       s.threat_level, s.confidence, s.risk_score,
		       EXISTS(SELECT 1 FROM quarantines q WHERE q.scan_result_id = s.id),
		       s.scan_date
		FROM scan_results s
		JOIN files f ON f.id = s.file_id
		WHERE f.owner_id = $1 AND s.is_malware AND s.status = $2
		ORDER BY s.scan_date DESC
		LIMIT $3 OFFSET $4
	`, userID, ScanCompleted, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query threats: %w", err)
	}
	defer rows.Close()

	var threats []*ThreatRecord
	for rows.Next() {
		t := &ThreatRecord{}
		if err := rows.Scan(
			&t.ScanID,
			&t.FileID,
			&t.FileName,
			&t.FileSize,
			&t.MimeType,
			&t.ThreatLevel,
			&t.Confidence,
			&t.RiskScore,
			&t.Quarantined,
			&t.ScanDate,
		); err != nil {
			return nil, 0, fmt.Errorf("failed to scan threat row: %w", err)
		}
		threats = append(threats, t)
	}
	return threats, total, rows.Err()
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
