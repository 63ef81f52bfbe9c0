package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"secureshare/internal/server/database"
	"secureshare/internal/server/notify"
	"secureshare/internal/server/scanner"
)

type scanStore interface {
	GetFileByID(ctx context.Context, id string) (*database.File, error)
	CreateScanResult(ctx context.Context, s *database.ScanResult) error
	CompleteScanResult(ctx context.Context, s *database.ScanResult) error
	FailScanResult(ctx context.Context, scanID string) error
	TransitionFileStatus(ctx context.Context, id string, to database.FileStatus) error
	CreateQuarantine(ctx context.Context, q *database.Quarantine) error
	BumpProfile(ctx context.Context, userID string, d database.ProfileDelta) error
	SecurityStatsForUser(ctx context.Context, userID string, since time.Time) (*database.SecurityStats, error)
	ThreatsForUser(ctx context.Context, userID string, limit, offset int) ([]*database.ThreatRecord, int64, error)
}

// ScanReport is the public view of a completed on-demand scan.
type ScanReport struct {
	ScanID      string               `json:"scan_id"`
	FileID      string               `json:"file_id"`
	IsMalware   bool                 `json:"is_malware"`
	Confidence  float64              `json:"confidence"`
	RiskScore   int                  `json:"risk_score"`
	ThreatLevel database.ThreatLevel `json:"threat_level"`
	Quarantined bool                 `json:"quarantined"`
	ScanDate    time.Time            `json:"scan_date"`
}

// ThreatPage is one page of a user's detected threats.
type ThreatPage struct {
	Threats []*database.ThreatRecord `json:"threats"`
	Total   int64                    `json:"total"`
	Limit   int                      `json:"limit"`
	Offset  int                      `json:"offset"`
}

// ScanService runs on-demand scans against stored files and serves the
// security dashboard reads.
type ScanService struct {
	repo       scanStore
	classifier scanner.Classifier
	notifier   Notifier
	policy     TriagePolicy
}

// NewScanService creates a scan service.
func NewScanService(repo scanStore, classifier scanner.Classifier, notifier Notifier, policy TriagePolicy) *ScanService {
	return &ScanService{repo: repo, classifier: classifier, notifier: notifier, policy: policy}
}

// ScanFile runs the classifier against one of the actor's stored files
// and applies on-demand triage: quarantine at or above the quarantine
// threshold, a threat alert at or above the alert threshold. Every run
// leaves a scan row, COMPLETED or FAILED.
func (s *ScanService) ScanFile(ctx context.Context, actorID, fileID string) (*ScanReport, error) {
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

	scanRow := &database.ScanResult{
		ID:       uuid.New().String(),
		FileID:   file.ID,
		Status:   database.ScanScanning,
		ScanDate: time.Now().UTC(),
	}
	if err := s.repo.CreateScanResult(ctx, scanRow); err != nil {
		return nil, err
	}

	verdict, err := s.classifier.ScanFileInfo(ctx, scanner.FileInfo{
		Hash:     file.Hash,
		Name:     file.OriginalName,
		Size:     file.Size,
		MimeType: file.MimeType,
	})
	if err != nil {
		if failErr := s.repo.FailScanResult(ctx, scanRow.ID); failErr != nil {
			slog.Error("failed to mark scan failed", "scan_id", scanRow.ID, "error", failErr)
		}
		slog.Warn("classifier unavailable for on-demand scan", "file_id", file.ID, "error", err)
		return nil, ErrScanUnavailable
	}

	decision := s.policy.Evaluate(verdict, ContextOnDemand)

	scanRow.Status = database.ScanCompleted
	scanRow.IsMalware = verdict.IsMalware
	scanRow.Confidence = verdict.Confidence
	scanRow.RiskScore = decision.RiskScore
	scanRow.ThreatLevel = decision.ThreatLevel
	now := time.Now().UTC()
	scanRow.CompletedAt = &now
	if err := s.repo.CompleteScanResult(ctx, scanRow); err != nil {
		return nil, err
	}

	quarantined := false
	if decision.Action == ActionQuarantine {
		quarantined = s.quarantine(ctx, file, scanRow, decision)
	}

	delta := database.ProfileDelta{ScansPerformed: 1}
	if verdict.IsMalware {
		delta.ThreatsDetected = 1
	}
	if err := s.repo.BumpProfile(ctx, actorID, delta); err != nil {
		slog.Error("failed to update profile counters", "user_id", actorID, "error", err)
	}

	s.notifyScan(ctx, actorID, file, decision, quarantined)

	slog.Info("on-demand scan completed",
		"scan_id", scanRow.ID,
		"file_id", file.ID,
		"is_malware", verdict.IsMalware,
		"risk_score", decision.RiskScore,
		"threat_level", decision.ThreatLevel,
		"quarantined", quarantined,
	)

	return &ScanReport{
		ScanID:      scanRow.ID,
		FileID:      file.ID,
		IsMalware:   verdict.IsMalware,
		Confidence:  verdict.Confidence,
		RiskScore:   decision.RiskScore,
		ThreatLevel: decision.ThreatLevel,
		Quarantined: quarantined,
		ScanDate:    scanRow.ScanDate,
	}, nil
}

// quarantine transitions the file and records the quarantine row. A
// concurrent scan may have quarantined the file already; that is not an
// error, the file ends up isolated either way.
func (s *ScanService) quarantine(ctx context.Context, file *database.File, scanRow *database.ScanResult, decision Decision) bool {
	err := s.repo.TransitionFileStatus(ctx, file.ID, database.FileQuarantined)
	if err != nil {
		if errors.Is(err, database.ErrInvalidTransition) {
			slog.Warn("file not in a quarantinable state", "file_id", file.ID)
			return false
		}
		slog.Error("failed to quarantine file", "file_id", file.ID, "error", err)
		return false
	}

	q := &database.Quarantine{
		ID:           uuid.New().String(),
		FileID:       file.ID,
		ScanResultID: &scanRow.ID,
		Reason:       fmt.Sprintf("on-demand scan: %s threat, risk %d", decision.ThreatLevel, decision.RiskScore),
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.repo.CreateQuarantine(ctx, q); err != nil {
		slog.Error("failed to record quarantine", "file_id", file.ID, "error", err)
	}
	return true
}

func (s *ScanService) notifyScan(ctx context.Context, actorID string, file *database.File, decision Decision, quarantined bool) {
	typ := notify.TypeScanCompleted
	title := "Scan completed"
	message := fmt.Sprintf("%s scanned clean", file.OriginalName)
	if decision.Alert {
		typ = notify.TypeThreatDetected
		title = "Threat detected"
		message = fmt.Sprintf("%s was flagged as a %s threat", file.OriginalName, decision.ThreatLevel)
		if quarantined {
			message += " and quarantined"
		}
	}
	err := s.notifier.Notify(ctx, actorID, typ, title, message, map[string]any{
		"file_id":      file.ID,
		"risk_score":   decision.RiskScore,
		"threat_level": decision.ThreatLevel,
		"quarantined":  quarantined,
	})
	if err != nil {
		slog.Error("failed to create scan notification", "file_id", file.ID, "error", err)
	}
}

// Stats aggregates the actor's scan activity over a period: "7d",
// "30d", or "all".
func (s *ScanService) Stats(ctx context.Context, actorID, period string) (*database.SecurityStats, error) {
	var since time.Time
	switch period {
	case "7d":
		since = time.Now().AddDate(0, 0, -7)
	case "30d", "":
		since = time.Now().AddDate(0, 0, -30)
	case "all":
		// zero time means no lower bound
	default:
		since = time.Now().AddDate(0, 0, -30)
	}
	return s.repo.SecurityStatsForUser(ctx, actorID, since)
}

// Threats returns one page of the actor's detected threats, newest
// first.
func (s *ScanService) Threats(ctx context.Context, actorID string, limit, offset int) (*ThreatPage, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	threats, total, err := s.repo.ThreatsForUser(ctx, actorID, limit, offset)
	if err != nil {
		return nil, err
	}
	return &ThreatPage{Threats: threats, Total: total, Limit: limit, Offset: offset}, nil
}
