package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"secureshare/internal/server/config"
	"secureshare/internal/server/database"
	"secureshare/internal/server/notify"
	"secureshare/internal/server/scanner"
	"secureshare/internal/server/storage"
)

// uploadStore is the slice of the repository the upload flow needs.
type uploadStore interface {
	GetUserByID(ctx context.Context, id string) (*database.User, error)
	EnsureUser(ctx context.Context, id, email, name string) error
	IsTeamMember(ctx context.Context, teamID, userID string) (bool, error)
	FindFileByHash(ctx context.Context, hash, ownerID string, teamID *string) (*database.File, error)
	CreateFile(ctx context.Context, f *database.File) error
	TransitionFileStatus(ctx context.Context, id string, to database.FileStatus) error
	RecordMalwareAttempt(ctx context.Context, a *database.MalwareAttempt) error
	BanUser(ctx context.Context, userID, reason, source string) error
	BumpProfile(ctx context.Context, userID string, d database.ProfileDelta) error
}

// Notifier records one user-visible notification describing an outcome.
type Notifier interface {
	Notify(ctx context.Context, userID, typ, title, message string, data map[string]any) error
}

// UploadRequest is a candidate upload entering admission control.
type UploadRequest struct {
	ActorID   string
	TeamID    *string
	FileName  string
	MimeType  string
	Size      int64
	Data      io.Reader
	IPAddress string
	UserAgent string
}

// FileInfo is the public view of a stored file.
type FileInfo struct {
	ID           string              `json:"id"`
	Name         string              `json:"name"`
	OriginalName string              `json:"original_name"`
	Size         int64               `json:"size"`
	MimeType     string              `json:"mime_type"`
	Extension    string              `json:"extension"`
	Status       database.FileStatus `json:"status"`
	CreatedAt    time.Time           `json:"created_at"`
}

// UploadService runs admission control and upload-time triage.
type UploadService struct {
	repo       uploadStore
	store      storage.Store
	classifier scanner.Classifier
	notifier   Notifier
	policy     TriagePolicy
	rules      *config.UploadRules
	maxSize    int64
}

// NewUploadService creates an upload service.
func NewUploadService(repo uploadStore, store storage.Store, classifier scanner.Classifier,
	notifier Notifier, policy TriagePolicy, rules *config.UploadRules, maxSize int64) *UploadService {
	return &UploadService{
		repo:       repo,
		store:      store,
		classifier: classifier,
		notifier:   notifier,
		policy:     policy,
		rules:      rules,
		maxSize:    maxSize,
	}
}

// ProcessUpload admits, scans, and persists one upload. Checks run in
// order and each failure is a hard stop: ban status, team membership,
// size ceiling, extension policy, duplicate content hash. The classifier
// verdict then decides whether the file is persisted at all; a malware
// verdict at or above the ban threshold rejects the upload, bans the
// uploader, and records the attempt. A scan failure rejects the upload
// (fail closed) without any side effects.
func (s *UploadService) ProcessUpload(ctx context.Context, req UploadRequest) (*FileInfo, error) {
	user, err := s.repo.GetUserByID(ctx, req.ActorID)
	if err != nil {
		if !errors.Is(err, database.ErrUserNotFound) {
			return nil, err
		}
		// First request from an externally-issued identity.
		if err := s.repo.EnsureUser(ctx, req.ActorID, "", ""); err != nil {
			return nil, err
		}
		user = &database.User{ID: req.ActorID, AccountStatus: database.AccountActive}
	}
	if user.AccountStatus == database.AccountBanned {
		reason := ""
		if user.BannedReason != nil {
			reason = *user.BannedReason
		}
		return nil, &BannedError{Reason: reason}
	}

	if req.TeamID != nil {
		member, err := s.repo.IsTeamMember(ctx, *req.TeamID, req.ActorID)
		if err != nil {
			return nil, err
		}
		if !member {
			return nil, ErrNotTeamMember
		}
	}

	if req.Size > s.maxSize {
		return nil, ErrFileTooLarge
	}

	ext := strings.ToLower(filepath.Ext(req.FileName))
	if s.rules.Blocked(ext) {
		return nil, ErrExtensionBlocked
	}

	// Read the content once, hashing as we go. The bytes are needed in
	// full for the classifier anyway.
	hasher := sha256.New()
	data, err := io.ReadAll(io.LimitReader(io.TeeReader(req.Data, hasher), s.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read upload data: %w", err)
	}
	if int64(len(data)) > s.maxSize {
		return nil, ErrFileTooLarge
	}
	hash := hex.EncodeToString(hasher.Sum(nil))

	existing, err := s.repo.FindFileByHash(ctx, hash, req.ActorID, req.TeamID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrDuplicateFile
	}

	verdict, err := s.classifier.ScanBytes(ctx, req.FileName, data)
	if err != nil {
		// Fail closed: an unreachable classifier is not a clean verdict.
		return nil, fmt.Errorf("%w: %v", ErrScanUnavailable, err)
	}

	decision := s.policy.Evaluate(verdict, ContextUpload)
	if decision.Action == ActionBan {
		return nil, s.rejectMalware(ctx, req, hash, verdict, decision)
	}

	info, err := s.persist(ctx, req, ext, hash, data)
	if err != nil {
		return nil, err
	}

	threats := int64(0)
	message := fmt.Sprintf("%s was uploaded and verified by the security scan", req.FileName)
	if decision.Action == ActionFlag {
		threats = 1
		message = fmt.Sprintf("%s was uploaded; a low-confidence detection was logged for review", req.FileName)
		slog.Warn("upload flagged below enforcement threshold",
			"file_id", info.ID,
			"risk_score", decision.RiskScore,
			"threat_level", decision.ThreatLevel,
		)
	}
	if err := s.repo.BumpProfile(ctx, req.ActorID, database.ProfileDelta{
		Files:           1,
		Storage:         info.Size,
		ScansPerformed:  1,
		ThreatsDetected: threats,
	}); err != nil {
		slog.Error("failed to bump profile counters", "user_id", req.ActorID, "error", err)
	}

	if err := s.notifier.Notify(ctx, req.ActorID, notify.TypeFileUploaded, "File uploaded", message,
		map[string]any{"file_id": info.ID}); err != nil {
		slog.Error("failed to create upload notification", "file_id", info.ID, "error", err)
	}

	return info, nil
}

// rejectMalware applies the upload-context ban: no File row is ever
// created, the uploader's account is banned irreversibly, the attempt
// is audited, and one security notification is emitted.
func (s *UploadService) rejectMalware(ctx context.Context, req UploadRequest, hash string,
	verdict *scanner.Verdict, decision Decision) error {

	reason := fmt.Sprintf("malware upload detected: %s (confidence: %.2f%%)",
		req.FileName, verdict.Confidence*100)

	if err := s.repo.RecordMalwareAttempt(ctx, &database.MalwareAttempt{
		ID:          uuid.New().String(),
		UserID:      req.ActorID,
		FileName:    req.FileName,
		FileSize:    req.Size,
		FileHash:    hash,
		MimeType:    req.MimeType,
		Confidence:  verdict.Confidence,
		ThreatLevel: decision.ThreatLevel,
		ActionTaken: "banned",
		IPAddress:   req.IPAddress,
		UserAgent:   req.UserAgent,
		CreatedAt:   time.Now().UTC(),
	}); err != nil {
		return err
	}

	if err := s.repo.BanUser(ctx, req.ActorID, reason, "upload-triage"); err != nil {
		return err
	}

	if err := s.repo.BumpProfile(ctx, req.ActorID, database.ProfileDelta{
		ScansPerformed:  1,
		ThreatsDetected: 1,
	}); err != nil {
		slog.Error("failed to bump profile counters", "user_id", req.ActorID, "error", err)
	}

	if err := s.notifier.Notify(ctx, req.ActorID, notify.TypeSecurityAlert,
		"Account banned - malware detected",
		fmt.Sprintf("Your account was banned after the upload of a malicious file: %s", req.FileName),
		map[string]any{
			"file_hash":    hash,
			"confidence":   verdict.Confidence,
			"threat_level": decision.ThreatLevel,
		}); err != nil {
		slog.Error("failed to create security notification", "user_id", req.ActorID, "error", err)
	}

	slog.Warn("upload rejected and uploader banned",
		"user_id", req.ActorID,
		"file_name", req.FileName,
		"threat_level", decision.ThreatLevel,
		"confidence", verdict.Confidence,
	)

	return &MalwareError{
		FileName:    req.FileName,
		ThreatLevel: decision.ThreatLevel,
		Confidence:  verdict.Confidence,
	}
}

// persist stores the bytes and walks the file through its lifecycle:
// UPLOADING on creation, PROCESSING once bytes are stored, READY when
// complete.
func (s *UploadService) persist(ctx context.Context, req UploadRequest, ext, hash string, data []byte) (*FileInfo, error) {
	now := time.Now().UTC()
	file := &database.File{
		ID:           uuid.New().String(),
		OwnerID:      req.ActorID,
		TeamID:       req.TeamID,
		Name:         strings.TrimSuffix(req.FileName, ext),
		OriginalName: req.FileName,
		Size:         int64(len(data)),
		MimeType:     req.MimeType,
		Extension:    ext,
		Hash:         hash,
		ObjectName:   uuid.New().String() + ext,
		Status:       database.FileUploading,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.CreateFile(ctx, file); err != nil {
		// The partial unique index closes the race left by the
		// hash lookup above.
		if errors.Is(err, database.ErrDuplicateHash) {
			return nil, ErrDuplicateFile
		}
		return nil, err
	}

	if err := s.store.Save(ctx, file.ObjectName, bytes.NewReader(data), file.Size, req.MimeType); err != nil {
		if terr := s.repo.TransitionFileStatus(ctx, file.ID, database.FileDeleted); terr != nil {
			slog.Error("failed to mark file deleted after storage failure", "file_id", file.ID, "error", terr)
		}
		return nil, fmt.Errorf("failed to store file bytes: %w", err)
	}

	if err := s.repo.TransitionFileStatus(ctx, file.ID, database.FileProcessing); err != nil {
		return nil, err
	}
	if err := s.repo.TransitionFileStatus(ctx, file.ID, database.FileReady); err != nil {
		return nil, err
	}
	file.Status = database.FileReady

	slog.Info("upload persisted",
		"file_id", file.ID,
		"size", file.Size,
		"hash", hash,
		"team_scoped", req.TeamID != nil,
	)

	return publicFileInfo(file), nil
}

func publicFileInfo(f *database.File) *FileInfo {
	return &FileInfo{
		ID:           f.ID,
		Name:         f.Name,
		OriginalName: f.OriginalName,
		Size:         f.Size,
		MimeType:     f.MimeType,
		Extension:    f.Extension,
		Status:       f.Status,
		CreatedAt:    f.CreatedAt,
	}
}
