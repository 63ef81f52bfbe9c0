package service

import (
	"errors"
	"fmt"

	"secureshare/internal/server/database"
)

// Sentinel errors for the service layer. Policy and validation failures
// are expected outcomes returned as typed values; the API layer maps
// them to HTTP statuses.
var (
	ErrAccountBanned    = errors.New("account is banned")
	ErrNotTeamMember    = errors.New("not a member of this team")
	ErrFileTooLarge     = errors.New("file exceeds maximum allowed size")
	ErrExtensionBlocked = errors.New("file extension is not allowed")
	ErrDuplicateFile    = errors.New("identical file already exists in this scope")
	ErrMalwareDetected  = errors.New("malware detected")
	ErrScanUnavailable  = errors.New("malware scan unavailable")

	ErrFileNotFound    = errors.New("file not found")
	ErrFileQuarantined = errors.New("file is quarantined")

	ErrShareNotFound        = errors.New("share not found")
	ErrShareExpired         = errors.New("share has expired")
	ErrDownloadLimitReached = errors.New("download limit reached")
	ErrPasswordRequired     = errors.New("password required")
	ErrPasswordIncorrect    = errors.New("password incorrect")
)

// BannedError carries the stored ban reason so a rejected caller can
// see why. errors.Is matches ErrAccountBanned.
type BannedError struct {
	Reason string
}

func (e *BannedError) Error() string {
	if e.Reason == "" {
		return ErrAccountBanned.Error()
	}
	return fmt.Sprintf("account is banned: %s", e.Reason)
}

func (e *BannedError) Is(target error) bool {
	return target == ErrAccountBanned
}

// MalwareError describes an upload rejected by triage. errors.Is
// matches ErrMalwareDetected.
type MalwareError struct {
	FileName    string
	ThreatLevel database.ThreatLevel
	Confidence  float64
}

func (e *MalwareError) Error() string {
	return fmt.Sprintf("malware detected in %q (threat level %s, confidence %.2f)",
		e.FileName, e.ThreatLevel, e.Confidence)
}

func (e *MalwareError) Is(target error) bool {
	return target == ErrMalwareDetected
}
