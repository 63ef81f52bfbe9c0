package database

import "time"

// AccountStatus is the lifecycle state of a user account.
// Banning is append-only: the status flips to BANNED exactly once and a
// BanEvent records who/when/why. No un-ban operation exists.
type AccountStatus string

const (
	AccountActive AccountStatus = "ACTIVE"
	AccountBanned AccountStatus = "BANNED"
)

// FileStatus is the lifecycle state of a stored file.
type FileStatus string

const (
	FileUploading   FileStatus = "UPLOADING"
	FileProcessing  FileStatus = "PROCESSING"
	FileReady       FileStatus = "READY"
	FileQuarantined FileStatus = "QUARANTINED"
	FileDeleted     FileStatus = "DELETED"
)

// fileTransitions is the set of legal status transitions. DELETED is
// terminal; deletion is always a soft delete.
var fileTransitions = map[FileStatus][]FileStatus{
	FileUploading:   {FileProcessing, FileDeleted},
	FileProcessing:  {FileReady, FileDeleted},
	FileReady:       {FileQuarantined, FileDeleted},
	FileQuarantined: {FileDeleted},
	FileDeleted:     {},
}

// CanTransition reports whether a file may move from one status to another.
func CanTransition(from, to FileStatus) bool {
	for _, allowed := range fileTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// transitionSources returns every status a file may be in immediately
// before moving to the given status. Used to build guarded UPDATEs.
func transitionSources(to FileStatus) []FileStatus {
	var sources []FileStatus
	for from, targets := range fileTransitions {
		for _, t := range targets {
			if t == to {
				sources = append(sources, from)
			}
		}
	}
	return sources
}

// ScanStatus is the lifecycle state of a scan result.
// COMPLETED and FAILED are terminal.
type ScanStatus string

const (
	ScanPending   ScanStatus = "PENDING"
	ScanScanning  ScanStatus = "SCANNING"
	ScanCompleted ScanStatus = "COMPLETED"
	ScanFailed    ScanStatus = "FAILED"
)

// ThreatLevel is the ordinal risk bucket derived from a scan's risk score.
type ThreatLevel string

const (
	ThreatSafe     ThreatLevel = "SAFE"
	ThreatLow      ThreatLevel = "LOW"
	ThreatMedium   ThreatLevel = "MEDIUM"
	ThreatHigh     ThreatLevel = "HIGH"
	ThreatCritical ThreatLevel = "CRITICAL"
)

// User is an account as far as the file service is concerned. Identity
// is issued by the external auth provider; this row carries only what
// the service owns, which is mostly the ban state.
type User struct {
	ID            string
	Email         string
	Name          string
	AccountStatus AccountStatus
	BannedReason  *string
	BannedAt      *time.Time
	CreatedAt     time.Time
}

// BanEvent is an append-only record of a ban decision.
type BanEvent struct {
	ID        string
	UserID    string
	Reason    string
	Source    string // what triggered the ban, e.g. "upload-triage"
	CreatedAt time.Time
}

// UserProfile holds running aggregate counters for an account.
type UserProfile struct {
	UserID          string
	TotalFiles      int64
	TotalStorage    int64
	ScansPerformed  int64
	ThreatsDetected int64
}

// Team groups users for shared file ownership.
type Team struct {
	ID        string
	Name      string
	OwnerID   string
	CreatedAt time.Time
}

// TeamMember links a user to a team.
type TeamMember struct {
	TeamID    string
	UserID    string
	Role      string
	CreatedAt time.Time
}

// File is stored file metadata. Bytes live in object storage under
// ObjectName. TeamID is nil for user-owned files; the content hash is
// unique per ownership scope among non-deleted files.
type File struct {
	ID           string
	OwnerID      string
	TeamID       *string
	Name         string
	OriginalName string
	Size         int64
	MimeType     string
	Extension    string
	Hash         string
	ObjectName   string
	Status       FileStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ScanResult is one classifier run against a file. Historical rows are
// retained; the latest per file is the newest by scan date.
type ScanResult struct {
	ID           string
	FileID       string
	Status       ScanStatus
	IsMalware    bool
	Confidence   float64
	RiskScore    int
	ThreatLevel  ThreatLevel
	ThreatType   *string
	ThreatFamily *string
	ScanDate     time.Time
	CompletedAt  *time.Time
}

// Quarantine isolates a file after a blocking scan verdict.
// Created by triage, never mutated here.
type Quarantine struct {
	ID           string
	FileID       string
	ScanResultID *string
	Reason       string
	CreatedAt    time.Time
}

// MalwareAttempt is an append-only audit row for a rejected malicious upload.
type MalwareAttempt struct {
	ID          string
	UserID      string
	FileName    string
	FileSize    int64
	FileHash    string
	MimeType    string
	Confidence  float64
	ThreatLevel ThreatLevel
	ActionTaken string
	IPAddress   string
	UserAgent   string
	CreatedAt   time.Time
}

// Share is a capability granting bounded access to one file: an
// unguessable token plus optional password, expiry, and download limit.
type Share struct {
	ID            string
	FileID        string
	CreatedBy     string
	LinkToken     string
	PasswordHash  *string // nil when no password set
	ExpiresAt     *time.Time
	MaxDownloads  *int
	DownloadCount int
	Permissions   []string
	CreatedAt     time.Time
}

// Download is an append-only audit row for one recorded download intent.
type Download struct {
	ID           string
	ShareID      string
	FileID       string
	IPAddress    string
	UserAgent    string
	DownloadedAt time.Time
}

// Notification is a user-visible message about an outcome.
type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	IsRead    bool      `json:"is_read"`
	Data      *string   `json:"data,omitempty"` // JSON payload, optional
	CreatedAt time.Time `json:"created_at"`
}

// ThreatRecord is a malware scan joined with its file and quarantine
// state, as served by the security threat listing.
type ThreatRecord struct {
	ScanID      string      `json:"scan_id"`
	FileID      string      `json:"file_id"`
	FileName    string      `json:"file_name"`
	FileSize    int64       `json:"file_size"`
	MimeType    string      `json:"mime_type"`
	ThreatLevel ThreatLevel `json:"threat_level"`
	Confidence  float64     `json:"confidence"`
	RiskScore   int         `json:"risk_score"`
	Quarantined bool        `json:"quarantined"`
	ScanDate    time.Time   `json:"scan_date"`
}

// SecurityStats aggregates a user's scan history.
type SecurityStats struct {
	TotalScans       int64
	ThreatsDetected  int64
	QuarantinedFiles int64
	CleanFiles       int64
	ThreatsByLevel   map[ThreatLevel]int64
	LastScanAt       *time.Time
}
