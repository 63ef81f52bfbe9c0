package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"secureshare/internal/server/database"
	"secureshare/internal/server/service"
	"secureshare/internal/server/storage"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// Handler contains the HTTP handlers for the SecureShare API.
type Handler struct {
	uploads *service.UploadService
	shares  *service.ShareService
	scans   *service.ScanService
	files   *service.FileService
	repo    *database.Repository
	db      *database.DB
	store   storage.Store
}

// NewHandler creates a new handler with the given service dependencies.
func NewHandler(uploads *service.UploadService, shares *service.ShareService,
	scans *service.ScanService, files *service.FileService,
	repo *database.Repository, db *database.DB, store storage.Store) *Handler {

	return &Handler{uploads: uploads, shares: shares, scans: scans, files: files, repo: repo, db: db, store: store}
}

// HandleUpload handles POST /api/upload.
// Accepts a multipart form with a "file" field and an optional "team_id" field.
func (h *Handler) HandleUpload(c echo.Context) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error": "file is required (use form field 'file')",
		})
	}

	src, err := fileHeader.Open()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"error": "failed to read uploaded file",
		})
	}
	defer src.Close()

	var teamID *string
	if t := c.FormValue("team_id"); t != "" {
		teamID = &t
	}

	info, err := h.uploads.ProcessUpload(c.Request().Context(), service.UploadRequest{
		ActorID:   actorID(c),
		TeamID:    teamID,
		FileName:  fileHeader.Filename,
		MimeType:  fileHeader.Header.Get("Content-Type"),
		Size:      fileHeader.Size,
		Data:      src,
		IPAddress: c.RealIP(),
		UserAgent: c.Request().UserAgent(),
	})
	if err != nil {
		return mapServiceError(c, err)
	}

	return c.JSON(http.StatusCreated, info)
}

// createShareRequest is the JSON body for POST /api/shares.
type createShareRequest struct {
	FileID       string     `json:"file_id"`
	Password     string     `json:"password"`
	ExpiresAt    *time.Time `json:"expires_at"`
	MaxDownloads *int       `json:"max_downloads"`
}

// HandleCreateShare handles POST /api/shares.
func (h *Handler) HandleCreateShare(c echo.Context) error {
	var req createShareRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if req.FileID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "file_id is required"})
	}
	if req.MaxDownloads != nil && *req.MaxDownloads < 1 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "max_downloads must be at least 1"})
	}

	share, err := h.shares.CreateShare(c.Request().Context(), actorID(c), service.CreateShareRequest{
		FileID:       req.FileID,
		Password:     req.Password,
		ExpiresAt:    req.ExpiresAt,
		MaxDownloads: req.MaxDownloads,
	})
	if err != nil {
		return mapServiceError(c, err)
	}

	return c.JSON(http.StatusCreated, share)
}

// HandleResolveShare handles GET /api/shares/:token.
// Accepts an optional "password" query param for protected links.
func (h *Handler) HandleResolveShare(c echo.Context) error {
	resolved, err := h.shares.Resolve(c.Request().Context(), c.Param("token"), c.QueryParam("password"))
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusOK, resolved)
}

// HandleRecordDownload handles POST /api/shares/:token/download.
func (h *Handler) HandleRecordDownload(c echo.Context) error {
	err := h.shares.RecordDownload(c.Request().Context(), c.Param("token"),
		c.RealIP(), c.Request().UserAgent())
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "download recorded"})
}

// scanRequest is the JSON body for POST /api/scan.
type scanRequest struct {
	FileID string `json:"file_id"`
}

// HandleScan handles POST /api/scan.
func (h *Handler) HandleScan(c echo.Context) error {
	var req scanRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if req.FileID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "file_id is required"})
	}

	report, err := h.scans.ScanFile(c.Request().Context(), actorID(c), req.FileID)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusOK, report)
}

// HandleGetFile handles GET /api/files/:id.
// Includes the most recent scan verdict when the file has been scanned.
func (h *Handler) HandleGetFile(c echo.Context) error {
	info, err := h.files.GetFile(c.Request().Context(), actorID(c), c.Param("id"))
	if err != nil {
		return mapServiceError(c, err)
	}

	resp := echo.Map{"file": info}
	scan, err := h.repo.LatestScanForFile(c.Request().Context(), info.ID)
	if err != nil {
		slog.Warn("failed to load latest scan for file", "file_id", info.ID, "error", err)
	}
	if scan != nil {
		resp["latest_scan"] = echo.Map{
			"status":       scan.Status,
			"is_malware":   scan.IsMalware,
			"risk_score":   scan.RiskScore,
			"threat_level": scan.ThreatLevel,
			"scan_date":    scan.ScanDate,
		}
	}
	return c.JSON(http.StatusOK, resp)
}

// HandleDeleteFile handles DELETE /api/files/:id.
func (h *Handler) HandleDeleteFile(c echo.Context) error {
	if err := h.files.DeleteFile(c.Request().Context(), actorID(c), c.Param("id")); err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "file deleted"})
}

// HandleSecurityStats handles GET /api/security/stats?period=7d|30d|all.
func (h *Handler) HandleSecurityStats(c echo.Context) error {
	stats, err := h.scans.Stats(c.Request().Context(), actorID(c), c.QueryParam("period"))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to retrieve stats"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"total_scans":       stats.TotalScans,
		"threats_detected":  stats.ThreatsDetected,
		"quarantined_files": stats.QuarantinedFiles,
		"clean_files":       stats.CleanFiles,
		"threats_by_level":  stats.ThreatsByLevel,
		"last_scan_at":      stats.LastScanAt,
	})
}

// HandleSecurityThreats handles GET /api/security/threats?limit=&offset=.
func (h *Handler) HandleSecurityThreats(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))

	page, err := h.scans.Threats(c.Request().Context(), actorID(c), limit, offset)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to retrieve threats"})
	}
	return c.JSON(http.StatusOK, page)
}

// HandleProfile handles GET /api/profile.
// Returns the actor's aggregate usage and security counters.
func (h *Handler) HandleProfile(c echo.Context) error {
	profile, err := h.repo.GetProfile(c.Request().Context(), actorID(c))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to retrieve profile"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"total_files":      profile.TotalFiles,
		"total_storage":    profile.TotalStorage,
		"scans_performed":  profile.ScansPerformed,
		"threats_detected": profile.ThreatsDetected,
	})
}

// createTeamRequest is the JSON body for POST /api/teams.
type createTeamRequest struct {
	Name string `json:"name"`
}

// HandleCreateTeam handles POST /api/teams.
// The creator is enrolled as the team's owner.
func (h *Handler) HandleCreateTeam(c echo.Context) error {
	var req createTeamRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if req.Name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name is required"})
	}

	team := &database.Team{
		ID:        uuid.New().String(),
		Name:      req.Name,
		OwnerID:   actorID(c),
		CreatedAt: time.Now().UTC(),
	}
	if err := h.repo.CreateTeam(c.Request().Context(), team); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create team"})
	}

	return c.JSON(http.StatusCreated, echo.Map{
		"id":   team.ID,
		"name": team.Name,
	})
}

// HandleNotifications handles GET /api/notifications?limit=.
func (h *Handler) HandleNotifications(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	notifications, err := h.repo.ListNotifications(c.Request().Context(), actorID(c), limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to retrieve notifications"})
	}
	if notifications == nil {
		notifications = []*database.Notification{}
	}
	return c.JSON(http.StatusOK, echo.Map{"notifications": notifications})
}

// HandleHealth handles GET /health.
// Returns the health status of the server, including database and
// object storage connectivity.
func (h *Handler) HandleHealth(c echo.Context) error {
	status := "healthy"
	dbStatus := "connected"
	storeStatus := "connected"

	if err := h.db.HealthCheck(c.Request().Context()); err != nil {
		status = "degraded"
		dbStatus = fmt.Sprintf("error: %v", err)
	}
	if err := h.store.Ping(c.Request().Context()); err != nil {
		status = "degraded"
		storeStatus = fmt.Sprintf("error: %v", err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"status":   status,
		"database": dbStatus,
		"storage":  storeStatus,
	})
}

// mapServiceError translates service-layer errors into appropriate HTTP responses.
func mapServiceError(c echo.Context, err error) error {
	var banned *service.BannedError
	if errors.As(err, &banned) {
		return c.JSON(http.StatusForbidden, echo.Map{
			"error":  "account is banned",
			"reason": banned.Reason,
		})
	}
	var malware *service.MalwareError
	if errors.As(err, &malware) {
		return c.JSON(http.StatusForbidden, echo.Map{
			"error":        "malware detected, upload rejected",
			"threat_level": malware.ThreatLevel,
			"confidence":   malware.Confidence,
		})
	}

	switch {
	case errors.Is(err, service.ErrFileNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "file not found"})
	case errors.Is(err, service.ErrShareNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "share not found"})
	case errors.Is(err, service.ErrShareExpired):
		return c.JSON(http.StatusGone, echo.Map{"error": "share has expired"})
	case errors.Is(err, service.ErrDownloadLimitReached):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "download limit reached"})
	case errors.Is(err, service.ErrPasswordRequired):
		return c.JSON(http.StatusForbidden, echo.Map{
			"error":          "password required",
			"needs_password": true,
		})
	case errors.Is(err, service.ErrPasswordIncorrect):
		return c.JSON(http.StatusForbidden, echo.Map{
			"error":          "incorrect password",
			"needs_password": true,
		})
	case errors.Is(err, service.ErrAccountBanned):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "account is banned"})
	case errors.Is(err, service.ErrNotTeamMember):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "not a member of the target team"})
	case errors.Is(err, service.ErrFileQuarantined):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "file is quarantined"})
	case errors.Is(err, service.ErrDuplicateFile):
		return c.JSON(http.StatusConflict, echo.Map{"error": "identical file already uploaded"})
	case errors.Is(err, service.ErrFileTooLarge):
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error": "file exceeds maximum allowed size",
		})
	case errors.Is(err, service.ErrExtensionBlocked):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "file type is not allowed"})
	case errors.Is(err, service.ErrScanUnavailable):
		return c.JSON(http.StatusServiceUnavailable, echo.Map{
			"error": "malware scanning is temporarily unavailable",
		})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
	}
}
