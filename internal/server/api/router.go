package api

import (
	"secureshare/internal/server/config"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// SetupRouter creates and configures the echo router with all routes and middleware.
func SetupRouter(handler *Handler, auth *Authenticator, cfg *config.Config) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	// Global middleware
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Content-Type", "Authorization", "X-User-ID"},
	}))
	e.Use(RequestLogger())

	// Rate limiter on upload endpoint only
	uploadLimiter := NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)

	// Health
	e.GET("/health", handler.HandleHealth)

	// Share resolution and download recording are public: knowledge of
	// the token is the credential.
	e.GET("/api/shares/:token", handler.HandleResolveShare)
	e.POST("/api/shares/:token/download", handler.HandleRecordDownload)

	// Authenticated API
	authed := e.Group("/api", auth.Middleware())
	authed.POST("/upload", handler.HandleUpload, uploadLimiter.Middleware())
	authed.POST("/shares", handler.HandleCreateShare)
	authed.POST("/scan", handler.HandleScan)
	authed.GET("/files/:id", handler.HandleGetFile)
	authed.DELETE("/files/:id", handler.HandleDeleteFile)
	authed.GET("/security/stats", handler.HandleSecurityStats)
	authed.GET("/security/threats", handler.HandleSecurityThreats)
	authed.GET("/notifications", handler.HandleNotifications)
	authed.GET("/profile", handler.HandleProfile)
	authed.POST("/teams", handler.HandleCreateTeam)

	return e
}
