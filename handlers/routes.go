package handlers

import (
	"eviction_intake_go/config"
	"eviction_intake_go/middleware"
	"eviction_intake_go/services"

	"github.com/labstack/echo/v4"
)

const (
	contextKeyConfig       = "config"
	contextKeySynchronizer = "synchronizer"
)

// Inject makes config and the synchronizer available to handlers
func Inject(cfg *config.Config, syncer *services.CaseSynchronizer) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set(contextKeyConfig, cfg)
			c.Set(contextKeySynchronizer, syncer)
			return next(c)
		}
	}
}

// RegisterRoutes wires the intake, dashboard and health routes
func RegisterRoutes(e *echo.Echo, cfg *config.Config, syncer *services.CaseSynchronizer) {
	e.HTTPErrorHandler = HTTPErrorHandler
	e.Use(Inject(cfg, syncer))

	e.GET("/health", HealthHandler)

	// Public intake (optionally signed)
	intake := e.Group("/api")
	intake.Use(middleware.NewIntakeRateLimiter(cfg.IntakeRateLimit).Middleware())
	intake.Use(middleware.RequireSignature(cfg.WebhookSecret))
	intake.Use(middleware.AuditContext())
	{
		intake.POST("/cases", IntakeHandler)
		intake.POST("/submit-to-github", IntakeHandler)
	}

	// Clerk dashboard
	dashboard := e.Group("/api/dashboard")
	dashboard.Use(middleware.NewDashboardRateLimiter(cfg.DashboardRateLimit).Middleware())
	dashboard.Use(middleware.RequireAdminToken(cfg.AdminTokenHash))
	dashboard.Use(middleware.AuditContext())
	{
		dashboard.GET("/cases", ListCasesHandler)
		dashboard.GET("/cases/:id", GetCaseHandler)
		dashboard.POST("/cases/:id/status", UpdateCaseStatusHandler)
		dashboard.GET("/cases/:id/documents", ListCaseDocumentsHandler)
		dashboard.GET("/cases/:id/documents/:filename", DownloadCaseDocumentHandler)
		dashboard.GET("/cases/:id/download-all", DownloadAllHandler)
		dashboard.GET("/stats", StatsHandler)
		dashboard.GET("/reports/monthly", MonthlyReportHandler)
		dashboard.GET("/index", CaseIndexHandler)
		dashboard.GET("/audit", AuditLogsHandler)
		dashboard.GET("/security", SecurityAlertsHandler)
		dashboard.GET("/export/xlsx", ExportXLSXHandler)
		dashboard.GET("/export/csv", ExportCSVHandler)
	}
}

func getConfig(c echo.Context) *config.Config {
	if cfg, ok := c.Get(contextKeyConfig).(*config.Config); ok {
		return cfg
	}
	return &config.Config{}
}

func getSynchronizer(c echo.Context) *services.CaseSynchronizer {
	syncer, _ := c.Get(contextKeySynchronizer).(*services.CaseSynchronizer)
	return syncer
}
