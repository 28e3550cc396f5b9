// internal/router/router.go
package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/assetops/license-inventory/internal/config"
	"github.com/assetops/license-inventory/internal/handlers"
	"github.com/assetops/license-inventory/internal/middleware"
	"github.com/assetops/license-inventory/internal/models"
	"github.com/assetops/license-inventory/internal/services"
	"github.com/assetops/license-inventory/internal/utils"
)

func Initialize(db *gorm.DB, cfg *config.Config) *gin.Engine {
	// Initialize services
	auditService := services.NewAuditService(db)
	complianceService := services.NewComplianceService(db, auditService)
	licenseService := services.NewLicenseService(db, auditService, complianceService)
	renewalService := services.NewRenewalService(db, auditService, complianceService)
	deviceService := services.NewDeviceService(db, auditService)
	allocationService := services.NewAllocationService(db, auditService)
	reportService := services.NewReportService(db)
	authService := services.NewAuthService(db, cfg)
	exportService, err := services.NewExportService(cfg, complianceService)
	if err != nil {
		logrus.WithError(err).Warn("Object storage unavailable, compliance export disabled")
	}

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService)
	licenseHandler := handlers.NewLicenseHandler(licenseService)
	deviceHandler := handlers.NewDeviceHandler(deviceService)
	complianceHandler := handlers.NewComplianceHandler(complianceService, exportService)
	renewalHandler := handlers.NewRenewalHandler(renewalService)
	allocationHandler := handlers.NewAllocationHandler(allocationService)
	reportHandler := handlers.NewReportHandler(reportService, auditService)

	// Set JWT secret
	utils.SetJWTSecret(cfg.JWT.SecretKey)

	// Initialize Gin router
	r := gin.New()

	// Global middleware
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"X-Total-Count", "X-Page", "X-Per-Page", "X-Total-Pages"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))
	r.Use(middleware.GeneralRateLimit())

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"version": "1.0.0",
		})
	})

	// API v1 routes
	v1 := r.Group("/v1")
	{
		// Authentication routes
		auth := v1.Group("/auth")
		auth.Use(middleware.AuthRateLimit())
		{
			auth.POST("/login", authHandler.Login)
			auth.GET("/me", middleware.AuthRequired(), authHandler.GetProfile)
		}

		// User management (admin only)
		users := v1.Group("/users")
		users.Use(middleware.AuthRequired(), middleware.AdminRequired())
		{
			users.GET("", authHandler.GetUsers)
			users.POST("", authHandler.CreateUser)
		}

		// License routes
		licenses := v1.Group("/licenses")
		licenses.Use(middleware.AuthRequired())
		{
			licenses.GET("", licenseHandler.GetLicenses)
			licenses.GET("/:id", licenseHandler.GetLicense)

			protected := licenses.Group("")
			protected.Use(middleware.AdminRequired())
			{
				protected.POST("", licenseHandler.CreateLicense)
				protected.PUT("/:id", licenseHandler.UpdateLicense)
				protected.POST("/:id/renew", licenseHandler.RenewLicense)
				protected.DELETE("/:id", licenseHandler.DeleteLicense)
				protected.POST("/import", licenseHandler.ImportLicenses)
			}
		}

		// Device routes
		devices := v1.Group("/devices")
		devices.Use(middleware.AuthRequired())
		{
			devices.GET("", deviceHandler.GetDevices)
			devices.GET("/:id", deviceHandler.GetDevice)

			protected := devices.Group("")
			protected.Use(middleware.AdminRequired())
			{
				protected.POST("", deviceHandler.OnboardDevice)
				protected.PUT("/:id", deviceHandler.UpdateDevice)
				protected.DELETE("/:id", deviceHandler.DeleteDevice)
				protected.POST("/install", deviceHandler.AddInstallation)
				protected.PUT("/install/:installationId", deviceHandler.UpdateInstallation)
				protected.DELETE("/install/:installationId", deviceHandler.RemoveInstallation)
			}
		}

		// Compliance routes
		compliance := v1.Group("/compliance")
		compliance.Use(middleware.AuthRequired())
		{
			compliance.GET("/alerts", complianceHandler.GetAlerts)
			compliance.POST("/run-check", middleware.AdminRequired(), complianceHandler.RunComplianceCheck)
			compliance.POST("/export", middleware.RoleRequired(models.RoleAdmin, models.RoleAuditor), complianceHandler.ExportAlerts)
		}

		// Renewal routes
		renewals := v1.Group("/renewals")
		renewals.Use(middleware.AuthRequired())
		{
			renewals.GET("", renewalHandler.GetRenewals)
			renewals.POST("", middleware.AdminRequired(), renewalHandler.CreateRenewal)
			renewals.PUT("/:id/status", middleware.RoleRequired(models.RoleAdmin, models.RoleFinance), renewalHandler.DecideRenewal)
			renewals.DELETE("/:id", middleware.AdminRequired(), renewalHandler.DeleteRenewal)
		}

		// Cost allocation routes
		allocations := v1.Group("/cost-allocations")
		allocations.Use(middleware.AuthRequired())
		{
			allocations.GET("", allocationHandler.GetAllocations)
			allocations.GET("/by-department", allocationHandler.GetCostByDepartment)
			allocations.PUT("", middleware.RoleRequired(models.RoleAdmin, models.RoleFinance), allocationHandler.ReplaceAllocations)
		}

		// Reporting routes
		reports := v1.Group("/reports")
		reports.Use(middleware.AuthRequired())
		{
			reports.GET("/dashboard", reportHandler.GetDashboardStats)
		}

		// Audit trail
		audit := v1.Group("/audit")
		audit.Use(middleware.AuthRequired(), middleware.RoleRequired(models.RoleAdmin, models.RoleAuditor))
		{
			audit.GET("", reportHandler.GetAuditLogs)
		}
	}

	return r
}
