package main

import (
	"fmt"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/template/html/v2"

	"msgview/config"
	"msgview/export"
	"msgview/handlers/api"
	"msgview/handlers/web"
	"msgview/middleware"
	"msgview/msgfile"
	"msgview/store"
	"msgview/storage"
	"msgview/utils"
)

// maxConcurrentParses bounds file handles and memory under load
const maxConcurrentParses = 8

// Helper function to determine if request is an API request
func isAPIRequest(c *fiber.Ctx) bool {
	if c == nil {
		return false
	}
	path := c.Path()
	return len(path) >= 4 && path[:4] == "/api"
}

func main() {
	utils.Log.Info("Initializing msgview...")

	// Load configuration
	cfg, err := config.LoadConfig("config.toml")
	if err != nil {
		utils.Log.Error("Failed to load config: %v", err)
		os.Exit(1)
	}
	if cfg.Server.Debug {
		utils.Log.SetLevel(utils.DEBUG)
	}

	// Open the domain registry
	domainStore, err := storage.OpenDomainStore(cfg.Storage.DataDir)
	if err != nil {
		utils.Log.Error("Failed to open domain registry: %v", err)
		os.Exit(1)
	}
	defer domainStore.Close()

	// Build the email pipeline
	parser := msgfile.NewParser(cfg.Mail.MaxFileSize)
	repo := store.NewRepository(cfg.Mail.Folder, parser, maxConcurrentParses)
	exporter := export.NewService(repo, cfg.Download.MaxPayloadSize)

	// Initialize template engine with custom functions
	engine := html.New("./templates", ".html")

	// Date formatting function
	engine.AddFunc("formatDate", func(t time.Time) string {
		return t.Format("Jan 02, 2006 15:04")
	})

	// File size formatting function
	engine.AddFunc("formatSize", func(size int64) string {
		const unit = 1024
		if size < unit {
			return fmt.Sprintf("%d B", size)
		}
		div, exp := int64(unit), 0
		for n := size / unit; n >= unit; n /= unit {
			div *= unit
			exp++
		}
		return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
	})

	engine.Reload(cfg.Server.Debug)

	// Initialize Fiber with template engine
	app := fiber.New(fiber.Config{
		Views: engine,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError

			// Check for AppError
			if appErr, ok := err.(*utils.AppError); ok {
				code = appErr.Code
				if code >= 500 {
					utils.Log.Error("Application error: %v", appErr)
				}
			} else if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}

			// Handle API requests differently
			if isAPIRequest(c) {
				return c.Status(code).JSON(fiber.Map{
					"error": err.Error(),
				})
			}

			// Render error page for regular requests
			return c.Status(code).Render("error", fiber.Map{
				"Error": err.Error(),
				"Code":  code,
			})
		},
	})

	// Add global middleware
	app.Use(recover.New())  // Recover from panics
	app.Use(logger.New())   // Request logging
	app.Use(compress.New()) // Response compression
	app.Use(helmet.New(helmet.Config{ // Security headers
		XSSProtection:         "1; mode=block",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "SAMEORIGIN",
		ReferrerPolicy:        "no-referrer",
		ContentSecurityPolicy: "default-src 'self'; script-src 'self' 'unsafe-inline'; style-src 'self' 'unsafe-inline'; img-src 'self' data:;",
	}))

	// Add rate limiting (100 requests per minute per IP)
	app.Use(middleware.RateLimiter(100, time.Minute))

	// Initialize handlers
	pageHandler := web.NewPageHandler(cfg)
	authHandler := api.NewAuthHandler(cfg)
	emailHandler := api.NewEmailHandler(cfg, repo)
	searchHandler := api.NewSearchHandler(cfg, repo)
	downloadHandler := api.NewDownloadHandler(cfg, exporter)
	adminHandler := api.NewAdminHandler(domainStore)

	// Pages
	app.Get("/", pageHandler.ShowIndex)
	app.Get("/login", pageHandler.ShowLogin)

	// Auth routes
	auth := app.Group("/api/auth")
	auth.Post("/login", authHandler.HandleLogin)
	auth.Get("/me", api.AuthMiddleware(cfg), authHandler.HandleMe)
	auth.Post("/logout", api.AuthMiddleware(cfg), authHandler.HandleLogout)

	// Email routes
	emails := app.Group("/api/emails", api.AuthMiddleware(cfg))
	{
		emails.Get("/", emailHandler.HandleList)
		emails.Post("/search", searchHandler.HandleSearch)
		emails.Post("/download", downloadHandler.HandleDownload)
		emails.Get("/stats/summary", emailHandler.HandleStats)
		emails.Get("/:filename/attachments/:name", emailHandler.HandleAttachment)
		emails.Get("/:filename", emailHandler.HandleDetail)
	}

	// Admin routes
	admin := app.Group("/api/admin", api.AuthMiddleware(cfg), api.RequireAdmin())
	{
		admin.Get("/domains", adminHandler.HandleList)
		admin.Post("/domains", adminHandler.HandleAdd)
		admin.Put("/domains/:domain", adminHandler.HandleUpdate)
		admin.Delete("/domains/:domain", adminHandler.HandleDelete)
	}

	// Health check endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		_, err := os.Stat(cfg.Mail.Folder)
		return c.JSON(fiber.Map{
			"status":        "healthy",
			"email_folder":  cfg.Mail.Folder,
			"folder_exists": err == nil,
		})
	})

	// 404 Handler for undefined routes
	app.Use(func(c *fiber.Ctx) error {
		if isAPIRequest(c) {
			return c.Status(404).JSON(fiber.Map{
				"error": "Not found",
			})
		}
		return c.Status(404).Render("error", fiber.Map{
			"Error": "Page not found",
			"Code":  404,
		})
	})

	// Start server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	utils.Log.Info("Starting server on %s...", addr)
	if err := app.Listen(addr); err != nil {
		utils.Log.Error("Error starting server: %v", err)
		os.Exit(1)
	}
}
