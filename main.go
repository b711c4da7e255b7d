package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"academy_go/config"
	"academy_go/controllers"
	"academy_go/database"
	"academy_go/database/seeders"
	"academy_go/middleware"
	"academy_go/repository"
	"academy_go/repository/memory"
	"academy_go/routes"
	"academy_go/services"
	"academy_go/services/attendance"
	"academy_go/services/export"
	"academy_go/services/notifications"
	"academy_go/services/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/sirupsen/logrus"
)

func init() {
	// Load configuration
	config.LoadConfig()

	// Initialize logging
	setupLogging()

	// Connect to database
	database.Connect()
}

// backend holds the engine collaborators for the configured driver.
type backend struct {
	store     attendance.Store
	schedules attendance.ScheduleLookup
	directory interface {
		attendance.Directory
		notifications.GuardianLookup
	}
	identity attendance.IdentityResolver
	exports  export.Log
	objects  export.ObjectStore
}

func newBackend(cfg *config.Config) backend {
	if cfg.DBDriver == "memory" {
		db := memory.Open()
		seeders.SeedMemory(db)
		return backend{
			store:     memory.NewAttendanceStore(db),
			schedules: memory.NewScheduleLookup(db),
			directory: memory.NewDirectory(db),
			identity:  memory.NewIdentityResolver(db),
			exports:   memory.NewExportLog(),
			objects:   memory.NewObjects(),
		}
	}

	if cfg.AppEnv == "development" {
		seeders.SeedAll(database.DB)
	}

	var objects export.ObjectStore
	s3Store, err := export.NewS3Store(context.Background(), cfg.AWSRegion, cfg.S3BucketName)
	if err != nil {
		logrus.WithError(err).Warn("S3 unavailable; attendance workbooks kept in memory")
		objects = memory.NewObjects()
	} else {
		objects = s3Store
	}

	return backend{
		store:     repository.NewAttendanceRepository(database.DB, cfg.Location),
		schedules: repository.NewScheduleRepository(database.DB, database.GetRedisClient(), cfg.ScheduleCacheTTL),
		directory: repository.NewDirectoryRepository(database.DB),
		identity:  repository.NewIdentityRepository(database.DB),
		exports:   repository.NewExportRepository(database.DB),
		objects:   objects,
	}
}

func main() {
	cfg := config.AppConfig
	defer database.Close()

	// Create WebSocket hub first
	wsHub := websocket.NewHub()
	go wsHub.Run()

	b := newBackend(cfg)
	engine := attendance.NewService(b.store, b.schedules, b.directory, b.identity, attendance.Options{
		Location:  cfg.Location,
		Listeners: []attendance.Listener{wsHub},
	})

	pusher, err := notifications.NewLinePusher(cfg.LineChannelSecret, cfg.LineChannelToken)
	if err != nil {
		log.Fatal(err)
	}
	var notifier *notifications.LineNotifier
	if pusher != nil {
		notifier = notifications.NewLineNotifier(pusher, b.directory, cfg.Location)
		engine.Subscribe(notifier)
		log.Println("LINE guardian notifications enabled")
	} else {
		log.Println("LINE guardian notifications disabled: missing LINE_CHANNEL_SECRET or LINE_CHANNEL_ACCESS_TOKEN")
	}

	exporter := export.NewExporter(engine, b.objects, b.exports, cfg.Location)
	if cfg.ExportCron != "off" {
		scheduler, err := export.NewScheduler(exporter, cfg.ExportCron)
		if err != nil {
			log.Fatal(err)
		}
		scheduler.Start()
		defer scheduler.Stop()
		log.Printf("Attendance export scheduled at %q (%s)", cfg.ExportCron, cfg.AcademyTimezone)
	}

	// Create Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(helmet.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,HEAD,PATCH,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization,X-Request-ID",
	}))
	app.Use(middleware.RequestID())
	app.Use(middleware.LoggerMiddleware())

	health := services.NewHealthService(cfg.DBDriver, database.GetDB(), database.GetRedisClient(), wsHub.GetClientCount, cfg.AppEnv)
	routes.SetupRoutes(app, routes.Controllers{
		Attendance: controllers.NewAttendanceController(engine),
		Export:     controllers.NewExportController(exporter),
		WebSocket:  controllers.NewWebSocketController(wsHub),
		Health:     controllers.NewHealthController(health),
	})

	// 404 handler
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":  "Route not found",
			"path":   c.Path(),
			"method": c.Method(),
		})
	})

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		log.Println("Shutting down server...")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	log.Printf("Server starting on port %s", cfg.Port)
	log.Printf("Environment: %s, driver: %s, zone: %s", cfg.AppEnv, cfg.DBDriver, cfg.AcademyTimezone)

	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
	if notifier != nil {
		notifier.Wait()
	}
}

// setupLogging configures the logging system
func setupLogging() {
	logrus.SetFormatter(&logrus.JSONFormatter{})

	level, err := logrus.ParseLevel(config.AppConfig.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)

	if config.AppConfig.AppEnv == "development" {
		logrus.SetOutput(os.Stdout)
		return
	}

	// In production, log to file
	if err := os.MkdirAll(filepath.Dir(config.AppConfig.LogFile), 0755); err != nil {
		log.Printf("Warning: Could not create log directory: %v", err)
		return
	}
	file, err := os.OpenFile(config.AppConfig.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err == nil {
		logrus.SetOutput(file)
	}
}

// customErrorHandler handles application errors
func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	// Check if it's a Fiber error
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	logrus.WithFields(logrus.Fields{
		"error":      err.Error(),
		"path":       c.Path(),
		"method":     c.Method(),
		"ip":         c.IP(),
		"status":     code,
		"request_id": c.Locals("request_id"),
	}).Error("Request error")

	return c.Status(code).JSON(fiber.Map{
		"error":  message,
		"code":   code,
		"path":   c.Path(),
		"method": c.Method(),
	})
}
