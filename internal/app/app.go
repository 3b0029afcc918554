package app

import (
	"context"
	"fmt"

	"dreamlog_backend/database"
	"dreamlog_backend/internal/config"
	"dreamlog_backend/internal/email"
	"dreamlog_backend/internal/handlers"
	"dreamlog_backend/internal/logger"
	"dreamlog_backend/internal/middleware"
	"dreamlog_backend/internal/models"
	"dreamlog_backend/internal/routes"
	"dreamlog_backend/internal/services"
	"dreamlog_backend/internal/validator"
	"dreamlog_backend/internal/workers"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func Run() {
	_ = godotenv.Load()

	config.LoadConfig()
	cfg := config.AppConfig
	logger.Init(cfg.Server.Env)
	logger.Info("Logger initialized", "env", cfg.Server.Env)

	gormDB, err := openDatabase(cfg)
	if err != nil {
		logger.Fatal("Failed to connect to database", "error", err)
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		logger.Fatal("Failed to get *sql.DB from GORM", "error", err)
	}
	if err = sqlDB.Ping(); err != nil {
		logger.Fatal("Database unavailable", "error", err)
	}
	logger.Info("Database connected", "driver", cfg.Database.Driver)

	if err := database.AutoMigrate(gormDB); err != nil {
		logger.Fatal("Migration failed", "error", err)
	}

	if err := seedFirstAdmin(gormDB, cfg); err != nil {
		logger.Fatal("Failed to seed first admin user", "error", err)
	}

	sc := buildServices(cfg)
	ginRouter := SetupRouter(cfg, gormDB, sc)

	worker := workers.NewBillingWorker(gormDB, sc.UsageRepo, sc.TokenRepo, cfg.Billing.PruneUsageCounters)
	worker.Start(context.Background())

	address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	logger.Info(fmt.Sprintf("Server starting on %s", address))
	if err := ginRouter.Run(address); err != nil {
		logger.Fatal("Server startup error", "error", err)
	}
}

func openDatabase(cfg *config.Config) (*gorm.DB, error) {
	switch cfg.Database.Driver {
	case "mysql":
		return gorm.Open(mysql.Open(cfg.Database.DSN), &gorm.Config{})
	default:
		return gorm.Open(postgres.Open(cfg.Database.DSN), &gorm.Config{})
	}
}

func buildServices(cfg *config.Config) *services.ServiceContainer {
	var mailer email.Provider
	if cfg.Email.SMTPHost != "" {
		mailer = email.NewSMTPProvider(cfg)
	} else {
		logger.Warn("SMTP is not configured, using a no-op email provider")
		mailer = &MockEmailProvider{}
	}
	return services.NewServiceContainer(cfg, mailer)
}

// SetupRouter builds the gin engine with all middleware and routes. Split out
// of Run so tests can drive the full stack over httptest.
func SetupRouter(cfg *config.Config, gormDB *gorm.DB, sc *services.ServiceContainer) *gin.Engine {
	appHandlers := handlers.NewAppHandlers(sc, validator.New())

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggingMiddleware())
	router.Use(middleware.CORSMiddleware())
	router.Use(middleware.DBMiddleware(gormDB))

	routes.RegisterRoutes(router, appHandlers)
	return router
}

func seedFirstAdmin(db *gorm.DB, cfg *config.Config) error {
	if cfg.FirstAdminEmail == "" || cfg.FirstAdminPassword == "" {
		logger.Warn("FIRST_ADMIN_EMAIL or FIRST_ADMIN_PASSWORD is not set. Skipping admin seeding.")
		return nil
	}

	var count int64
	if err := db.Model(&models.User{}).Where("email = ?", cfg.FirstAdminEmail).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.FirstAdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	admin := &models.User{
		Email:        cfg.FirstAdminEmail,
		PasswordHash: string(hash),
		Name:         "Admin",
		Role:         models.UserRoleAdmin,
		Status:       models.UserStatusActive,
		IsVerified:   true,
		Plan:         models.PlanFree,
	}
	if err := db.Create(admin).Error; err != nil {
		return err
	}
	logger.Info("Seeded first admin user", "email", cfg.FirstAdminEmail)
	return nil
}
