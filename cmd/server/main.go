package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"strings"

	_ "github.com/afrocoder16/mkc-songbook/docs" // swagger docs

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/afrocoder16/mkc-songbook/internal/auth"
	"github.com/afrocoder16/mkc-songbook/internal/cache"
	"github.com/afrocoder16/mkc-songbook/internal/config"
	"github.com/afrocoder16/mkc-songbook/internal/db"
	"github.com/afrocoder16/mkc-songbook/internal/handler"
	"github.com/afrocoder16/mkc-songbook/internal/mail"
	"github.com/afrocoder16/mkc-songbook/internal/model"
	"github.com/afrocoder16/mkc-songbook/internal/otp"
	"github.com/afrocoder16/mkc-songbook/internal/repository"
	"github.com/afrocoder16/mkc-songbook/internal/router"
	"github.com/afrocoder16/mkc-songbook/internal/service"
	"github.com/afrocoder16/mkc-songbook/internal/storage"
)

// @title MKC Songbook API
// @version 1.0
// @description Choir song and lyrics management API with OTP-verified accounts, song search and media uploads.
// @host localhost:8080
// @BasePath /api
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	cfg := config.Load()

	e := echo.New()
	e.Use(middleware.RequestID())

	gormDB, err := db.NewMySQL(cfg.MySQLDSN)
	if err != nil {
		log.Fatalf("database init: %v", err)
	}

	// The album/song join table carries track numbers, so gorm needs the
	// join model registered before migrations run.
	if err := gormDB.SetupJoinTable(&model.Album{}, "Songs", &model.AlbumTrack{}); err != nil {
		log.Fatalf("join table setup: %v", err)
	}
	if err := gormDB.SetupJoinTable(&model.Song{}, "Albums", &model.AlbumTrack{}); err != nil {
		log.Fatalf("join table setup: %v", err)
	}

	// Drop tables if RESET_DB environment variable is set
	if os.Getenv("RESET_DB") == "true" {
		log.Println("RESET_DB=true detected, dropping all tables...")
		tables := []interface{}{
			&model.AlbumTrack{},
			&model.SearchHistory{},
			&model.Album{},
			&model.Song{},
			&model.User{},
		}
		for _, table := range tables {
			if err := gormDB.Migrator().DropTable(table); err != nil {
				log.Printf("Warning: Failed to drop table (may not exist): %v", err)
			}
		}
		log.Println("Tables dropped")
	}

	// Run migrations for all models
	if err := gormDB.AutoMigrate(
		&model.User{},
		&model.Song{},
		&model.Album{},
		&model.SearchHistory{},
	); err != nil {
		log.Fatalf("auto-migrate: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPass,
		DB:       cfg.RedisDB,
	})
	cacheClient := cache.New(rdb)

	minioClient, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
	})
	if err != nil {
		log.Fatalf("object storage init: %v", err)
	}
	objectStore, err := storage.NewClient(context.Background(), minioClient, cfg.MinioBucket)
	if err != nil {
		log.Fatalf("object storage init: %v", err)
	}

	mailer := mail.NewClient(cfg.MailServerToken, cfg.MailFrom)
	if !mailer.Configured() {
		log.Println("Warning: MAIL_SERVER_TOKEN is not set, verification emails will fail")
	}
	ledger := otp.NewLedger(otp.NewRedisStore(rdb), mailer)

	// Initialize repositories
	userRepo := repository.NewUserRepository(gormDB)
	songRepo := repository.NewSongRepository(gormDB)
	albumRepo := repository.NewAlbumRepository(gormDB)
	historyRepo := repository.NewSearchHistoryRepository(gormDB)

	// Initialize auth components
	jwtService := auth.NewJWTService(cfg.JWTSecret)
	tokenStore := auth.NewTokenStore(rdb)

	// Initialize services
	authService := service.NewAuthService(userRepo, ledger, jwtService, tokenStore)
	songService := service.NewSongService(songRepo, albumRepo, historyRepo, objectStore, cacheClient)
	albumService := service.NewAlbumService(albumRepo, songRepo, objectStore)
	userService := service.NewUserService(userRepo, historyRepo)

	// Initialize handlers
	authHandler := handler.NewAuthHandler(authService)
	songHandler := handler.NewSongHandler(songService)
	albumHandler := handler.NewAlbumHandler(albumService)
	userHandler := handler.NewUserHandler(userService)

	// Register routes
	router.Register(
		e,
		cfg,
		jwtService,
		authHandler,
		songHandler,
		albumHandler,
		userHandler,
	)

	if err := bootstrapAdmin(cfg, userRepo); err != nil {
		log.Fatalf("admin bootstrap: %v", err)
	}

	// Log swagger full path
	var swaggerURL string
	if cfg.SwaggerHost != "" {
		// SwaggerHost may already include scheme (http:// or https://)
		if strings.HasPrefix(cfg.SwaggerHost, "http://") || strings.HasPrefix(cfg.SwaggerHost, "https://") {
			swaggerURL = cfg.SwaggerHost + "/swagger/index.html"
		} else {
			swaggerURL = "http://" + cfg.SwaggerHost + "/swagger/index.html"
		}
	} else {
		swaggerURL = "http://localhost:" + cfg.ServerPort + "/swagger/index.html"
	}
	log.Printf("Swagger documentation available at: %s", swaggerURL)

	addr := ":" + cfg.ServerPort
	if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server start: %v", err)
	}
}

// bootstrapAdmin guarantees an administrator account exists so a fresh
// deployment can be managed. Skipped when no password is configured.
func bootstrapAdmin(cfg *config.Config, userRepo repository.UserRepository) error {
	if cfg.DefaultAdminPassword == "" {
		log.Println("DEFAULT_ADMIN_PASSWORD is not set, skipping admin bootstrap")
		return nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.DefaultAdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return userRepo.EnsureAdmin(context.Background(), &model.User{
		Username:     cfg.DefaultAdminUsername,
		Email:        cfg.DefaultAdminEmail,
		Name:         cfg.DefaultAdminName,
		PhotoLink:    cfg.DefaultAdminPhoto,
		PasswordHash: string(hash),
		Role:         model.RoleAdmin,
	})
}
