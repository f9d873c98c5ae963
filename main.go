package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"article-cms/config"
	"article-cms/handlers"
	"article-cms/helper"
	"article-cms/logger"
	"article-cms/markup"
	"article-cms/observability"
	"article-cms/realtime"
	"article-cms/realtime/bus"
	"article-cms/repositories"
	"article-cms/services"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	appLog, err := logger.New(cfg.Log.Mode, cfg.Log.Level)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer appLog.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing := observability.InitTracing(ctx, appLog, cfg.Env, cfg.Tracing)
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			appLog.Warn("tracer shutdown failed", "error", err)
		}
	}()

	// Initialize database
	db, err := config.InitDB(&cfg.Database, appLog)
	if err != nil {
		appLog.Fatal("failed to connect database", "error", err)
	}
	if cfg.Database.AutoMigrate {
		err = config.AutoMigrate(db)
	} else {
		err = config.RunMigrations(db, appLog)
	}
	if err != nil {
		appLog.Fatal("failed to migrate database", "error", err)
	}

	// Realtime hub, fanned out through redis when configured
	hub := realtime.NewHub(appLog, cfg.Engine.ClientBuffer)
	if cfg.Redis.Addr != "" {
		rdb, err := bus.Dial(ctx, cfg.Redis.Addr)
		if err != nil {
			appLog.Fatal("failed to connect redis", "error", err)
		}
		roomBus, err := bus.NewRedisBus(appLog, rdb, cfg.Redis.Channel)
		if err != nil {
			appLog.Fatal("failed to create room bus", "error", err)
		}
		if err := hub.UseBus(ctx, roomBus); err != nil {
			appLog.Fatal("failed to start room bus", "error", err)
		}
		defer roomBus.Close()
		appLog.Info("room bus enabled", "addr", cfg.Redis.Addr, "channel", cfg.Redis.Channel)
	}

	// Initialize repositories and services
	repos := repositories.New(db)
	versioning := services.NewVersioningService(repos, markup.NewHTMLNormalizer(), appLog)
	collab := services.NewCollaborationService(hub, repos, appLog, services.WithLockTTL(cfg.Engine.LockTTL))
	authService := services.NewAuthService(repos.Users)

	// Initialize handlers
	httpHelper := helper.NewHTTPHelper()
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := handlers.NewRouter(handlers.RouterConfig{
		ServiceName:   cfg.Tracing.ServiceName,
		CORSOrigins:   cfg.Server.CORSOrigins,
		Logger:        appLog,
		Auth:          handlers.NewAuthHandler(authService, httpHelper),
		Articles:      handlers.NewArticleHandler(versioning, httpHelper),
		Versions:      handlers.NewVersionHandler(versioning, collab, appLog, httpHelper),
		Templates:     handlers.NewTemplateHandler(versioning, httpHelper),
		Pages:         handlers.NewPageHandler(versioning, httpHelper),
		Collaboration: handlers.NewCollaborationHandler(collab, hub, httpHelper),
		Admin:         handlers.NewAdminHandler(versioning, cfg.Engine.RebuildParallelism, httpHelper),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		appLog.Info("Server starting", "port", cfg.Server.Port, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLog.Fatal("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	appLog.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLog.Error("server shutdown failed", "error", err)
	}
}
