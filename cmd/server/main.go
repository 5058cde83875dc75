// The gateway: REST + gRPC + WebSocket chat + SSE bridge over the
// domain services.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"mangahub/internal/cache"
	"mangahub/internal/core"
	"mangahub/internal/gateway"
	grpcserver "mangahub/internal/protocols/grpc"
	httpserver "mangahub/internal/protocols/http"
	"mangahub/internal/protocols/websocket"
	"mangahub/internal/repository"
	"mangahub/pkg/config"
	"mangahub/pkg/database"
	"mangahub/pkg/logger"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "config file path")
	flag.Parse()

	godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger.Init(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})

	db, err := database.Open(database.Config{
		Driver: cfg.Database.Driver,
		DSN:    cfg.Database.DSN,
	})
	if err != nil {
		logger.Fatalf("store init failed: %v", err)
	}
	defer db.Close()

	// Repositories and cache.
	userRepo := repository.NewUserRepository(db)
	mangaRepo := repository.NewMangaRepository(db)
	libraryRepo := repository.NewLibraryRepository(db)
	progressRepo := repository.NewProgressRepository(db)
	ratingRepo := repository.NewRatingRepository(db)
	ratingCache := cache.NewRatingCache(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)

	// Connectivity fabric: chat hub, SSE hubs, bus clients, dispatcher.
	chatHub := websocket.NewHub()
	progressHub := gateway.NewSSEHub("progress")
	notificationsHub := gateway.NewSSEHub("notifications")
	userManager := gateway.NewUserManager(cfg.TCP.Addr, progressHub)
	udpBridge := gateway.NewUDPBridge(cfg.UDP.Addr, notificationsHub)
	dispatcher := gateway.NewDispatcher(cfg.TCP.TriggerURL, cfg.UDP.TriggerURL, chatHub)

	// Domain services.
	authService := core.NewAuthService(userRepo, cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.Expiration)
	catalogService := core.NewCatalogService(mangaRepo, dispatcher)
	libraryService := core.NewLibraryService(libraryRepo, mangaRepo, dispatcher)
	progressService := core.NewProgressService(progressRepo, libraryRepo, mangaRepo, dispatcher)
	ratingService := core.NewRatingService(ratingRepo, mangaRepo, ratingCache)

	chatHandler := websocket.NewHandler(chatHub, authService, cfg.Server.CORSAllowOrigins)

	router := httpserver.NewRouter(httpserver.RouterDeps{
		Auth:             authService,
		Catalog:          catalogService,
		Library:          libraryService,
		Progress:         progressService,
		Rating:           ratingService,
		DB:               db,
		ProgressHub:      progressHub,
		NotificationsHub: notificationsHub,
		UserManager:      userManager,
		Chat:             chatHandler,

		CORSAllowOrigins:   cfg.Server.CORSAllowOrigins,
		RateLimitPerMinute: cfg.Server.RateLimitPerMinute,
		MaxRequestSizeMB:   cfg.Server.MaxRequestSizeMB,
	})

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	grpcService := grpcserver.NewService(authService, catalogService, libraryService, progressService, ratingService)
	grpcSrv := grpcserver.NewServer(
		fmt.Sprintf("%s:%d", cfg.GRPC.Host, cfg.GRPC.Port), grpcService, authService)

	udpBridge.Start()

	errs := make(chan error, 2)
	go func() {
		logger.Infof("REST gateway listening on %s", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errs <- fmt.Errorf("http: %w", err)
		}
	}()
	go func() {
		if err := grpcSrv.Start(); err != nil {
			errs <- fmt.Errorf("grpc: %w", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errs:
		logger.Errorf("gateway failed: %v", err)
		os.Exit(1)
	case sig := <-quit:
		logger.Infof("received %s, shutting down", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(ctx); err != nil {
		logger.Warnf("http shutdown: %v", err)
	}
	grpcSrv.Stop()
	userManager.Stop()
	udpBridge.Stop()
	chatHub.Stop()
	logger.Info("gateway stopped")
}
