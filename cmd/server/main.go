package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/hongdnn/leadsync/common/id"
	"github.com/hongdnn/leadsync/common/llm"
	"github.com/hongdnn/leadsync/common/logger"
	"github.com/hongdnn/leadsync/common/otel"
	"github.com/hongdnn/leadsync/core/config"
	"github.com/hongdnn/leadsync/core/db"
	"github.com/hongdnn/leadsync/internal/http/middleware"
	httprouter "github.com/hongdnn/leadsync/internal/http/router"
	"github.com/hongdnn/leadsync/internal/service"
	"github.com/hongdnn/leadsync/internal/service/chat"
	"github.com/hongdnn/leadsync/internal/service/codehost"
	"github.com/hongdnn/leadsync/internal/service/docs"
	"github.com/hongdnn/leadsync/internal/service/issue_tracker"
	"github.com/hongdnn/leadsync/internal/store"
)

func main() {
	fmt.Printf("%s\n", banner)
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

	// OTel must init before logger (logger uses OTel provider in production)
	telemetry, err := otel.Setup(ctx, cfg.OTel)
	if err != nil {
		// Logger is not configured yet at this point
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger.Setup(cfg)

	if telemetry != nil {
		slog.InfoContext(ctx, "otel initialized", "endpoint", cfg.OTel.Endpoint)
	} else {
		slog.InfoContext(ctx, "otel disabled (no endpoint configured)")
	}

	slog.InfoContext(ctx, "leadsync starting", "env", cfg.Env, "code_host", cfg.CodeHost)
	if err := id.Init(1); err != nil {
		slog.ErrorContext(ctx, "failed to initialize snowflake id generator", "error", err)
		os.Exit(1)
	}

	var stores *store.Stores
	if cfg.Memory.Enabled {
		database, err := db.New(ctx, cfg.DB)
		if err != nil {
			slog.ErrorContext(ctx, "failed to open memory database", "error", err)
			os.Exit(1)
		}
		defer database.Close()
		stores = store.NewStores(database.SQL())
		slog.InfoContext(ctx, "memory database ready", "path", cfg.DB.Path)
	} else {
		slog.InfoContext(ctx, "memory persistence disabled")
	}

	var redisClient *redis.Client
	if cfg.Cache.Enabled() {
		redisOpts, err := redis.ParseURL(cfg.Cache.RedisURL)
		if err != nil {
			slog.ErrorContext(ctx, "failed to parse redis url", "error", err)
			os.Exit(1)
		}
		redisClient = redis.NewClient(redisOpts)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			slog.ErrorContext(ctx, "failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer redisClient.Close()
		slog.InfoContext(ctx, "redis connected")
	}

	llmClient, err := llm.New(llm.Config{
		APIKey:  cfg.LLM.APIKey,
		BaseURL: cfg.LLM.BaseURL,
		Model:   cfg.LLM.Model,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to create llm client", "error", err)
		os.Exit(1)
	}

	code, err := codehost.New(cfg)
	if err != nil {
		slog.ErrorContext(ctx, "failed to create code host client", "error", err)
		os.Exit(1)
	}

	docsService := docs.NewGoogleDocsService(cfg.GoogleDocs)
	if redisClient != nil {
		ttl := time.Duration(cfg.Cache.TTLMinutes) * time.Minute
		docsService = docs.NewCachedService(docsService, redisClient, ttl)
	}

	services := service.NewServices(
		cfg,
		stores,
		llmClient,
		issue_tracker.NewJiraIssueTrackerService(cfg.Jira),
		code,
		chat.NewSlackService(cfg.Slack),
		docsService,
		slog.Default(),
	)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := setupRouter(cfg, services)
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.InfoContext(ctx, "http server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.ErrorContext(ctx, "http server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.InfoContext(ctx, "shutting down...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.ErrorContext(shutdownCtx, "http server shutdown error", "error", err)
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
		}
	}

	slog.InfoContext(shutdownCtx, "shutdown complete")
}

func setupRouter(cfg config.Config, services *service.Services) *gin.Engine {
	router := gin.New()

	// Order matters: OTel creates span → Recovery catches panics → Logger logs with trace context
	if cfg.OTel.Enabled() {
		router.Use(otelgin.Middleware(cfg.OTel.ServiceName))
	}
	router.Use(middleware.Recovery())
	router.Use(middleware.Logger())

	httprouter.SetupRoutes(router, services, httprouter.Config{
		TriggerToken: cfg.TriggerToken,
	})

	return router
}

const banner = `
██╗     ███████╗ █████╗ ██████╗ ███████╗██╗   ██╗███╗   ██╗ ██████╗
██║     ██╔════╝██╔══██╗██╔══██╗██╔════╝╚██╗ ██╔╝████╗  ██║██╔════╝
██║     █████╗  ███████║██║  ██║███████╗ ╚████╔╝ ██╔██╗ ██║██║
██║     ██╔══╝  ██╔══██║██║  ██║╚════██║  ╚██╔╝  ██║╚██╗██║██║
███████╗███████╗██║  ██║██████╔╝███████║   ██║   ██║ ╚████║╚██████╗
╚══════╝╚══════╝╚═╝  ╚═╝╚═════╝ ╚══════╝   ╚═╝   ╚═╝  ╚═══╝ ╚═════╝
`
