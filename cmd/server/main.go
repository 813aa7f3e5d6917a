package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/houzhh15/mergeq/cmd/server/internal/api"
	"github.com/houzhh15/mergeq/cmd/server/internal/config"
	"github.com/houzhh15/mergeq/cmd/server/internal/docstore"
	"github.com/houzhh15/mergeq/cmd/server/internal/mail"
	"github.com/houzhh15/mergeq/cmd/server/internal/middleware"
	"github.com/houzhh15/mergeq/cmd/server/internal/notify"
	"github.com/houzhh15/mergeq/cmd/server/internal/templates"
	"github.com/houzhh15/mergeq/cmd/server/internal/trigger"
	"github.com/houzhh15/mergeq/cmd/server/internal/users"
	"github.com/houzhh15/mergeq/pkg/logger"
)

const version = "1.0.0"

// generateRandomPassword generates a cryptographically secure random password
func generateRandomPassword(length int) string {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		panic(fmt.Sprintf("failed to generate random password: %v", err))
	}
	return base64.URLEncoding.EncodeToString(bytes)[:length]
}

func main() {
	configPath := flag.String("config", "config.yaml", "path to the config file")
	portOverride := flag.Int("port", 0, "override the configured listen port")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("mergeq-server", version)
		return
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}
	if *portOverride != 0 {
		cfg.Server.Port = *portOverride
	}

	logInstance, err := logger.Init(logger.Config{
		Level:       cfg.Log.Level,
		Environment: cfg.Server.Env,
		WithSource:  cfg.Log.WithSource,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	appLogger := logInstance.With("component", "mergeq-server")
	appLogger.Info("configuration loaded", "env", cfg.Server.Env, "port", cfg.Server.Port)

	if cfg.Server.Env == "prod" || cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := context.Background()

	store, err := docstore.NewFileStore(cfg.Data.Dir)
	if err != nil {
		appLogger.Error("document store init failed", "error", err)
		os.Exit(1)
	}

	userManager, err := users.NewManager(ctx, cfg.Data.Dir, []byte(cfg.Security.JWTSecret), store)
	if err != nil {
		appLogger.Error("user manager init failed", "error", err)
		os.Exit(1)
	}
	adminPassword := cfg.Security.AdminDefaultPassword
	if adminPassword == "" {
		adminPassword = generateRandomPassword(16)
		appLogger.Warn("generated random admin password", "password", adminPassword)
	}
	if err := userManager.EnsureDefaultAdmin(ctx, adminPassword); err != nil {
		appLogger.Error("default admin setup failed", "error", err)
		os.Exit(1)
	}

	renderer, err := templates.NewRenderer()
	if err != nil {
		appLogger.Error("template init failed", "error", err)
		os.Exit(1)
	}

	var mailer mail.Mailer
	if cfg.Notifications.SendGridAPIKey != "" {
		mailer = mail.NewSendGridMailer(cfg.Notifications.SendGridAPIKey)
		appLogger.Info("mail delivery ready", "provider", "sendgrid")
	} else {
		mailer = mail.NewLogMailer(logInstance.With("component", "mail"))
		appLogger.Warn("no mail API key configured, notifications will only be logged")
	}

	var auditLog *notify.AuditLog
	if cfg.Notifications.AuditLogPath != "" {
		auditLog = notify.NewAuditLog(cfg.Notifications.AuditLogPath)
	}

	notifier := notify.NewNotifier(notify.Options{
		Enabled:   cfg.Notifications.Enabled,
		FromEmail: cfg.Notifications.FromEmail,
		FromName:  cfg.Notifications.FromName,
	}, store, renderer, mailer, auditLog, logInstance.With("component", "notify"))

	runner := trigger.NewRunner(int64(cfg.Notifications.MaxConcurrent), logInstance.With("component", "trigger"))
	store.OnWrite("queues/{queueID}/items/{itemID}", runner.Async("queue-item-change", notifier.HandleChange))

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/api/v1/health", api.HandleHealth(version))
	r.POST("/api/v1/login", api.HandleLogin(userManager))

	v1 := r.Group("/api/v1", api.RequireAuth(userManager, logInstance.With("component", "auth")))
	v1.GET("/queues", api.HandleListQueues(store))
	v1.POST("/queues", api.HandleCreateQueue(store))
	v1.GET("/queues/:queueID", api.HandleGetQueue(store))
	v1.PUT("/queues/:queueID", api.HandleUpdateQueue(store))
	v1.DELETE("/queues/:queueID", api.HandleDeleteQueue(store))
	v1.GET("/queues/:queueID/items", api.HandleListItems(store))
	v1.POST("/queues/:queueID/items", api.HandleCreateItem(store))
	v1.GET("/queues/:queueID/items/:itemID", api.HandleGetItem(store))
	v1.PUT("/queues/:queueID/items/:itemID", api.HandleUpdateItem(store))
	v1.DELETE("/queues/:queueID/items/:itemID", api.HandleDeleteItem(store))

	serverAddr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    serverAddr,
		Handler: r,
	}

	go func() {
		appLogger.Info("server starting", "addr", serverAddr, "env", cfg.Server.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	<-quit
	appLogger.Info("shutdown signal received, shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	// Drain in-flight notification triggers before exiting.
	if err := runner.Wait(shutdownCtx); err != nil {
		appLogger.Warn("trigger drain timed out", "error", err)
	}
	appLogger.Info("server shutdown complete")
}
