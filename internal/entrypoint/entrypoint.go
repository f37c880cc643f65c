package entrypoint

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/patron/internal/config"
	http_controllers "github.com/mrlokans/patron/internal/http"
	"github.com/mrlokans/patron/internal/scheduler"
	"github.com/mrlokans/patron/internal/tasks"
)

// ShutdownFunc is called during graceful shutdown to clean up resources.
type ShutdownFunc func(ctx context.Context)

func Serve(router *gin.Engine, cfg *config.Config, onShutdown ShutdownFunc) {
	timeout := time.Duration(cfg.Global.ShutdownTimeoutInSeconds) * time.Second

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler: router,
	}

	go func() {
		fmt.Printf("Starting server at %s:%d\n", cfg.HTTP.Host, cfg.HTTP.Port)
		// service connections
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	// kill (no param) default send syscall.SIGTERM
	// kill -2 is syscall.SIGINT
	// kill -9 is syscall.SIGKILL but can't be caught, so don't need to add it
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Printf("Shutdown Server, waiting %v before killing\n", timeout)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// Call shutdown callback first (e.g., to stop task queue)
	if onShutdown != nil {
		onShutdown(ctx)
	}

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server Shutdown:", err)
	}

	log.Println("Server exiting")
}

func Run(cfg *config.Config, version string) {
	log.Printf("Starting Patron v%s", version)

	app, err := Bootstrap(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	defer func() {
		if err := app.Close(); err != nil {
			log.Printf("Error closing profiles: %v", err)
		}
	}()

	// Initialize task queue if enabled
	var taskClient *tasks.Client
	var taskCtxCancel context.CancelFunc
	if cfg.Tasks.Enabled {
		taskCfg := tasks.Config{
			Workers:         cfg.Tasks.Workers,
			ReleaseAfter:    cfg.Tasks.ReleaseAfter,
			CleanupInterval: cfg.Tasks.CleanupInterval,
		}

		taskClient, err = tasks.NewClient(cfg.Storage.DataDir, taskCfg)
		if err != nil {
			log.Fatalf("Failed to initialize task queue: %v", err)
		}
		defer func() {
			if err := taskClient.Close(); err != nil {
				log.Printf("Error closing task client: %v", err)
			}
		}()

		// Register task queues
		taskClient.Register(tasks.NewAccountQueues(app.Controller)...)
		taskClient.Register(tasks.NewCleanupAuditRecordsQueue(app.Auditor))

		// Start task workers in background
		var taskCtx context.Context
		taskCtx, taskCtxCancel = context.WithCancel(context.Background())
		go taskClient.Start(taskCtx)

		if _, err := taskClient.Enqueue(tasks.CleanupAuditRecordsTask{RetentionDays: cfg.Audit.RetentionDays}); err != nil {
			log.Printf("WARNING: Failed to enqueue audit cleanup: %v", err)
		}
	}

	// Initialize periodic account sync if enabled
	var syncScheduler *scheduler.AccountSyncScheduler
	if cfg.Sync.Enabled {
		syncScheduler = scheduler.NewAccountSyncScheduler(app.Profiles, app.Controller, scheduler.Config{
			Enabled:     true,
			Schedule:    cfg.Sync.Schedule,
			Parallelism: cfg.Sync.Parallelism,
			Timeout:     cfg.Sync.Timeout,
		})
		if err := syncScheduler.Start(context.Background()); err != nil {
			log.Printf("WARNING: Failed to start sync scheduler: %v", err)
			syncScheduler = nil
		}
	}

	routerCfg := http_controllers.RouterConfig{
		Profiles:           app.Profiles,
		Providers:          app.Providers,
		Operations:         app.Controller,
		Books:              app.Registry,
		Events:             app.Registry,
		AuditRetentionDays: cfg.Audit.RetentionDays,
		Version:            version,
	}
	// Typed nils must not reach the router's optional interfaces.
	if taskClient != nil {
		routerCfg.TaskQueue = taskClient
	}
	if syncScheduler != nil {
		routerCfg.Scheduler = syncScheduler
	}

	router := http_controllers.NewRouter(routerCfg)

	// Shutdown callback for graceful cleanup
	onShutdown := func(ctx context.Context) {
		if syncScheduler != nil {
			syncScheduler.Stop()
		}
		if taskClient != nil && taskCtxCancel != nil {
			taskClient.Stop(ctx)
			taskCtxCancel()
		}
	}

	Serve(router, cfg, onShutdown)
}
