package http

import (
	"github.com/gin-gonic/gin"
)

// RouterConfig holds the dependencies of the HTTP API. TaskQueue and Scheduler are
// optional; without a queue, long-running operations run inside the request.
type RouterConfig struct {
	Profiles   ProfileManager
	Providers  ProviderCatalog
	Operations AccountOperations
	Books      BookLister
	Events     EventSource
	TaskQueue  TaskQueue
	Scheduler  SyncScheduler
	// AuditRetentionDays is the default retention for manually triggered audit cleanups.
	AuditRetentionDays int
	Version            string
}

// NewRouter creates and configures the HTTP router with all endpoints.
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	// Book IDs are URIs; escaped slashes must survive routing.
	router.UseRawPath = true
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(securityHeaders())

	health := NewHealthController(cfg.Profiles, cfg.Books, cfg.Version)
	profilesController := NewProfilesController(cfg.Profiles, cfg.Operations)
	accountsController := NewAccountsController(cfg.Operations, cfg.Providers, cfg.Books, cfg.TaskQueue)
	booksController := NewBooksController(cfg.Operations, cfg.Books, cfg.TaskQueue)

	// Health endpoints
	router.GET("/health", health.Status)
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"message": "pong",
		})
	})

	api := router.Group("/api")

	// Profile endpoints
	api.GET("/profiles", profilesController.ListProfiles)
	api.POST("/profiles", profilesController.CreateProfile)
	api.GET("/profiles/current", profilesController.GetCurrentProfile)
	api.PUT("/profiles/current", profilesController.UpdateCurrentProfile)
	api.POST("/profiles/:id/select", profilesController.SelectProfile)
	api.DELETE("/profiles/:id", profilesController.DeleteProfile)

	// Provider and account endpoints
	api.GET("/providers", accountsController.ListProviders)
	api.GET("/accounts", accountsController.ListAccounts)
	api.POST("/accounts", accountsController.CreateAccount)
	api.DELETE("/accounts/:id", accountsController.DeleteAccount)
	api.POST("/accounts/:id/login", accountsController.Login)
	api.POST("/accounts/:id/logout", accountsController.Logout)
	api.POST("/accounts/:id/sync", accountsController.SyncAccount)

	// Book endpoints
	api.GET("/books", booksController.GetAllBooks)
	api.GET("/books/:id", booksController.GetBook)
	api.POST("/books/:id/revoke", booksController.RevokeBook)
	api.POST("/books/:id/dismiss", booksController.DismissRevokeFailure)
	api.POST("/books/:id/download", booksController.DownloadBook)
	api.DELETE("/books/:id", booksController.DeleteBook)

	if cfg.Events != nil {
		api.GET("/events", NewEventsController(cfg.Events).Stream)
	}

	// Task queue endpoints
	if cfg.TaskQueue != nil {
		tasksController := NewTasksController(cfg.TaskQueue, cfg.AuditRetentionDays)
		api.GET("/tasks/types", tasksController.ListTaskTypes)
		api.GET("/tasks/:id", tasksController.GetTaskStatus)
		api.POST("/tasks/:type/run", tasksController.RunTask)
	}

	// Periodic sync endpoints
	if cfg.Scheduler != nil {
		syncController := NewSyncController(cfg.Scheduler)
		api.GET("/sync/status", syncController.Status)
		api.POST("/sync/run", syncController.RunNow)
	}

	return router
}

// securityHeaders sets conservative response headers on every response.
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "no-referrer")
		c.Next()
	}
}
