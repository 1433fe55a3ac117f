// api/routes/router.go
package routes

import (
	"net/http"
	"time"

	"boxoffice/internal/shared/config"
	"boxoffice/internal/shared/database"
	"boxoffice/internal/shared/middleware"
	"boxoffice/internal/tickets"
	"boxoffice/pkg/logger"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Router holds all route dependencies
type Router struct {
	config        *config.Config
	db            *database.DB
	ticketService tickets.Service
	sweeper       *tickets.Sweeper
	logger        *logger.Logger
}

// NewRouter creates a new router instance
func NewRouter(cfg *config.Config, db *database.DB, ticketService tickets.Service, sweeper *tickets.Sweeper, log *logger.Logger) *Router {
	if log == nil {
		log = logger.GetDefault()
	}
	return &Router{
		config:        cfg,
		db:            db,
		ticketService: ticketService,
		sweeper:       sweeper,
		logger:        log,
	}
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes(engine *gin.Engine) {
	// Health check and basic info endpoints
	r.setupHealthRoutes(engine)

	// API documentation
	engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// API routes
	api := engine.Group(r.config.GetAPIBasePath())
	{
		r.setupTicketRoutes(api)
	}
}

// setupHealthRoutes sets up health check and system status routes
func (r *Router) setupHealthRoutes(engine *gin.Engine) {
	engine.GET("/health", func(c *gin.Context) {
		health := r.db.Health(c.Request.Context())

		status, code := "healthy", http.StatusOK
		switch {
		case !health.Healthy():
			status, code = "unhealthy", http.StatusServiceUnavailable
		case health.Degraded():
			status = "degraded"
		}

		c.JSON(code, gin.H{
			"status":     status,
			"components": health,
			"timestamp":  time.Now(),
			"service":    "boxoffice",
		})
	})

	engine.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
			"version": r.config.APIVersion,
		})
	})

	engine.GET("/status", func(c *gin.Context) {
		status := gin.H{
			"status":      "operational",
			"api_version": r.config.APIVersion,
			"timestamp":   time.Now(),
			"redis_cache": r.db.GetRedis() != nil && r.config.Redis.CacheEnabled,
		}
		if r.sweeper != nil {
			status["expiry_sweeper"] = r.sweeper.Status()
		}
		c.JSON(http.StatusOK, status)
	})
}

// setupTicketRoutes configures the reservation API
func (r *Router) setupTicketRoutes(rg *gin.RouterGroup) {
	ticketController := tickets.NewController(r.ticketService, r.logger)
	tickets.SetupTicketRoutes(rg, ticketController, middleware.JWTAuthWithConfig(r.config))
}
