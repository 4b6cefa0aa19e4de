// api/routes/router.go
package routes

import (
	"net/http"
	"time"

	"fanclub/internal/membership"
	"fanclub/internal/shared/config"
	"fanclub/internal/shared/database"
	"fanclub/internal/shared/middleware"
	"fanclub/internal/storefront/holds"
	"fanclub/internal/storefront/orders"
	"fanclub/internal/storefront/tiers"
	"fanclub/pkg/cache"
	"fanclub/pkg/logger"
	"fanclub/pkg/ratelimit"

	"github.com/gin-gonic/gin"
)

// Router holds all route dependencies
type Router struct {
	config      *config.Config
	db          *database.DB
	rateLimiter *ratelimit.RateLimiter
	publisher   orders.OrderEventPublisher
	log         *logger.Logger
}

// NewRouter creates a new router instance. rateLimiter and publisher may
// be nil.
func NewRouter(cfg *config.Config, db *database.DB, rateLimiter *ratelimit.RateLimiter, publisher orders.OrderEventPublisher, log *logger.Logger) *Router {
	if log == nil {
		log = logger.GetDefault()
	}
	return &Router{
		config:      cfg,
		db:          db,
		rateLimiter: rateLimiter,
		publisher:   publisher,
		log:         log,
	}
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes(engine *gin.Engine) {
	r.setupHealthRoutes(engine)

	api := engine.Group(r.config.GetAPIBasePath())
	api.Use(middleware.FanAuth(r.config))
	{
		orderRepo := orders.NewRepository(r.db.GetSQL())
		holdService := r.setupHoldRoutes(api, orderRepo)
		r.setupOrderRoutes(api, orderRepo, holdService)
		r.setupMembershipRoutes(api)
	}
}

// setupHealthRoutes sets up health check and system status routes
func (r *Router) setupHealthRoutes(engine *gin.Engine) {
	engine.GET("/health", func(c *gin.Context) {
		if err := r.db.HealthCheck(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":    "unhealthy",
				"error":     err.Error(),
				"timestamp": time.Now(),
				"service":   "fanclub-storefront",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now(),
			"service":   "fanclub-storefront",
		})
	})

	engine.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
			"version": r.config.APIVersion,
		})
	})
}

// setupHoldRoutes configures availability and seat hold routes
func (r *Router) setupHoldRoutes(rg *gin.RouterGroup, sold holds.SoldSeatSource) holds.Service {
	holdRepo := holds.NewRepository(r.db.GetRedis())
	holdService := holds.NewService(holdRepo, sold, cache.NewService(r.db.GetRedis(), r.log), r.config, r.log)
	holdController := holds.NewController(holdService)

	holds.SetupHoldRoutes(rg, holdController, ratelimit.Limit(r.rateLimiter, ratelimit.RateLimitTypeHold))
	return holdService
}

// setupOrderRoutes configures checkout routes
func (r *Router) setupOrderRoutes(rg *gin.RouterGroup, orderRepo orders.Repository, holdService holds.Service) {
	orderService := orders.NewService(orderRepo, holdService, r.publisher, r.log)
	orderController := orders.NewController(orderService)

	orders.SetupOrderRoutes(rg, orderController, ratelimit.Limit(r.rateLimiter, ratelimit.RateLimitTypeCheckout))
}

// setupMembershipRoutes configures the tier subscription routes
func (r *Router) setupMembershipRoutes(rg *gin.RouterGroup) {
	tierService := tiers.NewService(r.db.GetRedis(), membership.MustDefaultEngine(), r.log)
	tiers.SetupMembershipRoutes(rg, tiers.NewController(tierService))
}
