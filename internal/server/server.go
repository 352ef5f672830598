package server

import (
	"fmt"
	"net/http"
	"time"

	"storefront/internal/config"
	"storefront/internal/database"
	custommiddleware "storefront/internal/middleware"
	"storefront/internal/repository"
	"storefront/internal/service"
	"storefront/internal/transport"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Server struct {
	*http.Server
	config *config.Config
	logger *zap.Logger
	db     database.Service
	redis  *redis.Client
}

// NewServer wires repositories, services and handlers onto one router.
// rdb may be nil, in which case no rate limiting is applied.
func NewServer(cfg *config.Config, logger *zap.Logger, db database.Service, rdb *redis.Client) *Server {
	server := &Server{
		Server: &http.Server{
			Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
			IdleTimeout:  time.Minute,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		config: cfg,
		logger: logger,
		db:     db,
		redis:  rdb,
	}
	server.Handler = server.routes()

	return server
}

func (s *Server) routes() http.Handler {
	router := chi.NewRouter()

	// Add basic middleware
	router.Use(custommiddleware.DefaultMiddlewareStack()...)
	router.Use(custommiddleware.LoggingMiddleware(s.logger))
	router.Use(custommiddleware.ErrorHandlingMiddleware(s.logger))
	router.Use(custommiddleware.CORSMiddleware(s.config.CORS.AllowedOrigins, !s.config.IsProduction()))

	router.Get("/health", s.health)

	// Initialize repositories
	db := s.db.DB()
	userRepo := repository.NewUserRepository(db)
	productRepo := repository.NewProductRepository(db)
	cartRepo := repository.NewCartRepository(db)
	orderRepo := repository.NewOrderRepository(db)

	// Cart and checkout serialize on the same per-user locks.
	locks := service.NewKeyedMutex()
	cartOpts := service.CartOptions{
		MaxRetries:   s.config.Cart.MaxRetries,
		StoreTimeout: s.config.Cart.StoreTimeout,
	}

	// Initialize services
	userService := service.NewUserService(userRepo, s.config.JWT.Secret, s.config.JWT.Expiry)
	productService := service.NewProductService(productRepo)
	cartService := service.NewCartService(cartRepo, productRepo, locks, cartOpts, s.logger)
	checkoutService := service.NewCheckoutService(cartRepo, productRepo, orderRepo, locks, cartOpts, s.logger)
	orderService := service.NewOrderService(orderRepo, productRepo)

	// Create auth middleware; authenticated calls are limited per user.
	authMiddleware := custommiddleware.AuthMiddleware(userService, s.logger)
	protected := authMiddleware
	if s.redis != nil {
		userLimit := s.rateLimiter("ratelimit:api")
		protected = func(next http.Handler) http.Handler {
			return authMiddleware(userLimit(next))
		}
	}

	// Register routes
	router.Group(func(r chi.Router) {
		// Signup and login are limited per client IP.
		if s.redis != nil {
			r.Use(s.rateLimiter("ratelimit:auth"))
		}
		transport.NewAuthHandler(userService, s.logger).RegisterRoutes(r, protected)
	})
	transport.NewProductHandler(productService, s.logger).RegisterRoutes(router, protected)
	transport.NewCartHandler(cartService, s.logger).RegisterRoutes(router, protected)
	transport.NewCheckoutHandler(checkoutService, s.logger).RegisterRoutes(router, protected)
	transport.NewOrderHandler(orderService, s.logger).RegisterRoutes(router, protected)

	return router
}

func (s *Server) rateLimiter(prefix string) func(http.Handler) http.Handler {
	return custommiddleware.RateLimitMiddleware(s.redis, custommiddleware.RateLimitConfig{
		RequestsPerWindow: s.config.RateLimit.Requests,
		Window:            s.config.RateLimit.Window,
		KeyPrefix:         prefix,
	}, s.logger)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	stats := s.db.Health(r.Context())

	status := http.StatusOK
	body := map[string]interface{}{"status": "ok", "database": stats}
	if stats["status"] != "up" {
		status = http.StatusServiceUnavailable
		body["status"] = "degraded"
	}

	custommiddleware.RespondWithJSON(w, status, body)
}

func (s *Server) Close() error {
	s.logger.Info("Closing server resources")

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Error("Failed to close redis connection", zap.Error(err))
		}
	}

	// Close database connection
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("Failed to close database connection", zap.Error(err))
		}
	}

	_ = s.logger.Sync()
	return nil
}
