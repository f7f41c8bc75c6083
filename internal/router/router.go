package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"                   // Echo web framework
	echomw "github.com/labstack/echo/v4/middleware" // Echo's stock middleware
	"github.com/redis/go-redis/v9"                  // Redis backs rate limiting and the response cache
	"github.com/rs/zerolog"                         // structured request logging

	"github.com/muluken16/E-liberary/internal/config"     // rate limit and cache settings
	"github.com/muluken16/E-liberary/internal/handler"    // HTTP handlers
	"github.com/muluken16/E-liberary/internal/middleware" // JWT, roles, rate limit, cache
)

// Handlers groups every handler the API serves.
type Handlers struct {
	Auth      *handler.AuthHandler
	Catalog   *handler.CatalogHandler
	Payments  *handler.PaymentHandler
	Purchases *handler.PurchaseHandler
	Quiz      *handler.QuizHandler
	Activity  *handler.ActivityHandler
	Ready     echo.HandlerFunc // optional readiness probe
}

// Options carries the cross-cutting settings used while registering routes.
// A nil Redis client disables rate limiting and caching.
type Options struct {
	JWTSecret string
	Redis     *redis.Client
	RateLimit config.RateLimitConfig
	Cache     config.CacheConfig
	Log       zerolog.Logger
}

// New builds the Echo instance with global middleware and every route
// registered under /api.
func New(h Handlers, opt Options) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()

	e.Pre(echomw.RemoveTrailingSlash())
	e.Use(echomw.Recover())
	e.Use(middleware.RequestLogger(opt.Log))

	RegisterRoutes(e, h.Ready)

	api := e.Group("/api", middleware.NewTokenBucket(opt.RateLimit, opt.Redis, opt.Log))
	// strict bucket for endpoints that create payments or sessions
	strict := middleware.NewTokenBucket(opt.RateLimit.WithCapacity(opt.RateLimit.PaymentCapacity, "strict"), opt.Redis, opt.Log)
	cache := middleware.NewRedisCache(opt.Cache, opt.Redis)

	RegisterAuth(api, h.Auth, opt.JWTSecret, strict)
	RegisterCatalog(api, h.Catalog, opt.JWTSecret, cache)
	RegisterPayments(api, h.Payments, opt.JWTSecret, strict)
	RegisterPurchases(api, h.Purchases, opt.JWTSecret)
	RegisterLearning(api, h.Quiz, h.Activity, opt.JWTSecret)
	return e
}

// RegisterRoutes registers routes that do not live under /api: the
// liveness check and, when provided, the readiness probe.
func RegisterRoutes(e *echo.Echo, ready echo.HandlerFunc) {
	e.GET("/healthz", handler.Health)
	if ready != nil {
		e.GET("/readyz", ready)
	}
}

// RegisterAuth registers the session endpoints.  Logout accepts either a
// refresh token in the body or a bearer token, so it only runs OptionalJWT.
func RegisterAuth(g *echo.Group, a *handler.AuthHandler, jwtSecret string, strict echo.MiddlewareFunc) {
	auth := g.Group("/auth")
	auth.POST("/register", a.Register, strict)
	auth.POST("/login", a.Login, strict)
	auth.POST("/refresh", a.Refresh)
	auth.POST("/logout", a.Logout, middleware.OptionalJWT(jwtSecret))

	g.GET("/me", a.Me, middleware.JWTAuth(jwtSecret))
}
