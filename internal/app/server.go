package app

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"maclink/internal/common"
	"maclink/internal/config"
	"maclink/internal/handlers"
	"maclink/internal/middleware"
	"maclink/internal/services"
)

const (
	brandingRoute   = "/api/v1/businesses/:businessId/branding/:asset"
	brandingMaxBody = "6M"
)

// ServerDeps is everything the HTTP layer needs.
type ServerDeps struct {
	Config        *config.Config
	Logger        *zap.Logger
	Entities      *services.Entities
	Auth          services.AuthService
	Subscriptions services.SubscriptionService
	Branding      services.BrandingService
	Logs          services.LogService
	JWT           *middleware.JWTAuth
	Health        *handlers.HealthHandlers
}

// NewServer builds the echo instance with the global middleware chain and
// every /api/v1 route.
func NewServer(d ServerDeps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = handlers.NewErrorHandler(d.Logs, d.Logger)
	e.Validator = handlers.NewValidator()
	e.IPExtractor = echo.ExtractIPFromXFFHeader()

	e.Use(echoMiddleware.Recover())
	e.Use(echoMiddleware.RequestIDWithConfig(echoMiddleware.RequestIDConfig{
		Generator: uuid.NewString,
		RequestIDHandler: func(c echo.Context, id string) {
			c.SetRequest(c.Request().WithContext(common.WithRequestID(c.Request().Context(), id)))
		},
	}))
	e.Use(echoMiddleware.Secure())
	e.Use(echoMiddleware.CORSWithConfig(echoMiddleware.CORSConfig{
		AllowOrigins: d.Config.Server.AllowedOrigins(),
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
	}))
	e.Use(echoMiddleware.Gzip())
	if limiter := rateLimiter(d.Config.Security); limiter != nil {
		e.Use(limiter)
	}
	e.Use(echoMiddleware.BodyLimitWithConfig(echoMiddleware.BodyLimitConfig{
		Limit: d.Config.Server.BodyLimit,
		Skipper: func(c echo.Context) bool {
			return c.Path() == brandingRoute
		},
	}))
	e.Use(middleware.RequestLog(d.Logs))

	versions := middleware.NewVersionMiddleware()
	e.Use(versions.APIVersionResolver())

	registerRoutes(e.Group("/api/v1", versions.VersionHeader("v1")), d)
	return e
}

// rateLimiter allows RequestsPerWindow requests per client IP in every
// RequestWindow. A zero budget disables it.
func rateLimiter(cfg config.SecurityConfig) echo.MiddlewareFunc {
	if cfg.RequestsPerWindow <= 0 || cfg.RequestWindow <= 0 {
		return nil
	}
	store := echoMiddleware.NewRateLimiterMemoryStoreWithConfig(echoMiddleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(float64(cfg.RequestsPerWindow) / cfg.RequestWindow.Seconds()),
		Burst:     cfg.RequestsPerWindow,
		ExpiresIn: cfg.RequestWindow,
	})
	return echoMiddleware.RateLimiterWithConfig(echoMiddleware.RateLimiterConfig{
		Store: store,
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			return echo.NewHTTPError(http.StatusTooManyRequests)
		},
	})
}

func registerRoutes(api *echo.Group, d ServerDeps) {
	authHandlers := handlers.NewAuthHandlers(d.Auth, d.Entities.Accounts)
	businessHandlers := handlers.NewBusinessHandlers(d.Entities.Businesses, d.Entities.Accounts, d.Branding, d.Logger)
	routerHandlers := handlers.NewRouterHandlers(d.Entities.Routers)
	planHandlers := handlers.NewPlanHandlers(d.Entities.SubscriptionPlans)
	userHandlers := handlers.NewUserHandlers(d.Entities.Users, d.Logger)
	subscriptionHandlers := handlers.NewSubscriptionHandlers(d.Subscriptions, d.Entities.UserSubscriptions, d.Entities.VoucherSubscriptions)
	ownership := middleware.NewOwnershipMiddleware(d.Entities.Businesses)

	api.GET("/health", d.Health.HealthCheck)
	api.GET("/health/ready", d.Health.ReadinessCheck)
	api.GET("/health/detailed", d.Health.DetailedHealthCheck)

	auth := api.Group("/auth")
	auth.POST("/signup", authHandlers.Signup)
	auth.POST("/login", authHandlers.Login)

	requireAuth := d.JWT.Middleware()
	api.POST("/auth/logout", authHandlers.Logout, requireAuth)

	accounts := api.Group("/accounts/me", requireAuth)
	accounts.GET("", authHandlers.Me)
	accounts.PATCH("", authHandlers.UpdateMe)
	accounts.PATCH("/password", authHandlers.ChangePassword)

	api.POST("/businesses", businessHandlers.CreateBusiness, requireAuth)
	api.GET("/businesses", businessHandlers.ListBusinesses, requireAuth)

	business := api.Group("/businesses/:businessId", requireAuth, ownership.RequireBusinessOwner())
	business.GET("", businessHandlers.GetBusiness)
	business.PATCH("", businessHandlers.UpdateBusiness)
	business.DELETE("", businessHandlers.DeleteBusiness)
	business.POST("/branding/:asset", businessHandlers.UploadAsset, echoMiddleware.BodyLimit(brandingMaxBody))

	business.POST("/routers", routerHandlers.CreateRouter)
	business.GET("/routers", routerHandlers.ListRouters)
	business.GET("/routers/:routerId", routerHandlers.GetRouter)
	business.PATCH("/routers/:routerId", routerHandlers.UpdateRouter)
	business.DELETE("/routers/:routerId", routerHandlers.DeleteRouter)

	business.POST("/plans", planHandlers.CreatePlan)
	business.GET("/plans", planHandlers.ListPlans)
	business.GET("/plans/:planId", planHandlers.GetPlan)
	business.PATCH("/plans/:planId", planHandlers.UpdatePlan)
	business.DELETE("/plans/:planId", planHandlers.DeletePlan)

	business.POST("/users", userHandlers.CreateUser)
	business.GET("/users", userHandlers.ListUsers)
	business.GET("/users/:userId", userHandlers.GetUser)
	business.PATCH("/users/:userId", userHandlers.UpdateUser)
	business.DELETE("/users/:userId", userHandlers.DeleteUser)
	business.POST("/users/:userId/devices", userHandlers.AddDevice)
	business.DELETE("/users/:userId/devices/:mac", userHandlers.RemoveDevice)

	business.POST("/users/:userId/subscriptions", subscriptionHandlers.Subscribe)
	business.GET("/subscriptions", subscriptionHandlers.ListSubscriptions)
	business.PATCH("/subscriptions/:subscriptionId/pause", subscriptionHandlers.PauseSubscription)
	business.PATCH("/subscriptions/:subscriptionId/resume", subscriptionHandlers.ResumeSubscription)

	business.POST("/vouchers", subscriptionHandlers.CreateVoucher)
	business.GET("/vouchers", subscriptionHandlers.ListVouchers)
	business.GET("/vouchers/:code", subscriptionHandlers.GetVoucher)
}
