// Package router provides HTTP routing, middleware configuration, and server setup for the web application
package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Belgarat/freedownloadlandingpage/app/dto"
	"github.com/Belgarat/freedownloadlandingpage/app/handlers"
	"github.com/Belgarat/freedownloadlandingpage/app/middleware"
	"github.com/Belgarat/freedownloadlandingpage/config"
	"github.com/Belgarat/freedownloadlandingpage/logger"
	"github.com/Belgarat/freedownloadlandingpage/utils"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/compress"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/helmet"
	"github.com/gofiber/fiber/v3/middleware/limiter"
	fiberlogger "github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/gofiber/fiber/v3/middleware/requestid"
	"github.com/jaevor/go-nanoid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const healthPath = "/api/health"

// Router interface for HTTP routing
type Router interface {
	SetupRoutes()
	Start(address string) error
	Shutdown(timeout time.Duration) error
	GetApp() *fiber.App
}

// Handlers groups every API handler the router mounts
type Handlers struct {
	Config     handlers.ConfigHandlerInterface
	ABTest     handlers.ABTestHandlerInterface
	Assignment handlers.AssignmentHandlerInterface
	Download   handlers.DownloadHandlerInterface
	Analytics  handlers.AnalyticsHandlerInterface
	Admin      handlers.AdminHandlerInterface
}

// HealthFunc reports whether the service can reach its dependencies
type HealthFunc func(ctx context.Context) error

// FiberRouter implements Router using Fiber v3
type FiberRouter struct {
	app      *fiber.App
	handlers Handlers
	auth     *middleware.AuthMiddleware
	health   HealthFunc
	cfg      *config.ProductionConfig
	log      *logger.Logger
	newID    func() string
}

// NewFiberRouter creates a new Fiber router
func NewFiberRouter(h Handlers, auth *middleware.AuthMiddleware, health HealthFunc, cfg *config.ProductionConfig, log *logger.Logger) (Router, error) {
	if log == nil {
		log = logger.NewNop()
	}
	newID, err := nanoid.Standard(21)
	if err != nil {
		return nil, fmt.Errorf("failed to create request id generator: %w", err)
	}

	r := &FiberRouter{
		handlers: h,
		auth:     auth,
		health:   health,
		cfg:      cfg,
		log:      log,
		newID:    newID,
	}

	r.app = fiber.New(fiber.Config{
		AppName:      "Ebook Landing API",
		ServerHeader: "ebook-landing",
		ErrorHandler: r.errorHandler,
		BodyLimit:    cfg.Server.BodyLimit,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		ProxyHeader:  cfg.Server.ProxyHeader,
		TrustProxy:   len(cfg.Server.TrustedProxies) > 0,
		TrustProxyConfig: fiber.TrustProxyConfig{
			Proxies: cfg.Server.TrustedProxies,
		},
		JSONEncoder: json.Marshal,
		JSONDecoder: json.Unmarshal,
	})

	return r, nil
}

// SetupRoutes configures all application routes
func (r *FiberRouter) SetupRoutes() {
	r.log.Info("Setting up routes")

	r.setupMiddleware()

	if r.cfg.Metrics.Enabled {
		r.app.Get(r.cfg.Metrics.Path, adaptor.HTTPHandler(promhttp.Handler()))
	}

	api := r.app.Group("/api")
	api.Get("/health", r.healthCheck)

	api.Use(limiter.New(limiter.Config{
		Max:          r.cfg.Security.GlobalRateLimit,
		Expiration:   r.cfg.Security.RateLimitWindow,
		KeyGenerator: func(c fiber.Ctx) string { return c.IP() },
		LimitReached: rateLimitReached,
		Next: func(c fiber.Ctx) bool {
			return c.Path() == healthPath
		},
	}))

	admin := r.auth.AdminAuthenticate()
	h := r.handlers

	// A/B testing, registered before /config/:type so the literal segment wins
	api.Get("/config/ab-testing", admin, h.ABTest.List)
	api.Post("/config/ab-testing", admin, h.ABTest.Create)
	api.Get("/config/ab-testing/:id/comparison", admin, h.ABTest.Comparison)
	api.Get("/config/ab-testing/:id", admin, h.ABTest.Get)
	api.Put("/config/ab-testing/:id", admin, h.ABTest.Update)
	api.Delete("/config/ab-testing/:id", admin, h.ABTest.Delete)

	// Public visitor endpoints
	api.Post("/config/assign", h.Assignment.Assign)
	api.Post("/config/usage", h.Assignment.TrackUsage)
	api.Get("/config/:type/active", h.Config.GetActive)

	// Configuration CMS
	api.Get("/config/:type", admin, h.Config.List)
	api.Post("/config/:type", admin, h.Config.Create)
	api.Get("/config/:type/:id", admin, h.Config.Get)
	api.Put("/config/:type/:id", admin, h.Config.Update)
	api.Delete("/config/:type/:id", admin, h.Config.Delete)
	api.Post("/config/:type/:id/activate", admin, h.Config.Activate)
	api.Post("/config/:type/:id/duplicate", admin, h.Config.Duplicate)

	// Download links
	api.Post("/send-ebook", h.Download.SendEbook)
	api.Post("/send-followup", h.Download.SendFollowup)
	api.Post("/validate-token", h.Download.ValidateToken)
	api.Get("/download/:token", h.Download.Download)

	// Analytics
	api.Post("/analytics", h.Analytics.Record)
	api.Post("/analytics/download-completed", h.Analytics.RecordDownloadCompleted)
	api.Get("/analytics/stats", admin, h.Analytics.Stats)
	api.Get("/analytics/export", admin, h.Analytics.Export)

	// Admin session, with stricter rate limiting on login attempts
	authLimiter := limiter.New(limiter.Config{
		Max:          r.cfg.Security.AuthRateLimit,
		Expiration:   r.cfg.Security.RateLimitWindow,
		KeyGenerator: func(c fiber.Ctx) string { return c.IP() },
		LimitReached: rateLimitReached,
	})
	api.Post("/admin/auth", authLimiter, h.Admin.Login)
	api.Get("/admin/auth", h.Admin.Session)
	api.Delete("/admin/auth", h.Admin.Logout)
	api.Get("/admin/auth/captcha", authLimiter, h.Admin.InitCaptcha)

	r.app.Use(r.notFoundHandler)

	r.log.Info("Routes configured successfully")
}

// setupMiddleware configures global middleware
func (r *FiberRouter) setupMiddleware() {
	// Request ID middleware - must be first
	r.app.Use(requestid.New(requestid.Config{
		Header:    "X-Request-ID",
		Generator: r.newID,
	}))

	r.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c fiber.Ctx, e any) {
			r.log.Error("Panic recovered",
				"request_id", requestid.FromContext(c),
				"panic", fmt.Sprint(e),
				"path", c.Path(),
				"method", c.Method(),
				"ip", c.IP(),
			)
		},
	}))

	if r.cfg.Metrics.Enabled {
		r.app.Use(middleware.Metrics(r.cfg.Metrics.Path, healthPath))
	}

	sec := r.cfg.Security
	r.app.Use(helmet.New(helmet.Config{
		XSSProtection:             "1; mode=block",
		ContentTypeNosniff:        "nosniff",
		XFrameOptions:             sec.XFrameOptions,
		HSTSMaxAge:                sec.HSTSMaxAge,
		ContentSecurityPolicy:     sec.CSPPolicy,
		ReferrerPolicy:            sec.ReferrerPolicy,
		CrossOriginOpenerPolicy:   "same-origin",
		CrossOriginResourcePolicy: "cross-origin",
		OriginAgentCluster:        "?1",
		XDNSPrefetchControl:       "off",
		XDownloadOptions:          "noopen",
		XPermittedCrossDomain:     "none",
	}))

	r.app.Use(cors.New(cors.Config{
		AllowOrigins:     sec.AllowedOrigins,
		AllowMethods:     sec.AllowedMethods,
		AllowHeaders:     sec.AllowedHeaders,
		ExposeHeaders:    []string{"X-Request-ID", "Content-Disposition"},
		AllowCredentials: sec.AllowCredentials,
		MaxAge:           sec.CORSMaxAge,
	}))

	if r.cfg.Server.EnableCompression {
		r.app.Use(compress.New(compress.Config{
			Level: compress.LevelBestSpeed,
		}))
	}

	if r.cfg.Logging.EnableAccessLog {
		r.app.Use(fiberlogger.New(fiberlogger.Config{
			Format:     `{"time":"${time}","request_id":"${respHeader:X-Request-ID}","level":"info","method":"${method}","path":"${path}","ip":"${ip}","user_agent":"${ua}","status":${status},"latency":"${latency}","bytes_in":${bytesReceived},"bytes_out":${bytesSent},"referer":"${referer}"}` + "\n",
			TimeFormat: time.RFC3339,
			TimeZone:   "UTC",
			Next: func(c fiber.Ctx) bool {
				return c.Path() == healthPath
			},
		}))
	}
}

func (r *FiberRouter) Start(address string) error {
	r.log.Info("Starting server", "address", address)
	return r.app.Listen(address, fiber.ListenConfig{DisableStartupMessage: true})
}

func (r *FiberRouter) Shutdown(timeout time.Duration) error {
	return r.app.ShutdownWithTimeout(timeout)
}

func (r *FiberRouter) GetApp() *fiber.App {
	return r.app
}

func (r *FiberRouter) healthCheck(c fiber.Ctx) error {
	data := fiber.Map{
		"status":    "ok",
		"timestamp": utils.UTCNow().Unix(),
		"version":   r.cfg.Deployment.Version,
		"service":   "ebook-landing-api",
	}

	if r.health != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := r.health(ctx); err != nil {
			data["status"] = "degraded"
			data["database"] = err.Error()
			return c.Status(fiber.StatusServiceUnavailable).JSON(dto.APIResponse{
				Success: false,
				Message: "Service is unhealthy",
				Data:    data,
			})
		}
	}

	return c.JSON(dto.APIResponse{
		Success: true,
		Message: "Service is healthy",
		Data:    data,
	})
}

func (r *FiberRouter) notFoundHandler(c fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(dto.APIResponse{
		Success: false,
		Message: "The requested resource was not found",
		Error: dto.ErrorDetail{
			Code: "NOT_FOUND",
			Details: fiber.Map{
				"path":       c.Path(),
				"method":     c.Method(),
				"request_id": requestid.FromContext(c),
			},
		},
	})
}

func (r *FiberRouter) errorHandler(c fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "An internal server error occurred"
	errorCode := "INTERNAL_ERROR"

	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		message = fe.Message
		errorCode = strings.ToUpper(strings.ReplaceAll(http.StatusText(code), " ", "_"))
	}

	requestID := requestid.FromContext(c)
	if code >= fiber.StatusInternalServerError {
		r.log.Error("Unhandled request error", "status", code, "request_id", requestID, "path", c.Path(), "error", err)
	}

	return c.Status(code).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code: errorCode,
			Details: fiber.Map{
				"timestamp":  utils.UTCNow().Unix(),
				"request_id": requestID,
			},
		},
	})
}

func rateLimitReached(c fiber.Ctx) error {
	return c.Status(fiber.StatusTooManyRequests).JSON(dto.APIResponse{
		Success: false,
		Message: "Too many requests. Please try again later.",
		Error: dto.ErrorDetail{
			Code: "RATE_LIMIT_EXCEEDED",
		},
	})
}
