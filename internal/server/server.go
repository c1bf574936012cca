// Package server contains the HTTP surface of the application: the Fiber app,
// its middleware stack, and all route handlers.
package server

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"quill/internal/cache"
	"quill/internal/config"
	"quill/internal/database"
	"quill/internal/middleware"
	"quill/internal/models"
	"quill/internal/repository"
	"quill/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	promMiddleware *fiberprometheus.FiberPrometheus
	userRepo       repository.UserRepository
	postRepo       repository.PostRepository
	authService    *service.AuthService
	postService    *service.PostService
	userService    *service.UserService
	avatarService  *service.AvatarService
	notifier       *service.NotificationService
}

// NewServer creates a new server instance with all dependencies
func NewServer(cfg *config.Config) (*Server, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	cache.InitRedis(cfg.RedisURL)
	redisClient := cache.GetClient()

	return NewServerWithDeps(cfg, db, redisClient)
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Used by tests and bootstrap code that establishes DB/Redis itself.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	userRepo := repository.NewUserRepository(db)
	postRepo := repository.NewPostRepository(db)

	prom := fiberprometheus.New("quill-api")

	server := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: prom,
		userRepo:       userRepo,
		postRepo:       postRepo,
	}

	server.authService = service.NewAuthService(userRepo, redisClient, cfg.JWTSecret)
	server.postService = service.NewPostService(postRepo, userRepo)
	server.avatarService = service.NewAvatarService(cfg.UploadDir)
	server.userService = service.NewUserService(userRepo, server.avatarService)

	var sender service.MailSender
	if cfg.SendGridAPIKey != "" {
		sender = service.NewSendGridSender(cfg.SendGridAPIKey, cfg.MailFrom)
	} else {
		sender = service.LogSender{}
	}
	server.notifier = service.NewNotificationService(
		server.authService, sender, cfg.AppBaseURL, cfg.ResetTokenLifetime())

	if err := server.avatarService.EnsureDefaultAvatar(); err != nil {
		return nil, fmt.Errorf("failed to prepare default avatar: %w", err)
	}

	return server, nil
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	// Panic recovery
	app.Use(recover.New())

	// Request ID for tracing
	app.Use(requestid.New())

	// Prometheus metrics
	if s.promMiddleware != nil {
		app.Use(s.promMiddleware.Middleware)
	}

	// OpenTelemetry request spans
	app.Use(middleware.TracingMiddleware())

	// Security headers
	app.Use(helmet.New())

	// Structured logging middleware (after requestid)
	app.Use(middleware.StructuredLogger())

	// CORS middleware runs before middlewares that can short-circuit (e.g.
	// limiter) so browser clients still receive CORS headers on errors.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	// Global rate limiting (100 requests per minute per IP)
	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests, please try again later.",
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	// Health checks
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)

	// Metrics endpoint for Prometheus
	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	// Avatar files, including the default avatar
	app.Static("/media/avatars", s.avatarService.UploadDir())

	api := app.Group("/api")
	api.Get("/", s.HealthCheck)
	api.Get("/about", s.About)

	// Auth routes. Register/login/reset are guest-only: the original
	// redirected authenticated users away from these pages.
	auth := api.Group("/auth")
	auth.Post("/register", s.GuestOnly(), middleware.RateLimit(s.redis, 3, 10*time.Minute, "register"), s.Register)
	auth.Post("/login", s.GuestOnly(), middleware.RateLimit(s.redis, 10, 5*time.Minute, "login"), s.Login)
	auth.Post("/logout", s.AuthRequired(), s.Logout)
	auth.Post("/reset-password", s.GuestOnly(), middleware.RateLimit(s.redis, 3, 15*time.Minute, "reset_request"), s.RequestPasswordReset)
	auth.Post("/reset-password/:token", s.GuestOnly(), s.ResetPassword)

	// Post routes. Reads are public, mutations carry auth per-route so the
	// middleware never leaks onto the public routes registered below.
	api.Get("/posts", s.ListPosts)
	api.Get("/posts/:id", s.GetPost)
	api.Post("/posts", s.AuthRequired(), s.CreatePost)
	api.Put("/posts/:id", s.AuthRequired(), s.UpdatePost)
	api.Delete("/posts/:id", s.AuthRequired(), s.DeletePost)

	// User routes. /users/me must be registered before the :username
	// wildcard or the wildcard would capture "me".
	api.Get("/users/me", s.AuthRequired(), s.GetMyProfile)
	api.Put("/users/me", s.AuthRequired(), s.UpdateMyProfile)
	api.Get("/users/:username", s.GetUserProfile)
	api.Get("/users/:username/posts", s.GetUserPosts)
}

// HealthCheck handles GET /api/
func (s *Server) HealthCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"message": "Quill",
		"version": "1.0.0",
		"status":  "healthy",
		"time":    time.Now(),
	})
}

// About handles GET /api/about
func (s *Server) About(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"name":        "Quill",
		"description": "A small multi-user blog: browse posts, write your own, keep a profile.",
	})
}

// LivenessCheck reports that the process is up.
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "alive"})
}

// ReadinessCheck reports whether the database (and redis, when configured)
// are reachable.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "healthy"
	if s.redis != nil {
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	} else {
		redisStatus = "unavailable"
	}

	status := fiber.StatusOK
	if dbStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
	}

	return c.Status(status).JSON(fiber.Map{
		"status": dbStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
	})
}

// AuthRequired returns the authentication middleware. It validates the bearer
// token, rejects revoked sessions, and stores the user identity in request
// locals.
func (s *Server) AuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		tokenString := ""
		if authHeader != "" {
			parts := strings.Split(authHeader, " ")
			if len(parts) == 2 && parts[0] == "Bearer" {
				tokenString = parts[1]
			}
		}

		if tokenString == "" {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Authorization required"))
		}

		userID, claims, ok := s.parseSessionToken(tokenString)
		if !ok {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Invalid or expired token"))
		}

		jti, _ := claims["jti"].(string)
		if s.authService.IsSessionRevoked(c.Context(), jti) {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Session has been logged out"))
		}

		c.Locals("userID", userID)
		c.Locals("jti", jti)
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			c.Locals("tokenExpiresAt", exp.Time)
		}

		return c.Next()
	}
}

// GuestOnly rejects requests that carry a valid session. The original app
// redirected logged-in users away from register/login/reset pages.
func (s *Server) GuestOnly() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := s.optionalUserID(c); ok {
			return models.RespondAppError(c, models.NewAlreadyAuthenticatedError())
		}
		return c.Next()
	}
}

// optionalUserID attempts to extract userID from the Authorization header but
// does not enforce it.
func (s *Server) optionalUserID(c *fiber.Ctx) (uint, bool) {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return 0, false
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return 0, false
	}

	userID, claims, ok := s.parseSessionToken(parts[1])
	if !ok {
		return 0, false
	}
	if jti, _ := claims["jti"].(string); s.authService.IsSessionRevoked(c.Context(), jti) {
		return 0, false
	}
	return userID, true
}

// parseSessionToken validates a session JWT and returns the user id it names.
func (s *Server) parseSessionToken(tokenString string) (uint, jwt.MapClaims, bool) {
	token, err := jwt.Parse(tokenString,
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fiber.NewError(fiber.StatusUnauthorized, "Invalid signing method")
			}
			return []byte(s.config.JWTSecret), nil
		},
		jwt.WithIssuer(service.TokenIssuer),
		jwt.WithAudience(service.SessionAudience),
	)
	if err != nil || !token.Valid {
		return 0, nil, false
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, nil, false
	}

	sub, ok := claims["sub"].(string)
	if !ok {
		return 0, nil, false
	}
	userID, err := strconv.ParseUint(sub, 10, 32)
	if err != nil {
		return 0, nil, false
	}
	return uint(userID), claims, true
}

// App builds a fully configured Fiber app.
func (s *Server) App() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:   "Quill API",
		BodyLimit: 10 * 1024 * 1024, // generous enough for avatar uploads
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			var fiberErr *fiber.Error
			if errors.As(err, &fiberErr) {
				return models.RespondWithError(c, fiberErr.Code, err)
			}
			middleware.Logger.Error("unhandled error", "error", err.Error())
			return models.RespondWithError(c, fiber.StatusInternalServerError,
				models.NewInternalError(err))
		},
	})

	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

// Start starts the server
func (s *Server) Start() error {
	middleware.Logger.Info("Server starting", "port", s.config.Port)
	return s.App().Listen(":" + s.config.Port)
}

// Shutdown gracefully releases server resources.
func (s *Server) Shutdown(ctx context.Context) error {
	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			middleware.Logger.Error("error closing sql DB", "error", cerr.Error())
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			middleware.Logger.Error("error closing redis", "error", rerr.Error())
		}
	}

	middleware.Logger.Info("Server shutdown complete")
	return nil
}
