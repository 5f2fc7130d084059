// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"time"

	_ "kinship/docs" // swagger docs
	"kinship/internal/bootstrap"
	"kinship/internal/cache"
	"kinship/internal/config"
	"kinship/internal/featureflags"
	"kinship/internal/lockout"
	"kinship/internal/mailer"
	"kinship/internal/middleware"
	"kinship/internal/models"
	"kinship/internal/notifications"
	"kinship/internal/otp"
	"kinship/internal/policy"
	"kinship/internal/repository"
	"kinship/internal/service"
	"kinship/internal/session"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const defaultOrigins = "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173"

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc
	auth           *middleware.Authenticator
	notifier       *notifications.Notifier
	hub            *notifications.Hub
	featureFlags   *featureflags.Manager
	authService    *service.AuthService
	profileService *service.ProfileService
	postService    *service.PostService
	friendService  *service.FriendService
	pages          map[string]*template.Template
	limits         authLimits
}

// authLimits throttle the auth endpoints per client. The JSON and form routes
// share one set so both count against the same budget.
type authLimits struct {
	signup   fiber.Handler
	verify   fiber.Handler
	resend   fiber.Handler
	login    fiber.Handler
	recovery fiber.Handler
	reset    fiber.Handler
}

func newAuthLimits(rdb *redis.Client) authLimits {
	return authLimits{
		signup:   middleware.RateLimit(rdb, 5, 10*time.Minute, "signup"),
		verify:   middleware.RateLimit(rdb, 20, 10*time.Minute, "verify"),
		resend:   middleware.RateLimit(rdb, 3, 10*time.Minute, "resend"),
		login:    middleware.RateLimit(rdb, 20, 5*time.Minute, "login"),
		recovery: middleware.RateLimit(rdb, 3, 10*time.Minute, "recover"),
		reset:    middleware.RateLimit(rdb, 10, 10*time.Minute, "reset"),
	}
}

// NewServer creates a new server instance with all dependencies
func NewServer(cfg *config.Config) (*Server, error) {
	// Redis is optional; memory stores take over when it is down.
	rt, err := bootstrap.InitRuntime(cfg, bootstrap.Options{DemoPreset: cfg.SeedPreset})
	if err != nil {
		return nil, err
	}
	return NewServerWithDeps(cfg, rt.DB, rt.Redis)
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// redisClient may be nil.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	pages, err := loadPages()
	if err != nil {
		return nil, fmt.Errorf("load page templates: %w", err)
	}

	var (
		profileCache *cache.JSONCache
		codes        otp.Store
		revocations  session.Revocations
		loginGuard   lockout.Guard
		otpGuard     lockout.Guard
	)
	ttls := otp.TTLs{Code: cfg.OTPTTL(), Reset: cfg.ResetTTL()}
	if redisClient != nil {
		profileCache = cache.NewJSONCache(redisClient)
		codes = otp.NewRedisStore(redisClient, ttls)
		revocations = session.NewRedisRevocations(redisClient)
		loginGuard = lockout.NewRedisGuard(redisClient, "lockout:login")
		otpGuard = lockout.NewRedisGuard(redisClient, "lockout:verify")
	} else {
		middleware.Logger.Warn("Redis unavailable, using in-process stores")
		codes = otp.NewMemoryStore(ttls)
		revocations = session.NewMemoryRevocations()
		loginGuard = lockout.NewMemoryGuard()
		otpGuard = lockout.NewMemoryGuard()
	}

	var mail mailer.Mailer = mailer.LogMailer{}
	if cfg.SendGridAPIKey != "" {
		mail = mailer.NewSendGridMailer(cfg.SendGridAPIKey, cfg.MailFrom, cfg.MailFromName, "")
	}

	accountRepo := repository.NewAccountRepository(db)
	profileRepo := repository.NewProfileRepository(db, profileCache)
	postRepo := repository.NewPostRepository(db)
	friendRepo := repository.NewFriendRepository(db)
	engine := policy.NewEngine(friendRepo)
	issuer := session.NewIssuer(cfg.JWTSecret, cfg.SessionTTL(), cfg.SessionRememberTTL())
	notifier := notifications.NewNotifier(redisClient)

	server := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics("kinship-api"),
		auth:           middleware.NewAuthenticator(issuer, revocations),
		notifier:       notifier,
		hub:            notifications.NewHub(),
		featureFlags:   featureflags.NewManager(cfg.FeatureFlags),
		pages:          pages,
		limits:         newAuthLimits(redisClient),
	}
	server.authService = service.NewAuthService(service.AuthDeps{
		DB:          db,
		Accounts:    accountRepo,
		Profiles:    profileRepo,
		Codes:       codes,
		Mailer:      mail,
		Issuer:      issuer,
		Revocations: revocations,
		LoginGuard:  loginGuard,
		OTPGuard:    otpGuard,
		Events:      notifier,
		BaseURL:     cfg.AppBaseURL,
	})
	server.profileService = service.NewProfileService(profileRepo, engine)
	server.postService = service.NewPostService(postRepo, profileRepo, engine)
	server.friendService = service.NewFriendService(friendRepo, profileRepo, engine, notifier)

	return server, nil
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.TracingMiddleware())

	// Propagates request ID and user ID into the request context for logging.
	app.Use(middleware.ContextMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	app.Use(helmet.New())
	app.Use(middleware.StructuredLogger())

	// CORS must run before the limiter so rejected responses still carry CORS headers.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = defaultOrigins
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowCredentials: true,
		MaxAge:           86400,
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
			c.Set(fiber.HeaderRetryAfter, "60")
			return c.Status(fiber.StatusTooManyRequests).JSON(models.ErrorResponse{
				Error: "Too many requests, please try again later.",
				Code:  models.CodeRateLimited,
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	api := app.Group("/api")
	api.Get("/swagger/*", swagger.HandlerDefault)

	required := s.auth.Required()
	optional := s.auth.Optional()

	// Auth routes
	auth := api.Group("/auth")
	auth.Post("/signup", s.featureFlags.Require(featureflags.Signup), s.limits.signup, s.Signup)
	auth.Post("/verify", s.limits.verify, s.VerifyOTP)
	auth.Post("/resend", s.limits.resend, s.ResendVerification)
	auth.Post("/login", s.limits.login, s.Login)
	auth.Post("/logout", required, s.Logout)
	auth.Post("/recover", s.limits.recovery, s.RecoverPassword)
	auth.Post("/reset", s.limits.reset, s.ResetPassword)
	auth.Get("/session", required, s.GetSession)

	api.Get("/feature-flags", optional, s.GetFeatureFlags)

	// Profile routes. /me must come before /:id.
	profiles := api.Group("/profiles")
	profiles.Get("/me", required, s.GetMyProfile)
	profiles.Put("/me", required, s.UpdateMyProfile)
	profiles.Get("/:id/posts", optional, s.GetProfilePosts)
	profiles.Get("/:id/friendship", required, s.GetFriendshipWith)
	profiles.Get("/:id", optional, s.GetProfile)

	// Post routes. Reads are public; visibility is applied per requester.
	posts := api.Group("/posts")
	posts.Get("/", optional, s.GetPosts)
	posts.Get("/:id", optional, s.GetPost)
	posts.Post("/", required, middleware.RateLimit(s.redis, 30, 5*time.Minute, "create_post"), s.CreatePost)
	posts.Put("/:id", required, s.UpdatePost)
	posts.Delete("/:id", required, s.DeletePost)

	// Friendship routes
	friendships := api.Group("/friendships", required)
	friendships.Get("/", s.GetFriendships)
	friendships.Post("/", middleware.RateLimit(s.redis, 10, 5*time.Minute, "friend_request"), s.SendFriendRequest)
	friendships.Patch("/:id", s.UpdateFriendship)
	friendships.Delete("/:id", s.RemoveFriendship)
	api.Get("/friends", required, s.GetFriends)

	// WebSocket notifications
	api.Get("/ws", required, s.featureFlags.Require(featureflags.Realtime), s.WebsocketHandler())

	s.setupPages(app)
}

// LivenessCheck reports that the process is up.
// @Summary Liveness probe
// @Tags health
// @Produce json
// @Success 200 {object} object{status=string}
// @Router /health/live [get]
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck reports whether the database and Redis are reachable.
// Redis is optional, so its absence does not fail readiness.
// @Summary Readiness probe
// @Tags health
// @Produce json
// @Success 200 {object} object{status=string,checks=object}
// @Failure 503 {object} object{status=string,checks=object}
// @Router /health/ready [get]
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	dbStatus := "healthy"
	if s.db == nil {
		dbStatus = "unhealthy"
	} else if sqlDB, err := s.db.DB(); err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "healthy"
	if s.redis == nil {
		redisStatus = "unavailable"
	} else if err := s.redis.Ping(ctx).Err(); err != nil {
		redisStatus = "unhealthy"
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus != "healthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	} else if redisStatus != "healthy" {
		overallStatus = "degraded"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// newApp builds the Fiber app with middleware and routes.
func (s *Server) newApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "Kinship API",
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if fe, ok := err.(*fiber.Error); ok {
				return c.Status(fe.Code).JSON(models.ErrorResponse{Error: fe.Message})
			}
			middleware.Logger.ErrorContext(c.UserContext(), "unhandled error", slog.String("error", err.Error()))
			return models.RespondWithAppError(c, err)
		},
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

// Start starts the server
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	s.app = s.newApp()

	go func() {
		if err := s.hub.StartWiring(s.shutdownCtx, s.notifier); err != nil {
			middleware.Logger.Error("failed to start hub wiring",
				slog.String("hub", s.hub.Name()), slog.String("error", err.Error()))
		}
	}()

	middleware.Logger.Info("Server starting", slog.String("port", s.config.Port))
	return s.app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("error shutting down HTTP server", slog.String("error", err.Error()))
		}
	}

	if err := s.hub.Shutdown(ctx); err != nil {
		middleware.Logger.Error("error shutting down hub", slog.String("error", err.Error()))
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			middleware.Logger.Error("error closing sql DB", slog.String("error", cerr.Error()))
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			middleware.Logger.Error("error closing redis", slog.String("error", rerr.Error()))
		}
	}

	middleware.Logger.Info("Server shutdown complete")
	return nil
}
