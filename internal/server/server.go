package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"taskboard/internal/auth"
	"taskboard/internal/cache"
	"taskboard/internal/config"
	"taskboard/internal/database"
	"taskboard/internal/handler"
	"taskboard/internal/metrics"
	"taskboard/internal/middleware"
	"taskboard/internal/ordering"
	"taskboard/internal/repository"
	"taskboard/internal/service"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Server struct {
	Engine *gin.Engine
	DB     *gorm.DB
	Config *config.Config
	Logger *zap.Logger
	cache  *cache.Cache
}

func Init(cfg *config.Config, logger *zap.Logger) (*Server, error) {
	db, err := database.Open(cfg)
	if err != nil {
		return nil, err
	}
	logger.Info("Connected to database", zap.String("driver", cfg.DBDriver))

	if cfg.DBDriver == database.DriverSQLite {
		if err := database.AutoMigrate(db); err != nil {
			return nil, err
		}
	}

	s := &Server{DB: db, Config: cfg, Logger: logger}

	var listCache service.ListCache
	if cfg.RedisAddr != "" {
		client, err := cache.Connect(context.Background(), cfg.RedisAddr)
		if err != nil {
			// The list cache is optional, run without it.
			logger.Warn("Redis unavailable, task list cache disabled", zap.Error(err))
		} else {
			s.cache = cache.New(client, "taskboard:", cfg.CacheTTL, logger)
			listCache = s.cache
		}
	}

	s.Engine = NewRouter(cfg, db, listCache, logger)
	return s, nil
}

// NewRouter wires repositories, services and handlers into a gin engine.
func NewRouter(cfg *config.Config, db *gorm.DB, listCache service.ListCache, logger *zap.Logger) *gin.Engine {
	if err := handler.RegisterValidators(); err != nil {
		logger.Error("failed to register validators", zap.Error(err))
	}

	m := metrics.New()
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(logger), m.Middleware())

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	taskRepo := repository.NewTaskRepository(db)

	// Initialize services
	engine := ordering.NewEngine(taskRepo,
		ordering.WithRetryPolicy(ordering.RetryPolicy{MaxAttempts: cfg.TxMaxAttempts, Backoff: cfg.TxRetryBackoff}),
		ordering.WithLogger(logger.Named("ordering")),
		ordering.WithRecorder(m),
	)
	taskService := service.NewTaskService(engine, taskRepo, listCache, logger.Named("tasks"))
	tokens := auth.NewManager(cfg.JWTSecret, cfg.JWTAccessTTL, cfg.JWTRefreshTTL)

	// Initialize handlers
	userHandler := handler.NewUserHandler(userRepo, tokens)
	taskHandler := handler.NewTaskHandler(taskService, logger)

	r.GET("/health", func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(m.Handler()))
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	api := r.Group("/api/v1")

	// Public routes
	authRoutes := api.Group("/auth")
	authRoutes.Use(middleware.RateLimit(middleware.NewIPRateLimiter(cfg.AuthRateLimit, cfg.AuthRateBurst)))
	{
		authRoutes.POST("/register", userHandler.Register)
		authRoutes.POST("/login", userHandler.Login)
		authRoutes.POST("/refresh", userHandler.Refresh)
	}

	// Protected routes - require authentication
	authorized := api.Group("/")
	authorized.Use(middleware.JWTAuthMiddleware(cfg.JWTSecret))
	{
		authorized.GET("/user/me", userHandler.Me)

		authorized.POST("/tasks", taskHandler.Create)
		authorized.GET("/tasks", taskHandler.GetAll)
		authorized.GET("/tasks/:id", taskHandler.GetByID)
		authorized.PATCH("/tasks/:id", taskHandler.Update)
		authorized.DELETE("/tasks/:id", taskHandler.Delete)
		authorized.POST("/tasks/:id/move", taskHandler.MoveTask)
	}
	return r
}

func (s *Server) Run() {
	srv := &http.Server{
		Addr:    ":" + s.Config.ServerPort,
		Handler: s.Engine,
	}

	go func() {
		s.Logger.Info("Server running", zap.String("port", s.Config.ServerPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.Logger.Fatal("Failed to listen", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	s.Logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		s.Logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	if s.cache != nil {
		_ = s.cache.Close()
	}
	if sqlDB, err := s.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
	s.Logger.Info("Server exited properly")
}
