package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/tienda/core/internal/config"
	"github.com/tienda/core/internal/database"
	"github.com/tienda/core/internal/middleware"
	jwtpkg "github.com/tienda/core/internal/pkg/jwt"
	"github.com/tienda/core/internal/pkg/mail"
	pkgredis "github.com/tienda/core/internal/pkg/redis"
	"github.com/tienda/core/internal/pkg/taskqueue"
)

// App holds all application dependencies.
type App struct {
	cfg    *config.AppConfig
	router *gin.Engine
	db     *gorm.DB
	rc     *pkgredis.Client
	queue  *taskqueue.Queue
	logger *zap.Logger
}

// New initializes the application: database, optional redis, token codec,
// mail queue and routes.
func New(logger *zap.Logger, cfg *config.AppConfig) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}

	db, err := database.Connect(cfg, true)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}

	var rc *pkgredis.Client
	if cfg.RedisURL != "" {
		rc, err = pkgredis.Connect(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
	}

	codec, err := jwtpkg.NewCodec(cfg.JWT.Secret, cfg.JWT.Algorithm)
	if err != nil {
		return nil, fmt.Errorf("jwt: %w", err)
	}

	mailer := mail.New(mail.Config{
		Enable:    cfg.Mail.Enable,
		Host:      cfg.Mail.Host,
		Port:      cfg.Mail.Port,
		User:      cfg.Mail.User,
		Pass:      cfg.Mail.Pass,
		From:      cfg.Mail.From,
		ReplyTo:   cfg.Mail.ReplyTo,
		UseResend: cfg.Mail.UseResend,
		ResendKey: cfg.Mail.ResendKey,
	})

	queue := taskqueue.New(logger, 64)
	queue.Start(2)

	if cfg.IsDev() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(logger))
	router.Use(cors.New(corsConfig(cfg)))

	app := &App{cfg: cfg, router: router, db: db, rc: rc, queue: queue, logger: logger}
	app.registerRoutes(codec, mailer)

	return app, nil
}

// Addr returns the listen address.
func (a *App) Addr() string { return fmt.Sprintf(":%d", a.cfg.Port) }

// Router returns the HTTP handler.
func (a *App) Router() http.Handler { return a.router }

// DB exposes the database handle.
func (a *App) DB() *gorm.DB { return a.db }

// Shutdown drains the task queue and closes connections.
func (a *App) Shutdown(ctx context.Context) {
	if err := a.queue.Shutdown(ctx); err != nil {
		a.logger.Warn("task queue drain interrupted", zap.Error(err))
	}
	if err := a.rc.Close(); err != nil {
		a.logger.Warn("closing redis", zap.Error(err))
	}
}
