package app

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tienda/core/internal/middleware"
	"github.com/tienda/core/internal/modules/auth"
	"github.com/tienda/core/internal/modules/category"
	"github.com/tienda/core/internal/modules/order"
	"github.com/tienda/core/internal/modules/product"
	"github.com/tienda/core/internal/modules/profile"
	"github.com/tienda/core/internal/modules/user"
	jwtpkg "github.com/tienda/core/internal/pkg/jwt"
	"github.com/tienda/core/internal/pkg/mail"
)

func (a *App) registerRoutes(codec *jwtpkg.Codec, mailer *mail.Sender) {
	a.router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	limiter := middleware.RateLimit(a.rc.Raw(), a.cfg.RateLimit.Max, a.cfg.RateLimit.Window())

	root := a.router.Group("")
	root.Use(middleware.Authenticate(a.db, codec))

	authHandler := auth.NewHandler(auth.NewService(a.db, a.cfg, codec, a.queue, mailer))
	authHandler.RegisterRoutes(root, limiter)

	userHandler := user.NewHandler(user.NewService(a.db, a.cfg, a.queue, mailer))
	userHandler.RegisterRoutes(root, limiter)

	profile.NewHandler(profile.NewService(a.db)).RegisterRoutes(root)
	category.NewHandler(category.NewService(a.db)).RegisterRoutes(root)
	product.NewHandler(product.NewService(a.db)).RegisterRoutes(root)
	order.NewHandler(order.NewService(a.db)).RegisterRoutes(root)
}
