// Package server assembles the gin engine: global middleware, the public and
// protected route groups, health checks and the fallback for unknown routes.
package server

import (
	"context"
	"net/http"
	"time"

	"sceneit-backend/internal/apperror"
	"sceneit-backend/internal/auth"
	"sceneit-backend/internal/media"
	"sceneit-backend/internal/middleware"
	"sceneit-backend/internal/store"
	"sceneit-backend/internal/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

const banner = "Server for scene-it."

// Pinger reports whether the database is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps is everything the router needs. Redis is optional; without it the
// auth routes are not rate limited.
type Deps struct {
	Users  store.UserStore
	Media  store.MediaStore
	Hasher *utils.PasswordHasher
	Tokens *utils.TokenService
	DB     Pinger
	Redis  *redis.Client

	// Collections has no routes yet.
	Collections store.CollectionStore

	CORSOrigins    []string
	AuthRateLimit  int
	AuthRateWindow time.Duration
}

func NewRouter(d Deps) *gin.Engine {
	apperror.RegisterValidators()

	r := gin.New()
	r.RedirectTrailingSlash = false
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID(), middleware.RequestLogger())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = d.CORSOrigins
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.RequestIDHeader}
	corsConfig.ExposeHeaders = []string{middleware.RequestIDHeader}
	corsConfig.AllowCredentials = true
	if len(d.CORSOrigins) > 0 {
		r.Use(cors.New(corsConfig))
	}

	r.Use(apperror.Middleware())
	r.Use(middleware.Authenticate(d.Tokens, d.Users))

	authHandler := auth.NewAuthHandler(d.Users, d.Hasher, d.Tokens)
	mediaHandler := media.NewHandler(d.Media)

	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, banner)
	})
	r.GET("/health", healthHandler(d.DB))

	limit := middleware.RateLimit(d.Redis, "auth", d.AuthRateLimit, d.AuthRateWindow)
	publicAuth := r.Group("/auth")
	{
		publicAuth.POST("/register", limit, authHandler.Register)
		publicAuth.POST("/login", limit, authHandler.Login)
	}

	protected := r.Group("/", middleware.RequireAuth())
	{
		protected.GET("/auth/validate", authHandler.Validate)
		protected.GET("/auth/info", authHandler.Info)
		protected.PUT("/auth/update", authHandler.Update)
		protected.PUT("/auth/password-update", authHandler.PasswordUpdate)
		protected.DELETE("/auth/delete", authHandler.Delete)

		protected.GET("/media/", mediaHandler.List)
		protected.GET("/media/:id", mediaHandler.Get)
		protected.POST("/media/add", mediaHandler.Add)
		protected.PUT("/media/add-rewatch", mediaHandler.AddRewatch)
		protected.PUT("/media/update", mediaHandler.Update)
		protected.DELETE("/media/delete", mediaHandler.Delete)
	}

	// Every route outside the public set requires authentication, unknown
	// ones included.
	r.NoRoute(func(c *gin.Context) {
		if _, ok := middleware.PrincipalFrom(c); !ok {
			apperror.Abort(c, apperror.Unauthenticated())
			return
		}
		apperror.Abort(c, apperror.NotFound())
	})

	return r
}

func healthHandler(db Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if db != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := db.Ping(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "DOWN"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "UP"})
	}
}
