package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/pulsefeed/pulsefeed/config"
	"github.com/pulsefeed/pulsefeed/controllers"
	"github.com/pulsefeed/pulsefeed/engine"
	"github.com/pulsefeed/pulsefeed/middleware"
	"github.com/pulsefeed/pulsefeed/repository"
	"github.com/pulsefeed/pulsefeed/utils"
)

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(repo *repository.Posts, eng *engine.Engine) *gin.Engine {
	cfg := config.Get()
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	// Access log to its own rolling file, app log stays clean
	al, err := utils.NewRollingFileLogger(cfg.AccessLogPath, cfg.LogLevel, cfg.LogMaxSizeMB, cfg.LogMaxBackups, cfg.LogMaxAgeDays, cfg.LogCompress)
	if err == nil {
		r.Use(utils.Ginzap(al, time.RFC3339, true))
		r.Use(utils.RecoveryWithZap(al, false))
	} else {
		r.Use(gin.Recovery())
	}

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	r.GET("/health", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"status": "ok"})
	})

	feedController := controllers.NewFeedController(repo, eng, utils.Sugar)

	api := r.Group("/api/v1")

	// Reads are public; an optional token makes them viewer-relative
	api.GET("/posts", middleware.AuthOptional(), feedController.ListPosts)
	api.GET("/posts/stream", middleware.AuthOptional(), feedController.StreamPosts)
	api.GET("/users/:id/posts", middleware.AuthOptional(), feedController.ListUserPosts)

	protected := api.Group("")
	protected.Use(middleware.AuthRequired(), middleware.RateLimit())
	protected.POST("/posts", feedController.CreatePost)
	protected.PUT("/posts/:id", feedController.UpdatePost)
	protected.DELETE("/posts/:id", feedController.DeletePost)
	protected.POST("/posts/:id/like", feedController.ToggleLike)
	protected.POST("/posts/:id/comments", feedController.CreateComment)

	r.NoRoute(func(ctx *gin.Context) {
		utils.Error(ctx, http.StatusNotFound, 40400, "route not found")
	})

	return r
}
