package server

import (
	"net/http"
	"time"

	"autopost/domain/repository"
	httpHandler "autopost/interfaces/http"
	"autopost/interfaces/middleware"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var defaultOrigins = []string{"http://localhost:4200", "http://localhost:4201", "https://localhost:4200", "https://localhost:4201"}

func InitiateRouter(
	postHandler httpHandler.IPostHandler,
	userRepository repository.IUser,
	secretKey string,
	allowedOrigins []string,
	stream gin.HandlerFunc,
	gatherer prometheus.Gatherer,
) *gin.Engine {
	if len(allowedOrigins) == 0 {
		allowedOrigins = defaultOrigins
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	api := router.Group("api")
	api.Use(middleware.Auth(userRepository, secretKey))

	posts := api.Group("/posts")
	{
		if stream != nil {
			posts.GET("/stream", stream)
		}
		posts.GET("/:postId", postHandler.Get)
		posts.POST("/:postId/publish-now", postHandler.PublishNow)
		posts.POST("/:postId/retry", postHandler.Retry)
		posts.GET("/:postId/engagement", postHandler.Engagement)
	}
	api.POST("/autopost/sweep", postHandler.Sweep)

	return router
}
