package server

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	httpHandler "my-history/interfaces/http"
	"my-history/interfaces/middleware"
)

func InitiateRouter(historyHandler httpHandler.IHistoryHandler, secretKey string) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:4200", "http://localhost:5173"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/healthz", historyHandler.Healthz)

	api := router.Group("api")
	api.Use(middleware.Auth(secretKey))

	api.POST("/history/sync", historyHandler.SyncHistory)
	api.GET("/history", historyHandler.ListHistory)
	api.GET("/history/export", historyHandler.ExportHistory)
	api.DELETE("/history/:platform/:id", historyHandler.DeleteHistory)
	api.GET("/providers", historyHandler.GetProviders)

	return router
}
