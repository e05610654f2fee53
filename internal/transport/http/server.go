package http

import (
	"time"

	"github.com/gin-gonic/gin"

	"vecbridge/internal/bootstrap"
	"vecbridge/internal/transport/http/handler"
	"vecbridge/internal/transport/http/middleware"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	healthHandler := handler.NewHealthHandler(app)
	router.GET("/healthz", healthHandler.Check)

	authHandler := handler.NewAuthHandler(app.Auth)
	documentHandler := handler.NewDocumentHandler(app.Ingest)
	queryHandler := handler.NewQueryHandler(app.Retrieval)

	authMW := middleware.AuthJWT(app.Config.Auth.JWTSecret)
	limitMW := middleware.InFlightLimit(
		int64(app.Config.Gateway.MaxInFlight),
		time.Duration(app.Config.Gateway.AcquireWaitMillis)*time.Millisecond,
	)

	v1 := router.Group("/api/v1")
	authGroup := v1.Group("/auth")
	authGroup.POST("/register", authHandler.Register)
	authGroup.POST("/login", authHandler.Login)
	authGroup.GET("/me", authMW, authHandler.Me)

	docGroup := v1.Group("/documents")
	docGroup.Use(authMW, limitMW)
	docGroup.POST("", documentHandler.Ingest)
	docGroup.POST("/pdf", documentHandler.UploadPDF)
	docGroup.GET("", documentHandler.List)
	docGroup.GET("/:id", documentHandler.Get)
	docGroup.DELETE("/:id", documentHandler.Delete)
	docGroup.POST("/:id/reingest", documentHandler.Reingest)

	queryGroup := v1.Group("/query")
	queryGroup.Use(authMW, limitMW)
	queryGroup.POST("", queryHandler.Query)
	queryGroup.POST("/documents", queryHandler.QueryDocuments)

	return router
}
