package app

import (
	"examhub_backend/docs"
	"examhub_backend/internal/config"
	"examhub_backend/internal/middleware"
	"examhub_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
		// Third-party verification needs no session.
		public.GET("/certificates/verify/:code", c.certificate.Verify)
	}

	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg))
	{
		authGroup.POST("/exams/:examId/attempts", c.attempt.StartAttempt)
		authGroup.GET("/attempts/:id/questions", c.attempt.GetPresentation)
		authGroup.POST("/attempts/:id/submit", c.attempt.SubmitAnswers)
		authGroup.POST("/attempts/:id/abandon", c.attempt.AbandonAttempt)
		authGroup.GET("/attempts/:id/outcome", c.attempt.GetOutcome)

		authGroup.GET("/users/me/certificates", c.certificate.ListMine)
	}
}
