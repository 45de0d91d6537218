// @title ExamHub Attempt & Certification API
// @version 1.0
// @description Exam attempt lifecycle, scoring and certificate issuance service.

// @host localhost:8080
// @BasePath /api
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name Authorization

package main

import (
	"log"

	"examhub_backend/internal/app"
	"examhub_backend/internal/config"
	"examhub_backend/pkg/logger"
)

func main() {
	cfg, err := config.LoadConfig("configs")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	application := app.NewApp(cfg)
	defer logger.Log.Sync()

	application.Run()
}
