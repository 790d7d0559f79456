package main

import (
	"fmt"
	"log"
	"net/http"

	"cityflow/config"
	"cityflow/handlers"
	"cityflow/middleware"
	"cityflow/models"
	"cityflow/services"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := gorm.Open(postgres.Open(cfg.Database.GetDSN()), &gorm.Config{TranslateError: true})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalf("Failed to get sql db handle: %v", err)
	}
	if err := sqlDB.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}
	// Accident and training run tables belong to the ingestor and trainer.
	if err := db.AutoMigrate(&models.User{}); err != nil {
		log.Fatalf("Failed to migrate users: %v", err)
	}

	cache, err := services.NewCacheService(cfg.Redis)
	if err != nil {
		log.Printf("Redis unavailable, serving without cache or live stream: %v", err)
	}
	defer cache.Close()

	authService := services.NewAuthService(cfg.JWT)
	authHandler := handlers.NewAuthHandler(db, authService)
	accidentHandler := handlers.NewAccidentHandler(db, cache, cfg.Store.InsertCollection)
	runHandler := handlers.NewTrainingRunHandler(db)

	router := gin.Default()
	router.Use(middleware.SetupCORS(cfg.CORS))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "UP",
			"message": "cityflow API is running",
			"cache":   cache.Available(),
		})
	})

	auth := router.Group("/api/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)
	auth.POST("/logout", authHandler.Logout)

	api := router.Group("/api", middleware.RequireAuth(authService))
	api.GET("/accidents", accidentHandler.List)
	api.GET("/accidents/:eventNo", accidentHandler.Get)
	api.GET("/training-runs", runHandler.List)
	api.GET("/training-runs/:id", runHandler.Get)

	router.GET("/ws/live", handlers.LiveAccidents(cache, authService, cfg.Notify.Channel))

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Printf("Starting server on %s", addr)
	if err := router.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
