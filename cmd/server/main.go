package main

import (
	"log"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"sezzlepay_echo/internal/handlers"
	apiMiddleware "sezzlepay_echo/internal/middleware"
	"sezzlepay_echo/internal/services"
	"sezzlepay_echo/internal/sezzle"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment")
	}

	// Initialize Database
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		log.Fatal("DATABASE_URL not set")
	}
	db, err := services.InitDB(databaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := services.AutoMigrate(db); err != nil {
		log.Fatalf("Failed to run database migrations: %v", err)
	}

	// Token cache is optional; without it every gateway call
	// re-authenticates.
	var tokenCache sezzle.TokenCache
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		cache, err := services.NewRedisCache(redisURL)
		if err != nil {
			log.Printf("Warning: Redis initialization failed: %v", err)
			log.Println("Gateway tokens will not be cached between requests")
		} else {
			defer cache.Close()
			tokenCache = cache
		}
	} else {
		log.Println("Warning: REDIS_URL not set, gateway token caching disabled")
	}

	// Gateway clients and services
	v1Client := sezzle.NewV1Client(tokenCache)
	v2Client := sezzle.NewV2Client(tokenCache)
	tokenizeManager := services.NewTokenizeManager(db, v2Client)
	orchestrator := services.NewOrchestrator(db, v1Client, v2Client, tokenizeManager)
	checkoutService := services.NewCheckoutService(db, v2Client, tokenizeManager, orchestrator)

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = apiMiddleware.CustomErrorHandler
	e.Validator = handlers.NewRequestValidator()

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	// Initialize handlers
	checkoutHandler := handlers.NewCheckoutHandler(checkoutService)
	paymentHandler := handlers.NewPaymentHandler(db, orchestrator)

	// Public routes
	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	// Protected routes
	protected := e.Group("")
	protected.Use(apiMiddleware.RequireAPIKey(os.Getenv("API_KEY")))

	protected.POST("/checkout", checkoutHandler.StartCheckout)
	protected.POST("/checkout/complete", checkoutHandler.CompleteCheckout)

	protected.POST("/orders/:id/authorize", paymentHandler.Authorize)
	protected.POST("/orders/:id/capture", paymentHandler.Capture)
	protected.POST("/orders/:id/refund", paymentHandler.Refund)
	protected.POST("/orders/:id/void", paymentHandler.Void)
	protected.GET("/orders/:id/payment", paymentHandler.GetPayment)
	protected.GET("/orders/:id/invoiceable", paymentHandler.Invoiceable)

	// Start server
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("Server starting on port %s", port)
	e.Logger.Fatal(e.Start(":" + port))
}
