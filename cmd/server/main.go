package main

import (
	"log"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/wajihaissa/fahamni/internal/handlers"
	appmiddleware "github.com/wajihaissa/fahamni/internal/middleware"
	"github.com/wajihaissa/fahamni/internal/repository"
	"github.com/wajihaissa/fahamni/internal/services"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment")
	}

	// Initialize Firebase
	credPath := os.Getenv("FIREBASE_CREDENTIALS_PATH")
	if credPath == "" {
		credPath = "./firebase-service-account.json"
	}

	authClient, err := services.InitFirebase(credPath)
	if err != nil {
		log.Printf("Warning: Firebase initialization failed: %v", err)
		log.Println("Auth features will not work until valid credentials are provided")
	}

	var push services.PushSender
	if messagingClient, err := services.InitMessaging(credPath); err != nil {
		log.Printf("Warning: FCM initialization failed, push delivery disabled: %v", err)
	} else {
		push = services.NewFCMPusher(messagingClient)
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

	// Initialize Redis (optional: caching and the sweep claim degrade
	// gracefully without it)
	var cache *services.RedisCache
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		cache, err = services.NewRedisCache(redisURL)
		if err != nil {
			log.Printf("Warning: Redis initialization failed: %v", err)
			cache = nil
		}
	}

	// Repositories
	reservationRepo := repository.NewReservationRepository(db)
	transactionRepo := repository.NewPaymentTransactionRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	// Services
	emailService := services.NewEmailService()
	stripeService := services.NewStripeService()
	konnectService := services.NewKonnectService(stripeService)
	notificationService := services.NewNotificationService(notificationRepo, push)

	gateway := selectGateway(stripeService, konnectService)
	paymentService := services.NewPaymentService(transactionRepo, reservationRepo, gateway, notificationService)
	reservationService := services.NewReservationService(reservationRepo, emailService)

	// Create Echo instance
	e := echo.New()
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.HTTPErrorHandler = appmiddleware.JSONErrorHandler

	// Handlers
	reservationHandler := handlers.NewReservationHandler(db, reservationService, paymentService, reservationRepo)
	paymentHandler := handlers.NewPaymentHandler(db, paymentService, reservationRepo)
	webhookHandler := handlers.NewWebhookHandler(paymentService, stripeService, konnectService)
	notificationHandler := handlers.NewNotificationHandler(db, notificationService, notificationRepo, cache)

	// Public routes
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.POST("/webhooks/stripe", webhookHandler.HandleStripe)
	e.POST("/webhooks/konnect", webhookHandler.HandleKonnect)

	// Protected routes
	protected := e.Group("/api")
	protected.Use(appmiddleware.RequireAuth(authClient))

	protected.POST("/seances/:id/reservations", reservationHandler.CreateReservation)
	protected.GET("/reservations/:id", reservationHandler.GetReservation)
	protected.POST("/reservations/:id/accept", reservationHandler.AcceptReservation)
	protected.POST("/reservations/:id/cancel", reservationHandler.CancelReservation)

	protected.POST("/reservations/:id/checkout", paymentHandler.StartCheckout)
	protected.GET("/reservations/:id/payment", paymentHandler.PaymentStatus)

	protected.GET("/notifications", notificationHandler.ListNotifications)
	protected.GET("/notifications/unread-count", notificationHandler.UnreadCount)
	protected.POST("/notifications/:id/read", notificationHandler.MarkNotificationRead)
	protected.POST("/notifications/read-all", notificationHandler.MarkAllNotificationsRead)

	// Start server
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("Server starting on port %s", port)
	e.Logger.Fatal(e.Start(":" + port))
}

func selectGateway(stripeService *services.StripeService, konnectService *services.KonnectService) services.CheckoutGateway {
	switch os.Getenv("PAYMENT_PROVIDER") {
	case "konnect":
		return konnectService
	case "mock":
		return services.NewMockGateway(stripeService, os.Getenv("CHECKOUT_SUCCESS_URL"))
	default:
		return stripeService
	}
}
