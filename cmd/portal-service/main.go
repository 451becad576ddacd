package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	firebase "firebase.google.com/go/v4"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	assistantHandler "lexportal-backend/internal/handler/http/assistant"
	conversationHandler "lexportal-backend/internal/handler/http/conversation"
	notificationHandler "lexportal-backend/internal/handler/http/notification"
	practiceHandler "lexportal-backend/internal/handler/http/practice"
	wsHandler "lexportal-backend/internal/handler/ws"
	"lexportal-backend/internal/middleware"
	"lexportal-backend/internal/repository/cockroach"
	"lexportal-backend/internal/repository/docstore"
	"lexportal-backend/internal/repository/firestore"
	"lexportal-backend/internal/repository/memory"
	"lexportal-backend/internal/repository/mongo"
	"lexportal-backend/internal/repository/redis"
	assistantService "lexportal-backend/internal/service/assistant"
	conversationService "lexportal-backend/internal/service/conversation"
	notificationService "lexportal-backend/internal/service/notification"
	practiceService "lexportal-backend/internal/service/practice"
	"lexportal-backend/pkg/completion"
	"lexportal-backend/pkg/config"
	"lexportal-backend/pkg/database"
	"lexportal-backend/pkg/jwt"
	"lexportal-backend/pkg/logger"
	"lexportal-backend/pkg/metrics"
	"lexportal-backend/pkg/push"
	"lexportal-backend/pkg/storage"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(&logger.Config{
		Level:    cfg.Log.Level,
		Format:   cfg.Log.Format,
		Output:   cfg.Log.Output,
		FilePath: cfg.Log.FilePath,
	}); err != nil {
		logger.InitDefault()
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()

	// 2. Firebase app, shared by the Firestore backend and FCM alerts
	var firebaseApp *firebase.App
	if cfg.Portal.DocStore == config.StoreFirestore || cfg.Push.Enabled {
		firebaseApp, err = database.NewFirebaseApp(ctx, &database.FirestoreConfig{
			ProjectID:       cfg.Firestore.ProjectID,
			CredentialsPath: cfg.Firestore.CredentialsPath,
		})
		if err != nil {
			logger.Fatal("Failed to initialize Firebase", zap.Error(err))
		}
	}

	// Open the document store
	store, closeStore, err := openStore(ctx, cfg, firebaseApp)
	if err != nil {
		logger.Fatal("Failed to open document store", zap.String("backend", cfg.Portal.DocStore), zap.Error(err))
	}
	defer closeStore()
	logger.Info("Document store ready", zap.String("backend", cfg.Portal.DocStore))

	// 3. Connect to Redis (realtime feed and rate limiting)
	redisDB, err := database.NewRedisDB(&database.RedisConfig{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
		Timeout:  cfg.Redis.Timeout,
	})
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisDB.Close()
	publisher := redis.NewEventPublisher(redisDB.Client)

	// 4. Assistant dependencies
	completer, err := completion.New(completion.Config{
		BaseURL:     cfg.Completion.BaseURL,
		Model:       cfg.Completion.Model,
		APIKey:      cfg.Completion.APIKey,
		Temperature: cfg.Completion.Temperature,
		Timeout:     cfg.Completion.Timeout,
	})
	if err != nil {
		logger.Fatal("Failed to create completion client", zap.Error(err))
	}

	var documents storage.DocumentReader
	if cfg.MinIO.Endpoint != "" {
		minioDocuments, err := storage.NewMinioDocuments(storage.MinioConfig{
			Endpoint:  cfg.MinIO.Endpoint,
			AccessKey: cfg.MinIO.AccessKey,
			SecretKey: cfg.MinIO.SecretKey,
			UseSSL:    cfg.MinIO.UseSSL,
			Bucket:    cfg.MinIO.Bucket,
		})
		if err != nil {
			logger.Fatal("Failed to create MinIO client", zap.Error(err))
		}
		documents = minioDocuments
	}

	// 5. Initialize Services
	notificationSvc := notificationService.NewService(store, publisher)
	if cfg.Push.Enabled {
		pusher, err := push.NewFCMPusher(ctx, firebaseApp)
		if err != nil {
			logger.Fatal("Failed to create FCM client", zap.Error(err))
		}
		notificationSvc.WithPusher(pusher)
		logger.Info("FCM device alerts enabled")
	}
	conversationSvc := conversationService.NewService(store, publisher, conversationService.Config{
		LawyerID:          cfg.Portal.LawyerID,
		PersistLawyerRead: cfg.Portal.PersistLawyerRead,
	})
	practiceSvc := practiceService.NewService(store, conversationSvc, notificationSvc, cfg.Portal.LawyerID)
	assistantSvc := assistantService.NewService(completer, documents)

	// 6. Initialize Handlers
	conversationHdlr := conversationHandler.NewHandler(conversationSvc)
	notificationHdlr := notificationHandler.NewHandler(notificationSvc)
	practiceHdlr := practiceHandler.NewHandler(practiceSvc)
	assistantHdlr := assistantHandler.NewHandler(assistantSvc)
	inboxHdlr := wsHandler.NewInboxHandler(publisher, cfg.Server.AllowedOrigins)

	// 7. Setup Gin Router
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	_ = router.SetTrustedProxies(nil)

	appMetrics := metrics.NewMetrics(cfg.Server.ServiceName)
	jwtManager := jwt.NewJWTManager(cfg.JWT.Secret, cfg.JWT.Audience, 15*time.Minute)
	assistantLimiter := middleware.NewRateLimiter(redisDB.Client, appMetrics, "assistant", cfg.RateLimit.Requests, cfg.RateLimit.Window)

	router.Use(middleware.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.HealthCheck(cfg.Server.ServiceName))
	router.Use(middleware.CORSMiddleware(cfg.Server.AllowedOrigins))
	router.Use(middleware.NewPrometheusMiddleware(appMetrics).Handler())

	router.GET("/metrics", middleware.MetricsHandler(appMetrics))

	// The websocket route stays outside the request timeout
	router.GET("/v1/ws/inbox", middleware.AuthMiddleware(jwtManager, cfg.Portal.LawyerID), inboxHdlr.ServeWS)

	lawyerOnly := middleware.RequireRole(jwt.RoleLawyer)
	v1 := router.Group("/v1")
	v1.Use(middleware.SecurityHeaders(cfg.Server.Environment == "production"))
	v1.Use(middleware.NewTimeoutMiddleware(&middleware.TimeoutConfig{DefaultTimeout: 30 * time.Second}).Middleware())
	v1.Use(middleware.AuthMiddleware(jwtManager, cfg.Portal.LawyerID))
	{
		// Messaging
		v1.POST("/messages", conversationHdlr.SendMessage)
		v1.GET("/conversations", conversationHdlr.GetConversations)
		v1.GET("/conversations/:id", conversationHdlr.GetConversation)
		v1.POST("/conversations/:id/read", conversationHdlr.MarkAsRead)

		// Clients
		v1.GET("/clients", lawyerOnly, practiceHdlr.ListClients)
		v1.POST("/clients", lawyerOnly, practiceHdlr.CreateClient)
		v1.GET("/clients/:id", practiceHdlr.GetClient)
		v1.PUT("/clients/:id", practiceHdlr.UpdateClient)

		// Cases
		v1.GET("/cases", practiceHdlr.ListCases)
		v1.POST("/cases", lawyerOnly, practiceHdlr.CreateCase)
		v1.GET("/cases/:id", practiceHdlr.GetCase)
		v1.POST("/cases/:id/close", lawyerOnly, practiceHdlr.CloseCase)

		// Appointments
		v1.GET("/appointments", practiceHdlr.ListAppointments)
		v1.POST("/appointments", practiceHdlr.RequestAppointment)
		v1.POST("/appointments/:id/status", practiceHdlr.UpdateAppointmentStatus)
		v1.POST("/appointments/:id/reschedule", practiceHdlr.RescheduleAppointment)

		// Invoices
		v1.GET("/invoices", practiceHdlr.ListInvoices)
		v1.POST("/invoices", lawyerOnly, practiceHdlr.CreateInvoice)
		v1.POST("/invoices/:id/pay", practiceHdlr.PayInvoice)

		// Notifications
		v1.GET("/notifications", notificationHdlr.GetNotifications)
		v1.POST("/notifications/read-all", notificationHdlr.MarkAllAsRead)
		v1.POST("/notifications/:id/read", notificationHdlr.MarkAsRead)

		// Assistant
		ai := v1.Group("/assistant", assistantLimiter.Middleware())
		ai.POST("/summarize", assistantHdlr.Summarize)
		ai.POST("/estimate", assistantHdlr.Estimate)
		ai.POST("/chat", assistantHdlr.Chat)
	}

	// 8. Start server
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Portal service starting",
			zap.Int("port", cfg.Server.Port),
			zap.String("environment", cfg.Server.Environment))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// 9. Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

// openStore connects the configured document store backend and prepares
// its indexes or schema
func openStore(ctx context.Context, cfg *config.Config, app *firebase.App) (docstore.Store, func(), error) {
	switch cfg.Portal.DocStore {
	case config.StoreFirestore:
		db, err := database.NewFirestoreDB(ctx, app)
		if err != nil {
			return nil, nil, err
		}
		return firestore.NewStore(db.Client), func() { _ = db.Close() }, nil

	case config.StoreMongo:
		db, err := database.NewMongoDB(ctx, &database.MongoConfig{
			URI:         cfg.Mongo.URI,
			Database:    cfg.Mongo.Database,
			MaxPoolSize: uint64(cfg.Mongo.MaxPoolSize),
		})
		if err != nil {
			return nil, nil, err
		}
		store := mongo.NewStore(db.Database)
		if err := store.EnsureIndexes(ctx); err != nil {
			_ = db.Close(ctx)
			return nil, nil, err
		}
		return store, func() { _ = db.Close(context.Background()) }, nil

	case config.StoreCockroach:
		db, err := database.NewCockroachDB(ctx, &database.CockroachConfig{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			Database: cfg.Database.Database,
			SSLMode:  cfg.Database.SSLMode,
			MaxConns: int32(cfg.Database.MaxConns),
			MinConns: int32(cfg.Database.MinConns),
		})
		if err != nil {
			return nil, nil, err
		}
		store := cockroach.NewDocumentStore(db.Pool)
		if err := store.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		return store, db.Close, nil

	case config.StoreMemory:
		return memory.NewStore(), func() {}, nil
	}
	return nil, nil, fmt.Errorf("unsupported document store %q", cfg.Portal.DocStore)
}
