package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"

	"docqa-backend/internal/ai"
	"docqa-backend/internal/auth"
	"docqa-backend/internal/config"
	"docqa-backend/internal/logger"
	"docqa-backend/internal/telemetry"
	"docqa-backend/middleware"
	"docqa-backend/routes"
	"docqa-backend/services"
	"docqa-backend/utils"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	logger.InitLogger(cfg)

	if cfg.OTLPEndpoint != "" {
		shutdown, err := telemetry.InitTracer("docqa-backend", cfg.OTLPEndpoint)
		if err != nil {
			log.Fatal("Failed to initialize tracing:", err)
		}
		defer shutdown()
	}
	metrics, err := telemetry.InitMetrics()
	if err != nil {
		log.Fatal("Failed to initialize metrics:", err)
	}

	mongoClient, err := config.ConnectMongoDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		mongoClient.Disconnect(ctx)
	}()
	db := mongoClient.Database(cfg.DBName)

	rdb, err := config.NewRedisClient(cfg)
	if err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}
	defer rdb.Close()

	ctx := context.Background()
	embedder, err := ai.NewEmbedder(ctx, cfg)
	if err != nil {
		log.Fatal("Failed to initialize embedder:", err)
	}
	defer embedder.Close()

	geminiClient, err := ai.NewGeminiClient(cfg)
	if err != nil {
		log.Fatal("Failed to initialize Gemini client:", err)
	}
	defer geminiClient.Close()

	tokens := auth.NewTokenService(cfg, rdb)

	chunker, err := services.NewChunker(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		log.Fatal("Invalid chunking configuration:", err)
	}

	documents := services.NewDocumentRepo(db)
	statusStore := services.NewRedisStatusStore(rdb)
	indexStore := services.NewMongoIndexStore(db, cfg.VectorIndexName, cfg.SearchIndexName)
	history := services.NewHistoryStore(db)

	pipeline := services.NewPipeline(
		services.NewFileExtractor(), chunker, embedder,
		indexStore, statusStore, documents, metrics)

	searcher := services.NewHybridSearcher(indexStore, embedder,
		cfg.DenseK, cfg.BM25K, cfg.TopK, cfg.DenseWeight, cfg.BM25Weight)

	queueClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer queueClient.Close()

	janitor := services.NewJanitor(cfg, documents)
	if err := janitor.Start(); err != nil {
		log.Fatal("Failed to start janitor:", err)
	}
	defer janitor.Stop()

	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.TracingMiddleware())
	router.Use(middleware.MetricsMiddleware(metrics))
	router.Use(middleware.CORSMiddleware(cfg.CORSOrigins))
	router.Use(middleware.RateLimitMiddleware(rdb, cfg))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "timestamp": time.Now().UTC()})
	})
	router.GET("/ready", func(c *gin.Context) {
		ctx, cancel := utils.WithShortTimeout(c.Request.Context())
		defer cancel()
		if err := mongoClient.Ping(ctx, nil); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "reason": "mongodb"})
			return
		}
		if err := rdb.Ping(ctx).Err(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "reason": "redis"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	authMiddleware := middleware.NewAuthMiddleware(tokens)
	routes.SetupAuthRoutes(router, cfg, db, tokens)

	api := router.Group("/api/v1")
	api.Use(authMiddleware.RequireAuth())
	api.Use(middleware.EnrichTrace())
	api.Use(middleware.RequestSizeLimit(cfg.MaxFileSize + 1024*1024))

	routes.SetupUploadRoutes(api, routes.UploadDeps{
		Config:    cfg,
		Documents: documents,
		Status:    statusStore,
		Pipeline:  pipeline,
		Queue:     queueClient,
	})
	routes.SetupQueryRoutes(api, routes.QueryDeps{
		Config:   cfg,
		Searcher: searcher,
		History:  history,
		Gemini:   geminiClient,
		Metrics:  metrics,
	})
	routes.SetupDocumentRoutes(api, routes.DocumentDeps{
		Documents: documents,
		Index:     indexStore,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info("Server starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}
	logger.Info("Server exited")
}
