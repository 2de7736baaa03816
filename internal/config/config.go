package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port        string
	GinMode     string
	CORSOrigins []string

	// MongoDB
	MongoURI string
	DBName   string

	// Redis
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// Auth
	AccessSecret  string
	RefreshSecret string
	BcryptCost    int

	// Rate limiting
	RateLimitReqs   int
	RateLimitWindow int

	// Uploads
	MaxFileSize         int64
	AllowedExtensions   []string
	FileStorageDir      string
	SyncProcessingLimit int64

	// Text processing
	ChunkSize    int
	ChunkOverlap int

	// Retrieval
	DenseK      int
	BM25K       int
	TopK        int
	DenseWeight float64
	BM25Weight  float64

	// Conversation history
	HistoryTurns int

	// Search indexes (Atlas)
	SearchIndexName  string
	VectorIndexName  string
	VectorDimensions int

	// Gemini
	GeminiAPIKey    string
	GeminiModel     string
	EmbeddingsModel string
	GeminiTier      string
	LLMMaxTokens    int
	LLMTemperature  float64

	// Janitor
	TempFileMaxAge  int // hours
	StuckDocMaxAge  int // hours
	JanitorInterval int // minutes

	// Telemetry. Tracing is disabled when the endpoint is empty.
	OTLPEndpoint string
}

func LoadConfig() (*Config, error) {
	// Load .env file if it exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("error loading .env file: %v", err)
		}
	}

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		GinMode:     getEnv("GIN_MODE", "debug"),
		CORSOrigins: strings.Split(getEnv("CORS_ORIGINS", "http://localhost:3000,http://localhost:5173"), ","),

		MongoURI: getEnv("MONGO_URI", "mongodb://localhost:27017/docqa"),
		DBName:   getEnv("DB_NAME", "docqa"),

		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		AccessSecret:  getEnv("ACCESS_SECRET", ""),
		RefreshSecret: getEnv("REFRESH_SECRET", ""),
		BcryptCost:    getEnvInt("BCRYPT_COST", 12),

		RateLimitReqs:   getEnvInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow: getEnvInt("RATE_LIMIT_WINDOW", 60),

		MaxFileSize:         getEnvInt64("MAX_FILE_SIZE", 104857600), // 100MB
		AllowedExtensions:   strings.Split(getEnv("ALLOWED_FILE_TYPES", ".pdf,.txt,.md,.html,.xlsx"), ","),
		FileStorageDir:      getEnv("FILE_STORAGE_DIR", "./storage"),
		SyncProcessingLimit: getEnvInt64("SYNC_PROCESSING_LIMIT", 2097152), // 2MB processed inline

		ChunkSize:    getEnvInt("CHUNK_SIZE", 768),
		ChunkOverlap: getEnvInt("CHUNK_OVERLAP", 64),

		DenseK:      getEnvInt("SEARCH_DENSE_K", 10),
		BM25K:       getEnvInt("SEARCH_BM25_K", 10),
		TopK:        getEnvInt("SEARCH_TOP_K", 8),
		DenseWeight: getEnvFloat64("SEARCH_DENSE_WEIGHT", 0.6),
		BM25Weight:  getEnvFloat64("SEARCH_BM25_WEIGHT", 0.4),

		HistoryTurns: getEnvInt("HISTORY_TURNS", 5),

		SearchIndexName:  getEnv("MONGODB_SEARCH_INDEX", "document_chunks_text"),
		VectorIndexName:  getEnv("MONGODB_VECTOR_INDEX", "document_chunks_vector"),
		VectorDimensions: getEnvInt("VECTOR_DIM", 768),

		GeminiAPIKey:    getEnv("GEMINI_API_KEY", ""),
		GeminiModel:     getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		EmbeddingsModel: getEnv("GOOGLE_EMBEDDINGS_MODEL", "text-embedding-004"),
		GeminiTier:      getEnv("GEMINI_TIER", "free"),
		LLMMaxTokens:    getEnvInt("LLM_MAX_TOKENS", 2048),
		LLMTemperature:  getEnvFloat64("LLM_TEMPERATURE", 0.1),

		TempFileMaxAge:  getEnvInt("TEMP_FILE_MAX_AGE_HOURS", 6),
		StuckDocMaxAge:  getEnvInt("STUCK_DOC_MAX_AGE_HOURS", 2),
		JanitorInterval: getEnvInt("JANITOR_INTERVAL_MINUTES", 30),

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
	}

	// Validate required fields
	if cfg.AccessSecret == "" || cfg.RefreshSecret == "" {
		return nil, fmt.Errorf("ACCESS_SECRET and REFRESH_SECRET are required")
	}

	if cfg.ChunkOverlap >= cfg.ChunkSize {
		return nil, fmt.Errorf("CHUNK_OVERLAP (%d) must be smaller than CHUNK_SIZE (%d)", cfg.ChunkOverlap, cfg.ChunkSize)
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
