package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL  string
	Port         string
	AwsAccessKey string
	AwsSecretKey string
	AwsRegion    string
	BucketName   string

	EmbedProvider string // "openai" (any OpenAI-compatible endpoint) or "gemini"
	EmbedBaseURL  string
	EmbedAPIKey   string
	EmbedModel    string
	EmbedDim      int
	EmbedBatch    int
	GeminiAPIKey  string

	ChunkSize    int
	ChunkOverlap int

	MaxPDFPages      int
	MaxPDFBytes      int
	MaxWebsiteLength int

	FetchTimeout time.Duration
	EmbedTimeout time.Duration
	StoreTimeout time.Duration

	Workers        int
	MaxAttempts    int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
}

// LoadConfig loads the environment variables and returns the config.
func LoadConfig() *Config {

	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL:  getEnv("DATABASE_URL", ""),
		Port:         getEnv("PORT", "8080"),
		AwsAccessKey: getEnv("AWS_ACCESS_KEY", ""),
		AwsSecretKey: getEnv("AWS_SECRET_KEY", ""),
		AwsRegion:    getEnv("AWS_REGION", "us-east-2"),
		BucketName:   getEnv("BUCKET_NAME", "ragpipeline-docs"),

		EmbedProvider: getEnv("EMBEDDING_PROVIDER", "openai"),
		EmbedBaseURL:  getEnv("EMBEDDING_BASE_URL", "https://api.openai.com/v1"),
		EmbedAPIKey:   getEnv("EMBEDDING_API_KEY", os.Getenv("OPENAI_API_KEY")),
		EmbedModel:    getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
		EmbedDim:      getEnvInt("EMBED_DIM", 1536),
		EmbedBatch:    getEnvInt("EMBED_BATCH_SIZE", 10),
		GeminiAPIKey:  getEnv("GEMINI_API_KEY", ""),

		ChunkSize:    getEnvInt("CHUNK_SIZE", 400),
		ChunkOverlap: getEnvInt("CHUNK_OVERLAP", 50),

		MaxPDFPages:      getEnvInt("MAX_PDF_PAGES", 500),
		MaxPDFBytes:      getEnvInt("MAX_PDF_BYTES", 50<<20),
		MaxWebsiteLength: getEnvInt("MAX_WEBSITE_CONTENT_LENGTH", 500_000),

		FetchTimeout: getEnvSecs("FETCH_TIMEOUT_SECS", 30),
		EmbedTimeout: getEnvSecs("EMBED_TIMEOUT_SECS", 60),
		StoreTimeout: getEnvSecs("STORE_TIMEOUT_SECS", 30),

		Workers:        getEnvInt("RAG_PIPELINE_WORKERS", 2),
		MaxAttempts:    getEnvInt("JOB_MAX_ATTEMPTS", 3),
		RetryBaseDelay: getEnvSecs("RETRY_BASE_DELAY_SECS", 2),
		RetryMaxDelay:  getEnvSecs("RETRY_MAX_DELAY_SECS", 300),
	}

	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL not set")
	}

	return cfg
}

// Helper to read environment variables with a default fallback
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, def int) int {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("WARN: %s=%q not an int, using default %d", key, v, def)
		return def
	}
	return n
}

func getEnvSecs(key string, defSecs int) time.Duration {
	return time.Duration(getEnvInt(key, defSecs)) * time.Second
}
