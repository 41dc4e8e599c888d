// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes application settings
// such as server timeouts, logging, database paths, object storage, model
// endpoints, ingestion tuning, rate limiting, and observability.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "go-kb-backend")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// StorageConfig defines object-storage (MinIO/S3-compatible) settings.
type StorageConfig struct {
	Endpoint     string        // STORAGE_ENDPOINT (host:port)
	AccessKey    string        // STORAGE_ACCESS_KEY
	SecretKey    string        // STORAGE_SECRET_KEY
	Bucket       string        // STORAGE_BUCKET
	UseSSL       bool          // STORAGE_USE_SSL
	Prefix       string        // STORAGE_PREFIX key prefix for uploads
	PresignTTL   time.Duration // STORAGE_PRESIGN_TTL for download URLs
	FetchTimeout time.Duration // STORAGE_FETCH_TIMEOUT per get/put call
}

// GenAIConfig defines Gemini embedding/generation settings.
type GenAIConfig struct {
	APIKey          string        // GOOGLE_API_KEY
	EmbeddingModel  string        // EMBEDDING_MODEL
	EmbeddingDim    int           // EMBEDDING_DIM (vector dimensionality)
	GenerativeModel string        // GENERATIVE_MODEL
	EmbedTimeout    time.Duration // EMBED_TIMEOUT per embedding call
	GenerateTimeout time.Duration // GENERATE_TIMEOUT per generation call
}

// IngestConfig tunes the background ingestion workers and the chunker.
type IngestConfig struct {
	Workers      int // INGEST_WORKERS concurrent ingestion jobs
	QueueSize    int // INGEST_QUEUE_SIZE buffered pending jobs
	ChunkSize    int // CHUNK_SIZE target chunk length in runes
	ChunkOverlap int // CHUNK_OVERLAP overlap between consecutive chunks
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging
	LogLevel    string // debug|info|warn|error|fatal|panic
	LogPretty   bool   // pretty console logs in dev
	APIBasePath string // base path for API routes

	// App
	DBPath          string // SQLite path
	RetrievalLimit  int    // top-K chunks replayed into the prompt
	HistoryWindow   int    // prior turns replayed into the prompt
	MaxQuestionLen  int    // max question length in runes
	MaxUploadBytes  int64  // max accepted PDF size
	DeclineAnswer   string // fixed answer when no grounding is available

	// External capabilities
	Storage StorageConfig
	GenAI   GenAIConfig
	Ingest  IngestConfig

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Observability
	OTEL OTELConfig
}

// DefaultDeclineAnswer is returned verbatim when retrieval finds no eligible
// chunks for a question; generation is skipped entirely in that case.
const DefaultDeclineAnswer = "Sorry, I could not find anything about that in this service's manuals."

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging
		LogLevel:    strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:   getbool("LOG_PRETTY", false),
		APIBasePath: normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		// App
		DBPath:         getenv("DB_PATH", "app.db"),
		RetrievalLimit: getint("RETRIEVAL_LIMIT", 5),
		HistoryWindow:  getint("HISTORY_WINDOW", 6),
		MaxQuestionLen: getint("MAX_QUESTION_LEN", 2000),
		MaxUploadBytes: int64(getint("MAX_UPLOAD_BYTES", 25<<20)),
		DeclineAnswer:  getenv("DECLINE_ANSWER", DefaultDeclineAnswer),

		// Object storage
		Storage: StorageConfig{
			Endpoint:     getenv("STORAGE_ENDPOINT", "localhost:9000"),
			AccessKey:    getenv("STORAGE_ACCESS_KEY", ""),
			SecretKey:    getenv("STORAGE_SECRET_KEY", ""),
			Bucket:       getenv("STORAGE_BUCKET", "documents"),
			UseSSL:       getbool("STORAGE_USE_SSL", false),
			Prefix:       getenv("STORAGE_PREFIX", "documents"),
			PresignTTL:   getdur("STORAGE_PRESIGN_TTL", time.Hour),
			FetchTimeout: getdur("STORAGE_FETCH_TIMEOUT", 60*time.Second),
		},

		// Gemini
		GenAI: GenAIConfig{
			APIKey:          getenv("GOOGLE_API_KEY", ""),
			EmbeddingModel:  getenv("EMBEDDING_MODEL", "gemini-embedding-001"),
			EmbeddingDim:    getint("EMBEDDING_DIM", 768),
			GenerativeModel: getenv("GENERATIVE_MODEL", "gemini-2.5-flash-lite"),
			EmbedTimeout:    getdur("EMBED_TIMEOUT", 30*time.Second),
			GenerateTimeout: getdur("GENERATE_TIMEOUT", 90*time.Second),
		},

		// Ingestion
		Ingest: IngestConfig{
			Workers:      getint("INGEST_WORKERS", 2),
			QueueSize:    getint("INGEST_QUEUE_SIZE", 64),
			ChunkSize:    getint("CHUNK_SIZE", 1000),
			ChunkOverlap: getint("CHUNK_OVERLAP", 200),
		},

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "go-kb-backend"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return cfg, errors.New("DB_PATH must not be empty")
	}
	if cfg.RetrievalLimit < 1 {
		return cfg, errors.New("RETRIEVAL_LIMIT must be >= 1")
	}
	if cfg.HistoryWindow < 0 {
		return cfg, errors.New("HISTORY_WINDOW must be >= 0")
	}
	if cfg.MaxUploadBytes <= 0 {
		return cfg, errors.New("MAX_UPLOAD_BYTES must be > 0")
	}
	if cfg.GenAI.EmbeddingDim < 1 {
		return cfg, errors.New("EMBEDDING_DIM must be >= 1")
	}
	if cfg.GenAI.EmbedTimeout <= 0 || cfg.GenAI.GenerateTimeout <= 0 {
		return cfg, errors.New("model call timeouts must be positive durations")
	}
	if cfg.Ingest.Workers < 1 {
		return cfg, errors.New("INGEST_WORKERS must be >= 1")
	}
	if cfg.Ingest.QueueSize < 1 {
		return cfg, errors.New("INGEST_QUEUE_SIZE must be >= 1")
	}
	if cfg.Ingest.ChunkSize < 1 {
		return cfg, errors.New("CHUNK_SIZE must be >= 1")
	}
	if cfg.Ingest.ChunkOverlap < 0 || cfg.Ingest.ChunkOverlap >= cfg.Ingest.ChunkSize {
		return cfg, errors.New("CHUNK_OVERLAP must be >= 0 and smaller than CHUNK_SIZE")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
