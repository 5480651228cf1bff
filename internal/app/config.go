package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	db "github.com/FelipeVegaEsparza/hostbot-sub000/internal/data/db"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/inference/router"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/observability"
)

type Config struct {
	Port    string `env:"PORT" envDefault:"8080"`
	LogMode string `env:"LOG_MODE" envDefault:"development"`
	// Role is "all", "api" or "worker".
	Role    string `env:"APP_ROLE" envDefault:"all"`

	PostgresHost     string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort     string `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser     string `env:"POSTGRES_USER" envDefault:"postgres"`
	PostgresPassword string `env:"POSTGRES_PASSWORD"`
	PostgresName     string `env:"POSTGRES_NAME" envDefault:"hostbot"`
	PostgresSSLMode  string `env:"POSTGRES_SSLMODE" envDefault:"disable"`
	PostgresMaxOpen  int    `env:"POSTGRES_MAX_OPEN_CONNS" envDefault:"20"`
	PostgresMaxIdle  int    `env:"POSTGRES_MAX_IDLE_CONNS" envDefault:"5"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
	RedisChannel  string `env:"REDIS_CHANNEL" envDefault:"hostbot:realtime"`

	RabbitMQURL            string   `env:"RABBITMQ_URL"`
	RabbitMQQueue          string   `env:"RABBITMQ_QUEUE" envDefault:"hostbot_events"`
	RabbitMQPrefix         string   `env:"RABBITMQ_PREFIX" envDefault:"hostbot"`
	RabbitMQSpecificEvents []string `env:"RABBITMQ_SPECIFIC_EVENTS" envSeparator:","`

	OpenAIKey       string `env:"OPENAI_API_KEY"`
	OpenAIBaseURL   string `env:"OPENAI_BASE_URL"`
	AnthropicKey    string `env:"ANTHROPIC_API_KEY"`
	GroqKey         string `env:"GROQ_API_KEY"`
	GoogleKey       string `env:"GOOGLE_AI_API_KEY"`
	MistralKey      string `env:"MISTRAL_API_KEY"`
	CohereKey       string `env:"COHERE_API_KEY"`
	LlamaBaseURL    string `env:"LLAMA_BASE_URL"`
	LlamaKey        string `env:"LLAMA_API_KEY"`
	// ProviderCatalog points at a YAML override of the embedded provider catalog.
	ProviderCatalog string `env:"AI_PROVIDER_CATALOG"`

	// AIRequestTimeout bounds one AI stage vendor call and the wait for vendor response headers.
	AIRequestTimeout time.Duration `env:"AI_REQUEST_TIMEOUT" envDefault:"60s"`

	CircuitFailureThreshold int           `env:"CIRCUIT_FAILURE_THRESHOLD" envDefault:"5"`
	CircuitResetTimeout     time.Duration `env:"CIRCUIT_RESET_TIMEOUT" envDefault:"60s"`

	QueueMaxAttempts       int            `env:"QUEUE_MAX_ATTEMPTS" envDefault:"3"`
	QueueConcurrency       int            `env:"QUEUE_CONCURRENCY" envDefault:"4"`
	QueueRateLimit         float64        `env:"QUEUE_RATE_LIMIT" envDefault:"10"`
	QueueConcurrencyByName map[string]int `env:"QUEUE_CONCURRENCY_BY_NAME" envSeparator:"," envKeyValSeparator:":"`
	QueuePollInterval      time.Duration  `env:"QUEUE_POLL_INTERVAL" envDefault:"500ms"`
	QueueBackoffBase       time.Duration  `env:"QUEUE_BACKOFF_BASE" envDefault:"1s"`
	RetentionSucceeded     time.Duration  `env:"QUEUE_RETENTION_SUCCEEDED" envDefault:"1h"`
	RetentionFailed        time.Duration  `env:"QUEUE_RETENTION_FAILED" envDefault:"24h"`
	RetentionSchedule      string         `env:"QUEUE_RETENTION_SCHEDULE" envDefault:"@every 10m"`

	WhatsAppCloudBaseURL    string `env:"WHATSAPP_CLOUD_BASE_URL"`
	WhatsAppCloudAPIVersion string `env:"WHATSAPP_CLOUD_API_VERSION"`
	WhatsAppVerifyToken     string `env:"WHATSAPP_VERIFY_TOKEN"`
	WhatsAppQRBaseURL       string `env:"WHATSAPP_QR_BASE_URL"`
	WhatsAppQRAPIKey        string `env:"WHATSAPP_QR_API_KEY"`

	KnowledgeBaseURL string `env:"KNOWLEDGE_BASE_URL"`
	KnowledgeAPIKey  string `env:"KNOWLEDGE_API_KEY"`

	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:","`
	AdminAPIKey string   `env:"ADMIN_API_KEY"`

	MetricsEnabled     bool          `env:"METRICS_ENABLED" envDefault:"true"`
	QueueDepthInterval time.Duration `env:"METRICS_QUEUE_DEPTH_INTERVAL" envDefault:"15s"`

	OtelEnabled     bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OtelServiceName string  `env:"OTEL_SERVICE_NAME" envDefault:"hostbot"`
	OtelEnvironment string  `env:"OTEL_ENVIRONMENT" envDefault:"development"`
	OtelVersion     string  `env:"OTEL_SERVICE_VERSION"`
	OtelEndpoint    string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OtelHeaders     string  `env:"OTEL_EXPORTER_OTLP_HEADERS"`
	OtelInsecure    bool    `env:"OTEL_EXPORTER_OTLP_INSECURE" envDefault:"false"`
	OtelSampleRatio float64 `env:"OTEL_SAMPLE_RATIO" envDefault:"1"`
}

// LoadConfig reads an optional .env file, then the process environment.
func LoadConfig() (Config, error) {
	_ = godotenv.Load()
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.Role = strings.ToLower(strings.TrimSpace(cfg.Role))
	switch cfg.Role {
	case "all", "api", "worker":
	default:
		return Config{}, fmt.Errorf("APP_ROLE must be all, api or worker, got %q", cfg.Role)
	}
	if cfg.QueueMaxAttempts < 1 {
		return Config{}, fmt.Errorf("QUEUE_MAX_ATTEMPTS must be at least 1")
	}
	return cfg, nil
}

func (c Config) RunsAPI() bool    { return c.Role == "all" || c.Role == "api" }
func (c Config) RunsWorker() bool { return c.Role == "all" || c.Role == "worker" }

func (c Config) Postgres() db.PostgresConfig {
	return db.PostgresConfig{
		Host:         c.PostgresHost,
		Port:         c.PostgresPort,
		User:         c.PostgresUser,
		Password:     c.PostgresPassword,
		Name:         c.PostgresName,
		SSLMode:      c.PostgresSSLMode,
		MaxOpenConns: c.PostgresMaxOpen,
		MaxIdleConns: c.PostgresMaxIdle,
	}
}

func (c Config) Credentials() router.Credentials {
	return router.Credentials{
		OpenAIKey:     c.OpenAIKey,
		OpenAIBaseURL: c.OpenAIBaseURL,
		AnthropicKey:  c.AnthropicKey,
		GroqKey:       c.GroqKey,
		GoogleKey:     c.GoogleKey,
		MistralKey:    c.MistralKey,
		CohereKey:     c.CohereKey,
		LlamaBaseURL:  c.LlamaBaseURL,
		LlamaKey:      c.LlamaKey,
	}
}

func (c Config) Otel() observability.OtelConfig {
	return observability.OtelConfig{
		Enabled:     c.OtelEnabled,
		ServiceName: c.OtelServiceName,
		Environment: c.OtelEnvironment,
		Version:     c.OtelVersion,
		Endpoint:    c.OtelEndpoint,
		Headers:     observability.ParseHeaders(c.OtelHeaders),
		Insecure:    c.OtelInsecure,
		SampleRatio: c.OtelSampleRatio,
	}
}
