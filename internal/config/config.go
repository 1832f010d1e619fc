package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config содержит конфигурацию quest-server.
type Config struct {
	Env         string `envconfig:"ENV" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	LogEncoding string `envconfig:"LOG_ENCODING" default:"json"`
	ServerPort  string `envconfig:"SERVER_PORT" default:"3000"`

	// PostgreSQL: пользователи и инвайт-коды
	DBHost     string        `envconfig:"DB_HOST" default:"localhost"`
	DBPort     string        `envconfig:"DB_PORT" default:"5432"`
	DBUser     string        `envconfig:"DB_USER" default:"postgres"`
	DBName     string        `envconfig:"DB_NAME" default:"quest"`
	DBSSLMode  string        `envconfig:"DB_SSL_MODE" default:"disable"`
	DBMaxConns int32         `envconfig:"DB_MAX_CONNECTIONS" default:"10"`
	DBIdleTime time.Duration `envconfig:"DB_MAX_IDLE_TIME" default:"5m"`
	// Секретное поле БЕЗ envconfig тега
	DBPassword string

	// Хранилище сессий: redis | sqlite | memory
	SessionStore string `envconfig:"SESSION_STORE" default:"redis"`
	SQLitePath   string `envconfig:"SQLITE_PATH" default:"quest.db"`
	RedisAddr    string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisDB      int    `envconfig:"REDIS_DB" default:"0"`
	// Секретное поле БЕЗ envconfig тега
	RedisPassword string

	// RabbitMQ (пустой URL отключает публикацию событий)
	RabbitMQURL    string `envconfig:"RABBITMQ_URL"`
	EventsExchange string `envconfig:"QUEST_EVENTS_EXCHANGE" default:"quest_events"`

	// JWT
	JWTSecret string
	TokenTTL  time.Duration `envconfig:"JWT_TOKEN_TTL" default:"24h"`

	CORSAllowedOrigins string `envconfig:"CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`

	// AI
	AIProvider  string        `envconfig:"AI_PROVIDER" default:"openai"`
	AIBaseURL   string        `envconfig:"AI_BASE_URL" default:"https://openrouter.ai/api/v1"`
	AIModel     string        `envconfig:"AI_MODEL" default:"gpt-3.5-turbo"`
	AITimeout   time.Duration `envconfig:"AI_TIMEOUT" default:"30s"`
	AICacheSize int           `envconfig:"AI_CACHE_SIZE" default:"256"`
	OllamaURL   string        `envconfig:"OLLAMA_URL" default:"http://localhost:11434"`
	// Секретное поле БЕЗ envconfig тега; пустой ключ включает офлайн-режим
	AIAPIKey string

	// Расчеты в токенах: erc20 | ledger
	SettlementMode       string        `envconfig:"SETTLEMENT_MODE" default:"ledger"`
	ChainRPCURL          string        `envconfig:"CHAIN_RPC_URL" default:"https://polygon-rpc.com"`
	ChainID              int64         `envconfig:"CHAIN_ID" default:"137"`
	TokenContract        string        `envconfig:"TOKEN_CONTRACT_ADDRESS"`
	TreasuryAddress      string        `envconfig:"TREASURY_ADDRESS"`
	SettlementTimeout    time.Duration `envconfig:"SETTLEMENT_TIMEOUT" default:"2m"`
	LedgerInitialBalance int64         `envconfig:"LEDGER_INITIAL_BALANCE" default:"1000"`
	// Секретное поле БЕЗ envconfig тега
	SignerKey string

	// Квест
	InteractionCost   int64         `envconfig:"QUEST_INTERACTION_COST" default:"100"`
	CatalogPath       string        `envconfig:"QUEST_CATALOG_PATH"`
	SessionIdleTTL    time.Duration `envconfig:"QUEST_SESSION_IDLE_TTL" default:"30m"`
	MaxSessions       int           `envconfig:"QUEST_MAX_SESSIONS" default:"1024"`
	ClearOnLogout     bool          `envconfig:"QUEST_CLEAR_ON_LOGOUT" default:"false"`
	HistoryTokenLimit int           `envconfig:"QUEST_HISTORY_TOKEN_LIMIT" default:"1500"`

	// Внешний сервис инвайт-кодов; пустое значение означает встроенный сервис
	ReferralServiceURL string `envconfig:"REFERRAL_SERVICE_URL"`
	AdminToken         string
}

// GetDSN возвращает строку подключения (DSN) для PostgreSQL
func (c *Config) GetDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode)
}

// GetAllowedOrigins splits the CORSAllowedOrigins string into a slice.
func (c *Config) GetAllowedOrigins() []string {
	if c.CORSAllowedOrigins == "" {
		return nil
	}
	return strings.Split(strings.ReplaceAll(c.CORSAllowedOrigins, " ", ""), ",")
}

// LoadConfig загружает конфигурацию из .env, переменных окружения и секретов.
func LoadConfig(envFilePath string) (*Config, error) {
	return load(envFilePath, true)
}

// LoadClientConfig то же для терминального клиента, которому JWT не нужен.
func LoadClientConfig(envFilePath string) (*Config, error) {
	return load(envFilePath, false)
}

func load(envFilePath string, requireJWT bool) (*Config, error) {
	if envFilePath != "" {
		if _, err := os.Stat(envFilePath); err == nil {
			if err := godotenv.Load(envFilePath); err != nil {
				log.Printf("Warning: Could not load %s file: %v", envFilePath, err)
			}
		} else if !os.IsNotExist(err) {
			log.Printf("Warning: Error checking %s file: %v", envFilePath, err)
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	cfg.DBPassword = ReadSecret("db_password", "DB_PASSWORD")
	cfg.RedisPassword = ReadSecret("redis_password", "REDIS_PASSWORD")
	cfg.AIAPIKey = ReadSecret("ai_api_key", "AI_API_KEY")
	cfg.SignerKey = ReadSecret("signer_private_key", "SIGNER_PRIVATE_KEY")
	cfg.AdminToken = ReadSecret("admin_token", "ADMIN_TOKEN")

	cfg.JWTSecret = ReadSecret("jwt_secret", "JWT_SECRET")
	if requireJWT && cfg.JWTSecret == "" {
		return nil, fmt.Errorf("jwt secret is not configured (/run/secrets/jwt_secret or JWT_SECRET)")
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.SessionStore {
	case "redis", "sqlite", "memory":
	default:
		return fmt.Errorf("unknown SESSION_STORE %q", c.SessionStore)
	}
	switch c.SettlementMode {
	case "ledger":
	case "erc20":
		if c.TokenContract == "" || c.TreasuryAddress == "" || c.SignerKey == "" {
			return fmt.Errorf("erc20 settlement requires TOKEN_CONTRACT_ADDRESS, TREASURY_ADDRESS and a signer key")
		}
	default:
		return fmt.Errorf("unknown SETTLEMENT_MODE %q", c.SettlementMode)
	}
	if c.InteractionCost <= 0 {
		return fmt.Errorf("QUEST_INTERACTION_COST must be positive, got %d", c.InteractionCost)
	}
	return nil
}

// secretsDir можно переопределить в тестах.
var secretsDir = "/run/secrets"

// ReadSecret читает Docker secret, при его отсутствии берет значение из переменной окружения.
func ReadSecret(secretName, envKey string) string {
	filePath := fmt.Sprintf("%s/%s", secretsDir, secretName)
	if secretBytes, err := os.ReadFile(filePath); err == nil {
		if secret := strings.TrimSpace(string(secretBytes)); secret != "" {
			return secret
		}
	}
	return strings.TrimSpace(os.Getenv(envKey))
}
