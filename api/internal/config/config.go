package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type Config struct {
	Env string `yaml:"env" env:"ENV" env-default:"local"`

	HTTP       HTTP       `yaml:"http"`
	LLM        LLM        `yaml:"llm"`
	RateLimit  RateLimit  `yaml:"rate_limit"`
	Validation Validation `yaml:"validation"`

	DatabaseURL    string        `yaml:"database_url" env:"DATABASE_URL"`
	AuditRetention time.Duration `yaml:"audit_retention" env:"AUDIT_RETENTION" env-default:"720h"`

	TelegramBotToken string      `yaml:"telegram_bot_token" env:"TELEGRAM_BOT_TOKEN"`
	WebhookURL       string      `yaml:"webhook_url" env:"WEBHOOK_URL"`
	Bot              BotDefaults `yaml:"bot"`

	MaxFiles int `yaml:"max_files" env:"MAX_FILES" env-default:"10"`
}

type HTTP struct {
	Address         string        `yaml:"address" env:"HTTP_ADDRESS" env-default:"0.0.0.0:8000"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"HTTP_READ_TIMEOUT" env-default:"30s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"HTTP_WRITE_TIMEOUT" env-default:"200s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" env:"HTTP_IDLE_TIMEOUT" env-default:"120s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"HTTP_SHUTDOWN_TIMEOUT" env-default:"5s"`
	GenerateTimeout time.Duration `yaml:"generate_timeout" env:"GENERATE_TIMEOUT" env-default:"180s"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes" env:"MAX_BODY_BYTES" env-default:"41943040"`
	CORSOrigins     []string      `yaml:"cors_origins" env:"CORS_ORIGINS" env-separator:"," env-default:"*"`
	// PapersToken enables the audit read API behind a bearer token.
	PapersToken     string        `yaml:"papers_token" env:"PAPERS_API_TOKEN"`
}

type LLM struct {
	Default       string `yaml:"default" env:"LLM_DEFAULT" env-default:"gemini"`
	GeminiAPIKey  string `yaml:"gemini_api_key" env:"GEMINI_API_KEY"`
	GeminiModel   string `yaml:"gemini_model" env:"GEMINI_MODEL" env-default:"gemini-2.5-flash"`
	OpenAIAPIKey  string `yaml:"openai_api_key" env:"OPENAI_API_KEY"`
	OpenAIModel   string `yaml:"openai_model" env:"OPENAI_MODEL" env-default:"gpt-4.1-mini"`
	OpenAIBaseURL string `yaml:"openai_base_url" env:"OPENAI_BASE_URL" env-default:"https://api.openai.com/v1"`
}

// RateLimit selects and tunes the admission limiter. Mode is one of
// disabled, memory or redis.
type RateLimit struct {
	Mode  string  `yaml:"mode" env:"RATE_LIMIT_MODE" env-default:"memory"`
	RPS   float64 `yaml:"rps" env:"RATE_LIMIT_RPS" env-default:"0.1"`
	Burst int     `yaml:"burst" env:"RATE_LIMIT_BURST" env-default:"3"`

	// fixed window, redis mode
	Limit  int64         `yaml:"limit" env:"RATE_LIMIT_LIMIT" env-default:"5"`
	Window time.Duration `yaml:"window" env:"RATE_LIMIT_WINDOW" env-default:"1m"`

	RedisAddr     string `yaml:"redis_addr" env:"REDIS_ADDR"`
	RedisPassword string `yaml:"redis_password" env:"REDIS_PASSWORD"`
	RedisDB       int    `yaml:"redis_db" env:"REDIS_DB" env-default:"0"`

	// ClientHeader carries the caller's network origin (set by the edge proxy).
	ClientHeader string `yaml:"client_header" env:"RATE_LIMIT_CLIENT_HEADER" env-default:"CF-Connecting-IP"`
}

// BotDefaults is the paper config a chat starts with before /set.
type BotDefaults struct {
	Grade      string `yaml:"grade" env:"BOT_GRADE" env-default:"5"`
	Subject    string `yaml:"subject" env:"BOT_SUBJECT" env-default:"General Science"`
	Difficulty string `yaml:"difficulty" env:"BOT_DIFFICULTY" env-default:"MEDIUM"`
	Language   string `yaml:"language" env:"BOT_LANGUAGE" env-default:"English"`
	MCQ        int    `yaml:"mcq" env:"BOT_MCQ" env-default:"5"`
	TrueFalse  int    `yaml:"true_false" env:"BOT_TF" env-default:"3"`
	Short      int    `yaml:"short" env:"BOT_SHORT" env-default:"2"`
	Long       int    `yaml:"long" env:"BOT_LONG" env-default:"1"`
}

type Validation struct {
	Semantic bool `yaml:"semantic" env:"VALIDATE_SEMANTIC" env-default:"false"`
}

// Load reads .env (if present), then CONFIG_PATH (if set), then the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if path := strings.TrimSpace(os.Getenv("CONFIG_PATH")); path != "" {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read env: %w", err)
	}
	// platform PORT wins over HTTP_ADDRESS
	if p := strings.TrimSpace(os.Getenv("PORT")); p != "" {
		cfg.HTTP.Address = "0.0.0.0:" + p
	}
	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("cannot load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}
	return cfg
}

func (c *Config) Validate() error {
	if c.LLM.GeminiAPIKey == "" && c.LLM.OpenAIAPIKey == "" {
		return errors.New("missing required env GEMINI_API_KEY or OPENAI_API_KEY")
	}
	switch strings.ToLower(c.LLM.Default) {
	case "gemini", "":
		if c.LLM.GeminiAPIKey == "" {
			return errors.New("LLM_DEFAULT=gemini requires GEMINI_API_KEY")
		}
	case "gpt", "openai":
		if c.LLM.OpenAIAPIKey == "" {
			return errors.New("LLM_DEFAULT=gpt requires OPENAI_API_KEY")
		}
	default:
		return fmt.Errorf("unknown LLM_DEFAULT %q", c.LLM.Default)
	}
	if c.MaxFiles < 1 {
		return errors.New("MAX_FILES must be positive")
	}
	return nil
}
