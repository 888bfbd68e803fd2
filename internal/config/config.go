package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/slidecoffee/brew-service/pkg/logger"
)

// Config holds application configuration
type Config struct {
	Server     ServerConfig
	MongoDB    MongoDBConfig
	Redis      RedisConfig
	Keycloak   KeycloakConfig
	RateLimit  RateLimitConfig
	AI         AIConfig
	Search     SearchConfig
	Generation GenerationConfig
}

type ServerConfig struct {
	Port         string
	Host         string
	Environment  string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type MongoDBConfig struct {
	URI      string
	Database string
	Timeout  time.Duration
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// KeycloakConfig selects the bearer token verifier. JWTSecret enables HS256
// verification when no OIDC issuer is reachable.
type KeycloakConfig struct {
	URL                 string
	Realm               string
	ClientID            string
	ClientSecret        string
	JWTSecret           string
	AllowInsecureTokens bool
}

// RateLimitConfig covers the global limiter and the tighter limit applied to
// the streaming generation routes.
type RateLimitConfig struct {
	Enabled          bool
	UseRedis         bool
	RPS              float64
	Burst            int
	WindowSeconds    int
	GenerationMax    int
	GenerationWindow time.Duration
}

type AIConfig struct {
	APIKey           string
	BaseURL          string
	Model            string
	Temperature      float64
	OutlineMaxTokens int
	SlideMaxTokens   int
	OutlineTimeout   time.Duration
	SlideTimeout     time.Duration
}

type SearchConfig struct {
	Endpoint   string
	UserAgent  string
	MaxResults int
	Timeout    time.Duration
}

type GenerationConfig struct {
	MaxSlides       int
	DefaultEstimate int
	MaxTopicLength  int
	MaxPlanBytes    int
}

// LoadConfig loads configuration from environment variables and .env file
func LoadConfig() (*Config, error) {
	_ = godotenv.Load(".env")

	viper.AutomaticEnv()

	viper.SetDefault("SERVER_PORT", "5001")
	viper.SetDefault("SERVER_HOST", "0.0.0.0")
	viper.SetDefault("SERVER_ENVIRONMENT", "development")
	viper.SetDefault("MONGODB_DATABASE", "slidecoffee")
	viper.SetDefault("MONGODB_TIMEOUT", 10)
	viper.SetDefault("REDIS_PORT", "6379")
	viper.SetDefault("REDIS_DB", 0)

	viper.SetDefault("RATE_LIMIT_ENABLED", true)
	viper.SetDefault("RATE_LIMIT_USE_REDIS", true)
	viper.SetDefault("RATE_LIMIT_RPS", 20)
	viper.SetDefault("RATE_LIMIT_BURST", 40)
	viper.SetDefault("RATE_LIMIT_WINDOW_SECONDS", 1)
	viper.SetDefault("GENERATION_RATE_LIMIT_MAX", 10)
	viper.SetDefault("GENERATION_RATE_LIMIT_WINDOW_MINUTES", 15)

	viper.SetDefault("AI_BASE_URL", "https://api.openai.com/v1")
	viper.SetDefault("AI_MODEL", "gpt-4o-mini")
	viper.SetDefault("AI_TEMPERATURE", 0.7)
	viper.SetDefault("AI_OUTLINE_MAX_TOKENS", 2048)
	viper.SetDefault("AI_SLIDE_MAX_TOKENS", 1024)
	viper.SetDefault("AI_OUTLINE_TIMEOUT_SECONDS", 60)
	viper.SetDefault("AI_SLIDE_TIMEOUT_SECONDS", 45)

	viper.SetDefault("SEARCH_API_ENDPOINT", "https://html.duckduckgo.com/html/")
	viper.SetDefault("SEARCH_USER_AGENT", "SlideCoffee/1.0 (AI Research Bot)")
	viper.SetDefault("SEARCH_MAX_RESULTS", 5)
	viper.SetDefault("SEARCH_TIMEOUT_SECONDS", 10)

	viper.SetDefault("GENERATION_MAX_SLIDES", 50)
	viper.SetDefault("GENERATION_DEFAULT_ESTIMATE", 10)
	viper.SetDefault("GENERATION_MAX_TOPIC_LENGTH", 500)
	viper.SetDefault("GENERATION_MAX_PLAN_BYTES", 10000)

	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		apiKey = os.Getenv("AI_API_KEY")
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:         viper.GetString("SERVER_PORT"),
			Host:         viper.GetString("SERVER_HOST"),
			Environment:  viper.GetString("SERVER_ENVIRONMENT"),
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 0, // streaming responses outlive any fixed write deadline
		},
		MongoDB: MongoDBConfig{
			URI:      viper.GetString("MONGODB_URI"),
			Database: viper.GetString("MONGODB_DATABASE"),
			Timeout:  time.Duration(viper.GetInt("MONGODB_TIMEOUT")) * time.Second,
		},
		Redis: RedisConfig{
			Host:     viper.GetString("REDIS_HOST"),
			Port:     viper.GetString("REDIS_PORT"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       viper.GetInt("REDIS_DB"),
		},
		Keycloak: KeycloakConfig{
			URL:                 viper.GetString("KEYCLOAK_URL"),
			Realm:               viper.GetString("KEYCLOAK_REALM"),
			ClientID:            viper.GetString("KEYCLOAK_CLIENT_ID"),
			ClientSecret:        viper.GetString("KEYCLOAK_CLIENT_SECRET"),
			JWTSecret:           os.Getenv("AUTH_JWT_SECRET"),
			AllowInsecureTokens: strings.EqualFold(strings.TrimSpace(os.Getenv("ALLOW_INSECURE_TOKEN")), "true"),
		},
		RateLimit: RateLimitConfig{
			Enabled:          viper.GetBool("RATE_LIMIT_ENABLED"),
			UseRedis:         viper.GetBool("RATE_LIMIT_USE_REDIS"),
			RPS:              viper.GetFloat64("RATE_LIMIT_RPS"),
			Burst:            viper.GetInt("RATE_LIMIT_BURST"),
			WindowSeconds:    viper.GetInt("RATE_LIMIT_WINDOW_SECONDS"),
			GenerationMax:    viper.GetInt("GENERATION_RATE_LIMIT_MAX"),
			GenerationWindow: time.Duration(viper.GetInt("GENERATION_RATE_LIMIT_WINDOW_MINUTES")) * time.Minute,
		},
		AI: AIConfig{
			APIKey:           apiKey,
			BaseURL:          viper.GetString("AI_BASE_URL"),
			Model:            viper.GetString("AI_MODEL"),
			Temperature:      viper.GetFloat64("AI_TEMPERATURE"),
			OutlineMaxTokens: viper.GetInt("AI_OUTLINE_MAX_TOKENS"),
			SlideMaxTokens:   viper.GetInt("AI_SLIDE_MAX_TOKENS"),
			OutlineTimeout:   time.Duration(viper.GetInt("AI_OUTLINE_TIMEOUT_SECONDS")) * time.Second,
			SlideTimeout:     time.Duration(viper.GetInt("AI_SLIDE_TIMEOUT_SECONDS")) * time.Second,
		},
		Search: SearchConfig{
			Endpoint:   viper.GetString("SEARCH_API_ENDPOINT"),
			UserAgent:  viper.GetString("SEARCH_USER_AGENT"),
			MaxResults: viper.GetInt("SEARCH_MAX_RESULTS"),
			Timeout:    time.Duration(viper.GetInt("SEARCH_TIMEOUT_SECONDS")) * time.Second,
		},
		Generation: GenerationConfig{
			MaxSlides:       viper.GetInt("GENERATION_MAX_SLIDES"),
			DefaultEstimate: viper.GetInt("GENERATION_DEFAULT_ESTIMATE"),
			MaxTopicLength:  viper.GetInt("GENERATION_MAX_TOPIC_LENGTH"),
			MaxPlanBytes:    viper.GetInt("GENERATION_MAX_PLAN_BYTES"),
		},
	}

	if cfg.AI.APIKey == "" {
		logger.Warnf("OPENAI_API_KEY is not set; generation routes will report the AI service as unconfigured")
	}
	if cfg.MongoDB.URI == "" {
		logger.Warnf("MONGODB_URI is not set; drafts and presentations are kept in memory")
	}

	return cfg, nil
}
