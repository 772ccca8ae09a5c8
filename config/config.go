package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the process configuration, read from the environment after
// godotenv has loaded any .env file.
type Config struct {
	Env            string
	Port           string
	Domain         string
	Store          string
	MongoURI       string
	MongoDatabase  string
	RedisAddress   string
	RedisPassword  string
	JWTSecret      string
	TokenTTL       time.Duration
	IssueLimitKey  string
	IssueLimit     int
	RewardsFile    string
	CORSOrigins    []string
	LogLevel       string
	LeaderboardTTL time.Duration
	GovernmentCode string
}

func (c Config) Production() bool { return c.Env == "production" }

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Load reads Config from the environment and validates it.
func Load() (Config, error) {
	cfg := Config{
		Env:            getenv("GO_ENV", "development"),
		Port:           getenv("PORT", "8080"),
		Domain:         os.Getenv("DOMAIN"),
		Store:          getenv("STORE", "mongo"),
		MongoURI:       os.Getenv("MONGODB_URI"),
		MongoDatabase:  getenv("MONGODB_DATABASE", "civicsync"),
		RedisAddress:   os.Getenv("REDIS_ADDRESS"),
		RedisPassword:  os.Getenv("REDIS_PASSWORD"),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		TokenTTL:       72 * time.Hour,
		IssueLimitKey:  getenv("REDIS_QUEUE_FOR_ISSUE_LIMIT", "civicsync:issue-limit"),
		IssueLimit:     10,
		RewardsFile:    os.Getenv("REWARDS_CONFIG"),
		LogLevel:       getenv("LOG_LEVEL", "info"),
		LeaderboardTTL: 30 * time.Second,
		GovernmentCode: os.Getenv("GOVERNMENT_SIGNUP_CODE"),
	}

	if v := os.Getenv("ISSUE_DAILY_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("ISSUE_DAILY_LIMIT: %w", err)
		}
		cfg.IssueLimit = n
	}
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		for _, origin := range strings.Split(v, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				cfg.CORSOrigins = append(cfg.CORSOrigins, origin)
			}
		}
	}
	if len(cfg.CORSOrigins) == 0 {
		cfg.CORSOrigins = []string{"http://localhost:3000"}
	}

	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("please define the JWT_SECRET environment variable")
	}
	switch c.Store {
	case "mongo":
		if c.MongoURI == "" {
			return fmt.Errorf("please define the MONGODB_URI environment variable")
		}
	case "memory":
	default:
		return fmt.Errorf("STORE must be mongo or memory, got %q", c.Store)
	}
	if c.IssueLimit < 1 {
		return fmt.Errorf("ISSUE_DAILY_LIMIT must be positive, got %d", c.IssueLimit)
	}
	return nil
}
