package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"
)

// Config holds every setting the server reads from the environment
type Config struct {
	Port     string `envconfig:"PORT" default:"8080"`
	GinMode  string `envconfig:"GIN_MODE" default:""`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// StoreMode selects the persistence backend: "mongo" or "memory"
	StoreMode         string `envconfig:"STORE_MODE" default:"mongo"`
	SeedDemo          bool   `envconfig:"SEED_DEMO" default:"false"`
	MongoURI          string `envconfig:"MONGO_URI" default:"mongodb://localhost:27017"`
	MongoDB           string `envconfig:"MONGO_DB" default:"chronora"`
	MongoTransactions bool   `envconfig:"MONGO_TRANSACTIONS" default:"false"`

	// JWTSecret must be set unless StoreMode is memory
	JWTSecret   string        `envconfig:"JWT_SECRET"`
	JWTTTL      time.Duration `envconfig:"JWT_TTL" default:"24h"`
	CORSOrigins []string      `envconfig:"CORS_ORIGINS" default:"http://localhost:5173"`

	RazorpayKeyID     string `envconfig:"RAZORPAY_KEY_ID"`
	RazorpayKeySecret string `envconfig:"RAZORPAY_KEY_SECRET"`

	Currency              string  `envconfig:"CURRENCY" default:"INR"`
	CODLimit              float64 `envconfig:"COD_LIMIT" default:"1000"`
	DeliveryCharge        float64 `envconfig:"DELIVERY_CHARGE" default:"40"`
	FreeDeliveryThreshold float64 `envconfig:"FREE_DELIVERY_THRESHOLD" default:"500"`

	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"5s"`
}

// Load reads an optional .env file and then the process environment
func Load(logger *logrus.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		if os.IsNotExist(err) {
			logger.Debug(".env file not found, using environment variables or defaults")
		} else {
			logger.Warnf("Error loading .env file (but continuing): %v", err)
		}
	} else {
		logger.Info("Loaded configuration from .env file")
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(logger); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate(logger *logrus.Logger) error {
	if strings.TrimSpace(c.JWTSecret) != "" {
		return nil
	}
	if c.StoreMode != "memory" {
		return errors.New("JWT_SECRET is required")
	}
	// Tokens signed with a per-process secret die with the process
	c.JWTSecret = uuid.NewString()
	logger.Warn("JWT_SECRET not set, using a random secret for this memory-mode run")
	return nil
}

// GetEnv returns the value of key, or fallback when unset
func GetEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
