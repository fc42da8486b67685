package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	envPath  = "../../.env"
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"
)

type Config struct {
	Env     string
	DB      DB
	Server  Server
	Logger  Logger
	Session Session
}

type DB struct {
	DatabaseURI string `env:"DATABASE_URI"`
	Migrations  string `env:"MIGRATIONS_PATH"`
}

type Server struct {
	RunAddress      string        `env:"RUN_ADDRESS"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT"`
}

type Logger struct {
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

type Session struct {
	TTL time.Duration `env:"SESSION_TTL"`
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	return cfg
}

func Load() (*Config, error) {
	if _, err := os.Stat(envPath); err == nil {
		if err := godotenv.Load(envPath); err != nil {
			log.Printf("failed to load .env: %v", err)
		}
	}

	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("app_env", EnvLocal)
	v.SetDefault("run_address", ":8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("migrations_path", "migrations")
	v.SetDefault("shutdown_timeout", 10*time.Second)
	v.SetDefault("session_ttl", 30*24*time.Hour)

	config := Config{
		Env: v.GetString("app_env"),
		DB: DB{
			DatabaseURI: v.GetString("database_uri"),
			Migrations:  v.GetString("migrations_path"),
		},
		Server: Server{
			RunAddress:      v.GetString("run_address"),
			ShutdownTimeout: v.GetDuration("shutdown_timeout"),
		},
		Logger:  Logger{LogLevel: v.GetString("log_level")},
		Session: Session{TTL: v.GetDuration("session_ttl")},
	}

	if config.DB.DatabaseURI == "" {
		return nil, fmt.Errorf("DATABASE_URI is required")
	}
	return &config, nil
}
