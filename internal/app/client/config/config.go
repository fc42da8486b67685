package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	defaultServerAddress = "localhost:8080"
	defaultLogLevel      = "info"
	defaultEnv           = "local"
	defaultConfigDir     = ".studysync"
	defaultCalendarName  = "StudySync"
)

type Config struct {
	Env              string        `mapstructure:"app_env"`
	ServerAddress    string        `mapstructure:"server_address"`
	LogLevel         string        `mapstructure:"log_level"`
	ConfigDir        string        `mapstructure:"config_dir"`
	TokenPath        string        `mapstructure:"token_path"`
	DataPath         string        `mapstructure:"data_path"`
	SyncInterval     int           `mapstructure:"sync_interval_seconds"`
	SyncOnChange     bool          `mapstructure:"sync_on_change"`
	EnableTLS        bool          `mapstructure:"enable_tls"`
	CACertPath       string        `mapstructure:"ca_cert_path"`
	IDMode           string        `mapstructure:"id_mode"`
	PushBatchSize    int           `mapstructure:"push_batch_size"`
	RequestTimeout   time.Duration `mapstructure:"request_timeout"`
	MaxRetries       int           `mapstructure:"max_retries"`
	StatusClearAfter time.Duration `mapstructure:"status_clear_after"`
	Calendar         Calendar      `mapstructure:"calendar"`
}

// Calendar - настройки моста с внешним календарем
type Calendar struct {
	CredentialsPath string        `mapstructure:"credentials_path"`
	TokenPath       string        `mapstructure:"token_path"`
	Name            string        `mapstructure:"name"`
	Mode            string        `mapstructure:"mode"`
	BatchSize       int           `mapstructure:"batch_size"`
	BatchPause      time.Duration `mapstructure:"batch_pause"`
	MaxAttempts     int           `mapstructure:"max_attempts"`
}

// MustLoad загружает конфигурацию клиента. configFile может быть пустым.
func MustLoad(configFile string) *Config {
	cfg, err := Load(configFile)
	if err != nil {
		panic(fmt.Sprintf("Ошибка конфигурации: %v", err))
	}
	return cfg
}

// Load читает .env, переменные окружения и (опционально) YAML-файл.
func Load(configFile string) (*Config, error) {
	// Определяем путь к .env файлу (относительно места запуска)
	envPath := ".env"
	if _, err := os.Stat(envPath); os.IsNotExist(err) {
		envPath = "../.env"
	}
	if _, err := os.Stat(envPath); err == nil {
		if err := godotenv.Load(envPath); err != nil {
			fmt.Printf("Ошибка загрузки .env файла: %v\n", err)
		}
	}

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("APP_ENV", defaultEnv)
	v.SetDefault("SERVER_ADDRESS", defaultServerAddress)
	v.SetDefault("LOG_LEVEL", defaultLogLevel)
	v.SetDefault("CONFIG_DIR", defaultConfigDir)
	v.SetDefault("SYNC_INTERVAL_SECONDS", 30)
	v.SetDefault("SYNC_ON_CHANGE", true)
	v.SetDefault("ENABLE_TLS", false)
	v.SetDefault("ID_MODE", "random")
	v.SetDefault("PUSH_BATCH_SIZE", 100)
	v.SetDefault("REQUEST_TIMEOUT", 30*time.Second)
	v.SetDefault("MAX_RETRIES", 3)
	v.SetDefault("STATUS_CLEAR_AFTER", 4*time.Second)
	v.SetDefault("CALENDAR_NAME", defaultCalendarName)
	v.SetDefault("CALENDAR_MODE", "two-way")
	v.SetDefault("CALENDAR_BATCH_SIZE", 5)
	v.SetDefault("CALENDAR_BATCH_PAUSE", 500*time.Millisecond)
	v.SetDefault("CALENDAR_MAX_ATTEMPTS", 5)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("ошибка чтения файла конфигурации %s: %w", configFile, err)
		}
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}

	configDir := v.GetString("CONFIG_DIR")
	if configDir == defaultConfigDir {
		configDir = filepath.Join(homeDir, configDir)
	}
	if err := os.MkdirAll(configDir, 0700); err != nil {
		fmt.Printf("Ошибка создания директории конфигурации: %v\n", err)
	}

	inDir := func(key, name string) string {
		if p := v.GetString(key); p != "" {
			return p
		}
		return filepath.Join(configDir, name)
	}

	config := &Config{
		Env:              v.GetString("APP_ENV"),
		ServerAddress:    v.GetString("SERVER_ADDRESS"),
		LogLevel:         v.GetString("LOG_LEVEL"),
		ConfigDir:        configDir,
		TokenPath:        inDir("TOKEN_PATH", "token"),
		DataPath:         inDir("DATA_PATH", "studysync.db"),
		SyncInterval:     v.GetInt("SYNC_INTERVAL_SECONDS"),
		SyncOnChange:     v.GetBool("SYNC_ON_CHANGE"),
		EnableTLS:        v.GetBool("ENABLE_TLS"),
		CACertPath:       v.GetString("CA_CERT_PATH"),
		IDMode:           v.GetString("ID_MODE"),
		PushBatchSize:    v.GetInt("PUSH_BATCH_SIZE"),
		RequestTimeout:   v.GetDuration("REQUEST_TIMEOUT"),
		MaxRetries:       v.GetInt("MAX_RETRIES"),
		StatusClearAfter: v.GetDuration("STATUS_CLEAR_AFTER"),
		Calendar: Calendar{
			CredentialsPath: inDir("CALENDAR_CREDENTIALS_PATH", "calendar_credentials.json"),
			TokenPath:       inDir("CALENDAR_TOKEN_PATH", "calendar_token.json"),
			Name:            v.GetString("CALENDAR_NAME"),
			Mode:            v.GetString("CALENDAR_MODE"),
			BatchSize:       v.GetInt("CALENDAR_BATCH_SIZE"),
			BatchPause:      v.GetDuration("CALENDAR_BATCH_PAUSE"),
			MaxAttempts:     v.GetInt("CALENDAR_MAX_ATTEMPTS"),
		},
	}

	if err := config.validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) validate() error {
	if c.ServerAddress == "" {
		return fmt.Errorf("server_address не может быть пустым")
	}
	if c.SyncInterval <= 0 {
		return fmt.Errorf("sync_interval_seconds должен быть положительным")
	}
	if c.PushBatchSize <= 0 {
		return fmt.Errorf("push_batch_size должен быть положительным")
	}
	switch c.IDMode {
	case "random", "legacy":
	default:
		return fmt.Errorf("неизвестный id_mode: %s", c.IDMode)
	}
	switch c.Calendar.Mode {
	case "two-way", "master":
	default:
		return fmt.Errorf("неизвестный режим календаря: %s", c.Calendar.Mode)
	}
	return nil
}

// IsProd проверяет, prod ли окружение
func (c *Config) IsProd() bool {
	return c.Env == "prod"
}

// IsDev проверяет, dev ли окружение
func (c *Config) IsDev() bool {
	return c.Env == "dev"
}

// IsLocal проверяет, local ли окружение
func (c *Config) IsLocal() bool {
	return c.Env == "local" || c.Env == ""
}
