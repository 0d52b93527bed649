package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var config = viper.New()

type Config struct {
	AppEnv     string `mapstructure:"APP_ENV"`
	AppName    string `mapstructure:"APP_NAME"`
	AppVersion string `mapstructure:"APP_VERSION"`
	TLS        struct {
		Enable   bool   `mapstructure:"ENABLE"`
		CertPath string `mapstructure:"CERT_PATH"`
		KeyPath  string `mapstructure:"KEY_PATH"`
	} `mapstructure:"TLS"`
	Server struct {
		Addr         string        `mapstructure:"ADDR"`
		ReadTimeout  time.Duration `mapstructure:"READ_TIMEOUT"`
		WriteTimeout time.Duration `mapstructure:"WRITE_TIMEOUT"`
		IdleTimeout  time.Duration `mapstructure:"IDLE_TIMEOUT"`
	} `mapstructure:"HTTP_SERVER"`
	Database struct {
		Type     string `mapstructure:"TYPE"`
		Host     string `mapstructure:"HOST"`
		Port     string `mapstructure:"PORT"`
		DBNAME   string `mapstructure:"DBNAME"`
		User     string `mapstructure:"USER"`
		Password string `mapstructure:"PASSWORD"`
		SSLMode  string `mapstructure:"SSLMODE"`
		Timezone string `mapstructure:"TIMEZONE"`
		Path     string `mapstructure:"PATH"`
	} `mapstructure:"DATABASE"`
	Pricing struct {
		DefaultPrice int64 `mapstructure:"DEFAULT_PRICE"`
	} `mapstructure:"PRICING"`
	Digest struct {
		GeminiAPIKey string        `mapstructure:"GEMINI_API_KEY"`
		Model        string        `mapstructure:"MODEL"`
		Endpoint     string        `mapstructure:"ENDPOINT"`
		Timeout      time.Duration `mapstructure:"TIMEOUT"`
	} `mapstructure:"DIGEST"`
}

var Module = fx.Module("config", fx.Provide(LoadConfig))

func LoadConfig() *Config {

	config.SetConfigName("config")
	config.SetConfigType("yaml")
	config.AddConfigPath(".")

	config.SetDefault("APP_ENV", "development")
	config.SetDefault("APP_NAME", "makersclub-insights")
	config.SetDefault("HTTP_SERVER.ADDR", ":8080")
	config.SetDefault("HTTP_SERVER.READ_TIMEOUT", 15*time.Second)
	config.SetDefault("HTTP_SERVER.WRITE_TIMEOUT", 15*time.Second)
	config.SetDefault("HTTP_SERVER.IDLE_TIMEOUT", 60*time.Second)
	config.SetDefault("DATABASE.TYPE", "sqlite")
	config.SetDefault("DATABASE.PATH", "makers.db")
	config.SetDefault("PRICING.DEFAULT_PRICE", 3990)
	config.SetDefault("DIGEST.MODEL", "gemini-1.5-flash")
	config.SetDefault("DIGEST.ENDPOINT", "https://generativelanguage.googleapis.com")
	config.SetDefault("DIGEST.TIMEOUT", 10*time.Second)

	config.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	config.AutomaticEnv()

	if err := config.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			zap.L().Error("failed to read config file", zap.Error(err))
			os.Exit(1)
		}
	}

	var cfg Config
	if err := config.Unmarshal(&cfg); err != nil {
		zap.L().Error("failed to unmarshal config", zap.Error(err))
		os.Exit(1)
	}

	return &cfg
}
