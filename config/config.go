package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// ServerConfig holds all configuration for the auth server.
// Tags use mapstructure for Viper unmarshalling and env for environment variable binding.
type ServerConfig struct {
	HTTPPort    string `mapstructure:"HTTP_PORT"`
	MongoURI    string `mapstructure:"MONGO_URI"`
	MongoDBName string `mapstructure:"MONGO_DB_NAME"`
	LogLevel    string `mapstructure:"LOG_LEVEL"`
	LogPretty   bool   `mapstructure:"LOG_PRETTY"`

	OtelServiceName string `mapstructure:"OTEL_SERVICE_NAME"`

	// Authorization code store. When RedisAddr is set, codes live in Redis
	// (shared across replicas); otherwise an in-process store is used.
	RedisAddr      string `mapstructure:"REDIS_ADDR"`
	RedisKeyPrefix string `mapstructure:"REDIS_KEY_PREFIX"`

	// Token configuration. The secret is the process-wide HS256 signing key;
	// rotating it invalidates every outstanding token.
	JWTSecretKey      string `mapstructure:"JWT_SECRET_KEY"`
	TokenIssuer       string `mapstructure:"TOKEN_ISSUER"`
	AccessTokenTTLMin int    `mapstructure:"ACCESS_TOKEN_TTL_MIN"`
	AuthCodeTTLMin    int    `mapstructure:"AUTH_CODE_TTL_MIN"`
}

// LoadConfig reads configuration from file, environment variables, and defaults.
func LoadConfig() (*ServerConfig, error) {
	v := viper.New()

	// Set configuration file name and type
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	// Set search paths for the configuration file
	v.AddConfigPath("/etc/finauth/")
	v.AddConfigPath("$HOME/.finauth")
	v.AddConfigPath(".")

	// Read environment variables
	v.AutomaticEnv()
	// For nested env vars like PARENT.CHILD -> PARENT_CHILD
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	v.SetDefault("HTTP_PORT", "8080")
	v.SetDefault("MONGO_URI", "mongodb://localhost:27017/finauth_dev")
	v.SetDefault("MONGO_DB_NAME", "finauth_dev")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_PRETTY", true)
	v.SetDefault("OTEL_SERVICE_NAME", "finauth-server")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_KEY_PREFIX", "finauth")
	v.SetDefault("JWT_SECRET_KEY", "a_very_secret_jwt_key_change_me") // CHANGE IN PRODUCTION
	v.SetDefault("TOKEN_ISSUER", "finauth")
	v.SetDefault("ACCESS_TOKEN_TTL_MIN", 30)
	v.SetDefault("AUTH_CODE_TTL_MIN", 10)

	// Attempt to read the config file
	if err := v.ReadInConfig(); err != nil {
		// ConfigFileNotFoundError is acceptable, means we use defaults/env vars.
		// Other errors (e.g., permission issues, malformed config) should be returned.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	// Unmarshal the configuration into the ServerConfig struct
	var cfg ServerConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	return &cfg, nil
}
