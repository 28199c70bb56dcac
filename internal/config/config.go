/**
 * @description
 * This package handles the configuration management for the service. It uses the
 * Viper library to read configuration from environment variables, providing a
 * centralized and straightforward way to manage application settings.
 *
 * The regulatory thresholds (window cap, single-transfer cap, period length)
 * live here as named configuration, not as literals in the engine, so a
 * jurisdiction with different figures is a deployment change. Invalid threshold
 * values fail the boot: a compliance control never silently degrades to a
 * permissive default.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 * - github.com/shopspring/decimal: Exact parsing of the cap values.
 */

package config

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/remitta/compliance-service/internal/engine"
)

// Config holds all the configuration variables for the compliance-service.
// These values are loaded from environment variables.
type Config struct {
	ServerPort           string `mapstructure:"SERVER_PORT"`
	DatabaseURL          string `mapstructure:"DATABASE_URL"`
	RedisURL             string `mapstructure:"REDIS_URL"`
	RedisRateLimitPrefix string `mapstructure:"REDIS_RATE_LIMIT_PREFIX"`
	RabbitMQURL          string `mapstructure:"RABBITMQ_URL"`
	TenantJWTSecret      string `mapstructure:"TENANT_JWT_SECRET"`

	WindowCapEUR         string `mapstructure:"WINDOW_CAP_EUR"`
	SingleTransferCapEUR string `mapstructure:"SINGLE_TRANSFER_CAP_EUR"`
	WindowPeriodDays     int    `mapstructure:"WINDOW_PERIOD_DAYS"`

	EligibilityRateLimitPerMinute int `mapstructure:"ELIGIBILITY_RATE_LIMIT_PER_MINUTE"`
}

// LoadConfig reads configuration from environment variables from the given path.
// It uses Viper to automatically bind environment variables to the Config struct.
func LoadConfig(path string) (config Config, err error) {
	// Tell viper the path to look for the optional .env file.
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	// Enable automatic binding of environment variables.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("REDIS_RATE_LIMIT_PREFIX", "compliance:rate_limit")
	viper.SetDefault("WINDOW_CAP_EUR", "999")
	viper.SetDefault("SINGLE_TRANSFER_CAP_EUR", "999")
	viper.SetDefault("WINDOW_PERIOD_DAYS", engine.DefaultPeriodDays)
	viper.SetDefault("ELIGIBILITY_RATE_LIMIT_PER_MINUTE", 120)

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("REDIS_URL")
	_ = viper.BindEnv("REDIS_RATE_LIMIT_PREFIX")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("TENANT_JWT_SECRET")
	_ = viper.BindEnv("WINDOW_CAP_EUR")
	_ = viper.BindEnv("SINGLE_TRANSFER_CAP_EUR")
	_ = viper.BindEnv("WINDOW_PERIOD_DAYS")
	_ = viper.BindEnv("ELIGIBILITY_RATE_LIMIT_PER_MINUTE")

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
	}

	// Unmarshal the configuration into the Config struct.
	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.RedisRateLimitPrefix = strings.TrimSpace(config.RedisRateLimitPrefix)
	if config.RedisRateLimitPrefix == "" {
		config.RedisRateLimitPrefix = "compliance:rate_limit"
	}
	if config.EligibilityRateLimitPerMinute < 0 {
		config.EligibilityRateLimitPerMinute = 0
	}

	return
}

// Limits parses and validates the regulatory thresholds. An unparsable or
// non-positive cap is a hard error, never coerced.
func (c Config) Limits() (engine.Limits, error) {
	windowCap, err := decimal.NewFromString(strings.TrimSpace(c.WindowCapEUR))
	if err != nil {
		return engine.Limits{}, fmt.Errorf("invalid WINDOW_CAP_EUR %q: %w", c.WindowCapEUR, err)
	}
	singleCap, err := decimal.NewFromString(strings.TrimSpace(c.SingleTransferCapEUR))
	if err != nil {
		return engine.Limits{}, fmt.Errorf("invalid SINGLE_TRANSFER_CAP_EUR %q: %w", c.SingleTransferCapEUR, err)
	}

	limits := engine.Limits{
		WindowCap:         windowCap,
		SingleTransferCap: singleCap,
		PeriodDays:        c.WindowPeriodDays,
	}
	if err := limits.Validate(); err != nil {
		return engine.Limits{}, err
	}
	return limits, nil
}
