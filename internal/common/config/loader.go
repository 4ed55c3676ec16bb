// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

func Load() (*Config, error) {
	loadEnvFile()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("../../configs")
	viper.AddConfigPath(".")

	// Enable ENV override like CHAT_CONFIDENCE_THRESHOLD
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	envConfigFile := fmt.Sprintf("config.%s", env)
	viper.SetConfigName(envConfigFile)
	_ = viper.MergeInConfig() // ignore error if not found

	expandEnvVars(viper.GetViper())

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// LoadFromFile loads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	viper.SetConfigFile(path)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	expandEnvVars(viper.GetViper())

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		val := v.Get(key)

		if strVal, ok := val.(string); ok {
			if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
				expanded := os.ExpandEnv(strVal)
				if expanded != strVal && expanded != "" {
					v.Set(key, expanded)
				}
			}
		}
	}
}

// Default returns a configuration with every default applied and no entity
// integrations. Useful for tests and embedded use.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// applyDefaults sets default values for optional configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "chat-service"
	}

	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8080"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 10000
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 15000
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10000
	}

	// Interpreter thresholds
	if cfg.Chat.ConfidenceThreshold == 0 {
		cfg.Chat.ConfidenceThreshold = 0.75
	}
	if cfg.Chat.TieDelta == 0 {
		cfg.Chat.TieDelta = 0.1
	}
	if cfg.Chat.PlausibilityFloor == 0 {
		cfg.Chat.PlausibilityFloor = 0.4
	}
	if cfg.Chat.MatchFloor == 0 {
		cfg.Chat.MatchFloor = 0.5
	}
	if cfg.Chat.SessionTimeout == 0 {
		cfg.Chat.SessionTimeout = 1800000 // 30 minutes
	}
	if cfg.Chat.MaxHistoryLength == 0 {
		cfg.Chat.MaxHistoryLength = 20
	}
	if cfg.Chat.SweepInterval == 0 {
		cfg.Chat.SweepInterval = 60000
	}
	if cfg.Chat.EscalationThreshold == 0 {
		cfg.Chat.EscalationThreshold = 5
	}
	if cfg.Chat.AdapterCacheTTL == 0 {
		cfg.Chat.AdapterCacheTTL = 1800000
	}

	// Health thresholds
	if cfg.Health.DegradedErrorRate == 0 {
		cfg.Health.DegradedErrorRate = 0.1
	}
	if cfg.Health.UnhealthyErrorRate == 0 {
		cfg.Health.UnhealthyErrorRate = 0.2
	}
	if cfg.Health.DegradedConfidence == 0 {
		cfg.Health.DegradedConfidence = 0.7
	}
	if cfg.Health.UnhealthyConfidence == 0 {
		cfg.Health.UnhealthyConfidence = 0.5
	}
	if cfg.Health.DegradedResponseMs == 0 {
		cfg.Health.DegradedResponseMs = 2000
	}
	if cfg.Health.UnhealthyResponseMs == 0 {
		cfg.Health.UnhealthyResponseMs = 3000
	}

	// Per-entity integration defaults
	for key, entity := range cfg.Entities {
		if entity.TimeoutMs == 0 {
			entity.TimeoutMs = 5000
		}
		if entity.FallbackStrategy == "" {
			entity.FallbackStrategy = "fail"
		}
		if entity.MaxRetries == 0 && entity.FallbackStrategy == "retry" {
			entity.MaxRetries = 2
		}
		if entity.RetryBackoffMs == 0 {
			entity.RetryBackoffMs = 100
		}
		cfg.Entities[key] = entity
	}

	// Logging defaults
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}
}

// validateConfig validates critical configuration fields.
func validateConfig(cfg *Config) error {
	if cfg.Chat.ConfidenceThreshold <= 0 || cfg.Chat.ConfidenceThreshold > 1 {
		return fmt.Errorf("chat.confidence_threshold must be in (0, 1]")
	}
	if cfg.Chat.PlausibilityFloor >= cfg.Chat.ConfidenceThreshold {
		return fmt.Errorf("chat.plausibility_floor must be below chat.confidence_threshold")
	}

	for name, entity := range cfg.Entities {
		switch entity.FallbackStrategy {
		case "retry", "degrade", "fail":
		default:
			return fmt.Errorf("entities.%s.fallback_strategy must be retry, degrade or fail", name)
		}
		if entity.FallbackStrategy == "degrade" && cfg.Redis.Address == "" {
			return fmt.Errorf("entities.%s uses degrade fallback but redis.address is not set", name)
		}
	}

	return nil
}

// GetDuration converts milliseconds from config to time.Duration.
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}
