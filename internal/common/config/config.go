// internal/common/config/config.go
package config

// Config is the main application configuration struct.
type Config struct {
	App      AppConfig               `mapstructure:"app"`
	Server   ServerConfig            `mapstructure:"server"`
	Chat     ChatConfig              `mapstructure:"chat"`
	Health   HealthConfig            `mapstructure:"health"`
	Redis    RedisConfig             `mapstructure:"redis"`
	Entities map[string]EntityConfig `mapstructure:"entities"`
	Logging  LoggingConfig           `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Address         string `mapstructure:"address"`
	ReadTimeout     int    `mapstructure:"read_timeout"`     // milliseconds
	WriteTimeout    int    `mapstructure:"write_timeout"`    // milliseconds
	ShutdownTimeout int    `mapstructure:"shutdown_timeout"` // milliseconds
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// ChatConfig holds the interpreter thresholds and session behavior.
type ChatConfig struct {
	ConfidenceThreshold float64 `mapstructure:"confidence_threshold"` // disambiguation trigger
	TieDelta            float64 `mapstructure:"tie_delta"`            // top-two closeness trigger
	PlausibilityFloor   float64 `mapstructure:"plausibility_floor"`   // below this: not a command at all
	MatchFloor          float64 `mapstructure:"match_floor"`          // disambiguation reply fuzzy match floor
	SessionTimeout      int     `mapstructure:"session_timeout"`      // milliseconds
	MaxHistoryLength    int     `mapstructure:"max_history_length"`
	SweepInterval       int     `mapstructure:"sweep_interval"` // milliseconds
	EscalationThreshold int     `mapstructure:"escalation_threshold"`
	AdapterCacheTTL     int     `mapstructure:"adapter_cache_ttl"` // milliseconds
}

// HealthConfig holds the tunable thresholds for derived health status.
type HealthConfig struct {
	DegradedErrorRate    float64 `mapstructure:"degraded_error_rate"`
	UnhealthyErrorRate   float64 `mapstructure:"unhealthy_error_rate"`
	DegradedConfidence   float64 `mapstructure:"degraded_confidence"`
	UnhealthyConfidence  float64 `mapstructure:"unhealthy_confidence"`
	DegradedResponseMs   float64 `mapstructure:"degraded_response_ms"`
	UnhealthyResponseMs  float64 `mapstructure:"unhealthy_response_ms"`
}

// EntityConfig holds the per entity type integration policy. Loaded once at
// startup; read-only thereafter.
type EntityConfig struct {
	Endpoint         string `mapstructure:"endpoint"` // remote adapter base URL, optional
	TimeoutMs        int    `mapstructure:"timeout_ms"`
	FallbackStrategy string `mapstructure:"fallback_strategy"` // retry | degrade | fail
	MaxRetries       int    `mapstructure:"max_retries"`
	RetryBackoffMs   int    `mapstructure:"retry_backoff_ms"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
