package domain

import (
	"time"
)

// Config represents the main application configuration
type Config struct {
	Environment string         `mapstructure:"environment"`
	Server      ServerConfig   `mapstructure:"server"`
	Database    DatabaseConfig `mapstructure:"database"`
	Storage     StorageConfig  `mapstructure:"storage"`
	LLM         LLMConfig      `mapstructure:"llm"`
	Evo         EvoConfig      `mapstructure:"evo"`
	Imaging     ImagingConfig  `mapstructure:"imaging"`
	Diabetes    DiabetesConfig `mapstructure:"diabetes"`
	Cache       CacheConfig    `mapstructure:"cache"`
	Worker      WorkerConfig   `mapstructure:"worker"`
	Auth        AuthConfig     `mapstructure:"auth"`
	Logging     LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	PublicURL       string        `mapstructure:"public_url"`
	MediaDir        string        `mapstructure:"media_dir"`
	MaxUploadSize   int64         `mapstructure:"max_upload_size"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
}

// DatabaseConfig represents database connection configuration.
// URL takes precedence over the discrete fields when set.
type DatabaseConfig struct {
	URL             string        `mapstructure:"url"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Database        string        `mapstructure:"database"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// StorageConfig selects the session and task result backends
type StorageConfig struct {
	Backend           string        `mapstructure:"backend"` // "postgres", "sqlite", "memory"
	SQLitePath        string        `mapstructure:"sqlite_path"`
	MemoryMaxSessions int           `mapstructure:"memory_max_sessions"`
	TaskResultTTL     time.Duration `mapstructure:"task_result_ttl"`
}

// LLMConfig represents the language model configuration
type LLMConfig struct {
	APIKey      string               `mapstructure:"api_key"`
	Model       string               `mapstructure:"model"`
	Temperature float32              `mapstructure:"temperature"`
	Timeout     time.Duration        `mapstructure:"timeout"`
	RateLimit   int                  `mapstructure:"rate_limit"` // requests per second
	Breaker     CircuitBreakerConfig `mapstructure:"breaker"`
}

// CircuitBreakerConfig represents circuit breaker settings
type CircuitBreakerConfig struct {
	MaxRequests  uint32        `mapstructure:"max_requests"`
	Interval     time.Duration `mapstructure:"interval"`
	Timeout      time.Duration `mapstructure:"timeout"`
	MinRequests  uint32        `mapstructure:"min_requests"`
	FailureRatio float64       `mapstructure:"failure_ratio"`
}

// EvoConfig represents the remote variant scoring service configuration
type EvoConfig struct {
	Endpoint string        `mapstructure:"endpoint"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// ImagingConfig represents the image classification service configuration
type ImagingConfig struct {
	Endpoint  string        `mapstructure:"endpoint"`
	Timeout   time.Duration `mapstructure:"timeout"`
	Threshold float64       `mapstructure:"threshold"`
}

// DiabetesConfig points to the precomputed tabular model artifact
type DiabetesConfig struct {
	ModelPath string `mapstructure:"model_path"`
}

// CacheConfig represents cache configuration
type CacheConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	RedisURL    string        `mapstructure:"redis_url"`
	DefaultTTL  time.Duration `mapstructure:"default_ttl"`
	MaxRetries  int           `mapstructure:"max_retries"`
	PoolSize    int           `mapstructure:"pool_size"`
	PoolTimeout time.Duration `mapstructure:"pool_timeout"`
}

// WorkerConfig sizes the background task pool
type WorkerConfig struct {
	Workers      int           `mapstructure:"workers"`
	QueueSize    int           `mapstructure:"queue_size"`
	DrainTimeout time.Duration `mapstructure:"drain_timeout"`
	TaskTimeout  time.Duration `mapstructure:"task_timeout"`
}

// AuthConfig represents token issuance configuration
type AuthConfig struct {
	JWTSecret  string        `mapstructure:"jwt_secret"`
	AccessTTL  time.Duration `mapstructure:"access_ttl"`
	RefreshTTL time.Duration `mapstructure:"refresh_ttl"`
	BcryptCost int           `mapstructure:"bcrypt_cost"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"` // "stdout", "stderr", "file"
	Filename   string `mapstructure:"filename"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}
