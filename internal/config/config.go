package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/evogene-server/internal/domain"
	"github.com/spf13/viper"
)

// Manager implements the ConfigManager interface using Viper
type Manager struct {
	v          *viper.Viper
	config     *domain.Config
	configFile string
}

// NewManager creates a new configuration manager. An empty configFile
// searches the default locations.
func NewManager(configFile string) (*Manager, error) {
	m := &Manager{configFile: configFile}
	if err := m.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return m, nil
}

// loadConfig loads configuration from various sources
func (m *Manager) loadConfig() error {
	v := viper.New()

	if m.configFile != "" {
		v.SetConfigFile(m.configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/evogene/")
	}

	v.SetEnvPrefix("EVOGENE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Variables used by existing deployments
	_ = v.BindEnv("evo.endpoint", "EVOGENE_EVO_ENDPOINT", "EVO2_END_POINT")
	_ = v.BindEnv("llm.api_key", "EVOGENE_LLM_API_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY")
	_ = v.BindEnv("database.url", "EVOGENE_DATABASE_URL", "DATABASE_URL")
	_ = v.BindEnv("auth.jwt_secret", "EVOGENE_AUTH_JWT_SECRET", "JWT_SECRET")
	_ = v.BindEnv("cache.redis_url", "EVOGENE_CACHE_REDIS_URL", "REDIS_URL")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; using defaults and environment variables
	}

	config := &domain.Config{}
	if err := v.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	m.v = v
	m.config = config
	return nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	// Server defaults. Write timeout must outlast the variant scoring call.
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "180s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.public_url", "")
	v.SetDefault("server.media_dir", "media")
	v.SetDefault("server.max_upload_size", 10<<20)
	v.SetDefault("server.allowed_origins", []string{"*"})

	// Database defaults
	v.SetDefault("database.url", "")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.database", "evogene")
	v.SetDefault("database.username", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 1)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.conn_max_idle_time", "30m")
	v.SetDefault("database.connect_timeout", "5s")
	v.SetDefault("database.migrations_path", "migrations")
	v.SetDefault("database.auto_migrate", true)

	// Storage defaults
	v.SetDefault("storage.backend", "postgres")
	v.SetDefault("storage.sqlite_path", "data/evogene.db")
	v.SetDefault("storage.memory_max_sessions", 10000)
	v.SetDefault("storage.task_result_ttl", "24h")

	// Language model defaults
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.model", "gemini-2.0-flash")
	v.SetDefault("llm.temperature", 0.1)
	v.SetDefault("llm.timeout", "60s")
	v.SetDefault("llm.rate_limit", 5)
	v.SetDefault("llm.breaker.max_requests", 3)
	v.SetDefault("llm.breaker.interval", "60s")
	v.SetDefault("llm.breaker.timeout", "30s")
	v.SetDefault("llm.breaker.min_requests", 5)
	v.SetDefault("llm.breaker.failure_ratio", 0.6)

	// Remote model defaults
	v.SetDefault("evo.endpoint", "")
	v.SetDefault("evo.timeout", "90s")
	v.SetDefault("imaging.endpoint", "")
	v.SetDefault("imaging.timeout", "60s")
	v.SetDefault("imaging.threshold", 0.5)
	v.SetDefault("diabetes.model_path", "models/diabetes_logreg.json")

	// Cache defaults
	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.redis_url", "redis://localhost:6379")
	v.SetDefault("cache.default_ttl", "24h")
	v.SetDefault("cache.max_retries", 3)
	v.SetDefault("cache.pool_size", 10)
	v.SetDefault("cache.pool_timeout", "4s")

	// Worker defaults
	v.SetDefault("worker.workers", 4)
	v.SetDefault("worker.queue_size", 64)
	v.SetDefault("worker.drain_timeout", "20s")
	v.SetDefault("worker.task_timeout", "5m")

	// Auth defaults
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.access_ttl", "24h")
	v.SetDefault("auth.refresh_ttl", "720h")
	v.SetDefault("auth.bcrypt_cost", 10)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.max_size", 100)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age", 28)
	v.SetDefault("logging.compress", true)
}

// GetConfig returns the complete configuration
func (m *Manager) GetConfig() *domain.Config {
	return m.config
}

// GetDatabaseConfig returns database configuration
func (m *Manager) GetDatabaseConfig() *domain.DatabaseConfig {
	return &m.config.Database
}

// GetServerConfig returns server configuration
func (m *Manager) GetServerConfig() *domain.ServerConfig {
	return &m.config.Server
}

// Reload reloads the configuration
func (m *Manager) Reload() error {
	return m.loadConfig()
}

// Validate validates the configuration
func (m *Manager) Validate() error {
	config := m.config

	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}
	if config.Server.MediaDir == "" {
		return fmt.Errorf("media directory is required")
	}

	switch config.Storage.Backend {
	case "postgres":
		if config.Database.URL == "" && config.Database.Host == "" {
			return fmt.Errorf("database url or host is required for postgres storage")
		}
	case "sqlite":
		if config.Storage.SQLitePath == "" {
			return fmt.Errorf("sqlite path is required for sqlite storage")
		}
	case "memory":
	default:
		return fmt.Errorf("invalid storage backend: %s", config.Storage.Backend)
	}

	if config.Evo.Timeout <= 0 {
		return fmt.Errorf("evo timeout must be positive")
	}
	if config.Imaging.Threshold < 0 || config.Imaging.Threshold > 1 {
		return fmt.Errorf("imaging threshold must be within [0, 1]: %v", config.Imaging.Threshold)
	}
	if config.LLM.Model == "" {
		return fmt.Errorf("llm model is required")
	}

	if config.Worker.Workers <= 0 {
		return fmt.Errorf("worker count must be positive: %d", config.Worker.Workers)
	}
	if config.Worker.QueueSize < 0 {
		return fmt.Errorf("worker queue size must not be negative: %d", config.Worker.QueueSize)
	}

	if config.Cache.Enabled && config.Cache.RedisURL == "" {
		return fmt.Errorf("Redis URL is required when cache is enabled")
	}

	if m.IsProduction() && config.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required in production")
	}

	validLogLevels := map[string]bool{
		"trace": true, "debug": true, "info": true, "warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(config.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", config.Logging.Level)
	}

	return nil
}

// GetDatabaseConnectionString returns a postgres URL suitable for both pgx
// and golang-migrate.
func (m *Manager) GetDatabaseConnectionString() string {
	db := m.config.Database
	if db.URL != "" {
		return db.URL
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(db.Username, db.Password),
		Host:     fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:     "/" + db.Database,
		RawQuery: "sslmode=" + db.SSLMode,
	}
	return u.String()
}

// GetRedisConnectionString returns the Redis connection string
func (m *Manager) GetRedisConnectionString() string {
	return m.config.Cache.RedisURL
}

// IsProduction returns true if running in production mode
func (m *Manager) IsProduction() bool {
	return strings.ToLower(m.config.Environment) == "production"
}

// IsDevelopment returns true if running in development mode
func (m *Manager) IsDevelopment() bool {
	env := strings.ToLower(m.config.Environment)
	return env == "development" || env == "dev" || env == ""
}
