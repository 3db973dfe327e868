package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server      ServerConfig
	Browser     BrowserConfig
	Extraction  ExtractionConfig
	Resolver    ResolverConfig
	Regions     RegionsConfig
	Diagnostics DiagnosticsConfig
	Redis       RedisConfig
	Database    DatabaseConfig
	Logging     LoggingConfig
}

type ServerConfig struct {
	Port              string
	Host              string
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	ShutdownTimeout   time.Duration
	RequestsPerSecond float64
	Workers           int
	QueueSize         int
	LaunchDelayMin    time.Duration
	LaunchDelayMax    time.Duration
	AllowedOrigins    []string
}

type BrowserConfig struct {
	Headless      bool
	ProxyServer   string
	ActionTimeout time.Duration
	Screenshots   bool
}

type ExtractionConfig struct {
	MaxAttempts            int
	Backoff                time.Duration
	AttemptTimeout         time.Duration
	NavigationTimeout      time.Duration
	ReadyTimeout           time.Duration
	NegotiationStepTimeout time.Duration
	ListingCap             int
	HeuristicMaxLength     int
	DefaultDevice          string
}

type ResolverConfig struct {
	Timeout          time.Duration
	CacheSize        int
	ShortLinkDomains []string
	UserAgent        string
}

type RegionsConfig struct {
	TableFile   string
	DefaultCode string
}

type DiagnosticsConfig struct {
	Dir           string
	Retention     time.Duration
	PruneSchedule string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Stream   string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int32
}

type LoggingConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:              getEnvOrDefault("SERVER_PORT", "8085"),
			Host:              getEnvOrDefault("SERVER_HOST", "0.0.0.0"),
			ReadTimeout:       getDurationOrDefault("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:      getDurationOrDefault("SERVER_WRITE_TIMEOUT", 5*time.Minute),
			ShutdownTimeout:   getDurationOrDefault("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			RequestsPerSecond: getFloatOrDefault("SERVER_REQUESTS_PER_SECOND", 2),
			Workers:           getIntOrDefault("SERVER_WORKERS", 2),
			QueueSize:         getIntOrDefault("SERVER_QUEUE_SIZE", 100),
			LaunchDelayMin:    getDurationOrDefault("SERVER_LAUNCH_DELAY_MIN", 1*time.Second),
			LaunchDelayMax:    getDurationOrDefault("SERVER_LAUNCH_DELAY_MAX", 3*time.Second),
			AllowedOrigins:    getStringSliceOrDefault("SERVER_ALLOWED_ORIGINS", []string{"http://localhost:*", "https://localhost:*"}),
		},
		Browser: BrowserConfig{
			Headless:      getBoolOrDefault("BROWSER_HEADLESS", true),
			ProxyServer:   getEnvOrDefault("BROWSER_PROXY", ""),
			ActionTimeout: getDurationOrDefault("BROWSER_ACTION_TIMEOUT", 10*time.Second),
			Screenshots:   getBoolOrDefault("BROWSER_SCREENSHOTS", true),
		},
		Extraction: ExtractionConfig{
			MaxAttempts:            getIntOrDefault("EXTRACT_MAX_ATTEMPTS", 3),
			Backoff:                getDurationOrDefault("EXTRACT_BACKOFF", 5*time.Second),
			AttemptTimeout:         getDurationOrDefault("EXTRACT_ATTEMPT_TIMEOUT", 2*time.Minute),
			NavigationTimeout:      getDurationOrDefault("EXTRACT_NAVIGATION_TIMEOUT", 60*time.Second),
			ReadyTimeout:           getDurationOrDefault("EXTRACT_READY_TIMEOUT", 15*time.Second),
			NegotiationStepTimeout: getDurationOrDefault("EXTRACT_NEGOTIATION_STEP_TIMEOUT", 5*time.Second),
			ListingCap:             getIntOrDefault("EXTRACT_LISTING_CAP", 4),
			HeuristicMaxLength:     getIntOrDefault("EXTRACT_HEURISTIC_MAX_LENGTH", 20),
			DefaultDevice:          getEnvOrDefault("EXTRACT_DEFAULT_DEVICE", ""),
		},
		Resolver: ResolverConfig{
			Timeout:          getDurationOrDefault("RESOLVER_TIMEOUT", 15*time.Second),
			CacheSize:        getIntOrDefault("RESOLVER_CACHE_SIZE", 256),
			ShortLinkDomains: getStringSliceOrDefault("RESOLVER_SHORT_LINK_DOMAINS", DefaultShortLinkDomains()),
			UserAgent:        getEnvOrDefault("RESOLVER_USER_AGENT", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"),
		},
		Regions: RegionsConfig{
			TableFile:   getEnvOrDefault("REGION_TABLE_FILE", ""),
			DefaultCode: getEnvOrDefault("REGION_DEFAULT", "US"),
		},
		Diagnostics: DiagnosticsConfig{
			Dir:           getEnvOrDefault("SNAPSHOT_DIR", "snapshots"),
			Retention:     getDurationOrDefault("SNAPSHOT_RETENTION", 72*time.Hour),
			PruneSchedule: getEnvOrDefault("SNAPSHOT_PRUNE_SCHEDULE", "@every 1h"),
		},
		Redis: RedisConfig{
			Addr:     getEnvOrDefault("REDIS_ADDR", ""),
			Password: getEnvOrDefault("REDIS_PASSWORD", ""),
			DB:       getIntOrDefault("REDIS_DB", 0),
			Stream:   getEnvOrDefault("REDIS_STREAM", "stream:product_records"),
		},
		Database: DatabaseConfig{
			Host:     getEnvOrDefault("DB_HOST", ""),
			Port:     getIntOrDefault("DB_PORT", 5432),
			User:     getEnvOrDefault("DB_USER", "postgres"),
			Password: getEnvOrDefault("DB_PASSWORD", ""),
			DBName:   getEnvOrDefault("DB_NAME", "product_extractor"),
			SSLMode:  getEnvOrDefault("DB_SSL_MODE", "disable"),
			MaxConns: int32(getIntOrDefault("DB_MAX_CONNS", 5)),
		},
		Logging: LoggingConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "json"),
		},
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Extraction.MaxAttempts < 1 {
		return fmt.Errorf("EXTRACT_MAX_ATTEMPTS must be at least 1")
	}

	if c.Extraction.ListingCap < 1 {
		return fmt.Errorf("EXTRACT_LISTING_CAP must be at least 1")
	}

	if c.Extraction.Backoff < 0 {
		return fmt.Errorf("EXTRACT_BACKOFF cannot be negative")
	}

	if c.Extraction.AttemptTimeout <= 0 {
		return fmt.Errorf("EXTRACT_ATTEMPT_TIMEOUT must be positive")
	}

	switch c.Extraction.DefaultDevice {
	case "", "desktop", "mobile":
	default:
		return fmt.Errorf("EXTRACT_DEFAULT_DEVICE must be desktop or mobile, got %q", c.Extraction.DefaultDevice)
	}

	if c.Server.Workers < 1 {
		return fmt.Errorf("SERVER_WORKERS must be at least 1")
	}

	if c.Server.LaunchDelayMin > c.Server.LaunchDelayMax {
		return fmt.Errorf("SERVER_LAUNCH_DELAY_MIN cannot be greater than SERVER_LAUNCH_DELAY_MAX")
	}

	if c.Resolver.CacheSize < 0 {
		return fmt.Errorf("RESOLVER_CACHE_SIZE cannot be negative")
	}

	return nil
}

// DatabaseEnabled reports whether a Postgres sink was configured.
func (c *Config) DatabaseEnabled() bool {
	return c.Database.Host != ""
}

func (c *Config) RedisEnabled() bool {
	return c.Redis.Addr != ""
}

func DefaultShortLinkDomains() []string {
	return []string{"amzn.to", "amzn.eu", "amzn.asia", "a.co", "ty.gl"}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getStringSliceOrDefault(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	return defaultValue
}
