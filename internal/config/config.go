package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Scraper   ScraperConfig
	Browser   BrowserConfig
	HTTP      HTTPConfig
	API       APIConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Cache     CacheConfig
	Logging   LoggingConfig
	Selectors SelectorConfig
}

type ServerConfig struct {
	Port            string
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
}

type ScraperConfig struct {
	Strategy        string
	MaxPages        int
	RateLimitMin    time.Duration
	RateLimitMax    time.Duration
	MaxRetries      int
	Workers         int
	ScrollPause     time.Duration
	MaxScrollRounds int
	DebugDir        string
	UserAgents      []string
}

type BrowserConfig struct {
	Engine         string
	Headless       bool
	Timeout        time.Duration
	ViewportWidth  int
	ViewportHeight int
	AcceptLanguage string
	TimezoneID     string
	Locale         string
}

type HTTPConfig struct {
	Timeout      time.Duration
	RetryCount   int
	RequestsPerS float64
	Burst        int
}

// APIConfig describes the retailer's internal search API. Parameter names
// change without notice, so all of them are configurable.
type APIConfig struct {
	SearchEndpoint  string
	ProductEndpoint string
	Key             string
	StoreID         string
	PageSize        int
	ExtraParams     map[string]string
}

type DatabaseConfig struct {
	Enabled     bool
	Host        string
	Port        int
	User        string
	Password    string
	DBName      string
	SSLMode     string
	MaxConns    int32
	MinConns    int32
	MaxConnLife time.Duration
	MaxConnIdle time.Duration
}

type RedisConfig struct {
	Enabled      bool
	Addr         string
	Password     string
	DB           int
	Stream       string
	// StreamMaxLen approximately caps the event stream, 0 disables trimming.
	StreamMaxLen int64
}

type CacheConfig struct {
	Size int
	TTL  time.Duration
}

// SelectorConfig overrides the listing parser's CSS cascades. Each value is
// a ";" separated list; an empty list keeps the built-in cascade.
type SelectorConfig struct {
	Cards       []string
	Sponsored   []string
	ProductLink []string
	Title       []string
	Image       []string
	Rating      []string
	Reviews     []string
	Price       []string
	NextPage    []string
	ImageHosts  []string
}

type LoggingConfig struct {
	Level  string
	Format string
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present; real environment variables win.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnvOrDefault("SERVER_PORT", "8080"),
			Host:            getEnvOrDefault("SERVER_HOST", "0.0.0.0"),
			ReadTimeout:     getDurationOrDefault("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getDurationOrDefault("SERVER_WRITE_TIMEOUT", 5*time.Minute),
			RequestTimeout:  getDurationOrDefault("SERVER_REQUEST_TIMEOUT", 5*time.Minute),
			ShutdownTimeout: getDurationOrDefault("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			AllowedOrigins:  getStringSliceOrDefault("SERVER_ALLOWED_ORIGINS", []string{"http://localhost:*", "https://localhost:*"}),
		},
		Scraper: ScraperConfig{
			Strategy:        getEnvOrDefault("SCRAPER_STRATEGY", "cascade"),
			MaxPages:        getIntOrDefault("SCRAPER_MAX_PAGES", 5),
			RateLimitMin:    getDurationOrDefault("SCRAPER_RATE_LIMIT_MIN", 2*time.Second),
			RateLimitMax:    getDurationOrDefault("SCRAPER_RATE_LIMIT_MAX", 4*time.Second),
			MaxRetries:      getIntOrDefault("SCRAPER_MAX_RETRIES", 3),
			Workers:         getIntOrDefault("SCRAPER_WORKERS", 2),
			ScrollPause:     getDurationOrDefault("SCRAPER_SCROLL_PAUSE", 2*time.Second),
			MaxScrollRounds: getIntOrDefault("SCRAPER_MAX_SCROLL_ROUNDS", 15),
			DebugDir:        getEnvOrDefault("SCRAPER_DEBUG_DIR", os.TempDir()),
			UserAgents:      getStringSliceOrDefault("SCRAPER_USER_AGENTS", defaultUserAgents()),
		},
		Browser: BrowserConfig{
			Engine:         getEnvOrDefault("BROWSER_ENGINE", "playwright"),
			Headless:       getBoolOrDefault("BROWSER_HEADLESS", true),
			Timeout:        getDurationOrDefault("BROWSER_TIMEOUT", 30*time.Second),
			ViewportWidth:  getIntOrDefault("BROWSER_VIEWPORT_WIDTH", 1920),
			ViewportHeight: getIntOrDefault("BROWSER_VIEWPORT_HEIGHT", 1080),
			AcceptLanguage: getEnvOrDefault("BROWSER_ACCEPT_LANGUAGE", "en-US,en;q=0.9"),
			TimezoneID:     getEnvOrDefault("BROWSER_TIMEZONE", "America/Chicago"),
			Locale:         getEnvOrDefault("BROWSER_LOCALE", "en-US"),
		},
		HTTP: HTTPConfig{
			Timeout:      getDurationOrDefault("HTTP_TIMEOUT", 30*time.Second),
			RetryCount:   getIntOrDefault("HTTP_RETRY_COUNT", 2),
			RequestsPerS: getFloatOrDefault("HTTP_REQUESTS_PER_SECOND", 1),
			Burst:        getIntOrDefault("HTTP_BURST", 2),
		},
		API: APIConfig{
			SearchEndpoint:  getEnvOrDefault("API_SEARCH_ENDPOINT", "https://redsky.target.com/redsky_aggregations/v1/web/plp_search_v2"),
			ProductEndpoint: getEnvOrDefault("API_PRODUCT_ENDPOINT", "https://redsky.target.com/redsky_aggregations/v1/web/pdp_client_v1"),
			Key:             getEnvOrDefault("API_KEY", ""),
			StoreID:         getEnvOrDefault("API_STORE_ID", "3991"),
			PageSize:        getIntOrDefault("API_PAGE_SIZE", 24),
			ExtraParams:     getMapOrDefault("API_EXTRA_PARAMS", map[string]string{"channel": "WEB"}),
		},
		Database: DatabaseConfig{
			Enabled:     getBoolOrDefault("DB_ENABLED", false),
			Host:        getEnvOrDefault("DB_HOST", "localhost"),
			Port:        getIntOrDefault("DB_PORT", 5432),
			User:        getEnvOrDefault("DB_USER", "postgres"),
			Password:    getEnvOrDefault("DB_PASSWORD", ""),
			DBName:      getEnvOrDefault("DB_NAME", "target_scraper"),
			SSLMode:     getEnvOrDefault("DB_SSL_MODE", "disable"),
			MaxConns:    int32(getIntOrDefault("DB_MAX_CONNS", 10)),
			MinConns:    int32(getIntOrDefault("DB_MIN_CONNS", 2)),
			MaxConnLife: getDurationOrDefault("DB_MAX_CONN_LIFE", time.Hour),
			MaxConnIdle: getDurationOrDefault("DB_MAX_CONN_IDLE", 30*time.Minute),
		},
		Redis: RedisConfig{
			Enabled:      getBoolOrDefault("REDIS_ENABLED", false),
			Addr:         getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
			Password:     getEnvOrDefault("REDIS_PASSWORD", ""),
			DB:           getIntOrDefault("REDIS_DB", 0),
			Stream:       getEnvOrDefault("REDIS_STREAM", "stream:target_scraper"),
			StreamMaxLen: int64(getIntOrDefault("REDIS_STREAM_MAXLEN", 10000)),
		},
		Cache: CacheConfig{
			Size: getIntOrDefault("CACHE_SIZE", 128),
			TTL:  getDurationOrDefault("CACHE_TTL", 15*time.Minute),
		},
		Selectors: SelectorConfig{
			Cards:       getSelectorsOrDefault("SELECTORS_CARDS"),
			Sponsored:   getSelectorsOrDefault("SELECTORS_SPONSORED"),
			ProductLink: getSelectorsOrDefault("SELECTORS_PRODUCT_LINK"),
			Title:       getSelectorsOrDefault("SELECTORS_TITLE"),
			Image:       getSelectorsOrDefault("SELECTORS_IMAGE"),
			Rating:      getSelectorsOrDefault("SELECTORS_RATING"),
			Reviews:     getSelectorsOrDefault("SELECTORS_REVIEWS"),
			Price:       getSelectorsOrDefault("SELECTORS_PRICE"),
			NextPage:    getSelectorsOrDefault("SELECTORS_NEXT_PAGE"),
			ImageHosts:  getSelectorsOrDefault("SELECTORS_IMAGE_HOSTS"),
		},
		Logging: LoggingConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "json"),
		},
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Scraper.MaxPages < 1 || c.Scraper.MaxPages > 20 {
		return fmt.Errorf("SCRAPER_MAX_PAGES must be between 1 and 20")
	}

	if c.Scraper.Workers < 1 {
		return fmt.Errorf("SCRAPER_WORKERS must be at least 1")
	}

	if c.Scraper.RateLimitMin > c.Scraper.RateLimitMax {
		return fmt.Errorf("SCRAPER_RATE_LIMIT_MIN cannot be greater than SCRAPER_RATE_LIMIT_MAX")
	}

	switch c.Browser.Engine {
	case "playwright", "chromedp":
	default:
		return fmt.Errorf("BROWSER_ENGINE must be playwright or chromedp, got %q", c.Browser.Engine)
	}

	if c.HTTP.RequestsPerS <= 0 {
		return fmt.Errorf("HTTP_REQUESTS_PER_SECOND must be positive")
	}

	if c.API.PageSize < 1 {
		return fmt.Errorf("API_PAGE_SIZE must be at least 1")
	}

	if c.Cache.Size < 1 {
		return fmt.Errorf("CACHE_SIZE must be at least 1")
	}

	if c.Redis.Enabled && !c.Database.Enabled {
		return fmt.Errorf("REDIS_ENABLED requires DB_ENABLED, events are relayed from the outbox table")
	}

	return nil
}

// DSN returns the pgx connection string for the database section.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode)
}

func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
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

// getSelectorsOrDefault splits on ";" since CSS selector groups use commas.
func getSelectorsOrDefault(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(value, ";") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// getMapOrDefault parses "k1=v1,k2=v2".
func getMapOrDefault(key string, defaultValue map[string]string) map[string]string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	out := make(map[string]string)
	for _, pair := range strings.Split(value, ",") {
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		if k = strings.TrimSpace(k); k != "" {
			out[k] = strings.TrimSpace(v)
		}
	}
	return out
}

func defaultUserAgents() []string {
	return []string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	}
}
