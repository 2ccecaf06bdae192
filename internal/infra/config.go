package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv string
	Port   string

	DownloadDir   string
	ExtractorPath string

	FileRetention time.Duration
	JobRetention  time.Duration

	MetadataTimeout time.Duration
	DownloadTimeout time.Duration
	MaxRedirectHops int

	// ProxyURL applies to every platform; PlatformProxies and PlatformCookies
	// are keyed by platform tag and win over the global value.
	ProxyURL        string
	PlatformProxies map[string]string
	PlatformCookies map[string]string

	MergeBeforeStream bool

	RedisAddr string
	CacheTTL  time.Duration

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int

	CORSAllowedOrigins []string
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:          getEnv("APP_ENV", "development"),
		Port:            getEnv("PORT", "8080"),
		DownloadDir:     getEnv("DOWNLOAD_DIR", "./downloads"),
		ExtractorPath:   getEnv("EXTRACTOR_PATH", "yt-dlp"),
		FileRetention:   time.Minute * time.Duration(getEnvInt("FILE_RETENTION_MINUTES", 60)),
		JobRetention:    time.Minute * time.Duration(getEnvInt("JOB_RETENTION_MINUTES", 240)),
		MetadataTimeout: time.Second * time.Duration(getEnvInt("METADATA_TIMEOUT_SECONDS", 30)),
		DownloadTimeout: time.Minute * time.Duration(getEnvInt("DOWNLOAD_TIMEOUT_MINUTES", 30)),
		MaxRedirectHops: getEnvInt("MAX_REDIRECT_HOPS", 5),
		ProxyURL:        os.Getenv("PROXY_URL"),
		PlatformProxies: envByPlatform("PROXY_URL_"),
		PlatformCookies: envByPlatform("COOKIES_FILE_"),

		MergeBeforeStream: getEnvBool("MERGE_BEFORE_STREAM", false),

		RedisAddr: os.Getenv("REDIS_ADDR"),
		CacheTTL:  time.Second * time.Duration(getEnvInt("CACHE_TTL_SECONDS", 300)),

		HTTPReadTimeout: time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		// Streaming responses run for as long as the download does, so the
		// write timeout defaults to unlimited.
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 0)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:  getEnvInt("RATE_LIMIT_PER_MINUTE", 30),

		CORSAllowedOrigins: splitCSV(os.Getenv("CORS_ALLOWED_ORIGINS")),
	}

	if cfg.FileRetention <= 0 {
		return nil, fmt.Errorf("FILE_RETENTION_MINUTES must be positive")
	}
	// Job records must outlive their artifacts so late pollers still see the
	// terminal state.
	if cfg.JobRetention < cfg.FileRetention {
		cfg.JobRetention = cfg.FileRetention
	}
	if cfg.RateLimitPerMin <= 0 {
		cfg.RateLimitPerMin = 30
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

// envByPlatform collects every variable with the given prefix into a map
// keyed by lowercased platform tag, e.g. PROXY_URL_YOUTUBE -> youtube.
func envByPlatform(prefix string) map[string]string {
	out := make(map[string]string)
	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || v == "" || !strings.HasPrefix(k, prefix) {
			continue
		}
		tag := strings.ToLower(strings.TrimPrefix(k, prefix))
		if tag == "" {
			continue
		}
		out[tag] = v
	}
	return out
}

func splitCSV(v string) []string {
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
