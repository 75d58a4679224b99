// Package config loads the notehub web client configuration from environment
// variables and CLI flags, validates it, and fills in defaults.
//
// CLI flags select development modes (--fake-api, --watch-templates).
// Environment variables carry the NoteHub token and tuning knobs.
package config

import (
	"flag"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kuitang/notehub-client/internal/ratelimit"
)

const (
	// DefaultBaseURL is the public NoteHub API.
	DefaultBaseURL = "https://notehub-public.goit.study/api"

	// TokenEnv is the primary token variable; LegacyTokenEnv is still honoured.
	TokenEnv       = "NOTEHUB_TOKEN"
	LegacyTokenEnv = "NEXT_PUBLIC_NOTEHUB_TOKEN"
)

// Config holds all application configuration.
type Config struct {
	// Server settings
	ListenAddr     string
	TemplatesDir   string
	WatchTemplates bool

	// NoteHub API
	NoteHubBaseURL string
	NoteHubToken   string
	RequestTimeout time.Duration
	FakeAPI        bool // Serve an in-memory NoteHub instead of the real one (--fake-api)

	// List view
	PerPage        int
	SearchDebounce time.Duration

	// Query cache
	CacheSizeMB int
	CacheTTL    time.Duration

	// Browser sessions
	SessionIdleTimeout time.Duration

	// Note creation throttling
	RateLimitConfig ratelimit.Config
}

// Flags are the CLI overrides collected by ParseFlags.
type Flags struct {
	Addr           string
	TemplatesDir   string
	FakeAPI        bool
	WatchTemplates bool
}

// ValidationError represents a configuration validation error with multiple issues.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("configuration validation failed:\n  - %s", strings.Join(e.Errors, "\n  - "))
}

// ParseFlags registers the server flags on fs and parses args.
func ParseFlags(fs *flag.FlagSet, args []string) (Flags, error) {
	var f Flags
	fs.StringVar(&f.Addr, "addr", "", "Listen address (default :8080, overrides LISTEN_ADDR env var)")
	fs.StringVar(&f.TemplatesDir, "templates", "", "Templates directory (overrides TEMPLATES_DIR env var)")
	fs.BoolVar(&f.FakeAPI, "fake-api", false, "Serve an in-memory NoteHub API instead of the real one")
	fs.BoolVar(&f.WatchTemplates, "watch-templates", false, "Reload templates when files change")
	if err := fs.Parse(args); err != nil {
		return Flags{}, err
	}
	return f, nil
}

// LoadConfig loads configuration from environment variables and CLI flag values.
func LoadConfig(f Flags) (*Config, error) {
	cfg := &Config{
		FakeAPI:        f.FakeAPI,
		WatchTemplates: f.WatchTemplates,
	}

	// Server settings
	cfg.ListenAddr = getEnvOrDefault("LISTEN_ADDR", ":8080")
	if f.Addr != "" {
		cfg.ListenAddr = f.Addr
	}
	// Empty means the templates embedded in the binary.
	cfg.TemplatesDir = getEnvOrDefault("TEMPLATES_DIR", "")
	if f.TemplatesDir != "" {
		cfg.TemplatesDir = f.TemplatesDir
	}

	// NoteHub API
	cfg.NoteHubBaseURL = strings.TrimRight(getEnvOrDefault("NOTEHUB_BASE_URL", DefaultBaseURL), "/")
	cfg.NoteHubToken = getEnvOrDefault(TokenEnv, strings.TrimSpace(os.Getenv(LegacyTokenEnv)))
	cfg.RequestTimeout = parseDurationOrDefault("REQUEST_TIMEOUT", 15*time.Second)

	// List view
	cfg.PerPage = parseIntOrDefault("NOTES_PER_PAGE", 12)
	cfg.SearchDebounce = parseDurationOrDefault("SEARCH_DEBOUNCE", 500*time.Millisecond)

	// Query cache
	cfg.CacheSizeMB = parseIntOrDefault("CACHE_SIZE_MB", 16)
	cfg.CacheTTL = parseDurationOrDefault("CACHE_TTL", 5*time.Minute)

	cfg.SessionIdleTimeout = parseDurationOrDefault("SESSION_IDLE_TIMEOUT", 30*time.Minute)

	cfg.RateLimitConfig = ratelimit.Config{
		RPS:             parseFloat64OrDefault("CREATE_RATE_LIMIT_RPS", ratelimit.DefaultConfig.RPS),
		Burst:           parseIntOrDefault("CREATE_RATE_LIMIT_BURST", ratelimit.DefaultConfig.Burst),
		IdleTimeout:     cfg.SessionIdleTimeout,
		CleanupInterval: parseDurationOrDefault("RATE_LIMIT_CLEANUP_INTERVAL", ratelimit.DefaultConfig.CleanupInterval),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that all required configuration is present and valid.
func (c *Config) Validate() error {
	var errs []string

	// The token is only optional when the in-memory API is serving.
	if !c.FakeAPI && c.NoteHubToken == "" {
		errs = append(errs, fmt.Sprintf("%s is required (set env var, %s, or use --fake-api)", TokenEnv, LegacyTokenEnv))
	}
	if !c.FakeAPI {
		if u, err := url.Parse(c.NoteHubBaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, "NOTEHUB_BASE_URL must be an absolute URL")
		}
	}
	if c.WatchTemplates && c.TemplatesDir == "" {
		errs = append(errs, "--watch-templates needs a templates directory (--templates or TEMPLATES_DIR)")
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, "REQUEST_TIMEOUT must be positive")
	}
	if c.PerPage < 1 || c.PerPage > 100 {
		errs = append(errs, "NOTES_PER_PAGE must be between 1 and 100")
	}
	if c.SearchDebounce < 0 {
		errs = append(errs, "SEARCH_DEBOUNCE must not be negative")
	}
	if c.CacheSizeMB < 1 {
		errs = append(errs, "CACHE_SIZE_MB must be at least 1")
	}
	if c.CacheTTL <= 0 {
		errs = append(errs, "CACHE_TTL must be positive")
	}
	if c.SessionIdleTimeout <= 0 {
		errs = append(errs, "SESSION_IDLE_TIMEOUT must be positive")
	}
	if c.RateLimitConfig.RPS <= 0 {
		errs = append(errs, "CREATE_RATE_LIMIT_RPS must be positive")
	}
	if c.RateLimitConfig.Burst <= 0 {
		errs = append(errs, "CREATE_RATE_LIMIT_BURST must be positive")
	}

	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}
	return nil
}

// PrintStartupSummary prints a human-readable summary of the configuration to stderr.
// The token itself is never printed.
func (c *Config) PrintStartupSummary() {
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "notehub web client starting...")
	if c.FakeAPI {
		fmt.Fprintln(os.Stderr, "  NoteHub:   In-memory fake (--fake-api)")
	} else {
		fmt.Fprintf(os.Stderr, "  NoteHub:   %s (token: %d chars)\n", c.NoteHubBaseURL, len(c.NoteHubToken))
	}
	fmt.Fprintf(os.Stderr, "  List:      %d per page, search debounce %s\n", c.PerPage, c.SearchDebounce)
	fmt.Fprintf(os.Stderr, "  Cache:     %d MB, ttl %s\n", c.CacheSizeMB, c.CacheTTL)
	switch {
	case c.TemplatesDir == "":
		fmt.Fprintln(os.Stderr, "  Templates: embedded")
	case c.WatchTemplates:
		fmt.Fprintf(os.Stderr, "  Templates: %s (watching)\n", c.TemplatesDir)
	default:
		fmt.Fprintf(os.Stderr, "  Templates: %s\n", c.TemplatesDir)
	}
	fmt.Fprintf(os.Stderr, "  Listen:    %s\n", c.ListenAddr)
	fmt.Fprintln(os.Stderr, "")
}

// Helper functions for parsing environment variables

func getEnvOrDefault(key, defaultValue string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	return value
}

func parseIntOrDefault(key string, defaultValue int) int {
	parsed, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return defaultValue
	}
	return parsed
}

func parseFloat64OrDefault(key string, defaultValue float64) float64 {
	parsed, err := strconv.ParseFloat(strings.TrimSpace(os.Getenv(key)), 64)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func parseDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	parsed, err := time.ParseDuration(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return defaultValue
	}
	return parsed
}
