// Package config loads the brainocr configuration from environment
// variables (optionally seeded from a .env file) and validates it up
// front: every problem is reported at startup rather than surfacing
// mid-pipeline.
package config

import (
	"fmt"
	"log"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Index backend selectors.
const (
	IndexSQLite      = "sqlite"
	IndexAzureSearch = "azure"
)

// DefaultExtensions covers the common raster formats plus PDF.
var DefaultExtensions = []string{".jpg", ".jpeg", ".png", ".bmp", ".tiff", ".pdf"}

// Config is the full runtime configuration. The pipeline core only
// consumes values; how they got here (env, .env file) is its own
// business.
type Config struct {
	// Watcher
	WatchDir       string
	UsePolling     bool
	PollInterval   time.Duration
	DebounceWindow time.Duration
	Extensions     []string

	// State tracker
	StateFile string

	// Pipeline
	MaxAttempts int
	BackoffBase time.Duration
	Workers     int

	// OCR collaborator (Azure Document Intelligence)
	OCREndpoint string
	OCRKey      string

	// Embedding collaborator
	EmbeddingProvider   string // openai | azure | local
	EmbeddingAPIKey     string
	EmbeddingEndpoint   string // azure only
	EmbeddingDeployment string // azure deployment / openai model name

	// Index collaborator
	IndexBackend    string // sqlite | azure
	IndexPath       string // sqlite database file
	SearchEndpoint  string
	SearchKey       string
	SearchIndexName string

	// Notifications
	WebhookURL string

	// HTTP client timeout for all collaborators.
	HTTPTimeout time.Duration
}

// Load reads configuration from the environment. A .env file in the
// working directory is merged in when present; real environment
// variables win.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		WatchDir:       envString("WATCH_DIR", "/brain-notes"),
		UsePolling:     envBool("USE_POLLING", true),
		PollInterval:   time.Duration(envIntInRange("POLLING_INTERVAL", 180, 5, 3600)) * time.Second,
		DebounceWindow: time.Duration(envIntInRange("DEBOUNCE_WINDOW_MS", 2000, 100, 60000)) * time.Millisecond,
		Extensions:     envExtensions("SUPPORTED_EXTENSIONS", DefaultExtensions),

		StateFile: envString("STATE_FILE", "data/processed_files.json"),

		MaxAttempts: envIntInRange("RETRY_MAX_ATTEMPTS", 3, 1, 10),
		BackoffBase: time.Duration(envIntInRange("RETRY_BACKOFF_MS", 100, 10, 10000)) * time.Millisecond,
		Workers:     envIntInRange("PIPELINE_WORKERS", 1, 1, 16),

		OCREndpoint: envString("OCR_ENDPOINT", ""),
		OCRKey:      envString("OCR_KEY", ""),

		EmbeddingProvider:   strings.ToLower(envString("EMBEDDING_PROVIDER", "openai")),
		EmbeddingAPIKey:     envString("EMBEDDING_API_KEY", ""),
		EmbeddingEndpoint:   envString("EMBEDDING_ENDPOINT", ""),
		EmbeddingDeployment: envString("EMBEDDING_DEPLOYMENT", "text-embedding-3-small"),

		IndexBackend:    strings.ToLower(envString("INDEX_BACKEND", IndexSQLite)),
		IndexPath:       envString("INDEX_PATH", "data/brainocr.db"),
		SearchEndpoint:  envString("SEARCH_ENDPOINT", ""),
		SearchKey:       envString("SEARCH_KEY", ""),
		SearchIndexName: envString("SEARCH_INDEX_NAME", "brain-notes"),

		WebhookURL: envString("WEBHOOK_URL", ""),

		HTTPTimeout: time.Duration(envIntInRange("HTTP_TIMEOUT", 30, 5, 120)) * time.Second,
	}
}

// Validate checks the configuration and returns every problem found.
// Any returned error is fatal: the daemon must not start on a broken
// configuration.
func (c *Config) Validate() []error {
	var errs []error

	if c.WatchDir == "" {
		errs = append(errs, fmt.Errorf("WATCH_DIR is required"))
	} else if info, err := os.Stat(c.WatchDir); err != nil {
		errs = append(errs, fmt.Errorf("WATCH_DIR does not exist: %s", c.WatchDir))
	} else if !info.IsDir() {
		errs = append(errs, fmt.Errorf("WATCH_DIR is not a directory: %s", c.WatchDir))
	}

	if c.StateFile == "" {
		errs = append(errs, fmt.Errorf("STATE_FILE is required"))
	}
	if len(c.Extensions) == 0 {
		errs = append(errs, fmt.Errorf("SUPPORTED_EXTENSIONS must not be empty"))
	}

	if err := validateURL(c.OCREndpoint, "OCR_ENDPOINT"); err != nil {
		errs = append(errs, err)
	}
	if c.OCRKey == "" {
		errs = append(errs, fmt.Errorf("OCR_KEY is required"))
	}

	switch c.EmbeddingProvider {
	case "openai":
		if c.EmbeddingAPIKey == "" {
			errs = append(errs, fmt.Errorf("EMBEDDING_API_KEY is required for the openai provider"))
		}
	case "azure":
		if c.EmbeddingAPIKey == "" {
			errs = append(errs, fmt.Errorf("EMBEDDING_API_KEY is required for the azure provider"))
		}
		if err := validateURL(c.EmbeddingEndpoint, "EMBEDDING_ENDPOINT"); err != nil {
			errs = append(errs, err)
		}
	case "local":
		// Offline provider, nothing to check.
	default:
		errs = append(errs, fmt.Errorf("unknown EMBEDDING_PROVIDER: %s", c.EmbeddingProvider))
	}

	switch c.IndexBackend {
	case IndexSQLite:
		if c.IndexPath == "" {
			errs = append(errs, fmt.Errorf("INDEX_PATH is required for the sqlite backend"))
		}
	case IndexAzureSearch:
		if err := validateURL(c.SearchEndpoint, "SEARCH_ENDPOINT"); err != nil {
			errs = append(errs, err)
		}
		if c.SearchKey == "" {
			errs = append(errs, fmt.Errorf("SEARCH_KEY is required for the azure backend"))
		}
		if c.SearchIndexName == "" {
			errs = append(errs, fmt.Errorf("SEARCH_INDEX_NAME is required for the azure backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown INDEX_BACKEND: %s", c.IndexBackend))
	}

	if c.WebhookURL != "" {
		if err := validateURL(c.WebhookURL, "WEBHOOK_URL"); err != nil {
			errs = append(errs, err)
		}
	}

	return errs
}

func validateURL(raw, name string) error {
	if raw == "" {
		return fmt.Errorf("%s is required", name)
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%s must be a valid URL (got %q)", name, raw)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s must use http or https (got %q)", name, u.Scheme)
	}
	return nil
}

func envString(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

func envBool(name string, fallback bool) bool {
	v := os.Getenv(name)
	if v == "" {
		return fallback
	}
	return strings.EqualFold(v, "true") || v == "1"
}

// envIntInRange parses an integer environment variable, falling back
// to the default when the value is missing, malformed, or out of
// range. Bad timing values should degrade, not crash.
func envIntInRange(name string, fallback, min, max int) int {
	v := os.Getenv(name)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("invalid %s=%q, using default %d", name, v, fallback)
		return fallback
	}
	if n < min || n > max {
		log.Printf("%s=%d out of range [%d,%d], using default %d", name, n, min, max, fallback)
		return fallback
	}
	return n
}

// envExtensions parses a comma-separated extension list, normalizing
// to lowercase with a leading dot.
func envExtensions(name string, fallback []string) []string {
	v := os.Getenv(name)
	if v == "" {
		return fallback
	}
	var exts []string
	for _, raw := range strings.Split(v, ",") {
		e := strings.ToLower(strings.TrimSpace(raw))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		exts = append(exts, e)
	}
	if len(exts) == 0 {
		return fallback
	}
	return exts
}
