package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store backends
const (
	StoreBackendGitHub = "github"
	StoreBackendR2     = "r2"
	StoreBackendLocal  = "local"
	StoreBackendMemory = "memory"
)

const (
	// DefaultStoreTimeout bounds every round-trip to the remote store
	DefaultStoreTimeout = 30 * time.Second
	// DefaultIndexRetryAttempts is the total number of index append attempts
	DefaultIndexRetryAttempts = 3
)

type Config struct {
	ServerPort  string
	DBPath      string
	Environment string
	// Ledger on Turso (libsql). Empty URL means local sqlite at DBPath.
	TursoDatabaseURL string
	TursoAuthToken   string
	// Remote store
	StoreBackend       string
	StoreTimeout       time.Duration
	IndexRetryAttempts int
	IndexRetryBase     time.Duration
	SyncParallel       bool
	LocalStoreDir      string
	// GitHub contents API
	GitHubToken       string
	GitHubOwner       string
	GitHubRepo        string
	GitHubBranch      string
	GitHubAPIURL      string
	GitHubWebURL      string
	GitHubPrivateRepo bool
	// Cloudflare R2 Storage
	R2AccountID       string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2BucketName      string
	R2PublicURL       string
	// Inbound security
	WebhookSecret  string
	AdminTokenHash string
	AllowedOrigins []string
	// Per-IP requests per minute
	IntakeRateLimit    int
	DashboardRateLimit int
	// Cloudflare Turnstile bot check on intake. Empty disables it.
	TurnstileSecretKey string
	// Email (Resend)
	ResendAPIKey  string
	EmailFrom     string
	EmailFromName string
	ClerkEmail    string
	EmailTestMode bool // When true, emails are logged to console instead of sent
	// Document rendering
	RenderPDF  bool
	ChromePath string
}

func Load() *Config {
	// Load .env file (ignore error if not present - use system env vars)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	return &Config{
		ServerPort:         getEnv("SERVER_PORT", "8080"),
		DBPath:             getEnv("DB_PATH", "db/intake.db"),
		Environment:        getEnv("ENVIRONMENT", "development"),
		TursoDatabaseURL:   getEnv("TURSO_DATABASE_URL", ""),
		TursoAuthToken:     getSecret("TURSO_AUTH_TOKEN"),
		StoreBackend:       strings.ToLower(getEnv("STORE_BACKEND", StoreBackendGitHub)),
		StoreTimeout:       getEnvDuration("STORE_TIMEOUT", DefaultStoreTimeout),
		IndexRetryAttempts: getEnvInt("INDEX_RETRY_ATTEMPTS", DefaultIndexRetryAttempts),
		IndexRetryBase:     getEnvDuration("INDEX_RETRY_BASE", 250*time.Millisecond),
		SyncParallel:       getEnvBool("SYNC_PARALLEL", false),
		LocalStoreDir:      getEnv("LOCAL_STORE_DIR", "data/store"),
		GitHubToken:        getSecret("GITHUB_TOKEN"),
		GitHubOwner:        getEnv("GITHUB_REPO_OWNER", ""),
		GitHubRepo:         getEnv("GITHUB_REPO_NAME", ""),
		GitHubBranch:       getEnv("GITHUB_BRANCH", "main"),
		GitHubAPIURL:       getEnv("GITHUB_API_URL", "https://api.github.com"),
		GitHubWebURL:       getEnv("GITHUB_WEB_URL", "https://github.com"),
		GitHubPrivateRepo:  getEnvBool("GITHUB_PRIVATE_REPO", true),
		R2AccountID:        getEnv("R2_ACCOUNT_ID", ""),
		R2AccessKeyID:      getSecret("R2_ACCESS_KEY_ID"),
		R2SecretAccessKey:  getSecret("R2_SECRET_ACCESS_KEY"),
		R2BucketName:       getEnv("R2_BUCKET_NAME", ""),
		R2PublicURL:        getEnv("R2_PUBLIC_URL", ""),
		WebhookSecret:      getSecret("WEBHOOK_SECRET"),
		AdminTokenHash:     getSecret("ADMIN_TOKEN_HASH"),
		AllowedOrigins:     strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ","),
		IntakeRateLimit:    getEnvInt("INTAKE_RATE_LIMIT", 10),
		DashboardRateLimit: getEnvInt("DASHBOARD_RATE_LIMIT", 60),
		TurnstileSecretKey: getSecret("TURNSTILE_SECRET_KEY"),
		ResendAPIKey:       getSecret("RESEND_API_KEY"),
		EmailFrom:          getEnv("EMAIL_FROM", "noreply@houstoncountyeviction.org"),
		EmailFromName:      getEnv("EMAIL_FROM_NAME", "Houston County Eviction Intake"),
		ClerkEmail:         getEnv("CLERK_EMAIL", ""),
		EmailTestMode:      getEnvBool("EMAIL_TEST_MODE", true), // Default true for safety
		RenderPDF:          getEnvBool("RENDER_PDF", false),
		ChromePath:         getEnv("CHROME_PATH", ""),
	}
}

// Validate checks that the selected store backend has what it needs.
// Outside production a missing credential is only a warning so the
// service can still boot against the memory or local backend.
func (c *Config) Validate() error {
	var missing []string

	switch c.StoreBackend {
	case StoreBackendGitHub:
		if c.GitHubToken == "" {
			missing = append(missing, "GITHUB_TOKEN")
		}
		if c.GitHubOwner == "" {
			missing = append(missing, "GITHUB_REPO_OWNER")
		}
		if c.GitHubRepo == "" {
			missing = append(missing, "GITHUB_REPO_NAME")
		}
	case StoreBackendR2:
		if c.R2AccountID == "" {
			missing = append(missing, "R2_ACCOUNT_ID")
		}
		if c.R2AccessKeyID == "" || c.R2SecretAccessKey == "" {
			missing = append(missing, "R2_ACCESS_KEY_ID/R2_SECRET_ACCESS_KEY")
		}
		if c.R2BucketName == "" {
			missing = append(missing, "R2_BUCKET_NAME")
		}
	case StoreBackendLocal, StoreBackendMemory:
		if c.IsProduction() {
			return fmt.Errorf("store backend %q is not allowed in production", c.StoreBackend)
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}

	if c.IndexRetryAttempts < 1 {
		return fmt.Errorf("INDEX_RETRY_ATTEMPTS must be at least 1 (got %d)", c.IndexRetryAttempts)
	}

	if len(missing) > 0 {
		if c.IsProduction() {
			return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
		}
		log.Printf("[WARNING] Missing store configuration: %s", strings.Join(missing, ", "))
	}

	if c.IsProduction() && c.WebhookSecret == "" {
		log.Println("[WARNING] WEBHOOK_SECRET is not set; intake requests will not be signature-checked")
	}

	return nil
}

// IsProduction reports whether the service runs in production
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		log.Printf("Using default value for %s: %s", key, defaultValue)
		return defaultValue
	}
	return value
}

// getSecret reads a credential without ever echoing it or a default to the log
func getSecret(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	// Accept common boolean representations
	switch strings.ToLower(value) {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	default:
		return defaultValue
	}
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("[WARNING] Invalid integer for %s (%q), using %d", key, value, defaultValue)
		return defaultValue
	}
	return n
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		log.Printf("[WARNING] Invalid duration for %s (%q), using %s", key, value, defaultValue)
		return defaultValue
	}
	return d
}
