package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	// Plugin repository settings
	RegistryRepoURL string
	RegistryBranch  string

	// GitHub App authentication, optional as a whole
	GitHubAppID          int64
	GitHubAppPrivateKey  []byte
	GitHubInstallationID int64

	// Webhook settings
	WebhookSecret string

	// Sync settings
	PollInterval time.Duration
	CloneTimeout time.Duration

	// Storage settings
	DataPath  string
	CacheSize int

	// Server settings
	Port         int
	MaxBodyBytes int64

	// Validation
	FailFast bool

	// Observability
	OTLPEndpoint string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		RegistryBranch: "main",
		PollInterval:   5 * time.Minute,
		CloneTimeout:   2 * time.Minute,
		DataPath:       "/data",
		CacheSize:      1000,
		Port:           8080,
		MaxBodyBytes:   1 << 20,
	}

	cfg.RegistryRepoURL = os.Getenv("REGISTRY_REPO_URL")
	if cfg.RegistryRepoURL == "" {
		return nil, fmt.Errorf("REGISTRY_REPO_URL is required")
	}

	if v := os.Getenv("REGISTRY_BRANCH"); v != "" {
		cfg.RegistryBranch = v
	}

	if err := loadGitHubApp(cfg); err != nil {
		return nil, err
	}

	cfg.WebhookSecret = os.Getenv("WEBHOOK_SECRET")
	if cfg.WebhookSecret == "" {
		return nil, fmt.Errorf("WEBHOOK_SECRET is required")
	}

	var err error
	if cfg.PollInterval, err = durationEnv("POLL_INTERVAL", cfg.PollInterval); err != nil {
		return nil, err
	}
	if cfg.CloneTimeout, err = durationEnv("CLONE_TIMEOUT", cfg.CloneTimeout); err != nil {
		return nil, err
	}

	if v := os.Getenv("DATA_PATH"); v != "" {
		cfg.DataPath = v
	}

	if cfg.CacheSize, err = intEnv("CACHE_SIZE", cfg.CacheSize); err != nil {
		return nil, err
	}
	if cfg.Port, err = intEnv("PORT", cfg.Port); err != nil {
		return nil, err
	}

	if v := os.Getenv("MAX_BODY_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid MAX_BODY_BYTES: %q", v)
		}
		cfg.MaxBodyBytes = n
	}

	if v := os.Getenv("FAIL_FAST"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid FAIL_FAST: %w", err)
		}
		cfg.FailFast = b
	}

	cfg.OTLPEndpoint = os.Getenv("OTLP_ENDPOINT")

	return cfg, nil
}

// loadGitHubApp reads the GitHub App credentials. They are all set or all
// absent; a partial set is an error.
func loadGitHubApp(cfg *Config) error {
	appIDStr := os.Getenv("GITHUB_APP_ID")
	installIDStr := os.Getenv("GITHUB_INSTALLATION_ID")
	privateKeyPath := os.Getenv("GITHUB_APP_PRIVATE_KEY_PATH")
	privateKeyValue := os.Getenv("GITHUB_APP_PRIVATE_KEY")

	if appIDStr == "" && installIDStr == "" && privateKeyPath == "" && privateKeyValue == "" {
		return nil
	}

	if appIDStr == "" {
		return fmt.Errorf("GITHUB_APP_ID is required when GitHub App credentials are set")
	}
	appID, err := strconv.ParseInt(appIDStr, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid GITHUB_APP_ID: %w", err)
	}
	cfg.GitHubAppID = appID

	switch {
	case privateKeyPath != "":
		key, err := os.ReadFile(privateKeyPath)
		if err != nil {
			return fmt.Errorf("failed to read private key file: %w", err)
		}
		cfg.GitHubAppPrivateKey = key
	case privateKeyValue != "":
		cfg.GitHubAppPrivateKey = []byte(privateKeyValue)
	default:
		return fmt.Errorf("GITHUB_APP_PRIVATE_KEY or GITHUB_APP_PRIVATE_KEY_PATH is required when GitHub App credentials are set")
	}

	if installIDStr == "" {
		return fmt.Errorf("GITHUB_INSTALLATION_ID is required when GitHub App credentials are set")
	}
	installID, err := strconv.ParseInt(installIDStr, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid GITHUB_INSTALLATION_ID: %w", err)
	}
	cfg.GitHubInstallationID = installID

	return nil
}

func durationEnv(name string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(name)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	return d, nil
}

func intEnv(name string, fallback int) (int, error) {
	v := os.Getenv(name)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	return n, nil
}
