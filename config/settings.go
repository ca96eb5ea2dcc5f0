package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Settings holds the process-level configuration read from the environment.
type Settings struct {
	// Port is the HTTP listen port.
	Port int `env:"PORT" envDefault:"8080"`

	// WebhookSecret is the shared secret used to verify webhook signatures.
	WebhookSecret string `env:"GITHUB_WEBHOOK_SECRET"`

	// Token is a personal access token. Mutually exclusive with the app
	// credentials below.
	Token string `env:"GITHUB_TOKEN"`

	// AppID and the private key identify a GitHub App installation-based
	// credential. The key is supplied either inline or as a file path.
	AppID          string `env:"GITHUB_APP_ID"`
	PrivateKey     string `env:"GITHUB_PRIVATE_KEY"`
	PrivateKeyPath string `env:"GITHUB_PRIVATE_KEY_PATH"`

	// AIAPIKey authenticates against the review model API.
	AIAPIKey string `env:"AI_API_KEY"`

	// AIModel selects the review model.
	AIModel string `env:"AI_MODEL" envDefault:"claude-sonnet-4-20250514"`

	// AIBaseURL overrides the model API endpoint, mainly for testing.
	AIBaseURL string `env:"AI_BASE_URL"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// LoadSettings reads settings from the environment, honoring a local .env
// file when present.
func LoadSettings() (*Settings, error) {
	// A missing .env file is not an error; real deployments set the
	// environment directly.
	_ = godotenv.Load()

	var s Settings
	if err := env.Parse(&s); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}

	return &s, nil
}

// Validate checks that required settings are present and that exactly one
// platform credential mode is configured.
func (s *Settings) Validate() error {
	if s.WebhookSecret == "" {
		return errors.New("GITHUB_WEBHOOK_SECRET is required")
	}
	if s.AIAPIKey == "" {
		return errors.New("AI_API_KEY is required")
	}

	hasToken := s.Token != ""
	hasApp := s.HasAppCredentials()

	switch {
	case hasToken && hasApp:
		return errors.New("configure either GITHUB_TOKEN or GitHub App credentials, not both")
	case !hasToken && !hasApp:
		return errors.New("no platform credentials: set GITHUB_TOKEN, or GITHUB_APP_ID with a private key")
	}

	return nil
}

// HasAppCredentials reports whether GitHub App credentials are configured.
func (s *Settings) HasAppCredentials() bool {
	return s.AppID != "" && (s.PrivateKey != "" || s.PrivateKeyPath != "")
}

// PrivateKeyPEM returns the app private key, reading it from
// GITHUB_PRIVATE_KEY_PATH when the inline value is empty.
func (s *Settings) PrivateKeyPEM() ([]byte, error) {
	if s.PrivateKey != "" {
		return []byte(s.PrivateKey), nil
	}
	if s.PrivateKeyPath == "" {
		return nil, errors.New("no private key configured")
	}

	pem, err := os.ReadFile(s.PrivateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read private key from %s: %w", s.PrivateKeyPath, err)
	}
	return pem, nil
}
