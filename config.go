package clubauth

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config selects the backend host and the paths the session navigates to.
// All fields have working defaults for local development.
type Config struct {
	// Host is the backend base URL, e.g. "https://api.clubs.example".
	Host string `env:"CLUBS_API_HOST" envDefault:"http://localhost:8080"`

	// LoginPath is the login entry point the session redirects to when
	// unauthenticated or after a failed renewal.
	LoginPath string `env:"CLUBS_LOGIN_PATH" envDefault:"/login"`

	// SetupPath is where users with an incomplete profile are sent.
	SetupPath string `env:"CLUBS_SETUP_PATH" envDefault:"/signup"`

	// RootPath is the post-login fallback when no redirect target is stored.
	RootPath string `env:"CLUBS_ROOT_PATH" envDefault:"/"`

	// PostLogoutRedirect is passed to the identity provider as the
	// post-logout redirect target.
	PostLogoutRedirect string `env:"CLUBS_POST_LOGOUT_REDIRECT" envDefault:"/login"`
}

// LoadConfig reads Config from the environment, loading a .env file first if
// one is present.
func LoadConfig() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}
