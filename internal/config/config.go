package config

import (
	"authpage/internal/authform"
	"authpage/internal/constants"
	"io/fs"
	"os"
	"strings"
)

// Config is the global config for the app router. Host and Port are needed for absolute URL generation.
type Config struct {
	Env              string
	Host             string
	Port             string
	BackendUrl       string
	CookieSecure     bool
	DisableLogColors bool
	EnableStackTrace bool
	StaticFS         fs.FS
	// HTTPClient sends submissions to the backend. nil means a default http.Client.
	HTTPClient authform.Doer
}

func NewConfigFromEnvironment(staticFS fs.FS) Config {
	env := strings.ToLower(os.Getenv("ENV"))

	return Config{
		Env:              env,
		Host:             os.Getenv("HOST"),
		Port:             getenv("PORT", "3000"),
		BackendUrl:       getenv("BACKEND_URL", authform.DefaultBaseURL),
		CookieSecure:     env == constants.EnvProduction,
		DisableLogColors: env == constants.EnvProduction,
		EnableStackTrace: env == constants.EnvDevelopment,
		StaticFS:         staticFS,
	}
}

// NewTestConfig returns a config pointed at the given backend.
func NewTestConfig(backendUrl string) *Config {
	return &Config{
		Env:              constants.EnvTest,
		Host:             "127.0.0.1",
		Port:             "0",
		BackendUrl:       backendUrl,
		DisableLogColors: true,
		EnableStackTrace: true,
	}
}

// Addr is the listen address.
func (c Config) Addr() string {
	return c.Host + ":" + c.Port
}

func getenv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}
