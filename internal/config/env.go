package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// EnvBaseURL names the environment variable holding the backend base URL.
const EnvBaseURL = "API_BASE_URL"

// ErrMissingBaseURL is returned when EnvBaseURL is unset or empty.
var ErrMissingBaseURL = errors.New("missing " + EnvBaseURL + ". Define it in the environment or in .env.local")

// EnvFiles are loaded, in order, by LoadEnvFiles.
var EnvFiles = []string{".env.local", ".env"}

// LoadEnvFiles loads each existing file into the process environment.
// Variables already set are never overwritten, so earlier files win.
func LoadEnvFiles(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("loading env file %q: %w", p, err)
		}
	}
	return nil
}

// ResolveBaseURL reads the backend base URL through lookup (usually
// os.Getenv) and strips trailing slashes.
func ResolveBaseURL(lookup func(string) string) (string, error) {
	raw := lookup(EnvBaseURL)
	if raw == "" {
		return "", ErrMissingBaseURL
	}
	return strings.TrimRight(raw, "/"), nil
}
