package secrets

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// ErrNotFound is returned when a secret is not present in the source.
var ErrNotFound = errors.New("secret not found")

// Source is a read-only lookup of string secrets by name.
type Source interface {
	Get(name string) (string, error)
}

// EnvSource resolves secrets from the process environment, optionally
// preloaded from .env files.
type EnvSource struct{}

// NewEnvSource loads the given .env files into the environment. Missing
// files are not an error; already-set variables win.
func NewEnvSource(files ...string) EnvSource {
	for _, file := range files {
		_ = godotenv.Load(file)
	}
	return EnvSource{}
}

func (EnvSource) Get(name string) (string, error) {
	value := os.Getenv(name)
	if value == "" {
		return "", fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return value, nil
}

// StaticSource serves a fixed secret map. Used by tests.
type StaticSource map[string]string

func (s StaticSource) Get(name string) (string, error) {
	value, ok := s[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return value, nil
}
