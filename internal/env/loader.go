package env

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// Loader handles loading environment variables from files
type Loader struct {
	// stat allows for dependency injection in tests
	stat func(path string) (os.FileInfo, error)
}

// NewLoader creates a new Loader with default implementations
func NewLoader() *Loader {
	return &Loader{
		stat: os.Stat,
	}
}

// LoadEnvFile loads environment variables from a dotenv file into a map.
// A missing file yields an empty map; read and parse failures are errors.
func (l *Loader) LoadEnvFile(path string) (map[string]string, error) {
	if _, err := l.stat(path); err != nil {
		if os.IsNotExist(err) {
			return make(map[string]string), nil
		}
		return nil, fmt.Errorf("failed to stat env file: %w", err)
	}

	env, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("failed to parse env file: %w", err)
	}

	return env, nil
}

// LoadEnvFile is a convenience function that creates a loader and loads a file
func LoadEnvFile(path string) (map[string]string, error) {
	return NewLoader().LoadEnvFile(path)
}
