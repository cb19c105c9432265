package config

import (
	"errors"
	"io/fs"

	"github.com/joho/godotenv"
)

// DefaultEnvFiles are read before the environment layer in local runs.
var DefaultEnvFiles = []string{".env", "cmd/.env"}

// loadEnvFiles copies KEY=VALUE pairs into the process environment.
// Variables that are already set win, and missing files are skipped.
func loadEnvFiles(paths ...string) error {
	var errs []error
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
