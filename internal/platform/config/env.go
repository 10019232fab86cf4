// Package config loads process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// EnvFileVar names the variable that points at the dotenv file to load.
const EnvFileVar = "OILANDROPE_ENV_FILE"

// DefaultEnvFile is loaded when EnvFileVar is unset.
const DefaultEnvFile = ".env"

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// LoadDotEnv reads the dotenv file named by OILANDROPE_ENV_FILE (or .env) into
// the process environment. Variables that are already set keep their value and
// a missing file is not an error.
func LoadDotEnv() error {
	path := strings.TrimSpace(os.Getenv(EnvFileVar))
	if path == "" {
		path = DefaultEnvFile
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}
