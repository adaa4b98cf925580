package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// parseEnv loads the optional dotenv file into the process environment and
// then overlays every BK_* variable onto config. Variables already present
// in the environment are not replaced by the dotenv file. An explicitly
// requested dotenv file must exist; the implicit ".env" may be missing.
func parseEnv(config *Config, envFile string) error {
	path := envFile
	if path == "" {
		path = ".env"
	}

	if err := godotenv.Load(path); err != nil {
		if envFile != "" || !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load env file %s: %w", path, err)
		}
	}

	if err := cleanenv.ReadEnv(config); err != nil {
		return fmt.Errorf("read environment: %w", err)
	}
	return nil
}
