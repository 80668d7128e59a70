package config

import (
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Type interface {
	APIServerConfig
}

// LoadConfig loads configuration from a YAML file with environment variable support
func LoadConfig[T Type](filename string) (*T, string, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	cfgPath := configPath(filename)
	data, err := os.ReadFile(cfgPath)
	if err != nil {
		return nil, cfgPath, err
	}

	// Resolve environment variables
	data = resolveEnv(data)
	var cfg T
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, cfgPath, err
	}

	setDefaults(any(&cfg).(*APIServerConfig))

	return &cfg, cfgPath, nil
}

// configPath locates the config file. Absolute paths are taken as-is;
// relative names are tried against the working directory and ./configs,
// then fall back to /etc/strata.
func configPath(filename string) string {
	if filepath.IsAbs(filename) {
		return filename
	}
	for _, dir := range []string{".", "configs"} {
		candidate := filepath.Join(dir, filename)
		if _, err := os.Stat(candidate); err == nil {
			if abs, err := filepath.Abs(candidate); err == nil {
				return abs
			}
			return candidate
		}
	}
	return filepath.Join("/etc/strata", filename)
}

// setDefaults fills in values the YAML may omit
func setDefaults(cfg *APIServerConfig) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 5234
	}
	if cfg.JWT.Duration <= 0 {
		cfg.JWT.Duration = 24 * time.Hour
	}
	if cfg.Sweeper.Interval <= 0 {
		cfg.Sweeper.Interval = time.Minute
	}
	if cfg.Redis.TTL <= 0 {
		cfg.Redis.TTL = 5 * time.Minute
	}
	if cfg.Redis.Prefix == "" {
		cfg.Redis.Prefix = "strata:"
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = "strata"
	}
}

// resolveEnv replaces environment variable placeholders in YAML content
func resolveEnv(content []byte) []byte {
	regex := regexp.MustCompile(`\$\{(\w+)(?::([^}]*))?\}`)

	return regex.ReplaceAllFunc(content, func(match []byte) []byte {
		matches := regex.FindSubmatch(match)
		envKey := string(matches[1])
		var defaultValue string

		if len(matches) > 2 {
			defaultValue = string(matches[2])
		}

		if value, exists := os.LookupEnv(envKey); exists {
			return []byte(value)
		}
		return []byte(defaultValue)
	})
}
