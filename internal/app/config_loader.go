package app

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"github.com/yourusername/vidrelay/internal/domain"
)

// LoadConfig loads configuration from file and environment.
// A .env file in the working directory is loaded first so that
// VIDRELAY_TELEGRAM_TOKEN can live next to the binary during development.
func LoadConfig(configPath string) (*domain.Config, error) {
	// Best effort; absence of a .env file is normal
	_ = godotenv.Load()

	// Start with default config
	config := domain.DefaultConfig()

	// Set up viper
	v := viper.New()
	v.SetConfigType("yaml")

	// If config path is provided, use it
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Look for config in standard locations
		v.SetConfigName("config")
		v.AddConfigPath("./configs")
		v.AddConfigPath("$HOME/.vidrelay")
		v.AddConfigPath("/etc/vidrelay")
	}

	// Register every key so AutomaticEnv overrides are visible to
	// Unmarshal even when no config file is present
	v.SetDefault("telegram.token", config.Telegram.Token)
	v.SetDefault("telegram.api_base", config.Telegram.APIBase)
	v.SetDefault("telegram.poll_timeout", config.Telegram.PollTimeout)
	v.SetDefault("download.dir", config.Download.Dir)
	v.SetDefault("download.max_size_bytes", config.Download.MaxSizeBytes)
	v.SetDefault("download.timeout", config.Download.Timeout)
	v.SetDefault("download.ytdlp_binary", config.Download.YTDLPBinary)
	v.SetDefault("server.listen", config.Server.Listen)
	v.SetDefault("logging.level", config.Logging.Level)
	v.SetDefault("logging.format", config.Logging.Format)
	v.SetDefault("logging.output_path", config.Logging.OutputPath)

	// Read environment variables
	v.SetEnvPrefix("VIDRELAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Try to read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, use defaults
	}

	// Unmarshal into config struct
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Expand environment variables in paths
	config.Download.Dir = expandPath(config.Download.Dir)
	if config.Logging.OutputPath != "stdout" && config.Logging.OutputPath != "stderr" {
		config.Logging.OutputPath = expandPath(config.Logging.OutputPath)
	}

	// Fall back to the system temp directory
	if config.Download.Dir == "" {
		config.Download.Dir = os.TempDir()
	}

	// Validate config
	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// expandPath expands environment variables and ~ in paths
func expandPath(path string) string {
	path = os.ExpandEnv(path)

	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, path[2:])
		}
	}

	return path
}

// validateConfig validates the configuration
func validateConfig(config *domain.Config) error {
	if config.Telegram.Token == "" {
		return fmt.Errorf("telegram token not configured (set VIDRELAY_TELEGRAM_TOKEN)")
	}

	if config.Telegram.APIBase == "" {
		return fmt.Errorf("telegram api base not configured")
	}

	if config.Download.MaxSizeBytes < 1 {
		return fmt.Errorf("max download size must be positive")
	}

	if config.Download.Timeout <= 0 {
		return fmt.Errorf("download timeout must be positive")
	}

	if config.Download.YTDLPBinary == "" {
		return fmt.Errorf("yt-dlp binary not configured")
	}

	if config.Logging.Level == "" {
		config.Logging.Level = "info"
	}

	return nil
}
