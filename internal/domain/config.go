package domain

import "time"

// Config represents the application configuration
type Config struct {
	Telegram TelegramConfig `mapstructure:"telegram"`
	Download DownloadConfig `mapstructure:"download"`
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// TelegramConfig contains chat gateway configuration
type TelegramConfig struct {
	Token       string        `mapstructure:"token"`
	APIBase     string        `mapstructure:"api_base"`
	PollTimeout time.Duration `mapstructure:"poll_timeout"`
}

// DownloadConfig contains download-related configuration
type DownloadConfig struct {
	Dir          string        `mapstructure:"dir"`
	MaxSizeBytes int64         `mapstructure:"max_size_bytes"`
	Timeout      time.Duration `mapstructure:"timeout"`
	YTDLPBinary  string        `mapstructure:"ytdlp_binary"`
}

// ServerConfig contains the optional status API configuration.
// An empty listen address disables the HTTP surface.
type ServerConfig struct {
	Listen string `mapstructure:"listen"`
}

// LoggingConfig contains logging-related configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`       // debug, info, warn, error
	Format     string `mapstructure:"format"`      // json, console
	OutputPath string `mapstructure:"output_path"` // stdout, stderr, or file path
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Telegram: TelegramConfig{
			APIBase:     "https://api.telegram.org",
			PollTimeout: 30 * time.Second,
		},
		Download: DownloadConfig{
			Dir:          "",
			MaxSizeBytes: 50 * 1024 * 1024, // Telegram bot upload limit
			Timeout:      5 * time.Minute,
			YTDLPBinary:  "yt-dlp",
		},
		Server: ServerConfig{
			Listen: "",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			OutputPath: "stdout",
		},
	}
}
