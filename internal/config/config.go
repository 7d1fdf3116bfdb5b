package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Environment
	GoEnv string `env:"GO_ENV" default:"development"`

	// Chat listeners
	ChatHost  string `env:"CHAT_HOST" default:""`
	ChatPorts []int  `env:"CHAT_PORTS" default:"8081"`

	// HTTP admin listener (health, metrics, websocket gateway); 0 disables it
	HTTPPort int `env:"HTTP_PORT" default:"0"`

	// Relay between server processes; empty URL disables it
	RedisURL      string `env:"REDIS_URL" default:""`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisChannel  string `env:"REDIS_CHANNEL" default:"framechat:room"`

	// Session
	DefaultName string `env:"DEFAULT_NAME" default:"dummy"`

	// Accept loop pacing after transient errors
	AcceptRetryInterval time.Duration `env:"ACCEPT_RETRY_INTERVAL" default:"100ms"`

	// Development
	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"text"`
}

// LoadConfig loads configuration from an optional .env file and environment variables
func LoadConfig() (*Config, error) {
	// a missing .env is fine, system env vars still apply
	_ = godotenv.Load(".env")

	config := &Config{}

	if err := loadEnvString(&config.GoEnv, "GO_ENV", "development"); err != nil {
		return nil, err
	}

	// Chat listeners
	if err := loadEnvString(&config.ChatHost, "CHAT_HOST", ""); err != nil {
		return nil, err
	}
	if err := loadEnvIntSlice(&config.ChatPorts, "CHAT_PORTS", []int{8081}); err != nil {
		return nil, err
	}
	if err := loadEnvInt(&config.HTTPPort, "HTTP_PORT", 0); err != nil {
		return nil, err
	}

	// Redis
	if err := loadEnvString(&config.RedisURL, "REDIS_URL", ""); err != nil {
		return nil, err
	}
	if err := loadEnvString(&config.RedisPassword, "REDIS_PASSWORD", ""); err != nil {
		return nil, err
	}
	if err := loadEnvString(&config.RedisChannel, "REDIS_CHANNEL", "framechat:room"); err != nil {
		return nil, err
	}

	if err := loadEnvString(&config.DefaultName, "DEFAULT_NAME", "dummy"); err != nil {
		return nil, err
	}
	if err := loadEnvDuration(&config.AcceptRetryInterval, "ACCEPT_RETRY_INTERVAL", 100*time.Millisecond); err != nil {
		return nil, err
	}

	// Development
	if err := loadEnvString(&config.LogLevel, "LOG_LEVEL", "info"); err != nil {
		return nil, err
	}
	if err := loadEnvString(&config.LogFormat, "LOG_FORMAT", "text"); err != nil {
		return nil, err
	}
	return config, nil
}

// Helper functions for type conversion and validation
func loadEnvString(target *string, key, defaultValue string) error {
	if value := os.Getenv(key); value != "" {
		*target = value
	} else {
		*target = defaultValue
	}
	return nil
}

func loadEnvInt(target *int, key string, defaultValue int) error {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid integer value for %s: %v", key, err)
		}
		*target = parsed
	} else {
		*target = defaultValue
	}
	return nil
}

func loadEnvIntSlice(target *[]int, key string, defaultValue []int) error {
	value := os.Getenv(key)
	if value == "" {
		*target = defaultValue
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		parsed, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return fmt.Errorf("invalid integer list value for %s: %v", key, err)
		}
		out = append(out, parsed)
	}
	*target = out
	return nil
}

func loadEnvDuration(target *time.Duration, key string, defaultValue time.Duration) error {
	if value := os.Getenv(key); value != "" {
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration value for %s: %v", key, err)
		}
		*target = parsed
	} else {
		*target = defaultValue
	}
	return nil
}

// ParsePorts converts positional port arguments, e.g. from the server command line.
func ParsePorts(args []string) ([]int, error) {
	ports := make([]int, 0, len(args))
	for _, arg := range args {
		port, err := strconv.Atoi(arg)
		if err != nil {
			return nil, fmt.Errorf("invalid port %q: %v", arg, err)
		}
		ports = append(ports, port)
	}
	return ports, nil
}

// Validate performs validation on the loaded configuration
func (c *Config) Validate() error {
	var errors []string

	if len(c.ChatPorts) == 0 {
		errors = append(errors, "at least one chat port is required")
	}
	for _, port := range c.ChatPorts {
		if port < 1 || port > 65535 {
			errors = append(errors, fmt.Sprintf("chat port %d must be between 1 and 65535", port))
		}
	}
	if c.HTTPPort < 0 || c.HTTPPort > 65535 {
		errors = append(errors, "HTTP_PORT must be between 0 and 65535")
	}
	if c.RedisURL != "" && c.RedisChannel == "" {
		errors = append(errors, "REDIS_CHANNEL is required when REDIS_URL is set")
	}
	if c.AcceptRetryInterval <= 0 {
		errors = append(errors, "ACCEPT_RETRY_INTERVAL must be positive")
	}

	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLogLevels, c.LogLevel) {
		errors = append(errors, fmt.Sprintf("LOG_LEVEL must be one of: %s", strings.Join(validLogLevels, ", ")))
	}

	validLogFormats := []string{"text", "json"}
	if !contains(validLogFormats, c.LogFormat) {
		errors = append(errors, fmt.Sprintf("LOG_FORMAT must be one of: %s", strings.Join(validLogFormats, ", ")))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errors, "; "))
	}

	return nil
}

// IsDevelopment returns true if the application is running in development mode
func (c *Config) IsDevelopment() bool {
	return c.GoEnv == "development"
}

// ChatAddrs returns one listen address per chat port.
func (c *Config) ChatAddrs() []string {
	addrs := make([]string, 0, len(c.ChatPorts))
	for _, port := range c.ChatPorts {
		addrs = append(addrs, fmt.Sprintf("%s:%d", c.ChatHost, port))
	}
	return addrs
}

// Helper function to check if slice contains a string
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
