package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"rehabflow/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	SMTP       SMTPConfig       `yaml:"smtp"`
	API        APIConfig        `yaml:"api"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
	Booking    BookingConfig    `yaml:"booking"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

// SMTPConfig carries the mail transport credentials. Host, From, Username and
// Password are startup-fatal when absent; they normally arrive via environment
// expansion in the YAML file.
type SMTPConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	Username       string `yaml:"username"`
	Password       string `yaml:"password"`
	From           string `yaml:"from"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	MaxRetries     int    `yaml:"max_retries"`
}

type APIConfig struct {
	HTTP      APIHTTPConfig      `yaml:"http"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIHTTPConfig struct {
	Port int `yaml:"port"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	Port              int  `yaml:"port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type BookingConfig struct {
	AttemptLogTTLSeconds int `yaml:"attempt_log_ttl_seconds"`
}

func Load(configPath string) (*Config, error) {
	// .env is optional; real deployments export variables directly.
	_ = godotenv.Load(".env")

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	// Substitute ${VAR} references before parsing so credentials stay out of
	// the YAML file.
	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}
	if c.SMTP.Host == "" {
		return errors.New("smtp host is required")
	}
	if c.SMTP.From == "" {
		return errors.New("smtp from address is required")
	}
	if c.SMTP.Username == "" || c.SMTP.Password == "" {
		return errors.New("smtp credentials are required")
	}
	return nil
}

// ValidateServices checks the clinic catalog for blanks and duplicates.
func ValidateServices(services []string) error {
	if len(services) == 0 {
		return errors.New("service catalog must not be empty")
	}
	seen := make(map[string]bool, len(services))
	for _, s := range services {
		name := strings.TrimSpace(s)
		if name == "" {
			return errors.New("service catalog contains a blank entry")
		}
		if seen[name] {
			return fmt.Errorf("duplicate service found: %s", name)
		}
		seen[name] = true
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "rehabflow"
	}
	if c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = 8080
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.Port == 0 {
		c.Monitoring.Port = 9090
	}
	if c.SMTP.Port == 0 {
		c.SMTP.Port = 587
	}
	if c.SMTP.TimeoutSeconds == 0 {
		c.SMTP.TimeoutSeconds = models.DefaultNotifyTimeout
	}
	if c.SMTP.MaxRetries == 0 {
		c.SMTP.MaxRetries = models.DefaultNotifyMaxRetries
	}
	if c.Booking.AttemptLogTTLSeconds == 0 {
		c.Booking.AttemptLogTTLSeconds = models.DefaultAttemptLogTTL
	}
}
