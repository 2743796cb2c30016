package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	BGS      BGSConfig      `mapstructure:"bgs"`
	VBMS     VBMSConfig     `mapstructure:"vbms"`
	Intake   IntakeConfig   `mapstructure:"intake"`
	Report   ReportConfig   `mapstructure:"report"`
	Logger   LoggerConfig   `mapstructure:"logger"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	BusyTimeout     time.Duration `mapstructure:"busy_timeout"`
	JournalMode     string        `mapstructure:"journal_mode"`
	MigrationsDir   string        `mapstructure:"migrations_dir"`
}

// BGSConfig holds subject directory API configuration
type BGSConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// VBMSConfig holds claim establishment API configuration
type VBMSConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// IntakeConfig holds intake lifecycle configuration
type IntakeConfig struct {
	CompletionTimeout time.Duration `mapstructure:"completion_timeout"`
	SweepInterval     time.Duration `mapstructure:"sweep_interval"`
}

// ReportConfig holds manager review report configuration
type ReportConfig struct {
	OutputDir string `mapstructure:"output_dir"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()

	// Set defaults
	setDefaults()

	// Read config file
	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Override with environment variables
	bindEnvVars()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", 30*time.Second)
	viper.SetDefault("server.write_timeout", 30*time.Second)

	// Database defaults
	viper.SetDefault("database.path", "data/intake.db")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	viper.SetDefault("database.busy_timeout", 5*time.Second)
	viper.SetDefault("database.journal_mode", "WAL")
	viper.SetDefault("database.migrations_dir", "migrations")

	// External API defaults
	viper.SetDefault("bgs.timeout", 30*time.Second)
	viper.SetDefault("vbms.timeout", 60*time.Second)

	// Intake defaults
	viper.SetDefault("intake.completion_timeout", 5*time.Minute)
	viper.SetDefault("intake.sweep_interval", 30*time.Second)

	// Report defaults
	viper.SetDefault("report.output_dir", "reports")

	// Logger defaults
	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.output_path", "stdout")
	viper.SetDefault("logger.format", "json")
}

// bindEnvVars binds environment variables to configuration
func bindEnvVars() {
	// Sensitive credentials from environment
	viper.BindEnv("bgs.base_url", "BGS_BASE_URL")
	viper.BindEnv("bgs.api_key", "BGS_API_KEY")
	viper.BindEnv("vbms.base_url", "VBMS_BASE_URL")
	viper.BindEnv("vbms.api_key", "VBMS_API_KEY")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.BGS.BaseURL == "" {
		return fmt.Errorf("bgs.base_url is required")
	}
	if c.VBMS.BaseURL == "" {
		return fmt.Errorf("vbms.base_url is required")
	}
	if c.Intake.CompletionTimeout <= 0 {
		return fmt.Errorf("intake.completion_timeout must be positive")
	}
	return nil
}
