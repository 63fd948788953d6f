package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config represents the application configuration
type Config struct {
	Server       ServerConfig       `json:"server"`
	Database     DatabaseConfig     `json:"database"`
	Verification VerificationConfig `json:"verification"`
	Auth         AuthConfig         `json:"auth"`
	Logging      LoggingConfig      `json:"logging"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Host         string        `json:"host"`
	Port         int           `json:"port"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	Host           string        `json:"host"`
	Port           int           `json:"port"`
	User           string        `json:"user"`
	Password       string        `json:"password"`
	DBName         string        `json:"db_name"`
	SSLMode        string        `json:"ssl_mode"`
	MaxConnections int           `json:"max_connections"`
	MaxIdleConns   int           `json:"max_idle_conns"`
	MaxLifetime    time.Duration `json:"max_lifetime"`
}

// ExpiryPolicy decides what happens to a verification request whose
// deadline passed without either quorum threshold being met.
type ExpiryPolicy string

const (
	// ExpiryPolicyReject rejects the request at the deadline.
	ExpiryPolicyReject ExpiryPolicy = "reject"
	// ExpiryPolicyPending leaves the request open for manual resolution.
	ExpiryPolicyPending ExpiryPolicy = "pending"
)

// VerificationConfig controls committee assignment and voting
type VerificationConfig struct {
	RequiredApprovals int           `json:"required_approvals"`
	CommitteeSize     int           `json:"committee_size"`
	VotingWindow      time.Duration `json:"voting_window"`
	ExpiryPolicy      ExpiryPolicy  `json:"expiry_policy"`
	SweepSchedule     string        `json:"sweep_schedule"` // cron expression
}

// AuthConfig holds JWT settings
type AuthConfig struct {
	JWTSecret string `json:"jwt_secret"`
}

// LoggingConfig
type LoggingConfig struct {
	Level string `json:"level"`
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	// Default config
	config := &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Database: DatabaseConfig{
			Host:    "localhost",
			Port:    5432,
			User:    os.Getenv("USER"),
			DBName:  "carbon_registry",
			SSLMode: "disable",
		},
		Verification: VerificationConfig{
			RequiredApprovals: 3,
			CommitteeSize:     5,
			VotingWindow:      4 * 24 * time.Hour,
			ExpiryPolicy:      ExpiryPolicyReject,
			SweepSchedule:     "0 * * * *", // hourly
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}

	// Load from file if exists
	if configPath != "" {
		if data, err := os.ReadFile(configPath); err == nil {
			if err := json.Unmarshal(data, config); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	// Override with environment variables
	overrideWithEnv(config)

	if err := config.Verification.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate rejects verification settings that can never reach quorum.
func (c *VerificationConfig) Validate() error {
	if c.RequiredApprovals < 1 {
		return fmt.Errorf("required_approvals must be at least 1, got %d", c.RequiredApprovals)
	}
	if c.CommitteeSize < c.RequiredApprovals {
		return fmt.Errorf("committee_size %d is smaller than required_approvals %d", c.CommitteeSize, c.RequiredApprovals)
	}
	if c.VotingWindow <= 0 {
		return fmt.Errorf("voting_window must be positive")
	}
	switch c.ExpiryPolicy {
	case ExpiryPolicyReject, ExpiryPolicyPending:
	default:
		return fmt.Errorf("unknown expiry_policy %q", c.ExpiryPolicy)
	}
	return nil
}

func overrideWithEnv(config *Config) {
	if host := os.Getenv("SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if dbHost := os.Getenv("DATABASE_HOST"); dbHost != "" {
		config.Database.Host = dbHost
	}
	if dbUser := os.Getenv("DATABASE_USER"); dbUser != "" {
		config.Database.User = dbUser
	}
	if dbPass := os.Getenv("DATABASE_PASSWORD"); dbPass != "" {
		config.Database.Password = dbPass
	}
	if dbName := os.Getenv("DATABASE_DBNAME"); dbName != "" {
		config.Database.DBName = dbName
	}
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		config.Auth.JWTSecret = secret
	}
	if policy := os.Getenv("VERIFICATION_EXPIRY_POLICY"); policy != "" {
		config.Verification.ExpiryPolicy = ExpiryPolicy(policy)
	}
}

// GetDatabaseDSN returns the database connection string
func (c *DatabaseConfig) GetDatabaseDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}

// GetServerAddr returns the server address
func (c *ServerConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
