package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	App      AppConfig
	Solana   SolanaConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
}

// ServerConfig holds server settings
type ServerConfig struct {
	Port string
}

// AppConfig holds application-specific settings
type AppConfig struct {
	JWTSecret        string
	BetExpiry        time.Duration
	GameExpiry       time.Duration
	GameStallTimeout time.Duration
	SweepInterval    time.Duration
	DiceServerSeed   string
}

// SolanaConfig holds chain connection settings
type SolanaConfig struct {
	Network          string
	VaultProgramID   string
	ServerPrivateKey string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	config := &Config{
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "vault_betting"),
		},
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
		},
		App: AppConfig{
			JWTSecret:        getEnv("JWT_SECRET", ""),
			BetExpiry:        getEnvDuration("BET_EXPIRY_SECONDS", 24*time.Hour),
			GameExpiry:       getEnvDuration("GAME_EXPIRY_SECONDS", 24*time.Hour),
			GameStallTimeout: getEnvDuration("GAME_STALL_TIMEOUT_SECONDS", time.Hour),
			SweepInterval:    getEnvDuration("SWEEP_INTERVAL_SECONDS", 5*time.Minute),
			DiceServerSeed:   getEnv("DICE_SERVER_SEED", ""),
		},
		Solana: SolanaConfig{
			Network:          getEnv("SOLANA_NETWORK", "devnet"),
			VaultProgramID:   getEnv("VAULT_PROGRAM_ID", ""),
			ServerPrivateKey: getEnv("SERVER_WALLET_PRIVATE_KEY", ""),
		},
	}

	// Validate required fields
	if config.App.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	if config.Solana.VaultProgramID == "" {
		return nil, fmt.Errorf("VAULT_PROGRAM_ID is required")
	}

	return config, nil
}

// GetDSN returns the PostgreSQL connection string
func (c *Config) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.DBName,
	)
}

// getEnv gets an environment variable with a fallback default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvDuration reads a whole-seconds environment variable.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	seconds, err := strconv.ParseInt(value, 10, 64)
	if err != nil || seconds <= 0 {
		return defaultValue
	}
	return time.Duration(seconds) * time.Second
}
