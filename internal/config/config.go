package config

import (
	"flag"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Addr              string
	DBPath            string
	SubscriberBuffer  int
	HeartbeatInterval time.Duration
	AppendTimeout     time.Duration
	Debug             bool
}

// Load parses command line flags and environment variables to populate Config.
// Flags take precedence over environment variables.
func Load() *Config {
	cfg := &Config{}

	// Defaults and Environment Variables
	cfg.Addr = getEnv("AUDITCHAIN_ADDR", ":8080")
	cfg.DBPath = getEnv("AUDITCHAIN_DB", getDefaultDBPath())
	cfg.SubscriberBuffer = getEnvInt("AUDITCHAIN_SUB_BUFFER", 64)
	heartbeatSec := getEnvInt("AUDITCHAIN_HEARTBEAT_SEC", 30)
	appendTimeoutMS := getEnvInt("AUDITCHAIN_APPEND_TIMEOUT_MS", 2000)

	// Command Line Flags (Override Env)
	flag.StringVar(&cfg.Addr, "addr", cfg.Addr, "HTTP server address")
	flag.StringVar(&cfg.DBPath, "db", cfg.DBPath, "Path to SQLite database")
	flag.IntVar(&cfg.SubscriberBuffer, "sub-buffer", cfg.SubscriberBuffer, "Per-subscriber event buffer size")
	flag.IntVar(&heartbeatSec, "heartbeat", heartbeatSec, "Heartbeat interval in seconds")
	flag.IntVar(&appendTimeoutMS, "append-timeout", appendTimeoutMS, "Append enqueue timeout in milliseconds")
	flag.BoolVar(&cfg.Debug, "debug", false, "Enable verbose debug logging")

	flag.Parse()

	cfg.HeartbeatInterval = time.Duration(heartbeatSec) * time.Second
	cfg.AppendTimeout = time.Duration(appendTimeoutMS) * time.Millisecond

	return cfg
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

// getDefaultDBPath returns the default database path in user's home directory.
// Creates the directory if it doesn't exist.
func getDefaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		log.Printf("Warning: Could not get user home directory, using current dir: %v", err)
		return "auditchain.db"
	}

	dir := filepath.Join(home, ".auditchain")
	if err := os.MkdirAll(dir, 0755); err != nil {
		log.Printf("Warning: Could not create .auditchain directory, using current dir: %v", err)
		return "auditchain.db"
	}

	return filepath.Join(dir, "auditchain.db")
}
