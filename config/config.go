package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config holds dev backend settings.
type Config struct {
	Port           int
	DBPath         string
	JWTSecret      string
	TokenTTL       time.Duration
	ReadTimeout    int // seconds
	WriteTimeout   int // seconds
	LegacyContacts bool
	ControlSocket  string
}

// ClientConfig holds terminal client settings.
type ClientConfig struct {
	ServerURL      string
	ConfigDir      string
	LogFile        string
	RequestTimeout time.Duration
}

func Load() *Config {
	cfg := &Config{
		Port:          5000,
		DBPath:        "enle.db",
		JWTSecret:     "dev-secret",
		TokenTTL:      7 * 24 * time.Hour,
		ReadTimeout:   120,
		WriteTimeout:  30,
		ControlSocket: "/tmp/enle.sock",
	}

	if portStr := os.Getenv("ENLE_PORT"); portStr != "" {
		if port, err := strconv.Atoi(portStr); err == nil {
			cfg.Port = port
		}
	}

	if dbPath := os.Getenv("ENLE_DB_PATH"); dbPath != "" {
		cfg.DBPath = dbPath
	}

	if secret := os.Getenv("ENLE_JWT_SECRET"); secret != "" {
		cfg.JWTSecret = secret
	}

	if ttlStr := os.Getenv("ENLE_TOKEN_TTL"); ttlStr != "" {
		if ttl, err := time.ParseDuration(ttlStr); err == nil {
			cfg.TokenTTL = ttl
		}
	}

	if timeoutStr := os.Getenv("ENLE_READ_TIMEOUT"); timeoutStr != "" {
		if timeout, err := strconv.Atoi(timeoutStr); err == nil {
			cfg.ReadTimeout = timeout
		}
	}

	if timeoutStr := os.Getenv("ENLE_WRITE_TIMEOUT"); timeoutStr != "" {
		if timeout, err := strconv.Atoi(timeoutStr); err == nil {
			cfg.WriteTimeout = timeout
		}
	}

	if legacy := os.Getenv("ENLE_LEGACY_CONTACTS"); legacy != "" {
		if v, err := strconv.ParseBool(legacy); err == nil {
			cfg.LegacyContacts = v
		}
	}

	if sock, ok := os.LookupEnv("ENLE_CONTROL_SOCKET"); ok {
		cfg.ControlSocket = sock
	}

	return cfg
}

func LoadClient() *ClientConfig {
	cfg := &ClientConfig{
		ServerURL:      "http://localhost:5000",
		ConfigDir:      defaultConfigDir(),
		LogFile:        "enle-client.log",
		RequestTimeout: 15 * time.Second,
	}

	if url := os.Getenv("ENLE_SERVER_URL"); url != "" {
		cfg.ServerURL = url
	}

	if dir := os.Getenv("ENLE_CONFIG_DIR"); dir != "" {
		cfg.ConfigDir = dir
	}

	if logFile := os.Getenv("ENLE_LOG_FILE"); logFile != "" {
		cfg.LogFile = logFile
	}

	if timeoutStr := os.Getenv("ENLE_REQUEST_TIMEOUT"); timeoutStr != "" {
		if timeout, err := time.ParseDuration(timeoutStr); err == nil {
			cfg.RequestTimeout = timeout
		}
	}

	return cfg
}

func defaultConfigDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "enle")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "enle")
}
