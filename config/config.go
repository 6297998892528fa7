package config

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
)

const (
	defaultListenAddr   = ":8080"
	defaultDatabasePath = "pageperms.db"
	defaultTokenTTL     = 24
)

type Config struct {
	// http server
	ListenAddr     string
	AllowedOrigins []string

	// database path
	DatabasePath string

	// role policy configuration (JSON file: mode + role action lists)
	RolePolicyPath string

	// optional per-namespace restriction levels (JSON file)
	NamespaceLevelsPath string

	// optional read-only maintenance lock file
	ReadOnlyLockPath string

	// auth token settings
	JWTSecret     string
	TokenTTLHours int

	// logging
	LogLevel string
}

func getEnvOrDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvIntOrDefault(envVar string, defaultVal int) int {
	valStr := os.Getenv(envVar)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(valStr)
	if err != nil || val <= 0 {
		log.Printf("Warning: Invalid %s '%s'. Using default %d. Error: %v", envVar, valStr, defaultVal, err)
		return defaultVal
	}
	return val
}

func LoadConfig() (Config, error) {
	policyPath := os.Getenv("ROLE_POLICY_PATH")
	if policyPath == "" {
		return Config{}, fmt.Errorf("ROLE_POLICY_PATH is required")
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET is required")
	}

	origins := strings.Split(getEnvOrDefault("ALLOWED_ORIGINS", "http://localhost:5173"), ",")
	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}

	cfg := Config{
		ListenAddr:          getEnvOrDefault("LISTEN_ADDR", defaultListenAddr),
		AllowedOrigins:      origins,
		DatabasePath:        getEnvOrDefault("DATABASE_PATH", defaultDatabasePath),
		RolePolicyPath:      policyPath,
		NamespaceLevelsPath: os.Getenv("NAMESPACE_LEVELS_PATH"),
		ReadOnlyLockPath:    os.Getenv("READ_ONLY_LOCK_PATH"),
		JWTSecret:           jwtSecret,
		TokenTTLHours:       getEnvIntOrDefault("TOKEN_TTL_HOURS", defaultTokenTTL),
		LogLevel:            getEnvOrDefault("LOG_LEVEL", "info"),
	}

	return cfg, nil
}

// LoadNamespaceLevels reads the optional per-namespace restriction level map.
// JSON object keys are namespace ids as strings (JSON has no integer keys).
// An empty path means no namespace is excluded from the feature.
func LoadNamespaceLevels(path string) (map[int][]string, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read namespace levels file %s: %w", path, err)
	}
	var raw map[string][]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse namespace levels file %s: %w", path, err)
	}
	levels := make(map[int][]string, len(raw))
	for key, value := range raw {
		ns, err := strconv.Atoi(key)
		if err != nil {
			return nil, fmt.Errorf("invalid namespace id %q in %s: %w", key, path, err)
		}
		levels[ns] = value
	}
	return levels, nil
}
