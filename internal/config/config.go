package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jaminalder/codex-connect4/internal/domain"
)

type Config struct {
	HTTPAddr          string
	Columns           int
	Rows              int
	ConnectLength     int
	StartingPlayer    domain.Cell
	Hotseat           bool
	SessionTTL        time.Duration
	SweepInterval     time.Duration
	HeartbeatInterval time.Duration
	LogLevel          string
	LogFormat         string
}

// Load reads the configuration from the environment, falling back to defaults.
func Load() Config {
	return Config{
		HTTPAddr:          GetEnv("ADDR", ":8080"),
		Columns:           GetEnvAsInt("BOARD_COLUMNS", 7),
		Rows:              GetEnvAsInt("BOARD_ROWS", 6),
		ConnectLength:     GetEnvAsInt("CONNECT_LENGTH", 4),
		StartingPlayer:    parsePlayer(GetEnv("STARTING_PLAYER", "red")),
		Hotseat:           GetEnvAsBool("HOTSEAT", true),
		SessionTTL:        GetEnvAsDuration("SESSION_TTL", 2*time.Hour),
		SweepInterval:     GetEnvAsDuration("SWEEP_INTERVAL", 10*time.Minute),
		HeartbeatInterval: GetEnvAsDuration("HEARTBEAT_INTERVAL", 15*time.Second),
		LogLevel:          GetEnv("LOG_LEVEL", "info"),
		LogFormat:         GetEnv("LOG_FORMAT", "json"),
	}
}

// Game returns the rules new games are created with.
func (c Config) Game() domain.Config {
	return domain.Config{
		Columns:        c.Columns,
		Rows:           c.Rows,
		ConnectLength:  c.ConnectLength,
		StartingPlayer: c.StartingPlayer,
	}
}

func parsePlayer(v string) domain.Cell {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "yellow", "2":
		return domain.Yellow
	case "red", "1":
		return domain.Red
	default:
		log.Printf("Invalid STARTING_PLAYER %q, using red", v)
		return domain.Red
	}
}

func GetEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func GetEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Invalid integer value for %s: %s, using default: %d", key, valueStr, defaultValue)
		return defaultValue
	}
	return value
}

func GetEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		log.Printf("Invalid boolean value for %s: %s, using default: %t", key, valueStr, defaultValue)
		return defaultValue
	}
	return value
}

func GetEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil || value <= 0 {
		log.Printf("Invalid duration value for %s: %s, using default: %s", key, valueStr, defaultValue)
		return defaultValue
	}
	return value
}
