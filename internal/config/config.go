package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/tgpoker/tablesync/internal/conn"
	"github.com/tgpoker/tablesync/internal/resync"
)

// Config carries everything the sync engine needs to reach the backend.
// Values come from the environment; main loads a .env first via godotenv.
type Config struct {
	WSBase         string        // base URL of the push transport, e.g. wss://host
	APIBase        string        // base URL of the pull endpoints
	UserID         string        // viewer identity for my-tables pulls
	ReconnectDelay time.Duration
	ResyncInterval time.Duration
}

func FromEnv() Config {
	return Config{
		WSBase:         envString("POKER_WS_BASE", "ws://localhost:8080"),
		APIBase:        envString("POKER_API_BASE", "http://localhost:8080"),
		UserID:         envString("POKER_USER_ID", ""),
		ReconnectDelay: envDuration("POKER_RECONNECT_DELAY", conn.DefaultReconnectDelay),
		ResyncInterval: envDuration("POKER_RESYNC_INTERVAL", resync.DefaultInterval),
	}
}

// TableWS is the push channel endpoint for one table.
func (c Config) TableWS(tableID int64) string {
	return fmt.Sprintf("%s/ws?table=%d", c.WSBase, tableID)
}

// LobbyWS is the lobby channel endpoint.
func (c Config) LobbyWS() string {
	return c.WSBase + "/ws/lobby"
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		return d
	}
	if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
		return time.Duration(ms) * time.Millisecond
	}
	return fallback
}
