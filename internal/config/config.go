package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds the runtime settings for every subsystem.
type Config struct {
	HTTP      *HTTPConfig      `json:"http"`
	WebSocket *WebSocketConfig `json:"websocket"`
	Tick      *TickConfig      `json:"tick"`
	Journal   *JournalConfig   `json:"journal"`
}

type HTTPConfig struct {
	Host         string        `json:"host"`
	Port         int           `json:"port"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
}

// WebSocketConfig controls per-connection transport behavior.
// MaxMissedHeartbeats is the number of unanswered pings tolerated before a
// non-backgrounded connection is forcibly terminated.
type WebSocketConfig struct {
	PingInterval        time.Duration `json:"ping_interval"`
	WriteTimeout        time.Duration `json:"write_timeout"`
	MaxMissedHeartbeats int           `json:"max_missed_heartbeats"`
	SendBuffer          int           `json:"send_buffer"`
}

// TickConfig controls the authoritative update loop.
type TickConfig struct {
	Rate             int           `json:"rate"`              // ticks per second
	SnapshotInterval time.Duration `json:"snapshot_interval"` // full snapshot cadence per session
	MessageLogCap    int           `json:"message_log_cap"`   // retained chat messages per session
	SweepInterval    time.Duration `json:"sweep_interval"`    // empty-session sweep cadence
}

// JournalConfig controls the SQLite event journal. An empty Path disables
// journaling entirely.
type JournalConfig struct {
	Path    string        `json:"path"`
	Timeout time.Duration `json:"timeout"`
}

// DefaultConfig returns production defaults: 30 Hz tick, 5 s snapshots,
// 100-message chat log, 10 minute sweep.
func DefaultConfig() *Config {
	return &Config{
		HTTP: &HTTPConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		WebSocket: &WebSocketConfig{
			PingInterval:        30 * time.Second,
			WriteTimeout:        10 * time.Second,
			MaxMissedHeartbeats: 3,
			SendBuffer:          100,
		},
		Tick: &TickConfig{
			Rate:             30,
			SnapshotInterval: 5 * time.Second,
			MessageLogCap:    100,
			SweepInterval:    10 * time.Minute,
		},
		Journal: &JournalConfig{
			Path:    "./tacmap.db",
			Timeout: 30 * time.Second,
		},
	}
}

// Validate rejects configurations that would fail at runtime.
func (c *Config) Validate() error {
	if c.HTTP == nil {
		return fmt.Errorf("http configuration is required")
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http port must be between 1 and 65535")
	}
	if c.HTTP.Host == "" {
		return fmt.Errorf("http host cannot be empty")
	}
	if c.HTTP.ReadTimeout <= 0 || c.HTTP.WriteTimeout <= 0 {
		return fmt.Errorf("http timeouts must be positive")
	}
	if c.WebSocket == nil {
		return fmt.Errorf("websocket configuration is required")
	}
	if c.WebSocket.PingInterval <= 0 {
		return fmt.Errorf("websocket ping interval must be positive")
	}
	if c.WebSocket.WriteTimeout <= 0 {
		return fmt.Errorf("websocket write timeout must be positive")
	}
	if c.WebSocket.MaxMissedHeartbeats <= 0 {
		return fmt.Errorf("websocket max missed heartbeats must be positive")
	}
	if c.WebSocket.SendBuffer <= 0 {
		return fmt.Errorf("websocket send buffer must be positive")
	}
	if c.Tick == nil {
		return fmt.Errorf("tick configuration is required")
	}
	if c.Tick.Rate <= 0 {
		return fmt.Errorf("tick rate must be positive")
	}
	if c.Tick.SnapshotInterval <= 0 {
		return fmt.Errorf("snapshot interval must be positive")
	}
	if c.Tick.MessageLogCap <= 0 {
		return fmt.Errorf("message log cap must be positive")
	}
	if c.Tick.SweepInterval <= 0 {
		return fmt.Errorf("sweep interval must be positive")
	}
	if c.Journal == nil {
		return fmt.Errorf("journal configuration is required")
	}
	if c.Journal.Path != "" && c.Journal.Timeout <= 0 {
		return fmt.Errorf("journal timeout must be positive")
	}
	return nil
}

// LoadFromEnv builds a configuration from defaults overridden by TACMAP_*
// environment variables.
func LoadFromEnv() *Config {
	config := DefaultConfig()

	if host := os.Getenv("TACMAP_HTTP_HOST"); host != "" {
		config.HTTP.Host = host
	}
	if port := os.Getenv("TACMAP_HTTP_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.HTTP.Port = p
		}
	}
	if readTimeout := os.Getenv("TACMAP_HTTP_READ_TIMEOUT"); readTimeout != "" {
		if timeout, err := time.ParseDuration(readTimeout); err == nil {
			config.HTTP.ReadTimeout = timeout
		}
	}
	if writeTimeout := os.Getenv("TACMAP_HTTP_WRITE_TIMEOUT"); writeTimeout != "" {
		if timeout, err := time.ParseDuration(writeTimeout); err == nil {
			config.HTTP.WriteTimeout = timeout
		}
	}
	if pingInterval := os.Getenv("TACMAP_WS_PING_INTERVAL"); pingInterval != "" {
		if interval, err := time.ParseDuration(pingInterval); err == nil {
			config.WebSocket.PingInterval = interval
		}
	}
	if wsWriteTimeout := os.Getenv("TACMAP_WS_WRITE_TIMEOUT"); wsWriteTimeout != "" {
		if timeout, err := time.ParseDuration(wsWriteTimeout); err == nil {
			config.WebSocket.WriteTimeout = timeout
		}
	}
	if missed := os.Getenv("TACMAP_WS_MAX_MISSED_HEARTBEATS"); missed != "" {
		if n, err := strconv.Atoi(missed); err == nil {
			config.WebSocket.MaxMissedHeartbeats = n
		}
	}
	if buffer := os.Getenv("TACMAP_WS_SEND_BUFFER"); buffer != "" {
		if n, err := strconv.Atoi(buffer); err == nil {
			config.WebSocket.SendBuffer = n
		}
	}
	if rate := os.Getenv("TACMAP_TICK_RATE"); rate != "" {
		if n, err := strconv.Atoi(rate); err == nil {
			config.Tick.Rate = n
		}
	}
	if snapshot := os.Getenv("TACMAP_SNAPSHOT_INTERVAL"); snapshot != "" {
		if interval, err := time.ParseDuration(snapshot); err == nil {
			config.Tick.SnapshotInterval = interval
		}
	}
	if logCap := os.Getenv("TACMAP_MESSAGE_LOG_CAP"); logCap != "" {
		if n, err := strconv.Atoi(logCap); err == nil {
			config.Tick.MessageLogCap = n
		}
	}
	if sweep := os.Getenv("TACMAP_SWEEP_INTERVAL"); sweep != "" {
		if interval, err := time.ParseDuration(sweep); err == nil {
			config.Tick.SweepInterval = interval
		}
	}
	if path, ok := os.LookupEnv("TACMAP_JOURNAL_PATH"); ok {
		config.Journal.Path = path
	}
	if timeout := os.Getenv("TACMAP_JOURNAL_TIMEOUT"); timeout != "" {
		if t, err := time.ParseDuration(timeout); err == nil {
			config.Journal.Timeout = t
		}
	}

	return config
}

// ConfigFile mirrors Config with string durations for JSON parsing.
type ConfigFile struct {
	HTTP      *HTTPConfigFile      `json:"http"`
	WebSocket *WebSocketConfigFile `json:"websocket"`
	Tick      *TickConfigFile      `json:"tick"`
	Journal   *JournalConfigFile   `json:"journal"`
}

type HTTPConfigFile struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	ReadTimeout  string `json:"read_timeout"`
	WriteTimeout string `json:"write_timeout"`
}

type WebSocketConfigFile struct {
	PingInterval        string `json:"ping_interval"`
	WriteTimeout        string `json:"write_timeout"`
	MaxMissedHeartbeats int    `json:"max_missed_heartbeats"`
	SendBuffer          int    `json:"send_buffer"`
}

type TickConfigFile struct {
	Rate             int    `json:"rate"`
	SnapshotInterval string `json:"snapshot_interval"`
	MessageLogCap    int    `json:"message_log_cap"`
	SweepInterval    string `json:"sweep_interval"`
}

type JournalConfigFile struct {
	Path    string `json:"path"`
	Timeout string `json:"timeout"`
}

// LoadFromFile reads a JSON configuration file and overlays it on the
// defaults. Durations are given as strings ("5s", "10m").
func LoadFromFile(filepath string) (*Config, error) {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", filepath, err)
	}

	var configFile ConfigFile
	if err := json.Unmarshal(data, &configFile); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", filepath, err)
	}

	config := DefaultConfig()

	if configFile.HTTP != nil {
		if configFile.HTTP.Host != "" {
			config.HTTP.Host = configFile.HTTP.Host
		}
		if configFile.HTTP.Port > 0 {
			config.HTTP.Port = configFile.HTTP.Port
		}
		if configFile.HTTP.ReadTimeout != "" {
			if timeout, err := time.ParseDuration(configFile.HTTP.ReadTimeout); err == nil {
				config.HTTP.ReadTimeout = timeout
			}
		}
		if configFile.HTTP.WriteTimeout != "" {
			if timeout, err := time.ParseDuration(configFile.HTTP.WriteTimeout); err == nil {
				config.HTTP.WriteTimeout = timeout
			}
		}
	}

	if configFile.WebSocket != nil {
		if configFile.WebSocket.PingInterval != "" {
			if interval, err := time.ParseDuration(configFile.WebSocket.PingInterval); err == nil {
				config.WebSocket.PingInterval = interval
			}
		}
		if configFile.WebSocket.WriteTimeout != "" {
			if timeout, err := time.ParseDuration(configFile.WebSocket.WriteTimeout); err == nil {
				config.WebSocket.WriteTimeout = timeout
			}
		}
		if configFile.WebSocket.MaxMissedHeartbeats > 0 {
			config.WebSocket.MaxMissedHeartbeats = configFile.WebSocket.MaxMissedHeartbeats
		}
		if configFile.WebSocket.SendBuffer > 0 {
			config.WebSocket.SendBuffer = configFile.WebSocket.SendBuffer
		}
	}

	if configFile.Tick != nil {
		if configFile.Tick.Rate > 0 {
			config.Tick.Rate = configFile.Tick.Rate
		}
		if configFile.Tick.SnapshotInterval != "" {
			if interval, err := time.ParseDuration(configFile.Tick.SnapshotInterval); err == nil {
				config.Tick.SnapshotInterval = interval
			}
		}
		if configFile.Tick.MessageLogCap > 0 {
			config.Tick.MessageLogCap = configFile.Tick.MessageLogCap
		}
		if configFile.Tick.SweepInterval != "" {
			if interval, err := time.ParseDuration(configFile.Tick.SweepInterval); err == nil {
				config.Tick.SweepInterval = interval
			}
		}
	}

	if configFile.Journal != nil {
		config.Journal.Path = configFile.Journal.Path
		if configFile.Journal.Timeout != "" {
			if timeout, err := time.ParseDuration(configFile.Journal.Timeout); err == nil {
				config.Journal.Timeout = timeout
			}
		}
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", filepath, err)
	}

	return config, nil
}

// LoadConfigWithPrecedence resolves configuration as file > environment >
// defaults. File errors fall back silently so environment and defaults
// still apply.
func LoadConfigWithPrecedence(filepath string) *Config {
	config := LoadFromEnv()

	if filepath != "" {
		if fileConfig, err := LoadFromFile(filepath); err == nil {
			config = fileConfig
		}
	}

	return config
}
