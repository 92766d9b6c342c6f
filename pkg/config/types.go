package config

import (
	"fmt"
	"strings"
	"time"
)

// Config represents the persistent agentconsole configuration stored as
// config.toml in the .agentconsole/ directory. The TOML layout uses
// sections for logical grouping.
type Config struct {
	Version     int               `toml:"version"`
	Client      ClientConfig      `toml:"client"`
	Server      ServerConfig      `toml:"server"`
	Storage     StorageConfig     `toml:"storage"`
	EventStream EventStreamConfig `toml:"eventstream"`
}

// ClientConfig holds settings for "agentconsole chat" and
// "agentconsole sessions". Durations are Go duration strings.
type ClientConfig struct {
	APITarget     string `toml:"api_target,omitempty"`
	ChatPath      string `toml:"chat_path,omitempty"`
	AgentID       string `toml:"agent_id,omitempty"`
	Timeout       string `toml:"timeout,omitempty"`
	FrameInterval string `toml:"frame_interval,omitempty"`
}

// ServerConfig holds settings for the development backend.
type ServerConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// StorageConfig selects the session store of the development backend.
// With neither set, sessions are kept in memory.
type StorageConfig struct {
	SQLitePath  string `toml:"sqlite_path,omitempty"`
	PostgresDSN string `toml:"postgres_dsn,omitempty"`
}

// EventStreamConfig configures publishing of response-finished events.
// Publishing is disabled when no brokers are set.
type EventStreamConfig struct {
	KafkaBrokers string `toml:"kafka_brokers,omitempty"`
	KafkaTopic   string `toml:"kafka_topic,omitempty"`
}

// Brokers splits KafkaBrokers on commas, dropping blanks.
func (e EventStreamConfig) Brokers() []string {
	var out []string
	for _, b := range strings.Split(e.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

func stringKey(field func(c *Config) *string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error { *field(c) = v; return nil },
	}
}

func durationKey(name string, field func(c *Config) *string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error {
			if _, err := time.ParseDuration(v); err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = v
			return nil
		},
	}
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"client.api_target":         stringKey(func(c *Config) *string { return &c.Client.APITarget }),
	"client.chat_path":          stringKey(func(c *Config) *string { return &c.Client.ChatPath }),
	"client.agent_id":           stringKey(func(c *Config) *string { return &c.Client.AgentID }),
	"client.timeout":            durationKey("client.timeout", func(c *Config) *string { return &c.Client.Timeout }),
	"client.frame_interval":     durationKey("client.frame_interval", func(c *Config) *string { return &c.Client.FrameInterval }),
	"server.listen":             stringKey(func(c *Config) *string { return &c.Server.Listen }),
	"storage.sqlite_path":       stringKey(func(c *Config) *string { return &c.Storage.SQLitePath }),
	"storage.postgres_dsn":      stringKey(func(c *Config) *string { return &c.Storage.PostgresDSN }),
	"eventstream.kafka_brokers": stringKey(func(c *Config) *string { return &c.EventStream.KafkaBrokers }),
	"eventstream.kafka_topic":   stringKey(func(c *Config) *string { return &c.EventStream.KafkaTopic }),
}

// orderedKeys is the display order of configKeys, following the TOML layout.
var orderedKeys = []string{
	"client.api_target",
	"client.chat_path",
	"client.agent_id",
	"client.timeout",
	"client.frame_interval",
	"server.listen",
	"storage.sqlite_path",
	"storage.postgres_dsn",
	"eventstream.kafka_brokers",
	"eventstream.kafka_topic",
}
