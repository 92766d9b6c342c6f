package config

const (
	defaultAPITarget     = "http://localhost:8081"
	defaultChatPath      = "/v1/chat"
	defaultTimeout       = "5m"
	defaultFrameInterval = "16ms"

	defaultServerListen = ":8081"

	defaultKafkaTopic = "agentconsole.responses"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Client: ClientConfig{
			APITarget:     defaultAPITarget,
			ChatPath:      defaultChatPath,
			Timeout:       defaultTimeout,
			FrameInterval: defaultFrameInterval,
		},
		Server: ServerConfig{
			Listen: defaultServerListen,
		},
		EventStream: EventStreamConfig{
			KafkaTopic: defaultKafkaTopic,
		},
	}
}

// applyDefaults fills zero-value fields in cfg with values from NewDefaultConfig().
func applyDefaults(cfg *Config) {
	d := NewDefaultConfig()

	fill := func(dst *string, def string) {
		if *dst == "" {
			*dst = def
		}
	}

	if cfg.Version == 0 {
		cfg.Version = d.Version
	}

	fill(&cfg.Client.APITarget, d.Client.APITarget)
	fill(&cfg.Client.ChatPath, d.Client.ChatPath)
	fill(&cfg.Client.Timeout, d.Client.Timeout)
	fill(&cfg.Client.FrameInterval, d.Client.FrameInterval)
	fill(&cfg.Server.Listen, d.Server.Listen)
	fill(&cfg.EventStream.KafkaTopic, d.EventStream.KafkaTopic)
}
