package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

const DefaultSystemPrompt = "You are Nuvio, an iOS App used from students to learn or speedup their learning path."

type Config struct {
	ChatEndpoint   string        `env:"CHAT_ENDPOINT" envDefault:"http://localhost:3035/v1/responses"`
	Model          string        `env:"CHAT_MODEL" envDefault:"gpt-5-nano"`
	SystemPrompt   string        `env:"SYSTEM_PROMPT" envDefault:"You are Nuvio, an iOS App used from students to learn or speedup their learning path."`
	ClientID       string        `env:"CLIENT_ID" envDefault:"Nuvio"`
	UserToken      string        `env:"USER_TOKEN"`
	LogLevel       string        `env:"LOG_LEVEL" envDefault:"info"`
	ReadTimeout    time.Duration `env:"READ_TIMEOUT" envDefault:"60s"`
	ConnectTimeout time.Duration `env:"CONNECT_TIMEOUT" envDefault:"15s"`

	// Telemetry sinks; empty disables them.
	DatabaseURL  string `env:"DATABASE_URL"`
	NATSStoreDir string `env:"NATS_STORE_DIR"`

	WriterBufferSize int `env:"WRITER_BUFFER_SIZE" envDefault:"10000"`
	WriterBatchSize  int `env:"WRITER_BATCH_SIZE" envDefault:"100"`
	WriterFlushMs    int `env:"WRITER_FLUSH_MS" envDefault:"100"`
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the stream client cannot run with.
func (c *Config) Validate() error {
	if c.ChatEndpoint == "" {
		return fmt.Errorf("CHAT_ENDPOINT is required")
	}
	if c.UserToken == "" {
		return fmt.Errorf("USER_TOKEN is required")
	}
	if c.Model == "" {
		return fmt.Errorf("CHAT_MODEL is required")
	}
	if c.ReadTimeout < 0 {
		return fmt.Errorf("READ_TIMEOUT must not be negative, got %s", c.ReadTimeout)
	}
	if c.WriterBatchSize <= 0 || c.WriterFlushMs <= 0 {
		return fmt.Errorf("WRITER_BATCH_SIZE and WRITER_FLUSH_MS must be positive")
	}
	return nil
}
