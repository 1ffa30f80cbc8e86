package engine

import (
	"os"
	"strconv"
	"time"
)

// Config carries the environment-driven settings for assembling a stack.
// Zero values mean "use the package default".
type Config struct {
	AnthropicAPIKey string

	EmbedURL   string
	EmbedModel string
	MemoryDir  string

	MaxSteps     int
	CallTimeout  time.Duration
	ChunkSize    int
	ChunkOverlap int
}

// FromEnv reads configuration from the environment.
//
//	ANTHROPIC_API_KEY        provider credential
//	LOOPAGENT_EMBED_URL      ollama embeddings endpoint
//	LOOPAGENT_EMBED_MODEL    embedding model name
//	LOOPAGENT_MEMORY_DIR     persistence directory, empty disables persistence
//	LOOPAGENT_MAX_STEPS      iteration ceiling
//	LOOPAGENT_CALL_TIMEOUT   per-call timeout, Go duration syntax
//	LOOPAGENT_CHUNK_SIZE     document ingest chunk size in words
//	LOOPAGENT_CHUNK_OVERLAP  document ingest chunk overlap in words
func FromEnv() Config {
	return Config{
		AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
		EmbedURL:        os.Getenv("LOOPAGENT_EMBED_URL"),
		EmbedModel:      os.Getenv("LOOPAGENT_EMBED_MODEL"),
		MemoryDir:       os.Getenv("LOOPAGENT_MEMORY_DIR"),
		MaxSteps:        envInt("LOOPAGENT_MAX_STEPS"),
		CallTimeout:     envDuration("LOOPAGENT_CALL_TIMEOUT"),
		ChunkSize:       envInt("LOOPAGENT_CHUNK_SIZE"),
		ChunkOverlap:    envInt("LOOPAGENT_CHUNK_OVERLAP"),
	}
}

// Options converts the config into orchestrator options, skipping zero
// values.
func (c Config) Options() []Option {
	var opts []Option
	if c.MaxSteps > 0 {
		opts = append(opts, WithMaxSteps(c.MaxSteps))
	}
	if c.CallTimeout > 0 {
		opts = append(opts, WithCallTimeout(c.CallTimeout))
	}
	return opts
}

func envInt(key string) int {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

func envDuration(key string) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0
	}
	return d
}
