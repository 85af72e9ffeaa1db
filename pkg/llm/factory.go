package llm

import (
	"fmt"

	"go.uber.org/zap"
)

// Provider identifies which backend a client talks to.
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
)

// FactoryConfig holds everything needed to build the client set for the
// pipeline: a default model for complex generation, a fast model for cheap
// calls, and an embedding endpoint (always OpenAI-compatible).
type FactoryConfig struct {
	Provider Provider
	Endpoint string
	APIKey   string

	Model     string // default, more capable model
	FastModel string // cheaper model for edits and simple generation

	EmbeddingEndpoint string
	EmbeddingAPIKey   string
	EmbeddingModel    string
}

// ClientSet bundles the clients the pipeline needs.
type ClientSet struct {
	// Default handles complex fresh generation and decomposition decisions.
	Default LLMClient
	// Fast handles SQL edits and low-complexity generation.
	Fast LLMClient
	// Embedding serves vector lookups; may equal Default for OpenAI setups.
	Embedding LLMClient
	// EmbeddingModel is the model name passed on embedding calls.
	EmbeddingModel string
}

// NewClientSet builds the client set for the configured provider.
func NewClientSet(cfg *FactoryConfig, logger *zap.Logger) (*ClientSet, error) {
	if cfg.FastModel == "" {
		cfg.FastModel = cfg.Model
	}

	var def, fast LLMClient
	var err error

	switch cfg.Provider {
	case ProviderAnthropic:
		def, err = NewAnthropicClient(&Config{Model: cfg.Model, APIKey: cfg.APIKey}, logger)
		if err != nil {
			return nil, fmt.Errorf("create default client: %w", err)
		}
		fast, err = NewAnthropicClient(&Config{Model: cfg.FastModel, APIKey: cfg.APIKey}, logger)
		if err != nil {
			return nil, fmt.Errorf("create fast client: %w", err)
		}
	case ProviderOpenAI, "":
		def, err = NewClient(&Config{Endpoint: cfg.Endpoint, Model: cfg.Model, APIKey: cfg.APIKey}, logger)
		if err != nil {
			return nil, fmt.Errorf("create default client: %w", err)
		}
		fast, err = NewClient(&Config{Endpoint: cfg.Endpoint, Model: cfg.FastModel, APIKey: cfg.APIKey}, logger)
		if err != nil {
			return nil, fmt.Errorf("create fast client: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}

	// Embeddings always go through an OpenAI-compatible endpoint.
	embEndpoint := cfg.EmbeddingEndpoint
	if embEndpoint == "" {
		embEndpoint = cfg.Endpoint
	}
	embKey := cfg.EmbeddingAPIKey
	if embKey == "" {
		embKey = cfg.APIKey
	}

	embModel := cfg.EmbeddingModel
	if embModel == "" {
		embModel = "text-embedding-3-small"
	}

	var emb LLMClient
	if embEndpoint != "" {
		emb, err = NewClient(&Config{Endpoint: embEndpoint, Model: embModel, APIKey: embKey}, logger)
		if err != nil {
			return nil, fmt.Errorf("create embedding client: %w", err)
		}
	}

	return &ClientSet{
		Default:        def,
		Fast:           fast,
		Embedding:      emb,
		EmbeddingModel: embModel,
	}, nil
}
