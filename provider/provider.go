package provider

import (
	"context"
	"errors"

	"github.com/contentpilot/contentpilot/config"
	"github.com/contentpilot/contentpilot/models"
	openai_provider "github.com/contentpilot/contentpilot/provider/openai"
)

// Client represents different LLM providers
type Client string

const (
	OpenAI    Client = "openai"
	Anthropic Client = "anthropic"
)

// Provider is the external text-generation capability consumed by the
// run orchestrator: topic proposals from a business profile, and a
// publishable article for a chosen topic.
type Provider interface {
	GenerateTopics(ctx context.Context, profile models.BusinessProfile) ([]models.Topic, error)
	GenerateArticle(ctx context.Context, profile models.BusinessProfile, topic models.Topic) (models.Article, error)
}

// NewProvider creates a new LLM client based on the provided configuration
func NewProvider(client Client, cfg config.OpenAIConfig) (Provider, error) {
	switch client {
	case OpenAI:
		if cfg.APIKey == "" {
			return nil, errors.New("openai api key not configured (providers.openai.api_key)")
		}
		return openai_provider.NewOpenAIClient(
			cfg.APIKey,
			cfg.CompletionModel,
			cfg.Temperature,
			cfg.MaxTokens,
			cfg.Timeout,
		), nil
	case Anthropic:
		return nil, errors.New("anthropic client not implemented yet")
	default:
		return nil, errors.New("unsupported LLM provider")
	}
}
