package llm

import (
	"errors"
	"fmt"
	"strings"

	"github.com/aktagon/llmkit/anthropic"
	"github.com/aktagon/llmkit/anthropic/types"

	"github.com/zundacast/zundacast/internal/config"
)

// Client is the narrow language-model surface the pipeline stages use.
// Invoke performs a free-text call; InvokeStructured constrains the reply to
// the given JSON schema and returns the raw JSON text.
type Client interface {
	Invoke(system, user string) (string, error)
	InvokeStructured(system, user, schema string) (string, error)
}

// AnthropicClient implements Client over the llmkit Anthropic bindings.
type AnthropicClient struct {
	apiKey   string
	settings types.RequestSettings
}

// NewAnthropic builds a client from config. The API key comes from
// anthropic_api_key (ANTHROPIC_API_KEY in the environment).
func NewAnthropic(cfg *config.Config) (*AnthropicClient, error) {
	if cfg == nil {
		return nil, errors.New("config must not be nil")
	}
	key := strings.TrimSpace(cfg.AnthropicAPIKey)
	if key == "" {
		return nil, errors.New("anthropic api key is not configured (set ANTHROPIC_API_KEY)")
	}

	return &AnthropicClient{
		apiKey: key,
		settings: types.RequestSettings{
			Model:       cfg.AnthropicModel,
			MaxTokens:   cfg.AnthropicMaxTokens,
			Temperature: cfg.AnthropicTemperature,
		},
	}, nil
}

// Invoke sends a free-text prompt and returns the model's reply text.
func (c *AnthropicClient) Invoke(system, user string) (string, error) {
	return c.prompt(system, user, "")
}

// InvokeStructured sends a prompt constrained to the given JSON schema and
// returns the structured reply as raw JSON text.
func (c *AnthropicClient) InvokeStructured(system, user, schema string) (string, error) {
	return c.prompt(system, user, schema)
}

func (c *AnthropicClient) prompt(system, user, schema string) (string, error) {
	response, err := anthropic.PromptWithSettings(system, user, schema, c.apiKey, c.settings)
	if err != nil {
		return "", fmt.Errorf("anthropic prompt: %w", err)
	}
	if len(response.Content) == 0 {
		return "", errors.New("anthropic returned no content")
	}
	return response.Content[0].Text, nil
}
