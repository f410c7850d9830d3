package llmfactory

import (
	"slices"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/auk/pkg/llms/openai"
	"github.com/effective-security/x/configloader"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// DefaultKey selects the model list for the tools or assistants without an entry
const DefaultKey = "default"

type Config struct {
	// Providers specifies the list of providers to use
	Providers []*ProviderConfig `json:"providers" yaml:"providers" validate:"dive,required"`
	// DefaultProvider specifies the default provider to use,
	// the first provider is used if empty
	DefaultProvider string `json:"default_provider" yaml:"default_provider"`
	// ToolModels maps the tool name to the preferred models.
	// Use `default: [<model_name>]` as the default models for tools.
	ToolModels map[string][]string `json:"tool_models" yaml:"tool_models" validate:"dive,min=1"`
	// AssistantModels maps the assistant name to the preferred models.
	// Use `default: [<model_name>]` as the default models for assistants.
	AssistantModels map[string][]string `json:"assistant_models" yaml:"assistant_models" validate:"dive,min=1"`
}

// ProviderConfig of an OpenAI-compatible provider
type ProviderConfig struct {
	Name            string       `json:"name" yaml:"name" validate:"required"`
	Token           string       `json:"token,omitempty" yaml:"token,omitempty"`
	DefaultModel    string       `json:"default_model,omitempty" yaml:"default_model,omitempty"`
	AvailableModels []string     `json:"available_models,omitempty" yaml:"available_models,omitempty" validate:"dive,required"`
	OpenAI          OpenAIConfig `json:"open_ai" yaml:"open_ai"`
}

// OpenAIConfig specifies the endpoint of the provider
type OpenAIConfig struct {
	BaseURL    string `json:"base_url,omitempty" yaml:"base_url,omitempty" validate:"omitempty,url"`
	APIVersion string `json:"api_version,omitempty" yaml:"api_version,omitempty"`
	// APIType specifies the type of API to use:
	// OPENAI|AZURE|AZURE_AD|PERPLEXITY
	APIType string `json:"api_type,omitempty" yaml:"api_type,omitempty"`
	// OrgID specifies which organization's quota and billing should be used when making API requests.
	OrgID string `json:"org_id,omitempty" yaml:"org_id,omitempty"`
}

// ParseProviderType returns the provider for the API type,
// the empty type is OpenAI
func ParseProviderType(apiType string) (openai.ProviderType, error) {
	switch strings.ToUpper(apiType) {
	case "OPENAI", "OPEN_AI", "":
		return openai.ProviderOpenAI, nil
	case "PERPLEXITY":
		return openai.ProviderPerplexity, nil
	case "AZURE":
		return openai.ProviderAzure, nil
	case "AZURE_AD":
		return openai.ProviderAzureAD, nil
	}
	return "", errors.Errorf("unsupported provider type: %s", apiType)
}

// ProviderType returns the provider of the API type
func (c *ProviderConfig) ProviderType() (openai.ProviderType, error) {
	return ParseProviderType(c.OpenAI.APIType)
}

// FindModel returns the first of models available at the provider,
// or the default model
func (c *ProviderConfig) FindModel(models ...string) string {
	for _, model := range models {
		if slices.Contains(c.AvailableModels, model) {
			return model
		}
	}
	return c.DefaultModel
}

// HasModel returns true if the provider serves the model
func (c *ProviderConfig) HasModel(model string) bool {
	return model != "" && (model == c.DefaultModel || slices.Contains(c.AvailableModels, model))
}

// Validate checks the providers, and that the tool and assistant models
// are served by at least one provider
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "invalid LLM config")
	}

	names := make(map[string]bool, len(c.Providers))
	for _, p := range c.Providers {
		if names[p.Name] {
			return errors.Errorf("duplicate provider: %s", p.Name)
		}
		names[p.Name] = true

		if _, err := p.ProviderType(); err != nil {
			return errors.WithMessagef(err, "provider %s", p.Name)
		}
	}
	if c.DefaultProvider != "" && !names[c.DefaultProvider] {
		return errors.Errorf("default provider not found: %s", c.DefaultProvider)
	}

	served := func(model string) bool {
		return slices.ContainsFunc(c.Providers, func(p *ProviderConfig) bool { return p.HasModel(model) })
	}
	for _, m := range []map[string][]string{c.ToolModels, c.AssistantModels} {
		for name, models := range m {
			if !slices.ContainsFunc(models, served) {
				return errors.Errorf("%s: models are not served by any provider: %s", name, strings.Join(models, ","))
			}
		}
	}
	return nil
}

// LoadConfig loads and validates the config file,
// an empty file name returns the empty config
func LoadConfig(file string) (*Config, error) {
	cfg := new(Config)
	if file == "" {
		return cfg, nil
	}

	err := configloader.UnmarshalAndExpand(file, cfg)
	if err != nil {
		return nil, err
	}
	if err = cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
