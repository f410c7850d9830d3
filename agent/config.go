package agent

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/auk/pkg/llmfactory"
	"github.com/effective-security/auk/tools/tavily"
	"github.com/effective-security/x/configloader"
	"github.com/effective-security/x/values"
	"github.com/go-playground/validator/v10"
)

const (
	// DefaultModel is the chat model of the agent
	DefaultModel = "mimo-v2-flash"
	// DefaultSystemPrompt is the system prompt of the agent
	DefaultSystemPrompt = "你是一个智能助手"
	// DefaultImageURL is returned by the static image generator
	DefaultImageURL = "https://ik.imagekit.io/siteli6503/generated-images/gemini-1765890124897-0_ly5MpqXId.png"
	// DefaultTenantID is used when the config has no tenant
	DefaultTenantID = "default"
	// DefaultCheckpointTTL is the expiration of the Redis keys
	DefaultCheckpointTTL = 24 * time.Hour
)

// StoreKind is the kind of the history and checkpoint store
type StoreKind string

const (
	StoreMemory StoreKind = "memory"
	StoreRedis  StoreKind = "redis"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Config of the agent
type Config struct {
	// Model is the preferred model name, see llmfactory.Factory.ModelByName
	Model string `json:"model,omitempty" yaml:"model,omitempty"`
	// SystemPrompt is a text/template with sprig functions
	SystemPrompt string `json:"system_prompt,omitempty" yaml:"system_prompt,omitempty"`
	// ImageURLs are returned by the image generation tool
	ImageURLs []string `json:"image_urls,omitempty" yaml:"image_urls,omitempty" validate:"dive,url"`
	// TenantID is the tenant of the chats
	TenantID string `json:"tenant_id,omitempty" yaml:"tenant_id,omitempty"`
	// MaxToolCalls limits the tool calls of a turn
	MaxToolCalls int `json:"max_tool_calls,omitempty" yaml:"max_tool_calls,omitempty" validate:"gte=0"`

	// LLM configures the providers, when empty the OpenAI provider
	// is configured from OPENAI_API_KEY and OPENAI_BASE_URL environment variables
	LLM llmfactory.Config `json:"llm" yaml:"llm"`
	// Store configures the chat history and the pending interrupts
	Store StoreConfig `json:"store" yaml:"store"`
	// Tavily enables the web search tool
	Tavily *tavily.Config `json:"tavily,omitempty" yaml:"tavily,omitempty"`
}

// StoreConfig of the chat history and checkpoints
type StoreConfig struct {
	Kind StoreKind `json:"kind,omitempty" yaml:"kind,omitempty" validate:"omitempty,oneof=memory redis"`
	// RedisURL is required for the redis store, e.g. redis://localhost:6379/0
	RedisURL string `json:"redis_url,omitempty" yaml:"redis_url,omitempty" validate:"required_if=Kind redis"`
	Prefix   string `json:"prefix,omitempty" yaml:"prefix,omitempty"`
	// TTL is a duration string, e.g. 24h
	TTL string `json:"ttl,omitempty" yaml:"ttl,omitempty"`
}

// GetTTL returns the expiration of the stored chats
func (c *StoreConfig) GetTTL() (time.Duration, error) {
	if c.TTL == "" {
		return DefaultCheckpointTTL, nil
	}
	ttl, err := time.ParseDuration(c.TTL)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid store TTL %q", c.TTL)
	}
	return ttl, nil
}

// DefaultConfig returns the config of the reference agent
func DefaultConfig() *Config {
	cfg := new(Config)
	cfg.SetDefaults()
	return cfg
}

// SetDefaults sets the empty values to the defaults
func (c *Config) SetDefaults() {
	c.Model = values.StringsCoalesce(c.Model, DefaultModel)
	c.SystemPrompt = values.StringsCoalesce(c.SystemPrompt, DefaultSystemPrompt)
	c.TenantID = values.StringsCoalesce(c.TenantID, DefaultTenantID)
	c.Store.Kind = StoreKind(values.StringsCoalesce(string(c.Store.Kind), string(StoreMemory)))
	if len(c.ImageURLs) == 0 {
		c.ImageURLs = []string{DefaultImageURL}
	}
}

// Validate returns an error if the config is invalid
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "invalid agent config")
	}
	if len(c.LLM.Providers) > 0 {
		if err := c.LLM.Validate(); err != nil {
			return err
		}
	}
	if _, err := c.Store.GetTTL(); err != nil {
		return err
	}
	return nil
}

// LoadConfig loads the config from the file and applies the defaults,
// the environment variables in the file are expanded
func LoadConfig(file string) (*Config, error) {
	cfg := new(Config)
	if file != "" {
		if err := configloader.UnmarshalAndExpand(file, cfg); err != nil {
			return nil, err
		}
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
