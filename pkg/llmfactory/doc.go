// Package llmfactory creates LLM models from a YAML configuration,
// selecting the provider and model by type, by name, or by the tool and assistant mappings.
package llmfactory
