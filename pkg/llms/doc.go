// Package llms provides the provider neutral message model used by the
// assistants runtime: roles, content parts, tool calls and call options.
//
// Provider implementations live in subpackages and translate this model
// to the wire format of a concrete API.
package llms
