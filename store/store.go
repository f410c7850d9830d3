// Package store keeps the chat history of the assistants,
// the chat is identified by the tenant and chat IDs of the context.
package store

import (
	"context"
	"time"

	"github.com/effective-security/auk/pkg/llms"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/auk", "store")

// ChatInfo is the chat metadata
type ChatInfo struct {
	TenantID  string         `json:"tenant_id" yaml:"tenant_id"`
	ChatID    string         `json:"chat_id" yaml:"chat_id"`
	Title     string         `json:"title,omitempty" yaml:"title,omitempty"`
	CreatedAt time.Time      `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time      `json:"updated_at" yaml:"updated_at"`
	Metadata  map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	Messages  []llms.Message `json:"messages,omitempty" yaml:"-"`
}

// MessageStore is the chat history
type MessageStore interface {
	// Messages returns the history of the chat from context
	Messages(ctx context.Context) []llms.Message
	// Add appends messages to the history of the chat from context
	Add(ctx context.Context, msgs ...llms.Message) error
	// Reset deletes the chat from context
	Reset(ctx context.Context) error

	// UpdateChat updates the title and merges the metadata of the chat from context
	UpdateChat(ctx context.Context, title string, metadata map[string]any) (*ChatInfo, error)
	// ListChats returns the chat IDs of the tenant from context
	ListChats(ctx context.Context) ([]string, error)
	// GetChatInfo returns the chat with messages,
	// if id is empty then the chat ID from context is used
	GetChatInfo(ctx context.Context, id string) (*ChatInfo, error)
}

func newChatInfo(tenantID, chatID string) *ChatInfo {
	now := time.Now().UTC()
	return &ChatInfo{
		TenantID:  tenantID,
		ChatID:    chatID,
		Title:     "New Chat",
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (c *ChatInfo) update(title string, metadata map[string]any) {
	if title != "" {
		c.Title = title
	}
	if len(metadata) > 0 {
		if c.Metadata == nil {
			c.Metadata = make(map[string]any, len(metadata))
		}
		for k, v := range metadata {
			c.Metadata[k] = v
		}
	}
	c.UpdatedAt = time.Now().UTC()
}
