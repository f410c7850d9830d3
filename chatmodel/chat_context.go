package chatmodel

import (
	"context"
	"strconv"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/x/values"
	"github.com/effective-security/xdb/pkg/flake"
)

// DefaultTenantID is used when the chat is created without a tenant.
const DefaultTenantID = "default"

// ChatContext is the context of a chat session: tenant, chat and the current run
type ChatContext interface {
	GetTenantID() string
	GetChatID() string
	// RunID returns the ID of the current run, unique per ChatContext
	RunID() string
	// AppData returns immutable app data
	AppData() any
	// GetMetadata retrieves metadata by key
	GetMetadata(key string) (value any, ok bool)
	// SetMetadata sets metadata by key
	SetMetadata(key string, value any)
	// SetChatID changes the chat ID, used when a new chat is started
	SetChatID(chatID string)
}

type chatContext struct {
	tenantID string
	runID    string
	appData  any
	metadata sync.Map

	lock   sync.RWMutex
	chatID string
}

func (c *chatContext) GetTenantID() string {
	return c.tenantID
}

func (c *chatContext) GetChatID() string {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.chatID
}

func (c *chatContext) SetChatID(chatID string) {
	c.lock.Lock()
	c.chatID = chatID
	c.lock.Unlock()
}

func (c *chatContext) RunID() string {
	return c.runID
}

func (c *chatContext) AppData() any {
	return c.appData
}

func (c *chatContext) GetMetadata(key string) (value any, ok bool) {
	return c.metadata.Load(key)
}

func (c *chatContext) SetMetadata(key string, value any) {
	c.metadata.Store(key, value)
}

// NewChatContext returns ChatContext,
// empty tenant defaults to DefaultTenantID and empty chat ID is generated.
func NewChatContext(tenantID, chatID string, appData any) ChatContext {
	return &chatContext{
		tenantID: values.StringsCoalesce(tenantID, DefaultTenantID),
		chatID:   values.StringsCoalesce(chatID, NewChatID()),
		runID:    NewChatID(),
		appData:  appData,
	}
}

type contextKey int

const (
	keyContext contextKey = iota
)

// WithChatContext returns a new context with ChatContext value
func WithChatContext(ctx context.Context, chatCtx ChatContext) context.Context {
	return context.WithValue(ctx, keyContext, chatCtx)
}

// GetChatContext retrieves the ChatContext from the context
func GetChatContext(ctx context.Context) ChatContext {
	if v, ok := ctx.Value(keyContext).(ChatContext); ok {
		return v
	}
	return nil
}

// NewFromContext returns a new background context with the ChatContext of ctx,
// used for work that must outlive the request.
func NewFromContext(ctx context.Context) context.Context {
	if c := GetChatContext(ctx); c != nil {
		return WithChatContext(context.Background(), c)
	}
	return context.Background()
}

// GetChatID retrieves the chat ID from the provided context.
// If the context does not contain a ChatContext, it returns an empty string.
func GetChatID(ctx context.Context) string {
	if v := GetChatContext(ctx); v != nil {
		return v.GetChatID()
	}
	return ""
}

// SetChatID sets the chat ID on the ChatContext of ctx.
func SetChatID(ctx context.Context, chatID string) (context.Context, error) {
	c := GetChatContext(ctx)
	if c == nil {
		return ctx, errors.WithStack(ErrInvalidChatContext)
	}
	c.SetChatID(chatID)
	return ctx, nil
}

// GetTenantAndChatID returns tenant and chat IDs from the context.
func GetTenantAndChatID(ctx context.Context) (string, string, error) {
	c := GetChatContext(ctx)
	if c == nil {
		return "", "", errors.WithStack(ErrInvalidChatContext)
	}
	chatID := c.GetChatID()
	if chatID == "" {
		return "", "", errors.WithMessage(ErrInvalidChatContext, "missing chat ID")
	}
	return c.GetTenantID(), chatID, nil
}

// NewChatID generates a new chat ID using the flake ID generator.
func NewChatID() string {
	return strconv.FormatUint(flake.DefaultIDGenerator.NextID(), 10)
}
