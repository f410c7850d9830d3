package store

import (
	"context"
	"encoding/json"
	"path"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/auk/chatmodel"
	"github.com/effective-security/auk/pkg/llms"
	"github.com/effective-security/xlog"
	"github.com/redis/go-redis/v9"
)

// The keys namespace:
// - `/<prefix>/auk/<tenantID>/messages/<chatID>` is the list of JSON messages
// - `/<prefix>/auk/<tenantID>/info/<chatID>` is the JSON chat metadata
// - `/<prefix>/auk/<tenantID>/chats` is the set of chat IDs of the tenant

// RedisStore is MessageStore backed by Redis
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

var _ MessageStore = (*RedisStore)(nil)

// NewRedisStore returns the Redis store,
// if ttl is not zero then the chat keys expire after ttl of inactivity.
func NewRedisStore(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: "/" + path.Join(prefix, "auk"),
		ttl:    ttl,
	}
}

func (m *RedisStore) messagesKey(tenantID, chatID string) string {
	return path.Join(m.prefix, tenantID, "messages", chatID)
}

func (m *RedisStore) infoKey(tenantID, chatID string) string {
	return path.Join(m.prefix, tenantID, "info", chatID)
}

func (m *RedisStore) chatsKey(tenantID string) string {
	return path.Join(m.prefix, tenantID, "chats")
}

func (m *RedisStore) Messages(ctx context.Context) []llms.Message {
	tenantID, chatID, err := chatmodel.GetTenantAndChatID(ctx)
	if err != nil {
		logger.ContextKV(ctx, xlog.ERROR, "reason", "GetTenantAndChatID", "err", err.Error())
		return nil
	}
	list, err := m.messages(ctx, tenantID, chatID)
	if err != nil {
		logger.ContextKV(ctx, xlog.ERROR, "reason", "messages", "chat_id", chatID, "err", err.Error())
		return nil
	}
	return list
}

func (m *RedisStore) messages(ctx context.Context, tenantID, chatID string) ([]llms.Message, error) {
	data, err := m.client.LRange(ctx, m.messagesKey(tenantID, chatID), 0, -1).Result()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get messages from Redis")
	}

	var list []llms.Message
	for _, item := range data {
		var msg llms.Message
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			logger.ContextKV(ctx, xlog.WARNING, "reason", "unmarshal", "chat_id", chatID, "err", err.Error())
			continue
		}
		list = append(list, msg)
	}
	return list, nil
}

func (m *RedisStore) Add(ctx context.Context, msgs ...llms.Message) error {
	tenantID, chatID, err := chatmodel.GetTenantAndChatID(ctx)
	if err != nil {
		return err
	}
	if len(msgs) == 0 {
		return nil
	}

	values := make([]any, 0, len(msgs))
	for _, msg := range msgs {
		data, err := json.Marshal(msg)
		if err != nil {
			return errors.Wrap(err, "failed to marshal message")
		}
		values = append(values, data)
	}

	key := m.messagesKey(tenantID, chatID)
	pipe := m.client.TxPipeline()
	pipe.RPush(ctx, key, values...)
	if m.ttl > 0 {
		pipe.Expire(ctx, key, m.ttl)
	}
	if _, err = pipe.Exec(ctx); err != nil {
		return errors.Wrap(err, "failed to store messages in Redis")
	}

	_, err = m.UpdateChat(ctx, "", nil)
	return err
}

func (m *RedisStore) Reset(ctx context.Context) error {
	tenantID, chatID, err := chatmodel.GetTenantAndChatID(ctx)
	if err != nil {
		return err
	}
	return m.deleteChat(ctx, tenantID, chatID)
}

func (m *RedisStore) deleteChat(ctx context.Context, tenantID, chatID string) error {
	pipe := m.client.TxPipeline()
	pipe.Del(ctx, m.messagesKey(tenantID, chatID), m.infoKey(tenantID, chatID))
	pipe.SRem(ctx, m.chatsKey(tenantID), chatID)
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrap(err, "failed to reset chat in Redis")
	}
	return nil
}

func (m *RedisStore) UpdateChat(ctx context.Context, title string, metadata map[string]any) (*ChatInfo, error) {
	tenantID, chatID, err := chatmodel.GetTenantAndChatID(ctx)
	if err != nil {
		return nil, err
	}
	chat, err := m.getChatInfo(ctx, tenantID, chatID)
	if err != nil {
		return nil, err
	}
	chat.update(title, metadata)
	if err = m.saveChat(ctx, chat); err != nil {
		return nil, err
	}
	return chat, nil
}

func (m *RedisStore) saveChat(ctx context.Context, chat *ChatInfo) error {
	data, err := json.Marshal(chat)
	if err != nil {
		return errors.Wrap(err, "failed to marshal chat info")
	}
	pipe := m.client.TxPipeline()
	pipe.Set(ctx, m.infoKey(chat.TenantID, chat.ChatID), data, m.ttl)
	pipe.SAdd(ctx, m.chatsKey(chat.TenantID), chat.ChatID)
	if _, err = pipe.Exec(ctx); err != nil {
		return errors.Wrap(err, "failed to store chat info in Redis")
	}
	return nil
}

func (m *RedisStore) ListChats(ctx context.Context) ([]string, error) {
	tenantID, _, err := chatmodel.GetTenantAndChatID(ctx)
	if err != nil {
		return nil, err
	}
	ids, err := m.client.SMembers(ctx, m.chatsKey(tenantID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, errors.Wrap(err, "failed to list chats from Redis")
	}
	return ids, nil
}

func (m *RedisStore) GetChatInfo(ctx context.Context, id string) (*ChatInfo, error) {
	tenantID, chatID, err := chatmodel.GetTenantAndChatID(ctx)
	if err != nil {
		return nil, err
	}
	if id == "" {
		id = chatID
	}
	info, err := m.getChatInfo(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	info.Messages, err = m.messages(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	return info, nil
}

// getChatInfo returns the chat metadata without messages,
// a new chat is returned if it does not exist
func (m *RedisStore) getChatInfo(ctx context.Context, tenantID, chatID string) (*ChatInfo, error) {
	data, err := m.client.Get(ctx, m.infoKey(tenantID, chatID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return newChatInfo(tenantID, chatID), nil
		}
		return nil, errors.Wrap(err, "failed to get chat info from Redis")
	}
	chat := new(ChatInfo)
	if err = json.Unmarshal([]byte(data), chat); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal chat info")
	}
	return chat, nil
}

// Cleanup deletes the chats of the tenant not updated since olderThan,
// and returns the number of deleted chats.
func (m *RedisStore) Cleanup(ctx context.Context, tenantID string, olderThan time.Duration) (uint32, error) {
	ids, err := m.client.SMembers(ctx, m.chatsKey(tenantID)).Result()
	if err != nil {
		return 0, errors.Wrap(err, "failed to list chats from Redis")
	}

	cutoff := time.Now().Add(-olderThan)
	deleted := uint32(0)
	for _, chatID := range ids {
		data, err := m.client.Get(ctx, m.infoKey(tenantID, chatID)).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return deleted, errors.Wrap(err, "failed to get chat info from Redis")
		}
		if err == nil {
			var chat ChatInfo
			if err = json.Unmarshal([]byte(data), &chat); err != nil {
				return deleted, errors.Wrap(err, "failed to unmarshal chat info")
			}
			if !chat.UpdatedAt.Before(cutoff) {
				continue
			}
		}
		// expired or orphaned
		if err = m.deleteChat(ctx, tenantID, chatID); err != nil {
			return deleted, err
		}
		deleted++
	}
	logger.ContextKV(ctx, xlog.DEBUG, "tenant", tenantID, "deleted", deleted)
	return deleted, nil
}
