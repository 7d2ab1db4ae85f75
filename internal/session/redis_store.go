package session

import (
	"context"
	"encoding/json"
	stdErrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	xerrors "IntentChain/internal/errors"
)

// RedisStoreConfig 描述 Redis 会话存储的连接参数。
type RedisStoreConfig struct {
	Address   string
	Password  string
	DB        int
	KeyPrefix string
	TTL       time.Duration
}

// RedisStore 使用 Redis 保存挂起状态，供多实例部署共享会话。
// TTL 兜底清理停滞的会话，避免挂起状态无限期堆积。
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore 创建 Redis 会话存储。
func NewRedisStore(cfg RedisStoreConfig) (*RedisStore, error) {
	if cfg.Address == "" {
		return nil, xerrors.New(xerrors.CodeConfiguration, "Redis address 不能为空")
	}
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "intentchain:sessions"
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeNetwork, err, "连接 Redis 失败")
	}
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}, nil
}

// NewRedisStoreWithClient 复用已有连接，主要用于测试。
func NewRedisStoreWithClient(client *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "intentchain:sessions"
	}
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}
}

// Put 实现 Store 接口。
func (r *RedisStore) Put(ctx context.Context, sessionID string, state *ResolutionState) error {
	if strings.TrimSpace(sessionID) == "" {
		return xerrors.New(xerrors.CodeSession, "会话 ID 不能为空")
	}
	if state == nil {
		return xerrors.New(xerrors.CodeSession, "挂起状态不能为空")
	}
	clone := cloneState(state)
	clone.UpdatedAt = time.Now().Unix()
	encoded, err := json.Marshal(clone)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeSession, err, "序列化挂起状态失败")
	}
	if err := r.client.Set(ctx, r.key(sessionID), encoded, r.ttl).Err(); err != nil {
		return xerrors.Wrap(xerrors.CodeStorage, err, "写入 Redis 失败")
	}
	return nil
}

// Get 返回会话的挂起状态。
func (r *RedisStore) Get(ctx context.Context, sessionID string) (*ResolutionState, error) {
	raw, err := r.client.Get(ctx, r.key(sessionID)).Result()
	if err != nil {
		if stdErrors.Is(err, redis.Nil) {
			return nil, ErrStateNotFound
		}
		return nil, xerrors.Wrap(xerrors.CodeStorage, err, "读取 Redis 失败")
	}
	var state ResolutionState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeSession, err, "解析挂起状态失败")
	}
	return &state, nil
}

// Delete 清除会话的挂起状态。
func (r *RedisStore) Delete(ctx context.Context, sessionID string) error {
	if err := r.client.Del(ctx, r.key(sessionID)).Err(); err != nil {
		return xerrors.Wrap(xerrors.CodeStorage, err, "删除 Redis 键失败")
	}
	return nil
}

// Close 关闭 Redis 连接。
func (r *RedisStore) Close() error {
	if r == nil || r.client == nil {
		return nil
	}
	return r.client.Close()
}

func (r *RedisStore) key(sessionID string) string {
	return fmt.Sprintf("%s:%s", r.prefix, sessionID)
}

var _ Store = (*RedisStore)(nil)
