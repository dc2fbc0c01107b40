package events

import (
	"context"
	"encoding/json"
	"errors"

	xerrors "LottoChain/internal/errors"

	"github.com/redis/go-redis/v9"
)

// RedisConfig 描述 Redis 发布端的连接参数。
type RedisConfig struct {
	Address      string
	Password     string
	DB           int
	Channel      string
	HistoryKey   string
	HistoryLimit int64
}

// Redis 通过 PUBLISH 广播事件，并在 list 中保留最近的事件。
type Redis struct {
	client     *redis.Client
	channel    string
	historyKey string
	limit      int64
}

// NewRedis 创建 Redis 发布器并检查连通性。
func NewRedis(ctx context.Context, cfg RedisConfig) (*Redis, error) {
	if cfg.Address == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "Redis address 不能为空")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, xerrors.Wrap(xerrors.CodeInitializationFailure, err, "连接 Redis 失败")
	}
	return newRedisWithClient(client, cfg), nil
}

func newRedisWithClient(client *redis.Client, cfg RedisConfig) *Redis {
	channel := cfg.Channel
	if channel == "" {
		channel = "lottery:events"
	}
	historyKey := cfg.HistoryKey
	if historyKey == "" {
		historyKey = channel + ":recent"
	}
	limit := cfg.HistoryLimit
	if limit <= 0 {
		limit = 100
	}
	return &Redis{client: client, channel: channel, historyKey: historyKey, limit: limit}
}

// Publish 在同一个事务管道中完成广播与历史写入。
func (r *Redis) Publish(ctx context.Context, evt Event) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return xerrors.Wrap(xerrors.CodePublishFailure, err, "序列化事件失败")
	}
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Publish(ctx, r.channel, body)
		pipe.LPush(ctx, r.historyKey, body)
		pipe.LTrim(ctx, r.historyKey, 0, r.limit-1)
		return nil
	})
	if err != nil {
		return xerrors.Wrap(xerrors.CodePublishFailure, err, "Redis 发布事件失败")
	}
	return nil
}

// Recent 读取最近的事件，最新的在前。
func (r *Redis) Recent(ctx context.Context, limit int) ([]Event, error) {
	stop := int64(limit) - 1
	if limit <= 0 || int64(limit) > r.limit {
		stop = r.limit - 1
	}
	values, err := r.client.LRange(ctx, r.historyKey, 0, stop).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "Redis 读取事件失败")
	}
	out := make([]Event, 0, len(values))
	for _, value := range values {
		var evt Event
		if err := json.Unmarshal([]byte(value), &evt); err != nil {
			continue
		}
		out = append(out, evt)
	}
	return out, nil
}

// Close 关闭 Redis 连接。
func (r *Redis) Close() error {
	if r == nil || r.client == nil {
		return nil
	}
	return r.client.Close()
}
