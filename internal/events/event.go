// Package events 负责把彩票状态快照与已上链交易广播给外部订阅方。
// 支持内存、Redis 与 RabbitMQ 三种发布渠道。
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Kind 标识事件类型，同时作为 RabbitMQ 的 routing key。
type Kind string

const (
	// KindStatus 表示一次被采纳的彩票状态读取。
	KindStatus Kind = "lottery.status"
	// KindRewards 表示一次被采纳的待领取奖励读取。
	KindRewards Kind = "lottery.rewards"
	// KindTransaction 表示购票或领奖交易已上链。
	KindTransaction Kind = "lottery.transaction"
)

// Event 是对外发布的统一信封。
type Event struct {
	ID         string          `json:"id"`
	Kind       Kind            `json:"kind"`
	Account    string          `json:"account,omitempty"`
	Payload    json.RawMessage `json:"payload"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// NewEvent 序列化 payload 并生成事件 ID。
func NewEvent(kind Kind, account string, payload any) (Event, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("序列化事件内容失败: %w", err)
	}
	return Event{
		ID:         uuid.NewString(),
		Kind:       kind,
		Account:    account,
		Payload:    body,
		OccurredAt: time.Now().UTC(),
	}, nil
}

// Publisher 负责投递事件。
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
	Close() error
}

// Recorder 能够返回最近发布的事件，供 API 查询。
type Recorder interface {
	Recent(ctx context.Context, limit int) ([]Event, error)
}

// Nop 丢弃所有事件。
type Nop struct{}

// Publish 实现 Publisher。
func (Nop) Publish(context.Context, Event) error { return nil }

// Close 实现 Publisher。
func (Nop) Close() error { return nil }
