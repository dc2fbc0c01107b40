package events

import (
	"context"
	"sync"

	xerrors "LottoChain/internal/errors"
)

// Memory 在进程内保存最近的事件，并把事件转发给本地订阅方。
type Memory struct {
	mu     sync.Mutex
	limit  int
	recent []Event
	subs   map[int]chan Event
	nextID int
	closed bool
}

// NewMemory 创建内存发布器，limit 为保留的事件数量。
func NewMemory(limit int) *Memory {
	if limit <= 0 {
		limit = 100
	}
	return &Memory{limit: limit, subs: make(map[int]chan Event)}
}

// Publish 记录事件并非阻塞地投递给订阅方，订阅方来不及消费时丢弃。
func (m *Memory) Publish(ctx context.Context, evt Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return xerrors.New(xerrors.CodePublishFailure, "事件发布器已关闭")
	}
	m.recent = append(m.recent, evt)
	if len(m.recent) > m.limit {
		m.recent = m.recent[len(m.recent)-m.limit:]
	}
	for _, ch := range m.subs {
		select {
		case ch <- evt:
		default:
		}
	}
	return nil
}

// Subscribe 返回事件通道与取消函数。
func (m *Memory) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Event, buffer)
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	if m.closed {
		close(ch)
	} else {
		m.subs[id] = ch
	}
	m.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.mu.Lock()
			if sub, ok := m.subs[id]; ok {
				delete(m.subs, id)
				close(sub)
			}
			m.mu.Unlock()
		})
	}
}

// Recent 按时间倒序返回最近的事件。
func (m *Memory) Recent(_ context.Context, limit int) ([]Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit <= 0 || limit > len(m.recent) {
		limit = len(m.recent)
	}
	out := make([]Event, 0, limit)
	for i := len(m.recent) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.recent[i])
	}
	return out, nil
}

// Close 关闭发布器并结束所有订阅。
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	for id, ch := range m.subs {
		close(ch)
		delete(m.subs, id)
	}
	return nil
}
