package ui

import (
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/event"
	"github.com/google/uuid"
)

// NotificationTTL 是通知自动消失前的停留时间。
const NotificationTTL = 5 * time.Second

// NotificationKind 区分成功与失败通知。
type NotificationKind string

const (
	NotificationSuccess NotificationKind = "success"
	NotificationError   NotificationKind = "error"
)

// Notification 是当前展示的一条通知。
type Notification struct {
	ID      string           `json:"id"`
	Message string           `json:"message"`
	Kind    NotificationKind `json:"kind"`
}

// Timer 是 AfterFunc 返回的可取消定时器，*time.Timer 满足该接口。
type Timer interface {
	Stop() bool
}

// AfterFunc 在 d 之后调用 f。测试中可以替换为手动推进的时钟。
type AfterFunc func(d time.Duration, f func()) Timer

func realAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Notifier 只有一个通知槽位：新通知替换旧通知，并重新计时。
type Notifier struct {
	ttl       time.Duration
	afterFunc AfterFunc

	mu      sync.Mutex
	current *Notification
	timer   Timer

	feed event.Feed
}

// NewNotifier 创建通知槽位，afterFunc 为 nil 时使用真实时钟。
func NewNotifier(afterFunc AfterFunc) *Notifier {
	if afterFunc == nil {
		afterFunc = realAfterFunc
	}
	return &Notifier{ttl: NotificationTTL, afterFunc: afterFunc}
}

// Show 展示一条通知，并在 ttl 后自动移除。
func (n *Notifier) Show(kind NotificationKind, message string) Notification {
	note := Notification{ID: uuid.NewString(), Message: message, Kind: kind}

	n.mu.Lock()
	if n.timer != nil {
		n.timer.Stop()
	}
	n.current = &note
	id := note.ID
	n.timer = n.afterFunc(n.ttl, func() { n.Dismiss(id) })
	n.mu.Unlock()

	n.feed.Send(note)
	return note
}

// Success 展示成功通知。
func (n *Notifier) Success(message string) Notification {
	return n.Show(NotificationSuccess, message)
}

// Error 展示失败通知。
func (n *Notifier) Error(message string) Notification {
	return n.Show(NotificationError, message)
}

// Current 返回当前通知。
func (n *Notifier) Current() (Notification, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.current == nil {
		return Notification{}, false
	}
	return *n.current, true
}

// Dismiss 仅在 id 仍是当前通知时将其移除，过期的定时器不会清掉更新的通知。
func (n *Notifier) Dismiss(id string) bool {
	n.mu.Lock()
	if n.current == nil || n.current.ID != id {
		n.mu.Unlock()
		return false
	}
	n.current = nil
	n.timer = nil
	n.mu.Unlock()

	n.feed.Send(Notification{})
	return true
}

// Close 立即移除当前通知。
func (n *Notifier) Close() {
	n.mu.Lock()
	if n.timer != nil {
		n.timer.Stop()
		n.timer = nil
	}
	had := n.current != nil
	n.current = nil
	n.mu.Unlock()

	if had {
		n.feed.Send(Notification{})
	}
}

// Subscribe 订阅通知变化，清空时推送零值。
func (n *Notifier) Subscribe(ch chan<- Notification) event.Subscription {
	return n.feed.Subscribe(ch)
}
