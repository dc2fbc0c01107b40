// Package poller 周期性读取彩票状态与当前账户的待领取奖励。
//
// 每次读取都带有单调递增的代号（generation），响应返回时若代号早于最近一次
// 已采纳的代号则直接丢弃，从而保证定时读取与手动刷新并发时不会用旧数据覆盖新数据。
package poller

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	xerrors "LottoChain/internal/errors"
	"LottoChain/internal/events"
	"LottoChain/internal/lottery"
	"LottoChain/internal/observability/metrics"
	"LottoChain/internal/session"
	"LottoChain/pkg/logger"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/event"
)

// DefaultInterval 是两次定时读取之间的间隔。
const DefaultInterval = 5 * time.Second

// StatusErrorMessage 是状态读取失败时展示给用户的信息。
const StatusErrorMessage = "Failed to fetch lottery status"

// Reader 是轮询所需的合约只读能力，*lottery.Gateway 满足该接口。
type Reader interface {
	Status(ctx context.Context) (lottery.Status, error)
	PendingRewards(ctx context.Context, account common.Address) (*big.Int, error)
}

// Snapshot 是轮询结果的只读副本。
type Snapshot struct {
	Active  bool            `json:"active"`
	Status  *lottery.Status `json:"status,omitempty"`
	Rewards *big.Int        `json:"rewards_wei,omitempty"`
	Loading bool            `json:"loading"`
	Error   string          `json:"error,omitempty"`
	Account *common.Address `json:"account,omitempty"`
}

// RewardsOrZero 返回待领取奖励，尚未读取时为 0。
func (s Snapshot) RewardsOrZero() *big.Int {
	if s.Rewards == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(s.Rewards)
}

// Poller 在激活期间每隔 interval 读取一次状态；有账户时同时读取奖励。
type Poller struct {
	reader    Reader
	publisher events.Publisher
	interval  time.Duration
	log       *slog.Logger

	mu      sync.Mutex
	active  bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	account *common.Address
	status  *lottery.Status
	rewards *big.Int
	errMsg  string

	statusIssued   uint64
	statusApplied  uint64
	rewardsIssued  uint64
	rewardsApplied uint64

	feed event.Feed
}

// Option 用于定制 Poller。
type Option func(*Poller)

// WithInterval 覆盖默认的轮询间隔。
func WithInterval(interval time.Duration) Option {
	return func(p *Poller) {
		if interval > 0 {
			p.interval = interval
		}
	}
}

// WithPublisher 设置事件发布器，每个被采纳的读取结果都会发布一次。
func WithPublisher(publisher events.Publisher) Option {
	return func(p *Poller) {
		if publisher != nil {
			p.publisher = publisher
		}
	}
}

// New 创建轮询器，需要调用 Start 才会开始读取。
func New(reader Reader, opts ...Option) *Poller {
	p := &Poller{
		reader:    reader,
		publisher: events.Nop{},
		interval:  DefaultInterval,
		log:       logger.Named("poller"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

// Start 激活轮询：立即读取一次，然后按间隔重复读取，直到 Stop 或 ctx 结束。
func (p *Poller) Start(ctx context.Context, account *common.Address) {
	p.mu.Lock()
	if p.active {
		p.mu.Unlock()
		p.SetAccount(account)
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	p.active = true
	p.ctx = runCtx
	p.cancel = cancel
	p.account = copyAddress(account)
	p.wg.Add(1)
	p.mu.Unlock()

	p.log.Info("开始轮询彩票状态", slog.Duration("interval", p.interval))
	p.cycle()

	go func() {
		defer p.wg.Done()
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				p.cycle()
			}
		}
	}()
}

// Stop 停止轮询并清空读取结果。进行中的读取会被取消，其结果不再被采纳。
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.active {
		p.mu.Unlock()
		return
	}
	p.active = false
	cancel := p.cancel
	p.cancel = nil
	p.account = nil
	p.status = nil
	p.rewards = nil
	p.errMsg = ""
	// 让所有在途响应都变为过期。
	p.statusApplied = p.statusIssued
	p.rewardsApplied = p.rewardsIssued
	p.mu.Unlock()

	cancel()
	p.wg.Wait()
	p.notify()
	p.log.Info("停止轮询彩票状态")
}

// SetAccount 更新当前账户；账户变化时立即读取一次。
func (p *Poller) SetAccount(account *common.Address) {
	p.mu.Lock()
	if sameAddress(p.account, account) {
		p.mu.Unlock()
		return
	}
	p.account = copyAddress(account)
	p.rewards = nil
	p.rewardsApplied = p.rewardsIssued
	active := p.active
	p.mu.Unlock()

	if active {
		p.cycle()
	}
}

// Refetch 额外发起一轮读取，用于写操作成功后尽快同步链上状态。
func (p *Poller) Refetch() {
	p.cycle()
}

// Snapshot 返回当前读取结果。
func (p *Poller) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}

// Subscribe 订阅读取结果的变化。
func (p *Poller) Subscribe(ch chan<- Snapshot) event.Subscription {
	return p.feed.Subscribe(ch)
}

// Follow 根据会话状态驱动轮询：已连接时激活并跟随账户，断开时停止。
// 阻塞直到 ctx 结束。
func (p *Poller) Follow(ctx context.Context, sess *session.Manager) {
	ch := make(chan session.State, 8)
	sub := sess.Subscribe(ch)
	defer sub.Unsubscribe()
	defer p.Stop()

	apply := func(state session.State) {
		if state.Connected() {
			p.Start(ctx, state.Address)
			return
		}
		p.Stop()
	}
	apply(sess.State())

	for {
		select {
		case <-ctx.Done():
			return
		case <-sub.Err():
			return
		case state := <-ch:
			apply(state)
		}
	}
}

func (p *Poller) cycle() {
	p.mu.Lock()
	if !p.active {
		p.mu.Unlock()
		return
	}
	ctx := p.ctx
	p.statusIssued++
	statusGen := p.statusIssued
	var rewardsGen uint64
	account := copyAddress(p.account)
	if account != nil {
		p.rewardsIssued++
		rewardsGen = p.rewardsIssued
	}
	// Add 必须在锁内完成，Stop 的 Wait 才能覆盖本轮读取。
	p.wg.Add(1)
	if account != nil {
		p.wg.Add(1)
	}
	p.mu.Unlock()
	p.notify()

	go func() {
		defer p.wg.Done()
		p.readStatus(ctx, statusGen)
	}()
	if account != nil {
		go func() {
			defer p.wg.Done()
			p.readRewards(ctx, rewardsGen, *account)
		}()
	}
}

func (p *Poller) readStatus(ctx context.Context, gen uint64) {
	status, err := p.reader.Status(ctx)

	p.mu.Lock()
	if !p.active || gen <= p.statusApplied {
		p.mu.Unlock()
		metrics.ObservePoll("status", metrics.PollStale)
		return
	}
	p.statusApplied = gen
	if err != nil {
		p.errMsg = StatusErrorMessage
		p.mu.Unlock()
		metrics.ObservePoll("status", metrics.PollFailed)
		p.log.Log(ctx, xerrors.SeverityOf(err).Level(), "读取彩票状态失败",
			slog.String("error", err.Error()),
			slog.Bool("retryable", xerrors.RetryableError(err)),
		)
		p.notify()
		return
	}
	p.status = &status
	p.errMsg = ""
	p.mu.Unlock()

	metrics.ObservePoll("status", metrics.PollApplied)
	p.notify()
	p.publish(ctx, events.KindStatus, "", statusPayload(status))
}

func (p *Poller) readRewards(ctx context.Context, gen uint64, account common.Address) {
	rewards, err := p.reader.PendingRewards(ctx, account)

	p.mu.Lock()
	if !p.active || gen <= p.rewardsApplied || !sameAddress(p.account, &account) {
		p.mu.Unlock()
		metrics.ObservePoll("rewards", metrics.PollStale)
		return
	}
	if err != nil {
		p.mu.Unlock()
		metrics.ObservePoll("rewards", metrics.PollFailed)
		p.log.Log(ctx, xerrors.SeverityOf(err).Level(), "读取待领取奖励失败",
			slog.String("account", account.Hex()),
			slog.String("error", err.Error()),
		)
		return
	}
	p.rewardsApplied = gen
	p.rewards = new(big.Int).Set(rewards)
	p.mu.Unlock()

	metrics.ObservePoll("rewards", metrics.PollApplied)
	p.notify()
	p.publish(ctx, events.KindRewards, account.Hex(), map[string]string{
		"rewards_wei": rewards.String(),
		"rewards_eth": lottery.FormatEtherFixed(rewards, 6),
	})
}

func (p *Poller) publish(ctx context.Context, kind events.Kind, account string, payload any) {
	evt, err := events.NewEvent(kind, account, payload)
	if err == nil {
		err = p.publisher.Publish(ctx, evt)
	}
	if err != nil && ctx.Err() == nil {
		p.log.Warn("发布事件失败", slog.String("kind", string(kind)), slog.String("error", err.Error()))
	}
}

func (p *Poller) notify() {
	p.feed.Send(p.Snapshot())
}

func (p *Poller) snapshotLocked() Snapshot {
	out := Snapshot{
		Active:  p.active,
		Loading: p.active && p.statusApplied < p.statusIssued,
		Error:   p.errMsg,
		Account: copyAddress(p.account),
	}
	if p.status != nil {
		status := *p.status
		if status.EntryFeeWei != nil {
			status.EntryFeeWei = new(big.Int).Set(status.EntryFeeWei)
		}
		out.Status = &status
	}
	if p.rewards != nil {
		out.Rewards = new(big.Int).Set(p.rewards)
	}
	return out
}

func statusPayload(status lottery.Status) map[string]any {
	return map[string]any{
		"is_open":         status.IsOpen,
		"winning_numbers": status.DrawnNumbers(),
		"entry_fee_eth":   status.EntryFee(),
		"entry_fee_wei":   fmt.Sprint(status.EntryFeeWei),
	}
}

func copyAddress(addr *common.Address) *common.Address {
	if addr == nil {
		return nil
	}
	out := *addr
	return &out
}

func sameAddress(a, b *common.Address) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
