// Package ui 实现展示层的视图模型：根据会话与轮询结果推导界面状态，
// 管理购票表单、奖励面板与单槽位通知，并提供控制台文本渲染。
package ui

import (
	"context"
	"errors"
	"log/slog"
	"math/big"
	"time"

	xerrors "LottoChain/internal/errors"
	"LottoChain/internal/events"
	"LottoChain/internal/lottery"
	"LottoChain/internal/poller"
	"LottoChain/internal/session"
	"LottoChain/internal/storage/mysql"
	"LottoChain/pkg/logger"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"
)

// 视图模型层面的错误，均不会触发通知。
var (
	ErrBusy            = xerrors.New(xerrors.CodeConflict, "operation already in progress")
	ErrNothingToClaim  = xerrors.New(xerrors.CodeInvalidArgument, NoRewardsMessage)
	ErrNotConnected    = xerrors.New(lottery.CodeWalletUnavailable, "Please connect your wallet")
	ErrLotteryClosed   = xerrors.New(xerrors.CodeConflict, "Lottery is currently closed. Wait for the next round.")
	ErrViewUnavailable = xerrors.New(lottery.CodeNetworkMismatch, "lottery is not available in the current view")
)

// Writer 是展示层需要的合约写能力，*lottery.Gateway 满足该接口。
type Writer interface {
	BuyTicket(ctx context.Context, signer *bind.TransactOpts, numbers []int) (*types.Transaction, error)
	ClaimRewards(ctx context.Context, signer *bind.TransactOpts) (*types.Transaction, error)
	WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error)
}

// Poller 是展示层读取状态与触发刷新的能力，*poller.Poller 满足该接口。
type Poller interface {
	Snapshot() poller.Snapshot
	Refetch()
}

// App 组合会话、轮询器与合约写操作，是控制台和 HTTP 接口共用的视图模型。
type App struct {
	session   *session.Manager
	poller    Poller
	writer    Writer
	history   mysql.HistoryRepository
	publisher events.Publisher
	notices   *Notifier
	ticket    *TicketForm
	rewards   *RewardsPanel
	now       func() time.Time
	log       *slog.Logger
}

// Option 用于定制 App。
type Option func(*App)

// WithHistory 设置交易历史存储，已上链的购票与领奖会写入其中。
func WithHistory(repo mysql.HistoryRepository) Option {
	return func(a *App) { a.history = repo }
}

// WithPublisher 设置交易事件发布器。
func WithPublisher(publisher events.Publisher) Option {
	return func(a *App) {
		if publisher != nil {
			a.publisher = publisher
		}
	}
}

// WithNotifier 替换默认通知槽位，测试中用于注入时钟。
func WithNotifier(n *Notifier) Option {
	return func(a *App) {
		if n != nil {
			a.notices = n
		}
	}
}

// WithNow 覆盖记录时间戳使用的时钟。
func WithNow(now func() time.Time) Option {
	return func(a *App) {
		if now != nil {
			a.now = now
		}
	}
}

// New 创建视图模型。
func New(sess *session.Manager, p Poller, writer Writer, opts ...Option) *App {
	a := &App{
		session:   sess,
		poller:    p,
		writer:    writer,
		publisher: events.Nop{},
		now:       time.Now,
		log:       logger.Named("ui"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	if a.notices == nil {
		a.notices = NewNotifier(nil)
	}
	a.ticket = newTicketForm(a.buyTicket)
	a.rewards = newRewardsPanel(a.claimRewards)
	return a
}

// Session 返回会话管理器。
func (a *App) Session() *session.Manager { return a.session }

// Ticket 返回购票表单。
func (a *App) Ticket() *TicketForm { return a.ticket }

// Rewards 返回奖励面板。
func (a *App) Rewards() *RewardsPanel { return a.rewards }

// Notifications 返回通知槽位。
func (a *App) Notifications() *Notifier { return a.notices }

// Connect 连接钱包，失败原因写入会话的 LastError。
func (a *App) Connect(ctx context.Context) { a.session.Connect(ctx) }

// Disconnect 断开会话。
func (a *App) Disconnect() { a.session.Disconnect() }

// SwitchNetwork 请求钱包切换到目标网络。
func (a *App) SwitchNetwork(ctx context.Context) { a.session.SwitchNetwork(ctx) }

// SetNumber 更新购票草稿的第 i 个位置。
func (a *App) SetNumber(i int, raw string) bool { return a.ticket.SetNumber(i, raw) }

// CloseNotification 立即关闭当前通知。
func (a *App) CloseNotification() { a.notices.Close() }

// View 返回当前界面快照。
func (a *App) View() View {
	state := a.session.State()
	snap := a.poller.Snapshot()
	correct := a.session.IsCorrectNetwork()

	view := View{
		State:           Derive(a.session.Available(), state, correct, snap),
		RequiredChainID: a.session.RequiredChainID().String(),
		NetworkName:     a.session.NetworkName(),
		Error:           state.LastError,
	}
	if state.Address != nil {
		view.Account = state.Address.Hex()
	}
	if state.ChainID != nil {
		view.ChainID = state.ChainID.String()
	}
	if note, ok := a.notices.Current(); ok {
		view.Notification = &note
	}

	switch view.State {
	case StateConnectedLoading:
		view.Lottery = lotteryView(snap)
	case StateConnected:
		view.Lottery = lotteryView(snap)
		view.Ticket = &TicketView{
			Open:       snap.Status.IsOpen,
			Numbers:    a.ticket.Draft(),
			Submitting: a.ticket.Submitting(),
		}
		view.Ticket.CanSubmit = view.Ticket.Open && state.Signer != nil && a.ticket.CanSubmit()
		view.Rewards = rewardsView(view.Account, snap.Rewards, a.rewards.Claiming())
	}
	return view
}

// SubmitTicket 提交购票草稿。成功时展示成功通知并触发一次刷新；
// 交易失败时以原始错误信息展示失败通知并保留草稿。
func (a *App) SubmitTicket(ctx context.Context) error {
	view := a.View()
	if view.State != StateConnected {
		return ErrViewUnavailable
	}
	if !view.Ticket.Open {
		return ErrLotteryClosed
	}

	err := a.ticket.Submit(ctx)
	switch {
	case errors.Is(err, ErrBusy):
		return err
	case err != nil:
		a.notices.Error(errorMessage(err, TicketFailedMessage))
		return err
	}
	a.notices.Success(TicketPurchasedMessage)
	a.poller.Refetch()
	return nil
}

// ClaimRewards 领取待领取奖励。奖励为 0 时不发送交易。
func (a *App) ClaimRewards(ctx context.Context) error {
	view := a.View()
	if view.State != StateConnected {
		return ErrViewUnavailable
	}

	err := a.rewards.Claim(ctx, a.poller.Snapshot().Rewards)
	switch {
	case errors.Is(err, ErrBusy), errors.Is(err, ErrNothingToClaim):
		return err
	case err != nil:
		a.notices.Error(errorMessage(err, ClaimFailedMessage))
		return err
	}
	a.notices.Success(RewardsClaimedMessage)
	a.poller.Refetch()
	return nil
}

// History 返回当前存储中最近的交易记录，未配置存储时返回空列表。
func (a *App) History(ctx context.Context, account string, limit int) ([]mysql.TxRecord, error) {
	if a.history == nil {
		return []mysql.TxRecord{}, nil
	}
	return a.history.ListLatest(ctx, account, limit)
}

func (a *App) buyTicket(ctx context.Context, numbers []int) error {
	state := a.session.State()
	if state.Signer == nil {
		return ErrNotConnected
	}
	tx, err := a.writer.BuyTicket(ctx, state.Signer, numbers)
	if err != nil {
		return err
	}
	receipt, err := a.writer.WaitMined(ctx, tx)
	a.record(ctx, mysql.KindTicket, state.Signer.From, tx, receipt, numbers)
	return err
}

func (a *App) claimRewards(ctx context.Context) error {
	state := a.session.State()
	if state.Signer == nil {
		return ErrNotConnected
	}
	tx, err := a.writer.ClaimRewards(ctx, state.Signer)
	if err != nil {
		return err
	}
	receipt, err := a.writer.WaitMined(ctx, tx)
	a.record(ctx, mysql.KindClaim, state.Signer.From, tx, receipt, nil)
	return err
}

// record 保存已上链的交易并发布事件；持久化失败只记录日志，不影响用户结果。
func (a *App) record(ctx context.Context, kind string, from common.Address, tx *types.Transaction, receipt *types.Receipt, numbers []int) {
	if tx == nil || receipt == nil {
		return
	}
	rec := mysql.TxRecord{
		ID:        uuid.NewString(),
		Kind:      kind,
		Account:   from.Hex(),
		TxHash:    tx.Hash().Hex(),
		Numbers:   copyNumbers(numbers),
		ValueWei:  valueOf(tx).String(),
		Status:    mysql.StatusSuccess,
		CreatedAt: a.now().Unix(),
	}
	if receipt.BlockNumber != nil {
		rec.BlockNumber = receipt.BlockNumber.Uint64()
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		rec.Status = mysql.StatusReverted
	}

	logger.Audit().Info("lottery transaction mined",
		slog.String("kind", rec.Kind),
		slog.String("account", rec.Account),
		slog.String("tx_hash", rec.TxHash),
		slog.String("value_wei", rec.ValueWei),
		slog.Uint64("block", rec.BlockNumber),
		slog.String("status", rec.Status),
	)

	if a.history != nil {
		if err := a.history.Save(ctx, rec); err != nil {
			a.log.Warn("保存交易记录失败", slog.String("tx_hash", rec.TxHash), slog.String("error", err.Error()))
		}
	}
	evt, err := events.NewEvent(events.KindTransaction, rec.Account, rec)
	if err == nil {
		err = a.publisher.Publish(ctx, evt)
	}
	if err != nil {
		a.log.Warn("发布交易事件失败", slog.String("tx_hash", rec.TxHash), slog.String("error", err.Error()))
	}
}

func errorMessage(err error, fallback string) string {
	if msg := xerrors.Cause(err); msg != "" {
		return msg
	}
	return fallback
}

func copyNumbers(numbers []int) []int {
	if len(numbers) == 0 {
		return nil
	}
	return append([]int(nil), numbers...)
}

func valueOf(tx *types.Transaction) *big.Int {
	if v := tx.Value(); v != nil {
		return v
	}
	return new(big.Int)
}
