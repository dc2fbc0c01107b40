// Package session 管理钱包连接的生命周期：请求账户授权、构造签名句柄、
// 跟踪链 ID，并响应钱包推送的账户与网络变更。
package session

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"sync"

	"LottoChain/internal/config"
	xerrors "LottoChain/internal/errors"
	"LottoChain/internal/lottery"
	"LottoChain/internal/wallet"
	"LottoChain/pkg/logger"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/event"
)

// State 是会话的只读快照。零值表示未连接。
type State struct {
	Address    *common.Address    `json:"address,omitempty"`
	Signer     *bind.TransactOpts `json:"-"`
	ChainID    *big.Int           `json:"chain_id,omitempty"`
	Connecting bool               `json:"connecting"`
	LastError  string             `json:"last_error,omitempty"`
}

// Connected 表示已经拿到账户地址。
func (s State) Connected() bool {
	return s.Address != nil
}

// Manager 持有唯一的钱包会话。provider 为空表示运行环境中没有钱包。
type Manager struct {
	provider    wallet.Provider
	required    *big.Int
	networkName string
	log         *slog.Logger

	mu    sync.RWMutex
	state State

	feed event.Feed

	listenMu sync.Mutex
	cancel   context.CancelFunc
	done     chan struct{}
}

// Option 用于定制 Manager。
type Option func(*Manager)

// WithRequiredChain 覆盖编译期写死的目标链，仅用于测试或私有部署。
func WithRequiredChain(chainID *big.Int, name string) Option {
	return func(m *Manager) {
		if chainID != nil {
			m.required = new(big.Int).Set(chainID)
		}
		if name != "" {
			m.networkName = name
		}
	}
}

// NewManager 创建会话管理器，provider 允许为 nil。
func NewManager(provider wallet.Provider, opts ...Option) *Manager {
	m := &Manager{
		provider:    provider,
		required:    config.RequiredChainID(),
		networkName: config.NetworkName,
		log:         logger.Named("session"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

// Available 表示运行环境中是否存在钱包。
func (m *Manager) Available() bool {
	return m.provider != nil
}

// Provider 返回注入的钱包能力。
func (m *Manager) Provider() wallet.Provider {
	return m.provider
}

// RequiredChainID 返回会话要求的链 ID 副本。
func (m *Manager) RequiredChainID() *big.Int {
	return new(big.Int).Set(m.required)
}

// NetworkName 返回目标网络的展示名称。
func (m *Manager) NetworkName() string {
	return m.networkName
}

// State 返回当前会话快照。
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshotLocked()
}

// IsCorrectNetwork 判断当前链 ID 是否为要求的链。
func (m *Manager) IsCorrectNetwork() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.ChainID != nil && m.state.ChainID.Cmp(m.required) == 0
}

// Subscribe 订阅会话状态变化，每次变化推送一份快照。
// 订阅方必须持续读取通道，否则会阻塞会话更新。
func (m *Manager) Subscribe(ch chan<- State) event.Subscription {
	return m.feed.Subscribe(ch)
}

// Connect 请求账户授权并建立会话。失败只写入 LastError，不向调用方返回错误。
func (m *Manager) Connect(ctx context.Context) {
	if m.provider == nil {
		err := xerrors.New(lottery.CodeWalletUnavailable, "wallet is not available")
		m.update(func(s *State) { s.LastError = err.Message() })
		m.log.Log(ctx, xerrors.SeverityOf(err).Level(), "连接钱包失败", slog.String("error", err.Error()))
		return
	}

	m.update(func(s *State) {
		s.Connecting = true
		s.LastError = ""
	})
	defer m.update(func(s *State) { s.Connecting = false })

	accounts, err := wallet.RequestAccounts(ctx, m.provider)
	if err == nil && len(accounts) == 0 {
		err = fmt.Errorf("wallet returned no accounts")
	}
	if err != nil {
		m.fail(ctx, "请求账户授权失败", err)
		return
	}
	account := accounts[0]

	signer, err := m.transactor(account)
	if err != nil {
		m.fail(ctx, "获取签名句柄失败", err)
		return
	}
	chainID, err := wallet.ChainID(ctx, m.provider)
	if err != nil {
		m.fail(ctx, "读取链 ID 失败", err)
		return
	}

	m.update(func(s *State) {
		s.Address = &account
		s.Signer = signer
		s.ChainID = chainID
	})
	m.log.Info("钱包已连接",
		slog.String("account", account.Hex()),
		slog.String("chain_id", chainID.String()),
	)

	if chainID.Cmp(m.required) != 0 {
		m.SwitchNetwork(ctx)
	}
}

// SwitchNetwork 请求钱包切换到目标链。链 ID 的更新依赖钱包推送的 chainChanged。
func (m *Manager) SwitchNetwork(ctx context.Context) {
	if m.provider == nil {
		return
	}
	err := wallet.SwitchChain(ctx, m.provider, m.required)
	if err == nil {
		return
	}

	message := "Failed to switch network"
	if code, ok := wallet.ErrorCode(err); ok && code == wallet.CodeUnrecognizedChain {
		message = fmt.Sprintf("Please manually switch to %s network in your wallet", m.networkName)
	}
	wrapped := walletError(err, message)
	m.update(func(s *State) { s.LastError = wrapped.Message() })
	m.log.Log(ctx, xerrors.SeverityOf(wrapped).Level(), "切换网络失败", slog.String("error", err.Error()))
}

// Disconnect 在本地清空会话，不撤销钱包侧的授权。
func (m *Manager) Disconnect() {
	m.update(func(s *State) { *s = State{} })
	m.log.Info("钱包已断开")
}

// Start 注册钱包推送的监听器，直到 Close 或 ctx 结束。
func (m *Manager) Start(ctx context.Context) error {
	if m.provider == nil {
		return nil
	}
	m.listenMu.Lock()
	defer m.listenMu.Unlock()
	if m.cancel != nil {
		return fmt.Errorf("会话监听器已经启动")
	}

	accountsCh := make(chan []string, 4)
	chainCh := make(chan string, 4)
	accountsSub := m.provider.SubscribeAccountsChanged(accountsCh)
	chainSub := m.provider.SubscribeChainChanged(chainCh)

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	m.cancel = cancel
	m.done = done

	go func() {
		defer close(done)
		defer accountsSub.Unsubscribe()
		defer chainSub.Unsubscribe()
		for {
			select {
			case <-runCtx.Done():
				return
			case accounts := <-accountsCh:
				m.handleAccountsChanged(accounts)
			case hexID := <-chainCh:
				m.handleChainChanged(hexID)
			case err := <-accountsSub.Err():
				if err != nil {
					m.log.Warn("账户订阅中断", slog.String("error", err.Error()))
				}
				return
			case err := <-chainSub.Err():
				if err != nil {
					m.log.Warn("网络订阅中断", slog.String("error", err.Error()))
				}
				return
			}
		}
	}()
	return nil
}

// Close 注销监听器并等待其退出。
func (m *Manager) Close() {
	m.listenMu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.listenMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (m *Manager) handleAccountsChanged(hexes []string) {
	if len(hexes) == 0 {
		m.Disconnect()
		return
	}
	accounts, err := wallet.ParseAccounts(hexes[:1])
	if err != nil {
		m.log.Warn("忽略无效的账户推送", slog.String("error", err.Error()))
		return
	}
	next := accounts[0]

	current := m.State()
	if current.Address != nil && *current.Address == next {
		return
	}
	signer, err := m.transactor(next)
	if err != nil {
		m.update(func(s *State) { s.LastError = err.Error() })
		return
	}
	m.update(func(s *State) {
		s.Address = &next
		s.Signer = signer
	})
	m.log.Info("账户已切换", slog.String("account", next.Hex()))
}

func (m *Manager) handleChainChanged(hexID string) {
	id, err := wallet.ParseChainID(hexID)
	if err != nil {
		m.log.Warn("忽略无效的链 ID 推送", slog.String("chain_id", hexID))
		return
	}
	m.update(func(s *State) { s.ChainID = id })
	m.log.Info("网络已切换", slog.String("chain_id", id.String()))
}

func (m *Manager) transactor(account common.Address) (*bind.TransactOpts, error) {
	signFn, err := m.provider.Signer(account)
	if err != nil {
		return nil, err
	}
	return &bind.TransactOpts{From: account, Signer: signFn}, nil
}

func (m *Manager) fail(ctx context.Context, msg string, err error) {
	m.update(func(s *State) { s.LastError = err.Error() })
	m.log.Log(ctx, xerrors.SeverityOf(walletError(err, msg)).Level(), msg, slog.String("error", err.Error()))
}

// walletError 把钱包错误归为 CodeWalletRejected。用户拒绝保持 info 级别，其余失败提升为 warning。
func walletError(err error, message string) *xerrors.Error {
	if code, ok := wallet.ErrorCode(err); ok && code == wallet.CodeUserRejected {
		return xerrors.Wrap(lottery.CodeWalletRejected, err, message)
	}
	return xerrors.Wrap(lottery.CodeWalletRejected, err, message, xerrors.WithSeverity(xerrors.SeverityWarning))
}

// update 在锁内修改状态，释放锁后再广播快照。
func (m *Manager) update(fn func(*State)) {
	m.mu.Lock()
	fn(&m.state)
	snapshot := m.snapshotLocked()
	m.mu.Unlock()
	m.feed.Send(snapshot)
}

func (m *Manager) snapshotLocked() State {
	out := State{
		Connecting: m.state.Connecting,
		LastError:  m.state.LastError,
		Signer:     m.state.Signer,
	}
	if m.state.Address != nil {
		addr := *m.state.Address
		out.Address = &addr
	}
	if m.state.ChainID != nil {
		out.ChainID = new(big.Int).Set(m.state.ChainID)
	}
	return out
}
