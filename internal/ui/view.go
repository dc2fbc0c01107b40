package ui

import (
	"math/big"

	"LottoChain/internal/poller"
	"LottoChain/internal/session"
)

// ViewState 是界面所处的状态，由会话与轮询结果推导得出。
type ViewState string

const (
	StateWalletUnavailable ViewState = "wallet_unavailable"
	StateDisconnected      ViewState = "disconnected"
	StateConnecting        ViewState = "connecting"
	StateWrongNetwork      ViewState = "wrong_network"
	StateConnectedLoading  ViewState = "connected_loading"
	StateConnected         ViewState = "connected"
)

// Derive 按固定优先级推导界面状态。
func Derive(walletAvailable bool, state session.State, correctNetwork bool, snap poller.Snapshot) ViewState {
	switch {
	case !walletAvailable:
		return StateWalletUnavailable
	case state.Connecting:
		return StateConnecting
	case state.Address == nil:
		return StateDisconnected
	case !correctNetwork:
		return StateWrongNetwork
	case snap.Status == nil:
		return StateConnectedLoading
	default:
		return StateConnected
	}
}

// View 是展示层的完整快照，控制台渲染与 HTTP 接口共用。
type View struct {
	State           ViewState     `json:"state"`
	Account         string        `json:"account,omitempty"`
	ChainID         string        `json:"chain_id,omitempty"`
	RequiredChainID string        `json:"required_chain_id"`
	NetworkName     string        `json:"network_name"`
	Error           string        `json:"error,omitempty"`
	Lottery         *LotteryView  `json:"lottery,omitempty"`
	Ticket          *TicketView   `json:"ticket,omitempty"`
	Rewards         *RewardsView  `json:"rewards,omitempty"`
	Notification    *Notification `json:"notification,omitempty"`
}

// LotteryView 是彩票状态区块，仅在连接到正确网络后出现。
type LotteryView struct {
	Loading        bool   `json:"loading"`
	Error          string `json:"error,omitempty"`
	Available      bool   `json:"available"`
	IsOpen         bool   `json:"is_open"`
	EntryFee       string `json:"entry_fee,omitempty"`
	WinningNumbers []int  `json:"winning_numbers,omitempty"`
}

// TicketView 是购票表单。Open 为 false 时只展示关闭提示。
type TicketView struct {
	Open       bool        `json:"open"`
	Numbers    TicketDraft `json:"numbers"`
	CanSubmit  bool        `json:"can_submit"`
	Submitting bool        `json:"submitting"`
}

// RewardsView 是奖励面板。
type RewardsView struct {
	Account    string `json:"account"`
	PendingWei string `json:"pending_wei"`
	Pending    string `json:"pending"`
	CanClaim   bool   `json:"can_claim"`
	Claiming   bool   `json:"claiming"`
	Message    string `json:"message,omitempty"`
}

func lotteryView(snap poller.Snapshot) *LotteryView {
	out := &LotteryView{
		Loading: snap.Loading || !snap.Active,
		Error:   snap.Error,
	}
	if snap.Status != nil {
		out.Available = true
		out.IsOpen = snap.Status.IsOpen
		out.EntryFee = snap.Status.EntryFee()
		out.WinningNumbers = snap.Status.DrawnNumbers()
	}
	return out
}

func rewardsView(account string, rewards *big.Int, claiming bool) *RewardsView {
	if rewards == nil {
		rewards = new(big.Int)
	}
	out := &RewardsView{
		Account:    ShortAddress(account),
		PendingWei: rewards.String(),
		Pending:    FormatRewards(rewards),
		CanClaim:   CanClaim(rewards),
		Claiming:   claiming,
	}
	if !out.CanClaim {
		out.Message = NoRewardsMessage
	}
	return out
}

// ShortAddress 把地址缩写为 0x1234...abcd。
func ShortAddress(account string) string {
	if len(account) <= 10 {
		return account
	}
	return account[:6] + "..." + account[len(account)-4:]
}
