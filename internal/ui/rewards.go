package ui

import (
	"context"
	"math/big"
	"sync"

	"LottoChain/internal/lottery"
)

// 奖励面板使用的提示文案。
const (
	RewardsClaimedMessage = "Rewards claimed successfully!"
	NoRewardsMessage      = "No pending rewards to claim"
	ClaimFailedMessage    = "Failed to claim rewards"
)

// rewardsDecimals 是奖励金额展示的小数位数。
const rewardsDecimals = 6

// RewardsPanel 负责领取奖励的在途标记。金额始终来自轮询结果。
type RewardsPanel struct {
	claim func(ctx context.Context) error

	mu       sync.Mutex
	claiming bool
}

func newRewardsPanel(claim func(ctx context.Context) error) *RewardsPanel {
	return &RewardsPanel{claim: claim}
}

// Claiming 表示领奖交易是否在途。
func (p *RewardsPanel) Claiming() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.claiming
}

// CanClaim 表示领取按钮是否可见：待领取奖励必须大于 0。
func CanClaim(rewards *big.Int) bool {
	return rewards != nil && rewards.Sign() > 0
}

// FormatRewards 以 6 位小数展示奖励。
func FormatRewards(rewards *big.Int) string {
	if rewards == nil {
		rewards = new(big.Int)
	}
	return lottery.FormatEtherFixed(rewards, rewardsDecimals)
}

// Claim 发起领奖，rewards 为当前展示的金额。金额为 0 时不发送交易。
func (p *RewardsPanel) Claim(ctx context.Context, rewards *big.Int) error {
	if !CanClaim(rewards) {
		return ErrNothingToClaim
	}
	p.mu.Lock()
	if p.claiming {
		p.mu.Unlock()
		return ErrBusy
	}
	p.claiming = true
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.claiming = false
		p.mu.Unlock()
	}()
	return p.claim(ctx)
}
