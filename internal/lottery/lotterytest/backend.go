// Package lotterytest provides an in-memory lottery contract that satisfies
// web3.Backend, so gateway, poller and presentation tests run without a node.
package lotterytest

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"LottoChain/internal/lottery"

	gethcore "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"
)

// ErrNoRewards mirrors the contract revert for claims without a balance.
var ErrNoRewards = errors.New("execution reverted: No rewards to claim")

// Ticket is a purchase recorded by the fake contract.
type Ticket struct {
	Player  common.Address
	Numbers lottery.Numbers
	Value   *big.Int
}

// Backend is a fake chain hosting a single lottery contract. Transactions are
// mined as soon as they are sent.
type Backend struct {
	mu sync.Mutex

	abi     abi.ABI
	address common.Address
	chainID *big.Int

	open     bool
	winning  lottery.Numbers
	fee      *big.Int
	rewards  map[common.Address]*big.Int
	tickets  []Ticket
	receipts map[common.Hash]*types.Receipt
	nonces   map[common.Address]uint64
	block    uint64

	readErr  error
	writeErr error
	calls    map[string]int
	onCall   func(method string)
}

// NewBackend returns an open lottery with the given entry fee.
func NewBackend(address common.Address, chainID *big.Int, fee *big.Int) *Backend {
	parsed, err := abi.JSON(strings.NewReader(lottery.ContractABI))
	if err != nil {
		panic(err)
	}
	return &Backend{
		abi:      parsed,
		address:  address,
		chainID:  new(big.Int).Set(chainID),
		open:     true,
		fee:      new(big.Int).Set(fee),
		rewards:  make(map[common.Address]*big.Int),
		receipts: make(map[common.Hash]*types.Receipt),
		nonces:   make(map[common.Address]uint64),
		calls:    make(map[string]int),
		block:    1,
	}
}

// SetOpen toggles lotteryOpen.
func (b *Backend) SetOpen(open bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.open = open
}

// SetWinningNumbers sets the drawn numbers.
func (b *Backend) SetWinningNumbers(numbers lottery.Numbers) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.winning = numbers
}

// SetRewards sets the pending rewards of account.
func (b *Backend) SetRewards(account common.Address, wei *big.Int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rewards[account] = new(big.Int).Set(wei)
}

// FailReads makes every eth_call return err until reset with nil.
func (b *Backend) FailReads(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.readErr = err
}

// FailWrites makes every SendTransaction return err until reset with nil.
func (b *Backend) FailWrites(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.writeErr = err
}

// OnCall installs a hook invoked with the method name of every eth_call.
func (b *Backend) OnCall(fn func(method string)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onCall = fn
}

// Calls returns how many times method was read.
func (b *Backend) Calls(method string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[method]
}

// Tickets returns the purchases recorded so far.
func (b *Backend) Tickets() []Ticket {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Ticket(nil), b.tickets...)
}

// CodeAt reports non-empty code at the lottery address.
func (b *Backend) CodeAt(_ context.Context, account common.Address, _ *big.Int) ([]byte, error) {
	if account == b.address {
		return []byte{0x60, 0x80}, nil
	}
	return nil, nil
}

// PendingCodeAt mirrors CodeAt.
func (b *Backend) PendingCodeAt(ctx context.Context, account common.Address) ([]byte, error) {
	return b.CodeAt(ctx, account, nil)
}

// CallContract executes a read against the fake contract state.
func (b *Backend) CallContract(_ context.Context, call gethcore.CallMsg, _ *big.Int) ([]byte, error) {
	method, args, err := b.decode(call.Data)
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	b.calls[method.Name]++
	hook := b.onCall
	readErr := b.readErr
	var out []byte
	if readErr == nil {
		out, err = b.read(method, args)
	}
	b.mu.Unlock()

	if hook != nil {
		hook(method.Name)
	}
	if readErr != nil {
		return nil, readErr
	}
	return out, err
}

func (b *Backend) read(method *abi.Method, args []any) ([]byte, error) {
	switch method.Name {
	case lottery.MethodLotteryOpen:
		return method.Outputs.Pack(b.open)
	case lottery.MethodWinningNumbers:
		return method.Outputs.Pack([lottery.NumbersPerTicket]uint8(b.winning))
	case lottery.MethodEntryFee:
		return method.Outputs.Pack(new(big.Int).Set(b.fee))
	case lottery.MethodPendingRewards:
		account := args[0].(common.Address)
		reward := b.rewards[account]
		if reward == nil {
			reward = new(big.Int)
		}
		return method.Outputs.Pack(new(big.Int).Set(reward))
	default:
		return nil, fmt.Errorf("execution reverted: %s is not a view", method.Name)
	}
}

// HeaderByNumber returns a London header so transactions use dynamic fees.
func (b *Backend) HeaderByNumber(context.Context, *big.Int) (*types.Header, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return &types.Header{Number: new(big.Int).SetUint64(b.block), BaseFee: big.NewInt(1_000_000_000)}, nil
}

// PendingNonceAt returns the next nonce of account.
func (b *Backend) PendingNonceAt(_ context.Context, account common.Address) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.nonces[account], nil
}

// SuggestGasPrice returns a fixed gas price.
func (b *Backend) SuggestGasPrice(context.Context) (*big.Int, error) {
	return big.NewInt(2_000_000_000), nil
}

// SuggestGasTipCap returns a fixed tip.
func (b *Backend) SuggestGasTipCap(context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

// EstimateGas simulates the write and fails the way a node does on revert.
func (b *Backend) EstimateGas(_ context.Context, call gethcore.CallMsg) (uint64, error) {
	method, args, err := b.decode(call.Data)
	if err != nil {
		return 0, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.check(method, args, call.From, call.Value); err != nil {
		return 0, err
	}
	return 90_000, nil
}

// SendTransaction applies the write and mines it immediately.
func (b *Backend) SendTransaction(_ context.Context, tx *types.Transaction) error {
	from, err := types.Sender(types.LatestSignerForChainID(b.chainID), tx)
	if err != nil {
		return fmt.Errorf("invalid sender: %w", err)
	}
	method, args, err := b.decode(tx.Data())
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.writeErr != nil {
		return b.writeErr
	}
	if tx.Nonce() != b.nonces[from] {
		return fmt.Errorf("nonce too low: have %d want %d", tx.Nonce(), b.nonces[from])
	}
	b.nonces[from]++
	b.block++

	status := types.ReceiptStatusSuccessful
	if err := b.check(method, args, from, tx.Value()); err != nil {
		status = types.ReceiptStatusFailed
	} else {
		b.apply(method, args, from, tx.Value())
	}
	b.receipts[tx.Hash()] = &types.Receipt{
		Status:      status,
		TxHash:      tx.Hash(),
		BlockNumber: new(big.Int).SetUint64(b.block),
		GasUsed:     60_000,
	}
	return nil
}

func (b *Backend) check(method *abi.Method, args []any, from common.Address, value *big.Int) error {
	switch method.Name {
	case lottery.MethodBuyTicket:
		if !b.open {
			return errors.New("execution reverted: Lottery is closed")
		}
		if value == nil || value.Cmp(b.fee) != 0 {
			return errors.New("execution reverted: Incorrect entry fee")
		}
		numbers := args[0].([lottery.NumbersPerTicket]uint8)
		for _, n := range numbers {
			if n < lottery.MinNumber || n > lottery.MaxNumber {
				return errors.New("execution reverted: Number out of range")
			}
		}
		return nil
	case lottery.MethodClaimRewards:
		if reward := b.rewards[from]; reward == nil || reward.Sign() == 0 {
			return ErrNoRewards
		}
		return nil
	default:
		return fmt.Errorf("execution reverted: %s is not payable", method.Name)
	}
}

func (b *Backend) apply(method *abi.Method, args []any, from common.Address, value *big.Int) {
	switch method.Name {
	case lottery.MethodBuyTicket:
		b.tickets = append(b.tickets, Ticket{
			Player:  from,
			Numbers: lottery.Numbers(args[0].([lottery.NumbersPerTicket]uint8)),
			Value:   new(big.Int).Set(value),
		})
	case lottery.MethodClaimRewards:
		delete(b.rewards, from)
	}
}

// TransactionReceipt returns the receipt of a mined transaction.
func (b *Backend) TransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	receipt, ok := b.receipts[hash]
	if !ok {
		return nil, gethcore.NotFound
	}
	return receipt, nil
}

// BalanceAt reports a constant balance.
func (b *Backend) BalanceAt(context.Context, common.Address, *big.Int) (*big.Int, error) {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(20), nil), nil
}

// FilterLogs returns no logs; the lottery ABI declares no events.
func (b *Backend) FilterLogs(context.Context, gethcore.FilterQuery) ([]types.Log, error) {
	return nil, nil
}

// SubscribeFilterLogs returns an idle subscription.
func (b *Backend) SubscribeFilterLogs(ctx context.Context, _ gethcore.FilterQuery, _ chan<- types.Log) (gethcore.Subscription, error) {
	return event.NewSubscription(func(quit <-chan struct{}) error {
		select {
		case <-quit:
		case <-ctx.Done():
		}
		return nil
	}), nil
}

func (b *Backend) decode(data []byte) (*abi.Method, []any, error) {
	if len(data) < 4 {
		return nil, nil, errors.New("execution reverted: missing selector")
	}
	method, err := b.abi.MethodById(data[:4])
	if err != nil {
		return nil, nil, fmt.Errorf("execution reverted: %w", err)
	}
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, nil, fmt.Errorf("execution reverted: %w", err)
	}
	return method, args, nil
}
