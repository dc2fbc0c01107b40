// Package lottery is the contract gateway: it binds the fixed lottery ABI to
// a chain backend and exposes the four reads and two writes the client uses.
// Nothing here retries; every chain error reaches the caller.
package lottery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	xerrors "LottoChain/internal/errors"
	"LottoChain/internal/observability/metrics"
	"LottoChain/internal/web3"
	"LottoChain/pkg/logger"

	gethcore "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// defaultReceiptInterval is how often WaitMined polls for a receipt.
const defaultReceiptInterval = 500 * time.Millisecond

// Gateway wraps the lottery contract deployed at a fixed address.
type Gateway struct {
	address  common.Address
	abi      abi.ABI
	backend  web3.Backend
	contract *bind.BoundContract
	interval time.Duration
	log      *slog.Logger
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithReceiptInterval overrides the receipt polling interval.
func WithReceiptInterval(interval time.Duration) Option {
	return func(g *Gateway) {
		if interval > 0 {
			g.interval = interval
		}
	}
}

// NewGateway binds the lottery ABI to address on backend.
func NewGateway(address common.Address, backend web3.Backend, opts ...Option) (*Gateway, error) {
	if backend == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "lottery gateway requires a chain backend")
	}
	parsed, err := abi.JSON(strings.NewReader(ContractABI))
	if err != nil {
		return nil, fmt.Errorf("parse lottery abi: %w", err)
	}
	g := &Gateway{
		address:  address,
		abi:      parsed,
		backend:  backend,
		contract: bind.NewBoundContract(address, parsed, backend, backend, backend),
		interval: defaultReceiptInterval,
		log:      logger.Named("gateway"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g, nil
}

// Address returns the contract address.
func (g *Gateway) Address() common.Address {
	return g.address
}

// LotteryOpen reads lotteryOpen().
func (g *Gateway) LotteryOpen(ctx context.Context) (bool, error) {
	out, err := g.call(ctx, MethodLotteryOpen)
	if err != nil {
		return false, err
	}
	open, ok := out[0].(bool)
	if !ok {
		return false, g.decodeError(MethodLotteryOpen, out[0])
	}
	return open, nil
}

// WinningNumbers reads winningNumbers(); unset slots are zero.
func (g *Gateway) WinningNumbers(ctx context.Context) (Numbers, error) {
	out, err := g.call(ctx, MethodWinningNumbers)
	if err != nil {
		return Numbers{}, err
	}
	numbers, ok := out[0].([NumbersPerTicket]uint8)
	if !ok {
		return Numbers{}, g.decodeError(MethodWinningNumbers, out[0])
	}
	return Numbers(numbers), nil
}

// EntryFee reads ENTRY_FEE() in wei.
func (g *Gateway) EntryFee(ctx context.Context) (*big.Int, error) {
	out, err := g.call(ctx, MethodEntryFee)
	if err != nil {
		return nil, err
	}
	fee, ok := out[0].(*big.Int)
	if !ok {
		return nil, g.decodeError(MethodEntryFee, out[0])
	}
	return fee, nil
}

// PendingRewards reads pendingRewards(account) in wei.
func (g *Gateway) PendingRewards(ctx context.Context, account common.Address) (*big.Int, error) {
	out, err := g.call(ctx, MethodPendingRewards, account)
	if err != nil {
		return nil, err
	}
	rewards, ok := out[0].(*big.Int)
	if !ok {
		return nil, g.decodeError(MethodPendingRewards, out[0])
	}
	return rewards, nil
}

// Status performs the three status reads in sequence.
func (g *Gateway) Status(ctx context.Context) (Status, error) {
	open, err := g.LotteryOpen(ctx)
	if err != nil {
		return Status{}, err
	}
	numbers, err := g.WinningNumbers(ctx)
	if err != nil {
		return Status{}, err
	}
	fee, err := g.EntryFee(ctx)
	if err != nil {
		return Status{}, err
	}
	return Status{IsOpen: open, WinningNumbers: numbers, EntryFeeWei: fee}, nil
}

// BuyTicket validates numbers, reads the current entry fee and sends
// buyTicket(numbers) with that fee attached. The returned transaction is only
// submitted; callers must WaitMined before treating the purchase as done.
func (g *Gateway) BuyTicket(ctx context.Context, signer *bind.TransactOpts, numbers []int) (*types.Transaction, error) {
	if signer == nil {
		return nil, xerrors.New(CodeWriteFailure, "Signer not available")
	}
	ticket, err := ValidateTicket(numbers)
	if err != nil {
		return nil, err
	}
	fee, err := g.EntryFee(ctx)
	if err != nil {
		return nil, err
	}

	opts := g.transactOpts(ctx, signer)
	opts.Value = fee
	tx, err := g.transact(opts, MethodBuyTicket, [NumbersPerTicket]uint8(ticket))
	if err != nil {
		return nil, err
	}
	g.log.Info("buyTicket submitted",
		slog.String("tx_hash", tx.Hash().Hex()),
		slog.String("from", signer.From.Hex()),
		slog.String("value_wei", fee.String()),
	)
	return tx, nil
}

// ClaimRewards sends claimRewards().
func (g *Gateway) ClaimRewards(ctx context.Context, signer *bind.TransactOpts) (*types.Transaction, error) {
	if signer == nil {
		return nil, xerrors.New(CodeWriteFailure, "Signer not available")
	}
	tx, err := g.transact(g.transactOpts(ctx, signer), MethodClaimRewards)
	if err != nil {
		return nil, err
	}
	g.log.Info("claimRewards submitted",
		slog.String("tx_hash", tx.Hash().Hex()),
		slog.String("from", signer.From.Hex()),
	)
	return tx, nil
}

// WaitMined blocks until tx is included. A reverted receipt is reported as a
// write failure alongside the receipt.
func (g *Gateway) WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	if tx == nil {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "transaction is nil")
	}
	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()

	for {
		receipt, err := g.backend.TransactionReceipt(ctx, tx.Hash())
		if err == nil && receipt != nil {
			if receipt.Status != types.ReceiptStatusSuccessful {
				return receipt, xerrors.New(CodeWriteFailure, "transaction reverted",
					xerrors.WithMetadata("tx_hash", tx.Hash().Hex()))
			}
			return receipt, nil
		}
		if err != nil && !errors.Is(err, gethcore.NotFound) {
			return nil, xerrors.Wrap(CodeWriteFailure, err, "wait for transaction receipt",
				xerrors.WithMetadata("tx_hash", tx.Hash().Hex()),
				xerrors.WithRetryable(true))
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (g *Gateway) call(ctx context.Context, method string, params ...any) ([]any, error) {
	started := time.Now()
	var out []any
	err := g.contract.Call(&bind.CallOpts{Context: ctx}, &out, method, params...)
	if err == nil && len(out) == 0 {
		err = fmt.Errorf("%s returned no values", method)
	}
	metrics.ObserveContractCall(method, err, time.Since(started))
	if err != nil {
		return nil, xerrors.Wrap(CodeReadFailure, err, method)
	}
	return out, nil
}

func (g *Gateway) transact(opts *bind.TransactOpts, method string, params ...any) (*types.Transaction, error) {
	started := time.Now()
	tx, err := g.contract.Transact(opts, method, params...)
	metrics.ObserveContractCall(method, err, time.Since(started))
	if err != nil {
		return nil, xerrors.Wrap(CodeWriteFailure, err, method)
	}
	return tx, nil
}

// transactOpts copies the signing handle so per-call fields never leak back
// into the session's copy.
func (g *Gateway) transactOpts(ctx context.Context, signer *bind.TransactOpts) *bind.TransactOpts {
	opts := *signer
	opts.Context = ctx
	opts.Value = nil
	return &opts
}

func (g *Gateway) decodeError(method string, value any) error {
	return xerrors.New(CodeReadFailure, fmt.Sprintf("%s returned unexpected type %T", method, value))
}
