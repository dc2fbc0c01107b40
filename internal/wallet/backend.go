package wallet

import (
	"context"
	"math/big"

	"LottoChain/internal/web3"

	gethcore "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// routingBackend forwards every call to the client of the wallet's current
// chain, the way an injected browser provider talks to whichever network the
// user selected.
type routingBackend struct {
	wallet *LocalWallet
}

func (r *routingBackend) CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error) {
	b, err := r.wallet.currentBackend()
	if err != nil {
		return nil, err
	}
	return b.CodeAt(ctx, account, blockNumber)
}

func (r *routingBackend) CallContract(ctx context.Context, call gethcore.CallMsg, blockNumber *big.Int) ([]byte, error) {
	b, err := r.wallet.currentBackend()
	if err != nil {
		return nil, err
	}
	return b.CallContract(ctx, call, blockNumber)
}

func (r *routingBackend) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	b, err := r.wallet.currentBackend()
	if err != nil {
		return nil, err
	}
	return b.HeaderByNumber(ctx, number)
}

func (r *routingBackend) PendingCodeAt(ctx context.Context, account common.Address) ([]byte, error) {
	b, err := r.wallet.currentBackend()
	if err != nil {
		return nil, err
	}
	return b.PendingCodeAt(ctx, account)
}

func (r *routingBackend) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	b, err := r.wallet.currentBackend()
	if err != nil {
		return 0, err
	}
	return b.PendingNonceAt(ctx, account)
}

func (r *routingBackend) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	b, err := r.wallet.currentBackend()
	if err != nil {
		return nil, err
	}
	return b.SuggestGasPrice(ctx)
}

func (r *routingBackend) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	b, err := r.wallet.currentBackend()
	if err != nil {
		return nil, err
	}
	return b.SuggestGasTipCap(ctx)
}

func (r *routingBackend) EstimateGas(ctx context.Context, call gethcore.CallMsg) (uint64, error) {
	b, err := r.wallet.currentBackend()
	if err != nil {
		return 0, err
	}
	return b.EstimateGas(ctx, call)
}

func (r *routingBackend) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	b, err := r.wallet.currentBackend()
	if err != nil {
		return err
	}
	return b.SendTransaction(ctx, tx)
}

func (r *routingBackend) FilterLogs(ctx context.Context, query gethcore.FilterQuery) ([]types.Log, error) {
	b, err := r.wallet.currentBackend()
	if err != nil {
		return nil, err
	}
	return b.FilterLogs(ctx, query)
}

func (r *routingBackend) SubscribeFilterLogs(ctx context.Context, query gethcore.FilterQuery, ch chan<- types.Log) (gethcore.Subscription, error) {
	b, err := r.wallet.currentBackend()
	if err != nil {
		return nil, err
	}
	return b.SubscribeFilterLogs(ctx, query, ch)
}

func (r *routingBackend) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	b, err := r.wallet.currentBackend()
	if err != nil {
		return nil, err
	}
	return b.TransactionReceipt(ctx, txHash)
}

func (r *routingBackend) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	b, err := r.wallet.currentBackend()
	if err != nil {
		return nil, err
	}
	return b.BalanceAt(ctx, account, blockNumber)
}

var _ web3.Backend = (*routingBackend)(nil)
