package wallet

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/big"
	"sync"

	"LottoChain/internal/web3"
	"LottoChain/pkg/logger"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/event"
)

// ChainSource resolves chain clients by id; *provider.Registry satisfies it.
type ChainSource interface {
	Client(chainID *big.Int) (web3.Client, bool)
	DefaultChainID() *big.Int
}

// ApprovalKind identifies what the wallet is asking the user to approve.
type ApprovalKind string

const (
	ApproveConnect     ApprovalKind = "connect"
	ApproveSwitchChain ApprovalKind = "switch_chain"
)

// ApprovalRequest is shown to the user before the wallet grants a request.
type ApprovalRequest struct {
	Kind    ApprovalKind
	ChainID *big.Int
}

// Approver decides interactive requests. A nil Approver approves everything.
type Approver func(ctx context.Context, req ApprovalRequest) bool

// LocalWallet holds private keys in memory and behaves like a browser wallet
// extension: access must be requested, the network can be switched among the
// configured chains, and changes are pushed to subscribers.
type LocalWallet struct {
	chains   ChainSource
	approver Approver
	log      *slog.Logger

	mu         sync.RWMutex
	keys       map[common.Address]*ecdsa.PrivateKey
	accounts   []common.Address
	authorized bool
	chainID    *big.Int

	accountsFeed event.Feed
	chainFeed    event.Feed
	scope        event.SubscriptionScope
}

// LocalOption configures a LocalWallet.
type LocalOption func(*LocalWallet)

// WithApprover installs an interactive approval callback.
func WithApprover(approver Approver) LocalOption {
	return func(w *LocalWallet) {
		w.approver = approver
	}
}

// NewLocalWallet creates a wallet starting on the chain source's default chain.
func NewLocalWallet(chains ChainSource, keys []*ecdsa.PrivateKey, opts ...LocalOption) (*LocalWallet, error) {
	if chains == nil {
		return nil, fmt.Errorf("wallet requires a chain source")
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("wallet requires at least one private key")
	}
	start := chains.DefaultChainID()
	if start == nil {
		return nil, fmt.Errorf("chain source has no default chain")
	}

	w := &LocalWallet{
		chains:  chains,
		keys:    make(map[common.Address]*ecdsa.PrivateKey, len(keys)),
		chainID: new(big.Int).Set(start),
		log:     logger.Named("wallet"),
	}
	for _, key := range keys {
		addr := crypto.PubkeyToAddress(key.PublicKey)
		if _, dup := w.keys[addr]; dup {
			continue
		}
		w.keys[addr] = key
		w.accounts = append(w.accounts, addr)
	}
	for _, opt := range opts {
		if opt != nil {
			opt(w)
		}
	}
	return w, nil
}

// Request implements Provider.
func (w *LocalWallet) Request(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	switch method {
	case MethodRequestAccounts:
		w.mu.RLock()
		authorized := w.authorized
		w.mu.RUnlock()
		if !authorized {
			if !w.approve(ctx, ApprovalRequest{Kind: ApproveConnect}) {
				return nil, &ProviderError{Code: CodeUserRejected, Message: "User rejected the request."}
			}
			w.mu.Lock()
			w.authorized = true
			w.mu.Unlock()
			w.log.Info("account access granted")
		}
		return json.Marshal(w.accountHexes(true))
	case MethodAccounts:
		return json.Marshal(w.accountHexes(false))
	case MethodChainID:
		return json.Marshal(FormatChainID(w.currentChainID()))
	case MethodSwitchChain:
		return w.switchChain(ctx, params)
	default:
		return nil, &ProviderError{Code: CodeUnsupportedMethod, Message: fmt.Sprintf("The Provider does not support the requested method: %s", method)}
	}
}

func (w *LocalWallet) switchChain(ctx context.Context, params []any) (json.RawMessage, error) {
	if len(params) != 1 {
		return nil, &ProviderError{Code: -32602, Message: "wallet_switchEthereumChain expects one parameter"}
	}
	var target SwitchChainParams
	raw, err := json.Marshal(params[0])
	if err != nil {
		return nil, &ProviderError{Code: -32602, Message: err.Error()}
	}
	if err := json.Unmarshal(raw, &target); err != nil {
		return nil, &ProviderError{Code: -32602, Message: err.Error()}
	}
	id, err := ParseChainID(target.ChainID)
	if err != nil {
		return nil, &ProviderError{Code: -32602, Message: err.Error()}
	}
	if _, ok := w.chains.Client(id); !ok {
		return nil, &ProviderError{
			Code:    CodeUnrecognizedChain,
			Message: fmt.Sprintf("Unrecognized chain ID %q. Try adding the chain using wallet_addEthereumChain first.", target.ChainID),
		}
	}
	if id.Cmp(w.currentChainID()) == 0 {
		return json.RawMessage("null"), nil
	}
	if !w.approve(ctx, ApprovalRequest{Kind: ApproveSwitchChain, ChainID: id}) {
		return nil, &ProviderError{Code: CodeUserRejected, Message: "User rejected the request."}
	}

	w.mu.Lock()
	w.chainID = id
	w.mu.Unlock()
	w.log.Info("network switched", slog.String("chain_id", id.String()))
	w.chainFeed.Send(FormatChainID(id))
	return json.RawMessage("null"), nil
}

// SelectAccount makes account the primary one, like picking it in a wallet
// extension, and notifies subscribers when access has been granted.
func (w *LocalWallet) SelectAccount(account common.Address) error {
	w.mu.Lock()
	idx := -1
	for i, a := range w.accounts {
		if a == account {
			idx = i
			break
		}
	}
	if idx < 0 {
		w.mu.Unlock()
		return fmt.Errorf("unknown account %s", account.Hex())
	}
	reordered := make([]common.Address, 0, len(w.accounts))
	reordered = append(reordered, account)
	reordered = append(reordered, w.accounts[:idx]...)
	reordered = append(reordered, w.accounts[idx+1:]...)
	w.accounts = reordered
	authorized := w.authorized
	w.mu.Unlock()

	if authorized {
		w.accountsFeed.Send(w.accountHexes(false))
	}
	return nil
}

// Revoke withdraws account access; subscribers receive an empty account list.
func (w *LocalWallet) Revoke() {
	w.mu.Lock()
	was := w.authorized
	w.authorized = false
	w.mu.Unlock()
	if was {
		w.log.Info("account access revoked")
		w.accountsFeed.Send([]string{})
	}
}

// Accounts lists every account the wallet holds, primary first.
func (w *LocalWallet) Accounts() []common.Address {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return append([]common.Address(nil), w.accounts...)
}

// SubscribeAccountsChanged implements Provider.
func (w *LocalWallet) SubscribeAccountsChanged(ch chan<- []string) event.Subscription {
	return w.scope.Track(w.accountsFeed.Subscribe(ch))
}

// SubscribeChainChanged implements Provider.
func (w *LocalWallet) SubscribeChainChanged(ch chan<- string) event.Subscription {
	return w.scope.Track(w.chainFeed.Subscribe(ch))
}

// Signer implements Provider. The returned function signs for whatever chain
// the wallet is on at signing time.
func (w *LocalWallet) Signer(account common.Address) (bind.SignerFn, error) {
	w.mu.RLock()
	key, ok := w.keys[account]
	authorized := w.authorized
	w.mu.RUnlock()
	if !ok {
		return nil, &ProviderError{Code: CodeUnauthorized, Message: fmt.Sprintf("unknown account %s", account.Hex())}
	}
	if !authorized {
		return nil, &ProviderError{Code: CodeUnauthorized, Message: "The requested account has not been authorized by the user."}
	}
	return func(from common.Address, tx *types.Transaction) (*types.Transaction, error) {
		if from != account {
			return nil, bind.ErrNotAuthorized
		}
		w.mu.RLock()
		still := w.authorized
		w.mu.RUnlock()
		if !still {
			return nil, &ProviderError{Code: CodeUnauthorized, Message: "The requested account has not been authorized by the user."}
		}
		return types.SignTx(tx, types.LatestSignerForChainID(w.currentChainID()), key)
	}, nil
}

// Backend implements Provider.
func (w *LocalWallet) Backend() web3.Backend {
	return &routingBackend{wallet: w}
}

// Close ends every subscription handed out by the wallet.
func (w *LocalWallet) Close() {
	w.scope.Close()
}

func (w *LocalWallet) approve(ctx context.Context, req ApprovalRequest) bool {
	if w.approver == nil {
		return true
	}
	return w.approver(ctx, req)
}

func (w *LocalWallet) accountHexes(ignoreAuth bool) []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if !w.authorized && !ignoreAuth {
		return []string{}
	}
	out := make([]string, len(w.accounts))
	for i, a := range w.accounts {
		out[i] = a.Hex()
	}
	return out
}

func (w *LocalWallet) currentChainID() *big.Int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return new(big.Int).Set(w.chainID)
}

func (w *LocalWallet) currentBackend() (web3.Backend, error) {
	id := w.currentChainID()
	client, ok := w.chains.Client(id)
	if !ok || client.Backend() == nil {
		return nil, fmt.Errorf("no backend for chain %s", id)
	}
	return client.Backend(), nil
}

var _ Provider = (*LocalWallet)(nil)
