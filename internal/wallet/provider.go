// Package wallet defines the narrow capability the client needs from a
// wallet: JSON-RPC style requests, account and chain change notifications, a
// transaction signer and a chain backend routed to the wallet's current
// network. LocalWallet is the in-process implementation.
package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"LottoChain/internal/web3"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/event"
)

// Request methods understood by providers.
const (
	MethodRequestAccounts = "eth_requestAccounts"
	MethodAccounts        = "eth_accounts"
	MethodChainID         = "eth_chainId"
	MethodSwitchChain     = "wallet_switchEthereumChain"
)

// EIP-1193 / EIP-3085 provider error codes.
const (
	CodeUserRejected      = 4001
	CodeUnauthorized      = 4100
	CodeUnsupportedMethod = 4200
	CodeUnrecognizedChain = 4902
)

// ProviderError is an error reported by the wallet with a numeric code.
type ProviderError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *ProviderError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

// ErrorCode extracts the provider error code from err.
func ErrorCode(err error) (int, bool) {
	var perr *ProviderError
	if errors.As(err, &perr) {
		return perr.Code, true
	}
	return 0, false
}

// SwitchChainParams is the single parameter of wallet_switchEthereumChain.
type SwitchChainParams struct {
	ChainID string `json:"chainId"`
}

// Provider is the wallet capability injected into the session manager.
type Provider interface {
	Request(ctx context.Context, method string, params ...any) (json.RawMessage, error)
	// SubscribeAccountsChanged delivers the authorized account list whenever
	// it changes; an empty list means the wallet revoked access.
	SubscribeAccountsChanged(ch chan<- []string) event.Subscription
	// SubscribeChainChanged delivers the hex chain id after a network switch.
	SubscribeChainChanged(ch chan<- string) event.Subscription
	// Signer returns a signing function for an authorized account.
	Signer(account common.Address) (bind.SignerFn, error)
	// Backend returns a chain backend that follows the wallet's network.
	Backend() web3.Backend
}

// RequestAccounts asks the wallet for account access.
func RequestAccounts(ctx context.Context, p Provider) ([]common.Address, error) {
	raw, err := p.Request(ctx, MethodRequestAccounts)
	if err != nil {
		return nil, err
	}
	var hexes []string
	if err := json.Unmarshal(raw, &hexes); err != nil {
		return nil, fmt.Errorf("decode accounts: %w", err)
	}
	return ParseAccounts(hexes)
}

// ChainID asks the wallet for its current network.
func ChainID(ctx context.Context, p Provider) (*big.Int, error) {
	raw, err := p.Request(ctx, MethodChainID)
	if err != nil {
		return nil, err
	}
	var hexID string
	if err := json.Unmarshal(raw, &hexID); err != nil {
		return nil, fmt.Errorf("decode chain id: %w", err)
	}
	return ParseChainID(hexID)
}

// SwitchChain asks the wallet to move to chainID.
func SwitchChain(ctx context.Context, p Provider, chainID *big.Int) error {
	_, err := p.Request(ctx, MethodSwitchChain, SwitchChainParams{ChainID: FormatChainID(chainID)})
	return err
}

// ParseAccounts converts hex strings into addresses, rejecting malformed ones.
func ParseAccounts(hexes []string) ([]common.Address, error) {
	accounts := make([]common.Address, 0, len(hexes))
	for _, h := range hexes {
		if !common.IsHexAddress(h) {
			return nil, fmt.Errorf("invalid account %q", h)
		}
		accounts = append(accounts, common.HexToAddress(h))
	}
	return accounts, nil
}

// ParseChainID decodes a 0x-prefixed hex chain id.
func ParseChainID(hexID string) (*big.Int, error) {
	trimmed := strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(hexID), "0x"), "0X")
	if trimmed == "" {
		return nil, fmt.Errorf("invalid chain id %q", hexID)
	}
	id, ok := new(big.Int).SetString(trimmed, 16)
	if !ok || id.Sign() <= 0 {
		return nil, fmt.Errorf("invalid chain id %q", hexID)
	}
	return id, nil
}

// FormatChainID encodes a chain id the way wallets expect it, e.g. 0x7a69.
func FormatChainID(id *big.Int) string {
	if id == nil {
		return "0x0"
	}
	return "0x" + id.Text(16)
}
