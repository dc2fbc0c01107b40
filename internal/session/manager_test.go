package session

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	xerrors "LottoChain/internal/errors"
	"LottoChain/internal/lottery"
	"LottoChain/internal/wallet"
	"LottoChain/internal/web3"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"
)

var (
	alice = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	bob   = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
)

type fakeProvider struct {
	mu        sync.Mutex
	accounts  []string
	chainID   string
	accessErr error
	switchErr error
	switches  int

	accountsFeed event.Feed
	chainFeed    event.Feed
}

func (p *fakeProvider) Request(_ context.Context, method string, _ ...any) (json.RawMessage, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch method {
	case wallet.MethodRequestAccounts:
		if p.accessErr != nil {
			return nil, p.accessErr
		}
		return json.Marshal(p.accounts)
	case wallet.MethodChainID:
		return json.Marshal(p.chainID)
	case wallet.MethodSwitchChain:
		p.switches++
		if p.switchErr != nil {
			return nil, p.switchErr
		}
		return json.RawMessage("null"), nil
	}
	return nil, &wallet.ProviderError{Code: wallet.CodeUnsupportedMethod, Message: method}
}

func (p *fakeProvider) SubscribeAccountsChanged(ch chan<- []string) event.Subscription {
	return p.accountsFeed.Subscribe(ch)
}

func (p *fakeProvider) SubscribeChainChanged(ch chan<- string) event.Subscription {
	return p.chainFeed.Subscribe(ch)
}

func (p *fakeProvider) Signer(common.Address) (bind.SignerFn, error) {
	return func(_ common.Address, tx *types.Transaction) (*types.Transaction, error) { return tx, nil }, nil
}

func (p *fakeProvider) Backend() web3.Backend { return nil }

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestConnectWithoutWallet(t *testing.T) {
	m := NewManager(nil)
	m.Connect(context.Background())

	state := m.State()
	if state.LastError != "wallet is not available" {
		t.Fatalf("unexpected error %q", state.LastError)
	}
	if state.Connected() || state.Connecting {
		t.Fatal("expected no session")
	}
	if m.Available() {
		t.Fatal("manager without provider must not be available")
	}
}

func TestConnectOnRequiredChain(t *testing.T) {
	p := &fakeProvider{accounts: []string{alice.Hex(), bob.Hex()}, chainID: "0x7a69"}
	m := NewManager(p)
	m.Connect(context.Background())

	state := m.State()
	if state.Address == nil || *state.Address != alice {
		t.Fatalf("expected first account, got %v", state.Address)
	}
	if state.Signer == nil || state.Signer.From != alice {
		t.Fatal("expected signing handle for first account")
	}
	if !m.IsCorrectNetwork() {
		t.Fatal("expected correct network")
	}
	if p.switches != 0 {
		t.Fatal("no switch expected on the required chain")
	}
	if state.Connecting || state.LastError != "" {
		t.Fatalf("unexpected state %+v", state)
	}
}

func TestConnectRejected(t *testing.T) {
	p := &fakeProvider{accessErr: &wallet.ProviderError{Code: wallet.CodeUserRejected, Message: "User rejected the request."}}
	m := NewManager(p)
	m.Connect(context.Background())

	state := m.State()
	if state.LastError != "User rejected the request." {
		t.Fatalf("expected rejection message, got %q", state.LastError)
	}
	if state.Connected() || state.Connecting {
		t.Fatal("rejected connect must leave the session empty")
	}
}

func TestConnectOnWrongChainSwitches(t *testing.T) {
	cases := []struct {
		name      string
		switchErr error
		want      string
	}{
		{name: "switched", want: ""},
		{
			name:      "unknown chain",
			switchErr: &wallet.ProviderError{Code: wallet.CodeUnrecognizedChain, Message: "Unrecognized chain ID"},
			want:      "Please manually switch to Localhost (Hardhat) network in your wallet",
		},
		{
			name:      "other failure",
			switchErr: errors.New("boom"),
			want:      "Failed to switch network",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := &fakeProvider{accounts: []string{alice.Hex()}, chainID: "0x1", switchErr: tc.switchErr}
			m := NewManager(p)
			m.Connect(context.Background())

			if p.switches != 1 {
				t.Fatalf("expected one switch request, got %d", p.switches)
			}
			state := m.State()
			if state.LastError != tc.want {
				t.Fatalf("unexpected error %q", state.LastError)
			}
			if m.IsCorrectNetwork() {
				t.Fatal("chain id only changes on chainChanged")
			}
			if !state.Connected() {
				t.Fatal("session should stay connected on the wrong network")
			}
		})
	}
}

func TestDisconnectResetsEverything(t *testing.T) {
	p := &fakeProvider{accounts: []string{alice.Hex()}, chainID: "0x1", switchErr: errors.New("boom")}
	m := NewManager(p)
	m.Connect(context.Background())
	if m.State().LastError == "" {
		t.Fatal("expected error before disconnect")
	}

	m.Disconnect()
	state := m.State()
	if state.Address != nil || state.Signer != nil || state.ChainID != nil || state.Connecting || state.LastError != "" {
		t.Fatalf("expected empty state, got %+v", state)
	}
}

func TestWalletPushes(t *testing.T) {
	p := &fakeProvider{accounts: []string{alice.Hex()}, chainID: "0x7a69"}
	m := NewManager(p)
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer m.Close()
	m.Connect(context.Background())

	p.chainFeed.Send("0x1")
	waitFor(t, func() bool { return !m.IsCorrectNetwork() })
	p.chainFeed.Send("0x7a69")
	waitFor(t, m.IsCorrectNetwork)

	p.accountsFeed.Send([]string{bob.Hex(), alice.Hex()})
	waitFor(t, func() bool {
		s := m.State()
		return s.Address != nil && *s.Address == bob && s.Signer.From == bob
	})

	p.accountsFeed.Send([]string{})
	waitFor(t, func() bool {
		s := m.State()
		return s.Address == nil && s.ChainID == nil && s.Signer == nil
	})
}

func TestSubscribeReceivesSnapshots(t *testing.T) {
	p := &fakeProvider{accounts: []string{alice.Hex()}, chainID: "0x7a69"}
	m := NewManager(p, WithRequiredChain(big.NewInt(31337), "Localhost (Hardhat)"))

	ch := make(chan State, 16)
	sub := m.Subscribe(ch)
	defer sub.Unsubscribe()

	m.Connect(context.Background())

	var sawConnecting, sawConnected bool
	for len(ch) > 0 {
		s := <-ch
		if s.Connecting {
			sawConnecting = true
		}
		if s.Connected() {
			sawConnected = true
		}
	}
	if !sawConnecting || !sawConnected {
		t.Fatalf("expected connecting and connected snapshots (%v, %v)", sawConnecting, sawConnected)
	}
}

func TestStartTwice(t *testing.T) {
	m := NewManager(&fakeProvider{})
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer m.Close()
	if err := m.Start(context.Background()); err == nil {
		t.Fatal("expected second start to fail")
	}
}

func TestWalletErrorSeverity(t *testing.T) {
	rejected := walletError(&wallet.ProviderError{Code: wallet.CodeUserRejected, Message: "User rejected the request."}, "connect")
	if xerrors.SeverityOf(rejected) != xerrors.SeverityInfo || !xerrors.RecoverableError(rejected) {
		t.Fatalf("user rejection should be an info level recoverable error: %v", rejected)
	}
	failed := walletError(errors.New("rpc unavailable"), "connect")
	if xerrors.SeverityOf(failed) != xerrors.SeverityWarning {
		t.Fatalf("unexpected severity %s", xerrors.SeverityOf(failed))
	}
	if xerrors.CodeOf(failed) != lottery.CodeWalletRejected {
		t.Fatalf("unexpected code %s", xerrors.CodeOf(failed))
	}
}
