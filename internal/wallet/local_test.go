package wallet_test

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"LottoChain/internal/config"
	"LottoChain/internal/lottery"
	"LottoChain/internal/lottery/lotterytest"
	"LottoChain/internal/wallet"
	"LottoChain/internal/web3/provider"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
)

type fixture struct {
	wallet  *wallet.LocalWallet
	local   *lotterytest.Backend
	mainnet *lotterytest.Backend
	keys    []*ecdsa.PrivateKey
}

func newFixture(t *testing.T, approver wallet.Approver) *fixture {
	t.Helper()

	fee := big.NewInt(10_000_000_000_000_000)
	mainnet := lotterytest.NewBackend(config.ContractAddress(), big.NewInt(1), fee)
	local := lotterytest.NewBackend(config.ContractAddress(), big.NewInt(config.SupportedChainID), fee)
	registry, err := provider.NewStaticRegistry(context.Background(),
		lotterytest.NewClient("mainnet", mainnet),
		lotterytest.NewClient("hardhat", local),
	)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}

	keys := make([]*ecdsa.PrivateKey, 2)
	for i := range keys {
		if keys[i], err = crypto.GenerateKey(); err != nil {
			t.Fatalf("generate key: %v", err)
		}
	}
	w, err := wallet.NewLocalWallet(registry, keys, wallet.WithApprover(approver))
	if err != nil {
		t.Fatalf("new wallet: %v", err)
	}
	t.Cleanup(w.Close)
	return &fixture{wallet: w, local: local, mainnet: mainnet, keys: keys}
}

func TestRequestAccountsRequiresApproval(t *testing.T) {
	approve := false
	f := newFixture(t, func(context.Context, wallet.ApprovalRequest) bool { return approve })
	ctx := context.Background()

	_, err := wallet.RequestAccounts(ctx, f.wallet)
	if code, ok := wallet.ErrorCode(err); !ok || code != wallet.CodeUserRejected {
		t.Fatalf("expected user rejection, got %v", err)
	}

	raw, err := f.wallet.Request(ctx, wallet.MethodAccounts)
	if err != nil {
		t.Fatalf("eth_accounts: %v", err)
	}
	if string(raw) != "[]" {
		t.Fatalf("expected no accounts before approval, got %s", raw)
	}

	approve = true
	accounts, err := wallet.RequestAccounts(ctx, f.wallet)
	if err != nil {
		t.Fatalf("request accounts: %v", err)
	}
	if len(accounts) != 2 || accounts[0] != crypto.PubkeyToAddress(f.keys[0].PublicKey) {
		t.Fatalf("unexpected accounts %v", accounts)
	}
}

func TestChainIDStartsOnDefaultChain(t *testing.T) {
	f := newFixture(t, nil)
	id, err := wallet.ChainID(context.Background(), f.wallet)
	if err != nil {
		t.Fatalf("chain id: %v", err)
	}
	if id.Int64() != 1 {
		t.Fatalf("expected first registered chain, got %s", id)
	}
}

func TestSwitchChainNotifiesSubscribers(t *testing.T) {
	f := newFixture(t, nil)
	ch := make(chan string, 1)
	sub := f.wallet.SubscribeChainChanged(ch)
	defer sub.Unsubscribe()

	if err := wallet.SwitchChain(context.Background(), f.wallet, config.RequiredChainID()); err != nil {
		t.Fatalf("switch chain: %v", err)
	}
	select {
	case got := <-ch:
		if got != config.RequiredChainIDHex() {
			t.Fatalf("unexpected chain notification %s", got)
		}
	case <-time.After(time.Second):
		t.Fatal("no chainChanged notification")
	}
}

func TestSwitchToUnknownChain(t *testing.T) {
	f := newFixture(t, nil)
	err := wallet.SwitchChain(context.Background(), f.wallet, big.NewInt(5))
	if code, ok := wallet.ErrorCode(err); !ok || code != wallet.CodeUnrecognizedChain {
		t.Fatalf("expected 4902, got %v", err)
	}
}

func TestRevokeAndSelectAccount(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	if _, err := wallet.RequestAccounts(ctx, f.wallet); err != nil {
		t.Fatalf("request accounts: %v", err)
	}

	ch := make(chan []string, 2)
	sub := f.wallet.SubscribeAccountsChanged(ch)
	defer sub.Unsubscribe()

	second := crypto.PubkeyToAddress(f.keys[1].PublicKey)
	if err := f.wallet.SelectAccount(second); err != nil {
		t.Fatalf("select account: %v", err)
	}
	if got := <-ch; len(got) != 2 || got[0] != second.Hex() {
		t.Fatalf("unexpected accounts after select %v", got)
	}

	f.wallet.Revoke()
	if got := <-ch; len(got) != 0 {
		t.Fatalf("expected empty account list, got %v", got)
	}
	if _, err := f.wallet.Signer(second); err == nil {
		t.Fatal("signer must require authorization")
	}
}

func TestSignerAndBackendFollowWallet(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	accounts, err := wallet.RequestAccounts(ctx, f.wallet)
	if err != nil {
		t.Fatalf("request accounts: %v", err)
	}
	if err := wallet.SwitchChain(ctx, f.wallet, config.RequiredChainID()); err != nil {
		t.Fatalf("switch chain: %v", err)
	}

	signFn, err := f.wallet.Signer(accounts[0])
	if err != nil {
		t.Fatalf("signer: %v", err)
	}
	gateway, err := lottery.NewGateway(config.ContractAddress(), f.wallet.Backend(), lottery.WithReceiptInterval(time.Millisecond))
	if err != nil {
		t.Fatalf("gateway: %v", err)
	}
	tx, err := gateway.BuyTicket(ctx, &bind.TransactOpts{From: accounts[0], Signer: signFn}, []int{7, 7, 7, 7, 7, 7, 7})
	if err != nil {
		t.Fatalf("buy ticket: %v", err)
	}
	if _, err := gateway.WaitMined(ctx, tx); err != nil {
		t.Fatalf("wait mined: %v", err)
	}
	if len(f.local.Tickets()) != 1 || len(f.mainnet.Tickets()) != 0 {
		t.Fatal("transaction should land on the wallet's current chain")
	}
}

func TestUnsupportedMethod(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.wallet.Request(context.Background(), "eth_sign")
	if code, ok := wallet.ErrorCode(err); !ok || code != wallet.CodeUnsupportedMethod {
		t.Fatalf("expected unsupported method, got %v", err)
	}
}

func TestLoadKeys(t *testing.T) {
	dir := t.TempDir()
	stored, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	blob, err := keystore.EncryptKey(&keystore.Key{
		Id:         uuid.New(),
		Address:    crypto.PubkeyToAddress(stored.PublicKey),
		PrivateKey: stored,
	}, "secret", keystore.LightScryptN, keystore.LightScryptP)
	if err != nil {
		t.Fatalf("encrypt key: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "UTC--key"), blob, 0o600); err != nil {
		t.Fatalf("write key: %v", err)
	}

	inline, _ := crypto.GenerateKey()
	t.Setenv("TEST_LOTTERY_PASS", "secret")
	keys, err := wallet.LoadKeys(config.WalletConfig{
		PrivateKeys:   []string{hexutil.Encode(crypto.FromECDSA(inline))},
		KeystoreDir:   dir,
		PassphraseEnv: "TEST_LOTTERY_PASS",
	})
	if err != nil {
		t.Fatalf("load keys: %v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("expected 2 keys, got %d", len(keys))
	}
	if crypto.PubkeyToAddress(keys[1].PublicKey) != crypto.PubkeyToAddress(stored.PublicKey) {
		t.Fatal("keystore key mismatch")
	}

	t.Setenv("TEST_LOTTERY_PASS", "wrong")
	if _, err := wallet.LoadKeys(config.WalletConfig{KeystoreDir: dir, PassphraseEnv: "TEST_LOTTERY_PASS"}); err == nil {
		t.Fatal("expected decrypt failure with wrong passphrase")
	}
}
