package lottery_test

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"
	"time"

	xerrors "LottoChain/internal/errors"
	"LottoChain/internal/lottery"
	"LottoChain/internal/lottery/lotterytest"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var contractAddress = common.HexToAddress("0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512")

func newGateway(t *testing.T) (*lottery.Gateway, *lotterytest.Backend, *bind.TransactOpts) {
	t.Helper()

	chainID := big.NewInt(31337)
	fee, err := lottery.ParseEther("0.01")
	if err != nil {
		t.Fatalf("parse fee: %v", err)
	}
	backend := lotterytest.NewBackend(contractAddress, chainID, fee)
	gateway, err := lottery.NewGateway(contractAddress, backend, lottery.WithReceiptInterval(5*time.Millisecond))
	if err != nil {
		t.Fatalf("new gateway: %v", err)
	}

	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	signer, err := bind.NewKeyedTransactorWithChainID(key, chainID)
	if err != nil {
		t.Fatalf("transactor: %v", err)
	}
	return gateway, backend, signer
}

func TestGatewayStatusReads(t *testing.T) {
	gateway, backend, _ := newGateway(t)
	backend.SetOpen(false)
	backend.SetWinningNumbers(lottery.Numbers{3, 9, 12, 0, 0, 0, 0})

	status, err := gateway.Status(context.Background())
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.IsOpen {
		t.Fatal("expected closed lottery")
	}
	if status.EntryFee() != "0.01" {
		t.Fatalf("unexpected entry fee %s", status.EntryFee())
	}
	if got := status.DrawnNumbers(); len(got) != 3 || got[2] != 12 {
		t.Fatalf("unexpected drawn numbers %v", got)
	}
}

func TestGatewayPendingRewards(t *testing.T) {
	gateway, backend, signer := newGateway(t)

	rewards, err := gateway.PendingRewards(context.Background(), signer.From)
	if err != nil {
		t.Fatalf("pending rewards: %v", err)
	}
	if lottery.FormatEtherFixed(rewards, 6) != "0.000000" {
		t.Fatalf("expected zero rewards, got %s", rewards)
	}

	backend.SetRewards(signer.From, big.NewInt(250_000_000_000_000_000))
	rewards, err = gateway.PendingRewards(context.Background(), signer.From)
	if err != nil {
		t.Fatalf("pending rewards: %v", err)
	}
	if lottery.FormatEther(rewards) != "0.25" {
		t.Fatalf("unexpected rewards %s", lottery.FormatEther(rewards))
	}
}

func TestGatewayBuyTicketSendsEntryFee(t *testing.T) {
	gateway, backend, signer := newGateway(t)
	ctx := context.Background()

	tx, err := gateway.BuyTicket(ctx, signer, []int{1, 2, 3, 4, 5, 6, 47})
	if err != nil {
		t.Fatalf("buy ticket: %v", err)
	}
	if _, err := gateway.WaitMined(ctx, tx); err != nil {
		t.Fatalf("wait mined: %v", err)
	}

	tickets := backend.Tickets()
	if len(tickets) != 1 {
		t.Fatalf("expected one ticket, got %d", len(tickets))
	}
	if tickets[0].Numbers != (lottery.Numbers{1, 2, 3, 4, 5, 6, 47}) {
		t.Fatalf("unexpected numbers %v", tickets[0].Numbers)
	}
	if tickets[0].Value.Cmp(big.NewInt(10_000_000_000_000_000)) != 0 {
		t.Fatalf("unexpected value %s", tickets[0].Value)
	}
	if tickets[0].Player != signer.From {
		t.Fatalf("unexpected player %s", tickets[0].Player.Hex())
	}
	if signer.Value != nil {
		t.Fatal("signer must not be mutated by BuyTicket")
	}
}

func TestGatewayBuyTicketValidatesLocally(t *testing.T) {
	gateway, backend, signer := newGateway(t)

	cases := [][]int{
		{1, 2, 3, 4, 5, 6},
		{0, 2, 3, 4, 5, 6, 7},
		{1, 2, 3, 4, 5, 6, 48},
	}
	for _, numbers := range cases {
		_, err := gateway.BuyTicket(context.Background(), signer, numbers)
		if xerrors.CodeOf(err) != lottery.CodeInvalidTicket {
			t.Fatalf("numbers %v: expected invalid ticket, got %v", numbers, err)
		}
	}
	if backend.Calls(lottery.MethodEntryFee) != 0 {
		t.Fatal("invalid tickets must not reach the chain")
	}
}

func TestGatewayWriteErrorsPropagate(t *testing.T) {
	gateway, backend, signer := newGateway(t)
	backend.SetOpen(false)

	_, err := gateway.BuyTicket(context.Background(), signer, []int{1, 2, 3, 4, 5, 6, 7})
	if xerrors.CodeOf(err) != lottery.CodeWriteFailure {
		t.Fatalf("expected write failure, got %v", err)
	}
	if got := xerrors.Cause(err); !strings.Contains(got, "Lottery is closed") {
		t.Fatalf("unexpected cause %q", got)
	}

	_, err = gateway.ClaimRewards(context.Background(), signer)
	if err == nil || !strings.Contains(err.Error(), lotterytest.ErrNoRewards.Error()) {
		t.Fatalf("expected no rewards revert, got %v", err)
	}

	if _, err := gateway.ClaimRewards(context.Background(), nil); err == nil {
		t.Fatal("expected error without signer")
	}
}

func TestGatewayClaimRewards(t *testing.T) {
	gateway, backend, signer := newGateway(t)
	ctx := context.Background()
	backend.SetRewards(signer.From, big.NewInt(5))

	tx, err := gateway.ClaimRewards(ctx, signer)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if _, err := gateway.WaitMined(ctx, tx); err != nil {
		t.Fatalf("wait mined: %v", err)
	}
	rewards, err := gateway.PendingRewards(ctx, signer.From)
	if err != nil {
		t.Fatalf("pending rewards: %v", err)
	}
	if rewards.Sign() != 0 {
		t.Fatalf("expected rewards to be cleared, got %s", rewards)
	}
}

func TestGatewayReadFailure(t *testing.T) {
	gateway, backend, _ := newGateway(t)
	backend.FailReads(errors.New("connection refused"))

	_, err := gateway.Status(context.Background())
	if xerrors.CodeOf(err) != lottery.CodeReadFailure {
		t.Fatalf("expected read failure, got %v", err)
	}
	if !xerrors.RetryableError(err) {
		t.Fatal("read failures should be retryable")
	}
}
