package provider

import (
	"context"
	"math/big"
	"testing"

	"LottoChain/internal/web3"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
)

type stubClient struct {
	name   string
	id     int64
	closed bool
}

func (s *stubClient) Name() string { return s.name }

func (s *stubClient) ChainID(context.Context) (*big.Int, error) { return big.NewInt(s.id), nil }

func (s *stubClient) Backend() web3.Backend { return nil }

func (s *stubClient) FetchChainSnapshot(context.Context) (web3.ChainSnapshot, error) {
	return web3.ChainSnapshot{}, nil
}

func (s *stubClient) DeployContract(context.Context, *bind.TransactOpts, string, []byte, ...any) (web3.DeploymentResult, error) {
	return web3.DeploymentResult{}, nil
}

func (s *stubClient) Close() { s.closed = true }

func TestStaticRegistryLookup(t *testing.T) {
	local := &stubClient{name: "hardhat", id: 31337}
	mainnet := &stubClient{name: "mainnet", id: 1}

	registry, err := NewStaticRegistry(context.Background(), mainnet, local)
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}

	if got := registry.DefaultChainID().Int64(); got != 1 {
		t.Fatalf("expected first client to be default, got %d", got)
	}
	client, ok := registry.Client(big.NewInt(31337))
	if !ok || client.Name() != "hardhat" {
		t.Fatalf("lookup by chain id failed: %v %v", client, ok)
	}
	if _, ok := registry.Client(big.NewInt(5)); ok {
		t.Fatal("unexpected client for unknown chain")
	}
	if ids := registry.ChainIDs(); len(ids) != 2 || ids[0] != 1 || ids[1] != 31337 {
		t.Fatalf("unexpected chain ids %v", ids)
	}

	registry.Close()
	if !local.closed || !mainnet.closed {
		t.Fatal("expected clients to be closed")
	}
}

func TestStaticRegistryRejectsDuplicates(t *testing.T) {
	_, err := NewStaticRegistry(context.Background(), &stubClient{name: "a", id: 7}, &stubClient{name: "b", id: 7})
	if err == nil {
		t.Fatal("expected duplicate chain id error")
	}
}
