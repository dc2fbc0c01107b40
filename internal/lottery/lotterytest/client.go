package lotterytest

import (
	"context"
	"errors"
	"math/big"

	"LottoChain/internal/web3"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
)

// Client exposes a fake Backend as a web3.Client so it can be registered in
// a provider registry next to real chains.
type Client struct {
	name    string
	backend *Backend
}

// NewClient wraps backend under name.
func NewClient(name string, backend *Backend) *Client {
	return &Client{name: name, backend: backend}
}

func (c *Client) Name() string { return c.name }

func (c *Client) ChainID(context.Context) (*big.Int, error) {
	return new(big.Int).Set(c.backend.chainID), nil
}

func (c *Client) Backend() web3.Backend { return c.backend }

func (c *Client) FetchChainSnapshot(ctx context.Context) (web3.ChainSnapshot, error) {
	header, err := c.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return web3.ChainSnapshot{}, err
	}
	return web3.ChainSnapshot{ChainID: c.backend.chainID.String(), BlockNumber: header.Number.String()}, nil
}

func (c *Client) DeployContract(context.Context, *bind.TransactOpts, string, []byte, ...any) (web3.DeploymentResult, error) {
	return web3.DeploymentResult{}, errors.New("lotterytest: deployment is not supported")
}

func (c *Client) Close() {}

var _ web3.Client = (*Client)(nil)
