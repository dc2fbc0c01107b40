package provider

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strings"

	"LottoChain/internal/config"
	"LottoChain/internal/web3"
	"LottoChain/internal/web3/ethereum"
)

// Registry manages a set of chain clients keyed by chain id. The wallet uses
// it to decide which networks it can switch to.
type Registry struct {
	defaultChain int64
	clients      map[int64]web3.Client
}

// NewRegistry loads chain definitions and instantiates concrete clients.
func NewRegistry(ctx context.Context, cfg config.Web3Config) (*Registry, error) {
	defs, err := web3.LoadChainDefinitions(cfg.ChainConfig)
	if err != nil {
		return nil, err
	}

	registry := &Registry{clients: make(map[int64]web3.Client)}
	for _, name := range defs.Names() {
		chain := defs.Chains[name]
		chainType := strings.ToLower(strings.TrimSpace(chain.Type))
		if chainType == "" {
			chainType = "evm"
		}
		if chainType != "evm" {
			registry.Close()
			return nil, fmt.Errorf("链 %s 使用了不支持的类型 %s", name, chain.Type)
		}
		client, err := ethereum.NewClient(ctx, ethereum.Config{
			Name:    name,
			RPCURL:  chain.RPCURL,
			ChainID: chain.ChainID,
			Notes:   chain.Description,
		})
		if err != nil {
			registry.Close()
			return nil, fmt.Errorf("初始化链 %s 失败: %w", name, err)
		}
		if err := registry.Add(ctx, client); err != nil {
			client.Close()
			registry.Close()
			return nil, err
		}
	}

	if len(registry.clients) == 0 && strings.TrimSpace(cfg.RPCURL) != "" {
		client, err := ethereum.NewClient(ctx, ethereum.Config{Name: "default", RPCURL: cfg.RPCURL})
		if err != nil {
			return nil, err
		}
		if err := registry.Add(ctx, client); err != nil {
			client.Close()
			return nil, err
		}
	}

	if len(registry.clients) == 0 {
		return nil, errors.New("未配置任何链的 RPC 端点")
	}

	if _, ok := registry.clients[config.SupportedChainID]; ok {
		registry.defaultChain = config.SupportedChainID
	}
	return registry, nil
}

// NewStaticRegistry builds a registry from already constructed clients.
func NewStaticRegistry(ctx context.Context, clients ...web3.Client) (*Registry, error) {
	registry := &Registry{clients: make(map[int64]web3.Client)}
	for _, client := range clients {
		if err := registry.Add(ctx, client); err != nil {
			return nil, err
		}
	}
	if len(registry.clients) == 0 {
		return nil, errors.New("未配置任何链客户端")
	}
	return registry, nil
}

// Add registers a client under the chain id it reports. The first client
// added becomes the default.
func (r *Registry) Add(ctx context.Context, client web3.Client) error {
	if client == nil {
		return errors.New("链客户端为空")
	}
	id, err := client.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("读取链 %s 的 ID 失败: %w", client.Name(), err)
	}
	if !id.IsInt64() {
		return fmt.Errorf("链 %s 的 ID 超出范围: %s", client.Name(), id)
	}
	key := id.Int64()
	if _, exists := r.clients[key]; exists {
		return fmt.Errorf("链 ID %d 重复注册", key)
	}
	r.clients[key] = client
	if len(r.clients) == 1 {
		r.defaultChain = key
	}
	return nil
}

// DefaultChainID returns the chain the wallet starts on.
func (r *Registry) DefaultChainID() *big.Int {
	if r == nil {
		return nil
	}
	return big.NewInt(r.defaultChain)
}

// DefaultClient returns the client configured as default chain.
func (r *Registry) DefaultClient() (web3.Client, error) {
	if r == nil {
		return nil, errors.New("未初始化的链客户端注册表")
	}
	client, ok := r.clients[r.defaultChain]
	if !ok {
		return nil, fmt.Errorf("默认链 %d 未在注册表中", r.defaultChain)
	}
	return client, nil
}

// Client returns the chain client for the given chain id.
func (r *Registry) Client(chainID *big.Int) (web3.Client, bool) {
	if r == nil || chainID == nil || !chainID.IsInt64() {
		return nil, false
	}
	client, ok := r.clients[chainID.Int64()]
	return client, ok
}

// Close releases all clients managed by the registry.
func (r *Registry) Close() {
	if r == nil {
		return
	}
	for id, client := range r.clients {
		if client != nil {
			client.Close()
		}
		delete(r.clients, id)
	}
}

// ChainIDs returns the registered chain ids in ascending order.
func (r *Registry) ChainIDs() []int64 {
	if r == nil {
		return nil
	}
	ids := make([]int64, 0, len(r.clients))
	for id := range r.clients {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
