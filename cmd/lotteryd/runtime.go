package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"LottoChain/internal/config"
	"LottoChain/internal/events"
	"LottoChain/internal/lottery"
	"LottoChain/internal/poller"
	"LottoChain/internal/session"
	"LottoChain/internal/storage/mysql"
	"LottoChain/internal/ui"
	"LottoChain/internal/wallet"
	"LottoChain/internal/web3/provider"
	"LottoChain/pkg/logger"
)

// runtime 持有一次运行所需的全部组件，serve 与 console 共用。
type runtime struct {
	registry  *provider.Registry
	wallet    *wallet.LocalWallet
	session   *session.Manager
	poller    *poller.Poller
	publisher events.Publisher
	history   mysql.HistoryRepository
	app       *ui.App

	cancel context.CancelFunc
	done   chan struct{}
}

// buildRuntime 按配置装配链客户端、钱包、会话、轮询器与视图模型，并启动后台监听。
func buildRuntime(ctx context.Context, cfg *config.Config, approver wallet.Approver) (*runtime, error) {
	log := logger.Named("lotteryd")
	rt := &runtime{done: make(chan struct{})}
	ready := false
	defer func() {
		if !ready {
			rt.Close()
		}
	}()

	if err := os.MkdirAll(cfg.Runtime.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("创建数据目录失败: %w", err)
	}

	var err error
	rt.registry, err = provider.NewRegistry(ctx, cfg.Web3)
	if err != nil {
		return nil, err
	}

	rt.publisher, err = events.New(ctx, cfg.Events)
	if err != nil {
		return nil, err
	}

	rt.history, err = mysql.NewHistoryRepository(ctx, cfg.Storage.History, cfg.Runtime.DataDir)
	if err != nil {
		return nil, err
	}

	var (
		walletProvider wallet.Provider
		writer         ui.Writer
		reader         poller.Reader
	)
	if cfg.Wallet.Enabled {
		keys, err := wallet.LoadKeys(cfg.Wallet)
		if err != nil {
			return nil, err
		}
		if len(keys) > 0 {
			var opts []wallet.LocalOption
			if !cfg.Wallet.AutoApprove {
				opts = append(opts, wallet.WithApprover(approver))
			}
			rt.wallet, err = wallet.NewLocalWallet(rt.registry, keys, opts...)
			if err != nil {
				return nil, err
			}
			gateway, err := lottery.NewGateway(config.ContractAddress(), rt.wallet.Backend())
			if err != nil {
				return nil, err
			}
			walletProvider, writer, reader = rt.wallet, gateway, gateway
		} else {
			log.Warn("钱包已启用但未找到任何私钥")
		}
	}

	rt.session = session.NewManager(walletProvider)
	if err := rt.session.Start(ctx); err != nil {
		return nil, err
	}
	rt.poller = poller.New(reader, poller.WithPublisher(rt.publisher))
	rt.app = ui.New(rt.session, rt.poller, writer,
		ui.WithHistory(rt.history),
		ui.WithPublisher(rt.publisher),
	)

	followCtx, cancel := context.WithCancel(ctx)
	rt.cancel = cancel
	go func() {
		defer close(rt.done)
		if reader == nil {
			<-followCtx.Done()
			return
		}
		rt.poller.Follow(followCtx, rt.session)
	}()

	log.Info("运行时已就绪",
		slog.Bool("wallet", walletProvider != nil),
		slog.String("contract", config.ContractAddress().Hex()),
		slog.String("network", config.NetworkName),
		slog.Any("chains", rt.registry.ChainIDs()),
	)
	ready = true
	return rt, nil
}

// Close 按依赖的逆序释放资源。
func (r *runtime) Close() {
	if r == nil {
		return
	}
	if r.cancel != nil {
		r.cancel()
		<-r.done
	}
	if r.session != nil {
		r.session.Close()
	}
	if r.wallet != nil {
		r.wallet.Close()
	}
	var errs []error
	if r.history != nil {
		errs = append(errs, r.history.Close())
	}
	if r.publisher != nil {
		errs = append(errs, r.publisher.Close())
	}
	if r.registry != nil {
		r.registry.Close()
	}
	if err := errors.Join(errs...); err != nil {
		logger.Named("lotteryd").Warn("释放资源失败", slog.String("error", err.Error()))
	}
}
