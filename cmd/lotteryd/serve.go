package main

import (
	"context"
	"errors"
	"log/slog"

	"LottoChain/internal/api"
	"LottoChain/internal/observability/metrics"
	"LottoChain/pkg/logger"

	"github.com/urfave/cli/v2"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "启动 HTTP 接口，钱包授权自动通过",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Usage: "覆盖配置中的监听地址"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			if addr := c.String("addr"); addr != "" {
				cfg.Server.Address = addr
			}
			// HTTP 模式下没有交互终端，授权请求一律通过。
			cfg.Wallet.AutoApprove = true

			ctx := c.Context
			rt, err := buildRuntime(ctx, cfg, nil)
			if err != nil {
				return err
			}
			defer rt.Close()

			if cfg.Server.MetricsAddress != "" {
				go func() {
					if err := metrics.StartServer(ctx, cfg.Server.MetricsAddress); err != nil && !errors.Is(err, context.Canceled) {
						logger.Named("metrics").Error("指标服务异常退出", slog.String("error", err.Error()))
					}
				}()
			}

			server := api.NewServer(cfg.Server.Address, rt.app, api.WithAuthToken(cfg.Server.AuthToken()))
			if err := server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
}
