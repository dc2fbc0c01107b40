package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"LottoChain/internal/config"
	"LottoChain/pkg/logger"

	"github.com/urfave/cli/v2"
)

// main 是 lotteryd 的入口。
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &cli.App{
		Name:  "lotteryd",
		Usage: "Web3 彩票客户端：控制台、HTTP 接口与合约部署",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "JSON 配置文件路径",
				EnvVars: []string{"LOTTERY_CONFIG"},
			},
		},
		Commands: []*cli.Command{
			serveCommand(),
			consoleCommand(),
			deployCommand(),
		},
	}

	if err := app.RunContext(ctx, os.Args); err != nil {
		logger.L().Error("lotteryd 运行失败", "error", err)
		_ = logger.Sync()
		os.Exit(1)
	}
	_ = logger.Sync()
}

// loadConfig 读取配置并初始化日志，未指定路径时使用默认配置。
func loadConfig(c *cli.Context) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if path := c.String("config"); path != "" {
		cfg, err = config.Load(path)
		if err != nil {
			return nil, err
		}
	} else {
		cfg = config.Default()
	}
	if err := logger.Init(cfg.Logging); err != nil {
		return nil, fmt.Errorf("初始化日志失败: %w", err)
	}
	return cfg, nil
}
