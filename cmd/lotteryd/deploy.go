package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"LottoChain/internal/lottery"
	"LottoChain/internal/wallet"
	"LottoChain/internal/web3"
	"LottoChain/internal/web3/provider"
	"LottoChain/pkg/logger"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/urfave/cli/v2"
)

func deployCommand() *cli.Command {
	return &cli.Command{
		Name:      "deploy",
		Usage:     "部署编译好的合约产物并输出合约地址",
		ArgsUsage: "[constructor args...]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "artifact", Usage: "Hardhat/Foundry 编译产物 JSON", Required: true},
			&cli.Int64Flag{Name: "chain-id", Usage: "目标链 ID，默认使用注册表的默认链"},
			&cli.DurationFlag{Name: "timeout", Usage: "等待部署确认的时间", Value: 2 * time.Minute},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			log := logger.Named("deploy")

			art, err := readArtifact(c.String("artifact"))
			if err != nil {
				return err
			}
			args, err := convertArgs(art.parsed.Constructor.Inputs, c.Args().Slice())
			if err != nil {
				return err
			}

			keys, err := wallet.LoadKeys(cfg.Wallet)
			if err != nil {
				return err
			}
			if len(keys) == 0 {
				return errors.New("部署需要至少一个钱包私钥")
			}

			ctx, cancel := context.WithTimeout(c.Context, c.Duration("timeout"))
			defer cancel()

			registry, err := provider.NewRegistry(ctx, cfg.Web3)
			if err != nil {
				return err
			}
			defer registry.Close()

			client, err := pickClient(registry, c.Int64("chain-id"))
			if err != nil {
				return err
			}
			chainID, err := client.ChainID(ctx)
			if err != nil {
				return err
			}
			auth, err := bind.NewKeyedTransactorWithChainID(keys[0], chainID)
			if err != nil {
				return fmt.Errorf("创建交易签名器失败: %w", err)
			}

			result, err := client.DeployContract(ctx, auth, art.abiJSON, art.bytecode, args...)
			if err != nil {
				return err
			}
			log.Info("部署交易已发送",
				"chain", client.Name(),
				"tx", result.Transaction.Hash().Hex(),
				"from", auth.From.Hex(),
			)
			address, err := bind.WaitDeployed(ctx, client.Backend(), result.Transaction)
			if err != nil {
				return fmt.Errorf("等待部署确认失败: %w", err)
			}
			logger.Audit().Info("contract_deployed",
				"chain_id", chainID.String(),
				"address", address.Hex(),
				"tx_hash", result.Transaction.Hash().Hex(),
			)
			fmt.Fprintln(c.App.Writer, address.Hex())
			return nil
		},
	}
}

func pickClient(registry *provider.Registry, chainID int64) (web3.Client, error) {
	if chainID == 0 {
		return registry.DefaultClient()
	}
	client, ok := registry.Client(big.NewInt(chainID))
	if !ok {
		return nil, fmt.Errorf("链 %d 未在注册表中", chainID)
	}
	return client, nil
}

type artifact struct {
	abiJSON  string
	parsed   abi.ABI
	bytecode []byte
}

// readArtifact 读取 Hardhat（bytecode 为字符串）或 Foundry（bytecode.object）格式的编译产物。
func readArtifact(path string) (artifact, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return artifact{}, fmt.Errorf("读取合约产物失败: %w", err)
	}
	var raw struct {
		ABI      json.RawMessage `json:"abi"`
		Bytecode json.RawMessage `json:"bytecode"`
	}
	if err := json.Unmarshal(content, &raw); err != nil {
		return artifact{}, fmt.Errorf("解析合约产物失败: %w", err)
	}
	if len(raw.ABI) == 0 {
		return artifact{}, errors.New("合约产物缺少 abi")
	}
	parsed, err := abi.JSON(strings.NewReader(string(raw.ABI)))
	if err != nil {
		return artifact{}, fmt.Errorf("解析 ABI 失败: %w", err)
	}

	var code string
	if err := json.Unmarshal(raw.Bytecode, &code); err != nil {
		var nested struct {
			Object string `json:"object"`
		}
		if err := json.Unmarshal(raw.Bytecode, &nested); err != nil {
			return artifact{}, errors.New("合约产物缺少 bytecode")
		}
		code = nested.Object
	}
	if !strings.HasPrefix(code, "0x") {
		code = "0x" + code
	}
	bytecode, err := hexutil.Decode(code)
	if err != nil {
		return artifact{}, fmt.Errorf("解析 bytecode 失败: %w", err)
	}
	if len(bytecode) == 0 {
		return artifact{}, errors.New("合约产物的 bytecode 为空")
	}
	return artifact{abiJSON: string(raw.ABI), parsed: parsed, bytecode: bytecode}, nil
}

// convertArgs 把命令行字符串转换为构造函数参数。整数参数支持 "0.01ether" 形式。
func convertArgs(inputs abi.Arguments, raw []string) ([]any, error) {
	if len(raw) != len(inputs) {
		return nil, fmt.Errorf("构造函数需要 %d 个参数，实际提供 %d 个", len(inputs), len(raw))
	}
	out := make([]any, len(raw))
	for i, input := range inputs {
		value, err := convertArg(input.Type, raw[i])
		if err != nil {
			return nil, fmt.Errorf("参数 %s: %w", input.Name, err)
		}
		out[i] = value
	}
	return out, nil
}

func convertArg(typ abi.Type, raw string) (any, error) {
	raw = strings.TrimSpace(raw)
	switch typ.T {
	case abi.AddressTy:
		if !common.IsHexAddress(raw) {
			return nil, fmt.Errorf("无效地址 %q", raw)
		}
		return common.HexToAddress(raw), nil
	case abi.BoolTy:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("无效布尔值 %q", raw)
		}
		return b, nil
	case abi.StringTy:
		return raw, nil
	case abi.UintTy, abi.IntTy:
		n, err := parseInteger(raw)
		if err != nil {
			return nil, err
		}
		if typ.T == abi.UintTy && n.Sign() < 0 {
			return nil, fmt.Errorf("%s 不能为负数", typ.String())
		}
		if typ.Size > 64 {
			return n, nil
		}
		limit := typ.Size
		if typ.T == abi.IntTy {
			limit--
		}
		if n.BitLen() > limit {
			return nil, fmt.Errorf("%s 溢出: %s", typ.String(), raw)
		}
		v := reflect.New(typ.GetType()).Elem()
		if typ.T == abi.UintTy {
			v.SetUint(n.Uint64())
		} else {
			v.SetInt(n.Int64())
		}
		return v.Interface(), nil
	default:
		return nil, fmt.Errorf("不支持的参数类型 %s", typ.String())
	}
}

func parseInteger(raw string) (*big.Int, error) {
	if amount, ok := strings.CutSuffix(strings.ToLower(raw), "ether"); ok {
		return lottery.ParseEther(amount)
	}
	n, ok := new(big.Int).SetString(raw, 0)
	if !ok {
		return nil, fmt.Errorf("无效整数 %q", raw)
	}
	return n, nil
}
