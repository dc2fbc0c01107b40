package config

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// 合约部署信息随客户端一同编译，不支持运行时修改。
const (
	// ContractAddressHex 是本地 Hardhat 网络上彩票合约的部署地址。
	ContractAddressHex = "0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512"
	// SupportedChainID 是客户端唯一支持的链 ID。
	SupportedChainID int64 = 31337
	// NetworkName 是展示给用户的网络名称。
	NetworkName = "Localhost (Hardhat)"
)

// ContractAddress 返回彩票合约地址。
func ContractAddress() common.Address {
	return common.HexToAddress(ContractAddressHex)
}

// RequiredChainID 返回所需链 ID 的副本。
func RequiredChainID() *big.Int {
	return big.NewInt(SupportedChainID)
}

// RequiredChainIDHex 返回钱包请求中使用的十六进制链 ID，例如 0x7a69。
func RequiredChainIDHex() string {
	return fmt.Sprintf("0x%x", SupportedChainID)
}
