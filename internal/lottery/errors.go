package lottery

import (
	xerrors "LottoChain/internal/errors"
)

const (
	// CodeWalletUnavailable 表示运行环境中没有可用的钱包，会话内无法恢复。
	CodeWalletUnavailable xerrors.Code = "WALLET_UNAVAILABLE"
	// CodeWalletRejected 表示连接或切换网络被钱包拒绝或失败，用户可以重试。
	CodeWalletRejected xerrors.Code = "WALLET_REJECTED"
	// CodeNetworkMismatch 表示钱包连接在错误的链上。
	CodeNetworkMismatch xerrors.Code = "NETWORK_MISMATCH"
	// CodeReadFailure 表示状态或奖励读取失败。
	CodeReadFailure xerrors.Code = "CHAIN_READ_FAILED"
	// CodeWriteFailure 表示购票或领奖交易被拒绝、回滚或费用不足。
	CodeWriteFailure xerrors.Code = "CHAIN_WRITE_FAILED"
	// CodeInvalidTicket 表示票号未通过本地校验。
	CodeInvalidTicket xerrors.Code = "INVALID_TICKET"
)

func init() {
	xerrors.Register(CodeWalletUnavailable, xerrors.Attributes{
		Message:  "wallet is not available",
		Severity: xerrors.SeverityCritical,
	})
	xerrors.Register(CodeWalletRejected, xerrors.Attributes{
		Message:     "wallet request rejected",
		Severity:    xerrors.SeverityInfo,
		Recoverable: true,
	})
	xerrors.Register(CodeNetworkMismatch, xerrors.Attributes{
		Message:     "wrong network",
		Severity:    xerrors.SeverityWarning,
		Recoverable: true,
	})
	xerrors.Register(CodeReadFailure, xerrors.Attributes{
		Message:     "failed to read lottery contract",
		Severity:    xerrors.SeverityWarning,
		Retryable:   true,
		Recoverable: true,
	})
	xerrors.Register(CodeWriteFailure, xerrors.Attributes{
		Message:     "lottery transaction failed",
		Severity:    xerrors.SeverityWarning,
		Recoverable: true,
	})
	xerrors.Register(CodeInvalidTicket, xerrors.Attributes{
		Message:     "invalid ticket",
		Severity:    xerrors.SeverityInfo,
		Recoverable: true,
	})
}
