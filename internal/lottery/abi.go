package lottery

// ContractABI is the subset of the lottery contract interface the client
// calls. It must match the deployed contract exactly.
const ContractABI = `[
  {"inputs":[],"name":"lotteryOpen","outputs":[{"internalType":"bool","name":"","type":"bool"}],"stateMutability":"view","type":"function"},
  {"inputs":[{"internalType":"address","name":"","type":"address"}],"name":"pendingRewards","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
  {"inputs":[],"name":"winningNumbers","outputs":[{"internalType":"uint8[7]","name":"","type":"uint8[7]"}],"stateMutability":"view","type":"function"},
  {"inputs":[],"name":"ENTRY_FEE","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
  {"inputs":[{"internalType":"uint8[7]","name":"numbers","type":"uint8[7]"}],"name":"buyTicket","outputs":[],"stateMutability":"payable","type":"function"},
  {"inputs":[],"name":"claimRewards","outputs":[],"stateMutability":"nonpayable","type":"function"}
]`

// Contract method names.
const (
	MethodLotteryOpen    = "lotteryOpen"
	MethodWinningNumbers = "winningNumbers"
	MethodEntryFee       = "ENTRY_FEE"
	MethodPendingRewards = "pendingRewards"
	MethodBuyTicket      = "buyTicket"
	MethodClaimRewards   = "claimRewards"
)
