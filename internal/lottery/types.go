package lottery

import (
	"fmt"
	"math/big"
	"strings"

	xerrors "LottoChain/internal/errors"

	"github.com/shopspring/decimal"
)

// Game rules enforced advisory on the client side.
const (
	NumbersPerTicket = 7
	MinNumber        = 1
	MaxNumber        = 47
)

// etherDecimals is the wei exponent of one ether.
const etherDecimals = 18

// Numbers is an ordered ticket as it is passed to buyTicket(uint8[7]).
type Numbers [NumbersPerTicket]uint8

// Status is a read-only snapshot of the lottery round.
type Status struct {
	IsOpen         bool     `json:"is_open"`
	WinningNumbers Numbers  `json:"winning_numbers"`
	EntryFeeWei    *big.Int `json:"entry_fee_wei"`
}

// EntryFee formats the entry fee in ether.
func (s Status) EntryFee() string {
	return FormatEther(s.EntryFeeWei)
}

// DrawnNumbers returns the winning numbers skipping unset (zero) slots.
func (s Status) DrawnNumbers() []int {
	drawn := make([]int, 0, NumbersPerTicket)
	for _, n := range s.WinningNumbers {
		if n != 0 {
			drawn = append(drawn, int(n))
		}
	}
	return drawn
}

// Equal reports whether two snapshots carry the same values.
func (s Status) Equal(other Status) bool {
	if s.IsOpen != other.IsOpen || s.WinningNumbers != other.WinningNumbers {
		return false
	}
	if s.EntryFeeWei == nil || other.EntryFeeWei == nil {
		return s.EntryFeeWei == nil && other.EntryFeeWei == nil
	}
	return s.EntryFeeWei.Cmp(other.EntryFeeWei) == 0
}

// ValidateTicket checks that exactly seven integers in [1,47] were supplied.
// The contract remains the authority; this only avoids sending a transaction
// that is known to fail.
func ValidateTicket(numbers []int) (Numbers, error) {
	var out Numbers
	if len(numbers) != NumbersPerTicket {
		return out, xerrors.New(CodeInvalidTicket, "Invalid parameters for buying ticket",
			xerrors.WithMetadata("count", fmt.Sprint(len(numbers))))
	}
	for i, n := range numbers {
		if n < MinNumber || n > MaxNumber {
			return Numbers{}, xerrors.New(CodeInvalidTicket, "Numbers must be integers between 1 and 47",
				xerrors.WithMetadata("index", fmt.Sprint(i)))
		}
		out[i] = uint8(n)
	}
	return out, nil
}

// FormatEther renders a wei amount in ether without trailing zeros.
func FormatEther(wei *big.Int) string {
	if wei == nil {
		return "0"
	}
	return decimal.NewFromBigInt(wei, -etherDecimals).String()
}

// FormatEtherFixed renders a wei amount in ether with a fixed number of
// decimal places, e.g. 0.000000.
func FormatEtherFixed(wei *big.Int, places int32) string {
	if wei == nil {
		wei = new(big.Int)
	}
	return decimal.NewFromBigInt(wei, -etherDecimals).StringFixed(places)
}

// ParseEther converts an ether amount such as "0.01" into wei.
func ParseEther(amount string) (*big.Int, error) {
	value, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return nil, fmt.Errorf("invalid ether amount %q: %w", amount, err)
	}
	if value.IsNegative() {
		return nil, fmt.Errorf("invalid ether amount %q: negative", amount)
	}
	wei := value.Shift(etherDecimals)
	if !wei.Equal(wei.Truncate(0)) {
		return nil, fmt.Errorf("invalid ether amount %q: more than 18 decimals", amount)
	}
	return wei.BigInt(), nil
}
