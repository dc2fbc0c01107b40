package lottery

import (
	"math/big"
	"testing"
)

func TestValidateTicket(t *testing.T) {
	cases := []struct {
		name    string
		numbers []int
		valid   bool
	}{
		{"full range", []int{1, 2, 3, 4, 5, 6, 47}, true},
		{"duplicates are not rejected locally", []int{5, 5, 5, 5, 5, 5, 5}, true},
		{"too few", []int{1, 2, 3}, false},
		{"too many", []int{1, 2, 3, 4, 5, 6, 7, 8}, false},
		{"zero", []int{0, 2, 3, 4, 5, 6, 7}, false},
		{"above max", []int{1, 2, 3, 4, 5, 6, 48}, false},
		{"negative", []int{-1, 2, 3, 4, 5, 6, 7}, false},
		{"empty", nil, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ValidateTicket(tc.numbers)
			if tc.valid && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tc.valid && err == nil {
				t.Fatalf("expected error for %v", tc.numbers)
			}
			if tc.valid {
				for i, n := range tc.numbers {
					if int(got[i]) != n {
						t.Fatalf("slot %d: got %d want %d", i, got[i], n)
					}
				}
			}
		})
	}
}

func TestEtherFormatting(t *testing.T) {
	wei, err := ParseEther("0.01")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if wei.Cmp(big.NewInt(10_000_000_000_000_000)) != 0 {
		t.Fatalf("unexpected wei %s", wei)
	}
	if got := FormatEther(wei); got != "0.01" {
		t.Fatalf("format: %s", got)
	}
	if got := FormatEtherFixed(nil, 6); got != "0.000000" {
		t.Fatalf("format fixed nil: %s", got)
	}
	if got := FormatEtherFixed(big.NewInt(1_500_000_000_000_000_000), 6); got != "1.500000" {
		t.Fatalf("format fixed: %s", got)
	}
	if _, err := ParseEther("-1"); err == nil {
		t.Fatal("expected negative amount to fail")
	}
	if _, err := ParseEther("0.0000000000000000001"); err == nil {
		t.Fatal("expected sub-wei amount to fail")
	}
}

func TestStatusEqual(t *testing.T) {
	a := Status{IsOpen: true, EntryFeeWei: big.NewInt(10)}
	b := Status{IsOpen: true, EntryFeeWei: big.NewInt(10)}
	if !a.Equal(b) {
		t.Fatal("expected equal snapshots")
	}
	b.WinningNumbers[0] = 4
	if a.Equal(b) {
		t.Fatal("expected different snapshots")
	}
}
