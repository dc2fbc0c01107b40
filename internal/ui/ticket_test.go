package ui

import (
	"context"
	"errors"
	"testing"
	"time"

	xerrors "LottoChain/internal/errors"
	"LottoChain/internal/lottery"
)

func TestSetNumberFilter(t *testing.T) {
	cases := []struct {
		name    string
		start   *int
		raw     string
		changed bool
		want    *int
	}{
		{name: "integer", raw: "12", changed: true, want: intPtr(12)},
		{name: "lower bound", raw: "1", changed: true, want: intPtr(1)},
		{name: "upper bound", raw: "47", changed: true, want: intPtr(47)},
		{name: "leading integer", raw: "7x", changed: true, want: intPtr(7)},
		{name: "empty clears", start: intPtr(5), raw: "", changed: true, want: nil},
		{name: "garbage clears", start: intPtr(5), raw: "abc", changed: true, want: nil},
		{name: "zero clears", start: intPtr(5), raw: "0", changed: true, want: nil},
		{name: "above range ignored", start: intPtr(5), raw: "48", changed: false, want: intPtr(5)},
		{name: "negative ignored", start: intPtr(5), raw: "-3", changed: false, want: intPtr(5)},
		{name: "overflow ignored", start: intPtr(5), raw: "99999999999999999999", changed: false, want: intPtr(5)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			form := newTicketForm(nil)
			if tc.start != nil {
				form.draft[2] = tc.start
			}
			if got := form.SetNumber(2, tc.raw); got != tc.changed {
				t.Fatalf("changed = %v, want %v", got, tc.changed)
			}
			got := form.Draft()[2]
			switch {
			case tc.want == nil && got != nil:
				t.Fatalf("expected empty slot, got %d", *got)
			case tc.want != nil && (got == nil || *got != *tc.want):
				t.Fatalf("expected %d, got %v", *tc.want, got)
			}
		})
	}
}

func TestSetNumberRejectsBadIndex(t *testing.T) {
	form := newTicketForm(nil)
	if form.SetNumber(-1, "3") || form.SetNumber(lottery.NumbersPerTicket, "3") {
		t.Fatal("out of range positions must be ignored")
	}
}

func TestCanSubmitRequiresCompleteDraft(t *testing.T) {
	form := newTicketForm(nil)
	for i := 0; i < lottery.NumbersPerTicket-1; i++ {
		form.SetNumber(i, "3")
	}
	if form.CanSubmit() {
		t.Fatal("six numbers must not be submittable")
	}
	form.SetNumber(6, "3")
	if !form.CanSubmit() {
		t.Fatal("seven numbers should be submittable")
	}
}

func TestSubmitIncompleteDraftDoesNotCallGateway(t *testing.T) {
	called := false
	form := newTicketForm(func(context.Context, []int) error {
		called = true
		return nil
	})
	form.SetNumber(0, "1")
	err := form.Submit(context.Background())
	if xerrors.CodeOf(err) != lottery.CodeInvalidTicket || xerrors.Cause(err) != TicketIncompleteMessage {
		t.Fatalf("unexpected error %v", err)
	}
	if called {
		t.Fatal("gateway must not be called for an incomplete draft")
	}
}

func TestSubmitIsGuardedByInFlightFlag(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan []int, 1)
	form := newTicketForm(func(_ context.Context, numbers []int) error {
		entered <- numbers
		<-release
		return errors.New("execution reverted: Lottery is closed")
	})
	for i, raw := range []string{"1", "2", "3", "4", "5", "6", "47"} {
		form.SetNumber(i, raw)
	}

	done := make(chan error, 1)
	go func() { done <- form.Submit(context.Background()) }()

	select {
	case numbers := <-entered:
		if len(numbers) != 7 || numbers[6] != 47 {
			t.Fatalf("unexpected numbers %v", numbers)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("submit did not reach the gateway")
	}

	if !form.Submitting() || form.CanSubmit() {
		t.Fatal("form must report an in-flight submission")
	}
	if err := form.Submit(context.Background()); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
	if form.SetNumber(0, "9") {
		t.Fatal("draft must be frozen while submitting")
	}

	close(release)
	if err := <-done; err == nil {
		t.Fatal("expected gateway error")
	}
	if form.Submitting() {
		t.Fatal("in-flight flag must be cleared")
	}
	if got := form.Draft().Values(); len(got) != 7 {
		t.Fatalf("draft must survive a failed submission, got %v", got)
	}
}

func TestSubmitSuccessClearsDraft(t *testing.T) {
	form := newTicketForm(func(context.Context, []int) error { return nil })
	for i := 0; i < lottery.NumbersPerTicket; i++ {
		form.SetNumber(i, "10")
	}
	if err := form.Submit(context.Background()); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if got := form.Draft().Values(); len(got) != 0 {
		t.Fatalf("expected empty draft, got %v", got)
	}
}

func intPtr(v int) *int { return &v }
