package ui

import (
	"context"
	"strconv"
	"strings"
	"sync"

	xerrors "LottoChain/internal/errors"
	"LottoChain/internal/lottery"
)

// 票号表单使用的提示文案。
const (
	TicketPurchasedMessage  = "Ticket purchased successfully!"
	TicketIncompleteMessage = "Please enter all 7 numbers between 1 and 47"
	TicketFailedMessage     = "Failed to purchase ticket"
)

// TicketDraft 是尚未提交的 7 个票号，nil 表示该位置为空。
type TicketDraft [lottery.NumbersPerTicket]*int

// Values 返回已填写的票号，按位置顺序。
func (d TicketDraft) Values() []int {
	out := make([]int, 0, len(d))
	for _, n := range d {
		if n != nil {
			out = append(out, *n)
		}
	}
	return out
}

// Complete 表示 7 个位置都已填写且在范围内。
func (d TicketDraft) Complete() bool {
	for _, n := range d {
		if n == nil || *n < lottery.MinNumber || *n > lottery.MaxNumber {
			return false
		}
	}
	return true
}

// TicketForm 保存票号草稿与提交中的标记。
type TicketForm struct {
	buy func(ctx context.Context, numbers []int) error

	mu         sync.Mutex
	draft      TicketDraft
	submitting bool
}

func newTicketForm(buy func(ctx context.Context, numbers []int) error) *TicketForm {
	return &TicketForm{buy: buy}
}

// SetNumber 更新第 i 个位置。输入按前导整数解析，无法解析或为 0 时清空该位置；
// 超出 1..47 的值被忽略。返回值表示草稿是否被修改。
func (f *TicketForm) SetNumber(i int, raw string) bool {
	if i < 0 || i >= lottery.NumbersPerTicket {
		return false
	}
	value, ok := leadingInt(raw)
	if ok && value == 0 {
		ok = false
	}
	if ok && (value < lottery.MinNumber || value > lottery.MaxNumber) {
		return false
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitting {
		return false
	}
	if !ok {
		f.draft[i] = nil
		return true
	}
	f.draft[i] = &value
	return true
}

// Draft 返回草稿副本。
func (f *TicketForm) Draft() TicketDraft {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.copyLocked()
}

// Submitting 表示购票交易是否在途。
func (f *TicketForm) Submitting() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submitting
}

// CanSubmit 表示草稿完整且没有在途提交。
func (f *TicketForm) CanSubmit() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.submitting && f.draft.Complete()
}

// Clear 清空草稿。
func (f *TicketForm) Clear() {
	f.mu.Lock()
	f.draft = TicketDraft{}
	f.mu.Unlock()
}

// Submit 提交草稿。成功后清空草稿；失败时保留草稿。
// 已有提交在途时直接返回 ErrBusy。
func (f *TicketForm) Submit(ctx context.Context) error {
	f.mu.Lock()
	if f.submitting {
		f.mu.Unlock()
		return ErrBusy
	}
	if !f.draft.Complete() {
		f.mu.Unlock()
		return xerrors.New(lottery.CodeInvalidTicket, TicketIncompleteMessage)
	}
	numbers := f.draft.Values()
	f.submitting = true
	f.mu.Unlock()

	err := f.buy(ctx, numbers)

	f.mu.Lock()
	f.submitting = false
	if err == nil {
		f.draft = TicketDraft{}
	}
	f.mu.Unlock()
	return err
}

func (f *TicketForm) copyLocked() TicketDraft {
	var out TicketDraft
	for i, n := range f.draft {
		if n != nil {
			v := *n
			out[i] = &v
		}
	}
	return out
}

// leadingInt 解析可选符号加前导数字，忽略其后的内容。
func leadingInt(raw string) (int, bool) {
	s := strings.TrimLeft(raw, " \t\r\n")
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0, false
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		// 溢出的数字同样超出范围。
		return lottery.MaxNumber + 1, true
	}
	return n, true
}
