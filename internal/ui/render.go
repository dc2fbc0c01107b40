package ui

import (
	"fmt"
	"strings"
)

// Render 把视图快照渲染为控制台文本。方括号中的词是控制台命令。
func Render(v View) string {
	var b strings.Builder
	b.WriteString("🎰 Web3 Lottery Game\n")
	b.WriteString(strings.Repeat("=", 32))
	b.WriteString("\n")
	renderWallet(&b, v)
	b.WriteString("\n")

	switch v.State {
	case StateConnectedLoading, StateConnected:
		renderLottery(&b, v.Lottery)
		if v.Ticket != nil {
			b.WriteString("\n")
			renderTicket(&b, v.Ticket)
		}
		if v.Rewards != nil {
			b.WriteString("\n")
			renderRewards(&b, v.Rewards)
		}
	default:
		b.WriteString("🔗 Connect your wallet to get started\n")
	}

	if v.Notification != nil {
		b.WriteString("\n")
		icon := "✅"
		if v.Notification.Kind == NotificationError {
			icon = "❌"
		}
		fmt.Fprintf(&b, "%s %s  [close]\n", icon, v.Notification.Message)
	}
	return b.String()
}

func renderWallet(b *strings.Builder, v View) {
	switch {
	case v.State == StateWalletUnavailable:
		b.WriteString("No wallet is available. Configure a wallet key to use this DApp.\n")
	case v.Error != "":
		fmt.Fprintf(b, "Error: %s\n", v.Error)
		b.WriteString("[connect] Try Again\n")
	case v.State == StateConnecting:
		b.WriteString("Connecting...\n")
	case v.State == StateDisconnected:
		b.WriteString("[connect] Connect Wallet\n")
	case v.State == StateWrongNetwork:
		fmt.Fprintf(b, "You're on the wrong network. Please switch to %s.\n", v.NetworkName)
		b.WriteString("[switch] Switch Network  [disconnect] Disconnect\n")
	default:
		fmt.Fprintf(b, "Connected: %s  [disconnect] Disconnect\n", ShortAddress(v.Account))
	}
}

func renderLottery(b *strings.Builder, l *LotteryView) {
	if l == nil || !l.Available {
		if l != nil && l.Loading {
			b.WriteString("Loading...\n")
		} else {
			b.WriteString("Unable to load lottery status\n")
		}
		return
	}
	b.WriteString("Lottery Status\n")
	status := "🔴 CLOSED"
	if l.IsOpen {
		status = "🟢 OPEN"
	}
	fmt.Fprintf(b, "  Status: %s\n", status)
	fmt.Fprintf(b, "  Entry Fee: %s ETH\n", l.EntryFee)
	if !l.IsOpen && len(l.WinningNumbers) > 0 {
		fmt.Fprintf(b, "  Winning Numbers: %s\n", joinNumbers(l.WinningNumbers))
	}
	if l.IsOpen {
		b.WriteString("  The lottery is currently open. Purchase a ticket to participate!\n")
	}
}

func renderTicket(b *strings.Builder, t *TicketView) {
	if !t.Open {
		b.WriteString("Lottery is currently closed. Wait for the next round.\n")
		return
	}
	b.WriteString("Buy a Ticket\n")
	b.WriteString("  Select 7 different numbers between 1 and 47  [set <position 1-7> <number>]\n")
	slots := make([]string, len(t.Numbers))
	for i, n := range t.Numbers {
		if n == nil {
			slots[i] = fmt.Sprintf("#%d:__", i+1)
			continue
		}
		slots[i] = fmt.Sprintf("#%d:%d", i+1, *n)
	}
	fmt.Fprintf(b, "  %s\n", strings.Join(slots, " "))

	selected := "None"
	if values := t.Numbers.Values(); len(values) > 0 {
		parts := make([]string, len(values))
		for i, n := range values {
			parts[i] = fmt.Sprint(n)
		}
		selected = strings.Join(parts, ", ")
	}
	fmt.Fprintf(b, "  Selected: %s\n", selected)

	switch {
	case t.Submitting:
		b.WriteString("  Processing...\n")
	case t.CanSubmit:
		b.WriteString("  [buy] Buy Ticket\n")
	default:
		b.WriteString("  Buy Ticket (fill all 7 numbers)\n")
	}
}

func renderRewards(b *strings.Builder, r *RewardsView) {
	b.WriteString("Your Rewards\n")
	fmt.Fprintf(b, "  Pending Rewards: %s ETH\n", r.Pending)
	fmt.Fprintf(b, "  Account: %s\n", r.Account)
	switch {
	case r.Claiming:
		b.WriteString("  Claiming...\n")
	case r.CanClaim:
		b.WriteString("  [claim] Claim Rewards\n")
	default:
		fmt.Fprintf(b, "  %s\n", r.Message)
	}
}

func joinNumbers(numbers []int) string {
	parts := make([]string, len(numbers))
	for i, n := range numbers {
		parts[i] = fmt.Sprint(n)
	}
	return strings.Join(parts, " ")
}
