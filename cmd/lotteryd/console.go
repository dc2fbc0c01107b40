package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	xerrors "LottoChain/internal/errors"
	"LottoChain/internal/ui"
	"LottoChain/internal/wallet"

	"github.com/urfave/cli/v2"
)

const consoleHelp = `commands:
  connect                 connect the wallet
  switch                  switch to the lottery network
  disconnect              disconnect the wallet
  set <position> <number> fill ticket slot 1-7 (empty number clears it)
  buy                     buy a ticket with the current numbers
  claim                   claim pending rewards
  close                   dismiss the notification
  history [limit]         list recent transactions
  view                    redraw the screen
  quit                    exit`

func consoleCommand() *cli.Command {
	return &cli.Command{
		Name:  "console",
		Usage: "在终端中交互式使用彩票",
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			ctx := c.Context
			con := newConsole(ctx, os.Stdin, os.Stdout)

			rt, err := buildRuntime(ctx, cfg, con.approve)
			if err != nil {
				return err
			}
			defer rt.Close()

			con.app = rt.app
			return con.run(ctx)
		},
	}
}

// console 是基于行输入的交互终端，钱包授权确认与命令共用同一输入流。
type console struct {
	app   *ui.App
	lines <-chan string
	out   io.Writer
}

func newConsole(ctx context.Context, in io.Reader, out io.Writer) *console {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return &console{lines: lines, out: out}
}

func (c *console) run(ctx context.Context) error {
	fmt.Fprint(c.out, ui.Render(c.app.View()))
	fmt.Fprintln(c.out, "type 'help' for commands")
	for {
		fmt.Fprint(c.out, "> ")
		line, ok := c.readLine(ctx)
		if !ok {
			fmt.Fprintln(c.out)
			return nil
		}
		if c.execute(ctx, line) {
			return nil
		}
	}
}

func (c *console) readLine(ctx context.Context) (string, bool) {
	select {
	case <-ctx.Done():
		return "", false
	case line, ok := <-c.lines:
		return strings.TrimSpace(line), ok
	}
}

// execute 执行一条命令，返回 true 表示退出。
func (c *console) execute(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	switch strings.ToLower(fields[0]) {
	case "quit", "exit":
		return true
	case "help":
		fmt.Fprintln(c.out, consoleHelp)
		return false
	case "view":
	case "connect":
		c.app.Connect(ctx)
	case "switch":
		c.app.SwitchNetwork(ctx)
	case "disconnect":
		c.app.Disconnect()
	case "set":
		if !c.setNumber(fields[1:]) {
			return false
		}
	case "buy":
		fmt.Fprintln(c.out, "Processing...")
		c.report(ctx, c.app.SubmitTicket)
	case "claim":
		fmt.Fprintln(c.out, "Claiming...")
		c.report(ctx, c.app.ClaimRewards)
	case "close":
		c.app.CloseNotification()
	case "history":
		c.history(ctx, fields[1:])
		return false
	default:
		fmt.Fprintf(c.out, "unknown command %q, type 'help'\n", fields[0])
		return false
	}
	fmt.Fprint(c.out, ui.Render(c.app.View()))
	return false
}

func (c *console) setNumber(args []string) bool {
	if len(args) == 0 {
		fmt.Fprintln(c.out, "usage: set <position 1-7> <number>")
		return false
	}
	position, err := strconv.Atoi(args[0])
	if err != nil || position < 1 || position > len(ui.TicketDraft{}) {
		fmt.Fprintln(c.out, "position must be between 1 and 7")
		return false
	}
	raw := ""
	if len(args) > 1 {
		raw = args[1]
	}
	if !c.app.SetNumber(position-1, raw) {
		fmt.Fprintf(c.out, "ignored %q: numbers must be between 1 and 47\n", raw)
	}
	return true
}

// report 执行操作，只输出不会产生通知的前置校验错误，其余错误由通知展示。
func (c *console) report(ctx context.Context, action func(context.Context) error) {
	before, _ := c.app.Notifications().Current()
	err := action(ctx)
	if err == nil {
		return
	}
	if after, ok := c.app.Notifications().Current(); ok && after.ID != before.ID {
		return
	}
	fmt.Fprintln(c.out, xerrors.Cause(err))
}

func (c *console) history(ctx context.Context, args []string) {
	limit := 10
	if len(args) > 0 {
		if parsed, err := strconv.Atoi(args[0]); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	account := c.app.View().Account
	records, err := c.app.History(ctx, account, limit)
	if err != nil {
		fmt.Fprintln(c.out, xerrors.Cause(err))
		return
	}
	if len(records) == 0 {
		fmt.Fprintln(c.out, "no transactions yet")
		return
	}
	for _, r := range records {
		fmt.Fprintf(c.out, "%s  %-6s  %s  block %d  %s\n",
			time.Unix(r.CreatedAt, 0).Format("2006-01-02 15:04:05"), r.Kind, r.TxHash, r.BlockNumber, r.Status)
	}
}

// approve 在终端上询问用户是否同意钱包请求。
func (c *console) approve(ctx context.Context, req wallet.ApprovalRequest) bool {
	switch req.Kind {
	case wallet.ApproveSwitchChain:
		fmt.Fprintf(c.out, "Wallet: switch to chain %s? [y/N] ", req.ChainID)
	default:
		fmt.Fprint(c.out, "Wallet: allow this app to see your accounts? [y/N] ")
	}
	answer, ok := c.readLine(ctx)
	if !ok {
		return false
	}
	answer = strings.ToLower(answer)
	return answer == "y" || answer == "yes"
}
