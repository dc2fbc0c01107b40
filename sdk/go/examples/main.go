package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"LottoChain/sdk/go/lottery"
)

// main 连接本地 lotteryd，填写一张票并购买，然后打印最近的交易。
func main() {
	addr := flag.String("addr", "http://127.0.0.1:8080", "lotteryd 地址")
	flag.Parse()

	client, err := lottery.NewClient(*addr, nil)
	if err != nil {
		fail(err)
	}
	client.SetToken(os.Getenv("LOTTERY_API_TOKEN"))

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	view, err := client.Connect(ctx)
	if err != nil {
		fail(err)
	}
	if view.State == lottery.StateWrongNetwork {
		if view, err = client.SwitchNetwork(ctx); err != nil {
			fail(err)
		}
	}
	fmt.Printf("state=%s account=%s\n", view.State, view.Account)

	for i, n := range []string{"3", "9", "14", "21", "28", "35", "42"} {
		if _, _, err := client.SetNumber(ctx, i+1, n); err != nil {
			fail(err)
		}
	}
	view, err = client.BuyTicket(ctx)
	if err != nil {
		fail(err)
	}
	if view.Notification != nil {
		fmt.Println(view.Notification.Message)
	}

	records, err := client.History(ctx, view.Account, 5)
	if err != nil {
		fail(err)
	}
	for _, r := range records {
		fmt.Printf("%s %s block=%d numbers=%v\n", r.Kind, r.TxHash, r.BlockNumber, r.Numbers)
	}
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
