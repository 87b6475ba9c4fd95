package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/Klingon-tech/naivecoin-wallet/internal/app"
)

const shellHelp = `Commands:
  new-address                  Derive the next address
  addresses                    List addresses
  balance [address]            Show ledger balance
  send <from> <to> <amount>    Build, sign and submit a transaction
  history                      List submitted transactions
  link <link-url>              Link the wallet to a shop cart
  help                         Show this help
  exit                         Leave the shell
`

// runShell reads commands from stdin until EOF, exit or cancellation. The
// tracker runs in the background and confirmations are printed before each
// prompt.
func runShell(ctx context.Context, a *app.App) error {
	if err := a.Start(ctx); err != nil {
		return err
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		for _, id := range a.Drain() {
			fmt.Printf("Confirmed: %s\n", id)
		}
		fmt.Print("naivewallet> ")

		var line string
		select {
		case <-ctx.Done():
			fmt.Println()
			return nil
		case l, ok := <-lines:
			if !ok {
				fmt.Println()
				return nil
			}
			line = l
		}

		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "exit", "quit":
			return nil
		case "help":
			fmt.Print(shellHelp)
		default:
			if err := dispatch(ctx, a, fields[0], fields[1:]); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			}
		}
	}
}
