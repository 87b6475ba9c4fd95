// naivewallet is a command-line wallet for a naivecoin node.
//
// Usage:
//
//	naivewallet [options] <command> [arguments]
//	naivewallet --help
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/Klingon-tech/naivecoin-wallet/config"
	"github.com/Klingon-tech/naivecoin-wallet/internal/app"
	"github.com/Klingon-tech/naivecoin-wallet/internal/tracker"
	"github.com/Klingon-tech/naivecoin-wallet/internal/wallet"
)

const version = "0.1.0"

// passwordEnv lets scripts supply the wallet password.
const passwordEnv = "NAIVEWALLET_PASSWORD"

func main() {
	cfg, flags, err := config.Load(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		fmt.Fprint(os.Stderr, config.Usage)
		return
	}
	if err != nil {
		fatal("%v", err)
	}
	if flags.Help {
		fmt.Fprint(os.Stderr, config.Usage)
		return
	}
	if flags.Version {
		fmt.Printf("naivewallet %s\n", version)
		return
	}
	if len(flags.Args) == 0 {
		fmt.Fprint(os.Stderr, config.Usage)
		os.Exit(1)
	}

	a, err := app.Open(cfg)
	if err != nil {
		fatal("%v", err)
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd, args := flags.Args[0], flags.Args[1:]
	switch cmd {
	case "create":
		err = cmdCreate(a, args)
	case "watch":
		err = withWallet(a, func() error { return cmdWatch(ctx, a) })
	case "shell":
		err = withWallet(a, func() error { return runShell(ctx, a) })
	case "balance":
		if len(args) > 0 {
			err = cmdBalance(ctx, a, args)
		} else {
			err = withWallet(a, func() error { return cmdBalance(ctx, a, nil) })
		}
	case "help":
		fmt.Fprint(os.Stderr, config.Usage)
	default:
		err = withWallet(a, func() error { return dispatch(ctx, a, cmd, args) })
	}
	if err != nil {
		a.Close()
		fatal("%v", err)
	}
}

// dispatch runs a command that needs an open wallet. It is shared with the
// interactive shell.
func dispatch(ctx context.Context, a *app.App, cmd string, args []string) error {
	switch cmd {
	case "new-address":
		return cmdNewAddress(a)
	case "addresses":
		return cmdAddresses(a)
	case "balance":
		return cmdBalance(ctx, a, args)
	case "send":
		return cmdSend(ctx, a, args)
	case "history":
		return cmdHistory(a)
	case "link":
		return cmdLink(ctx, a, args)
	default:
		return fmt.Errorf("unknown command: %s", cmd)
	}
}

// withWallet opens the wallet for the password before running fn.
func withWallet(a *app.App, fn func() error) error {
	pw, err := password("Wallet password: ")
	if err != nil {
		return err
	}
	if _, err := a.OpenWallet(pw); err != nil {
		if errors.Is(err, wallet.ErrNotFound) {
			return fmt.Errorf("no wallet for this password (run `naivewallet create`)")
		}
		return err
	}
	return fn()
}

// ── create ──────────────────────────────────────────────────────────────

func cmdCreate(a *app.App, args []string) error {
	fs := flag.NewFlagSet("create", flag.ContinueOnError)
	words := fs.Int("generate", 0, "Generate a BIP-39 passphrase with this many words (12-24)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var pw string
	if *words > 0 {
		phrase, err := wallet.GeneratePassphrase(*words)
		if err != nil {
			return err
		}
		fmt.Println("Your wallet passphrase (write it down, it cannot be recovered):")
		fmt.Println()
		fmt.Printf("  %s\n", phrase)
		fmt.Println()
		pw = phrase
	} else {
		var err error
		if pw, err = password("New wallet password: "); err != nil {
			return err
		}
		if os.Getenv(passwordEnv) == "" {
			confirm, err := readPassword("Confirm password: ")
			if err != nil {
				return err
			}
			if strings.TrimSpace(string(confirm)) != pw {
				return fmt.Errorf("passwords do not match")
			}
		}
	}

	w, err := a.CreateWallet(pw)
	if err != nil {
		return err
	}
	fmt.Printf("Wallet ID: %s\n", w.ID)
	fmt.Printf("Address:   %s\n", w.Addresses()[0])
	return nil
}

// ── addresses ───────────────────────────────────────────────────────────

func cmdNewAddress(a *app.App) error {
	addr, err := a.NewAddress()
	if err != nil {
		return err
	}
	fmt.Println(addr)
	return nil
}

func cmdAddresses(a *app.App) error {
	addrs, err := a.Addresses()
	if err != nil {
		return err
	}
	for i, addr := range addrs {
		fmt.Printf("%3d  %s\n", i+1, addr)
	}
	return nil
}

// ── balance ─────────────────────────────────────────────────────────────

func cmdBalance(ctx context.Context, a *app.App, args []string) error {
	addrs := args
	if len(addrs) == 0 {
		var err error
		if addrs, err = a.Addresses(); err != nil {
			return err
		}
	}
	for _, addr := range addrs {
		b, err := a.Balance(ctx, addr)
		if err != nil {
			return fmt.Errorf("balance of %s: %w", addr, err)
		}
		if b.Balance < 0 {
			fmt.Printf("%s  unavailable (%s)\n", addr, b.Status)
			continue
		}
		fmt.Printf("%s  %d\n", addr, b.Balance)
	}
	return nil
}

// ── send ────────────────────────────────────────────────────────────────

func cmdSend(ctx context.Context, a *app.App, args []string) error {
	if len(args) != 3 {
		return fmt.Errorf("usage: send <from> <to> <amount>")
	}
	amount, err := strconv.ParseUint(args[2], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid amount %q", args[2])
	}

	rec, err := a.Send(ctx, args[0], args[1], amount)
	if err != nil {
		return err
	}
	fmt.Printf("Transaction: %s\n", rec.ID)
	fmt.Printf("Fee:         %d\n", a.Config().Wallet.Fee)
	fmt.Println("Status:      pending")
	return nil
}

// ── history ─────────────────────────────────────────────────────────────

func cmdHistory(a *app.App) error {
	recs, err := a.History()
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		fmt.Println("No transactions")
		return nil
	}
	for _, r := range recs {
		status := "pending"
		if r.Confirmed {
			status = "confirmed"
		}
		var sent uint64
		if len(r.Data.Outputs) > 0 {
			sent = r.Data.Outputs[0].Amount
		}
		fmt.Printf("%s  %s  %-9s  %d\n", r.CreatedAt.Local().Format(time.DateTime), r.ID, status, sent)
	}
	return nil
}

// ── link ────────────────────────────────────────────────────────────────

func cmdLink(ctx context.Context, a *app.App, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: link <link-url>")
	}
	res, err := a.Link(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Printf("%s (wallet %s)\n", res.Status, res.WalletID)
	return nil
}

// ── watch ───────────────────────────────────────────────────────────────

func cmdWatch(ctx context.Context, a *app.App) error {
	tr := a.Tracker()
	if err := tr.Start(ctx); err != nil {
		return err
	}
	fmt.Fprintln(os.Stderr, "Watching for confirmations (Ctrl+C to stop)")

	for {
		select {
		case v := <-a.Notifications():
			if id, ok := v.(string); ok {
				fmt.Printf("Confirmed: %s\n", id)
			}
		case <-tr.Done():
			if tr.Status() == tracker.Failed {
				return tr.Err()
			}
			return nil
		}
	}
}

// ── Password helpers ────────────────────────────────────────────────────

// password returns the password from the environment, or prompts for it.
func password(prompt string) (string, error) {
	if pw := os.Getenv(passwordEnv); pw != "" {
		return pw, nil
	}
	pw, err := readPassword(prompt)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(pw)), nil
}

func readPassword(prompt string) ([]byte, error) {
	fmt.Fprint(os.Stderr, prompt)
	pw, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr) // newline after hidden input
	if err != nil {
		return nil, err
	}
	return pw, nil
}

// ── Error helper ────────────────────────────────────────────────────────

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
