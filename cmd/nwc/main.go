// Command nwc drives a NIP-47 wallet from the terminal: balance,
// invoices, payments, and profile lookups over nostr relays.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/alexflint/go-arg"
	qrcode "github.com/skip2/go-qrcode"

	"nwc-core/cache"
	"nwc-core/internal/config"
	"nwc-core/keys"
	"nwc-core/nwc"
	"nwc-core/relay"
)

type balanceCmd struct{}

type infoCmd struct{}

type invoiceCmd struct {
	Amount      int64  `arg:"positional,required" help:"amount in satoshis"`
	Description string `arg:"-d,--description" help:"invoice description"`
	Expiry      int64  `arg:"--expiry" default:"3600" help:"expiry in seconds"`
}

type payCmd struct {
	Bolt11      string `arg:"positional,required" help:"BOLT11 invoice to pay"`
	AmountMsats int64  `arg:"--amount-msats" help:"amount override for zero-amount invoices"`
}

type lookupCmd struct {
	PaymentHash string `arg:"positional,required"`
}

type transactionsCmd struct {
	Limit int `arg:"-n,--limit" default:"10"`
}

type profileCmd struct {
	Key string `arg:"positional,required" help:"npub or hex pubkey"`
}

type qrCmd struct {
	Data string `arg:"positional" help:"data to encode (defaults to the connection URI)"`
	Out  string `arg:"-o,--out" help:"write a PNG to this path instead of printing"`
}

type cliArgs struct {
	URI          string           `arg:"--uri,env:NWC_URI" help:"nostr+walletconnect:// connection string"`
	Balance      *balanceCmd      `arg:"subcommand:balance" help:"show the wallet balance in sats"`
	Invoice      *invoiceCmd      `arg:"subcommand:invoice" help:"create a BOLT11 invoice"`
	Pay          *payCmd          `arg:"subcommand:pay" help:"pay a BOLT11 invoice"`
	Lookup       *lookupCmd       `arg:"subcommand:lookup" help:"look up an invoice by payment hash"`
	Info         *infoCmd         `arg:"subcommand:info" help:"show wallet info"`
	Transactions *transactionsCmd `arg:"subcommand:transactions" help:"list recent transactions"`
	Profile      *profileCmd      `arg:"subcommand:profile" help:"fetch a profile from the recommended relays"`
	QR           *qrCmd           `arg:"subcommand:qr" help:"render the connection URI as a QR code"`
}

func (cliArgs) Description() string {
	return "nwc - Nostr Wallet Connect client"
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	config.InitLogger(cfg.LogLevel)

	var args cliArgs
	parser := arg.MustParse(&args)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.RequestTimeout+15*time.Second)
	defer cancel()

	switch {
	case args.Profile != nil:
		runProfile(ctx, cfg, args.Profile)
	case args.QR != nil:
		data := args.QR.Data
		if data == "" {
			data = requireURI(parser, &args, cfg)
		}
		runQR(data, args.QR)
	case args.Balance != nil, args.Invoice != nil, args.Pay != nil,
		args.Lookup != nil, args.Info != nil, args.Transactions != nil:
		runWallet(ctx, cfg, requireURI(parser, &args, cfg), &args)
	default:
		parser.WriteHelp(os.Stderr)
		os.Exit(1)
	}
}

func requireURI(parser *arg.Parser, args *cliArgs, cfg *config.Config) string {
	uri := args.URI
	if uri == "" {
		uri = cfg.NWCURI
	}
	if uri == "" {
		parser.Fail("a connection string is required (--uri or NWC_URI)")
	}
	return uri
}

func runWallet(ctx context.Context, cfg *config.Config, uri string, args *cliArgs) {
	conn, err := nwc.ParseURI(uri)
	if err != nil {
		fatal(err)
	}

	client, err := nwc.NewClient(conn, nwc.WithRequestTimeout(cfg.RequestTimeout))
	if err != nil {
		fatal(err)
	}
	defer client.Disconnect()

	switch {
	case args.Balance != nil:
		sats, err := client.GetBalance(ctx)
		if err != nil {
			fatal(err)
		}
		fmt.Printf("%d sats\n", sats)

	case args.Invoice != nil:
		invoice, err := client.MakeInvoice(ctx, args.Invoice.Amount, args.Invoice.Description, args.Invoice.Expiry)
		if err != nil {
			fatal(err)
		}
		printJSON(invoice)

	case args.Pay != nil:
		invoice, err := client.PayInvoice(ctx, args.Pay.Bolt11, args.Pay.AmountMsats)
		if err != nil {
			fatal(err)
		}
		printJSON(invoice)

	case args.Lookup != nil:
		invoice, err := client.LookupInvoice(ctx, args.Lookup.PaymentHash)
		if err != nil {
			fatal(err)
		}
		printJSON(invoice)

	case args.Info != nil:
		info, err := client.GetInfo(ctx)
		if err != nil {
			fatal(err)
		}
		printJSON(info)

	case args.Transactions != nil:
		transactions, err := client.ListTransactions(ctx, args.Transactions.Limit)
		if err != nil {
			fatal(err)
		}
		printJSON(transactions)
	}
}

func runProfile(ctx context.Context, cfg *config.Config, cmd *profileCmd) {
	pubkey := cmd.Key
	if strings.HasPrefix(pubkey, keys.PrefixPublic+"1") {
		_, hexKey, err := keys.DecodeBech32(pubkey)
		if err != nil {
			fatal(fmt.Errorf("invalid npub: %w", err))
		}
		pubkey = hexKey
	}

	backend := profileCacheBackend(cfg)
	defer backend.Close()

	pool := relay.NewPool(relay.WithProfileCache(backend))
	defer pool.Shutdown()

	profile := pool.FetchProfile(ctx, pubkey, cfg.Relays)
	if profile == nil {
		fmt.Fprintln(os.Stderr, "no profile found")
		os.Exit(1)
	}
	printJSON(profile)
}

func profileCacheBackend(cfg *config.Config) cache.Backend {
	if cfg.RedisURL != "" {
		backend, err := cache.NewRedis(cfg.RedisURL, "nwc:")
		if err == nil {
			return backend
		}
		slog.Warn("redis unavailable, using in-memory cache", "error", err)
	}
	return cache.NewMemory(1000, time.Minute)
}

func runQR(data string, cmd *qrCmd) {
	if cmd.Out != "" {
		if err := qrcode.WriteFile(data, qrcode.Medium, 256, cmd.Out); err != nil {
			fatal(err)
		}
		fmt.Println("wrote", cmd.Out)
		return
	}

	code, err := qrcode.New(data, qrcode.Medium)
	if err != nil {
		fatal(err)
	}
	fmt.Print(code.ToSmallString(false))
}

func printJSON(v interface{}) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fatal(err)
	}
	fmt.Println(string(out))
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}
