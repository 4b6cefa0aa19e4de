// fanclient drives the storefront API from a terminal: it shows seat
// availability, holds seats and checks out a cart, and changes the
// membership tier.
//
//	fanclient availability --event ev-derby
//	fanclient buy --event ev-derby --ticket tt-derby-main --seats MS-C-1,MS-C-2 --product mer-scarf:2 --email fan@harbour.test
//	fanclient tier --to gold
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"fanclub/internal/apiclient"
	"fanclub/internal/cart"
	"fanclub/internal/checkout"
	"fanclub/internal/membership"
	"fanclub/internal/seats"
	"fanclub/internal/shared/apperr"
	"fanclub/internal/shared/config"
	"fanclub/pkg/logger"
	"fanclub/pkg/retry"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()
	cfg := config.Load()

	if len(os.Args) < 2 {
		printUsage()
		return errors.New("a command is required")
	}
	command, args := os.Args[1], os.Args[2:]

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch command {
	case "availability":
		return runAvailability(ctx, cfg, args)
	case "buy":
		return runBuy(ctx, cfg, args)
	case "tier":
		return runTier(ctx, cfg, args)
	case "help", "-h", "--help":
		printUsage()
		return nil
	default:
		printUsage()
		return fmt.Errorf("unknown command %q", command)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: fanclient <availability|buy|tier> [flags]")
}

// commonFlags are accepted by every command and override the environment
type commonFlags struct {
	baseURL string
	clubID  string
	token   string
	verbose bool
}

func (c *commonFlags) add(fs *pflag.FlagSet, cfg *config.Config) {
	fs.StringVar(&c.baseURL, "api", cfg.Client.BaseURL, "storefront API base URL")
	fs.StringVar(&c.clubID, "club", cfg.Client.ClubID, "club id (X-Club-ID)")
	fs.StringVar(&c.token, "token", cfg.Client.Token, "bearer access token")
	fs.BoolVarP(&c.verbose, "verbose", "v", false, "log remote calls")
}

func (c *commonFlags) client(cfg *config.Config) (*apiclient.Client, *logger.Logger, error) {
	level := slog.LevelWarn
	if c.verbose {
		level = slog.LevelDebug
	}
	log := logger.NewWithHandler(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if c.token == "" || c.clubID == "" {
		return nil, nil, errors.New("--token and --club (or FANCLUB_TOKEN and FANCLUB_CLUB_ID) are required")
	}

	client, err := apiclient.New(apiclient.Config{
		BaseURL:     c.baseURL,
		Timeout:     cfg.Client.Timeout,
		Credentials: apiclient.StaticCredentials{Token: c.token, Club: c.clubID},
		Retry:       retryPolicy(cfg.Retry, log),
		Logger:      log,
	})
	if err != nil {
		return nil, nil, err
	}
	return client, log, nil
}

func retryPolicy(rc config.RetryConfig, log *logger.Logger) retry.Policy {
	return retry.Policy{
		MaxAttempts: rc.MaxAttempts,
		Delay:       rc.Delay,
		Multiplier:  rc.Multiplier,
		MaxDelay:    rc.MaxDelay,
		Retryable:   apperr.IsRetryable,
		OnRetry: func(err error, wait time.Duration) {
			log.Warn("retrying", "error", err, "wait", wait)
		},
	}
}

func parse(fs *pflag.FlagSet, args []string) (bool, error) {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func runAvailability(ctx context.Context, cfg *config.Config, args []string) error {
	var common commonFlags
	var eventID string

	fs := pflag.NewFlagSet("availability", pflag.ContinueOnError)
	common.add(fs, cfg)
	fs.StringVar(&eventID, "event", "", "event id")
	if ok, err := parse(fs, args); !ok {
		return err
	}

	client, _, err := common.client(cfg)
	if err != nil {
		return err
	}

	tracker := seats.NewTracker(client, nil)
	avail, err := tracker.Fetch(ctx, eventID)
	if err != nil {
		return err
	}

	fmt.Printf("event %s\n", avail.EventID)
	fmt.Printf("  sold: %s\n", strings.Join(avail.Taken, ", "))
	fmt.Printf("  held: %s\n", strings.Join(avail.Held, ", "))
	return nil
}

func runBuy(ctx context.Context, cfg *config.Config, args []string) error {
	var (
		common   commonFlags
		eventID  string
		ticketID string
		seatIDs  []string
		products []string
		email    string
	)

	fs := pflag.NewFlagSet("buy", pflag.ContinueOnError)
	common.add(fs, cfg)
	fs.StringVar(&eventID, "event", "", "event id of the seats")
	fs.StringVar(&ticketID, "ticket", "", "ticket reference id")
	fs.StringSliceVar(&seatIDs, "seats", nil, "seat ids to hold")
	fs.StringArrayVar(&products, "product", nil, "product reference id, optionally ref:quantity (repeatable)")
	fs.StringVar(&email, "email", "", "buyer email")
	if ok, err := parse(fs, args); !ok {
		return err
	}

	client, log, err := common.client(cfg)
	if err != nil {
		return err
	}

	store := cart.NewStore()
	for _, p := range products {
		ref, qty, err := parseProduct(p)
		if err != nil {
			return err
		}
		store.AddItem(cart.NewProductLine(ref, "", ref, ref, 0, qty))
	}

	var hold *seats.HoldManager
	if len(seatIDs) > 0 {
		if eventID == "" || ticketID == "" {
			return errors.New("--event and --ticket are required with --seats")
		}

		hold = seats.NewHoldManager(client, seats.Options{
			RefreshFraction: cfg.Client.RefreshFraction,
			Logger:          log,
			OnExpired: func(h seats.SeatHold) {
				n := store.FlagSeatsForReselection(h.SeatIDs)
				fmt.Fprintf(os.Stderr, "hold %s expired, %d cart line(s) need new seats\n", h.Token, n)
			},
		})
		defer hold.Close(context.Background())

		held, err := acquire(ctx, client, hold, eventID, seatIDs)
		if err != nil {
			return err
		}
		fmt.Printf("holding %s until %s\n", strings.Join(held.SeatIDs, ", "), held.ExpiresAt.Format(time.Kitchen))
		store.AddItem(cart.NewTicketLine(ticketID, ticketID, ticketID, 0, len(held.SeatIDs), held.SeatIDs...))
	}

	if store.IsEmpty() {
		return errors.New("nothing to buy: pass --seats or --product")
	}

	sub := checkout.Submission{
		Cart:       store,
		BuyerEmail: email,
		ClubID:     common.clubID,
		Attempt:    checkout.NewAttempt(),
	}
	if hold != nil {
		sub.Hold = hold
	}

	coordinator := checkout.NewCoordinator(client, retryPolicy(cfg.Retry, log), log)
	conf, err := coordinator.Submit(ctx, sub)
	if err != nil {
		if seatsLost := apperr.ConflictingSeats(err); len(seatsLost) > 0 {
			store.FlagSeatsForReselection(seatsLost)
			return fmt.Errorf("seats %s were sold meanwhile: %w", strings.Join(seatsLost, ", "), err)
		}
		return err
	}

	if conf.Replayed {
		fmt.Printf("order %s was already placed (%s)\n", conf.OrderID, conf.Status)
		return nil
	}
	fmt.Printf("order %s placed (%s)\n", conf.OrderID, conf.Status)
	return nil
}

// acquire holds seatIDs. On a conflict it re-fetches availability, drops
// the seats that are gone and tries once more with what is left.
func acquire(ctx context.Context, client *apiclient.Client, hold *seats.HoldManager, eventID string, seatIDs []string) (seats.SeatHold, error) {
	held, err := hold.Acquire(ctx, eventID, seatIDs)
	if apperr.CodeOf(err) != apperr.CodeConflict {
		return held, err
	}

	tracker := seats.NewTracker(client, nil)
	avail, fetchErr := tracker.Fetch(ctx, eventID)
	if fetchErr != nil {
		return seats.SeatHold{}, err
	}
	free, gone := avail.Filter(seatIDs)
	if len(free) == 0 {
		return seats.SeatHold{}, err
	}
	fmt.Fprintf(os.Stderr, "seats %s are taken, holding %s instead\n", strings.Join(gone, ", "), strings.Join(free, ", "))
	return hold.Acquire(ctx, eventID, free)
}

func parseProduct(value string) (string, int, error) {
	ref, qtyText, found := strings.Cut(value, ":")
	if ref == "" {
		return "", 0, fmt.Errorf("invalid product %q", value)
	}
	if !found {
		return ref, 1, nil
	}
	qty, err := strconv.Atoi(qtyText)
	if err != nil || qty < 1 {
		return "", 0, fmt.Errorf("invalid quantity in %q", value)
	}
	return ref, qty, nil
}

func runTier(ctx context.Context, cfg *config.Config, args []string) error {
	var (
		common           commonFlags
		target           string
		confirmDowngrade bool
	)

	fs := pflag.NewFlagSet("tier", pflag.ContinueOnError)
	common.add(fs, cfg)
	fs.StringVar(&target, "to", "", "tier to switch to (platinum, gold, silver, fan)")
	fs.BoolVar(&confirmDowngrade, "confirm-downgrade", false, "accept losing benefits on a downgrade")
	if ok, err := parse(fs, args); !ok {
		return err
	}

	client, _, err := common.client(cfg)
	if err != nil {
		return err
	}

	engine := membership.MustDefaultEngine()
	current, err := client.GetTier(ctx)
	if err != nil {
		return err
	}
	persist := membership.NewMemoryPersistence()
	if err := persist.Set(ctx, current.String()); err != nil {
		return err
	}
	store, err := membership.NewTierStore(ctx, engine, persist, membership.TierFan)
	if err != nil {
		return err
	}

	fmt.Printf("current tier: %s\n", store.GetSnapshot())
	if target == "" {
		return nil
	}

	flow := membership.NewFlow(engine, store, client)
	if err := flow.Select(membership.Tier(target)); err != nil {
		return err
	}
	if flow.Step() == membership.StepDowngradeWarning {
		fmt.Println("this downgrade removes:")
		for _, b := range flow.LostBenefits() {
			fmt.Printf("  - %s\n", b.Label)
		}
		if !confirmDowngrade {
			return errors.New("pass --confirm-downgrade to continue")
		}
		if err := flow.ConfirmDowngrade(); err != nil {
			return err
		}
	}

	if err := flow.Pay(ctx); err != nil {
		return err
	}
	fmt.Printf("tier changed to %s\n", store.GetSnapshot())
	return nil
}
