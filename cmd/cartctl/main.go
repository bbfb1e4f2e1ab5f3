package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rl1809/cart-sync/internal/config"
	"github.com/rl1809/cart-sync/internal/core/domain"
	"github.com/rl1809/cart-sync/internal/core/service"
	"github.com/rl1809/cart-sync/internal/platform/logger"
)

const closeTimeout = 10 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

type storeFunc func(ctx context.Context, store *service.CartStore, cmd *cobra.Command, args []string) error

func newRootCmd() *cobra.Command {
	var envFile string

	root := &cobra.Command{
		Use:          "cartctl",
		Short:        "Inspect and edit the persisted shopping cart",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "optional file with environment defaults")

	run := func(fn storeFunc) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), config.Load(envFile), func(ctx context.Context, store *service.CartStore) error {
				return fn(ctx, store, cmd, args)
			})
		}
	}

	var product domain.Product
	add := &cobra.Command{
		Use:   "add",
		Short: "Add a product, or bump its quantity if already in the cart",
		Args:  cobra.NoArgs,
		RunE: run(func(ctx context.Context, store *service.CartStore, cmd *cobra.Command, _ []string) error {
			if product.ID == "" {
				return fmt.Errorf("--id is required")
			}
			if err := store.AddToCart(ctx, product); err != nil {
				return err
			}
			return printCart(cmd, store)
		}),
	}
	add.Flags().StringVar(&product.ID, "id", "", "product id")
	add.Flags().StringVar(&product.Title, "title", "", "display title")
	add.Flags().StringVar(&product.ImageURL, "image-url", "", "image url")
	add.Flags().Float64Var(&product.Price, "price", 0, "unit price")

	inc := &cobra.Command{
		Use:   "inc <id>",
		Short: "Increment the quantity of an item",
		Args:  cobra.ExactArgs(1),
		RunE: run(func(ctx context.Context, store *service.CartStore, cmd *cobra.Command, args []string) error {
			if err := store.Increment(ctx, args[0]); err != nil {
				return err
			}
			return printCart(cmd, store)
		}),
	}

	dec := &cobra.Command{
		Use:   "dec <id>",
		Short: "Decrement the quantity of an item, removing it at zero",
		Args:  cobra.ExactArgs(1),
		RunE: run(func(ctx context.Context, store *service.CartStore, cmd *cobra.Command, args []string) error {
			if err := store.Decrement(ctx, args[0]); err != nil {
				return err
			}
			return printCart(cmd, store)
		}),
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "Print the cart",
		Args:  cobra.NoArgs,
		RunE: run(func(_ context.Context, store *service.CartStore, cmd *cobra.Command, _ []string) error {
			return printCart(cmd, store)
		}),
	}

	root.AddCommand(add, inc, dec, list)
	return root
}

func withStore(ctx context.Context, cfg config.Config, fn func(context.Context, *service.CartStore) error) error {
	if ctx == nil {
		ctx = context.Background()
	}

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	kv, release, err := openBackend(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer release()

	store, err := service.Open(ctx, kv,
		service.WithLogger(log.With("backend", cfg.Backend)),
		service.WithStorageKey(cfg.StorageKey),
		service.WithWriteRetries(cfg.WriteRetries),
		service.WithWriteTimeout(cfg.WriteTimeout),
	)
	if err != nil {
		return err
	}

	runErr := fn(ctx, store)

	closeCtx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	if err := store.Close(closeCtx); err != nil && runErr == nil {
		return err
	}
	return runErr
}

func printCart(cmd *cobra.Command, store *service.CartStore) error {
	out := cmd.OutOrStdout()
	items := store.Products()
	if len(items) == 0 {
		fmt.Fprintln(out, "cart is empty")
		return nil
	}

	for _, li := range items {
		title := li.Title
		if title == "" {
			title = "-"
		}
		fmt.Fprintf(out, "%-12s %-24s %3d x %8.2f = %9.2f\n", li.ID, title, li.Quantity, li.Price, li.Subtotal())
	}
	fmt.Fprintln(out, strings.Repeat("-", 66))
	fmt.Fprintf(out, "%d item(s), total %.2f\n", store.Count(), store.Total())
	return nil
}
