package main

import (
	"connectwork/src/boot"
	"connectwork/src/common"
	"connectwork/src/config"
	"connectwork/src/lib/mpesa"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "connectwork",
		Short:        "ConnectWork M-Pesa payments service",
		SilenceUsage: true,
	}
	root.AddCommand(serveCmd(), payCmd(), statusCmd(), sweepCmd(), migrateCmd())
	return root
}

func loadApp(ctx context.Context) (*config.Config, *boot.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	app, err := boot.New(ctx, cfg)
	if err != nil {
		return cfg, nil, err
	}
	return cfg, app, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, callback receiver and sweeper",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			initLogger(cfg)

			app, err := boot.New(ctx, cfg)
			if err != nil {
				log.Printf("Failed to start: %s\n", err.Error())
				return err
			}
			defer app.Close()
			if err := app.InitScheduler(); err != nil {
				return err
			}

			srv := &http.Server{
				Addr:              ":" + cfg.Port,
				Handler:           newServer(app),
				ReadHeaderTimeout: 10 * time.Second,
			}
			errCh := make(chan error, 1)
			go func() {
				log.Printf("Listening on %s\n", srv.Addr)
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					log.Printf("Failed to start server: %s\n", err.Error())
					return err
				}
			case <-ctx.Done():
				log.Println("Shutting down...")
			}
			sctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			return srv.Shutdown(sctx)
		},
	}
}

func payCmd() *cobra.Command {
	var (
		phone     string
		amount    float64
		reference string
		desc      string
		noWait    bool
	)
	cmd := &cobra.Command{
		Use:   "pay",
		Short: "Send an STK push and wait for the customer to answer it",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, app, err := loadApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close()

			push, err := app.Mpesa.InitiateStkPush(ctx, phone, amount, mpesa.PushOptions{
				AccountReference: reference,
				TransactionDesc:  desc,
			})
			printJSON(cmd.OutOrStdout(), push)
			if err != nil || noWait {
				return err
			}

			fmt.Fprintln(cmd.ErrOrStderr(), "Waiting for the customer to confirm. Press Ctrl-C to stop.")
			poller := &common.Poller{
				Checker:  app.Mpesa,
				Interval: cfg.Mpesa.PollInterval,
				Attempts: cfg.Mpesa.PollAttempts,
				OnAttempt: func(attempt int, res *mpesa.StatusResult, err error) {
					if err != nil {
						fmt.Fprintf(cmd.ErrOrStderr(), "attempt %d: %s\n", attempt, err.Error())
						return
					}
					fmt.Fprintf(cmd.ErrOrStderr(), "attempt %d: %s\n", attempt, res.Outcome)
				},
			}
			res, err := poller.Await(ctx, push.CheckoutRequestID)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().StringVar(&phone, "phone", "", "customer phone number")
	cmd.Flags().Float64Var(&amount, "amount", 0, "amount in KES")
	cmd.Flags().StringVar(&reference, "reference", "", "account reference shown to the customer")
	cmd.Flags().StringVar(&desc, "desc", "", "transaction description")
	cmd.Flags().BoolVar(&noWait, "no-wait", false, "return right after the push is accepted")
	cmd.MarkFlagRequired("phone")
	cmd.MarkFlagRequired("amount")
	return cmd
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <checkout-request-id>",
		Short: "Query the provider once and reconcile a terminal answer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, app, err := loadApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			res, err := app.Mpesa.CheckTransactionStatus(cmd.Context(), args[0])
			printJSON(cmd.OutOrStdout(), res)
			return err
		},
	}
}

func sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Settle transactions left pending past the poll window",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, app, err := loadApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			n, err := app.Sweeper.Sweep(cmd.Context())
			fmt.Fprintf(cmd.OutOrStdout(), "checked %d pending transactions\n", n)
			return err
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the payment tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			store, err := boot.InitDb(cfg)
			if err != nil {
				return err
			}
			if sqlDB, err := store.DB().DB(); err == nil {
				sqlDB.Close()
			}
			log.Println("Migration complete")
			return nil
		},
	}
}
