package cmd

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/vibast-solutions/ms-go-checkout/app/mapper"
	"github.com/vibast-solutions/ms-go-checkout/app/service"
	"github.com/vibast-solutions/ms-go-checkout/app/types"
)

var (
	sessionIDFlag    string
	userIDFlag       string
	historyLimitFlag int32
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Reconcile one checkout session against the payment processor",
	Long:  "Fetch the processor status of a single checkout session on behalf of its owner and fold it into the ledger, exactly as a status poll would.",
	Run: func(_ *cobra.Command, _ []string) {
		runCommand("reconcile", func(ctx context.Context, s *service.CheckoutService) (interface{}, error) {
			result, err := s.ReconcileStatus(ctx, userIDFlag, sessionIDFlag)
			if err != nil {
				return nil, err
			}
			return mapper.ReconcileResultToProto(result), nil
		})
	},
}

var transactionsCmd = &cobra.Command{
	Use:   "transactions",
	Short: "List a customer's checkout transactions, newest first",
	Run: func(_ *cobra.Command, _ []string) {
		runCommand("transactions", func(ctx context.Context, s *service.CheckoutService) (interface{}, error) {
			items, err := s.ListTransactions(ctx, userIDFlag, historyLimitFlag)
			if err != nil {
				return nil, err
			}
			return &types.ListTransactionsResponse{Transactions: mapper.TransactionsToProto(items)}, nil
		})
	},
}

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Print the audit trail of one checkout session",
	Run: func(_ *cobra.Command, _ []string) {
		runCommand("events", func(ctx context.Context, s *service.CheckoutService) (interface{}, error) {
			items, err := s.TransactionEvents(ctx, userIDFlag, sessionIDFlag)
			if err != nil {
				return nil, err
			}
			return mapper.TransactionEventsToProto(sessionIDFlag, items), nil
		})
	},
}

func init() {
	rootCmd.AddCommand(reconcileCmd)
	rootCmd.AddCommand(transactionsCmd)
	rootCmd.AddCommand(eventsCmd)

	reconcileCmd.Flags().StringVar(&sessionIDFlag, "session", "", "Checkout session id")
	reconcileCmd.Flags().StringVar(&userIDFlag, "user", "", "Owning customer id")
	_ = reconcileCmd.MarkFlagRequired("session")
	_ = reconcileCmd.MarkFlagRequired("user")

	eventsCmd.Flags().StringVar(&sessionIDFlag, "session", "", "Checkout session id")
	eventsCmd.Flags().StringVar(&userIDFlag, "user", "", "Owning customer id")
	_ = eventsCmd.MarkFlagRequired("session")
	_ = eventsCmd.MarkFlagRequired("user")

	transactionsCmd.Flags().StringVar(&userIDFlag, "user", "", "Customer id")
	transactionsCmd.Flags().Int32Var(&historyLimitFlag, "limit", types.DefaultHistoryLimit, "Maximum number of transactions")
	_ = transactionsCmd.MarkFlagRequired("user")
}

func runCommand(name string, fn func(ctx context.Context, s *service.CheckoutService) (interface{}, error)) {
	app := mustCreateApplication(false)
	defer app.cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	var out interface{}
	ok := runJob(name, func() error {
		var err error
		out, err = fn(ctx, app.service)
		return err
	})
	if !ok {
		app.cleanup()
		os.Exit(1)
	}

	if err := writeJSON(os.Stdout, out); err != nil {
		logrus.WithError(err).WithField("job", name).Error("Failed to write output")
	}
}

func runJob(name string, fn func() error) bool {
	start := time.Now()
	err := fn()
	latency := time.Since(start)
	if err != nil {
		logrus.WithError(err).WithField("job", name).WithField("latency", latency.String()).Error("job_failed")
		return false
	}
	logrus.WithField("job", name).WithField("latency", latency.String()).Info("job_completed")
	return true
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
