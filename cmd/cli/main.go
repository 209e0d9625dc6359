package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/iho/ledgercore/internal/adapter/http/dto"
	"github.com/iho/ledgercore/internal/infrastructure/logger"
	"github.com/iho/ledgercore/internal/infrastructure/postgres"
)

var errInconsistent = errors.New("ledger verification found problems")

type cli struct {
	baseURL string
	timeout time.Duration
}

func (c *cli) client() *apiClient {
	return newAPIClient(c.baseURL, c.timeout)
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	rootCmd := &cobra.Command{
		Use:           "ledgerctl",
		Short:         "Ledger CLI tool",
		Long:          `A command line interface for the ledger API and its database schema.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&c.baseURL, "url", "http://localhost:8080", "Base URL of the ledger API")
	rootCmd.PersistentFlags().DurationVar(&c.timeout, "timeout", 10*time.Second, "Request timeout")

	rootCmd.AddCommand(
		c.transferCmd(),
		c.accountCmd(),
		c.ledgerCmd(),
		migrateCmd(),
	)

	return rootCmd
}

func (c *cli) transferCmd() *cobra.Command {
	var (
		req         dto.TransferRequest
		amountMinor int64
	)

	cmd := &cobra.Command{
		Use:   "transfer",
		Short: "Move money between two accounts",
		Long: `Submit a transfer command. Re-running with the same --command-id
returns the original result instead of moving money twice.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("amount-minor") {
				req.AmountMinor = &amountMinor
			}
			if req.CommandID == "" {
				req.CommandID = uuid.NewString()
			}

			var resp dto.TransferResultResponse
			if _, err := c.client().do(cmd.Context(), http.MethodPost, "/api/v1/transfers", nil, &req, &resp); err != nil {
				return err
			}

			return printJSON(cmd.OutOrStdout(), resp)
		},
	}

	f := cmd.Flags()
	f.StringVar(&req.FromAccountID, "from", "", "Account to debit")
	f.StringVar(&req.ToAccountID, "to", "", "Account to credit")
	f.StringVar(&req.Amount, "amount", "", "Amount in major units, e.g. 10.50")
	f.Int64Var(&amountMinor, "amount-minor", 0, "Amount in minor units, e.g. 1050")
	f.StringVar(&req.Currency, "currency", "", "ISO 4217 currency code")
	f.StringVar(&req.CommandID, "command-id", "", "Idempotency key (random when empty)")
	f.StringVar(&req.CorrelationID, "correlation-id", "", "Correlation id attached to the emitted event")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	_ = cmd.MarkFlagRequired("currency")
	cmd.MarkFlagsOneRequired("amount", "amount-minor")
	cmd.MarkFlagsMutuallyExclusive("amount", "amount-minor")

	return cmd
}

func (c *cli) accountCmd() *cobra.Command {
	accountCmd := &cobra.Command{
		Use:   "account",
		Short: "Account operations",
	}

	var open dto.OpenAccountRequest
	openCmd := &cobra.Command{
		Use:   "open [id]",
		Short: "Open an account",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				open.ID = args[0]
			}

			var resp dto.AccountResponse
			if _, err := c.client().do(cmd.Context(), http.MethodPost, "/api/v1/accounts", nil, &open, &resp); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}
	openCmd.Flags().StringVar(&open.Currency, "currency", "", "ISO 4217 currency code")
	openCmd.Flags().BoolVar(&open.AllowNegative, "allow-negative", false, "Allow the balance to go below zero")
	_ = openCmd.MarkFlagRequired("currency")

	getCmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Show an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp dto.AccountResponse
			if _, err := c.client().do(cmd.Context(), http.MethodGet, "/api/v1/accounts/"+url.PathEscape(args[0]), nil, nil, &resp); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}

	balanceCmd := &cobra.Command{
		Use:   "balance <id>",
		Short: "Show the current balance of an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp dto.BalanceResponse
			if _, err := c.client().do(cmd.Context(), http.MethodGet, "/api/v1/accounts/"+url.PathEscape(args[0])+"/balance", nil, nil, &resp); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status <id> <OPEN|FROZEN|CLOSED>",
		Short: "Change the status of an account",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp dto.AccountResponse
			body := dto.SetAccountStatusRequest{Status: args[1]}
			if _, err := c.client().do(cmd.Context(), http.MethodPatch, "/api/v1/accounts/"+url.PathEscape(args[0])+"/status", nil, &body, &resp); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}

	var (
		after int64
		limit int
	)
	entriesCmd := &cobra.Command{
		Use:   "entries <id>",
		Short: "List ledger entries of an account in sequence order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			q.Set("after_sequence", strconv.FormatInt(after, 10))
			q.Set("limit", strconv.Itoa(limit))

			var resp dto.ListEntriesResponse
			path := "/api/v1/accounts/" + url.PathEscape(args[0]) + "/entries?" + q.Encode()
			if _, err := c.client().do(cmd.Context(), http.MethodGet, path, nil, nil, &resp); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}
	entriesCmd.Flags().Int64Var(&after, "after", 0, "Only entries with a greater sequence")
	entriesCmd.Flags().IntVar(&limit, "limit", 50, "Page size")

	accountCmd.AddCommand(openCmd, getCmd, balanceCmd, statusCmd, entriesCmd)
	return accountCmd
}

func (c *cli) ledgerCmd() *cobra.Command {
	ledgerCmd := &cobra.Command{
		Use:   "ledger",
		Short: "Ledger operations",
	}

	var account, transfer string
	verifyCmd := &cobra.Command{
		Use:   "verify",
		Short: "Check ledger consistency",
		Long: `Check the whole ledger, or a single account or transfer.
Exits non-zero when problems are found.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/api/v1/ledger/verify"
			switch {
			case account != "":
				path = "/api/v1/accounts/" + url.PathEscape(account) + "/verify"
			case transfer != "":
				path = "/api/v1/transfers/" + url.PathEscape(transfer) + "/verify"
			}

			var report struct {
				Consistent bool `json:"consistent"`
			}
			var raw json.RawMessage
			if _, err := c.client().do(cmd.Context(), http.MethodGet, path, nil, nil, &raw); err != nil {
				return err
			}
			if err := json.Unmarshal(raw, &report); err != nil {
				return fmt.Errorf("decode report: %w", err)
			}

			if err := printJSON(cmd.OutOrStdout(), raw); err != nil {
				return err
			}
			if !report.Consistent {
				return errInconsistent
			}
			return nil
		},
	}
	verifyCmd.Flags().StringVar(&account, "account", "", "Verify a single account")
	verifyCmd.Flags().StringVar(&transfer, "transfer", "", "Verify a single transfer")
	verifyCmd.MarkFlagsMutuallyExclusive("account", "transfer")

	ledgerCmd.AddCommand(verifyCmd)
	return ledgerCmd
}

func migrateCmd() *cobra.Command {
	var databaseURL, path string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back database migrations",
	}
	cmd.PersistentFlags().StringVar(&databaseURL, "database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection URL")
	cmd.PersistentFlags().StringVar(&path, "path", "internal/infrastructure/postgres/migrations", "Migrations directory")

	run := func(apply func(url, path string, log zerolog.Logger) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			if databaseURL == "" {
				return errors.New("--database-url or DATABASE_URL is required")
			}
			log := logger.New(logger.Config{Output: cmd.ErrOrStderr(), Level: "info", Format: "console"})
			return apply(databaseURL, path, log)
		}
	}

	cmd.AddCommand(
		&cobra.Command{Use: "up", Short: "Apply all pending migrations", Args: cobra.NoArgs, RunE: run(postgres.RunMigrations)},
		&cobra.Command{Use: "down", Short: "Roll back all migrations", Args: cobra.NoArgs, RunE: run(postgres.RunMigrationsDown)},
	)

	return cmd
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
