// Command scorectl drives a scorekeeper server from the command line.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/okian/scorekeeper/internal/client"
	"github.com/okian/scorekeeper/internal/smoke"
	"github.com/okian/scorekeeper/pkg/logger"
)

const (
	defaultURL     = "http://localhost:9080"
	defaultTimeout = 30 * time.Second
)

type rootFlags struct {
	url     string
	sender  string
	timeout time.Duration
	verbose bool
}

func main() {
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:   "scorectl",
		Short: "Command line client for a scorekeeper server",
		Long: `scorectl sends instantiate, execute and query messages to a scorekeeper
server and prints the JSON replies.

Writes are sent as the identity given by --sender.`,
		SilenceUsage: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			level := "warn"
			if flags.verbose {
				level = "debug"
			}
			return logger.SetLevelString(level)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.url, "url", envOr("SCOREKEEPER_URL", defaultURL), "Base URL of the server")
	pf.StringVar(&flags.sender, "sender", os.Getenv("SCOREKEEPER_SENDER"), "Identity sent as X-Sender")
	pf.DurationVar(&flags.timeout, "timeout", defaultTimeout, "HTTP request timeout")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "Enable verbose logging")

	root.AddCommand(
		newInstantiateCmd(flags),
		newSetScoreCmd(flags),
		newOwnerCmd(flags),
		newScoreCmd(flags),
		newScoresCmd(flags),
		newSmokeCmd(flags),
	)
	return root
}

func (f *rootFlags) client() *client.Client {
	return client.New(f.url, client.WithSender(f.sender), client.WithTimeout(f.timeout))
}

func newInstantiateCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "instantiate OWNER",
		Short: "Record OWNER as the contract owner",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := flags.client()
			if c.Sender() == "" {
				c = c.As(args[0])
			}
			ack, err := c.Instantiate(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, ack)
		},
	}
}

func newSetScoreCmd(flags *rootFlags) *cobra.Command {
	var (
		token string
		txID  string
	)
	cmd := &cobra.Command{
		Use:   "set-score ADDRESS SCORE",
		Short: "Write SCORE for ADDRESS (owner only)",
		Long: `Write SCORE for ADDRESS under --token. Without --token the unnamed entry
is written. Every call carries a transaction id (generated unless --tx-id is
given), so retrying with the same --tx-id never applies a write twice.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			score, err := strconv.ParseInt(args[1], 10, 32)
			if err != nil {
				return fmt.Errorf("score %q: %w", args[1], err)
			}
			if txID == "" {
				txID = uuid.NewString()
			}
			ack, err := flags.client().SetScore(cmd.Context(), txID, args[0], token, int32(score))
			if err != nil {
				return err
			}
			return printJSON(cmd, ack)
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "Token name of the score entry")
	cmd.Flags().StringVar(&txID, "tx-id", "", "Transaction id for replay protection")
	return cmd
}

func newOwnerCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "owner",
		Short: "Print the contract owner",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := flags.client().Owner(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd, res)
		},
	}
}

func newScoreCmd(flags *rootFlags) *cobra.Command {
	var token string
	cmd := &cobra.Command{
		Use:   "score ADDRESS",
		Short: "Print one score of ADDRESS",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := flags.client().Score(cmd.Context(), args[0], token)
			if err != nil {
				return err
			}
			return printJSON(cmd, res)
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "Token name of the score entry")
	return cmd
}

func newScoresCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "scores ADDRESS",
		Short: "Print every score of ADDRESS",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := flags.client().Scores(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, res)
		},
	}
}

func newSmokeCmd(flags *rootFlags) *cobra.Command {
	var cfg smoke.Config
	cmd := &cobra.Command{
		Use:   "smoke",
		Short: "Replay the ownership scenario against the server",
		Long: `Instantiate the server (unless it already has the expected owner), write
30 and 50 to two fresh addresses, read them back, check that a non-owner write
is refused and that a replayed transaction id is not applied twice.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			report, err := smoke.Run(cmd.Context(), flags.client(), cfg)
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]any{
				"instantiated": report.Instantiated,
				"addresses":    report.Addresses,
				"steps":        report.Steps,
				"duration":     report.Duration.String(),
			})
		},
	}
	cmd.Flags().StringVar(&cfg.Owner, "owner", smoke.DefaultOwner, "Expected contract owner")
	cmd.Flags().StringVar(&cfg.Intruder, "intruder", smoke.DefaultIntruder, "Non-owner identity")
	cmd.Flags().StringVar(&cfg.Token, "token", smoke.DefaultToken, "Token written for each address")
	cmd.Flags().StringVar(&cfg.AddressPrefix, "address-prefix", "", "Prefix for generated addresses")
	return cmd
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
