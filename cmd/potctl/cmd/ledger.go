package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/moneypot/verifier/internal/db"
	"github.com/moneypot/verifier/internal/events"
	"github.com/moneypot/verifier/internal/ledger"
	"github.com/moneypot/verifier/internal/models"
)

func newLedgerCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Ledger stream tools",
	}
	cmd.AddCommand(newLedgerEmitCmd(g))
	return cmd
}

func newLedgerEmitCmd(g *globals) *cobra.Command {
	var (
		ev        ledger.Event
		id        string
		potID     string
		expiresIn time.Duration
		dryRun    bool
	)

	cmd := &cobra.Command{
		Use:   "emit created|attempted|expired",
		Short: "Publish a ledger event on " + events.StreamLedger + ", as the chain watcher would",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ev.Kind = ledger.Kind(args[0])
			ev.ID = models.LedgerID(id)
			ev.PotID = models.LedgerID(potID)
			if ev.Chain == "" {
				ev.Chain = g.chain
			}
			if expiresIn > 0 {
				ev.ExpiresAt = time.Now().Add(expiresIn).Unix()
			}
			if err := ev.Validate(); err != nil {
				return err
			}

			data, err := json.Marshal(ev)
			if err != nil {
				return err
			}
			if dryRun {
				fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return nil
			}

			rdb, err := db.NewRedisClient(cmd.Context(), g.cfg.RedisURL, g.log)
			if err != nil {
				return err
			}
			defer rdb.Close()

			if err := events.NewRedisPublisher(rdb, g.log).PublishRaw(cmd.Context(), events.StreamLedger, data); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "published %s\n", data)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&id, "id", "", "pot id (created, expired) or attempt id (attempted)")
	f.StringVar(&potID, "pot-id", "", "pot of an attempted event")
	f.StringVar(&ev.Hunter, "hunter", "", "hunter address")
	f.IntVar(&ev.Difficulty, "difficulty", 0, "attempt difficulty")
	f.StringVar(&ev.Creator, "creator", "", "pot creator address")
	f.StringVar(&ev.OneFAAddress, "one-fa", "", "pot 1FA address")
	f.DurationVar(&expiresIn, "expires-in", 0, "pot lifetime from now")
	f.BoolVar(&dryRun, "dry-run", false, "print the event instead of publishing it")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}
