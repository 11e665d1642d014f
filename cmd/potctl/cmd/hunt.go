package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/moneypot/verifier/internal/ledger"
	"github.com/moneypot/verifier/internal/models"
	"github.com/moneypot/verifier/internal/session"
	"github.com/moneypot/verifier/internal/wallet"
)

// prepaid stands in for the relayer when the entry fee was paid elsewhere.
type prepaid struct {
	ticket ledger.AttemptTicket
	next   session.Ledger
}

func (p *prepaid) AttemptPot(context.Context, string, string) (*ledger.AttemptTicket, error) {
	t := p.ticket
	return &t, nil
}

func (p *prepaid) RecordAttemptOutcome(ctx context.Context, o ledger.Outcome) error {
	if p.next == nil {
		return nil
	}
	return p.next.RecordAttemptOutcome(ctx, o)
}

func newHuntCmd(g *globals) *cobra.Command {
	var (
		potID      string
		attemptID  string
		difficulty int
		hunter     string
		strategy   string
		secret     string
		legend     string
	)

	cmd := &cobra.Command{
		Use:   "hunt",
		Short: "Play one attempt end to end: pay, fetch challenges, answer, verify",
		Long: "Pays through RELAYER_URL unless --attempt-id names an attempt that is already paid. " +
			"With WALLET_KEY set the challenge request is signed by the hunter.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var solve session.Strategy
			switch strategy {
			case "known":
				l, err := models.ParseLegend(legend)
				if err != nil {
					return err
				}
				char, err := models.NormalizeSecret(secret)
				if err != nil {
					return err
				}
				solve = session.KnownSecret(char, l)
			case "guess":
				solve = session.Guess()
			default:
				return fmt.Errorf("unknown strategy %q (known or guess)", strategy)
			}

			verifier := session.NewVerifierClient(g.cfg.VerifierURL, g.chain, g.log)
			if !verifier.IsAvailable(cmd.Context()) {
				return fmt.Errorf("verifier at %s is not answering /health", g.cfg.VerifierURL)
			}
			if key := os.Getenv("WALLET_KEY"); key != "" {
				signer, err := wallet.NewSigner(g.chain, key)
				if err != nil {
					return err
				}
				if hunter == "" {
					hunter = signer.Address()
				}
				verifier.Sign = signer.Sign
			}

			var relayer session.Ledger
			if g.cfg.RelayerURL != "" {
				relayer = ledger.NewRelayerClient(g.cfg.RelayerURL, g.cfg.BridgeToken, g.log)
			}
			l := relayer
			if attemptID != "" {
				l = &prepaid{
					ticket: ledger.AttemptTicket{AttemptID: attemptID, PotID: potID, Difficulty: difficulty},
					next:   relayer,
				}
			}
			if l == nil {
				return errors.New("set RELAYER_URL to pay the entry fee, or pass --attempt-id")
			}

			out := cmd.OutOrStdout()
			s := session.New(potID, hunter, l, verifier, g.log)
			s.OnTransition = func(from, to session.State) {
				fmt.Fprintf(out, "  %s -> %s\n", from, to)
			}

			if err := s.Start(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(out, "attempt %s, %d rounds\n", s.AttemptID(), s.Difficulty())

			for {
				i, round, err := s.Round()
				if err != nil {
					return err
				}
				move := solve(round)
				fmt.Fprintf(out, "round %d: %s\n", i+1, move.Name())

				state, err := s.SubmitMove(cmd.Context(), string(move))
				if err != nil {
					if state == session.StateWon || state == session.StateLost {
						fmt.Fprintf(out, "result: %s\n", state)
					}
					return err
				}
				if state != session.StatePlaying {
					fmt.Fprintf(out, "result: %s\n", state)
					return nil
				}
			}
		},
	}

	cmd.Flags().StringVar(&potID, "pot-id", "", "ledger pot id")
	cmd.Flags().StringVar(&attemptID, "attempt-id", "", "already paid attempt id")
	cmd.Flags().IntVar(&difficulty, "difficulty", 0, "rounds of a prepaid attempt (0: take what the verifier issues)")
	cmd.Flags().StringVar(&hunter, "hunter", "", "hunter address (default: WALLET_KEY address)")
	cmd.Flags().StringVar(&strategy, "strategy", "known", "known or guess")
	cmd.Flags().StringVar(&secret, "secret", "", "secret character, for --strategy known")
	cmd.Flags().StringVar(&legend, "legend", "red=U,green=D,blue=L,yellow=R", "legend, for --strategy known")
	_ = cmd.MarkFlagRequired("pot-id")
	return cmd
}
