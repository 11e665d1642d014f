// Package cmd holds the potctl command tree.
package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/moneypot/verifier/internal/config"
	"github.com/moneypot/verifier/internal/models"
)

type globals struct {
	cfg     *config.Config
	log     *zap.Logger
	verbose bool
	chain   string
}

// NewRootCmd creates the potctl root command. It is called once in main.
func NewRootCmd() *cobra.Command {
	g := &globals{cfg: config.Load()}

	rootCmd := &cobra.Command{
		Use:           "potctl",
		Short:         "Money Pot operator and hunter CLI",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			if g.verbose {
				g.log, err = zap.NewDevelopment()
			} else {
				g.log = zap.NewNop()
			}
			return err
		},
	}

	rootCmd.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "log HTTP calls and state changes")
	rootCmd.PersistentFlags().StringVar(&g.chain, "chain", g.cfg.DefaultChain, "chain of the wallet key ("+models.ChainAptos+" or "+models.ChainEVM+")")
	rootCmd.PersistentFlags().StringVar(&g.cfg.VerifierURL, "verifier", g.cfg.VerifierURL, "verifier base URL")

	rootCmd.AddCommand(
		newTokenCmd(g),
		newRegisterCmd(g),
		newHuntCmd(g),
		newLedgerCmd(g),
	)
	return rootCmd
}
