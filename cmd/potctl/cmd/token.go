package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/moneypot/verifier/internal/auth"
	"github.com/moneypot/verifier/internal/rbac"
)

func newTokenCmd(g *globals) *cobra.Command {
	var (
		subject string
		role    string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a service token signed with JWT_SECRET",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !rbac.ValidRole(role) {
				return fmt.Errorf("unknown role %q", role)
			}
			if ttl <= 0 {
				ttl = g.cfg.BridgeTokenTTL
			}
			tok, err := auth.GenerateJWT(g.cfg.JWTSecret, subject, role, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "ledger-bridge", "token subject; bridge tokens must use a BRIDGE_SUBJECTS entry")
	cmd.Flags().StringVar(&role, "role", rbac.RoleLedgerBridge, "role claim ("+rbac.RoleLedgerBridge+" or "+rbac.RoleOperator+")")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "lifetime (default BRIDGE_TOKEN_TTL)")
	return cmd
}
