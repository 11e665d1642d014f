package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cobra"

	"github.com/moneypot/verifier/internal/http/dto"
	"github.com/moneypot/verifier/internal/keyexchange"
	"github.com/moneypot/verifier/internal/models"
	"github.com/moneypot/verifier/internal/services"
	"github.com/moneypot/verifier/internal/session"
	"github.com/moneypot/verifier/internal/wallet"
)

func newRegisterCmd(g *globals) *cobra.Command {
	var (
		potID    string
		secret   string
		legend   string
		validFor time.Duration
	)

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Seal and sign a pot's 1P secret and register it with the verifier",
		Long: "Reads the creator key from WALLET_KEY. The payload is sealed with a " +
			"one-time key from /register/options and the ciphertext is signed by the creator.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			signer, err := wallet.NewSigner(g.chain, os.Getenv("WALLET_KEY"))
			if err != nil {
				return err
			}
			l, err := models.ParseLegend(legend)
			if err != nil {
				return err
			}
			char, err := models.NormalizeSecret(secret)
			if err != nil {
				return err
			}

			client := session.NewVerifierClient(g.cfg.VerifierURL, g.chain, g.log)
			opts, err := client.RegisterOptions(cmd.Context())
			if err != nil {
				return err
			}

			now := time.Now()
			payload, err := json.Marshal(services.RegistrationPayload{
				PotID:  models.LedgerID(potID),
				Secret: char,
				Legend: l,
				RegisteredClaims: jwt.RegisteredClaims{
					Issuer:    signer.Address(),
					IssuedAt:  jwt.NewNumericDate(now),
					ExpiresAt: jwt.NewNumericDate(now.Add(validFor)),
				},
			})
			if err != nil {
				return err
			}

			sealed, err := keyexchange.Seal(opts.PublicKey, payload)
			if err != nil {
				return err
			}
			sig, pub, err := signer.Sign([]byte(sealed))
			if err != nil {
				return err
			}

			res, err := client.RegisterVerify(cmd.Context(), dto.RegisterVerifyRequest{
				KeyID:            opts.KeyID,
				EncryptedPayload: sealed,
				Signature:        sig,
				SignerPublicKey:  pub,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "registered pot %s (creator %s, success=%t)\n", potID, signer.Address(), res.Success)
			return nil
		},
	}

	cmd.Flags().StringVar(&potID, "pot-id", "", "ledger pot id")
	cmd.Flags().StringVar(&secret, "secret", "", "1P secret character")
	cmd.Flags().StringVar(&legend, "legend", "red=U,green=D,blue=L,yellow=R", "color legend")
	cmd.Flags().DurationVar(&validFor, "valid-for", time.Hour, "payload lifetime")
	_ = cmd.MarkFlagRequired("pot-id")
	_ = cmd.MarkFlagRequired("secret")
	return cmd
}
