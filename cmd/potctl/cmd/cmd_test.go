package cmd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/moneypot/verifier/internal/auth"
	"github.com/moneypot/verifier/internal/ledger"
	"github.com/moneypot/verifier/internal/rbac"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestTokenCmd(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	out, err := run(t, "token", "--subject", "ledger-bridge", "--ttl", "1h")
	require.NoError(t, err)

	claims, err := auth.ParseJWT("test-secret", strings.TrimSpace(out))
	require.NoError(t, err)
	require.Equal(t, "ledger-bridge", claims.Subject)
	require.Equal(t, rbac.RoleLedgerBridge, claims.Role)

	_, err = run(t, "token", "--role", "admin")
	require.Error(t, err)
}

func TestLedgerEmitDryRun(t *testing.T) {
	out, err := run(t, "ledger", "emit", "attempted", "--id", "7", "--pot-id", "42", "--difficulty", "4", "--chain", "evm", "--dry-run")
	require.NoError(t, err)

	ev, err := ledger.Decode([]byte(strings.TrimSpace(out)))
	require.NoError(t, err)
	require.Equal(t, ledger.KindAttempted, ev.Kind)
	require.Equal(t, "42", string(ev.PotID))
	require.Equal(t, 4, ev.Difficulty)
	require.Equal(t, "evm", ev.Chain)

	_, err = run(t, "ledger", "emit", "attempted", "--id", "7", "--dry-run")
	require.ErrorIs(t, err, ledger.ErrMalformedEvent)

	_, err = run(t, "ledger", "emit", "create_pot", "--id", "7", "--dry-run")
	require.ErrorIs(t, err, ledger.ErrMalformedEvent)
}
