package wallet

import (
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/moneypot/verifier/internal/models"
)

func signPersonal(t *testing.T, msg []byte) (addr string, sigHex string) {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	sig, err := crypto.Sign(accounts.TextHash(msg), key)
	if err != nil {
		t.Fatal(err)
	}
	sig[crypto.RecoveryIDOffset] += 27
	return crypto.PubkeyToAddress(key.PublicKey).Hex(), "0x" + hex.EncodeToString(sig)
}

func TestVerifyPersonalSign_Valid(t *testing.T) {
	msg := []byte("deadbeef")
	addr, sig := signPersonal(t, msg)

	if err := VerifyPersonalSign(addr, msg, sig); err != nil {
		t.Fatalf("expected valid signature, got error: %v", err)
	}
	// address comparison is case-insensitive
	if err := VerifyPersonalSign(strings.ToLower(addr), msg, sig); err != nil {
		t.Fatalf("expected lower-case address to verify, got: %v", err)
	}
}

func TestVerifyPersonalSign_WrongSigner(t *testing.T) {
	msg := []byte("deadbeef")
	_, sig := signPersonal(t, msg)
	other, _ := signPersonal(t, msg)

	err := VerifyPersonalSign(other, msg, sig)
	if !errors.Is(err, ErrAddressMismatch) {
		t.Fatalf("expected ErrAddressMismatch, got: %v", err)
	}
}

func TestVerifyPersonalSign_TamperedMessage(t *testing.T) {
	addr, sig := signPersonal(t, []byte("original"))
	if err := VerifyPersonalSign(addr, []byte("tampered"), sig); err == nil {
		t.Fatal("expected error for tampered message")
	}
}

func TestVerifyPersonalSign_Malformed(t *testing.T) {
	addr, _ := signPersonal(t, []byte("x"))
	tests := []string{"", "zz", "0x" + strings.Repeat("00", 64)}
	for _, sig := range tests {
		if err := VerifyPersonalSign(addr, []byte("x"), sig); err == nil {
			t.Errorf("expected error for signature %q", sig)
		}
	}
	if err := VerifyPersonalSign("not-an-address", []byte("x"), "0x00"); err == nil {
		t.Error("expected error for invalid address")
	}
}

func TestVerifyAptos(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatal(err)
	}
	msg := []byte("payload-hex")
	sig := hex.EncodeToString(ed25519.Sign(priv, msg))
	addr := AptosAddressFromPublicKey(pub)

	if err := VerifyAptos(addr, hex.EncodeToString(pub), msg, sig); err != nil {
		t.Fatalf("expected valid signature, got error: %v", err)
	}

	otherPub, _, _ := ed25519.GenerateKey(nil)
	err = VerifyAptos(AptosAddressFromPublicKey(otherPub), hex.EncodeToString(pub), msg, sig)
	if !errors.Is(err, ErrAddressMismatch) {
		t.Fatalf("expected ErrAddressMismatch, got: %v", err)
	}

	err = VerifyAptos(addr, hex.EncodeToString(pub), msg, hex.EncodeToString(make([]byte, 64)))
	if !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got: %v", err)
	}
}

func TestVerifyDispatch(t *testing.T) {
	msg := []byte("m")
	addr, sig := signPersonal(t, msg)
	if err := Verify(models.ChainEVM, addr, "", msg, sig); err != nil {
		t.Fatalf("evm dispatch: %v", err)
	}
	if err := Verify("solana", addr, "", msg, sig); !errors.Is(err, ErrUnsupportedChain) {
		t.Fatalf("expected ErrUnsupportedChain, got: %v", err)
	}
}

func TestNormalizeAptosAddress(t *testing.T) {
	tests := []struct {
		input string
		want  string
		valid bool
	}{
		{"0x1", "0x" + strings.Repeat("0", 63) + "1", true},
		{"0xABCDEF", "0x" + strings.Repeat("0", 58) + "abcdef", true},
		{strings.Repeat("a", 64), "0x" + strings.Repeat("a", 64), true},
		{"0x" + strings.Repeat("a", 65), "", false},
		{"0xzz", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := NormalizeAptosAddress(tt.input)
			if tt.valid {
				if err != nil {
					t.Fatalf("expected valid, got error: %v", err)
				}
				if got != tt.want {
					t.Errorf("got %s, want %s", got, tt.want)
				}
			} else if err == nil {
				t.Fatal("expected error for invalid address")
			}
		})
	}
}
