// Package wallet verifies wallet signatures that bind a request to a chain
// principal (the creator or hunter address).
package wallet

import (
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/sha3"

	"github.com/moneypot/verifier/internal/models"
)

// aptosEd25519Scheme is the single-signer authentication key scheme byte.
const aptosEd25519Scheme = 0x00

var (
	ErrInvalidSignature = errors.New("invalid signature")
	ErrAddressMismatch  = errors.New("signer does not match principal")
	ErrUnsupportedChain = errors.New("unsupported chain")
)

// Verify checks that sigHex is principal's signature over message on chain.
// signerPubKeyHex is required for aptos, where the address cannot be recovered.
func Verify(chain, principal, signerPubKeyHex string, message []byte, sigHex string) error {
	switch chain {
	case models.ChainEVM:
		return VerifyPersonalSign(principal, message, sigHex)
	case models.ChainAptos:
		return VerifyAptos(principal, signerPubKeyHex, message, sigHex)
	}
	return fmt.Errorf("%w: %q", ErrUnsupportedChain, chain)
}

// VerifyPersonalSign checks an EIP-191 personal_sign signature (65 bytes, r||s||v).
func VerifyPersonalSign(address string, message []byte, sigHex string) error {
	if !common.IsHexAddress(address) {
		return fmt.Errorf("invalid EVM address %q", address)
	}

	sig, err := hex.DecodeString(strings.TrimPrefix(sigHex, "0x"))
	if err != nil {
		return fmt.Errorf("%w: bad hex: %v", ErrInvalidSignature, err)
	}
	if len(sig) != crypto.SignatureLength {
		return fmt.Errorf("%w: size %d", ErrInvalidSignature, len(sig))
	}
	// wallets emit v as 27/28
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}

	pub, err := crypto.SigToPub(accounts.TextHash(message), sig)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	recovered := crypto.PubkeyToAddress(*pub)
	if recovered != common.HexToAddress(address) {
		return fmt.Errorf("%w: recovered %s, want %s", ErrAddressMismatch, recovered.Hex(), address)
	}
	return nil
}

// VerifyAptos checks an Ed25519 signature and that the public key's
// authentication key equals the address.
func VerifyAptos(address, pubKeyHex string, message []byte, sigHex string) error {
	addr, err := NormalizeAptosAddress(address)
	if err != nil {
		return err
	}

	pubKey, err := hex.DecodeString(strings.TrimPrefix(pubKeyHex, "0x"))
	if err != nil {
		return fmt.Errorf("invalid public key hex: %w", err)
	}
	if len(pubKey) != ed25519.PublicKeySize {
		return fmt.Errorf("invalid public key size: %d", len(pubKey))
	}

	sig, err := hex.DecodeString(strings.TrimPrefix(sigHex, "0x"))
	if err != nil {
		return fmt.Errorf("%w: bad hex: %v", ErrInvalidSignature, err)
	}
	if len(sig) != ed25519.SignatureSize {
		return fmt.Errorf("%w: size %d", ErrInvalidSignature, len(sig))
	}

	if !ed25519.Verify(pubKey, message, sig) {
		return ErrInvalidSignature
	}

	if derived := AptosAddressFromPublicKey(pubKey); derived != addr {
		return fmt.Errorf("%w: key derives %s, want %s", ErrAddressMismatch, derived, addr)
	}
	return nil
}

// AptosAddressFromPublicKey derives the account address sha3-256(pubkey || scheme).
func AptosAddressFromPublicKey(pubKey ed25519.PublicKey) string {
	buf := make([]byte, 0, len(pubKey)+1)
	buf = append(buf, pubKey...)
	buf = append(buf, aptosEd25519Scheme)
	sum := sha3.Sum256(buf)
	return "0x" + hex.EncodeToString(sum[:])
}

// NormalizeAptosAddress lower-cases and left-pads a hex address to 32 bytes.
func NormalizeAptosAddress(raw string) (string, error) {
	h := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(raw), "0x"))
	if h == "" || len(h) > 64 {
		return "", fmt.Errorf("invalid aptos address format: %s", raw)
	}
	if _, err := hex.DecodeString(strings.Repeat("0", len(h)%2) + h); err != nil {
		return "", fmt.Errorf("invalid aptos address hex: %w", err)
	}
	return "0x" + strings.Repeat("0", 64-len(h)) + h, nil
}

// NormalizePrincipal returns the canonical form of an address on chain,
// so principals compare with ==.
func NormalizePrincipal(chain, raw string) (string, error) {
	switch chain {
	case models.ChainEVM:
		if !common.IsHexAddress(raw) {
			return "", fmt.Errorf("invalid EVM address %q", raw)
		}
		return common.HexToAddress(raw).Hex(), nil
	case models.ChainAptos:
		return NormalizeAptosAddress(raw)
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedChain, chain)
}

// AuthenticateMessage is what a hunter signs to request challenges.
func AuthenticateMessage(attemptID string) []byte {
	return []byte("moneypot:authenticate:" + attemptID)
}
