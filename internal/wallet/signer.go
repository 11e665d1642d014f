package wallet

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/moneypot/verifier/internal/models"
)

// Signer produces signatures Verify accepts. It backs the CLI; the
// service itself never holds wallet keys.
type Signer interface {
	Chain() string
	Address() string
	// Sign returns the hex signature and, for aptos, the hex public key.
	Sign(msg []byte) (signature, publicKey string, err error)
}

// NewSigner loads a hex private key: a secp256k1 key for evm, a 32-byte
// seed or 64-byte ed25519 key for aptos.
func NewSigner(chain, keyHex string) (Signer, error) {
	keyHex = strings.TrimPrefix(strings.TrimSpace(keyHex), "0x")
	switch chain {
	case models.ChainEVM:
		key, err := crypto.HexToECDSA(keyHex)
		if err != nil {
			return nil, fmt.Errorf("evm key: %w", err)
		}
		return &evmSigner{key: key}, nil
	case models.ChainAptos:
		raw, err := hex.DecodeString(keyHex)
		if err != nil {
			return nil, fmt.Errorf("aptos key: %w", err)
		}
		switch len(raw) {
		case ed25519.SeedSize:
			return &aptosSigner{key: ed25519.NewKeyFromSeed(raw)}, nil
		case ed25519.PrivateKeySize:
			return &aptosSigner{key: ed25519.PrivateKey(raw)}, nil
		}
		return nil, fmt.Errorf("aptos key: want %d or %d bytes, got %d", ed25519.SeedSize, ed25519.PrivateKeySize, len(raw))
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedChain, chain)
}

type evmSigner struct {
	key *ecdsa.PrivateKey
}

func (s *evmSigner) Chain() string { return models.ChainEVM }

func (s *evmSigner) Address() string {
	return crypto.PubkeyToAddress(s.key.PublicKey).Hex()
}

func (s *evmSigner) Sign(msg []byte) (string, string, error) {
	sig, err := crypto.Sign(accounts.TextHash(msg), s.key)
	if err != nil {
		return "", "", err
	}
	sig[crypto.RecoveryIDOffset] += 27
	return "0x" + hex.EncodeToString(sig), "", nil
}

type aptosSigner struct {
	key ed25519.PrivateKey
}

func (s *aptosSigner) Chain() string { return models.ChainAptos }

func (s *aptosSigner) Address() string {
	return AptosAddressFromPublicKey(s.key.Public().(ed25519.PublicKey))
}

func (s *aptosSigner) Sign(msg []byte) (string, string, error) {
	pub := s.key.Public().(ed25519.PublicKey)
	return hex.EncodeToString(ed25519.Sign(s.key, msg)), hex.EncodeToString(pub), nil
}
