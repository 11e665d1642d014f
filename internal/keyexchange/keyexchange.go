// Package keyexchange issues short-lived RSA key pairs that pot creators use
// to seal their registration payload, and opens the sealed envelopes.
//
// An envelope is hex encoded and takes one of two forms:
//
//	direct: RSA-OAEP-SHA256(payload)                        (one RSA block)
//	hybrid: RSA-OAEP-SHA256(aesKey) || nonce || AES-256-GCM(payload)
//
// A key can open exactly one envelope. It is removed from the store on first
// use, whether or not decryption succeeds.
package keyexchange

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/moneypot/verifier/internal/store"
)

const (
	DefaultKeyBits = 2048
	DefaultTTL     = 5 * time.Minute

	aesKeySize = 32
	nonceSize  = 12
)

var (
	ErrUnknownKey        = errors.New("keyexchange: unknown or expired key")
	ErrMalformedEnvelope = errors.New("keyexchange: malformed envelope")
	ErrDecrypt           = errors.New("keyexchange: decryption failed")
	ErrBadPublicKey      = errors.New("keyexchange: bad public key")
)

// Key is what the caller gets back from Issue. Only public material leaves the service.
type Key struct {
	KeyID     string `json:"key_id"`
	PublicKey string `json:"public_key"`
}

type Service struct {
	keys  store.Interface
	ttl   time.Duration
	bits  int
	log   *zap.Logger
	newID func() string
}

func NewService(keys store.Interface, ttl time.Duration, log *zap.Logger) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{
		keys:  keys,
		ttl:   ttl,
		bits:  DefaultKeyBits,
		log:   log,
		newID: func() string { return uuid.New().String() },
	}
}

func privateKeyKey(keyID string) string { return "regkey:" + keyID }

func publicIndexKey(fingerprint string) string { return "regkey:pub:" + fingerprint }

// Issue generates a fresh key pair and parks the private half in the store for the TTL.
func (s *Service) Issue(ctx context.Context) (*Key, error) {
	priv, err := rsa.GenerateKey(rand.Reader, s.bits)
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}

	privDER, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return nil, fmt.Errorf("marshal private key: %w", err)
	}
	pubDER, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("marshal public key: %w", err)
	}

	keyID := s.newID()
	privPEM := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privDER})

	if err := s.keys.Set(ctx, privateKeyKey(keyID), privPEM, s.ttl); err != nil {
		return nil, fmt.Errorf("store private key: %w", err)
	}
	if err := s.keys.Set(ctx, publicIndexKey(fingerprint(pubDER)), []byte(keyID), s.ttl); err != nil {
		return nil, fmt.Errorf("store key index: %w", err)
	}

	s.log.Debug("registration key issued", zap.String("key_id", keyID))

	return &Key{
		KeyID:     keyID,
		PublicKey: string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})),
	}, nil
}

// ResolveKeyID maps a public key the caller echoed back to the key id it was issued under.
func (s *Service) ResolveKeyID(ctx context.Context, publicKey string) (string, error) {
	der, err := parsePublicDER(publicKey)
	if err != nil {
		return "", err
	}
	id, err := s.keys.Get(ctx, publicIndexKey(fingerprint(der)))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrUnknownKey
		}
		return "", fmt.Errorf("resolve key: %w", err)
	}
	return string(id), nil
}

// Open consumes the key and decrypts the envelope.
func (s *Service) Open(ctx context.Context, keyID, envelopeHex string) ([]byte, error) {
	raw, err := s.keys.Take(ctx, privateKeyKey(keyID))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUnknownKey
		}
		return nil, fmt.Errorf("load key: %w", err)
	}

	priv, err := parsePrivatePEM(raw)
	if err != nil {
		return nil, err
	}

	if pubDER, err := x509.MarshalPKIXPublicKey(&priv.PublicKey); err == nil {
		if err := s.keys.Delete(ctx, publicIndexKey(fingerprint(pubDER))); err != nil && !errors.Is(err, store.ErrNotFound) {
			s.log.Warn("failed to drop key index", zap.String("key_id", keyID), zap.Error(err))
		}
	}

	envelope, err := decodeHex(envelopeHex)
	if err != nil {
		return nil, err
	}
	return decrypt(priv, envelope)
}

// Seal encrypts plaintext for the holder of publicKey. Payloads that fit in a
// single OAEP block are sealed directly; larger ones use the hybrid form.
func Seal(publicKey string, plaintext []byte) (string, error) {
	der, err := parsePublicDER(publicKey)
	if err != nil {
		return "", err
	}
	parsed, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadPublicKey, err)
	}
	pub, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return "", fmt.Errorf("%w: not an RSA key", ErrBadPublicKey)
	}

	if len(plaintext) <= MaxDirectPayload(pub) {
		ct, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, pub, plaintext, nil)
		if err != nil {
			return "", err
		}
		return hex.EncodeToString(ct), nil
	}

	aesKey := make([]byte, aesKeySize)
	if _, err := rand.Read(aesKey); err != nil {
		return "", err
	}
	wrapped, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, pub, aesKey, nil)
	if err != nil {
		return "", err
	}
	gcm, err := newGCM(aesKey)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}

	out := make([]byte, 0, len(wrapped)+nonceSize+len(plaintext)+gcm.Overhead())
	out = append(out, wrapped...)
	out = append(out, nonce...)
	out = gcm.Seal(out, nonce, plaintext, nil)
	return hex.EncodeToString(out), nil
}

// MaxDirectPayload is the largest plaintext OAEP-SHA256 can carry for pub.
func MaxDirectPayload(pub *rsa.PublicKey) int {
	return pub.Size() - 2*sha256.Size - 2
}

func decrypt(priv *rsa.PrivateKey, envelope []byte) ([]byte, error) {
	k := priv.Size()

	switch {
	case len(envelope) == k:
		pt, err := rsa.DecryptOAEP(sha256.New(), nil, priv, envelope, nil)
		if err != nil {
			return nil, ErrDecrypt
		}
		return pt, nil

	case len(envelope) > k+nonceSize:
		aesKey, err := rsa.DecryptOAEP(sha256.New(), nil, priv, envelope[:k], nil)
		if err != nil || len(aesKey) != aesKeySize {
			return nil, ErrDecrypt
		}
		gcm, err := newGCM(aesKey)
		if err != nil {
			return nil, ErrDecrypt
		}
		nonce := envelope[k : k+nonceSize]
		pt, err := gcm.Open(nil, nonce, envelope[k+nonceSize:], nil)
		if err != nil {
			return nil, ErrDecrypt
		}
		return pt, nil

	default:
		return nil, ErrMalformedEnvelope
	}
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func decodeHex(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	if s == "" {
		return nil, ErrMalformedEnvelope
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, ErrMalformedEnvelope
	}
	return b, nil
}

func parsePrivatePEM(raw []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, errors.New("keyexchange: stored key is not PEM")
	}
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse stored key: %w", err)
	}
	priv, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.New("keyexchange: stored key is not RSA")
	}
	return priv, nil
}

// parsePublicDER accepts a PEM block or the bare base64 SPKI body browsers export.
func parsePublicDER(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, ErrBadPublicKey
	}
	if block, _ := pem.Decode([]byte(s)); block != nil {
		return block.Bytes, nil
	}
	der, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadPublicKey, err)
	}
	return der, nil
}

func fingerprint(der []byte) string {
	sum := sha256.Sum256(der)
	return hex.EncodeToString(sum[:])
}
