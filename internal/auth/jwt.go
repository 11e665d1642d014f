package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const Issuer = "moneypot-verifier"

// Claims identify a service caller (the ledger bridge or an operator).
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// GenerateJWT signs a service token for subject with role.
// If expiration <= 0, 24h is used.
func GenerateJWT(secret, subject, role string, expiration time.Duration) (string, error) {
	if expiration <= 0 {
		expiration = 24 * time.Hour
	}

	now := time.Now()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(expiration)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    Issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func ParseJWT(secret string, tokenStr string) (*Claims, error) {
	claims := &Claims{}
	if err := parseHMAC(secret, tokenStr, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// OutcomeClaims attest a verification verdict. The relayer forwards the token
// with the write-back so the ledger side can check who decided.
type OutcomeClaims struct {
	AttemptID string `json:"attempt_id"`
	PotID     string `json:"pot_id"`
	Success   bool   `json:"success"`
	jwt.RegisteredClaims
}

func SignOutcome(secret, attemptID, potID string, success bool, at time.Time, lifetime time.Duration) (string, error) {
	if lifetime <= 0 {
		lifetime = 24 * time.Hour
	}
	claims := OutcomeClaims{
		AttemptID: attemptID,
		PotID:     potID,
		Success:   success,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   attemptID,
			IssuedAt:  jwt.NewNumericDate(at),
			ExpiresAt: jwt.NewNumericDate(at.Add(lifetime)),
			Issuer:    Issuer,
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseOutcome checks an outcome token. Pass jwt.WithTimeFunc to check it at
// another time than now.
func ParseOutcome(secret, tokenStr string, opts ...jwt.ParserOption) (*OutcomeClaims, error) {
	claims := &OutcomeClaims{}
	if err := parseHMAC(secret, tokenStr, claims, opts...); err != nil {
		return nil, err
	}
	return claims, nil
}

func parseHMAC(secret, tokenStr string, claims jwt.Claims, opts ...jwt.ParserOption) error {
	opts = append([]jwt.ParserOption{jwt.WithIssuer(Issuer), jwt.WithExpirationRequired()}, opts...)
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	}, opts...)
	if err != nil {
		return err
	}
	if !token.Valid {
		return fmt.Errorf("invalid token")
	}
	return nil
}
