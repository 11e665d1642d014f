package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestGenerateAndParseJWT(t *testing.T) {
	tok, err := GenerateJWT("s3cret", "ledger-bridge", "ledger-bridge", time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	claims, err := ParseJWT("s3cret", tok)
	if err != nil {
		t.Fatal(err)
	}
	if claims.Subject != "ledger-bridge" || claims.Role != "ledger-bridge" {
		t.Fatalf("claims = %+v", claims)
	}

	if _, err := ParseJWT("other", tok); err == nil {
		t.Fatal("token verified with the wrong secret")
	}
}

func TestParseJWTRejectsExpiredAndForeign(t *testing.T) {
	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role: "operator",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	})
	s, _ := expired.SignedString([]byte("k"))
	if _, err := ParseJWT("k", s); err == nil {
		t.Error("expired token accepted")
	}

	foreign := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role: "operator",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "someone-else",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	s, _ = foreign.SignedString([]byte("k"))
	if _, err := ParseJWT("k", s); err == nil {
		t.Error("token from another issuer accepted")
	}

	none := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	s, _ = none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if _, err := ParseJWT("k", s); err == nil {
		t.Error("alg=none token accepted")
	}
}

func TestOutcomeRoundTrip(t *testing.T) {
	at := time.Now()
	tok, err := SignOutcome("k", "99", "42", true, at, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	claims, err := ParseOutcome("k", tok)
	if err != nil {
		t.Fatal(err)
	}
	if claims.AttemptID != "99" || claims.PotID != "42" || !claims.Success {
		t.Fatalf("claims = %+v", claims)
	}
}

func TestOutcomeAtFixedTime(t *testing.T) {
	at := time.Unix(1_750_000_000, 0)
	tok, err := SignOutcome("k", "99", "42", false, at, time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := ParseOutcome("k", tok); err == nil {
		t.Fatal("token from the past accepted at wall clock time")
	}
	if _, err := ParseOutcome("k", tok, jwt.WithTimeFunc(func() time.Time { return at.Add(time.Minute) })); err != nil {
		t.Fatalf("within lifetime: %v", err)
	}
	if _, err := ParseOutcome("k", tok, jwt.WithTimeFunc(func() time.Time { return at.Add(2 * time.Hour) })); err == nil {
		t.Fatal("expired token accepted")
	}
}
