// Package storetest holds the conformance checks every store backend must pass.
package storetest

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/moneypot/verifier/internal/store"
)

func Common(t *testing.T, s store.Interface) {
	t.Helper()
	ctx := context.Background()

	for _, cs := range []struct {
		name string
		run  func(t *testing.T)
	}{
		{
			name: "basic get set delete",
			run: func(t *testing.T) {
				if _, err := s.Get(ctx, "t:basic"); !errors.Is(err, store.ErrNotFound) {
					t.Fatalf("wanted ErrNotFound, got: %v", err)
				}
				if err := s.Set(ctx, "t:basic", []byte("v"), time.Minute); err != nil {
					t.Fatal(err)
				}
				got, err := s.Get(ctx, "t:basic")
				if err != nil {
					t.Fatal(err)
				}
				if !bytes.Equal(got, []byte("v")) {
					t.Fatalf("got %q, want v", got)
				}
				if err := s.Delete(ctx, "t:basic"); err != nil {
					t.Fatal(err)
				}
				if err := s.Delete(ctx, "t:basic"); !errors.Is(err, store.ErrNotFound) {
					t.Fatalf("wanted ErrNotFound on second delete, got: %v", err)
				}
			},
		},
		{
			name: "expiry",
			run: func(t *testing.T) {
				if err := s.Set(ctx, "t:expiry", []byte("v"), 1200*time.Millisecond); err != nil {
					t.Fatal(err)
				}
				time.Sleep(2 * time.Second)
				if _, err := s.Get(ctx, "t:expiry"); !errors.Is(err, store.ErrNotFound) {
					t.Fatalf("wanted ErrNotFound after expiry, got: %v", err)
				}
			},
		},
		{
			name: "setnx",
			run: func(t *testing.T) {
				ok, err := s.SetNX(ctx, "t:nx", []byte("first"), time.Minute)
				if err != nil || !ok {
					t.Fatalf("first SetNX = %v, %v", ok, err)
				}
				ok, err = s.SetNX(ctx, "t:nx", []byte("second"), time.Minute)
				if err != nil || ok {
					t.Fatalf("second SetNX = %v, %v", ok, err)
				}
				got, _ := s.Get(ctx, "t:nx")
				if string(got) != "first" {
					t.Fatalf("got %q, want first", got)
				}
				_ = s.Delete(ctx, "t:nx")
			},
		},
		{
			name: "take is single use",
			run: func(t *testing.T) {
				if err := s.Set(ctx, "t:take", []byte("once"), time.Minute); err != nil {
					t.Fatal(err)
				}
				got, err := s.Take(ctx, "t:take")
				if err != nil || string(got) != "once" {
					t.Fatalf("Take = %q, %v", got, err)
				}
				if _, err := s.Take(ctx, "t:take"); !errors.Is(err, store.ErrNotFound) {
					t.Fatalf("wanted ErrNotFound on second take, got: %v", err)
				}
			},
		},
		{
			name: "json wrapper",
			run: func(t *testing.T) {
				type val struct{ N int }
				j := &store.JSON[val]{Underlying: s, Prefix: "t:json:"}
				if err := j.Set(ctx, "a", &val{N: 7}, time.Minute); err != nil {
					t.Fatal(err)
				}
				got, err := j.Take(ctx, "a")
				if err != nil {
					t.Fatal(err)
				}
				if got.N != 7 {
					t.Fatalf("got %d, want 7", got.N)
				}
				if _, err := j.Get(ctx, "a"); !errors.Is(err, store.ErrNotFound) {
					t.Fatalf("wanted ErrNotFound, got: %v", err)
				}
			},
		},
	} {
		t.Run(cs.name, cs.run)
	}
}
