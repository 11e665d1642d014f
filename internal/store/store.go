// Package store is the short-lived key/value layer used for registration key
// handles and issued challenge sets. Entries expire on their own.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var ErrNotFound = errors.New("store: key not found")

type Interface interface {
	// Get returns ErrNotFound for missing or expired keys.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, expiry time.Duration) error
	// SetNX writes only if the key is absent and reports whether it wrote.
	SetNX(ctx context.Context, key string, value []byte, expiry time.Duration) (bool, error)
	// Take atomically reads and deletes the key.
	Take(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// JSON stores values of T under a key prefix.
type JSON[T any] struct {
	Underlying Interface
	Prefix     string
}

func (j *JSON[T]) key(k string) string {
	return j.Prefix + k
}

func (j *JSON[T]) Get(ctx context.Context, key string) (*T, error) {
	data, err := j.Underlying.Get(ctx, j.key(key))
	if err != nil {
		return nil, err
	}
	return decode[T](data)
}

func (j *JSON[T]) Set(ctx context.Context, key string, value *T, expiry time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("store: marshal %s: %w", j.key(key), err)
	}
	return j.Underlying.Set(ctx, j.key(key), data, expiry)
}

func (j *JSON[T]) SetNX(ctx context.Context, key string, value *T, expiry time.Duration) (bool, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return false, fmt.Errorf("store: marshal %s: %w", j.key(key), err)
	}
	return j.Underlying.SetNX(ctx, j.key(key), data, expiry)
}

func (j *JSON[T]) Take(ctx context.Context, key string) (*T, error) {
	data, err := j.Underlying.Take(ctx, j.key(key))
	if err != nil {
		return nil, err
	}
	return decode[T](data)
}

func (j *JSON[T]) Delete(ctx context.Context, key string) error {
	return j.Underlying.Delete(ctx, j.key(key))
}

func decode[T any](data []byte) (*T, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("store: unmarshal: %w", err)
	}
	return &v, nil
}
