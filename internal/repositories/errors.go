package repositories

import (
	"errors"

	"github.com/jackc/pgx/v5"
)

var (
	ErrNotFound = errors.New("record not found")
	// ErrConflict means the row already exists or a guarded update matched nothing.
	ErrConflict = errors.New("record conflict")
)

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
