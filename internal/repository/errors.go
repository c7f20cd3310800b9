package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrQueueNumberConflict means another writer claimed the same queue
	// number for the day. Callers re-read and retry.
	ErrQueueNumberConflict = errors.New("queue number already taken")

	// ErrSessionRunning means the partial unique index on the running flag
	// rejected a second concurrent session.
	ErrSessionRunning = errors.New("another session is running")

	// ErrSessionNotRunning means a conditional session update matched no
	// running row.
	ErrSessionNotRunning = errors.New("session is not running")
)

const uniqueViolation = "23505"

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == uniqueViolation && (constraint == "" || pgErr.ConstraintName == constraint)
}
