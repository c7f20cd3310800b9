package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/clinic-queue/internal/domain"
)

// SessionRepository owns the active-session document and the
// single-running-session invariant. Exclusivity rides on a partial unique
// index over is_running, so claiming the flag is one atomic insert rather
// than a read-then-write pair.
type SessionRepository interface {
	// Start inserts a new running session. Returns ErrSessionRunning when
	// another row already holds the running flag.
	Start(ctx context.Context, session *domain.QueueSession) error
	// Advance bumps current_queue_index on the running session identified by
	// id. Returns ErrSessionNotRunning when the row exists but is stopped,
	// pgx.ErrNoRows when the id is unknown.
	Advance(ctx context.Context, id string) (*domain.QueueSession, error)
	// UpdateDoctors replaces the roster on the running session.
	UpdateDoctors(ctx context.Context, id string, doctors []domain.Doctor) (*domain.QueueSession, error)
	GetByID(ctx context.Context, id string) (*domain.QueueSession, error)
	// GetCurrent returns the most recently touched session, running or not.
	GetCurrent(ctx context.Context) (*domain.QueueSession, error)
	// StopAndArchive clears the running flag and inserts the history record
	// in one transaction, so a stop never loses its session data: either
	// both statements commit or the session stays running. The archived
	// counters, roster and elapsed time are re-read from the locked row, so
	// an advance or roster update landing after the caller's snapshot still
	// ends up in the record.
	StopAndArchive(ctx context.Context, id string, record *domain.SessionRecord) error
}

type sessionRepository struct {
	pool *pgxpool.Pool
}

// NewSessionRepository instantiates the repository.
func NewSessionRepository(pool *pgxpool.Pool) SessionRepository {
	return &sessionRepository{pool: pool}
}

const sessionColumns = `id, is_running, current_queue_index, runner_id, runner_name,
       doctors, start_time, elapsed_ms, last_updated`

func (r *sessionRepository) Start(ctx context.Context, session *domain.QueueSession) error {
	const query = `
        INSERT INTO queue_sessions (is_running, current_queue_index, runner_id, runner_name, doctors, start_time, elapsed_ms, last_updated)
        VALUES (TRUE, 0, $1, $2, $3, NOW(), 0, NOW())
        RETURNING id, is_running, current_queue_index, start_time, elapsed_ms, last_updated`
	err := r.pool.QueryRow(ctx, query,
		session.RunnerID,
		session.RunnerName,
		session.Doctors,
	).Scan(
		&session.ID,
		&session.IsRunning,
		&session.CurrentQueueIndex,
		&session.StartTime,
		&session.ElapsedMs,
		&session.LastUpdated,
	)
	if err != nil {
		if isUniqueViolation(err, "queue_sessions_single_running_idx") {
			return ErrSessionRunning
		}
		return err
	}
	return nil
}

func (r *sessionRepository) Advance(ctx context.Context, id string) (*domain.QueueSession, error) {
	const query = `
        UPDATE queue_sessions
        SET current_queue_index = current_queue_index + 1, last_updated = NOW()
        WHERE id=$1 AND is_running
        RETURNING ` + sessionColumns
	session, err := r.scanOne(r.pool.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, r.classifyMiss(ctx, id)
	}
	return session, err
}

func (r *sessionRepository) UpdateDoctors(ctx context.Context, id string, doctors []domain.Doctor) (*domain.QueueSession, error) {
	const query = `
        UPDATE queue_sessions
        SET doctors=$1, last_updated = NOW()
        WHERE id=$2 AND is_running
        RETURNING ` + sessionColumns
	session, err := r.scanOne(r.pool.QueryRow(ctx, query, doctors, id))
	if err == pgx.ErrNoRows {
		return nil, r.classifyMiss(ctx, id)
	}
	return session, err
}

func (r *sessionRepository) GetByID(ctx context.Context, id string) (*domain.QueueSession, error) {
	query := fmt.Sprintf(`SELECT %s FROM queue_sessions WHERE id=$1`, sessionColumns)
	return r.scanOne(r.pool.QueryRow(ctx, query, id))
}

func (r *sessionRepository) GetCurrent(ctx context.Context) (*domain.QueueSession, error) {
	query := fmt.Sprintf(`SELECT %s FROM queue_sessions ORDER BY last_updated DESC LIMIT 1`, sessionColumns)
	return r.scanOne(r.pool.QueryRow(ctx, query))
}

func (r *sessionRepository) StopAndArchive(ctx context.Context, id string, record *domain.SessionRecord) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	// Lock the row and take the authoritative pre-stop state.
	const snapshotQuery = `
        SELECT current_queue_index, doctors, start_time, elapsed_ms
        FROM queue_sessions
        WHERE id=$1 AND is_running
        FOR UPDATE`
	var snapshot domain.QueueSession
	snapshot.IsRunning = true
	if err := tx.QueryRow(ctx, snapshotQuery, id).Scan(
		&snapshot.CurrentQueueIndex,
		&snapshot.Doctors,
		&snapshot.StartTime,
		&snapshot.ElapsedMs,
	); err != nil {
		if err == pgx.ErrNoRows {
			return ErrSessionNotRunning
		}
		return err
	}
	record.EntriesServed = snapshot.CurrentQueueIndex
	if snapshot.Doctors != nil {
		record.Doctors = snapshot.Doctors
	}
	if snapshot.StartTime != nil {
		record.StartTime = *snapshot.StartTime
		record.ElapsedMs = snapshot.Elapsed(record.EndTime).Milliseconds()
	}

	const stopQuery = `
        UPDATE queue_sessions
        SET is_running=FALSE, runner_id=NULL, doctors='[]', start_time=NULL, elapsed_ms=0, last_updated=NOW()
        WHERE id=$1 AND is_running`
	if _, err := tx.Exec(ctx, stopQuery, id); err != nil {
		return err
	}

	const archiveQuery = `
        INSERT INTO queue_history (session_id, runner_id, runner_name, doctors, stopped_by, status, start_time, end_time, elapsed_ms, entries_served)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
        RETURNING id, created_at`
	if err := tx.QueryRow(ctx, archiveQuery,
		record.SessionID,
		record.RunnerID,
		record.RunnerName,
		record.Doctors,
		record.StoppedBy,
		record.Status,
		record.StartTime,
		record.EndTime,
		record.ElapsedMs,
		record.EntriesServed,
	).Scan(&record.ID, &record.CreatedAt); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *sessionRepository) scanOne(row pgx.Row) (*domain.QueueSession, error) {
	var session domain.QueueSession
	if err := row.Scan(
		&session.ID,
		&session.IsRunning,
		&session.CurrentQueueIndex,
		&session.RunnerID,
		&session.RunnerName,
		&session.Doctors,
		&session.StartTime,
		&session.ElapsedMs,
		&session.LastUpdated,
	); err != nil {
		return nil, err
	}
	return &session, nil
}

// classifyMiss distinguishes a stopped session from an unknown id after a
// conditional update matched nothing.
func (r *sessionRepository) classifyMiss(ctx context.Context, id string) error {
	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	return ErrSessionNotRunning
}
