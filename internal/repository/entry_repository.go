package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/clinic-queue/internal/domain"
)

// EntryFilter captures entry listing parameters.
type EntryFilter struct {
	Status    *domain.EntryStatus
	HandledBy *string
	TodayOnly bool
	Limit     int
	Offset    int
}

// EntryRepository encapsulates queue entry persistence.
type EntryRepository interface {
	// CreateAllocating inserts the entry with the next queue number for the
	// current day, computed inside the INSERT. The unique index on
	// (entry_day, queue_number) makes one of two racing inserts fail with
	// ErrQueueNumberConflict so the caller can retry with a fresh read.
	CreateAllocating(ctx context.Context, entry *domain.QueueEntry) error
	GetByID(ctx context.Context, id string) (*domain.QueueEntry, error)
	List(ctx context.Context, filter EntryFilter) ([]domain.QueueEntry, int, error)
	UpdateStatus(ctx context.Context, entry *domain.QueueEntry) error
	CountWaitingToday(ctx context.Context) (int, error)
}

type entryRepository struct {
	pool *pgxpool.Pool
}

// NewEntryRepository instantiates the repository.
func NewEntryRepository(pool *pgxpool.Pool) EntryRepository {
	return &entryRepository{pool: pool}
}

const entryColumns = `id, queue_number, entry_day, patient_name, status, priority,
       started_at, completed_at, handled_by, handled_by_name, created_at, updated_at`

func (r *entryRepository) CreateAllocating(ctx context.Context, entry *domain.QueueEntry) error {
	const query = `
        INSERT INTO queue_entries (queue_number, entry_day, patient_name, status, priority)
        VALUES (
            (SELECT COALESCE(MAX(queue_number), 0) + 1 FROM queue_entries WHERE entry_day = CURRENT_DATE),
            CURRENT_DATE, $1, $2, $3)
        RETURNING id, queue_number, entry_day, created_at, updated_at`
	err := r.pool.QueryRow(ctx, query,
		entry.PatientName,
		entry.Status,
		entry.Priority,
	).Scan(&entry.ID, &entry.QueueNumber, &entry.EntryDay, &entry.CreatedAt, &entry.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err, "queue_entries_entry_day_queue_number_key") {
			return ErrQueueNumberConflict
		}
		return err
	}
	return nil
}

func (r *entryRepository) GetByID(ctx context.Context, id string) (*domain.QueueEntry, error) {
	query := fmt.Sprintf(`SELECT %s FROM queue_entries WHERE id=$1`, entryColumns)
	var entry domain.QueueEntry
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&entry.ID,
		&entry.QueueNumber,
		&entry.EntryDay,
		&entry.PatientName,
		&entry.Status,
		&entry.Priority,
		&entry.StartedAt,
		&entry.CompletedAt,
		&entry.HandledBy,
		&entry.HandledByName,
		&entry.CreatedAt,
		&entry.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *entryRepository) List(ctx context.Context, filter EntryFilter) ([]domain.QueueEntry, int, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.Status != nil {
		args = append(args, *filter.Status)
		clauses = append(clauses, fmt.Sprintf("status=$%d", len(args)))
	}
	if filter.HandledBy != nil {
		args = append(args, *filter.HandledBy)
		clauses = append(clauses, fmt.Sprintf("handled_by=$%d", len(args)))
	}
	if filter.TodayOnly {
		clauses = append(clauses, "entry_day = CURRENT_DATE")
	}
	where := strings.Join(clauses, " AND ")

	var total int
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM queue_entries WHERE %s`, where)
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`SELECT %s FROM queue_entries WHERE %s
        ORDER BY entry_day DESC, queue_number ASC LIMIT %d OFFSET %d`,
		entryColumns, where, limit, offset)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	entries, err := scanEntries(rows)
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

func (r *entryRepository) UpdateStatus(ctx context.Context, entry *domain.QueueEntry) error {
	const query = `
        UPDATE queue_entries
        SET status=$1, started_at=$2, completed_at=$3, handled_by=$4, handled_by_name=$5, updated_at=NOW()
        WHERE id=$6
        RETURNING updated_at`
	err := r.pool.QueryRow(ctx, query,
		entry.Status,
		entry.StartedAt,
		entry.CompletedAt,
		entry.HandledBy,
		entry.HandledByName,
		entry.ID,
	).Scan(&entry.UpdatedAt)
	if err != nil {
		return err
	}
	return nil
}

func (r *entryRepository) CountWaitingToday(ctx context.Context) (int, error) {
	const query = `SELECT COUNT(*) FROM queue_entries WHERE entry_day = CURRENT_DATE AND status=$1`
	var count int
	if err := r.pool.QueryRow(ctx, query, domain.EntryStatusWaiting).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func scanEntries(rows pgx.Rows) ([]domain.QueueEntry, error) {
	var result []domain.QueueEntry
	for rows.Next() {
		var entry domain.QueueEntry
		if err := rows.Scan(
			&entry.ID,
			&entry.QueueNumber,
			&entry.EntryDay,
			&entry.PatientName,
			&entry.Status,
			&entry.Priority,
			&entry.StartedAt,
			&entry.CompletedAt,
			&entry.HandledBy,
			&entry.HandledByName,
			&entry.CreatedAt,
			&entry.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}
