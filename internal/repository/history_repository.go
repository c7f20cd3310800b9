package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/clinic-queue/internal/domain"
)

// HistoryFilter captures history search parameters. All filters are
// conjunctive.
type HistoryFilter struct {
	RunnerID  *string
	Status    *domain.SessionOutcome
	StartFrom *time.Time
	StartTo   *time.Time
	SortField string
	SortDesc  bool
	Limit     int
	Offset    int
}

// historySortColumns whitelists caller-supplied sort fields.
var historySortColumns = map[string]string{
	"startTime":  "start_time",
	"endTime":    "end_time",
	"elapsedMs":  "elapsed_ms",
	"runnerName": "runner_name",
}

// SortColumn maps an external sort field to its column, defaulting to
// start_time for unknown fields.
func (f HistoryFilter) SortColumn() string {
	if col, ok := historySortColumns[f.SortField]; ok {
		return col
	}
	return "start_time"
}

// HistoryRepository reads the append-only session archive. Records are only
// ever written through SessionRepository.StopAndArchive.
type HistoryRepository interface {
	GetByID(ctx context.Context, id string) (*domain.SessionRecord, error)
	Query(ctx context.Context, filter HistoryFilter) ([]domain.SessionRecord, int, error)
}

type historyRepository struct {
	pool *pgxpool.Pool
}

// NewHistoryRepository instantiates the repository.
func NewHistoryRepository(pool *pgxpool.Pool) HistoryRepository {
	return &historyRepository{pool: pool}
}

const historyColumns = `id, session_id, runner_id, runner_name, doctors, stopped_by,
       status, start_time, end_time, elapsed_ms, entries_served, created_at`

func (r *historyRepository) GetByID(ctx context.Context, id string) (*domain.SessionRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM queue_history WHERE id=$1`, historyColumns)
	var record domain.SessionRecord
	if err := scanRecord(r.pool.QueryRow(ctx, query, id), &record); err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *historyRepository) Query(ctx context.Context, filter HistoryFilter) ([]domain.SessionRecord, int, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.RunnerID != nil {
		args = append(args, *filter.RunnerID)
		clauses = append(clauses, fmt.Sprintf("runner_id=$%d", len(args)))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		clauses = append(clauses, fmt.Sprintf("status=$%d", len(args)))
	}
	if filter.StartFrom != nil {
		args = append(args, *filter.StartFrom)
		clauses = append(clauses, fmt.Sprintf("start_time >= $%d", len(args)))
	}
	if filter.StartTo != nil {
		args = append(args, *filter.StartTo)
		clauses = append(clauses, fmt.Sprintf("start_time <= $%d", len(args)))
	}
	where := strings.Join(clauses, " AND ")

	var total int
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM queue_history WHERE %s`, where)
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
	direction := "ASC"
	if filter.SortDesc {
		direction = "DESC"
	}

	query := fmt.Sprintf(`SELECT %s FROM queue_history WHERE %s ORDER BY %s %s LIMIT %d OFFSET %d`,
		historyColumns, where, filter.SortColumn(), direction, limit, offset)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var result []domain.SessionRecord
	for rows.Next() {
		var record domain.SessionRecord
		if err := scanRecord(rows, &record); err != nil {
			return nil, 0, err
		}
		result = append(result, record)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return result, total, nil
}

func scanRecord(row pgx.Row, record *domain.SessionRecord) error {
	return row.Scan(
		&record.ID,
		&record.SessionID,
		&record.RunnerID,
		&record.RunnerName,
		&record.Doctors,
		&record.StoppedBy,
		&record.Status,
		&record.StartTime,
		&record.EndTime,
		&record.ElapsedMs,
		&record.EntriesServed,
		&record.CreatedAt,
	)
}
