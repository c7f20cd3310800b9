package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/clinic-queue/internal/domain"
)

// StaffRepository handles persistence for staff members.
type StaffRepository interface {
	GetByID(ctx context.Context, id string) (*domain.StaffMember, error)
	GetByUsername(ctx context.Context, username string) (*domain.StaffMember, error)
	// ResolveRefs loads minimal display projections for the given staff ids.
	// Unknown ids are simply absent from the result; dangling references in
	// history records must never fail a read.
	ResolveRefs(ctx context.Context, ids []string) (map[string]domain.StaffRef, error)
}

type staffRepository struct {
	pool *pgxpool.Pool
}

// NewStaffRepository instantiates the repository.
func NewStaffRepository(pool *pgxpool.Pool) StaffRepository {
	return &staffRepository{pool: pool}
}

func (r *staffRepository) GetByID(ctx context.Context, id string) (*domain.StaffMember, error) {
	const query = `
        SELECT id, name, username, password_hash, rank, active_flag, created_at, updated_at
        FROM staff_members WHERE id=$1`
	return r.fetchSingle(ctx, query, id)
}

func (r *staffRepository) GetByUsername(ctx context.Context, username string) (*domain.StaffMember, error) {
	const query = `
        SELECT id, name, username, password_hash, rank, active_flag, created_at, updated_at
        FROM staff_members WHERE username=$1`
	return r.fetchSingle(ctx, query, username)
}

func (r *staffRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.StaffMember, error) {
	var staff domain.StaffMember
	if err := r.pool.QueryRow(ctx, query, arg).Scan(
		&staff.ID,
		&staff.Name,
		&staff.Username,
		&staff.PasswordHash,
		&staff.Rank,
		&staff.Active,
		&staff.CreatedAt,
		&staff.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &staff, nil
}

func (r *staffRepository) ResolveRefs(ctx context.Context, ids []string) (map[string]domain.StaffRef, error) {
	refs := make(map[string]domain.StaffRef, len(ids))
	if len(ids) == 0 {
		return refs, nil
	}
	const query = `SELECT id, name, username FROM staff_members WHERE id = ANY($1)`
	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var ref domain.StaffRef
		if err := rows.Scan(&ref.ID, &ref.Name, &ref.Username); err != nil {
			return nil, err
		}
		refs[ref.ID] = ref
	}
	return refs, rows.Err()
}
