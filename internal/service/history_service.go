package service

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/clinic-queue/internal/domain"
	"github.com/spec-kit/clinic-queue/internal/repository"
	apperrors "github.com/spec-kit/clinic-queue/pkg/util/errorutil"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
	dateLayout          = "2006-01-02"
)

// HistoryService reads the immutable session archive with filtering,
// pagination and read-time identity resolution.
type HistoryService struct {
	history repository.HistoryRepository
	staff   repository.StaffRepository
	logger  *zap.Logger
}

// HistoryDependencies bundles collaborators for the history service.
type HistoryDependencies struct {
	HistoryRepo repository.HistoryRepository
	StaffRepo   repository.StaffRepository
	Logger      *zap.Logger
}

// HistoryQuery captures caller-supplied query parameters, raw.
type HistoryQuery struct {
	RunnerID  string
	Status    string
	StartDate string
	EndDate   string
	Page      int
	Limit     int
	Sort      string
	Order     string
}

// HistoryRecordView pairs an archived record with resolved identity
// projections. Runner and Stopper stay nil when the referenced staff member
// no longer exists.
type HistoryRecordView struct {
	Record  domain.SessionRecord
	Runner  *domain.StaffRef
	Stopper *domain.StaffRef
}

// NewHistoryService constructs the service.
func NewHistoryService(deps HistoryDependencies) *HistoryService {
	return &HistoryService{
		history: deps.HistoryRepo,
		staff:   deps.StaffRepo,
		logger:  deps.Logger,
	}
}

// NormalizeHistoryPaging applies the pagination defaults and the page size
// cap. Response metadata must be built from the values returned here, not
// from the raw query input, or a capped limit would misreport page counts.
func NormalizeHistoryPaging(page, limit int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	return page, limit
}

// Query returns matching records plus the unpaginated total. Filters are
// conjunctive; dates are interpreted in local time with startDate at
// midnight and endDate at end of day.
func (s *HistoryService) Query(ctx context.Context, q HistoryQuery) ([]HistoryRecordView, int, error) {
	page, limit := NormalizeHistoryPaging(q.Page, q.Limit)

	filter := repository.HistoryFilter{
		SortField: q.Sort,
		SortDesc:  q.Order != "asc",
		Limit:     limit,
		Offset:    (page - 1) * limit,
	}
	if q.RunnerID != "" {
		runnerID := q.RunnerID
		filter.RunnerID = &runnerID
	}
	if q.Status != "" {
		outcome := domain.SessionOutcome(q.Status)
		if outcome != domain.SessionOutcomeCompleted && outcome != domain.SessionOutcomeTerminated {
			return nil, 0, apperrors.NewValidationError("unknown status", map[string]any{"status": q.Status})
		}
		filter.Status = &outcome
	}
	if q.StartDate != "" {
		from, err := time.ParseInLocation(dateLayout, q.StartDate, time.Local)
		if err != nil {
			return nil, 0, apperrors.NewValidationError("invalid startDate", map[string]any{"startDate": q.StartDate})
		}
		filter.StartFrom = &from
	}
	if q.EndDate != "" {
		day, err := time.ParseInLocation(dateLayout, q.EndDate, time.Local)
		if err != nil {
			return nil, 0, apperrors.NewValidationError("invalid endDate", map[string]any{"endDate": q.EndDate})
		}
		// Inclusive upper bound at 23:59:59.999 local time.
		to := day.Add(24*time.Hour - time.Millisecond)
		filter.StartTo = &to
	}

	records, total, err := s.history.Query(ctx, filter)
	if err != nil {
		return nil, 0, apperrors.MapError(err)
	}

	views := make([]HistoryRecordView, 0, len(records))
	refs := s.resolveRefs(ctx, records)
	for _, record := range records {
		view := HistoryRecordView{Record: record}
		if record.RunnerID != nil {
			if ref, ok := refs[*record.RunnerID]; ok {
				runner := ref
				view.Runner = &runner
			}
		}
		if record.StoppedBy != nil {
			if ref, ok := refs[*record.StoppedBy]; ok {
				stopper := ref
				view.Stopper = &stopper
			}
		}
		views = append(views, view)
	}
	return views, total, nil
}

// GetRecord loads one archived record with resolved references.
func (s *HistoryService) GetRecord(ctx context.Context, id string) (*HistoryRecordView, error) {
	record, err := s.history.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("history record", map[string]any{"id": id})
		}
		return nil, apperrors.MapError(err)
	}
	refs := s.resolveRefs(ctx, []domain.SessionRecord{*record})
	view := &HistoryRecordView{Record: *record}
	if record.RunnerID != nil {
		if ref, ok := refs[*record.RunnerID]; ok {
			runner := ref
			view.Runner = &runner
		}
	}
	if record.StoppedBy != nil {
		if ref, ok := refs[*record.StoppedBy]; ok {
			stopper := ref
			view.Stopper = &stopper
		}
	}
	return view, nil
}

// resolveRefs batch-loads staff projections for all referenced identities.
// Resolution failure degrades to unresolved references, never to a query
// failure.
func (s *HistoryService) resolveRefs(ctx context.Context, records []domain.SessionRecord) map[string]domain.StaffRef {
	idSet := make(map[string]struct{})
	for _, record := range records {
		if record.RunnerID != nil {
			idSet[*record.RunnerID] = struct{}{}
		}
		if record.StoppedBy != nil {
			idSet[*record.StoppedBy] = struct{}{}
		}
	}
	if len(idSet) == 0 {
		return nil
	}
	ids := make([]string, 0, len(idSet))
	for id := range idSet {
		ids = append(ids, id)
	}
	refs, err := s.staff.ResolveRefs(ctx, ids)
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("failed to resolve staff references", zap.Error(err))
		}
		return nil
	}
	return refs
}
