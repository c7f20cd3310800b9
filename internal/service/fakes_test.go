package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/clinic-queue/internal/domain"
	"github.com/spec-kit/clinic-queue/internal/repository"
	apperrors "github.com/spec-kit/clinic-queue/pkg/util/errorutil"
)

// domainCode extracts the taxonomy code from an error for assertions.
func domainCode(t *testing.T, err error) string {
	t.Helper()
	if err == nil {
		t.Fatal("expected an error")
	}
	var de *apperrors.DomainError
	if !errors.As(err, &de) {
		t.Fatalf("expected DomainError, got %T: %v", err, err)
	}
	return de.Code
}

func today() time.Time {
	now := time.Now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
}

type fakeEntryRepo struct {
	mu                     sync.Mutex
	entries                []*domain.QueueEntry
	conflictsBeforeSuccess int
	createErr              error
	updateErr              error
	nextID                 int
}

var _ repository.EntryRepository = (*fakeEntryRepo)(nil)

func (f *fakeEntryRepo) CreateAllocating(ctx context.Context, entry *domain.QueueEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	if f.conflictsBeforeSuccess > 0 {
		f.conflictsBeforeSuccess--
		return repository.ErrQueueNumberConflict
	}
	day := today()
	max := 0
	for _, existing := range f.entries {
		if existing.EntryDay.Equal(day) && existing.QueueNumber > max {
			max = existing.QueueNumber
		}
	}
	f.nextID++
	entry.ID = fmt.Sprintf("entry-%d", f.nextID)
	entry.QueueNumber = max + 1
	entry.EntryDay = day
	entry.CreatedAt = time.Now()
	entry.UpdatedAt = entry.CreatedAt
	stored := *entry
	f.entries = append(f.entries, &stored)
	return nil
}

func (f *fakeEntryRepo) GetByID(ctx context.Context, id string) (*domain.QueueEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, entry := range f.entries {
		if entry.ID == id {
			copied := *entry
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeEntryRepo) List(ctx context.Context, filter repository.EntryFilter) ([]domain.QueueEntry, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var matched []domain.QueueEntry
	for _, entry := range f.entries {
		if filter.Status != nil && entry.Status != *filter.Status {
			continue
		}
		if filter.HandledBy != nil && (entry.HandledBy == nil || *entry.HandledBy != *filter.HandledBy) {
			continue
		}
		if filter.TodayOnly && !entry.EntryDay.Equal(today()) {
			continue
		}
		matched = append(matched, *entry)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].QueueNumber < matched[j].QueueNumber })
	total := len(matched)
	offset := filter.Offset
	if offset > total {
		offset = total
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matched[offset:end], total, nil
}

func (f *fakeEntryRepo) UpdateStatus(ctx context.Context, entry *domain.QueueEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	for i, existing := range f.entries {
		if existing.ID == entry.ID {
			entry.UpdatedAt = time.Now()
			stored := *entry
			f.entries[i] = &stored
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (f *fakeEntryRepo) CountWaitingToday(ctx context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, entry := range f.entries {
		if entry.EntryDay.Equal(today()) && entry.Status == domain.EntryStatusWaiting {
			count++
		}
	}
	return count, nil
}

func (f *fakeEntryRepo) addWaiting(t *testing.T) *domain.QueueEntry {
	t.Helper()
	entry := &domain.QueueEntry{Status: domain.EntryStatusWaiting, Priority: domain.EntryPriorityNormal}
	if err := f.CreateAllocating(context.Background(), entry); err != nil {
		t.Fatalf("addWaiting: %v", err)
	}
	return entry
}

type fakeSessionRepo struct {
	mu          sync.Mutex
	sessions    map[string]*domain.QueueSession
	records     []domain.SessionRecord
	archiveErr  error
	nextSession int
	nextRecord  int
	// beforeArchive, when set, runs at the top of StopAndArchive so tests
	// can interleave a concurrent mutation between the caller's snapshot
	// and the archive.
	beforeArchive func()
}

var _ repository.SessionRepository = (*fakeSessionRepo)(nil)

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: make(map[string]*domain.QueueSession)}
}

func (f *fakeSessionRepo) Start(ctx context.Context, session *domain.QueueSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.sessions {
		if existing.IsRunning {
			return repository.ErrSessionRunning
		}
	}
	f.nextSession++
	now := time.Now()
	session.ID = fmt.Sprintf("session-%d", f.nextSession)
	session.IsRunning = true
	session.CurrentQueueIndex = 0
	session.StartTime = &now
	session.ElapsedMs = 0
	session.LastUpdated = now
	stored := *session
	f.sessions[session.ID] = &stored
	return nil
}

func (f *fakeSessionRepo) Advance(ctx context.Context, id string) (*domain.QueueSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	session, ok := f.sessions[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	if !session.IsRunning {
		return nil, repository.ErrSessionNotRunning
	}
	session.CurrentQueueIndex++
	session.LastUpdated = time.Now()
	copied := *session
	return &copied, nil
}

func (f *fakeSessionRepo) UpdateDoctors(ctx context.Context, id string, doctors []domain.Doctor) (*domain.QueueSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	session, ok := f.sessions[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	if !session.IsRunning {
		return nil, repository.ErrSessionNotRunning
	}
	session.Doctors = doctors
	session.LastUpdated = time.Now()
	copied := *session
	return &copied, nil
}

func (f *fakeSessionRepo) GetByID(ctx context.Context, id string) (*domain.QueueSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	session, ok := f.sessions[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *session
	return &copied, nil
}

func (f *fakeSessionRepo) GetCurrent(ctx context.Context) (*domain.QueueSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var latest *domain.QueueSession
	for _, session := range f.sessions {
		if latest == nil || session.LastUpdated.After(latest.LastUpdated) {
			latest = session
		}
	}
	if latest == nil {
		return nil, pgx.ErrNoRows
	}
	copied := *latest
	return &copied, nil
}

func (f *fakeSessionRepo) StopAndArchive(ctx context.Context, id string, record *domain.SessionRecord) error {
	if f.beforeArchive != nil {
		f.beforeArchive()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.archiveErr != nil {
		return f.archiveErr
	}
	session, ok := f.sessions[id]
	if !ok || !session.IsRunning {
		return repository.ErrSessionNotRunning
	}
	// Mirror the real repository: the locked row is authoritative for the
	// archived counters, roster and elapsed time.
	record.EntriesServed = session.CurrentQueueIndex
	if session.Doctors != nil {
		record.Doctors = session.Doctors
	}
	if session.StartTime != nil {
		record.StartTime = *session.StartTime
		record.ElapsedMs = session.Elapsed(record.EndTime).Milliseconds()
	}
	session.IsRunning = false
	session.RunnerID = nil
	session.Doctors = []domain.Doctor{}
	session.StartTime = nil
	session.ElapsedMs = 0
	session.LastUpdated = time.Now()

	f.nextRecord++
	record.ID = fmt.Sprintf("record-%d", f.nextRecord)
	record.CreatedAt = time.Now()
	f.records = append(f.records, *record)
	return nil
}

// setStartTime rewinds the stored start time so elapsed-duration assertions
// have something to measure.
func (f *fakeSessionRepo) setStartTime(t *testing.T, id string, start time.Time) {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	session, ok := f.sessions[id]
	if !ok {
		t.Fatalf("setStartTime: unknown session %s", id)
	}
	session.StartTime = &start
}

type fakeHistoryRepo struct {
	mu      sync.Mutex
	records []domain.SessionRecord
	err     error
}

var _ repository.HistoryRepository = (*fakeHistoryRepo)(nil)

func (f *fakeHistoryRepo) GetByID(ctx context.Context, id string) (*domain.SessionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	for _, record := range f.records {
		if record.ID == id {
			copied := record
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeHistoryRepo) Query(ctx context.Context, filter repository.HistoryFilter) ([]domain.SessionRecord, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, 0, f.err
	}
	var matched []domain.SessionRecord
	for _, record := range f.records {
		if filter.RunnerID != nil && (record.RunnerID == nil || *record.RunnerID != *filter.RunnerID) {
			continue
		}
		if filter.Status != nil && record.Status != *filter.Status {
			continue
		}
		if filter.StartFrom != nil && record.StartTime.Before(*filter.StartFrom) {
			continue
		}
		if filter.StartTo != nil && record.StartTime.After(*filter.StartTo) {
			continue
		}
		matched = append(matched, record)
	}
	sort.Slice(matched, func(i, j int) bool {
		if filter.SortDesc {
			return matched[i].StartTime.After(matched[j].StartTime)
		}
		return matched[i].StartTime.Before(matched[j].StartTime)
	})
	total := len(matched)
	offset := filter.Offset
	if offset > total {
		offset = total
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matched[offset:end], total, nil
}

type fakeStaffRepo struct {
	mu         sync.Mutex
	staff      map[string]*domain.StaffMember
	resolveErr error
}

var _ repository.StaffRepository = (*fakeStaffRepo)(nil)

func newFakeStaffRepo() *fakeStaffRepo {
	return &fakeStaffRepo{staff: make(map[string]*domain.StaffMember)}
}

func (f *fakeStaffRepo) GetByID(ctx context.Context, id string) (*domain.StaffMember, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	staff, ok := f.staff[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *staff
	return &copied, nil
}

func (f *fakeStaffRepo) GetByUsername(ctx context.Context, username string) (*domain.StaffMember, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, staff := range f.staff {
		if staff.Username == username {
			copied := *staff
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeStaffRepo) ResolveRefs(ctx context.Context, ids []string) (map[string]domain.StaffRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.resolveErr != nil {
		return nil, f.resolveErr
	}
	refs := make(map[string]domain.StaffRef)
	for _, id := range ids {
		if staff, ok := f.staff[id]; ok {
			refs[id] = domain.StaffRef{ID: staff.ID, Name: staff.Name, Username: staff.Username}
		}
	}
	return refs, nil
}

func (f *fakeStaffRepo) add(staff domain.StaffMember) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.staff[staff.ID] = &staff
}
