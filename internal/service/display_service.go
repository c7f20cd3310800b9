package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/clinic-queue/internal/config"
	"github.com/spec-kit/clinic-queue/internal/domain"
	"github.com/spec-kit/clinic-queue/internal/events"
	"github.com/spec-kit/clinic-queue/internal/persistence"
	"github.com/spec-kit/clinic-queue/internal/repository"
	apperrors "github.com/spec-kit/clinic-queue/pkg/util/errorutil"
)

// BoardSnapshot is the public display board state cached in Redis. It is a
// write-time cache refreshed on every queue mutation, so display boards get
// a cheap read path that survives brief database hiccups.
type BoardSnapshot struct {
	IsRunning         bool            `json:"is_running"`
	RunnerName        string          `json:"runner_name,omitempty"`
	Doctors           []domain.Doctor `json:"doctors"`
	CurrentQueueIndex int             `json:"current_queue_index"`
	NowServing        *int            `json:"now_serving,omitempty"`
	WaitingCount      int             `json:"waiting_count"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// DisplayService maintains the cached snapshot and serves board reads.
type DisplayService struct {
	sessions   repository.SessionRepository
	entries    repository.EntryRepository
	redis      *persistence.Redis
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.DisplayConfig
}

// DisplayDependencies bundles collaborators for the display service.
type DisplayDependencies struct {
	SessionRepo repository.SessionRepository
	EntryRepo   repository.EntryRepository
	Redis       *persistence.Redis
	Dispatcher  events.Dispatcher
	Logger      *zap.Logger
}

// NewDisplayService constructs the service.
func NewDisplayService(cfg config.DisplayConfig, deps DisplayDependencies) *DisplayService {
	return &DisplayService{
		sessions:   deps.SessionRepo,
		entries:    deps.EntryRepo,
		redis:      deps.Redis,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes the snapshot refresher to queue events.
func (s *DisplayService) RegisterHandlers() {
	if s.dispatcher == nil {
		return
	}
	for _, eventType := range []events.EventType{
		events.EventEntryCreated,
		events.EventEntryStatusChanged,
		events.EventSessionStarted,
		events.EventSessionAdvanced,
		events.EventSessionStopped,
	} {
		s.dispatcher.Subscribe(eventType, s.handleQueueEvent)
	}
}

func (s *DisplayService) handleQueueEvent(ctx context.Context, event events.Event) error {
	snapshot, err := s.buildSnapshot(ctx)
	if err != nil {
		s.logger.Warn("failed to build display snapshot", zap.Error(err), zap.String("event", string(event.Type)))
		return err
	}
	if err := s.store(ctx, snapshot); err != nil {
		s.logger.Warn("failed to cache display snapshot", zap.Error(err))
		return err
	}
	return nil
}

// Board returns the display snapshot, preferring the Redis cache and
// falling back to a fresh database read on miss or cache failure.
func (s *DisplayService) Board(ctx context.Context) (*BoardSnapshot, error) {
	if s.redis != nil && s.redis.Client != nil {
		raw, err := s.redis.Client.Get(ctx, s.cfg.SnapshotKey).Bytes()
		if err == nil {
			var snapshot BoardSnapshot
			if jsonErr := json.Unmarshal(raw, &snapshot); jsonErr == nil {
				return &snapshot, nil
			}
			s.logger.Warn("discarding malformed display snapshot")
		} else if !errors.Is(err, redis.Nil) {
			s.logger.Warn("display snapshot cache read failed", zap.Error(err))
		}
	}

	snapshot, err := s.buildSnapshot(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if err := s.store(ctx, snapshot); err != nil {
		s.logger.Warn("failed to cache display snapshot", zap.Error(err))
	}
	return snapshot, nil
}

func (s *DisplayService) buildSnapshot(ctx context.Context) (*BoardSnapshot, error) {
	snapshot := &BoardSnapshot{Doctors: []domain.Doctor{}, UpdatedAt: time.Now()}

	session, err := s.sessions.GetCurrent(ctx)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if session != nil && session.IsRunning {
		snapshot.IsRunning = true
		snapshot.RunnerName = session.RunnerName
		snapshot.CurrentQueueIndex = session.CurrentQueueIndex
		if session.Doctors != nil {
			snapshot.Doctors = session.Doctors
		}
	}

	waiting, err := s.entries.CountWaitingToday(ctx)
	if err != nil {
		return nil, err
	}
	snapshot.WaitingCount = waiting

	inProgress := domain.EntryStatusInProgress
	entries, _, err := s.entries.List(ctx, repository.EntryFilter{
		Status:    &inProgress,
		TodayOnly: true,
		Limit:     50,
	})
	if err != nil {
		return nil, err
	}
	for _, entry := range entries {
		if snapshot.NowServing == nil || entry.QueueNumber > *snapshot.NowServing {
			number := entry.QueueNumber
			snapshot.NowServing = &number
		}
	}
	return snapshot, nil
}

func (s *DisplayService) store(ctx context.Context, snapshot *BoardSnapshot) error {
	if s.redis == nil || s.redis.Client == nil {
		return nil
	}
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	return s.redis.Client.Set(ctx, s.cfg.SnapshotKey, raw, s.cfg.SnapshotTTL()).Err()
}
