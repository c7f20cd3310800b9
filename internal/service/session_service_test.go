package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/spec-kit/clinic-queue/internal/domain"
)

func newSessionService(sessions *fakeSessionRepo, entries *fakeEntryRepo) *SessionService {
	return NewSessionService(SessionDependencies{
		SessionRepo: sessions,
		EntryRepo:   entries,
	})
}

func startInput() SessionStartInput {
	return SessionStartInput{
		RunnerID:   "staff-1",
		RunnerName: "Dr. Reyes",
		Doctors: []domain.Doctor{
			{ID: "doc-1", Name: "Dr. Adler"},
			{ID: "doc-2", Name: "Dr. Chen"},
		},
	}
}

func TestStartClaimsSession(t *testing.T) {
	svc := newSessionService(newFakeSessionRepo(), &fakeEntryRepo{})

	session, err := svc.Start(context.Background(), startInput())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !session.IsRunning {
		t.Error("session not running after start")
	}
	if session.CurrentQueueIndex != 0 {
		t.Errorf("CurrentQueueIndex = %d, want 0", session.CurrentQueueIndex)
	}
	if session.StartTime == nil {
		t.Error("StartTime not set")
	}
	if session.RunnerID == nil || *session.RunnerID != "staff-1" {
		t.Errorf("RunnerID = %v, want staff-1", session.RunnerID)
	}
	if len(session.Doctors) != 2 {
		t.Errorf("Doctors = %v, want 2 entries", session.Doctors)
	}
}

func TestStartWhileRunning(t *testing.T) {
	sessions := newFakeSessionRepo()
	svc := newSessionService(sessions, &fakeEntryRepo{})

	first, err := svc.Start(context.Background(), startInput())
	if err != nil {
		t.Fatalf("first Start: %v", err)
	}

	input := startInput()
	input.RunnerID = "staff-2"
	input.RunnerName = "Dr. Osei"
	_, err = svc.Start(context.Background(), input)
	if code := domainCode(t, err); code != "SESSION_ALREADY_RUNNING" {
		t.Errorf("code = %s, want SESSION_ALREADY_RUNNING", code)
	}

	// The losing start must not disturb the winner.
	current, err := sessions.GetByID(context.Background(), first.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if !current.IsRunning || *current.RunnerID != "staff-1" {
		t.Errorf("winner session disturbed: %+v", current)
	}
}

func TestConcurrentStartSingleWinner(t *testing.T) {
	svc := newSessionService(newFakeSessionRepo(), &fakeEntryRepo{})

	const runners = 8
	var wg sync.WaitGroup
	results := make([]error, runners)
	for i := 0; i < runners; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = svc.Start(context.Background(), startInput())
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range results {
		if err == nil {
			wins++
			continue
		}
		if code := domainCode(t, err); code != "SESSION_ALREADY_RUNNING" {
			t.Errorf("loser code = %s, want SESSION_ALREADY_RUNNING", code)
		}
	}
	if wins != 1 {
		t.Errorf("winners = %d, want exactly 1", wins)
	}
}

func TestAdvanceIncrementsIndex(t *testing.T) {
	svc := newSessionService(newFakeSessionRepo(), &fakeEntryRepo{})
	session, err := svc.Start(context.Background(), startInput())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	for want := 1; want <= 2; want++ {
		advanced, err := svc.Advance(context.Background(), session.ID, "staff-1")
		if err != nil {
			t.Fatalf("Advance: %v", err)
		}
		if advanced.CurrentQueueIndex != want {
			t.Errorf("CurrentQueueIndex = %d, want %d", advanced.CurrentQueueIndex, want)
		}
	}
}

func TestAdvanceRequiresRunning(t *testing.T) {
	svc := newSessionService(newFakeSessionRepo(), &fakeEntryRepo{})
	session, err := svc.Start(context.Background(), startInput())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := svc.Stop(context.Background(), session.ID, "staff-1"); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	_, err = svc.Advance(context.Background(), session.ID, "staff-1")
	if code := domainCode(t, err); code != "SESSION_NOT_RUNNING" {
		t.Errorf("code = %s, want SESSION_NOT_RUNNING", code)
	}

	_, err = svc.Advance(context.Background(), "no-such-session", "staff-1")
	if code := domainCode(t, err); code != "NOT_FOUND" {
		t.Errorf("code = %s, want NOT_FOUND", code)
	}
}

func TestStopArchivesSession(t *testing.T) {
	sessions := newFakeSessionRepo()
	entries := &fakeEntryRepo{}
	svc := newSessionService(sessions, entries)

	session, err := svc.Start(context.Background(), startInput())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	for i := 0; i < 2; i++ {
		if _, err := svc.Advance(context.Background(), session.ID, "staff-1"); err != nil {
			t.Fatalf("Advance: %v", err)
		}
	}
	sessions.setStartTime(t, session.ID, time.Now().Add(-5*time.Second))

	record, err := svc.Stop(context.Background(), session.ID, "staff-9")
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}

	if record.ElapsedMs < 4900 || record.ElapsedMs > 7000 {
		t.Errorf("ElapsedMs = %d, want roughly 5000", record.ElapsedMs)
	}
	if record.EntriesServed != 2 {
		t.Errorf("EntriesServed = %d, want 2", record.EntriesServed)
	}
	if record.Status != domain.SessionOutcomeCompleted {
		t.Errorf("Status = %s, want COMPLETED", record.Status)
	}
	if record.StoppedBy == nil || *record.StoppedBy != "staff-9" {
		t.Errorf("StoppedBy = %v, want staff-9", record.StoppedBy)
	}
	if len(record.Doctors) != 2 || record.Doctors[0].ID != "doc-1" || record.Doctors[1].ID != "doc-2" {
		t.Errorf("Doctors = %+v, want doc-1, doc-2 in order", record.Doctors)
	}
	if record.EndTime.Before(record.StartTime) {
		t.Error("EndTime precedes StartTime")
	}

	// The session resource returns to idle.
	stopped, err := sessions.GetByID(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if stopped.IsRunning {
		t.Error("session still running after stop")
	}
}

func TestStopArchivesAdvanceLandingDuringStop(t *testing.T) {
	sessions := newFakeSessionRepo()
	svc := newSessionService(sessions, &fakeEntryRepo{})

	session, err := svc.Start(context.Background(), startInput())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	for i := 0; i < 2; i++ {
		if _, err := svc.Advance(context.Background(), session.ID, "staff-1"); err != nil {
			t.Fatalf("Advance: %v", err)
		}
	}

	// An advance that lands between the stopper's read and the archive must
	// still be counted in the record.
	sessions.beforeArchive = func() {
		if _, err := sessions.Advance(context.Background(), session.ID); err != nil {
			t.Errorf("interleaved Advance: %v", err)
		}
	}

	record, err := svc.Stop(context.Background(), session.ID, "staff-1")
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if record.EntriesServed != 3 {
		t.Errorf("EntriesServed = %d, want 3 including the interleaved advance", record.EntriesServed)
	}
}

func TestStopWithWaitingEntriesIsTerminated(t *testing.T) {
	entries := &fakeEntryRepo{}
	entries.addWaiting(t)
	svc := newSessionService(newFakeSessionRepo(), entries)

	session, err := svc.Start(context.Background(), startInput())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	record, err := svc.Stop(context.Background(), session.ID, "staff-1")
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if record.Status != domain.SessionOutcomeTerminated {
		t.Errorf("Status = %s, want TERMINATED", record.Status)
	}
}

func TestStopIdempotent(t *testing.T) {
	sessions := newFakeSessionRepo()
	svc := newSessionService(sessions, &fakeEntryRepo{})

	session, err := svc.Start(context.Background(), startInput())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := svc.Stop(context.Background(), session.ID, "staff-1"); err != nil {
		t.Fatalf("first Stop: %v", err)
	}

	for i := 0; i < 2; i++ {
		_, err := svc.Stop(context.Background(), session.ID, "staff-1")
		if code := domainCode(t, err); code != "SESSION_NOT_RUNNING" {
			t.Errorf("repeat stop code = %s, want SESSION_NOT_RUNNING", code)
		}
	}
	if len(sessions.records) != 1 {
		t.Errorf("records = %d, want exactly 1", len(sessions.records))
	}
}

func TestStopThenStartFresh(t *testing.T) {
	svc := newSessionService(newFakeSessionRepo(), &fakeEntryRepo{})

	session, err := svc.Start(context.Background(), startInput())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := svc.Advance(context.Background(), session.ID, "staff-1"); err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if _, err := svc.Stop(context.Background(), session.ID, "staff-1"); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	next, err := svc.Start(context.Background(), startInput())
	if err != nil {
		t.Fatalf("restart: %v", err)
	}
	if next.CurrentQueueIndex != 0 {
		t.Errorf("fresh session index = %d, want 0", next.CurrentQueueIndex)
	}
	if next.ID == session.ID {
		t.Error("restart reused the old session id")
	}
}

func TestArchiveFailureLeavesSessionRunning(t *testing.T) {
	sessions := newFakeSessionRepo()
	svc := newSessionService(sessions, &fakeEntryRepo{})

	session, err := svc.Start(context.Background(), startInput())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	sessions.archiveErr = errors.New("history insert failed")
	_, err = svc.Stop(context.Background(), session.ID, "staff-1")
	if code := domainCode(t, err); code != "ARCHIVE_FAILED" {
		t.Errorf("code = %s, want ARCHIVE_FAILED", code)
	}

	current, err := sessions.GetByID(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if !current.IsRunning {
		t.Error("session lost running state despite failed archive")
	}
	if len(sessions.records) != 0 {
		t.Errorf("records = %d, want 0", len(sessions.records))
	}

	// Retrying the stop after the store recovers succeeds.
	sessions.archiveErr = nil
	if _, err := svc.Stop(context.Background(), session.ID, "staff-1"); err != nil {
		t.Fatalf("retried Stop: %v", err)
	}
	if len(sessions.records) != 1 {
		t.Errorf("records = %d, want 1 after retry", len(sessions.records))
	}
}

func TestUpdateDoctorsReplacesRoster(t *testing.T) {
	svc := newSessionService(newFakeSessionRepo(), &fakeEntryRepo{})
	session, err := svc.Start(context.Background(), startInput())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	updated, err := svc.UpdateDoctors(context.Background(), session.ID, "staff-1", []domain.Doctor{
		{ID: "doc-3", Name: "Dr. Varga"},
	})
	if err != nil {
		t.Fatalf("UpdateDoctors: %v", err)
	}
	if len(updated.Doctors) != 1 || updated.Doctors[0].ID != "doc-3" {
		t.Errorf("Doctors = %+v, want [doc-3]", updated.Doctors)
	}

	if _, err := svc.Stop(context.Background(), session.ID, "staff-1"); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	_, err = svc.UpdateDoctors(context.Background(), session.ID, "staff-1", nil)
	if code := domainCode(t, err); code != "SESSION_NOT_RUNNING" {
		t.Errorf("code = %s, want SESSION_NOT_RUNNING", code)
	}
}

func TestStartValidation(t *testing.T) {
	svc := newSessionService(newFakeSessionRepo(), &fakeEntryRepo{})

	cases := []struct {
		name  string
		input SessionStartInput
	}{
		{"missing runner", SessionStartInput{RunnerName: "Dr. Reyes"}},
		{"blank runner name", SessionStartInput{RunnerID: "staff-1", RunnerName: "  "}},
		{"doctor without name", SessionStartInput{
			RunnerID:   "staff-1",
			RunnerName: "Dr. Reyes",
			Doctors:    []domain.Doctor{{ID: "doc-1"}},
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Start(context.Background(), tc.input)
			if code := domainCode(t, err); code != "VALIDATION_FAILED" {
				t.Errorf("code = %s, want VALIDATION_FAILED", code)
			}
		})
	}
}

func TestCurrentWithoutSessions(t *testing.T) {
	svc := newSessionService(newFakeSessionRepo(), &fakeEntryRepo{})
	session, err := svc.Current(context.Background())
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if session.IsRunning {
		t.Error("idle shell reports running")
	}
	if session.Doctors == nil {
		t.Error("idle shell has nil doctors")
	}
}
