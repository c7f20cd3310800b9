package domain

import (
	"testing"
	"time"
)

func TestElapsedWhileRunning(t *testing.T) {
	start := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	now := start.Add(45 * time.Minute)
	session := &QueueSession{IsRunning: true, StartTime: &start, ElapsedMs: 0}

	if got, want := session.Elapsed(now), 45*time.Minute; got != want {
		t.Errorf("Elapsed = %v, want %v", got, want)
	}
}

func TestElapsedAccumulates(t *testing.T) {
	start := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	now := start.Add(10 * time.Second)
	session := &QueueSession{IsRunning: true, StartTime: &start, ElapsedMs: 5000}

	if got, want := session.Elapsed(now), 15*time.Second; got != want {
		t.Errorf("Elapsed = %v, want %v", got, want)
	}
}

func TestElapsedStopped(t *testing.T) {
	session := &QueueSession{IsRunning: false, ElapsedMs: 90000}
	if got, want := session.Elapsed(time.Now()), 90*time.Second; got != want {
		t.Errorf("Elapsed = %v, want %v", got, want)
	}
}
