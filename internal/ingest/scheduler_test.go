package ingest

import (
	"context"
	"testing"
	"time"
)

func TestSchedulerStartIsIdempotent(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Vienna")
	if err != nil {
		t.Fatalf("load timezone: %v", err)
	}
	s := NewScheduler(nil, nil, nil, nil, loc)

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	s.Start(ctx) // second start must not register a second loop
	if !s.IsRunning() {
		t.Fatal("scheduler not running after Start")
	}

	cancel()
	deadline := time.After(2 * time.Second)
	for s.IsRunning() {
		select {
		case <-deadline:
			t.Fatal("scheduler still running after cancellation")
		case <-time.After(10 * time.Millisecond):
		}
	}
}
