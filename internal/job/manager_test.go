package job

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestCleanup(t *testing.T) {
	m := NewManager(time.Hour)

	// Old finished job (2 hours ago)
	old := m.Create("local", "artists", nil)
	m.Update(old.ID, func(j *Job) { j.Status = StatusCompleted })
	m.mu.Lock()
	past := time.Now().Add(-2 * time.Hour)
	m.jobs[old.ID].CompletedAt = &past
	m.mu.Unlock()

	recent := m.Create("local", "albums", Args{"artist": "Air"})
	m.Update(recent.ID, func(j *Job) { j.Status = StatusCompleted })

	// Running jobs are never cleaned
	running := m.Create("local", "tracks", nil)
	m.Update(running.ID, func(j *Job) { j.Status = StatusRunning })

	m.cleanup()

	if _, err := m.Get(old.ID); err == nil {
		t.Error("old completed job should have been cleaned up")
	}
	if _, err := m.Get(recent.ID); err != nil {
		t.Error("recent completed job should NOT have been cleaned up")
	}
	if _, err := m.Get(running.ID); err != nil {
		t.Error("running job should NOT have been cleaned up")
	}
}

func TestCreateUniqueIDs(t *testing.T) {
	m := NewManager(0)

	ids := make(map[string]bool)
	for i := 0; i < 100; i++ {
		job := m.Create("local", "artists", nil)
		if ids[job.ID] {
			t.Fatalf("duplicate job ID: %s", job.ID)
		}
		if !strings.HasPrefix(job.ID, "job-") {
			t.Fatalf("job ID %q should have job- prefix", job.ID)
		}
		ids[job.ID] = true
	}
}

func TestUpdateTimestamps(t *testing.T) {
	m := NewManager(0)
	job := m.Create("local", "artists", nil)

	m.Update(job.ID, func(j *Job) { j.Status = StatusRunning })
	got, _ := m.Get(job.ID)
	if got.StartedAt == nil {
		t.Fatal("StartedAt should be set on running")
	}
	if got.CompletedAt != nil {
		t.Fatal("CompletedAt should not be set yet")
	}

	m.Update(job.ID, func(j *Job) {
		j.Status = StatusFailed
		j.Error = "boom"
	})
	got, _ = m.Get(job.ID)
	if got.CompletedAt == nil {
		t.Fatal("CompletedAt should be set on failure")
	}
	if got.Error != "boom" {
		t.Errorf("Error = %q, want boom", got.Error)
	}
}

func TestUpdateUnknownJob(t *testing.T) {
	m := NewManager(0)
	if err := m.Update("job-missing", func(*Job) {}); err == nil {
		t.Error("expected error for unknown job")
	}
	if err := m.Cancel("job-missing"); err == nil {
		t.Error("expected error cancelling unknown job")
	}
}

func TestSubscribe(t *testing.T) {
	m := NewManager(0)
	ch := m.Subscribe()

	job := m.Create("local", "artists", nil)
	m.Update(job.ID, func(j *Job) { j.Status = StatusCompleted })

	var statuses []Status
	for i := 0; i < 2; i++ {
		select {
		case j := <-ch:
			statuses = append(statuses, j.Status)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for update")
		}
	}
	if statuses[0] != StatusPending || statuses[1] != StatusCompleted {
		t.Errorf("statuses = %v", statuses)
	}

	m.Unsubscribe(ch)
	if _, ok := <-ch; ok {
		t.Error("channel should be closed after Unsubscribe")
	}
}

func TestCancelInvokesCancelFunc(t *testing.T) {
	m := NewManager(0)
	job := m.Create("local", "artists", nil)

	ctx, cancel := context.WithCancel(context.Background())
	m.setCancel(job.ID, cancel)

	if err := m.Cancel(job.ID); err != nil {
		t.Fatalf("Cancel() error: %v", err)
	}
	select {
	case <-ctx.Done():
	default:
		t.Error("cancel func should have been invoked")
	}
}

func TestListOrder(t *testing.T) {
	m := NewManager(0)
	a := m.Create("local", "artists", nil)
	time.Sleep(time.Millisecond)
	b := m.Create("local", "albums", nil)

	jobs := m.List()
	if len(jobs) != 2 || jobs[0].ID != a.ID || jobs[1].ID != b.ID {
		t.Errorf("List() should be oldest first, got %v", jobs)
	}
}
