package store

import (
	"sync"
	"testing"
	"time"

	"github.com/stemsplit/api/internal/model"
)

func newJob(id string) model.Job {
	return model.Job{
		ID:        id,
		Status:    model.StatusUploaded,
		Progress:  0,
		Stems:     []string{},
		CreatedAt: time.Now(),
	}
}

func TestCreateAndGet(t *testing.T) {
	s := New()

	if err := s.Create(newJob("a")); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	job, err := s.Get("a")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if job.Status != model.StatusUploaded {
		t.Errorf("status = %q, want %q", job.Status, model.StatusUploaded)
	}
	if job.Progress != 0 {
		t.Errorf("progress = %d, want 0", job.Progress)
	}
	if len(job.Stems) != 0 {
		t.Errorf("stems = %v, want empty", job.Stems)
	}
}

func TestCreateDuplicateID(t *testing.T) {
	s := New()

	if err := s.Create(newJob("a")); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := s.Create(newJob("a")); err != ErrDuplicateID {
		t.Errorf("err = %v, want ErrDuplicateID", err)
	}
}

func TestGetNotFound(t *testing.T) {
	s := New()

	if _, err := s.Get("missing"); err != ErrNotFound {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestGetReturnsCopy(t *testing.T) {
	s := New()

	job := newJob("a")
	job.Stems = []string{"vocals"}
	if err := s.Create(job); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	snap, _ := s.Get("a")
	snap.Stems[0] = "mutated"
	snap.Progress = 99

	fresh, _ := s.Get("a")
	if fresh.Stems[0] != "vocals" {
		t.Errorf("stored stems mutated through snapshot: %v", fresh.Stems)
	}
	if fresh.Progress != 0 {
		t.Errorf("stored progress mutated through snapshot: %d", fresh.Progress)
	}
}

func TestUpdate(t *testing.T) {
	s := New()
	s.Create(newJob("a"))

	err := s.Update("a", func(j *model.Job) {
		j.Progress = 42
	})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}

	job, _ := s.Get("a")
	if job.Progress != 42 {
		t.Errorf("progress = %d, want 42", job.Progress)
	}

	if err := s.Update("missing", func(j *model.Job) {}); err != ErrNotFound {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestTryTransition(t *testing.T) {
	s := New()
	s.Create(newJob("a"))

	if !s.TryTransition("a", model.StatusUploaded, model.StatusProcessing) {
		t.Fatal("first transition should succeed")
	}
	if s.TryTransition("a", model.StatusUploaded, model.StatusProcessing) {
		t.Fatal("second transition should fail")
	}
	if s.TryTransition("missing", model.StatusUploaded, model.StatusProcessing) {
		t.Fatal("transition on missing job should fail")
	}

	job, _ := s.Get("a")
	if job.Status != model.StatusProcessing {
		t.Errorf("status = %q, want %q", job.Status, model.StatusProcessing)
	}
}

func TestTryTransitionRace(t *testing.T) {
	s := New()
	s.Create(newJob("a"))

	const callers = 32
	wins := make(chan bool, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			wins <- s.TryTransition("a", model.StatusUploaded, model.StatusProcessing)
		}()
	}
	wg.Wait()
	close(wins)

	won := 0
	for ok := range wins {
		if ok {
			won++
		}
	}
	if won != 1 {
		t.Errorf("winners = %d, want exactly 1", won)
	}
}

func TestDeleteIdempotent(t *testing.T) {
	s := New()
	s.Create(newJob("a"))

	s.Delete("a")
	s.Delete("a")

	if _, err := s.Get("a"); err != ErrNotFound {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	if s.Len() != 0 {
		t.Errorf("len = %d, want 0", s.Len())
	}
}

func TestExpiredBefore(t *testing.T) {
	s := New()

	old := newJob("old")
	old.CreatedAt = time.Now().Add(-2 * time.Hour)
	s.Create(old)
	s.Create(newJob("fresh"))

	ids := s.ExpiredBefore(time.Now().Add(-time.Hour))
	if len(ids) != 1 || ids[0] != "old" {
		t.Errorf("expired = %v, want [old]", ids)
	}
}
