package service

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stemsplit/api/internal/model"
	"github.com/stemsplit/api/internal/store"
)

func TestSweepEvictsExpiredJobs(t *testing.T) {
	st := store.New()
	uploadsDir := t.TempDir()
	outputsDir := t.TempDir()
	sweeper := NewRetentionSweeper(st, uploadsDir, outputsDir, time.Hour)

	mkJob := func(id string, age time.Duration) {
		t.Helper()
		for _, root := range []string{uploadsDir, outputsDir} {
			if err := os.MkdirAll(filepath.Join(root, id), 0o755); err != nil {
				t.Fatal(err)
			}
		}
		st.Create(model.Job{ID: id, Status: model.StatusDone, CreatedAt: time.Now().Add(-age)})
	}

	mkJob("expired", 2*time.Hour)
	mkJob("fresh", time.Minute)

	if n := sweeper.Sweep(); n != 1 {
		t.Fatalf("evicted = %d, want 1", n)
	}

	if _, err := st.Get("expired"); !errors.Is(err, store.ErrNotFound) {
		t.Error("expired job should be gone from the store")
	}
	for _, root := range []string{uploadsDir, outputsDir} {
		if _, err := os.Stat(filepath.Join(root, "expired")); !errors.Is(err, os.ErrNotExist) {
			t.Errorf("expired directory under %s should be removed", root)
		}
	}

	if _, err := st.Get("fresh"); err != nil {
		t.Error("fresh job must survive the sweep")
	}
	if _, err := os.Stat(filepath.Join(uploadsDir, "fresh")); err != nil {
		t.Error("fresh job directory must survive the sweep")
	}
}

func TestSweepIgnoresMissingDirectories(t *testing.T) {
	st := store.New()
	sweeper := NewRetentionSweeper(st, t.TempDir(), t.TempDir(), time.Hour)

	// Record with no files on disk; deletion is idempotent.
	st.Create(model.Job{ID: "ghost", Status: model.StatusError, CreatedAt: time.Now().Add(-2 * time.Hour)})

	if n := sweeper.Sweep(); n != 1 {
		t.Fatalf("evicted = %d, want 1", n)
	}
	if n := sweeper.Sweep(); n != 0 {
		t.Fatalf("second sweep evicted = %d, want 0", n)
	}
}
