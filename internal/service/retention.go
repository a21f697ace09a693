package service

import (
	"context"
	"os"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/stemsplit/api/internal/store"
)

// RetentionSweeper evicts jobs past their time-to-live together with their
// on-disk directories. It is safe to run concurrently with active
// processing; only jobs old enough to be finished or abandoned are evicted.
type RetentionSweeper struct {
	store      *store.Store
	uploadsDir string
	outputsDir string
	ttl        time.Duration
}

func NewRetentionSweeper(st *store.Store, uploadsDir, outputsDir string, ttl time.Duration) *RetentionSweeper {
	return &RetentionSweeper{
		store:      st,
		uploadsDir: uploadsDir,
		outputsDir: outputsDir,
		ttl:        ttl,
	}
}

// Sweep evicts all expired jobs and returns how many were removed. Directory
// deletion is best-effort and idempotent.
func (s *RetentionSweeper) Sweep() int {
	cutoff := time.Now().Add(-s.ttl)
	ids := s.store.ExpiredBefore(cutoff)
	for _, id := range ids {
		os.RemoveAll(filepath.Join(s.uploadsDir, id))
		os.RemoveAll(filepath.Join(s.outputsDir, id))
		s.store.Delete(id)
	}
	if len(ids) > 0 {
		log.WithField("evicted", len(ids)).Info("retention sweep")
	}
	return len(ids)
}

// Run sweeps on a fixed interval until the context is cancelled.
func (s *RetentionSweeper) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}
