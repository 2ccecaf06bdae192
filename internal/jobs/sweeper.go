package jobs

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"

	"mediadrop/internal/domain"
)

// Sweeper deletes completed on-disk artifacts after the file retention
// window and prunes terminal job records after a separate, longer grace
// window so late status polls still resolve.
type Sweeper struct {
	manager       *Manager
	fileRetention time.Duration
	jobRetention  time.Duration
	interval      time.Duration
	logger        zerolog.Logger
}

// NewSweeper builds a sweeper over the given manager.
func NewSweeper(m *Manager, fileRetention, jobRetention time.Duration, logger zerolog.Logger) *Sweeper {
	if jobRetention < fileRetention {
		jobRetention = fileRetention
	}
	return &Sweeper{
		manager:       m,
		fileRetention: fileRetention,
		jobRetention:  jobRetention,
		interval:      time.Minute,
		logger:        logger.With().Str("component", "sweeper").Logger(),
	}
}

// Run ticks until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, pruned := s.Sweep(time.Now().UTC())
			if removed > 0 || pruned > 0 {
				s.logger.Info().Int("files_removed", removed).Int("jobs_pruned", pruned).Msg("sweep")
			}
		}
	}
}

// Sweep performs one pass and reports how many artifacts were removed and
// how many job records were pruned.
func (s *Sweeper) Sweep(now time.Time) (filesRemoved, jobsPruned int) {
	m := s.manager

	m.mu.RLock()
	ids := make([]string, 0, len(m.entries))
	for id := range m.entries {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	for _, id := range ids {
		m.mu.RLock()
		e, ok := m.entries[id]
		m.mu.RUnlock()
		if !ok {
			continue
		}

		e.mu.Lock()
		job := e.job
		expireFile := job.Status == domain.JobStatusCompleted &&
			job.FilePath != "" &&
			now.Sub(job.CompletedAt) >= s.fileRetention
		if expireFile {
			e.job.FilePath = ""
		}
		pruneRecord := job.Status.Terminal() && now.Sub(job.CompletedAt) >= s.jobRetention
		e.mu.Unlock()

		if expireFile {
			if err := os.Remove(job.FilePath); err != nil && !os.IsNotExist(err) {
				s.logger.Warn().Err(err).Str("path", job.FilePath).Msg("artifact removal failed")
			} else {
				filesRemoved++
			}
		}
		if pruneRecord {
			m.mu.Lock()
			delete(m.entries, id)
			m.mu.Unlock()
			jobsPruned++
		}
	}
	return filesRemoved, jobsPruned
}
