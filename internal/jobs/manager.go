package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"mediadrop/internal/domain"
)

// FileRunner is the supervisor capability the manager drives: spawn the
// extractor in to-disk mode and report progress until one terminal event.
type FileRunner interface {
	RunToFile(ctx context.Context, ref domain.MediaReference, profile domain.PlatformProfile, selector, dir, base string) <-chan domain.ProgressEvent
}

// Stats is a point-in-time census of the job table.
type Stats struct {
	Pending     int `json:"pending"`
	Downloading int `json:"downloading"`
	Completed   int `json:"completed"`
	Failed      int `json:"failed"`
}

type entry struct {
	mu  sync.Mutex
	job domain.Job
	b   *broadcaster
}

// Manager owns the in-memory table of download jobs. All lifecycle
// transitions are driven by the supervisor's event stream; nothing else may
// mutate a job. Mutation is per-entry so unrelated jobs never contend.
type Manager struct {
	mu      sync.RWMutex
	entries map[string]*entry

	runner      FileRunner
	downloadDir string
	logger      zerolog.Logger

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewManager builds a job manager writing artifacts into downloadDir.
func NewManager(runner FileRunner, downloadDir string, logger zerolog.Logger) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		entries:     map[string]*entry{},
		runner:      runner,
		downloadDir: downloadDir,
		logger:      logger.With().Str("component", "jobs").Logger(),
		baseCtx:     ctx,
		cancel:      cancel,
	}
}

// Start allocates a job, inserts it as pending, and kicks off the download
// asynchronously. It returns immediately with the pending snapshot.
func (m *Manager) Start(ref domain.MediaReference, profile domain.PlatformProfile, selector string) domain.Job {
	now := time.Now().UTC()
	e := &entry{
		job: domain.Job{
			ID:        uuid.NewString(),
			Ref:       ref,
			Selector:  selector,
			Status:    domain.JobStatusPending,
			CreatedAt: now,
			UpdatedAt: now,
		},
		b: newBroadcaster(),
	}

	m.mu.Lock()
	m.entries[e.job.ID] = e
	m.mu.Unlock()

	m.logger.Info().Str("job_id", e.job.ID).Str("url", ref.CanonicalURL).
		Str("selector", selector).Msg("job created")

	m.wg.Add(1)
	go m.run(e, profile)

	return e.job
}

// Get returns a snapshot copy of a job, ErrNotFound when unknown or pruned.
func (m *Manager) Get(id string) (domain.Job, error) {
	m.mu.RLock()
	e, ok := m.entries[id]
	m.mu.RUnlock()
	if !ok {
		return domain.Job{}, domain.ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.job, nil
}

// Subscribe attaches to a job's event stream. Jobs already terminal yield a
// stream that replays the terminal event and closes immediately.
func (m *Manager) Subscribe(id string) (<-chan domain.ProgressEvent, func(), error) {
	m.mu.RLock()
	e, ok := m.entries[id]
	m.mu.RUnlock()
	if !ok {
		return nil, nil, domain.ErrNotFound
	}
	ch, cancel := e.b.subscribe()
	return ch, cancel, nil
}

// AttachTitle records late-arriving metadata on the job for later polling.
// It never touches lifecycle state.
func (m *Manager) AttachTitle(id, title string) {
	m.mu.RLock()
	e, ok := m.entries[id]
	m.mu.RUnlock()
	if !ok || title == "" {
		return
	}
	e.mu.Lock()
	if e.job.Title == "" {
		e.job.Title = title
	}
	e.mu.Unlock()
}

// Stats counts jobs by state.
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var s Stats
	for _, e := range m.entries {
		e.mu.Lock()
		status := e.job.Status
		e.mu.Unlock()
		switch status {
		case domain.JobStatusPending:
			s.Pending++
		case domain.JobStatusDownloading:
			s.Downloading++
		case domain.JobStatusCompleted:
			s.Completed++
		case domain.JobStatusError:
			s.Failed++
		}
	}
	return s
}

// Shutdown cancels all in-flight subprocesses and waits for their
// goroutines to drain.
func (m *Manager) Shutdown() {
	m.cancel()
	m.wg.Wait()
}

// run consumes the supervisor's event stream and applies transitions.
func (m *Manager) run(e *entry, profile domain.PlatformProfile) {
	defer m.wg.Done()

	e.mu.Lock()
	jobID := e.job.ID
	ref := e.job.Ref
	selector := e.job.Selector
	e.job.Status = domain.JobStatusDownloading
	e.job.UpdatedAt = time.Now().UTC()
	e.mu.Unlock()
	e.b.publish(domain.ProgressEvent{JobID: jobID, Type: domain.EventProgress, Progress: 0})

	events := m.runner.RunToFile(m.baseCtx, ref, profile, selector, m.downloadDir, jobID)
	for ev := range events {
		ev.JobID = jobID
		m.apply(e, ev)
	}
}

// apply folds one supervisor event into the job record, enforcing monotonic
// progress: regressed values are logged and dropped, never applied.
func (m *Manager) apply(e *entry, ev domain.ProgressEvent) {
	e.mu.Lock()
	switch ev.Type {
	case domain.EventProgress:
		if have := e.job.Progress; ev.Progress < have {
			e.mu.Unlock()
			m.logger.Debug().Str("job_id", ev.JobID).
				Int("have", have).Int("got", ev.Progress).
				Msg("ignoring regressed progress value")
			return
		}
		e.job.Progress = ev.Progress
		e.job.UpdatedAt = time.Now().UTC()
	case domain.EventCompleted:
		now := time.Now().UTC()
		e.job.Status = domain.JobStatusCompleted
		e.job.Progress = 100
		e.job.FilePath = ev.FilePath
		e.job.FileName = ev.FileName
		e.job.UpdatedAt = now
		e.job.CompletedAt = now
	case domain.EventError:
		now := time.Now().UTC()
		e.job.Status = domain.JobStatusError
		e.job.Error = ev.Error
		e.job.UpdatedAt = now
		e.job.CompletedAt = now
	}
	e.mu.Unlock()

	if ev.Terminal() {
		if ev.Type == domain.EventError {
			m.logger.Error().Str("job_id", ev.JobID).Str("error", ev.Error).Msg("job failed")
		} else {
			m.logger.Info().Str("job_id", ev.JobID).Str("file", ev.FilePath).Msg("job completed")
		}
	}
	e.b.publish(ev)
}
