package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/csvkeeper/internal/common"
	"github.com/dmitrijs2005/csvkeeper/internal/logging"
	"github.com/dmitrijs2005/csvkeeper/internal/server/blobs"
	"github.com/dmitrijs2005/csvkeeper/internal/server/models"
	"github.com/dmitrijs2005/csvkeeper/internal/server/notify"
	"github.com/dmitrijs2005/csvkeeper/internal/server/repositories/files"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"
)

// Clock abstracts time for the scheduler.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time                         { return time.Now() }
func (systemClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// SystemClock is the wall clock.
var SystemClock Clock = systemClock{}

// Notifier accepts owner notifications without blocking.
type Notifier interface {
	Enqueue(n notify.Notice) bool
}

type RetentionConfig struct {
	Window      time.Duration
	Schedule    string // standard 5-field cron expression
	Concurrency int
}

// SweepReport summarizes one retention run.
type SweepReport struct {
	Cutoff       time.Time
	Candidates   int
	Deleted      int
	BlobsMissing int
	Skipped      int
	Errors       []error
}

// RetentionService deletes files older than the retention window on a cron schedule.
type RetentionService struct {
	repo        files.Repository
	blobs       blobs.Store
	notifier    Notifier
	clock       Clock
	schedule    cron.Schedule
	window      time.Duration
	concurrency int
	logger      logging.Logger

	running atomic.Bool

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

func NewRetentionService(repo files.Repository, store blobs.Store, n Notifier, clock Clock,
	cfg RetentionConfig, l logging.Logger) (*RetentionService, error) {
	if cfg.Window <= 0 {
		return nil, fmt.Errorf("retention window must be positive, got %s", cfg.Window)
	}
	schedule, err := cron.ParseStandard(cfg.Schedule)
	if err != nil {
		return nil, fmt.Errorf("retention schedule %q: %w", cfg.Schedule, err)
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if clock == nil {
		clock = SystemClock
	}
	return &RetentionService{
		repo:        repo,
		blobs:       store,
		notifier:    n,
		clock:       clock,
		schedule:    schedule,
		window:      cfg.Window,
		concurrency: cfg.Concurrency,
		logger:      l.With("module", "retention"),
	}, nil
}

// Start runs sweeps at every schedule tick until ctx is done or Stop is called.
func (s *RetentionService) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop != nil {
		return
	}
	s.stop = make(chan struct{})
	s.done = make(chan struct{})

	go s.loop(ctx, s.stop, s.done)
}

// Stop ends the schedule loop and waits for a running sweep to finish.
func (s *RetentionService) Stop() {
	s.mu.Lock()
	stop, done := s.stop, s.done
	s.stop, s.done = nil, nil
	s.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
}

func (s *RetentionService) loop(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	for {
		now := s.clock.Now()
		next := s.schedule.Next(now)
		s.logger.Debug(ctx, "next retention sweep scheduled", "at", next)

		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-s.clock.After(next.Sub(now)):
		}

		report, err := s.RunOnce(ctx)
		if err != nil {
			s.logger.Error(ctx, "retention sweep failed", "error", err)
			continue
		}
		s.logger.Info(ctx, "retention sweep finished",
			"cutoff", report.Cutoff, "candidates", report.Candidates, "deleted", report.Deleted,
			"blobs_missing", report.BlobsMissing, "failed", len(report.Errors), "skipped", report.Skipped)
	}
}

// RunOnce performs a single sweep. Only one sweep runs at a time; a
// concurrent call gets common.ErrSweepInProgress. Per-record failures are
// collected in the report and never abort the run.
func (s *RetentionService) RunOnce(ctx context.Context) (*SweepReport, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, common.ErrSweepInProgress
	}
	defer s.running.Store(false)

	cutoff := s.clock.Now().Add(-s.window)
	candidates, err := s.repo.ListOlderThan(ctx, cutoff)
	if err != nil {
		return nil, &common.StoreError{Store: "metadata", Op: "list", Err: err}
	}

	report := &SweepReport{Cutoff: cutoff, Candidates: len(candidates)}
	var mu sync.Mutex

	g := new(errgroup.Group)
	g.SetLimit(s.concurrency)

	for _, rec := range candidates {
		if ctx.Err() != nil {
			mu.Lock()
			report.Skipped++
			mu.Unlock()
			continue
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				mu.Lock()
				report.Skipped++
				mu.Unlock()
				return nil
			}
			// a started candidate finishes both deletes even if ctx is cancelled meanwhile
			s.expire(context.WithoutCancel(ctx), rec, report, &mu)
			return nil
		})
	}
	_ = g.Wait()

	return report, nil
}

func (s *RetentionService) expire(ctx context.Context, rec *models.FileRecord, report *SweepReport, mu *sync.Mutex) {
	fail := func(step string, err error) {
		taskErr := &common.ScheduledTaskError{RecordID: rec.ID, Step: step, Err: err}
		s.logger.Error(ctx, "retention task failed", "id", rec.ID, "step", step, "error", err)
		mu.Lock()
		report.Errors = append(report.Errors, taskErr)
		mu.Unlock()
	}

	blobMissing := false
	if err := s.blobs.Delete(ctx, rec.BlobLocator); err != nil {
		if !errors.Is(err, common.ErrorNotFound) {
			fail("delete_blob", err)
			return
		}
		blobMissing = true
		s.logger.Warn(ctx, "blob already gone", "id", rec.ID, "blob", rec.BlobLocator)
	}

	if err := s.repo.Delete(ctx, rec.ID); err != nil && !errors.Is(err, common.ErrorNotFound) {
		fail("delete_metadata", err)
		return
	}

	mu.Lock()
	report.Deleted++
	if blobMissing {
		report.BlobsMissing++
	}
	mu.Unlock()

	s.logger.Info(ctx, "file expired", "id", rec.ID, "created_at", rec.CreatedAt)

	if s.notifier != nil {
		s.notifier.Enqueue(notify.Notice{
			OwnerID:     rec.OwnerID,
			DisplayName: rec.DisplayName,
			Days:        int(s.window / (24 * time.Hour)),
		})
	}
}
