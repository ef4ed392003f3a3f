package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gradewatch/internal/models"
	"github.com/noah-isme/gradewatch/internal/observability"
)

// Fetcher produces one complete gradebook capture per cycle. Implementations
// own all network/file I/O, retries, and provider ID reconciliation.
type Fetcher interface {
	Fetch(ctx context.Context) (*models.GradeData, error)
}

// Notifier delivers a change report. Called only when a report has changes.
type Notifier interface {
	Notify(ctx context.Context, report *models.ChangeReport) error
}

// PipelineService runs one monitoring cycle: fetch, validate, detect,
// notify, log. It never retries internally; any failure propagates to the
// scheduling caller.
type PipelineService struct {
	fetcher    Fetcher
	comparator *ComparatorService
	notifier   Notifier
	changeLog  *ChangeLogService
	validator  *validator.Validate
	logger     zerolog.Logger

	mu         sync.RWMutex
	lastReport *models.ChangeReport
	lastRunAt  time.Time
}

// NewPipelineService wires a pipeline from its collaborators. The notifier
// and change log may be nil.
func NewPipelineService(fetcher Fetcher, comparator *ComparatorService, notifier Notifier, changeLog *ChangeLogService, validate *validator.Validate, logger zerolog.Logger) *PipelineService {
	return &PipelineService{
		fetcher:    fetcher,
		comparator: comparator,
		notifier:   notifier,
		changeLog:  changeLog,
		validator:  validate,
		logger:     logger.With().Str("component", "pipeline").Logger(),
	}
}

// RunCycle executes one full monitoring cycle and returns the report.
func (s *PipelineService) RunCycle(ctx context.Context) (*models.ChangeReport, error) {
	started := time.Now()
	cycleID := uuid.NewString()
	logger := s.logger.With().Str("cycle_id", cycleID).Logger()

	logger.Info().Msg("cycle started")

	data, err := s.fetcher.Fetch(ctx)
	if err != nil {
		observability.CycleRuns().WithLabelValues("fetch_error").Inc()
		return nil, fmt.Errorf("fetch failed: %w", err)
	}

	if err := s.validator.Struct(data); err != nil {
		observability.CycleRuns().WithLabelValues("invalid_snapshot").Inc()
		return nil, fmt.Errorf("snapshot rejected: %w", err)
	}

	report, err := s.comparator.DetectChanges(ctx, data)
	if err != nil {
		observability.CycleRuns().WithLabelValues("detect_error").Inc()
		return nil, err
	}

	notified := false
	if report.HasChanges() && s.notifier != nil {
		if err := s.notifier.Notify(ctx, report); err != nil {
			// Delivery failure never rolls back detection; the baseline has
			// already advanced.
			logger.Warn().Err(err).Msg("failed to deliver change notification")
		} else {
			notified = true
		}
	}

	if s.changeLog != nil {
		if err := s.changeLog.Append(report, notified); err != nil {
			logger.Warn().Err(err).Msg("failed to append change history entry")
		}
		if err := s.changeLog.Cleanup(); err != nil {
			logger.Warn().Err(err).Msg("change history cleanup failed")
		}
	}

	s.recordRun(report)
	observability.CycleRuns().WithLabelValues("ok").Inc()
	observability.ObserveReport(report)

	logger.Info().
		Dur("duration", time.Since(started)).
		Bool("initial", report.IsInitial).
		Int("changes", len(report.Changes)).
		Str("summary", report.Summary()).
		Msg("cycle complete")

	return report, nil
}

func (s *PipelineService) recordRun(report *models.ChangeReport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastReport = report
	s.lastRunAt = time.Now()
}

// LastReport returns the most recent report and when it was produced.
func (s *PipelineService) LastReport() (*models.ChangeReport, time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastReport, s.lastRunAt, s.lastReport != nil
}
