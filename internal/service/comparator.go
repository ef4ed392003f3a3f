package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/noah-isme/gradewatch/internal/models"
	"github.com/noah-isme/gradewatch/internal/repository"
)

// ComparatorService detects meaningful grade changes by comparing a fresh
// capture against the stored baseline, keyed by stable assignment IDs. It
// performs no I/O besides the store and never retries; storage failures
// surface to the pipeline caller with the baseline untouched.
type ComparatorService struct {
	store  repository.GradeStore
	logger zerolog.Logger
}

// NewComparatorService builds a comparator over the given store.
func NewComparatorService(store repository.GradeStore, logger zerolog.Logger) *ComparatorService {
	return &ComparatorService{
		store:  store,
		logger: logger.With().Str("component", "comparator").Logger(),
	}
}

// DetectChanges compares new data against the baseline, classifies every
// difference, advances the baseline, and returns the report. The first
// capture is saved silently: is_initial is set and no changes are emitted.
func (s *ComparatorService) DetectChanges(ctx context.Context, data *models.GradeData) (*models.ChangeReport, error) {
	lastSnapshot, err := s.store.LatestSnapshotTime(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read baseline: %w", err)
	}

	if lastSnapshot == nil {
		s.logger.Info().Msg("no previous data found, treating as initial capture")
		if _, err := s.store.SaveSnapshot(ctx, data); err != nil {
			return nil, err
		}
		return &models.ChangeReport{Timestamp: data.Timestamp, IsInitial: true}, nil
	}

	changes, err := s.compare(ctx, data)
	if err != nil {
		return nil, err
	}

	// Advancing the baseline is part of detection: if the save fails the
	// report is withheld so the next cycle re-detects the same changes.
	if _, err := s.store.SaveSnapshot(ctx, data); err != nil {
		return nil, err
	}

	report := &models.ChangeReport{
		Changes:   changes,
		Timestamp: data.Timestamp,
	}
	for _, change := range changes {
		switch change.ChangeType {
		case models.ChangeNewAssignment:
			report.NewAssignmentsCount++
		case models.ChangeGradeUpdated:
			report.GradeUpdatesCount++
		case models.ChangeCommentUpdated:
			report.CommentUpdatesCount++
		}
	}

	s.logger.Info().
		Int("changes", len(changes)).
		Str("summary", report.Summary()).
		Msg("comparison complete")

	return report, nil
}

func (s *ComparatorService) compare(ctx context.Context, data *models.GradeData) ([]models.GradeChange, error) {
	var changes []models.GradeChange

	for _, entry := range data.AllAssignments() {
		next := entry.Assignment

		// Ungraded placeholders are stored for future comparison but never
		// compared or reported.
		if !next.HasGrade() {
			continue
		}

		prev, err := s.store.GetAssignment(ctx, next.AssignmentID)
		if err != nil {
			return nil, err
		}

		switch {
		case prev == nil || !prev.HasGrade():
			// First time this assignment is seen graded. A prior ungraded
			// row still classifies as new: "this was just graded".
			changes = append(changes, models.GradeChange{
				AssignmentID:    next.AssignmentID,
				AssignmentTitle: next.Title,
				SectionName:     entry.Section.FullName(),
				PeriodName:      entry.Period.Name,
				CategoryName:    entry.Category.Name,
				NewGrade:        next.GradeString(),
				NewComment:      next.CommentOrDefault(),
				ChangeType:      models.ChangeNewAssignment,
				NewEarned:       next.EarnedPoints,
				NewMax:          next.MaxPoints,
			})

		case next.GradeChanged(*prev):
			changeType := models.ChangeGradeUpdated
			if pointsUnchanged(*next, *prev) {
				changeType = models.ChangeCommentUpdated
			}

			changes = append(changes, models.GradeChange{
				AssignmentID:    next.AssignmentID,
				AssignmentTitle: next.Title,
				SectionName:     entry.Section.FullName(),
				PeriodName:      entry.Period.Name,
				CategoryName:    entry.Category.Name,
				OldGrade:        prev.GradeString(),
				NewGrade:        next.GradeString(),
				OldComment:      prev.CommentOrDefault(),
				NewComment:      next.CommentOrDefault(),
				ChangeType:      changeType,
				NewEarned:       next.EarnedPoints,
				NewMax:          next.MaxPoints,
				OldEarned:       prev.EarnedPoints,
				OldMax:          prev.MaxPoints,
			})
		}
	}

	return changes, nil
}

// pointsUnchanged reports whether earned, max, and exception all match, in
// which case only the comment text moved.
func pointsUnchanged(next, prev models.Assignment) bool {
	probe := next
	probe.Comment = prev.Comment
	return !probe.GradeChanged(prev)
}
