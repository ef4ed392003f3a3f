package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/gradewatch/internal/models"
)

// GradeStore persists the latest known value of every gradebook entity and
// answers point lookups by stable external ID. Reads may run concurrently
// with each other; the caller serializes reads against an in-flight save.
type GradeStore interface {
	// SaveSnapshot upserts the whole tree and appends a snapshot-metadata
	// row inside one transaction. On error nothing is written and the prior
	// baseline stays authoritative.
	SaveSnapshot(ctx context.Context, data *models.GradeData) (uint, error)
	// GetAssignment returns the stored assignment, or nil when unseen.
	GetAssignment(ctx context.Context, assignmentID string) (*models.Assignment, error)
	// GetSection reconstructs the full nested tree for one section.
	GetSection(ctx context.Context, sectionID string) (*models.Section, error)
	// LatestSnapshotTime returns the baseline capture time, nil on first run.
	LatestSnapshotTime(ctx context.Context) (*time.Time, error)
	// ClearAll wipes every row. Test support.
	ClearAll(ctx context.Context) error
}

// ErrSectionNotFound indicates the requested section has never been stored.
var ErrSectionNotFound = errors.New("section not found")

type gormGradeStore struct {
	db     *gorm.DB
	logger zerolog.Logger
}

// NewGradeStore builds a GORM-backed grade store and migrates its schema.
func NewGradeStore(db *gorm.DB, logger zerolog.Logger) (GradeStore, error) {
	if err := db.AutoMigrate(StoreModels()...); err != nil {
		return nil, fmt.Errorf("failed to migrate grade store schema: %w", err)
	}

	return &gormGradeStore{
		db:     db,
		logger: logger.With().Str("component", "grade_store").Logger(),
	}, nil
}

func (s *gormGradeStore) SaveSnapshot(ctx context.Context, data *models.GradeData) (uint, error) {
	snapshot := SnapshotRow{Timestamp: data.Timestamp}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&snapshot).Error; err != nil {
			return err
		}

		ts := data.Timestamp
		for si := range data.Sections {
			section := &data.Sections[si]
			row := SectionRow{
				SectionID:    section.SectionID,
				CourseTitle:  section.CourseTitle,
				SectionTitle: section.SectionTitle,
				LastUpdated:  ts,
			}
			if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error; err != nil {
				return err
			}

			for pi := range section.Periods {
				period := &section.Periods[pi]
				if err := s.savePeriod(tx, section, period, ts); err != nil {
					return err
				}
			}
		}

		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to save snapshot: %w", err)
	}

	s.logger.Info().
		Uint("snapshot_id", snapshot.ID).
		Int("sections", len(data.Sections)).
		Msg("snapshot saved")

	return snapshot.ID, nil
}

func (s *gormGradeStore) savePeriod(tx *gorm.DB, section *models.Section, period *models.Period, ts time.Time) error {
	row := PeriodRow{
		PeriodID:    period.PeriodID,
		SectionID:   section.SectionID,
		Name:        period.Name,
		LastUpdated: ts,
	}
	if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error; err != nil {
		return err
	}

	for ci := range period.Categories {
		category := &period.Categories[ci]
		catRow := CategoryRow{
			CategoryID:  category.CategoryID,
			PeriodID:    period.PeriodID,
			Name:        category.Name,
			Weight:      category.Weight,
			LastUpdated: ts,
		}
		if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&catRow).Error; err != nil {
			return err
		}

		for ai := range category.Assignments {
			row := newAssignmentRow(models.AssignmentContext{
				Section:    section,
				Period:     period,
				Category:   category,
				Assignment: &category.Assignments[ai],
			}, ts)
			if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error; err != nil {
				return err
			}
		}
	}

	return nil
}

func (s *gormGradeStore) GetAssignment(ctx context.Context, assignmentID string) (*models.Assignment, error) {
	var row AssignmentRow
	err := s.db.WithContext(ctx).First(&row, "assignment_id = ?", assignmentID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load assignment %s: %w", assignmentID, err)
	}

	assignment := row.toAssignment()
	return &assignment, nil
}

func (s *gormGradeStore) GetSection(ctx context.Context, sectionID string) (*models.Section, error) {
	var sectionRow SectionRow
	err := s.db.WithContext(ctx).First(&sectionRow, "section_id = ?", sectionID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSectionNotFound
		}
		return nil, fmt.Errorf("failed to load section %s: %w", sectionID, err)
	}

	section := models.Section{
		SectionID:    sectionRow.SectionID,
		CourseTitle:  sectionRow.CourseTitle,
		SectionTitle: sectionRow.SectionTitle,
	}

	var periodRows []PeriodRow
	if err := s.db.WithContext(ctx).Where("section_id = ?", sectionID).Order("period_id").Find(&periodRows).Error; err != nil {
		return nil, fmt.Errorf("failed to load periods for section %s: %w", sectionID, err)
	}

	for _, periodRow := range periodRows {
		period, err := s.loadPeriod(ctx, periodRow)
		if err != nil {
			return nil, err
		}
		section.Periods = append(section.Periods, period)
	}

	return &section, nil
}

func (s *gormGradeStore) loadPeriod(ctx context.Context, periodRow PeriodRow) (models.Period, error) {
	period := models.Period{
		PeriodID: periodRow.PeriodID,
		Name:     periodRow.Name,
	}

	var categoryRows []CategoryRow
	err := s.db.WithContext(ctx).Where("period_id = ?", periodRow.PeriodID).Order("category_id").Find(&categoryRows).Error
	if err != nil {
		return models.Period{}, fmt.Errorf("failed to load categories for period %s: %w", periodRow.PeriodID, err)
	}

	for _, categoryRow := range categoryRows {
		category := models.Category{
			CategoryID: categoryRow.CategoryID,
			Name:       categoryRow.Name,
			Weight:     categoryRow.Weight,
		}

		var assignmentRows []AssignmentRow
		err := s.db.WithContext(ctx).
			Where("category_id = ? AND period_id = ?", categoryRow.CategoryID, categoryRow.PeriodID).
			Order("assignment_id").
			Find(&assignmentRows).Error
		if err != nil {
			return models.Period{}, fmt.Errorf("failed to load assignments for period %s: %w", periodRow.PeriodID, err)
		}

		for _, row := range assignmentRows {
			category.Assignments = append(category.Assignments, row.toAssignment())
		}

		period.Categories = append(period.Categories, category)
	}

	return period, nil
}

func (s *gormGradeStore) LatestSnapshotTime(ctx context.Context) (*time.Time, error) {
	var row SnapshotRow
	err := s.db.WithContext(ctx).Order("id DESC").First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load latest snapshot: %w", err)
	}

	ts := row.Timestamp
	return &ts, nil
}

func (s *gormGradeStore) ClearAll(ctx context.Context) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, model := range []any{&AssignmentRow{}, &CategoryRow{}, &PeriodRow{}, &SectionRow{}, &SnapshotRow{}} {
			if err := tx.Where("1 = 1").Delete(model).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to clear grade store: %w", err)
	}

	s.logger.Info().Msg("grade store cleared")
	return nil
}
