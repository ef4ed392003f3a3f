package repository

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/gradewatch/internal/models"
)

// SnapshotRow is one entry in the append-only capture log. The newest row's
// timestamp marks the comparison baseline.
type SnapshotRow struct {
	ID        uint      `gorm:"primaryKey"`
	Timestamp time.Time `gorm:"not null;index"`
	CreatedAt time.Time
}

// TableName keeps the historical table name.
func (SnapshotRow) TableName() string { return "snapshots" }

// SectionRow is the stored form of a course section.
type SectionRow struct {
	SectionID    string    `gorm:"primaryKey;size:64"`
	CourseTitle  string    `gorm:"size:255;not null"`
	SectionTitle string    `gorm:"size:255"`
	LastUpdated  time.Time `gorm:"not null"`
}

func (SectionRow) TableName() string { return "sections" }

// PeriodRow is the stored form of a grading period.
type PeriodRow struct {
	PeriodID    string    `gorm:"primaryKey;size:128"`
	SectionID   string    `gorm:"size:64;not null;index"`
	Name        string    `gorm:"size:255;not null"`
	LastUpdated time.Time `gorm:"not null"`
}

func (PeriodRow) TableName() string { return "periods" }

// CategoryRow is the stored form of a grading category. Category IDs repeat
// across periods, so the key is composite.
type CategoryRow struct {
	CategoryID  int                 `gorm:"primaryKey;autoIncrement:false"`
	PeriodID    string              `gorm:"primaryKey;size:128"`
	Name        string              `gorm:"size:255;not null"`
	Weight      decimal.NullDecimal `gorm:"type:text"`
	LastUpdated time.Time           `gorm:"not null"`
}

func (CategoryRow) TableName() string { return "categories" }

// AssignmentRow is the stored form of an assignment, denormalized with its
// ancestry names so change reports never re-traverse the tree.
type AssignmentRow struct {
	AssignmentID string              `gorm:"primaryKey;size:64"`
	CategoryID   int                 `gorm:"index:idx_assignments_category"`
	PeriodID     string              `gorm:"size:128;not null;index:idx_assignments_category"`
	Title        string              `gorm:"size:255;not null"`
	EarnedPoints decimal.NullDecimal `gorm:"type:text"`
	MaxPoints    decimal.NullDecimal `gorm:"type:text"`
	Exception    string              `gorm:"size:16"`
	Comment      string              `gorm:"type:text"`
	DueDate      *time.Time
	SectionName  string    `gorm:"size:255"`
	PeriodName   string    `gorm:"size:255"`
	CategoryName string    `gorm:"size:255"`
	LastUpdated  time.Time `gorm:"not null"`
}

func (AssignmentRow) TableName() string { return "assignments" }

// StoreModels lists every persisted row type for migration.
func StoreModels() []any {
	return []any{&SnapshotRow{}, &SectionRow{}, &PeriodRow{}, &CategoryRow{}, &AssignmentRow{}}
}

func newAssignmentRow(ctx models.AssignmentContext, ts time.Time) AssignmentRow {
	a := ctx.Assignment
	return AssignmentRow{
		AssignmentID: a.AssignmentID,
		CategoryID:   ctx.Category.CategoryID,
		PeriodID:     ctx.Period.PeriodID,
		Title:        a.Title,
		EarnedPoints: a.EarnedPoints,
		MaxPoints:    a.MaxPoints,
		Exception:    string(a.Exception),
		Comment:      a.CommentOrDefault(),
		DueDate:      a.DueDate,
		SectionName:  ctx.Section.FullName(),
		PeriodName:   ctx.Period.Name,
		CategoryName: ctx.Category.Name,
		LastUpdated:  ts,
	}
}

func (r AssignmentRow) toAssignment() models.Assignment {
	comment := r.Comment
	if comment == "" {
		comment = models.DefaultComment
	}

	return models.Assignment{
		AssignmentID: r.AssignmentID,
		Title:        r.Title,
		EarnedPoints: r.EarnedPoints,
		MaxPoints:    r.MaxPoints,
		Exception:    models.Exception(r.Exception),
		Comment:      comment,
		DueDate:      r.DueDate,
	}
}
