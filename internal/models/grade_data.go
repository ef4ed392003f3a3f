package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Category is a weighted bucket of assignments. CategoryID is unique only
// within its period; 0 means uncategorized.
type Category struct {
	CategoryID  int
	Name        string
	Weight      decimal.NullDecimal
	Assignments []Assignment `validate:"dive"`
}

// Period is one grading period (term/semester) within a section. PeriodID is
// composed from the section ID and the period title upstream, so it is
// globally unique.
type Period struct {
	PeriodID   string `validate:"required"`
	Name       string
	Categories []Category `validate:"dive"`
}

// Section is one course section.
type Section struct {
	SectionID    string `validate:"required"`
	CourseTitle  string
	SectionTitle string
	Periods      []Period `validate:"dive"`
}

// FullName joins course and section titles for display.
func (s Section) FullName() string {
	if s.SectionTitle != "" {
		return s.CourseTitle + ": " + s.SectionTitle
	}
	return s.CourseTitle
}

// GradeData is the root of one gradebook capture. Instances are transient:
// built by the fetcher, consumed by the comparator, then discarded. Durable
// state lives in the grade store only.
type GradeData struct {
	Timestamp time.Time
	Sections  []Section `validate:"dive"`
}

// AssignmentContext pairs an assignment with its ancestry for reporting.
type AssignmentContext struct {
	Section    *Section
	Period     *Period
	Category   *Category
	Assignment *Assignment
}

// AllAssignments walks the tree in capture order and returns every
// assignment with its context.
func (g *GradeData) AllAssignments() []AssignmentContext {
	var out []AssignmentContext
	for si := range g.Sections {
		section := &g.Sections[si]
		for pi := range section.Periods {
			period := &section.Periods[pi]
			for ci := range period.Categories {
				category := &period.Categories[ci]
				for ai := range category.Assignments {
					out = append(out, AssignmentContext{
						Section:    section,
						Period:     period,
						Category:   category,
						Assignment: &category.Assignments[ai],
					})
				}
			}
		}
	}
	return out
}

// FindAssignment locates an assignment by its stable ID, or nil.
func (g *GradeData) FindAssignment(assignmentID string) *Assignment {
	for _, ctx := range g.AllAssignments() {
		if ctx.Assignment.AssignmentID == assignmentID {
			return ctx.Assignment
		}
	}
	return nil
}
