package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ChangeType classifies one detected grade change.
type ChangeType string

const (
	ChangeNewAssignment  ChangeType = "new_assignment"
	ChangeGradeUpdated   ChangeType = "grade_updated"
	ChangeCommentUpdated ChangeType = "comment_updated"
)

var letterCutoffs = []struct {
	cutoff int64
	letter string
}{
	{97, "A+"}, {93, "A"}, {90, "A-"},
	{87, "B+"}, {83, "B"}, {80, "B-"},
	{77, "C+"}, {73, "C"}, {70, "C-"},
	{67, "D+"}, {63, "D"}, {60, "D-"},
}

// LetterGrade maps a percentage to the twelve-band plus/minus scale.
func LetterGrade(pct decimal.Decimal) string {
	for _, band := range letterCutoffs {
		if pct.Cmp(decimal.NewFromInt(band.cutoff)) >= 0 {
			return band.letter
		}
	}
	return "F"
}

// GradeChange is one meaningful difference between the stored baseline and a
// fresh capture. Grade strings and raw points are both carried so renderers
// never need the store again.
type GradeChange struct {
	AssignmentID    string
	AssignmentTitle string
	SectionName     string
	PeriodName      string
	CategoryName    string
	OldGrade        string
	NewGrade        string
	OldComment      string
	NewComment      string
	ChangeType      ChangeType
	NewEarned       decimal.NullDecimal
	NewMax          decimal.NullDecimal
	OldEarned       decimal.NullDecimal
	OldMax          decimal.NullDecimal
}

// Percentage derives earned/max*100 from the new points, when max > 0.
// Presentation only, never part of change detection.
func (c GradeChange) Percentage() (decimal.Decimal, bool) {
	return percentage(c.NewEarned, c.NewMax)
}

// OldPercentage derives the percentage from the old points.
func (c GradeChange) OldPercentage() (decimal.Decimal, bool) {
	return percentage(c.OldEarned, c.OldMax)
}

func percentage(earned, max decimal.NullDecimal) (decimal.Decimal, bool) {
	if !earned.Valid || !max.Valid || max.Decimal.Sign() <= 0 {
		return decimal.Decimal{}, false
	}
	return earned.Decimal.Div(max.Decimal).Mul(decimal.NewFromInt(100)), true
}

// Summary renders the one-line human form of this change.
func (c GradeChange) Summary() string {
	switch c.ChangeType {
	case ChangeNewAssignment:
		pct, ok := c.Percentage()
		return fmt.Sprintf("New: %s = %s", c.AssignmentTitle, withPercent(c.NewGrade, pct, ok))
	case ChangeGradeUpdated:
		oldPct, oldOK := c.OldPercentage()
		newPct, newOK := c.Percentage()
		return fmt.Sprintf("%s: %s -> %s",
			c.AssignmentTitle,
			withPercent(c.OldGrade, oldPct, oldOK),
			withPercent(c.NewGrade, newPct, newOK))
	case ChangeCommentUpdated:
		return fmt.Sprintf("%s: Comment updated", c.AssignmentTitle)
	default:
		return fmt.Sprintf("%s: Changed", c.AssignmentTitle)
	}
}

func withPercent(grade string, pct decimal.Decimal, ok bool) string {
	if !ok {
		return grade
	}
	return fmt.Sprintf("%s (%s%% %s)", grade, pct.Round(0).String(), LetterGrade(pct))
}

// ChangeReport is the ordered outcome of one comparison cycle.
type ChangeReport struct {
	Changes             []GradeChange
	Timestamp           time.Time
	IsInitial           bool
	NewAssignmentsCount int
	GradeUpdatesCount   int
	CommentUpdatesCount int
}

// HasChanges reports whether anything meaningful was detected.
func (r *ChangeReport) HasChanges() bool {
	return len(r.Changes) > 0
}

// Summary renders the one-line tally for logs and status notifications.
func (r *ChangeReport) Summary() string {
	if r.IsInitial {
		return "Initial grade data captured"
	}

	if !r.HasChanges() {
		return "No changes detected"
	}

	var parts []string
	if r.NewAssignmentsCount > 0 {
		parts = append(parts, fmt.Sprintf("%d new assignment(s)", r.NewAssignmentsCount))
	}
	if r.GradeUpdatesCount > 0 {
		parts = append(parts, fmt.Sprintf("%d grade update(s)", r.GradeUpdatesCount))
	}
	if r.CommentUpdatesCount > 0 {
		parts = append(parts, fmt.Sprintf("%d comment update(s)", r.CommentUpdatesCount))
	}

	return "Changes detected: " + strings.Join(parts, ", ")
}

// FormatForNotification renders the hierarchical multi-line view grouped by
// section, period, and category. Groups and changes appear in discovery
// order, so two calls on the same report are byte-identical.
func (r *ChangeReport) FormatForNotification() string {
	if r.IsInitial || !r.HasChanges() {
		return r.Summary()
	}

	var b strings.Builder
	b.WriteString(r.Summary())
	b.WriteString("\n\n")

	type group struct {
		name     string
		children []*group
		changes  []GradeChange
	}

	root := &group{}
	find := func(parent *group, name string) *group {
		for _, child := range parent.children {
			if child.name == name {
				return child
			}
		}
		child := &group{name: name}
		parent.children = append(parent.children, child)
		return child
	}

	for _, change := range r.Changes {
		section := find(root, change.SectionName)
		period := find(section, change.PeriodName)
		category := find(period, change.CategoryName)
		category.changes = append(category.changes, change)
	}

	for _, section := range root.children {
		fmt.Fprintf(&b, "%s\n", section.name)
		for _, period := range section.children {
			fmt.Fprintf(&b, "  %s\n", period.name)
			for _, category := range period.children {
				fmt.Fprintf(&b, "    %s\n", category.name)
				for _, change := range category.changes {
					fmt.Fprintf(&b, "      %s\n", change.Summary())
				}
			}
		}
	}

	return b.String()
}
