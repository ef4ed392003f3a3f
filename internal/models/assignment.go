package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultComment is the placeholder the provider sends when a teacher left no
// feedback. Two placeholder comments never count as a change.
const DefaultComment = "No comment"

// Exception is a non-numeric grade state that overrides earned/max points.
type Exception string

const (
	ExceptionNone       Exception = ""
	ExceptionMissing    Exception = "Missing"
	ExceptionExcused    Exception = "Excused"
	ExceptionIncomplete Exception = "Incomplete"
)

// ParseException normalizes a provider exception label to the closed enum.
// Unknown labels map to ExceptionNone rather than failing the cycle.
func ParseException(raw string) Exception {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "missing":
		return ExceptionMissing
	case "excused":
		return ExceptionExcused
	case "incomplete":
		return ExceptionIncomplete
	default:
		return ExceptionNone
	}
}

// Assignment is one gradebook entry. AssignmentID is the stable provider
// identifier and the only join key used for change detection.
type Assignment struct {
	AssignmentID string `validate:"required"`
	Title        string
	EarnedPoints decimal.NullDecimal
	MaxPoints    decimal.NullDecimal
	Exception    Exception
	Comment      string
	DueDate      *time.Time
}

// ParsePoints converts heterogeneous textual numerics ("8", "8.5", " 80% ")
// to an exact decimal. Unparseable input becomes null, never an error.
func ParsePoints(raw string) decimal.NullDecimal {
	s := strings.TrimSpace(raw)
	s = strings.TrimSuffix(s, "%")
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return decimal.NullDecimal{}
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}
	}

	return decimal.NullDecimal{Decimal: d, Valid: true}
}

var dueDateLayouts = []string{
	"01/02/06 03:04pm",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
}

// ParseDueDate parses the date formats the provider is known to emit.
// Anything else becomes nil.
func ParseDueDate(raw string) *time.Time {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil
	}

	for _, layout := range dueDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}

	return nil
}

// HasGrade reports whether this assignment carries any grade at all: either
// an exception status or earned points.
func (a Assignment) HasGrade() bool {
	return a.Exception != ExceptionNone || a.EarnedPoints.Valid
}

// GradeString renders the grade for humans: "Missing", "8 / 10", "8", or
// "Not graded".
func (a Assignment) GradeString() string {
	if a.Exception != ExceptionNone {
		return string(a.Exception)
	}

	if !a.EarnedPoints.Valid {
		return "Not graded"
	}

	if a.MaxPoints.Valid && !a.MaxPoints.Decimal.IsZero() {
		return a.EarnedPoints.Decimal.String() + " / " + a.MaxPoints.Decimal.String()
	}

	return a.EarnedPoints.Decimal.String()
}

// CommentOrDefault returns the stored comment, falling back to the
// placeholder when the provider sent nothing.
func (a Assignment) CommentOrDefault() string {
	if a.Comment == "" {
		return DefaultComment
	}
	return a.Comment
}

// GradeChanged reports whether the grade differs from a prior observation.
// Only semantically meaningful fields participate: exception, earned points,
// max points, and the comment when at least one side is substantive. Display
// derivations (percentage, letter grade) never enter this predicate.
func (a Assignment) GradeChanged(old Assignment) bool {
	if a.Exception != old.Exception {
		return true
	}

	if !decimalsEqual(a.EarnedPoints, old.EarnedPoints) {
		return true
	}

	if !decimalsEqual(a.MaxPoints, old.MaxPoints) {
		return true
	}

	newComment := a.CommentOrDefault()
	oldComment := old.CommentOrDefault()
	if newComment != DefaultComment || oldComment != DefaultComment {
		if newComment != oldComment {
			return true
		}
	}

	return false
}

func decimalsEqual(a, b decimal.NullDecimal) bool {
	if a.Valid != b.Valid {
		return false
	}
	if !a.Valid {
		return true
	}
	return a.Decimal.Equal(b.Decimal)
}
