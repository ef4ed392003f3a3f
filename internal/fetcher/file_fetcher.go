// Package fetcher provides snapshot sources for the monitoring pipeline.
// The provider API client lives outside this repository; the file fetcher
// consumes its JSON exports instead.
package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/gradewatch/internal/models"
)

const snapshotPattern = "grades_*.json"

// FileFetcher reads the newest gradebook export from a snapshot directory.
type FileFetcher struct {
	dir    string
	logger zerolog.Logger
}

// NewFileFetcher builds a fetcher over the given snapshot directory.
func NewFileFetcher(dir string, logger zerolog.Logger) *FileFetcher {
	return &FileFetcher{
		dir:    dir,
		logger: logger.With().Str("component", "file_fetcher").Logger(),
	}
}

// Fetch decodes the newest grades_*.json export into a GradeData tree.
func (f *FileFetcher) Fetch(ctx context.Context) (*models.GradeData, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path, err := f.newestSnapshot()
	if err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot %s: %w", path, err)
	}

	var doc snapshotDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot %s: %w", path, err)
	}

	data := doc.toGradeData(timestampFromName(path))

	f.logger.Info().
		Str("file", filepath.Base(path)).
		Int("sections", len(data.Sections)).
		Time("captured_at", data.Timestamp).
		Msg("snapshot loaded")

	return data, nil
}

func (f *FileFetcher) newestSnapshot() (string, error) {
	matches, err := filepath.Glob(filepath.Join(f.dir, snapshotPattern))
	if err != nil {
		return "", fmt.Errorf("failed to list snapshots in %s: %w", f.dir, err)
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("no %s files in %s", snapshotPattern, f.dir)
	}

	sort.Slice(matches, func(i, j int) bool {
		return timestampFromName(matches[i]).After(timestampFromName(matches[j]))
	})

	return matches[0], nil
}

// timestampFromName extracts the capture time from grades_20060102_150405.json.
// Files with other names sort oldest.
func timestampFromName(path string) time.Time {
	stem := strings.TrimSuffix(filepath.Base(path), ".json")
	stem = strings.TrimPrefix(stem, "grades_")
	t, err := time.Parse("20060102_150405", stem)
	if err != nil {
		return time.Time{}
	}
	return t
}

// snapshotDoc mirrors the JSON export layout. Numeric fields arrive as
// numbers, strings, or null depending on the exporter version, so points are
// decoded as raw tokens and normalized through the domain parsers.
type snapshotDoc struct {
	Timestamp string       `json:"timestamp"`
	Sections  []sectionDoc `json:"sections"`
}

type sectionDoc struct {
	SectionID    string      `json:"section_id"`
	CourseTitle  string      `json:"course_title"`
	SectionTitle string      `json:"section_title"`
	Periods      []periodDoc `json:"periods"`
}

type periodDoc struct {
	PeriodID   string        `json:"period_id"`
	Name       string        `json:"name"`
	Categories []categoryDoc `json:"categories"`
}

type categoryDoc struct {
	CategoryID  json.Number     `json:"category_id"`
	Name        string          `json:"name"`
	Weight      json.RawMessage `json:"weight"`
	Assignments []assignmentDoc `json:"assignments"`
}

type assignmentDoc struct {
	AssignmentID string          `json:"assignment_id"`
	Title        string          `json:"title"`
	EarnedPoints json.RawMessage `json:"earned_points"`
	MaxPoints    json.RawMessage `json:"max_points"`
	Exception    string          `json:"exception"`
	Comment      string          `json:"comment"`
	DueDate      string          `json:"due_date"`
}

func (d snapshotDoc) toGradeData(fallback time.Time) *models.GradeData {
	ts := fallback
	if parsed := models.ParseDueDate(d.Timestamp); parsed != nil {
		ts = *parsed
	}
	if ts.IsZero() {
		ts = time.Now()
	}

	data := &models.GradeData{Timestamp: ts}
	for _, section := range d.Sections {
		data.Sections = append(data.Sections, section.toSection())
	}
	return data
}

func (d sectionDoc) toSection() models.Section {
	section := models.Section{
		SectionID:    d.SectionID,
		CourseTitle:  d.CourseTitle,
		SectionTitle: d.SectionTitle,
	}
	for _, period := range d.Periods {
		p := models.Period{PeriodID: period.PeriodID, Name: period.Name}
		for _, category := range period.Categories {
			p.Categories = append(p.Categories, category.toCategory())
		}
		section.Periods = append(section.Periods, p)
	}
	return section
}

func (d categoryDoc) toCategory() models.Category {
	id, err := strconv.Atoi(d.CategoryID.String())
	if err != nil {
		id = 0
	}

	category := models.Category{
		CategoryID: id,
		Name:       d.Name,
		Weight:     models.ParsePoints(rawScalar(d.Weight)),
	}

	for _, a := range d.Assignments {
		comment := a.Comment
		if comment == "" {
			comment = models.DefaultComment
		}

		assignment := models.Assignment{
			AssignmentID: a.AssignmentID,
			Title:        a.Title,
			EarnedPoints: models.ParsePoints(rawScalar(a.EarnedPoints)),
			MaxPoints:    models.ParsePoints(rawScalar(a.MaxPoints)),
			Exception:    models.ParseException(a.Exception),
			Comment:      comment,
			DueDate:      models.ParseDueDate(a.DueDate),
		}

		// An exception status overrides points entirely; contradictory
		// partial data is suppressed here, before comparison.
		if assignment.Exception != models.ExceptionNone {
			assignment.EarnedPoints = models.ParsePoints("")
			assignment.MaxPoints = models.ParsePoints("")
		}

		category.Assignments = append(category.Assignments, assignment)
	}

	return category
}

// rawScalar renders a JSON token (number, quoted string, null) as plain text
// for the tolerant domain parsers.
func rawScalar(raw json.RawMessage) string {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return ""
	}
	if unquoted, err := strconv.Unquote(s); err == nil {
		return unquoted
	}
	return s
}
