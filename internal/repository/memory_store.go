package repository

import (
	"context"
	"sync"
	"time"

	"github.com/noah-isme/gradewatch/internal/models"
)

// memoryGradeStore is a map-backed GradeStore for tests and dry runs. It
// mirrors the keyed semantics of the GORM store: assignments by ID, sections
// by ID, an append-only snapshot log.
type memoryGradeStore struct {
	mu          sync.RWMutex
	assignments map[string]models.Assignment
	sections    map[string]models.Section
	snapshots   []time.Time
}

// NewMemoryGradeStore builds an in-memory grade store.
func NewMemoryGradeStore() GradeStore {
	return &memoryGradeStore{
		assignments: make(map[string]models.Assignment),
		sections:    make(map[string]models.Section),
	}
}

func (s *memoryGradeStore) SaveSnapshot(_ context.Context, data *models.GradeData) (uint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, entry := range data.AllAssignments() {
		a := *entry.Assignment
		a.Comment = a.CommentOrDefault()
		s.assignments[a.AssignmentID] = a
	}

	for _, section := range data.Sections {
		s.sections[section.SectionID] = cloneSection(section)
	}

	s.snapshots = append(s.snapshots, data.Timestamp)
	return uint(len(s.snapshots)), nil
}

func (s *memoryGradeStore) GetAssignment(_ context.Context, assignmentID string) (*models.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.assignments[assignmentID]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (s *memoryGradeStore) GetSection(_ context.Context, sectionID string) (*models.Section, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	section, ok := s.sections[sectionID]
	if !ok {
		return nil, ErrSectionNotFound
	}

	out := cloneSection(section)
	return &out, nil
}

func (s *memoryGradeStore) LatestSnapshotTime(_ context.Context) (*time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.snapshots) == 0 {
		return nil, nil
	}

	ts := s.snapshots[len(s.snapshots)-1]
	return &ts, nil
}

func (s *memoryGradeStore) ClearAll(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.assignments = make(map[string]models.Assignment)
	s.sections = make(map[string]models.Section)
	s.snapshots = nil
	return nil
}

func cloneSection(section models.Section) models.Section {
	out := section
	out.Periods = make([]models.Period, len(section.Periods))
	for pi, period := range section.Periods {
		p := period
		p.Categories = make([]models.Category, len(period.Categories))
		for ci, category := range period.Categories {
			c := category
			c.Assignments = append([]models.Assignment(nil), category.Assignments...)
			p.Categories[ci] = c
		}
		out.Periods[pi] = p
	}
	return out
}
