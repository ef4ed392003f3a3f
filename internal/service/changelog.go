package service

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/gradewatch/internal/models"
)

// ChangeLogEntry is one line of the JSON change history.
type ChangeLogEntry struct {
	Timestamp      time.Time         `json:"timestamp"`
	IsInitial      bool              `json:"is_initial"`
	HasChanges     bool              `json:"has_changes"`
	Summary        string            `json:"summary"`
	Counts         ChangeLogCounts   `json:"counts"`
	Changes        []ChangeLogDetail `json:"changes"`
	NotifiedAt     *time.Time        `json:"notified_at,omitempty"`
	NotificationOK bool              `json:"notification_sent"`
}

// ChangeLogCounts tallies a report for history queries.
type ChangeLogCounts struct {
	NewAssignments int `json:"new_assignments"`
	GradeUpdates   int `json:"grade_updates"`
	CommentUpdates int `json:"comment_updates"`
	Total          int `json:"total"`
}

// ChangeLogDetail is the per-change record kept in history.
type ChangeLogDetail struct {
	AssignmentID string `json:"assignment_id"`
	Title        string `json:"title"`
	Section      string `json:"section"`
	Period       string `json:"period"`
	Category     string `json:"category"`
	OldGrade     string `json:"old_grade,omitempty"`
	NewGrade     string `json:"new_grade"`
	ChangeType   string `json:"change_type"`
}

// ChangeLogService appends one JSON line per cycle to a history file and
// prunes entries past the retention window.
type ChangeLogService struct {
	path   string
	maxAge time.Duration
	now    func() time.Time
	logger zerolog.Logger
}

// NewChangeLogService builds a change history logger. A zero maxAge disables
// pruning.
func NewChangeLogService(path string, maxAge time.Duration, logger zerolog.Logger) *ChangeLogService {
	return &ChangeLogService{
		path:   path,
		maxAge: maxAge,
		now:    time.Now,
		logger: logger.With().Str("component", "change_log").Logger(),
	}
}

// Append writes the report as one JSON line.
func (s *ChangeLogService) Append(report *models.ChangeReport, notified bool) error {
	entry := ChangeLogEntry{
		Timestamp:  report.Timestamp,
		IsInitial:  report.IsInitial,
		HasChanges: report.HasChanges(),
		Summary:    report.Summary(),
		Counts: ChangeLogCounts{
			NewAssignments: report.NewAssignmentsCount,
			GradeUpdates:   report.GradeUpdatesCount,
			CommentUpdates: report.CommentUpdatesCount,
			Total:          len(report.Changes),
		},
		NotificationOK: notified,
	}
	if notified {
		ts := s.now()
		entry.NotifiedAt = &ts
	}

	for _, change := range report.Changes {
		entry.Changes = append(entry.Changes, ChangeLogDetail{
			AssignmentID: change.AssignmentID,
			Title:        change.AssignmentTitle,
			Section:      change.SectionName,
			Period:       change.PeriodName,
			Category:     change.CategoryName,
			OldGrade:     change.OldGrade,
			NewGrade:     change.NewGrade,
			ChangeType:   string(change.ChangeType),
		})
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create change log directory: %w", err)
	}

	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode change log entry: %w", err)
	}

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open change log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("failed to write change log entry: %w", err)
	}

	return nil
}

// Cleanup rewrites the history file keeping only entries newer than the
// retention window. Unparseable lines are dropped.
func (s *ChangeLogService) Cleanup() error {
	if s.maxAge <= 0 {
		return nil
	}

	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to open change log for cleanup: %w", err)
	}

	cutoff := s.now().Add(-s.maxAge)
	var kept [][]byte
	dropped := 0

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := append([]byte(nil), scanner.Bytes()...)

		var entry ChangeLogEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			dropped++
			continue
		}
		if entry.Timestamp.Before(cutoff) {
			dropped++
			continue
		}
		kept = append(kept, line)
	}
	scanErr := scanner.Err()
	f.Close()
	if scanErr != nil {
		return fmt.Errorf("failed to scan change log: %w", scanErr)
	}

	if dropped == 0 {
		return nil
	}

	tmp := s.path + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create change log replacement: %w", err)
	}
	for _, line := range kept {
		if _, err := out.Write(append(line, '\n')); err != nil {
			out.Close()
			return fmt.Errorf("failed to rewrite change log: %w", err)
		}
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("failed to close change log replacement: %w", err)
	}

	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to swap change log: %w", err)
	}

	s.logger.Info().Int("dropped", dropped).Int("kept", len(kept)).Msg("change history pruned")
	return nil
}
