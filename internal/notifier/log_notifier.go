// Package notifier holds in-repo change report sinks. Outbound channels
// (email, push) are external collaborators implementing service.Notifier.
package notifier

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/noah-isme/gradewatch/internal/models"
)

// LogNotifier renders change reports through the structured logger.
type LogNotifier struct {
	logger zerolog.Logger
}

// NewLogNotifier builds a log-backed notifier.
func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{
		logger: logger.With().Str("component", "log_notifier").Logger(),
	}
}

// Notify logs the hierarchical change view.
func (n *LogNotifier) Notify(_ context.Context, report *models.ChangeReport) error {
	n.logger.Info().
		Int("new_assignments", report.NewAssignmentsCount).
		Int("grade_updates", report.GradeUpdatesCount).
		Int("comment_updates", report.CommentUpdatesCount).
		Msg(report.FormatForNotification())
	return nil
}
