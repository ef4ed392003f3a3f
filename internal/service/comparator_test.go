package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/gradewatch/internal/models"
	"github.com/noah-isme/gradewatch/internal/repository"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func newSQLiteStore(t *testing.T) repository.GradeStore {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "grades.db")), &gorm.Config{})
	require.NoError(t, err)

	store, err := repository.NewGradeStore(db, testLogger())
	require.NoError(t, err)
	return store
}

// eachStore runs the scenario against both store implementations; the
// comparator must not care which one backs it.
func eachStore(t *testing.T, scenario func(t *testing.T, store repository.GradeStore)) {
	t.Run("memory", func(t *testing.T) {
		scenario(t, repository.NewMemoryGradeStore())
	})
	t.Run("sqlite", func(t *testing.T) {
		scenario(t, newSQLiteStore(t))
	})
}

func dec(s string) decimal.NullDecimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return decimal.NullDecimal{Decimal: d, Valid: true}
}

type assignmentSpec struct {
	id        string
	title     string
	earned    string
	max       string
	exception models.Exception
	comment   string
}

func buildData(ts time.Time, specs ...assignmentSpec) *models.GradeData {
	category := models.Category{CategoryID: 1, Name: "Quizzes"}
	for _, spec := range specs {
		a := models.Assignment{
			AssignmentID: spec.id,
			Title:        spec.title,
			Exception:    spec.exception,
			Comment:      spec.comment,
		}
		if spec.earned != "" {
			a.EarnedPoints = dec(spec.earned)
		}
		if spec.max != "" {
			a.MaxPoints = dec(spec.max)
		}
		category.Assignments = append(category.Assignments, a)
	}

	return &models.GradeData{
		Timestamp: ts,
		Sections: []models.Section{
			{
				SectionID:    "s1",
				CourseTitle:  "Math 7",
				SectionTitle: "Period 1",
				Periods: []models.Period{
					{PeriodID: "s1:T1", Name: "T1", Categories: []models.Category{category}},
				},
			},
		},
	}
}

func TestInitialCaptureIsSilent(t *testing.T) {
	eachStore(t, func(t *testing.T, store repository.GradeStore) {
		comparator := NewComparatorService(store, testLogger())
		ctx := context.Background()

		data := buildData(time.Now().UTC(), assignmentSpec{id: "100", title: "Quiz 1", earned: "8", max: "10"})

		report, err := comparator.DetectChanges(ctx, data)
		require.NoError(t, err)
		require.True(t, report.IsInitial)
		require.False(t, report.HasChanges())

		// The same data again is no longer initial and still yields nothing.
		repeat, err := comparator.DetectChanges(ctx, data)
		require.NoError(t, err)
		require.False(t, repeat.IsInitial)
		require.False(t, repeat.HasChanges())
		require.Equal(t, "No changes detected", repeat.Summary())
	})
}

func TestReorderingYieldsNoChanges(t *testing.T) {
	eachStore(t, func(t *testing.T, store repository.GradeStore) {
		comparator := NewComparatorService(store, testLogger())
		ctx := context.Background()

		first := buildData(time.Now().UTC(),
			assignmentSpec{id: "100", title: "Quiz 1", earned: "8", max: "10"},
			assignmentSpec{id: "101", title: "Quiz 2", earned: "9", max: "10"},
			assignmentSpec{id: "102", title: "Quiz 3", earned: "10", max: "10"},
		)
		_, err := comparator.DetectChanges(ctx, first)
		require.NoError(t, err)

		// Same IDs and values, different array positions.
		second := buildData(time.Now().UTC(),
			assignmentSpec{id: "102", title: "Quiz 3", earned: "10", max: "10"},
			assignmentSpec{id: "100", title: "Quiz 1", earned: "8", max: "10"},
			assignmentSpec{id: "101", title: "Quiz 2", earned: "9", max: "10"},
		)

		report, err := comparator.DetectChanges(ctx, second)
		require.NoError(t, err)
		require.False(t, report.HasChanges())
	})
}

func TestUngradedToGradedIsNewAssignment(t *testing.T) {
	eachStore(t, func(t *testing.T, store repository.GradeStore) {
		comparator := NewComparatorService(store, testLogger())
		ctx := context.Background()

		_, err := comparator.DetectChanges(ctx, buildData(time.Now().UTC(),
			assignmentSpec{id: "100", title: "Quiz 1"},
		))
		require.NoError(t, err)

		report, err := comparator.DetectChanges(ctx, buildData(time.Now().UTC(),
			assignmentSpec{id: "100", title: "Quiz 1", earned: "10", max: "10"},
		))
		require.NoError(t, err)

		require.Len(t, report.Changes, 1)
		change := report.Changes[0]
		require.Equal(t, models.ChangeNewAssignment, change.ChangeType)
		require.Empty(t, change.OldGrade, "old grade must be absent, not \"Not graded\"")
		require.Equal(t, "10 / 10", change.NewGrade)
		require.Equal(t, 1, report.NewAssignmentsCount)
	})
}

func TestGradeUpdate(t *testing.T) {
	eachStore(t, func(t *testing.T, store repository.GradeStore) {
		comparator := NewComparatorService(store, testLogger())
		ctx := context.Background()

		_, err := comparator.DetectChanges(ctx, buildData(time.Now().UTC(),
			assignmentSpec{id: "100", title: "Quiz 1", earned: "5", max: "5"},
		))
		require.NoError(t, err)

		report, err := comparator.DetectChanges(ctx, buildData(time.Now().UTC(),
			assignmentSpec{id: "100", title: "Quiz 1", earned: "4", max: "5"},
		))
		require.NoError(t, err)

		require.Len(t, report.Changes, 1)
		change := report.Changes[0]
		require.Equal(t, models.ChangeGradeUpdated, change.ChangeType)
		require.Equal(t, "5 / 5", change.OldGrade)
		require.Equal(t, "4 / 5", change.NewGrade)
		require.Equal(t, "Math 7: Period 1", change.SectionName)
		require.Equal(t, "T1", change.PeriodName)
		require.Equal(t, "Quizzes", change.CategoryName)
		require.Equal(t, 1, report.GradeUpdatesCount)
	})
}

func TestCommentUpdate(t *testing.T) {
	eachStore(t, func(t *testing.T, store repository.GradeStore) {
		comparator := NewComparatorService(store, testLogger())
		ctx := context.Background()

		_, err := comparator.DetectChanges(ctx, buildData(time.Now().UTC(),
			assignmentSpec{id: "100", title: "Essay", earned: "5", max: "5", comment: "Good"},
		))
		require.NoError(t, err)

		report, err := comparator.DetectChanges(ctx, buildData(time.Now().UTC(),
			assignmentSpec{id: "100", title: "Essay", earned: "5", max: "5", comment: "Excellent"},
		))
		require.NoError(t, err)

		require.Len(t, report.Changes, 1)
		change := report.Changes[0]
		require.Equal(t, models.ChangeCommentUpdated, change.ChangeType)
		require.Equal(t, "Good", change.OldComment)
		require.Equal(t, "Excellent", change.NewComment)
		require.Equal(t, 1, report.CommentUpdatesCount)
	})
}

func TestPlaceholderCommentsNeverChange(t *testing.T) {
	eachStore(t, func(t *testing.T, store repository.GradeStore) {
		comparator := NewComparatorService(store, testLogger())
		ctx := context.Background()

		_, err := comparator.DetectChanges(ctx, buildData(time.Now().UTC(),
			assignmentSpec{id: "100", title: "Essay", earned: "5", max: "5", comment: "No comment"},
		))
		require.NoError(t, err)

		report, err := comparator.DetectChanges(ctx, buildData(time.Now().UTC(),
			assignmentSpec{id: "100", title: "Essay", earned: "5", max: "5", comment: "No comment"},
		))
		require.NoError(t, err)
		require.False(t, report.HasChanges())
	})
}

func TestExceptionTransitionIsGradeUpdate(t *testing.T) {
	eachStore(t, func(t *testing.T, store repository.GradeStore) {
		comparator := NewComparatorService(store, testLogger())
		ctx := context.Background()

		_, err := comparator.DetectChanges(ctx, buildData(time.Now().UTC(),
			assignmentSpec{id: "100", title: "Quiz 1", earned: "5", max: "5"},
		))
		require.NoError(t, err)

		report, err := comparator.DetectChanges(ctx, buildData(time.Now().UTC(),
			assignmentSpec{id: "100", title: "Quiz 1", exception: models.ExceptionMissing},
		))
		require.NoError(t, err)

		require.Len(t, report.Changes, 1)
		change := report.Changes[0]
		require.Equal(t, models.ChangeGradeUpdated, change.ChangeType)
		require.Equal(t, "Missing", change.NewGrade)
		require.Equal(t, "5 / 5", change.OldGrade)
	})
}

func TestUngradedAssignmentsAreStoredButNotReported(t *testing.T) {
	eachStore(t, func(t *testing.T, store repository.GradeStore) {
		comparator := NewComparatorService(store, testLogger())
		ctx := context.Background()

		_, err := comparator.DetectChanges(ctx, buildData(time.Now().UTC(),
			assignmentSpec{id: "100", title: "Quiz 1", earned: "8", max: "10"},
		))
		require.NoError(t, err)

		report, err := comparator.DetectChanges(ctx, buildData(time.Now().UTC(),
			assignmentSpec{id: "100", title: "Quiz 1", earned: "8", max: "10"},
			assignmentSpec{id: "101", title: "Quiz 2"},
		))
		require.NoError(t, err)
		require.False(t, report.HasChanges())

		// The ungraded placeholder still reached storage.
		stored, err := store.GetAssignment(ctx, "101")
		require.NoError(t, err)
		require.NotNil(t, stored)
		require.False(t, stored.HasGrade())
	})
}

func TestEndToEndThreeCycles(t *testing.T) {
	eachStore(t, func(t *testing.T, store repository.GradeStore) {
		comparator := NewComparatorService(store, testLogger())
		ctx := context.Background()

		// Cycle 1: ungraded Quiz 1.
		report, err := comparator.DetectChanges(ctx, buildData(time.Now().UTC(),
			assignmentSpec{id: "q1", title: "Quiz 1"},
		))
		require.NoError(t, err)
		require.True(t, report.IsInitial)
		require.Empty(t, report.Changes)

		// Cycle 2: Quiz 1 graded 8/10.
		report, err = comparator.DetectChanges(ctx, buildData(time.Now().UTC(),
			assignmentSpec{id: "q1", title: "Quiz 1", earned: "8", max: "10"},
		))
		require.NoError(t, err)
		require.Len(t, report.Changes, 1)
		require.Equal(t, models.ChangeNewAssignment, report.Changes[0].ChangeType)
		require.Equal(t, "8 / 10", report.Changes[0].NewGrade)

		// Cycle 3: Quiz 1 revised to 9/10.
		report, err = comparator.DetectChanges(ctx, buildData(time.Now().UTC(),
			assignmentSpec{id: "q1", title: "Quiz 1", earned: "9", max: "10"},
		))
		require.NoError(t, err)
		require.Len(t, report.Changes, 1)
		require.Equal(t, models.ChangeGradeUpdated, report.Changes[0].ChangeType)
		require.Equal(t, "8 / 10", report.Changes[0].OldGrade)
		require.Equal(t, "9 / 10", report.Changes[0].NewGrade)
	})
}

type failingStore struct {
	repository.GradeStore
	failSave bool
}

func (s *failingStore) SaveSnapshot(ctx context.Context, data *models.GradeData) (uint, error) {
	if s.failSave {
		return 0, context.DeadlineExceeded
	}
	return s.GradeStore.SaveSnapshot(ctx, data)
}

func TestStorageFailureDoesNotAdvanceBaseline(t *testing.T) {
	inner := repository.NewMemoryGradeStore()
	store := &failingStore{GradeStore: inner}
	comparator := NewComparatorService(store, testLogger())
	ctx := context.Background()

	_, err := comparator.DetectChanges(ctx, buildData(time.Now().UTC(),
		assignmentSpec{id: "100", title: "Quiz 1", earned: "5", max: "5"},
	))
	require.NoError(t, err)

	// The save fails, so the revised grade must not be reported as committed.
	store.failSave = true
	_, err = comparator.DetectChanges(ctx, buildData(time.Now().UTC(),
		assignmentSpec{id: "100", title: "Quiz 1", earned: "4", max: "5"},
	))
	require.Error(t, err)

	// The next cycle still detects the same change against the old baseline.
	store.failSave = false
	report, err := comparator.DetectChanges(ctx, buildData(time.Now().UTC(),
		assignmentSpec{id: "100", title: "Quiz 1", earned: "4", max: "5"},
	))
	require.NoError(t, err)
	require.Len(t, report.Changes, 1)
	require.Equal(t, "5 / 5", report.Changes[0].OldGrade)
	require.Equal(t, "4 / 5", report.Changes[0].NewGrade)
}
