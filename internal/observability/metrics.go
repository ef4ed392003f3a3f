package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/noah-isme/gradewatch/internal/models"
)

var (
	registerOnce         sync.Once
	cycleRunsTotal       *prometheus.CounterVec
	changesDetectedTotal *prometheus.CounterVec
	cyclesInitialTotal   prometheus.Counter
)

// RegisterMetrics initialises the Prometheus collectors for the monitoring
// pipeline.
func RegisterMetrics() {
	registerOnce.Do(func() {
		cycleRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gradewatch_cycles_total",
			Help: "Total number of monitoring cycles by outcome.",
		}, []string{"status"})

		changesDetectedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gradewatch_changes_detected_total",
			Help: "Total number of detected grade changes by type.",
		}, []string{"type"})

		cyclesInitialTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gradewatch_initial_captures_total",
			Help: "Total number of initial baseline captures.",
		})

		prometheus.MustRegister(cycleRunsTotal, changesDetectedTotal, cyclesInitialTotal)
	})
}

// CycleRuns exposes the cycle outcome counter.
func CycleRuns() *prometheus.CounterVec {
	RegisterMetrics()
	return cycleRunsTotal
}

// ObserveReport records the per-type change counts of one report.
func ObserveReport(report *models.ChangeReport) {
	RegisterMetrics()

	if report.IsInitial {
		cyclesInitialTotal.Inc()
		return
	}

	changesDetectedTotal.WithLabelValues(string(models.ChangeNewAssignment)).Add(float64(report.NewAssignmentsCount))
	changesDetectedTotal.WithLabelValues(string(models.ChangeGradeUpdated)).Add(float64(report.GradeUpdatesCount))
	changesDetectedTotal.WithLabelValues(string(models.ChangeCommentUpdated)).Add(float64(report.CommentUpdatesCount))
}
