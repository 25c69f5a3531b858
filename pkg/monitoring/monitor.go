package monitoring

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)

	// 导入相关
	ImportRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cfaquiz_import_runs_total",
			Help: "Import runs by kind and final status",
		},
		[]string{"kind", "status"},
	)

	ImportedRecords = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cfaquiz_imported_records_total",
			Help: "Records added to the imported catalog",
		},
		[]string{"kind"},
	)

	ImportDuplicates = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cfaquiz_import_duplicates_total",
			Help: "Records dropped as content duplicates during import",
		},
		[]string{"kind"},
	)

	ImportRowErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cfaquiz_import_row_errors_total",
			Help: "Rows rejected by the record parsers",
		},
		[]string{"kind"},
	)

	ImportDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cfaquiz_import_duration_seconds",
			Help:    "Wall time of a full import run",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 5, 30},
		},
	)

	// 组卷相关
	QuizSelections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cfaquiz_quiz_selections_total",
			Help: "Quiz sessions prepared by mode",
		},
		[]string{"mode"},
	)

	SelectedQuestions = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cfaquiz_selected_questions",
			Help:    "Number of questions drawn per session",
			Buckets: []float64{1, 5, 10, 20, 50, 100},
		},
	)

	InvalidQuestionsSkipped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cfaquiz_invalid_questions_skipped_total",
			Help: "Catalog questions dropped by the selection validity filter",
		},
	)

	registerOnce sync.Once
)

// Init 注册所有指标，重复调用无副作用
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			RequestCounter,
			RequestDuration,
			ImportRuns,
			ImportedRecords,
			ImportDuplicates,
			ImportRowErrors,
			ImportDuration,
			QuizSelections,
			SelectedQuestions,
			InvalidQuestionsSkipped,
		)
	})
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := c.Writer.Status()

		RequestCounter.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			strconv.Itoa(status),
		).Inc()

		RequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
		).Observe(duration)
	}
}

func PrometheusHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
