package metrics

import (
	"context"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	taskDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "cvforge",
			Subsystem: "asynq",
			Name:      "task_duration_seconds",
			Help:      "任务处理耗时分布（秒）。",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
		},
		[]string{"task_type", "outcome"},
	)

	taskInProgress = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "cvforge",
			Subsystem: "asynq",
			Name:      "tasks_in_progress",
			Help:      "当前正在处理的任务数量。",
		},
		[]string{"task_type"},
	)

	pdfExportDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "cvforge",
			Subsystem: "pdf",
			Name:      "export_duration_seconds",
			Help:      "单次 PDF 导出的端到端耗时（取数、渲染、上传）。",
			Buckets:   []float64{1, 2.5, 5, 10, 20, 30, 60},
		},
		[]string{"outcome"},
	)
)

// AsynqMetricsMiddleware 记录任务耗时与在途数量。导出类任务的
// 桶上限放宽到浏览器渲染的量级。
func AsynqMetricsMiddleware() asynq.MiddlewareFunc {
	return func(next asynq.Handler) asynq.Handler {
		return asynq.HandlerFunc(func(ctx context.Context, task *asynq.Task) error {
			taskType := task.Type()
			taskInProgress.WithLabelValues(taskType).Inc()
			defer taskInProgress.WithLabelValues(taskType).Dec()

			start := time.Now()
			err := next.ProcessTask(ctx, task)

			outcome := "ok"
			if err != nil {
				outcome = "error"
			}
			taskDuration.WithLabelValues(taskType, outcome).Observe(time.Since(start).Seconds())
			return err
		})
	}
}

// ObservePDFExport 记录一次 PDF 导出的耗时与结果。
func ObservePDFExport(outcome string, elapsed time.Duration) {
	pdfExportDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}
