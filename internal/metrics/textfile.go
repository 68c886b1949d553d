package metrics

import (
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sshcollectorpro/activerules/internal/service"
	"github.com/sshcollectorpro/activerules/pkg/logger"
)

// TextfileRecorder 将运行结果写为 Prometheus textfile（供 node_exporter textfile collector 采集）
type TextfileRecorder struct {
	path     string
	registry *prometheus.Registry

	lastRun  *prometheus.GaugeVec
	duration *prometheus.GaugeVec
	sessions *prometheus.GaugeVec
	commands *prometheus.GaugeVec
	failed   *prometheus.GaugeVec
	rules    *prometheus.GaugeVec
	success  *prometheus.GaugeVec
}

// NewTextfileRecorder 使用独立 registry，避免默认 registry 中的 Go 运行时指标
func NewTextfileRecorder(path string) *TextfileRecorder {
	labels := []string{"host"}
	r := &TextfileRecorder{
		path:     path,
		registry: prometheus.NewRegistry(),
		lastRun: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "activerules_last_run_timestamp_seconds",
			Help: "Unix time the last run finished.",
		}, labels),
		duration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "activerules_last_run_duration_seconds",
			Help: "Wall time of the last run.",
		}, labels),
		sessions: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "activerules_sessions",
			Help: "Active sessions remaining after filtering.",
		}, labels),
		commands: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "activerules_commands",
			Help: "Follow-up commands synthesized.",
		}, labels),
		failed: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "activerules_commands_failed",
			Help: "Follow-up commands skipped after an execution error.",
		}, labels),
		rules: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "activerules_rules",
			Help: "Rules with active sessions in the last report.",
		}, labels),
		success: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "activerules_last_run_success",
			Help: "1 if the last run completed, 0 otherwise.",
		}, labels),
	}
	r.registry.MustRegister(r.lastRun, r.duration, r.sessions, r.commands, r.failed, r.rules, r.success)
	return r
}

// Record 更新指标并原子写入 textfile；写入失败只记录告警
func (r *TextfileRecorder) Record(summary *service.RunSummary) {
	host := summary.Host
	r.lastRun.WithLabelValues(host).Set(float64(summary.FinishedAt.Unix()))
	r.duration.WithLabelValues(host).Set(summary.Duration().Seconds())
	r.sessions.WithLabelValues(host).Set(float64(summary.Sessions))
	r.commands.WithLabelValues(host).Set(float64(len(summary.Commands)))
	r.failed.WithLabelValues(host).Set(float64(len(summary.FailedCommands)))
	r.rules.WithLabelValues(host).Set(float64(len(summary.Rules)))
	ok := 0.0
	if summary.Status == service.RunStatusSuccess {
		ok = 1
	}
	r.success.WithLabelValues(host).Set(ok)

	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		logger.WithField("path", r.path).Warnf("failed to create metrics dir: %v", err)
		return
	}
	if err := prometheus.WriteToTextfile(r.path, r.registry); err != nil {
		logger.WithField("path", r.path).Warnf("failed to write metrics textfile: %v", err)
	}
}
