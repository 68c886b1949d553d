package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/sirupsen/logrus"

	"github.com/sshcollectorpro/activerules/internal/sink"
	"github.com/sshcollectorpro/activerules/internal/table"
	"github.com/sshcollectorpro/activerules/pkg/logger"
)

// Runner 规则-会话提取流程
// 依赖均通过字段注入；History、Metrics、Progress 可为空
type Runner struct {
	Gateway  Gateway
	Prompter CredentialPrompter
	Sink     ReportSink
	History  HistoryStore
	Metrics  MetricsRecorder
	Options  PipelineOptions
	// Progress 面向操作员的进度提示
	Progress func(msg string)
	// Now 可替换的时钟
	Now func() time.Time
}

func (r *Runner) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

func (r *Runner) progress(msg string) {
	if r.Progress != nil {
		r.Progress(msg)
	}
}

// Run 执行一次完整流程
// 返回的 RunSummary 始终非空；出错时包含失败前已知的信息
func (r *Runner) Run(ctx context.Context) (*RunSummary, error) {
	summary := &RunSummary{StartedAt: r.now(), Status: RunStatusFailed}
	id, err := gonanoid.New(12)
	if err != nil {
		return summary, fmt.Errorf("failed to generate run id: %w", err)
	}
	summary.RunID = id

	err = r.run(ctx, summary)
	summary.FinishedAt = r.now()
	if err != nil {
		summary.Error = err.Error()
	} else {
		summary.Status = RunStatusSuccess
	}
	r.record(ctx, summary)
	return summary, err
}

func (r *Runner) run(ctx context.Context, summary *RunSummary) error {
	creds, err := r.Prompter.Prompt(ctx)
	if err != nil {
		return err
	}
	summary.Host = creds.Host
	summary.Username = creds.Username
	log := logger.WithFields(logrus.Fields{"run_id": summary.RunID, "host": creds.Host})

	sess, err := r.Gateway.Connect(ctx, creds)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			log.WithError(cerr).Debug("session close failed")
		}
	}()
	r.progress("Connection successful! Collecting active sessions, please wait...")

	for _, cmd := range r.Options.SetupCommands {
		if _, err := sess.Execute(ctx, cmd); err != nil {
			return err
		}
	}
	listing, err := sess.Execute(ctx, r.Options.ListingCommand)
	if err != nil {
		return err
	}

	sessions, err := table.Parse(listing, r.Options.Session)
	if err != nil {
		return fmt.Errorf("failed to parse session listing: %w", err)
	}
	sessions = table.Filter(sessions, r.Options.SessionExclude)
	summary.Sessions = sessions.Len()

	commands := Synthesize(sessions, r.Options.Template)
	summary.Commands = commands
	log.Infof("sessions listed: %d follow-up commands", len(commands))

	if r.Options.CommandsName != "" {
		if err := r.write(ctx, summary, CommandTable(commands), sink.FormatDelimitedText, r.Options.CommandsName); err != nil {
			return err
		}
	}
	r.progress(fmt.Sprintf("%d show commands collected and saved! Continuing...", len(commands)))
	r.progress("Collecting rules with active sessions, please wait...")

	outputs := make([]string, 0, len(commands))
	for _, cmd := range commands {
		out, err := sess.Execute(ctx, cmd)
		if err == nil {
			outputs = append(outputs, out)
			continue
		}
		if ctx.Err() != nil || errors.Is(err, ErrSessionLost) || r.Options.AbortOnCommandError {
			return err
		}
		log.WithError(err).Warn("follow-up command skipped")
		summary.FailedCommands = append(summary.FailedCommands, FailedCommand{Command: cmd, Error: err.Error()})
	}

	report, err := BuildRuleReport(outputs, r.Options.Report)
	if err != nil {
		return fmt.Errorf("failed to build rule report: %w", err)
	}
	summary.Rules = RuleNames(report)

	for _, f := range r.Options.ReportFormats {
		if err := r.write(ctx, summary, report, f, r.Options.ReportName); err != nil {
			return err
		}
	}
	log.Infof("rule report written: %d rules, %d commands skipped", report.Len(), len(summary.FailedCommands))
	return nil
}

func (r *Runner) write(ctx context.Context, summary *RunSummary, t *table.Table, f sink.Format, name string) error {
	obj, err := r.Sink.Write(ctx, t, f, name)
	if err != nil {
		return &SinkError{Format: f, Name: name, Err: err}
	}
	summary.Objects = append(summary.Objects, obj)
	return nil
}

// record 写入历史与指标；失败只记录告警
func (r *Runner) record(ctx context.Context, summary *RunSummary) {
	if r.History != nil {
		if err := r.History.Save(context.WithoutCancel(ctx), summary); err != nil {
			logger.WithField("run_id", summary.RunID).WithError(err).Warn("failed to save run history")
		}
	}
	if r.Metrics != nil {
		r.Metrics.Record(summary)
	}
}
