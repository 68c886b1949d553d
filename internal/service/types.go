package service

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/sshcollectorpro/activerules/internal/sink"
	"github.com/sshcollectorpro/activerules/internal/table"
)

// Credentials 设备登录信息
type Credentials struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"-"`
}

// Address host:port
func (c Credentials) Address() string {
	port := c.Port
	if port < 1 || port > 65535 {
		port = 22
	}
	return net.JoinHostPort(c.Host, strconv.Itoa(port))
}

// Gateway 远程会话网关
type Gateway interface {
	Connect(ctx context.Context, creds Credentials) (Session, error)
}

// Session 已建立的设备会话，命令串行执行
type Session interface {
	// Execute 返回命令的原始回显；失败返回 *ExecutionError
	Execute(ctx context.Context, command string) (string, error)
	Close() error
}

// CredentialPrompter 交互式凭据输入
type CredentialPrompter interface {
	Prompt(ctx context.Context) (Credentials, error)
}

// ReportSink 报表持久化
type ReportSink interface {
	Write(ctx context.Context, t *table.Table, format sink.Format, name string) (sink.StoredObject, error)
}

// HistoryStore 运行历史
type HistoryStore interface {
	Save(ctx context.Context, summary *RunSummary) error
}

// MetricsRecorder 运行指标
type MetricsRecorder interface {
	Record(summary *RunSummary)
}

// RunStatus 运行结果
type RunStatus string

const (
	RunStatusSuccess RunStatus = "success"
	RunStatusFailed  RunStatus = "failed"
)

// FailedCommand 被跳过的追问命令
type FailedCommand struct {
	Command string `json:"command"`
	Error   string `json:"error"`
}

// RunSummary 一次运行的汇总
type RunSummary struct {
	RunID          string              `json:"run_id"`
	Host           string              `json:"host"`
	Username       string              `json:"username"`
	Status         RunStatus           `json:"status"`
	Error          string              `json:"error,omitempty"`
	StartedAt      time.Time           `json:"started_at"`
	FinishedAt     time.Time           `json:"finished_at"`
	Sessions       int                 `json:"sessions"`
	Commands       []string            `json:"commands"`
	FailedCommands []FailedCommand     `json:"failed_commands,omitempty"`
	Rules          []string            `json:"rules"`
	Objects        []sink.StoredObject `json:"objects,omitempty"`
}

// Duration 运行耗时
func (s *RunSummary) Duration() time.Duration {
	if s.FinishedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}
