package service

import (
	"errors"
	"fmt"

	"github.com/sshcollectorpro/activerules/internal/sink"
)

var (
	// ErrSessionLost 会话在命令执行中断开或失去同步，后续命令无法继续
	ErrSessionLost = errors.New("device session lost")
	// ErrNoCredentials 操作员未提供凭据（EOF 或 Ctrl-C）
	ErrNoCredentials = errors.New("no credentials provided")
)

// ConnectionError 无法与设备建立会话（凭据错误、主机不可达、协议不兼容）
type ConnectionError struct {
	Host string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("failed to connect to %s: %v", e.Host, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// ExecutionError 单条命令在存活会话上执行失败
type ExecutionError struct {
	Command string
	Output  string
	Err     error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("command %q failed: %v", e.Command, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// SinkError 报表写入失败
type SinkError struct {
	Format sink.Format
	Name   string
	Err    error
}

func (e *SinkError) Error() string {
	return fmt.Sprintf("failed to write %s report %q: %v", e.Format, e.Name, e.Err)
}

func (e *SinkError) Unwrap() error { return e.Err }
