package ssh

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConnected 尚未建立 SSH 连接
	ErrNotConnected = errors.New("ssh: connection not established")
	// ErrShellClosed 交互 Shell 已关闭或因超时失去同步，不能继续使用
	ErrShellClosed = errors.New("ssh: shell closed")
	// ErrCommandTimeout 命令在超时时间内未等到提示符
	ErrCommandTimeout = errors.New("ssh: command timeout")
	// ErrNoPrompt 登录后未检测到设备提示符
	ErrNoPrompt = errors.New("ssh: no prompt detected")
)

// CommandError 设备返回了错误提示（如 "Invalid syntax."）
type CommandError struct {
	Command string
	Hint    string
	Output  string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("device rejected command %q: %s", e.Command, e.Hint)
}
