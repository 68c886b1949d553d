package ssh

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"
)

// Shell 单一交互式 PTY Shell，命令串行执行
// 每条命令的输出以下一个提示符为结束标志；超时后 Shell 失去同步，不再可用
type Shell struct {
	session *ssh.Session
	stdin   io.WriteCloser
	chunks  chan string
	config  *Config
	prompt  promptMatcher

	mu      sync.Mutex
	pending string
	broken  bool
}

func newShell(session *ssh.Session, stdin io.WriteCloser, stdout io.Reader, config *Config) *Shell {
	suffixes := config.PromptSuffixes
	if len(suffixes) == 0 {
		suffixes = []string{">", "#"}
	}
	s := &Shell{
		session: session,
		stdin:   stdin,
		chunks:  make(chan string, 256),
		config:  config,
		prompt:  promptMatcher{suffixes: suffixes},
	}
	go s.read(stdout)
	return s
}

// read 将 stdout 分块推送到通道，读到 EOF 或出错时关闭通道
func (s *Shell) read(stdout io.Reader) {
	defer close(s.chunks)
	buf := make([]byte, 4096)
	for {
		n, err := stdout.Read(buf)
		if n > 0 {
			s.chunks <- string(buf[:n])
		}
		if err != nil {
			return
		}
	}
}

// waitPrompt 等待登录横幅后的首个提示符并捕获主机名前缀
// 部分设备需要回车才显示提示符，期间每秒发送一次换行
func (s *Shell) waitPrompt(ctx context.Context) error {
	wait := s.config.PromptWait
	if wait <= 0 {
		wait = 10 * time.Second
	}
	deadline := time.NewTimer(wait)
	defer deadline.Stop()
	inducer := time.NewTicker(time.Second)
	defer inducer.Stop()

	_, _ = s.stdin.Write([]byte("\n"))
	var acc strings.Builder
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return ErrNoPrompt
		case <-inducer.C:
			_, _ = s.stdin.Write([]byte("\n"))
		case chunk, ok := <-s.chunks:
			if !ok {
				return ErrShellClosed
			}
			acc.WriteString(normalizeNewlines(chunk))
			lines := strings.Split(acc.String(), "\n")
			for i := len(lines) - 1; i >= 0; i-- {
				clean := Sanitize(lines[i])
				if clean == "" {
					continue
				}
				if s.prompt.isPrompt(clean) {
					s.prompt.capture(clean)
					s.drain()
					return nil
				}
				break
			}
		}
	}
}

// drain 丢弃诱发器带来的多余提示符
func (s *Shell) drain() {
	quiet := time.NewTimer(300 * time.Millisecond)
	defer quiet.Stop()
	for {
		select {
		case _, ok := <-s.chunks:
			if !ok {
				return
			}
			if !quiet.Stop() {
				<-quiet.C
			}
			quiet.Reset(300 * time.Millisecond)
		case <-quiet.C:
			return
		}
	}
}

// Prompt 返回捕获的提示符前缀（通常为 user@hostname）
func (s *Shell) Prompt() string {
	return s.prompt.prefix
}

// Run 发送一条命令并读取到下一个提示符为止的输出（不含回显与提示符）
func (s *Shell) Run(ctx context.Context, command string) (*CommandResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.broken {
		return nil, ErrShellClosed
	}
	if s.config.CommandTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.CommandTimeout)
		defer cancel()
	}

	start := time.Now()
	result := &CommandResult{Command: command}
	if _, err := s.stdin.Write([]byte(command + "\n")); err != nil {
		s.broken = true
		return result, fmt.Errorf("%w: write command: %v", ErrShellClosed, err)
	}

	var acc strings.Builder
	acc.WriteString(s.pending)
	s.pending = ""
	for {
		if out, rest, ok := s.extract(acc.String(), command); ok {
			s.pending = rest
			result.Output = out
			result.Duration = time.Since(start)
			if hint := matchHint(out, s.config.ErrorHints); hint != "" {
				return result, &CommandError{Command: command, Hint: hint, Output: out}
			}
			return result, nil
		}

		select {
		case <-ctx.Done():
			s.broken = true
			result.Output = acc.String()
			result.Duration = time.Since(start)
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return result, fmt.Errorf("%w after %s: %s", ErrCommandTimeout, result.Duration.Round(time.Millisecond), command)
			}
			return result, ctx.Err()
		case chunk, ok := <-s.chunks:
			if !ok {
				s.broken = true
				result.Output = acc.String()
				return result, ErrShellClosed
			}
			acc.WriteString(normalizeNewlines(chunk))
		}
	}
}

// extract 在累计文本中查找结束提示符
// 返回去除回显后的输出、提示符之后的剩余文本、是否完成
func (s *Shell) extract(text, command string) (string, string, bool) {
	lines := strings.Split(text, "\n")
	start := 0
	for start < len(lines) && Sanitize(lines[start]) == "" {
		start++
	}
	if start >= len(lines) {
		return "", "", false
	}
	// 回显行尚未收全时继续等待；PTY 总会回显命令，单独一行的提示符视为上一条命令的残留
	if start == len(lines)-1 {
		return "", "", false
	}
	if s.prompt.isEcho(Sanitize(lines[start]), command) {
		start++
	}

	for i := start; i < len(lines); i++ {
		if !s.prompt.isPrompt(Sanitize(lines[i])) {
			continue
		}
		out := make([]string, 0, i-start)
		for _, ln := range lines[start:i] {
			out = append(out, strings.TrimRight(Sanitize(ln), " "))
		}
		return strings.Join(out, "\n"), strings.Join(lines[i+1:], "\n"), true
	}
	return "", "", false
}

// Close 退出 Shell 并关闭会话
func (s *Shell) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.broken {
		_, _ = s.stdin.Write([]byte("exit\n"))
	}
	s.broken = true
	_ = s.stdin.Close()
	return s.session.Close()
}
