package prompt

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"golang.org/x/term"

	"github.com/sshcollectorpro/activerules/internal/service"
)

// Prompter 依次询问管理 IP、用户名与密码
// 终端（x/term 判定）下使用 readline 行编辑与不回显的密码输入；非终端（管道、脚本）按行读取
type Prompter struct {
	in          io.Reader
	out         io.Writer
	defaultPort int
	terminal    bool
}

// NewTerminal 基于进程标准输入输出创建
func NewTerminal(defaultPort int) *Prompter {
	return &Prompter{
		in:          os.Stdin,
		out:         os.Stdout,
		defaultPort: defaultPort,
		terminal:    term.IsTerminal(int(os.Stdin.Fd())),
	}
}

// New 基于任意输入输出创建（按行读取）
func New(in io.Reader, out io.Writer, defaultPort int) *Prompter {
	return &Prompter{in: in, out: out, defaultPort: defaultPort}
}

// Prompt 读取凭据；输入结束或 Ctrl-C 返回 service.ErrNoCredentials
func (p *Prompter) Prompt(ctx context.Context) (service.Credentials, error) {
	var host, user, pass string
	var err error
	if p.terminal {
		host, user, pass, err = p.readTerminal(ctx)
	} else {
		host, user, pass, err = p.readLines(ctx)
	}
	if err != nil {
		return service.Credentials{}, err
	}
	return p.credentials(host, user, pass)
}

func (p *Prompter) readTerminal(ctx context.Context) (string, string, string, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "Management IP: ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		Stdout:          p.out,
	})
	if err != nil {
		return "", "", "", fmt.Errorf("readline: %w", err)
	}
	defer rl.Close()

	ask := func(title, prompt string) (string, error) {
		for {
			if err := ctx.Err(); err != nil {
				return "", err
			}
			fmt.Fprintln(p.out, title)
			rl.SetPrompt(prompt)
			line, err := rl.Readline()
			if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
				return "", service.ErrNoCredentials
			}
			if err != nil {
				return "", err
			}
			if line = strings.TrimSpace(line); line != "" {
				fmt.Fprintln(p.out)
				return line, nil
			}
		}
	}

	host, err := ask("Please enter the firewall IP!", "Management IP: ")
	if err != nil {
		return "", "", "", err
	}
	user, err := ask("Enter the login username!", "User: ")
	if err != nil {
		return "", "", "", err
	}

	// 密码须由同一 readline 实例读取
	fmt.Fprintln(p.out, "Enter the login password!")
	raw, err := rl.ReadPassword("Password: ")
	fmt.Fprintln(p.out)
	if err != nil {
		return "", "", "", fmt.Errorf("%w: %v", service.ErrNoCredentials, err)
	}
	return host, user, string(raw), nil
}

func (p *Prompter) readLines(ctx context.Context) (string, string, string, error) {
	scanner := bufio.NewScanner(p.in)
	values := make([]string, 0, 3)
	for _, prompt := range []string{"Management IP: ", "User: ", "Password: "} {
		if err := ctx.Err(); err != nil {
			return "", "", "", err
		}
		fmt.Fprint(p.out, prompt)
		if !scanner.Scan() {
			fmt.Fprintln(p.out)
			if err := scanner.Err(); err != nil {
				return "", "", "", fmt.Errorf("%w: %v", service.ErrNoCredentials, err)
			}
			return "", "", "", service.ErrNoCredentials
		}
		fmt.Fprintln(p.out)
		values = append(values, strings.TrimRight(scanner.Text(), "\r"))
	}
	return strings.TrimSpace(values[0]), strings.TrimSpace(values[1]), values[2], nil
}

// credentials 支持 "host:port" 与 "[v6]:port" 形式覆盖默认端口
func (p *Prompter) credentials(host, user, pass string) (service.Credentials, error) {
	if host == "" || user == "" {
		return service.Credentials{}, fmt.Errorf("%w: host and username are required", service.ErrNoCredentials)
	}
	creds := service.Credentials{Host: host, Port: p.defaultPort, Username: user, Password: pass}
	if h, portStr, err := net.SplitHostPort(host); err == nil {
		port, perr := strconv.Atoi(portStr)
		if perr != nil || port < 1 || port > 65535 {
			return service.Credentials{}, fmt.Errorf("invalid port in %q", host)
		}
		creds.Host = h
		creds.Port = port
	}
	return creds, nil
}
