package simulate

import (
	"bufio"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"golang.org/x/crypto/ssh"

	"github.com/sshcollectorpro/activerules/pkg/logger"
)

// Config 模拟防火墙配置
type Config struct {
	// Listen 监听地址，为空时使用 127.0.0.1:0（随机端口）
	Listen       string        `mapstructure:"listen"`
	Hostname     string        `mapstructure:"hostname"`
	Username     string        `mapstructure:"username"`
	Password     string        `mapstructure:"password"`
	PromptSuffix string        `mapstructure:"prompt_suffix"`
	Banner       string        `mapstructure:"banner"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	// Unknown 未匹配命令的回显，%s 替换为命令
	Unknown  string    `mapstructure:"unknown"`
	Commands []Command `mapstructure:"commands"`
}

// Command 一条命令及其固定回显
type Command struct {
	Command string        `mapstructure:"command"`
	Output  string        `mapstructure:"output"`
	Delay   time.Duration `mapstructure:"delay"`
	// Hangup 为 true 时不回显并直接断开会话
	Hangup bool `mapstructure:"hangup"`
}

// LoadConfig 读取模拟器 YAML 配置
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read simulate config: %w", err)
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal simulate config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.Listen == "" {
		out.Listen = "127.0.0.1:0"
	}
	if out.Hostname == "" {
		out.Hostname = "PA-VM"
	}
	if out.Username == "" {
		out.Username = "admin"
	}
	if out.PromptSuffix == "" {
		out.PromptSuffix = ">"
	}
	if out.Unknown == "" {
		out.Unknown = "Unknown command: %s"
	}
	return out
}

// Server 单设备 SSH 模拟服务
type Server struct {
	cfg      Config
	listener net.Listener
	hostKey  ssh.Signer
	commands map[string]Command

	mu       sync.Mutex
	received []string
	conns    map[net.Conn]struct{}
	wg       sync.WaitGroup
}

// Start 启动模拟服务
func Start(cfg *Config) (*Server, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	c := cfg.withDefaults()

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate host key: %w", err)
	}
	signer, err := ssh.NewSignerFromKey(priv)
	if err != nil {
		return nil, fmt.Errorf("failed to create host key signer: %w", err)
	}

	ln, err := net.Listen("tcp", c.Listen)
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:      c,
		listener: ln,
		hostKey:  signer,
		commands: make(map[string]Command, len(c.Commands)),
		conns:    make(map[net.Conn]struct{}),
	}
	for _, cmd := range c.Commands {
		s.commands[normalizeCommand(cmd.Command)] = cmd
	}

	s.wg.Add(1)
	go s.accept()
	logger.WithFields(logrus.Fields{"addr": ln.Addr().String(), "host": c.Hostname}).Debug("Simulate: listener started")
	return s, nil
}

// Addr 实际监听地址
func (s *Server) Addr() *net.TCPAddr {
	return s.listener.Addr().(*net.TCPAddr)
}

// Received 返回会话中收到的全部非空命令（按顺序）
func (s *Server) Received() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.received...)
}

// Stop 停止服务，断开现有连接并等待退出
func (s *Server) Stop() {
	_ = s.listener.Close()
	s.mu.Lock()
	for c := range s.conns {
		_ = c.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Server) accept() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			// listener closed
			return
		}
		s.mu.Lock()
		s.conns[conn] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go func(c net.Conn) {
			defer s.wg.Done()
			s.handleConn(c)
			s.mu.Lock()
			delete(s.conns, c)
			s.mu.Unlock()
		}(conn)
	}
}

func (s *Server) authorize(user, pass string) error {
	if user == s.cfg.Username && pass == s.cfg.Password {
		return nil
	}
	return fmt.Errorf("access denied")
}

func (s *Server) handleConn(nc net.Conn) {
	srvCfg := &ssh.ServerConfig{
		PasswordCallback: func(meta ssh.ConnMetadata, password []byte) (*ssh.Permissions, error) {
			return nil, s.authorize(meta.User(), string(password))
		},
		KeyboardInteractiveCallback: func(meta ssh.ConnMetadata, challenge ssh.KeyboardInteractiveChallenge) (*ssh.Permissions, error) {
			answers, err := challenge(meta.User(), "Authentication", []string{"Password:"}, []bool{false})
			if err != nil {
				return nil, err
			}
			if len(answers) == 0 {
				return nil, fmt.Errorf("access denied")
			}
			return nil, s.authorize(meta.User(), answers[0])
		},
	}
	srvCfg.AddHostKey(s.hostKey)

	conn, chans, reqs, err := ssh.NewServerConn(nc, srvCfg)
	if err != nil {
		logger.WithField("error", err).Debug("Simulate: SSH handshake failed")
		_ = nc.Close()
		return
	}
	defer conn.Close()
	go ssh.DiscardRequests(reqs)

	var sessions sync.WaitGroup
	for ch := range chans {
		if ch.ChannelType() != "session" {
			_ = ch.Reject(ssh.UnknownChannelType, "unknown channel type")
			continue
		}
		channel, requests, err := ch.Accept()
		if err != nil {
			continue
		}
		sessions.Add(1)
		go func() {
			defer sessions.Done()
			s.handleSession(conn, channel, requests)
		}()
	}
	sessions.Wait()
}

func (s *Server) handleSession(conn *ssh.ServerConn, channel ssh.Channel, requests <-chan *ssh.Request) {
	defer channel.Close()
	for req := range requests {
		switch req.Type {
		case "pty-req":
			_ = req.Reply(true, nil)
		case "shell":
			_ = req.Reply(true, nil)
			go ssh.DiscardRequests(requests)
			s.runShell(channel, conn.User())
			return
		default:
			_ = req.Reply(false, nil)
		}
	}
}

func (s *Server) prompt(user string) string {
	return fmt.Sprintf("%s@%s%s ", user, s.cfg.Hostname, s.cfg.PromptSuffix)
}

// runShell 模拟 PAN-OS 操作模式：回显输入、输出命令结果、打印不换行的提示符
func (s *Server) runShell(channel ssh.Channel, user string) {
	if s.cfg.Banner != "" {
		_, _ = io.WriteString(channel, ensureCRLF(s.cfg.Banner)+"\r\n")
	}
	_, _ = io.WriteString(channel, s.prompt(user))

	lines := make(chan string)
	done := make(chan struct{})
	defer close(done)
	go func() {
		defer close(lines)
		reader := bufio.NewReader(channel)
		for {
			line, err := reader.ReadString('\n')
			if line != "" || err == nil {
				select {
				case lines <- line:
				case <-done:
					return
				}
			}
			if err != nil {
				return
			}
		}
	}()

	var idle <-chan time.Time
	for {
		if s.cfg.IdleTimeout > 0 {
			idle = time.After(s.cfg.IdleTimeout)
		}
		var line string
		var ok bool
		select {
		case <-idle:
			_, _ = io.WriteString(channel, "\r\nSession closed due to idle timeout.\r\n")
			return
		case line, ok = <-lines:
			if !ok {
				return
			}
		}

		cmd := strings.TrimSpace(strings.ReplaceAll(line, "\r", ""))
		if cmd == "" {
			_, _ = io.WriteString(channel, "\r\n"+s.prompt(user))
			continue
		}
		s.mu.Lock()
		s.received = append(s.received, cmd)
		s.mu.Unlock()

		_, _ = io.WriteString(channel, cmd+"\r\n")
		if strings.EqualFold(cmd, "exit") || strings.EqualFold(cmd, "quit") {
			return
		}

		entry, found := s.commands[normalizeCommand(cmd)]
		if entry.Delay > 0 {
			time.Sleep(entry.Delay)
		}
		if entry.Hangup {
			return
		}
		out := entry.Output
		if !found {
			out = fmt.Sprintf(s.cfg.Unknown, cmd)
		}
		if out != "" {
			_, _ = io.WriteString(channel, ensureCRLF(out))
		}
		_, _ = io.WriteString(channel, s.prompt(user))
	}
}

// ErrNoCommands 配置中没有任何命令
var ErrNoCommands = errors.New("simulate: no commands configured")

// Validate 校验配置可用于启动
func (c *Config) Validate() error {
	if c.Password == "" {
		return fmt.Errorf("simulate: password must not be empty")
	}
	if len(c.Commands) == 0 {
		return ErrNoCommands
	}
	return nil
}

func normalizeCommand(cmd string) string {
	return strings.Join(strings.Fields(cmd), " ")
}

func ensureCRLF(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\n", "\r\n")
	if !strings.HasSuffix(s, "\r\n") {
		s += "\r\n"
	}
	return s
}
