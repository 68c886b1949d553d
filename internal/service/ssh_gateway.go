package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sshcollectorpro/activerules/internal/config"
	"github.com/sshcollectorpro/activerules/internal/util"
	"github.com/sshcollectorpro/activerules/pkg/logger"
	sshc "github.com/sshcollectorpro/activerules/pkg/ssh"
)

// SSHGateway 基于交互式 SSH Shell 的网关
type SSHGateway struct {
	config  *sshc.Config
	port    int
	charset string
}

// NewSSHGateway 由配置创建网关
func NewSSHGateway(cfg config.SSHConfig) *SSHGateway {
	return &SSHGateway{
		config: &sshc.Config{
			Timeout:        cfg.ConnectTimeout,
			KeepAlive:      cfg.KeepAliveInterval,
			CommandTimeout: cfg.CommandTimeout,
			PromptWait:     cfg.ConnectTimeout,
			PromptSuffixes: cfg.PromptSuffixes,
			ErrorHints:     cfg.ErrorHints,
		},
		port:    cfg.Port,
		charset: cfg.Encoding,
	}
}

// Connect 登录设备并打开交互 Shell
func (g *SSHGateway) Connect(ctx context.Context, creds Credentials) (Session, error) {
	port := creds.Port
	if port == 0 {
		port = g.port
	}
	info := &sshc.ConnectionInfo{Host: creds.Host, Port: port, Username: creds.Username, Password: creds.Password}

	client := sshc.NewClient(g.config)
	if err := client.Connect(ctx, info); err != nil {
		return nil, &ConnectionError{Host: info.Address(), Err: err}
	}
	shell, err := client.OpenShell(ctx)
	if err != nil {
		client.Close()
		return nil, &ConnectionError{Host: info.Address(), Err: err}
	}
	logger.WithFields(logrus.Fields{"host": info.Address(), "prompt": shell.Prompt()}).Info("device session established")
	return &sshSession{client: client, shell: shell, charset: g.charset, host: info.Address()}, nil
}

type sshSession struct {
	client  *sshc.Client
	shell   *sshc.Shell
	charset string
	host    string
}

func (s *sshSession) Execute(ctx context.Context, command string) (string, error) {
	start := time.Now()
	res, err := s.shell.Run(ctx, command)
	output := ""
	if res != nil {
		output = util.DecodeOutput(res.Output, s.charset)
	}
	entry := logger.WithFields(logrus.Fields{"host": s.host, "command": command, "duration": time.Since(start).Round(time.Millisecond)})
	if err != nil {
		entry.WithError(err).Warn("command failed")
		var cmdErr *sshc.CommandError
		if errors.As(err, &cmdErr) {
			return output, &ExecutionError{Command: command, Output: output, Err: err}
		}
		if errors.Is(err, sshc.ErrCommandTimeout) || errors.Is(err, sshc.ErrShellClosed) {
			return output, &ExecutionError{Command: command, Output: output, Err: fmt.Errorf("%w: %v", ErrSessionLost, err)}
		}
		return output, &ExecutionError{Command: command, Output: output, Err: err}
	}
	entry.Debug("command finished")
	logger.DebugCommandOutput(command, output, 5)
	return output, nil
}

func (s *sshSession) Close() error {
	_ = s.shell.Close()
	return s.client.Close()
}
