package ssh

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sshcollectorpro/activerules/simulate"
)

const listing = `--------------------------------------------------------------------------------
ID          Application    State   Type Flag  Src[Sport]/Zone/Proto (translated IP[Port])
Vsys                                          Dst[Dport]/Zone (translated IP[Port])
--------------------------------------------------------------------------------
28741        ssl            ACTIVE  FLOW  NS   10.1.1.5[51234]/trust/6  (203.0.113.9[40001])
vsys1                                          198.51.100.7[443]/untrust  (198.51.100.7[443])`

func startFirewall(t *testing.T, commands ...simulate.Command) *simulate.Server {
	t.Helper()
	srv, err := simulate.Start(&simulate.Config{
		Hostname: "PA-VM",
		Username: "admin",
		Password: "secret",
		Banner:   "Last login: Fri Oct 16 09:12:44 2026 from 10.0.0.10",
		Commands: commands,
	})
	require.NoError(t, err)
	t.Cleanup(srv.Stop)
	return srv
}

func openShell(t *testing.T, srv *simulate.Server, cfg *Config) (*Client, *Shell) {
	t.Helper()
	client := NewClient(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, client.Connect(ctx, &ConnectionInfo{
		Host:     "127.0.0.1",
		Port:     srv.Addr().Port,
		Username: "admin",
		Password: "secret",
	}))
	t.Cleanup(func() { client.Close() })

	sh, err := client.OpenShell(ctx)
	require.NoError(t, err)
	return client, sh
}

func testConfig() *Config {
	return &Config{
		Timeout:        5 * time.Second,
		CommandTimeout: 5 * time.Second,
		PromptWait:     5 * time.Second,
		PromptSuffixes: []string{">", "#"},
		ErrorHints:     []string{"Invalid syntax", "Unknown command"},
	}
}

func TestShellRunStripsEchoAndPrompt(t *testing.T) {
	srv := startFirewall(t,
		simulate.Command{Command: "set cli pager off"},
		simulate.Command{Command: "show session all", Output: listing},
	)
	client, sh := openShell(t, srv, testConfig())
	assert.True(t, client.IsConnected())
	assert.Equal(t, "admin@PA-VM", sh.Prompt())

	ctx := context.Background()
	res, err := sh.Run(ctx, "set cli pager off")
	require.NoError(t, err)
	assert.Equal(t, "", res.Output)

	res, err = sh.Run(ctx, "show session all")
	require.NoError(t, err)
	assert.Equal(t, listing, res.Output)
	assert.Equal(t, "show session all", res.Command)

	received := srv.Received()
	require.Len(t, received, 2)
	assert.Equal(t, []string{"set cli pager off", "show session all"}, received)
	require.NoError(t, sh.Close())
}

func TestShellRunErrorHint(t *testing.T) {
	srv := startFirewall(t)
	_, sh := openShell(t, srv, testConfig())

	res, err := sh.Run(context.Background(), "show sesion all")
	require.Error(t, err)
	var cmdErr *CommandError
	require.True(t, errors.As(err, &cmdErr))
	assert.Equal(t, "Unknown command: show sesion all", cmdErr.Hint)
	assert.Equal(t, "Unknown command: show sesion all", res.Output)

	// 设备拒绝命令后 Shell 仍然可用
	_, err = sh.Run(context.Background(), "show sesion all")
	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrShellClosed))
}

func TestShellRunTimeoutBreaksShell(t *testing.T) {
	srv := startFirewall(t, simulate.Command{Command: "show session all", Output: listing, Delay: 2 * time.Second})
	cfg := testConfig()
	cfg.CommandTimeout = 300 * time.Millisecond
	_, sh := openShell(t, srv, cfg)

	_, err := sh.Run(context.Background(), "show session all")
	require.ErrorIs(t, err, ErrCommandTimeout)

	_, err = sh.Run(context.Background(), "show session all")
	assert.ErrorIs(t, err, ErrShellClosed)
}

func TestShellRunHangup(t *testing.T) {
	srv := startFirewall(t, simulate.Command{Command: "request restart system", Hangup: true})
	_, sh := openShell(t, srv, testConfig())

	_, err := sh.Run(context.Background(), "request restart system")
	assert.ErrorIs(t, err, ErrShellClosed)
}

func TestConnectRejectsBadPassword(t *testing.T) {
	srv := startFirewall(t)
	client := NewClient(testConfig())
	err := client.Connect(context.Background(), &ConnectionInfo{
		Host:     "127.0.0.1",
		Port:     srv.Addr().Port,
		Username: "admin",
		Password: "wrong",
	})
	assert.Error(t, err)
	assert.False(t, client.IsConnected())

	_, err = client.OpenShell(context.Background())
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestConnectionInfoAddress(t *testing.T) {
	assert.Equal(t, "10.0.0.1:22", (&ConnectionInfo{Host: "10.0.0.1"}).Address())
	assert.Equal(t, "[2001:db8::1]:2222", (&ConnectionInfo{Host: "2001:db8::1", Port: 2222}).Address())
}
