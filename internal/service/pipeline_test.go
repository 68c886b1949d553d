package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sshcollectorpro/activerules/internal/config"
	"github.com/sshcollectorpro/activerules/internal/sink"
	"github.com/sshcollectorpro/activerules/internal/table"
)

const panListing = `--------------------------------------------------------------------------------
ID          Application    State   Type Flag  Src[Sport]/Zone/Proto (translated IP[Port])
Vsys                                          Dst[Dport]/Zone (translated IP[Port])
--------------------------------------------------------------------------------
28741        ssl            ACTIVE  FLOW  NS   10.1.1.5[51234]/trust/6  (203.0.113.9[40001])
vsys1                                          198.51.100.7[443]/untrust  (198.51.100.7[443])
28802        dns-base       ACTIVE  FLOW       10.1.1.8[53311]/trust/17  (10.1.1.8[53311])
vsys1                                          10.0.0.53[53]/dmz  (10.0.0.53[53])
29110        web-browsing   ACTIVE  FLOW  NS   10.1.2.20[60110]/trust/6  (203.0.113.9[40522])
vsys1                                          93.184.216.34[80]/untrust  (93.184.216.34[80])`

type fakePrompter struct {
	creds Credentials
	err   error
}

func (p fakePrompter) Prompt(context.Context) (Credentials, error) { return p.creds, p.err }

type fakeGateway struct {
	outputs    map[string]string
	failures   map[string]error
	connectErr error
	executed   []string
	closed     bool
}

func (g *fakeGateway) Connect(_ context.Context, creds Credentials) (Session, error) {
	if g.connectErr != nil {
		return nil, &ConnectionError{Host: creds.Address(), Err: g.connectErr}
	}
	return g, nil
}

func (g *fakeGateway) Execute(_ context.Context, command string) (string, error) {
	g.executed = append(g.executed, command)
	if err, ok := g.failures[command]; ok {
		return "", &ExecutionError{Command: command, Err: err}
	}
	return g.outputs[command], nil
}

func (g *fakeGateway) Close() error {
	g.closed = true
	return nil
}

type memorySink struct {
	writes map[string]*table.Table
	fail   sink.Format
}

func (m *memorySink) Write(_ context.Context, t *table.Table, f sink.Format, name string) (sink.StoredObject, error) {
	if f == m.fail {
		return sink.StoredObject{}, errors.New("disk full")
	}
	if m.writes == nil {
		m.writes = map[string]*table.Table{}
	}
	key := fmt.Sprintf("%s.%s", name, f)
	m.writes[key] = t
	return sink.StoredObject{URI: "mem://" + key}, nil
}

type recordingHistory struct{ saved []*RunSummary }

func (h *recordingHistory) Save(_ context.Context, s *RunSummary) error {
	h.saved = append(h.saved, s)
	return errors.New("database is locked")
}

type recordingMetrics struct{ recorded int }

func (m *recordingMetrics) Record(*RunSummary) { m.recorded++ }

func firewall() *fakeGateway {
	return &fakeGateway{
		outputs: map[string]string{
			"show session all":                   panListing,
			"show session id 28741 | match rule": "rule : allow-web(vsys1)\nQoS rule : default (class 4)",
			"show session id 28802 | match rule": "rule : allow-dns(vsys1)\nQoS rule : default (class 4)",
			"show session id 29110 | match rule": "rule : allow-web(vsys1)\nQoS rule : default (class 4)",
		},
		failures: map[string]error{},
	}
}

func defaultOptions(t *testing.T) PipelineOptions {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	opts, err := OptionsFromConfig(cfg)
	require.NoError(t, err)
	return opts
}

func newRunner(t *testing.T, gw *fakeGateway, sk *memorySink) *Runner {
	return &Runner{
		Gateway:  gw,
		Prompter: fakePrompter{creds: Credentials{Host: "192.0.2.1", Username: "admin", Password: "secret"}},
		Sink:     sk,
		Options:  defaultOptions(t),
	}
}

func TestRunnerHappyPath(t *testing.T) {
	gw := firewall()
	sk := &memorySink{}
	history := &recordingHistory{}
	metrics := &recordingMetrics{}
	var progress []string

	r := newRunner(t, gw, sk)
	r.History = history
	r.Metrics = metrics
	r.Progress = func(msg string) { progress = append(progress, msg) }

	summary, err := r.Run(context.Background())
	require.NoError(t, err, "历史记录失败不影响结果")

	assert.Equal(t, []string{
		"set cli config-output-format set",
		"set cli pager off",
		"show session all",
		"show session id 28741 | match rule",
		"show session id 28802 | match rule",
		"show session id 29110 | match rule",
	}, gw.executed)
	assert.True(t, gw.closed)

	assert.Equal(t, RunStatusSuccess, summary.Status)
	assert.Len(t, summary.RunID, 12)
	assert.Equal(t, "192.0.2.1", summary.Host)
	assert.Equal(t, 3, summary.Sessions)
	assert.Equal(t, []string{"allow-dns", "allow-web"}, summary.Rules)
	assert.Len(t, summary.Objects, 3)

	cmds := sk.writes["showcommands.delimited-text"]
	require.NotNil(t, cmds)
	assert.Equal(t, summary.Commands, cmds.Column("command"))

	csvT, tsvT := sk.writes["active_sessions.csv"], sk.writes["active_sessions.tsv"]
	require.NotNil(t, csvT)
	assert.Equal(t, csvT, tsvT, "两种格式的列与行顺序一致")

	assert.Len(t, history.saved, 1)
	assert.Equal(t, 1, metrics.recorded)
	assert.NotEmpty(t, progress)
}

func TestRunnerSkipsFailedFollowUp(t *testing.T) {
	gw := firewall()
	gw.failures["show session id 28802 | match rule"] = errors.New("Invalid syntax.")
	sk := &memorySink{}

	summary, err := newRunner(t, gw, sk).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"allow-web"}, summary.Rules)
	require.Len(t, summary.FailedCommands, 1)
	assert.Equal(t, "show session id 28802 | match rule", summary.FailedCommands[0].Command)
	assert.Len(t, gw.executed, 6, "跳过失败命令后继续执行")
}

func TestRunnerAbortPolicy(t *testing.T) {
	gw := firewall()
	gw.failures["show session id 28802 | match rule"] = errors.New("Invalid syntax.")
	r := newRunner(t, gw, &memorySink{})
	r.Options.AbortOnCommandError = true

	summary, err := r.Run(context.Background())
	var execErr *ExecutionError
	require.True(t, errors.As(err, &execErr))
	assert.Equal(t, "show session id 28802 | match rule", execErr.Command)
	assert.Equal(t, RunStatusFailed, summary.Status)
	assert.Len(t, gw.executed, 5)
}

func TestRunnerSessionLostIsFatal(t *testing.T) {
	gw := firewall()
	gw.failures["show session id 28741 | match rule"] = fmt.Errorf("%w: timeout", ErrSessionLost)

	_, err := newRunner(t, gw, &memorySink{}).Run(context.Background())
	assert.ErrorIs(t, err, ErrSessionLost)
	assert.Len(t, gw.executed, 4)
}

func TestRunnerFatalErrors(t *testing.T) {
	t.Run("credentials", func(t *testing.T) {
		r := newRunner(t, firewall(), &memorySink{})
		r.Prompter = fakePrompter{err: ErrNoCredentials}
		_, err := r.Run(context.Background())
		assert.ErrorIs(t, err, ErrNoCredentials)
	})

	t.Run("connection", func(t *testing.T) {
		gw := firewall()
		gw.connectErr = errors.New("connection refused")
		summary, err := newRunner(t, gw, &memorySink{}).Run(context.Background())
		var connErr *ConnectionError
		require.True(t, errors.As(err, &connErr))
		assert.Equal(t, "192.0.2.1:22", connErr.Host)
		assert.Contains(t, summary.Error, "connection refused")
	})

	t.Run("setup command", func(t *testing.T) {
		gw := firewall()
		gw.failures["set cli pager off"] = errors.New("Unknown command: pager")
		_, err := newRunner(t, gw, &memorySink{}).Run(context.Background())
		var execErr *ExecutionError
		require.True(t, errors.As(err, &execErr))
		assert.Equal(t, "set cli pager off", execErr.Command)
		assert.True(t, gw.closed)
	})

	t.Run("malformed listing", func(t *testing.T) {
		gw := firewall()
		gw.outputs["show session all"] = "a\nb\nc\nid name\n1 x\n2\n"
		r := newRunner(t, gw, &memorySink{})
		r.Options.Session = table.ParseOptions{SkipLines: 3}
		_, err := r.Run(context.Background())
		var mre *table.MalformedRowError
		require.True(t, errors.As(err, &mre))
		assert.Equal(t, 6, mre.Line)
	})

	t.Run("sink", func(t *testing.T) {
		_, err := newRunner(t, firewall(), &memorySink{fail: sink.FormatTSV}).Run(context.Background())
		var sinkErr *SinkError
		require.True(t, errors.As(err, &sinkErr))
		assert.Equal(t, sink.FormatTSV, sinkErr.Format)
	})
}

func TestOptionsFromConfig(t *testing.T) {
	opts := defaultOptions(t)
	assert.Equal(t, table.ParseOptions{SkipLines: 3, MaxColumns: 1}, opts.Session)
	assert.Equal(t, CommandTemplate{Prefix: "show session id ", Suffix: " | match rule"}, opts.Template)
	assert.False(t, opts.AbortOnCommandError)
	require.Len(t, opts.Report.StripPatterns, 1)
	assert.Equal(t, []sink.Format{sink.FormatCSV, sink.FormatTSV}, opts.ReportFormats)
}
