package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sshcollectorpro/activerules/internal/model"
	"github.com/sshcollectorpro/activerules/internal/service"
)

func TestPrintBanner(t *testing.T) {
	var buf bytes.Buffer
	printBanner(&buf)
	assert.Equal(t, banner, buf.String())
	assert.False(t, strings.HasSuffix(buf.String(), "\n\n"), "横幅末尾只有一个换行")
}

func TestRuleChanges(t *testing.T) {
	added, removed := ruleChanges([]string{"allow-web", "allow-dns", "ntp"}, []string{"allow-dns", "vpn", "allow-web"})
	assert.Equal(t, []string{"vpn"}, added)
	assert.Equal(t, []string{"ntp"}, removed)

	added, removed = ruleChanges(nil, nil)
	assert.Empty(t, added)
	assert.Empty(t, removed)
}

type fakeHistory struct {
	prev  *model.Run
	rules map[string][]string
	err   error
	asked []string
}

func (f *fakeHistory) LastSuccessful(_ context.Context, host, exclude string) (*model.Run, error) {
	f.asked = append(f.asked, host+"|"+exclude)
	return f.prev, f.err
}

func (f *fakeHistory) Rules(_ context.Context, runID string) ([]string, error) {
	return f.rules[runID], nil
}

func TestCompareWithPrevious(t *testing.T) {
	summary := &service.RunSummary{RunID: "cur", Host: "192.0.2.1", Rules: []string{"allow-web", "vpn"}}

	h := &fakeHistory{
		prev:  &model.Run{ID: "old", StartTime: time.Date(2026, 10, 15, 8, 0, 0, 0, time.Local)},
		rules: map[string][]string{"old": {"allow-web", "ntp"}},
	}
	var buf bytes.Buffer
	require.NoError(t, compareWithPrevious(context.Background(), &buf, h, summary))
	assert.Equal(t, []string{"192.0.2.1|cur"}, h.asked, "排除本次运行")
	assert.Equal(t, "Compared with the run of 2026-10-15 08:00:00: 1 new, 1 no longer active\n  + vpn\n  - ntp\n", buf.String())

	buf.Reset()
	require.NoError(t, compareWithPrevious(context.Background(), &buf, &fakeHistory{}, summary))
	assert.Empty(t, buf.String(), "首次运行没有可比较的记录")

	assert.Error(t, compareWithPrevious(context.Background(), &buf, &fakeHistory{err: errors.New("database is locked")}, summary))
}
