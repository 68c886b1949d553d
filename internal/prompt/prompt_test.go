package prompt

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sshcollectorpro/activerules/internal/service"
)

func TestPromptReadsLines(t *testing.T) {
	var out bytes.Buffer
	p := New(strings.NewReader("192.0.2.1\r\nadmin\n s3cret \n"), &out, 22)

	creds, err := p.Prompt(context.Background())
	require.NoError(t, err)
	assert.Equal(t, service.Credentials{Host: "192.0.2.1", Port: 22, Username: "admin", Password: " s3cret "}, creds)
	assert.Contains(t, out.String(), "Management IP: ")
	assert.Contains(t, out.String(), "Password: ")
	assert.NotContains(t, out.String(), "s3cret", "密码不回显")
}

func TestPromptHostPort(t *testing.T) {
	p := New(strings.NewReader("fw.example.net:2222\nadmin\npw\n"), &bytes.Buffer{}, 22)
	creds, err := p.Prompt(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fw.example.net", creds.Host)
	assert.Equal(t, 2222, creds.Port)

	p = New(strings.NewReader("[2001:db8::1]:830\nadmin\npw\n"), &bytes.Buffer{}, 22)
	creds, err = p.Prompt(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2001:db8::1", creds.Host)

	p = New(strings.NewReader("fw:99999\nadmin\npw\n"), &bytes.Buffer{}, 22)
	_, err = p.Prompt(context.Background())
	assert.Error(t, err)
}

func TestPromptMissingInput(t *testing.T) {
	p := New(strings.NewReader("192.0.2.1\nadmin\n"), &bytes.Buffer{}, 22)
	_, err := p.Prompt(context.Background())
	assert.ErrorIs(t, err, service.ErrNoCredentials)

	p = New(strings.NewReader("\nadmin\npw\n"), &bytes.Buffer{}, 22)
	_, err = p.Prompt(context.Background())
	assert.ErrorIs(t, err, service.ErrNoCredentials)
}

func TestPromptCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(strings.NewReader("a\nb\nc\n"), &bytes.Buffer{}, 22).Prompt(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
