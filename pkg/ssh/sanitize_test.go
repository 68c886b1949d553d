package ssh

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitize(t *testing.T) {
	assert.Equal(t, "admin@PA-VM>", Sanitize("\x1b[0;32madmin@PA-VM>\x1b[0m \r"))
	assert.Equal(t, "a\tb", Sanitize("\x07a\tb\x00"))
	assert.Equal(t, "a\nb", normalizeNewlines("a\r\nb\r"))
}

func TestPromptMatcher(t *testing.T) {
	m := promptMatcher{suffixes: []string{">", "#"}}
	assert.True(t, m.isPrompt("admin@PA-VM>"))
	assert.False(t, m.isPrompt("rule : allow-web"))

	m.capture("admin@PA-VM>")
	assert.Equal(t, "admin@PA-VM", m.prefix)
	assert.True(t, m.isPrompt("admin@PA-VM#"), "配置模式提示符")
	assert.False(t, m.isPrompt("Src[Sport]/Zone/Proto ->"), "必须包含捕获的前缀")

	assert.True(t, m.isEcho("show session all", "show session all"))
	assert.True(t, m.isEcho("admin@PA-VM> show session all", "show session all"))
	assert.False(t, m.isEcho("admin@PA-VM>", "show session all"))
}

func TestMatchHint(t *testing.T) {
	hints := []string{"Invalid syntax", "Unknown command"}
	assert.Equal(t, "Invalid syntax.", matchHint("\n  Invalid syntax.\n", hints))
	assert.Equal(t, "unknown command: foo", matchHint("unknown command: foo", hints))
	assert.Empty(t, matchHint("rule : allow-web(vsys1)", hints))
	assert.Empty(t, matchHint("Invalid syntax.", nil))
}
