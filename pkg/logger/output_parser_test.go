package logger

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOutputLines(t *testing.T) {
	short := ParseOutputLines("a\r\nb\r\n", 5)
	assert.Equal(t, []string{"a", "b"}, short.HeadLines)
	assert.Empty(t, short.TailLines, "行数不超过上限时不重复输出尾部")
	assert.Equal(t, 2, short.Total)

	long := ParseOutputLines(strings.Join([]string{"1", "2", "3", "4", "5", "6", "7"}, "\n"), 3)
	assert.Equal(t, []string{"1", "2", "3"}, long.HeadLines)
	assert.Equal(t, []string{"5", "6", "7"}, long.TailLines)

	overlap := ParseOutputLines("1\n2\n3\n4", 3)
	assert.Equal(t, []string{"4"}, overlap.TailLines, "尾部不与头部重叠")

	assert.Equal(t, 0, ParseOutputLines("\n\n", 3).Total)
}

func TestFormatOutputLines(t *testing.T) {
	got := FormatOutputLines(OutputLines{HeadLines: []string{"a", "b"}, TailLines: []string{"z"}})
	assert.Equal(t, "head-lines: [a ⟩ b], tail-lines: [z]", got)
}

func TestDebugCommandOutputRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	GetLogger().SetOutput(&buf)
	GetLogger().SetLevel(logrus.InfoLevel)
	DebugCommandOutput("show session all", "x\ny", 5)
	assert.Empty(t, buf.String())

	GetLogger().SetLevel(logrus.DebugLevel)
	DebugCommandOutput("show session all", "x\ny", 5)
	assert.Contains(t, buf.String(), "head-lines: [x ⟩ y]")
}

func TestInitFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "run.log")
	require.NoError(t, Init(Config{Level: "debug", Output: "file", FilePath: path, MaxSize: 1}))
	assert.Equal(t, logrus.DebugLevel, GetLogger().Level)

	require.NoError(t, Init(Config{Level: "nonsense", Output: "none"}))
	assert.Equal(t, logrus.InfoLevel, GetLogger().Level, "非法级别回退为 info")
}
