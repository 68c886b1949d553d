package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sshcollectorpro/activerules/internal/service"
)

func TestTextfileRecorder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prom", "active_rules.prom")
	rec := NewTextfileRecorder(path)

	start := time.Unix(1760000000, 0)
	rec.Record(&service.RunSummary{
		Host:           "192.0.2.1",
		Status:         service.RunStatusSuccess,
		StartedAt:      start,
		FinishedAt:     start.Add(2 * time.Second),
		Sessions:       3,
		Commands:       []string{"a", "b", "c"},
		FailedCommands: []service.FailedCommand{{Command: "b"}},
		Rules:          []string{"allow-web", "allow-dns"},
	})

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, `activerules_rules{host="192.0.2.1"} 2`)
	assert.Contains(t, text, `activerules_commands_failed{host="192.0.2.1"} 1`)
	assert.Contains(t, text, `activerules_last_run_duration_seconds{host="192.0.2.1"} 2`)
	assert.Contains(t, text, `activerules_last_run_success{host="192.0.2.1"} 1`)
	assert.Contains(t, text, `activerules_last_run_timestamp_seconds{host="192.0.2.1"} 1.760000002e+09`)
}
