package metrics

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteFile(t *testing.T) {
	before := testutil.ToFloat64(PagesTotal.WithLabelValues("metrics-test"))
	PagesTotal.WithLabelValues("metrics-test").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(PagesTotal.WithLabelValues("metrics-test")))

	path := filepath.Join(t.TempDir(), "github_mining.prom")
	require.NoError(t, WriteFile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `github_mining_pages_total{source="metrics-test"}`)
}

func TestWriteFile_BadPath(t *testing.T) {
	err := WriteFile(filepath.Join(t.TempDir(), "missing", "dir", "out.prom"))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to write metrics file")
}
