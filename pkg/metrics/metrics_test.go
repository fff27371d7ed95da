package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveFile(t *testing.T) {
	c := New(DefaultConfig())

	c.ObserveFile(false, 10*time.Millisecond)
	c.ObserveFile(false, 20*time.Millisecond)
	c.ObserveFile(true, time.Millisecond)

	families, err := c.Gather()
	require.NoError(t, err)

	files := findFamily(families, "files_total")
	require.NotNil(t, files)
	assert.Equal(t, 2.0, findByLabel(files, "outcome", "processed").GetCounter().GetValue())
	assert.Equal(t, 1.0, findByLabel(files, "outcome", "failed").GetCounter().GetValue())

	duration := findFamily(families, "file_duration_seconds")
	require.NotNil(t, duration)
	assert.Equal(t, dto.MetricType_HISTOGRAM, duration.GetType())
	assert.Equal(t, uint64(3), duration.Metric[0].GetHistogram().GetSampleCount())
}

func TestObserveSet(t *testing.T) {
	c := New(DefaultConfig())

	c.ObserveSet("accepted", "cents", nil, 0)
	c.ObserveSet("accepted_with_errors", "dollars", []string{"unreconciled"}, 2)
	c.ObserveSet("rejected", "", []string{"structurally_suspect"}, 0)

	families, err := c.Gather()
	require.NoError(t, err)

	sets := findFamily(families, "transaction_sets_total")
	require.NotNil(t, sets)
	assert.Len(t, sets.Metric, 3)

	interps := findFamily(families, "interpretations_total")
	require.NotNil(t, interps)
	assert.Len(t, interps.Metric, 2)

	flags := findFamily(families, "flags_total")
	require.NotNil(t, flags)
	assert.Equal(t, 1.0, findByLabel(flags, "flag", "unreconciled").GetCounter().GetValue())

	disc := findFamily(families, "discrepancies_total")
	require.NotNil(t, disc)
	assert.Equal(t, 2.0, disc.Metric[0].GetCounter().GetValue())
}

func TestNilCollector(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.ObserveFile(true, time.Second)
		c.ObserveSet("accepted", "dollars", []string{"x"}, 1)
		c.MarkRun(time.Now())
	})
}

func TestWriteTextfile(t *testing.T) {
	c := New(DefaultConfig())
	c.ObserveFile(false, time.Millisecond)
	c.MarkRun(time.Unix(1700000000, 0))

	path := filepath.Join(t.TempDir(), "ediproc.prom")
	require.NoError(t, c.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, `ediproc_files_total{outcome="processed"} 1`)
	assert.Contains(t, text, "ediproc_last_run_timestamp_seconds")
}

func findFamily(families []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, f := range families {
		if strings.HasSuffix(f.GetName(), name) {
			return f
		}
	}
	return nil
}

func findByLabel(family *dto.MetricFamily, key, value string) *dto.Metric {
	for _, m := range family.Metric {
		for _, l := range m.Label {
			if l.GetName() == key && l.GetValue() == value {
				return m
			}
		}
	}
	return nil
}
