package admin

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricSet_SnapshotOrderAndNames(t *testing.T) {
	m := newMetricSet(prometheus.NewRegistry())
	m.RequestParse.Inc()
	m.SessionCurr.Set(3)

	stats := m.snapshot()
	require.NotEmpty(t, stats)
	assert.Equal(t, "admin_request_parse", stats[0].Name)
	assert.Equal(t, "ru_nivcsw", stats[len(stats)-1].Name)

	byName := make(map[string]string, len(stats))
	for _, s := range stats {
		byName[s.Name] = s.Value
	}
	assert.Equal(t, "1", byName["admin_request_parse"])
	assert.Equal(t, "3", byName["admin_session_curr"])
	assert.Equal(t, "0", byName["admin_event_error"])
}

func TestMetricSet_RegistersUnderGivenRegisterer(t *testing.T) {
	reg := prometheus.NewRegistry()
	newMetricSet(reg)

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["admin_request_parse"])
	assert.True(t, names["ru_maxrss"])
}
