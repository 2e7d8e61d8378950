package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NotPanics(t, func() { Register(reg) })

	BadgesAwarded.WithLabelValues("First Step").Inc()
	assert.Equal(t, 1.0, testutil.ToFloat64(BadgesAwarded.WithLabelValues("First Step")))

	n, err := testutil.GatherAndCount(reg, "ecostep_badges_awarded_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
