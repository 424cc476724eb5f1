package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Runs(t *testing.T) {
	m := NewMetricsWithRegistry("nbre_test", prometheus.NewRegistry())

	m.RunStarted("nr")
	m.RunStarted("nr")
	m.RunStarted("dip")
	m.RunCompleted("nr", 2*time.Second)
	m.RunFailed("dip")
	m.IncPublished("nr")

	require.Equal(t, float64(2), testutil.ToFloat64(m.runsStarted.WithLabelValues("nr")))
	require.Equal(t, float64(1), testutil.ToFloat64(m.runsStarted.WithLabelValues("dip")))
	require.Equal(t, float64(1), testutil.ToFloat64(m.runsCompleted.WithLabelValues("nr")))
	require.Equal(t, float64(0), testutil.ToFloat64(m.runsCompleted.WithLabelValues("dip")))
	require.Equal(t, float64(1), testutil.ToFloat64(m.runsFailed.WithLabelValues("dip")))
	require.Equal(t, float64(1), testutil.ToFloat64(m.publishedResults.WithLabelValues("nr")))
}

func TestMetrics_Heights(t *testing.T) {
	m := NewMetricsWithRegistry("nbre_test", prometheus.NewRegistry())

	m.SetSourceHeights(1200, 1180)
	m.SetNbreMaxHeight(1150)
	m.SetScheduledDipHeight(1149)

	require.Equal(t, float64(1200), testutil.ToFloat64(m.tailHeightGauge))
	require.Equal(t, float64(1180), testutil.ToFloat64(m.libHeightGauge))
	require.Equal(t, float64(1150), testutil.ToFloat64(m.nbreHeightGauge))
	require.Equal(t, float64(1149), testutil.ToFloat64(m.scheduledDipGauge))
}
