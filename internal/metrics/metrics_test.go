package metrics_test

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/feral-file/ff-marketplace/internal/metrics"
)

func TestPipeline_IsSingleton(t *testing.T) {
	assert.Same(t, metrics.Pipeline(), metrics.Pipeline())
}

func TestPipeline_RecordEvent(t *testing.T) {
	m := metrics.Pipeline()

	before := testutil.ToFloat64(m.EventsCounter().WithLabelValues("polygon", "BidPlaced", metrics.OutcomeDuplicate))
	m.RecordEvent("polygon", "BidPlaced", metrics.OutcomeDuplicate, 10*time.Millisecond)
	m.RecordEvent("polygon", "BidPlaced", metrics.OutcomeDuplicate, 20*time.Millisecond)

	after := testutil.ToFloat64(m.EventsCounter().WithLabelValues("polygon", "BidPlaced", metrics.OutcomeDuplicate))
	assert.Equal(t, before+2, after)
}

func TestPipeline_RecordSideEffectFailure(t *testing.T) {
	m := metrics.Pipeline()

	before := testutil.ToFloat64(m.SideEffectFailuresCounter().WithLabelValues("history", "history-writer"))
	m.RecordSideEffectFailure("history", "history-writer")

	after := testutil.ToFloat64(m.SideEffectFailuresCounter().WithLabelValues("history", "history-writer"))
	assert.Equal(t, before+1, after)
}
