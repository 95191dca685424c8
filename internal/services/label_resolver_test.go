package services

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventfees/internal/core"
	"eventfees/internal/fixtures"
	"eventfees/internal/log"
	"eventfees/internal/memory"
	"eventfees/internal/metrics"
)

func seededStore(t *testing.T) *memory.Store {
	t.Helper()
	store := memory.New()
	require.NoError(t, store.Load(fixtures.Reconciliation()))
	return store
}

func TestLabelResolver_AppliesOverrides(t *testing.T) {
	resolver := NewLabelResolver(seededStore(t), nil, log.Discard())

	labels := resolver.Resolve(context.Background(), fixtures.Event)

	assert.Equal(t, core.DefaultResultLabels().Len(), labels.Len())
	first, ok := labels.Label("first_place")
	require.True(t, ok)
	assert.Equal(t, "Gold Medal", first)
	second, _ := labels.Label("second_place")
	assert.Equal(t, "Silver", second)
	third, _ := labels.Label("third_place")
	assert.Equal(t, "Third Place", third)
	_, ok = labels.Label("unknown_key")
	assert.False(t, ok)
}

func TestLabelResolver_OverridesAreEventSpecific(t *testing.T) {
	resolver := NewLabelResolver(seededStore(t), nil, log.Discard())

	other := resolver.Resolve(context.Background(), fixtures.OtherEvent)
	first, _ := other.Label("first_place")
	assert.Equal(t, "Champion", first)

	none := resolver.Resolve(context.Background(), 404)
	assert.Equal(t, core.DefaultResultLabels().Entries(), none.Entries())
}

func TestLabelResolver_FetchFailureFallsBackToDefaults(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	src := &failingSource{Store: seededStore(t), fail: map[string]bool{"labels": true}}
	resolver := NewLabelResolver(src, m, log.Discard())

	labels := resolver.Resolve(context.Background(), fixtures.Event)

	assert.Equal(t, core.DefaultResultLabels().Entries(), labels.Entries())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LabelFallbacks))
}
