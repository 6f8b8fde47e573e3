package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirbelkuyu/dbforge/internal/apperr"
)

func TestObserveStructure(t *testing.T) {
	c := NewCollector()
	registry := prometheus.NewRegistry()
	require.NoError(t, c.Register(registry))
	require.NoError(t, c.Register(registry), "registering twice is tolerated")

	c.ObserveStructure("column", "create", time.Now(), nil)
	c.ObserveStructure("column", "create", time.Now(), apperr.BadRequest("datatype is required"))
	c.ObserveStructure("column", "create", time.Now(), apperr.BadRequest("nothing to change"))

	assert.Equal(t, 1.0, testutil.ToFloat64(c.structureOps.WithLabelValues("column", "create", "ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.structureOps.WithLabelValues("column", "create", "bad_request")))
	assert.Equal(t, 1, testutil.CollectAndCount(c.structureDuration))
}

func TestLifecycleStep(t *testing.T) {
	c := NewCollector()
	c.LifecycleStep("merge-staging", "drop", nil)
	c.LifecycleStep("merge-staging", "rename", errors.New("boom"))

	assert.Equal(t, 1.0, testutil.ToFloat64(c.lifecycleSteps.WithLabelValues("merge-staging", "drop", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.lifecycleSteps.WithLabelValues("merge-staging", "rename", "internal_inconsistency")))
}

func TestNilCollector(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.ObserveStructure("table", "drop", time.Now(), nil)
		c.LifecycleStep("drop-staging", "drop", nil)
	})
}
