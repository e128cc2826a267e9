package metrics

import (
	"errors"
	"testing"

	xerrors "policy-service/internal/pkg/errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestOutcome(t *testing.T) {
	assert.Equal(t, "ok", Outcome(nil))
	assert.Equal(t, "invalid", Outcome(xerrors.New(xerrors.ErrInvalidInput, "x")))
	assert.Equal(t, "not_found", Outcome(xerrors.New(xerrors.ErrNotFound, "x")))
	assert.Equal(t, "conflict", Outcome(xerrors.New(xerrors.ErrConflict, "x")))
	assert.Equal(t, "error", Outcome(errors.New("boom")))
}

func TestObserveOperation(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.ObserveOperation("cancel", nil)
	m.ObserveOperation("cancel", nil)
	m.ObserveOperation("cancel", xerrors.New(xerrors.ErrConflict, "x"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.PolicyOperations.WithLabelValues("cancel", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PolicyOperations.WithLabelValues("cancel", "conflict")))
}

func TestNewMetrics_NilRegisterer(t *testing.T) {
	assert.NotPanics(t, func() {
		NewMetrics(nil)
		NewMetrics(nil)
	})
}
