package metrics_test

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tiliavir/billr/internal/metrics"
)

func TestObserveAttempt(t *testing.T) {
	m := metrics.New()
	m.ObserveAttempt(1, errors.New("boom"))
	m.ObserveAttempt(2, nil)
	m.ObserveAttempt(1, nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.UpstreamAttempts.WithLabelValues("error")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.UpstreamAttempts.WithLabelValues("ok")))
}

type statusError struct{ status int }

func (e statusError) Error() string { return fmt.Sprintf("status %d", e.status) }
func (e statusError) Transient() bool { return e.status == 429 || e.status >= 500 }

func TestObserveAttempt_TransientFailures(t *testing.T) {
	m := metrics.New()
	m.ObserveAttempt(1, statusError{503})
	m.ObserveAttempt(2, fmt.Errorf("list projects: %w", statusError{429}))
	m.ObserveAttempt(3, statusError{404})

	assert.Equal(t, 2.0, testutil.ToFloat64(m.UpstreamAttempts.WithLabelValues("transient")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.UpstreamAttempts.WithLabelValues("error")))
}

func TestWriteTextfile(t *testing.T) {
	m := metrics.New()
	m.BillableHours.WithLabelValues("board").Set(12.5)

	path := filepath.Join(t.TempDir(), "billr.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), `billr_billable_hours{set="board"} 12.5`))
}
