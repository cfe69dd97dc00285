package service

import (
	"bytes"
	"fmt"

	"github.com/VictoriaMetrics/metrics"
	"github.com/puzpuzpuz/xsync/v3"
)

// serviceMetrics owns the node's metrics set: one request counter per
// opcode plus whatever the engine exposes in the future. The set is
// serialized into the getMetrics response in Prometheus text format.
type serviceMetrics struct {
	set      *metrics.Set
	counters *xsync.MapOf[string, *metrics.Counter]
}

func newServiceMetrics() *serviceMetrics {
	return &serviceMetrics{
		set:      metrics.NewSet(),
		counters: xsync.NewMapOf[string, *metrics.Counter](),
	}
}

// countRequest increments the request counter for the given opcode.
func (m *serviceMetrics) countRequest(op fmt.Stringer) {
	name := op.String()
	counter, _ := m.counters.LoadOrCompute(name, func() *metrics.Counter {
		return m.set.NewCounter(fmt.Sprintf(`tkv_requests_total{op=%q}`, name))
	})
	counter.Inc()
}

// snapshot serializes the set in Prometheus text exposition format.
func (m *serviceMetrics) snapshot() []byte {
	var buf bytes.Buffer
	m.set.WritePrometheus(&buf)
	return buf.Bytes()
}
