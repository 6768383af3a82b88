// Package metrics owns the process registry the famtree components
// register on, and renders it for the CLI.
package metrics

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// NewRegistry returns an empty registry. Commands create one per run so
// counters reflect that run only.
func NewRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

// WriteSummary prints one line per non-zero counter or gauge sample in g,
// sorted by name: `famtree_requests_resolved_total{decision="accepted",type="ADD_LINK"} 2`.
func WriteSummary(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	var lines []string
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			v, ok := sampleValue(mf.GetType(), m)
			if !ok || v == 0 {
				continue
			}
			lines = append(lines, fmt.Sprintf("%s%s %g", mf.GetName(), labels(m), v))
		}
	}
	sort.Strings(lines)
	for _, l := range lines {
		if _, err := fmt.Fprintln(w, l); err != nil {
			return err
		}
	}
	return nil
}

func sampleValue(t dto.MetricType, m *dto.Metric) (float64, bool) {
	switch t {
	case dto.MetricType_COUNTER:
		return m.GetCounter().GetValue(), true
	case dto.MetricType_GAUGE:
		return m.GetGauge().GetValue(), true
	default:
		return 0, false
	}
}

func labels(m *dto.Metric) string {
	pairs := m.GetLabel()
	if len(pairs) == 0 {
		return ""
	}
	parts := make([]string, 0, len(pairs))
	for _, lp := range pairs {
		parts = append(parts, fmt.Sprintf("%s=%q", lp.GetName(), lp.GetValue()))
	}
	return "{" + strings.Join(parts, ",") + "}"
}
