package metrics

import (
	"sort"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// snapshot flattens a registry into "name{k=v,...}" keys. Counters map to
// their value and histograms to their sample sum.
type snapshot map[string]float64

func gather(t *testing.T, reg *prometheus.Registry) snapshot {
	t.Helper()
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	out := snapshot{}
	for _, mf := range mfs {
		for _, m := range mf.GetMetric() {
			key := seriesKey(mf.GetName(), m.GetLabel())
			switch mf.GetType() {
			case dto.MetricType_COUNTER:
				out[key] = m.GetCounter().GetValue()
			case dto.MetricType_HISTOGRAM:
				out[key] = m.GetHistogram().GetSampleSum()
			case dto.MetricType_GAUGE:
				out[key] = m.GetGauge().GetValue()
			}
		}
	}
	return out
}

func seriesKey(name string, labels []*dto.LabelPair) string {
	if len(labels) == 0 {
		return name
	}
	pairs := make([]string, 0, len(labels))
	for _, l := range labels {
		pairs = append(pairs, l.GetName()+"="+l.GetValue())
	}
	sort.Strings(pairs)
	return name + "{" + strings.Join(pairs, ",") + "}"
}

func (s snapshot) expect(t *testing.T, key string, want float64) {
	t.Helper()
	got, ok := s[key]
	if !ok {
		t.Fatalf("series %s not exported", key)
	}
	if got != want {
		t.Fatalf("%s: expected %v got %v", key, want, got)
	}
}
