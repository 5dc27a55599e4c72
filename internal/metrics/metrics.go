// Package metrics defines the narrow metrics-sink interface every component
// emits through, and a process-local registry exposed in Prometheus text
// format at /metrics. No ecosystem Prometheus client library appears
// anywhere in the retrieval pack, so this registry is hand-rolled; see
// DESIGN.md for that justification.
package metrics

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Sink is the interface every C1-C22 component emits metrics through.
type Sink interface {
	IncrCounter(name string, delta float64, labels ...string)
	ObserveHistogram(name string, value float64, labels ...string)
	SetGauge(name string, value float64, labels ...string)
}

type seriesKey struct {
	name   string
	labels string
}

// Registry is an in-process Sink implementation plus a text exporter.
type Registry struct {
	mu         sync.Mutex
	counters   map[seriesKey]float64
	gauges     map[seriesKey]float64
	histograms map[seriesKey]*histogramState
}

type histogramState struct {
	count float64
	sum   float64
}

// NewRegistry constructs an empty metrics registry.
func NewRegistry() *Registry {
	return &Registry{
		counters:   make(map[seriesKey]float64),
		gauges:     make(map[seriesKey]float64),
		histograms: make(map[seriesKey]*histogramState),
	}
}

func labelKey(name string, labels []string) seriesKey {
	return seriesKey{name: name, labels: strings.Join(labels, ",")}
}

func (r *Registry) IncrCounter(name string, delta float64, labels ...string) {
	k := labelKey(name, labels)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counters[k] += delta
}

func (r *Registry) ObserveHistogram(name string, value float64, labels ...string) {
	k := labelKey(name, labels)
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.histograms[k]
	if !ok {
		h = &histogramState{}
		r.histograms[k] = h
	}
	h.count++
	h.sum += value
}

func (r *Registry) SetGauge(name string, value float64, labels ...string) {
	k := labelKey(name, labels)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gauges[k] = value
}

// RenderText renders the registry in a minimal Prometheus-compatible text
// exposition format, sorted for deterministic output.
func (r *Registry) RenderText() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var sb strings.Builder
	writeSeries(&sb, "counter", r.counters)
	writeSeries(&sb, "gauge", r.gauges)

	keys := make([]seriesKey, 0, len(r.histograms))
	for k := range r.histograms {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].name+keys[i].labels < keys[j].name+keys[j].labels
	})
	for _, k := range keys {
		h := r.histograms[k]
		fmt.Fprintf(&sb, "%s_sum{%s} %v\n", k.name, k.labels, h.sum)
		fmt.Fprintf(&sb, "%s_count{%s} %v\n", k.name, k.labels, h.count)
	}
	return sb.String()
}

func writeSeries(sb *strings.Builder, kind string, m map[seriesKey]float64) {
	type entry struct {
		k seriesKey
		v float64
	}
	entries := make([]entry, 0, len(m))
	for k, v := range m {
		entries = append(entries, entry{k, v})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].k.name+entries[i].k.labels < entries[j].k.name+entries[j].k.labels
	})
	for _, e := range entries {
		fmt.Fprintf(sb, "# TYPE %s %s\n%s{%s} %v\n", e.k.name, kind, e.k.name, e.k.labels, e.v)
	}
}
