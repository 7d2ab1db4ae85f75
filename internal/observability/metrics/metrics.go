// Package metrics exposes request and intent outcome counters in the
// Prometheus text exposition format.
package metrics

import (
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

var latencyBounds = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}

// latency keeps one count per bound plus an overflow slot; cumulative
// bucket values are derived at render time.
type latency struct {
	perBound []uint64
	overflow uint64
	sum      float64
}

func (l *latency) observe(seconds float64) {
	l.sum += seconds
	for i, bound := range latencyBounds {
		if seconds <= bound {
			l.perBound[i]++
			return
		}
	}
	l.overflow++
}

func (l *latency) total() uint64 {
	n := l.overflow
	for _, c := range l.perBound {
		n += c
	}
	return n
}

type registry struct {
	mu       sync.Mutex
	requests map[string]uint64 // label key: handler\xffmethod\xffcode
	outcomes map[string]uint64 // label key: action\xffstatus
	latency  map[string]*latency
}

var reg = &registry{
	requests: map[string]uint64{},
	outcomes: map[string]uint64{},
	latency:  map[string]*latency{},
}

const keySep = "\xff"

// ObserveHTTPRequest records one finished HTTP request.
func ObserveHTTPRequest(handler, method string, status int, duration time.Duration) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	reg.requests[handler+keySep+method+keySep+strconv.Itoa(status)]++
	l := reg.latency[handler]
	if l == nil {
		l = &latency{perBound: make([]uint64, len(latencyBounds))}
		reg.latency[handler] = l
	}
	l.observe(duration.Seconds())
}

// ObserveIntentOutcome counts one finished intent per action and
// normalized status.
func ObserveIntentOutcome(action, status string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.outcomes[action+keySep+status]++
}

// Handler serves the collected metrics.
func Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		reg.write(w)
	})
}

func (r *registry) write(w io.Writer) {
	r.mu.Lock()
	defer r.mu.Unlock()

	fmt.Fprint(w, "# HELP intentchain_http_requests_total Total number of HTTP requests processed.\n")
	fmt.Fprint(w, "# TYPE intentchain_http_requests_total counter\n")
	for _, key := range sortedKeys(r.requests) {
		parts := strings.SplitN(key, keySep, 3)
		fmt.Fprintf(w, "intentchain_http_requests_total%s %d\n",
			labels("handler", parts[0], "method", parts[1], "code", parts[2]), r.requests[key])
	}

	fmt.Fprint(w, "# HELP intentchain_intent_outcomes_total Total number of finished intents per action and status.\n")
	fmt.Fprint(w, "# TYPE intentchain_intent_outcomes_total counter\n")
	for _, key := range sortedKeys(r.outcomes) {
		parts := strings.SplitN(key, keySep, 2)
		fmt.Fprintf(w, "intentchain_intent_outcomes_total%s %d\n",
			labels("action", parts[0], "status", parts[1]), r.outcomes[key])
	}

	fmt.Fprint(w, "# HELP intentchain_http_request_duration_seconds HTTP request duration in seconds.\n")
	fmt.Fprint(w, "# TYPE intentchain_http_request_duration_seconds histogram\n")
	for _, handler := range sortedKeys(r.latency) {
		l := r.latency[handler]
		var cumulative uint64
		for i, bound := range latencyBounds {
			cumulative += l.perBound[i]
			fmt.Fprintf(w, "intentchain_http_request_duration_seconds_bucket%s %d\n",
				labels("handler", handler, "le", formatFloat(bound)), cumulative)
		}
		fmt.Fprintf(w, "intentchain_http_request_duration_seconds_bucket%s %d\n",
			labels("handler", handler, "le", "+Inf"), l.total())
		fmt.Fprintf(w, "intentchain_http_request_duration_seconds_sum%s %s\n",
			labels("handler", handler), formatFloat(l.sum))
		fmt.Fprintf(w, "intentchain_http_request_duration_seconds_count%s %d\n",
			labels("handler", handler), l.total())
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// labels renders a {k="v",...} label set from name/value pairs.
func labels(pairs ...string) string {
	var b strings.Builder
	b.WriteByte('{')
	for i := 0; i+1 < len(pairs); i += 2 {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(pairs[i])
		b.WriteString(`="`)
		b.WriteString(escape(pairs[i+1]))
		b.WriteByte('"')
	}
	b.WriteByte('}')
	return b.String()
}

func escape(value string) string {
	value = strings.ReplaceAll(value, `\`, `\\`)
	value = strings.ReplaceAll(value, `"`, `\"`)
	return strings.ReplaceAll(value, "\n", "")
}

func formatFloat(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}
