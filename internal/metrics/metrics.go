// Package metrics exposes SPICE client counters in Prometheus text
// exposition format via a small hand-rolled counter/gauge struct rather
// than a client library.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"
)

type telemetry struct {
	enabled bool
	mu      sync.RWMutex

	handshakesTotal   map[string]uint64
	channelMsgsTotal  map[string]uint64
	reconnectsTotal   map[string]uint64
	channelsOpen      map[string]float64
	pingRoundtripSum  map[string]float64
	pingRoundtripCnt  map[string]uint64
}

var (
	mu sync.RWMutex
	m  = telemetry{}
)

func Enable() {
	mu.Lock()
	defer mu.Unlock()
	if m.enabled {
		return
	}
	m.handshakesTotal = make(map[string]uint64)
	m.channelMsgsTotal = make(map[string]uint64)
	m.reconnectsTotal = make(map[string]uint64)
	m.channelsOpen = make(map[string]float64)
	m.pingRoundtripSum = make(map[string]float64)
	m.pingRoundtripCnt = make(map[string]uint64)
	m.enabled = true
}

// StartServer serves /metrics on addr until ctx is canceled, then shuts the
// HTTP server down gracefully with its own bounded timeout.
func StartServer(ctx context.Context, addr string) error {
	if strings.TrimSpace(addr) == "" {
		return errors.New("empty metrics address")
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", handler)
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	err := srv.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}

func ObserveHandshake(channelType string, ok bool) {
	mu.RLock()
	if !m.enabled {
		mu.RUnlock()
		return
	}
	m.mu.Lock()
	mu.RUnlock()
	defer m.mu.Unlock()
	result := "ok"
	if !ok {
		result = "failed"
	}
	m.handshakesTotal[fmt.Sprintf("channel=%s,result=%s", channelType, result)]++
}

func ObserveChannelMessage(channelType string, direction string) {
	mu.RLock()
	if !m.enabled {
		mu.RUnlock()
		return
	}
	m.mu.Lock()
	mu.RUnlock()
	defer m.mu.Unlock()
	m.channelMsgsTotal[fmt.Sprintf("channel=%s,dir=%s", channelType, direction)]++
}

func ObserveReconnect(channelType string) {
	mu.RLock()
	if !m.enabled {
		mu.RUnlock()
		return
	}
	m.mu.Lock()
	mu.RUnlock()
	defer m.mu.Unlock()
	m.reconnectsTotal[fmt.Sprintf("channel=%s", channelType)]++
}

func SetChannelOpen(channelType string, open bool) {
	mu.RLock()
	if !m.enabled {
		mu.RUnlock()
		return
	}
	m.mu.Lock()
	mu.RUnlock()
	defer m.mu.Unlock()
	v := 0.0
	if open {
		v = 1
	}
	m.channelsOpen[fmt.Sprintf("channel=%s", channelType)] = v
}

func ObservePingRoundtrip(d time.Duration) {
	mu.RLock()
	if !m.enabled {
		mu.RUnlock()
		return
	}
	m.mu.Lock()
	mu.RUnlock()
	defer m.mu.Unlock()
	const k = "channel=main"
	m.pingRoundtripCnt[k]++
	m.pingRoundtripSum[k] += d.Seconds()
}

func handler(w http.ResponseWriter, _ *http.Request) {
	mu.RLock()
	enabled := m.enabled
	mu.RUnlock()
	if !enabled {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("# metrics disabled\n"))
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	m.mu.RLock()
	defer m.mu.RUnlock()

	writeCounterVec(w, "spice_handshakes_total", m.handshakesTotal)
	writeCounterVec(w, "spice_channel_messages_total", m.channelMsgsTotal)
	writeCounterVec(w, "spice_reconnects_total", m.reconnectsTotal)
	writeGaugeVec(w, "spice_channel_open", m.channelsOpen)
	writeSummaryAsCountAndSum(w, "spice_ping_roundtrip_seconds", m.pingRoundtripCnt, m.pingRoundtripSum)
}

func writeCounterVec(w http.ResponseWriter, name string, data map[string]uint64) {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "%s{%s} %d\n", name, toPromLabels(k), data[k])
	}
}

func writeGaugeVec(w http.ResponseWriter, name string, data map[string]float64) {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "%s{%s} %.0f\n", name, toPromLabels(k), data[k])
	}
}

func writeSummaryAsCountAndSum(w http.ResponseWriter, name string, counts map[string]uint64, sums map[string]float64) {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		labels := toPromLabels(k)
		fmt.Fprintf(w, "%s_count{%s} %d\n", name, labels, counts[k])
		fmt.Fprintf(w, "%s_sum{%s} %f\n", name, labels, sums[k])
	}
}

func toPromLabels(s string) string {
	parts := strings.Split(s, ",")
	for i, p := range parts {
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			continue
		}
		parts[i] = fmt.Sprintf("%s=\"%s\"", kv[0], strings.ReplaceAll(kv[1], "\"", "\\\""))
	}
	return strings.Join(parts, ",")
}
