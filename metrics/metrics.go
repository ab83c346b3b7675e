// Package metrics exposes the bridge's Prometheus counters. Everything here
// is observational; no behavior depends on it.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// LinesRead counts raw lines read from an input feed ("ais", "sbs").
	LinesRead = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "aprsbridge_lines_read_total",
		Help: "Raw lines read from input feeds.",
	}, []string{"feed"})

	// RecordsDecoded counts records that survived parsing and sanity checks.
	RecordsDecoded = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "aprsbridge_records_decoded_total",
		Help: "Records decoded from input feeds.",
	}, []string{"feed"})

	// RecordsDropped counts records discarded before reaching a tracker.
	RecordsDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "aprsbridge_records_dropped_total",
		Help: "Records dropped during parse or sanity checking.",
	}, []string{"feed", "reason"})

	// PacketsSent counts APRS lines written to APRS-IS per pipeline.
	PacketsSent = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "aprsbridge_packets_sent_total",
		Help: "APRS object lines sent to APRS-IS.",
	}, []string{"pipeline"})

	// PacketsDropped counts sends refused by the per-second rate bucket.
	PacketsDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "aprsbridge_packets_dropped_total",
		Help: "APRS object lines dropped by the rate limiter.",
	}, []string{"pipeline"})

	// Reconnects counts connection re-establishments per endpoint.
	Reconnects = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "aprsbridge_reconnects_total",
		Help: "Reconnection attempts per endpoint.",
	}, []string{"endpoint"})
)

func init() {
	prometheus.MustRegister(LinesRead, RecordsDecoded, RecordsDropped,
		PacketsSent, PacketsDropped, Reconnects)
}

// Serve exposes /metrics on addr. Blocks; intended to run in its own
// goroutine.
func Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(addr, mux)
}
