package adsb

import (
	"bufio"
	"net"
	"time"

	"github.com/charmbracelet/log"

	"aprsbridge/metrics"
)

const reconnectBackoff = 2500 * time.Millisecond

// Pipeline is the ADS-B ingestion loop: it keeps an SBS connection open,
// interleaves the periodic JSON metadata poll and expiry sweep between
// records, and drives the aircraft tracker. All tracker state is touched
// from the Run goroutine only.
type Pipeline struct {
	sbsAddr   string
	pollEvery time.Duration
	meta      *MetaCache
	tracker   *AircraftTracker
	log       *log.Logger
}

// NewPipeline wires a pipeline around tracker and meta, reading SBS records
// from sbsAddr.
func NewPipeline(sbsAddr string, pollEvery time.Duration, meta *MetaCache, tracker *AircraftTracker, logger *log.Logger) *Pipeline {
	return &Pipeline{
		sbsAddr:   sbsAddr,
		pollEvery: pollEvery,
		meta:      meta,
		tracker:   tracker,
		log:       logger,
	}
}

// Run processes SBS records until the process exits, reconnecting with a
// fixed backoff on feed loss.
func (p *Pipeline) Run() error {
	ticker := time.NewTicker(p.pollEvery)
	defer ticker.Stop()

	lines := make(chan string)
	go p.readLoop(lines)

	for {
		select {
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			p.handleLine(line)
		case <-ticker.C:
			p.meta.Poll()
			p.tracker.Sweep()
		}
	}
}

// readLoop dials the SBS feed and feeds raw lines into the pipeline channel,
// reconnecting forever.
func (p *Pipeline) readLoop(lines chan<- string) {
	defer close(lines)
	for {
		conn, err := net.Dial("tcp", p.sbsAddr)
		if err != nil {
			p.log.Warn("SBS connect failed", "addr", p.sbsAddr, "err", err)
			metrics.Reconnects.WithLabelValues("sbs").Inc()
			time.Sleep(reconnectBackoff)
			continue
		}
		p.log.Info("SBS connected", "addr", p.sbsAddr)

		scanner := bufio.NewScanner(conn)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		if err := scanner.Err(); err != nil {
			p.log.Warn("SBS read error", "err", err)
		}
		conn.Close()
		metrics.Reconnects.WithLabelValues("sbs").Inc()
		time.Sleep(reconnectBackoff)
	}
}

func (p *Pipeline) handleLine(line string) {
	metrics.LinesRead.WithLabelValues("sbs").Inc()

	rec, err := DecodeSBS(line)
	if err != nil {
		metrics.RecordsDropped.WithLabelValues("sbs", "parse").Inc()
		p.log.Debug("ignoring record", "err", err)
		return
	}

	metrics.RecordsDecoded.WithLabelValues("sbs").Inc()
	p.tracker.Handle(rec)
}
