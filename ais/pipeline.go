package ais

import (
	"bufio"
	"errors"
	"net"
	"time"

	"github.com/charmbracelet/log"

	"aprsbridge/metrics"
)

// sweepInterval paces the silent-vessel expiry scan.
const sweepInterval = 10 * time.Second

// Pipeline is the AIS ingestion loop: it listens for an AIS-catcher feed,
// reassembles and decodes sentences, and drives the vessel tracker. All
// tracker state is touched from the Run goroutine only.
type Pipeline struct {
	listenAddr string
	assembler  *Assembler
	tracker    *VesselTracker
	log        *log.Logger
}

// NewPipeline wires a pipeline around tracker, listening on listenAddr.
func NewPipeline(listenAddr string, tracker *VesselTracker, logger *log.Logger) *Pipeline {
	return &Pipeline{
		listenAddr: listenAddr,
		assembler:  NewAssembler(),
		tracker:    tracker,
		log:        logger,
	}
}

// Run listens on the configured address and processes sentences until the
// process exits. One peer is served at a time.
func (p *Pipeline) Run() error {
	ln, err := net.Listen("tcp", p.listenAddr)
	if err != nil {
		return err
	}
	p.log.Info("listening for AIS NMEA", "addr", p.listenAddr)

	lines := make(chan string)
	go p.acceptLoop(ln, lines)

	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case line, ok := <-lines:
			if !ok {
				return errors.New("ais listener closed")
			}
			p.handleLine(line)
		case <-ticker.C:
			p.tracker.Sweep()
		}
	}
}

// acceptLoop serves one connection at a time, feeding raw lines into the
// pipeline channel.
func (p *Pipeline) acceptLoop(ln net.Listener, lines chan<- string) {
	defer close(lines)
	for {
		conn, err := ln.Accept()
		if err != nil {
			p.log.Warn("AIS accept failed", "err", err)
			time.Sleep(2500 * time.Millisecond)
			continue
		}
		p.log.Info("AIS peer connected", "peer", conn.RemoteAddr())

		scanner := bufio.NewScanner(conn)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		if err := scanner.Err(); err != nil {
			p.log.Warn("AIS read error", "err", err)
		}
		conn.Close()
		metrics.Reconnects.WithLabelValues("ais").Inc()
		p.log.Info("AIS peer disconnected")
	}
}

func (p *Pipeline) handleLine(line string) {
	metrics.LinesRead.WithLabelValues("ais").Inc()

	s, err := ParseSentence(line)
	if err != nil {
		metrics.RecordsDropped.WithLabelValues("ais", "parse").Inc()
		p.log.Debug("ignoring line", "err", err)
		return
	}

	payload, fill, ok := p.assembler.Add(s)
	if !ok {
		return
	}

	m, err := Decode(payload, fill)
	if err != nil {
		metrics.RecordsDropped.WithLabelValues("ais", "decode").Inc()
		p.log.Debug("dropping payload", "err", err)
		return
	}

	metrics.RecordsDecoded.WithLabelValues("ais").Inc()
	p.tracker.Handle(m)
}
