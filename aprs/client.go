package aprs

import (
	"fmt"
	"net"
	"time"

	"github.com/charmbracelet/log"

	"aprsbridge/metrics"
)

// SoftwareName and SoftwareVersion identify this bridge in the APRS-IS login
// line.
const (
	SoftwareName    = "aprsbridge"
	SoftwareVersion = "1.0"
)

// Sender is the emission contract shared by both track managers. Send
// reports whether the object actually went out: false means the line was
// dropped, either by the rate bucket or by a transport failure, and the
// caller must not record it as sent.
type Sender interface {
	Send(o Object) bool
}

// Client is a line-oriented APRS-IS injection client. It owns a single TCP
// connection, logs in once per connection, and reconnects with a fixed
// backoff when a send fails. It never buffers: a line that cannot be written
// now is gone.
type Client struct {
	addr     string
	call     string
	passcode string
	filter   string
	limiter  *Limiter
	backoff  time.Duration
	pipeline string

	conn net.Conn
	log  *log.Logger
	now  func() time.Time
}

// NewClient returns a client for the APRS-IS endpoint at addr. perSecond
// bounds outgoing lines per wall-clock second. pipeline labels metrics and
// logs ("ais" or "adsb").
func NewClient(addr, call, passcode string, perSecond int, pipeline string, logger *log.Logger) *Client {
	return &Client{
		addr:     addr,
		call:     call,
		passcode: passcode,
		filter:   "m/500",
		limiter:  NewLimiter(perSecond),
		backoff:  2500 * time.Millisecond,
		pipeline: pipeline,
		log:      logger,
		now:      time.Now,
	}
}

// connect dials until a connection is established, then writes the login
// line. It only returns with a usable connection in place.
func (c *Client) connect() {
	for {
		conn, err := net.Dial("tcp", c.addr)
		if err != nil {
			c.log.Warn("APRS-IS connect failed", "addr", c.addr, "err", err)
			metrics.Reconnects.WithLabelValues("aprsis").Inc()
			time.Sleep(c.backoff)
			continue
		}

		login := fmt.Sprintf("user %s pass %s vers %s %s filter %s\n",
			c.call, c.passcode, SoftwareName, SoftwareVersion, c.filter)
		if _, err := conn.Write([]byte(login)); err != nil {
			c.log.Warn("APRS-IS login failed", "err", err)
			conn.Close()
			time.Sleep(c.backoff)
			continue
		}

		c.log.Info("APRS-IS connected", "addr", c.addr)
		c.conn = conn
		return
	}
}

// Send emits one object report. A false return means the line was dropped:
// either the per-second bucket was full, or the write failed (in which case
// the connection is discarded and the next Send reconnects).
func (c *Client) Send(o Object) bool {
	if !c.limiter.Allow(c.now()) {
		metrics.PacketsDropped.WithLabelValues(c.pipeline).Inc()
		return false
	}

	if c.conn == nil {
		c.connect()
	}

	line := fmt.Sprintf("%s>APRS,TCPIP*:%s\n", c.call, o.Packet())
	if _, err := c.conn.Write([]byte(line)); err != nil {
		c.log.Warn("APRS-IS send failed, dropping line", "err", err)
		c.conn.Close()
		c.conn = nil
		metrics.Reconnects.WithLabelValues("aprsis").Inc()
		return false
	}

	metrics.PacketsSent.WithLabelValues(c.pipeline).Inc()
	return true
}

// Close tears down the connection if one is open.
func (c *Client) Close() {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}
