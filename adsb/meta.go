package adsb

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/patrickmn/go-cache"
)

const (
	fetchTimeout = 1500 * time.Millisecond
	// statusEvery throttles unchanged poller status reports.
	statusEvery = 60 * time.Second
	// metaTTL evicts metadata for aircraft long gone from the receiver.
	metaTTL = time.Hour
)

// Meta is the merged per-ICAO metadata from the dump1090 JSON feed.
type Meta struct {
	Category string // emitter category, A1-A7 / B1-B4
	ACType   string // ICAO type designator
	Callsign string
}

// jsonAircraft matches one entry of the dump1090 aircraft JSON. Different
// dump1090 forks name the callsign field differently.
type jsonAircraft struct {
	Hex          string `json:"hex"`
	Category     string `json:"category"`
	Type         string `json:"type"`
	T            string `json:"t"`
	Flight       string `json:"flight"`
	Call         string `json:"call"`
	FlightNumber string `json:"flightnumber"`
}

// MetaCache polls the dump1090 JSON endpoint and merges the latest non-empty
// values per ICAO hex. Entries expire after metaTTL.
type MetaCache struct {
	url    string
	client *http.Client
	cache  *cache.Cache
	log    *log.Logger

	lastStatus string
	lastReport time.Time
	now        func() time.Time
}

// NewMetaCache returns a cache polling url.
func NewMetaCache(url string, logger *log.Logger) *MetaCache {
	return &MetaCache{
		url:    url,
		client: &http.Client{Timeout: fetchTimeout},
		cache:  cache.New(metaTTL, 10*time.Minute),
		log:    logger,
		now:    time.Now,
	}
}

// Get returns the merged metadata for an uppercased ICAO hex.
func (m *MetaCache) Get(hex string) (Meta, bool) {
	v, ok := m.cache.Get(hex)
	if !ok {
		return Meta{}, false
	}
	return v.(Meta), true
}

// Poll fetches the endpoint once and merges the result. Failures leave the
// cache untouched.
func (m *MetaCache) Poll() {
	entries, err := m.fetch()
	if err != nil {
		m.report(fmt.Sprintf("metadata fetch failing: %v", err))
		return
	}

	merged := 0
	for _, e := range entries {
		hex := strings.ToUpper(strings.TrimSpace(e.Hex))
		if hex == "" {
			continue
		}
		meta, _ := m.Get(hex)
		if v := strings.TrimSpace(e.Category); v != "" {
			meta.Category = v
		}
		if v := firstNonEmpty(e.Type, e.T); v != "" {
			meta.ACType = v
		}
		if v := firstNonEmpty(e.Flight, e.Call, e.FlightNumber); v != "" {
			meta.Callsign = strings.TrimSpace(v)
		}
		m.cache.Set(hex, meta, cache.DefaultExpiration)
		merged++
	}

	m.report(fmt.Sprintf("metadata ok, %d aircraft", merged))
}

// fetch accepts either a top-level object with an aircraft array or a bare
// array.
func (m *MetaCache) fetch() ([]jsonAircraft, error) {
	resp, err := m.client.Get(m.url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var wrapped struct {
		Aircraft []jsonAircraft `json:"aircraft"`
	}
	if err := json.Unmarshal(body, &wrapped); err == nil && wrapped.Aircraft != nil {
		return wrapped.Aircraft, nil
	}

	var bare []jsonAircraft
	if err := json.Unmarshal(body, &bare); err != nil {
		return nil, fmt.Errorf("unexpected JSON shape: %w", err)
	}
	return bare, nil
}

// report logs the poller status when it changes, or at most once per
// statusEvery otherwise.
func (m *MetaCache) report(status string) {
	now := m.now()
	if status == m.lastStatus && now.Sub(m.lastReport) < statusEvery {
		return
	}
	m.lastStatus = status
	m.lastReport = now
	m.log.Info(status)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
