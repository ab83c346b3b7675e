package ais

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/patrickmn/go-cache"

	"aprsbridge/aprs"
	"aprsbridge/geo"
	"aprsbridge/monitor"
)

// TrackerConfig holds the vessel gating constants.
type TrackerConfig struct {
	CenterLat      float64
	CenterLon      float64
	MaxRangeNM     float64
	TeleportMoveNM float64
	TeleportTime   time.Duration
	VesselTTL      time.Duration
}

// vesselFix is the last accepted-and-sent position for a vessel, the
// baseline for the teleport filter.
type vesselFix struct {
	at       time.Time
	lat, lon float64
}

// sentVessel records what was last emitted for a vessel so deletes can reuse
// the position and symbol.
type sentVessel struct {
	at          time.Time
	lat, lon    float64
	table, code byte
}

// VesselTracker turns decoded AIS messages into APRS vessel objects. It
// gates positions by range around a center point, rejects implausible jumps,
// merges static-report names into position comments, and expires vessels
// that go silent.
type VesselTracker struct {
	cfg    TrackerConfig
	sender aprs.Sender
	view   *monitor.VesselView

	names    *cache.Cache // MMSI -> vessel name, process lifetime
	lastFix  map[uint32]vesselFix
	lastSent map[uint32]sentVessel

	now func() time.Time
	log *log.Logger
}

// NewVesselTracker returns a tracker emitting through sender and publishing
// to view.
func NewVesselTracker(cfg TrackerConfig, sender aprs.Sender, view *monitor.VesselView, logger *log.Logger) *VesselTracker {
	return &VesselTracker{
		cfg:      cfg,
		sender:   sender,
		view:     view,
		names:    cache.New(cache.NoExpiration, 0),
		lastFix:  make(map[uint32]vesselFix),
		lastSent: make(map[uint32]sentVessel),
		now:      time.Now,
		log:      logger,
	}
}

func mmsiName(mmsi uint32) string {
	return fmt.Sprintf("%09d", mmsi)
}

// Handle processes one decoded message. Static reports only feed the name
// cache; position reports may emit an APRS object.
func (t *VesselTracker) Handle(m *Message) {
	if m.Name != "" {
		t.handleStatic(m)
		return
	}
	if m.HasPosition {
		t.handlePosition(m)
	}
}

// handleStatic stores the vessel name and refreshes the display name of an
// already-visible vessel. Static messages never emit an APRS line.
func (t *VesselTracker) handleStatic(m *Message) {
	key := mmsiName(m.MMSI)
	t.names.Set(key, m.Name, cache.NoExpiration)
	if t.view.SetShipName(key, m.Name) {
		t.log.Debug("vessel name updated", "mmsi", key, "name", m.Name)
	}
}

func (t *VesselTracker) vesselName(mmsi uint32) string {
	if v, ok := t.names.Get(mmsiName(mmsi)); ok {
		return v.(string)
	}
	return ""
}

func (t *VesselTracker) handlePosition(m *Message) {
	now := t.now()

	// Near-origin fixes are decoder noise.
	if m.Lat > -0.001 && m.Lat < 0.001 && m.Lon > -0.001 && m.Lon < 0.001 {
		t.log.Debug("dropping near-zero fix", "mmsi", m.MMSI)
		return
	}

	if geo.NauticalMilesBetween(t.cfg.CenterLat, t.cfg.CenterLon, m.Lat, m.Lon) > t.cfg.MaxRangeNM {
		return
	}

	if f, ok := t.lastFix[m.MMSI]; ok {
		if now.Sub(f.at) <= t.cfg.TeleportTime &&
			geo.NauticalMilesBetween(f.lat, f.lon, m.Lat, m.Lon) > t.cfg.TeleportMoveNM {
			t.log.Debug("dropping teleport", "mmsi", m.MMSI)
			return
		}
	}

	table, code := byte('/'), byte('s')
	if m.Base {
		code = 'r'
	}

	name := mmsiName(m.MMSI)
	obj := aprs.Object{
		Name:      name,
		Timestamp: now,
		Lat:       m.Lat,
		Lon:       m.Lon,
		Table:     table,
		Code:      code,
		Comment:   t.comment(m),
	}

	if !t.sender.Send(obj) {
		return
	}

	t.lastFix[m.MMSI] = vesselFix{at: now, lat: m.Lat, lon: m.Lon}
	t.lastSent[m.MMSI] = sentVessel{at: now, lat: m.Lat, lon: m.Lon, table: table, code: code}

	entry := monitor.VesselEntry{
		Name:     name,
		MMSI:     name,
		ShipName: t.vesselName(m.MMSI),
		Lat:      fmt.Sprintf("%.4f", m.Lat),
		Lon:      fmt.Sprintf("%.4f", m.Lon),
		Seen:     now,
	}
	if m.SOG != nil {
		entry.SOG = fmt.Sprintf("%d kt", int(*m.SOG))
	}
	if m.COG != nil {
		entry.COG = fmt.Sprintf("%03d", int(*m.COG))
	}
	t.view.Set(entry)
}

// comment builds the position comment: NAME, SOG, COG, HDG when known, then
// the MMSI.
func (t *VesselTracker) comment(m *Message) string {
	var parts []string
	if name := t.vesselName(m.MMSI); name != "" {
		parts = append(parts, "NAME "+name)
	}
	if m.SOG != nil {
		parts = append(parts, fmt.Sprintf("SOG %dkt", int(*m.SOG)))
	}
	if m.COG != nil {
		parts = append(parts, fmt.Sprintf("COG %03d", int(*m.COG)))
	}
	if m.Heading != nil {
		parts = append(parts, fmt.Sprintf("HDG %d", *m.Heading))
	}
	parts = append(parts, "MMSI "+mmsiName(m.MMSI))
	return strings.Join(parts, " ")
}

// Sweep deletes vessels that have been silent past the TTL, emitting a
// retraction at the last-sent position.
func (t *VesselTracker) Sweep() {
	now := t.now()
	for mmsi, s := range t.lastSent {
		if now.Sub(s.at) <= t.cfg.VesselTTL {
			continue
		}
		name := mmsiName(mmsi)
		t.sender.Send(aprs.Object{
			Name:      name,
			Timestamp: now,
			Lat:       s.lat,
			Lon:       s.lon,
			Table:     s.table,
			Code:      s.code,
			Comment:   "MMSI " + name + " " + aprs.DeleteSentinel,
		})
		delete(t.lastSent, mmsi)
		delete(t.lastFix, mmsi)
		t.view.Delete(name)
		t.log.Info("vessel expired", "mmsi", name)
	}
}
