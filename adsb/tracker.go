package adsb

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"aprsbridge/aprs"
	"aprsbridge/geo"
	"aprsbridge/monitor"
)

// Change-detection epsilons. All comparisons trigger at the threshold
// (strict >=) so emission counts stay reproducible.
const (
	latLonEps = 0.00015 // degrees
	altEps    = 25      // feet
	gsEps     = 2       // knots
	trkEps    = 3       // degrees, circular
)

// TrackerConfig holds the aircraft gating constants.
type TrackerConfig struct {
	CenterLat       float64
	CenterLon       float64
	AddDistanceMi   float64
	ClearDistanceMi float64
	LandedAltFt     float64
	LandedWait      time.Duration
	LandClearAltFt  float64
	MinMoveMi       float64
	MinUpdate       time.Duration
	ObjectTTL       time.Duration
	SymbolTags      bool
}

// MetaSource supplies per-ICAO metadata; *MetaCache implements it.
type MetaSource interface {
	Get(hex string) (Meta, bool)
}

// sentAircraft is the state captured at the last successful send, the
// baseline for change detection and the position used in deletes.
type sentAircraft struct {
	at           time.Time
	lat, lon     float64
	alt, gs, trk *float64
}

// track is the full per-aircraft state, keyed by APRS object name.
type track struct {
	name     string // 9-char object name
	hex      string
	callsign string // normalized
	category string
	acType   string
	sym      Symbol

	lastSeen     time.Time
	lat, lon     float64
	alt, gs, trk *float64

	lowSince *time.Time // start of the continuous low-altitude dwell
	sent     *sentAircraft
}

// AircraftTracker applies the ADS-B object state machine: admission/clear
// range hysteresis, landed-dwell suppression, identity rename, change
// detection, and TTL expiry. It must only be driven from a single goroutine.
type AircraftTracker struct {
	cfg    TrackerConfig
	sender aprs.Sender
	view   *monitor.AircraftView
	meta   MetaSource

	// hexToName/nameToHex stay a bijection: for any tracked hex,
	// nameToHex[hexToName[hex]] == hex.
	hexToName  map[string]string
	nameToHex  map[string]string
	tracks     map[string]*track
	suppressed map[string]bool // landed names silenced until altitude clears

	now func() time.Time
	log *log.Logger
}

// NewAircraftTracker returns a tracker emitting through sender and
// publishing to view.
func NewAircraftTracker(cfg TrackerConfig, sender aprs.Sender, meta MetaSource, view *monitor.AircraftView, logger *log.Logger) *AircraftTracker {
	return &AircraftTracker{
		cfg:        cfg,
		sender:     sender,
		view:       view,
		meta:       meta,
		hexToName:  make(map[string]string),
		nameToHex:  make(map[string]string),
		tracks:     make(map[string]*track),
		suppressed: make(map[string]bool),
		now:        time.Now,
		log:        logger,
	}
}

// NormalizeCallsign uppercases and strips everything outside [A-Z0-9].
func NormalizeCallsign(cs string) string {
	var sb strings.Builder
	for _, r := range strings.ToUpper(cs) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// ObjectName derives the 9-char APRS object name from a normalized callsign,
// falling back to the ICAO hex, then to a fixed placeholder.
func ObjectName(callsign, hex string) string {
	if callsign != "" {
		return aprs.PadName(callsign)
	}
	if hex != "" {
		return aprs.PadName(hex)
	}
	return aprs.PadName("AIRCRAFT")
}

// Handle processes one SBS record that carried a valid position.
func (t *AircraftTracker) Handle(rec *Record) {
	now := t.now()

	meta, _ := t.meta.Get(rec.Hex)
	cs := NormalizeCallsign(rec.Callsign)
	if cs == "" {
		cs = NormalizeCallsign(meta.Callsign)
	}
	desired := ObjectName(cs, rec.Hex)

	if t.suppressed[desired] {
		if rec.AltFt == nil || *rec.AltFt <= t.cfg.LandClearAltFt {
			return
		}
		delete(t.suppressed, desired)
		t.log.Debug("landing suppression cleared", "name", desired, "alt", *rec.AltFt)
	}

	name, exists := t.hexToName[rec.Hex]
	if exists && name != desired {
		t.rename(name, desired, rec.Hex)
		name = desired
	}

	dist := geo.MilesBetween(t.cfg.CenterLat, t.cfg.CenterLon, rec.Lat, rec.Lon)

	if !exists {
		if dist > t.cfg.AddDistanceMi {
			return
		}
		name = desired
		tr := &track{name: name, hex: rec.Hex}
		t.tracks[name] = tr
		t.hexToName[rec.Hex] = name
		t.nameToHex[name] = rec.Hex
		t.log.Debug("track admitted", "name", name, "dist", fmt.Sprintf("%.1f", dist))
	}

	tr := t.tracks[name]

	if exists && dist > t.cfg.ClearDistanceMi {
		t.log.Info("track out of range", "name", tr.name, "dist", fmt.Sprintf("%.1f", dist))
		t.removeTrack(tr)
		return
	}

	tr.lastSeen = now
	tr.lat, tr.lon = rec.Lat, rec.Lon
	tr.alt, tr.gs, tr.trk = rec.AltFt, rec.GSKt, rec.TrackDeg
	tr.callsign = cs
	tr.category, tr.acType = meta.Category, meta.ACType
	tr.sym = SymbolFor(meta.Category, meta.ACType)

	if tr.alt != nil && *tr.alt <= t.cfg.LandedAltFt {
		if tr.lowSince == nil {
			start := now
			tr.lowSince = &start
		} else if now.Sub(*tr.lowSince) >= t.cfg.LandedWait {
			t.log.Info("track landed", "name", tr.name)
			t.removeTrack(tr)
			t.suppressed[tr.name] = true
			return
		}
	} else {
		tr.lowSince = nil
	}

	if !t.shouldSend(tr, now) {
		return
	}

	obj := aprs.Object{
		Name:      tr.name,
		Timestamp: now,
		Lat:       tr.lat,
		Lon:       tr.lon,
		Table:     tr.sym.Table,
		Code:      tr.sym.Code,
		Comment:   t.comment(tr, false),
	}
	if !t.sender.Send(obj) {
		return
	}

	tr.sent = &sentAircraft{at: now, lat: tr.lat, lon: tr.lon, alt: tr.alt, gs: tr.gs, trk: tr.trk}
	t.publish(tr)
}

// shouldSend applies the forced-send rules: first send, minimum movement, or
// a state delta past any epsilon once the update interval has elapsed.
func (t *AircraftTracker) shouldSend(tr *track, now time.Time) bool {
	s := tr.sent
	if s == nil {
		return true
	}
	if geo.MilesBetween(s.lat, s.lon, tr.lat, tr.lon) >= t.cfg.MinMoveMi {
		return true
	}
	if now.Sub(s.at) < t.cfg.MinUpdate {
		return false
	}
	if math.Abs(tr.lat-s.lat) >= latLonEps || math.Abs(tr.lon-s.lon) >= latLonEps {
		return true
	}
	return deltaAt(tr.alt, s.alt, altEps) ||
		deltaAt(tr.gs, s.gs, gsEps) ||
		circularDeltaAt(tr.trk, s.trk, trkEps)
}

// deltaAt reports a presence transition or an absolute change >= eps.
func deltaAt(a, b *float64, eps float64) bool {
	if (a == nil) != (b == nil) {
		return true
	}
	if a == nil {
		return false
	}
	return math.Abs(*a-*b) >= eps
}

// circularDeltaAt is deltaAt on a 360-degree circle.
func circularDeltaAt(a, b *float64, eps float64) bool {
	if (a == nil) != (b == nil) {
		return true
	}
	if a == nil {
		return false
	}
	d := math.Abs(*a - *b)
	if 360-d < d {
		d = 360 - d
	}
	return d >= eps
}

// rename retires the object announced under oldName and carries its state
// over to newName. The delete goes out at the last-sent position; the
// last-sent record migrates so change detection keeps its baseline.
func (t *AircraftTracker) rename(oldName, newName, hex string) {
	tr := t.tracks[oldName]
	if tr == nil {
		delete(t.hexToName, hex)
		delete(t.nameToHex, oldName)
		return
	}

	// A stale track already holding the new name would break the
	// hex<->name bijection; retire it first.
	if other := t.tracks[newName]; other != nil && other.hex != hex {
		t.removeTrack(other)
	}

	if tr.sent != nil {
		t.sender.Send(t.deleteObject(tr))
	}
	delete(t.tracks, oldName)
	delete(t.nameToHex, oldName)
	t.view.Delete(oldName)

	tr.name = newName
	t.tracks[newName] = tr
	t.hexToName[hex] = newName
	t.nameToHex[newName] = hex
	t.log.Info("track renamed", "old", oldName, "new", newName, "icao", hex)
}

// removeTrack emits the retraction (when the object was ever announced) and
// drops the track from every table atomically with respect to the pipeline.
func (t *AircraftTracker) removeTrack(tr *track) {
	if tr.sent != nil {
		t.sender.Send(t.deleteObject(tr))
	}
	delete(t.tracks, tr.name)
	delete(t.hexToName, tr.hex)
	delete(t.nameToHex, tr.name)
	delete(t.suppressed, tr.name)
	t.view.Delete(tr.name)
}

// deleteObject builds the retraction line at the last-sent position.
func (t *AircraftTracker) deleteObject(tr *track) aprs.Object {
	lat, lon := tr.lat, tr.lon
	if tr.sent != nil {
		lat, lon = tr.sent.lat, tr.sent.lon
	}
	return aprs.Object{
		Name:      tr.name,
		Timestamp: t.now(),
		Lat:       lat,
		Lon:       lon,
		Table:     tr.sym.Table,
		Code:      tr.sym.Code,
		Comment:   t.comment(tr, true),
	}
}

// comment concatenates the object comment fields in their fixed order.
func (t *AircraftTracker) comment(tr *track, del bool) string {
	var parts []string
	if tr.trk != nil {
		parts = append(parts, fmt.Sprintf("TRK %03d", int(*tr.trk)%360))
	}
	if tr.gs != nil {
		parts = append(parts, fmt.Sprintf("GS %dkt", int(*tr.gs)))
	}
	if tr.alt != nil {
		parts = append(parts, fmt.Sprintf("ALT %dft", int(*tr.alt)))
	}
	if tr.callsign != "" {
		parts = append(parts, "FLT "+tr.callsign)
	}
	if tr.hex != "" {
		parts = append(parts, "ICAO "+tr.hex)
	}
	if t.cfg.SymbolTags {
		parts = append(parts, "SYM "+tr.sym.Tag)
	}
	if del {
		parts = append(parts, aprs.DeleteSentinel)
	}
	if len(parts) == 0 {
		return "ADS-B"
	}
	return strings.Join(parts, " ")
}

func (t *AircraftTracker) publish(tr *track) {
	entry := monitor.AircraftEntry{
		Name:     tr.name,
		ICAO:     tr.hex,
		Callsign: tr.callsign,
		Category: tr.category,
		ACType:   tr.acType,
		Symbol:   tr.sym.Tag,
		Lat:      fmt.Sprintf("%.4f", tr.lat),
		Lon:      fmt.Sprintf("%.4f", tr.lon),
		Seen:     tr.lastSeen,
	}
	if tr.alt != nil {
		entry.Alt = fmt.Sprintf("%d ft", int(*tr.alt))
	}
	if tr.gs != nil {
		entry.GS = fmt.Sprintf("%d kt", int(*tr.gs))
	}
	if tr.trk != nil {
		entry.Trk = fmt.Sprintf("%03d", int(*tr.trk)%360)
	}
	t.view.Set(entry)
}

// Sweep retires tracks silent past the object TTL.
func (t *AircraftTracker) Sweep() {
	now := t.now()
	for _, tr := range t.tracks {
		if now.Sub(tr.lastSeen) > t.cfg.ObjectTTL {
			t.log.Info("track expired", "name", tr.name)
			t.removeTrack(tr)
		}
	}
}
