package adsb

import (
	"io"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aprsbridge/aprs"
	"aprsbridge/monitor"
)

type fakeSender struct {
	sent []aprs.Object
	fail bool
}

func (f *fakeSender) Send(o aprs.Object) bool {
	if f.fail {
		return false
	}
	f.sent = append(f.sent, o)
	return true
}

type fakeMeta map[string]Meta

func (f fakeMeta) Get(hex string) (Meta, bool) {
	m, ok := f[hex]
	return m, ok
}

// Reference point and prepared offsets due north of it.
const (
	kbufLat = 42.9405
	kbufLon = -78.7322

	lat2mi  = 42.9695  // ~2 mi out
	lat20mi = 43.22996 // ~20 mi out
	lat36mi = 43.46153 // ~36 mi: inside the hysteresis band
	lat41mi = 43.53389 // ~41 mi: past the clear radius
)

func testAircraftConfig() TrackerConfig {
	return TrackerConfig{
		CenterLat:       kbufLat,
		CenterLon:       kbufLon,
		AddDistanceMi:   35,
		ClearDistanceMi: 40,
		LandedAltFt:     1000,
		LandedWait:      180 * time.Second,
		LandClearAltFt:  1500,
		MinMoveMi:       0.50,
		MinUpdate:       5 * time.Second,
		ObjectTTL:       300 * time.Second,
		SymbolTags:      true,
	}
}

func newAircraftTracker(cfg TrackerConfig, meta fakeMeta) (*AircraftTracker, *fakeSender, *monitor.AircraftView, *time.Time) {
	sender := &fakeSender{}
	view := monitor.NewAircraftView()
	if meta == nil {
		meta = fakeMeta{}
	}
	tr := NewAircraftTracker(cfg, sender, meta, view, log.New(io.Discard))
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := &now
	tr.now = func() time.Time { return *clock }
	return tr, sender, view, clock
}

func record(hex, callsign string, lat, lon float64, alt, gs, trk *float64) *Record {
	return &Record{Hex: hex, Callsign: callsign, Lat: lat, Lon: lon, AltFt: alt, GSKt: gs, TrackDeg: trk}
}

func f(v float64) *float64 { return &v }

func TestNormalizeCallsign(t *testing.T) {
	tests := []struct {
		in       string
		expected string
	}{
		{"UAL123", "UAL123"},
		{"ual123 ", "UAL123"},
		{"N-123.AB", "N123AB"},
		{"  ", ""},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, NormalizeCallsign(tt.in))
	}
}

func TestObjectName(t *testing.T) {
	tests := []struct {
		callsign string
		hex      string
		expected string
	}{
		{"UAL123", "ABCDEF", "UAL123   "},
		{"", "ABCDEF", "ABCDEF   "},
		{"VERYLONGCALL", "ABCDEF", "VERYLONGC"},
		{"", "", "AIRCRAFT "},
	}
	for _, tt := range tests {
		got := ObjectName(tt.callsign, tt.hex)
		assert.Equal(t, tt.expected, got)
		assert.Len(t, got, 9)
	}
}

func TestNewTrackUnderAdmissionRadius(t *testing.T) {
	tr, sender, view, _ := newAircraftTracker(testAircraftConfig(), nil)

	tr.Handle(record("ABC123", "UAL123", lat2mi, kbufLon, f(5000), f(250), f(90)))

	require.Len(t, sender.sent, 1)
	o := sender.sent[0]
	assert.Equal(t, "UAL123   ", o.Name)
	assert.Equal(t, "TRK 090 GS 250kt ALT 5000ft FLT UAL123 ICAO ABC123 SYM PLANE", o.Comment)
	assert.Contains(t, view.Snapshot(), "UAL123   ")
}

func TestNewTrackBeyondAdmissionRadiusIgnored(t *testing.T) {
	tr, sender, _, _ := newAircraftTracker(testAircraftConfig(), nil)

	tr.Handle(record("ABC123", "", lat36mi, kbufLon, f(5000), nil, nil))
	assert.Empty(t, sender.sent, "36 mi is inside the no-admission band")
}

func TestRangeClearHysteresis(t *testing.T) {
	tr, sender, view, clock := newAircraftTracker(testAircraftConfig(), nil)

	tr.Handle(record("ABC123", "", lat20mi, kbufLon, f(9000), nil, nil))
	require.Len(t, sender.sent, 1)

	// Drifting into the 35-40 mi band keeps the existing track alive.
	*clock = clock.Add(10 * time.Second)
	tr.Handle(record("ABC123", "", lat36mi, kbufLon, f(9000), nil, nil))
	require.Len(t, sender.sent, 2)

	// Past 40 mi: one delete at the last-sent position, then silence.
	*clock = clock.Add(10 * time.Second)
	tr.Handle(record("ABC123", "", lat41mi, kbufLon, f(9000), nil, nil))
	require.Len(t, sender.sent, 3)
	del := sender.sent[2]
	assert.True(t, strings.HasSuffix(del.Comment, " "+aprs.DeleteSentinel))
	assert.InDelta(t, lat36mi, del.Lat, 1e-9)
	assert.Empty(t, view.Snapshot())

	*clock = clock.Add(10 * time.Second)
	tr.Handle(record("ABC123", "", lat41mi, kbufLon, f(9000), nil, nil))
	assert.Len(t, sender.sent, 3, "cleared tracks are not re-admitted out of range")

	// Re-entering the admission radius starts a fresh track.
	*clock = clock.Add(10 * time.Second)
	tr.Handle(record("ABC123", "", lat20mi, kbufLon, f(9000), nil, nil))
	assert.Len(t, sender.sent, 4)
}

func TestLandingDwellSuppression(t *testing.T) {
	tr, sender, view, clock := newAircraftTracker(testAircraftConfig(), nil)

	tr.Handle(record("ABC123", "", lat2mi, kbufLon, f(800), nil, nil))
	require.Len(t, sender.sent, 1)

	// Low but not yet past the dwell.
	*clock = clock.Add(90 * time.Second)
	tr.Handle(record("ABC123", "", lat2mi, kbufLon, f(850), nil, nil))

	// Continuously low for the full dwell: delete once and suppress.
	*clock = clock.Add(90 * time.Second)
	tr.Handle(record("ABC123", "", lat2mi, kbufLon, f(800), nil, nil))

	dels := 0
	for _, o := range sender.sent {
		if strings.HasSuffix(o.Comment, " "+aprs.DeleteSentinel) {
			dels++
		}
	}
	assert.Equal(t, 1, dels)
	assert.Empty(t, view.Snapshot())

	before := len(sender.sent)

	// Suppressed while at or below the clear altitude, or unknown.
	*clock = clock.Add(10 * time.Second)
	tr.Handle(record("ABC123", "", lat2mi, kbufLon, f(1200), nil, nil))
	tr.Handle(record("ABC123", "", lat2mi, kbufLon, nil, nil, nil))
	tr.Handle(record("ABC123", "", lat2mi, kbufLon, f(1500), nil, nil))
	assert.Len(t, sender.sent, before)

	// Climbing past the clear altitude re-admits the track.
	*clock = clock.Add(10 * time.Second)
	tr.Handle(record("ABC123", "", lat2mi, kbufLon, f(1501), nil, nil))
	assert.Len(t, sender.sent, before+1)
}

func TestLandingDwellResetsWhenClimbing(t *testing.T) {
	tr, sender, _, clock := newAircraftTracker(testAircraftConfig(), nil)

	tr.Handle(record("ABC123", "", lat2mi, kbufLon, f(800), nil, nil))

	// A climb above the threshold restarts the dwell from scratch.
	*clock = clock.Add(170 * time.Second)
	tr.Handle(record("ABC123", "", lat2mi, kbufLon, f(2000), nil, nil))
	*clock = clock.Add(20 * time.Second)
	tr.Handle(record("ABC123", "", lat2mi, kbufLon, f(900), nil, nil))
	*clock = clock.Add(170 * time.Second)
	tr.Handle(record("ABC123", "", lat2mi, kbufLon, f(900), nil, nil))

	for _, o := range sender.sent {
		assert.False(t, strings.HasSuffix(o.Comment, " "+aprs.DeleteSentinel),
			"dwell was interrupted, nothing may be deleted")
	}
}

func TestRenameOnCallsignAppearance(t *testing.T) {
	tr, sender, view, clock := newAircraftTracker(testAircraftConfig(), nil)

	tr.Handle(record("ABCDEF", "", lat2mi, kbufLon, f(5000), nil, nil))
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "ABCDEF   ", sender.sent[0].Name)

	// Callsign appears: delete the hex-named object, keep the baseline.
	*clock = clock.Add(2 * time.Second)
	tr.Handle(record("ABCDEF", "UAL123", lat2mi, kbufLon, f(5000), nil, nil))
	require.Len(t, sender.sent, 2)
	del := sender.sent[1]
	assert.Equal(t, "ABCDEF   ", del.Name)
	assert.True(t, strings.HasSuffix(del.Comment, " "+aprs.DeleteSentinel))
	assert.InDelta(t, lat2mi, del.Lat, 1e-9, "delete goes out at the last-sent position")
	assert.NotContains(t, view.Snapshot(), "ABCDEF   ")

	// Migrated baseline means no immediate re-send without a qualifying
	// change.
	assert.Len(t, sender.sent, 2)

	*clock = clock.Add(6 * time.Second)
	tr.Handle(record("ABCDEF", "UAL123", lat2mi, kbufLon, f(5025), nil, nil))
	require.Len(t, sender.sent, 3)
	assert.Equal(t, "UAL123   ", sender.sent[2].Name)

	// The identity maps stay a bijection.
	name := tr.hexToName["ABCDEF"]
	assert.Equal(t, "UAL123   ", name)
	assert.Equal(t, "ABCDEF", tr.nameToHex[name])
	assert.NotContains(t, tr.nameToHex, "ABCDEF   ")
	assert.NotContains(t, tr.tracks, "ABCDEF   ")
}

func TestMetadataCallsignUsedForNaming(t *testing.T) {
	meta := fakeMeta{"ABC123": {Callsign: "JBU42", Category: "A3", ACType: "A320"}}
	tr, sender, _, _ := newAircraftTracker(testAircraftConfig(), meta)

	tr.Handle(record("ABC123", "", lat2mi, kbufLon, f(5000), nil, nil))
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "JBU42    ", sender.sent[0].Name)
	assert.Contains(t, sender.sent[0].Comment, "FLT JBU42")
}

func TestHelicopterSymbolFromMetadata(t *testing.T) {
	meta := fakeMeta{"ABC123": {Category: "A7"}}
	tr, sender, _, _ := newAircraftTracker(testAircraftConfig(), meta)

	tr.Handle(record("ABC123", "", lat2mi, kbufLon, f(1800), nil, nil))
	require.Len(t, sender.sent, 1)
	assert.Equal(t, byte('/'), sender.sent[0].Table)
	assert.Equal(t, byte('X'), sender.sent[0].Code)
	assert.Contains(t, sender.sent[0].Comment, "SYM HELI")
}

func TestChangeDetection(t *testing.T) {
	tr, sender, _, clock := newAircraftTracker(testAircraftConfig(), nil)

	tr.Handle(record("ABC123", "", lat2mi, kbufLon, f(5000), f(250), f(90)))
	require.Len(t, sender.sent, 1)

	// Inside the update interval, nothing short of real movement sends.
	*clock = clock.Add(2 * time.Second)
	tr.Handle(record("ABC123", "", lat2mi, kbufLon, f(9000), f(400), f(180)))
	assert.Len(t, sender.sent, 1)

	// Past the interval with a sub-epsilon delta: still quiet.
	*clock = clock.Add(6 * time.Second)
	tr.Handle(record("ABC123", "", lat2mi, kbufLon, f(5024), f(251), f(92)))
	assert.Len(t, sender.sent, 1)

	// An altitude delta at the epsilon sends.
	*clock = clock.Add(6 * time.Second)
	tr.Handle(record("ABC123", "", lat2mi, kbufLon, f(5025), f(250), f(90)))
	assert.Len(t, sender.sent, 2)

	// A presence-to-absence transition sends.
	*clock = clock.Add(6 * time.Second)
	tr.Handle(record("ABC123", "", lat2mi, kbufLon, f(5025), f(250), nil))
	assert.Len(t, sender.sent, 3)
}

func TestChangeDetectionCircularTrack(t *testing.T) {
	tr, sender, _, clock := newAircraftTracker(testAircraftConfig(), nil)

	tr.Handle(record("ABC123", "", lat2mi, kbufLon, f(5000), f(250), f(359)))
	require.Len(t, sender.sent, 1)

	// 359 -> 1 is only 2 degrees around the circle.
	*clock = clock.Add(6 * time.Second)
	tr.Handle(record("ABC123", "", lat2mi, kbufLon, f(5000), f(250), f(1)))
	assert.Len(t, sender.sent, 1)

	// 359 -> 4 is 5 degrees.
	*clock = clock.Add(6 * time.Second)
	tr.Handle(record("ABC123", "", lat2mi, kbufLon, f(5000), f(250), f(4)))
	assert.Len(t, sender.sent, 2)
}

func TestMinimumMovementForcesSend(t *testing.T) {
	tr, sender, _, clock := newAircraftTracker(testAircraftConfig(), nil)

	tr.Handle(record("ABC123", "", 42.95, kbufLon, f(5000), nil, nil))
	require.Len(t, sender.sent, 1)

	// 0.4 mi: below the movement threshold, and inside the interval.
	*clock = clock.Add(time.Second)
	tr.Handle(record("ABC123", "", 42.955789, kbufLon, f(5000), nil, nil))
	assert.Len(t, sender.sent, 1)

	// 0.6 mi from the last-sent position forces a send immediately.
	*clock = clock.Add(time.Second)
	tr.Handle(record("ABC123", "", 42.958684, kbufLon, f(5000), nil, nil))
	assert.Len(t, sender.sent, 2)
}

func TestObjectTTLExpiry(t *testing.T) {
	tr, sender, view, clock := newAircraftTracker(testAircraftConfig(), nil)

	tr.Handle(record("ABC123", "", lat2mi, kbufLon, f(5000), nil, nil))
	require.Len(t, sender.sent, 1)

	*clock = clock.Add(300 * time.Second)
	tr.Sweep()
	assert.Len(t, sender.sent, 1, "at the TTL boundary the track survives")

	*clock = clock.Add(time.Second)
	tr.Sweep()
	require.Len(t, sender.sent, 2)
	assert.True(t, strings.HasSuffix(sender.sent[1].Comment, " "+aprs.DeleteSentinel))
	assert.Empty(t, view.Snapshot())
	assert.Empty(t, tr.tracks)
	assert.Empty(t, tr.hexToName)
	assert.Empty(t, tr.nameToHex)
}

func TestEmittedNamesAlwaysNineChars(t *testing.T) {
	tr, sender, _, clock := newAircraftTracker(testAircraftConfig(), nil)

	tr.Handle(record("ABCDEF", "", lat2mi, kbufLon, f(5000), nil, nil))
	tr.Handle(record("123456", "SOMEVERYLONGCALL", lat2mi, kbufLon, f(6000), nil, nil))
	*clock = clock.Add(301 * time.Second)
	tr.Sweep()

	require.NotEmpty(t, sender.sent)
	for _, o := range sender.sent {
		pkt := o.Packet()
		assert.Equal(t, 1+9, strings.IndexByte(pkt, '*'), "packet %q", pkt)
	}
}
