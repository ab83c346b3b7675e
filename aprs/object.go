package aprs

import (
	"fmt"
	"time"

	"aprsbridge/geo"
)

// ObjectNameWidth is the fixed APRS object-name field width. Every name is
// space-padded (or truncated) to exactly this many characters before it goes
// on the wire.
const ObjectNameWidth = 9

// DeleteSentinel is appended as the final comment field of an object report
// that retracts a previously announced object.
const DeleteSentinel = "DEL"

// Object is one APRS object report: a named point with a symbol and a
// free-form comment.
type Object struct {
	Name      string
	Timestamp time.Time
	Lat       float64
	Lon       float64
	Table     byte
	Code      byte
	Comment   string
}

// PadName space-pads or truncates s to the fixed object-name width.
func PadName(s string) string {
	return fmt.Sprintf("%-*.*s", ObjectNameWidth, ObjectNameWidth, s)
}

// Packet renders the object in APRS wire form:
//
//	;NAME9....*HHMMSSzddmm.mmN/dddmm.mmW^comment
func (o Object) Packet() string {
	return fmt.Sprintf(";%s*%s%s%c%s%c%s",
		PadName(o.Name),
		geo.Timestamp(o.Timestamp),
		geo.LatitudeToDM(o.Lat),
		o.Table,
		geo.LongitudeToDM(o.Lon),
		o.Code,
		o.Comment)
}
