package adsb

import "strings"

// Symbol pairs an APRS symbol with the short tag used in object comments.
type Symbol struct {
	Table byte
	Code  byte
	Tag   string
}

var (
	symPlane      = Symbol{'/', '^', "PLANE"}
	symHelicopter = Symbol{'/', 'X', "HELI"}
	symGlider     = Symbol{'/', 'g', "GLIDER"}
	symBalloon    = Symbol{'/', 'O', "BALLOON"}
)

var rotorPrefixes = []string{"EC", "UH", "AH", "CH", "MH", "R22", "R44", "BELL", "BK"}
var gliderPrefixes = []string{"DG", "ASW", "ASK", "LS", "G1", "G2", "G3"}
var balloonPrefixes = []string{"BAL", "BLN", "HAB"}

// SymbolFor picks the APRS symbol from the emitter category, falling back to
// the ICAO type designator. The category always wins: any A-class other
// than A7 is a plane no matter what the designator says.
func SymbolFor(category, typeDesignator string) Symbol {
	switch category {
	case "A7":
		return symHelicopter
	case "B2":
		return symBalloon
	case "B1", "B4":
		return symGlider
	}
	if category != "" {
		return symPlane
	}

	t := strings.ToUpper(strings.TrimSpace(typeDesignator))
	if t == "" {
		return symPlane
	}

	// Balloon designators are checked first so that HAB is not taken by the
	// leading-H helicopter rule.
	if strings.Contains(t, "BALLOON") || hasAnyPrefix(t, balloonPrefixes) {
		return symBalloon
	}
	if strings.HasPrefix(t, "H") || strings.Contains(t, "HELI") || hasAnyPrefix(t, rotorPrefixes) {
		return symHelicopter
	}
	if strings.Contains(t, "GLID") || hasAnyPrefix(t, gliderPrefixes) {
		return symGlider
	}
	return symPlane
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}
