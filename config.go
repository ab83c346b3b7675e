package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the bridge configuration. Every gating constant defaults to the
// reference value; changing them changes which lines go out, so the defaults
// are what you want unless you know otherwise.
type Config struct {
	Call     string `yaml:"call"`
	Passcode string `yaml:"passcode"`

	APRSAddr  string `yaml:"aprs_addr"`
	AISListen string `yaml:"ais_listen"`
	SBSAddr   string `yaml:"sbs_addr"`
	JSONURL   string `yaml:"json_url"`

	MaxPktsPerSec int `yaml:"max_pkts_per_sec"`

	// AIS vessel gating.
	CenterLat      float64 `yaml:"center_lat"`
	CenterLon      float64 `yaml:"center_lon"`
	MaxRangeNM     float64 `yaml:"max_range_nm"`
	TeleportMoveNM float64 `yaml:"teleport_move_nm"`
	TeleportTime   int     `yaml:"teleport_time_sec"`
	VesselTTL      int     `yaml:"vessel_ttl_sec"`

	// ADS-B aircraft gating.
	AddDistanceMi   float64 `yaml:"add_distance_mi"`
	ClearDistanceMi float64 `yaml:"clear_distance_mi"`
	LandedAltFt     float64 `yaml:"landed_alt_ft"`
	LandedWait      int     `yaml:"landed_wait_sec"`
	LandClearAltFt  float64 `yaml:"land_clear_alt_ft"`
	MinMoveMi       float64 `yaml:"min_move_mi"`
	MinUpdate       int     `yaml:"min_update_sec"`
	ObjectTTL       int     `yaml:"object_ttl_sec"`
	JSONRefresh     int     `yaml:"json_refresh_sec"`
	SymbolTags      bool    `yaml:"symbol_tags"`

	MetricsAddr string `yaml:"metrics_addr"`
}

func defaultConfig() Config {
	return Config{
		Call:     "N0CALL",
		Passcode: "-1",

		APRSAddr:  "127.0.0.1:14580",
		AISListen: "0.0.0.0:10110",
		SBSAddr:   "localhost:30003",
		JSONURL:   "http://localhost:8080/data.json",

		MaxPktsPerSec: 5,

		CenterLat:      42.9405,
		CenterLon:      -78.7322,
		MaxRangeNM:     250,
		TeleportMoveNM: 150,
		TeleportTime:   900,
		VesselTTL:      1800,

		AddDistanceMi:   35,
		ClearDistanceMi: 40,
		LandedAltFt:     1000,
		LandedWait:      180,
		LandClearAltFt:  1500,
		MinMoveMi:       0.50,
		MinUpdate:       5,
		ObjectTTL:       300,
		JSONRefresh:     5,
		SymbolTags:      true,
	}
}

// loadConfig returns the defaults, overlaid with the YAML file at path when
// one is given.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing %s: %w", path, err)
	}
	return cfg, nil
}
