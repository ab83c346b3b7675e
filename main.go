package main

import (
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"

	"aprsbridge/adsb"
	"aprsbridge/ais"
	"aprsbridge/aprs"
	"aprsbridge/metrics"
	"aprsbridge/monitor"
)

func main() {
	configPath := pflag.StringP("config", "c", "", "path to YAML config file")
	withMonitor := pflag.Bool("monitor", false, "show the terminal monitor windows")
	debug := pflag.Bool("debug", false, "enable debug logging")
	pflag.Parse()

	logger := log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true})
	if *debug {
		logger.SetLevel(log.DebugLevel)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		logger.Fatal("loading config", "err", err)
	}

	if cfg.MetricsAddr != "" {
		go func() {
			if err := metrics.Serve(cfg.MetricsAddr); err != nil {
				logger.Error("metrics listener failed", "err", err)
			}
		}()
	}

	vesselView := monitor.NewVesselView()
	aircraftView := monitor.NewAircraftView()

	// The two pipelines are independent: each owns its APRS-IS connection
	// and shares nothing but the view model.
	aisLog := logger.WithPrefix("ais")
	vesselTracker := ais.NewVesselTracker(ais.TrackerConfig{
		CenterLat:      cfg.CenterLat,
		CenterLon:      cfg.CenterLon,
		MaxRangeNM:     cfg.MaxRangeNM,
		TeleportMoveNM: cfg.TeleportMoveNM,
		TeleportTime:   time.Duration(cfg.TeleportTime) * time.Second,
		VesselTTL:      time.Duration(cfg.VesselTTL) * time.Second,
	}, aprs.NewClient(cfg.APRSAddr, cfg.Call, cfg.Passcode, cfg.MaxPktsPerSec, "ais", aisLog),
		vesselView, aisLog)

	go func() {
		if err := ais.NewPipeline(cfg.AISListen, vesselTracker, aisLog).Run(); err != nil {
			logger.Fatal("AIS pipeline failed", "err", err)
		}
	}()

	adsbLog := logger.WithPrefix("adsb")
	meta := adsb.NewMetaCache(cfg.JSONURL, adsbLog)
	aircraftTracker := adsb.NewAircraftTracker(adsb.TrackerConfig{
		CenterLat:       cfg.CenterLat,
		CenterLon:       cfg.CenterLon,
		AddDistanceMi:   cfg.AddDistanceMi,
		ClearDistanceMi: cfg.ClearDistanceMi,
		LandedAltFt:     cfg.LandedAltFt,
		LandedWait:      time.Duration(cfg.LandedWait) * time.Second,
		LandClearAltFt:  cfg.LandClearAltFt,
		MinMoveMi:       cfg.MinMoveMi,
		MinUpdate:       time.Duration(cfg.MinUpdate) * time.Second,
		ObjectTTL:       time.Duration(cfg.ObjectTTL) * time.Second,
		SymbolTags:      cfg.SymbolTags,
	}, aprs.NewClient(cfg.APRSAddr, cfg.Call, cfg.Passcode, cfg.MaxPktsPerSec, "adsb", adsbLog),
		meta, aircraftView, adsbLog)

	go func() {
		pipe := adsb.NewPipeline(cfg.SBSAddr, time.Duration(cfg.JSONRefresh)*time.Second, meta, aircraftTracker, adsbLog)
		if err := pipe.Run(); err != nil {
			logger.Fatal("ADS-B pipeline failed", "err", err)
		}
	}()

	if *withMonitor {
		if err := monitor.NewUI(vesselView, aircraftView).Run(); err != nil {
			logger.Fatal("monitor failed", "err", err)
		}
		return
	}

	select {}
}
