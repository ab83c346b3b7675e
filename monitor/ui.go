package monitor

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/awesome-gocui/gocui"
	"github.com/dustin/go-humanize"
	. "github.com/logrusorgru/aurora"
)

// UI is the optional terminal monitor: a status bar plus one window per
// object table, refreshed once per second from view snapshots.
type UI struct {
	vessels  *VesselView
	aircraft *AircraftView
}

// NewUI returns a monitor over the two views.
func NewUI(vessels *VesselView, aircraft *AircraftView) *UI {
	return &UI{vessels: vessels, aircraft: aircraft}
}

// Run blocks inside the gocui main loop until the user quits with Ctrl-C.
func (u *UI) Run() error {
	g, err := gocui.NewGui(gocui.OutputNormal, false)
	if err != nil {
		return err
	}
	defer g.Close()

	g.SetManagerFunc(layout)

	if err := g.SetKeybinding("", gocui.KeyCtrlC, gocui.ModNone, quit); err != nil {
		return err
	}

	go func() {
		for ; ; <-time.Tick(time.Second) {
			g.Update(u.update)
		}
	}()

	if err := g.MainLoop(); err != nil && !errors.Is(err, gocui.ErrQuit) {
		return err
	}
	return nil
}

func (u *UI) update(g *gocui.Gui) error {
	vessels := u.vessels.Snapshot()
	aircraft := u.aircraft.Snapshot()

	s, _ := g.View("status")
	s.Clear()
	fmt.Fprintf(s, " VESSELS: %02d  AIRCRAFT: %02d  LAST UPDATE: %s\n",
		Green(len(vessels)),
		Green(len(aircraft)),
		Bold(Green(time.Now().Format("2006-01-02 15:04:05"))))

	vs, _ := g.View("vessels")
	vs.Clear()
	fmt.Fprintln(vs, " OBJECT     MMSI       NAME                  LAT       LON      SOG    COG  SEEN")
	for _, e := range sortedVessels(vessels) {
		fmt.Fprintln(vs, Sprintf(Yellow(" %-9s  %-9s  %-20s  %-8s  %-9s  %-5s  %-3s  %s"),
			e.Name, e.MMSI, e.ShipName, e.Lat, e.Lon, e.SOG, e.COG,
			humanize.Time(e.Seen)))
	}

	as, _ := g.View("aircraft")
	as.Clear()
	fmt.Fprintln(as, " OBJECT     ICAO    FLIGHT     TYPE  SYM      LAT       LON       ALT       GS     TRK  SEEN")
	for _, e := range sortedAircraft(aircraft) {
		fmt.Fprintln(as, Sprintf(Cyan(" %-9s  %-6s  %-9s  %-4s  %-7s  %-8s  %-9s  %-8s  %-6s  %-3s  %s"),
			e.Name, e.ICAO, e.Callsign, e.ACType, e.Symbol,
			e.Lat, e.Lon, e.Alt, e.GS, e.Trk,
			humanize.Time(e.Seen)))
	}

	return nil
}

func sortedVessels(m map[string]VesselEntry) []VesselEntry {
	out := make([]VesselEntry, 0, len(m))
	for _, e := range m {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func sortedAircraft(m map[string]AircraftEntry) []AircraftEntry {
	out := make([]AircraftEntry, 0, len(m))
	for _, e := range m {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func layout(g *gocui.Gui) error {
	maxX, maxY := g.Size()
	half := maxY / 2

	v, _ := g.SetView("status", 0, 0, maxX-2, 2, 0)
	v.Title = " STATUS "

	v, _ = g.SetView("vessels", 0, 3, maxX-2, half, 0)
	v.Title = " AIS VESSELS "

	v, _ = g.SetView("aircraft", 0, half+1, maxX-2, maxY-1, 0)
	v.Title = " ADS-B AIRCRAFT "
	return nil
}

func quit(g *gocui.Gui, v *gocui.View) error {
	return gocui.ErrQuit
}
