// Command varplot renders a PNG of per-dimension windowed variance over
// a recorded snapshot history.
package main

import (
	"flag"
	"fmt"
	"image/color"
	"log"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/covtrack/db"
)

var (
	dbFile  = flag.String("db-file", "covtrack.db", "Path to the sqlite snapshot database")
	session = flag.String("session", "", "Session ID to plot (all sessions when empty)")
	limit   = flag.Int("limit", 500, "Maximum number of snapshots to plot")
	outFile = flag.String("out", "variance.png", "Output PNG path")
)

// palette cycles through distinguishable line colours per dimension.
var palette = []color.RGBA{
	{R: 31, G: 119, B: 180, A: 255},
	{R: 255, G: 127, B: 14, A: 255},
	{R: 44, G: 160, B: 44, A: 255},
	{R: 214, G: 39, B: 40, A: 255},
	{R: 148, G: 103, B: 189, A: 255},
	{R: 140, G: 86, B: 75, A: 255},
}

func main() {
	flag.Parse()

	database, err := db.NewDB(*dbFile)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer database.Close()

	snapshots, err := database.Snapshots(*session, *limit)
	if err != nil {
		log.Fatalf("failed to read snapshots: %v", err)
	}
	if len(snapshots) == 0 {
		log.Fatal("no snapshots to plot")
	}

	p := plot.New()
	p.Title.Text = "Windowed variance per dimension"
	p.X.Label.Text = "snapshot"
	p.Y.Label.Text = "variance"
	p.Legend.Top = true

	// Snapshots arrive newest first; plot oldest to newest.
	dim := len(snapshots[len(snapshots)-1].Mean)
	for j := 0; j < dim; j++ {
		pts := make(plotter.XYs, 0, len(snapshots))
		for i := len(snapshots) - 1; i >= 0; i-- {
			snap := snapshots[i]
			if len(snap.Covariance) != dim {
				continue
			}
			pts = append(pts, plotter.XY{X: float64(len(pts)), Y: snap.Covariance[j][j]})
		}

		line, err := plotter.NewLine(pts)
		if err != nil {
			log.Fatalf("failed to build line for dimension %d: %v", j, err)
		}
		line.Width = vg.Points(1)
		line.Color = palette[j%len(palette)]
		p.Add(line)
		p.Legend.Add(fmt.Sprintf("var[%d]", j), line)
	}

	if err := p.Save(14*vg.Inch, 6*vg.Inch, *outFile); err != nil {
		log.Fatalf("failed to save plot: %v", err)
	}
	log.Printf("wrote %s (%d snapshots, %d dimensions)", *outFile, len(snapshots), dim)
}
