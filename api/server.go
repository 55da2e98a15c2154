// Package api exposes the daemon's statistics over HTTP as JSON, plus a
// rendered variance chart for quick visual inspection.
package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/covtrack/db"
	"github.com/banshee-data/covtrack/internal/telemetry"
)

type Server struct {
	sampler *telemetry.Sampler
	db      *db.DB
}

func NewServer(sampler *telemetry.Sampler, db *db.DB) *Server {
	return &Server{
		sampler: sampler,
		db:      db,
	}
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/stats", s.statsHandler)
	mux.HandleFunc("/snapshots", s.snapshotsHandler)
	mux.HandleFunc("/chart", s.chartHandler)
	mux.HandleFunc("/", s.homeHandler)
	return mux
}

func (s *Server) homeHandler(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("Welcome to the Covariance Tracker Server!"))
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, fmt.Sprintf("Failed to encode response: %v", err), http.StatusInternalServerError)
	}
}

// statsHandler reports the current windowed and lifetime statistics.
func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, s.sampler.Stats())
}

// snapshotsHandler lists recorded snapshots, newest first. Query params:
//   - session (optional; all sessions when empty)
//   - limit (optional; default 500)
func (s *Server) snapshotsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		v, err := strconv.Atoi(l)
		if err != nil || v < 1 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = v
	}

	snapshots, err := s.db.Snapshots(r.URL.Query().Get("session"), limit)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to retrieve snapshots: %v", err), http.StatusInternalServerError)
		return
	}
	if snapshots == nil {
		snapshots = []db.Snapshot{}
	}
	s.writeJSON(w, snapshots)
}

// chartHandler renders an HTML line chart of per-dimension variance over
// the recorded snapshot history using go-echarts.
func (s *Server) chartHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	snapshots, err := s.db.Snapshots(r.URL.Query().Get("session"), 500)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to retrieve snapshots: %v", err), http.StatusInternalServerError)
		return
	}
	if len(snapshots) == 0 {
		http.Error(w, "No snapshots recorded yet", http.StatusNotFound)
		return
	}

	// Snapshots arrive newest first; plot oldest to newest.
	dim := len(snapshots[len(snapshots)-1].Mean)
	xAxis := make([]string, 0, len(snapshots))
	series := make([][]opts.LineData, dim)
	for i := len(snapshots) - 1; i >= 0; i-- {
		snap := snapshots[i]
		if len(snap.Covariance) != dim {
			continue
		}
		xAxis = append(xAxis, snap.Timestamp.Format("15:04:05"))
		for j := 0; j < dim; j++ {
			series[j] = append(series[j], opts.LineData{Value: snap.Covariance[j][j]})
		}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Windowed Variance", Theme: "dark", Width: "1200px", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{Title: "Windowed Variance", Subtitle: fmt.Sprintf("snapshots=%d dims=%d", len(xAxis), dim)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "variance"}),
	)

	line.SetXAxis(xAxis)
	for j := 0; j < dim; j++ {
		line.AddSeries(fmt.Sprintf("var[%d]", j), series[j])
	}

	var buf bytes.Buffer
	if err := line.Render(&buf); err != nil {
		http.Error(w, fmt.Sprintf("Failed to render chart: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
