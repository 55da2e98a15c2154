package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/covtrack/api"
	"github.com/banshee-data/covtrack/db"
	"github.com/banshee-data/covtrack/internal/covariance"
	"github.com/banshee-data/covtrack/internal/sample"
	"github.com/banshee-data/covtrack/internal/serialmux"
	"github.com/banshee-data/covtrack/internal/telemetry"
	"github.com/banshee-data/covtrack/internal/version"
)

var (
	devMode          = flag.Bool("dev", false, "Run in dev mode (replay fixtures instead of opening a serial port)")
	fixturesPath     = flag.String("fixtures", "fixtures.txt", "Feed fixtures file used in dev mode")
	listen           = flag.String("listen", ":8080", "Listen address")
	portPath         = flag.String("port", "/dev/ttyUSB0", "Serial port device path")
	dim              = flag.Int("dim", 3, "Sample dimensionality")
	window           = flag.Int("window", covariance.DefaultCapacity, "Window capacity (number of most recent samples)")
	snapshotInterval = flag.Duration("snapshot-interval", 10*time.Second, "Interval between statistics snapshots")
	dbFile           = flag.String("db-file", "covtrack.db", "Path to the sqlite snapshot database")
)

// handleLine parses one feed line and feeds it to the sampler. Blank and
// comment lines are skipped silently; malformed or wrong-width samples
// are reported so the feed can be debugged without stopping the daemon.
func handleLine(sampler *telemetry.Sampler, line string) error {
	values, err := sample.Parse(line)
	if err != nil {
		if errors.Is(err, sample.ErrEmptyLine) {
			return nil
		}
		return err
	}

	frac, err := sampler.Observe(values)
	if err != nil {
		return fmt.Errorf("failed to record sample: %w", err)
	}
	log.Printf("Recorded sample %v (window %.0f%% full)", values, frac*100)
	return nil
}

func main() {
	flag.Parse()

	if *listen == "" {
		log.Fatal("Listen address is required")
	}

	sampler, err := telemetry.NewSampler(*dim, *window)
	if err != nil {
		log.Fatalf("failed to create sampler: %v", err)
	}

	var m serialmux.SerialMuxInterface
	if *devMode {
		data, err := os.ReadFile(*fixturesPath)
		if err != nil {
			log.Fatalf("failed to open fixtures file: %v", err)
		}
		m = serialmux.NewMockSerialMux(data)
	} else {
		m, err = serialmux.NewRealSerialMux(*portPath)
		if err != nil {
			log.Fatalf("failed to open sensor port: %v", err)
		}
	}
	defer m.Close()

	database, err := db.NewDB(*dbFile)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	sessionID := uuid.NewString()
	log.Printf("covtrack %s (%s) starting session %s (dim=%d window=%d)",
		version.Version, version.GitSHA, sessionID, *dim, *window)

	// Create a wait group for the HTTP server, serial monitor, subscriber,
	// and snapshot routines
	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// run the monitor routine to manage IO on the serial port
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := m.Monitor(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("failed to monitor sensor port: %v", err)
		}
		log.Print("monitor routine terminated")
	}()

	// subscribe to the sensor feed lines
	// and pass them to the sampler
	wg.Add(1)
	go func() {
		defer wg.Done()
		id, c := m.Subscribe()
		defer m.Unsubscribe(id)
		for {
			select {
			case payload := <-c:
				if err := handleLine(sampler, payload); err != nil {
					log.Printf("error handling feed line: %v", err)
				}
			case <-ctx.Done():
				log.Printf("subscribe routine terminated")
				return
			}
		}
	}()

	// periodically record a snapshot of the derived statistics
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(*snapshotInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				stats := sampler.Stats()
				if stats.Occupancy == 0 {
					continue
				}
				err := database.RecordSnapshot(db.Snapshot{
					SessionID:    sessionID,
					Occupancy:    stats.Occupancy,
					FractionUsed: stats.FractionUsed,
					Mean:         stats.Mean,
					Covariance:   stats.Covariance,
					Trace:        stats.Trace,
				})
				if err != nil {
					log.Printf("failed to record snapshot: %v", err)
				}
			case <-ctx.Done():
				log.Printf("snapshot routine terminated")
				return
			}
		}
	}()

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := http.NewServeMux()

		// mount the admin routes (backup download)
		database.AttachAdminRoutes(mux)

		// create a new API server instance using the sampler and database
		// and mount the API handlers
		apiMux := api.NewServer(sampler, database).ServeMux()
		mux.Handle("/api/", http.StripPrefix("/api", apiMux))

		h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log.Printf("got request %q", r.URL.Path)
			mux.ServeHTTP(w, r)
		})

		server := &http.Server{
			Addr:    *listen,
			Handler: h,
		}

		// Start server in a goroutine so it doesn't block
		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		// Wait for context cancellation to shut down server
		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		// Create a shutdown context with a timeout
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
		}

		log.Printf("HTTP server routine stopped")
	}()

	// Wait for all goroutines to finish
	wg.Wait()
	log.Printf("Graceful shutdown complete")
}
