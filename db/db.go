// Package db persists snapshots of windowed telemetry statistics to a
// sqlite database. Only derived statistics are stored; the sample window
// itself never survives a process restart.
package db

import (
	"compress/gzip"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	_ "modernc.org/sqlite"
)

type DB struct {
	*sql.DB
}

func NewDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS snapshots (
			session_id TEXT,
			occupancy INTEGER,
			fraction_used DOUBLE,
			mean TEXT,
			covariance TEXT,
			trace DOUBLE,
			timestamp TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_snapshots_session
			ON snapshots(session_id, timestamp);
	`)
	if err != nil {
		return nil, err
	}

	return &DB{db}, nil
}

// Snapshot is one recorded reading of the tracker's derived statistics.
type Snapshot struct {
	SessionID    string      `json:"session_id"`
	Occupancy    int         `json:"occupancy"`
	FractionUsed float64     `json:"fraction_used"`
	Mean         []float64   `json:"mean"`
	Covariance   [][]float64 `json:"covariance"`
	Trace        float64     `json:"trace"`
	Timestamp    time.Time   `json:"timestamp"`
}

func (s *Snapshot) String() string {
	return fmt.Sprintf("Session: %s, Occupancy: %d, FractionUsed: %f, Trace: %f",
		s.SessionID, s.Occupancy, s.FractionUsed, s.Trace)
}

// RecordSnapshot stores a snapshot row. Mean and covariance are stored as
// JSON text so the schema stays dimension-agnostic.
func (db *DB) RecordSnapshot(s Snapshot) error {
	mean, err := json.Marshal(s.Mean)
	if err != nil {
		return fmt.Errorf("failed to encode mean: %w", err)
	}
	cov, err := json.Marshal(s.Covariance)
	if err != nil {
		return fmt.Errorf("failed to encode covariance: %w", err)
	}
	_, err = db.Exec(
		"INSERT INTO snapshots (session_id, occupancy, fraction_used, mean, covariance, trace) VALUES (?, ?, ?, ?, ?, ?)",
		s.SessionID, s.Occupancy, s.FractionUsed, string(mean), string(cov), s.Trace,
	)
	if err != nil {
		return err
	}
	return nil
}

// Snapshots returns up to limit snapshots for the given session, newest
// first. An empty sessionID returns snapshots across all sessions.
func (db *DB) Snapshots(sessionID string, limit int) ([]Snapshot, error) {
	if limit <= 0 {
		limit = 500
	}

	var rows *sql.Rows
	var err error
	if sessionID == "" {
		rows, err = db.Query(
			"SELECT session_id, occupancy, fraction_used, mean, covariance, trace, timestamp FROM snapshots ORDER BY timestamp DESC LIMIT ?",
			limit)
	} else {
		rows, err = db.Query(
			"SELECT session_id, occupancy, fraction_used, mean, covariance, trace, timestamp FROM snapshots WHERE session_id = ? ORDER BY timestamp DESC LIMIT ?",
			sessionID, limit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snapshots []Snapshot
	for rows.Next() {
		var s Snapshot
		var mean, cov string
		if err := rows.Scan(&s.SessionID, &s.Occupancy, &s.FractionUsed, &mean, &cov, &s.Trace, &s.Timestamp); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(mean), &s.Mean); err != nil {
			return nil, fmt.Errorf("failed to decode mean: %w", err)
		}
		if err := json.Unmarshal([]byte(cov), &s.Covariance); err != nil {
			return nil, fmt.Errorf("failed to decode covariance: %w", err)
		}
		snapshots = append(snapshots, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return snapshots, nil
}

// AttachAdminRoutes mounts admin endpoints on the given mux. These are
// intended for operators, not for the public API surface.
func (db *DB) AttachAdminRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/admin/backup", func(w http.ResponseWriter, r *http.Request) {
		unixTime := time.Now().Unix()
		backupPath := fmt.Sprintf("backup-%d.db", unixTime)
		if _, err := db.DB.Exec("VACUUM INTO ?", backupPath); err != nil {
			http.Error(w, fmt.Sprintf("Failed to create backup: %v", err), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", backupPath))
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Content-Encoding", "gzip")

		backupFile, err := os.Open(backupPath)
		if err != nil {
			http.Error(w, fmt.Sprintf("Failed to open backup file: %v", err), http.StatusInternalServerError)
			return
		}

		// close the backup file after sending it
		// and remove it from the filesystem
		defer func() {
			backupFile.Close()
			if err := os.Remove(backupPath); err != nil {
				log.Printf("Failed to remove backup file: %v", err)
			}
		}()

		gzipWriter := gzip.NewWriter(w)
		defer gzipWriter.Close()

		if _, err := io.Copy(gzipWriter, backupFile); err != nil {
			http.Error(w, fmt.Sprintf("Failed to write backup file: %v", err), http.StatusInternalServerError)
			return
		}
	})
}
