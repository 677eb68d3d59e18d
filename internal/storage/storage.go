// Package storage provides SQLite-backed persistence for the alert history
// log and user-edited threshold overrides.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/minhvq/gapspike/internal/models"
)

// Storage wraps a SQLite database for all persistence operations.
type Storage struct {
	db        *sql.DB
	maxAlerts int
}

// AlertRecord is one persisted alert activation.
type AlertRecord struct {
	ID           string
	Venue        string
	Symbol       string
	Mode         models.Mode
	Kind         string // "gap", "spike", or "gap+spike"
	Direction    models.Direction
	Magnitude    float64
	Threshold    float64
	Canonical    string
	MatchedAlias string
	Bid          float64
	Ask          float64
	DetectedAt   time.Time
}

// New opens or creates the SQLite database at dbPath.
// An empty dbPath defaults to $TMPDIR/gapspike/data.db.
func New(maxAlerts int, dbPath string) (*Storage, error) {
	if dbPath == "" {
		dbPath = filepath.Join(os.TempDir(), "gapspike", "data.db")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // single writer; WAL allows concurrent readers
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}
	s := &Storage{db: db, maxAlerts: maxAlerts}
	if err := s.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) createTables() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS alerts (
			id            TEXT PRIMARY KEY,
			venue         TEXT NOT NULL,
			symbol        TEXT NOT NULL,
			mode          TEXT NOT NULL,
			kind          TEXT NOT NULL,
			direction     TEXT NOT NULL,
			magnitude     REAL NOT NULL,
			threshold     REAL NOT NULL,
			canonical     TEXT,
			matched_alias TEXT,
			bid           REAL NOT NULL,
			ask           REAL NOT NULL,
			detected_at   INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_detected_at ON alerts(detected_at DESC)`,
		`CREATE TABLE IF NOT EXISTS overrides (
			instrument    TEXT PRIMARY KEY,
			gap_percent   REAL,
			spike_percent REAL,
			gap_point     REAL,
			spike_point   REAL,
			updated_at    INTEGER NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// alertKind names which side(s) of a detection fired.
func alertKind(r *models.DetectionResult) (kind string, c models.Classification) {
	switch {
	case r.Gap.Detected && r.Spike.Detected:
		kind = "gap+spike"
		c = r.Gap
		if r.Spike.Magnitude > r.Gap.Magnitude {
			c = r.Spike
		}
	case r.Spike.Detected:
		kind, c = "spike", r.Spike
	default:
		kind, c = "gap", r.Gap
	}
	return kind, c
}

// AddAlert appends one activation to the history log and prunes the log to
// the configured cap, oldest rows first.
func (s *Storage) AddAlert(result *models.DetectionResult, detectedAt time.Time) error {
	kind, c := alertKind(result)

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.Exec(`
		INSERT INTO alerts
			(id, venue, symbol, mode, kind, direction, magnitude, threshold,
			 canonical, matched_alias, bid, ask, detected_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		uuid.New().String(), result.Venue, result.Symbol, string(result.Mode), kind,
		string(c.Direction), c.Magnitude, c.Threshold,
		result.Canonical, result.MatchedAlias, result.Bid, result.Ask,
		detectedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert alert: %w", err)
	}

	if _, err = tx.Exec(`
		DELETE FROM alerts WHERE id NOT IN (
			SELECT id FROM alerts ORDER BY detected_at DESC LIMIT ?
		)`, s.maxAlerts); err != nil {
		return fmt.Errorf("failed to enforce alert cap: %w", err)
	}

	return tx.Commit()
}

// RecentAlerts returns up to limit activations, newest first.
func (s *Storage) RecentAlerts(limit int) ([]AlertRecord, error) {
	rows, err := s.db.Query(`
		SELECT id, venue, symbol, mode, kind, direction, magnitude, threshold,
		       canonical, matched_alias, bid, ask, detected_at
		FROM alerts ORDER BY detected_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	var records []AlertRecord
	for rows.Next() {
		var rec AlertRecord
		var mode, direction string
		var detectedAtNano int64
		err := rows.Scan(
			&rec.ID, &rec.Venue, &rec.Symbol, &mode, &rec.Kind, &direction,
			&rec.Magnitude, &rec.Threshold, &rec.Canonical, &rec.MatchedAlias,
			&rec.Bid, &rec.Ask, &detectedAtNano,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		rec.Mode = models.Mode(mode)
		rec.Direction = models.Direction(direction)
		rec.DetectedAt = time.Unix(0, detectedAtNano)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// SaveOverride upserts one user-edited threshold override.
func (s *Storage) SaveOverride(instrument string, ov models.ThresholdOverride) error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO overrides
			(instrument, gap_percent, spike_percent, gap_point, spike_point, updated_at)
		VALUES (?,?,?,?,?,?)`,
		instrument, ov.GapPercent, ov.SpikePercent, ov.GapPoint, ov.SpikePoint,
		time.Now().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to save override: %w", err)
	}
	return nil
}

// DeleteOverride removes one override.
func (s *Storage) DeleteOverride(instrument string) error {
	if _, err := s.db.Exec(`DELETE FROM overrides WHERE instrument = ?`, instrument); err != nil {
		return fmt.Errorf("failed to delete override: %w", err)
	}
	return nil
}

// LoadOverrides returns all persisted overrides keyed by instrument.
func (s *Storage) LoadOverrides() (map[string]models.ThresholdOverride, error) {
	rows, err := s.db.Query(`
		SELECT instrument, gap_percent, spike_percent, gap_point, spike_point
		FROM overrides`)
	if err != nil {
		return nil, fmt.Errorf("failed to query overrides: %w", err)
	}
	defer rows.Close()

	overrides := make(map[string]models.ThresholdOverride)
	for rows.Next() {
		var instrument string
		var ov models.ThresholdOverride
		if err := rows.Scan(&instrument, &ov.GapPercent, &ov.SpikePercent, &ov.GapPoint, &ov.SpikePoint); err != nil {
			return nil, fmt.Errorf("failed to scan override: %w", err)
		}
		overrides[instrument] = ov
	}
	return overrides, rows.Err()
}
