package storage

import (
	"database/sql"
	"errors"
	"time"

	_ "modernc.org/sqlite"

	"pixelpick/internal/report"
)

// Store wraps SQLite-backed persistence for runs and surfaced events.
type Store struct {
	DB *sql.DB // Export for direct database access
}

// New opens (or creates) the database at path and ensures schema.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// one writer; sqlite serialises anyway
	db.SetMaxOpenConns(1)
	s := &Store{DB: db}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
            id TEXT PRIMARY KEY,
            template_path TEXT NOT NULL,
            template_width INTEGER,
            template_height INTEGER,
            origin TEXT NOT NULL,
            interval_ms INTEGER,
            started_at TIMESTAMP NOT NULL,
            ended_at TIMESTAMP
        );`,
		`CREATE TABLE IF NOT EXISTS report_events (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            run_id TEXT NOT NULL,
            seq INTEGER NOT NULL,
            kind TEXT NOT NULL,
            reason TEXT,
            cell_x INTEGER,
            cell_y INTEGER,
            rel_x INTEGER,
            rel_y INTEGER,
            color_hex TEXT,
            alpha INTEGER,
            event_time TIMESTAMP NOT NULL,
            created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
        );`,
		`CREATE INDEX IF NOT EXISTS idx_report_events_run_id ON report_events(run_id);`,
		`CREATE INDEX IF NOT EXISTS idx_report_events_kind ON report_events(kind);`,
	}
	for _, stmt := range stmts {
		if _, err := s.DB.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the underlying DB.
func (s *Store) Close() error {
	if s == nil || s.DB == nil {
		return nil
	}
	return s.DB.Close()
}

// RunRecord captures the parameters of one picker session.
type RunRecord struct {
	ID             string
	TemplatePath   string
	TemplateWidth  int
	TemplateHeight int
	Origin         string
	IntervalMs     int
	StartedAt      time.Time
	EndedAt        *time.Time
}

// EventRecord is a journaled event as read back for history.
type EventRecord struct {
	RunID    string
	Seq      uint64
	Kind     string
	Reason   string
	CellX    *int
	CellY    *int
	RelX     *int
	RelY     *int
	ColorHex string
	Alpha    *int
	At       time.Time
}

// RecordRunStart inserts a run row.
func (s *Store) RecordRunStart(rec RunRecord) error {
	if s == nil {
		return nil
	}
	_, err := s.DB.Exec(`INSERT OR REPLACE INTO runs (id, template_path, template_width, template_height, origin, interval_ms, started_at) VALUES (?, ?, ?, ?, ?, ?, ?);`,
		rec.ID, rec.TemplatePath, rec.TemplateWidth, rec.TemplateHeight, rec.Origin, rec.IntervalMs, rec.StartedAt.UTC())
	return err
}

// RecordRunEnd stamps the run's end time.
func (s *Store) RecordRunEnd(id string, at time.Time) error {
	if s == nil {
		return nil
	}
	_, err := s.DB.Exec(`UPDATE runs SET ended_at=? WHERE id=?;`, at.UTC(), id)
	return err
}

// RecordEvent appends one surfaced event.
func (s *Store) RecordEvent(rec report.Record) error {
	if s == nil {
		return nil
	}
	var cellX, cellY, relX, relY, alpha sql.NullInt64
	var reason, hex sql.NullString
	if rec.Reason != "" {
		reason = sql.NullString{String: rec.Reason, Valid: true}
	}
	if p := rec.Position; p != nil {
		cellX = sql.NullInt64{Int64: int64(p.CellX), Valid: true}
		cellY = sql.NullInt64{Int64: int64(p.CellY), Valid: true}
		relX = sql.NullInt64{Int64: int64(p.RelX), Valid: true}
		relY = sql.NullInt64{Int64: int64(p.RelY), Valid: true}
	}
	if c := rec.Color; c != nil {
		hex = sql.NullString{String: c.Hex, Valid: true}
		alpha = sql.NullInt64{Int64: int64(c.A), Valid: true}
	}
	_, err := s.DB.Exec(`INSERT INTO report_events (run_id, seq, kind, reason, cell_x, cell_y, rel_x, rel_y, color_hex, alpha, event_time) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`,
		rec.RunID, int64(rec.Seq), string(rec.Kind), reason, cellX, cellY, relX, relY, hex, alpha, rec.At.UTC())
	return err
}

// RecentRuns returns the latest runs up to limit.
func (s *Store) RecentRuns(limit int) ([]RunRecord, error) {
	if s == nil {
		return nil, errors.New("store not initialized")
	}
	rows, err := s.DB.Query(`SELECT id, template_path, template_width, template_height, origin, interval_ms, started_at, ended_at FROM runs ORDER BY started_at DESC LIMIT ?;`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []RunRecord
	for rows.Next() {
		var rec RunRecord
		var ended sql.NullTime
		if err := rows.Scan(&rec.ID, &rec.TemplatePath, &rec.TemplateWidth, &rec.TemplateHeight, &rec.Origin, &rec.IntervalMs, &rec.StartedAt, &ended); err != nil {
			return nil, err
		}
		if ended.Valid {
			rec.EndedAt = &ended.Time
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// RecentEvents returns the latest events up to limit, newest first.
// An empty runID spans all runs.
func (s *Store) RecentEvents(runID string, limit int) ([]EventRecord, error) {
	if s == nil {
		return nil, errors.New("store not initialized")
	}
	rows, err := s.DB.Query(`SELECT run_id, seq, kind, reason, cell_x, cell_y, rel_x, rel_y, color_hex, alpha, event_time FROM report_events WHERE (? = '' OR run_id = ?) ORDER BY id DESC LIMIT ?;`, runID, runID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []EventRecord
	for rows.Next() {
		var rec EventRecord
		var seq int64
		var reason, hex sql.NullString
		var cellX, cellY, relX, relY, alpha sql.NullInt64
		if err := rows.Scan(&rec.RunID, &seq, &rec.Kind, &reason, &cellX, &cellY, &relX, &relY, &hex, &alpha, &rec.At); err != nil {
			return nil, err
		}
		rec.Seq = uint64(seq)
		rec.Reason = reason.String
		rec.ColorHex = hex.String
		rec.CellX = intPtr(cellX)
		rec.CellY = intPtr(cellY)
		rec.RelX = intPtr(relX)
		rec.RelY = intPtr(relY)
		rec.Alpha = intPtr(alpha)
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}
