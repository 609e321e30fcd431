package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/kartoza/downtime-predictor/internal/features"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned by Get for an unknown id
var ErrNotFound = errors.New("prediction not found")

// Record is one served prediction
type Record struct {
	ID        string       `json:"id"`
	CreatedAt time.Time    `json:"created_at"`
	Label     string       `json:"label"`
	Model     string       `json:"model"`
	Cached    bool         `json:"cached"`
	Features  features.Row `json:"features"`
}

// Store persists prediction records
type Store interface {
	Record(ctx context.Context, rec *Record) error
	Recent(ctx context.Context, limit int) ([]*Record, error)
	Get(ctx context.Context, id string) (*Record, error)
	Close() error
}

const schema = `
CREATE TABLE IF NOT EXISTS predictions (
	id            TEXT PRIMARY KEY,
	created_at    BIGINT NOT NULL,
	label         TEXT NOT NULL,
	model         TEXT NOT NULL,
	cached        BOOLEAN NOT NULL DEFAULT FALSE,
	city          TEXT NOT NULL,
	locality      TEXT NOT NULL,
	weather       TEXT NOT NULL,
	download_mbps DOUBLE PRECISION NOT NULL,
	upload_mbps   DOUBLE PRECISION NOT NULL,
	latency_ms    DOUBLE PRECISION NOT NULL,
	jitter_ms     DOUBLE PRECISION NOT NULL,
	packet_loss   DOUBLE PRECISION NOT NULL,
	complaints    INTEGER NOT NULL
)`

const columns = `id, created_at, label, model, cached, city, locality, weather,
	download_mbps, upload_mbps, latency_ms, jitter_ms, packet_loss, complaints`

// row is the table layout of a Record; created_at is unix nanoseconds so
// both drivers order it the same way.
type row struct {
	ID           string  `db:"id"`
	CreatedAt    int64   `db:"created_at"`
	Label        string  `db:"label"`
	Model        string  `db:"model"`
	Cached       bool    `db:"cached"`
	City         string  `db:"city"`
	Locality     string  `db:"locality"`
	Weather      string  `db:"weather"`
	DownloadMbps float64 `db:"download_mbps"`
	UploadMbps   float64 `db:"upload_mbps"`
	LatencyMs    float64 `db:"latency_ms"`
	JitterMs     float64 `db:"jitter_ms"`
	PacketLoss   float64 `db:"packet_loss"`
	Complaints   int     `db:"complaints"`
}

func toRow(rec *Record) row {
	f := rec.Features
	return row{
		ID:           rec.ID,
		CreatedAt:    rec.CreatedAt.UnixNano(),
		Label:        rec.Label,
		Model:        rec.Model,
		Cached:       rec.Cached,
		City:         f.City,
		Locality:     f.Locality,
		Weather:      f.WeatherCondition,
		DownloadMbps: f.DownloadSpeedMbps,
		UploadMbps:   f.UploadSpeedMbps,
		LatencyMs:    f.LatencyMs,
		JitterMs:     f.JitterMs,
		PacketLoss:   f.PacketLoss,
		Complaints:   f.Complaints,
	}
}

func (r row) record() *Record {
	return &Record{
		ID:        r.ID,
		CreatedAt: time.Unix(0, r.CreatedAt).UTC(),
		Label:     r.Label,
		Model:     r.Model,
		Cached:    r.Cached,
		Features: features.Row{
			City:              r.City,
			Locality:          r.Locality,
			WeatherCondition:  r.Weather,
			DownloadSpeedMbps: r.DownloadMbps,
			UploadSpeedMbps:   r.UploadMbps,
			LatencyMs:         r.LatencyMs,
			JitterMs:          r.JitterMs,
			PacketLoss:        r.PacketLoss,
			Complaints:        r.Complaints,
		},
	}
}

// SQLStore keeps records in sqlite or postgres
type SQLStore struct {
	db  *sqlx.DB
	now func() time.Time
}

// Open connects to the history database and creates the schema.
// driver is "sqlite3" or "postgres".
func Open(ctx context.Context, driver, dsn string) (*SQLStore, error) {
	if driver == "sqlite3" {
		if dir := filepath.Dir(dsn); dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create history directory: %w", err)
			}
		}
	}

	db, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	if driver == "sqlite3" {
		// sqlite allows a single writer
		db.SetMaxOpenConns(1)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create history schema: %w", err)
	}

	return &SQLStore{db: db, now: time.Now}, nil
}

// Record inserts rec, assigning an id and timestamp when missing
func (s *SQLStore) Record(ctx context.Context, rec *Record) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now().UTC()
	}

	const query = `INSERT INTO predictions (` + columns + `) VALUES (
		:id, :created_at, :label, :model, :cached, :city, :locality, :weather,
		:download_mbps, :upload_mbps, :latency_ms, :jitter_ms, :packet_loss, :complaints)`

	if _, err := s.db.NamedExecContext(ctx, query, toRow(rec)); err != nil {
		return fmt.Errorf("failed to insert prediction: %w", err)
	}
	return nil
}

// Recent returns up to limit records, newest first
func (s *SQLStore) Recent(ctx context.Context, limit int) ([]*Record, error) {
	query := s.db.Rebind(`SELECT ` + columns + ` FROM predictions ORDER BY created_at DESC, id DESC LIMIT ?`)

	var rows []row
	if err := s.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, fmt.Errorf("failed to query predictions: %w", err)
	}

	records := make([]*Record, len(rows))
	for i, r := range rows {
		records[i] = r.record()
	}
	return records, nil
}

// Get returns one record by id
func (s *SQLStore) Get(ctx context.Context, id string) (*Record, error) {
	query := s.db.Rebind(`SELECT ` + columns + ` FROM predictions WHERE id = ?`)

	var r row
	if err := s.db.GetContext(ctx, &r, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query prediction: %w", err)
	}
	return r.record(), nil
}

// Close closes the database
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// Nop discards records
type Nop struct{}

func (Nop) Record(context.Context, *Record) error { return nil }

func (Nop) Recent(context.Context, int) ([]*Record, error) { return []*Record{}, nil }

func (Nop) Get(context.Context, string) (*Record, error) { return nil, ErrNotFound }

func (Nop) Close() error { return nil }
