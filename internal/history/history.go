// Package history records every validation run in a SQLite database.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"

	"github.com/nymph-fabric/fabric-bench/api"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id TEXT PRIMARY KEY,
	finished INTEGER NOT NULL,
	device TEXT NOT NULL,
	stub INTEGER NOT NULL,
	transfers INTEGER NOT NULL,
	transfer_size INTEGER NOT NULL,
	ring_depth INTEGER NOT NULL,
	failed_submissions INTEGER NOT NULL,
	memcpy_throughput_mbps REAL NOT NULL,
	dma_throughput_mbps REAL NOT NULL,
	dma_bytes INTEGER NOT NULL,
	ring_hash TEXT,
	status TEXT NOT NULL
)`

// Run is one row of the history. Finished is stored with nanosecond precision.
type Run struct {
	RunID             string
	Finished          time.Time
	Config            api.Config
	FailedSubmissions int
	Result            api.Result
}

// Recorder appends runs to the history database.
type Recorder struct {
	db        *sql.DB
	statement *sql.Stmt
}

// Open opens (and creates if needed) the history database at path.
func Open(ctx context.Context, path string) (*Recorder, error) {
	err := os.MkdirAll(filepath.Dir(path), 0o755)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	_, err = db.ExecContext(ctx, schema)
	if err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("creating history schema: %w", err)
	}

	statement, err := db.PrepareContext(ctx, `
INSERT INTO runs (run_id, finished, device, stub, transfers, transfer_size, ring_depth, failed_submissions,
	memcpy_throughput_mbps, dma_throughput_mbps, dma_bytes, ring_hash, status)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		_ = db.Close()

		return nil, err
	}

	return &Recorder{db: db, statement: statement}, nil
}

// Record inserts a run.
func (r *Recorder) Record(ctx context.Context, run Run) error {
	var hash sql.NullString
	if run.Result.RingHash != nil {
		hash = sql.NullString{String: *run.Result.RingHash, Valid: true}
	}

	_, err := r.statement.ExecContext(ctx,
		run.RunID,
		run.Finished.UnixNano(),
		run.Config.Device,
		run.Config.Stub,
		run.Config.Transfers,
		run.Config.TransferSize,
		run.Config.RingDepth,
		run.FailedSubmissions,
		run.Result.MemcpyThroughputMBps,
		run.Result.DMAThroughputMBps,
		int64(run.Result.DMABytes), //nolint:gosec
		hash,
		string(run.Result.Status),
	)
	if err != nil {
		return fmt.Errorf("recording run %s: %w", run.RunID, err)
	}

	return nil
}

// Recent returns up to limit runs, most recent first.
func (r *Recorder) Recent(ctx context.Context, limit int) ([]Run, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT run_id, finished, device, stub, transfers, transfer_size, ring_depth, failed_submissions,
	memcpy_throughput_mbps, dma_throughput_mbps, dma_bytes, ring_hash, status
FROM runs ORDER BY finished DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}

	defer func() { _ = rows.Close() }()

	runs := []Run{}

	for rows.Next() {
		var (
			run      Run
			finished int64
			dmaBytes int64
			hash     sql.NullString
			status   string
		)

		err := rows.Scan(&run.RunID, &finished, &run.Config.Device, &run.Config.Stub, &run.Config.Transfers,
			&run.Config.TransferSize, &run.Config.RingDepth, &run.FailedSubmissions,
			&run.Result.MemcpyThroughputMBps, &run.Result.DMAThroughputMBps, &dmaBytes, &hash, &status)
		if err != nil {
			return nil, err
		}

		run.Finished = time.Unix(0, finished).UTC()
		run.Result.DMABytes = uint64(dmaBytes) //nolint:gosec
		run.Result.Status = api.RunStatus(status)

		if hash.Valid {
			run.Result.RingHash = &hash.String
		}

		runs = append(runs, run)
	}

	return runs, rows.Err()
}

// Close releases the database.
func (r *Recorder) Close() error {
	err := r.statement.Close()
	if err != nil {
		_ = r.db.Close()

		return err
	}

	return r.db.Close()
}
