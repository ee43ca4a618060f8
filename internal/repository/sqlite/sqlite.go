package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"hostlink/internal/codec"
	"hostlink/internal/domain"
	"hostlink/internal/repository"

	_ "modernc.org/sqlite"
)

// Repository implements repository.SnapshotStore using SQLite
type Repository struct {
	db *sql.DB
}

var _ repository.SnapshotStore = (*Repository)(nil)

// New creates a new SQLite repository
func New(dbPath string) (*Repository, error) {
	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if isMemory(dbPath) {
		// every pooled connection would otherwise see its own empty database
		db.SetMaxOpenConns(1)
	}

	repo := &Repository{db: db}
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return repo, nil
}

func dsn(path string) string {
	if isMemory(path) {
		return path
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
}

func isMemory(path string) bool {
	return path == ":memory:" || strings.Contains(path, "mode=memory")
}

func (r *Repository) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS snapshots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		host TEXT NOT NULL,
		transport TEXT,
		tag INTEGER NOT NULL,
		payload BLOB NOT NULL,
		captured_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_snapshots_host ON snapshots(host, captured_at DESC, id DESC);
	`

	_, err := r.db.Exec(schema)
	return err
}

// SaveSnapshot stores a snapshot and assigns its ID
func (r *Repository) SaveSnapshot(ctx context.Context, snap *repository.Snapshot) error {
	if snap == nil || strings.TrimSpace(snap.Host) == "" {
		return fmt.Errorf("snapshot requires a host")
	}
	if snap.CapturedAt.IsZero() {
		snap.CapturedAt = time.Now().UTC()
	}

	tag, payload := codec.Encode(snap.Value)
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO snapshots (host, transport, tag, payload, captured_at)
		VALUES (?, ?, ?, ?, ?)
	`, snap.Host, stringToNull(snap.Transport), int(tag), nonNilBytes(payload), snap.CapturedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to insert snapshot: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read snapshot id: %w", err)
	}
	snap.ID = id
	return nil
}

// LatestSnapshot returns the newest snapshot for host
func (r *Repository) LatestSnapshot(ctx context.Context, host string) (*repository.Snapshot, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, host, transport, tag, payload, captured_at
		FROM snapshots
		WHERE host = ?
		ORDER BY captured_at DESC, id DESC
		LIMIT 1
	`, host)

	snap, err := scanSnapshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// ListSnapshots returns snapshots for host, newest first
func (r *Repository) ListSnapshots(ctx context.Context, host string, limit int) ([]*repository.Snapshot, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, host, transport, tag, payload, captured_at
		FROM snapshots
		WHERE host = ?
		ORDER BY captured_at DESC, id DESC
		LIMIT ?
	`, host, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []*repository.Snapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshots: %w", err)
	}
	return snaps, nil
}

// Hosts lists the hosts that have snapshots
func (r *Repository) Hosts(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT DISTINCT host FROM snapshots ORDER BY host`)
	if err != nil {
		return nil, fmt.Errorf("failed to query hosts: %w", err)
	}
	defer rows.Close()

	var hosts []string
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, fmt.Errorf("failed to scan host: %w", err)
		}
		hosts = append(hosts, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating hosts: %w", err)
	}
	return hosts, nil
}

// PruneSnapshots deletes all but the newest keep snapshots of host
func (r *Repository) PruneSnapshots(ctx context.Context, host string, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM snapshots
		WHERE host = ? AND id NOT IN (
			SELECT id FROM snapshots
			WHERE host = ?
			ORDER BY captured_at DESC, id DESC
			LIMIT ?
		)
	`, host, host, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune snapshots: %w", err)
	}
	return res.RowsAffected()
}

// Close closes the database connection
func (r *Repository) Close() error {
	return r.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(row rowScanner) (*repository.Snapshot, error) {
	var (
		snap      repository.Snapshot
		transport sql.NullString
		tag       int64
		payload   []byte
		captured  int64
	)
	if err := row.Scan(&snap.ID, &snap.Host, &transport, &tag, &payload, &captured); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan snapshot: %w", err)
	}
	if tag < 0 || tag > 255 {
		return nil, domain.Errorf(domain.DecodeError, "snapshot %d has invalid tag %d", snap.ID, tag)
	}

	v, err := codec.Decode(payload, domain.Kind(tag))
	if err != nil {
		e := domain.Classify(err)
		return nil, domain.Errorf(e.Kind, "snapshot %d: %s", snap.ID, e.Message)
	}
	snap.Value = v
	snap.Transport = nullToString(transport)
	snap.CapturedAt = time.Unix(0, captured).UTC()
	return &snap, nil
}
