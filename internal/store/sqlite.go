package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"orderdesk/internal/model"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

// orderDB mirrors the orders collection into a single SQLite table, one row
// per order, written through on every mutation.
type orderDB struct {
	db *sql.DB
}

func openOrderDB(path string) (*orderDB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS orders (
		id TEXT PRIMARY KEY,
		client TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		closed_at INTEGER NOT NULL DEFAULT 0
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create orders table: %w", err)
	}
	return &orderDB{db: db}, nil
}

func (d *orderDB) loadAll() ([]model.Order, error) {
	rows, err := d.db.Query(`SELECT id, client, title, description, status, created_at, closed_at FROM orders`)
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []model.Order
	for rows.Next() {
		var o model.Order
		var status string
		if err := rows.Scan(&o.ID, &o.Client, &o.Title, &o.Description, &status, &o.CreatedAt, &o.ClosedAt); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		o.Status = model.Status(status)
		if !o.Status.Valid() {
			continue
		}
		result = append(result, o)
	}
	return result, rows.Err()
}

func (d *orderDB) upsert(o model.Order) error {
	_, err := d.db.Exec(`INSERT INTO orders(id, client, title, description, status, created_at, closed_at)
		VALUES(?,?,?,?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET status=excluded.status, closed_at=excluded.closed_at`,
		o.ID, o.Client, o.Title, o.Description, string(o.Status), o.CreatedAt, o.ClosedAt)
	return err
}

func (d *orderDB) close() error {
	return d.db.Close()
}
