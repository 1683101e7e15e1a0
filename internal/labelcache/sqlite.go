package labelcache

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// sqliteIndex keeps entries in a single table; the metadata travels as JSON
type sqliteIndex struct {
	db *sql.DB
}

func newSQLiteIndex(dbPath string) (*sqliteIndex, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	// SQLite has a single writer
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS labels (
		seq INTEGER PRIMARY KEY,
		label_id TEXT UNIQUE NOT NULL,
		file TEXT NOT NULL,
		job_id TEXT,
		metadata TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create labels table: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS sequence (
		name TEXT PRIMARY KEY,
		value INTEGER NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create sequence table: %w", err)
	}
	if _, err := db.Exec(`INSERT OR IGNORE INTO sequence (name, value) VALUES ('labels', 0)`); err != nil {
		db.Close()
		return nil, err
	}

	return &sqliteIndex{db: db}, nil
}

func (x *sqliteIndex) Next() (int64, error) {
	tx, err := x.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`UPDATE sequence SET value = value + 1 WHERE name = 'labels'`); err != nil {
		return 0, err
	}
	var seq int64
	if err := tx.QueryRow(`SELECT value FROM sequence WHERE name = 'labels'`).Scan(&seq); err != nil {
		return 0, err
	}
	return seq, tx.Commit()
}

func (x *sqliteIndex) Put(e Entry) error {
	meta, err := json.Marshal(e.Metadata)
	if err != nil {
		return err
	}
	_, err = x.db.Exec(`INSERT OR REPLACE INTO labels (seq, label_id, file, job_id, metadata) VALUES (?, ?, ?, ?, ?)`,
		e.Seq, e.LabelID, e.File, e.JobID, string(meta))
	return err
}

func (x *sqliteIndex) List() ([]Entry, error) {
	rows, err := x.db.Query(`SELECT seq, file, metadata FROM labels ORDER BY seq DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (x *sqliteIndex) Get(id string) (Entry, error) {
	row := x.db.QueryRow(`SELECT seq, file, metadata FROM labels WHERE label_id = ?`, id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, ErrNotFound
	}
	return e, err
}

func (x *sqliteIndex) Delete(id string) error {
	res, err := x.db.Exec(`DELETE FROM labels WHERE label_id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (x *sqliteIndex) Clear() error {
	_, err := x.db.Exec(`DELETE FROM labels`)
	return err
}

func (x *sqliteIndex) Close() error {
	return x.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (Entry, error) {
	var e Entry
	var meta string
	if err := s.Scan(&e.Seq, &e.File, &meta); err != nil {
		return Entry{}, err
	}
	if err := json.Unmarshal([]byte(meta), &e.Metadata); err != nil {
		return Entry{}, fmt.Errorf("corrupt metadata for label %d: %w", e.Seq, err)
	}
	return e, nil
}
