package runstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/url"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    started_at INTEGER NOT NULL,
    posted INTEGER NOT NULL,
    status_code INTEGER NOT NULL,
    target TEXT NOT NULL,
    payload TEXT NOT NULL
);
`

// Open opens (and initializes when needed) a run-history database.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	_, err = db.Exec(schema)
	if err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) Store {
	return Store{db: db}
}

type Run struct {
	StartedAt  time.Time
	Posted     bool
	StatusCode int
	Target     string
	Payload    url.Values
}

func (s Store) Record(ctx context.Context, run Run) error {
	payload, err := json.Marshal(run.Payload)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO runs (started_at, posted, status_code, target, payload)
		 VALUES (?, ?, ?, ?, ?)`,
		run.StartedAt.Unix(),
		run.Posted,
		run.StatusCode,
		run.Target,
		string(payload),
	)
	return err
}

// Recent returns up to limit runs, newest first.
func (s Store) Recent(ctx context.Context, limit int) ([]Run, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT started_at, posted, status_code, target, payload
		 FROM runs ORDER BY started_at DESC, id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var startedAt int64
		var payload string
		err = rows.Scan(&startedAt, &r.Posted, &r.StatusCode, &r.Target, &payload)
		if err != nil {
			return nil, err
		}
		r.StartedAt = time.Unix(startedAt, 0)
		err = json.Unmarshal([]byte(payload), &r.Payload)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
