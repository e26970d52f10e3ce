package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/jonnison/tower-jumps/internal/geo"
	"github.com/jonnison/tower-jumps/internal/model"
)

var errNoRowsSQL = sql.ErrNoRows

// SQLiteStore implements Store using modernc.org/sqlite. Boundaries are kept
// as EWKB blobs and resolved in memory; ping times are unix nanoseconds.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// One connection keeps PRAGMAs in effect and serializes writers.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS regions (
	code TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	geom BLOB NOT NULL
);

CREATE TABLE IF NOT EXISTS subscribers (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	name       TEXT NOT NULL UNIQUE,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS pings (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	subscriber_id INTEGER NOT NULL REFERENCES subscribers(id) ON DELETE CASCADE,
	utc_time      INTEGER NOT NULL,
	channel       TEXT NOT NULL,
	latitude      REAL NOT NULL,
	longitude     REAL NOT NULL,
	region_code   TEXT
);

CREATE INDEX IF NOT EXISTS idx_pings_subscriber_time ON pings(subscriber_id, utc_time);
`

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Regions ---

func (s *SQLiteStore) UpsertRegions(ctx context.Context, shapes []geo.RegionShape) (int64, error) {
	if len(shapes) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin upsert regions")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO regions (code, name, geom) VALUES (?, ?, ?)
		 ON CONFLICT(code) DO UPDATE SET name = excluded.name, geom = excluded.geom`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare upsert regions")
	}
	defer stmt.Close() //nolint:errcheck

	var n int64
	for _, sh := range shapes {
		if _, err := stmt.ExecContext(ctx, sh.Code, sh.Name, sh.EWKB); err != nil {
			return 0, eris.Wrapf(err, "sqlite: upsert region %s", sh.Code)
		}
		n++
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit upsert regions")
	}
	return n, nil
}

func (s *SQLiteStore) ListRegions(ctx context.Context) ([]model.Region, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT code, name FROM regions ORDER BY code`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list regions")
	}
	defer rows.Close() //nolint:errcheck

	out := []model.Region{}
	for rows.Next() {
		var r model.Region
		if err := rows.Scan(&r.Code, &r.Name); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan region")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list regions iterate")
}

func (s *SQLiteStore) GetRegion(ctx context.Context, code string) (*model.Region, error) {
	var r model.Region
	err := s.db.QueryRowContext(ctx, `SELECT code, name FROM regions WHERE code = ?`, code).Scan(&r.Code, &r.Name)
	if err != nil {
		return nil, notFound(err, "region %s", code)
	}
	return &r, nil
}

func (s *SQLiteStore) RegionShapes(ctx context.Context) ([]geo.RegionShape, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT code, name, geom FROM regions ORDER BY code`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: region shapes")
	}
	defer rows.Close() //nolint:errcheck

	var out []geo.RegionShape
	for rows.Next() {
		var sh geo.RegionShape
		if err := rows.Scan(&sh.Code, &sh.Name, &sh.EWKB); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan region shape")
		}
		out = append(out, sh)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: region shapes iterate")
}

func (s *SQLiteStore) CountRegions(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM regions`).Scan(&n); err != nil {
		return 0, eris.Wrap(err, "sqlite: count regions")
	}
	return n, nil
}

// --- Subscribers ---

func (s *SQLiteStore) CreateSubscriber(ctx context.Context, name string) (*model.Subscriber, error) {
	res, err := s.db.ExecContext(ctx, `INSERT INTO subscribers (name) VALUES (?)`, name)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, eris.Wrapf(ErrConflict, "subscriber %q", name)
		}
		return nil, eris.Wrapf(err, "sqlite: create subscriber %q", name)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: subscriber id")
	}
	return &model.Subscriber{ID: id, Name: name}, nil
}

func (s *SQLiteStore) GetSubscriber(ctx context.Context, id int64) (*model.Subscriber, error) {
	var sub model.Subscriber
	err := s.db.QueryRowContext(ctx, `SELECT id, name FROM subscribers WHERE id = ?`, id).Scan(&sub.ID, &sub.Name)
	if err != nil {
		return nil, notFound(err, "subscriber %d", id)
	}
	return &sub, nil
}

func (s *SQLiteStore) GetSubscriberByName(ctx context.Context, name string) (*model.Subscriber, error) {
	var sub model.Subscriber
	err := s.db.QueryRowContext(ctx, `SELECT id, name FROM subscribers WHERE name = ?`, name).Scan(&sub.ID, &sub.Name)
	if err != nil {
		return nil, notFound(err, "subscriber %q", name)
	}
	return &sub, nil
}

func (s *SQLiteStore) ListSubscribers(ctx context.Context, filter SubscriberFilter) ([]model.Subscriber, error) {
	query := `SELECT id, name FROM subscribers`
	args := []any{}
	if filter.Name != "" {
		query += ` WHERE name LIKE '%' || ? || '%'`
		args = append(args, filter.Name)
	}
	query += ` ORDER BY id LIMIT ? OFFSET ?`
	args = append(args, filter.limit(), max(filter.Offset, 0))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list subscribers")
	}
	defer rows.Close() //nolint:errcheck

	out := []model.Subscriber{}
	for rows.Next() {
		var sub model.Subscriber
		if err := rows.Scan(&sub.ID, &sub.Name); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan subscriber")
		}
		out = append(out, sub)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list subscribers iterate")
}

func (s *SQLiteStore) DeleteSubscriber(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM subscribers WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete subscriber %d", id)
	}
	return checkRowsAffected(res, "subscriber", id)
}

// --- Pings ---

func (s *SQLiteStore) CreatePing(ctx context.Context, p model.Ping) (*model.Ping, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO pings (subscriber_id, utc_time, channel, latitude, longitude, region_code)
		 VALUES (?, ?, ?, ?, ?, NULLIF(?, ''))`,
		p.SubscriberID, p.Time.UnixNano(), string(p.Channel), p.Latitude, p.Longitude, p.RegionID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: create ping for subscriber %d", p.SubscriberID)
	}
	if p.ID, err = res.LastInsertId(); err != nil {
		return nil, eris.Wrap(err, "sqlite: ping id")
	}
	p.Time = p.Time.UTC()
	return &p, nil
}

func (s *SQLiteStore) InsertPings(ctx context.Context, pings []model.Ping) (int64, error) {
	if len(pings) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin insert pings")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO pings (subscriber_id, utc_time, channel, latitude, longitude, region_code)
		 VALUES (?, ?, ?, ?, ?, NULLIF(?, ''))`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare insert pings")
	}
	defer stmt.Close() //nolint:errcheck

	var n int64
	for _, p := range pings {
		if _, err := stmt.ExecContext(ctx,
			p.SubscriberID, p.Time.UnixNano(), string(p.Channel), p.Latitude, p.Longitude, p.RegionID,
		); err != nil {
			return 0, eris.Wrapf(err, "sqlite: insert ping %d of %d", n+1, len(pings))
		}
		n++
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit insert pings")
	}
	return n, nil
}

const sqlitePingColumns = `id, subscriber_id, utc_time, latitude, longitude, COALESCE(region_code, ''), channel`

func (s *SQLiteStore) GetPing(ctx context.Context, id int64) (*model.Ping, error) {
	p, err := scanSQLitePing(s.db.QueryRowContext(ctx, `SELECT `+sqlitePingColumns+` FROM pings WHERE id = ?`, id))
	if err != nil {
		return nil, notFound(err, "ping %d", id)
	}
	return p, nil
}

func (s *SQLiteStore) ListPings(ctx context.Context, subscriberID int64, filter model.PingFilter) ([]model.Ping, error) {
	query := `SELECT ` + sqlitePingColumns + ` FROM pings WHERE subscriber_id = ?`
	args := []any{subscriberID}
	if filter.Start != nil {
		query += ` AND utc_time >= ?`
		args = append(args, filter.Start.UnixNano())
	}
	if filter.End != nil {
		query += ` AND utc_time <= ?`
		args = append(args, filter.End.UnixNano())
	}
	query += ` ORDER BY utc_time, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list pings for subscriber %d", subscriberID)
	}
	defer rows.Close() //nolint:errcheck

	out := []model.Ping{}
	for rows.Next() {
		p, err := scanSQLitePing(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan ping")
		}
		out = append(out, *p)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list pings iterate")
}

func (s *SQLiteStore) DeletePing(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM pings WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete ping %d", id)
	}
	return checkRowsAffected(res, "ping", id)
}

func scanSQLitePing(row scannable) (*model.Ping, error) {
	var p model.Ping
	var nanos int64
	var channel string
	if err := row.Scan(&p.ID, &p.SubscriberID, &nanos, &p.Latitude, &p.Longitude, &p.RegionID, &channel); err != nil {
		return nil, err
	}
	p.Time = time.Unix(0, nanos).UTC()
	p.Channel = model.Channel(channel)
	return &p, nil
}

func checkRowsAffected(res sql.Result, entity string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %d", entity, id)
	}
	return nil
}
