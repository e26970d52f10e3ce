package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rotisserie/eris"

	"github.com/jonnison/tower-jumps/internal/db"
	"github.com/jonnison/tower-jumps/internal/geo"
	"github.com/jonnison/tower-jumps/internal/model"
)

// pingCopyBatch bounds the rows sent per COPY when bulk loading pings.
const pingCopyBatch = 5000

const pingColumns = `id, subscriber_id, utc_time, ST_Y(geom), ST_X(geom), COALESCE(region_code, ''), channel`

// PostgresStore implements Store on PostgreSQL with PostGIS.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// NewPostgres connects to Postgres and returns a store.
func NewPostgres(ctx context.Context, connString string, poolCfg db.PoolConfig) (*PostgresStore, error) {
	pool, err := db.Connect(ctx, connString, poolCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresFromPool wraps an existing pool. Close does not close it.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Pool returns the underlying pool for subsystems that query PostGIS
// directly, such as the region resolver.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	return migratePostgres(ctx, s.pool)
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// --- Regions ---

func (s *PostgresStore) UpsertRegions(ctx context.Context, shapes []geo.RegionShape) (int64, error) {
	rows := make([][]any, len(shapes))
	for i, sh := range shapes {
		rows[i] = []any{sh.Code, sh.Name, sh.EWKB}
	}
	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "regions",
		Columns:      []string{"code", "name", "geom"},
		ConflictKeys: []string{"code"},
		Casts:        map[string]string{"geom": "ST_Multi(%s)"},
	}, rows)
	return n, eris.Wrap(err, "postgres: upsert regions")
}

func (s *PostgresStore) ListRegions(ctx context.Context) ([]model.Region, error) {
	rows, err := s.pool.Query(ctx, `SELECT code, name FROM regions ORDER BY code`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list regions")
	}
	defer rows.Close()

	out := []model.Region{}
	for rows.Next() {
		var r model.Region
		if err := rows.Scan(&r.Code, &r.Name); err != nil {
			return nil, eris.Wrap(err, "postgres: scan region")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list regions iterate")
}

func (s *PostgresStore) GetRegion(ctx context.Context, code string) (*model.Region, error) {
	var r model.Region
	err := s.pool.QueryRow(ctx, `SELECT code, name FROM regions WHERE code = $1`, code).Scan(&r.Code, &r.Name)
	if err != nil {
		return nil, notFound(err, "region %s", code)
	}
	return &r, nil
}

func (s *PostgresStore) RegionShapes(ctx context.Context) ([]geo.RegionShape, error) {
	rows, err := s.pool.Query(ctx, `SELECT code, name, ST_AsEWKB(geom) FROM regions ORDER BY code`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: region shapes")
	}
	defer rows.Close()

	var out []geo.RegionShape
	for rows.Next() {
		var sh geo.RegionShape
		if err := rows.Scan(&sh.Code, &sh.Name, &sh.EWKB); err != nil {
			return nil, eris.Wrap(err, "postgres: scan region shape")
		}
		out = append(out, sh)
	}
	return out, eris.Wrap(rows.Err(), "postgres: region shapes iterate")
}

func (s *PostgresStore) CountRegions(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM regions`).Scan(&n); err != nil {
		return 0, eris.Wrap(err, "postgres: count regions")
	}
	return n, nil
}

// --- Subscribers ---

func (s *PostgresStore) CreateSubscriber(ctx context.Context, name string) (*model.Subscriber, error) {
	sub := model.Subscriber{Name: name}
	err := s.pool.QueryRow(ctx, `INSERT INTO subscribers (name) VALUES ($1) RETURNING id`, name).Scan(&sub.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, eris.Wrapf(ErrConflict, "subscriber %q", name)
		}
		return nil, eris.Wrapf(err, "postgres: create subscriber %q", name)
	}
	return &sub, nil
}

func (s *PostgresStore) GetSubscriber(ctx context.Context, id int64) (*model.Subscriber, error) {
	var sub model.Subscriber
	err := s.pool.QueryRow(ctx, `SELECT id, name FROM subscribers WHERE id = $1`, id).Scan(&sub.ID, &sub.Name)
	if err != nil {
		return nil, notFound(err, "subscriber %d", id)
	}
	return &sub, nil
}

func (s *PostgresStore) GetSubscriberByName(ctx context.Context, name string) (*model.Subscriber, error) {
	var sub model.Subscriber
	err := s.pool.QueryRow(ctx, `SELECT id, name FROM subscribers WHERE name = $1`, name).Scan(&sub.ID, &sub.Name)
	if err != nil {
		return nil, notFound(err, "subscriber %q", name)
	}
	return &sub, nil
}

func (s *PostgresStore) ListSubscribers(ctx context.Context, filter SubscriberFilter) ([]model.Subscriber, error) {
	query := `SELECT id, name FROM subscribers WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Name != "" {
		query += fmt.Sprintf(` AND name ILIKE '%%' || $%d || '%%'`, argIdx)
		args = append(args, filter.Name)
		argIdx++
	}
	query += fmt.Sprintf(` ORDER BY id LIMIT $%d`, argIdx)
	args = append(args, filter.limit())
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list subscribers")
	}
	defer rows.Close()

	out := []model.Subscriber{}
	for rows.Next() {
		var sub model.Subscriber
		if err := rows.Scan(&sub.ID, &sub.Name); err != nil {
			return nil, eris.Wrap(err, "postgres: scan subscriber")
		}
		out = append(out, sub)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list subscribers iterate")
}

func (s *PostgresStore) DeleteSubscriber(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM subscribers WHERE id = $1`, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete subscriber %d", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "subscriber %d", id)
	}
	return nil
}

// --- Pings ---

func (s *PostgresStore) CreatePing(ctx context.Context, p model.Ping) (*model.Ping, error) {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO pings (subscriber_id, utc_time, channel, geom, region_code)
		 VALUES ($1, $2, $3, ST_SetSRID(ST_MakePoint($4, $5), 4326), NULLIF($6, ''))
		 RETURNING id`,
		p.SubscriberID, p.Time.UTC(), string(p.Channel), p.Longitude, p.Latitude, p.RegionID,
	).Scan(&p.ID)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: create ping for subscriber %d", p.SubscriberID)
	}
	p.Time = p.Time.UTC()
	return &p, nil
}

// InsertPings bulk loads pings with COPY. Geometry is shipped as EWKB.
func (s *PostgresStore) InsertPings(ctx context.Context, pings []model.Ping) (int64, error) {
	rows := make([][]any, len(pings))
	for i, p := range pings {
		pt, err := geo.PointEWKB(p.Latitude, p.Longitude)
		if err != nil {
			return 0, err
		}
		var region any
		if p.RegionID != "" {
			region = p.RegionID
		}
		rows[i] = []any{p.SubscriberID, p.Time.UTC(), string(p.Channel), pt, region}
	}
	n, err := db.CopyFrom(ctx, s.pool, "pings",
		[]string{"subscriber_id", "utc_time", "channel", "geom", "region_code"},
		rows, pingCopyBatch)
	return n, eris.Wrap(err, "postgres: insert pings")
}

func (s *PostgresStore) GetPing(ctx context.Context, id int64) (*model.Ping, error) {
	p, err := scanPing(s.pool.QueryRow(ctx, `SELECT `+pingColumns+` FROM pings WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "ping %d", id)
	}
	return p, nil
}

func (s *PostgresStore) ListPings(ctx context.Context, subscriberID int64, filter model.PingFilter) ([]model.Ping, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+pingColumns+` FROM pings
		 WHERE subscriber_id = $1
		   AND ($2::timestamptz IS NULL OR utc_time >= $2)
		   AND ($3::timestamptz IS NULL OR utc_time <= $3)
		 ORDER BY utc_time, id`,
		subscriberID, filter.Start, filter.End,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list pings for subscriber %d", subscriberID)
	}
	defer rows.Close()

	out := []model.Ping{}
	for rows.Next() {
		p, err := scanPing(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan ping")
		}
		out = append(out, *p)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list pings iterate")
}

func (s *PostgresStore) DeletePing(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM pings WHERE id = $1`, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete ping %d", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "ping %d", id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanPing(row scannable) (*model.Ping, error) {
	var p model.Ping
	var channel string
	if err := row.Scan(&p.ID, &p.SubscriberID, &p.Time, &p.Latitude, &p.Longitude, &p.RegionID, &channel); err != nil {
		return nil, err
	}
	p.Time = p.Time.UTC()
	p.Channel = model.Channel(channel)
	return &p, nil
}

// notFound maps pgx.ErrNoRows and sql.ErrNoRows to ErrNotFound.
func notFound(err error, format string, args ...any) error {
	if eris.Is(err, pgx.ErrNoRows) || eris.Is(err, errNoRowsSQL) {
		return eris.Wrapf(ErrNotFound, format, args...)
	}
	return eris.Wrapf(err, "store: get "+format, args...)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
