package geo

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/jonnison/tower-jumps/internal/db"
)

const containsSQL = `SELECT code FROM regions
	WHERE ST_Contains(geom, ST_SetSRID(ST_MakePoint($1, $2), 4326))
	ORDER BY code LIMIT 1`

// PostGISResolver resolves regions with ST_Contains against the regions table.
type PostGISResolver struct {
	pool db.Pool
}

// NewPostGISResolver creates a resolver backed by the given pool.
func NewPostGISResolver(pool db.Pool) *PostGISResolver {
	return &PostGISResolver{pool: pool}
}

// RegionFor implements RegionResolver.
func (r *PostGISResolver) RegionFor(ctx context.Context, lat, lon float64) (string, error) {
	var code string
	err := r.pool.QueryRow(ctx, containsSQL, lon, lat).Scan(&code)
	if eris.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", eris.Wrap(err, "geo: region lookup")
	}
	return code, nil
}
