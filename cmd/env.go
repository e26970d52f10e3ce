package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/jonnison/tower-jumps/internal/config"
	"github.com/jonnison/tower-jumps/internal/db"
	"github.com/jonnison/tower-jumps/internal/geo"
	"github.com/jonnison/tower-jumps/internal/inference"
	"github.com/jonnison/tower-jumps/internal/model"
	"github.com/jonnison/tower-jumps/internal/store"
)

// appEnv bundles the store, region resolver and inference service shared by
// the commands.
type appEnv struct {
	Store    store.Store
	Resolver geo.RegionResolver
	Service  *inference.Service
}

// Close releases the store.
func (e *appEnv) Close() {
	if err := e.Store.Close(); err != nil {
		zap.L().Warn("close store", zap.Error(err))
	}
}

func initStore(ctx context.Context, c *config.Config) (store.Store, error) {
	switch c.Store.Driver {
	case "sqlite":
		dsn := c.Store.DatabaseURL
		if dsn == "" {
			dsn = "tower-jumps.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, c.Store.DatabaseURL, db.PoolConfig{
			MaxConns: c.Store.MaxConns,
			MinConns: c.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", c.Store.Driver)
	}
}

// initResolver picks the point-in-region lookup for the store: PostGIS
// behind a TTL cache for postgres, an in-memory index otherwise.
func initResolver(ctx context.Context, st store.Store, c *config.Config) (geo.RegionResolver, error) {
	if pg, ok := st.(*store.PostgresStore); ok {
		return geo.NewCachingResolver(geo.NewPostGISResolver(pg.Pool()), c.Regions.CacheTTL()), nil
	}

	shapes, err := st.RegionShapes(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "load region shapes")
	}
	if len(shapes) == 0 {
		zap.L().Warn("no regions loaded; pings will not resolve to a region (run `tower-jumps regions load`)")
	}
	idx, err := geo.NewRegionIndex(shapes)
	if err != nil {
		return nil, eris.Wrap(err, "build region index")
	}
	return idx, nil
}

func clusteringOptions(c *config.Config) inference.ClusteringOptions {
	return inference.ClusteringOptions{
		EpsMeters:      c.Inference.Clustering.EpsMeters,
		MinSamples:     c.Inference.Clustering.MinSamples,
		ShortSwitch:    c.Inference.Clustering.ShortSwitch(),
		NoiseAsCluster: c.Inference.Clustering.NoiseAsCluster,
	}
}

func initService(st store.Store, c *config.Config, opts ...inference.ServiceOption) (*inference.Service, error) {
	reg, err := inference.DefaultRegistry(clusteringOptions(c))
	if err != nil {
		return nil, eris.Wrap(err, "build strategy registry")
	}
	output, err := inference.ParseOutput(c.Inference.Output)
	if err != nil {
		return nil, err
	}
	base := []inference.ServiceOption{
		inference.WithDefaultMethod(model.Method(c.Inference.DefaultMethod)),
		inference.WithOutput(output),
	}
	return inference.NewService(reg, st, append(base, opts...)...), nil
}

// initEnv validates the config for mode, opens and migrates the store and
// wires the resolver and inference service.
func initEnv(ctx context.Context, mode string, opts ...inference.ServiceOption) (*appEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}

	resolver, err := initResolver(ctx, st, cfg)
	if err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}

	svc, err := initService(st, cfg, opts...)
	if err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}

	return &appEnv{Store: st, Resolver: resolver, Service: svc}, nil
}
