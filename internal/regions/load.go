package regions

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/jonnison/tower-jumps/internal/geo"
)

// Sink is the part of the store that region loading writes to.
type Sink interface {
	CountRegions(ctx context.Context) (int, error)
	UpsertRegions(ctx context.Context, shapes []geo.RegionShape) (int64, error)
}

// LoadResult summarizes a Load call.
type LoadResult struct {
	Existing int   `json:"existing"`
	Loaded   int64 `json:"loaded"`
	Skipped  bool  `json:"skipped"`
}

// Load upserts shapes into the sink. When regions are already present and
// force is false nothing is written and the result is marked skipped.
func Load(ctx context.Context, sink Sink, shapes []geo.RegionShape, force bool) (*LoadResult, error) {
	log := zap.L().With(zap.String("component", "regions.load"))

	existing, err := sink.CountRegions(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "regions: count existing")
	}
	res := &LoadResult{Existing: existing}

	if existing > 0 && !force {
		log.Info("regions already loaded, skipping", zap.Int("existing", existing))
		res.Skipped = true
		return res, nil
	}
	if len(shapes) == 0 {
		return nil, eris.New("regions: no shapes to load")
	}

	n, err := sink.UpsertRegions(ctx, shapes)
	if err != nil {
		return nil, eris.Wrap(err, "regions: upsert")
	}
	res.Loaded = n

	log.Info("regions loaded", zap.Int64("loaded", n), zap.Int("parsed", len(shapes)))
	return res, nil
}

// LoadFromURL downloads, parses and loads a boundary file in one step.
func LoadFromURL(ctx context.Context, sink Sink, url, tempDir string, force bool) (*LoadResult, error) {
	if !force {
		existing, err := sink.CountRegions(ctx)
		if err != nil {
			return nil, eris.Wrap(err, "regions: count existing")
		}
		if existing > 0 {
			return &LoadResult{Existing: existing, Skipped: true}, nil
		}
	}

	shpPath, err := Download(ctx, nil, url, tempDir)
	if err != nil {
		return nil, err
	}
	return LoadFile(ctx, sink, shpPath, force)
}

// LoadFile parses a local shapefile and loads it.
func LoadFile(ctx context.Context, sink Sink, shpPath string, force bool) (*LoadResult, error) {
	shapes, err := ParseShapefile(shpPath)
	if err != nil {
		return nil, err
	}
	return Load(ctx, sink, shapes, force)
}
