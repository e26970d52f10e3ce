package ingest

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/jonnison/tower-jumps/internal/geo"
	"github.com/jonnison/tower-jumps/internal/model"
	"github.com/jonnison/tower-jumps/internal/store"
)

// Target is the part of the store an import writes to.
type Target interface {
	GetSubscriberByName(ctx context.Context, name string) (*model.Subscriber, error)
	CreateSubscriber(ctx context.Context, name string) (*model.Subscriber, error)
	InsertPings(ctx context.Context, pings []model.Ping) (int64, error)
}

// Options configures one import.
type Options struct {
	Subscriber string
	Path       string
	Encoding   string
	Sheet      string
	// Append adds pings to an existing subscriber instead of skipping it.
	Append bool
}

// Result summarizes an import.
type Result struct {
	SubscriberID int64 `json:"subscriber_id" yaml:"subscriber_id"`
	Created      bool  `json:"created" yaml:"created"`
	Skipped      bool  `json:"skipped" yaml:"skipped"`
	Rows         int   `json:"rows" yaml:"rows"`
	Imported     int64 `json:"imported" yaml:"imported"`
	Unresolved   int   `json:"unresolved" yaml:"unresolved"`
	BadRows      int   `json:"bad_rows" yaml:"bad_rows"`
}

// Importer loads ping exports for a subscriber, resolving each ping's
// region as it goes.
type Importer struct {
	target   Target
	resolver geo.RegionResolver
}

// NewImporter creates an Importer.
func NewImporter(target Target, resolver geo.RegionResolver) *Importer {
	return &Importer{target: target, resolver: resolver}
}

// Import reads opts.Path and stores its pings under opts.Subscriber. An
// existing subscriber is left untouched unless opts.Append is set. Rows that
// fail to parse are logged and counted, never fatal.
func (im *Importer) Import(ctx context.Context, opts Options) (*Result, error) {
	if opts.Subscriber == "" {
		return nil, eris.New("ingest: subscriber name is required")
	}
	log := zap.L().With(
		zap.String("component", "ingest"),
		zap.String("subscriber", opts.Subscriber),
		zap.String("path", opts.Path),
	)

	res := &Result{}
	sub, err := im.target.GetSubscriberByName(ctx, opts.Subscriber)
	switch {
	case err == nil:
		res.SubscriberID = sub.ID
		if !opts.Append {
			log.Info("subscriber already exists, skipping import")
			res.Skipped = true
			return res, nil
		}
	case store.IsNotFound(err):
		sub = nil
	default:
		return nil, eris.Wrap(err, "ingest: look up subscriber")
	}

	records, err := ReadRows(opts.Path, ReadOptions{Encoding: opts.Encoding, Sheet: opts.Sheet})
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, eris.Errorf("ingest: %s is empty", opts.Path)
	}
	cols, err := mapColumns(records[0])
	if err != nil {
		return nil, err
	}

	if sub == nil {
		sub, err = im.target.CreateSubscriber(ctx, opts.Subscriber)
		if err != nil {
			return nil, eris.Wrap(err, "ingest: create subscriber")
		}
		res.SubscriberID = sub.ID
		res.Created = true
	}

	pings := make([]model.Ping, 0, len(records)-1)
	for i, row := range records[1:] {
		if isBlank(row) {
			continue
		}
		res.Rows++

		p, err := parseRow(cols, row)
		if err != nil {
			res.BadRows++
			log.Warn("skipping row", zap.Int("line", i+2), zap.Error(err))
			continue
		}

		region, err := im.resolver.RegionFor(ctx, p.Latitude, p.Longitude)
		if err != nil {
			return nil, eris.Wrapf(err, "ingest: resolve region for line %d", i+2)
		}
		if region == "" {
			res.Unresolved++
		}
		p.SubscriberID = sub.ID
		p.RegionID = region
		pings = append(pings, p)
	}

	if len(pings) > 0 {
		n, err := im.target.InsertPings(ctx, pings)
		if err != nil {
			return nil, eris.Wrap(err, "ingest: insert pings")
		}
		res.Imported = n
	}

	log.Info("import complete",
		zap.Int64("subscriber_id", sub.ID),
		zap.Int("rows", res.Rows),
		zap.Int64("imported", res.Imported),
		zap.Int("bad_rows", res.BadRows),
		zap.Int("unresolved", res.Unresolved),
	)
	return res, nil
}

func isBlank(row []string) bool {
	for _, c := range row {
		if c != "" {
			return false
		}
	}
	return true
}
