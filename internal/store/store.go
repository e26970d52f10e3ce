// Package store persists regions, subscribers and pings. Two drivers
// implement Store: Postgres with PostGIS, and an embedded SQLite file for
// local use.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/jonnison/tower-jumps/internal/geo"
	"github.com/jonnison/tower-jumps/internal/model"
)

// Supported drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

var (
	// ErrNotFound is wrapped by lookups that match no row.
	ErrNotFound = eris.New("store: not found")
	// ErrConflict is wrapped when a unique key already exists.
	ErrConflict = eris.New("store: already exists")
)

// SubscriberFilter narrows ListSubscribers. Name matches case-insensitively
// anywhere in the subscriber name.
type SubscriberFilter struct {
	Name   string `json:"name,omitempty"`
	Limit  int    `json:"limit,omitempty"`
	Offset int    `json:"offset,omitempty"`
}

const defaultListLimit = 100

func (f SubscriberFilter) limit() int {
	if f.Limit <= 0 {
		return defaultListLimit
	}
	return f.Limit
}

// Store defines the persistence interface for tower-jumps.
type Store interface {
	// Regions
	UpsertRegions(ctx context.Context, shapes []geo.RegionShape) (int64, error)
	ListRegions(ctx context.Context) ([]model.Region, error)
	GetRegion(ctx context.Context, code string) (*model.Region, error)
	RegionShapes(ctx context.Context) ([]geo.RegionShape, error)
	CountRegions(ctx context.Context) (int, error)

	// Subscribers
	CreateSubscriber(ctx context.Context, name string) (*model.Subscriber, error)
	GetSubscriber(ctx context.Context, id int64) (*model.Subscriber, error)
	GetSubscriberByName(ctx context.Context, name string) (*model.Subscriber, error)
	ListSubscribers(ctx context.Context, filter SubscriberFilter) ([]model.Subscriber, error)
	DeleteSubscriber(ctx context.Context, id int64) error

	// Pings
	CreatePing(ctx context.Context, p model.Ping) (*model.Ping, error)
	InsertPings(ctx context.Context, pings []model.Ping) (int64, error)
	GetPing(ctx context.Context, id int64) (*model.Ping, error)
	ListPings(ctx context.Context, subscriberID int64, filter model.PingFilter) ([]model.Ping, error)
	DeletePing(ctx context.Context, id int64) error

	// Lifecycle
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}

// IsNotFound reports whether err wraps ErrNotFound.
func IsNotFound(err error) bool {
	return eris.Is(err, ErrNotFound)
}

// IsConflict reports whether err wraps ErrConflict.
func IsConflict(err error) bool {
	return eris.Is(err, ErrConflict)
}
