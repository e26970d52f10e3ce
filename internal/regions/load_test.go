package regions

import (
	"context"
	"errors"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jonnison/tower-jumps/internal/geo"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type fakeSink struct {
	count     int
	countErr  error
	upsertErr error
	upserted  []geo.RegionShape
}

func (f *fakeSink) CountRegions(context.Context) (int, error) {
	return f.count, f.countErr
}

func (f *fakeSink) UpsertRegions(_ context.Context, shapes []geo.RegionShape) (int64, error) {
	if f.upsertErr != nil {
		return 0, f.upsertErr
	}
	f.upserted = append(f.upserted, shapes...)
	return int64(len(shapes)), nil
}

var twoShapes = []geo.RegionShape{{Code: "NY", Name: "New York"}, {Code: "NJ", Name: "New Jersey"}}

func TestLoad_Empty(t *testing.T) {
	sink := &fakeSink{}
	res, err := Load(context.Background(), sink, twoShapes, false)
	require.NoError(t, err)
	assert.Equal(t, &LoadResult{Loaded: 2}, res)
	assert.Len(t, sink.upserted, 2)
}

func TestLoad_SkipsWhenPresent(t *testing.T) {
	sink := &fakeSink{count: 51}
	res, err := Load(context.Background(), sink, twoShapes, false)
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Equal(t, 51, res.Existing)
	assert.Empty(t, sink.upserted)
}

func TestLoad_Force(t *testing.T) {
	sink := &fakeSink{count: 51}
	res, err := Load(context.Background(), sink, twoShapes, true)
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	assert.Equal(t, int64(2), res.Loaded)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(context.Background(), &fakeSink{countErr: errors.New("db down")}, twoShapes, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")

	_, err = Load(context.Background(), &fakeSink{upsertErr: errors.New("copy failed")}, twoShapes, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "copy failed")

	_, err = Load(context.Background(), &fakeSink{}, nil, false)
	assert.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	path := writeShapefile(t, []testRecord{
		{code: "AA", name: "Alpha", rings: [][]shp.Point{cwBox(0, 0, 1, 1)}},
	})
	sink := &fakeSink{}

	res, err := LoadFile(context.Background(), sink, path, false)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Loaded)
	require.Len(t, sink.upserted, 1)
	assert.Equal(t, "AA", sink.upserted[0].Code)
}

func TestLoadFromURL_SkipsWithoutDownload(t *testing.T) {
	res, err := LoadFromURL(context.Background(), &fakeSink{count: 3}, "http://127.0.0.1:1/never.zip", t.TempDir(), false)
	require.NoError(t, err)
	assert.True(t, res.Skipped)
}
