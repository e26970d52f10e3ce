package ingest

import (
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/jonnison/tower-jumps/internal/model"
)

// Header names, matched case-insensitively.
const (
	colTime      = "utcdatetime"
	colLatitude  = "latitude"
	colLongitude = "longitude"
	colCellType  = "celltype"
)

// TimeLayouts are tried in order when parsing UTCDateTime.
var TimeLayouts = []string{
	"01/02/06 15:04",
	time.RFC3339,
	"2006-01-02 15:04:05",
}

// columns maps required fields to their position in a row.
type columns struct {
	time, lat, lon, cellType int
}

func mapColumns(header []string) (columns, error) {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if _, dup := idx[key]; !dup {
			idx[key] = i
		}
	}

	var missing []string
	get := func(name string) int {
		i, ok := idx[name]
		if !ok {
			missing = append(missing, name)
			return -1
		}
		return i
	}
	cols := columns{
		time:     get(colTime),
		lat:      get(colLatitude),
		lon:      get(colLongitude),
		cellType: get(colCellType),
	}
	if len(missing) > 0 {
		return columns{}, eris.Errorf("ingest: missing columns %s", strings.Join(missing, ", "))
	}
	return cols, nil
}

// ParseTime parses a timestamp using TimeLayouts. Values without a zone are
// taken as UTC.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range TimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, eris.Errorf("ingest: unrecognized timestamp %q", s)
}

// parseRow converts one data row into a ping without subscriber or region.
func parseRow(cols columns, row []string) (model.Ping, error) {
	cell := func(i int) string {
		if i < len(row) {
			return strings.TrimSpace(row[i])
		}
		return ""
	}

	t, err := ParseTime(cell(cols.time))
	if err != nil {
		return model.Ping{}, err
	}
	lat, err := strconv.ParseFloat(cell(cols.lat), 64)
	if err != nil {
		return model.Ping{}, eris.Wrapf(err, "ingest: latitude %q", cell(cols.lat))
	}
	lon, err := strconv.ParseFloat(cell(cols.lon), 64)
	if err != nil {
		return model.Ping{}, eris.Wrapf(err, "ingest: longitude %q", cell(cols.lon))
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return model.Ping{}, eris.Errorf("ingest: coordinate out of range (%g, %g)", lat, lon)
	}
	ch, err := model.ParseChannel(cell(cols.cellType))
	if err != nil {
		return model.Ping{}, err
	}

	return model.Ping{Time: t, Latitude: lat, Longitude: lon, Channel: ch}, nil
}
