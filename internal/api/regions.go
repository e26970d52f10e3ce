package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/jonnison/tower-jumps/internal/geo"
	"github.com/jonnison/tower-jumps/internal/model"
)

type createRegionRequest struct {
	Code     string          `json:"state_code" validate:"required,max=8"`
	Name     string          `json:"name" validate:"required,max=128"`
	Geometry json.RawMessage `json:"geometry" validate:"required"`
}

func (s *Server) handleListRegions(w http.ResponseWriter, r *http.Request) {
	regions, err := s.store.ListRegions(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, regions)
}

func (s *Server) handleGetRegion(w http.ResponseWriter, r *http.Request) {
	region, err := s.store.GetRegion(r.Context(), strings.ToUpper(chi.URLParam(r, "code")))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, region)
}

// handleCreateRegion upserts one region from a GeoJSON Polygon or
// MultiPolygon in WGS 84.
func (s *Server) handleCreateRegion(w http.ResponseWriter, r *http.Request) {
	var req createRegionRequest
	if err := s.decodeBody(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	var g geom.T
	if err := geojson.Unmarshal(req.Geometry, &g); err != nil {
		s.fail(w, r, badRequestf("invalid geometry: %v", err))
		return
	}
	data, err := geo.BoundaryEWKB(g)
	if err != nil {
		s.fail(w, r, badRequestf("invalid geometry: %v", err))
		return
	}

	region := model.Region{Code: strings.ToUpper(req.Code), Name: req.Name}
	if _, err := s.store.UpsertRegions(r.Context(), []geo.RegionShape{{
		Code: region.Code,
		Name: region.Name,
		EWKB: data,
	}}); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, region)
}
