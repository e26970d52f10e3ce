package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/jonnison/tower-jumps/internal/model"
)

type createPingRequest struct {
	SubscriberID int64     `json:"subscriber" validate:"required,gt=0"`
	Time         time.Time `json:"utc_time" validate:"required"`
	Latitude     *float64  `json:"latitude" validate:"required,gte=-90,lte=90"`
	Longitude    *float64  `json:"longitude" validate:"required,gte=-180,lte=180"`
	CellType     string    `json:"cell_type" validate:"required"`
	RegionID     string    `json:"state,omitempty" validate:"omitempty,max=8"`
}

// handleCreatePing stores one ping. When the client omits the region it is
// resolved from the coordinates.
func (s *Server) handleCreatePing(w http.ResponseWriter, r *http.Request) {
	var req createPingRequest
	if err := s.decodeBody(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	channel, err := model.ParseChannel(req.CellType)
	if err != nil {
		s.fail(w, r, badRequestf("invalid cell_type %q", req.CellType))
		return
	}
	if _, err := s.store.GetSubscriber(r.Context(), req.SubscriberID); err != nil {
		s.fail(w, r, err)
		return
	}

	p := model.Ping{
		SubscriberID: req.SubscriberID,
		Time:         req.Time.UTC(),
		Latitude:     *req.Latitude,
		Longitude:    *req.Longitude,
		Channel:      channel,
		RegionID:     strings.ToUpper(strings.TrimSpace(req.RegionID)),
	}
	if p.RegionID == "" && s.resolver != nil {
		p.RegionID, err = s.resolver.RegionFor(r.Context(), p.Latitude, p.Longitude)
		if err != nil {
			s.fail(w, r, eris.Wrap(err, "api: resolve region"))
			return
		}
	}

	created, err := s.store.CreatePing(r.Context(), p)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetPing(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	p, err := s.store.GetPing(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleDeletePing(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.store.DeletePing(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
