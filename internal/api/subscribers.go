package api

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/jonnison/tower-jumps/internal/inference"
	"github.com/jonnison/tower-jumps/internal/store"
)

type createSubscriberRequest struct {
	Name string `json:"name" validate:"required,max=255"`
}

func (s *Server) handleListSubscribers(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		s.fail(w, r, err)
		return
	}

	subs, err := s.store.ListSubscribers(r.Context(), store.SubscriberFilter{
		Name:   strings.TrimSpace(r.URL.Query().Get("name")),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, subs)
}

func (s *Server) handleCreateSubscriber(w http.ResponseWriter, r *http.Request) {
	var req createSubscriberRequest
	if err := s.decodeBody(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	sub, err := s.store.CreateSubscriber(r.Context(), strings.TrimSpace(req.Name))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}

func (s *Server) handleGetSubscriber(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	sub, err := s.store.GetSubscriber(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

func (s *Server) handleDeleteSubscriber(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.store.DeleteSubscriber(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListPings(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	filter, err := pingFilter(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if _, err := s.store.GetSubscriber(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	pings, err := s.store.ListPings(r.Context(), id, filter)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pings)
}

// handleInfer answers where the subscriber was over the requested window.
// A window without usable pings is a 200 with a null interval.
func (s *Server) handleInfer(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	filter, err := pingFilter(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	q := r.URL.Query()
	var output inference.Output
	if raw := q.Get("output"); raw != "" {
		output, err = inference.ParseOutput(raw)
		if err != nil {
			s.fail(w, r, badRequestf("invalid output %q", raw))
			return
		}
	}
	method := strings.TrimSpace(q.Get("model_id"))
	if _, err := s.svc.Resolve(method); err != nil {
		s.fail(w, r, err)
		return
	}

	if _, err := s.store.GetSubscriber(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}

	res, err := s.svc.Infer(r.Context(), inference.Request{
		SubscriberID: id,
		Filter:       filter,
		Method:       method,
		Output:       output,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if res.InsufficientData() {
		s.log.Debug("no interval inferred", zap.Int64("subscriber_id", id), zap.Int("pings", len(res.Pings)))
	}
	writeJSON(w, http.StatusOK, res)
}
