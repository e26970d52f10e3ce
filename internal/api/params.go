package api

import (
	"encoding/json"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/jonnison/tower-jumps/internal/ingest"
	"github.com/jonnison/tower-jumps/internal/model"
)

// maxBodyBytes bounds JSON request bodies; region geometries are the largest.
const maxBodyBytes = 8 << 20

func pathID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, badRequestf("invalid %s %q", name, raw)
	}
	return id, nil
}

func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, badRequestf("invalid %s %q", name, raw)
	}
	return n, nil
}

func queryTime(r *http.Request, name string) (*time.Time, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return nil, nil
	}
	t, err := ingest.ParseTime(raw)
	if err != nil {
		return nil, badRequestf("invalid %s %q", name, raw)
	}
	return &t, nil
}

// pingFilter reads the inclusive start/end window from the query string.
func pingFilter(r *http.Request) (model.PingFilter, error) {
	start, err := queryTime(r, "start")
	if err != nil {
		return model.PingFilter{}, err
	}
	end, err := queryTime(r, "end")
	if err != nil {
		return model.PingFilter{}, err
	}
	f := model.PingFilter{Start: start, End: end}
	if err := f.Validate(); err != nil {
		return model.PingFilter{}, badRequestf("start must not be after end")
	}
	return f, nil
}

// decodeBody reads a JSON body into dst and validates its struct tags.
func (s *Server) decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return badRequestf("invalid request body: %v", err)
	}
	if err := s.validate.Struct(dst); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			fe := verrs[0]
			return badRequestf("%s failed %s validation", fe.Field(), fe.Tag())
		}
		return badRequestf("invalid request body: %v", err)
	}
	return nil
}

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}
