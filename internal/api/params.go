package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/spigell/hire-matcher/internal/pipeline"
)

func pathID(r *http.Request) (int64, error) {
	raw := r.PathValue("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid id %q", pipeline.ErrValidation, raw)
	}
	return id, nil
}

func queryInt64(r *http.Request, name string) (int64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%w: invalid %s %q", pipeline.ErrValidation, name, raw)
	}
	return v, nil
}

func queryInt(r *http.Request, name string) (int, error) {
	v, err := queryInt64(r, name)
	return int(v), err
}

func queryFloat(r *http.Request, name string) (*float64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid %s %q", pipeline.ErrValidation, name, raw)
	}
	return &v, nil
}

// decodeJSON reads a JSON body into v. An empty body leaves v untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	body := http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("%w: invalid request body: %v", pipeline.ErrValidation, err)
	}
	return nil
}

func applicationFilter(r *http.Request) (pipeline.ApplicationFilter, error) {
	var (
		f   pipeline.ApplicationFilter
		err error
	)
	if f.JobID, err = queryInt64(r, "job_id"); err != nil {
		return f, err
	}
	if f.Offset, err = queryInt(r, "offset"); err != nil {
		return f, err
	}
	if f.Limit, err = queryInt(r, "limit"); err != nil {
		return f, err
	}
	if f.MinScore, err = queryFloat(r, "min_score"); err != nil {
		return f, err
	}
	f.Status = pipeline.ApplicationStatus(strings.TrimSpace(r.URL.Query().Get("status")))
	f.Search = r.URL.Query().Get("search")
	return f, nil
}

type page[T any] struct {
	Items  []T `json:"items"`
	Total  int `json:"total"`
	Offset int `json:"offset"`
}
