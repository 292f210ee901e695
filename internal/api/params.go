package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/schedule"
)

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return false
	}
	return true
}

func urlUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_"+name, name+" must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

// queryParams collects the first parse failure so handlers can check once.
type queryParams struct {
	r   *http.Request
	err error
}

func (q *queryParams) fail(name string, err error) {
	if q.err == nil {
		q.err = fmt.Errorf("%s: %v", name, err)
	}
}

func (q *queryParams) uuidParam(name string) *uuid.UUID {
	v := q.r.URL.Query().Get(name)
	if v == "" {
		return nil
	}
	id, err := uuid.Parse(v)
	if err != nil {
		q.fail(name, err)
		return nil
	}
	return &id
}

func (q *queryParams) dateParam(name string) *time.Time {
	v := q.r.URL.Query().Get(name)
	if v == "" {
		return nil
	}
	d, err := schedule.ParseDate(v)
	if err != nil {
		q.fail(name, err)
		return nil
	}
	return &d
}

func (q *queryParams) intParam(name string) int {
	v := q.r.URL.Query().Get(name)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		q.fail(name, err)
		return 0
	}
	return n
}

func (q *queryParams) boolParam(name string) bool {
	v := q.r.URL.Query().Get(name)
	if v == "" {
		return false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		q.fail(name, err)
		return false
	}
	return b
}

func parseDate(field, s string) (time.Time, error) {
	d, err := schedule.ParseDate(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: %w", field, err)
	}
	return d, nil
}

func parseTime(field, s string) (schedule.TimeOfDay, error) {
	t, err := schedule.ParseTimeOfDay(s)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", field, err)
	}
	return t, nil
}
