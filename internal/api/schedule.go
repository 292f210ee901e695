package api

import (
	"fmt"
	"net/http"

	"github.com/hackgods/clinic-scheduling/internal/schedule"
)

func (req GroupRequest) toInput() (schedule.GroupInput, error) {
	in := schedule.GroupInput{
		ProfessionalID:  req.ProfessionalID,
		SpecialtyID:     req.SpecialtyID,
		InsuranceID:     req.InsuranceID,
		DaysOfWeek:      req.DaysOfWeek,
		Active:          req.Active == nil || *req.Active,
		Kind:            req.Kind,
		IntervalMinutes: req.IntervalMinutes,
		Capacity:        req.Capacity,
		Price:           req.Price,
	}

	var err error
	if in.ValidFrom, err = parseDate("valid_from", req.ValidFrom); err != nil {
		return in, err
	}
	if in.ValidUntil, err = parseDate("valid_until", req.ValidUntil); err != nil {
		return in, err
	}

	if req.Kind == schedule.KindFixed {
		for _, ft := range req.FixedTimes {
			t, err := parseTime("fixed_times", ft.Time)
			if err != nil {
				return in, err
			}
			in.FixedTimes = append(in.FixedTimes, schedule.FixedTime{Time: t, Capacity: ft.Capacity})
		}
		return in, nil
	}

	if in.StartTime, err = parseTime("start_time", req.StartTime); err != nil {
		return in, err
	}
	if in.EndTime, err = parseTime("end_time", req.EndTime); err != nil {
		return in, err
	}
	return in, nil
}

func (h *handlers) createGroup(w http.ResponseWriter, r *http.Request) {
	var req GroupRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	in, err := req.toInput()
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	groupID, rules, err := h.cfg.Schedule.CreateGroup(r.Context(), in)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	g := schedule.GroupFromRules(groupID, rules)
	writeJSON(w, http.StatusCreated, toGroupResponse(&g))
}

func (h *handlers) getGroup(w http.ResponseWriter, r *http.Request) {
	groupID, ok := urlUUID(w, r, "group_id")
	if !ok {
		return
	}
	g, err := h.cfg.Schedule.GetGroup(r.Context(), groupID)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toGroupResponse(g))
}

func (h *handlers) replaceGroup(w http.ResponseWriter, r *http.Request) {
	groupID, ok := urlUUID(w, r, "group_id")
	if !ok {
		return
	}
	var req GroupRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	in, err := req.toInput()
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	rules, err := h.cfg.Schedule.ReplaceGroup(r.Context(), groupID, in)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	g := schedule.GroupFromRules(groupID, rules)
	writeJSON(w, http.StatusOK, toGroupResponse(&g))
}

func (h *handlers) deleteGroup(w http.ResponseWriter, r *http.Request) {
	groupID, ok := urlUUID(w, r, "group_id")
	if !ok {
		return
	}
	if err := h.cfg.Schedule.DeleteGroup(r.Context(), groupID); err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) groupConflicts(w http.ResponseWriter, r *http.Request) {
	groupID, ok := urlUUID(w, r, "group_id")
	if !ok {
		return
	}
	n, err := h.cfg.Schedule.ConflictCount(r.Context(), groupID)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"group_id": groupID, "conflicts": n})
}

func (h *handlers) listRules(w http.ResponseWriter, r *http.Request) {
	q := &queryParams{r: r}
	f := schedule.RuleFilter{
		ProfessionalID: q.uuidParam("professional"),
		SpecialtyID:    q.uuidParam("specialty"),
		InsuranceID:    q.uuidParam("insurance"),
		NoInsurance:    q.boolParam("no_insurance"),
		OnDate:         q.dateParam("date"),
		Status:         schedule.RuleStatus(r.URL.Query().Get("status")),
	}
	if r.URL.Query().Has("weekday") {
		wd := q.intParam("weekday")
		if wd < 0 || wd > 6 {
			q.fail("weekday", fmt.Errorf("must be between 0 and 6"))
		}
		f.DayOfWeek = &wd
	}
	switch f.Status {
	case "", schedule.RuleStatusActive, schedule.RuleStatusClosed, schedule.RuleStatusAll:
	default:
		q.fail("status", fmt.Errorf("unknown status %q", f.Status))
	}
	if q.err != nil {
		writeError(w, http.StatusBadRequest, "invalid_query", q.err.Error())
		return
	}

	rules, err := h.cfg.Schedule.ListRules(r.Context(), f)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toRuleResponses(rules))
}

func (h *handlers) slotCapacity(w http.ResponseWriter, r *http.Request) {
	q := &queryParams{r: r}
	prof := q.uuidParam("professional")
	spec := q.uuidParam("specialty")
	date := q.dateParam("date")
	if q.err == nil && (prof == nil || spec == nil || date == nil) {
		q.fail("query", fmt.Errorf("professional, specialty and date are required"))
	}
	at, err := parseTime("time", r.URL.Query().Get("time"))
	if err != nil {
		q.fail("time", err)
	}
	if q.err != nil {
		writeError(w, http.StatusBadRequest, "invalid_query", q.err.Error())
		return
	}

	state, err := h.cfg.Capacity.Check(r.Context(), *prof, *spec, *date, at)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	resp := SlotCapacityResponse{
		Max:       state.Capacity.Max,
		Current:   state.Current,
		Available: state.Available,
		Pooled:    state.Capacity.Pooled,
		From:      state.Capacity.From.String(),
		To:        state.Capacity.To.String(),
	}
	if state.Capacity.Rule != nil {
		resp.Kind = string(state.Capacity.Rule.Kind)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) createBlock(w http.ResponseWriter, r *http.Request) {
	var req BlockRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	b := schedule.Block{
		ProfessionalID: req.ProfessionalID,
		Reason:         req.Reason,
		Kind:           req.Kind,
		Yearly:         req.Yearly,
	}
	var err error
	if b.DateFrom, err = parseDate("date_from", req.DateFrom); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_date", err.Error())
		return
	}
	b.DateUntil = b.DateFrom
	if req.DateUntil != "" {
		if b.DateUntil, err = parseDate("date_until", req.DateUntil); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", err.Error())
			return
		}
	}
	if req.StartTime != "" {
		if b.StartTime, err = parseTime("start_time", req.StartTime); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_time", err.Error())
			return
		}
	}
	if req.EndTime != "" {
		if b.EndTime, err = parseTime("end_time", req.EndTime); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_time", err.Error())
			return
		}
	}

	created, err := h.cfg.Schedule.CreateBlock(r.Context(), b)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, toBlockResponse(created))
}

func (h *handlers) listBlocks(w http.ResponseWriter, r *http.Request) {
	q := &queryParams{r: r}
	f := schedule.BlockFilter{
		ProfessionalID: q.uuidParam("professional"),
		From:           q.dateParam("from"),
		Until:          q.dateParam("until"),
	}
	if q.err != nil {
		writeError(w, http.StatusBadRequest, "invalid_query", q.err.Error())
		return
	}

	blocks, err := h.cfg.Schedule.ListBlocks(r.Context(), f)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	out := make([]BlockResponse, 0, len(blocks))
	for i := range blocks {
		out = append(out, toBlockResponse(&blocks[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handlers) deleteBlock(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "id")
	if !ok {
		return
	}
	if err := h.cfg.Schedule.DeleteBlock(r.Context(), id); err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
