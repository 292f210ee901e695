package api

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/billing"
	"github.com/hackgods/clinic-scheduling/internal/booking"
	"github.com/hackgods/clinic-scheduling/internal/triage"
)

func (h *handlers) createBooking(w http.ResponseWriter, r *http.Request) {
	var req CreateBookingRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	date, err := parseDate("date", req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_date", err.Error())
		return
	}
	at, err := parseTime("time", req.Time)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_time", err.Error())
		return
	}

	b, err := h.cfg.Bookings.CreateBooking(r.Context(), booking.CreateInput{
		ProfessionalID: req.ProfessionalID,
		SpecialtyID:    req.SpecialtyID,
		PatientID:      req.PatientID,
		InsuranceID:    req.InsuranceID,
		Date:           date,
		Time:           at,
		IsOverbook:     req.IsOverbook,
		Value:          req.Value,
		Notes:          req.Notes,
	})
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, toBookingResponse(b))
}

func (h *handlers) listBookings(w http.ResponseWriter, r *http.Request) {
	q := &queryParams{r: r}
	f := booking.Filter{
		Date:             q.dateParam("date"),
		Month:            q.intParam("month"),
		Year:             q.intParam("year"),
		ProfessionalID:   q.uuidParam("professional"),
		SpecialtyID:      q.uuidParam("specialty"),
		PatientID:        q.uuidParam("patient"),
		IncludeCancelled: q.boolParam("include_cancelled"),
		ByAge:            r.URL.Query().Get("queue") == "age",
	}
	if q.err != nil {
		writeError(w, http.StatusBadRequest, "invalid_query", q.err.Error())
		return
	}
	if raw := r.URL.Query().Get("status"); raw != "" {
		st, ok := booking.ParseStatus(raw)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_query", "unknown status "+raw)
			return
		}
		f.Status = &st
	}
	if f.Month < 0 || f.Month > 12 {
		writeError(w, http.StatusBadRequest, "invalid_query", "month must be between 1 and 12")
		return
	}

	list, err := h.cfg.Bookings.ListBookings(r.Context(), f)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	out := make([]BookingResponse, 0, len(list))
	for i := range list {
		out = append(out, toBookingResponse(&list[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handlers) getBooking(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "id")
	if !ok {
		return
	}
	b, err := h.cfg.Bookings.GetBooking(r.Context(), id)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingResponse(b))
}

func (h *handlers) updateBooking(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "id")
	if !ok {
		return
	}
	var req UpdateBookingRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	in := booking.UpdateInput{
		ProfessionalID: req.ProfessionalID,
		SpecialtyID:    req.SpecialtyID,
		InsuranceID:    req.InsuranceID,
		ClearInsurance: req.ClearInsurance,
		Value:          req.Value,
		Notes:          req.Notes,
	}
	if req.Date != nil {
		d, err := parseDate("date", *req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", err.Error())
			return
		}
		in.Date = &d
	}
	if req.Time != nil {
		t, err := parseTime("time", *req.Time)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_time", err.Error())
			return
		}
		in.Time = &t
	}

	b, err := h.cfg.Bookings.UpdateBooking(r.Context(), id, in)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingResponse(b))
}

func (h *handlers) checkIn(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "id")
	if !ok {
		return
	}

	// an empty body checks in with the booking value and a pending invoice
	var req CheckInRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}

	method, err := billing.ParsePaymentMethod(req.PaymentMethod)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_payment_method", err.Error())
		return
	}
	in := booking.CheckInInput{
		Amount:        req.Amount,
		PaymentMethod: method,
		Paid:          req.Paid,
	}
	if req.DueDate != nil {
		d, err := parseDate("due_date", *req.DueDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", err.Error())
			return
		}
		in.DueDate = &d
	}

	b, inv, err := h.cfg.Bookings.CheckIn(r.Context(), id, in)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, CheckInResponse{
		Booking: toBookingResponse(b),
		Invoice: toInvoiceResponse(inv),
	})
}

func (h *handlers) revertCheckIn(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "id")
	if !ok {
		return
	}
	var req RevertRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}

	b, err := h.cfg.Bookings.RevertCheckIn(r.Context(), id, booking.RevertInput{
		Correction:  req.Correction,
		KeepBilling: req.KeepBilling,
	})
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingResponse(b))
}

func (h *handlers) startBooking(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.cfg.Bookings.Start)
}

func (h *handlers) finishBooking(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.cfg.Bookings.Finish)
}

func (h *handlers) markNoShow(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.cfg.Bookings.MarkNoShow)
}

func (h *handlers) cancelBooking(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.cfg.Bookings.Cancel)
}

type transitionFunc func(ctx context.Context, id uuid.UUID) (*booking.Booking, error)

func (h *handlers) transition(w http.ResponseWriter, r *http.Request, fn transitionFunc) {
	id, ok := urlUUID(w, r, "id")
	if !ok {
		return
	}
	b, err := fn(r.Context(), id)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingResponse(b))
}

func (h *handlers) saveTriage(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "id")
	if !ok {
		return
	}
	var in triage.Input
	if !decodeJSON(w, r, &in) {
		return
	}

	rec, err := h.cfg.Triage.Save(r.Context(), id, in)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *handlers) getTriage(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "id")
	if !ok {
		return
	}
	rec, err := h.cfg.Triage.Get(r.Context(), id)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}
