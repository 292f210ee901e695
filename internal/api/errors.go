package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hackgods/clinic-scheduling/internal/billing"
	"github.com/hackgods/clinic-scheduling/internal/booking"
	"github.com/hackgods/clinic-scheduling/internal/schedule"
	"github.com/hackgods/clinic-scheduling/internal/triage"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

// handleError maps domain errors to HTTP responses. Anything unknown is
// logged and reported as a 500 without its message.
func handleError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var capErr *booking.CapacityExceededError
	var transErr *booking.InvalidTransitionError

	switch {
	case errors.As(err, &capErr):
		writeJSON(w, http.StatusConflict, ErrorResponse{
			Error:   "slot_full",
			Details: capErr.Error(),
			Max:     &capErr.Max,
			Current: &capErr.Current,
		})
	case errors.As(err, &transErr):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	case errors.Is(err, booking.ErrDuplicateBooking):
		writeError(w, http.StatusConflict, "duplicate_booking", err.Error())
	case errors.Is(err, booking.ErrBookingClosed):
		writeError(w, http.StatusConflict, "booking_closed", err.Error())
	case errors.Is(err, triage.ErrNotInClinic):
		writeError(w, http.StatusConflict, "patient_not_in_clinic", err.Error())

	case errors.Is(err, schedule.ErrSlotBlocked):
		writeError(w, http.StatusUnprocessableEntity, "slot_blocked", err.Error())
	case errors.Is(err, booking.ErrCheckInFuture):
		writeError(w, http.StatusUnprocessableEntity, "check_in_future", err.Error())

	case errors.Is(err, booking.ErrBookingNotFound):
		writeError(w, http.StatusNotFound, "booking_not_found", err.Error())
	case errors.Is(err, booking.ErrPatientNotFound):
		writeError(w, http.StatusNotFound, "patient_not_found", err.Error())
	case errors.Is(err, booking.ErrProfessionalNotFound):
		writeError(w, http.StatusNotFound, "professional_not_found", err.Error())
	case errors.Is(err, schedule.ErrGroupNotFound):
		writeError(w, http.StatusNotFound, "group_not_found", err.Error())
	case errors.Is(err, schedule.ErrBlockNotFound):
		writeError(w, http.StatusNotFound, "block_not_found", err.Error())
	case errors.Is(err, triage.ErrTriageNotFound):
		writeError(w, http.StatusNotFound, "triage_not_found", err.Error())
	case errors.Is(err, billing.ErrInvoiceNotFound):
		writeError(w, http.StatusNotFound, "invoice_not_found", err.Error())
	case errors.Is(err, booking.ErrUnknownReference),
		errors.Is(err, schedule.ErrUnknownReference):
		writeError(w, http.StatusNotFound, "unknown_reference", err.Error())

	case errors.Is(err, booking.ErrInvalidBooking),
		errors.Is(err, schedule.ErrInvalidGroup),
		errors.Is(err, schedule.ErrInvalidBlock),
		errors.Is(err, triage.ErrInvalidTriage),
		errors.Is(err, billing.ErrInvalidPaymentMethod):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())

	default:
		logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", GetRequestID(r.Context()),
			"error", err,
		)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
