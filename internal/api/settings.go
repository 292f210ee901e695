package api

import (
	"net/http"

	"github.com/hackgods/clinic-scheduling/internal/reminder"
	"github.com/hackgods/clinic-scheduling/internal/settings"
)

func (h *handlers) getSettings(w http.ResponseWriter, r *http.Request) {
	s, err := h.cfg.Settings.Load(r.Context())
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *handlers) updateSettings(w http.ResponseWriter, r *http.Request) {
	var upd settings.Update
	if !decodeJSON(w, r, &upd) {
		return
	}

	current, err := h.cfg.Settings.Load(r.Context())
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	saved, err := h.cfg.Settings.Save(r.Context(), upd.Apply(*current))
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	h.logger.Info("settings updated",
		"global", saved.GlobalEnabled,
		"reminders", saved.ReminderEnabled,
		"subject", GetSubject(r.Context()),
	)
	writeJSON(w, http.StatusOK, saved)
}

// runReminders triggers the batch immediately, ignoring the send-after time.
func (h *handlers) runReminders(w http.ResponseWriter, r *http.Request) {
	res, err := h.cfg.Reminders.Run(r.Context(), reminder.RunOptions{Force: true})
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handlers) reminderStatus(w http.ResponseWriter, r *http.Request) {
	st, err := h.cfg.Reminders.Status(r.Context())
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}
