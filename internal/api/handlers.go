package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/medtrack/ehr-scheduling/internal/appointment"
	redisclient "github.com/medtrack/ehr-scheduling/internal/redis"
)

func createAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		booking := appointment.BookingRequest{
			PatientName: req.PatientName,
			Doctor:      req.Doctor,
			Date:        req.Date,
			Time:        req.Time,
			Duration:    req.Duration,
			Type:        appointment.VisitType(req.Type),
			Status:      appointment.Status(req.Status),
			Notes:       req.Notes,
			Room:        req.Room,
		}
		if req.PatientID != "" {
			pid, err := uuid.Parse(req.PatientID)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_patient_id", "patientId must be a valid UUID")
				return
			}
			booking.PatientID = pid
		}

		appt, err := svc.Book(r.Context(), booking)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
	}
}

func listAppointmentsHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		filter := appointment.ListFilter{
			Doctor: q.Get("doctor"),
			Date:   q.Get("date"),
			Status: appointment.Status(q.Get("status")),
			Search: q.Get("search"),
		}

		items, err := svc.List(r.Context(), filter)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentList(items))
	}
}

func upcomingAppointmentsHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := svc.ListUpcoming(r.Context())
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentList(items))
	}
}

func rangeAppointmentsHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		items, err := svc.ListRange(r.Context(), q.Get("startDate"), q.Get("endDate"))
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentList(items))
	}
}

func statsHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		date := r.URL.Query().Get("date")
		counts, err := svc.Stats(r.Context(), date)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		resp := StatsResponse{Date: date, Counts: make(map[string]int, len(counts))}
		for status, n := range counts {
			resp.Counts[string(status)] = n
			resp.Total += n
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func getAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := appointmentID(w, r)
		if !ok {
			return
		}
		appt, err := svc.Get(r.Context(), id)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func updateAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := appointmentID(w, r)
		if !ok {
			return
		}

		var req UpdateAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		upd := appointment.UpdateRequest{
			PatientName: req.PatientName,
			Doctor:      req.Doctor,
			Date:        req.Date,
			Time:        req.Time,
			Duration:    req.Duration,
			Notes:       req.Notes,
			Room:        req.Room,
		}
		if req.Type != nil {
			t := appointment.VisitType(*req.Type)
			upd.Type = &t
		}

		appt, err := svc.Reschedule(r.Context(), id, upd)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func transitionHandler(fn func(r *http.Request, id uuid.UUID) (*appointment.Appointment, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := appointmentID(w, r)
		if !ok {
			return
		}
		appt, err := fn(r, id)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func deleteAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := appointmentID(w, r)
		if !ok {
			return
		}
		if err := svc.Delete(r.Context(), id); err != nil {
			handleServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func availableSlotsHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		date := chi.URLParam(r, "date")
		doctor := chi.URLParam(r, "doctor")

		slots, err := svc.AvailableSlots(r.Context(), doctor, date)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, AvailableSlotsResponse{
			Doctor: doctor,
			Date:   date,
			Slots:  slots,
		})
	}
}

func appointmentEventsHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := appointmentID(w, r)
		if !ok {
			return
		}
		events, err := svc.Events(r.Context(), id)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toEventList(events))
	}
}

func appointmentID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	idStr := chi.URLParam(r, "id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func handleServiceError(w http.ResponseWriter, err error) {
	var ve *appointment.ValidationError
	var se *appointment.SlotUnavailableError

	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:         "validation_failed",
			Details:       ve.Error(),
			MissingFields: ve.Fields,
		})
	case errors.As(err, &se):
		resp := ErrorResponse{
			Error:   "slot_unavailable",
			Details: se.Error(),
		}
		if se.ConflictingID != uuid.Nil {
			resp.ConflictsWith = se.ConflictingID.String()
		}
		writeJSON(w, http.StatusConflict, resp)
	case errors.Is(err, appointment.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, appointment.ErrInvalidStatusTransition):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	case errors.Is(err, appointment.ErrAppointmentClosed):
		writeError(w, http.StatusConflict, "appointment_closed", err.Error())
	case errors.Is(err, redisclient.ErrLockNotAcquired):
		writeError(w, http.StatusConflict, "schedule_busy", "schedule is being modified, please retry shortly")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
