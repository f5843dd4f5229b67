package api

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/medtrack/ehr-scheduling/internal/appointment"
)

type CreateAppointmentRequest struct {
	PatientID   string `json:"patientId,omitempty"`
	PatientName string `json:"patientName"`
	Doctor      string `json:"doctor"`
	Date        string `json:"date"`
	Time        string `json:"time"`
	Duration    int    `json:"duration,omitempty"`
	Type        string `json:"type"`
	Status      string `json:"status,omitempty"`
	Notes       string `json:"notes,omitempty"`
	Room        string `json:"room,omitempty"`
}

type UpdateAppointmentRequest struct {
	PatientName *string `json:"patientName,omitempty"`
	Doctor      *string `json:"doctor,omitempty"`
	Date        *string `json:"date,omitempty"`
	Time        *string `json:"time,omitempty"`
	Duration    *int    `json:"duration,omitempty"`
	Type        *string `json:"type,omitempty"`
	Notes       *string `json:"notes,omitempty"`
	Room        *string `json:"room,omitempty"`
}

type AppointmentResponse struct {
	ID          uuid.UUID  `json:"id"`
	PatientID   *uuid.UUID `json:"patientId,omitempty"`
	PatientName string     `json:"patientName"`
	Doctor      string     `json:"doctor"`
	Date        string     `json:"date"`
	Time        string     `json:"time"`
	Duration    int        `json:"duration"`
	Type        string     `json:"type"`
	Status      string     `json:"status"`
	Notes       string     `json:"notes,omitempty"`
	Room        *string    `json:"room,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

func toAppointmentResponse(a *appointment.Appointment) AppointmentResponse {
	resp := AppointmentResponse{
		ID:          a.ID,
		PatientName: a.PatientName,
		Doctor:      a.Doctor,
		Date:        a.Date,
		Time:        a.Time,
		Duration:    a.Duration,
		Type:        string(a.Type),
		Status:      string(a.Status),
		Notes:       a.Notes,
		Room:        a.Room,
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}
	if a.PatientID != uuid.Nil {
		pid := a.PatientID
		resp.PatientID = &pid
	}
	return resp
}

func toAppointmentList(items []appointment.Appointment) []AppointmentResponse {
	out := make([]AppointmentResponse, 0, len(items))
	for i := range items {
		out = append(out, toAppointmentResponse(&items[i]))
	}
	return out
}

type EventResponse struct {
	ID            int64           `json:"id"`
	Type          string          `json:"type"`
	AppointmentID uuid.UUID       `json:"appointmentId"`
	Payload       json.RawMessage `json:"payload,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
}

func toEventList(events []appointment.EventLog) []EventResponse {
	out := make([]EventResponse, 0, len(events))
	for _, ev := range events {
		out = append(out, EventResponse{
			ID:            ev.ID,
			Type:          ev.Type,
			AppointmentID: ev.AppointmentID,
			Payload:       ev.Payload,
			CreatedAt:     ev.CreatedAt,
		})
	}
	return out
}

type AvailableSlotsResponse struct {
	Doctor string   `json:"doctor"`
	Date   string   `json:"date"`
	Slots  []string `json:"availableSlots"`
}

type StatsResponse struct {
	Date   string         `json:"date,omitempty"`
	Total  int            `json:"total"`
	Counts map[string]int `json:"byStatus"`
}

type ErrorResponse struct {
	Error         string   `json:"error"`
	Details       string   `json:"details,omitempty"`
	MissingFields []string `json:"missingFields,omitempty"`
	ConflictsWith string   `json:"conflictsWith,omitempty"`
}
