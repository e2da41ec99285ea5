package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"booking/internal/domain"
	"booking/internal/ics"
	"booking/internal/service/appointments"
	"booking/internal/transport/requestid"
)

type appointmentJSON struct {
	ID          int64     `json:"id"`
	ClientName  string    `json:"clientName"`
	ClientEmail string    `json:"clientEmail"`
	ServiceName string    `json:"serviceName"`
	StartTime   time.Time `json:"startTime"`
	EndTime     time.Time `json:"endTime"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
}

func toAppointmentJSON(a domain.Appointment) appointmentJSON {
	return appointmentJSON{
		ID:          a.ID,
		ClientName:  a.ClientName,
		ClientEmail: a.ClientEmail,
		ServiceName: a.ServiceName,
		StartTime:   a.StartTime,
		EndTime:     a.EndTime,
		Status:      a.Status.String(),
		CreatedAt:   a.CreatedAt,
	}
}

type createAppointmentRequest struct {
	ClientName  string     `json:"clientName"`
	ClientEmail string     `json:"clientEmail"`
	ServiceName string     `json:"serviceName"`
	StartTime   *time.Time `json:"startTime"`
	EndTime     *time.Time `json:"endTime"`
}

type createAppointmentResponse struct {
	Message       string `json:"message"`
	AppointmentID int64  `json:"appointmentId"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func (a *API) requestLogger(r *http.Request, route string) *slog.Logger {
	return a.log.With(
		slog.String("route", route),
		slog.String("request_id", requestid.FromContext(r.Context())),
	)
}

func (a *API) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) listAppointments(w http.ResponseWriter, r *http.Request) {
	log := a.requestLogger(r, "ListAppointments")

	appts, err := a.svc.ListActive(r.Context())
	if err != nil {
		writeServiceError(w, log, "appointments list failed", err)
		return
	}

	out := make([]appointmentJSON, 0, len(appts))
	for _, appt := range appts {
		out = append(out, toAppointmentJSON(appt))
	}
	log.Debug("appointments listed", slog.Int("count", len(out)))
	writeJSON(w, http.StatusOK, out)
}

func (a *API) createAppointment(w http.ResponseWriter, r *http.Request) {
	log := a.requestLogger(r, "CreateAppointment")

	var req createAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, codeTooLarge, "request body too large")
			return
		}
		log.Warn("invalid request", slog.String("reason", "bad_json"), slog.Any("err", err))
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "invalid request body")
		return
	}

	in := appointments.CreateInput{
		ClientName:  req.ClientName,
		ClientEmail: req.ClientEmail,
		ServiceName: req.ServiceName,
	}
	if req.StartTime != nil {
		in.StartTime = *req.StartTime
	}
	if req.EndTime != nil {
		in.EndTime = *req.EndTime
	}

	appt, err := a.svc.Create(r.Context(), in)
	if err != nil {
		writeServiceError(w, log, "appointment create failed", err)
		return
	}

	log.Info(
		"appointment created",
		slog.Int64("appointment_id", appt.ID),
		slog.Time("start_time", appt.StartTime),
		slog.Time("end_time", appt.EndTime),
	)
	writeJSON(w, http.StatusCreated, createAppointmentResponse{
		Message:       "Appointment booked successfully.",
		AppointmentID: appt.ID,
	})
}

func (a *API) cancelAppointment(w http.ResponseWriter, r *http.Request) {
	log := a.requestLogger(r, "CancelAppointment")

	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "appointment id must be an integer")
		return
	}

	if err := a.svc.Cancel(r.Context(), id); err != nil {
		writeServiceError(w, log, "appointment cancel failed", err)
		return
	}

	log.Info("appointment canceled", slog.Int64("appointment_id", id))
	writeJSON(w, http.StatusOK, messageResponse{Message: "Appointment canceled successfully."})
}

func (a *API) appointmentsFeed(w http.ResponseWriter, r *http.Request) {
	log := a.requestLogger(r, "AppointmentsFeed")

	appts, err := a.svc.ListActive(r.Context())
	if err != nil {
		writeServiceError(w, log, "appointments feed failed", err)
		return
	}

	var buf bytes.Buffer
	if err := ics.Encode(&buf, appts, a.opts.ICS); err != nil {
		writeServiceError(w, log, "appointments feed encoding failed", err)
		return
	}
	w.Header().Set("Content-Type", ics.ContentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
