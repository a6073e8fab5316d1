package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/V4T54L/vetclinic/internal/adapter/api/respond"
	"github.com/V4T54L/vetclinic/internal/domain"
	"github.com/V4T54L/vetclinic/internal/usecase"
)

// ClinicHandler exposes the clinic's clients, pets and appointments. Every
// call runs inside the tenant attached to the request by the tenant middleware.
type ClinicHandler struct {
	svc    *usecase.ClinicService
	logger *slog.Logger
}

func NewClinicHandler(svc *usecase.ClinicService, logger *slog.Logger) *ClinicHandler {
	return &ClinicHandler{svc: svc, logger: logger}
}

func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

// GET /clients?limit=&offset=
func (h *ClinicHandler) ListClients(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		respond.Error(w, http.StatusBadRequest, respond.CodeBadRequest, "limit must be an integer")
		return
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		respond.Error(w, http.StatusBadRequest, respond.CodeBadRequest, "offset must be an integer")
		return
	}
	clients, err := h.svc.ListClients(r.Context(), limit, offset)
	if err != nil {
		respond.Err(w, h.logger, err)
		return
	}
	if clients == nil {
		clients = []domain.Client{}
	}
	respond.JSON(w, http.StatusOK, clients)
}

// POST /clients
func (h *ClinicHandler) CreateClient(w http.ResponseWriter, r *http.Request) {
	var c domain.Client
	if !decodeJSON(w, r, &c) {
		return
	}
	if err := h.svc.CreateClient(r.Context(), &c); err != nil {
		respond.Err(w, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusCreated, c)
}

// GET /clients/{id}
func (h *ClinicHandler) GetClient(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	c, err := h.svc.GetClient(r.Context(), id)
	if err != nil {
		respond.Err(w, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, c)
}

// PUT /clients/{id}
func (h *ClinicHandler) UpdateClient(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var c domain.Client
	if !decodeJSON(w, r, &c) {
		return
	}
	if err := h.svc.UpdateClient(r.Context(), id, &c); err != nil {
		respond.Err(w, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, c)
}

// DELETE /clients/{id}
func (h *ClinicHandler) DeleteClient(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.svc.DeleteClient(r.Context(), id); err != nil {
		respond.Err(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GET /clients/{id}/pets
func (h *ClinicHandler) ListPets(w http.ResponseWriter, r *http.Request) {
	clientID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	pets, err := h.svc.ListPets(r.Context(), clientID)
	if err != nil {
		respond.Err(w, h.logger, err)
		return
	}
	if pets == nil {
		pets = []domain.Pet{}
	}
	respond.JSON(w, http.StatusOK, pets)
}

// POST /clients/{id}/pets
func (h *ClinicHandler) CreatePet(w http.ResponseWriter, r *http.Request) {
	clientID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var p domain.Pet
	if !decodeJSON(w, r, &p) {
		return
	}
	if err := h.svc.CreatePet(r.Context(), clientID, &p); err != nil {
		respond.Err(w, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusCreated, p)
}

// GET /pets/{id}
func (h *ClinicHandler) GetPet(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	p, err := h.svc.GetPet(r.Context(), id)
	if err != nil {
		respond.Err(w, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, p)
}

// PUT /pets/{id}
func (h *ClinicHandler) UpdatePet(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var p domain.Pet
	if !decodeJSON(w, r, &p) {
		return
	}
	if err := h.svc.UpdatePet(r.Context(), id, &p); err != nil {
		respond.Err(w, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, p)
}

// DELETE /pets/{id}
func (h *ClinicHandler) DeletePet(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.svc.DeletePet(r.Context(), id); err != nil {
		respond.Err(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func queryTime(r *http.Request, name string) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, raw)
}

// GET /appointments?from=&to= (RFC 3339)
func (h *ClinicHandler) ListAppointments(w http.ResponseWriter, r *http.Request) {
	from, err := queryTime(r, "from")
	if err != nil {
		respond.Error(w, http.StatusBadRequest, respond.CodeBadRequest, "from must be an RFC 3339 timestamp")
		return
	}
	to, err := queryTime(r, "to")
	if err != nil {
		respond.Error(w, http.StatusBadRequest, respond.CodeBadRequest, "to must be an RFC 3339 timestamp")
		return
	}
	appts, err := h.svc.ListAppointments(r.Context(), from, to)
	if err != nil {
		respond.Err(w, h.logger, err)
		return
	}
	if appts == nil {
		appts = []domain.Appointment{}
	}
	respond.JSON(w, http.StatusOK, appts)
}

// POST /appointments
func (h *ClinicHandler) CreateAppointment(w http.ResponseWriter, r *http.Request) {
	var a domain.Appointment
	if !decodeJSON(w, r, &a) {
		return
	}
	if err := h.svc.CreateAppointment(r.Context(), &a); err != nil {
		respond.Err(w, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusCreated, a)
}

type appointmentStatusRequest struct {
	Status domain.AppointmentStatus `json:"status"`
}

// PATCH /appointments/{id}/status
func (h *ClinicHandler) UpdateAppointmentStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req appointmentStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	a, err := h.svc.UpdateAppointmentStatus(r.Context(), id, req.Status)
	if err != nil {
		respond.Err(w, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, a)
}
