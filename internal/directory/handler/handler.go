package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"juntas/internal/directory/models"
	id "juntas/pkg/domain"
	"juntas/pkg/platform/httputil"
	"juntas/pkg/requestcontext"
)

type Service interface {
	CreateUser(ctx context.Context, cmd models.CreateUserCommand) (*models.User, error)
	ListUsers(ctx context.Context) ([]*models.User, error)
	RegisterPatient(ctx context.Context, cmd models.RegisterPatientCommand) (*models.Patient, error)
	GetPatient(ctx context.Context, patientID id.PatientID) (*models.Patient, error)
}

// Handler exposes staff and patient directory endpoints.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/users", h.HandleCreateUser)
	r.Get("/users", h.HandleListUsers)
	r.Post("/patients", h.HandleRegisterPatient)
	r.Get("/patients/{id}", h.HandleGetPatient)
}

// HandleCreateUser handles POST /users.
func (h *Handler) HandleCreateUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[CreateUserRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	u, err := h.service.CreateUser(ctx, req.Command())
	if err != nil {
		h.logger.WarnContext(ctx, "create user failed",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toUserResponse(u))
}

// HandleListUsers handles GET /users.
func (h *Handler) HandleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUsers(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	resp := UserListResponse{Items: make([]UserResponse, 0, len(users))}
	for _, u := range users {
		resp.Items = append(resp.Items, toUserResponse(u))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// HandleRegisterPatient handles POST /patients.
func (h *Handler) HandleRegisterPatient(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[RegisterPatientRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	p, err := h.service.RegisterPatient(ctx, req.Command())
	if err != nil {
		h.logger.WarnContext(ctx, "register patient failed",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toPatientResponse(p))
}

// HandleGetPatient handles GET /patients/{id}.
func (h *Handler) HandleGetPatient(w http.ResponseWriter, r *http.Request) {
	patientID, err := id.ParsePatientID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	p, err := h.service.GetPatient(r.Context(), patientID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toPatientResponse(p))
}
