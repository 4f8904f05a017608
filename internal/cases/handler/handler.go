package handler

import (
	"context"
	"log/slog"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"juntas/internal/cases/models"
	id "juntas/pkg/domain"
	"juntas/pkg/platform/audit"
	"juntas/pkg/platform/httputil"
	"juntas/pkg/requestcontext"
)

const defaultMaxUploadBytes = 20 << 20

type Service interface {
	Create(ctx context.Context, cmd models.CreateCaseCommand) (*models.CaseSummary, error)
	List(ctx context.Context, q models.ListCasesQuery) (*models.CaseList, error)
	Get(ctx context.Context, caseID id.CaseID) (*models.CaseDetail, error)
	Update(ctx context.Context, caseID id.CaseID, cmd models.UpdateCaseCommand) (*models.CaseSummary, error)
	Delete(ctx context.Context, caseID id.CaseID) error
	SubmitDictamen(ctx context.Context, caseID id.CaseID, cmd models.SubmitDictamenCommand) (*models.DictamenSubmission, error)
	GetDictamen(ctx context.Context, caseID id.CaseID) (*models.Dictamen, error)
	UploadDocument(ctx context.Context, caseID id.CaseID, cmd models.UploadDocumentCommand) (*models.DocumentSlot, error)
	DownloadDocument(ctx context.Context, caseID id.CaseID, docID id.DocumentID) (*models.SlotContent, error)
	ListEvents(ctx context.Context, caseID id.CaseID) ([]audit.Event, error)
}

// Handler wires the case endpoints to the case service.
type Handler struct {
	service        Service
	logger         *slog.Logger
	maxUploadBytes int64
}

func New(service Service, logger *slog.Logger, maxUploadBytes int64) *Handler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = defaultMaxUploadBytes
	}
	return &Handler{service: service, logger: logger, maxUploadBytes: maxUploadBytes}
}

// Register mounts case endpoints on the router. Authentication is applied
// by the caller.
func (h *Handler) Register(r chi.Router) {
	r.Route("/cases", func(r chi.Router) {
		r.Post("/", h.HandleCreate)
		r.Get("/", h.HandleList)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.HandleGet)
			r.Put("/", h.HandleUpdate)
			r.Delete("/", h.HandleDelete)
			r.Post("/dictamen", h.HandleSubmitDictamen)
			r.Get("/dictamen", h.HandleGetDictamen)
			r.Post("/documents", h.HandleUploadDocument)
			r.Get("/documents/{docId}/download", h.HandleDownloadDocument)
			r.Get("/events", h.HandleListEvents)
		})
	})
}

// HandleCreate handles POST /cases.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[CreateCaseRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	summary, err := h.service.Create(ctx, req.Command())
	if err != nil {
		h.fail(ctx, w, "create case failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toCaseResponse(*summary))
}

// HandleList handles GET /cases.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q, err := parseListQuery(r.URL.Query())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	list, err := h.service.List(ctx, q)
	if err != nil {
		h.fail(ctx, w, "list cases failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toCaseListResponse(list))
}

// HandleGet handles GET /cases/{id}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	caseID, ok := parseCaseID(w, r)
	if !ok {
		return
	}
	detail, err := h.service.Get(r.Context(), caseID)
	if err != nil {
		h.fail(r.Context(), w, "get case failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toCaseDetailResponse(detail))
}

// HandleUpdate handles PUT /cases/{id}.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caseID, ok := parseCaseID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[UpdateCaseRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	summary, err := h.service.Update(ctx, caseID, req.Command())
	if err != nil {
		h.fail(ctx, w, "update case failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toCaseResponse(*summary))
}

// HandleDelete handles DELETE /cases/{id}.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	caseID, ok := parseCaseID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), caseID); err != nil {
		h.fail(r.Context(), w, "delete case failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleSubmitDictamen handles POST /cases/{id}/dictamen.
func (h *Handler) HandleSubmitDictamen(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caseID, ok := parseCaseID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[SubmitDictamenRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	res, err := h.service.SubmitDictamen(ctx, caseID, req.Command())
	if err != nil {
		h.fail(ctx, w, "submit dictamen failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, SubmitDictamenResponse{
		Dictamen: toDictamenResponse(res.Dictamen),
		Case:     toCaseResponse(res.Summary),
	})
}

// HandleGetDictamen handles GET /cases/{id}/dictamen.
func (h *Handler) HandleGetDictamen(w http.ResponseWriter, r *http.Request) {
	caseID, ok := parseCaseID(w, r)
	if !ok {
		return
	}
	d, err := h.service.GetDictamen(r.Context(), caseID)
	if err != nil {
		h.fail(r.Context(), w, "get dictamen failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, DictamenEnvelope{Dictamen: toDictamenResponse(d)})
}

// HandleUploadDocument handles POST /cases/{id}/documents.
func (h *Handler) HandleUploadDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caseID, ok := parseCaseID(w, r)
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	req, ok := httputil.DecodeAndPrepare[UploadDocumentRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	slot, err := h.service.UploadDocument(ctx, caseID, req.Command())
	if err != nil {
		h.fail(ctx, w, "upload document failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toDocumentResponse(slot))
}

// HandleDownloadDocument handles GET /cases/{id}/documents/{docId}/download.
func (h *Handler) HandleDownloadDocument(w http.ResponseWriter, r *http.Request) {
	caseID, ok := parseCaseID(w, r)
	if !ok {
		return
	}
	docID, err := id.ParseDocumentID(chi.URLParam(r, "docId"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	content, err := h.service.DownloadDocument(r.Context(), caseID, docID)
	if err != nil {
		h.fail(r.Context(), w, "download document failed", err)
		return
	}

	w.Header().Set("Content-Type", content.MimeType)
	w.Header().Set("Content-Length", strconv.Itoa(len(content.Content)))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": content.Name}))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(content.Content)
}

// HandleListEvents handles GET /cases/{id}/events.
func (h *Handler) HandleListEvents(w http.ResponseWriter, r *http.Request) {
	caseID, ok := parseCaseID(w, r)
	if !ok {
		return
	}
	events, err := h.service.ListEvents(r.Context(), caseID)
	if err != nil {
		h.fail(r.Context(), w, "list case events failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toEventListResponse(events))
}

func parseCaseID(w http.ResponseWriter, r *http.Request) (id.CaseID, bool) {
	caseID, err := id.ParseCaseID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return id.CaseID{}, false
	}
	return caseID, true
}

func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	actor := requestcontext.Actor(ctx)
	h.logger.WarnContext(ctx, msg,
		"request_id", requestcontext.RequestID(ctx),
		"actor_id", actor.ID,
		"actor_role", actor.Role,
		"error", err,
	)
	httputil.WriteError(w, err)
}
