package projects

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/solarlink-crm/solarlink/internal/access"
	"github.com/solarlink-crm/solarlink/internal/platform/httpx"
	"github.com/solarlink-crm/solarlink/internal/timeline"
)

// Handler exposes the project lifecycle over HTTP. All policy and ownership
// decisions live in the engine; the handler only shapes requests and views.
type Handler struct {
	logger   *slog.Logger
	engine   *Engine
	timeline *timeline.Service
	validate *validator.Validate
}

// NewHandler constructs a projects handler.
func NewHandler(logger *slog.Logger, engine *Engine, tl *timeline.Service) *Handler {
	return &Handler{logger: logger, engine: engine, timeline: tl, validate: validator.New()}
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateProjectRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid json body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	actor, ok := access.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "login required")
		return
	}
	p, err := h.engine.Create(r.Context(), req, actor)
	if err != nil {
		h.logger.Error("create project", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, NewView(p, actor, h.engine.Now()))
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := access.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "login required")
		return
	}
	req := ListProjectsRequest{}
	q := r.URL.Query()
	if s := q.Get("status"); s != "" {
		status := Status(s)
		if !status.Valid() {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "unknown status filter")
			return
		}
		req.Status = &status
	}
	if s := q.Get("q"); s != "" {
		req.Search = &s
	}
	req.Limit, _ = strconv.Atoi(q.Get("limit"))
	req.Offset, _ = strconv.Atoi(q.Get("offset"))

	items, total, err := h.engine.List(r.Context(), req, actor)
	if err != nil {
		h.logger.Error("list projects", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"items": NewViews(items, actor, h.engine.Now()),
		"total": total,
	})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.actorAndID(w, r)
	if !ok {
		return
	}
	p, err := h.engine.Get(r.Context(), id, actor)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, NewView(p, actor, h.engine.Now()))
}

func (h *Handler) Forward(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.actorAndID(w, r)
	if !ok {
		return
	}
	p, err := h.engine.Forward(r.Context(), id, actor)
	if err != nil {
		h.logger.Warn("forward project", slog.String("project", id.String()), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, NewView(p, actor, h.engine.Now()))
}

func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.actorAndID(w, r)
	if !ok {
		return
	}
	var req ApproveRequest
	if err := httpx.DecodeJSON(r, &req); err != nil && r.ContentLength > 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid json body")
		return
	}
	p, err := h.engine.Approve(r.Context(), id, actor, req.Note)
	if err != nil {
		h.logger.Warn("approve project", slog.String("project", id.String()), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, NewView(p, actor, h.engine.Now()))
}

func (h *Handler) Reject(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.actorAndID(w, r)
	if !ok {
		return
	}
	var req RejectRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid json body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	p, err := h.engine.Reject(r.Context(), id, actor, req.Reason)
	if err != nil {
		h.logger.Warn("reject project", slog.String("project", id.String()), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, NewView(p, actor, h.engine.Now()))
}

func (h *Handler) AssignOps(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.actorAndID(w, r)
	if !ok {
		return
	}
	var req AssignOpsRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid json body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	p, err := h.engine.AssignOps(r.Context(), id, actor, req.OpsUserID)
	if err != nil {
		h.logger.Warn("assign ops", slog.String("project", id.String()), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, NewView(p, actor, h.engine.Now()))
}

func (h *Handler) UpdateWorkStatus(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.actorAndID(w, r)
	if !ok {
		return
	}
	var req WorkStatusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid json body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	p, err := h.engine.UpdateWorkStatus(r.Context(), id, actor, req.Status)
	if err != nil {
		h.logger.Warn("update work status", slog.String("project", id.String()), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, NewView(p, actor, h.engine.Now()))
}

func (h *Handler) Override(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.actorAndID(w, r)
	if !ok {
		return
	}
	var req OverrideRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid json body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	p, err := h.engine.AdminOverride(r.Context(), id, actor, req.TargetStatus, req.Reason)
	if err != nil {
		h.logger.Warn("admin override", slog.String("project", id.String()), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, NewView(p, actor, h.engine.Now()))
}

// Timeline lists the append-only history for a project the caller can see.
func (h *Handler) Timeline(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.actorAndID(w, r)
	if !ok {
		return
	}
	if _, err := h.engine.Get(r.Context(), id, actor); err != nil {
		httpx.RespondError(w, err)
		return
	}
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	result, err := h.timeline.List(r.Context(), id, page, pageSize)
	if err != nil {
		h.logger.Error("list timeline", slog.String("project", id.String()), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) actorAndID(w http.ResponseWriter, r *http.Request) (access.Actor, uuid.UUID, bool) {
	actor, ok := access.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "login required")
		return access.Actor{}, uuid.Nil, false
	}
	id, err := uuid.Parse(chi.URLParam(r, "projectID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid project id")
		return access.Actor{}, uuid.Nil, false
	}
	return actor, id, true
}
