package ledger

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/solarlink-crm/solarlink/internal/access"
	"github.com/solarlink-crm/solarlink/internal/platform/httpx"
)

const maxProofSize = 10 << 20 // 10 MiB

// Handler exposes the payment ledger over HTTP. Payments are submitted as
// multipart forms so the proof document travels with the record.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs a ledger handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

func (h *Handler) Record(w http.ResponseWriter, r *http.Request) {
	actor, ok := access.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "login required")
		return
	}
	projectID, err := uuid.Parse(chi.URLParam(r, "projectID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid project id")
		return
	}
	if err := r.ParseMultipartForm(maxProofSize); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "expected multipart form with proof file")
		return
	}

	req := RecordRequest{
		Mode: Mode(r.FormValue("mode")),
	}
	req.Amount, _ = strconv.ParseFloat(r.FormValue("amount"), 64)
	if v := r.FormValue("reference"); v != "" {
		req.Reference = &v
	}
	if v := r.FormValue("bank_name"); v != "" {
		req.BankName = &v
	}
	if v := r.FormValue("cheque_date"); v != "" {
		d, err := time.Parse("2006-01-02", v)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "cheque_date must be YYYY-MM-DD")
			return
		}
		req.ChequeDate = &d
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	file, header, err := r.FormFile("proof")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "proof of payment file required")
		return
	}
	defer file.Close()

	payment, err := h.service.Record(r.Context(), actor, projectID, req, header.Filename, file)
	if err != nil {
		h.logger.Warn("record payment", slog.String("project", projectID.String()), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, payment)
}

func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	actor, ok := access.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "login required")
		return
	}
	paymentID, err := strconv.ParseInt(chi.URLParam(r, "paymentID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid payment id")
		return
	}
	var req DecisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid json body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	payment, err := h.service.Verify(r.Context(), actor, paymentID, req)
	if err != nil {
		h.logger.Warn("verify payment", slog.Int64("payment", paymentID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, payment)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := access.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "login required")
		return
	}
	projectID, err := uuid.Parse(chi.URLParam(r, "projectID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid project id")
		return
	}
	payments, err := h.service.List(r.Context(), actor, projectID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": payments})
}

func (h *Handler) Settlement(w http.ResponseWriter, r *http.Request) {
	actor, ok := access.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "login required")
		return
	}
	projectID, err := uuid.Parse(chi.URLParam(r, "projectID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid project id")
		return
	}
	settlement, err := h.service.Settle(r.Context(), actor, projectID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, settlement)
}

func (h *Handler) Proof(w http.ResponseWriter, r *http.Request) {
	actor, ok := access.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "login required")
		return
	}
	paymentID, err := strconv.ParseInt(chi.URLParam(r, "paymentID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid payment id")
		return
	}
	proof, err := h.service.Proof(r.Context(), actor, paymentID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	defer proof.Close()
	w.Header().Set("Content-Type", "application/octet-stream")
	if _, err := io.Copy(w, proof); err != nil {
		h.logger.Warn("stream proof", slog.Int64("payment", paymentID), slog.Any("error", err))
	}
}
