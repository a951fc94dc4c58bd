package bills

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/quitado/quitado/internal/auth"
	"github.com/quitado/quitado/internal/platform/httpx"
)

// Handler serves the bill endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers bill routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.listBills)
	r.Post("/", h.createBill)
	r.Get("/mine", h.listMyBills)
	r.Get("/{id}", h.getBill)
	r.Put("/{id}", h.updateBill)
	r.Delete("/{id}", h.deleteBill)
	r.Post("/{id}/participants/paid", h.markParticipantPaid)
	r.Get("/{id}/monthly-values", h.listMonthlyValues)
	r.Put("/{id}/monthly-values", h.upsertMonthlyValues)
}

func billID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func respondBillError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrSharesNotHundred) {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	httpx.RespondError(w, err)
}

func (h *Handler) listBills(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.List(r.Context())
	if err != nil {
		h.logger.Error("list bills", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"bills": list})
}

func (h *Handler) listMyBills(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())
	list, err := h.service.ListByUser(r.Context(), userID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"bills": list})
}

func (h *Handler) createBill(w http.ResponseWriter, r *http.Request) {
	var in CreateBillInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	in.OwnerID, _ = auth.UserID(r.Context())

	bill, err := h.service.Create(r.Context(), in)
	if err != nil {
		h.logger.Warn("create bill", slog.Any("error", err))
		respondBillError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, bill)
}

func (h *Handler) getBill(w http.ResponseWriter, r *http.Request) {
	id, err := billID(r)
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	bill, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, bill)
}

func (h *Handler) updateBill(w http.ResponseWriter, r *http.Request) {
	id, err := billID(r)
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	var in UpdateBillInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	bill, err := h.service.Update(r.Context(), id, in)
	if err != nil {
		respondBillError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, bill)
}

func (h *Handler) deleteBill(w http.ResponseWriter, r *http.Request) {
	id, err := billID(r)
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	userID, _ := auth.UserID(r.Context())
	if err := h.service.Delete(r.Context(), id, userID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *Handler) markParticipantPaid(w http.ResponseWriter, r *http.Request) {
	id, err := billID(r)
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	userID, _ := auth.UserID(r.Context())
	if err := h.service.MarkParticipantPaid(r.Context(), id, userID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "paid"})
}

func (h *Handler) listMonthlyValues(w http.ResponseWriter, r *http.Request) {
	id, err := billID(r)
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	values, err := h.service.MonthlyValues(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"monthly_values": values})
}

type monthlyValuesRequest struct {
	Values []MonthlyValueInput `json:"values" validate:"required,min=1,dive"`
}

func (h *Handler) upsertMonthlyValues(w http.ResponseWriter, r *http.Request) {
	id, err := billID(r)
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	var req monthlyValuesRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.service.UpsertMonthlyValues(r.Context(), id, req.Values); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "updated"})
}
