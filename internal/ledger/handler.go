package ledger

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/quitado/quitado/internal/auth"
	"github.com/quitado/quitado/internal/money"
	"github.com/quitado/quitado/internal/platform/httpx"
)

// Handler serves the balance and settlement endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers balance routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/me", h.mySummary)
	r.Get("/user/{id}", h.userSummary)
	r.Get("/all", h.allBalances)
	r.Get("/history", h.history)
	r.Get("/debts/{creditorID}", h.debtDetail)
	r.Get("/credits/{debtorID}", h.creditDetail)
	r.Get("/charge-message", h.chargeMessage)
	r.Post("/confirm-payment", h.confirmPayment)
}

func respondLedgerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrUserNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrNoOutstandingDebt):
		httpx.Problem(w, http.StatusNotFound, "No Outstanding Debt", err.Error())
	case errors.Is(err, ErrPayerNotParticipant), errors.Is(err, ErrInvalidAmount):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		httpx.RespondError(w, err)
	}
}

func (h *Handler) mySummary(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())
	summary, err := h.service.Summary(r.Context(), userID)
	if err != nil {
		respondLedgerError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

func (h *Handler) userSummary(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	summary, err := h.service.Summary(r.Context(), id)
	if err != nil {
		respondLedgerError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

func (h *Handler) allBalances(w http.ResponseWriter, r *http.Request) {
	balances, err := h.service.AllBalances(r.Context())
	if err != nil {
		h.logger.Error("list balances", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"balances": balances})
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	var userID *int64
	if raw := r.URL.Query().Get("user_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			httpx.RespondError(w, httpx.ErrValidation)
			return
		}
		userID = &id
	}
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	entries, pagination, err := h.service.History(r.Context(), userID, page, perPage)
	if err != nil {
		respondLedgerError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"entries": entries, "pagination": pagination})
}

func (h *Handler) debtDetail(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())
	creditorID, err := strconv.ParseInt(chi.URLParam(r, "creditorID"), 10, 64)
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	detail, err := h.service.DebtDetail(r.Context(), userID, creditorID)
	if err != nil {
		respondLedgerError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, detail)
}

func (h *Handler) creditDetail(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())
	debtorID, err := strconv.ParseInt(chi.URLParam(r, "debtorID"), 10, 64)
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	detail, err := h.service.CreditDetail(r.Context(), userID, debtorID)
	if err != nil {
		respondLedgerError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, detail)
}

func (h *Handler) chargeMessage(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())
	msg, err := h.service.ChargeMessage(r.Context(), userID)
	if err != nil {
		respondLedgerError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"message": msg})
}

type confirmPaymentRequest struct {
	DebtorID int64   `json:"debtor_id" validate:"required,gt=0"`
	Amount   *string `json:"amount,omitempty"`
}

// confirmPayment is called by the creditor to acknowledge money received
// outside the system. A missing amount settles the whole balance.
func (h *Handler) confirmPayment(w http.ResponseWriter, r *http.Request) {
	creditorID, _ := auth.UserID(r.Context())

	var req confirmPaymentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	in := SettleInput{DebtorID: req.DebtorID, CreditorID: creditorID}
	if req.Amount != nil {
		amount, err := money.FromString(*req.Amount)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "amount must be a decimal string")
			return
		}
		in.Amount = &amount
	}

	result, err := h.service.Settle(r.Context(), in)
	if err != nil {
		h.logger.Warn("settlement failed",
			slog.Int64("debtor_id", req.DebtorID),
			slog.Int64("creditor_id", creditorID),
			slog.Any("error", err))
		respondLedgerError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}
