package order_api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"ms-backoffice/internal/logger"
	"ms-backoffice/internal/models"
	"ms-backoffice/internal/order"
	"ms-backoffice/internal/order/db"
	"ms-backoffice/internal/order/paymentlink"
	"ms-backoffice/internal/payment"
	"ms-backoffice/internal/utils"
)

type Handler struct {
	OrderService *order.OrderService
	Workflow     *payment.Workflow
	Logger       *logger.Logger
}

func NewHandler(orderService *order.OrderService, workflow *payment.Workflow, log *logger.Logger) *Handler {
	return &Handler{
		OrderService: orderService,
		Workflow:     workflow,
		Logger:       log,
	}
}

func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	h.Logger.Info("API", "CreateOrder: received request")

	var req models.CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Error("API", fmt.Sprintf("CreateOrder: failed to decode request body: %v", err))
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("invalid request body", err.Error()))
		return
	}

	created, err := h.OrderService.CreateOrder(r.Context(), req, time.Now())
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("CreateOrder: %v", err))
		h.writeOrderError(w, err)
		return
	}

	h.Logger.Info("API", fmt.Sprintf("CreateOrder: order %s created", created.OrderID))
	utils.WriteJSON(w, http.StatusCreated, utils.SuccessResponse("order created", created))
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")
	h.Logger.Info("API", fmt.Sprintf("GetOrder: orderId=%s", orderID))

	orderData, err := h.OrderService.GetOrder(r.Context(), orderID)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("GetOrder: %v", err))
		h.writeOrderError(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("order retrieved", orderData))
}

// Recalculate returns a pricing preview without persisting anything. Only
// available while the order is still negotiable.
func (h *Handler) Recalculate(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")
	h.Logger.Info("API", fmt.Sprintf("Recalculate: orderId=%s", orderID))

	var req models.RecalculateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Error("API", fmt.Sprintf("Recalculate: failed to decode request body: %v", err))
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("invalid request body", err.Error()))
		return
	}

	quote, err := h.OrderService.Recalculate(r.Context(), orderID, req)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("Recalculate: %v", err))
		h.writeOrderError(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("quote calculated", quote))
}

func (h *Handler) FinalizeNegotiation(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")
	h.Logger.Info("API", fmt.Sprintf("FinalizeNegotiation: orderId=%s", orderID))

	var req models.FinalizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Error("API", fmt.Sprintf("FinalizeNegotiation: failed to decode request body: %v", err))
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("invalid request body", err.Error()))
		return
	}
	if req.PaymentPlan != models.PaymentTypeDP && req.PaymentPlan != models.PaymentTypeFull {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("invalid request body", "payment_plan must be 'dp' or 'full'"))
		return
	}

	finalized, err := h.OrderService.FinalizeNegotiation(r.Context(), orderID, req, time.Now())
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("FinalizeNegotiation: %v", err))
		h.writeOrderError(w, err)
		return
	}

	h.Logger.Info("API", fmt.Sprintf("FinalizeNegotiation: order %s finalized at %.2f", orderID, finalized.FinalPrice))
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("negotiation finalized", finalized))
}

func (h *Handler) IssuePaymentLink(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")
	h.Logger.Info("API", fmt.Sprintf("IssuePaymentLink: orderId=%s", orderID))

	var req models.IssueLinkRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.Logger.Error("API", fmt.Sprintf("IssuePaymentLink: failed to decode request body: %v", err))
			utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("invalid request body", err.Error()))
			return
		}
	}

	link, err := h.OrderService.IssuePaymentLink(r.Context(), orderID, req.HoursValid, time.Now())
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("IssuePaymentLink: %v", err))
		h.writeOrderError(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusCreated, utils.SuccessResponse("payment link issued", link))
}

func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")
	adminID := adminIDFromRequest(r)
	h.Logger.Info("API", fmt.Sprintf("CancelOrder: orderId=%s admin=%s", orderID, adminID))

	if err := h.OrderService.CancelOrder(r.Context(), orderID, adminID, time.Now()); err != nil {
		h.Logger.Error("API", fmt.Sprintf("CancelOrder: %v", err))
		h.writeOrderError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// writeOrderError maps service errors onto status codes. Anything not
// recognized is a 500 with the details kept in the logs.
func (h *Handler) writeOrderError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, order.ErrOrderNotFound):
		utils.WriteJSON(w, http.StatusNotFound, utils.ErrorResponse("order not found", err.Error()))
	case errors.Is(err, order.ErrClientRequired):
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("invalid request", err.Error()))
	case errors.Is(err, order.ErrNotNegotiable),
		errors.Is(err, order.ErrCannotCancel),
		errors.Is(err, db.ErrOrderNotNegotiable),
		errors.Is(err, paymentlink.ErrActiveLinkExists),
		errors.Is(err, paymentlink.ErrOrderTerminal):
		utils.WriteJSON(w, http.StatusConflict, utils.ErrorResponse("operation not allowed in current state", err.Error()))
	case errors.Is(err, paymentlink.ErrInvalidValidity):
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("invalid request", err.Error()))
	default:
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("internal error", "please retry"))
	}
}
