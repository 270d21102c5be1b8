package order_api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"ms-backoffice/internal/auth"
	"ms-backoffice/internal/models"
	"ms-backoffice/internal/order"
	"ms-backoffice/internal/payment"
	"ms-backoffice/internal/payment/storage"
	"ms-backoffice/internal/utils"
)

// PaymentPage is the public view behind a payment link token. A dead link
// still resolves: the summary comes back with link_usable=false so the
// client sees "expired, request a new link" rather than a 404.
func (h *Handler) PaymentPage(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	h.Logger.Info("API", "PaymentPage: received request")

	summary, err := h.OrderService.SummaryByLinkToken(r.Context(), token, time.Now())
	if err != nil {
		if errors.Is(err, order.ErrOrderNotFound) {
			utils.WriteJSON(w, http.StatusNotFound, utils.ErrorResponse("payment link not found", "no order matches this link"))
			return
		}
		h.Logger.Error("API", fmt.Sprintf("PaymentPage: %v", err))
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("internal error", "please retry"))
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("order summary", summary))
}

// SubmitProof accepts a multipart upload: an "amount" field, a
// "payment_type" field and a "proof" file part (JPEG, PNG or PDF, 5MB max).
func (h *Handler) SubmitProof(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	h.Logger.Info("API", "SubmitProof: received request")

	// Parse limit leaves headroom over the file cap so an oversized upload
	// gets the storage error, not a generic parse failure.
	if err := r.ParseMultipartForm(storage.MaxUploadBytes + 1<<20); err != nil {
		h.Logger.Error("API", fmt.Sprintf("SubmitProof: failed to parse multipart form: %v", err))
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("invalid upload", "expected a multipart form with amount, payment_type and proof file"))
		return
	}

	amount, err := strconv.ParseFloat(r.FormValue("amount"), 64)
	if err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("invalid upload", "amount must be a number"))
		return
	}
	req := models.SubmitProofRequest{
		Amount:      amount,
		PaymentType: models.PaymentType(r.FormValue("payment_type")),
	}

	file, header, err := r.FormFile("proof")
	if err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("invalid upload", "proof file is required"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, storage.MaxUploadBytes+1))
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("SubmitProof: failed to read proof file: %v", err))
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("invalid upload", "failed to read proof file"))
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}

	resp, err := h.Workflow.Submit(r.Context(), token, req, contentType, data, time.Now())
	if err != nil {
		h.writeWorkflowError(w, "SubmitProof", err)
		return
	}

	h.Logger.Info("API", fmt.Sprintf("SubmitProof: proof %s accepted", resp.ProofID))
	utils.WriteJSON(w, http.StatusCreated, utils.SuccessResponse("payment proof submitted", resp))
}

func (h *Handler) VerifyProof(w http.ResponseWriter, r *http.Request) {
	proofID := chi.URLParam(r, "proofId")
	adminID := adminIDFromRequest(r)
	h.Logger.Info("API", fmt.Sprintf("VerifyProof: proofId=%s admin=%s", proofID, adminID))

	req, ok := h.decodeReview(w, r)
	if !ok {
		return
	}

	updated, err := h.Workflow.Verify(r.Context(), proofID, adminID, req.AdminNotes, time.Now())
	if err != nil {
		h.writeWorkflowError(w, "VerifyProof", err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("payment proof verified", updated))
}

func (h *Handler) RejectProof(w http.ResponseWriter, r *http.Request) {
	proofID := chi.URLParam(r, "proofId")
	adminID := adminIDFromRequest(r)
	h.Logger.Info("API", fmt.Sprintf("RejectProof: proofId=%s admin=%s", proofID, adminID))

	req, ok := h.decodeReview(w, r)
	if !ok {
		return
	}

	updated, err := h.Workflow.Reject(r.Context(), proofID, adminID, req.AdminNotes, time.Now())
	if err != nil {
		h.writeWorkflowError(w, "RejectProof", err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("payment proof rejected", updated))
}

// TrackOrder is the permanent read-only view behind the verification token.
func (h *Handler) TrackOrder(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "verificationToken")
	h.Logger.Info("API", "TrackOrder: received request")

	summary, err := h.OrderService.SummaryByVerificationToken(r.Context(), token, time.Now())
	if err != nil {
		if errors.Is(err, order.ErrOrderNotFound) {
			utils.WriteJSON(w, http.StatusNotFound, utils.ErrorResponse("order not found", "no order matches this token"))
			return
		}
		h.Logger.Error("API", fmt.Sprintf("TrackOrder: %v", err))
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("internal error", "please retry"))
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("order summary", summary))
}

// adminIDFromRequest prefers the subject the middleware stored; a direct
// parse of the bearer token covers handlers mounted behind other auth.
func adminIDFromRequest(r *http.Request) string {
	if id := auth.AdminID(r.Context()); id != "" {
		return id
	}
	token, err := auth.ExtractTokenFromRequest(r)
	if err != nil {
		return ""
	}
	id, err := auth.ExtractAdminIDFromJWT(token)
	if err != nil {
		return ""
	}
	return id
}

func (h *Handler) decodeReview(w http.ResponseWriter, r *http.Request) (models.ReviewProofRequest, bool) {
	var req models.ReviewProofRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("invalid request body", err.Error()))
			return req, false
		}
	}
	return req, true
}

func (h *Handler) writeWorkflowError(w http.ResponseWriter, op string, err error) {
	var wfErr *payment.WorkflowError
	if errors.As(err, &wfErr) {
		h.Logger.Error("API", fmt.Sprintf("%s: category=%s status=%d: %s", op, wfErr.Category, wfErr.StatusCode, wfErr.InternalError))
		utils.WriteJSON(w, wfErr.StatusCode, utils.ErrorResponse(wfErr.Category, wfErr.PublicError))
		return
	}
	h.Logger.Error("API", fmt.Sprintf("%s: %v", op, err))
	utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("internal error", "please retry"))
}
