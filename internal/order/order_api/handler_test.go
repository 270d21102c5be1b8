package order_api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-backoffice/internal/logger"
	"ms-backoffice/internal/utils"
)

// These tests cover the request-parsing boundary: everything here must be
// rejected before any service is touched, so the handlers run with nil
// services.

func newParseTestHandler() *Handler {
	return &Handler{Logger: logger.NewLogger()}
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) utils.APIResponse {
	t.Helper()
	var resp utils.APIResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestCreateOrder_RejectsMalformedJSON(t *testing.T) {
	h := newParseTestHandler()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	h.CreateOrder(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeResponse(t, rec)
	assert.False(t, resp.Success)
}

func TestFinalizeNegotiation_RejectsUnknownPaymentPlan(t *testing.T) {
	h := newParseTestHandler()

	body := `{"payment_plan":"installments"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/order-1/finalize", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.FinalizeNegotiation(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeResponse(t, rec)
	assert.Contains(t, resp.Error, "payment_plan")
}

func multipartBody(t *testing.T, fields map[string]string, fileField, fileName string, file []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if fileField != "" {
		fw, err := w.CreateFormFile(fileField, fileName)
		require.NoError(t, err)
		_, err = fw.Write(file)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func submitRequest(body *bytes.Buffer, contentType string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payment/tok-1", body)
	req.Header.Set("Content-Type", contentType)

	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("token", "tok-1")
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestSubmitProof_RejectsNonNumericAmount(t *testing.T) {
	h := newParseTestHandler()

	body, ct := multipartBody(t, map[string]string{
		"amount":       "a lot",
		"payment_type": "dp",
	}, "proof", "proof.jpg", []byte("img"))

	rec := httptest.NewRecorder()
	h.SubmitProof(rec, submitRequest(body, ct))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeResponse(t, rec)
	assert.Contains(t, resp.Error, "amount")
}

func TestSubmitProof_RejectsMissingFile(t *testing.T) {
	h := newParseTestHandler()

	body, ct := multipartBody(t, map[string]string{
		"amount":       "27000000",
		"payment_type": "dp",
	}, "", "", nil)

	rec := httptest.NewRecorder()
	h.SubmitProof(rec, submitRequest(body, ct))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeResponse(t, rec)
	assert.Contains(t, resp.Error, "proof file")
}

func TestSubmitProof_RejectsNonMultipartBody(t *testing.T) {
	h := newParseTestHandler()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/payment/tok-1", strings.NewReader(`{"amount":1}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.SubmitProof(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
