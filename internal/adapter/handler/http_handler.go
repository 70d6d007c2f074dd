package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/rl1809/storefront-checkout/internal/adapter/commerce"
	"github.com/rl1809/storefront-checkout/internal/core/checkout"
	"github.com/rl1809/storefront-checkout/internal/core/domain"
	"github.com/rl1809/storefront-checkout/internal/core/service"
)

const (
	headerCartID    = "X-Cart-Id"
	headerCartToken = "X-Cart-Token"

	defaultRequestTimeout = 30 * time.Second
)

type HTTPHandler struct {
	carts    *service.CartService
	checkout *service.CheckoutService
	methods  domain.PaymentMethods
	timeout  time.Duration
	logger   *zap.Logger
}

func NewHTTPHandler(carts *service.CartService, checkout *service.CheckoutService, methods domain.PaymentMethods, timeout time.Duration, logger *zap.Logger) *HTTPHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return &HTTPHandler{carts: carts, checkout: checkout, methods: methods, timeout: timeout, logger: logger}
}

type ErrorResponse struct {
	Error  string            `json:"error"`
	Code   string            `json:"code,omitempty"`
	Fields map[string]string `json:"fields,omitempty"`
}

type AddItemRequest struct {
	ProductID string       `json:"product_id"`
	VariantID string       `json:"variant_id"`
	Quantity  int          `json:"quantity"`
	Price     domain.Money `json:"price"`
}

type CartResponse struct {
	CartID    string          `json:"cart_id"`
	CartToken string          `json:"cart_token,omitempty"`
	Created   bool            `json:"created"`
	Cart      domain.CartView `json:"cart"`
}

// FieldChangeRequest carries one form field edit.
type FieldChangeRequest struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

type SelectPaymentRequest struct {
	Method string `json:"method"`
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GET /api/payment-methods
func (h *HTTPHandler) PaymentMethods(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.methods.Enabled())
}

// GET /api/cart
func (h *HTTPHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	view, err := h.carts.View(ctx, cartRefFromRequest(r))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

// POST /api/cart/items
func (h *HTTPHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req AddItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	res, err := h.carts.AddItem(ctx, cartRefFromRequest(r), domain.NewCartItem{
		ProductID: req.ProductID,
		VariantID: req.VariantID,
		Quantity:  req.Quantity,
		Price:     req.Price,
	})
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	if res.Created {
		w.Header().Set(headerCartID, res.CartID)
		w.Header().Set(headerCartToken, res.CartToken)
	}
	respondJSON(w, http.StatusOK, CartResponse{
		CartID:    res.CartID,
		CartToken: res.CartToken,
		Created:   res.Created,
		Cart:      h.carts.Normalize(res.Cart),
	})
}

// DELETE /api/cart/items/{itemID}
func (h *HTTPHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	ref := cartRefFromRequest(r)
	cart, err := h.carts.RemoveItem(ctx, ref, chi.URLParam(r, "itemID"))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, CartResponse{CartID: ref.CartID, CartToken: ref.CartToken, Cart: h.carts.Normalize(cart)})
}

// POST /api/checkout/sessions
func (h *HTTPHandler) StartSession(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	view, err := h.checkout.StartSession(ctx, cartRefFromRequest(r))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, view)
}

// GET /api/checkout/sessions/{sessionID}
func (h *HTTPHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	view, err := h.checkout.Session(ctx, chi.URLParam(r, "sessionID"))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

// DELETE /api/checkout/sessions/{sessionID}
func (h *HTTPHandler) AbandonSession(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.checkout.Abandon(ctx, chi.URLParam(r, "sessionID")); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PUT /api/checkout/sessions/{sessionID}/user-data
func (h *HTTPHandler) UpdateUserData(w http.ResponseWriter, r *http.Request) {
	var req domain.UserDataFields
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	h.sessionCall(w, r, func(ctx context.Context, id string) (*service.SessionView, error) {
		return h.checkout.UpdateUserData(ctx, id, req)
	})
}

// PUT /api/checkout/sessions/{sessionID}/shipping-address
func (h *HTTPHandler) UpdateShippingAddress(w http.ResponseWriter, r *http.Request) {
	var req domain.ShippingAddressFields
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	h.sessionCall(w, r, func(ctx context.Context, id string) (*service.SessionView, error) {
		return h.checkout.UpdateShippingAddress(ctx, id, req)
	})
}

// PATCH /api/checkout/sessions/{sessionID}/user-data
func (h *HTTPHandler) SetUserField(w http.ResponseWriter, r *http.Request) {
	var req FieldChangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	h.sessionCall(w, r, func(ctx context.Context, id string) (*service.SessionView, error) {
		return h.checkout.SetUserField(ctx, id, req.Field, req.Value)
	})
}

// PATCH /api/checkout/sessions/{sessionID}/shipping-address
func (h *HTTPHandler) SetShippingField(w http.ResponseWriter, r *http.Request) {
	var req FieldChangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	h.sessionCall(w, r, func(ctx context.Context, id string) (*service.SessionView, error) {
		return h.checkout.SetShippingField(ctx, id, req.Field, req.Value)
	})
}

// PUT /api/checkout/sessions/{sessionID}/payment
func (h *HTTPHandler) SelectPayment(w http.ResponseWriter, r *http.Request) {
	var req SelectPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	h.sessionCall(w, r, func(ctx context.Context, id string) (*service.SessionView, error) {
		return h.checkout.SelectPayment(ctx, id, req.Method)
	})
}

// POST /api/checkout/sessions/{sessionID}/next
func (h *HTTPHandler) Next(w http.ResponseWriter, r *http.Request) {
	h.sessionCall(w, r, h.checkout.Next)
}

// POST /api/checkout/sessions/{sessionID}/back
func (h *HTTPHandler) Back(w http.ResponseWriter, r *http.Request) {
	h.sessionCall(w, r, h.checkout.Back)
}

func (h *HTTPHandler) sessionCall(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, id string) (*service.SessionView, error)) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	view, err := fn(ctx, chi.URLParam(r, "sessionID"))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

// cartRefFromRequest reads the cart id, anonymous cart token and customer token
// the storefront keeps in its cookies and forwards as headers.
func cartRefFromRequest(r *http.Request) domain.CartRef {
	ref := domain.CartRef{
		CartID:    strings.TrimSpace(r.Header.Get(headerCartID)),
		CartToken: strings.TrimSpace(r.Header.Get(headerCartToken)),
	}
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		ref.CustomerToken = strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return ref
}

func (h *HTTPHandler) respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, resp := errorResponse(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", zap.String("path", r.URL.Path), zap.Int("status", status), zap.Error(err))
	}
	respondJSON(w, status, resp)
}

func errorResponse(err error) (int, ErrorResponse) {
	var verr *checkout.ValidationError
	if errors.As(err, &verr) {
		return http.StatusUnprocessableEntity, ErrorResponse{Error: verr.Error(), Code: "validation_failed", Fields: verr.Fields}
	}

	switch {
	case errors.Is(err, service.ErrSessionNotFound):
		return http.StatusNotFound, ErrorResponse{Error: err.Error(), Code: "session_not_found"}
	case errors.Is(err, checkout.ErrInFlight):
		return http.StatusConflict, ErrorResponse{Error: err.Error(), Code: "in_flight"}
	case errors.Is(err, service.ErrDuplicateOrder):
		return http.StatusConflict, ErrorResponse{Error: err.Error(), Code: "duplicate_order"}
	case errors.Is(err, checkout.ErrMissingCart), errors.Is(err, service.ErrNoCart):
		return http.StatusConflict, ErrorResponse{Error: err.Error(), Code: "missing_cart"}
	case errors.Is(err, checkout.ErrCheckoutComplete):
		return http.StatusConflict, ErrorResponse{Error: err.Error(), Code: "checkout_complete"}
	case errors.Is(err, checkout.ErrNoFulfillmentGroup),
		errors.Is(err, checkout.ErrMultipleFulfillmentGroups),
		errors.Is(err, checkout.ErrNoFulfillmentOption),
		errors.Is(err, checkout.ErrFulfillmentNotSelected),
		errors.Is(err, checkout.ErrShippingIncomplete),
		errors.Is(err, checkout.ErrPaymentNotSelected):
		return http.StatusConflict, ErrorResponse{Error: err.Error(), Code: "checkout_precondition"}
	case errors.Is(err, checkout.ErrPaymentMethodUnavailable),
		errors.Is(err, checkout.ErrUnknownField),
		errors.Is(err, service.ErrInvalidItem):
		return http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "invalid_request"}
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, ErrorResponse{Error: "commerce backend timed out", Code: "upstream_timeout"}
	}

	var cerr *checkout.CommerceError
	var apiErr *commerce.APIError
	if errors.As(err, &cerr) || errors.As(err, &apiErr) {
		return http.StatusBadGateway, ErrorResponse{Error: err.Error(), Code: "upstream_error"}
	}
	return http.StatusInternalServerError, ErrorResponse{Error: "internal server error", Code: "internal_error"}
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{Error: message, Code: code})
}
