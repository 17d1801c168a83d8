package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/diagnosis/museum-tickets/internal/access"
	"github.com/diagnosis/museum-tickets/internal/domain"
	"github.com/diagnosis/museum-tickets/internal/http/middleware"
	"github.com/diagnosis/museum-tickets/internal/http/response"
	"github.com/diagnosis/museum-tickets/internal/reservation"
	"github.com/diagnosis/museum-tickets/internal/utils"
	"github.com/diagnosis/museum-tickets/pkg/logger"
)

type OrderHandlerOptions struct {
	// EntryPath is where callers without access to an order are sent.
	EntryPath            string
	StripePublishableKey string
	Currency             string
	// CheckoutMiddleware wraps POST checkout, e.g. idempotency replay.
	CheckoutMiddleware []func(http.Handler) http.Handler
}

type OrderHandler struct {
	svc   reservation.Service
	guard *access.Guard
	opts  OrderHandlerOptions
}

func NewOrderHandler(svc reservation.Service, guard *access.Guard, opts OrderHandlerOptions) *OrderHandler {
	if opts.EntryPath == "" {
		opts.EntryPath = "/"
	}
	if opts.Currency == "" {
		opts.Currency = "eur"
	}
	return &OrderHandler{svc: svc, guard: guard, opts: opts}
}

// Routes expects the VisitorSession middleware to run before it.
func (h *OrderHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.create)

	r.Route("/{id}", func(r chi.Router) {
		r.Use(h.requireOwner)
		r.Get("/", h.get)
		r.Post("/tickets", h.attachTickets)
		r.Delete("/tickets/{ticketId}", h.removeTicket)
		r.Get("/checkout", h.checkout)
		r.With(h.opts.CheckoutMiddleware...).Post("/checkout", h.checkout)
	})
	return r
}

func (h *OrderHandler) create(w http.ResponseWriter, r *http.Request) {
	var in createOrderReq
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		response.BadRequest(w, "Invalid JSON format")
		return
	}

	visitDate, err := domain.ParseDate(strings.TrimSpace(in.VisitDate))
	if err != nil {
		response.BadRequest(w, "visit_date must be YYYY-MM-DD")
		return
	}
	duration, ok := domain.ParseVisitDuration(strings.TrimSpace(in.Duration))
	if !ok {
		response.BadRequest(w, "duration must be 'half' or 'full'")
		return
	}
	if !utils.IsValidEmail(in.Email) {
		response.BadRequest(w, "a valid email is required")
		return
	}

	order, err := h.svc.CreateOrder(r.Context(), reservation.CreateOrderInput{
		SessionToken: middleware.SessionID(r),
		VisitDate:    visitDate,
		Duration:     duration,
		Email:        utils.NormalizeEmail(in.Email),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/v1/orders/%d", order.ID))
	response.WriteJSON(w, http.StatusCreated, toOrderDTO(order))
}

func (h *OrderHandler) get(w http.ResponseWriter, r *http.Request) {
	order, err := h.svc.GetOrder(r.Context(), orderID(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, toOrderDTO(order))
}

func (h *OrderHandler) attachTickets(w http.ResponseWriter, r *http.Request) {
	var in attachTicketsReq
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		response.BadRequest(w, "Invalid JSON format")
		return
	}
	if len(in.Visitors) == 0 {
		response.BadRequest(w, "at least one visitor is required")
		return
	}

	visitors := make([]domain.Visitor, 0, len(in.Visitors))
	for i, v := range in.Visitors {
		birth, err := domain.ParseDate(strings.TrimSpace(v.BirthDate))
		if err != nil {
			response.BadRequest(w, fmt.Sprintf("visitors[%d].birth_date must be YYYY-MM-DD", i))
			return
		}
		visitor := domain.Visitor{
			FirstName:        utils.NormalizeString(v.FirstName),
			LastName:         utils.NormalizeString(v.LastName),
			Country:          utils.NormalizeCountry(v.Country),
			BirthDate:        birth,
			DiscountEligible: v.DiscountEligible,
		}
		if visitor.FirstName == "" || visitor.LastName == "" || visitor.Country == "" {
			response.BadRequest(w, fmt.Sprintf("visitors[%d] needs first_name, last_name and country", i))
			return
		}
		visitors = append(visitors, visitor)
	}

	id := orderID(r)
	if _, err := h.svc.AttachTickets(r.Context(), id, visitors); err != nil {
		h.writeError(w, r, err)
		return
	}
	http.Redirect(w, r, checkoutPath(id), http.StatusSeeOther)
}

func (h *OrderHandler) removeTicket(w http.ResponseWriter, r *http.Request) {
	ticketID, err := strconv.ParseInt(chi.URLParam(r, "ticketId"), 10, 64)
	if err != nil || ticketID <= 0 {
		response.BadRequest(w, "invalid ticket id")
		return
	}

	id := orderID(r)
	if err := h.svc.RemoveTicket(r.Context(), id, ticketID); err != nil {
		h.writeError(w, r, err)
		return
	}
	http.Redirect(w, r, checkoutPath(id), http.StatusSeeOther)
}

// checkout renders the checkout state on GET and pays the order on POST
// when a payment token is supplied.
func (h *OrderHandler) checkout(w http.ResponseWriter, r *http.Request) {
	var in checkoutReq
	if r.Method == http.MethodPost {
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil && !errors.Is(err, io.EOF) {
			response.BadRequest(w, "Invalid JSON format")
			return
		}
	}

	res, err := h.svc.Checkout(r.Context(), orderID(r), strings.TrimSpace(in.PaymentToken))
	if errors.Is(err, domain.ErrPaymentDeclined) && res != nil {
		response.WriteErrorWithDetails(w, http.StatusPaymentRequired,
			"Your payment was declined, please try another card", response.CodePaymentDeclined, h.checkoutDTO(res))
		return
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, h.checkoutDTO(res))
}

func (h *OrderHandler) checkoutDTO(res *reservation.CheckoutResult) CheckoutDTO {
	return CheckoutDTO{
		Order:                toOrderDTO(res.Order),
		Confirmed:            res.Confirmed,
		Amount:               res.Order.TotalAmount.StringFixed(2),
		Currency:             h.opts.Currency,
		StripePublishableKey: h.opts.StripePublishableKey,
		ChargeID:             res.ChargeID,
	}
}

// requireOwner lets the request through only when the visitor session owns
// the order in the URL. Missing and foreign orders both redirect to EntryPath.
func (h *OrderHandler) requireOwner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil || id <= 0 {
			response.BadRequest(w, "invalid order id")
			return
		}

		ctx := logger.WithOrder(r.Context(), id)
		if err := h.guard.Authorize(ctx, id, middleware.SessionID(r)); err != nil {
			// Unknown ids answer exactly like foreign ones.
			if errors.Is(err, domain.ErrNotFound) {
				err = domain.ErrUnauthorized
			}
			h.writeError(w, r.WithContext(ctx), err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(ctx, orderIDKey, id)))
	})
}

func (h *OrderHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		logger.WarnContext(r.Context(), "Order access denied", "path", r.URL.Path)
		http.Redirect(w, r, h.opts.EntryPath, http.StatusSeeOther)
	case errors.Is(err, domain.ErrInvalidInput):
		response.BadRequest(w, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		response.NotFound(w, "Order or ticket not found")
	case errors.Is(err, domain.ErrCutoffPassed):
		response.Unprocessable(w, "Full-day tickets for today are no longer sold, choose a half-day visit", response.CodeCutoffPassed)
	case errors.Is(err, domain.ErrEmptyOrder):
		response.Unprocessable(w, "Add at least one ticket before paying", response.CodeEmptyOrder)
	case errors.Is(err, domain.ErrCapacityExceeded):
		response.Conflict(w, "Not enough places left for this date", response.CodeSoldOut)
	case errors.Is(err, domain.ErrOrderConfirmed):
		response.Conflict(w, "This order has already been paid", response.CodeOrderConfirmed)
	case errors.Is(err, domain.ErrPaymentDeclined):
		response.WriteError(w, http.StatusPaymentRequired, "Your payment was declined", response.CodePaymentDeclined)
	default:
		logger.ErrorContext(r.Context(), "Request failed", "error", err, "path", r.URL.Path)
		response.InternalError(w, "Internal server error")
	}
}

type ctxKey string

const orderIDKey ctxKey = "order_id"

func orderID(r *http.Request) int64 {
	id, _ := r.Context().Value(orderIDKey).(int64)
	return id
}

func checkoutPath(id int64) string {
	return fmt.Sprintf("/v1/orders/%d/checkout", id)
}
