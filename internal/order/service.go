package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/salusa-dev/backend-klinik/internal/common"
	"github.com/salusa-dev/backend-klinik/internal/entry"
	"github.com/salusa-dev/backend-klinik/internal/events"
	"github.com/salusa-dev/backend-klinik/internal/ledger"
	"github.com/salusa-dev/backend-klinik/internal/obs"
)

type storeProvider interface {
	CreateOrder(ctx context.Context, o Order) error
	CountOrders(ctx context.Context) (int64, error)
	ListOrders(ctx context.Context, limit, offset int) ([]Order, error)
	GetOrder(ctx context.Context, id string) (Order, error)
}

// SubmitInput is the payment metadata captured at submission time.
type SubmitInput struct {
	PaymentMode string       `json:"paymentMode" validate:"required,oneof=cash card upi credit"`
	Payer       string       `json:"payer" validate:"required"`
	AmountPaid  ledger.Money `json:"amountPaid" validate:"gte=0"`
	Notes       string       `json:"notes" validate:"max=500"`
}

// Service turns entry sessions into persisted orders.
type Service struct {
	store    storeProvider
	sessions *entry.Store
	events   *events.Bus
	currency string
	log      zerolog.Logger
	now      func() time.Time
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Store    storeProvider
	Sessions *entry.Store
	Events   *events.Bus
	Currency string
	Logger   zerolog.Logger
}

// NewService constructs a Service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("order: store is required")
	}
	if cfg.Sessions == nil {
		return nil, errors.New("order: session store is required")
	}
	currency := cfg.Currency
	if currency == "" {
		currency = "INR"
	}
	return &Service{
		store:    cfg.Store,
		sessions: cfg.Sessions,
		events:   cfg.Events,
		currency: currency,
		log:      cfg.Logger,
		now:      time.Now,
	}, nil
}

// Submit freezes the session's ledger into an order, persists it, emits the
// submitted event, and closes the session. The session survives persistence
// failures so the operator can retry.
func (s *Service) Submit(ctx context.Context, sessionID string, in SubmitInput) (Order, error) {
	var o Order
	err := s.sessions.With(sessionID, func(sess *entry.Session) error {
		lines := sess.Ledger.Snapshot()
		if len(lines) == 0 {
			return &common.AppError{
				Code:       "EMPTY_ENTRY",
				Message:    "entry has no items to submit",
				HTTPStatus: http.StatusUnprocessableEntity,
			}
		}
		o = Order{
			ID:                    uuid.NewString(),
			Flow:                  string(sess.Flow),
			PaymentMode:           in.PaymentMode,
			Payer:                 in.Payer,
			AmountPaid:            in.AmountPaid,
			Notes:                 in.Notes,
			Currency:              s.currency,
			GrandTotal:            sess.Ledger.GrandTotal(),
			EstimatedDurationDays: sess.Ledger.EstimatedDurationDays(),
			CreatedAt:             s.now().UTC(),
		}
		o.Items = make([]Item, 0, len(lines))
		for _, line := range lines {
			snapshot, err := json.Marshal(line)
			if err != nil {
				return fmt.Errorf("encode line snapshot: %w", err)
			}
			o.Items = append(o.Items, Item{
				CatalogItemID: line.CatalogItemID,
				Name:          line.Name,
				Kind:          string(line.Kind),
				Quantity:      line.Quantity,
				Urgent:        line.Urgent,
				LineTotal:     sess.Ledger.LineTotal(line.CatalogItemID),
				Snapshot:      snapshot,
			})
		}
		return nil
	})
	if err != nil {
		recordSubmission(o.Flow, "rejected")
		return Order{}, err
	}

	if err := s.store.CreateOrder(ctx, o); err != nil {
		recordSubmission(o.Flow, "error")
		return Order{}, fmt.Errorf("order: persist: %w", err)
	}
	s.sessions.Delete(sessionID)
	recordSubmission(o.Flow, "ok")

	if s.events != nil {
		payload := map[string]any{
			"orderId":    o.ID,
			"flow":       o.Flow,
			"grandTotal": o.GrandTotal,
			"currency":   o.Currency,
			"payer":      o.Payer,
			"itemCount":  len(o.Items),
		}
		if _, err := s.events.Emit(ctx, events.TopicOrderSubmitted, o.ID, payload); err != nil {
			// the order is committed; notification failures are logged, not surfaced
			s.log.Warn().Err(err).Str("order_id", o.ID).Msg("order submitted event fan-out failed")
		}
	}
	return o, nil
}

// List returns a page of orders with the total count.
func (s *Service) List(ctx context.Context, page, perPage int) ([]Order, int64, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 20
	}
	total, err := s.store.CountOrders(ctx)
	if err != nil {
		return nil, 0, err
	}
	orders, err := s.store.ListOrders(ctx, perPage, (page-1)*perPage)
	if err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// Get returns one order with its lines.
func (s *Service) Get(ctx context.Context, id string) (Order, error) {
	o, err := s.store.GetOrder(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, &common.AppError{Code: "NOT_FOUND", Message: "order not found", HTTPStatus: http.StatusNotFound, Err: err}
		}
		return Order{}, fmt.Errorf("order: get: %w", err)
	}
	return o, nil
}

func recordSubmission(flow, result string) {
	if obs.OrdersSubmittedTotal == nil {
		return
	}
	if flow == "" {
		flow = "unknown"
	}
	obs.OrdersSubmittedTotal.WithLabelValues(flow, result).Inc()
}
