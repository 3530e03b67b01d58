package entry

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"

	"github.com/salusa-dev/backend-klinik/internal/catalog"
	"github.com/salusa-dev/backend-klinik/internal/common"
	"github.com/salusa-dev/backend-klinik/internal/ledger"
	"github.com/salusa-dev/backend-klinik/internal/obs"
)

// CatalogSource resolves catalog items referenced by add-item requests.
type CatalogSource interface {
	GetItem(ctx context.Context, id string) (catalog.Item, error)
}

// Handler exposes the order-entry session endpoints.
type Handler struct {
	sessions *Store
	catalog  CatalogSource
}

// HandlerConfig configures the Handler dependencies.
type HandlerConfig struct {
	Sessions *Store
	Catalog  CatalogSource
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{sessions: cfg.Sessions, catalog: cfg.Catalog}
}

// View is the JSON shape of an entry session with its computed totals.
type View struct {
	ID                    string            `json:"id"`
	Flow                  Flow              `json:"flow"`
	Items                 []ledger.LineItem `json:"items"`
	GrandTotal            ledger.Money      `json:"grandTotal"`
	EstimatedDurationDays int               `json:"estimatedDurationDays"`
	ExpiresAt             time.Time         `json:"expiresAt"`
}

func viewOf(sess *Session) View {
	return View{
		ID:                    sess.ID,
		Flow:                  sess.Flow,
		Items:                 sess.Ledger.Snapshot(),
		GrandTotal:            sess.Ledger.GrandTotal(),
		EstimatedDurationDays: sess.Ledger.EstimatedDurationDays(),
		ExpiresAt:             sess.ExpiresAt,
	}
}

// Create handles POST /api/v1/entries.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Flow string `json:"flow"`
	}
	if r.Body != nil {
		// empty body defaults to the service flow
		_ = json.NewDecoder(r.Body).Decode(&payload)
	}
	flow := FlowService
	switch strings.ToLower(strings.TrimSpace(payload.Flow)) {
	case "", string(FlowService):
	case string(FlowPurchase):
		flow = FlowPurchase
	default:
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "flow must be service or purchase", map[string]any{"field": "flow"})
		return
	}
	sess := h.sessions.Create(flow)
	common.JSON(w, http.StatusCreated, map[string]any{"data": View{
		ID:        sess.ID,
		Flow:      sess.Flow,
		Items:     []ledger.LineItem{},
		ExpiresAt: sess.ExpiresAt,
	}})
}

// Get handles GET /api/v1/entries/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	h.render(w, chi.URLParam(r, "id"))
}

// AddItem handles POST /api/v1/entries/{id}/items.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		CatalogItemID string `json:"catalogItemId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body", nil)
		return
	}
	itemID := strings.TrimSpace(payload.CatalogItemID)
	if itemID == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "catalogItemId is required", map[string]any{"field": "catalogItemId"})
		return
	}

	item, err := h.catalog.GetItem(r.Context(), itemID)
	if err != nil {
		recordMutation("add", "error")
		var appErr *common.AppError
		if errors.As(err, &appErr) {
			common.JSONError(w, appErr.HTTPStatus, appErr.Code, appErr.Message, appErr.Details)
			return
		}
		if errors.Is(err, pgx.ErrNoRows) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "catalog item not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog lookup failed", nil)
		return
	}

	h.mutate(w, chi.URLParam(r, "id"), "add", func(l *ledger.Ledger) error {
		return l.AddItem(catalog.ToLedgerItem(item))
	})
}

// RemoveItem handles DELETE /api/v1/entries/{id}/items/{itemId}.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "itemId")
	h.mutate(w, chi.URLParam(r, "id"), "remove", func(l *ledger.Ledger) error {
		l.RemoveItem(itemID)
		return nil
	})
}

// Increment handles POST /api/v1/entries/{id}/items/{itemId}/increment.
func (h *Handler) Increment(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "itemId")
	h.mutate(w, chi.URLParam(r, "id"), "increment", func(l *ledger.Ledger) error {
		l.IncrementQuantity(itemID)
		return nil
	})
}

// Decrement handles POST /api/v1/entries/{id}/items/{itemId}/decrement.
func (h *Handler) Decrement(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "itemId")
	h.mutate(w, chi.URLParam(r, "id"), "decrement", func(l *ledger.Ledger) error {
		l.DecrementQuantity(itemID)
		return nil
	})
}

// ToggleUrgent handles POST /api/v1/entries/{id}/items/{itemId}/urgent.
func (h *Handler) ToggleUrgent(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "itemId")
	h.mutate(w, chi.URLParam(r, "id"), "toggle_urgent", func(l *ledger.Ledger) error {
		l.ToggleUrgent(itemID)
		return nil
	})
}

// UpdateItem handles PATCH /api/v1/entries/{id}/items/{itemId}. Only the keys
// present in the body are applied; amounts that fail to parse are stored as 0.
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	var payload map[string]any
	if err := dec.Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body", nil)
		return
	}

	upd := fieldUpdateFrom(payload)
	itemID := chi.URLParam(r, "itemId")
	h.mutate(w, chi.URLParam(r, "id"), "set_fields", func(l *ledger.Ledger) error {
		l.SetFields(itemID, upd)
		return nil
	})
}

func fieldUpdateFrom(payload map[string]any) ledger.FieldUpdate {
	var upd ledger.FieldUpdate
	set := func(key string, dst **ledger.Money) {
		if v, ok := payload[key]; ok {
			amount := ledger.ParseAmount(v)
			*dst = &amount
		}
	}
	set("rate", &upd.Rate)
	set("cgst", &upd.CGST)
	set("sgst", &upd.SGST)
	set("igst", &upd.IGST)
	set("preTaxAmount", &upd.PreTaxAmount)
	set("postTaxAmount", &upd.PostTaxAmount)
	return upd
}

// mutate applies fn to the session's ledger and renders the updated view.
func (h *Handler) mutate(w http.ResponseWriter, sessionID, op string, fn func(*ledger.Ledger) error) {
	var view View
	err := h.sessions.With(sessionID, func(sess *Session) error {
		if err := fn(sess.Ledger); err != nil {
			return err
		}
		view = viewOf(sess)
		return nil
	})
	switch {
	case errors.Is(err, ErrNotFound):
		recordMutation(op, "not_found")
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "entry session not found", nil)
	case errors.Is(err, ledger.ErrDuplicateItem):
		recordMutation(op, "duplicate")
		common.JSONError(w, http.StatusConflict, "DUPLICATE_ITEM", "item already present on this entry", nil)
	case err != nil:
		recordMutation(op, "error")
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
	default:
		recordMutation(op, "ok")
		common.JSON(w, http.StatusOK, map[string]any{"data": view})
	}
}

func (h *Handler) render(w http.ResponseWriter, sessionID string) {
	var view View
	err := h.sessions.With(sessionID, func(sess *Session) error {
		view = viewOf(sess)
		return nil
	})
	if errors.Is(err, ErrNotFound) {
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "entry session not found", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": view})
}

func recordMutation(op, result string) {
	if obs.LedgerMutationsTotal != nil {
		obs.LedgerMutationsTotal.WithLabelValues(op, result).Inc()
	}
}
