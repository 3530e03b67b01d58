package order_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/salusa-dev/backend-klinik/internal/entry"
	"github.com/salusa-dev/backend-klinik/internal/events"
	"github.com/salusa-dev/backend-klinik/internal/ledger"
	"github.com/salusa-dev/backend-klinik/internal/order"
)

type memStore struct {
	orders []order.Order
}

func (m *memStore) CreateOrder(_ context.Context, o order.Order) error {
	m.orders = append(m.orders, o)
	return nil
}

func (m *memStore) CountOrders(context.Context) (int64, error) {
	return int64(len(m.orders)), nil
}

func (m *memStore) ListOrders(_ context.Context, limit, offset int) ([]order.Order, error) {
	if offset >= len(m.orders) {
		return nil, nil
	}
	out := m.orders[offset:]
	if limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) GetOrder(_ context.Context, id string) (order.Order, error) {
	for _, o := range m.orders {
		if o.ID == id {
			return o, nil
		}
	}
	return order.Order{}, pgx.ErrNoRows
}

type memEventStore struct {
	events []events.Event
}

func (m *memEventStore) InsertDomainEvent(_ context.Context, topic, aggregateID string, payload []byte) (events.Event, error) {
	ev := events.Event{ID: uuid.NewString(), Topic: topic, AggregateID: aggregateID, Payload: payload, OccurredAt: time.Now()}
	m.events = append(m.events, ev)
	return ev, nil
}

type fixture struct {
	handler  *order.Handler
	sessions *entry.Store
	store    *memStore
	eventLog *memEventStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	sessions := entry.NewStore(time.Hour)
	store := &memStore{}
	eventLog := &memEventStore{}
	svc, err := order.NewService(order.ServiceConfig{
		Store:    store,
		Sessions: sessions,
		Events:   &events.Bus{Store: eventLog},
		Currency: "INR",
		Logger:   zerolog.Nop(),
	})
	require.NoError(t, err)
	return &fixture{
		handler:  order.NewHandler(order.HandlerConfig{Service: svc, DefaultPerPage: 20}),
		sessions: sessions,
		store:    store,
		eventLog: eventLog,
	}
}

func (f *fixture) sessionWithItems(t *testing.T) string {
	t.Helper()
	sess := f.sessions.Create(entry.FlowService)
	err := f.sessions.With(sess.ID, func(s *entry.Session) error {
		require.NoError(t, s.Ledger.AddItem(ledger.CatalogItem{
			ID: "cbc", Name: "Complete Blood Count", Kind: ledger.KindService,
			StandardPrice: 100, UrgentPrice: 150, StandardDurationDays: 2, UrgentDurationDays: 1,
		}))
		require.NoError(t, s.Ledger.AddItem(ledger.CatalogItem{
			ID: "lipid", Name: "Lipid Profile", Kind: ledger.KindService,
			StandardPrice: 50, UrgentPrice: 80, StandardDurationDays: 5, UrgentDurationDays: 3,
		}))
		s.Ledger.IncrementQuantity("cbc")
		return nil
	})
	require.NoError(t, err)
	return sess.ID
}

func submitRequest(sessionID, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/entries/"+sessionID+"/submit", strings.NewReader(body))
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add("id", sessionID)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))
}

type orderResponse struct {
	Data order.Order `json:"data"`
}

func TestSubmit(t *testing.T) {
	t.Run("happy path", func(t *testing.T) {
		f := newFixture(t)
		id := f.sessionWithItems(t)

		rec := httptest.NewRecorder()
		f.handler.Submit(rec, submitRequest(id, `{"paymentMode":"cash","payer":"R. Sharma","amountPaid":250}`))
		require.Equal(t, http.StatusCreated, rec.Code)

		var resp orderResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Equal(t, int64(250), resp.Data.GrandTotal)
		require.Equal(t, 5, resp.Data.EstimatedDurationDays)
		require.Equal(t, "INR", resp.Data.Currency)
		require.Len(t, resp.Data.Items, 2)

		// session is gone after submit
		require.ErrorIs(t, f.sessions.With(id, func(*entry.Session) error { return nil }), entry.ErrNotFound)

		// one persisted order and one submitted event
		require.Len(t, f.store.orders, 1)
		require.Len(t, f.eventLog.events, 1)
		require.Equal(t, events.TopicOrderSubmitted, f.eventLog.events[0].Topic)
		require.Equal(t, resp.Data.ID, f.eventLog.events[0].AggregateID)
	})

	t.Run("line totals are frozen", func(t *testing.T) {
		f := newFixture(t)
		id := f.sessionWithItems(t)

		rec := httptest.NewRecorder()
		f.handler.Submit(rec, submitRequest(id, `{"paymentMode":"upi","payer":"R. Sharma","amountPaid":0}`))
		require.Equal(t, http.StatusCreated, rec.Code)

		var resp orderResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		totals := map[string]int64{}
		for _, it := range resp.Data.Items {
			totals[it.CatalogItemID] = it.LineTotal
		}
		require.Equal(t, int64(200), totals["cbc"])
		require.Equal(t, int64(50), totals["lipid"])
	})

	t.Run("empty entry is rejected", func(t *testing.T) {
		f := newFixture(t)
		sess := f.sessions.Create(entry.FlowService)

		rec := httptest.NewRecorder()
		f.handler.Submit(rec, submitRequest(sess.ID, `{"paymentMode":"cash","payer":"R. Sharma"}`))
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		require.Empty(t, f.store.orders)

		// the session survives a rejected submit
		require.NoError(t, f.sessions.With(sess.ID, func(*entry.Session) error { return nil }))
	})

	t.Run("validation failures", func(t *testing.T) {
		f := newFixture(t)
		id := f.sessionWithItems(t)

		for _, body := range []string{
			`{"paymentMode":"barter","payer":"R. Sharma"}`,
			`{"paymentMode":"cash"}`,
			`{"paymentMode":"cash","payer":"R. Sharma","amountPaid":-5}`,
		} {
			rec := httptest.NewRecorder()
			f.handler.Submit(rec, submitRequest(id, body))
			require.Equal(t, http.StatusBadRequest, rec.Code, body)
		}
		require.Empty(t, f.store.orders)
	})

	t.Run("unknown session", func(t *testing.T) {
		f := newFixture(t)
		rec := httptest.NewRecorder()
		f.handler.Submit(rec, submitRequest("missing", `{"paymentMode":"cash","payer":"R. Sharma"}`))
		require.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestListAndGet(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 3; i++ {
		id := f.sessionWithItems(t)
		rec := httptest.NewRecorder()
		f.handler.Submit(rec, submitRequest(id, `{"paymentMode":"card","payer":"R. Sharma","amountPaid":250}`))
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := httptest.NewRecorder()
	f.handler.List(rec, httptest.NewRequest(http.MethodGet, "/api/v1/orders?limit=2", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "3", rec.Header().Get("X-Total-Count"))

	var list struct {
		Data []order.Order `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Data, 2)

	t.Run("get by id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/"+f.store.orders[0].ID, nil)
		routeCtx := chi.NewRouteContext()
		routeCtx.URLParams.Add("id", f.store.orders[0].ID)
		req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))
		rec := httptest.NewRecorder()
		f.handler.Get(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp orderResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Equal(t, f.store.orders[0].ID, resp.Data.ID)
	})

	t.Run("get missing", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/missing", nil)
		routeCtx := chi.NewRouteContext()
		routeCtx.URLParams.Add("id", "missing")
		req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))
		rec := httptest.NewRecorder()
		f.handler.Get(rec, req)
		require.Equal(t, http.StatusNotFound, rec.Code)
	})
}
