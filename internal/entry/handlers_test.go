package entry_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"

	"github.com/salusa-dev/backend-klinik/internal/catalog"
	"github.com/salusa-dev/backend-klinik/internal/entry"
)

type fakeCatalog struct {
	items map[string]catalog.Item
}

func (f *fakeCatalog) GetItem(_ context.Context, id string) (catalog.Item, error) {
	if it, ok := f.items[id]; ok {
		return it, nil
	}
	return catalog.Item{}, pgx.ErrNoRows
}

type entryResponse struct {
	Data entry.View `json:"data"`
}

type errorResponse struct {
	Error struct {
		Code string `json:"code"`
	} `json:"error"`
}

func newTestHandler(t *testing.T) *entry.Handler {
	t.Helper()
	source := &fakeCatalog{items: map[string]catalog.Item{
		"cbc":    {ID: "cbc", Name: "Complete Blood Count", Kind: "service", StandardPrice: 100, UrgentPrice: 150, StandardDurationDays: 2, UrgentDurationDays: 1, Active: true},
		"lipid":  {ID: "lipid", Name: "Lipid Profile", Kind: "service", StandardPrice: 50, UrgentPrice: 80, StandardDurationDays: 5, UrgentDurationDays: 3, Active: true},
		"gloves": {ID: "gloves", Name: "Nitrile Gloves", Kind: "product", TaxRateBps: 1200, Active: true},
	}}
	return entry.NewHandler(entry.HandlerConfig{
		Sessions: entry.NewStore(time.Hour),
		Catalog:  source,
	})
}

func withParams(req *http.Request, params map[string]string) *http.Request {
	routeCtx := chi.NewRouteContext()
	for k, v := range params {
		routeCtx.URLParams.Add(k, v)
	}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))
}

func createSession(t *testing.T, h *entry.Handler, flow string) string {
	t.Helper()
	body := strings.NewReader(`{"flow":"` + flow + `"}`)
	rec := httptest.NewRecorder()
	h.Create(rec, httptest.NewRequest(http.MethodPost, "/api/v1/entries", body))
	require.Equal(t, http.StatusCreated, rec.Code)
	var resp entryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Data.ID)
	return resp.Data.ID
}

func addItem(t *testing.T, h *entry.Handler, sessionID, itemID string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/entries/"+sessionID+"/items",
		strings.NewReader(`{"catalogItemId":"`+itemID+`"}`))
	req = withParams(req, map[string]string{"id": sessionID})
	rec := httptest.NewRecorder()
	h.AddItem(rec, req)
	return rec
}

func itemOp(t *testing.T, h *entry.Handler, fn http.HandlerFunc, method, sessionID, itemID, suffix string) entryResponse {
	t.Helper()
	req := httptest.NewRequest(method, "/api/v1/entries/"+sessionID+"/items/"+itemID+suffix, nil)
	req = withParams(req, map[string]string{"id": sessionID, "itemId": itemID})
	rec := httptest.NewRecorder()
	fn(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp entryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestCreateRejectsUnknownFlow(t *testing.T) {
	h := newTestHandler(t)
	rec := httptest.NewRecorder()
	h.Create(rec, httptest.NewRequest(http.MethodPost, "/api/v1/entries", strings.NewReader(`{"flow":"walkin"}`)))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAddItemFlow(t *testing.T) {
	h := newTestHandler(t)
	id := createSession(t, h, "service")

	rec := addItem(t, h, id, "cbc")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp entryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data.Items, 1)
	require.Equal(t, 1, resp.Data.Items[0].Quantity)
	require.Equal(t, int64(100), resp.Data.GrandTotal)

	t.Run("duplicate is rejected", func(t *testing.T) {
		rec := addItem(t, h, id, "cbc")
		require.Equal(t, http.StatusConflict, rec.Code)
		var errResp errorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errResp))
		require.Equal(t, "DUPLICATE_ITEM", errResp.Error.Code)
	})

	t.Run("unknown catalog item", func(t *testing.T) {
		rec := addItem(t, h, id, "missing")
		require.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("unknown session", func(t *testing.T) {
		rec := addItem(t, h, "nope", "cbc")
		require.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestQuantityAndUrgency(t *testing.T) {
	h := newTestHandler(t)
	id := createSession(t, h, "service")
	require.Equal(t, http.StatusOK, addItem(t, h, id, "cbc").Code)
	require.Equal(t, http.StatusOK, addItem(t, h, id, "lipid").Code)

	resp := itemOp(t, h, h.Increment, http.MethodPost, id, "cbc", "/increment")
	resp = itemOp(t, h, h.Increment, http.MethodPost, id, "lipid", "/increment")
	for i := 0; i < 3; i++ {
		resp = itemOp(t, h, h.Increment, http.MethodPost, id, "lipid", "/increment")
	}
	// cbc 2x100 + lipid 5x50, slowest standard duration wins
	require.Equal(t, int64(450), resp.Data.GrandTotal)
	require.Equal(t, 5, resp.Data.EstimatedDurationDays)

	resp = itemOp(t, h, h.ToggleUrgent, http.MethodPost, id, "lipid", "/urgent")
	// lipid switches to urgent pricing 5x80
	require.Equal(t, int64(600), resp.Data.GrandTotal)
	require.Equal(t, 3, resp.Data.EstimatedDurationDays)

	resp = itemOp(t, h, h.ToggleUrgent, http.MethodPost, id, "lipid", "/urgent")
	require.Equal(t, int64(450), resp.Data.GrandTotal)
	require.Equal(t, 5, resp.Data.EstimatedDurationDays)

	resp = itemOp(t, h, h.Decrement, http.MethodPost, id, "cbc", "/decrement")
	resp = itemOp(t, h, h.Decrement, http.MethodPost, id, "cbc", "/decrement")
	// decrement at quantity 1 removes the line
	require.Len(t, resp.Data.Items, 1)
	require.Equal(t, int64(250), resp.Data.GrandTotal)
}

func TestUpdateItemPartialFields(t *testing.T) {
	h := newTestHandler(t)
	id := createSession(t, h, "purchase")
	require.Equal(t, http.StatusOK, addItem(t, h, id, "gloves").Code)

	patch := func(body string) entryResponse {
		req := httptest.NewRequest(http.MethodPatch, "/api/v1/entries/"+id+"/items/gloves", strings.NewReader(body))
		req = withParams(req, map[string]string{"id": id, "itemId": "gloves"})
		rec := httptest.NewRecorder()
		h.UpdateItem(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		var resp entryResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		return resp
	}

	resp := patch(`{"rate":250,"cgst":15,"sgst":15,"preTaxAmount":250,"postTaxAmount":280}`)
	require.Equal(t, int64(250), resp.Data.Items[0].Rate)
	require.Equal(t, int64(15), resp.Data.Items[0].CGST)
	require.Equal(t, int64(280), resp.Data.Items[0].PostTaxAmount)
	require.Equal(t, int64(250), resp.Data.GrandTotal)

	// keys not present stay untouched, garbage amounts become 0
	resp = patch(`{"igst":"not-a-number"}`)
	require.Equal(t, int64(250), resp.Data.Items[0].Rate)
	require.Equal(t, int64(0), resp.Data.Items[0].IGST)
	require.Equal(t, int64(15), resp.Data.Items[0].CGST)
}

func TestRemoveItem(t *testing.T) {
	h := newTestHandler(t)
	id := createSession(t, h, "service")
	require.Equal(t, http.StatusOK, addItem(t, h, id, "cbc").Code)

	resp := itemOp(t, h, h.RemoveItem, http.MethodDelete, id, "cbc", "")
	require.Empty(t, resp.Data.Items)
	require.Equal(t, int64(0), resp.Data.GrandTotal)

	// removing again is a no-op, not an error
	resp = itemOp(t, h, h.RemoveItem, http.MethodDelete, id, "cbc", "")
	require.Empty(t, resp.Data.Items)
}

func TestGetEntry(t *testing.T) {
	h := newTestHandler(t)
	id := createSession(t, h, "service")
	require.Equal(t, http.StatusOK, addItem(t, h, id, "cbc").Code)

	req := withParams(httptest.NewRequest(http.MethodGet, "/api/v1/entries/"+id, nil), map[string]string{"id": id})
	rec := httptest.NewRecorder()
	h.Get(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp entryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, id, resp.Data.ID)
	require.Len(t, resp.Data.Items, 1)
	require.Equal(t, 2, resp.Data.EstimatedDurationDays)
}
