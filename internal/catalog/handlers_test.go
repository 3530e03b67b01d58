package catalog_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"

	"github.com/salusa-dev/backend-klinik/internal/catalog"
)

type fakeQueries struct {
	items []catalog.Item
}

func (f *fakeQueries) CountItems(_ context.Context, q catalog.ListQuery) (int64, error) {
	return int64(len(f.match(q))), nil
}

func (f *fakeQueries) ListItems(_ context.Context, q catalog.ListQuery) ([]catalog.Item, error) {
	matched := f.match(q)
	if q.Offset >= len(matched) {
		return nil, nil
	}
	matched = matched[q.Offset:]
	if q.Limit > 0 && q.Limit < len(matched) {
		matched = matched[:q.Limit]
	}
	return matched, nil
}

func (f *fakeQueries) GetItem(_ context.Context, id string) (catalog.Item, error) {
	for _, it := range f.items {
		if it.ID == id {
			return it, nil
		}
	}
	return catalog.Item{}, pgx.ErrNoRows
}

func (f *fakeQueries) match(q catalog.ListQuery) []catalog.Item {
	var out []catalog.Item
	for _, it := range f.items {
		if q.Kind != "" && it.Kind != q.Kind {
			continue
		}
		out = append(out, it)
	}
	return out
}

type listResponse struct {
	Data       []catalog.Item `json:"data"`
	Pagination struct {
		Page       int `json:"page"`
		PerPage    int `json:"per_page"`
		TotalItems int `json:"total_items"`
	} `json:"pagination"`
}

type detailResponse struct {
	Data catalog.Item `json:"data"`
}

func newTestHandler(t *testing.T) *catalog.Handler {
	t.Helper()
	queries := &fakeQueries{items: []catalog.Item{
		{ID: "cbc", Name: "Complete Blood Count", Kind: "service", StandardPrice: 30000, UrgentPrice: 45000, StandardDurationDays: 2, UrgentDurationDays: 1, Active: true},
		{ID: "lipid", Name: "Lipid Profile", Kind: "service", StandardPrice: 60000, UrgentPrice: 90000, StandardDurationDays: 3, UrgentDurationDays: 1, Active: true},
		{ID: "gloves", Name: "Nitrile Gloves", Kind: "product", TaxRateBps: 1200, Active: true},
	}}
	svc, err := catalog.NewService(catalog.ServiceConfig{
		Queries:      queries,
		DefaultPage:  1,
		DefaultLimit: 20,
		MaxLimit:     100,
	})
	require.NoError(t, err)
	return catalog.NewHandler(catalog.HandlerConfig{Service: svc})
}

func TestItemsList(t *testing.T) {
	handler := newTestHandler(t)

	t.Run("all items", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.Items(rec, httptest.NewRequest(http.MethodGet, "/api/v1/catalog/items", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "3", rec.Header().Get("X-Total-Count"))

		var resp listResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Len(t, resp.Data, 3)
		require.Equal(t, 3, resp.Pagination.TotalItems)
	})

	t.Run("filter by kind", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.Items(rec, httptest.NewRequest(http.MethodGet, "/api/v1/catalog/items?kind=product", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var resp listResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Len(t, resp.Data, 1)
		require.Equal(t, "Nitrile Gloves", resp.Data[0].Name)
	})

	t.Run("pagination", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.Items(rec, httptest.NewRequest(http.MethodGet, "/api/v1/catalog/items?limit=2&page=2", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var resp listResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Len(t, resp.Data, 1)
		require.Equal(t, 2, resp.Pagination.Page)
		require.Equal(t, 2, resp.Pagination.PerPage)
	})

	t.Run("invalid kind", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.Items(rec, httptest.NewRequest(http.MethodGet, "/api/v1/catalog/items?kind=widget", nil))
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestItemDetail(t *testing.T) {
	handler := newTestHandler(t)

	t.Run("found", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/catalog/items/cbc", nil)
		routeCtx := chi.NewRouteContext()
		routeCtx.URLParams.Add("id", "cbc")
		req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))
		rec := httptest.NewRecorder()
		handler.ItemDetail(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp detailResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Equal(t, "Complete Blood Count", resp.Data.Name)
		require.Equal(t, int64(45000), resp.Data.UrgentPrice)
	})

	t.Run("not found", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/catalog/items/missing", nil)
		routeCtx := chi.NewRouteContext()
		routeCtx.URLParams.Add("id", "missing")
		req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))
		rec := httptest.NewRecorder()
		handler.ItemDetail(rec, req)
		require.Equal(t, http.StatusNotFound, rec.Code)
	})
}
