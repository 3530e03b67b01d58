package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/salusa-dev/backend-klinik/internal/common"
	"github.com/salusa-dev/backend-klinik/internal/ledger"
)

type queryProvider interface {
	CountItems(ctx context.Context, q ListQuery) (int64, error)
	ListItems(ctx context.Context, q ListQuery) ([]Item, error)
	GetItem(ctx context.Context, id string) (Item, error)
}

// Service orchestrates catalog queries and caching.
type Service struct {
	queries      queryProvider
	cache        *Cache
	defaultPage  int
	defaultLimit int
	maxLimit     int
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Queries      queryProvider
	Cache        *Cache
	DefaultPage  int
	DefaultLimit int
	MaxLimit     int
}

// ListParams captures filters for the item listing.
type ListParams struct {
	Kind  string
	Query string
	Page  int
	Limit int
}

// ListResult contains list data and pagination metadata.
type ListResult struct {
	Items []Item
	Total int64
	Page  int
	Limit int
}

// NewService constructs a Service instance.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Queries == nil {
		return nil, errors.New("catalog: queries provider is required")
	}
	defaultPage := cfg.DefaultPage
	if defaultPage < 1 {
		defaultPage = 1
	}
	defaultLimit := cfg.DefaultLimit
	if defaultLimit < 1 {
		defaultLimit = 20
	}
	maxLimit := cfg.MaxLimit
	if maxLimit < 1 {
		maxLimit = 100
	}
	if defaultLimit > maxLimit {
		defaultLimit = maxLimit
	}
	return &Service{
		queries:      cfg.Queries,
		cache:        cfg.Cache,
		defaultPage:  defaultPage,
		defaultLimit: defaultLimit,
		maxLimit:     maxLimit,
	}, nil
}

// ParseListParams normalises raw query values into strongly typed filters.
func (s *Service) ParseListParams(values url.Values) (ListParams, error) {
	params := ListParams{
		Page:  s.defaultPage,
		Limit: s.defaultLimit,
	}
	params.Query = strings.TrimSpace(values.Get("q"))

	kind := strings.ToLower(strings.TrimSpace(values.Get("kind")))
	switch kind {
	case "", string(ledger.KindService), string(ledger.KindProduct):
		params.Kind = kind
	default:
		return params, badRequest("kind", "kind must be service or product", fmt.Errorf("invalid kind %q", kind))
	}

	if v := strings.TrimSpace(values.Get("page")); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil || page < 1 {
			return params, badRequest("page", "page must be a positive integer", err)
		}
		params.Page = page
	}

	limit := s.defaultLimit
	if v := strings.TrimSpace(values.Get("limit")); v != "" {
		l, err := strconv.Atoi(v)
		if err != nil || l < 1 {
			return params, badRequest("limit", "limit must be a positive integer", err)
		}
		limit = l
	}
	if limit > s.maxLimit {
		limit = s.maxLimit
	}
	params.Limit = limit
	return params, nil
}

// ListItems returns a filtered item page with pagination metadata.
func (s *Service) ListItems(ctx context.Context, params ListParams) (ListResult, error) {
	key, shouldUseCache := s.listCacheKey(params)
	if shouldUseCache && s.cache != nil {
		var cached cachedList
		ok, err := s.cache.GetJSON(ctx, key, &cached)
		if err == nil && ok {
			return ListResult{Items: cached.Items, Total: cached.Total, Page: params.Page, Limit: params.Limit}, nil
		}
	}

	q := ListQuery{
		Kind:   params.Kind,
		Search: params.Query,
		Limit:  params.Limit,
		Offset: (params.Page - 1) * params.Limit,
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	total, err := s.queries.CountItems(ctx, q)
	if err != nil {
		return ListResult{}, fmt.Errorf("count items: %w", err)
	}
	items, err := s.queries.ListItems(ctx, q)
	if err != nil {
		return ListResult{}, fmt.Errorf("list items: %w", err)
	}
	result := ListResult{Items: items, Total: total, Page: params.Page, Limit: params.Limit}
	if shouldUseCache && s.cache != nil {
		_ = s.cache.SetJSON(ctx, key, cachedList{Items: items, Total: total})
	}
	return result, nil
}

// GetItem returns one catalog item by ID.
func (s *Service) GetItem(ctx context.Context, id string) (Item, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Item{}, badRequest("id", "id is required", nil)
	}
	cacheKey := detailCacheKey(id)
	if s.cache != nil {
		var cached Item
		ok, err := s.cache.GetJSON(ctx, cacheKey, &cached)
		if err == nil && ok {
			return cached, nil
		}
	}
	item, err := s.queries.GetItem(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Item{}, &common.AppError{Code: "NOT_FOUND", Message: "catalog item not found", HTTPStatus: http.StatusNotFound, Err: err}
		}
		return Item{}, fmt.Errorf("get catalog item: %w", err)
	}
	if s.cache != nil {
		_ = s.cache.SetJSON(ctx, cacheKey, item)
	}
	return item, nil
}

// ToLedgerItem converts a stored catalog row into the pricing view line items
// are created from.
func ToLedgerItem(it Item) ledger.CatalogItem {
	return ledger.CatalogItem{
		ID:                   it.ID,
		Name:                 it.Name,
		Kind:                 ledger.Kind(it.Kind),
		StandardPrice:        it.StandardPrice,
		UrgentPrice:          it.UrgentPrice,
		StandardDurationDays: it.StandardDurationDays,
		UrgentDurationDays:   it.UrgentDurationDays,
		TaxRateBps:           it.TaxRateBps,
	}
}

type cachedList struct {
	Items []Item `json:"items"`
	Total int64  `json:"total"`
}

func (s *Service) listCacheKey(params ListParams) (string, bool) {
	if params.Page != s.defaultPage || params.Limit != s.defaultLimit {
		return "", false
	}
	if params.Query != "" {
		return "", false
	}
	key := "catalog:items:list"
	if params.Kind != "" {
		key += ":" + params.Kind
	}
	return key, true
}

func detailCacheKey(id string) string {
	return "catalog:items:detail:" + id
}

func badRequest(field, message string, err error) *common.AppError {
	return &common.AppError{
		Code:       "BAD_REQUEST",
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
		Err:        err,
		Details: map[string]any{
			"field": field,
		},
	}
}
