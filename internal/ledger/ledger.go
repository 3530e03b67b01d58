package ledger

import "errors"

// Money represents a monetary value stored in minor units.
type Money = int64

// Kind distinguishes the two catalog families handled by order entry.
type Kind string

const (
	// KindService covers billable services with dual price/duration tiers.
	KindService Kind = "service"
	// KindProduct covers purchasable goods priced by an operator-entered rate.
	KindProduct Kind = "product"
)

// ErrDuplicateItem is returned when a catalog item is already present on the ledger.
var ErrDuplicateItem = errors.New("item already present")

// CatalogItem is the read-only reference data a line item is created from.
type CatalogItem struct {
	ID                   string
	Name                 string
	Kind                 Kind
	StandardPrice        Money
	UrgentPrice          Money
	StandardDurationDays int
	UrgentDurationDays   int
	TaxRateBps           int
}

// LineItem is one row of an in-progress order. Pricing fields are copied from
// the catalog at insertion time so a later catalog change never reprices an
// open ledger.
type LineItem struct {
	CatalogItemID        string `json:"catalogItemId"`
	Name                 string `json:"name"`
	Kind                 Kind   `json:"kind"`
	Quantity             int    `json:"quantity"`
	Urgent               bool   `json:"urgent"`
	StandardPrice        Money  `json:"standardPrice"`
	UrgentPrice          Money  `json:"urgentPrice"`
	StandardDurationDays int    `json:"standardDurationDays"`
	UrgentDurationDays   int    `json:"urgentDurationDays"`
	Rate                 Money  `json:"rate"`
	CGST                 Money  `json:"cgst"`
	SGST                 Money  `json:"sgst"`
	IGST                 Money  `json:"igst"`
	PreTaxAmount         Money  `json:"preTaxAmount"`
	PostTaxAmount        Money  `json:"postTaxAmount"`
}

// FieldUpdate is a typed partial update for the operator-entered purchase
// fields. Nil pointers leave the current value untouched.
type FieldUpdate struct {
	Rate          *Money
	CGST          *Money
	SGST          *Money
	IGST          *Money
	PreTaxAmount  *Money
	PostTaxAmount *Money
}

// Ledger holds the working line-item set for one in-progress order. It is not
// safe for concurrent use; callers own exactly one ledger per entry session.
type Ledger struct {
	items []LineItem
}

// New returns an empty ledger.
func New() *Ledger {
	return &Ledger{}
}

// AddItem appends a new line for the catalog item with quantity 1. Adding an
// item that is already present returns ErrDuplicateItem and leaves the ledger
// unchanged.
func (l *Ledger) AddItem(ci CatalogItem) error {
	if l.find(ci.ID) >= 0 {
		return ErrDuplicateItem
	}
	l.items = append(l.items, LineItem{
		CatalogItemID:        ci.ID,
		Name:                 ci.Name,
		Kind:                 ci.Kind,
		Quantity:             1,
		StandardPrice:        ci.StandardPrice,
		UrgentPrice:          ci.UrgentPrice,
		StandardDurationDays: ci.StandardDurationDays,
		UrgentDurationDays:   ci.UrgentDurationDays,
	})
	return nil
}

// RemoveItem deletes the line referencing the catalog item. Absent lines are a no-op.
func (l *Ledger) RemoveItem(catalogItemID string) {
	idx := l.find(catalogItemID)
	if idx < 0 {
		return
	}
	l.items = append(l.items[:idx], l.items[idx+1:]...)
}

// IncrementQuantity adds one to the line's quantity.
func (l *Ledger) IncrementQuantity(catalogItemID string) {
	if idx := l.find(catalogItemID); idx >= 0 {
		l.items[idx].Quantity++
	}
}

// DecrementQuantity subtracts one from the line's quantity. Quantity never
// persists below 1: decrementing a quantity-1 line removes it.
func (l *Ledger) DecrementQuantity(catalogItemID string) {
	idx := l.find(catalogItemID)
	if idx < 0 {
		return
	}
	if l.items[idx].Quantity <= 1 {
		l.items = append(l.items[:idx], l.items[idx+1:]...)
		return
	}
	l.items[idx].Quantity--
}

// ToggleUrgent flips the urgent flag on the matching line.
func (l *Ledger) ToggleUrgent(catalogItemID string) {
	if idx := l.find(catalogItemID); idx >= 0 {
		l.items[idx].Urgent = !l.items[idx].Urgent
	}
}

// SetFields applies a partial update to the operator-entered purchase fields.
// The ledger never derives pre/post-tax amounts from rate and tax components;
// they are stored exactly as entered.
func (l *Ledger) SetFields(catalogItemID string, upd FieldUpdate) {
	idx := l.find(catalogItemID)
	if idx < 0 {
		return
	}
	it := &l.items[idx]
	if upd.Rate != nil {
		it.Rate = *upd.Rate
	}
	if upd.CGST != nil {
		it.CGST = *upd.CGST
	}
	if upd.SGST != nil {
		it.SGST = *upd.SGST
	}
	if upd.IGST != nil {
		it.IGST = *upd.IGST
	}
	if upd.PreTaxAmount != nil {
		it.PreTaxAmount = *upd.PreTaxAmount
	}
	if upd.PostTaxAmount != nil {
		it.PostTaxAmount = *upd.PostTaxAmount
	}
}

// LineTotal returns the computed total for one line, or 0 when the line is absent.
func (l *Ledger) LineTotal(catalogItemID string) Money {
	idx := l.find(catalogItemID)
	if idx < 0 {
		return 0
	}
	return lineTotal(l.items[idx])
}

// GrandTotal sums the line totals over the current line set. It is recomputed
// from scratch on every call.
func (l *Ledger) GrandTotal() Money {
	var total Money
	for _, it := range l.items {
		total += lineTotal(it)
	}
	return total
}

// EstimatedDurationDays returns the longest effective duration across service
// lines. Lines are fulfilled in parallel, so completion is bounded by the
// slowest single item, not the sum. An empty ledger yields 0.
func (l *Ledger) EstimatedDurationDays() int {
	max := 0
	for _, it := range l.items {
		if it.Kind != KindService {
			continue
		}
		days := it.StandardDurationDays
		if it.Urgent {
			days = it.UrgentDurationDays
		}
		if days > max {
			max = days
		}
	}
	return max
}

// Snapshot returns a copy of the current line set for handoff to submission.
// The copy never aliases the ledger's internal storage.
func (l *Ledger) Snapshot() []LineItem {
	out := make([]LineItem, len(l.items))
	copy(out, l.items)
	return out
}

// Len reports the number of lines on the ledger.
func (l *Ledger) Len() int {
	return len(l.items)
}

func (l *Ledger) find(catalogItemID string) int {
	for i, it := range l.items {
		if it.CatalogItemID == catalogItemID {
			return i
		}
	}
	return -1
}

// lineTotal applies the two pricing modes. Invalid inputs contribute zero
// rather than poisoning the grand total: negative prices and non-positive
// quantities are treated as 0.
func lineTotal(it LineItem) Money {
	if it.Quantity <= 0 {
		return 0
	}
	var unit Money
	switch it.Kind {
	case KindProduct:
		unit = it.Rate
	default:
		unit = it.StandardPrice
		if it.Urgent {
			unit = it.UrgentPrice
		}
	}
	if unit < 0 {
		unit = 0
	}
	return unit * Money(it.Quantity)
}
