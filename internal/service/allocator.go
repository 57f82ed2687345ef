package service

import (
	"sort"
	"time"

	"shipment-consolidator/internal/models"
	"shipment-consolidator/internal/normalize"
	"shipment-consolidator/internal/util"
)

// Allocation is the outcome of one FEFO allocation. Lot is nil on a soft shortage.
type Allocation struct {
	Lot      *models.StockLot
	Expiry   time.Time
	Location string
	Note     string
}

// Allocated reports whether a lot was decremented
func (a Allocation) Allocated() bool {
	return a.Lot != nil
}

// ExpiryString formats the assigned expiry, blank when unallocated or non-expiring
func (a Allocation) ExpiryString() string {
	if a.Lot == nil || a.Expiry.IsZero() {
		return ""
	}
	return a.Expiry.Format(dateLayout)
}

// StockAllocator owns the run's stock ledger: lots grouped by normalized code and
// kept in ascending expiry order. Allocate is the only mutation. It is not safe for
// concurrent use and must be driven from a single goroutine.
type StockAllocator struct {
	ledger    map[string][]*models.StockLot
	shortages int
}

// NewStockAllocator builds a ledger from lots. The lots are copied so the caller's
// slice is never mutated.
func NewStockAllocator(lots []models.StockLot) *StockAllocator {
	ledger := make(map[string][]*models.StockLot)
	for _, lot := range lots {
		l := lot
		l.Code = normalize.Code(l.Code)
		if l.Code == "" {
			continue
		}
		if l.Remaining < 0 {
			l.Remaining = 0
		}
		ledger[l.Code] = append(ledger[l.Code], &l)
	}
	for _, group := range ledger {
		sortByExpiry(group)
	}
	return &StockAllocator{ledger: ledger}
}

// sortByExpiry orders lots by expiry ascending; lots without expiry go last
func sortByExpiry(lots []*models.StockLot) {
	sort.SliceStable(lots, func(i, j int) bool {
		a, b := lots[i].Expiry, lots[j].Expiry
		switch {
		case a.IsZero():
			return false
		case b.IsZero():
			return true
		default:
			return a.Before(b)
		}
	})
}

// Allocate takes needed units of code from the first lot whose expiry is at or
// after floor and whose remaining quantity covers the whole need. A lot is never
// split across lines and never driven below zero; when nothing qualifies the
// returned allocation is empty.
func (a *StockAllocator) Allocate(code string, needed int, floor *time.Time) Allocation {
	if needed <= 0 {
		return Allocation{}
	}
	for _, lot := range a.ledger[normalize.Code(code)] {
		if floor != nil && !lot.Expiry.IsZero() && lot.Expiry.Before(*floor) {
			continue
		}
		if lot.Remaining < needed {
			continue
		}
		lot.Remaining -= needed
		return Allocation{
			Lot:      lot,
			Expiry:   lot.Expiry,
			Location: lot.Location,
			Note:     lot.Note,
		}
	}
	a.shortages++
	util.AllocationShortagesTotal.Inc()
	return Allocation{}
}

// Lots returns a snapshot of the lots for code in allocation order
func (a *StockAllocator) Lots(code string) []models.StockLot {
	group := a.ledger[normalize.Code(code)]
	out := make([]models.StockLot, len(group))
	for i, lot := range group {
		out[i] = *lot
	}
	return out
}

// Remaining returns the total remaining units for code
func (a *StockAllocator) Remaining(code string) int {
	total := 0
	for _, lot := range a.ledger[normalize.Code(code)] {
		total += lot.Remaining
	}
	return total
}

// Shortages returns how many allocations found no qualifying lot
func (a *StockAllocator) Shortages() int {
	return a.shortages
}
