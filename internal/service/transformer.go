package service

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"shipment-consolidator/config"
	"shipment-consolidator/internal/models"
	"shipment-consolidator/internal/normalize"
)

const dateLayout = "2006-01-02"

// CatalogIndex is the set of normalized product codes known to the product master
type CatalogIndex map[string]struct{}

// NewCatalogIndex builds an index from raw product codes
func NewCatalogIndex(codes []string) CatalogIndex {
	ix := make(CatalogIndex, len(codes))
	for _, c := range codes {
		if n := normalize.Code(c); n != "" {
			ix[n] = struct{}{}
		}
	}
	return ix
}

// Contains reports whether the normalized code is in the catalog
func (c CatalogIndex) Contains(code string) bool {
	_, ok := c[code]
	return ok
}

// TransformContext carries the run state a transform reads and the ledger it allocates from
type TransformContext struct {
	Allocator *StockAllocator
	Catalog   CatalogIndex
	Source    config.SourceConfig
	FetchDate time.Time
	Sender    models.Party
}

// TransformFn maps one order and one of its listings to a shipment instruction,
// or nil when the listing yields no product line
type TransformFn func(tc *TransformContext, order models.Order, listing *models.Listing) *models.ShipmentInstruction

// DecodeFn maps a raw order record to orders, one per quantity tier or item
type DecodeFn func(rec models.Record) []models.Order

// Marketplace is one entry of the strategy table
type Marketplace struct {
	Decode    DecodeFn
	Transform TransformFn
}

// Transformer dispatches decode and transform calls to the marketplace of each source
type Transformer struct {
	table   map[string]Marketplace
	sources map[string]config.SourceConfig
}

// NewTransformer creates a transformer over a marketplace table
func NewTransformer(table map[string]Marketplace, sources []config.SourceConfig) *Transformer {
	bySource := make(map[string]config.SourceConfig, len(sources))
	for _, s := range sources {
		bySource[s.Key] = s
	}
	return &Transformer{table: table, sources: bySource}
}

func (t *Transformer) marketplace(source string) (Marketplace, bool) {
	name := source
	if src, ok := t.sources[source]; ok && src.Marketplace != "" {
		name = src.Marketplace
	}
	m, ok := t.table[name]
	return m, ok
}

// Supports reports whether the source has a marketplace strategy
func (t *Transformer) Supports(source string) bool {
	_, ok := t.marketplace(source)
	return ok
}

// Decode implements OrderDecoder. Records of unknown marketplaces decode to nothing.
func (t *Transformer) Decode(source string, rec models.Record) []models.Order {
	m, ok := t.marketplace(source)
	if !ok || m.Decode == nil {
		return nil
	}
	orders := m.Decode(rec)
	for i := range orders {
		orders[i].Source = source
		orders[i].RecordID = rec.ID()
		if orders[i].Quantity <= 0 {
			orders[i].Quantity = 1
		}
	}
	return orders
}

// Transform runs the marketplace transform for the order's source
func (t *Transformer) Transform(tc *TransformContext, order models.Order, listing *models.Listing) *models.ShipmentInstruction {
	m, ok := t.marketplace(order.Source)
	if !ok || m.Transform == nil {
		return nil
	}
	return m.Transform(tc, order, listing)
}

// buildLines allocates stock for every usable product slot on the listing.
// Empty codes and codes missing from the catalog are skipped.
func buildLines(tc *TransformContext, order models.Order, listing *models.Listing) []models.ProductLine {
	var lines []models.ProductLine
	for i, item := range listing.Items {
		if i >= models.MaxListingItems {
			break
		}
		code := normalize.Code(item.Code)
		if code == "" || !tc.Catalog.Contains(code) {
			continue
		}
		units := item.UnitsPerSet
		if units <= 0 {
			units = 1
		}
		needed := order.Quantity * units

		alloc := tc.Allocator.Allocate(code, needed, listing.ExpiryFloor)
		lines = append(lines, models.ProductLine{
			Code:        code,
			UnitsPerSet: units,
			Needed:      needed,
			Expiry:      alloc.ExpiryString(),
			Location:    alloc.Location,
			Note:        alloc.Note,
			Shortage:    !alloc.Allocated(),
		})
	}
	return lines
}

// baseInstruction fills the fields every marketplace shares
func baseInstruction(tc *TransformContext, order models.Order, listing *models.Listing, lines []models.ProductLine) *models.ShipmentInstruction {
	instr := &models.ShipmentInstruction{
		SourceApp:        tc.Source.StoreID,
		SourceRecordID:   order.RecordID,
		Source:           order.Source,
		ListingGroupID:   listing.GroupID,
		ListingRecordID:  listing.ID,
		ManagementNumber: listing.ManagementNumber,
		FetchDate:        tc.FetchDate.Format(dateLayout),
		Lines:            lines,
		MarketplaceName:  tc.Source.Label,
		Quantity:         order.Quantity,
		ProductName:      listing.DisplayName,
		SizeCode:         listing.SizeCode,
		Sender:           tc.Sender,
		Carrier:          listing.Carrier,
	}
	for _, l := range lines {
		if l.Shortage {
			instr.HasShortage = true
			break
		}
	}
	return instr
}

var orderDateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006/01/02 15:04:05",
	"2006/01/02 15:04",
	"20060102150405",
	"2006-01-02",
	"2006/01/02",
	"20060102",
}

// parseDate accepts the date and datetime layouts the order and listing stores use
func parseDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(normalize.Narrow(raw))
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range orderDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// formatOrderDate renders a marketplace order date as YYYY-MM-DD, keeping
// unparseable values as they are
func formatOrderDate(raw string) string {
	if t, ok := parseDate(raw); ok {
		return t.Format(dateLayout)
	}
	return strings.TrimSpace(raw)
}

var hourPattern = regexp.MustCompile(`\d{1,2}`)

// timeWindowCode maps a requested delivery window such as "14:00-16:00" or
// "14時～16時" to the carrier code "1416". Morning requests map to "0812".
func timeWindowCode(raw string) string {
	raw = strings.TrimSpace(normalize.Narrow(raw))
	if raw == "" || strings.Contains(raw, "指定なし") {
		return ""
	}
	if strings.Contains(raw, "午前") || strings.EqualFold(raw, "AM") {
		return "0812"
	}
	hours := hourPattern.FindAllString(strings.ReplaceAll(raw, ":00", ""), 2)
	if len(hours) < 2 {
		return ""
	}
	from, _ := strconv.Atoi(hours[0])
	to, _ := strconv.Atoi(hours[1])
	if from >= to || to > 24 {
		return ""
	}
	return fmt.Sprintf("%02d%02d", from, to)
}

// joinNonEmpty joins the non-blank parts with sep
func joinNonEmpty(sep string, parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, sep)
}
