package service

import (
	"context"
	"net/http"
	"sync"
	"time"

	"shipment-consolidator/config"
	"shipment-consolidator/internal/models"
	"shipment-consolidator/internal/recordstore"
	"shipment-consolidator/internal/retry"
)

const (
	testListingStore     = "app-listings"
	testInstructionStore = "app-instructions"
)

var errUnavailable = &recordstore.StatusError{Code: http.StatusServiceUnavailable, Body: "maintenance"}

func testPolicy() retry.Policy {
	p := retry.DefaultPolicy(recordstore.IsRetryable)
	p.Sleep = func(context.Context, time.Duration) error { return nil }
	return p
}

func testSources() []config.SourceConfig {
	return []config.SourceConfig{
		{Key: "rakuten", Marketplace: MarketplaceRakuten, StoreID: "app-rakuten", MediaName: "Rakuten", LinkBy: config.LinkByManagementNumber, Label: "Rakuten Ichiba"},
		{Key: "amazon", Marketplace: MarketplaceAmazon, StoreID: "app-amazon", MediaName: "Amazon", LinkBy: config.LinkByManagementNumber, Label: "Amazon"},
		{Key: "yahoo", Marketplace: MarketplaceYahoo, StoreID: "app-yahoo", MediaName: "Yahoo", LinkBy: config.LinkByGroupID, Label: "Yahoo Shopping"},
	}
}

func rakutenOrder(manageNumber string, units int) models.Record {
	return models.Record{
		models.FieldStatus:  models.OrderStatusPending,
		"manage_number":     manageNumber,
		"units":             units,
		"order_number":      "R-" + manageNumber,
		"order_datetime":    "2025-01-10 09:30:00",
		"ship_family_name":  "山田",
		"ship_first_name":   "太郎",
		"ship_zip1":         "100",
		"ship_zip2":         "0001",
		"ship_prefecture":   "東京都",
		"ship_city":         "千代田区",
		"ship_sub_address":  "千代田1-1",
		"ship_phone1":       "03",
		"ship_phone2":       "1234",
		"ship_phone3":       "5678",
		"delivery_time":     "14:00-16:00",
	}
}

func amazonOrder(sku string, qty int) models.Record {
	return models.Record{
		models.FieldStatus:   models.OrderStatusPending,
		"sku":                sku,
		"quantity_purchased": qty,
		"amazon_order_id":    "A-" + sku,
		"purchase_date":      "2025-01-11T08:00:00Z",
		"recipient_name":     "佐藤 花子",
		"ship_postal_code":   "530-0001",
		"ship_state":         "大阪府",
		"ship_city":          "大阪市北区",
		"ship_address_1":     "梅田2-2",
		"ship_phone_number":  "+81612345678",
	}
}

func yahooOrder(items ...models.Record) models.Record {
	rows := make([]any, 0, len(items))
	for _, it := range items {
		rows = append(rows, map[string]any(it))
	}
	return models.Record{
		models.FieldStatus:  models.OrderStatusPending,
		"order_id":          "Y-1",
		"order_time":        "2025/01/12 12:00:00",
		"ship_last_name":    "鈴木",
		"ship_first_name":   "一郎",
		"ship_zip_code":     "060-0001",
		"ship_prefecture":   "北海道",
		"ship_city":         "札幌市中央区",
		"ship_address1":     "北一条西3-3",
		"ship_phone_number": "011-123-4567",
		"items":             rows,
	}
}

func listingRecord(media, manageNumber, groupID string, slots ...any) models.Record {
	rec := models.Record{
		models.ListingFieldMediaName:        media,
		models.ListingFieldManagementNumber: manageNumber,
		models.ListingFieldGroupID:          groupID,
		models.ListingFieldCarrier:          "yamato",
		models.ListingFieldDisplayName:      "Listing " + manageNumber + groupID,
		models.ListingFieldSizeCode:         "60",
	}
	for i := 0; i+1 < len(slots); i += 2 {
		n := i/2 + 1
		rec[models.ListingCodeField(n)] = slots[i]
		rec[models.ListingUnitsField(n)] = slots[i+1]
	}
	return rec
}

type fakeInventory struct {
	lots     []models.StockLot
	codes    []string
	lotsErr  error
	codesErr error
}

func (f *fakeInventory) ListStockLots(context.Context) ([]models.StockLot, error) {
	return f.lots, f.lotsErr
}

func (f *fakeInventory) ListProductCodes(context.Context) ([]string, error) {
	return f.codes, f.codesErr
}

type fakeLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

func newFakeLocker() *fakeLocker {
	return &fakeLocker{held: make(map[string]bool)}
}

func (l *fakeLocker) AcquireLock(_ context.Context, key string, _ time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] {
		return false, nil
	}
	l.held[key] = true
	return true, nil
}

func (l *fakeLocker) ReleaseLock(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, key)
	return nil
}

type fakeMarker struct {
	mu      sync.Mutex
	written map[models.OrderRef]bool
}

func newFakeMarker() *fakeMarker {
	return &fakeMarker{written: make(map[models.OrderRef]bool)}
}

func (m *fakeMarker) IsWritten(_ context.Context, ref models.OrderRef) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.written[ref], nil
}

func (m *fakeMarker) MarkWritten(ctx context.Context, refs []models.OrderRef, _ time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range refs {
		m.written[r] = true
	}
	return nil
}

type fakeRecorder struct {
	runs []*models.RunSummary
}

func (r *fakeRecorder) SaveRun(_ context.Context, s *models.RunSummary) error {
	r.runs = append(r.runs, s)
	return nil
}

type fakePublisher struct {
	mu        sync.Mutex
	written   []*models.InstructionsWrittenEvent
	completed []*models.RunCompletedEvent
}

func (p *fakePublisher) PublishInstructionsWritten(_ context.Context, e *models.InstructionsWrittenEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.written = append(p.written, e)
	return nil
}

func (p *fakePublisher) PublishRunCompleted(_ context.Context, e *models.RunCompletedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.completed = append(p.completed, e)
	return nil
}

func testTransformContext(lots []models.StockLot, codes []string, src config.SourceConfig) *TransformContext {
	return &TransformContext{
		Allocator: NewStockAllocator(lots),
		Catalog:   NewCatalogIndex(codes),
		Source:    src,
		FetchDate: date("2025-01-15"),
		Sender:    models.Party{Name: "Warehouse", PostalCode: "1500001", Address: "東京都渋谷区神宮前1-1", Phone: "0312345678"},
	}
}
