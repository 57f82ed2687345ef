package models

import "time"

// MaxListingItems is the number of (product code, units per set) slots on a listing
const MaxListingItems = 10

// Order statuses on the marketplace order stores
const (
	OrderStatusPending = "pending"
	OrderStatusIssued  = "shipment request issued"
)

// Order is a pending marketplace order as fetched from its source store
type Order struct {
	Source        string `json:"source"`
	RecordID      string `json:"record_id"`
	ManagementKey string `json:"management_key"`
	Quantity      int    `json:"quantity"`
	OrderDate     string `json:"order_date"`
	Fields        Record `json:"fields"`
}

// Ref returns the back-reference to the source order record
func (o Order) Ref() OrderRef {
	return OrderRef{Source: o.Source, RecordID: o.RecordID}
}

// OrderRef identifies one record in one marketplace order store
type OrderRef struct {
	Source   string `json:"source"`
	RecordID string `json:"record_id"`
}

// ListingItem is one product code slot on a listing
type ListingItem struct {
	Code        string `json:"code"`
	UnitsPerSet int    `json:"units_per_set"`
}

// Listing is a master catalog entry binding a marketplace placement to product codes
type Listing struct {
	ID               string        `json:"id"`
	MediaName        string        `json:"media_name"`
	ManagementNumber string        `json:"management_number"`
	GroupID          string        `json:"group_id"`
	Items            []ListingItem `json:"items"`
	ExpiryFloor      *time.Time    `json:"expiry_floor,omitempty"`
	Carrier          string        `json:"carrier"`
	DisplayName      string        `json:"display_name"`
	SizeCode         string        `json:"size_code"`
}

// StockLot is a quantity of a single product code sharing one expiry and location.
// A zero Expiry means the lot does not expire.
type StockLot struct {
	Code      string    `db:"product_code" json:"code"`
	Expiry    time.Time `db:"expiry_date" json:"expiry"`
	Remaining int       `db:"quantity" json:"remaining"`
	Location  string    `db:"location" json:"location"`
	Note      string    `db:"note" json:"note"`
}

// Party is a sender or recipient block on a shipment instruction
type Party struct {
	Name       string `json:"name"`
	PostalCode string `json:"postal_code"`
	Address    string `json:"address"`
	Phone      string `json:"phone"`
}

// ProductLine is one resolved product on a shipment instruction.
// Expiry, Location and Note are blank when no lot could be allocated.
type ProductLine struct {
	Code        string `json:"code"`
	UnitsPerSet int    `json:"units_per_set"`
	Needed      int    `json:"needed"`
	Expiry      string `json:"expiry"`
	Location    string `json:"location"`
	Note        string `json:"note"`
	Shortage    bool   `json:"shortage"`
}

// ShipmentInstruction is the canonical record written to the shipment instruction store
type ShipmentInstruction struct {
	SourceApp        string        `json:"source_app"`
	SourceRecordID   string        `json:"source_record_id"`
	Source           string        `json:"source"`
	ListingGroupID   string        `json:"listing_group_id"`
	ListingRecordID  string        `json:"listing_record_id"`
	ManagementNumber string        `json:"management_number"`
	FetchDate        string        `json:"fetch_date"`
	Lines            []ProductLine `json:"lines"`
	MarketplaceName  string        `json:"marketplace_name"`
	OrderNumber      string        `json:"order_number"`
	OrderDate        string        `json:"order_date"`
	Quantity         int           `json:"quantity"`
	ProductName      string        `json:"product_name"`
	SizeCode         string        `json:"size_code"`
	TimeWindow       string        `json:"time_window"`
	Sender           Party         `json:"sender"`
	Recipient        Party         `json:"recipient"`
	Carrier          string        `json:"carrier"`
	Notes            []string      `json:"notes,omitempty"`
	Defects          []string      `json:"defects,omitempty"`
	HasDefect        bool          `json:"has_defect"`
	DefectText       string        `json:"defect_text"`
	HasShortage      bool          `json:"has_shortage"`
}

// OrderRef returns the back-reference to the order this instruction was derived from
func (s ShipmentInstruction) OrderRef() OrderRef {
	return OrderRef{Source: s.Source, RecordID: s.SourceRecordID}
}

// Run states
const (
	RunStateIdle             = "IDLE"
	RunStateFetching         = "FETCHING"
	RunStateResolving        = "RESOLVING"
	RunStateAllocating       = "ALLOCATING"
	RunStateValidating       = "VALIDATING"
	RunStateWriting          = "WRITING"
	RunStateMarkingProcessed = "MARKING_PROCESSED"
	RunStateDone             = "DONE"
)

// Run outcomes
const (
	RunOutcomeSuccess        = "SUCCESS"
	RunOutcomePartialSuccess = "PARTIAL_SUCCESS"
	RunOutcomeFatal          = "FATAL"
)

// Run error stages
const (
	StageFetch   = "fetch"
	StageResolve = "resolve"
	StageLedger  = "ledger"
	StageWrite   = "write"
	StageMark    = "mark_processed"
)

// SourceSummary holds per-source counts for one run
type SourceSummary struct {
	Fetched   int `json:"fetched"`
	Resolved  int `json:"resolved"`
	Allocated int `json:"allocated"`
	Written   int `json:"written"`
	Marked    int `json:"marked"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

// RunError is one recorded failure of a run
type RunError struct {
	Stage   string `json:"stage"`
	Source  string `json:"source,omitempty"`
	Message string `json:"message"`
}

// RunSummary is returned to the caller of a run; it is not part of the shipment data
type RunSummary struct {
	RunID        string                    `json:"run_id"`
	State        string                    `json:"state"`
	Outcome      string                    `json:"outcome"`
	NoOp         bool                      `json:"no_op"`
	StartedAt    time.Time                 `json:"started_at"`
	FinishedAt   time.Time                 `json:"finished_at"`
	Instructions int                       `json:"instructions"`
	Shortages    int                       `json:"shortages"`
	Defects      int                       `json:"defects"`
	Sources      map[string]*SourceSummary `json:"sources"`
	Errors       []RunError                `json:"errors"`
}

// NewRunSummary creates an empty summary for a run
func NewRunSummary(runID string, startedAt time.Time) *RunSummary {
	return &RunSummary{
		RunID:     runID,
		State:     RunStateIdle,
		StartedAt: startedAt,
		Sources:   make(map[string]*SourceSummary),
		Errors:    make([]RunError, 0),
	}
}

// Source returns the counters for a source, creating them on first use
func (s *RunSummary) Source(key string) *SourceSummary {
	ss, ok := s.Sources[key]
	if !ok {
		ss = &SourceSummary{}
		s.Sources[key] = ss
	}
	return ss
}

// AddError records a failure against a stage and optional source
func (s *RunSummary) AddError(stage, source string, err error) {
	s.Errors = append(s.Errors, RunError{Stage: stage, Source: source, Message: err.Error()})
}

// FirstErrors returns at most n error messages for display
func (s *RunSummary) FirstErrors(n int) []string {
	if n > len(s.Errors) {
		n = len(s.Errors)
	}
	out := make([]string, 0, n)
	for _, e := range s.Errors[:n] {
		if e.Source != "" {
			out = append(out, e.Stage+" ["+e.Source+"]: "+e.Message)
			continue
		}
		out = append(out, e.Stage+": "+e.Message)
	}
	return out
}
