package models

import "strconv"

// Order store fields shared by every marketplace
const (
	FieldStatus = "status"
)

// Listing store fields
const (
	ListingFieldMediaName        = "media_name"
	ListingFieldManagementNumber = "management_number"
	ListingFieldGroupID          = "group_id"
	ListingFieldExpiryFloor      = "expiry_floor"
	ListingFieldCarrier          = "carrier"
	ListingFieldDisplayName      = "display_name"
	ListingFieldSizeCode         = "size_code"
)

// ListingCodeField returns the product code field of slot n (1-based)
func ListingCodeField(n int) string {
	return "product_code_" + strconv.Itoa(n)
}

// ListingUnitsField returns the units-per-set field of slot n (1-based)
func ListingUnitsField(n int) string {
	return "units_per_set_" + strconv.Itoa(n)
}

// ListingFields is the restricted field list fetched for listings
func ListingFields() []string {
	fields := []string{
		FieldID,
		ListingFieldMediaName,
		ListingFieldManagementNumber,
		ListingFieldGroupID,
		ListingFieldExpiryFloor,
		ListingFieldCarrier,
		ListingFieldDisplayName,
		ListingFieldSizeCode,
	}
	for n := 1; n <= MaxListingItems; n++ {
		fields = append(fields, ListingCodeField(n), ListingUnitsField(n))
	}
	return fields
}

// Shipment instruction store fields
const (
	InstrFieldSourceApp        = "source_app"
	InstrFieldSourceRecordID   = "source_record_id"
	InstrFieldSource           = "source"
	InstrFieldListingGroupID   = "listing_group_id"
	InstrFieldListingRecordID  = "listing_record_id"
	InstrFieldManagementNumber = "management_number"
	InstrFieldFetchDate        = "fetch_date"
	InstrFieldLines            = "product_lines"
	InstrFieldMarketplaceName  = "marketplace_name"
	InstrFieldOrderNumber      = "order_number"
	InstrFieldOrderDate        = "order_date"
	InstrFieldQuantity         = "quantity"
	InstrFieldProductName      = "product_name"
	InstrFieldSizeCode         = "size_code"
	InstrFieldTimeWindow       = "time_window"
	InstrFieldSenderName       = "sender_name"
	InstrFieldSenderPostal     = "sender_postal_code"
	InstrFieldSenderAddress    = "sender_address"
	InstrFieldSenderPhone      = "sender_phone"
	InstrFieldRecipientName    = "recipient_name"
	InstrFieldRecipientPostal  = "recipient_postal_code"
	InstrFieldRecipientAddress = "recipient_address"
	InstrFieldRecipientPhone   = "recipient_phone"
	InstrFieldCarrier          = "carrier"
	InstrFieldNotes            = "notes"
	InstrFieldHasDefect        = "has_defect"
	InstrFieldDefectText       = "defect_text"
	InstrFieldHasShortage      = "has_shortage"
)

// Product line subtable fields
const (
	LineFieldCode        = "product_code"
	LineFieldUnitsPerSet = "units_per_set"
	LineFieldExpiry      = "expiry"
	LineFieldLocation    = "location"
	LineFieldNote        = "note"
	LineFieldShortage    = "shortage"
)
